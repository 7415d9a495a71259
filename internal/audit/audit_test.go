package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFileLogAppendLoad(t *testing.T) {
	l, err := NewFileLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	e1 := Entry{TaskID: "t1", UserID: "u1", Action: ActionCreated,
		NewValues: map[string]any{"title": "demo"}, Timestamp: time.Now().UTC()}
	e2 := Entry{TaskID: "t1", UserID: "u1", Action: ActionCompleted,
		OldValues: map[string]any{"status": "pending"},
		NewValues: map[string]any{"status": "completed"}, Timestamp: time.Now().UTC()}

	if err := l.Append(e1); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(e2); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := l.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 entries, got %d", len(got))
	}
	if got[0].Action != ActionCreated || got[0].NewValues["title"] != "demo" {
		t.Fatalf("unexpected first entry: %+v", got[0])
	}
	if got[1].Action != ActionCompleted {
		t.Fatalf("unexpected second entry: %+v", got[1])
	}
}

func TestFileLogEmpty(t *testing.T) {
	l, err := NewFileLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	got, err := l.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty, got %d", len(got))
	}
}
