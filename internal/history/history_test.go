package history

import (
	"fmt"
	"testing"
	"time"
)

func TestAppendAndIsolation(t *testing.T) {
	m := NewManager(20, time.Hour)

	m.Append("u1", "s1", Turn{Role: RoleUser, Message: "hello"})
	m.Append("u1", "s1", Turn{Role: RoleAssistant, Message: "hi"})
	m.Append("u1", "s2", Turn{Role: RoleUser, Message: "other session"})
	m.Append("u2", "s1", Turn{Role: RoleUser, Message: "other user"})

	c := m.Context("u1", "s1")
	if len(c.Turns) != 2 {
		t.Fatalf("want 2 turns, got %d", len(c.Turns))
	}
	if c.Turns[0].Message != "hello" || c.Turns[1].Message != "hi" {
		t.Fatalf("unexpected order: %+v", c.Turns)
	}
	if len(m.Context("u1", "s2").Turns) != 1 {
		t.Fatal("session isolation broken")
	}
	if len(m.Context("u2", "s1").Turns) != 1 {
		t.Fatal("user isolation broken")
	}
	if len(m.Context("u3", "s9").Turns) != 0 {
		t.Fatal("unknown session not empty")
	}
}

func TestWindowEviction(t *testing.T) {
	m := NewManager(3, time.Hour)
	for i := 0; i < 5; i++ {
		m.Append("u1", "s1", Turn{Role: RoleUser, Message: fmt.Sprintf("m%d", i)})
	}
	c := m.Context("u1", "s1")
	if len(c.Turns) != 3 {
		t.Fatalf("window not enforced: %d turns", len(c.Turns))
	}
	if c.Turns[0].Message != "m2" || c.Turns[2].Message != "m4" {
		t.Fatalf("oldest not evicted first: %+v", c.Turns)
	}
}

func TestCopySemantics(t *testing.T) {
	m := NewManager(20, time.Hour)
	m.Append("u1", "s1", Turn{Role: RoleUser, Message: "original"})
	c := m.Context("u1", "s1")
	c.Turns[0].Message = "mutated"
	if got := m.Context("u1", "s1").Turns[0].Message; got != "original" {
		t.Fatalf("internal state mutated via snapshot: %q", got)
	}
}

func TestNoteTaskRefs(t *testing.T) {
	m := NewManager(20, time.Hour)
	m.NoteTask("u1", "s1", "id-1", "Buy milk")
	m.NoteTask("u1", "s1", "id-2", "Call dentist")
	m.NoteTask("u1", "s1", "id-1", "Buy milk") // moves to front

	c := m.Context("u1", "s1")
	if len(c.RecentTasks) != 2 {
		t.Fatalf("want 2 refs, got %d", len(c.RecentTasks))
	}
	if c.RecentTasks[0].ID != "id-1" || c.RecentTasks[1].ID != "id-2" {
		t.Fatalf("unexpected recency order: %+v", c.RecentTasks)
	}
	if c.EntityRefs["buy milk"] != "id-1" {
		t.Fatalf("alias lookup broken: %+v", c.EntityRefs)
	}

	m.ForgetTask("u1", "s1", "id-1")
	if refs := m.Context("u1", "s1").RecentTasks; len(refs) != 1 || refs[0].ID != "id-2" {
		t.Fatalf("forget failed: %+v", refs)
	}
}

func TestNoteTaskCap(t *testing.T) {
	m := NewManager(20, time.Hour)
	for i := 0; i < maxRecentTasks+3; i++ {
		m.NoteTask("u1", "s1", fmt.Sprintf("id-%d", i), fmt.Sprintf("task %d", i))
	}
	refs := m.Context("u1", "s1").RecentTasks
	if len(refs) != maxRecentTasks {
		t.Fatalf("refs not capped: %d", len(refs))
	}
	if refs[0].ID != fmt.Sprintf("id-%d", maxRecentTasks+2) {
		t.Fatalf("most recent not first: %+v", refs)
	}
}

func TestSweep(t *testing.T) {
	m := NewManager(20, time.Minute)
	m.Append("u1", "s1", Turn{Role: RoleUser, Message: "stale"})
	m.Append("u2", "s2", Turn{Role: RoleUser, Message: "also stale"})

	if n := m.Sweep(time.Now()); n != 0 {
		t.Fatalf("fresh sessions swept: %d", n)
	}
	if n := m.Sweep(time.Now().Add(2 * time.Minute)); n != 2 {
		t.Fatalf("want 2 swept, got %d", n)
	}
	if len(m.Context("u1", "s1").Turns) != 0 {
		t.Fatal("swept session still has turns")
	}
}

func TestLastAssistantMessage(t *testing.T) {
	m := NewManager(20, time.Hour)
	if _, ok := m.Context("u1", "s1").LastAssistantMessage(); ok {
		t.Fatal("empty context reported an assistant message")
	}
	m.Append("u1", "s1", Turn{Role: RoleUser, Message: "q1"})
	m.Append("u1", "s1", Turn{Role: RoleAssistant, Message: "a1"})
	m.Append("u1", "s1", Turn{Role: RoleUser, Message: "q2"})
	got, ok := m.Context("u1", "s1").LastAssistantMessage()
	if !ok || got != "a1" {
		t.Fatalf("LastAssistantMessage = %q ok=%v", got, ok)
	}
}
