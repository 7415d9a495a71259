package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DurgarajC07/task-assit/internal/audit"
	"github.com/DurgarajC07/task-assit/internal/entity"
	"github.com/DurgarajC07/task-assit/internal/executor"
	"github.com/DurgarajC07/task-assit/internal/history"
	"github.com/DurgarajC07/task-assit/internal/intent"
	"github.com/DurgarajC07/task-assit/internal/llm"
	"github.com/DurgarajC07/task-assit/internal/respond"
	"github.com/DurgarajC07/task-assit/internal/task"
)

var now = time.Date(2026, time.January, 28, 9, 0, 0, 0, time.UTC)

// scriptedLLM replays canned replies, one per Generate call.
type scriptedLLM struct {
	mu     sync.Mutex
	script []string
	errs   []error
	calls  int
}

func (s *scriptedLLM) Generate(_ context.Context, _ []llm.Message, _ llm.Options) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return llm.Response{}, s.errs[i]
	}
	if i >= len(s.script) {
		return llm.Response{}, errors.New("script exhausted")
	}
	return llm.Response{Content: s.script[i]}, nil
}

func newAssistant(client llm.Client) (*Assistant, *task.MemStore) {
	store := task.NewMemStore()
	return New(
		intent.NewClassifier(client, time.Second),
		entity.NewResolver(),
		executor.New(store, audit.NewMemLog(), 100),
		respond.NewComposer(),
		history.NewManager(history.DefaultWindow, history.DefaultTTL),
	), store
}

func TestCreateThenCompleteByPronoun(t *testing.T) {
	llmFake := &scriptedLLM{script: []string{
		`{"intent":"CREATE_TASK","confidence":0.95,"entities":{"title":"team meeting","due_date":"tomorrow","due_time":"2pm"}}`,
		`{"intent":"COMPLETE_TASK","confidence":0.9,"entities":{"task_reference":"it"}}`,
	}}
	a, store := newAssistant(llmFake)

	reply, err := a.HandleMessage(context.Background(), "u1", "s1", "create a task for the team meeting tomorrow at 2pm", now)
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if !strings.Contains(reply, "team meeting") || !strings.Contains(reply, "Thu, 29 Jan 2026 at 14:00") {
		t.Fatalf("create reply: %q", reply)
	}

	reply, err = a.HandleMessage(context.Background(), "u1", "s1", "mark it as done", now)
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if !strings.Contains(reply, "team meeting") {
		t.Fatalf("complete reply does not name the task: %q", reply)
	}

	tasks, _ := store.Query(context.Background(), "u1", task.Filter{})
	if len(tasks) != 1 || tasks[0].Status != task.StatusCompleted {
		t.Fatalf("store state: %+v", tasks)
	}
}

func TestAmbiguousPronounAsksInsteadOfGuessing(t *testing.T) {
	llmFake := &scriptedLLM{script: []string{
		`{"intent":"CREATE_TASK","confidence":0.95,"entities":{"title":"buy milk"}}`,
		`{"intent":"CREATE_TASK","confidence":0.95,"entities":{"title":"call dentist"}}`,
		`{"intent":"DELETE_TASK","confidence":0.9,"entities":{"task_reference":"it"}}`,
	}}
	a, store := newAssistant(llmFake)

	a.HandleMessage(context.Background(), "u1", "s1", "add buy milk", now)
	a.HandleMessage(context.Background(), "u1", "s1", "add call dentist", now)

	reply, err := a.HandleMessage(context.Background(), "u1", "s1", "delete it", now)
	if err != nil {
		t.Fatalf("turn 3: %v", err)
	}
	if !strings.Contains(reply, "buy milk") || !strings.Contains(reply, "call dentist") {
		t.Fatalf("clarification must list candidates: %q", reply)
	}
	tasks, _ := store.Query(context.Background(), "u1", task.Filter{})
	if len(tasks) != 2 {
		t.Fatalf("ambiguous turn mutated the store: %+v", tasks)
	}
}

func TestUnambiguousPronounDeletes(t *testing.T) {
	llmFake := &scriptedLLM{script: []string{
		`{"intent":"CREATE_TASK","confidence":0.95,"entities":{"title":"buy milk"}}`,
		`{"intent":"DELETE_TASK","confidence":0.9,"entities":{"task_reference":"it"}}`,
	}}
	a, store := newAssistant(llmFake)

	a.HandleMessage(context.Background(), "u1", "s1", "add buy milk", now)
	reply, _ := a.HandleMessage(context.Background(), "u1", "s1", "delete it", now)
	if !strings.Contains(reply, "buy milk") {
		t.Fatalf("delete reply: %q", reply)
	}
	tasks, _ := store.Query(context.Background(), "u1", task.Filter{})
	if len(tasks) != 0 {
		t.Fatalf("task not deleted: %+v", tasks)
	}
}

func TestLowConfidenceNeverExecutes(t *testing.T) {
	llmFake := &scriptedLLM{script: []string{
		`{"intent":"CREATE_TASK","confidence":0.4,"entities":{"title":"something"}}`,
	}}
	a, store := newAssistant(llmFake)

	reply, _ := a.HandleMessage(context.Background(), "u1", "s1", "hmm maybe do a thing", now)
	if !strings.Contains(reply, "add a task") {
		t.Fatalf("want clarification with examples, got %q", reply)
	}
	if tasks, _ := store.Query(context.Background(), "u1", task.Filter{}); len(tasks) != 0 {
		t.Fatal("low-confidence intent was executed")
	}
}

func TestClassifierFailureStillRepliesAndRecords(t *testing.T) {
	llmFake := &scriptedLLM{errs: []error{errors.New("upstream timeout")}}
	a, _ := newAssistant(llmFake)

	reply, err := a.HandleMessage(context.Background(), "u1", "s1", "anything", now)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply == "" {
		t.Fatal("no reply on classifier failure")
	}
	hctx := a.InspectContext("u1", "s1")
	if len(hctx.Turns) != 2 {
		t.Fatalf("turn not recorded: %d turns", len(hctx.Turns))
	}
	if hctx.Turns[0].Intent != string(intent.Unclear) {
		t.Fatalf("recorded intent = %q", hctx.Turns[0].Intent)
	}
}

func TestFailedExecutionStillRepliesAndRecords(t *testing.T) {
	llmFake := &scriptedLLM{script: []string{
		`{"intent":"COMPLETE_TASK","confidence":0.9,"entities":{"task_reference":"the launch checklist"}}`,
	}}
	a, _ := newAssistant(llmFake)

	reply, err := a.HandleMessage(context.Background(), "u1", "s1", "finish the launch checklist", now)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(reply, "couldn't find") {
		t.Fatalf("not-found reply: %q", reply)
	}
	if got := len(a.InspectContext("u1", "s1").Turns); got != 2 {
		t.Fatalf("failed turn not recorded: %d turns", got)
	}
}

func TestBareTitleFollowUp(t *testing.T) {
	llmFake := &scriptedLLM{script: []string{
		`{"intent":"CREATE_TASK","confidence":0.9,"entities":{}}`,
		`{"intent":"UNCLEAR","confidence":0.2,"entities":{}}`,
	}}
	a, store := newAssistant(llmFake)

	reply, _ := a.HandleMessage(context.Background(), "u1", "s1", "add a task", now)
	if !strings.Contains(strings.ToLower(reply), "title") {
		t.Fatalf("expected a title prompt, got %q", reply)
	}

	reply, _ = a.HandleMessage(context.Background(), "u1", "s1", "buy milk", now)
	if !strings.Contains(reply, "buy milk") {
		t.Fatalf("follow-up reply: %q", reply)
	}
	tasks, _ := store.Query(context.Background(), "u1", task.Filter{})
	if len(tasks) != 1 || tasks[0].Title != "buy milk" {
		t.Fatalf("bare reply not used as title: %+v", tasks)
	}
}

// overlapLLM trips if two Generate calls ever run concurrently.
type overlapLLM struct {
	active  int32
	overlap bool
	mu      sync.Mutex
}

func (o *overlapLLM) Generate(_ context.Context, _ []llm.Message, _ llm.Options) (llm.Response, error) {
	o.mu.Lock()
	o.active++
	if o.active > 1 {
		o.overlap = true
	}
	o.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	o.mu.Lock()
	o.active--
	o.mu.Unlock()
	return llm.Response{Content: `{"intent":"GET_STATISTICS","confidence":0.9,"entities":{}}`}, nil
}

func TestTurnsWithinSessionAreSerialized(t *testing.T) {
	llmFake := &overlapLLM{}
	a, _ := newAssistant(llmFake)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.HandleMessage(context.Background(), "u1", "s1", "stats please", now)
		}()
	}
	wg.Wait()

	if llmFake.overlap {
		t.Fatal("two turns of one session ran concurrently")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	llmFake := &scriptedLLM{script: []string{
		`{"intent":"CREATE_TASK","confidence":0.95,"entities":{"title":"alpha"}}`,
		`{"intent":"DELETE_TASK","confidence":0.9,"entities":{"task_reference":"it"}}`,
	}}
	a, _ := newAssistant(llmFake)

	a.HandleMessage(context.Background(), "u1", "s1", "add alpha", now)

	// A different session has no recent tasks, so "it" is ambiguous there.
	reply, _ := a.HandleMessage(context.Background(), "u1", "s2", "delete it", now)
	if !strings.Contains(reply, "which task") && !strings.Contains(strings.ToLower(reply), "not sure") {
		t.Fatalf("cross-session reference resolved: %q", reply)
	}
}
