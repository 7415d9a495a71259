package respond

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DurgarajC07/task-assit/internal/entity"
	"github.com/DurgarajC07/task-assit/internal/executor"
	"github.com/DurgarajC07/task-assit/internal/history"
	"github.com/DurgarajC07/task-assit/internal/intent"
	"github.com/DurgarajC07/task-assit/internal/task"
)

func TestCreateConfirmationNamesTitleAndDate(t *testing.T) {
	c := NewComposer()
	due := time.Date(2026, 1, 29, 14, 0, 0, 0, time.UTC)
	msg := c.Success(executor.Result{
		Kind: intent.CreateTask,
		Task: &task.Task{Title: "client meeting", DueAt: &due, Priority: task.PriorityMedium},
	})
	if !strings.Contains(msg, "client meeting") {
		t.Fatalf("title missing: %q", msg)
	}
	if !strings.Contains(msg, "Thu, 29 Jan 2026 at 14:00") {
		t.Fatalf("human date missing: %q", msg)
	}
}

func TestBulkPhrasingUsesCountAndCriteria(t *testing.T) {
	c := NewComposer()
	msg := c.Success(executor.Result{
		Kind:     intent.BulkDelete,
		Affected: 7,
		Criteria: entity.BulkCriteria{Status: task.StatusCompleted},
	})
	if !strings.Contains(msg, "7") || !strings.Contains(msg, "completed tasks") {
		t.Fatalf("bulk phrasing: %q", msg)
	}

	msg = c.Success(executor.Result{
		Kind:     intent.BulkComplete,
		Affected: 0,
		Criteria: entity.BulkCriteria{Priority: task.PriorityHigh},
	})
	if !strings.Contains(msg, "No high priority tasks matched") {
		t.Fatalf("zero-match phrasing: %q", msg)
	}
}

func TestFailureHidesInternalDetail(t *testing.T) {
	c := NewComposer()
	internal := errors.New("dial tcp 10.0.0.3:5432: connect: connection refused")

	for _, err := range []error{
		internal,
		task.ErrUnavailable,
		task.ErrNotFound,
		executor.ErrForbidden,
	} {
		msg := c.Failure(err)
		for _, leak := range []string{"tcp", "sql", "nil", "panic", "10.0.0.3"} {
			if strings.Contains(strings.ToLower(msg), leak) {
				t.Fatalf("reply leaks %q: %q", leak, msg)
			}
		}
	}
}

func TestForbiddenReadsLikeNotFound(t *testing.T) {
	c := NewComposer()
	if c.Failure(task.ErrNotFound) != c.Failure(executor.ErrForbidden) {
		t.Fatal("ownership failure must be indistinguishable from a missing task")
	}
}

func TestAmbiguousListsCandidates(t *testing.T) {
	c := NewComposer()
	msg := c.Failure(&entity.AmbiguousReferenceError{
		Reference: "report",
		Candidates: []history.TaskRef{
			{ID: "a", Title: "quarterly report"},
			{ID: "b", Title: "weekly report"},
		},
	})
	if !strings.Contains(msg, "quarterly report") || !strings.Contains(msg, "weekly report") {
		t.Fatalf("candidates missing: %q", msg)
	}
	if strings.Contains(msg, "\"a\"") || strings.Contains(msg, "\"b\"") {
		t.Fatalf("internal IDs leaked: %q", msg)
	}
}

func TestCapExceededSuggestsNarrowing(t *testing.T) {
	c := NewComposer()
	msg := c.Failure(&executor.CapExceededError{Matched: 240, Cap: 100})
	if !strings.Contains(msg, "240") || !strings.Contains(msg, "100") {
		t.Fatalf("counts missing: %q", msg)
	}
	if !strings.Contains(msg, "\"") {
		t.Fatalf("no concrete example in guidance: %q", msg)
	}
}

func TestClarificationGivesExamples(t *testing.T) {
	c := NewComposer()
	msg := c.Clarification()
	if !strings.Contains(msg, "add a task") {
		t.Fatalf("clarification without example: %q", msg)
	}
}

func TestStatisticsMessage(t *testing.T) {
	c := NewComposer()
	msg := c.Success(executor.Result{Kind: intent.GetStatistics, Stats: &executor.Statistics{
		Total: 4, Pending: 2, Completed: 1, Cancelled: 1, Overdue: 1, CompletionRate: 25,
	}})
	for _, want := range []string{"4 tasks", "2 pending", "1 overdue", "25%"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing %q in %q", want, msg)
		}
	}
}
