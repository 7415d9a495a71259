// Package respond turns execution results and pipeline failures into
// user-facing replies. Phrasing is deterministic: no generation call, no
// internal IDs, no raw error text.
package respond

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DurgarajC07/task-assit/internal/dates"
	"github.com/DurgarajC07/task-assit/internal/entity"
	"github.com/DurgarajC07/task-assit/internal/executor"
	"github.com/DurgarajC07/task-assit/internal/intent"
	"github.com/DurgarajC07/task-assit/internal/task"
)

type Composer struct{}

func NewComposer() *Composer { return &Composer{} }

// Success phrases a completed operation.
func (c *Composer) Success(r executor.Result) string {
	switch r.Kind {
	case intent.CreateTask:
		msg := fmt.Sprintf("✓ Task %q created", r.Task.Title)
		if r.Task.DueAt != nil {
			msg += ", due " + dates.Humanize(*r.Task.DueAt)
		}
		if r.Task.Priority != "" && r.Task.Priority != task.PriorityMedium {
			msg += fmt.Sprintf(" (%s priority)", r.Task.Priority)
		}
		return msg + "."

	case intent.ListTasks:
		if len(r.Tasks) == 0 {
			return "You have no tasks matching that. Say \"add a task to ...\" to create one."
		}
		return fmt.Sprintf("You have %d task%s:\n%s", len(r.Tasks), plural(len(r.Tasks)), taskLines(r.Tasks))

	case intent.SearchTasks:
		if len(r.Tasks) == 0 {
			return fmt.Sprintf("No tasks match %q.", r.Query)
		}
		return fmt.Sprintf("Found %d task%s matching %q:\n%s", len(r.Tasks), plural(len(r.Tasks)), r.Query, taskLines(r.Tasks))

	case intent.UpdateTask:
		return fmt.Sprintf("✓ Task %q updated.", r.Task.Title)

	case intent.CompleteTask:
		if r.Reopened {
			return fmt.Sprintf("✓ Task %q is back on your list.", r.Task.Title)
		}
		return fmt.Sprintf("✓ Nice! Task %q is done.", r.Task.Title)

	case intent.DeleteTask:
		return fmt.Sprintf("✓ Task %q deleted.", r.Task.Title)

	case intent.BulkDelete, intent.BulkUpdate, intent.BulkComplete:
		return bulkMessage(r)

	case intent.GetStatistics:
		return statsMessage(r.Stats)
	}

	return "Done! Anything else?"
}

// Failure phrases a pipeline or execution error without leaking internal
// detail. Ownership failures read exactly like missing tasks.
func (c *Composer) Failure(err error) string {
	var ambig *entity.AmbiguousReferenceError
	if errors.As(err, &ambig) {
		if len(ambig.Candidates) == 0 {
			return "I'm not sure which task you mean. Could you tell me its title?"
		}
		titles := make([]string, len(ambig.Candidates))
		for i, cand := range ambig.Candidates {
			titles[i] = fmt.Sprintf("%q", cand.Title)
		}
		return fmt.Sprintf("Which task do you mean: %s?", strings.Join(titles, ", "))
	}

	var invalid *entity.ValidationError
	if errors.As(err, &invalid) {
		return fmt.Sprintf("I need a %s for that — %s.", invalid.Field, invalid.Hint)
	}

	var capErr *executor.CapExceededError
	if errors.As(err, &capErr) {
		return fmt.Sprintf("That would change %d tasks, more than the %d I'll do in one go. Try narrowing it, e.g. \"delete completed tasks due this week\".", capErr.Matched, capErr.Cap)
	}

	switch {
	case errors.Is(err, entity.ErrNoBulkCriteria):
		return "Which tasks should that apply to? Say something like \"delete all completed tasks\" or \"complete everything due today\"."
	case errors.Is(err, task.ErrNotFound), errors.Is(err, executor.ErrForbidden):
		return "I couldn't find that task. Say \"show my tasks\" to see what's on your list."
	case errors.Is(err, task.ErrUnavailable):
		return "I'm having trouble reaching your task list right now. Please try again in a moment."
	case errors.Is(err, dates.ErrUnparseable):
		return "I couldn't make sense of that date. Try something like \"tomorrow at 2pm\" or \"29th jan\"."
	}

	return "Something went wrong on my side. Could you try that again?"
}

// Clarification is the reply for unclear or low-confidence turns.
func (c *Composer) Clarification() string {
	return "I'm not quite sure what you'd like me to do. You can say things like \"add a task to call the dentist tomorrow at 2pm\", \"show my tasks for today\" or \"mark the report task as done\"."
}

func bulkMessage(r executor.Result) string {
	what := r.Criteria.Describe()
	if r.Affected == 0 {
		return fmt.Sprintf("No %s matched — nothing to change.", what)
	}
	var verb string
	switch r.Kind {
	case intent.BulkDelete:
		verb = "Deleted"
	case intent.BulkComplete:
		verb = "Completed"
	default:
		verb = "Updated"
	}
	return fmt.Sprintf("✓ %s %d %s.", verb, r.Affected, what)
}

func statsMessage(s *executor.Statistics) string {
	if s.Total == 0 {
		return "You have no tasks yet. Say \"add a task to ...\" to create your first one."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d task%s: %d pending, %d in progress, %d completed, %d cancelled.",
		s.Total, plural(s.Total), s.Pending, s.InProgress, s.Completed, s.Cancelled)
	if s.Overdue > 0 {
		fmt.Fprintf(&b, " %d overdue.", s.Overdue)
	}
	fmt.Fprintf(&b, " Completion rate: %.0f%%.", s.CompletionRate)
	return b.String()
}

func taskLines(tasks []task.Task) string {
	var b strings.Builder
	for i, t := range tasks {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• " + t.Title)
		if t.Status == task.StatusCompleted {
			b.WriteString(" ✓")
		}
		if t.Priority == task.PriorityHigh || t.Priority == task.PriorityUrgent {
			fmt.Fprintf(&b, " [%s]", t.Priority)
		}
		if t.DueAt != nil {
			b.WriteString(" — due " + dates.Humanize(*t.DueAt))
		}
	}
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
