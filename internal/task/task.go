package task

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound reports that no live task matches the lookup.
	ErrNotFound = errors.New("task not found")
	// ErrUnavailable wraps storage-level failures so callers can map them
	// to a generic user-facing message.
	ErrUnavailable = errors.New("task store unavailable")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParseStatus maps free-form status words onto the closed enum.
func ParseStatus(s string) (Status, bool) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_") {
	case "pending", "open", "todo", "incomplete":
		return StatusPending, true
	case "in_progress", "active", "started":
		return StatusInProgress, true
	case "completed", "complete", "done", "finished":
		return StatusCompleted, true
	case "cancelled", "canceled":
		return StatusCancelled, true
	}
	return "", false
}

// ParsePriority maps free-form priority words onto the closed enum.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, true
	case "medium", "normal":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	case "urgent", "critical":
		return PriorityUrgent, true
	}
	return "", false
}

// PriorityRank orders priorities for sorting, urgent first.
func PriorityRank(p Priority) int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Filter narrows a Query. Zero fields are ignored; DueFrom/DueTo form a
// half-open [from, to) interval on the due date.
type Filter struct {
	Status   Status
	Priority Priority
	DueFrom  time.Time
	DueTo    time.Time
	Search   string
	Limit    int
}

func (f Filter) matches(t Task) bool {
	if t.DeletedAt != nil {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if !f.DueFrom.IsZero() && (t.DueAt == nil || t.DueAt.Before(f.DueFrom)) {
		return false
	}
	if !f.DueTo.IsZero() && (t.DueAt == nil || !t.DueAt.Before(f.DueTo)) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	return true
}

// Store is the task persistence collaborator. Implementations must keep
// soft-deleted tasks invisible to Get and Query, and apply BulkMutate as
// a single atomic unit.
type Store interface {
	Create(ctx context.Context, t Task) (Task, error)
	Get(ctx context.Context, id string) (Task, error)
	Update(ctx context.Context, id string, mutate func(*Task)) (Task, error)
	Delete(ctx context.Context, id string) (Task, error)
	Query(ctx context.Context, userID string, f Filter) ([]Task, error)
	BulkMutate(ctx context.Context, ids []string, mutate func(*Task)) ([]Task, error)
}

func cloneTask(t Task) Task {
	out := t
	out.Tags = append([]string(nil), t.Tags...)
	if t.DueAt != nil {
		due := *t.DueAt
		out.DueAt = &due
	}
	if t.CompletedAt != nil {
		done := *t.CompletedAt
		out.CompletedAt = &done
	}
	if t.DeletedAt != nil {
		del := *t.DeletedAt
		out.DeletedAt = &del
	}
	return out
}
