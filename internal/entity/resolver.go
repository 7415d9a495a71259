package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DurgarajC07/task-assit/internal/dates"
	"github.com/DurgarajC07/task-assit/internal/history"
	"github.com/DurgarajC07/task-assit/internal/intent"
	"github.com/DurgarajC07/task-assit/internal/task"
)

// ErrNoBulkCriteria rejects bulk intents that would otherwise select every
// task. There is no unscoped "bulk everything".
var ErrNoBulkCriteria = errors.New("bulk operation needs at least one criterion")

// AmbiguousReferenceError reports that a pronoun or task reference matched
// zero or several recent tasks. Candidates may be empty.
type AmbiguousReferenceError struct {
	Reference  string
	Candidates []history.TaskRef
}

func (e *AmbiguousReferenceError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("reference %q matches no recent task", e.Reference)
	}
	return fmt.Sprintf("reference %q matches %d recent tasks", e.Reference, len(e.Candidates))
}

// ValidationError reports a missing or malformed field the user has to
// supply before the operation can run.
type ValidationError struct {
	Field string
	Hint  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid %s", e.Field)
}

// BulkCriteria is the canonical predicate selecting tasks for a bulk
// mutation.
type BulkCriteria struct {
	Status    task.Status
	Priority  task.Priority
	DueFilter string
}

func (c BulkCriteria) Empty() bool {
	return c.Status == "" && c.Priority == "" && c.DueFilter == ""
}

// Describe renders the criteria for user-facing confirmations, e.g.
// "completed high priority tasks due today".
func (c BulkCriteria) Describe() string {
	parts := []string{}
	if c.Status != "" {
		parts = append(parts, strings.ReplaceAll(string(c.Status), "_", " "))
	}
	if c.Priority != "" {
		parts = append(parts, string(c.Priority)+" priority")
	}
	parts = append(parts, "tasks")
	if c.DueFilter != "" {
		switch c.DueFilter {
		case "overdue":
			parts = append(parts, "that are overdue")
		default:
			parts = append(parts, "due "+strings.ReplaceAll(c.DueFilter, "_", " "))
		}
	}
	return strings.Join(parts, " ")
}

// Updates holds the new values an UPDATE_TASK or BULK_UPDATE applies.
type Updates struct {
	Status   task.Status
	Priority task.Priority
	DueAt    *time.Time
}

func (u Updates) Empty() bool {
	return u.Status == "" && u.Priority == "" && u.DueAt == nil
}

// Resolved is the typed, normalized view of a turn's raw entities.
type Resolved struct {
	Title       string
	Description string
	DueAt       *time.Time
	Priority    task.Priority
	Tags        []string

	SearchQuery      string
	ListFilter       task.Filter
	CompletionAction string

	TargetTaskID string
	TargetTitle  string
	TargetQuery  string

	BulkCriteria BulkCriteria
	Updates      Updates
}

// Resolver normalizes raw classifier entities against the conversation
// context.
type Resolver struct{}

func NewResolver() *Resolver { return &Resolver{} }

func (r *Resolver) Resolve(kind intent.Kind, raw map[string]string, hctx history.Context, now time.Time) (Resolved, error) {
	out := Resolved{
		Title:       strings.TrimSpace(raw["title"]),
		Description: strings.TrimSpace(raw["description"]),
	}

	if due, ok, err := resolveDue(raw["due_date"], raw["due_time"], now); err != nil {
		return Resolved{}, err
	} else if ok {
		out.DueAt = &due
	}

	out.Priority = resolvePriority(raw, kind == intent.CreateTask)
	out.Tags = resolveTags(raw["tags"], out.Title)

	switch kind {
	case intent.CreateTask:
		if out.Title == "" {
			return Resolved{}, &ValidationError{Field: "title", Hint: `say something like "add a task to call the dentist tomorrow"`}
		}

	case intent.SearchTasks:
		out.SearchQuery = strings.TrimSpace(raw["search_query"])
		if out.SearchQuery == "" {
			out.SearchQuery = out.Title
		}
		if out.SearchQuery == "" {
			return Resolved{}, &ValidationError{Field: "search terms", Hint: `say something like "find tasks about the quarterly report"`}
		}

	case intent.ListTasks:
		out.ListFilter = resolveListFilter(raw["filter"], now)

	case intent.UpdateTask, intent.CompleteTask, intent.DeleteTask:
		if err := r.resolveTarget(&out, raw, hctx); err != nil {
			return Resolved{}, err
		}
		out.CompletionAction = strings.ToLower(strings.TrimSpace(raw["completion_action"]))
		if kind == intent.UpdateTask {
			if err := resolveUpdates(&out, raw, now); err != nil {
				return Resolved{}, err
			}
			if out.Updates.DueAt == nil {
				out.Updates.DueAt = out.DueAt
			}
		}

	case intent.BulkDelete, intent.BulkUpdate, intent.BulkComplete:
		crit, err := resolveBulkCriteria(raw, now)
		if err != nil {
			return Resolved{}, err
		}
		out.BulkCriteria = crit
		if kind == intent.BulkUpdate {
			if err := resolveUpdates(&out, raw, now); err != nil {
				return Resolved{}, err
			}
			if out.Updates.Empty() {
				return Resolved{}, &ValidationError{Field: "updates", Hint: `say what should change, e.g. "set all pending tasks to high priority"`}
			}
		}
	}

	return out, nil
}

func resolveDue(dateExpr, timeExpr string, now time.Time) (time.Time, bool, error) {
	if strings.TrimSpace(dateExpr) == "" && strings.TrimSpace(timeExpr) == "" {
		return time.Time{}, false, nil
	}
	due, err := dates.Normalize(dateExpr, timeExpr, now)
	if err != nil {
		return time.Time{}, false, err
	}
	return due, true, nil
}

var urgentWords = []string{"urgent", "asap", "as soon as possible", "critical", "immediately", "right away"}

func resolvePriority(raw map[string]string, applyDefault bool) task.Priority {
	if p, ok := task.ParsePriority(raw["priority"]); ok {
		return p
	}
	// Urgency heuristic over the free-text fields.
	text := strings.ToLower(raw["title"] + " " + raw["description"])
	for _, w := range urgentWords {
		if strings.Contains(text, w) {
			return task.PriorityUrgent
		}
	}
	if strings.Contains(text, "important") || strings.Contains(text, "high priority") {
		return task.PriorityHigh
	}
	if applyDefault {
		return task.PriorityMedium
	}
	return ""
}

var tagStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "for": true, "to": true, "of": true,
	"on": true, "in": true, "at": true, "with": true, "my": true, "me": true,
	"and": true, "by": true, "about": true, "task": true, "new": true,
	"create": true, "add": true, "this": true, "that": true, "tomorrow": true,
	"today": true, "next": true,
}

// resolveTags uses explicit tags when given, otherwise pulls content words
// out of the title. Failure here never blocks execution.
func resolveTags(explicit, title string) []string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		var tags []string
		for _, t := range strings.Split(explicit, ",") {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				tags = append(tags, t)
			}
		}
		return dedupe(tags)
	}
	var tags []string
	for _, word := range strings.Fields(strings.ToLower(title)) {
		word = strings.Trim(word, ".,!?;:'\"")
		if len(word) < 3 || tagStopwords[word] || strings.ContainsAny(word, "0123456789") {
			continue
		}
		tags = append(tags, word)
		if len(tags) == 3 {
			break
		}
	}
	return dedupe(tags)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

var pronounRefs = map[string]bool{
	"it": true, "that": true, "this": true, "them": true, "those": true,
	"these": true, "that one": true, "this one": true, "the task": true,
	"the last one": true, "last task": true, "the last task": true,
}

// resolveTarget maps a task reference onto a single recent task, or fails
// with AmbiguousReferenceError. It never guesses between candidates.
func (r *Resolver) resolveTarget(out *Resolved, raw map[string]string, hctx history.Context) error {
	ref := strings.ToLower(strings.TrimSpace(raw["task_reference"]))
	if ref == "" {
		ref = strings.ToLower(strings.TrimSpace(raw["task_identifier"]))
	}

	if ref == "" || pronounRefs[ref] {
		switch len(hctx.RecentTasks) {
		case 1:
			out.TargetTaskID = hctx.RecentTasks[0].ID
			out.TargetTitle = hctx.RecentTasks[0].Title
			return nil
		default:
			return &AmbiguousReferenceError{Reference: ref, Candidates: hctx.RecentTasks}
		}
	}

	// Textual reference: try the recently mentioned tasks first.
	var matched []history.TaskRef
	for _, cand := range hctx.RecentTasks {
		title := strings.ToLower(cand.Title)
		if strings.Contains(title, ref) || strings.Contains(ref, title) {
			matched = append(matched, cand)
		}
	}
	switch len(matched) {
	case 1:
		out.TargetTaskID = matched[0].ID
		out.TargetTitle = matched[0].Title
	case 0:
		// Unknown to the conversation; the executor searches the store.
		out.TargetQuery = ref
	default:
		return &AmbiguousReferenceError{Reference: ref, Candidates: matched}
	}
	return nil
}

func resolveUpdates(out *Resolved, raw map[string]string, now time.Time) error {
	if s, ok := task.ParseStatus(first(raw, "update_status")); ok {
		out.Updates.Status = s
	}
	if p, ok := task.ParsePriority(first(raw, "update_priority", "priority")); ok {
		out.Updates.Priority = p
	}
	if expr := strings.TrimSpace(first(raw, "update_due_date")); expr != "" {
		due, err := dates.Normalize(expr, raw["due_time"], now)
		if err != nil {
			return err
		}
		out.Updates.DueAt = &due
	}
	return nil
}

func resolveBulkCriteria(raw map[string]string, now time.Time) (BulkCriteria, error) {
	var crit BulkCriteria
	if s, ok := task.ParseStatus(first(raw, "bulk_status", "status", "filter")); ok {
		crit.Status = s
	}
	if p, ok := task.ParsePriority(first(raw, "bulk_priority")); ok {
		crit.Priority = p
	}
	if f := strings.TrimSpace(first(raw, "bulk_due_filter", "due_filter")); f != "" {
		canonical := strings.ReplaceAll(strings.ToLower(f), " ", "_")
		if _, _, ok := dates.RangeFor(canonical, now); ok {
			crit.DueFilter = canonical
		}
	}
	if crit.Empty() {
		return BulkCriteria{}, ErrNoBulkCriteria
	}
	return crit, nil
}

func resolveListFilter(filter string, now time.Time) task.Filter {
	var out task.Filter
	canonical := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(filter)), " ", "_")
	if canonical == "" {
		return out
	}
	if s, ok := task.ParseStatus(canonical); ok {
		out.Status = s
		return out
	}
	if canonical == "high_priority" {
		out.Priority = task.PriorityHigh
		return out
	}
	if from, to, ok := dates.RangeFor(canonical, now); ok {
		out.DueFrom = from
		out.DueTo = to
		if canonical == "overdue" {
			out.Status = task.StatusPending
		}
	}
	return out
}

func first(raw map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(raw[k]); v != "" {
			return v
		}
	}
	return ""
}
