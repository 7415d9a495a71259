// Package executor performs validated task-store operations on behalf of
// the conversational pipeline. Every mutation runs Validate, Authorize,
// Perform, Audit in that order; reads never touch the audit log.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/DurgarajC07/task-assit/internal/audit"
	"github.com/DurgarajC07/task-assit/internal/dates"
	"github.com/DurgarajC07/task-assit/internal/entity"
	"github.com/DurgarajC07/task-assit/internal/history"
	"github.com/DurgarajC07/task-assit/internal/intent"
	"github.com/DurgarajC07/task-assit/internal/task"
)

// ErrForbidden is returned when a task exists but belongs to another user.
// Deliberately distinct from task.ErrNotFound so ownership failures are
// visible in logs, even though the composer words both the same way.
var ErrForbidden = errors.New("task belongs to another user")

// CapExceededError rejects a bulk operation whose criteria matched more
// tasks than the configured cap. Nothing is mutated.
type CapExceededError struct {
	Matched int
	Cap     int
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("bulk operation matches %d tasks, cap is %d", e.Matched, e.Cap)
}

// DefaultBulkCap bounds how many tasks a single bulk command may touch.
const DefaultBulkCap = 100

// Statistics summarizes one user's tasks.
type Statistics struct {
	Total          int
	Pending        int
	InProgress     int
	Completed      int
	Cancelled      int
	Overdue        int
	ByPriority     map[task.Priority]int
	CompletionRate float64
}

// Result carries whatever the performed operation produced, for the
// composer to phrase.
type Result struct {
	Kind     intent.Kind
	Task     *task.Task
	Tasks    []task.Task
	Affected int
	Criteria entity.BulkCriteria
	Reopened bool
	Query    string
	Stats    *Statistics
}

type Executor struct {
	store   task.Store
	auditor audit.Log
	bulkCap int
}

func New(store task.Store, auditor audit.Log, bulkCap int) *Executor {
	if bulkCap <= 0 {
		bulkCap = DefaultBulkCap
	}
	return &Executor{store: store, auditor: auditor, bulkCap: bulkCap}
}

// Execute performs the resolved operation for userID. The returned error
// is one of the package's sentinel/typed errors, task.ErrNotFound,
// task.ErrUnavailable, or an entity.AmbiguousReferenceError when a
// store-wide reference search stayed ambiguous.
func (e *Executor) Execute(ctx context.Context, kind intent.Kind, res entity.Resolved, userID string, now time.Time) (Result, error) {
	out := Result{Kind: kind}

	switch kind {
	case intent.CreateTask:
		return e.create(ctx, res, userID, now)

	case intent.ListTasks:
		tasks, err := e.store.Query(ctx, userID, res.ListFilter)
		if err != nil {
			return out, err
		}
		out.Tasks = tasks
		return out, nil

	case intent.SearchTasks:
		tasks, err := e.store.Query(ctx, userID, task.Filter{Search: res.SearchQuery})
		if err != nil {
			return out, err
		}
		out.Tasks = tasks
		out.Query = res.SearchQuery
		return out, nil

	case intent.UpdateTask:
		return e.update(ctx, res, userID, now)

	case intent.CompleteTask:
		return e.complete(ctx, res, userID, now)

	case intent.DeleteTask:
		return e.delete(ctx, res, userID, now)

	case intent.BulkDelete, intent.BulkUpdate, intent.BulkComplete:
		return e.bulk(ctx, kind, res, userID, now)

	case intent.GetStatistics:
		return e.statistics(ctx, userID, now)
	}

	return out, fmt.Errorf("no executable operation for intent %s", kind)
}

func (e *Executor) create(ctx context.Context, res entity.Resolved, userID string, now time.Time) (Result, error) {
	t := task.Task{
		UserID:      userID,
		Title:       res.Title,
		Description: res.Description,
		Status:      task.StatusPending,
		Priority:    res.Priority,
		DueAt:       res.DueAt,
		Tags:        res.Tags,
	}
	created, err := e.store.Create(ctx, t)
	if err != nil {
		return Result{}, err
	}
	e.record(audit.Entry{
		TaskID:    created.ID,
		UserID:    userID,
		Action:    audit.ActionCreated,
		NewValues: snapshot(created),
		Timestamp: now,
	})
	return Result{Kind: intent.CreateTask, Task: &created}, nil
}

func (e *Executor) update(ctx context.Context, res entity.Resolved, userID string, now time.Time) (Result, error) {
	target, err := e.target(ctx, res, userID)
	if err != nil {
		return Result{}, err
	}
	before := snapshot(target)

	updated, err := e.store.Update(ctx, target.ID, func(t *task.Task) {
		if res.Updates.Status != "" {
			t.Status = res.Updates.Status
		}
		if res.Updates.Priority != "" {
			t.Priority = res.Updates.Priority
		}
		if res.Updates.DueAt != nil {
			t.DueAt = res.Updates.DueAt
		}
		if res.Description != "" {
			t.Description = res.Description
		}
		if len(res.Tags) > 0 {
			t.Tags = mergeTags(t.Tags, res.Tags)
		}
	})
	if err != nil {
		return Result{}, err
	}
	e.record(audit.Entry{
		TaskID:    updated.ID,
		UserID:    userID,
		Action:    audit.ActionUpdated,
		OldValues: before,
		NewValues: snapshot(updated),
		Timestamp: now,
	})
	return Result{Kind: intent.UpdateTask, Task: &updated}, nil
}

func (e *Executor) complete(ctx context.Context, res entity.Resolved, userID string, now time.Time) (Result, error) {
	target, err := e.target(ctx, res, userID)
	if err != nil {
		return Result{}, err
	}
	before := snapshot(target)

	reopen := res.CompletionAction == "incomplete" || res.CompletionAction == "reopen"
	updated, err := e.store.Update(ctx, target.ID, func(t *task.Task) {
		if reopen {
			t.Status = task.StatusPending
			t.CompletedAt = nil
			return
		}
		t.Status = task.StatusCompleted
		done := now
		t.CompletedAt = &done
	})
	if err != nil {
		return Result{}, err
	}
	action := audit.ActionCompleted
	if reopen {
		action = audit.ActionUpdated
	}
	e.record(audit.Entry{
		TaskID:    updated.ID,
		UserID:    userID,
		Action:    action,
		OldValues: before,
		NewValues: snapshot(updated),
		Timestamp: now,
	})
	return Result{Kind: intent.CompleteTask, Task: &updated, Reopened: reopen}, nil
}

func (e *Executor) delete(ctx context.Context, res entity.Resolved, userID string, now time.Time) (Result, error) {
	target, err := e.target(ctx, res, userID)
	if err != nil {
		return Result{}, err
	}
	deleted, err := e.store.Delete(ctx, target.ID)
	if err != nil {
		return Result{}, err
	}
	target = deleted
	e.record(audit.Entry{
		TaskID:    target.ID,
		UserID:    userID,
		Action:    audit.ActionDeleted,
		OldValues: snapshot(target),
		Timestamp: now,
	})
	return Result{Kind: intent.DeleteTask, Task: &target}, nil
}

func (e *Executor) bulk(ctx context.Context, kind intent.Kind, res entity.Resolved, userID string, now time.Time) (Result, error) {
	out := Result{Kind: kind, Criteria: res.BulkCriteria}

	matched, err := e.store.Query(ctx, userID, bulkFilter(res.BulkCriteria, now))
	if err != nil {
		return out, err
	}
	if len(matched) == 0 {
		return out, nil
	}
	if len(matched) > e.bulkCap {
		return out, &CapExceededError{Matched: len(matched), Cap: e.bulkCap}
	}

	before := make(map[string]map[string]any, len(matched))
	ids := make([]string, len(matched))
	for i, t := range matched {
		ids[i] = t.ID
		before[t.ID] = snapshot(t)
	}

	var action string
	var mutate func(*task.Task)
	switch kind {
	case intent.BulkDelete:
		action = audit.ActionDeleted
		deleted := now
		mutate = func(t *task.Task) {
			t.DeletedAt = &deleted
		}
	case intent.BulkComplete:
		action = audit.ActionCompleted
		done := now
		mutate = func(t *task.Task) {
			t.Status = task.StatusCompleted
			t.CompletedAt = &done
		}
	case intent.BulkUpdate:
		action = audit.ActionUpdated
		mutate = func(t *task.Task) {
			if res.Updates.Status != "" {
				t.Status = res.Updates.Status
			}
			if res.Updates.Priority != "" {
				t.Priority = res.Updates.Priority
			}
			if res.Updates.DueAt != nil {
				t.DueAt = res.Updates.DueAt
			}
		}
	}

	updated, err := e.store.BulkMutate(ctx, ids, mutate)
	if err != nil {
		return out, err
	}
	for _, t := range updated {
		e.record(audit.Entry{
			TaskID:    t.ID,
			UserID:    userID,
			Action:    action,
			OldValues: before[t.ID],
			NewValues: snapshot(t),
			Timestamp: now,
		})
	}
	out.Affected = len(updated)
	return out, nil
}

func (e *Executor) statistics(ctx context.Context, userID string, now time.Time) (Result, error) {
	tasks, err := e.store.Query(ctx, userID, task.Filter{})
	if err != nil {
		return Result{}, err
	}
	stats := &Statistics{ByPriority: map[task.Priority]int{}}
	for _, t := range tasks {
		stats.Total++
		switch t.Status {
		case task.StatusPending:
			stats.Pending++
		case task.StatusInProgress:
			stats.InProgress++
		case task.StatusCompleted:
			stats.Completed++
		case task.StatusCancelled:
			stats.Cancelled++
		}
		stats.ByPriority[t.Priority]++
		if t.DueAt != nil && t.DueAt.Before(now) && t.Status != task.StatusCompleted {
			stats.Overdue++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	return Result{Kind: intent.GetStatistics, Stats: stats}, nil
}

// target resolves the task a single-task mutation applies to. A resolved
// ID is authorized by ownership; a leftover textual reference is searched
// in the store, and anything but exactly one match fails.
func (e *Executor) target(ctx context.Context, res entity.Resolved, userID string) (task.Task, error) {
	if res.TargetTaskID != "" {
		t, err := e.store.Get(ctx, res.TargetTaskID)
		if err != nil {
			return task.Task{}, err
		}
		if t.UserID != userID {
			return task.Task{}, ErrForbidden
		}
		return t, nil
	}

	matched, err := e.store.Query(ctx, userID, task.Filter{Search: res.TargetQuery})
	if err != nil {
		return task.Task{}, err
	}
	switch len(matched) {
	case 1:
		return matched[0], nil
	case 0:
		return task.Task{}, task.ErrNotFound
	default:
		ambig := &entity.AmbiguousReferenceError{Reference: res.TargetQuery}
		for _, t := range matched {
			ambig.Candidates = append(ambig.Candidates, history.TaskRef{ID: t.ID, Title: t.Title})
		}
		return task.Task{}, ambig
	}
}

// record appends an audit entry. Audit failure never fails the operation.
func (e *Executor) record(entry audit.Entry) {
	if err := e.auditor.Append(entry); err != nil {
		log.Printf("WARN: audit append failed for task %s: %v", entry.TaskID, err)
	}
}

func bulkFilter(c entity.BulkCriteria, now time.Time) task.Filter {
	f := task.Filter{Status: c.Status, Priority: c.Priority}
	if c.DueFilter != "" {
		if from, to, ok := dates.RangeFor(c.DueFilter, now); ok {
			f.DueFrom = from
			f.DueTo = to
			if c.DueFilter == "overdue" && f.Status == "" {
				f.Status = task.StatusPending
			}
		}
	}
	return f
}

func snapshot(t task.Task) map[string]any {
	m := map[string]any{
		"title":    t.Title,
		"status":   string(t.Status),
		"priority": string(t.Priority),
	}
	if t.DueAt != nil {
		m["due_at"] = t.DueAt.Format(time.RFC3339)
	}
	return m
}

func mergeTags(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, tag := range existing {
		seen[tag] = true
	}
	for _, tag := range incoming {
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}
