// Package scheduler runs the periodic background work: due-task reminders
// and expiry of idle conversation sessions.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/DurgarajC07/task-assit/internal/history"
	"github.com/DurgarajC07/task-assit/internal/task"
)

// Notifier delivers a reminder about tasks that are due soon or overdue.
type Notifier func(userID string, tasks []task.Task)

// reminderHorizon is how far ahead a pending task counts as "due soon".
const reminderHorizon = time.Hour

type Scheduler struct {
	cron    *cron.Cron
	store   task.Store
	history *history.Manager
	notify  Notifier
	spec    string

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	users    map[string]bool
	reminded map[string]bool
}

func New(store task.Store, hist *history.Manager, spec string, notify Notifier) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		store:    store,
		history:  hist,
		notify:   notify,
		spec:     spec,
		ctx:      ctx,
		cancel:   cancel,
		users:    map[string]bool{},
		reminded: map[string]bool{},
	}
}

// Track registers a user for reminder scans. The frontend calls it on the
// first message it sees from each user.
func (s *Scheduler) Track(userID string) {
	s.mu.Lock()
	s.users[userID] = true
	s.mu.Unlock()
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.tick(time.Now().UTC()) }); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("scheduler started, reminder spec %q", s.spec)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.cancel()
	log.Println("scheduler stopped")
}

func (s *Scheduler) tick(now time.Time) {
	s.scanReminders(now)
	if expired := s.history.Sweep(now); expired > 0 {
		log.Printf("expired %d idle sessions", expired)
	}
}

// scanReminders notifies each tracked user about pending tasks that are
// overdue or due within the horizon. Each task is reminded about once.
func (s *Scheduler) scanReminders(now time.Time) {
	s.mu.Lock()
	users := make([]string, 0, len(s.users))
	for u := range s.users {
		users = append(users, u)
	}
	s.mu.Unlock()

	horizon := now.Add(reminderHorizon)
	for _, userID := range users {
		pending, err := s.store.Query(s.ctx, userID, task.Filter{Status: task.StatusPending})
		if err != nil {
			log.Printf("WARN: reminder scan for user %s: %v", userID, err)
			continue
		}

		var due []task.Task
		s.mu.Lock()
		for _, t := range pending {
			if t.DueAt == nil || t.DueAt.After(horizon) || s.reminded[t.ID] {
				continue
			}
			s.reminded[t.ID] = true
			due = append(due, t)
		}
		s.mu.Unlock()

		if len(due) > 0 && s.notify != nil {
			s.notify(userID, due)
		}
	}
}
