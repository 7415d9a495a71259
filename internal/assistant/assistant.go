// Package assistant orchestrates one conversational turn: classify the
// message, resolve entities against the session context, execute, compose
// a reply, and record the exchange. Turns within a session are serialized;
// distinct sessions run concurrently.
package assistant

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/DurgarajC07/task-assit/internal/entity"
	"github.com/DurgarajC07/task-assit/internal/executor"
	"github.com/DurgarajC07/task-assit/internal/history"
	"github.com/DurgarajC07/task-assit/internal/intent"
	"github.com/DurgarajC07/task-assit/internal/respond"
)

// ConfidenceGate is the minimum classifier confidence that is acted on.
// Anything below it gets a clarifying question instead of an execution.
const ConfidenceGate = 0.6

type Assistant struct {
	classifier *intent.Classifier
	resolver   *entity.Resolver
	exec       *executor.Executor
	composer   *respond.Composer
	history    *history.Manager

	mu    sync.Mutex
	turns map[sessionKey]*sync.Mutex
}

type sessionKey struct {
	userID    string
	sessionID string
}

func New(classifier *intent.Classifier, resolver *entity.Resolver, exec *executor.Executor, composer *respond.Composer, hist *history.Manager) *Assistant {
	return &Assistant{
		classifier: classifier,
		resolver:   resolver,
		exec:       exec,
		composer:   composer,
		history:    hist,
		turns:      map[sessionKey]*sync.Mutex{},
	}
}

// HandleMessage runs one full turn and returns the reply text. Every turn
// produces a reply and lands in the session context, including failed
// ones; the error return is reserved for a caller-cancelled context.
func (a *Assistant) HandleMessage(ctx context.Context, userID, sessionID, text string, now time.Time) (string, error) {
	lock := a.sessionLock(userID, sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	hctx := a.history.Context(userID, sessionID)

	rec, err := a.classifier.Classify(ctx, text, hctx.Turns)
	if err != nil {
		log.Printf("WARN: classification for user %s degraded to unclear: %v", userID, err)
	}

	a.applyTitleFollowUp(&rec, hctx, text)

	reply := a.respond(ctx, rec, hctx, userID, sessionID, now)

	// The exchange is recorded even if the caller has gone away.
	a.history.Append(userID, sessionID, history.Turn{
		Role: history.RoleUser, Message: text,
		Intent: string(rec.Kind), Entities: rec.RawEntities, Timestamp: now,
	})
	a.history.Append(userID, sessionID, history.Turn{
		Role: history.RoleAssistant, Message: reply, Timestamp: now,
	})
	return reply, nil
}

func (a *Assistant) respond(ctx context.Context, rec intent.Recognized, hctx history.Context, userID, sessionID string, now time.Time) string {
	if rec.Kind == intent.Unclear || rec.Confidence < ConfidenceGate {
		return a.composer.Clarification()
	}

	res, err := a.resolver.Resolve(rec.Kind, rec.RawEntities, hctx, now)
	if err != nil {
		return a.composer.Failure(err)
	}

	// Store and audit writes survive a dropped caller; a turn is applied
	// fully or not at all, never half.
	result, err := a.exec.Execute(context.WithoutCancel(ctx), rec.Kind, res, userID, now)
	if err != nil {
		return a.composer.Failure(err)
	}

	if result.Task != nil {
		if rec.Kind == intent.DeleteTask {
			a.history.ForgetTask(userID, sessionID, result.Task.ID)
		} else {
			a.history.NoteTask(userID, sessionID, result.Task.ID, result.Task.Title)
		}
	}

	return a.composer.Success(result)
}

// applyTitleFollowUp turns a bare reply to "what's the title?" into the
// title itself, so the user doesn't have to restate the whole command.
func (a *Assistant) applyTitleFollowUp(rec *intent.Recognized, hctx history.Context, text string) {
	if rec.Kind != intent.CreateTask && rec.Kind != intent.Unclear {
		return
	}
	if strings.TrimSpace(rec.RawEntities["title"]) != "" {
		return
	}
	last, ok := hctx.LastAssistantMessage()
	if !ok || !strings.Contains(strings.ToLower(last), "title") {
		return
	}
	rec.Kind = intent.CreateTask
	if rec.Confidence < ConfidenceGate {
		rec.Confidence = ConfidenceGate
	}
	if rec.RawEntities == nil {
		rec.RawEntities = map[string]string{}
	}
	rec.RawEntities["title"] = strings.TrimSpace(text)
}

// InspectContext exposes a read-only snapshot of the session context.
func (a *Assistant) InspectContext(userID, sessionID string) history.Context {
	return a.history.Context(userID, sessionID)
}

// Reset clears the session context.
func (a *Assistant) Reset(userID, sessionID string) {
	a.history.Reset(userID, sessionID)
}

func (a *Assistant) sessionLock(userID, sessionID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := sessionKey{userID, sessionID}
	lock, ok := a.turns[key]
	if !ok {
		lock = &sync.Mutex{}
		a.turns[key] = lock
	}
	return lock
}
