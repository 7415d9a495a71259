package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/DurgarajC07/task-assit/internal/assistant"
	"github.com/DurgarajC07/task-assit/internal/audit"
	"github.com/DurgarajC07/task-assit/internal/entity"
	"github.com/DurgarajC07/task-assit/internal/executor"
	"github.com/DurgarajC07/task-assit/internal/history"
	"github.com/DurgarajC07/task-assit/internal/intent"
	"github.com/DurgarajC07/task-assit/internal/llm"
	"github.com/DurgarajC07/task-assit/internal/respond"
	"github.com/DurgarajC07/task-assit/internal/task"
)

type fakeSender struct{ sent []string }

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	mc := c.(tgbotapi.MessageConfig)
	f.sent = append(f.sent, mc.Text)
	return tgbotapi.Message{}, nil
}

type fakeLLM struct{ content string }

func (f fakeLLM) Generate(context.Context, []llm.Message, llm.Options) (llm.Response, error) {
	return llm.Response{Content: f.content}, nil
}

func newBot(content string) (*Bot, *fakeSender) {
	fs := &fakeSender{}
	asst := assistant.New(
		intent.NewClassifier(fakeLLM{content: content}, time.Second),
		entity.NewResolver(),
		executor.New(task.NewMemStore(), audit.NewMemLog(), 100),
		respond.NewComposer(),
		history.NewManager(history.DefaultWindow, history.DefaultTTL),
	)
	b := &Bot{s: fs, asst: asst, track: func(string) {}}
	return b, fs
}

func incoming(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: 42},
		Chat: &tgbotapi.Chat{ID: 42},
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.SplitN(text, " ", 2)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

func TestStartCommandSendsWelcome(t *testing.T) {
	b, fs := newBot("")
	b.handleIncomingMessage(context.Background(), incoming("/start"))
	if len(fs.sent) != 1 || !strings.Contains(fs.sent[0], "task assistant") {
		t.Fatalf("welcome not sent: %+v", fs.sent)
	}
}

func TestPlainTextRunsThePipeline(t *testing.T) {
	b, fs := newBot(`{"intent":"CREATE_TASK","confidence":0.95,"entities":{"title":"buy milk"}}`)
	b.handleIncomingMessage(context.Background(), incoming("add buy milk to my list"))
	if len(fs.sent) != 1 || !strings.Contains(fs.sent[0], "buy milk") {
		t.Fatalf("pipeline reply not sent: %+v", fs.sent)
	}
}

func TestContextCommandShowsRecentTasks(t *testing.T) {
	b, fs := newBot(`{"intent":"CREATE_TASK","confidence":0.95,"entities":{"title":"buy milk"}}`)
	b.handleIncomingMessage(context.Background(), incoming("add buy milk"))
	b.handleIncomingMessage(context.Background(), incoming("/context"))
	last := fs.sent[len(fs.sent)-1]
	if !strings.Contains(last, "buy milk") || !strings.Contains(last, "Turns in window: 2") {
		t.Fatalf("context dump: %q", last)
	}
}

func TestResetCommandClearsContext(t *testing.T) {
	b, fs := newBot(`{"intent":"CREATE_TASK","confidence":0.95,"entities":{"title":"buy milk"}}`)
	b.handleIncomingMessage(context.Background(), incoming("add buy milk"))
	b.handleIncomingMessage(context.Background(), incoming("/reset"))
	b.handleIncomingMessage(context.Background(), incoming("/context"))
	last := fs.sent[len(fs.sent)-1]
	if last != "Nothing in context yet." {
		t.Fatalf("context after reset: %q", last)
	}
}

func TestIncomingUsersAreTracked(t *testing.T) {
	var tracked []string
	fs := &fakeSender{}
	asst := assistant.New(
		intent.NewClassifier(fakeLLM{content: `{"intent":"UNCLEAR","confidence":0,"entities":{}}`}, time.Second),
		entity.NewResolver(),
		executor.New(task.NewMemStore(), audit.NewMemLog(), 100),
		respond.NewComposer(),
		history.NewManager(history.DefaultWindow, history.DefaultTTL),
	)
	b := &Bot{s: fs, asst: asst, track: func(u string) { tracked = append(tracked, u) }}

	b.handleIncomingMessage(context.Background(), incoming("hello"))
	if len(tracked) != 1 || tracked[0] != "42" {
		t.Fatalf("tracked = %v", tracked)
	}
}

func TestNotifyRendersReminder(t *testing.T) {
	b, fs := newBot("")
	b.Notify("42", []string{"buy milk", "call dentist"})
	if len(fs.sent) != 1 || !strings.Contains(fs.sent[0], "buy milk") || !strings.Contains(fs.sent[0], "call dentist") {
		t.Fatalf("reminder: %+v", fs.sent)
	}
}
