// Package telegram is the chat frontend. It maps Telegram users and chats
// onto assistant sessions and stays deliberately thin: all conversational
// logic lives behind assistant.HandleMessage.
package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/DurgarajC07/task-assit/internal/assistant"
	"github.com/DurgarajC07/task-assit/internal/history"
)

const welcome = `Hi! I'm your task assistant. Tell me what you need in plain words:
• "add a task to call the dentist tomorrow at 2pm"
• "show my tasks for today"
• "mark the report task as done"

/context shows what I currently remember, /reset starts over.`

type Bot struct {
	api   *tgbotapi.BotAPI
	s     sender
	asst  *assistant.Assistant
	track func(userID string)
}

// New connects to the Telegram API. track is invoked once per incoming
// user so the reminder scheduler knows who to scan; it may be nil.
func New(botToken string, asst *assistant.Assistant, track func(userID string)) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{api: api, s: botAPISender{api: api}, asst: asst, track: track}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	log.Printf("telegram bot @%s listening", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleIncomingMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	userID := strconv.FormatInt(msg.From.ID, 10)
	sessionID := strconv.FormatInt(msg.Chat.ID, 10)

	if b.track != nil {
		b.track(userID)
	}

	switch msg.Command() {
	case "start", "help":
		b.sendMessage(msg.Chat.ID, welcome)
		return
	case "context":
		b.sendMessage(msg.Chat.ID, renderContext(b.asst.InspectContext(userID, sessionID)))
		return
	case "reset":
		b.asst.Reset(userID, sessionID)
		b.sendMessage(msg.Chat.ID, "Context cleared. What's next?")
		return
	}

	reply, err := b.asst.HandleMessage(ctx, userID, sessionID, msg.Text, time.Now().UTC())
	if err != nil {
		log.Printf("WARN: turn for user %s dropped: %v", userID, err)
		return
	}
	b.sendMessage(msg.Chat.ID, reply)
}

// Notify delivers a scheduler reminder. userID doubles as the chat ID for
// direct chats, which is the only place reminders go.
func (b *Bot) Notify(userID string, titles []string) {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		log.Printf("WARN: reminder for non-numeric user %q dropped", userID)
		return
	}
	var sb strings.Builder
	sb.WriteString("⏰ Heads up, these tasks need attention:\n")
	for _, title := range titles {
		sb.WriteString("• " + title + "\n")
	}
	b.sendMessage(chatID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.s.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("WARN: send to chat %d failed: %v", chatID, err)
	}
}

func renderContext(c history.Context) string {
	if len(c.Turns) == 0 && len(c.RecentTasks) == 0 {
		return "Nothing in context yet."
	}
	var sb strings.Builder
	if len(c.RecentTasks) > 0 {
		sb.WriteString("Recently discussed tasks:\n")
		for _, ref := range c.RecentTasks {
			sb.WriteString("• " + ref.Title + "\n")
		}
	}
	fmt.Fprintf(&sb, "Turns in window: %d", len(c.Turns))
	return sb.String()
}
