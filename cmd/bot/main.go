package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/DurgarajC07/task-assit/internal/assistant"
	"github.com/DurgarajC07/task-assit/internal/audit"
	"github.com/DurgarajC07/task-assit/internal/config"
	"github.com/DurgarajC07/task-assit/internal/entity"
	"github.com/DurgarajC07/task-assit/internal/executor"
	"github.com/DurgarajC07/task-assit/internal/history"
	"github.com/DurgarajC07/task-assit/internal/intent"
	"github.com/DurgarajC07/task-assit/internal/llm"
	"github.com/DurgarajC07/task-assit/internal/respond"
	"github.com/DurgarajC07/task-assit/internal/scheduler"
	"github.com/DurgarajC07/task-assit/internal/task"
	"github.com/DurgarajC07/task-assit/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	factory := &llm.Factory{
		OpenaiAPIKey:       cfg.OpenAIAPIKey,
		OpenaiBaseURL:      cfg.OpenAIBaseURL,
		OpenRouterReferrer: cfg.OpenRouterReferrer,
		OpenRouterTitle:    cfg.OpenRouterTitle,
		YandexOAuthToken:   cfg.YandexOAuthToken,
		YandexFolderID:     cfg.YandexFolderID,
	}
	llmClient, err := factory.CreateClient(cfg.LLMProvider, cfg.OpenAIModel)
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}

	store, err := task.NewSQLiteStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open task store: %v", err)
	}
	defer store.Close()

	auditLog, err := audit.NewFileLog(cfg.AuditFilePath)
	if err != nil {
		log.Fatalf("failed to open audit log: %v", err)
	}

	hist := history.NewManager(cfg.ContextWindow, cfg.ContextTTL)

	asst := assistant.New(
		intent.NewClassifier(llmClient, cfg.ClassifyTimeout),
		entity.NewResolver(),
		executor.New(store, auditLog, cfg.BulkCap),
		respond.NewComposer(),
		hist,
	)

	var bot *telegram.Bot
	sched := scheduler.New(store, hist, cfg.ReminderCronSpec, func(userID string, due []task.Task) {
		if bot == nil {
			return
		}
		titles := make([]string, len(due))
		for i, t := range due {
			titles[i] = t.Title
		}
		bot.Notify(userID, titles)
	})

	bot, err = telegram.New(cfg.TelegramBotToken, asst, sched.Track)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot.Start(ctx)
}
