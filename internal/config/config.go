package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required"`

	// LLM settings
	LLMProvider   string `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	YandexOAuthToken string `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Pipeline tuning
	ClassifyTimeout time.Duration `env:"CLASSIFY_TIMEOUT" envDefault:"20s"`
	ContextWindow   int           `env:"CONTEXT_WINDOW" envDefault:"20"`
	ContextTTL      time.Duration `env:"CONTEXT_TTL" envDefault:"30m"`
	BulkCap         int           `env:"BULK_CAP" envDefault:"100"`

	// Storage
	DataDir       string `env:"DATA_DIR" envDefault:"data"`
	AuditFilePath string `env:"AUDIT_FILE_PATH" envDefault:"data/audit.jsonl"`

	// Scheduler
	ReminderCronSpec string `env:"REMINDER_CRON" envDefault:"*/15 * * * *"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
