package main

import (
	"context"
	"log"
	"time"

	"careercatalyst-backend/internal/config"
	"careercatalyst-backend/internal/db"
	"careercatalyst-backend/internal/entitlement"
	"careercatalyst-backend/internal/extract"
	"careercatalyst-backend/internal/llm"
	"careercatalyst-backend/internal/llm/gemini"
	"careercatalyst-backend/internal/llm/openai"
	"careercatalyst-backend/internal/server"
	"careercatalyst-backend/internal/session"
	"careercatalyst-backend/internal/telemetry"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store init: %v", err)
	}

	generator, err := buildGenerator(ctx, cfg)
	if err != nil {
		log.Fatalf("llm init: %v", err)
	}

	verifier := entitlement.NewClient(cfg.WhopAPIKey, cfg.WhopAPIURL)
	extractor := extract.NewClient()

	manager := server.NewManager(func(ctx context.Context, profileID string) (*session.Coordinator, error) {
		return session.New(ctx, session.Options{
			ProfileID:   profileID,
			Store:       store,
			Entitlement: verifier,
			Generator:   generator,
			Extractor:   extractor,
			CallTimeout: cfg.LLMTimeout,
		})
	})

	engine := server.NewEngine(cfg, server.NewHandler(manager))
	addr := server.Addr(cfg.Port)
	telemetry.Info("server.starting", map[string]any{
		"addr":     addr,
		"env":      cfg.Env,
		"store":    cfg.StoreType,
		"provider": cfg.LLMProvider,
	})

	if err := engine.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func buildStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	if cfg.StoreType != "postgres" {
		return session.NewMemoryStore(), nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, database); err != nil {
		return nil, err
	}
	return &session.PGStore{DB: database}, nil
}

func buildGenerator(ctx context.Context, cfg config.Config) (llm.Generator, error) {
	switch cfg.LLMProvider {
	case "openai":
		var opts []openai.Option
		if cfg.OpenAIAPIURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIAPIURL))
		}
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.LLMTimeout, opts...)
	default:
		initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return gemini.NewClient(initCtx, cfg.GeminiAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	}
}
