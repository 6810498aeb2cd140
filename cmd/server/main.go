package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/SofiaChang/shopping-agent/internal/agent"
	"github.com/SofiaChang/shopping-agent/internal/api"
	"github.com/SofiaChang/shopping-agent/internal/browser"
	"github.com/SofiaChang/shopping-agent/internal/config"
	"github.com/SofiaChang/shopping-agent/internal/events"
	"github.com/SofiaChang/shopping-agent/internal/history"
	"github.com/SofiaChang/shopping-agent/internal/parser"
	"github.com/SofiaChang/shopping-agent/internal/scraper"
	"github.com/SofiaChang/shopping-agent/internal/sessions"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Turn history store (optional)
	var hist *history.Store
	if cfg.Database.Enabled {
		hist, err = history.NewStore(ctx, history.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			MaxConns: cfg.Database.MaxConns,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer hist.Close()
	}

	// Turn event publisher (optional)
	var publisher *events.Publisher
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		publisher = events.NewPublisher(redisClient, cfg.Redis.Stream, logger)
	}

	manager := sessions.NewManager(agentFactory(cfg, logger), logger)
	defer manager.CloseAll()

	handlers := api.NewHandlers(manager, hist, publisher, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		health := map[string]interface{}{"status": "ok"}
		status := http.StatusOK

		if redisClient != nil {
			if err := redisClient.Ping(req.Context()).Err(); err != nil {
				health["status"] = "degraded"
				health["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		handlers.Routes(r)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// agentFactory builds one agent with its own browser per conversation
// session; the session manager serializes turns on it.
func agentFactory(cfg *config.Config, logger *slog.Logger) sessions.AgentFactory {
	return func() (*agent.Agent, error) {
		driver, err := browser.New(&browser.Options{
			Headless:       cfg.Scraper.Headless,
			Timeout:        browser.DefaultOptions().Timeout,
			UserAgent:      browser.DefaultOptions().UserAgent,
			ViewportWidth:  browser.DefaultOptions().ViewportWidth,
			ViewportHeight: browser.DefaultOptions().ViewportHeight,
			Locale:         browser.DefaultOptions().Locale,
			TimezoneID:     browser.DefaultOptions().TimezoneID,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}

		session := scraper.NewSession(driver, nil, nil, logger, scraper.Config{
			BaseURL:           cfg.Scraper.BaseURL,
			RequestsPerMinute: cfg.Scraper.RequestsPerMinute,
			MinDelay:          cfg.Scraper.MinDelay,
			MaxDelay:          cfg.Scraper.MaxDelay,
			WaitTimeout:       cfg.Scraper.WaitTimeout,
			MaxAttempts:       cfg.Scraper.MaxAttempts,
			RetryDelay:        cfg.Scraper.RetryDelay,
		})

		var p agent.ConstraintParser
		if cfg.Parser.Kind == "llm" {
			p = parser.NewLLMParser(cfg.Parser.AnthropicAPIKey, cfg.Parser.Model, logger)
		} else {
			p = parser.NewRegexParser(logger)
		}

		return agent.New(p, session, logger, cfg.Scraper.ResultsPerSearch), nil
	}
}
