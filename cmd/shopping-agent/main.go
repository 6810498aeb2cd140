package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/SofiaChang/shopping-agent/internal/agent"
	"github.com/SofiaChang/shopping-agent/internal/browser"
	"github.com/SofiaChang/shopping-agent/internal/config"
	"github.com/SofiaChang/shopping-agent/internal/models"
	"github.com/SofiaChang/shopping-agent/internal/parser"
	"github.com/SofiaChang/shopping-agent/internal/scraper"
)

type turnSummary struct {
	input   string
	results int
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	a, err := newAgent(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize agent", "error", err)
		os.Exit(1)
	}
	defer closeAgent(a, logger)

	fmt.Println("\nWelcome to the Shopping Agent!")
	fmt.Println("You can:")
	fmt.Println("- Enter a shopping request (e.g., 'Find me a coffee maker under $100')")
	fmt.Println("- Refine your search with partial queries (e.g., 'with Prime shipping')")
	fmt.Println("- Type 'new' to start a fresh search")
	fmt.Println("- Type 'history' to see your search history")
	fmt.Println("- Type 'quit' to exit")

	var history []turnSummary
	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\nEnter your shopping request or refinement: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(input) {
		case "quit":
			fmt.Println("\nExiting...")
			return
		case "new":
			closeAgent(a, logger)
			a, err = newAgent(cfg, logger)
			if err != nil {
				logger.Error("failed to restart agent", "error", err)
				os.Exit(1)
			}
			history = nil
			fmt.Println("\nStarting a new search session.")
			continue
		case "history":
			if len(history) == 0 {
				fmt.Println("\nNo search history available.")
				continue
			}
			fmt.Println("\nSearch History:")
			for _, entry := range history {
				fmt.Printf("- %s: %d results\n", entry.input, entry.results)
			}
			continue
		}

		result, err := a.HandleRequest(ctx, input)
		if err != nil {
			var ambiguous *parser.AmbiguousQueryError
			if errors.As(err, &ambiguous) {
				fmt.Printf("\n%s\n", ambiguous.Reason)
			} else {
				fmt.Printf("\nError processing request: %v\n", err)
			}
			continue
		}

		history = append(history, turnSummary{
			input:   input,
			results: len(result.Matching),
		})
		printResults(result)
	}
}

func newAgent(cfg *config.Config, logger *slog.Logger) (*agent.Agent, error) {
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
		return nil, err
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

func closeAgent(a *agent.Agent, logger *slog.Logger) {
	if err := a.Close(); err != nil {
		logger.Error("failed to close agent", "error", err)
	}
}

func printResults(result models.SearchResult) {
	if len(result.Matching) > 0 {
		fmt.Printf("\nFound %d products matching your criteria:\n", len(result.Matching))
		for i, p := range result.Matching {
			fmt.Printf("\nProduct %d:\n", i+1)
			fmt.Printf("Title: %s\n", p.Title)
			fmt.Printf("Price: $%.2f\n", *p.Price)
			fmt.Printf("Rating: %.1f stars\n", *p.Rating)
			fmt.Printf("Reviews: %d\n", *p.ReviewCount)
			fmt.Printf("Prime: %v\n", p.Prime)
		}
	}

	if len(result.Other) > 0 {
		fmt.Printf("\nFound %d additional suggestions:\n", len(result.Other))
		for i, p := range result.Other {
			fmt.Printf("\nSuggestion %d:\n", i+1)
			fmt.Printf("Title: %s\n", p.Title)
			if p.Price != nil {
				fmt.Printf("Price: $%.2f\n", *p.Price)
			} else {
				fmt.Println("Price: not available")
			}
		}
	}

	if len(result.Matching) == 0 && len(result.Other) == 0 {
		fmt.Println("\nNo products found matching your criteria. Try adjusting your search.")
	}
}
