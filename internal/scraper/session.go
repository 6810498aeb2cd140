package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/SofiaChang/shopping-agent/internal/models"
)

// Config tunes one scraping session.
type Config struct {
	BaseURL           string
	RequestsPerMinute int
	MinDelay          time.Duration
	MaxDelay          time.Duration
	WaitTimeout       time.Duration
	MaxAttempts       int
	RetryDelay        time.Duration
}

// DefaultConfig mirrors the pacing the target tolerates in practice.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://www.amazon.com",
		RequestsPerMinute: 15,
		MinDelay:          2 * time.Second,
		MaxDelay:          6 * time.Second,
		WaitTimeout:       10 * time.Second,
		MaxAttempts:       3,
		RetryDelay:        5 * time.Second,
	}
}

// Session owns one PageDriver and produces best-effort product lists for
// search terms, resilient to transient page failures. It is single-threaded:
// pacing and humanizing delays are blocking waits on the calling goroutine.
type Session struct {
	driver    PageDriver
	extractor *ProductExtractor
	strategy  Strategy
	clock     Clock
	logger    *slog.Logger
	cfg       Config

	lastRequest time.Time
}

// NewSession wires a session around a driver it takes ownership of. Close
// releases the driver.
func NewSession(driver PageDriver, strategy Strategy, clock Clock, logger *slog.Logger, cfg Config) *Session {
	if strategy == nil {
		strategy = NewRandomStrategy(nil)
	}
	if clock == nil {
		clock = RealClock()
	}
	return &Session{
		driver:    driver,
		extractor: NewProductExtractor(logger),
		strategy:  strategy,
		clock:     clock,
		logger:    logger.With("component", "scraper_session"),
		cfg:       cfg,
	}
}

// attemptOutcome classifies one fetch attempt so the retry decision is a pure
// function over variants rather than control flow built on errors.
type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeNoResults
	outcomeRetryable
)

type attemptOutcome struct {
	kind     outcomeKind
	products []models.Product
	reason   error
}

type nextStep int

const (
	stepDone nextStep = iota
	stepRetry
	stepFail
)

// decide is the retry state machine's transition function.
func decide(out attemptOutcome, attempt, maxAttempts int) nextStep {
	switch out.kind {
	case outcomeSuccess, outcomeNoResults:
		return stepDone
	default:
		if attempt < maxAttempts {
			return stepRetry
		}
		return stepFail
	}
}

// Fetch returns up to limit products for term under the given constraints.
// A "no results" page yields an empty list. After exhausting the retry
// budget it fails with a terminal *ScrapeError.
func (s *Session) Fetch(ctx context.Context, term string, c models.Constraints, limit int) ([]models.Product, error) {
	var last error

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			// Identity rotates only on retries, never before the
			// first attempt.
			ua := s.strategy.NextIdentity()
			s.logger.Info("rotating identity", "attempt", attempt)
			if err := s.driver.SetIdentity(ua); err != nil {
				s.logger.Warn("identity rotation failed", "error", err)
			}
			s.clock.Sleep(s.cfg.RetryDelay)
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out := s.attempt(term, c, limit)
		switch decide(out, attempt, s.cfg.MaxAttempts) {
		case stepDone:
			if out.kind == outcomeNoResults {
				s.logger.Info("no results for search term", "term", term)
				return []models.Product{}, nil
			}
			return out.products, nil
		case stepRetry:
			last = out.reason
			s.logger.Warn("attempt failed, retrying", "attempt", attempt, "reason", out.reason)
		case stepFail:
			last = out.reason
		}
	}

	return nil, &ScrapeError{Attempts: s.cfg.MaxAttempts, Last: last}
}

func (s *Session) attempt(term string, c models.Constraints, limit int) attemptOutcome {
	s.pace()

	searchURL := s.searchURL(term, c)
	s.logger.Info("navigating", "url", searchURL)
	if err := s.driver.Navigate(searchURL); err != nil {
		return attemptOutcome{kind: outcomeRetryable, reason: fmt.Errorf("navigation: %w", err)}
	}

	// Humanizing delay before inspecting the page.
	s.clock.Sleep(s.strategy.HumanDelay(s.cfg.MinDelay, s.cfg.MaxDelay))

	matched, err := s.driver.WaitForAny(
		[]string{ResultContainerSelector, NoResultsSelector},
		s.cfg.WaitTimeout,
	)
	if err != nil {
		return attemptOutcome{kind: outcomeRetryable, reason: ErrPageTimeout}
	}
	if matched == NoResultsSelector {
		return attemptOutcome{kind: outcomeNoResults}
	}

	containers, err := s.driver.QueryAll(ResultContainerSelector)
	if err != nil {
		return attemptOutcome{kind: outcomeRetryable, reason: fmt.Errorf("query containers: %w", err)}
	}
	if len(containers) > limit {
		containers = containers[:limit]
	}

	products := make([]models.Product, 0, len(containers))
	for i, el := range containers {
		p, err := s.extractor.Extract(el)
		if err != nil {
			s.logger.Warn("skipping result container", "index", i, "error", err)
			continue
		}
		products = append(products, p)
	}

	if len(products) == 0 {
		return attemptOutcome{kind: outcomeRetryable, reason: ErrEmptyExtraction}
	}

	s.logger.Info("extracted products", "count", len(products))
	return attemptOutcome{kind: outcomeSuccess, products: products}
}

// pace enforces the requests-per-minute cap: a fixed minimum gap since the
// last navigation, tracked by a single global timestamp.
func (s *Session) pace() {
	if s.cfg.RequestsPerMinute > 0 && !s.lastRequest.IsZero() {
		minGap := time.Minute / time.Duration(s.cfg.RequestsPerMinute)
		if elapsed := s.clock.Now().Sub(s.lastRequest); elapsed < minGap {
			wait := minGap - elapsed
			s.logger.Info("pacing window", "wait", wait)
			s.clock.Sleep(wait)
		}
	}
	s.lastRequest = s.clock.Now()
}

// searchURL assembles the page-native search URL. Price bounds are encoded as
// integer cents in a range filter; an absent bound leaves its side of the
// range empty rather than defaulting to zero or infinity.
func (s *Session) searchURL(term string, c models.Constraints) string {
	var b strings.Builder
	b.WriteString(s.cfg.BaseURL)
	b.WriteString("/s?k=")
	b.WriteString(url.QueryEscape(term))

	if c.MinPrice != nil || c.MaxPrice != nil {
		b.WriteString("&rh=p_36%3A")
		if c.MinPrice != nil {
			fmt.Fprintf(&b, "%d", int(*c.MinPrice*100))
		}
		b.WriteString("-")
		if c.MaxPrice != nil {
			fmt.Fprintf(&b, "%d", int(*c.MaxPrice*100))
		}
	}
	if c.PrimeRequired {
		b.WriteString("&rh=p_85%3A2470955011")
	}

	return b.String()
}

// Close releases the driver. Release errors are logged and returned so the
// caller knows cleanup was incomplete.
func (s *Session) Close() error {
	if err := s.driver.Close(); err != nil {
		s.logger.Error("failed to close page driver", "error", err)
		return err
	}
	s.logger.Info("page driver closed")
	return nil
}
