package agent

import (
	"context"
	"log/slog"

	"github.com/SofiaChang/shopping-agent/internal/models"
)

// minMatches is the threshold below which a turn triggers a fresh scrape.
const minMatches = 3

// ConstraintParser turns one utterance into a constraints delta, given the
// current store for context.
type ConstraintParser interface {
	Parse(ctx context.Context, utterance string, existing models.Constraints) (models.Constraints, error)
}

// Fetcher produces products for a search term under constraints. Implemented
// by scraper.Session; tests substitute a scripted fake.
type Fetcher interface {
	Fetch(ctx context.Context, term string, c models.Constraints, limit int) ([]models.Product, error)
	Close() error
}

// Agent owns the canonical constraints store and the cached product list for
// one conversation session. It is not safe for concurrent use; callers
// exposing it to concurrent turns must serialize them.
type Agent struct {
	parser  ConstraintParser
	fetcher Fetcher
	engine  *Engine
	logger  *slog.Logger

	store models.Constraints
	cache []models.Product
	limit int
}

func New(p ConstraintParser, f Fetcher, logger *slog.Logger, resultsPerSearch int) *Agent {
	if resultsPerSearch <= 0 {
		resultsPerSearch = 10
	}
	return &Agent{
		parser:  p,
		fetcher: f,
		engine:  NewEngine(logger),
		logger:  logger.With("component", "agent"),
		limit:   resultsPerSearch,
	}
}

// Constraints returns the current store.
func (a *Agent) Constraints() models.Constraints { return a.store }

// HandleRequest runs one conversational turn: parse, merge, filter the cached
// products, rescrape if fewer than three match, rank, return. A fetch failure
// is terminal for the turn and leaves the prior cache untouched.
func (a *Agent) HandleRequest(ctx context.Context, input string) (models.SearchResult, error) {
	a.logger.Info("handling request", "input", input)

	parsed, err := a.parser.Parse(ctx, input, a.store)
	if err != nil {
		return models.SearchResult{}, err
	}

	a.store = a.store.Merge(parsed)

	matching, other := a.engine.Partition(a.cache, a.store)
	if len(matching) < minMatches {
		term := ""
		if a.store.Category != nil {
			term = *a.store.Category
		}
		a.logger.Info("fewer than three matches, scraping", "term", term)

		products, err := a.fetcher.Fetch(ctx, term, a.store, a.limit)
		if err != nil {
			return models.SearchResult{}, err
		}

		// The cache is replaced wholesale, never appended to.
		a.cache = products
		matching, other = a.engine.Partition(a.cache, a.store)
	}

	return models.SearchResult{
		Matching: a.engine.Rank(matching),
		Other:    other,
	}, nil
}

// Close releases the fetcher's resources.
func (a *Agent) Close() error {
	return a.fetcher.Close()
}
