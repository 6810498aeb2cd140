package agent

import (
	"log/slog"
	"sort"

	"github.com/SofiaChang/shopping-agent/internal/models"
)

// Engine partitions scraped products against a constraint set and orders the
// matching partition.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger.With("component", "filter_rank")}
}

// Partition splits products into matching and other. Only eligible products
// (every extractable field present) can match; an eligible product matches
// iff every active constraint predicate holds. A constraint with no value is
// vacuously satisfied.
func (e *Engine) Partition(products []models.Product, c models.Constraints) (matching, other []models.Product) {
	matching = make([]models.Product, 0, len(products))
	other = make([]models.Product, 0)

	for _, p := range products {
		if p.Eligible() && satisfies(p, c) {
			matching = append(matching, p)
		} else {
			other = append(other, p)
		}
	}

	e.logger.Info("partitioned products",
		"total", len(products),
		"matching", len(matching),
		"other", len(other),
	)
	return matching, other
}

func satisfies(p models.Product, c models.Constraints) bool {
	if c.MaxPrice != nil && *p.Price > *c.MaxPrice {
		return false
	}
	if c.MinPrice != nil && *p.Price < *c.MinPrice {
		return false
	}
	if c.MinRating != nil && *p.Rating < *c.MinRating {
		return false
	}
	if c.MinReviews != nil && *p.ReviewCount < *c.MinReviews {
		return false
	}
	if c.PrimeRequired && !p.Prime {
		return false
	}
	return true
}

// Rank orders matching products by rating desc, review count desc, price asc,
// Prime first, with a stable sort for full ties. Callers guarantee (via
// Partition's eligibility rule) that no field is nil.
func (e *Engine) Rank(matching []models.Product) []models.Product {
	ranked := make([]models.Product, len(matching))
	copy(ranked, matching)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if *a.Rating != *b.Rating {
			return *a.Rating > *b.Rating
		}
		if *a.ReviewCount != *b.ReviewCount {
			return *a.ReviewCount > *b.ReviewCount
		}
		if *a.Price != *b.Price {
			return *a.Price < *b.Price
		}
		return a.Prime && !b.Prime
	})

	return ranked
}
