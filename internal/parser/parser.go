package parser

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/SofiaChang/shopping-agent/internal/models"
)

// AmbiguousQueryError is a user-input defect: the utterance yields no
// resolvable category and none exists yet, or is empty. It is surfaced
// verbatim and never retried automatically.
type AmbiguousQueryError struct {
	Reason string
}

func (e *AmbiguousQueryError) Error() string { return e.Reason }

var (
	underPattern   = regexp.MustCompile(`(?:under|less than)\s*\$?(\d+(?:\.\d{1,2})?)(?:\s*dollars?)?`)
	overPattern    = regexp.MustCompile(`over\s*\$?(\d+(?:\.\d{1,2})?)(?:\s*dollars?)?`)
	betweenPattern = regexp.MustCompile(`between\s*\$?(\d+(?:\.\d{1,2})?)\s*(?:and|to|-)\s*\$?(\d+(?:\.\d{1,2})?)(?:\s*dollars?)?`)

	overReviewsPattern = regexp.MustCompile(`over\s*(\d+(?:,\d{3})*)\s*reviews?`)
	goodReviewsPattern = regexp.MustCompile(`good reviews`)

	ratingPattern = regexp.MustCompile(`(?:at least|min(?:imum)?)\s*(\d+(?:\.\d)?)\s*stars?`)

	shippingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`prime shipping`),
		regexp.MustCompile(`2-day shipping`),
		regexp.MustCompile(`free shipping`),
		regexp.MustCompile(`prime`),
	}

	fillerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bfind\b`),
		regexp.MustCompile(`\blooking for\b`),
		regexp.MustCompile(`\bshow me\b`),
		regexp.MustCompile(`\bi want\b`),
		regexp.MustCompile(`\bsomething\b`),
		regexp.MustCompile(`\bwith\b`),
		regexp.MustCompile(`\band\b`),
		regexp.MustCompile(`\bthat has\b`),
		regexp.MustCompile(`\bwhich has\b`),
		regexp.MustCompile(`\bit should have\b`),
	}

	articlePattern    = regexp.MustCompile(`(?:a|an)\s+([a-z\s]+?)$`)
	punctuationRegexp = regexp.MustCompile(`[^\w\s]`)
	whitespaceRegexp  = regexp.MustCompile(`\s+`)
)

var knownCategories = []string{
	"coffee maker",
	"headphones",
	"camera lenses",
	"water bottle",
	"wireless mouse",
	"gaming laptop",
	"smart watch",
	"portable speaker",
}

// RegexParser extracts constraints from free-text requests using fixed
// patterns. It carries the existing store forward, so fields the utterance
// does not mention keep their prior value.
type RegexParser struct {
	logger *slog.Logger
}

func NewRegexParser(logger *slog.Logger) *RegexParser {
	return &RegexParser{logger: logger.With("component", "parser")}
}

// Parse extracts constraints from the utterance layered over existing.
// Review phrases are consumed before price phrases so "over 1,000 reviews"
// is never misread as a price bound.
func (p *RegexParser) Parse(_ context.Context, utterance string, existing models.Constraints) (models.Constraints, error) {
	if strings.TrimSpace(utterance) == "" {
		return models.Constraints{}, &AmbiguousQueryError{
			Reason: "your query is empty; please specify what you're looking for",
		}
	}

	result := existing
	query := strings.ToLower(strings.TrimSpace(utterance))

	if m := overReviewsPattern.FindStringSubmatch(query); m != nil {
		if count, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			result.MinReviews = models.Int(count)
		}
		query = removePattern(query, overReviewsPattern)
	} else if goodReviewsPattern.MatchString(query) {
		result.MinReviews = models.Int(100)
		query = removePattern(query, goodReviewsPattern)
	}

	if m := betweenPattern.FindStringSubmatch(query); m != nil {
		if lo, err := strconv.ParseFloat(m[1], 64); err == nil {
			result.MinPrice = models.Float64(lo)
		}
		if hi, err := strconv.ParseFloat(m[2], 64); err == nil {
			result.MaxPrice = models.Float64(hi)
		}
		query = removePattern(query, betweenPattern)
	}

	if m := overPattern.FindStringSubmatch(query); m != nil {
		if lo, err := strconv.ParseFloat(m[1], 64); err == nil {
			result.MinPrice = models.Float64(lo)
		}
		query = removePattern(query, overPattern)
	}

	if m := underPattern.FindStringSubmatch(query); m != nil {
		if hi, err := strconv.ParseFloat(m[1], 64); err == nil {
			result.MaxPrice = models.Float64(hi)
		}
		query = removePattern(query, underPattern)
	}

	for _, pattern := range shippingPatterns {
		if pattern.MatchString(query) {
			result.PrimeRequired = true
			query = removePattern(query, pattern)
			break
		}
	}

	if m := ratingPattern.FindStringSubmatch(query); m != nil {
		if rating, err := strconv.ParseFloat(m[1], 64); err == nil {
			result.MinRating = models.Float64(rating)
		}
		query = removePattern(query, ratingPattern)
	}

	if cleaned := cleanText(query); cleaned != "" {
		if category := extractCategory(cleaned); category != "" {
			result.Category = models.String(category)
		}
	}

	if result.Category == nil {
		return models.Constraints{}, &AmbiguousQueryError{
			Reason: "your query is too broad or incomplete; please specify what product you're looking for",
		}
	}

	p.logger.Debug("parsed constraints", "utterance", utterance)
	return result, nil
}

func removePattern(text string, pattern *regexp.Regexp) string {
	cleaned := pattern.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespaceRegexp.ReplaceAllString(cleaned, " "))
}

func cleanText(text string) string {
	for _, pattern := range fillerPatterns {
		text = removePattern(text, pattern)
	}
	text = punctuationRegexp.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespaceRegexp.ReplaceAllString(text, " "))
}

func extractCategory(text string) string {
	for _, category := range knownCategories {
		if strings.Contains(text, category) {
			return category
		}
	}
	if m := articlePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}
