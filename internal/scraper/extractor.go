package scraper

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/SofiaChang/shopping-agent/internal/models"
)

// ErrNoTitle marks a container that is not a product listing.
var ErrNoTitle = errors.New("result container has no title")

// Field selectors within one result container, fixed by the page's markup.
const (
	titleSelector      = "h2 span"
	priceWholeSelector = "span.a-price-whole"
	priceFracSelector  = "span.a-price-fraction"
	ratingSelector     = "span.a-icon-alt"
	reviewSelector     = "a[aria-label*='ratings'] span.a-size-base.s-underline-text"
	primeSelector      = "i[aria-label='Amazon Prime']"
	linkSelector       = "a.a-link-normal.s-line-clamp-4.s-link-style.a-text-normal"
	thumbnailSelector  = "img.s-image"
)

// ProductExtractor converts one result container into a Product. Every field
// is independently fault tolerant: a failure to locate or parse one field
// yields nil for that field only. A missing title discards the record.
type ProductExtractor struct {
	logger *slog.Logger
}

func NewProductExtractor(logger *slog.Logger) *ProductExtractor {
	return &ProductExtractor{logger: logger.With("component", "product_extractor")}
}

// Extract parses the container's markup into a Product, or returns ErrNoTitle
// for containers that are not product listings.
func (e *ProductExtractor) Extract(el Element) (models.Product, error) {
	html, err := el.HTML()
	if err != nil {
		return models.Product{}, fmt.Errorf("read container: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.Product{}, fmt.Errorf("parse container: %w", err)
	}

	title := strings.TrimSpace(doc.Find(titleSelector).First().Text())
	if title == "" {
		return models.Product{}, ErrNoTitle
	}

	return models.Product{
		Title:       title,
		Price:       extractPrice(doc),
		Rating:      extractRating(doc),
		ReviewCount: extractReviewCount(doc),
		Prime:       doc.Find(primeSelector).Length() > 0,
		URL:         extractAttr(doc, linkSelector, "href"),
		Thumbnail:   extractAttr(doc, thumbnailSelector, "src"),
	}, nil
}

// extractPrice joins the whole and fractional price nodes into a decimal.
// Either part missing yields nil.
func extractPrice(doc *goquery.Document) *float64 {
	whole := strings.TrimSpace(doc.Find(priceWholeSelector).First().Text())
	frac := strings.TrimSpace(doc.Find(priceFracSelector).First().Text())
	if whole == "" || frac == "" {
		return nil
	}

	whole = strings.ReplaceAll(whole, ",", "")
	whole = strings.TrimSuffix(whole, ".")
	price, err := strconv.ParseFloat(whole+"."+frac, 64)
	if err != nil {
		return nil
	}
	return &price
}

// extractRating parses the "<value> out of 5 stars" alt text. Any other
// phrasing yields nil.
func extractRating(doc *goquery.Document) *float64 {
	text := strings.TrimSpace(doc.Find(ratingSelector).First().Text())
	value, rest, found := strings.Cut(text, " out of ")
	if !found || !strings.HasPrefix(rest, "5") {
		return nil
	}
	rating, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &rating
}

// extractReviewCount strips everything but digits from the review label.
func extractReviewCount(doc *goquery.Document) *int {
	text := doc.Find(reviewSelector).First().Text()
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	count, err := strconv.Atoi(digits.String())
	if err != nil {
		return nil
	}
	return &count
}

func extractAttr(doc *goquery.Document, selector, attr string) *string {
	value, ok := doc.Find(selector).First().Attr(attr)
	if !ok || value == "" {
		return nil
	}
	return &value
}
