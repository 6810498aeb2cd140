package scraper

import (
	"errors"
	"fmt"
	"time"
)

// Selectors fixed by the target page's markup. Any change to the page breaks
// this contract, not the session logic.
const (
	ResultContainerSelector = "div[data-component-type='s-search-result']"
	NoResultsSelector       = "div[data-component-type='s-no-results']"
)

var (
	// ErrWaitTimeout is returned by PageDriver.WaitForAny when neither
	// selector appears within the timeout.
	ErrWaitTimeout = errors.New("timed out waiting for selector")

	// ErrPageTimeout marks an attempt that never reached a ready page.
	ErrPageTimeout = errors.New("timed out waiting for search results")

	// ErrEmptyExtraction marks an attempt whose ready page yielded zero
	// products, a suspected transient render issue or triggered defense.
	ErrEmptyExtraction = errors.New("no products extracted from result page")
)

// Element is one result container on the page.
type Element interface {
	// HTML returns the container's markup for extraction.
	HTML() (string, error)
}

// PageDriver is the browser-automation capability the session drives. The
// session never constructs a browser itself; it is handed a driver and owns
// it exclusively for its lifetime.
type PageDriver interface {
	Navigate(url string) error
	// WaitForAny blocks until one of selectors is present and returns the
	// matched selector, or ErrWaitTimeout.
	WaitForAny(selectors []string, timeout time.Duration) (string, error)
	QueryAll(selector string) ([]Element, error)
	// SetIdentity swaps the superficial client identity (user agent) the
	// driver reports on subsequent navigations.
	SetIdentity(userAgent string) error
	Close() error
}

// ScrapeError is the terminal failure after the retry budget is exhausted.
type ScrapeError struct {
	Attempts int
	Last     error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ScrapeError) Unwrap() error { return e.Last }
