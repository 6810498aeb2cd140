package models

// Product is one scraped search result. Title is the only field required for
// a record to exist; every other optional field distinguishes "absent" from a
// zero value by being a pointer. Prime has no optional state: a missing badge
// means false.
type Product struct {
	Title       string   `json:"title"`
	Price       *float64 `json:"price,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`
	Prime       bool     `json:"prime"`
	URL         *string  `json:"url,omitempty"`
	Thumbnail   *string  `json:"thumbnail,omitempty"`
}

// Eligible reports whether every extractable field is present. Only eligible
// products may enter the matching set; a product missing even a thumbnail is
// routed to "other" no matter what constraints hold.
func (p Product) Eligible() bool {
	return p.Title != "" &&
		p.Price != nil &&
		p.Rating != nil &&
		p.ReviewCount != nil &&
		p.URL != nil &&
		p.Thumbnail != nil
}

// SearchResult is the partition of one scrape/filter cycle. It is recomputed
// every turn and never persisted.
type SearchResult struct {
	Matching []Product `json:"matching"`
	Other    []Product `json:"other"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
