package models

// Constraints holds the structured shopping criteria accumulated over a
// conversation session. Fields are refined monotonically: a merge narrows or
// replaces individual fields, never resets the object.
type Constraints struct {
	Category      *string  `json:"category,omitempty"`
	MinPrice      *float64 `json:"min_price,omitempty"`
	MaxPrice      *float64 `json:"max_price,omitempty"`
	PrimeRequired bool     `json:"prime_required"`
	MinRating     *float64 `json:"min_rating,omitempty"`
	MinReviews    *int     `json:"min_reviews,omitempty"`
}

// Merge returns a copy of c with every non-nil field of in overwriting the
// corresponding field. Nil fields in in leave c untouched. PrimeRequired has
// no nil representation, so it always overwrites; a parser that cannot
// determine the field must carry the prior value forward or a false here will
// silently drop the requirement.
func (c Constraints) Merge(in Constraints) Constraints {
	out := c
	if in.Category != nil {
		out.Category = in.Category
	}
	if in.MinPrice != nil {
		out.MinPrice = in.MinPrice
	}
	if in.MaxPrice != nil {
		out.MaxPrice = in.MaxPrice
	}
	out.PrimeRequired = in.PrimeRequired
	if in.MinRating != nil {
		out.MinRating = in.MinRating
	}
	if in.MinReviews != nil {
		out.MinReviews = in.MinReviews
	}
	return out
}
