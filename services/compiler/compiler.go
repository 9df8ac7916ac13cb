package compiler

import (
	"fmt"

	"travelagent/models"
)

// DefaultMaxResults caps a compilation when the caller passes zero.
const DefaultMaxResults = 5

// Priced is anything with a total price to filter on.
type Priced interface {
	TotalPrice() float64
}

type Compilation[T Priced] struct {
	Items []T
	// Fallback is set when the band matched nothing and Items are the first
	// unfiltered offers instead.
	Fallback bool
	Message  string
}

// FilterAndRank keeps offers inside band, in upstream order, up to
// maxResults. An active band that matches nothing falls back to the first
// maxResults offers of the input and says so.
func FilterAndRank[T Priced](offers []T, band models.PriceBand, maxResults int) Compilation[T] {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if !band.Active() {
		return Compilation[T]{Items: head(offers, maxResults)}
	}

	filtered := make([]T, 0, len(offers))
	for _, o := range offers {
		if band.Contains(o.TotalPrice()) {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) > 0 || len(offers) == 0 {
		return Compilation[T]{Items: head(filtered, maxResults)}
	}
	return Compilation[T]{
		Items:    head(offers, maxResults),
		Fallback: true,
		Message: fmt.Sprintf("No offers matched the price range %s; showing the top %d results instead.",
			band, min(maxResults, len(offers))),
	}
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[:n]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
