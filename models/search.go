package models

import "time"

// SearchLog is one handled trip request as recorded by the store.
type SearchLog struct {
	ID          string       `json:"id"`
	Prompt      string       `json:"prompt"`
	Query       TripQuery    `json:"query"`
	Origin      string       `json:"origin_code,omitempty"`
	Destination string       `json:"destination_code,omitempty"`
	Status      SearchStatus `json:"status"`
	OfferCount  int          `json:"offer_count"`
	CreatedAt   time.Time    `json:"created_at"`
}
