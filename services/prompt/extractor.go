package prompt

import (
	"context"
	"time"

	"travelagent/models"
)

// Extractor turns free text into an unvalidated TripQuery. now anchors
// relative and year-less dates.
type Extractor interface {
	Extract(ctx context.Context, text string, now time.Time) (models.TripQuery, error)
}

// Strategy names accepted by PROMPT_STRATEGY.
const (
	StrategyRules       = "rules"
	StrategyHuggingFace = "huggingface"
	StrategyOpenAI      = "openai"
)
