package prompt

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"travelagent/models"
)

// Interpreter is the single entry point from prompt text to a validated
// TripQuery. A model-backed extractor may be plugged in; the rule-based
// extractor always stands behind it.
type Interpreter struct {
	rules  RuleExtractor
	model  Extractor
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Interpreter)

func WithDateStrategy(s DateStrategy) Option {
	return func(i *Interpreter) { i.rules.Dates = s }
}

// WithExtractor puts a model-backed extractor in front of the rules.
func WithExtractor(e Extractor) Option {
	return func(i *Interpreter) { i.model = e }
}

func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) { i.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(i *Interpreter) { i.logger = l }
}

func NewInterpreter(opts ...Option) *Interpreter {
	i := &Interpreter{
		rules:  RuleExtractor{Dates: DatesPattern},
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.Named("prompt")
	return i
}

// Settings selects the extraction strategy by name.
type Settings struct {
	Strategy     string
	DateStrategy string
	HFAPIKey     string
	HFModel      string
	OpenAIAPIKey string
	OpenAIModel  string
	Timeout      time.Duration
}

// FromSettings builds an Interpreter for the configured strategy. A model
// strategy without an API key degrades to rules.
func FromSettings(s Settings, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []Option{
		WithDateStrategy(ParseDateStrategy(s.DateStrategy)),
		WithLogger(logger),
	}
	switch strings.ToLower(strings.TrimSpace(s.Strategy)) {
	case StrategyHuggingFace:
		if s.HFAPIKey == "" {
			logger.Warn("HUGGINGFACE_API_KEY not set, using rule-based prompt extraction")
			break
		}
		opts = append(opts, WithExtractor(NewHuggingFaceExtractor(s.HFAPIKey, s.HFModel, s.Timeout)))
	case StrategyOpenAI:
		if s.OpenAIAPIKey == "" {
			logger.Warn("OPENAI_API_KEY not set, using rule-based prompt extraction")
			break
		}
		opts = append(opts, WithExtractor(NewOpenAIExtractor(s.OpenAIAPIKey, s.OpenAIModel)))
	}
	return NewInterpreter(opts...)
}

// Interpret never fails. Values that cannot be trusted come back nil with a
// matching entry in Issues.
func (i *Interpreter) Interpret(ctx context.Context, text string) models.TripQuery {
	now := i.now()
	today := models.DateOf(now)

	var q models.TripQuery
	extracted := false
	if i.model != nil {
		var err error
		q, err = i.model.Extract(ctx, text, now)
		if err != nil {
			i.logger.Warn("model extraction failed, falling back to rules", zap.Error(err))
		} else {
			extracted = true
		}
	}
	if !extracted {
		q = i.rules.extract(text, today)
	}

	if q.PassengerCount < 1 {
		q.PassengerCount = 1
	}
	if q.CabinClass == "" {
		q.CabinClass = models.Economy
	}
	if q.TripType == "" {
		q.TripType = models.OneWay
	}
	if q.HotelRequested {
		fillHotelDates(&q)
	}

	q = ValidateDates(q, today)
	i.logger.Debug("prompt interpreted",
		zap.String("origin", q.OriginName),
		zap.String("destination", q.DestinationName),
		zap.String("trip_type", string(q.TripType)),
		zap.Strings("issues", q.Issues))
	return q
}

