package prompt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelagent/models"
)

const modelReply = `{"origin":"Paris","destination":"Rome","depart_date":"2024-12-01","return_date":"2024-12-09",` +
	`"price_min":null,"price_max":300,"cabin_class":"first","passengers":2,"hotel_requested":true}`

func huggingFace(t *testing.T, status int, body string) *HuggingFaceExtractor {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test-model", r.URL.Path)
		assert.Equal(t, "Bearer hf-key", r.Header.Get("Authorization"))

		var req hfRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, strings.HasPrefix(req.Inputs, "[INST] "))
		assert.Contains(t, req.Inputs, "Today is 2024-11-01")

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	h := NewHuggingFaceExtractor("hf-key", "test-model", time.Second)
	h.baseURL = srv.URL
	return h
}

func TestHuggingFaceExtractor(t *testing.T) {
	generated, err := json.Marshal(hfResponse{{GeneratedText: "Here you go:\n" + modelReply + "\nanything else?"}})
	require.NoError(t, err)
	h := huggingFace(t, http.StatusOK, string(generated))

	q := interpret(t, "whatever the user typed", WithExtractor(h))

	assert.Equal(t, "Paris", q.OriginName)
	assert.Equal(t, "Rome", q.DestinationName)
	assert.Equal(t, "2024-12-01", q.DepartDate.String())
	assert.Equal(t, models.RoundTrip, q.TripType)
	assert.Nil(t, q.PriceMin)
	require.NotNil(t, q.PriceMax)
	assert.Equal(t, 300.0, *q.PriceMax)
	assert.Equal(t, models.First, q.CabinClass)
	assert.Equal(t, 2, q.PassengerCount)
	require.NotNil(t, q.HotelCheckOut)
	assert.Equal(t, "2024-12-09", q.HotelCheckOut.String())
}

func TestHuggingFaceExtractor_FallsBackToRules(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"model loading", http.StatusServiceUnavailable, `{"error":"loading"}`},
		{"bad key", http.StatusUnauthorized, `{"error":"unauthorized"}`},
		{"no json in reply", http.StatusOK, `[{"generated_text":"I cannot help with that."}]`},
		{"empty reply", http.StatusOK, `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := huggingFace(t, tt.status, tt.body)
			q := interpret(t, "from Oslo to Bergen on 2024-12-03", WithExtractor(h))
			assert.Equal(t, "Oslo", q.OriginName)
			assert.Equal(t, "Bergen", q.DestinationName)
			assert.Equal(t, "2024-12-03", q.DepartDate.String())
		})
	}
}

func TestOpenAIExtractor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])
		assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": modelReply},
			}},
		})
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	o := NewOpenAIExtractorWithConfig(cfg, "test-model")

	q, err := o.Extract(context.Background(), "Paris to Rome", nov2024)
	require.NoError(t, err)
	assert.Equal(t, "Paris", q.OriginName)
	assert.Equal(t, "Rome", q.DestinationName)
	assert.True(t, q.HotelRequested)
	assert.Equal(t, "2024-12-01", q.HotelCheckIn.String())
}

func TestOpenAIExtractor_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	_, err := NewOpenAIExtractorWithConfig(cfg, "").Extract(context.Background(), "Paris to Rome", nov2024)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OpenAI API error")
}

func TestParseModelReply(t *testing.T) {
	_, err := parseModelReply("no braces here")
	assert.ErrorIs(t, err, errNoJSON)

	q, err := parseModelReply(`{"origin":" Lima ","depart_date":"not a date","price_min":900,"price_max":100,"passengers":0}`)
	require.NoError(t, err)
	assert.Equal(t, "Lima", q.OriginName)
	assert.Nil(t, q.DepartDate)
	assert.Equal(t, 100.0, *q.PriceMin)
	assert.Equal(t, 900.0, *q.PriceMax)
	assert.Equal(t, 1, q.PassengerCount)
	assert.Equal(t, models.OneWay, q.TripType)
}

func TestFromSettings(t *testing.T) {
	i := FromSettings(Settings{Strategy: "huggingface"}, nil)
	assert.Nil(t, i.model)

	i = FromSettings(Settings{Strategy: "openai", OpenAIAPIKey: "sk", DateStrategy: "token"}, nil)
	assert.IsType(t, &OpenAIExtractor{}, i.model)
	assert.Equal(t, DatesToken, i.rules.Dates)

	i = FromSettings(Settings{Strategy: "HuggingFace", HFAPIKey: "hf"}, nil)
	assert.IsType(t, &HuggingFaceExtractor{}, i.model)
}
