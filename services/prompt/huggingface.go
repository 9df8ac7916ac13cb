package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"travelagent/models"
)

const huggingFaceURL = "https://api-inference.huggingface.co/models/"

// HuggingFaceExtractor asks a hosted instruct model for the trip fields.
type HuggingFaceExtractor struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewHuggingFaceExtractor(apiKey, model string, timeout time.Duration) *HuggingFaceExtractor {
	if model == "" {
		model = "mistralai/Mistral-7B-Instruct-v0.3"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HuggingFaceExtractor{
		apiKey:     apiKey,
		model:      model,
		baseURL:    huggingFaceURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfResponse []struct {
	GeneratedText string `json:"generated_text"`
}

func (h *HuggingFaceExtractor) Extract(ctx context.Context, text string, now time.Time) (models.TripQuery, error) {
	if h.apiKey == "" {
		return models.TripQuery{}, fmt.Errorf("huggingface API key not configured")
	}

	jsonBody, err := json.Marshal(hfRequest{
		Inputs: "[INST] " + instruction(text, now) + " [/INST]",
		Parameters: hfParameters{
			MaxNewTokens:   300,
			Temperature:    0.1,
			ReturnFullText: false,
		},
	})
	if err != nil {
		return models.TripQuery{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(h.baseURL, "/")+"/"+h.model, bytes.NewReader(jsonBody))
	if err != nil {
		return models.TripQuery{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return models.TripQuery{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusServiceUnavailable {
		return models.TripQuery{}, fmt.Errorf("AI model is loading, please retry in a few seconds")
	}
	if resp.StatusCode != http.StatusOK {
		return models.TripQuery{}, fmt.Errorf("HuggingFace API error (%d): %s", resp.StatusCode, string(body))
	}

	var hfResp hfResponse
	if err := json.Unmarshal(body, &hfResp); err != nil {
		return models.TripQuery{}, fmt.Errorf("failed to parse AI response: %w", err)
	}
	if len(hfResp) == 0 || hfResp[0].GeneratedText == "" {
		return models.TripQuery{}, fmt.Errorf("empty response from AI")
	}
	return parseModelReply(hfResp[0].GeneratedText)
}
