package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultInferenceBaseURL = "https://api-inference.huggingface.co/models"

// HFClassifier calls the HuggingFace inference API for a hosted pre-trained
// text-classification model.
type HFClassifier struct {
	baseURL string
	model   string
	token   string
	client  *http.Client
	logger  *zap.SugaredLogger
}

func NewHFClassifier(model, token string, logger *zap.SugaredLogger) *HFClassifier {
	return &HFClassifier{
		baseURL: defaultInferenceBaseURL,
		model:   model,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// WithBaseURL points the classifier at a different inference endpoint.
// Used for self-hosted inference servers and in tests.
func (c *HFClassifier) WithBaseURL(baseURL string) *HFClassifier {
	c.baseURL = baseURL
	return c
}

type hfRequest struct {
	Inputs string `json:"inputs"`
}

type hfScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify posts one snippet to the inference endpoint and returns the
// top-scoring label normalized onto the fixed set.
func (c *HFClassifier) Classify(ctx context.Context, text string) (Result, error) {
	payload, err := json.Marshal(hfRequest{Inputs: text})
	if err != nil {
		return Result{}, fmt.Errorf("encoding inference request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("building inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling inference API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("inference API status %d: %s", resp.StatusCode, body)
	}

	// The API wraps text-classification output in one extra array level:
	// [[{"label":"NEGATIVE","score":0.98}, ...]]
	var nested [][]hfScore
	if err := json.Unmarshal(body, &nested); err != nil {
		var flat []hfScore
		if err2 := json.Unmarshal(body, &flat); err2 != nil {
			return Result{}, fmt.Errorf("parsing inference response %q: %w", body, err)
		}
		nested = [][]hfScore{flat}
	}
	if len(nested) == 0 || len(nested[0]) == 0 {
		return Result{}, fmt.Errorf("inference API returned no scores for model %s", c.model)
	}

	best := nested[0][0]
	for _, s := range nested[0][1:] {
		if s.Score > best.Score {
			best = s
		}
	}

	c.logger.Debugw("Classified snippet", "model", c.model, "label", best.Label, "score", best.Score)
	return Result{Label: normalizeLabel(best.Label), Score: best.Score}, nil
}
