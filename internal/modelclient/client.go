// Package modelclient classifies program names with a text classifier
// served over HTTP, such as a hosted fine-tuned BERT model.
package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
)

const defaultTimeout = 15 * time.Second

// Client calls a text-classification endpoint. It implements
// classify.ProgramModel.
type Client struct {
	BaseURL string
	APIKey  string
	Known   []string // label set reported by Labels

	HTTPClient *http.Client
}

type classifyRequest struct {
	Inputs string `json:"inputs"`
}

type prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Classify returns the highest scoring label and its score scaled to 0-100.
// Any transport or decoding failure is reported as
// internalerr.ErrClassificationUnavailable.
func (c *Client) Classify(ctx context.Context, text string) (string, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	preds, err := c.send(ctx, text)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", internalerr.ErrClassificationUnavailable, err)
	}
	if len(preds) == 0 {
		return "", 0, fmt.Errorf("%w: empty response", internalerr.ErrClassificationUnavailable)
	}

	best := preds[0]
	for _, p := range preds[1:] {
		if p.Score > best.Score {
			best = p
		}
	}
	if best.Score < 0 || best.Score > 1 {
		return "", 0, fmt.Errorf("%w: score %v out of range", internalerr.ErrClassificationUnavailable, best.Score)
	}
	return strings.ToLower(best.Label), 100 * best.Score, nil
}

// Labels implements classify.ProgramModel.
func (c *Client) Labels() []string {
	return append([]string(nil), c.Known...)
}

func (c *Client) send(ctx context.Context, text string) ([]prediction, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("modelclient: base URL required")
	}
	reqBody, err := json.Marshal(classifyRequest{Inputs: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("model error: %s", e.Error)
		}
		return nil, fmt.Errorf("model returned HTTP %d", resp.StatusCode)
	}
	return decodePredictions(raw)
}

// decodePredictions accepts a flat list of predictions or a batch holding
// one list.
func decodePredictions(raw json.RawMessage) ([]prediction, error) {
	var flat []prediction
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var batch [][]prediction
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}
	if len(batch) == 0 {
		return nil, nil
	}
	return batch[0], nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}
