package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bond-arena/internal/config"
	"bond-arena/internal/game"
)

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicMaxTokens  = 200
)

// ErrNotConfigured is returned when a provider has no credentials.
var ErrNotConfigured = errors.New("classifier not configured")

// AnthropicClassifier identifies molecules with the Anthropic Messages API.
type AnthropicClassifier struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewAnthropicClassifier creates a client from cfg. The HTTP timeout is the
// configured classifier timeout.
func NewAnthropicClassifier(cfg config.ClassifierConfig) *AnthropicClassifier {
	base := cfg.BaseURL
	if base == "" {
		base = config.DefaultClassifier().BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultClassifier().Model
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultClassifier().Timeout
	}

	return &AnthropicClassifier{
		apiKey:     cfg.APIKey,
		model:      model,
		endpoint:   strings.TrimRight(base, "/") + "/v1/messages",
		httpClient: &http.Client{Timeout: timeout},
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Identify implements Classifier.
func (c *AnthropicClassifier) Identify(ctx context.Context, comp game.Composition) (*Identification, error) {
	if !c.Available() {
		return nil, fmt.Errorf("anthropic: %w", ErrNotConfigured)
	}

	text, err := c.sendRequest(ctx, identifyPrompt(comp))
	if err != nil {
		return nil, fmt.Errorf("identifying %s: %w", comp.Formula(), err)
	}
	id, err := parseIdentification(text)
	if err != nil {
		return nil, fmt.Errorf("parsing identification for %s: %w", comp.Formula(), err)
	}
	id.Formula = comp.Formula()
	id.Source = "anthropic"
	return id, nil
}

// Available reports whether an API key is set.
func (c *AnthropicClassifier) Available() bool {
	return c.apiKey != ""
}

func (c *AnthropicClassifier) sendRequest(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d after %v: %s",
			resp.StatusCode, time.Since(start).Round(time.Millisecond), raw)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return "", fmt.Errorf("parsing API response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	for _, content := range apiResp.Content {
		if content.Type == "text" {
			return content.Text, nil
		}
	}
	return "", errors.New("no text content in API response")
}
