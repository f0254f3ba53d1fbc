package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/config"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

const source = "gemini"

// ErrMissingAPIKey is wrapped in the NetworkError returned when no key is configured
var ErrMissingAPIKey = errors.New("gemini api key is not configured")

// Observer is notified about every upstream request
type Observer interface {
	ObserveUpstream(target string, duration time.Duration, err error)
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

// GenerationConfig holds the sampling parameters sent with every request
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// Client calls the generateContent endpoint
type Client struct {
	httpClient *http.Client
	config     config.GeminiConfig
	observer   Observer
}

// NewClient creates a Gemini client. observer may be nil.
func NewClient(cfg config.GeminiConfig, httpClient *http.Client, observer Observer) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{httpClient: httpClient, config: cfg, observer: observer}
}

// Generate sends prompt once and returns the answer text.
//
// Transport failures and non-2xx answers are returned as *models.NetworkError.
// A reachable endpoint whose envelope carries no answer text yields
// *models.ParseError.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := c.generate(ctx, prompt)
	if c.observer != nil {
		var parseErr *models.ParseError
		observed := err
		if errors.As(err, &parseErr) {
			observed = nil
		}
		c.observer.ObserveUpstream(source, time.Since(start), observed)
	}
	return text, err
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	logger := zerolog.Ctx(ctx)

	if strings.TrimSpace(c.config.APIKey) == "" {
		return "", &models.NetworkError{Source: source, Err: ErrMissingAPIKey}
	}

	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: GenerationConfig{
			Temperature:     c.config.Temperature,
			TopK:            c.config.TopK,
			TopP:            c.config.TopP,
			MaxOutputTokens: c.config.MaxOutputTokens,
		},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	endpoint := c.endpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &models.NetworkError{Source: source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", strings.TrimSpace(string(body))).
			Msg("generate request rejected")
		return "", &models.NetworkError{Source: source, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var envelope generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", &models.ParseError{Reason: "undecodable response envelope", Err: err}
	}
	if len(envelope.Candidates) == 0 {
		return "", &models.ParseError{Reason: "response has no candidates"}
	}

	var b strings.Builder
	for _, p := range envelope.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", &models.ParseError{Reason: "candidate has no text"}
	}

	logger.Debug().
		Str("model", c.config.Model).
		Str("finish_reason", envelope.Candidates[0].FinishReason).
		Int("chars", len(text)).
		Msg("model answered")
	return text, nil
}

func (c *Client) endpoint() string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, url.PathEscape(c.config.Model))
}
