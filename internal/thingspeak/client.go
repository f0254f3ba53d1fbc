package thingspeak

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/config"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

const source = "thingspeak"

// Observer is notified about every upstream request
type Observer interface {
	ObserveUpstream(target string, duration time.Duration, err error)
}

// Channel describes the feed channel metadata returned next to the feeds
type Channel struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Field1      string `json:"field1"`
	Field2      string `json:"field2"`
	Field3      string `json:"field3"`
	LastEntryID int64  `json:"last_entry_id"`
}

type feedResponse struct {
	Channel Channel             `json:"channel"`
	Feeds   []models.RawReading `json:"feeds"`
}

// Client fetches readings from a ThingSpeak channel
type Client struct {
	httpClient *http.Client
	config     config.ThingSpeakConfig
	observer   Observer
}

// NewClient creates a feed client. observer may be nil.
func NewClient(cfg config.ThingSpeakConfig, httpClient *http.Client, observer Observer) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{httpClient: httpClient, config: cfg, observer: observer}
}

// Fetch retrieves the channel feed in a single attempt.
//
// A transport failure, a non-2xx status or a body that is not a feed document
// is returned as *models.NetworkError.
func (c *Client) Fetch(ctx context.Context) ([]models.RawReading, error) {
	start := time.Now()
	feeds, err := c.fetch(ctx)
	if c.observer != nil {
		c.observer.ObserveUpstream(source, time.Since(start), err)
	}
	return feeds, err
}

func (c *Client) fetch(ctx context.Context) ([]models.RawReading, error) {
	logger := zerolog.Ctx(ctx)
	endpoint := c.feedURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.NetworkError{Source: source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", strings.TrimSpace(string(body))).
			Msg("feed request rejected")
		return nil, &models.NetworkError{Source: source, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &models.NetworkError{
			Source:     source,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Err:        fmt.Errorf("decode feed: %w", err),
		}
	}

	logger.Debug().
		Str("channel", c.config.ChannelID).
		Int("feeds", len(payload.Feeds)).
		Msg("feed fetched")
	return payload.Feeds, nil
}

func (c *Client) feedURL() string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	endpoint := fmt.Sprintf("%s/channels/%s/feeds.json", base, url.PathEscape(c.config.ChannelID))

	query := url.Values{}
	if c.config.Results > 0 {
		query.Set("results", strconv.Itoa(c.config.Results))
	}
	if c.config.ReadAPIKey != "" {
		query.Set("api_key", c.config.ReadAPIKey)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}
