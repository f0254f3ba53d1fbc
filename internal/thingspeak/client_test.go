package thingspeak

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/config"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

type recordingObserver struct {
	targets []string
	errs    []error
}

func (o *recordingObserver) ObserveUpstream(target string, _ time.Duration, err error) {
	o.targets = append(o.targets, target)
	o.errs = append(o.errs, err)
}

func newTestClient(srvURL string, obs Observer) *Client {
	return NewClient(config.ThingSpeakConfig{
		BaseURL:    srvURL,
		ChannelID:  "629098",
		ReadAPIKey: "READKEY",
		Results:    500,
		Timeout:    time.Second,
	}, nil, obs)
}

func TestFetch_ReturnsFeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/629098/feeds.json", r.URL.Path)
		assert.Equal(t, "500", r.URL.Query().Get("results"))
		assert.Equal(t, "READKEY", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"channel": {"id": 629098, "name": "meter", "field1": "Units", "field2": "Cost", "field3": "Voltage"},
			"feeds": [
				{"created_at": "2024-03-01T10:00:00Z", "entry_id": 1, "field1": "1.2", "field2": "7.5", "field3": "231"},
				{"created_at": "2024-03-01T11:00:00Z", "entry_id": 2, "field1": "0.8", "field2": "5", "field3": null}
			]
		}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	feeds, err := newTestClient(srv.URL, obs).Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, "1.2", feeds[0].Field1)
	assert.Equal(t, "7.5", feeds[0].Field2)
	assert.Equal(t, "", feeds[1].Field3)
	assert.Equal(t, []string{"thingspeak"}, obs.targets)
	assert.NoError(t, obs.errs[0])
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, nil).Fetch(context.Background())

	var netErr *models.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "thingspeak", netErr.Source)
	assert.Equal(t, http.StatusBadGateway, netErr.StatusCode)
}

func TestFetch_UndecodableBody(t *testing.T) {
	// Private channels answer "-1" when no read key is sent.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`-1`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, nil).Fetch(context.Background())

	var netErr *models.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusOK, netErr.StatusCode)
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	obs := &recordingObserver{}
	_, err := newTestClient(url, obs).Fetch(context.Background())

	var netErr *models.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Zero(t, netErr.StatusCode)
	assert.Error(t, obs.errs[0])
}

func TestFeedURL_OmitsEmptyQuery(t *testing.T) {
	c := NewClient(config.ThingSpeakConfig{BaseURL: "https://api.thingspeak.com/", ChannelID: "629098"}, nil, nil)
	assert.Equal(t, "https://api.thingspeak.com/channels/629098/feeds.json", c.feedURL())
}
