// Package places searches for nearby police stations through a
// nearbysearch-compatible places API.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"xpose-triage/internal/domain/models"
	"xpose-triage/pkg/logger"
)

const (
	defaultBaseURL = "https://maps.googleapis.com/maps/api/place"
	defaultTimeout = 10 * time.Second
)

// ErrNoAPIKey is returned when no API key is configured
var ErrNoAPIKey = errors.New("places api key not configured")

// Client is a places API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NearbyResponse is the body of a nearbysearch call
type NearbyResponse struct {
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Results      []NearbyResult `json:"results"`
}

// NearbyResult is one place of a nearbysearch response
type NearbyResult struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Vicinity string `json:"vicinity"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// NewClient creates a places client
func NewClient(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("places-client"),
	}
}

// NearbySearch returns places of placeType within radius meters, nearest
// first as ranked by the provider
func (c *Client) NearbySearch(ctx context.Context, lat, lng float64, radius int, placeType string) ([]models.Place, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	q := url.Values{}
	q.Set("location", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(radius))
	q.Set("type", placeType)
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/nearbysearch/json?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("places returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out NearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	switch out.Status {
	case "", "OK", "ZERO_RESULTS":
	default:
		return nil, fmt.Errorf("places status %s: %s", out.Status, out.ErrorMessage)
	}

	places := make([]models.Place, 0, len(out.Results))
	for _, r := range out.Results {
		places = append(places, models.Place{
			PlaceID:   r.PlaceID,
			Name:      r.Name,
			Address:   r.Vicinity,
			Latitude:  r.Geometry.Location.Lat,
			Longitude: r.Geometry.Location.Lng,
		})
	}

	c.logger.Debug().Int("results", len(places)).Int("radius", radius).Msg("nearby search completed")
	return places, nil
}
