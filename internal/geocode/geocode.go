// Package geocode enriches GPS events with an address and neighborhood.
// Failures here are never fatal; the engine simply skips the enrichment.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Place is the reverse-geocoding result.
type Place struct {
	Address      string
	Neighborhood string
}

// Geocoder resolves coordinates to a Place.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (Place, error)
}

// NominatimClient implements Geocoder over a Nominatim-compatible API.
type NominatimClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewNominatimClient builds a client for the given base URL.
func NewNominatimClient(log *slog.Logger, baseURL string, timeout time.Duration) *NominatimClient {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NominatimClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  log.With(slog.String("service", "geocode")),
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Road          string `json:"road"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		City          string `json:"city"`
	} `json:"address"`
}

func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	endpoint := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%f&lon=%f", c.baseURL, lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Place{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "zela-intake/1.0")
	resp, err := c.client.Do(req)
	if err != nil {
		return Place{}, fmt.Errorf("reverse geocode: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("reverse geocode status: %d", resp.StatusCode)
	}
	var parsed reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Place{}, fmt.Errorf("decode geocode response: %w", err)
	}
	neighborhood := parsed.Address.Suburb
	if neighborhood == "" {
		neighborhood = parsed.Address.Neighbourhood
	}
	return Place{
		Address:      strings.TrimSpace(parsed.DisplayName),
		Neighborhood: strings.TrimSpace(neighborhood),
	}, nil
}
