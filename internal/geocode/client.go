package geocode

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

	"lumen/internal/config"
)

// Client resolves coordinates to a human-readable place name. Ping reports
// whether the backing service is reachable at all; the resolver skips its run
// entirely when it is not, so offline operation never burns retry budget.
type Client interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
	Ping(ctx context.Context) error
}

// NominatimClient reverse-geocodes against a Nominatim endpoint.
type NominatimClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNominatimClient builds a client from the geocoding config section.
func NewNominatimClient(cfg *config.Config) *NominatimClient {
	timeout := time.Duration(cfg.Geocoding.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NominatimClient{
		baseURL:   strings.TrimRight(cfg.Geocoding.BaseURL, "/"),
		userAgent: cfg.Geocoding.UserAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

type nominatimAddress struct {
	Road    string `json:"road"`
	Village string `json:"village"`
	Hamlet  string `json:"hamlet"`
	Suburb  string `json:"suburb"`
	City    string `json:"city"`
	Town    string `json:"town"`
	County  string `json:"county"`
	State   string `json:"state"`
	Country string `json:"country"`
}

type nominatimResponse struct {
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
}

// ReverseGeocode asks the service for the place at lat/lon and assembles a
// compact place name from the structured address. Any transport failure,
// non-200 status, or unparseable body is an error; the caller decides how to
// spend its retry budget.
func (c *NominatimClient) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse geocode url: %w", err)
	}
	query := endpoint.Query()
	query.Set("format", "json")
	query.Set("addressdetails", "1")
	query.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("geocode service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode geocode response: %w", err)
	}
	return assemblePlace(parsed), nil
}

// Ping checks reachability. Any HTTP response counts as reachable; only
// transport-level failures are reported.
func (c *NominatimClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("geocode service unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
	return nil
}

// assemblePlace builds "road, locality, region, state, country" from the
// structured address, preferring the most specific locality field present.
// When the structured address is empty it falls back to the first three
// comma-separated tokens of the display name.
func assemblePlace(resp nominatimResponse) string {
	addr := resp.Address
	locality := firstNonEmpty(addr.Village, addr.Hamlet, addr.Suburb)
	region := firstNonEmpty(addr.City, addr.Town, addr.County)

	var parts []string
	for _, part := range []string{addr.Road, locality, region, addr.State, addr.Country} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}

	tokens := strings.Split(resp.DisplayName, ",")
	if len(tokens) > 3 {
		tokens = tokens[:3]
	}
	for i, token := range tokens {
		tokens[i] = strings.TrimSpace(token)
	}
	return strings.Join(tokens, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
