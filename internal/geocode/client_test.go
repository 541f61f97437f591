package geocode_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"lumen/internal/config"
	"lumen/internal/geocode"
)

func newClient(t *testing.T, serverURL string) *geocode.NominatimClient {
	t.Helper()
	cfg := config.Default()
	cfg.Geocoding.BaseURL = serverURL
	cfg.Geocoding.UserAgent = "lumen-test/1.0"
	cfg.Geocoding.RequestTimeout = 5
	return geocode.NewNominatimClient(&cfg)
}

func TestReverseGeocodeAssemblesPlace(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		expect string
	}{
		{
			name: "full structured address",
			body: `{"display_name":"ignored","address":{
				"road":"Unter den Linden","suburb":"Mitte","city":"Berlin",
				"state":"Berlin","country":"Germany"}}`,
			expect: "Unter den Linden, Mitte, Berlin, Berlin, Germany",
		},
		{
			name: "village preferred over suburb",
			body: `{"address":{
				"village":"Grindelwald","suburb":"Dorf","county":"Interlaken",
				"country":"Switzerland"}}`,
			expect: "Grindelwald, Interlaken, Switzerland",
		},
		{
			name: "town fills the locality gap",
			body: `{"address":{
				"town":"Banff","state":"Alberta","country":"Canada"}}`,
			expect: "Banff, Alberta, Canada",
		},
		{
			name:   "display name fallback trims to three tokens",
			body:   `{"display_name":"Pier 39, Fisherman's Wharf, San Francisco, California, USA","address":{}}`,
			expect: "Pier 39, Fisherman's Wharf, San Francisco",
		},
		{
			name:   "short display name fallback",
			body:   `{"display_name":"Atlantic Ocean","address":{}}`,
			expect: "Atlantic Ocean",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if ua := r.Header.Get("User-Agent"); ua != "lumen-test/1.0" {
					t.Fatalf("missing user agent, got %q", ua)
				}
				if got := r.URL.Query().Get("format"); got != "json" {
					t.Fatalf("unexpected format param: %q", got)
				}
				if got := r.URL.Query().Get("addressdetails"); got != "1" {
					t.Fatalf("unexpected addressdetails param: %q", got)
				}
				if r.URL.Query().Get("lat") == "" || r.URL.Query().Get("lon") == "" {
					t.Fatal("missing coordinates")
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := newClient(t, server.URL)
			place, err := client.ReverseGeocode(context.Background(), 52.5163, 13.3777)
			if err != nil {
				t.Fatalf("reverse geocode: %v", err)
			}
			if place != tc.expect {
				t.Fatalf("expected %q, got %q", tc.expect, place)
			}
		})
	}
}

func TestReverseGeocodeRejectsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	if _, err := client.ReverseGeocode(context.Background(), 1, 1); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestReverseGeocodeRejectsMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	if _, err := client.ReverseGeocode(context.Background(), 1, 1); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Even an error status means the host is reachable.
		w.WriteHeader(http.StatusBadRequest)
	}))

	client := newClient(t, server.URL)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping reachable server: %v", err)
	}

	server.Close()
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error pinging closed server")
	}
}
