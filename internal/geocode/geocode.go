// Package geocode resolves GPS coordinates to a human-readable place name,
// best-effort, with distance/time-based caching so a moving field agent
// doesn't hammer the upstream geocoder. Grounded on reverse_geocode in
// geocoder.py, using golang.org/x/sync/singleflight the way
// pkg/cache/cache.go dedups concurrent lookups for the same key.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"golang.org/x/sync/singleflight"

	"broadcastd/pkg/clients"
)

const (
	distanceThresholdM = 150.0
	timeThresholdS      = 300.0
	userAgent           = "broadcastd/1.0 (+https://example.invalid/broadcastd)"
)

// Lookup resolves a streamer's GPS position to a place name.
type Lookup interface {
	ReverseGeocode(ctx context.Context, streamerID string, lat, lng float64) (string, error)
}

type cacheEntry struct {
	lat, lng float64
	at       time.Time
	name     string
}

// NominatimLookup reverse-geocodes via OpenStreetMap's Nominatim API, with
// an in-memory cache keyed by streamer ID and singleflight-deduped concurrent
// requests for the same streamer.
type NominatimLookup struct {
	client   *http.Client
	executor failsafe.Executor[*http.Response]
	sf       singleflight.Group

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewNominatimLookup constructs a NominatimLookup with a bounded HTTP
// client timeout and a retry policy covering transient upstream failures
// (Nominatim rate-limits aggressively under load).
func NewNominatimLookup() *NominatimLookup {
	return &NominatimLookup{
		client:   &http.Client{Timeout: 5 * time.Second},
		executor: clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig()),
		cache:    make(map[string]cacheEntry),
	}
}

// ReverseGeocode returns a cached or freshly-queried place name. Failures
// are swallowed and return the stale cached value (or "", nil) — geocoding
// is best-effort and must never surface as an error to the caller.
func (n *NominatimLookup) ReverseGeocode(ctx context.Context, streamerID string, lat, lng float64) (string, error) {
	if lat == 0 && lng == 0 {
		return "", nil
	}

	n.mu.Lock()
	entry, hasCache := n.cache[streamerID]
	n.mu.Unlock()

	if hasCache && !shouldUpdate(entry, lat, lng) {
		return entry.name, nil
	}

	result, err, _ := n.sf.Do(streamerID, func() (any, error) {
		name, queryErr := n.query(ctx, lat, lng)
		if queryErr != nil {
			return "", queryErr
		}
		n.mu.Lock()
		n.cache[streamerID] = cacheEntry{lat: lat, lng: lng, at: time.Now(), name: name}
		n.mu.Unlock()
		return name, nil
	})
	if err != nil {
		if hasCache {
			return entry.name, nil
		}
		return "", nil
	}
	return result.(string), nil
}

func shouldUpdate(entry cacheEntry, lat, lng float64) bool {
	elapsed := time.Since(entry.at).Seconds()
	distance := haversineMeters(entry.lat, entry.lng, lat, lng)
	return distance > distanceThresholdM || elapsed > timeThresholdS
}

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusM = 6371000.0
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dphi := (lat2 - lat1) * math.Pi / 180
	dlambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dphi/2)*math.Sin(dphi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dlambda/2)*math.Sin(dlambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

type nominatimResponse struct {
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

func (n *NominatimLookup) query(ctx context.Context, lat, lng float64) (string, error) {
	reqURL := fmt.Sprintf(
		"https://nominatim.openstreetmap.org/reverse?lat=%s&lon=%s&format=json&zoom=14&addressdetails=1",
		url.QueryEscape(fmt.Sprintf("%f", lat)), url.QueryEscape(fmt.Sprintf("%f", lng)),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("build nominatim request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := clients.ExecuteHTTP(ctx, n.executor, func() (*http.Response, error) {
		return n.client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode nominatim response: %w", err)
	}

	var parts []string
	for _, key := range []string{"suburb", "neighbourhood", "city_district"} {
		if v, ok := body.Address[key]; ok {
			parts = append(parts, v)
			break
		}
	}
	for _, key := range []string{"city", "town", "village", "municipality"} {
		if v, ok := body.Address[key]; ok {
			parts = append(parts, v)
			break
		}
	}
	if v, ok := body.Address["state"]; ok {
		parts = append(parts, v)
	}

	if len(parts) > 0 {
		return strings.Join(parts, ", "), nil
	}
	return body.DisplayName, nil
}
