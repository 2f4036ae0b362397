package geocode

import (
	"context"
	"testing"
	"time"
)

func TestHaversineZeroForSamePoint(t *testing.T) {
	d := haversineMeters(-23.55, -46.63, -23.55, -46.63)
	if d != 0 {
		t.Fatalf("expected 0 distance for identical points, got %f", d)
	}
}

func TestShouldUpdateTrueBeyondDistanceThreshold(t *testing.T) {
	entry := cacheEntry{lat: -23.55, lng: -46.63, at: time.Now()}
	// Roughly 1km south — well beyond the 150m threshold.
	if !shouldUpdate(entry, -23.56, -46.63) {
		t.Fatalf("expected update needed for point ~1km away")
	}
}

func TestShouldUpdateFalseForNearbyRecentPoint(t *testing.T) {
	entry := cacheEntry{lat: -23.55, lng: -46.63, at: time.Now()}
	if shouldUpdate(entry, -23.550001, -46.630001) {
		t.Fatalf("expected no update needed for a few-centimeter move")
	}
}

func TestShouldUpdateTrueAfterTimeThreshold(t *testing.T) {
	entry := cacheEntry{lat: -23.55, lng: -46.63, at: time.Now().Add(-400 * time.Second)}
	if !shouldUpdate(entry, -23.55, -46.63) {
		t.Fatalf("expected update needed after time threshold elapsed")
	}
}

func TestReverseGeocodeSkipsZeroCoordinates(t *testing.T) {
	lookup := NewNominatimLookup()
	name, err := lookup.ReverseGeocode(context.Background(), "streamer-1", 0, 0)
	if err != nil || name != "" {
		t.Fatalf("expected no-op for (0,0), got %q, %v", name, err)
	}
}
