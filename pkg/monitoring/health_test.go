package monitoring

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthChecker_Basic(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: "healthy"} })
	status := hc.CheckHealth()
	if status.Status != "healthy" {
		t.Fatalf("expected healthy")
	}
}

func TestHTTPServiceHealthCheck(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) }))
	defer s.Close()
	res := HTTPServiceHealthCheck("svc", s.URL)()
	if res.Status != "healthy" {
		t.Fatalf("expected healthy")
	}
}

type unreachableConnector struct{}

func (unreachableConnector) Connect(context.Context) (driver.Conn, error) {
	return nil, errors.New("database unreachable")
}

func (unreachableConnector) Driver() driver.Driver { return nil }

func TestDatabaseHealthCheck(t *testing.T) {
	// A connector that always fails makes the ping fail, so the check is unhealthy.
	db := sql.OpenDB(unreachableConnector{})
	defer db.Close()
	res := DatabaseHealthCheck(db)()
	if res.Status != "unhealthy" {
		t.Fatalf("expected unhealthy, got %q", res.Status)
	}
}
