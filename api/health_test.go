package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

func TestHealthRouter_Live(t *testing.T) {
	w := httptest.NewRecorder()
	HealthRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	if w.Code != http.StatusOK || w.Body.String() != "alive" {
		t.Errorf("unexpected live response %d %q", w.Code, w.Body.String())
	}
}

func TestHealthRouter_Ready(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	w := httptest.NewRecorder()
	HealthRouter(map[string]Pinger{"postgres": ok, "redis": ok}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected ready, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	HealthRouter(map[string]Pinger{"postgres": ok, "redis": down}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Success || body.Data["postgres"] != "ok" || body.Data["redis"] != "connection refused" {
		t.Errorf("unexpected report %+v", body)
	}
}
