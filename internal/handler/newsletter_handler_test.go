package handler

import (
	"encoding/csv"
	"net/http"
	"strings"
	"testing"
)

func TestNewsletterSubscribeLifecycle(t *testing.T) {
	env := setupTestAPI(t)

	rr := env.do(t, http.MethodPost, "/api/newsletter/subscribe", map[string]any{"email": "Traveller@Example.com"})
	expectStatus(t, rr, http.StatusCreated)
	subscriber := decodeBody(t, rr)["subscriber"].(map[string]any)
	if subscriber["email"] != "traveller@example.com" || subscriber["name"] != "traveller" {
		t.Fatalf("unexpected subscriber %v", subscriber)
	}
	if env.notifier.count("admin", "new-newsletter-subscriber") != 1 {
		t.Fatalf("expected subscriber event")
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/newsletter/subscribe", map[string]any{"email": "traveller@example.com"}), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, "/api/newsletter/subscribe", map[string]any{"email": "invalid"}), http.StatusBadRequest)

	expectStatus(t, env.do(t, http.MethodPost, "/api/newsletter/unsubscribe", map[string]any{"email": "traveller@example.com"}), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/newsletter/unsubscribe", map[string]any{"email": "ghost@example.com"}), http.StatusNotFound)

	rr = env.do(t, http.MethodPost, "/api/newsletter/subscribe", map[string]any{"email": "traveller@example.com", "name": "Marco"})
	expectStatus(t, rr, http.StatusOK)
	subscriber = decodeBody(t, rr)["subscriber"].(map[string]any)
	if subscriber["subscriptionCount"].(float64) != 2 || subscriber["name"] != "Marco" {
		t.Fatalf("expected reactivated subscriber, got %v", subscriber)
	}
}

func TestNewsletterListStatsAndExport(t *testing.T) {
	env := setupTestAPI(t)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		expectStatus(t, env.do(t, http.MethodPost, "/api/newsletter/subscribe", map[string]any{"email": email}), http.StatusCreated)
	}
	expectStatus(t, env.do(t, http.MethodPost, "/api/newsletter/unsubscribe", map[string]any{"email": "c@example.com"}), http.StatusOK)

	rr := env.do(t, http.MethodGet, "/api/newsletter/subscribers?limit=1", nil)
	expectStatus(t, rr, http.StatusOK)
	body := decodeBody(t, rr)
	pagination := body["pagination"].(map[string]any)
	if len(body["subscribers"].([]any)) != 1 || pagination["totalSubscribers"].(float64) != 2 || pagination["totalPages"].(float64) != 2 {
		t.Fatalf("unexpected listing %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/newsletter/stats", nil)
	stats := decodeBody(t, rr)["stats"].(map[string]any)
	if stats["total"].(float64) != 3 || stats["active"].(float64) != 2 || stats["inactive"].(float64) != 1 || stats["newToday"].(float64) != 3 {
		t.Fatalf("unexpected stats %v", stats)
	}

	rr = env.do(t, http.MethodGet, "/api/newsletter/export", nil)
	expectStatus(t, rr, http.StatusOK)
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "newsletter-subscribers-") {
		t.Fatalf("unexpected disposition %q", rr.Header().Get("Content-Disposition"))
	}
	records, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 || strings.Join(records[0], ",") != "Name,Email,Subscribed Date,Status" {
		t.Fatalf("unexpected csv %v", records)
	}
}
