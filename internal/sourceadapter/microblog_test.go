package sourceadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mplswatch/sentinel/internal/models"
)

type fakeSilentChecker struct {
	silent map[string]bool
}

func (f fakeSilentChecker) IsSilent(author string, _ time.Time) bool {
	return f.silent[author]
}

func TestMicroblogFirehoseAdapter_NameKindTrust(t *testing.T) {
	a := NewMicroblogFirehoseAdapter("Social Firehose", "http://example.com", "token", 0, nil)

	if a.Kind() != KindMicroblogFirehose {
		t.Errorf("Kind() = %s", a.Kind())
	}
	if a.Trust() != models.TrustNormal {
		t.Errorf("Trust() = %s, want NORMAL", a.Trust())
	}
	if a.Interval() != MinCadence[KindMicroblogFirehose] {
		t.Errorf("Interval() = %v, want default cadence", a.Interval())
	}
}

func TestMicroblogFirehoseAdapter_Poll(t *testing.T) {
	body := `{
		"max_id": "999",
		"posts": [
			{"id": "p1", "text": "ICE van spotted currently near Uptown", "handle": "@active_user",
			 "created_at": "2026-07-30T12:00:00Z", "has_geo": false},
			{"id": "p2", "text": "ICE raid happening now", "handle": "@silent_user",
			 "created_at": "2026-07-30T12:01:00Z", "has_geo": false}
		]
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	silent := fakeSilentChecker{silent: map[string]bool{"@silent_user": true}}
	a := NewMicroblogFirehoseAdapter("Test Firehose", server.URL, "token", 0, silent)

	reports, err := a.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report after silent-account filtering, got %d", len(reports))
	}
	if reports[0].Author != "@active_user" {
		t.Errorf("Author = %s, want @active_user", reports[0].Author)
	}
	if a.sinceID != "999" {
		t.Errorf("expected sinceID to advance, got %q", a.sinceID)
	}
}

func TestMicroblogFirehoseAdapter_TokenRejectedIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	a := NewMicroblogFirehoseAdapter("Test Firehose", server.URL, "bad-token", 0, nil)
	_, err := a.Poll(context.Background())
	if err == nil {
		t.Fatal("expected a permanent error on 401")
	}
}

func TestMicroblogFirehoseAdapter_RateLimitedIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	a := NewMicroblogFirehoseAdapter("Test Firehose", server.URL, "token", 0, nil)
	_, err := a.Poll(context.Background())
	if err == nil {
		t.Fatal("expected a transient error on 429")
	}
}
