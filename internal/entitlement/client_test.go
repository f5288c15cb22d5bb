package entitlement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, members string, membership string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/companies", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"biz_123"}]}`)
	})
	mux.HandleFunc("/members", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("company_id") != "biz_123" {
			http.Error(w, "missing company", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, members)
	})
	mux.HandleFunc("/memberships/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, membership)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestVerifyEmail(t *testing.T) {
	tests := []struct {
		name    string
		members string
		want    bool
	}{
		{"customer access", `{"data":[{"id":"mem_1","access_level":"customer"}]}`, true},
		{"admin access", `{"data":[{"id":"mem_1","access_level":"admin"}]}`, true},
		{"no access", `{"data":[{"id":"mem_1","access_level":"no_access"}]}`, false},
		{"empty member list", `{"data":[]}`, false},
		{"mixed levels", `{"data":[{"access_level":"no_access"},{"access_level":"customer"}]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.members, `{}`)
			client := NewClient("test-key", server.URL)

			got, err := client.VerifyEmail(context.Background(), "user@test.com")
			if err != nil {
				t.Fatalf("VerifyEmail: %v", err)
			}
			if got != tt.want {
				t.Fatalf("VerifyEmail = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyEmailPropagatesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	client := NewClient("test-key", server.URL)

	if _, err := client.VerifyEmail(context.Background(), "user@test.com"); err == nil {
		t.Fatal("expected error from failing API")
	}
}

func TestVerifyEmailMissingKey(t *testing.T) {
	client := NewClient("", "")
	_, err := client.VerifyEmail(context.Background(), "user@test.com")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestVerifyMembership(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   bool
	}{
		{"trialing", `{"status":"trialing"}`, true},
		{"active", `{"status":"active"}`, true},
		{"completed", `{"status":"completed"}`, true},
		{"expired", `{"status":"expired"}`, false},
		{"canceled", `{"status":"canceled"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, `{"data":[]}`, tt.body)
			client := NewClient("test-key", server.URL)

			got, err := client.VerifyMembership(context.Background(), "mem_abc")
			if err != nil {
				t.Fatalf("VerifyMembership: %v", err)
			}
			if got != tt.want {
				t.Fatalf("VerifyMembership = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyMembershipPropagatesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	client := NewClient("test-key", server.URL)

	if _, err := client.VerifyMembership(context.Background(), "mem_abc"); err == nil {
		t.Fatal("expected error from failing API")
	}
}

func TestVerifyMembershipMissingKey(t *testing.T) {
	client := NewClient("", "")
	_, err := client.VerifyMembership(context.Background(), "mem_abc")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
