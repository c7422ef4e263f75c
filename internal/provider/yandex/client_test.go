package yandex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nhle/mailbadge/internal/provider"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) AccessToken(ctx context.Context) (string, error) {
	_ = ctx
	return s.token, s.err
}

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient(srv.URL, staticTokens{token: "tok-1"})
	c.loginURL = srv.URL
	return c
}

func TestUnreadCount(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    int
		wantErr bool
	}{
		{
			name:   "counter present",
			status: http.StatusOK,
			body:   `{"counters":{"unread":12,"new":3}}`,
			want:   12,
		},
		{
			name:   "counter absent yields zero",
			status: http.StatusOK,
			body:   `{"counters":{}}`,
			want:   0,
		},
		{
			name:   "empty object yields zero",
			status: http.StatusOK,
			body:   `{}`,
			want:   0,
		},
		{
			name:    "server error propagates",
			status:  http.StatusInternalServerError,
			body:    `{}`,
			wantErr: true,
		},
		{
			name:    "unauthorized propagates",
			status:  http.StatusUnauthorized,
			body:    `{}`,
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotAuth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				if r.URL.Path != "/mailbox/counters" {
					t.Errorf("path = %q, want /mailbox/counters", r.URL.Path)
				}
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			got, err := newTestClient(srv).UnreadCount(context.Background())
			if tc.wantErr {
				var apiErr *provider.APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("err = %v, want APIError", err)
				}
				if apiErr.StatusCode != tc.status {
					t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tc.status)
				}
				return
			}
			if err != nil {
				t.Fatalf("UnreadCount: %v", err)
			}
			if got != tc.want {
				t.Errorf("UnreadCount = %d, want %d", got, tc.want)
			}
			if gotAuth != "OAuth tok-1" {
				t.Errorf("Authorization = %q, want %q", gotAuth, "OAuth tok-1")
			}
		})
	}
}

func TestProfile(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "default email preferred",
			body: `{"default_email":"main@yandex.ru","emails":["alt@yandex.ru","main@yandex.ru"]}`,
			want: "main@yandex.ru",
		},
		{
			name: "first listed email as fallback",
			body: `{"emails":["alt@yandex.ru"]}`,
			want: "alt@yandex.ru",
		},
		{
			name:    "no email at all",
			body:    `{"emails":[]}`,
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/info" {
					t.Errorf("path = %q, want /info", r.URL.Path)
				}
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			got, err := newTestClient(srv).Profile(context.Background())
			if tc.wantErr {
				if err == nil {
					t.Fatal("Profile succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Profile: %v", err)
			}
			if got.Email != tc.want {
				t.Errorf("Email = %q, want %q", got.Email, tc.want)
			}
		})
	}
}

func TestTokenFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached server despite token failure")
	}))
	defer srv.Close()

	tokenErr := errors.New("consent declined")
	c := NewClient(srv.URL, staticTokens{err: tokenErr})
	c.loginURL = srv.URL

	if _, err := c.UnreadCount(context.Background()); !errors.Is(err, tokenErr) {
		t.Errorf("err = %v, want %v", err, tokenErr)
	}
}
