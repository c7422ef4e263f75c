package auth

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestLoopbackFlowRelaysFragment(t *testing.T) {
	flow, err := NewLoopbackFlow()
	if err != nil {
		t.Fatalf("NewLoopbackFlow: %v", err)
	}
	defer flow.Close()

	uri := flow.RedirectURI()
	if !strings.HasPrefix(uri, "http://127.0.0.1:") {
		t.Fatalf("RedirectURI = %q", uri)
	}

	// Stand in for the browser: fetch the relay page, then issue the
	// request its script would make for a granted consent.
	flow.openURL = func(authURL string) error {
		go func() {
			resp, err := http.Get(uri)
			if err != nil {
				t.Errorf("fetching relay page: %v", err)
				return
			}
			page, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if !strings.Contains(string(page), "location.hash") {
				t.Errorf("relay page missing fragment script: %s", page)
			}

			resp, err = http.Get(uri + "token?access_token=abc&expires_in=3600")
			if err != nil {
				t.Errorf("relaying token: %v", err)
				return
			}
			resp.Body.Close()
		}()
		return nil
	}

	got, err := flow.Authorize(context.Background(), "https://accounts.example.com/auth?x=1")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	want := uri + "#access_token=abc&expires_in=3600"
	if got != want {
		t.Errorf("Authorize = %q, want %q", got, want)
	}
}

func TestLoopbackFlowSurvivesRepeatedAuthorizations(t *testing.T) {
	flow, err := NewLoopbackFlow()
	if err != nil {
		t.Fatalf("NewLoopbackFlow: %v", err)
	}
	defer flow.Close()

	uri := flow.RedirectURI()
	flow.openURL = func(authURL string) error {
		go func() {
			resp, err := http.Get(uri + "token?access_token=tok")
			if err != nil {
				t.Errorf("relaying token: %v", err)
				return
			}
			resp.Body.Close()
		}()
		return nil
	}

	for i := 0; i < 3; i++ {
		if _, err := flow.Authorize(context.Background(), "https://example.com/auth"); err != nil {
			t.Fatalf("Authorize round %d: %v", i, err)
		}
	}
}

func TestLoopbackFlowCancellation(t *testing.T) {
	flow, err := NewLoopbackFlow()
	if err != nil {
		t.Fatalf("NewLoopbackFlow: %v", err)
	}
	defer flow.Close()

	flow.openURL = func(string) error { return nil }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = flow.Authorize(ctx, "https://example.com/auth")
	if err == nil {
		t.Fatal("Authorize returned without a redirect")
	}
	if ctx.Err() == nil {
		t.Errorf("expected context expiry, got %v", err)
	}
}

func TestLoopbackFlowIgnoresLateRedirect(t *testing.T) {
	flow, err := NewLoopbackFlow()
	if err != nil {
		t.Fatalf("NewLoopbackFlow: %v", err)
	}
	defer flow.Close()

	// No Authorize in flight; a stray redirect must not block or panic.
	resp, err := http.Get(flow.RedirectURI() + "token?access_token=stray")
	if err != nil {
		t.Fatalf("stray redirect: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
