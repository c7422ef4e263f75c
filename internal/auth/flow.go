package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
)

// ConsentFlow drives one interactive authorization: it owns the redirect
// URI registered with the OAuth client and blocks until the provider
// redirects back (or the user walks away). The implicit grant delivers the
// token in the URL fragment of that redirect.
type ConsentFlow interface {
	// RedirectURI returns the redirect URI to embed in authorization URLs.
	RedirectURI() string

	// Authorize opens authURL in a user-visible surface and returns the
	// full redirect URL, fragment included. It returns only when the
	// redirect arrives or ctx is cancelled; there is no other timeout,
	// cancellation is user-driven.
	Authorize(ctx context.Context, authURL string) (string, error)
}

// relayPage turns the fragment of the provider redirect into a query
// string the loopback server can see. Browsers never send fragments over
// the wire, so the page re-requests itself with the fragment appended as
// a query.
const relayPage = `<!DOCTYPE html>
<html><body><script>
if (location.hash.length > 1) {
  location.replace("/token?" + location.hash.substring(1));
} else {
  location.replace("/token");
}
</script></body></html>`

const doneGranted = "Authorization received. You can close this tab."
const doneDenied = "Authorization did not complete. You can close this tab."

// LoopbackFlow implements ConsentFlow with a long-lived listener on the
// loopback interface and the system browser as the consent surface. The
// redirect URI stays stable across authorizations, which matters because
// every token expiry triggers a fresh interactive consent.
type LoopbackFlow struct {
	srv      *http.Server
	listener net.Listener
	openURL  func(string) error

	mu      sync.Mutex
	pending chan<- string
}

// NewLoopbackFlow binds an ephemeral loopback port and starts the
// redirect relay server. Callers own Close.
func NewLoopbackFlow() (*LoopbackFlow, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("binding loopback listener: %w", err)
	}

	f := &LoopbackFlow{listener: ln, openURL: OpenBrowser}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, relayPage)
	})
	mux.HandleFunc("/token", f.handleToken)

	f.srv = &http.Server{Handler: mux}
	go func() { _ = f.srv.Serve(ln) }()

	return f, nil
}

// RedirectURI returns the loopback redirect URI for this flow.
func (f *LoopbackFlow) RedirectURI() string {
	return fmt.Sprintf("http://%s/", f.listener.Addr().String())
}

// Authorize opens the system browser at authURL and waits for the
// provider redirect to land on the relay server.
func (f *LoopbackFlow) Authorize(ctx context.Context, authURL string) (string, error) {
	redirected := make(chan string, 1)

	f.mu.Lock()
	f.pending = redirected
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.pending = nil
		f.mu.Unlock()
	}()

	if err := f.openURL(authURL); err != nil {
		return "", fmt.Errorf("opening browser: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case u := <-redirected:
		return u, nil
	}
}

// handleToken receives the relayed fragment as a query string and hands
// it to the waiting Authorize call, re-shaped into a fragment so the
// engine parses every flow the same way.
func (f *LoopbackFlow) handleToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if r.URL.Query().Get("access_token") != "" {
		fmt.Fprint(w, doneGranted)
	} else {
		fmt.Fprint(w, doneDenied)
	}

	f.mu.Lock()
	pending := f.pending
	f.mu.Unlock()
	if pending == nil {
		return
	}
	select {
	case pending <- f.RedirectURI() + "#" + r.URL.RawQuery:
	default:
	}
}

// Close shuts the relay server down and releases the listener.
func (f *LoopbackFlow) Close() error {
	return f.srv.Close()
}

// OpenBrowser opens url in the default system browser.
func OpenBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "linux":
		return exec.Command("xdg-open", url).Start()
	default:
		return errors.New("no browser opener for this platform")
	}
}
