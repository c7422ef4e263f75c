package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailbadge/internal/model"
)

type fakeService struct {
	accounts []model.Account
	updated  model.Account
	err      error

	loggedOut  []string
	authorized []string
	saved      []model.Settings
	mailURL    string
}

func (f *fakeService) UpdateAll(ctx context.Context) ([]model.Account, error) {
	_ = ctx
	return f.accounts, f.err
}

func (f *fakeService) AuthorizeAccount(ctx context.Context, providerID string) (model.Account, error) {
	_ = ctx
	f.authorized = append(f.authorized, providerID)
	return f.updated, f.err
}

func (f *fakeService) LogoutAccount(ctx context.Context, email string) error {
	_ = ctx
	f.loggedOut = append(f.loggedOut, email)
	return f.err
}

func (f *fakeService) SaveSettings(ctx context.Context, settings model.Settings) error {
	_ = ctx
	f.saved = append(f.saved, settings)
	return f.err
}

func (f *fakeService) MailURL(ctx context.Context, email string) (string, error) {
	_ = ctx
	if f.err != nil {
		return "", f.err
	}
	return f.mailURL + email, nil
}

type fakeRefresher struct {
	calls chan struct{}
}

func (f *fakeRefresher) Trigger() {
	select {
	case f.calls <- struct{}{}:
	default:
	}
}

func startServer(t *testing.T, svc Service, opts ...func(*Server)) (*Server, net.Conn) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "control.sock")
	srv, err := NewServer(path, svc, nil, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	for _, opt := range opts {
		opt(srv)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Serve(ctx)

	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		t.Fatalf("dialing control socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return srv, conn
}

func roundTrip(t *testing.T, conn net.Conn, msg Message) Message {
	t.Helper()

	enc := json.NewEncoder(conn)
	if err := enc.Encode(msg); err != nil {
		t.Fatalf("sending message: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	var reply Message
	if err := json.Unmarshal(line, &reply); err != nil {
		t.Fatalf("decoding reply %q: %v", line, err)
	}
	return reply
}

func TestRequestUpdate(t *testing.T) {
	svc := &fakeService{
		accounts: []model.Account{
			{ProviderID: "gmail", Email: "a@gmail.com", UnreadCount: 4},
		},
	}
	_, conn := startServer(t, svc)

	reply := roundTrip(t, conn, Message{Type: TypeRequestUpdate})
	if reply.Type != TypeUpdateComplete {
		t.Fatalf("reply type = %q, want %q", reply.Type, TypeUpdateComplete)
	}
	var payload UpdateCompletePayload
	if err := json.Unmarshal(reply.Payload, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if len(payload.Accounts) != 1 || payload.Accounts[0].UnreadCount != 4 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestAuthRequest(t *testing.T) {
	svc := &fakeService{
		updated: model.Account{ProviderID: "gmail", Email: "a@gmail.com", UnreadCount: 2},
	}
	_, conn := startServer(t, svc)

	reply := roundTrip(t, conn, newMessage(TypeAuthRequest, AuthRequestPayload{ProviderID: "gmail"}))
	if reply.Type != TypeAuthComplete {
		t.Fatalf("reply type = %q, want %q", reply.Type, TypeAuthComplete)
	}
	var payload AuthCompletePayload
	if err := json.Unmarshal(reply.Payload, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload.Account.Email != "a@gmail.com" {
		t.Errorf("account = %+v", payload.Account)
	}
	if len(svc.authorized) != 1 || svc.authorized[0] != "gmail" {
		t.Errorf("authorized = %v, want [gmail]", svc.authorized)
	}
}

func TestLogoutRequest(t *testing.T) {
	svc := &fakeService{}
	refresher := &fakeRefresher{calls: make(chan struct{}, 1)}
	_, conn := startServer(t, svc, func(s *Server) { s.refresher = refresher })

	reply := roundTrip(t, conn, newMessage(TypeLogoutRequest, EmailPayload{Email: "a@gmail.com"}))
	if reply.Type != TypeLogoutComplete {
		t.Fatalf("reply type = %q, want %q", reply.Type, TypeLogoutComplete)
	}
	if len(svc.loggedOut) != 1 || svc.loggedOut[0] != "a@gmail.com" {
		t.Errorf("loggedOut = %v", svc.loggedOut)
	}
	select {
	case <-refresher.calls:
	default:
		t.Error("logout did not request a refresh cycle")
	}
}

func TestOpenMailRequest(t *testing.T) {
	svc := &fakeService{mailURL: "https://mail.example.com/"}
	opened := make(chan string, 1)
	_, conn := startServer(t, svc, func(s *Server) {
		s.openURL = func(url string) error {
			opened <- url
			return nil
		}
	})

	// No completion message exists for open-mail; a follow-up request on
	// the same connection proves the handler did not reply.
	enc := json.NewEncoder(conn)
	if err := enc.Encode(newMessage(TypeOpenMailRequest, EmailPayload{Email: "a@gmail.com"})); err != nil {
		t.Fatalf("sending message: %v", err)
	}
	reply := roundTrip(t, conn, Message{Type: TypeRequestUpdate})
	if reply.Type != TypeUpdateComplete {
		t.Fatalf("reply type = %q, want %q", reply.Type, TypeUpdateComplete)
	}
	select {
	case url := <-opened:
		if url != "https://mail.example.com/a@gmail.com" {
			t.Errorf("opened = %q", url)
		}
	case <-time.After(2 * time.Second):
		t.Error("open-mail handler never ran")
	}
}

func TestSaveSettingsRequest(t *testing.T) {
	svc := &fakeService{}
	_, conn := startServer(t, svc)

	reply := roundTrip(t, conn, newMessage(TypeSaveSettingsRequest, model.Settings{UpdateIntervalMinutes: 10}))
	if reply.Type != TypeSaveSettingsComplete {
		t.Fatalf("reply type = %q, want %q", reply.Type, TypeSaveSettingsComplete)
	}
	if len(svc.saved) != 1 || svc.saved[0].UpdateIntervalMinutes != 10 {
		t.Errorf("saved = %+v, want one save with a 10 minute interval", svc.saved)
	}
}

func TestServiceErrorsBecomeErrorMessages(t *testing.T) {
	svc := &fakeService{err: errors.New("store unavailable")}
	_, conn := startServer(t, svc)

	reply := roundTrip(t, conn, Message{Type: TypeRequestUpdate})
	if reply.Type != TypeError {
		t.Fatalf("reply type = %q, want %q", reply.Type, TypeError)
	}
	var payload ErrorPayload
	if err := json.Unmarshal(reply.Payload, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if !strings.Contains(payload.Message, "store unavailable") {
		t.Errorf("message = %q", payload.Message)
	}
}

func TestMalformedAndUnknownMessages(t *testing.T) {
	svc := &fakeService{}
	_, conn := startServer(t, svc)

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := conn.Write([]byte("not json\n")); err != nil {
		t.Fatalf("writing raw line: %v", err)
	}
	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	var reply Message
	if err := json.Unmarshal(line, &reply); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	if reply.Type != TypeError {
		t.Errorf("reply type = %q, want %q", reply.Type, TypeError)
	}

	if _, err := conn.Write([]byte(`{"type":"BOGUS"}` + "\n")); err != nil {
		t.Fatalf("writing unknown type: %v", err)
	}
	line, err = reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	if err := json.Unmarshal(line, &reply); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	if reply.Type != TypeError {
		t.Errorf("reply type = %q, want %q", reply.Type, TypeError)
	}
}

func TestMissingPayload(t *testing.T) {
	svc := &fakeService{}
	_, conn := startServer(t, svc)

	reply := roundTrip(t, conn, Message{Type: TypeAuthRequest})
	if reply.Type != TypeError {
		t.Fatalf("reply type = %q, want %q", reply.Type, TypeError)
	}
	if len(svc.authorized) != 0 {
		t.Errorf("authorization ran without payload")
	}
}
