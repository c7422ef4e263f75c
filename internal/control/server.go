package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/mailbadge/internal/auth"
	"github.com/nhle/mailbadge/internal/model"
)

// Service is the slice of the sync orchestrator the control channel
// drives.
type Service interface {
	UpdateAll(ctx context.Context) ([]model.Account, error)
	AuthorizeAccount(ctx context.Context, providerID string) (model.Account, error)
	LogoutAccount(ctx context.Context, email string) error
	MailURL(ctx context.Context, email string) (string, error)
	SaveSettings(ctx context.Context, settings model.Settings) error
}

// Refresher requests a full update cycle without waiting for it.
type Refresher interface {
	Trigger()
}

// Server serves the control protocol on a unix domain socket. Each
// connection carries newline-delimited JSON messages, handled
// sequentially per connection.
type Server struct {
	svc       Service
	refresher Refresher
	log       *zap.SugaredLogger
	openURL   func(url string) error

	listener net.Listener
	path     string
}

// NewServer binds the unix socket at path, removing a stale socket file
// left by a previous run. refresher may be nil.
func NewServer(path string, svc Service, refresher Refresher, log *zap.SugaredLogger) (*Server, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	return &Server{
		svc:       svc,
		refresher: refresher,
		log:       log,
		openURL:   auth.OpenBrowser,
		listener:  ln,
		path:      path,
	}, nil
}

// Addr returns the socket path the server listens on.
func (s *Server) Addr() string { return s.path }

// Serve accepts connections until ctx is cancelled or the listener is
// closed.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

// Close shuts the listener down and removes the socket file.
func (s *Server) Close() error {
	err := s.listener.Close()
	os.Remove(s.path)
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	id := uuid.NewString()
	log := s.log.With("conn", id)
	log.Debugw("control connection opened")

	enc := json.NewEncoder(conn)
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			log.Warnw("malformed control message", "error", err)
			s.reply(enc, log, newMessage(TypeError, ErrorPayload{Message: "malformed message: " + err.Error()}))
			continue
		}
		s.reply(enc, log, s.dispatch(ctx, log, msg))
	}
	if err := scanner.Err(); err != nil {
		log.Debugw("control connection read error", "error", err)
	}
	log.Debugw("control connection closed")
}

func (s *Server) dispatch(ctx context.Context, log *zap.SugaredLogger, msg Message) Message {
	switch msg.Type {
	case TypeRequestUpdate:
		accounts, err := s.svc.UpdateAll(ctx)
		if err != nil {
			return errorMessage(err)
		}
		return newMessage(TypeUpdateComplete, UpdateCompletePayload{Accounts: accounts})

	case TypeAuthRequest:
		var p AuthRequestPayload
		if err := unmarshalPayload(msg.Payload, &p); err != nil {
			return errorMessage(err)
		}
		account, err := s.svc.AuthorizeAccount(ctx, p.ProviderID)
		if err != nil {
			return errorMessage(err)
		}
		// The new account changes the aggregate; refresh in the
		// background so the badge catches up.
		s.refresh()
		return newMessage(TypeAuthComplete, AuthCompletePayload{Account: account})

	case TypeLogoutRequest:
		var p EmailPayload
		if err := unmarshalPayload(msg.Payload, &p); err != nil {
			return errorMessage(err)
		}
		if err := s.svc.LogoutAccount(ctx, p.Email); err != nil {
			return errorMessage(err)
		}
		s.refresh()
		return newMessage(TypeLogoutComplete, nil)

	case TypeOpenMailRequest:
		var p EmailPayload
		if err := unmarshalPayload(msg.Payload, &p); err != nil {
			return errorMessage(err)
		}
		url, err := s.svc.MailURL(ctx, p.Email)
		if err != nil {
			return errorMessage(err)
		}
		if err := s.openURL(url); err != nil {
			return errorMessage(fmt.Errorf("opening %s: %w", url, err))
		}
		// Open-mail has no completion message.
		return Message{}

	case TypeSaveSettingsRequest:
		var settings model.Settings
		if err := unmarshalPayload(msg.Payload, &settings); err != nil {
			return errorMessage(err)
		}
		if err := s.svc.SaveSettings(ctx, settings); err != nil {
			return errorMessage(err)
		}
		// The scheduler applies a changed interval after its next cycle.
		return newMessage(TypeSaveSettingsComplete, nil)

	default:
		log.Warnw("unknown control message type", "type", msg.Type)
		return errorMessage(fmt.Errorf("unknown message type %q", msg.Type))
	}
}

func (s *Server) refresh() {
	if s.refresher != nil {
		s.refresher.Trigger()
	}
}

func (s *Server) reply(enc *json.Encoder, log *zap.SugaredLogger, msg Message) {
	if msg.Type == "" {
		return
	}
	if err := enc.Encode(msg); err != nil {
		log.Debugw("control reply failed", "error", err)
	}
}

func errorMessage(err error) Message {
	return newMessage(TypeError, ErrorPayload{Message: err.Error()})
}

func unmarshalPayload(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(raw, dst)
}
