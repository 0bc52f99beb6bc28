// Package auth owns the session lifecycle. One controller holds the state
// machine uninitialized -> checking -> authenticated | anonymous; every
// caller goes through it instead of racing its own startup check.
package auth

import (
	"log/slog"
	"sync"

	"github.com/fatih/structs"
	"golang.org/x/net/context"

	"sideQuest/api"
	"sideQuest/clients/sidequest"
	"sideQuest/tokens"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateChecking      State = "checking"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

type Service interface {
	Login(ctx context.Context, creds api.LoginRequest) (*api.User, error)
	Register(ctx context.Context, req api.RegistrationRequest) (*api.User, error)
	Logout(ctx context.Context) error
	// CheckAuthStatus reconciles the stored token with the backend's view of
	// the session. Concurrent callers share a single in-flight check, and a
	// confirmed state short-circuits without a network call.
	CheckAuthStatus(ctx context.Context) (State, error)
	UpdateProfile(ctx context.Context, userID string, update api.UserUpdate) (*api.User, error)
	State() State
	CurrentUser() *api.User
}

var _ Service = (*service)(nil)

type service struct {
	client   *sidequest.Client
	tokens   tokens.Store
	basePath string

	mu       sync.Mutex
	state    State
	user     *api.User
	lastErr  error
	inflight chan struct{}
}

func NewService(client *sidequest.Client, store tokens.Store, basePath string) Service {
	return &service{
		client:   client,
		tokens:   store,
		basePath: basePath,
		state:    StateUninitialized,
	}
}

func (s *service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *service) CurrentUser() *api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *service) CheckAuthStatus(ctx context.Context) (State, error) {
	s.mu.Lock()
	switch s.state {
	case StateAuthenticated, StateAnonymous:
		state := s.state
		s.mu.Unlock()
		return state, nil
	case StateChecking:
		done := s.inflight
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return StateChecking, ctx.Err()
		}
		s.mu.Lock()
		state, err := s.state, s.lastErr
		s.mu.Unlock()
		return state, err
	}

	s.state = StateChecking
	done := make(chan struct{})
	s.inflight = done
	s.mu.Unlock()

	state, user, err := s.check(ctx)

	s.mu.Lock()
	s.state = state
	s.user = user
	s.lastErr = err
	s.inflight = nil
	close(done)
	s.mu.Unlock()
	return state, err
}

// check performs the actual reconciliation. No token means anonymous with
// zero network calls; a locally expired token is cleared up front. A 401
// from /auth/me clears the token, any other failure keeps it so a transient
// outage does not force a re-login.
func (s *service) check(ctx context.Context) (State, *api.User, error) {
	if !s.tokens.Has() {
		slog.Debug("no session token stored, session is anonymous")
		return StateAnonymous, nil, nil
	}
	if !s.tokens.IsValid() {
		slog.Info("stored session token is expired, clearing it")
		if err := s.tokens.Remove(); err != nil {
			slog.With("error", err.Error()).Warn("failed to remove expired token")
		}
		return StateAnonymous, nil, nil
	}

	var user api.User
	_, err := s.client.Get(ctx, s.basePath+"/auth/me", &user, sidequest.Options{NoCache: true})
	if err == nil {
		return StateAuthenticated, &user, nil
	}

	if api.IsUnauthorized(err) {
		slog.Info("backend rejected the session token, clearing it")
		if rmErr := s.tokens.Remove(); rmErr != nil {
			slog.With("error", rmErr.Error()).Warn("failed to remove rejected token")
		}
		return StateAnonymous, nil, &api.Error{
			Message: "session expired, please log in again",
			Code:    api.CodeUnauthorized,
		}
	}

	// Transient failure: keep the token, fall back to uninitialized so a
	// later check retries.
	slog.With("error", err.Error()).Warn("session check failed, will retry")
	return StateUninitialized, nil, err
}

func (s *service) Login(ctx context.Context, creds api.LoginRequest) (*api.User, error) {
	var resp api.LoginResponse
	form := map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	}
	_, err := s.client.Post(ctx, s.basePath+"/auth/login", form, &resp, sidequest.Options{
		ContentType: sidequest.ContentTypeForm,
		SkipAuth:    true,
	})
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &api.Error{
			Message: "login response carried no access token",
			Code:    api.CodeUnknown,
		}
	}

	if err := s.tokens.Remove(); err != nil {
		slog.With("error", err.Error()).Warn("failed to clear previous token")
	}
	if err := s.tokens.Set(resp.AccessToken); err != nil {
		return nil, api.Normalize(err, api.CodeClientError)
	}
	s.client.ClearCache(nil)

	user := resp.User
	if user == nil {
		var fetched api.User
		if _, err := s.client.Get(ctx, s.basePath+"/auth/me", &fetched, sidequest.Options{NoCache: true}); err != nil {
			return nil, err
		}
		user = &fetched
	}

	s.setAuthenticated(user)
	slog.With("user_id", user.ID).Info("login successful")
	return user, nil
}

func (s *service) Register(ctx context.Context, req api.RegistrationRequest) (*api.User, error) {
	var resp api.RegistrationResponse
	_, err := s.client.Post(ctx, s.basePath+"/auth/register", req, &resp, sidequest.Options{
		SkipAuth: true,
	})
	if err != nil {
		return nil, err
	}

	user := resp.User
	if resp.AuthToken == "" {
		slog.Warn("registration response carried no auth token, log in to start a session")
		return &user, nil
	}
	if err := s.tokens.Set(resp.AuthToken); err != nil {
		return nil, api.Normalize(err, api.CodeClientError)
	}
	s.client.ClearCache(nil)
	s.setAuthenticated(&user)
	slog.With("user_id", user.ID).Info("registration successful")
	return &user, nil
}

// Logout notifies the backend best-effort; local state is cleared
// unconditionally, a failed notification never blocks the logout.
func (s *service) Logout(ctx context.Context) error {
	var ack api.MessageResponse
	if _, err := s.client.Post(ctx, s.basePath+"/auth/logout", nil, &ack, sidequest.Options{}); err != nil {
		slog.With("error", err.Error()).Warn("backend logout failed, clearing local session anyway")
	}

	err := s.tokens.Remove()
	s.client.ClearCache(nil)
	s.mu.Lock()
	s.state = StateAnonymous
	s.user = nil
	s.lastErr = nil
	s.mu.Unlock()
	if err != nil {
		return api.Normalize(err, api.CodeClientError)
	}
	return nil
}

// UpdateProfile sends only the changed fields and replaces the cached user
// wholesale with the server's copy.
func (s *service) UpdateProfile(ctx context.Context, userID string, update api.UserUpdate) (*api.User, error) {
	payload := structs.Map(update)
	if len(payload) == 0 {
		return nil, &api.Error{
			Message: "no fields to update",
			Code:    api.CodeClientError,
		}
	}

	var envelope api.UserEnvelope
	if _, err := s.client.Put(ctx, s.basePath+"/user/"+userID, payload, &envelope, sidequest.Options{}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.user == nil || s.user.ID == envelope.User.ID {
		s.user = &envelope.User
	}
	s.mu.Unlock()
	return &envelope.User, nil
}

func (s *service) setAuthenticated(user *api.User) {
	s.mu.Lock()
	s.state = StateAuthenticated
	s.user = user
	s.lastErr = nil
	s.mu.Unlock()
}
