package feedreader

import (
	"context"
	"errors"
	"sync"
)

// Phase is the coarse lifecycle stage of a session.
type Phase int

const (
	// PhaseRestoring is the startup state while a stored credential is being
	// validated.
	PhaseRestoring Phase = iota
	// PhaseAnonymous means no valid session exists.
	PhaseAnonymous
	// PhaseAuthenticating means a login or registration is in progress.
	PhaseAuthenticating
	// PhaseAuthenticated means a credential and profile are both present.
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseRestoring:
		return "restoring"
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is a read-only snapshot of the session state. The error message is
// a transient decoration: it clears on the next attempt, independent of
// credential and profile state.
type Session struct {
	Phase Phase
	User  *User
	Err   string
}

// Authenticated reports whether the session holds a validated credential and
// profile.
func (s Session) Authenticated() bool {
	return s.Phase == PhaseAuthenticated
}

// Fallback messages shown when a failure carries no server-provided text.
const (
	loginFailedMsg    = "Failed to login. Please check your credentials."
	registerFailedMsg = "Registration failed. Please try again."
)

// credentialsRequest is the body of the login and register calls.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the body of a successful login.
type loginResponse struct {
	Token string `json:"token"`
}

// SessionManager owns the authentication state machine. It is the only
// component that moves the session between phases; the view layer reads
// snapshots through Current and invokes the operations below.
type SessionManager struct {
	client *Client
	creds  TokenStore
	nav    Navigator

	mu    sync.Mutex
	phase Phase
	user  *User
	err   string
}

// NewSessionManager creates a session manager in the Restoring phase and
// subscribes it to the client's session-invalidated event. Call Restore
// before anything else to reach a settled phase.
func NewSessionManager(client *Client, creds TokenStore, nav Navigator) *SessionManager {
	if nav == nil {
		nav = NopNavigator{}
	}
	m := &SessionManager{
		client: client,
		creds:  creds,
		nav:    nav,
		phase:  PhaseRestoring,
	}
	client.OnUnauthorized(m.handleUnauthorized)
	return m
}

// Current returns a snapshot of the session.
func (m *SessionManager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Session{Phase: m.phase, Err: m.err}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	return s
}

// Restore establishes the session at startup. With no stored credential the
// session settles as anonymous; with one, the credential is validated by
// fetching the profile. A credential the service no longer accepts is
// discarded rather than retried forever.
func (m *SessionManager) Restore(ctx context.Context) {
	if _, ok := m.creds.Get(); !ok {
		m.setAnonymous()
		return
	}

	var user User
	if err := m.client.Get(ctx, "/api/users/me", &user); err != nil {
		// A 401 already cleared the store through the pipeline; clear on any
		// other failure too.
		m.creds.Clear()
		m.setAnonymous()
		return
	}

	m.mu.Lock()
	m.phase = PhaseAuthenticated
	m.user = &user
	m.err = ""
	m.mu.Unlock()
}

// Login performs the two-step login protocol: obtain a token, then fetch the
// profile with it. The session becomes authenticated only after both steps
// succeed. If the profile fetch fails, the freshly issued token is discarded
// so no partial authenticated state is ever observable.
func (m *SessionManager) Login(ctx context.Context, username, password string) error {
	m.begin()

	var lr loginResponse
	req := credentialsRequest{Username: username, Password: password}
	if err := m.client.Post(ctx, "/api/auth/login", req, &lr); err != nil {
		m.fail(messageOf(err, loginFailedMsg))
		return err
	}
	if lr.Token == "" {
		err := errors.New("login response did not include a token")
		m.fail(loginFailedMsg)
		return err
	}

	if err := m.creds.Set(lr.Token); err != nil {
		m.fail("Failed to save session.")
		return err
	}

	var user User
	if err := m.client.Get(ctx, "/api/users/me", &user); err != nil {
		// Roll back step one.
		m.creds.Clear()
		m.fail(messageOf(err, loginFailedMsg))
		return err
	}

	m.mu.Lock()
	m.phase = PhaseAuthenticated
	m.user = &user
	m.err = ""
	m.mu.Unlock()

	m.nav.Navigate(FeedPath)
	return nil
}

// Register creates an account and immediately logs in with the same
// credentials. A server that accepts the registration but rejects the
// follow-on login surfaces as a registration failure, never as an
// authenticated session.
func (m *SessionManager) Register(ctx context.Context, username, password string) error {
	m.begin()

	req := credentialsRequest{Username: username, Password: password}
	if err := m.client.Post(ctx, "/api/auth/register", req, nil); err != nil {
		m.fail(messageOf(err, registerFailedMsg))
		return err
	}

	return m.Login(ctx, username, password)
}

// Logout discards the credential and returns to the login entry point. The
// service is stateless, so there is no server call to make.
func (m *SessionManager) Logout() error {
	err := m.creds.Clear()

	m.mu.Lock()
	m.phase = PhaseAnonymous
	m.user = nil
	m.err = ""
	m.mu.Unlock()

	m.nav.Navigate(LoginPath)
	return err
}

// ClearError removes the error decoration without touching credential or
// profile state.
func (m *SessionManager) ClearError() {
	m.mu.Lock()
	m.err = ""
	m.mu.Unlock()
}

// handleUnauthorized is the pipeline's session-invalidated subscriber. The
// credential is already gone when it fires; this drops the profile and sends
// the user to the login entry point unless they are already there, so
// concurrent 401s redirect at most once.
func (m *SessionManager) handleUnauthorized() {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasAuthenticated := m.phase == PhaseAuthenticated
	m.user = nil
	m.phase = PhaseAnonymous
	if wasAuthenticated {
		m.err = "Your session has expired. Please log in again."
	}

	// The location check and the move happen under the same lock, so two
	// concurrent 401s produce exactly one redirect.
	if m.nav.CurrentPath() != LoginPath {
		m.nav.Navigate(LoginPath)
	}
}

func (m *SessionManager) setAnonymous() {
	m.mu.Lock()
	m.phase = PhaseAnonymous
	m.user = nil
	m.err = ""
	m.mu.Unlock()
}

func (m *SessionManager) begin() {
	m.mu.Lock()
	m.phase = PhaseAuthenticating
	m.err = ""
	m.mu.Unlock()
}

// fail records the failure message and settles back to anonymous. The phase
// check covers the case where a 401 during the attempt already moved the
// session through handleUnauthorized.
func (m *SessionManager) fail(msg string) {
	m.mu.Lock()
	if m.phase == PhaseAuthenticating {
		m.phase = PhaseAnonymous
	}
	m.err = msg
	m.mu.Unlock()
}

// messageOf returns the server-provided message carried by err, or fallback
// for failures without one (network failures in particular).
func messageOf(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
