package feedreader

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuth is a minimal stand-in for the service's auth surface: one account,
// bearer-checked profile endpoint.
type fakeAuth struct {
	username    string
	password    string
	token       string
	rejectLogin bool
	failProfile bool
	user        User
}

func (f *fakeAuth) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Username == f.username {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "user with this username already exists"})
			return
		}
		f.username, f.password = req.Username, req.Password
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"message": "User registered successfully"})
	})

	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		json.NewDecoder(r.Body).Decode(&req)
		if f.rejectLogin || req.Username != f.username || req.Password != f.password {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": f.token})
	})

	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		if f.failProfile {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "database unavailable"})
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid token"})
			return
		}
		json.NewEncoder(w).Encode(f.user)
	})

	return mux
}

// Test helper: session manager over a fakeAuth service.
func setupSession(t *testing.T, auth *fakeAuth) (*SessionManager, *memStore, *navRecorder) {
	t.Helper()
	client, store := newTestClient(t, auth.handler())
	nav := &navRecorder{}
	manager := NewSessionManager(client, store, nav)
	return manager, store, nav
}

func aliceAuth() *fakeAuth {
	return &fakeAuth{
		username: "alice",
		password: "pw",
		token:    "T1",
		user:     User{ID: "u1", Username: "alice"},
	}
}

// TestSessionManager_RestoreNoCredential verifies a fresh store settles as
// anonymous.
func TestSessionManager_RestoreNoCredential(t *testing.T) {
	manager, _, _ := setupSession(t, aliceAuth())

	assert.Equal(t, PhaseRestoring, manager.Current().Phase, "session should start restoring")

	manager.Restore(context.Background())

	session := manager.Current()
	assert.Equal(t, PhaseAnonymous, session.Phase)
	assert.Nil(t, session.User)
	assert.Empty(t, session.Err)
}

// TestSessionManager_RestoreValidCredential verifies a stored token is
// validated by fetching the profile.
func TestSessionManager_RestoreValidCredential(t *testing.T) {
	manager, store, _ := setupSession(t, aliceAuth())
	require.NoError(t, store.Set("T1"))

	manager.Restore(context.Background())

	session := manager.Current()
	require.True(t, session.Authenticated())
	assert.Equal(t, "u1", session.User.ID)
	assert.Equal(t, "alice", session.User.Username)
}

// TestSessionManager_RestoreStaleCredential verifies a token the service
// rejects is discarded during restore.
func TestSessionManager_RestoreStaleCredential(t *testing.T) {
	manager, store, _ := setupSession(t, aliceAuth())
	require.NoError(t, store.Set("expired"))

	manager.Restore(context.Background())

	session := manager.Current()
	assert.Equal(t, PhaseAnonymous, session.Phase)
	assert.Nil(t, session.User)

	_, ok := store.Get()
	assert.False(t, ok, "rejected credential should be discarded")
}

// TestSessionManager_RestoreProfileOutage verifies a non-401 profile failure
// also clears the credential rather than retrying it forever.
func TestSessionManager_RestoreProfileOutage(t *testing.T) {
	auth := aliceAuth()
	auth.failProfile = true
	manager, store, _ := setupSession(t, auth)
	require.NoError(t, store.Set("T1"))

	manager.Restore(context.Background())

	assert.Equal(t, PhaseAnonymous, manager.Current().Phase)
	_, ok := store.Get()
	assert.False(t, ok)
}

// TestSessionManager_LoginSuccess walks the two-step protocol: token, then
// profile, then authenticated with navigation to the feed.
func TestSessionManager_LoginSuccess(t *testing.T) {
	manager, store, nav := setupSession(t, aliceAuth())
	manager.Restore(context.Background())

	err := manager.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)

	session := manager.Current()
	require.True(t, session.Authenticated())
	assert.Equal(t, "u1", session.User.ID)
	assert.Empty(t, session.Err)

	token, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, "T1", token)

	assert.Equal(t, []string{FeedPath}, nav.Moves(), "successful login should navigate to the feed")
}

// TestSessionManager_LoginWrongPassword verifies a rejected login keeps the
// session anonymous with the server's message, and stays on the login page.
func TestSessionManager_LoginWrongPassword(t *testing.T) {
	manager, store, nav := setupSession(t, aliceAuth())
	nav.Navigate(LoginPath) // the user is on the login page when logging in
	manager.Restore(context.Background())

	err := manager.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)

	session := manager.Current()
	assert.Equal(t, PhaseAnonymous, session.Phase)
	assert.Nil(t, session.User)
	assert.Equal(t, "invalid credentials", session.Err)

	_, ok := store.Get()
	assert.False(t, ok, "no credential should be stored after a failed login")
	assert.Equal(t, []string{LoginPath}, nav.Moves(), "a failed login should not navigate")
}

// TestSessionManager_LoginProfileFetchFails verifies step-two failure rolls
// back the already-issued token: no partial authenticated state.
func TestSessionManager_LoginProfileFetchFails(t *testing.T) {
	auth := aliceAuth()
	auth.failProfile = true
	manager, store, _ := setupSession(t, auth)
	manager.Restore(context.Background())

	err := manager.Login(context.Background(), "alice", "pw")
	require.Error(t, err)

	session := manager.Current()
	assert.Equal(t, PhaseAnonymous, session.Phase)
	assert.Nil(t, session.User)
	assert.NotEmpty(t, session.Err)

	_, ok := store.Get()
	assert.False(t, ok, "token issued in step one should be discarded when step two fails")
}

// TestSessionManager_RegisterSuccess verifies registration is an implicit
// login with the same credentials.
func TestSessionManager_RegisterSuccess(t *testing.T) {
	auth := aliceAuth()
	auth.token = "T2"
	manager, store, nav := setupSession(t, auth)
	manager.Restore(context.Background())

	err := manager.Register(context.Background(), "bob", "secret")
	require.NoError(t, err)

	session := manager.Current()
	require.True(t, session.Authenticated())

	token, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, "T2", token)
	assert.Equal(t, []string{FeedPath}, nav.Moves())
}

// TestSessionManager_RegisterConflict verifies a rejected registration
// surfaces the server's message.
func TestSessionManager_RegisterConflict(t *testing.T) {
	manager, _, nav := setupSession(t, aliceAuth())
	nav.Navigate(LoginPath)
	manager.Restore(context.Background())

	err := manager.Register(context.Background(), "alice", "pw")
	require.Error(t, err)

	session := manager.Current()
	assert.Equal(t, PhaseAnonymous, session.Phase)
	assert.Equal(t, "user with this username already exists", session.Err)
}

// TestSessionManager_RegisterThenLoginFails verifies an accepted registration
// followed by a rejected implicit login never reaches authenticated.
func TestSessionManager_RegisterThenLoginFails(t *testing.T) {
	auth := aliceAuth()
	auth.rejectLogin = true
	manager, store, nav := setupSession(t, auth)
	nav.Navigate(LoginPath)
	manager.Restore(context.Background())

	err := manager.Register(context.Background(), "bob", "secret")
	require.Error(t, err)

	session := manager.Current()
	assert.Equal(t, PhaseAnonymous, session.Phase)
	assert.Nil(t, session.User)
	assert.NotEmpty(t, session.Err)

	_, ok := store.Get()
	assert.False(t, ok)
}

// TestSessionManager_Logout verifies logout clears everything and returns to
// the login entry point.
func TestSessionManager_Logout(t *testing.T) {
	manager, store, nav := setupSession(t, aliceAuth())
	manager.Restore(context.Background())
	require.NoError(t, manager.Login(context.Background(), "alice", "pw"))

	require.NoError(t, manager.Logout())

	session := manager.Current()
	assert.Equal(t, PhaseAnonymous, session.Phase)
	assert.Nil(t, session.User)

	_, ok := store.Get()
	assert.False(t, ok)
	assert.Equal(t, []string{FeedPath, LoginPath}, nav.Moves())
}

// TestSessionManager_ClearError verifies the error decoration clears without
// touching anything else.
func TestSessionManager_ClearError(t *testing.T) {
	manager, _, nav := setupSession(t, aliceAuth())
	nav.Navigate(LoginPath)
	manager.Restore(context.Background())

	_ = manager.Login(context.Background(), "alice", "wrong")
	require.NotEmpty(t, manager.Current().Err)

	manager.ClearError()

	session := manager.Current()
	assert.Empty(t, session.Err)
	assert.Equal(t, PhaseAnonymous, session.Phase)
}

// TestSessionManager_UnauthorizedRedirectsOnce verifies the forced sign-out:
// concurrent 401s clear the credential, drop the profile, and redirect to the
// login page exactly once.
func TestSessionManager_UnauthorizedRedirectsOnce(t *testing.T) {
	auth := aliceAuth()
	mux := http.NewServeMux()
	mux.Handle("/", auth.handler())
	mux.HandleFunc("/api/articles", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
	})

	client, store := newTestClient(t, mux)
	nav := &navRecorder{}
	manager := NewSessionManager(client, store, nav)
	manager.Restore(context.Background())
	require.NoError(t, manager.Login(context.Background(), "alice", "pw"))
	require.Equal(t, []string{FeedPath}, nav.Moves())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.Get(context.Background(), "/api/articles", nil)
		}()
	}
	wg.Wait()

	session := manager.Current()
	assert.Equal(t, PhaseAnonymous, session.Phase)
	assert.Nil(t, session.User)
	assert.NotEmpty(t, session.Err, "a forced sign-out of an authenticated session should explain itself")

	_, ok := store.Get()
	assert.False(t, ok)

	assert.Equal(t, []string{FeedPath, LoginPath}, nav.Moves(), "two concurrent 401s should redirect exactly once")
}
