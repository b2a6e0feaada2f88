package feedreader

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// TokenStore is the credential storage contract shared by the request
// pipeline and the session manager. Implementations must tolerate concurrent
// callers: Set and Clear are last-writer-wins, and Clear is idempotent.
type TokenStore interface {
	// Set persists the token, atomically replacing any prior value.
	Set(token string) error
	// Get returns the stored token, or false if none is stored.
	Get() (string, bool)
	// Clear removes the stored token. Clearing an empty store is a no-op.
	Clear() error
}

// Storage keys within the credentials table.
const (
	tokenKey    = "token"
	clientIDKey = "client_id"
)

// CredentialStore persists the session token in a local SQLite database so an
// authenticated session survives process restarts. At most one token is live
// per database; multiple processes sharing the same database race with
// last-writer-wins semantics, which SQLite's single-writer locking provides.
type CredentialStore struct {
	db *sql.DB
}

// NewCredentialStore opens (creating if needed) the credential database at
// the given path.
func NewCredentialStore(dbPath string) (*CredentialStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &CredentialStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the credentials table if it doesn't exist.
func (c *CredentialStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS credentials (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (c *CredentialStore) Close() error {
	return c.db.Close()
}

// Set stores the session token, overwriting any prior value.
func (c *CredentialStore) Set(token string) error {
	query := "INSERT OR REPLACE INTO credentials (key, value) VALUES (?, ?)"
	if _, err := c.db.Exec(query, tokenKey, token); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Get returns the stored session token. A read failure is reported as an
// absent token: callers fall back to an anonymous session rather than
// carrying a credential they cannot trust.
func (c *CredentialStore) Get() (string, bool) {
	var token string
	err := c.db.QueryRow("SELECT value FROM credentials WHERE key = ?", tokenKey).Scan(&token)
	if err != nil {
		return "", false
	}
	return token, true
}

// Clear removes the stored session token. Idempotent.
func (c *CredentialStore) Clear() error {
	if _, err := c.db.Exec("DELETE FROM credentials WHERE key = ?", tokenKey); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// ClientID returns the stable identifier for this install, generating and
// persisting one on first use. The identifier survives logout: it names the
// device profile, not the session.
func (c *CredentialStore) ClientID() (string, error) {
	var id string
	err := c.db.QueryRow("SELECT value FROM credentials WHERE key = ?", clientIDKey).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to read client ID: %w", err)
	}

	id = uuid.New().String()
	query := "INSERT OR REPLACE INTO credentials (key, value) VALUES (?, ?)"
	if _, err := c.db.Exec(query, clientIDKey, id); err != nil {
		return "", fmt.Errorf("failed to store client ID: %w", err)
	}
	return id, nil
}
