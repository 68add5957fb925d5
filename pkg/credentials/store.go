// Package credentials persists per-provider OAuth token records as JSON
// files in the user config directory, with owner-only permissions and
// atomic writes. It also decodes JWT claims locally for advisory identity
// and expiry hints.
package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Provider names used for token file naming.
const (
	ProviderGoogle = "google"
	ProviderCodex  = "codex"
)

// Token is a persisted OAuth token record for one provider account slot.
type Token struct {
	// AccessToken is the bearer token sent upstream.
	AccessToken string `json:"access_token"`

	// RefreshToken is posted to the token endpoint for silent refresh.
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is the OpenID identity token, kept for claim lookups.
	IDToken string `json:"id_token,omitempty"`

	// ExpiresAt is the absolute access token expiry in Unix milliseconds.
	ExpiresAt int64 `json:"expires_at"`

	// Email is the account email, for display only.
	Email string `json:"email,omitempty"`

	// Plan is the provider's subscription tier, advisory only.
	Plan string `json:"plan,omitempty"`

	// AccountID is the provider-side account identifier sent as a
	// request header where the upstream requires it.
	AccountID string `json:"account_id,omitempty"`

	// ProjectID is the provisioned workspace project id, when the
	// provider's onboarding flow produced one.
	ProjectID string `json:"project_id,omitempty"`
}

// FreshFor reports whether the access token is still valid at least d into
// the future.
func (t *Token) FreshFor(d time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt > time.Now().Add(d).UnixMilli()
}

// Store reads and writes token files under the config directory. Writes
// are serialized per (provider, slot) and performed via a temp file and
// rename so concurrent refreshes cannot interleave partial records.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store rooted at the config directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}
}

// lock returns the write mutex for a (provider, slot) pair.
func (s *Store) lock(provider string, slot int) *sync.Mutex {
	key := provider + "#" + strconv.Itoa(slot)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locks[key]; !ok {
		s.locks[key] = &sync.Mutex{}
	}
	return s.locks[key]
}

// tokenPath returns the token file path for a provider account slot.
// Slot 1 is the primary account (plain file name); higher slots are
// numbered files used for rate-limit failover.
func (s *Store) tokenPath(provider string, slot int) string {
	name := provider + "-oauth.json"
	if slot > 1 {
		name = fmt.Sprintf("%s-oauth-%d.json", provider, slot)
	}
	return filepath.Join(s.dir, name)
}

// Load reads the token record for a provider account slot. It returns
// (nil, nil) when no record exists. For the Codex provider, the externally
// maintained CLI token file is consulted as a read-only fallback; the
// gateway's own file wins when both exist.
func (s *Store) Load(provider string, slot int) (*Token, error) {
	tok, err := readTokenFile(s.tokenPath(provider, slot))
	if err != nil {
		return nil, err
	}
	if tok == nil && provider == ProviderCodex && slot == 1 {
		return readCodexCLIAuth()
	}
	return tok, nil
}

// Save persists the token record with owner-only permissions.
func (s *Store) Save(provider string, slot int, tok *Token) error {
	lock := s.lock(provider, slot)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token record: %w", err)
	}

	path := s.tokenPath(provider, slot)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// Delete removes the token record for a provider account slot. Deleting a
// missing record is not an error.
func (s *Store) Delete(provider string, slot int) error {
	lock := s.lock(provider, slot)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(s.tokenPath(provider, slot))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// readTokenFile reads a token record, returning (nil, nil) when absent.
func readTokenFile(path string) (*Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file %s: %w", path, err)
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	return &tok, nil
}

// codexCLIAuth mirrors the relevant fields of the Codex CLI's own
// ~/.codex/auth.json storage.
type codexCLIAuth struct {
	Tokens struct {
		IDToken      string `json:"id_token"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		AccountID    string `json:"account_id"`
	} `json:"tokens"`
	LastRefresh time.Time `json:"last_refresh"`
}

// readCodexCLIAuth loads tokens from the Codex CLI's own storage, if
// present. Expiry is taken from the access token's JWT exp claim.
func readCodexCLIAuth() (*Token, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(home, ".codex", "auth.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read codex CLI auth file: %w", err)
	}

	var auth codexCLIAuth
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, fmt.Errorf("failed to parse codex CLI auth file: %w", err)
	}
	if auth.Tokens.AccessToken == "" {
		return nil, nil
	}

	tok := &Token{
		AccessToken:  auth.Tokens.AccessToken,
		RefreshToken: auth.Tokens.RefreshToken,
		IDToken:      auth.Tokens.IDToken,
		AccountID:    auth.Tokens.AccountID,
	}
	if claims := DecodeClaims(auth.Tokens.AccessToken); claims != nil {
		tok.ExpiresAt = claims.ExpiresAt
	}
	if claims := DecodeClaims(auth.Tokens.IDToken); claims != nil {
		tok.Email = claims.Email
		if tok.AccountID == "" {
			tok.AccountID = claims.AccountID
		}
		tok.Plan = claims.Plan
	}
	return tok, nil
}
