package google

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
)

// TokenStore keeps one OAuth token per account as token-<account>.json
// files in a directory.
type TokenStore struct {
	dir string
}

func NewTokenStore(dir string) *TokenStore {
	if dir == "" {
		dir = "."
	}
	return &TokenStore{dir: dir}
}

func (s *TokenStore) path(account string) (string, error) {
	if account == "" || strings.ContainsAny(account, `/\`) || account == "." || account == ".." {
		return "", fmt.Errorf("invalid account name %q", account)
	}
	return filepath.Join(s.dir, fmt.Sprintf("token-%s.json", account)), nil
}

// Load reads the token saved for account.
func (s *TokenStore) Load(account string) (*oauth2.Token, error) {
	p, err := s.path(account)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return tok, nil
}

// Save writes token for account, readable by the owner only.
func (s *TokenStore) Save(account string, token *oauth2.Token) (string, error) {
	p, err := s.path(account)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("unable to create token directory: %w", err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return "", fmt.Errorf("unable to write token file: %w", err)
	}
	return p, nil
}

// Accounts lists every account with a saved token.
func (s *TokenStore) Accounts() ([]string, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		name := file.Name()
		if strings.HasPrefix(name, "token-") && strings.HasSuffix(name, ".json") {
			accounts = append(accounts, strings.TrimSuffix(strings.TrimPrefix(name, "token-"), ".json"))
		}
	}
	return accounts, nil
}
