// Package settings persists the client-side agent settings and tokens that
// the session channel reads at start and at handshake time.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/agent-racer/workspace/internal/channel"
)

// Settings are the user's agent preferences plus stored tokens.
type Settings struct {
	LLMModel         string `yaml:"llm_model"`
	LLMAPIKey        string `yaml:"llm_api_key,omitempty"`
	Agent            string `yaml:"agent"`
	Language         string `yaml:"language"`
	ConfirmationMode bool   `yaml:"confirmation_mode"`
	SecurityAnalyzer string `yaml:"security_analyzer,omitempty"`

	GitHubToken  string `yaml:"github_token,omitempty"`
	SessionToken string `yaml:"session_token,omitempty"`
}

// Defaults returns the settings used when nothing is stored.
func Defaults() Settings {
	return Settings{
		LLMModel: "anthropic/claude-3-5-sonnet-20241022",
		Agent:    "CodeActAgent",
		Language: "en",
	}
}

// Store is a yaml file of Settings guarded for concurrent use.
type Store struct {
	path string

	mu       sync.RWMutex
	settings Settings
}

// Open loads the store at path. A missing file yields the defaults.
func Open(path string) (*Store, error) {
	s := &Store{path: path, settings: Defaults()}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &s.settings); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return s, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update applies fn and writes the result to disk.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.settings
	fn(&next)
	if err := s.write(next); err != nil {
		return err
	}
	s.settings = next
	return nil
}

// SetSessionToken stores a token issued by the backend.
func (s *Store) SetSessionToken(token string) error {
	return s.Update(func(st *Settings) { st.SessionToken = token })
}

// Credentials returns the tokens for channel.Start.
func (s *Store) Credentials() channel.Credentials {
	st := s.Get()
	return channel.Credentials{
		SessionToken: st.SessionToken,
		GitHubToken:  st.GitHubToken,
	}
}

// Snapshot returns the INIT action args. Tokens are never part of it.
func (s *Store) Snapshot() map[string]any {
	st := s.Get()
	args := map[string]any{
		"LLM_MODEL":         st.LLMModel,
		"AGENT":             st.Agent,
		"LANGUAGE":          st.Language,
		"CONFIRMATION_MODE": st.ConfirmationMode,
	}
	if st.LLMAPIKey != "" {
		args["LLM_API_KEY"] = st.LLMAPIKey
	}
	if st.SecurityAnalyzer != "" {
		args["SECURITY_ANALYZER"] = st.SecurityAnalyzer
	}
	return args
}

func (s *Store) write(st Settings) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
