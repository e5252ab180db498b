package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Scopes requested for the notifiers. One token serves both Google clients.
const (
	ScopeSheets    = "https://www.googleapis.com/auth/spreadsheets"
	ScopeGmailSend = "https://www.googleapis.com/auth/gmail.send"
)

// NotifierScopes is the scope set every stored token must carry
var NotifierScopes = []string{ScopeSheets, ScopeGmailSend}

const (
	// CallbackAddr is where the authorization flow listens for Google's redirect
	CallbackAddr = "127.0.0.1:3000"
	callbackPath = "/oauth/callback"
	authTimeout  = 5 * time.Minute

	defaultTokenDir = ".sipat-scheduler/tokens"
)

// ErrNoToken is returned when no stored token can be used without user interaction
var ErrNoToken = errors.New("no usable OAuth token")

// TokenMode selects what happens when the stored token is missing or unusable
type TokenMode int

const (
	// TokenStored never prompts and fails with ErrNoToken. Used by unattended commands.
	TokenStored TokenMode = iota
	// TokenPrompt runs the browser flow when the stored token is unusable
	TokenPrompt
	// TokenReauthorize always runs the browser flow and replaces the stored token
	TokenReauthorize
)

// TokenStore keeps one token per environment as a JSON file, together with the scopes it
// was granted
type TokenStore struct {
	dir string
}

// StoredToken is a persisted token with the scopes granted when it was issued
type StoredToken struct {
	Token  *oauth2.Token `json:"token"`
	Scopes []string      `json:"scopes"`
}

// NewTokenStore creates a store under dir, or ~/.sipat-scheduler/tokens when dir is empty
func NewTokenStore(dir string) (*TokenStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, defaultTokenDir)
	}
	return &TokenStore{dir: dir}, nil
}

func (s *TokenStore) path(env string) string {
	return filepath.Join(s.dir, "token-"+env+".json")
}

// Load returns the stored token of env, or nil when there is none
func (s *TokenStore) Load(env string) (*StoredToken, error) {
	data, err := os.ReadFile(s.path(env))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var stored StoredToken
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", s.path(env), err)
	}
	if stored.Token == nil {
		return nil, nil
	}
	return &stored, nil
}

// Save writes the token of env readable by the owner only
func (s *TokenStore) Save(env string, token *oauth2.Token, scopes []string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.Marshal(StoredToken{Token: token, Scopes: scopes})
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.WriteFile(s.path(env), data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Delete removes the token of env. A missing token is not an error.
func (s *TokenStore) Delete(env string) error {
	if err := os.Remove(s.path(env)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}

// TokenProvider hands out the notifier token of one environment, refreshing the stored
// token when it has expired
type TokenProvider struct {
	config *oauth2.Config
	store  *TokenStore
	env    string
	logger *zap.Logger

	mu      sync.Mutex
	current *oauth2.Token
}

// NewTokenProvider creates a provider for env. The config's scopes are the ones requested
// by the authorization flow.
func NewTokenProvider(config *oauth2.Config, store *TokenStore, env string, logger *zap.Logger) *TokenProvider {
	return &TokenProvider{config: config, store: store, env: env, logger: logger}
}

// Get returns a token according to mode. Prompts and the authorization URL go to out.
func (p *TokenProvider) Get(ctx context.Context, mode TokenMode, out io.Writer) (*oauth2.Token, error) {
	if mode != TokenReauthorize {
		token, err := p.Stored(ctx)
		if err == nil || mode == TokenStored || !errors.Is(err, ErrNoToken) {
			return token, err
		}
		p.logger.Info("Stored OAuth token unusable, starting authorization", zap.Error(err))
	}
	return p.Authorize(ctx, out)
}

// Stored returns the stored token, refreshing it if it has expired. It never prompts: when
// there is no token, or it lacks a notifier scope, or it cannot be refreshed, the error wraps
// ErrNoToken.
func (p *TokenProvider) Stored(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && p.current.Valid() {
		return p.current, nil
	}

	stored, err := p.store.Load(p.env)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("%w for env %s: none stored, run `sipat authorize --env %s`", ErrNoToken, p.env, p.env)
	}
	if missing := missingScopes(stored.Scopes); len(missing) > 0 {
		return nil, fmt.Errorf("%w for env %s: missing scopes %v, run `sipat authorize --env %s`", ErrNoToken, p.env, missing, p.env)
	}

	token := stored.Token
	if !token.Valid() {
		if token.RefreshToken == "" {
			return nil, fmt.Errorf("%w for env %s: expired without a refresh token", ErrNoToken, p.env)
		}
		refreshed, err := p.config.TokenSource(ctx, token).Token()
		if err != nil {
			return nil, fmt.Errorf("%w for env %s: refresh failed: %w", ErrNoToken, p.env, err)
		}
		if err := p.store.Save(p.env, refreshed, grantedScopes(refreshed, stored.Scopes)); err != nil {
			p.logger.Warn("Failed to save refreshed token", zap.Error(err))
		}
		p.logger.Debug("OAuth token refreshed", zap.Time("expiry", refreshed.Expiry))
		token = refreshed
	}

	p.current = token
	return token, nil
}

// Authorize runs the browser authorization code flow with PKCE, waiting for Google's redirect
// on CallbackAddr, and stores the resulting token
func (p *TokenProvider) Authorize(ctx context.Context, out io.Writer) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	flow := *p.config
	flow.RedirectURL = "http://" + CallbackAddr + callbackPath

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authURL := flow.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier))
	fmt.Fprintf(out, "\nOpen this URL to authorize notifications for env %s:\n%s\n\n", p.env, authURL)

	code, err := awaitCallback(ctx, CallbackAddr, state)
	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}

	token, err := flow.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	scopes := grantedScopes(token, flow.Scopes)
	if missing := missingScopes(scopes); len(missing) > 0 {
		return nil, fmt.Errorf("authorization did not grant scopes %v", missing)
	}
	if err := p.store.Save(p.env, token, scopes); err != nil {
		return nil, err
	}

	p.logger.Info("OAuth token stored", zap.String("env", p.env))
	p.current = token
	return token, nil
}

// grantedScopes reads the scope list Google returns with a token, falling back to fallback
// when the response carried none
func grantedScopes(token *oauth2.Token, fallback []string) []string {
	if raw, ok := token.Extra("scope").(string); ok && raw != "" {
		return strings.Fields(raw)
	}
	return fallback
}

func missingScopes(granted []string) []string {
	var missing []string
	for _, scope := range NotifierScopes {
		if !slices.Contains(granted, scope) {
			missing = append(missing, scope)
		}
	}
	return missing
}

type callbackResult struct {
	code string
	err  error
}

// callbackHandler accepts the first redirect carrying the expected state
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != callbackPath {
			http.NotFound(w, r)
			return
		}

		query := r.URL.Query()
		var result callbackResult
		switch {
		case query.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case query.Get("error") != "":
			result.err = fmt.Errorf("consent denied: %s", query.Get("error"))
			http.Error(w, "Authorization was not granted", http.StatusForbidden)
		case query.Get("code") == "":
			result.err = errors.New("redirect carried no authorization code")
			http.Error(w, "No authorization code", http.StatusBadRequest)
		default:
			result.code = query.Get("code")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<html><body><p>Notifications are authorized. You can close this tab.</p></body></html>")
		}

		select {
		case results <- result:
		default:
		}
	})
}

func awaitCallback(ctx context.Context, addr, state string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	results := make(chan callbackResult, 1)
	server := &http.Server{Handler: callbackHandler(state, results), ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = server.Serve(listener) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	select {
	case result := <-results:
		return result.code, result.err
	case <-waitCtx.Done():
		return "", fmt.Errorf("no redirect received: %w", waitCtx.Err())
	}
}
