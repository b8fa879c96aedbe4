package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/harrisonrobin/engage/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

const (
	// ClientSecretsFile is the OAuth client downloaded from the Google Cloud
	// console, expected in the config directory.
	ClientSecretsFile = "credentials.json"

	// TokenFile caches the access and refresh token next to the client secrets.
	TokenFile = "token.json"

	// LocalhostAuthPort receives the OAuth redirect during the browser flow.
	LocalhostAuthPort = "6789"

	authTimeout = 5 * time.Minute
)

// CalendarScopes are the scopes needed to push engagement tasks as events.
var CalendarScopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// Authenticator runs the installed-app OAuth flow and caches its token.
type Authenticator struct {
	dir    string
	logger *zap.SugaredLogger
}

// New returns an Authenticator keeping its files in dir. An empty dir means
// the default config directory.
func New(dir string, logger *zap.SugaredLogger) (*Authenticator, error) {
	if dir == "" {
		d, err := config.Dir()
		if err != nil {
			return nil, fmt.Errorf("could not find config directory: %w", err)
		}
		dir = d
	}
	return &Authenticator{dir: dir, logger: logger}, nil
}

func (a *Authenticator) TokenPath() string {
	return filepath.Join(a.dir, TokenFile)
}

// Reset removes a cached token so the next Client call re-runs the browser flow.
func (a *Authenticator) Reset() error {
	err := os.Remove(a.TokenPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete token file %s: %w", a.TokenPath(), err)
	}
	if err == nil {
		a.logger.Infow("removed cached token", "path", a.TokenPath())
	}
	return nil
}

// OAuthConfig reads the client secrets file and pins the redirect URL to
// the local callback listener.
func (a *Authenticator) OAuthConfig(scopes []string) (*oauth2.Config, error) {
	secretsPath := filepath.Join(a.dir, ClientSecretsFile)
	b, err := os.ReadFile(secretsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", secretsPath, err)
	}

	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	cfg.RedirectURL = redirectURL(cfg.RedirectURL, a.logger)
	return cfg, nil
}

// redirectURL forces localhost and out-of-band redirects onto
// LocalhostAuthPort, leaving anything else as configured.
func redirectURL(configured string, logger *zap.SugaredLogger) string {
	if configured == "urn:ietf:wg:oauth:2.0:oob" || configured == "" {
		return fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
	}
	u, err := url.Parse(configured)
	if err != nil {
		logger.Warnw("could not parse redirect URL, using it as is", "url", configured, "error", err)
		return configured
	}
	if u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		logger.Warnw("redirect URL is not a localhost callback", "url", configured)
		return configured
	}
	if u.Port() != LocalhostAuthPort {
		if u.Port() != "" {
			logger.Warnw("overriding redirect port", "configured", u.Port(), "port", LocalhostAuthPort)
		}
		u.Host = net.JoinHostPort(u.Hostname(), LocalhostAuthPort)
	}
	return u.String()
}

// Client returns an HTTP client that refreshes its token automatically.
// Without a cached token it runs the browser flow first.
func (a *Authenticator) Client(ctx context.Context, scopes []string) (*http.Client, error) {
	cfg, err := a.OAuthConfig(scopes)
	if err != nil {
		return nil, err
	}

	tok, err := tokenFromFile(a.TokenPath())
	if err != nil {
		a.logger.Infow("no cached token, starting browser authorization", "path", a.TokenPath())
		tok, err = a.tokenFromWeb(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := saveToken(a.TokenPath(), tok); err != nil {
			return nil, err
		}
	}

	src := cfg.TokenSource(ctx, tok)
	current, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if current.AccessToken != tok.AccessToken || current.RefreshToken != tok.RefreshToken {
		a.logger.Debugw("token refreshed, updating cache", "path", a.TokenPath())
		if err := saveToken(a.TokenPath(), current); err != nil {
			a.logger.Warnw("could not cache refreshed token", "error", err)
		}
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(current, src)), nil
}

func (a *Authenticator) tokenFromWeb(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", net.JoinHostPort("localhost", LocalhostAuthPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- errors.New("authorization code not found in redirect URL"):
				default:
				}
				return
			}
			fmt.Fprintln(w, "Authentication successful! You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	defer server.Shutdown(context.Background())

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case errCh <- fmt.Errorf("HTTP server error: %w", err):
			default:
			}
		}
	}()

	authURL := cfg.AuthCodeURL("engage-state", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Open the following URL in your browser to authorize engage:\n%s\n", authURL)
	a.logger.Infow("waiting for authorization code", "redirect", cfg.RedirectURL)

	select {
	case code := <-codeCh:
		exCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := cfg.Exchange(exCtx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, errors.New("authorization timed out, please try again")
	}
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
