package drpsdk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// refresh the access token this long before it actually expires
	tokenSkew = 30 * time.Second

	// assumed lifetime when the access token carries no usable exp claim
	defaultTokenTTL = 15 * time.Minute
)

// SessionProvider implements TokenProvider on top of the refresh-token flow.
// It caches the access token, refreshes it ahead of expiry, and reports
// rotated refresh tokens through onRotate so the caller can persist them.
type SessionProvider struct {
	serverURL string
	onRotate  func(refreshToken string)

	mu      sync.Mutex
	access  string
	expiry  time.Time
	refresh string
}

func NewSessionProvider(serverURL, refreshToken string, onRotate func(string)) *SessionProvider {
	return &SessionProvider{
		serverURL: serverURL,
		refresh:   refreshToken,
		onRotate:  onRotate,
	}
}

// Token returns a valid access token, refreshing if the cached one is about
// to expire. Returns ErrNoRefreshToken when the session is anonymous.
func (p *SessionProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.access != "" && time.Until(p.expiry) > tokenSkew {
		return p.access, nil
	}
	if err := p.refreshLocked(ctx); err != nil {
		return "", err
	}
	return p.access, nil
}

// Refresh forces a token refresh regardless of cached expiry.
func (p *SessionProvider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshLocked(ctx)
}

// SetTokens installs a fresh token pair, e.g. right after login.
func (p *SessionProvider) SetTokens(tokens *AuthTokens) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.installLocked(tokens)
}

func (p *SessionProvider) refreshLocked(ctx context.Context) error {
	if p.refresh == "" {
		return ErrNoRefreshToken
	}

	tokens, err := Refresh(ctx, p.serverURL, p.refresh)
	if err != nil {
		return err
	}
	p.installLocked(tokens)
	return nil
}

func (p *SessionProvider) installLocked(tokens *AuthTokens) {
	p.access = tokens.AccessToken
	p.expiry = tokenExpiry(tokens.AccessToken)

	if tokens.RefreshToken != "" && tokens.RefreshToken != p.refresh {
		p.refresh = tokens.RefreshToken
		if p.onRotate != nil {
			p.onRotate(tokens.RefreshToken)
		}
	}
}

// tokenExpiry reads the exp claim without verifying the signature; the
// server verifies, we only schedule refreshes.
func tokenExpiry(token string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	slog.Debug("access token has no usable exp claim, assuming default ttl")
	return time.Now().Add(defaultTokenTTL)
}
