package drpsdk

import (
	"context"
	"errors"

	"github.com/drp-sh/drpsync/internal/version"
	"github.com/imroc/req/v3"
)

// Drop namespaces. Files and clipboard texts live in separate key spaces.
const (
	NamespaceFile      = "f"
	NamespaceClipboard = "c"
)

// TokenProvider supplies a valid access token for API calls. The SDK never
// stores credentials itself.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
}

// SDK is the client for the drp server API.
type SDK struct {
	client  *req.Client
	baseURL string
	Drops   *DropsAPI
}

// New creates a drp SDK client. tokens may be nil for anonymous use; a
// provider that reports ErrNoRefreshToken also leaves requests anonymous.
func New(baseURL string, tokens TokenProvider) (*SDK, error) {
	if baseURL == "" {
		return nil, ErrNoServerURL
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetUserAgent("drpsync/" + version.Version)

	if tokens != nil {
		client.OnBeforeRequest(func(c *req.Client, r *req.Request) error {
			token, err := tokens.Token(r.Context())
			if errors.Is(err, ErrNoRefreshToken) {
				return nil // anonymous
			}
			if err != nil {
				return err
			}
			r.SetBearerAuthToken(token)
			return nil
		})
	}

	return &SDK{
		client:  client,
		baseURL: baseURL,
		Drops:   newDropsAPI(client),
	}, nil
}

// Close releases idle connections.
func (s *SDK) Close() {
	s.client.GetClient().CloseIdleConnections()
}
