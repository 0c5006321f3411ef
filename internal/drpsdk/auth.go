package drpsdk

import (
	"context"

	"github.com/imroc/req/v3"
)

const (
	authLogin   = "/api/v1/auth/login"
	authRefresh = "/api/v1/auth/refresh"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthTokens is the session pair issued by the server: a short-lived access
// token and a long-lived refresh token.
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Login authenticates with email and password and returns a fresh token
// pair. It uses its own unauthenticated client.
func Login(ctx context.Context, serverURL, email, password string) (*AuthTokens, error) {
	var tokens AuthTokens

	client := req.C().SetBaseURL(serverURL)
	resp, err := client.R().
		SetContext(ctx).
		SetBody(&LoginRequest{Email: email, Password: password}).
		SetSuccessResult(&tokens).
		SetErrorResult(&APIError{}).
		Post(authLogin)

	if err := handleAPIError(resp, err, "auth login"); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Refresh exchanges a refresh token for a new token pair.
func Refresh(ctx context.Context, serverURL, refreshToken string) (*AuthTokens, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	var tokens AuthTokens

	client := req.C().SetBaseURL(serverURL)
	resp, err := client.R().
		SetContext(ctx).
		SetBody(&RefreshRequest{RefreshToken: refreshToken}).
		SetSuccessResult(&tokens).
		SetErrorResult(&APIError{}).
		Post(authRefresh)

	if err := handleAPIError(resp, err, "auth refresh"); err != nil {
		return nil, err
	}
	return &tokens, nil
}
