package drpsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)

		var body LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice@example.com", body.Email)
		assert.Equal(t, "hunter2", body.Password)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"accessToken":"acc1","refreshToken":"ref1"}`)
	}))
	defer srv.Close()

	tokens, err := Login(context.Background(), srv.URL, "alice@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "acc1", tokens.AccessToken)
	assert.Equal(t, "ref1", tokens.RefreshToken)
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":"unauthorized","error":"wrong password"}`)
	}))
	defer srv.Close()

	_, err := Login(context.Background(), srv.URL, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/refresh", r.URL.Path)

		var body RefreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ref1", body.RefreshToken)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"accessToken":"acc2","refreshToken":"ref2"}`)
	}))
	defer srv.Close()

	tokens, err := Refresh(context.Background(), srv.URL, "ref1")
	require.NoError(t, err)
	assert.Equal(t, "acc2", tokens.AccessToken)
	assert.Equal(t, "ref2", tokens.RefreshToken)
}

func TestRefresh_EmptyToken(t *testing.T) {
	_, err := Refresh(context.Background(), "http://unused", "")
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}
