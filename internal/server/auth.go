package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthorized is returned when a request carries no usable identity.
var ErrUnauthorized = errors.New("unauthorized")

// StaticAuthenticator attributes every request to a fixed identity. For
// local development only.
type StaticAuthenticator struct {
	Identity Identity
}

// Authenticate returns the configured identity unconditionally.
func (a StaticAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	if a.Identity.UserID == "" {
		return Identity{}, ErrUnauthorized
	}
	return a.Identity, nil
}

// UserInfoAuthenticator resolves bearer tokens against an OIDC userinfo
// endpoint. The identity provider validates the token; we only read the
// profile it vouches for.
type UserInfoAuthenticator struct {
	userinfoURL string
	client      *http.Client
}

// NewUserInfoAuthenticator builds an authenticator for the given userinfo
// endpoint, e.g. https://tenant.auth0.com/userinfo.
func NewUserInfoAuthenticator(userinfoURL string) *UserInfoAuthenticator {
	return &UserInfoAuthenticator{
		userinfoURL: userinfoURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Authenticate forwards the request's bearer token to the userinfo endpoint
// and returns the subject and email it reports.
func (a *UserInfoAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return Identity{}, ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, a.userinfoURL, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", header)

	resp, err := a.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, ErrUnauthorized
	}

	var profile struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if profile.Sub == "" {
		return Identity{}, ErrUnauthorized
	}

	return Identity{UserID: profile.Sub, Email: profile.Email}, nil
}
