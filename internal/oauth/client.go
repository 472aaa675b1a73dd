package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chefmate/auth-service/internal/domain"
)

const (
	googleAuthEndpoint     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenEndpoint    = "https://oauth2.googleapis.com/token"
	googleUserinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

	kakaoAuthEndpoint     = "https://kauth.kakao.com/oauth/authorize"
	kakaoTokenEndpoint    = "https://kauth.kakao.com/oauth/token"
	kakaoUserinfoEndpoint = "https://kapi.kakao.com/v2/user/me"
	kakaoSignupEndpoint   = "https://kapi.kakao.com/v1/user/signup"
)

// Kakao API error codes surfaced by kapi.kakao.com.
const (
	kakaoCodeNotRegistered     = -101 // token holder has not linked the app yet
	kakaoCodeAlreadyRegistered = -102 // signup called for an already linked user
)

var (
	// ErrCodeInvalid means the provider rejected the authorization code
	// (HTTP 400 from the token endpoint). Codes are single-use and
	// short-lived, so this is the dominant real-world failure.
	ErrCodeInvalid = errors.New("authorization code invalid or expired")

	// ErrProviderUnavailable covers network failures and unexpected
	// provider status codes. Not retried here.
	ErrProviderUnavailable = errors.New("oauth provider unavailable")

	// ErrMalformedResponse means a 2xx response without the expected fields.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrAppNotLinked is Kakao-specific: the identity exists but has not
	// completed app linkage; a signup call is needed before the profile
	// can be used.
	ErrAppNotLinked = errors.New("kakao account not linked to app")

	// ErrAlreadyLinked is returned by LinkApp when Kakao reports the
	// identity was linked all along. Callers treat it as success.
	ErrAlreadyLinked = errors.New("kakao account already linked")
)

// Client talks to one OAuth2 provider: authorize-URL building, code exchange
// and userinfo fetch. Endpoint URLs are fields so tests can point the client
// at an httptest server.
type Client struct {
	Provider     string
	ClientID     string
	ClientSecret string // empty for Kakao
	RedirectURI  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserinfoURL string
	SignupURL   string // Kakao app-linkage endpoint; empty for providers without one

	http *http.Client
}

// Provider hangs can tie up a request handler for the whole read timeout;
// callers bound the total with their own request context.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
		},
	}
}

func NewGoogle(clientID, clientSecret, redirectURI string) *Client {
	return &Client{
		Provider:     domain.ProviderGoogle,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		Scopes:       []string{"openid", "email", "profile"},
		AuthURL:      googleAuthEndpoint,
		TokenURL:     googleTokenEndpoint,
		UserinfoURL:  googleUserinfoEndpoint,
		http:         newHTTPClient(),
	}
}

func NewKakao(clientID, redirectURI string) *Client {
	return &Client{
		Provider:    domain.ProviderKakao,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scopes:      []string{"profile_nickname", "profile_image", "account_email"},
		AuthURL:     kakaoAuthEndpoint,
		TokenURL:    kakaoTokenEndpoint,
		UserinfoURL: kakaoUserinfoEndpoint,
		SignupURL:   kakaoSignupEndpoint,
		http:        newHTTPClient(),
	}
}

// AuthorizeURL builds the provider consent page URL the frontend redirects to.
func (c *Client) AuthorizeURL() string {
	q := url.Values{
		"client_id":     {c.ClientID},
		"redirect_uri":  {c.RedirectURI},
		"response_type": {"code"},
		"scope":         {strings.Join(c.Scopes, " ")},
	}
	return c.AuthURL + "?" + q.Encode()
}

// ExchangeCode trades an authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"code":         {code},
		"client_id":    {c.ClientID},
		"redirect_uri": {c.RedirectURI},
		"grant_type":   {"authorization_code"},
	}
	if c.ClientSecret != "" {
		form.Set("client_secret", c.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return "", fmt.Errorf("%w: %s", ErrCodeInvalid, strings.TrimSpace(string(body)))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("%w: token endpoint status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var tr struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: no access_token in token response", ErrMalformedResponse)
	}
	return tr.AccessToken, nil
}

// FetchProfile retrieves the raw userinfo payload with a bearer token.
// For Kakao an unlinked identity yields ErrAppNotLinked; when the payload
// itself signals the unlinked state the pre-linkage payload is returned
// alongside the error so the caller can keep it if linkage turns out to be
// a no-op.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if kakaoErrCode(body) == kakaoCodeNotRegistered {
			return nil, ErrAppNotLinked
		}
		return nil, fmt.Errorf("%w: userinfo status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if linked, ok := raw["has_signed_up"].(bool); ok && !linked {
		return raw, ErrAppNotLinked
	}
	return raw, nil
}

// LinkApp performs the Kakao signup call that links the identity to this app.
// Kakao answering "already registered" is reported as ErrAlreadyLinked, which
// callers treat as success.
func (c *Client) LinkApp(ctx context.Context, accessToken string) error {
	if c.SignupURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.SignupURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	if kakaoErrCode(body) == kakaoCodeAlreadyRegistered {
		return ErrAlreadyLinked
	}
	return fmt.Errorf("%w: signup status %d", ErrProviderUnavailable, resp.StatusCode)
}

// ResolveProfile runs the full code-to-profile flow: exchange, fetch, Kakao
// linkage when needed, normalization. 2-3 sequential outbound calls, no
// internal retries.
func (c *Client) ResolveProfile(ctx context.Context, code string) (*NormalizedProfile, error) {
	token, err := c.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	raw, err := c.FetchProfile(ctx, token)
	if errors.Is(err, ErrAppNotLinked) {
		lerr := c.LinkApp(ctx, token)
		switch {
		case lerr == nil:
			if raw, err = c.FetchProfile(ctx, token); err != nil {
				return nil, err
			}
		case errors.Is(lerr, ErrAlreadyLinked) && raw != nil:
			// identity was linked after all; the payload we already have is valid
		case errors.Is(lerr, ErrAlreadyLinked):
			if raw, err = c.FetchProfile(ctx, token); err != nil {
				return nil, err
			}
		default:
			return nil, lerr
		}
	} else if err != nil {
		return nil, err
	}

	return Normalize(c.Provider, raw)
}

func kakaoErrCode(body []byte) int {
	var e struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return 0
	}
	return e.Code
}
