package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/warden-auth/warden/internal/users"
)

const (
	discordAPIBase   = "https://discord.com/api/v10"
	discordAuthorize = "https://discord.com/oauth2/authorize"
)

// ProviderGrant is the outcome of redeeming an authorization code: the
// synchronized profile plus the provider's own refresh token so it can be
// stored for later use.
type ProviderGrant struct {
	Profile      users.Profile
	RefreshToken string
	ExpiresIn    time.Duration
}

// DiscordClient wraps the OAuth2 code exchange and identity lookup against
// the Discord API.
type DiscordClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	baseURL      string
	httpClient   *http.Client
}

// NewDiscordClient constructs a new client.
func NewDiscordClient(clientID, clientSecret, redirectURI string) *DiscordClient {
	return &DiscordClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		baseURL:      discordAPIBase,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithBaseURL points the client at an alternative API endpoint. Used in tests.
func (c *DiscordClient) WithBaseURL(base string) *DiscordClient {
	c.baseURL = base
	return c
}

// AuthorizeURL builds the consent URL the browser is redirected to.
func (c *DiscordClient) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", "identify email")
	q.Set("state", state)
	return discordAuthorize + "?" + q.Encode()
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type discordUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
}

// ExchangeCode redeems an authorization code and fetches the profile it
// belongs to.
func (c *DiscordClient) ExchangeCode(ctx context.Context, code string) (*ProviderGrant, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)
	return c.redeem(ctx, form)
}

// RefreshExchange redeems a stored provider refresh token for a fresh grant
// and the profile it belongs to. Discord rotates the refresh token on every
// redemption, so the returned grant carries the replacement.
func (c *DiscordClient) RefreshExchange(ctx context.Context, refreshToken string) (*ProviderGrant, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.redeem(ctx, form)
}

func (c *DiscordClient) redeem(ctx context.Context, form url.Values) (*ProviderGrant, error) {
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/oauth2/token", c.baseURL), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("discord token exchange returned status %d", resp.StatusCode)
	}
	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode discord token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("discord token exchange returned no access token")
	}

	profile, err := c.fetchProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}
	return &ProviderGrant{
		Profile:      *profile,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    time.Duration(token.ExpiresIn) * time.Second,
	}, nil
}

func (c *DiscordClient) fetchProfile(ctx context.Context, accessToken string) (*users.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/users/@me", c.baseURL), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("discord profile fetch returned status %d", resp.StatusCode)
	}
	var du discordUser
	if err := json.NewDecoder(resp.Body).Decode(&du); err != nil {
		return nil, fmt.Errorf("decode discord profile: %w", err)
	}
	if du.ID == "" {
		return nil, fmt.Errorf("discord profile missing id")
	}
	return &users.Profile{
		ExternalID:    du.ID,
		Username:      du.Username,
		Email:         du.Email,
		Discriminator: du.Discriminator,
		Avatar:        du.Avatar,
	}, nil
}
