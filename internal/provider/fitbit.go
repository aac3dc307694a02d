package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/bikedataproject/identity-api/internal/config"
	"github.com/bikedataproject/identity-api/internal/domain/entity"
)

// FitbitClient implements Client against the Fitbit OAuth2 and Web APIs.
type FitbitClient struct {
	cfg        config.ProviderConfig
	oauth      oauth2.Config
	httpClient *http.Client
}

func NewFitbitClient(cfg config.ProviderConfig) (*FitbitClient, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("provider client id and secret are required")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"activity", "profile", "location"}
	}
	return &FitbitClient{
		cfg: cfg,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *FitbitClient) AuthCodeURL(redirectURL string) string {
	conf := c.oauth
	conf.RedirectURL = redirectURL
	return conf.AuthCodeURL("")
}

func (c *FitbitClient) ExchangeCode(ctx context.Context, code, redirectURL string) (entity.TokenBundle, string, error) {
	conf := c.oauth
	conf.RedirectURL = redirectURL

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return entity.TokenBundle{}, "", fmt.Errorf("code exchange failed: %w", err)
	}

	userID := extraString(token, "user_id")
	if userID == "" {
		return entity.TokenBundle{}, "", fmt.Errorf("token response did not include a provider user id")
	}

	return bundleFromToken(token), userID, nil
}

func (c *FitbitClient) Refresh(ctx context.Context, refreshToken string) (entity.TokenBundle, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return entity.TokenBundle{}, fmt.Errorf("refresh token is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	// An already-expired token forces the token source to refresh immediately.
	stale := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Now().Add(-time.Minute)}
	token, err := c.oauth.TokenSource(ctx, stale).Token()
	if err != nil {
		return entity.TokenBundle{}, fmt.Errorf("refresh exchange failed: %w", err)
	}
	return bundleFromToken(token), nil
}

func (c *FitbitClient) FetchProfile(ctx context.Context, bundle entity.TokenBundle) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ProfileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bundle.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("profile request status=%d body=%s", resp.StatusCode, string(body))
	}

	var payload struct {
		User struct {
			EncodedID   string `json:"encodedId"`
			DisplayName string `json:"displayName"`
			FullName    string `json:"fullName"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}
	if payload.User.EncodedID == "" {
		return nil, fmt.Errorf("profile response missing user id")
	}

	displayName := strings.TrimSpace(payload.User.DisplayName)
	if displayName == "" {
		displayName = strings.TrimSpace(payload.User.FullName)
	}

	return &Profile{
		UserID:      payload.User.EncodedID,
		DisplayName: displayName,
	}, nil
}

func bundleFromToken(token *oauth2.Token) entity.TokenBundle {
	expiresIn := extraInt(token, "expires_in")
	if expiresIn <= 0 && !token.Expiry.IsZero() {
		expiresIn = int(time.Until(token.Expiry).Seconds())
	}
	return entity.TokenBundle{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scope:        extraString(token, "scope"),
		ExpiresIn:    expiresIn,
		IssuedAt:     time.Now(),
	}
}

func extraString(token *oauth2.Token, key string) string {
	if v, ok := token.Extra(key).(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func extraInt(token *oauth2.Token, key string) int {
	switch v := token.Extra(key).(type) {
	case float64:
		return int(v)
	case int64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}
