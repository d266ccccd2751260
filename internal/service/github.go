package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/ziminpro/ums/internal/domain"
)

// GitHubProfile is the subset of the GitHub user payload the service
// consumes. Email is empty when the account has no public email.
type GitHubProfile struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// GitHubProvider is the outbound OAuth collaborator.
type GitHubProvider interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (*GitHubProfile, error)
	FetchPrimaryEmail(ctx context.Context, accessToken string) (string, error)
}

// GitHubClient talks to GitHub's OAuth and REST endpoints.
type GitHubClient struct {
	oauth  *oauth2.Config
	apiURL string
}

// NewGitHubClient creates a GitHubClient for the given OAuth app.
func NewGitHubClient(clientID, clientSecret, redirectURL string) *GitHubClient {
	return &GitHubClient{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"user:email"},
			RedirectURL:  redirectURL,
		},
		apiURL: "https://api.github.com",
	}
}

// AuthCodeURL returns the GitHub consent page URL for the given state.
func (c *GitHubClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for an access token. A refusal
// from GitHub surfaces as *domain.OAuthExchangeError carrying the
// provider's description.
func (c *GitHubClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			desc := retrieveErr.ErrorDescription
			if desc == "" {
				desc = retrieveErr.ErrorCode
			}
			if desc == "" {
				desc = retrieveErr.Error()
			}
			return "", &domain.OAuthExchangeError{Description: desc}
		}
		return "", fmt.Errorf("github token exchange: %w", err)
	}
	return token.AccessToken, nil
}

// FetchProfile retrieves the authenticated GitHub user.
func (c *GitHubClient) FetchProfile(ctx context.Context, accessToken string) (*GitHubProfile, error) {
	var profile GitHubProfile
	if err := c.get(ctx, "/user", accessToken, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

type githubEmail struct {
	Email   string `json:"email"`
	Primary bool   `json:"primary"`
}

// FetchPrimaryEmail retrieves the user's primary email from the email
// list. An account with no primary email is an error: the flow cannot
// proceed without one.
func (c *GitHubClient) FetchPrimaryEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []githubEmail
	if err := c.get(ctx, "/user/emails", accessToken, &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary {
			return e.Email, nil
		}
	}
	return "", fmt.Errorf("no primary email for github user")
}

func (c *GitHubClient) get(ctx context.Context, path, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("github %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode github %s response: %w", path, err)
	}
	return nil
}
