// Package entitlement checks subscription access against the Whop
// membership API.
package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIURL = "https://api.whop.com/v2"

// ErrMissingAPIKey signals that the membership API credential is absent.
// Both verification paths treat it as an error rather than a silent deny.
var ErrMissingAPIKey = errors.New("entitlement: API key is missing")

// ErrNoCompany is returned when the API key resolves to no company.
var ErrNoCompany = errors.New("entitlement: no company for API key")

// Member is a single membership record scoped to a company.
type Member struct {
	ID          string `json:"id"`
	AccessLevel string `json:"access_level"`
	Status      string `json:"status"`
	User        struct {
		Email string `json:"email"`
	} `json:"user"`
}

// Client queries the membership API with a bearer token.
type Client struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

// NewClient constructs a membership API client. An empty apiURL falls back
// to the hosted endpoint.
func NewClient(apiKey, apiURL string) *Client {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultAPIURL
	}
	return &Client{
		apiKey:     apiKey,
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// VerifyEmail reports whether the email belongs to a member with customer or
// admin access in the key's company.
func (c *Client) VerifyEmail(ctx context.Context, email string) (bool, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return false, ErrMissingAPIKey
	}

	companyID, err := c.companyID(ctx)
	if err != nil {
		return false, err
	}

	endpoint := fmt.Sprintf("%s/members?email=%s&company_id=%s",
		c.apiURL, url.QueryEscape(email), url.QueryEscape(companyID))

	var result struct {
		Data []Member `json:"data"`
	}
	if err := c.get(ctx, endpoint, &result); err != nil {
		return false, err
	}

	for _, member := range result.Data {
		if member.AccessLevel == "customer" || member.AccessLevel == "admin" {
			return true, nil
		}
	}
	return false, nil
}

// VerifyMembership reports whether the membership id is in an entitled
// state: active, trialing, or completed (one-time purchase).
func (c *Client) VerifyMembership(ctx context.Context, membershipID string) (bool, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return false, ErrMissingAPIKey
	}

	endpoint := fmt.Sprintf("%s/memberships/%s", c.apiURL, url.PathEscape(membershipID))

	var membership struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, endpoint, &membership); err != nil {
		return false, err
	}

	switch membership.Status {
	case "active", "trialing", "completed":
		return true, nil
	}
	return false, nil
}

func (c *Client) companyID(ctx context.Context) (string, error) {
	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.get(ctx, c.apiURL+"/companies", &result); err != nil {
		return "", err
	}
	if len(result.Data) == 0 || result.Data[0].ID == "" {
		return "", ErrNoCompany
	}
	return result.Data[0].ID, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("entitlement request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("entitlement API status %d (%s)", resp.StatusCode, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("entitlement response parse: %w", err)
	}
	return nil
}
