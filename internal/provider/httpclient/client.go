// Package httpclient implements the provider.Client contract against the identity
// provider's JSON HTTP API.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	factordomain "stepup-gateway/internal/factor/domain"
	"stepup-gateway/internal/provider"
)

const defaultTimeout = 15 * time.Second

// Client talks to the identity provider over HTTP. The per-request context still
// bounds each call; Timeout on HTTPClient is a backstop.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// New returns a Client for the given base URL (e.g. https://idp.internal) and API key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type factorJSON struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

type enrollResponse struct {
	ID         string `json:"id"`
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

type challengeResponse struct {
	ID       string    `json:"id"`
	IssuedAt time.Time `json:"issued_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ListFactors returns all factors for the administrator.
func (c *Client) ListFactors(ctx context.Context, adminID string) ([]factordomain.Factor, error) {
	var out []factorJSON
	path := "/api/v1/admins/" + url.PathEscape(adminID) + "/factors"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	factors := make([]factordomain.Factor, 0, len(out))
	for _, f := range out {
		factors = append(factors, factordomain.Factor{
			ID:        f.ID,
			Status:    factordomain.FactorStatus(f.Status),
			Label:     f.Label,
			CreatedAt: f.CreatedAt,
		})
	}
	return factors, nil
}

// EnrollFactor creates a new TOTP factor and returns its provisioning material.
func (c *Client) EnrollFactor(ctx context.Context, adminID, label string) (*factordomain.EnrollmentMaterial, error) {
	body := map[string]string{"type": "totp", "label": label}
	var out enrollResponse
	path := "/api/v1/admins/" + url.PathEscape(adminID) + "/factors"
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &factordomain.EnrollmentMaterial{
		FactorID:   out.ID,
		Secret:     out.Secret,
		OTPAuthURL: out.OTPAuthURL,
	}, nil
}

// UnenrollFactor deletes the factor. Nil return means the provider confirmed the delete.
func (c *Client) UnenrollFactor(ctx context.Context, factorID string) error {
	path := "/api/v1/factors/" + url.PathEscape(factorID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// CreateChallenge issues a fresh challenge for the factor.
func (c *Client) CreateChallenge(ctx context.Context, factorID string) (*factordomain.Challenge, error) {
	var out challengeResponse
	path := "/api/v1/factors/" + url.PathEscape(factorID) + "/challenges"
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	issued := out.IssuedAt
	if issued.IsZero() {
		issued = time.Now().UTC()
	}
	return &factordomain.Challenge{ID: out.ID, FactorID: factorID, IssuedAt: issued}, nil
}

// VerifyChallenge submits the code against the challenge.
func (c *Client) VerifyChallenge(ctx context.Context, factorID, challengeID, code string) error {
	body := map[string]string{"code": code}
	path := "/api/v1/factors/" + url.PathEscape(factorID) +
		"/challenges/" + url.PathEscape(challengeID) + "/verify"
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// do performs one request and decodes the response into out (if non-nil).
// Transport failures and 5xx map to provider.ErrTransient; 404 to ErrFactorNotFound;
// 4xx verify rejections map via the error code in the response body.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.BaseURL == "" {
		return fmt.Errorf("provider: base URL not configured")
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusNotFound:
		return provider.ErrFactorNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", provider.ErrTransient, resp.StatusCode)
	default:
		raw, _ := io.ReadAll(resp.Body)
		var er errorResponse
		_ = json.Unmarshal(raw, &er)
		switch er.Error {
		case "code_invalid":
			return provider.ErrCodeInvalid
		case "challenge_expired":
			return provider.ErrChallengeExpired
		case "factor_not_found":
			return provider.ErrFactorNotFound
		}
		return fmt.Errorf("provider: request failed status=%d body=%s", resp.StatusCode, string(raw))
	}
}
