package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/damon-houk/paylog/internal/domain/entity"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
	"golang.org/x/oauth2"
)

const maxRetries = 3

// UserInfoClient verifies session tokens by presenting them to the identity
// provider's OpenID Connect userinfo endpoint
type UserInfoClient struct {
	userInfoURL string
	httpClient  *http.Client
	backoff     time.Duration
	logger      logger.Logger
}

// NewUserInfoClient creates a new userinfo client
func NewUserInfoClient(userInfoURL string, httpClient *http.Client, log logger.Logger) *UserInfoClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &UserInfoClient{
		userInfoURL: userInfoURL,
		httpClient:  httpClient,
		backoff:     time.Second,
		logger:      log,
	}
}

// UserInfoResponse represents the claims returned by the userinfo endpoint
type UserInfoResponse struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

// Verify returns the subject of the session the token belongs to. A token the
// provider rejects yields ErrUnauthenticated.
func (c *UserInfoClient) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", entity.ErrUnauthenticated
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), ts)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		info, err := c.fetch(ctx, client)
		if err == nil {
			if info.Subject == "" {
				return "", fmt.Errorf("%w: userinfo has no subject", entity.ErrUnauthenticated)
			}
			return info.Subject, nil
		}

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return "", err
		}
		lastErr = err

		if attempt < maxRetries {
			// Wait with exponential backoff before retrying
			backoffTime := time.Duration(attempt*attempt) * c.backoff
			c.logger.Warn("Userinfo request failed, retrying", map[string]interface{}{
				"attempt":    attempt,
				"error":      err.Error(),
				"backoff_ms": backoffTime.Milliseconds(),
			})

			select {
			case <-ctx.Done():
				return "", fmt.Errorf("userinfo request cancelled: %w", ctx.Err())
			case <-time.After(backoffTime):
			}
		}
	}

	return "", fmt.Errorf("userinfo request failed after %d attempts: %w", maxRetries, lastErr)
}

func (c *UserInfoClient) fetch(ctx context.Context, client *http.Client) (*UserInfoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &retryableError{err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Error closing response body", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("failed to read response body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: identity provider rejected token (status %d)", entity.ErrUnauthenticated, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &retryableError{err: fmt.Errorf("identity provider returned status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("identity provider returned status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var info UserInfoResponse
	if err := json.Unmarshal(bodyBytes, &info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	return &info, nil
}
