// Package facebook reads profile data from the Facebook Graph API.
package facebook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrInvalidToken is returned when Graph rejects the access token.
var ErrInvalidToken = errors.New("facebook: access token rejected")

const profileFields = "id,name,first_name,email,gender"

// Profile is the subset of a Graph user the app stores.
type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Gender    string `json:"gender"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json")
	return &Client{http: c}
}

// Me returns the profile owning userToken.
func (c *Client) Me(ctx context.Context, userToken string) (*Profile, error) {
	return c.get(ctx, "/me", userToken)
}

// User returns the public profile of facebookID, read with an app token.
func (c *Client) User(ctx context.Context, facebookID, appToken string) (*Profile, error) {
	if facebookID == "" {
		return nil, fmt.Errorf("facebook: empty user id")
	}
	return c.get(ctx, "/"+facebookID, appToken)
}

func (c *Client) get(ctx context.Context, path, token string) (*Profile, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	var profile Profile
	var gerr graphError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       profileFields,
			"access_token": token,
		}).
		SetResult(&profile).
		SetError(&gerr).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("facebook request: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized,
		resp.StatusCode() == http.StatusBadRequest && gerr.Error.Type == "OAuthException":
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, gerr.Error.Message)
	case resp.IsError():
		return nil, fmt.Errorf("facebook: status %d: %s", resp.StatusCode(), gerr.Error.Message)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("facebook: response without id")
	}
	return &profile, nil
}
