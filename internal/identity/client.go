package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/organization/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrUserNotFound = errors.New("identity_user_not_found")

const (
	defaultTimeout   = 10 * time.Second
	maxErrorBodySize = 512
)

// UserRepresentation is the subset of the Keycloak admin user resource the
// service reads.
type UserRepresentation struct {
	ID         string              `json:"id"`
	Username   string              `json:"username"`
	Email      string              `json:"email"`
	FirstName  string              `json:"firstName"`
	LastName   string              `json:"lastName"`
	Enabled    bool                `json:"enabled"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// Client talks to the Keycloak admin REST API with a service account token.
type Client struct {
	http    *http.Client
	baseURL string
	realm   string
}

// NewClient returns nil when the identity provider is disabled.
func NewClient(cfg config.Config) (*Client, error) {
	kc := cfg.Keycloak
	if !kc.Enabled {
		return nil, nil
	}
	if kc.BaseURL == "" || kc.Realm == "" || kc.ClientID == "" {
		return nil, errors.New("keycloak base url, realm and client id are required")
	}
	timeout := kc.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return newClient(kc.BaseURL, kc.Realm, kc.ClientID, kc.ClientSecret, &http.Client{Timeout: timeout}), nil
}

func newClient(baseURL, realm, clientID, clientSecret string, base *http.Client) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", baseURL, url.PathEscape(realm)),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := cc.Client(ctx)
	httpClient.Timeout = base.Timeout
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		realm:   realm,
	}
}

func (c *Client) GetUser(ctx context.Context, id domain.UserID) (UserRepresentation, error) {
	var user UserRepresentation
	if err := c.do(ctx, http.MethodGet, c.userURL(id), nil, &user); err != nil {
		return UserRepresentation{}, err
	}
	return user, nil
}

// UpdateAttributes merges attrs into the user's attribute map. Keycloak
// replaces the whole map on update, so the current one is read first.
func (c *Client) UpdateAttributes(ctx context.Context, id domain.UserID, attrs map[string][]string) error {
	user, err := c.GetUser(ctx, id)
	if err != nil {
		return err
	}
	merged := make(map[string][]string, len(user.Attributes)+len(attrs))
	for k, v := range user.Attributes {
		merged[k] = v
	}
	for k, v := range attrs {
		merged[k] = v
	}
	user.Attributes = merged
	return c.do(ctx, http.MethodPut, c.userURL(id), user, nil)
}

func (c *Client) userURL(id domain.UserID) string {
	return fmt.Sprintf("%s/admin/realms/%s/users/%s", c.baseURL, url.PathEscape(c.realm), url.PathEscape(id.String()))
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("keycloak %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrUserNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("keycloak %s %s: status %d: %s", method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
