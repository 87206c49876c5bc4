package okapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

const (
	loginPath     = "/authn/login"
	usersPath     = "/users"
	discoveryPath = "/_/discovery/modules"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates against Okapi, keeps the returned token for later
// requests and returns it.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("username and password are required")
	}
	resp, err := c.send(ctx, http.MethodPost, loginPath, credentials{Username: username, Password: password})
	if err != nil {
		return "", err
	}
	defer closeResponse(resp)
	if _, err := readBody(http.MethodPost, c.Resolve(loginPath), resp); err != nil {
		return "", err
	}

	token := resp.Header.Get(HeaderToken)
	if token == "" {
		return "", fmt.Errorf("login succeeded but no %s header was returned", HeaderToken)
	}
	c.token = token
	c.logger.Debugf("logged in as %s on tenant %s", username, c.tenant)
	return token, nil
}

// GetUser returns the user record with the given username.
func (c *Client) GetUser(ctx context.Context, username string) ([]byte, error) {
	query := url.Values{"query": {fmt.Sprintf("username==%s", username)}}
	body, err := c.Get(ctx, usersPath+"?"+query.Encode())
	if err != nil {
		return nil, err
	}
	users := gjson.GetBytes(body, "users")
	if !users.IsArray() || len(users.Array()) == 0 {
		return nil, fmt.Errorf("user %s not found", username)
	}
	return []byte(users.Array()[0].Raw), nil
}

// Module is one entry of the Okapi discovery registry.
type Module struct {
	SrvcID  string `json:"srvcId"`
	InstID  string `json:"instId"`
	URL     string `json:"url"`
	NodeID  string `json:"nodeId,omitempty"`
	Healthy bool   `json:"healthy,omitempty"`
}

// LookupModule returns the deployed modules whose service id starts with name.
func (c *Client) LookupModule(ctx context.Context, name string) ([]Module, error) {
	body, err := c.Get(ctx, discoveryPath)
	if err != nil {
		return nil, err
	}
	var modules []Module
	if err := json.Unmarshal(body, &modules); err != nil {
		return nil, fmt.Errorf("failed to decode discovery response: %w", err)
	}
	return lo.Filter(modules, func(m Module, _ int) bool {
		return strings.HasPrefix(m.SrvcID, name)
	}), nil
}
