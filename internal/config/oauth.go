package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
)

// GoogleOAuthApp is one client section of a credentials file downloaded from the Google
// Cloud console. Only the fields needed to talk to the token endpoint are kept.
type GoogleOAuthApp struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
	AuthURI      string `json:"auth_uri" validate:"required,url"`
	TokenURI     string `json:"token_uri" validate:"required,url"`
}

// GoogleOAuthClient is a Google credentials file. Desktop clients carry an "installed"
// section and web clients a "web" section; exactly one must be present.
type GoogleOAuthClient struct {
	Installed *GoogleOAuthApp `json:"installed,omitempty" validate:"omitempty"`
	Web       *GoogleOAuthApp `json:"web,omitempty" validate:"omitempty"`
}

func (c *GoogleOAuthClient) app() *GoogleOAuthApp {
	if c.Installed != nil {
		return c.Installed
	}
	return c.Web
}

// OAuth2 returns the oauth2 config of the client for the given scopes. The redirect URL is
// left for the authorization flow to set.
func (c *GoogleOAuthClient) OAuth2(scopes ...string) *oauth2.Config {
	app := c.app()
	return &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   app.AuthURI,
			TokenURL:  app.TokenURI,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: scopes,
	}
}

// NeedsOAuth reports whether any configured notifier talks to a Google API
func (c *Config) NeedsOAuth() bool {
	return c.Notifications.Gmail != nil || c.Notifications.Sheets != nil
}

// LoadGoogleClient loads the Google credentials used by the notifiers. The path comes from
// notifications.oauthClientFile; without it "oauthClient.<env>.json" is searched in the
// current and home directories.
func (c *Config) LoadGoogleClient(env string) (*GoogleOAuthClient, error) {
	path := c.Notifications.OAuthClientFile
	if path == "" {
		name := "oauthClient.json"
		if env != "" {
			name = "oauthClient." + env + ".json"
		}
		found, err := findFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to find oauth client file: %w", err)
		}
		path = found
	}
	return LoadGoogleClientFromPath(path)
}

// LoadGoogleClientFromPath reads and validates a Google credentials file
func LoadGoogleClientFromPath(path string) (*GoogleOAuthClient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth client file: %w", err)
	}

	var client GoogleOAuthClient
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, fmt.Errorf("failed to parse oauth client file %s: %w", path, err)
	}
	if err := ValidateGoogleClient(&client); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &client, nil
}

// ValidateGoogleClient checks the credentials carry exactly one usable client section
func ValidateGoogleClient(client *GoogleOAuthClient) error {
	if (client.Installed == nil) == (client.Web == nil) {
		return errors.New("oauth client validation failed: need exactly one of installed or web")
	}
	if err := validate.Struct(client); err != nil {
		return fmt.Errorf("oauth client validation failed: %w", err)
	}
	return nil
}
