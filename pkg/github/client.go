// Package github implements the file store on top of a GitHub repository.
// Uploads become commits on one branch, created through the Git Data API so
// that every file of an upload lands in a single commit.
package github

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/emergent/skillsmarket/pkg/logger"
)

// DefaultBranch is used when Config.Branch is empty.
const DefaultBranch = "main"

// Config selects the repository and credentials.
type Config struct {
	Token  string `mapstructure:"token"`
	Owner  string `mapstructure:"owner"`
	Repo   string `mapstructure:"repo"`
	Branch string `mapstructure:"branch"`
	// BaseURL overrides the API endpoint, e.g. for GitHub Enterprise.
	BaseURL string `mapstructure:"base_url"`

	RetryAttempts uint          `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	var missing []string
	if c.Owner == "" {
		missing = append(missing, "owner")
	}
	if c.Repo == "" {
		missing = append(missing, "repo")
	}
	if len(missing) > 0 {
		return errors.Errorf("github store is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func newClient(ctx context.Context, cfg Config) (*github.Client, error) {
	log := logger.G(ctx)

	var client *github.Client
	if cfg.Token == "" {
		log.Warn("No GitHub token provided - API rate limits will be restricted and commits will fail")
		client = github.NewClient(nil)
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		client = github.NewClient(oauth2.NewClient(ctx, ts))
		log.Debug("GitHub client initialized with authentication")
	}

	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, errors.Wrap(err, "invalid github base url")
		}
		client.BaseURL = u
	}
	return client, nil
}
