// Package installer pulls skills from the marketplace API onto a developer
// machine and pushes local bundles back up.
package installer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/api"
	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/logger"
	"github.com/emergent/skillsmarket/pkg/marketplace"
	"github.com/emergent/skillsmarket/pkg/upload"
)

// DefaultAPIURL is used when EMERGENT_API_URL is unset.
const DefaultAPIURL = "https://skills.emergentsoftware.io"

// APIURLEnv names the environment variable that overrides the API URL.
const APIURLEnv = "EMERGENT_API_URL"

// APIURL returns the marketplace API base URL from the environment.
func APIURL() string {
	if u := strings.TrimSpace(os.Getenv(APIURLEnv)); u != "" {
		return strings.TrimRight(u, "/")
	}
	return DefaultAPIURL
}

// APIError is a non-2xx answer from the marketplace.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client talks to the marketplace HTTP API.
type Client struct {
	baseURL  string
	http     *http.Client
	attempts uint
	delay    time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.http = c }
}

// WithRetry sets the number of attempts and the initial backoff delay.
func WithRetry(attempts uint, delay time.Duration) ClientOption {
	return func(cl *Client) {
		cl.attempts = attempts
		cl.delay = delay
	}
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 60 * time.Second},
		attempts: 3,
		delay:    300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetSkill fetches one skill by id.
func (c *Client) GetSkill(ctx context.Context, id string) (*catalog.Skill, error) {
	var skill catalog.Skill
	if err := c.getJSON(ctx, "/api/skills/"+url.PathEscape(id), &skill); err != nil {
		return nil, err
	}
	return &skill, nil
}

// SearchSkills lists skills whose name contains term.
func (c *Client) SearchSkills(ctx context.Context, term string) ([]catalog.Skill, error) {
	p := "/api/skills"
	if term != "" {
		p += "?" + url.Values{"search": {term}}.Encode()
	}
	var skills []catalog.Skill
	if err := c.getJSON(ctx, p, &skills); err != nil {
		return nil, err
	}
	return skills, nil
}

// Download fetches the skill with its file listing. The server counts every
// call as a download.
func (c *Client) Download(ctx context.Context, id string) (*catalog.SkillDownload, error) {
	var download catalog.SkillDownload
	if err := c.getJSON(ctx, "/api/skills/"+url.PathEscape(id)+"/download", &download); err != nil {
		return nil, err
	}
	return &download, nil
}

// ListProjects lists every project with its client name.
func (c *Client) ListProjects(ctx context.Context) ([]catalog.ProjectWithClient, error) {
	var projects []catalog.ProjectWithClient
	if err := c.getJSON(ctx, "/api/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ProjectSkills lists the skills visible from a project.
func (c *Client) ProjectSkills(ctx context.Context, projectID string) ([]catalog.ProjectSkill, error) {
	var skills []catalog.ProjectSkill
	if err := c.getJSON(ctx, "/api/projects/"+url.PathEscape(projectID)+"/skills", &skills); err != nil {
		return nil, err
	}
	return skills, nil
}

// UploadBatch sends an already classified batch.
func (c *Client) UploadBatch(ctx context.Context, req api.BatchUploadRequest) (*upload.Created, error) {
	var created upload.Created
	if err := c.postJSON(ctx, "/api/upload/batch", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UploadFiles sends a raw file tree for the server to classify.
func (c *Client) UploadFiles(ctx context.Context, req api.FilesUploadRequest) (*marketplace.UploadResult, error) {
	var result marketplace.UploadResult
	if err := c.postJSON(ctx, "/api/upload", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchFile downloads the raw content behind a file's download URL.
func (c *Client) FetchFile(ctx context.Context, file catalog.FileEntry) ([]byte, error) {
	var content []byte
	err := c.retry(ctx, "download "+file.Name, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.DownloadURL, nil)
		if err != nil {
			return retry.Unrecoverable(errors.Wrapf(err, "invalid download url for %s", file.Name))
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := errors.Errorf("failed to download %q: HTTP %d %s", file.Name, resp.StatusCode, http.StatusText(resp.StatusCode))
			if resp.StatusCode < http.StatusInternalServerError {
				return retry.Unrecoverable(err)
			}
			return err
		}
		content, err = io.ReadAll(resp.Body)
		return err
	})
	return content, err
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) getJSON(ctx context.Context, p string, out any) error {
	return c.do(ctx, http.MethodGet, p, nil, out)
}

func (c *Client) postJSON(ctx context.Context, p string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}
	return c.do(ctx, http.MethodPost, p, raw, out)
}

// do sends one API request. GETs are retried on transport errors and 5xx
// answers; POSTs are sent once since uploads are not idempotent.
func (c *Client) do(ctx context.Context, method, p string, body []byte, out any) error {
	call := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, reader)
		if err != nil {
			return retry.Unrecoverable(errors.Wrap(err, "failed to build request"))
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return errors.Wrapf(err, "%s %s", method, p)
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "failed to read response")
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := decodeAPIError(resp.StatusCode, payload)
			if resp.StatusCode < http.StatusInternalServerError {
				return retry.Unrecoverable(apiErr)
			}
			return apiErr
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return retry.Unrecoverable(errors.Wrap(err, "failed to decode response"))
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return retry.Unrecoverable(errors.Wrap(err, "failed to decode response data"))
		}
		return nil
	}

	attempts := c.attempts
	if method != http.MethodGet {
		attempts = 1
	}
	return c.retryN(ctx, attempts, method+" "+p, call)
}

func (c *Client) retry(ctx context.Context, what string, call func() error) error {
	return c.retryN(ctx, c.attempts, what, call)
}

func (c *Client) retryN(ctx context.Context, attempts uint, what string, call func() error) error {
	return retry.Do(
		call,
		retry.Attempts(attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).WithField("call", what).Debug("retrying marketplace request")
		}),
	)
}

func decodeAPIError(status int, payload []byte) *APIError {
	var body api.ErrorResponse
	if err := json.Unmarshal(payload, &body); err == nil && body.Message != "" {
		msg := body.Message
		if body.Revision != "" {
			msg = fmt.Sprintf("%s (revision %s)", msg, body.Revision)
		}
		return &APIError{StatusCode: status, Message: msg}
	}
	return &APIError{StatusCode: status, Message: fmt.Sprintf("API request failed: %d %s", status, http.StatusText(status))}
}
