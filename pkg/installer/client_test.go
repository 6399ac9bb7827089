package installer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent/skillsmarket/pkg/api"
	"github.com/emergent/skillsmarket/pkg/catalog"
)

func TestAPIURL(t *testing.T) {
	t.Setenv(APIURLEnv, "")
	assert.Equal(t, DefaultAPIURL, APIURL())

	t.Setenv(APIURLEnv, " http://localhost:8787/ ")
	assert.Equal(t, "http://localhost:8787", APIURL())
}

func TestClient_RetriesServerErrorsOnGet(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"1","name":"foo","version":"1.0.0"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRetry(3, time.Millisecond))
	skills, err := client.SearchSkills(context.Background(), "foo")
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, "foo", skills[0].Name)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Not found","message":"Skill not found","statusCode":404}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRetry(3, time.Millisecond))
	_, err := client.GetSkill(context.Background(), "abc")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Skill not found", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_PostIsSentOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error","message":"files were committed but indexing failed","statusCode":500,"revision":"abc123"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRetry(3, time.Millisecond))
	_, err := client.UploadBatch(context.Background(), api.BatchUploadRequest{})
	require.Error(t, err)
	assert.Equal(t, "files were committed but indexing failed (revision abc123)", err.Error())
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_FetchFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("content"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRetry(2, time.Millisecond))

	content, err := client.FetchFile(context.Background(), catalog.FileEntry{Name: "SKILL.md", DownloadURL: srv.URL + "/ok"})
	require.NoError(t, err)
	assert.Equal(t, "content", string(content))

	_, err = client.FetchFile(context.Background(), catalog.FileEntry{Name: "gone.md", DownloadURL: srv.URL + "/missing"})
	assert.EqualError(t, err, `failed to download "gone.md": HTTP 404 Not Found`)
}

func TestStripPrefix(t *testing.T) {
	tests := []struct {
		file, prefix, want string
	}{
		{"skills/global/foo/SKILL.md", "skills/global/foo", "SKILL.md"},
		{"skills/global/foo/scripts/run.sh", "skills/global/foo/", "scripts/run.sh"},
		{`skills\global\foo\a.md`, "skills/global/foo", "a.md"},
		{"elsewhere/readme.md", "skills/global/foo", "readme.md"},
		{"skills/global/foobar/x.md", "skills/global/foo", "x.md"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripPrefix(tt.file, tt.prefix), tt.file)
	}
}

func TestProviders(t *testing.T) {
	tests := []struct {
		target      catalog.Target
		scope       catalog.Scope
		wantDir     string
		wantDisplay string
	}{
		{catalog.TargetClaude, catalog.ScopeGlobal, "/home/dev/.claude/foo", "~/.claude/foo"},
		{catalog.TargetClaude, catalog.ScopeProject, "/src/app/.claude/foo", ".claude/foo"},
		{catalog.TargetCopilot, catalog.ScopeGlobal, "/home/dev/.copilot/skills/foo", "~/.copilot/skills/foo"},
		{catalog.TargetCopilot, catalog.ScopeProject, "/src/app/.copilot/skills/foo", ".copilot/skills/foo"},
	}
	for _, tt := range tests {
		t.Run(string(tt.target)+"/"+string(tt.scope), func(t *testing.T) {
			p, err := ProviderFor(tt.target)
			require.NoError(t, err)
			base := "/home/dev"
			if tt.scope == catalog.ScopeProject {
				base = "/src/app"
			}
			assert.Equal(t, tt.wantDir, p.Dir(base, "foo"))
			assert.Equal(t, tt.wantDisplay, p.DisplayPath(tt.scope, "foo"))
		})
	}

	_, err := ProviderFor("cursor")
	assert.Error(t, err)
	assert.Equal(t, []string{"Claude Code", "GitHub Copilot"}, []string{Providers()[0].Name, Providers()[1].Name})
}
