package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent/skillsmarket/pkg/filestore"
)

// fakeGitHub serves the subset of the REST API used by Store.
type fakeGitHub struct {
	mu      sync.Mutex
	head    string
	blobs   map[string][]byte
	trees   map[string]map[string][]byte
	commits map[string]string // commit sha -> tree sha
	files   map[string][]byte // files at head

	lastMessage string
	lastParents []string
	failBlobs   int
	requests    int
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		head:    "commit-0",
		blobs:   map[string][]byte{},
		trees:   map[string]map[string][]byte{"tree-0": {}},
		commits: map[string]string{"commit-0": "tree-0"},
		files:   map[string][]byte{},
	}
}

type fakeState struct {
	head        string
	files       map[string][]byte
	lastMessage string
	lastParents []string
	failBlobs   int
	requests    int
}

func (f *fakeGitHub) state() fakeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeState{
		head:        f.head,
		files:       f.files,
		lastMessage: f.lastMessage,
		lastParents: f.lastParents,
		failBlobs:   f.failBlobs,
		requests:    f.requests,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeGitHub) handler() http.Handler {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			f.requests++
			f.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})
	repo := r.PathPrefix("/repos/acme/skills").Subrouter()

	repo.HandleFunc("/git/ref/heads/main", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ref":    "refs/heads/main",
			"object": map[string]string{"sha": f.head, "type": "commit"},
		})
	}).Methods(http.MethodGet)

	repo.HandleFunc("/git/commits/{sha}", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		sha := mux.Vars(req)["sha"]
		tree, ok := f.commits[sha]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"sha": sha, "tree": map[string]string{"sha": tree}})
	}).Methods(http.MethodGet)

	repo.HandleFunc("/git/blobs", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Content  string `json:"content"`
			Encoding string `json:"encoding"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failBlobs > 0 {
			f.failBlobs--
			writeJSON(w, http.StatusBadGateway, map[string]string{"message": "Server Error"})
			return
		}
		content, err := base64.StdEncoding.DecodeString(body.Content)
		if err != nil || body.Encoding != "base64" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "bad blob"})
			return
		}
		sha := fmt.Sprintf("blob-%d", len(f.blobs)+1)
		f.blobs[sha] = content
		writeJSON(w, http.StatusCreated, map[string]string{"sha": sha})
	}).Methods(http.MethodPost)

	repo.HandleFunc("/git/trees", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			BaseTree string `json:"base_tree"`
			Tree     []struct {
				Path string `json:"path"`
				Mode string `json:"mode"`
				Type string `json:"type"`
				SHA  string `json:"sha"`
			} `json:"tree"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		base, ok := f.trees[body.BaseTree]
		if !ok {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "unknown base tree"})
			return
		}
		next := map[string][]byte{}
		for p, c := range base {
			next[p] = c
		}
		for _, e := range body.Tree {
			next[e.Path] = f.blobs[e.SHA]
		}
		sha := fmt.Sprintf("tree-%d", len(f.trees))
		f.trees[sha] = next
		writeJSON(w, http.StatusCreated, map[string]string{"sha": sha})
	}).Methods(http.MethodPost)

	repo.HandleFunc("/git/commits", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Message string   `json:"message"`
			Tree    string   `json:"tree"`
			Parents []string `json:"parents"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		sha := fmt.Sprintf("commit-%d", len(f.commits))
		f.commits[sha] = body.Tree
		f.lastMessage = body.Message
		f.lastParents = body.Parents
		writeJSON(w, http.StatusCreated, map[string]string{"sha": sha})
	}).Methods(http.MethodPost)

	repo.HandleFunc("/git/refs/heads/main", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			SHA   string `json:"sha"`
			Force bool   `json:"force"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.head = body.SHA
		f.files = f.trees[f.commits[body.SHA]]
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ref":    "refs/heads/main",
			"object": map[string]string{"sha": f.head, "type": "commit"},
		})
	}).Methods(http.MethodPatch)

	repo.PathPrefix("/contents/").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		p := strings.TrimPrefix(req.URL.Path, "/repos/acme/skills/contents/")

		f.mu.Lock()
		defer f.mu.Unlock()
		if content, ok := f.files[p]; ok {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"type":     "file",
				"name":     path.Base(p),
				"path":     p,
				"size":     len(content),
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString(content),
			})
			return
		}

		children := map[string]map[string]interface{}{}
		for fp, content := range f.files {
			if !strings.HasPrefix(fp, p+"/") {
				continue
			}
			rest := strings.TrimPrefix(fp, p+"/")
			name, _, nested := strings.Cut(rest, "/")
			if nested {
				children[name] = map[string]interface{}{"type": "dir", "name": name, "path": p + "/" + name}
				continue
			}
			children[name] = map[string]interface{}{
				"type":         "file",
				"name":         name,
				"path":         fp,
				"size":         len(content),
				"download_url": "https://raw.example.com/acme/skills/main/" + fp,
			}
		}
		if len(children) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		names := make([]string, 0, len(children))
		for name := range children {
			names = append(names, name)
		}
		sort.Strings(names)
		listing := make([]map[string]interface{}, 0, len(names))
		for _, name := range names {
			listing = append(listing, children[name])
		}
		writeJSON(w, http.StatusOK, listing)
	}).Methods(http.MethodGet)

	return r
}

func newTestStore(t *testing.T, fake *fakeGitHub) *Store {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	s, err := NewStore(context.Background(), Config{
		Token:         "test-token",
		Owner:         "acme",
		Repo:          "skills",
		BaseURL:       server.URL,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})
	require.NoError(t, err)
	return s
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Owner: "acme", Repo: "skills"}.Validate())
	err := Config{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner, repo")
}

func TestStore_CommitFiles(t *testing.T) {
	fake := newFakeGitHub()
	s := newTestStore(t, fake)
	ctx := context.Background()

	commit, err := s.CommitFiles(ctx, []filestore.File{
		{Path: "skills/global/foo/SKILL.md", Content: []byte("---\nname: foo\n---\n")},
		{Path: "skills/global/foo/scripts/run.sh", Content: []byte("echo foo")},
		{Path: "agents/global/reviewer/reviewer.md", Content: []byte("agent")},
	}, "Batch upload: foo, reviewer")
	require.NoError(t, err)

	assert.Equal(t, "commit-1", commit.SHA)
	assert.Equal(t, 3, commit.Files)
	assert.Equal(t, "Batch upload: foo, reviewer", fake.state().lastMessage)
	assert.Equal(t, []string{"commit-0"}, fake.state().lastParents)
	assert.Equal(t, "commit-1", fake.state().head)
	assert.Len(t, fake.state().files, 3)
	assert.Equal(t, "echo foo", string(fake.state().files["skills/global/foo/scripts/run.sh"]))

	_, err = s.CommitFiles(ctx, []filestore.File{
		{Path: "skills/global/bar/SKILL.md", Content: []byte("bar")},
	}, "Add skill: bar")
	require.NoError(t, err)
	assert.Len(t, fake.state().files, 4, "later commits build on the branch head")
}

func TestStore_CommitFilesRetriesServerErrors(t *testing.T) {
	fake := newFakeGitHub()
	fake.failBlobs = 1
	s := newTestStore(t, fake)

	_, err := s.CommitFiles(context.Background(), []filestore.File{
		{Path: "rules/global/style.md", Content: []byte("rule")},
	}, "Add rule")
	require.NoError(t, err)
	assert.Equal(t, "rule", string(fake.state().files["rules/global/style.md"]))
}

func TestStore_CommitFilesGivesUp(t *testing.T) {
	fake := newFakeGitHub()
	fake.failBlobs = 10
	s := newTestStore(t, fake)

	_, err := s.CommitFiles(context.Background(), []filestore.File{
		{Path: "rules/global/style.md", Content: []byte("rule")},
	}, "Add rule")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create blob")
	assert.Equal(t, "commit-0", fake.state().head, "the branch must not move")
	assert.Equal(t, 7, fake.state().failBlobs, "three attempts were made")
}

func TestStore_CommitFilesRejects(t *testing.T) {
	fake := newFakeGitHub()
	s := newTestStore(t, fake)
	ctx := context.Background()

	_, err := s.CommitFiles(ctx, nil, "empty")
	assert.ErrorIs(t, err, filestore.ErrEmptyCommit)

	_, err = s.CommitFiles(ctx, []filestore.File{{Path: "../x", Content: []byte("x")}}, "bad")
	require.Error(t, err)
	assert.Zero(t, fake.state().requests)
}

func TestStore_ListAndRead(t *testing.T) {
	fake := newFakeGitHub()
	s := newTestStore(t, fake)
	ctx := context.Background()

	_, err := s.CommitFiles(ctx, []filestore.File{
		{Path: "skills/global/foo/SKILL.md", Content: []byte("manifest")},
		{Path: "skills/global/foo/scripts/run.sh", Content: []byte("echo foo")},
		{Path: "skills/global/foobar/SKILL.md", Content: []byte("other")},
	}, "seed")
	require.NoError(t, err)

	entries, err := s.ListFiles(ctx, "skills/global/foo")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "skills/global/foo/SKILL.md", entries[0].Path)
	assert.Equal(t, "SKILL.md", entries[0].Name)
	assert.Equal(t, int64(8), entries[0].Size)
	assert.Equal(t, "https://raw.example.com/acme/skills/main/skills/global/foo/SKILL.md", entries[0].DownloadURL)
	assert.Equal(t, "skills/global/foo/scripts/run.sh", entries[1].Path)

	missing, err := s.ListFiles(ctx, "skills/global/missing")
	require.NoError(t, err)
	assert.Empty(t, missing)

	content, err := s.ReadFile(ctx, "skills/global/foo/scripts/run.sh")
	require.NoError(t, err)
	assert.Equal(t, "echo foo", string(content))

	_, err = s.ReadFile(ctx, "skills/global/foo/missing.md")
	assert.ErrorIs(t, err, filestore.ErrNotFound)
}
