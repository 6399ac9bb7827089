package installer

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/logger"
	"github.com/emergent/skillsmarket/pkg/presenter"
)

var uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

const (
	maxSuggestions      = 5
	downloadConcurrency = 4
)

// Installer places marketplace skills into the directories of the local
// coding assistants.
type Installer struct {
	client    *Client
	prompter  Prompter
	presenter presenter.Presenter
	home      string
	cwd       string
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithDirs overrides the home and working directories.
func WithDirs(home, cwd string) InstallerOption {
	return func(i *Installer) {
		i.home = home
		i.cwd = cwd
	}
}

// New creates an Installer. The home and working directories default to
// those of the current process.
func New(client *Client, p presenter.Presenter, prompter Prompter, opts ...InstallerOption) (*Installer, error) {
	i := &Installer{client: client, presenter: p, prompter: prompter}
	for _, opt := range opts {
		opt(i)
	}

	if i.home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get home directory")
		}
		i.home = home
	}
	if i.cwd == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get working directory")
		}
		i.cwd = cwd
	}
	return i, nil
}

// Options selects what to install and where. Empty or unknown scope and
// provider values are asked for interactively.
type Options struct {
	SkillRef  string
	Scope     string
	Providers []string
	// Include limits the installed files to those matching any of these
	// doublestar patterns, relative to the skill directory.
	Include []string
}

// ProviderResult reports what was written for one provider.
type ProviderResult struct {
	Provider    Provider
	Dir         string
	DisplayPath string
	Written     int
	Skipped     int
}

// Result is the outcome of a completed install.
type Result struct {
	Skill     catalog.Skill
	Scope     catalog.Scope
	Providers []ProviderResult
}

type fetchedFile struct {
	rel     string
	content []byte
}

// Install resolves the skill, downloads its files and writes them for
// every selected provider. ErrCancelled is returned when the user aborts.
func (i *Installer) Install(ctx context.Context, opts Options) (*Result, error) {
	log := logger.G(ctx).WithField("skill", opts.SkillRef)

	i.presenter.Info("Resolving skill...")
	skill, err := i.ResolveSkill(ctx, opts.SkillRef)
	if err != nil {
		return nil, err
	}
	i.presenter.Success(fmt.Sprintf("Found skill: %s v%s", skill.Name, skill.Version))

	scope, err := i.chooseScope(ctx, opts.Scope)
	if err != nil {
		return nil, err
	}
	targets, err := i.chooseProviders(ctx, opts.Providers)
	if err != nil {
		return nil, err
	}

	download, err := i.client.Download(ctx, skill.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch skill download info")
	}
	i.presenter.Info(fmt.Sprintf("Fetched %d file(s) from registry.", len(download.Files)))

	entries, err := filterEntries(download.Files, download.GithubPath, opts.Include)
	if err != nil {
		return nil, err
	}
	files, err := i.fetchAll(ctx, entries, download.GithubPath)
	if err != nil {
		return nil, err
	}
	i.presenter.Info(fmt.Sprintf("Downloaded %d file(s).", len(files)))

	base := i.home
	if scope == catalog.ScopeProject {
		base = ResolveProjectRoot(i.cwd, i.home)
		log.WithField("project_root", base).Debug("resolved project root")
	}

	result := &Result{Skill: *skill, Scope: scope}
	for _, target := range targets {
		provider, err := ProviderFor(target)
		if err != nil {
			return nil, err
		}
		pr, err := i.installFor(ctx, provider, base, scope, skill.Name, files)
		if err != nil {
			return nil, err
		}
		result.Providers = append(result.Providers, *pr)
	}
	return result, nil
}

// ResolveSkill accepts a skill id or an exact, case-insensitive name.
func (i *Installer) ResolveSkill(ctx context.Context, ref string) (*catalog.Skill, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("a skill name or id is required")
	}
	if uuidPattern.MatchString(ref) {
		return i.client.GetSkill(ctx, ref)
	}

	results, err := i.client.SearchSkills(ctx, ref)
	if err != nil {
		return nil, err
	}
	for idx := range results {
		if strings.EqualFold(results[idx].Name, ref) {
			return &results[idx], nil
		}
	}
	if len(results) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "No skill found with the exact name %q. Did you mean:", ref)
		for idx, s := range results {
			if idx == maxSuggestions {
				break
			}
			b.WriteString("\n  - " + s.Name)
		}
		return nil, errors.New(b.String())
	}
	return nil, errors.Errorf("No skill found matching %q.", ref)
}

func (i *Installer) chooseScope(ctx context.Context, flag string) (catalog.Scope, error) {
	if scope, err := catalog.ParseScope(flag); err == nil {
		return scope, nil
	}
	answer, err := i.prompter.Select(ctx, "Where should this skill be installed?", []Option{
		{Label: "Global", Hint: "Available everywhere", Value: string(catalog.ScopeGlobal)},
		{Label: "Project", Hint: "Only in this project", Value: string(catalog.ScopeProject)},
	})
	if err != nil {
		return "", err
	}
	return catalog.ParseScope(answer)
}

func (i *Installer) chooseProviders(ctx context.Context, flags []string) ([]catalog.Target, error) {
	var targets []catalog.Target
	for _, f := range flags {
		target, err := catalog.ParseTarget(strings.TrimSpace(f))
		if err != nil {
			targets = nil
			break
		}
		targets = append(targets, target)
	}
	if len(targets) > 0 {
		return targets, nil
	}

	options := make([]Option, 0, len(providers))
	for _, p := range providers {
		options = append(options, Option{Label: p.Name, Value: string(p.Target)})
	}
	answers, err := i.prompter.MultiSelect(ctx, "Select target providers", options)
	if err != nil {
		return nil, err
	}
	for _, a := range answers {
		target, err := catalog.ParseTarget(a)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// fetchAll downloads every entry, a few at a time, keeping listing order.
func (i *Installer) fetchAll(ctx context.Context, entries []catalog.FileEntry, prefix string) ([]fetchedFile, error) {
	files := make([]fetchedFile, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)

	for idx, entry := range entries {
		g.Go(func() error {
			content, err := i.client.FetchFile(gctx, entry)
			if err != nil {
				return err
			}
			files[idx] = fetchedFile{rel: StripPrefix(entry.Path, prefix), content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "download failed")
	}
	return files, nil
}

func (i *Installer) installFor(ctx context.Context, provider Provider, base string, scope catalog.Scope, skillName string, files []fetchedFile) (*ProviderResult, error) {
	dir := provider.Dir(base, skillName)
	targets := make([]string, 0, len(files))
	for _, f := range files {
		if !filepath.IsLocal(filepath.FromSlash(f.rel)) {
			return nil, errors.Errorf("refusing to write %q outside %s", f.rel, dir)
		}
		targets = append(targets, filepath.Join(dir, filepath.FromSlash(f.rel)))
	}

	resolutions, err := i.ResolveConflicts(ctx, targets)
	if err != nil {
		return nil, err
	}
	for _, r := range resolutions {
		if r == ResolutionCancel {
			return nil, ErrCancelled
		}
	}

	pr := &ProviderResult{Provider: provider, Dir: dir, DisplayPath: provider.DisplayPath(scope, skillName)}
	for idx, f := range files {
		target := targets[idx]
		if resolutions[target] == ResolutionSkip {
			pr.Skipped++
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create %s", filepath.Dir(target))
		}
		if err := os.WriteFile(target, f.content, 0o644); err != nil {
			return nil, errors.Wrapf(err, "failed to write %s", target)
		}
		pr.Written++
	}
	logger.G(ctx).
		WithField("provider", provider.Target).
		WithField("written", pr.Written).
		WithField("skipped", pr.Skipped).
		Debug("installed skill files")
	return pr, nil
}

// PrintSummary writes the installation summary.
func (i *Installer) PrintSummary(r *Result) {
	i.presenter.Section("Installation Summary")
	i.presenter.Info(fmt.Sprintf("Skill:  %s v%s", r.Skill.Name, r.Skill.Version))
	i.presenter.Info(fmt.Sprintf("Scope:  %s", r.Scope))
	for _, p := range r.Providers {
		i.presenter.Info("")
		i.presenter.Info(p.Provider.Name)
		i.presenter.Info(fmt.Sprintf("  Files installed: %d", p.Written))
		if p.Skipped > 0 {
			i.presenter.Info(fmt.Sprintf("  Files skipped:   %d", p.Skipped))
		}
		i.presenter.Info("  Path: " + p.DisplayPath)
	}
	i.presenter.Success("Skill installed successfully!")
}

// StripPrefix makes a stored file path relative to the skill directory,
// falling back to the base name when the file lies elsewhere.
func StripPrefix(filePath, prefix string) string {
	filePath = strings.ReplaceAll(filePath, `\`, "/")
	prefix = strings.TrimSuffix(strings.ReplaceAll(prefix, `\`, "/"), "/")
	if rest, ok := strings.CutPrefix(filePath, prefix+"/"); ok && prefix != "" {
		return rest
	}
	return path.Base(filePath)
}

func filterEntries(entries []catalog.FileEntry, prefix string, include []string) ([]catalog.FileEntry, error) {
	if len(include) == 0 {
		return entries, nil
	}
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Errorf("invalid include pattern %q", pattern)
		}
	}

	var out []catalog.FileEntry
	for _, e := range entries {
		rel := StripPrefix(e.Path, prefix)
		for _, pattern := range include {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				out = append(out, e)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no skill files match the include patterns")
	}
	return out, nil
}
