package main

import (
	"os"
	"os/user"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/emergent/skillsmarket/pkg/installer"
	"github.com/emergent/skillsmarket/pkg/presenter"
)

var installCmd = &cobra.Command{
	Use:   "install <skillNameOrId>",
	Short: "Install a skill from the marketplace",
	Long: `Install a skill into the Claude Code and/or GitHub Copilot configuration
directories, either globally (your home directory) or for the current project.

The skill is looked up by id, or by exact name (case-insensitive). Scope and
providers are asked for interactively unless given as flags. Existing files
prompt for overwrite, skip or cancel.`,
	Example: `  skillsmarket install code-review --scope global --provider claude
  skillsmarket install 3f1c2a9e-8d1b-4c55-9a0e-6b7f2d1e4a10 --include 'scripts/**'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inst, err := newInstaller(cmd)
		if err != nil {
			return err
		}

		scope, _ := cmd.Flags().GetString("scope")
		providers, _ := cmd.Flags().GetStringSlice("provider")
		include, _ := cmd.Flags().GetStringSlice("include")

		result, err := inst.Install(cmd.Context(), installer.Options{
			SkillRef:  args[0],
			Scope:     scope,
			Providers: providers,
			Include:   include,
		})
		if errors.Is(err, installer.ErrCancelled) {
			presenter.Warning("Installation cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
		inst.PrintSummary(result)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search the marketplace for skills",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inst, err := newInstaller(cmd)
		if err != nil {
			return err
		}
		term := ""
		if len(args) == 1 {
			term = args[0]
		}
		_, err = inst.Search(cmd.Context(), term)
		return err
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <dir|zip>",
	Short: "Upload skills, agents and rules to the marketplace",
	Long: `Upload a directory or zip archive. A folder holding SKILL.md is uploaded as
one skill; a folder with skills/, agents/ or rules/ subfolders is uploaded as
a batch, validated locally before anything is sent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inst, err := newInstaller(cmd)
		if err != nil {
			return err
		}
		uploadedBy, _ := cmd.Flags().GetString("uploaded-by")
		_, err = inst.Upload(cmd.Context(), args[0], uploadedBy)
		return err
	},
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List client projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		inst, err := newInstaller(cmd)
		if err != nil {
			return err
		}
		_, err = inst.Projects(cmd.Context())
		return err
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List skills installed for the current project and globally",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		inst, err := newInstaller(cmd)
		if err != nil {
			return err
		}
		inst.PrintInstalled(inst.Installed())
		return nil
	},
}

func newInstaller(cmd *cobra.Command) (*installer.Installer, error) {
	apiURL, _ := cmd.Flags().GetString("api-url")
	if apiURL == "" {
		apiURL = installer.APIURL()
	}
	p := presenter.Default()
	return installer.New(installer.NewClient(apiURL), p, installer.NewPrompter(p))
}

func defaultUploader() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func init() {
	for _, cmd := range []*cobra.Command{installCmd, searchCmd, uploadCmd, projectsCmd} {
		cmd.Flags().String("api-url", "", "Marketplace API URL (defaults to $"+installer.APIURLEnv+" or "+installer.DefaultAPIURL+")")
	}

	installCmd.Flags().String("scope", "", "Installation scope (global or project)")
	installCmd.Flags().StringSlice("provider", nil, "Target provider (claude or copilot), repeatable")
	installCmd.Flags().StringSlice("include", nil, "Only install files matching these glob patterns")

	uploadCmd.Flags().String("uploaded-by", defaultUploader(), "Name recorded as the uploader")
}
