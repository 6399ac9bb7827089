package main

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/emergent/skillsmarket/pkg/config"
	"github.com/emergent/skillsmarket/pkg/logger"
	"github.com/emergent/skillsmarket/pkg/presenter"
)

var rootCmd = &cobra.Command{
	Use:   "skillsmarket",
	Short: "Internal marketplace for AI coding assistant skills",
	Long: `skillsmarket runs the skills marketplace API and installs skills, agents and
rules from it into Claude Code and GitHub Copilot configuration directories.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		if err := config.Init(viper.GetViper()); err != nil {
			return err
		}
		if err := logger.Configure(viper.GetString("log_level"), viper.GetString("log_format")); err != nil {
			return err
		}
		if viper.GetBool("quiet") {
			presenter.SetQuiet(true)
		}
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			color.NoColor = true
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	flags.String("log-format", "fmt", "Log format (fmt or json)")
	flags.BoolP("quiet", "q", false, "Suppress informational output")
	flags.Bool("no-color", false, "Disable colored output")

	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log_format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(withTracing(installCmd))
	rootCmd.AddCommand(withTracing(searchCmd))
	rootCmd.AddCommand(withTracing(uploadCmd))
	rootCmd.AddCommand(withTracing(projectsCmd))
	rootCmd.AddCommand(withTracing(listCmd))
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		presenter.Error(err, "")
		os.Exit(1)
	}
}
