package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/emergent/skillsmarket/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		info := version.Get()

		switch format {
		case "json":
			out, err := info.JSON()
			if err != nil {
				return errors.Wrap(err, "failed to format version info")
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
		case "text", "":
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
		default:
			return errors.Errorf("unsupported format %q (want text or json)", format)
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().String("format", "text", "Output format (text or json)")
}
