package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// VersionInfo is the JSON payload of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{Version: rootOpts.Version, GoVersion: runtime.Version()}
			return newFormatter(rootOpts, cmd).Success(info, func(w io.Writer) {
				fmt.Fprintf(w, "ekaya-canvas %s (%s)\n", info.Version, info.GoVersion)
			})
		},
	}
}
