package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/bizkut/eden-fft-agent/cli/render"
	"github.com/bizkut/eden-fft-agent/schema"
	"github.com/bizkut/eden-fft-agent/types"
)

// VersionResponse is the version command payload.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Schema  string `json:"schema"`
}

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			return versionAction(c, commit)
		},
	}
}

func versionAction(c *cli.Context, commit string) error {
	if c.Bool("tui") {
		return fmt.Errorf("--tui is not supported for version")
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	return r.Render(VersionResponse{
		Version: types.Version,
		Commit:  commit,
		Schema:  schema.Default().Version,
	})
}
