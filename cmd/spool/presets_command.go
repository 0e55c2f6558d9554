package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spool/internal/api"
	"spool/internal/preset"
)

func newPresetsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "presets",
		Short:       "List the built-in encode presets",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := preset.Catalog()
			presets := make([]api.Preset, 0, len(catalog))
			for _, p := range catalog {
				presets = append(presets, api.FromPreset(p))
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, presets)
			}
			rows := make([][]string, 0, len(presets))
			for _, p := range presets {
				name := p.Name
				if p.Name == preset.DefaultPreset {
					name += " *"
				}
				rows = append(rows, []string{name, p.Engine, p.VideoCodec, p.AudioCodec, p.Extensions, p.Description})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable([]column{
				left("Preset"), left("Engine"), left("Video"), left("Audio"), left("Extensions"), left("Description"),
			}, rows))
			fmt.Fprintln(out, "* default")
			return nil
		},
	}
}
