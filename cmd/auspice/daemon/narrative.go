package daemon

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nextstrain/auspice/internal/narrative"
	"github.com/spf13/cobra"
)

func (a *App) installNarrative() {
	cmd := &cobra.Command{
		Use:   "narrative",
		Short: "Inspect narrative files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var wordWrap int
	render := &cobra.Command{
		Use:   "render FILE",
		Short: "Render the slides of a narrative in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderNarrative(cmd.OutOrStdout(), args[0], wordWrap)
		},
	}
	render.Flags().IntVar(&wordWrap, "width", 80, "wrap rendered text at this width")

	parse := &cobra.Command{
		Use:   "parse FILE",
		Short: "Print the blocks the client receives for a narrative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return parseNarrative(cmd.OutOrStdout(), args[0])
		},
	}

	cmd.AddCommand(render, parse)
	a.cmd.AddCommand(cmd)
}

func readNarrative(path string) ([]narrative.Block, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read narrative: %v", err)
	}
	blocks, err := narrative.Parse(contents)
	if err != nil {
		return nil, fmt.Errorf("could not parse narrative %s: %v", path, err)
	}
	return blocks, nil
}

func renderNarrative(w io.Writer, path string, wordWrap int) error {
	blocks, err := readNarrative(path)
	if err != nil {
		return err
	}
	out, err := narrative.Render(blocks, wordWrap)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func parseNarrative(w io.Writer, path string) error {
	blocks, err := readNarrative(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(blocks)
}
