package daemon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextstrain/auspice/internal/dataset"
	"github.com/nextstrain/auspice/internal/fileutils"
	"github.com/spf13/cobra"
)

type convertConfig struct {
	V1     bool
	Output string
	Minify bool
}

func (a *App) installConvert() {
	var conf convertConfig

	cmd := &cobra.Command{
		Use:   "convert --v1 META TREE --output JSON",
		Short: "Convert dataset JSON files to the v2 schema",
		Long: `Convert auspice dataset JSON files to the most up to date schema (currently v2).
Note that "auspice view" converts v1 JSONs on the fly, using the same logic as this command.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(conf, args)
		},
	}

	cmd.Flags().BoolVar(&conf.V1, "v1", false, "convert the v1 META and TREE JSONs given as arguments")
	cmd.Flags().StringVar(&conf.Output, "output", "", "file to write output to")
	cmd.Flags().BoolVar(&conf.Minify, "minify-json", false, "export JSONs without indentation or line returns")

	if err := cmd.MarkFlagRequired("output"); err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark output flag as required: %v", err))
	}
	if err := cmd.MarkFlagFilename("output", "json"); err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark output flag as filename: %v", err))
	}

	a.cmd.AddCommand(cmd)
}

func runConvert(conf convertConfig, args []string) error {
	if !conf.V1 {
		return errors.New("currently v1 JSON inputs must be specified")
	}
	if len(args) != 2 || !strings.HasSuffix(args[0], "_meta.json") || !strings.HasSuffix(args[1], "_tree.json") {
		return errors.New("v1 JSON inputs must be specified as *_meta.json and *_tree.json")
	}

	v2, err := dataset.ConvertFiles(args[0], args[1])
	if err != nil {
		return err
	}
	if err := dataset.Validate(v2); err != nil {
		slog.Warn("Converted dataset does not match the v2 schema", "err", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if !conf.Minify {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v2); err != nil {
		return fmt.Errorf("could not encode dataset: %v", err)
	}

	if err := fileutils.AtomicWrite(conf.Output, bytes.TrimSuffix(buf.Bytes(), []byte("\n"))); err != nil {
		return fmt.Errorf("could not write %s: %v", conf.Output, err)
	}
	slog.Info("Wrote v2 dataset", "file", conf.Output)
	return nil
}
