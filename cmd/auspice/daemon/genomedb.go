package daemon

import (
	"fmt"
	"io"

	"github.com/nextstrain/auspice/internal/constants"
	"github.com/nextstrain/auspice/internal/fileutils"
	"github.com/nextstrain/auspice/internal/genomedb"
	"github.com/spf13/cobra"
)

func (a *App) installGenomeDB() {
	cmd := &cobra.Command{
		Use:   "genomedb",
		Short: "Manage the genome sequence databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	build := &cobra.Command{
		Use:   "build [DIR]",
		Short: "Build a genome database for every FASTA file of a dataset directory",
		Long: `Build a genome database for every *.fasta file of DIR, replacing the existing ones.
Databases are written to the ` + constants.GenomeDBFolder + ` subdirectory, where view looks for them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if len(args) > 0 {
				dir = args[0]
			}
			return a.buildGenomeDBs(cmd.OutOrStdout(), dir)
		},
	}

	cmd.AddCommand(build)
	a.cmd.AddCommand(cmd)
}

func (a *App) buildGenomeDBs(w io.Writer, dir string) error {
	dir, err := fileutils.ResolveDir(dir, constants.DatasetsFolder)
	if err != nil {
		return fmt.Errorf("invalid dataset directory: %v", err)
	}

	built, err := genomedb.Prepare(a.ctx, dir)
	for _, p := range built {
		fmt.Fprintln(w, p)
	}
	return err
}
