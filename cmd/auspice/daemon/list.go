package daemon

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nextstrain/auspice/internal/catalog"
	"github.com/nextstrain/auspice/internal/constants"
	"github.com/nextstrain/auspice/internal/fileutils"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func (a *App) installList() {
	var datasetsDir, narrativesDir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the datasets and narratives view would serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd.OutOrStdout(), datasetsDir, narrativesDir)
		},
	}

	cmd.Flags().StringVar(&datasetsDir, "datasetDir", "", "directory where datasets are sourced (default ./"+constants.DatasetsFolder+" or the current directory)")
	cmd.Flags().StringVar(&narrativesDir, "narrativeDir", "", "directory where narratives are sourced (default ./"+constants.NarrativesFolder+" or the current directory)")

	a.cmd.AddCommand(cmd)
}

func (a *App) runList(w io.Writer, datasetsDir, narrativesDir string) (err error) {
	if datasetsDir, err = fileutils.ResolveDir(datasetsDir, constants.DatasetsFolder); err != nil {
		return fmt.Errorf("invalid dataset directory: %v", err)
	}
	if narrativesDir, err = fileutils.ResolveDir(narrativesDir, constants.NarrativesFolder); err != nil {
		return fmt.Errorf("invalid narrative directory: %v", err)
	}

	l, err := catalog.New(catalog.Sources(datasetsDir, narrativesDir)).Scan(a.ctx)
	if err != nil {
		return err
	}

	datasets := tablewriter.NewWriter(w)
	datasets.SetHeader([]string{"Dataset", "V2", "Second trees"})
	for _, d := range l.Datasets {
		datasets.Append([]string{d.Request, strconv.FormatBool(d.V2), strings.Join(d.SecondTreeOptions, ", ")})
	}
	datasets.Render()

	narratives := tablewriter.NewWriter(w)
	narratives.SetHeader([]string{"Narrative"})
	for _, n := range l.Narratives {
		narratives.Append([]string{n.Request})
	}
	narratives.Render()

	return nil
}
