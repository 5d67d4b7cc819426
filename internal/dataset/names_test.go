package dataset_test

import (
	"testing"

	"github.com/nextstrain/auspice/internal/dataset"
	"github.com/stretchr/testify/assert"
)

func TestIsV2File(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		name string
		want bool
	}{
		"Main dataset file":          {name: "zika.json", want: true},
		"Multi part dataset file":    {name: "flu_seasonal_h3n2_ha_2y.json", want: true},
		"Manifest is not a dataset":  {name: "manifest_guest.json"},
		"Manifest anywhere in name":  {name: "my_manifest.json"},
		"V1 tree is not v2":          {name: "zika_tree.json"},
		"V1 meta is not v2":          {name: "zika_meta.json"},
		"Tip frequencies sidecar":    {name: "zika_tip-frequencies.json"},
		"Root sequence sidecar":      {name: "zika_root-sequence.json"},
		"Measurements sidecar":       {name: "zika_measurements.json"},
		"Legacy sequence sidecar":    {name: "zika_seq.json"},
		"Non JSON files are ignored": {name: "zika.md"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, dataset.IsV2File(tc.name), "IsV2File returned an unexpected result")
		})
	}
}

func TestNarrativeFiles(t *testing.T) {
	t.Parallel()

	assert.True(t, dataset.IsNarrativeFile("ncov_sit-rep.md"), "Markdown files are narratives")
	assert.False(t, dataset.IsNarrativeFile("README.md"), "README.md is never a narrative")
	assert.False(t, dataset.IsNarrativeFile("ncov.json"), "JSON files are not narratives")
}

func TestFileNames(t *testing.T) {
	t.Parallel()

	base := dataset.BaseFromParts([]string{"flu", "seasonal", "h3n2"})
	assert.Equal(t, "flu_seasonal_h3n2", base)
	assert.Equal(t, "flu/seasonal/h3n2", dataset.RequestFromBase(base))
	assert.Equal(t, "flu_seasonal_h3n2.json", dataset.MainFile(base))
	assert.Equal(t, "flu_seasonal_h3n2_root-sequence.json", dataset.SidecarFile(base, "root-sequence"))

	meta, tree := dataset.V1Files(base)
	assert.Equal(t, "flu_seasonal_h3n2_meta.json", meta)
	assert.Equal(t, "flu_seasonal_h3n2_tree.json", tree)
}
