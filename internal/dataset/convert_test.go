package dataset_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/nextstrain/auspice/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const v1Meta = `{
  "title": "Real-time tracking of Zika virus evolution",
  "updated": "2019-05-01",
  "maintainer": ["Trevor Bedford", "https://bedford.io"],
  "color_options": {
    "region": {"menuItem": "region", "legendTitle": "Region", "type": "discrete"},
    "num_date": {"legendTitle": "Sampling date"},
    "country": {"type": "discrete", "color_map": [["brazil", "#4A9EC6"]]},
    "ep": {"type": "continuous"}
  },
  "geo": {
    "region": {"south_america": {"latitude": -14.2, "longitude": -51.9}},
    "country": {"brazil": {"latitude": -10.3, "longitude": -53.2}}
  },
  "filters": ["region", "country"],
  "annotations": {
    "nuc": {"start": 1, "end": 10769, "strand": 1},
    "ENV": {"start": 976, "end": 2487, "strand": "-1"}
  },
  "author_info": {
    "Faria et al": {"title": "Establishment and cryptic transmission of Zika virus", "journal": "Science", "paper_url": "https://doi.org/10.1126/science.aan5079", "n": 2}
  },
  "defaults": {"colorBy": "country", "geoResolution": "region", "mapTriplicate": true},
  "vaccine_choices": {"A/Brisbane/10/2007": "2008-02-01"}
}`

const v1Tree = `{
  "strain": "NODE_0000001",
  "attr": {"div": 0, "num_date": 2013.2, "num_date_confidence": [2012.9, 2013.5], "clade_annotation": "root"},
  "muts": [],
  "aa_muts": {"ENV": []},
  "children": [
    {
      "strain": "A/Brisbane/10/2007",
      "attr": {"div": 0.0012, "country": "brazil", "country_confidence": {"brazil": 0.9}, "country_entropy": 0.3, "authors": "Faria et al", "accession": "KU321639", "url": "https://www.ncbi.nlm.nih.gov/nuccore/KU321639"},
      "muts": ["C100T"],
      "aa_muts": {"ENV": ["T10A"], "NS1": []}
    }
  ]
}`

func TestConvertFromV1(t *testing.T) {
	t.Parallel()

	var meta dataset.V1Meta
	require.NoError(t, json.Unmarshal([]byte(v1Meta), &meta), "Setup: could not decode v1 meta")
	var tree dataset.V1Node
	require.NoError(t, json.Unmarshal([]byte(v1Tree), &tree), "Setup: could not decode v1 tree")

	got, err := dataset.ConvertFromV1(meta, &tree)
	require.NoError(t, err, "ConvertFromV1 should not return an error")

	assert.Equal(t, dataset.SchemaVersion, got.Version)
	assert.Equal(t, "Real-time tracking of Zika virus evolution", got.Meta.Title)
	assert.Equal(t, []dataset.Maintainer{{Name: "Trevor Bedford", URL: "https://bedford.io"}}, got.Meta.Maintainers)

	assert.Equal(t, []dataset.Coloring{
		{Key: "region", Title: "region", Type: "categorical"},
		{Key: "num_date", Title: "Sampling date", Type: "continuous"},
		{Key: "country", Title: "country", Type: "categorical", Scale: [][]any{{"brazil", "#4A9EC6"}}},
		{Key: "ep", Title: "ep", Type: "continuous"},
	}, got.Meta.Colorings, "Colorings should keep the input order")

	require.Len(t, got.Meta.GeoResolutions, 2)
	assert.Equal(t, "region", got.Meta.GeoResolutions[0].Key, "Geo resolutions should keep the input order")
	assert.Equal(t, "country", got.Meta.GeoResolutions[1].Key, "Geo resolutions should keep the input order")

	assert.Equal(t, []string{"tree", "map", "entropy"}, got.Meta.Panels, "Default panels depend on geo and annotations")
	assert.Equal(t, "+", got.Meta.GenomeAnnotations["nuc"].Strand)
	assert.Equal(t, "-", got.Meta.GenomeAnnotations["ENV"].Strand)
	assert.EqualValues(t, 976, got.Meta.GenomeAnnotations["ENV"].Start)

	require.NotNil(t, got.Meta.DisplayDefaults, "Display defaults should be set")
	assert.Equal(t, "country", got.Meta.DisplayDefaults.ColorBy)
	assert.Equal(t, "region", got.Meta.DisplayDefaults.GeoResolution)
	require.NotNil(t, got.Meta.DisplayDefaults.MapTriplicate)
	assert.True(t, *got.Meta.DisplayDefaults.MapTriplicate)

	root := got.Tree
	assert.Equal(t, "NODE_0000001", root.Name)
	assert.Equal(t, dataset.Attr{Value: 2013.2, Confidence: []any{2012.9, 2013.5}}, root.NodeAttrs["num_date"])
	assert.NotContains(t, root.NodeAttrs, "num_date_confidence", "Confidence should be folded into num_date")
	require.NotNil(t, root.BranchAttrs, "Clade labels should be set on the branch")
	assert.Equal(t, map[string]string{"clade": "root"}, root.BranchAttrs.Labels)
	assert.Nil(t, root.BranchAttrs.Mutations, "Empty mutation lists should be dropped")

	require.Len(t, root.Children, 1)
	tip := root.Children[0]
	assert.Equal(t, "A/Brisbane/10/2007", tip.Name)
	assert.Equal(t, 0.0012, tip.NodeAttrs["div"])
	assert.Equal(t, dataset.Attr{Value: "brazil", Confidence: map[string]any{"brazil": 0.9}, Entropy: 0.3}, tip.NodeAttrs["country"])
	assert.NotContains(t, tip.NodeAttrs, "country_entropy")
	assert.Equal(t, "KU321639", tip.NodeAttrs["accession"])
	assert.Equal(t, dataset.AuthorAttr{
		Value:    "Faria et al",
		Title:    "Establishment and cryptic transmission of Zika virus",
		Journal:  "Science",
		PaperURL: "https://doi.org/10.1126/science.aan5079",
	}, tip.NodeAttrs["author"])
	assert.Equal(t, map[string]string{"selection_date": "2008-02-01"}, tip.NodeAttrs["vaccine"])
	assert.Equal(t, map[string][]string{"nuc": {"C100T"}, "ENV": {"T10A"}}, tip.BranchAttrs.Mutations)

	require.NoError(t, dataset.Validate(got), "Converted dataset should match the v2 schema")
}

func TestConvertMaintainers(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		maintainer string

		want    []dataset.Maintainer
		wantErr bool
	}{
		"Single name":   {maintainer: `"Nextstrain team"`, want: []dataset.Maintainer{{Name: "Nextstrain team"}}},
		"Name and URL":  {maintainer: `["Nextstrain team", "https://nextstrain.org"]`, want: []dataset.Maintainer{{Name: "Nextstrain team", URL: "https://nextstrain.org"}}},
		"List of pairs": {maintainer: `[["A", "https://a.org"], ["B"]]`, want: []dataset.Maintainer{{Name: "A", URL: "https://a.org"}, {Name: "B"}}},
		"No maintainer": {maintainer: `null`},
		"Empty list":    {maintainer: `[]`},
		"Empty pairs":   {maintainer: `[[], ["B"]]`, want: []dataset.Maintainer{{Name: "B"}}},

		"Error on invalid maintainer": {maintainer: `{"name": "A"}`, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			meta := dataset.V1Meta{Maintainer: json.RawMessage(tc.maintainer)}
			got, err := dataset.ConvertFromV1(meta, &dataset.V1Node{Strain: "root"})
			if tc.wantErr {
				require.Error(t, err, "ConvertFromV1 should return an error")
				return
			}
			require.NoError(t, err, "ConvertFromV1 should not return an error")
			assert.Equal(t, tc.want, got.Meta.Maintainers, "Unexpected maintainers")
		})
	}
}

func TestConvertPanels(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		meta string

		want []string
	}{
		"Tree only by default":       {meta: `{}`, want: []string{"tree"}},
		"Map added with geo":         {meta: `{"geo": {"country": {}}}`, want: []string{"tree", "map"}},
		"Unknown panels are dropped": {meta: `{"panels": ["tree", "frequencies", "table"]}`, want: []string{"tree", "frequencies"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var meta dataset.V1Meta
			require.NoError(t, json.Unmarshal([]byte(tc.meta), &meta), "Setup: could not decode v1 meta")

			got, err := dataset.ConvertFromV1(meta, &dataset.V1Node{Strain: "root"})
			require.NoError(t, err, "ConvertFromV1 should not return an error")
			assert.Equal(t, tc.want, got.Meta.Panels, "Unexpected panels")
		})
	}
}

func TestConvertFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	meta := filepath.Join(dir, "zika_meta.json")
	tree := filepath.Join(dir, "zika_tree.json")
	require.NoError(t, os.WriteFile(meta, []byte(v1Meta), 0600), "Setup: could not write meta file")
	require.NoError(t, os.WriteFile(tree, []byte(v1Tree), 0600), "Setup: could not write tree file")

	got, err := dataset.ConvertFiles(meta, tree)
	require.NoError(t, err, "ConvertFiles should not return an error")
	assert.Equal(t, "NODE_0000001", got.Tree.Name)

	_, err = dataset.ConvertFiles(meta, filepath.Join(dir, "missing_tree.json"))
	require.ErrorIs(t, err, os.ErrNotExist, "ConvertFiles should fail on missing files")

	require.NoError(t, os.WriteFile(tree, []byte(`{"strain":`), 0600), "Setup: could not write tree file")
	_, err = dataset.ConvertFiles(meta, tree)
	require.Error(t, err, "ConvertFiles should fail on invalid JSON")
}

func TestOrderedRejectsNonObjects(t *testing.T) {
	t.Parallel()

	var meta dataset.V1Meta
	require.Error(t, json.Unmarshal([]byte(`{"color_options": ["region"]}`), &meta), "color_options must be an object")
}
