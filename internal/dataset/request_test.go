package dataset_test

import (
	"path/filepath"
	"testing"

	"github.com/nextstrain/auspice/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpretRequest(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		prefix string
		typ    string

		wantParts []string
		wantType  string
		wantErr   bool
	}{
		"Main dataset":                 {prefix: "/flu/seasonal/h3n2/", wantParts: []string{"flu", "seasonal", "h3n2"}, wantType: dataset.TypeDataset},
		"No surrounding slashes":       {prefix: "zika", wantParts: []string{"zika"}, wantType: dataset.TypeDataset},
		"Tree is an alias for dataset": {prefix: "/zika", typ: "tree", wantParts: []string{"zika"}, wantType: dataset.TypeDataset},
		"Tip frequencies sidecar":      {prefix: "/zika", typ: "tip-frequencies", wantParts: []string{"zika"}, wantType: "tip-frequencies"},
		"Root sequence sidecar":        {prefix: "/zika", typ: "root-sequence", wantParts: []string{"zika"}, wantType: "root-sequence"},
		"Measurements sidecar":         {prefix: "/zika", typ: "measurements", wantParts: []string{"zika"}, wantType: "measurements"},

		"Error on missing prefix":    {wantErr: true},
		"Error on unknown type":      {prefix: "/zika", typ: "meta", wantErr: true},
		"Error on parent directory":  {prefix: "/../etc/passwd", wantErr: true},
		"Error on empty part":        {prefix: "/flu//h3n2", wantErr: true},
		"Error on current directory": {prefix: "/flu/./h3n2", wantErr: true},
		"Error on windows separator": {prefix: `/flu\h3n2`, wantErr: true},
		"Error on slash only prefix": {prefix: "/", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := dataset.InterpretRequest(tc.prefix, tc.typ)
			if tc.wantErr {
				require.ErrorIs(t, err, dataset.ErrBadRequest, "InterpretRequest should return a bad request error")
				return
			}
			require.NoError(t, err, "InterpretRequest should not return an error")
			assert.Equal(t, tc.wantParts, got.Parts, "Unexpected request parts")
			assert.Equal(t, tc.wantType, got.DataType, "Unexpected data type")
		})
	}
}

func TestClosestMatch(t *testing.T) {
	t.Parallel()

	available := datasets("flu/seasonal/h3n2/ha/2y", "flu/seasonal/h3n2/ha/6m", "flu/seasonal/h1n1pdm/ha/2y", "zika", "ebola")

	tests := map[string]struct {
		parts []string

		want   string
		wantOK bool
	}{
		"Partial prefix picks the closest":     {parts: []string{"flu", "seasonal"}, want: "flu/seasonal/h3n2/ha/2y", wantOK: true},
		"Unknown part after a known prefix":    {parts: []string{"flu", "seasonal", "h1n1pdm", "na"}, want: "flu/seasonal/h1n1pdm/ha/2y", wantOK: true},
		"Ties go to the listing order":         {parts: []string{"flu", "seasonal", "h3n2", "ha"}, want: "flu/seasonal/h3n2/ha/2y", wantOK: true},
		"Wrong trailing part":                  {parts: []string{"flu", "seasonal", "h3n2", "ha", "12y"}, want: "flu/seasonal/h3n2/ha/2y", wantOK: true},
		"Unknown root has no match":            {parts: []string{"dengue"}},
		"Exact match is never a redirect":      {parts: []string{"zika"}},
		"Exact deep match is never a redirect": {parts: []string{"flu", "seasonal", "h3n2", "ha", "6m"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, ok := dataset.ClosestMatch(tc.parts, available)
			require.Equal(t, tc.wantOK, ok, "ClosestMatch returned an unexpected match status")
			assert.Equal(t, tc.want, got, "ClosestMatch returned an unexpected match")
		})
	}
}

func TestFetchAddress(t *testing.T) {
	t.Parallel()

	available := []dataset.Dataset{
		{Request: "flu/h3n2", V2: true, Dir: "/v2"},
		{Request: "zika", Dir: "/v1"},
	}

	tests := map[string]struct {
		prefix string
		typ    string

		want    dataset.Address
		wantErr error
	}{
		"v2 main file":       {prefix: "/flu/h3n2", want: dataset.Address{File: filepath.Join("/v2", "flu_h3n2.json")}},
		"v2 sidecar":         {prefix: "/flu/h3n2", typ: "tip-frequencies", want: dataset.Address{File: filepath.Join("/v2", "flu_h3n2_tip-frequencies.json")}},
		"v1 meta and tree":   {prefix: "/zika", want: dataset.Address{Meta: filepath.Join("/v1", "zika_meta.json"), Tree: filepath.Join("/v1", "zika_tree.json")}},
		"v1 sidecar":         {prefix: "/zika", typ: "root-sequence", want: dataset.Address{File: filepath.Join("/v1", "zika_root-sequence.json")}},
		"Error on not found": {prefix: "/dengue", wantErr: dataset.ErrNotFound},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			req, err := dataset.InterpretRequest(tc.prefix, tc.typ)
			require.NoError(t, err, "Setup: could not interpret request")

			got, err := dataset.FetchAddress(req, available)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr, "FetchAddress should return the expected error")
				return
			}
			require.NoError(t, err, "FetchAddress should not return an error")
			assert.Equal(t, tc.want, got, "FetchAddress returned an unexpected address")
			assert.Equal(t, tc.want.Meta != "", got.IsV1Pair(), "IsV1Pair should match the address kind")
		})
	}
}

func datasets(requests ...string) []dataset.Dataset {
	var ds []dataset.Dataset
	for _, r := range requests {
		ds = append(ds, dataset.Dataset{Request: r, V2: true})
	}
	return ds
}
