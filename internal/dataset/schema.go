package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SchemaVersion is the version tag of the current dataset schema.
const SchemaVersion = "v2"

// Entry is a key and value of a JSON object, as found in the input.
type Entry[T any] struct {
	Key   string
	Value T
}

// Ordered is a JSON object decoded in its input key order.
type Ordered[T any] []Entry[T]

// UnmarshalJSON implements json.Unmarshaler.
func (o *Ordered[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*o = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var out Ordered[T]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected an object key, got %v", tok)
		}
		var v T
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("%s: %v", key, err)
		}
		out = append(out, Entry[T]{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*o = out
	return nil
}

// V1Meta is the legacy *_meta.json file.
type V1Meta struct {
	Title          string                          `json:"title"`
	Updated        string                          `json:"updated"`
	Maintainer     json.RawMessage                 `json:"maintainer"`
	ColorOptions   Ordered[V1ColorOption]          `json:"color_options"`
	Geo            Ordered[map[string]Coordinates] `json:"geo"`
	Filters        []string                        `json:"filters"`
	Panels         []string                        `json:"panels"`
	Annotations    Ordered[V1Annotation]           `json:"annotations"`
	AuthorInfo     map[string]V1Author             `json:"author_info"`
	Defaults       V1Defaults                      `json:"defaults"`
	VaccineChoices map[string]string               `json:"vaccine_choices"`
}

// V1ColorOption is a coloring entry of the legacy color_options.
type V1ColorOption struct {
	MenuItem    string  `json:"menuItem"`
	LegendTitle string  `json:"legendTitle"`
	Type        string  `json:"type"`
	ColorMap    [][]any `json:"color_map"`
}

// V1Annotation is a genome annotation of the legacy meta file.
type V1Annotation struct {
	Start  int64 `json:"start"`
	End    int64 `json:"end"`
	Strand any   `json:"strand"`
}

// V1Author holds the publication details of a legacy author entry.
type V1Author struct {
	Title    string `json:"title"`
	Journal  string `json:"journal"`
	PaperURL string `json:"paper_url"`
	N        int    `json:"n"`
}

// V1Defaults are the legacy display defaults.
type V1Defaults struct {
	ColorBy         string `json:"colorBy"`
	GeoResolution   string `json:"geoResolution"`
	DistanceMeasure string `json:"distanceMeasure"`
	Layout          string `json:"layout"`
	MapTriplicate   *bool  `json:"mapTriplicate"`
}

// V1Node is a node of the legacy *_tree.json file.
type V1Node struct {
	Strain   string              `json:"strain"`
	Attr     map[string]any      `json:"attr"`
	Muts     []string            `json:"muts"`
	AAMuts   map[string][]string `json:"aa_muts"`
	Children []*V1Node           `json:"children"`
}

// Dataset v2 types.

// V2 is a single file v2 dataset.
type V2 struct {
	Version string `json:"version"`
	Meta    Meta   `json:"meta"`
	Tree    *Node  `json:"tree"`
}

// Meta is the v2 metadata block.
type Meta struct {
	Title             string                `json:"title,omitempty"`
	Updated           string                `json:"updated,omitempty"`
	BuildURL          string                `json:"build_url,omitempty"`
	Maintainers       []Maintainer          `json:"maintainers,omitempty"`
	Colorings         []Coloring            `json:"colorings"`
	GeoResolutions    []GeoResolution       `json:"geo_resolutions,omitempty"`
	Filters           []string              `json:"filters,omitempty"`
	Panels            []string              `json:"panels"`
	DisplayDefaults   *DisplayDefaults      `json:"display_defaults,omitempty"`
	GenomeAnnotations map[string]Annotation `json:"genome_annotations,omitempty"`
}

// Maintainer is a person or group maintaining a dataset.
type Maintainer struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Coloring is a trait the tree can be colored by.
type Coloring struct {
	Key   string  `json:"key"`
	Title string  `json:"title,omitempty"`
	Type  string  `json:"type"`
	Scale [][]any `json:"scale,omitempty"`
}

// Coordinates is a geographic position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeoResolution maps the demes of a trait to positions.
type GeoResolution struct {
	Key   string                 `json:"key"`
	Demes map[string]Coordinates `json:"demes"`
}

// DisplayDefaults are the default view settings.
type DisplayDefaults struct {
	ColorBy         string `json:"color_by,omitempty"`
	GeoResolution   string `json:"geo_resolution,omitempty"`
	DistanceMeasure string `json:"distance_measure,omitempty"`
	Layout          string `json:"layout,omitempty"`
	MapTriplicate   *bool  `json:"map_triplicate,omitempty"`
}

// Annotation is a genome annotation.
type Annotation struct {
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
	Strand string `json:"strand,omitempty"`
}

// Node is a v2 tree node.
type Node struct {
	Name        string         `json:"name"`
	NodeAttrs   map[string]any `json:"node_attrs,omitempty"`
	BranchAttrs *BranchAttrs   `json:"branch_attrs,omitempty"`
	Children    []*Node        `json:"children,omitempty"`
}

// BranchAttrs are the attributes of the branch leading to a node.
type BranchAttrs struct {
	Mutations map[string][]string `json:"mutations,omitempty"`
	Labels    map[string]string   `json:"labels,omitempty"`
}

// Attr is a node trait value.
type Attr struct {
	Value      any `json:"value"`
	Confidence any `json:"confidence,omitempty"`
	Entropy    any `json:"entropy,omitempty"`
}

// AuthorAttr is the author trait of a node.
type AuthorAttr struct {
	Value    string `json:"value"`
	Title    string `json:"title,omitempty"`
	Journal  string `json:"journal,omitempty"`
	PaperURL string `json:"paper_url,omitempty"`
}
