package dataset

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/nextstrain/auspice/internal/fileutils"
	"github.com/ubuntu/decorate"
)

// knownPanels are the panels a v2 dataset may declare.
var knownPanels = []string{"tree", "map", "frequencies", "entropy", "measurements"}

// ConvertFiles reads a v1 meta and tree pair from disk and converts it to a v2 dataset.
func ConvertFiles(metaPath, treePath string) (v2 *V2, err error) {
	defer decorate.OnError(&err, "could not convert %s and %s", metaPath, treePath)

	var meta V1Meta
	if err := fileutils.ReadJSONFile(metaPath, &meta); err != nil {
		return nil, err
	}
	var tree V1Node
	if err := fileutils.ReadJSONFile(treePath, &tree); err != nil {
		return nil, err
	}
	return ConvertFromV1(meta, &tree)
}

// ConvertFromV1 converts a v1 meta and tree to a v2 dataset.
func ConvertFromV1(meta V1Meta, tree *V1Node) (*V2, error) {
	if tree == nil {
		return nil, fmt.Errorf("v1 tree is empty")
	}

	m, err := convertMeta(meta)
	if err != nil {
		return nil, err
	}

	return &V2{
		Version: SchemaVersion,
		Meta:    m,
		Tree:    convertNode(tree, meta),
	}, nil
}

func convertMeta(v1 V1Meta) (Meta, error) {
	m := Meta{
		Title:   v1.Title,
		Updated: v1.Updated,
		Filters: v1.Filters,
	}

	maintainers, err := convertMaintainers(v1.Maintainer)
	if err != nil {
		return Meta{}, err
	}
	m.Maintainers = maintainers

	m.Colorings = make([]Coloring, 0, len(v1.ColorOptions))
	for _, e := range v1.ColorOptions {
		m.Colorings = append(m.Colorings, convertColoring(e.Key, e.Value))
	}

	for _, e := range v1.Geo {
		m.GeoResolutions = append(m.GeoResolutions, GeoResolution{Key: e.Key, Demes: e.Value})
	}

	if len(v1.Annotations) > 0 {
		m.GenomeAnnotations = make(map[string]Annotation, len(v1.Annotations))
		for _, e := range v1.Annotations {
			m.GenomeAnnotations[e.Key] = Annotation{
				Start:  e.Value.Start,
				End:    e.Value.End,
				Strand: convertStrand(e.Value.Strand),
			}
		}
	}

	m.Panels = convertPanels(v1.Panels, len(v1.Geo) > 0, len(v1.Annotations) > 0)

	d := v1.Defaults
	if d != (V1Defaults{}) {
		m.DisplayDefaults = &DisplayDefaults{
			ColorBy:         d.ColorBy,
			GeoResolution:   d.GeoResolution,
			DistanceMeasure: d.DistanceMeasure,
			Layout:          d.Layout,
			MapTriplicate:   d.MapTriplicate,
		}
	}

	return m, nil
}

// convertMaintainers accepts "name", ["name", "url"] or [["name", "url"], ...].
func convertMaintainers(raw json.RawMessage) ([]Maintainer, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return []Maintainer{{Name: name}}, nil
	}

	var pair []string
	if err := json.Unmarshal(raw, &pair); err == nil {
		if len(pair) == 0 {
			return nil, nil
		}
		return []Maintainer{maintainerFromPair(pair)}, nil
	}

	var pairs [][]string
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("invalid maintainer %s", raw)
	}
	var maintainers []Maintainer
	for _, p := range pairs {
		if len(p) == 0 {
			continue
		}
		maintainers = append(maintainers, maintainerFromPair(p))
	}
	return maintainers, nil
}

func maintainerFromPair(pair []string) Maintainer {
	var m Maintainer
	if len(pair) > 0 {
		m.Name = pair[0]
	}
	if len(pair) > 1 {
		m.URL = pair[1]
	}
	return m
}

func convertColoring(key string, o V1ColorOption) Coloring {
	c := Coloring{Key: key, Scale: o.ColorMap}

	switch {
	case o.MenuItem != "":
		c.Title = o.MenuItem
	case o.LegendTitle != "":
		c.Title = o.LegendTitle
	default:
		c.Title = key
	}

	switch o.Type {
	case "discrete":
		c.Type = "categorical"
	case "":
		c.Type = "categorical"
		if key == "num_date" {
			c.Type = "continuous"
		}
	default:
		c.Type = o.Type
	}
	return c
}

func convertStrand(s any) string {
	switch v := s.(type) {
	case float64:
		if v < 0 {
			return "-"
		}
		if v > 0 {
			return "+"
		}
	case string:
		switch v {
		case "-1", "-":
			return "-"
		case "1", "+":
			return "+"
		}
	}
	return ""
}

func convertPanels(panels []string, hasGeo, hasAnnotations bool) []string {
	if panels == nil {
		out := []string{"tree"}
		if hasGeo {
			out = append(out, "map")
		}
		if hasAnnotations {
			out = append(out, "entropy")
		}
		return out
	}

	out := make([]string, 0, len(panels))
	for _, p := range panels {
		if slices.Contains(knownPanels, p) {
			out = append(out, p)
		}
	}
	return out
}

// convertNode converts n and its descendants.
func convertNode(n *V1Node, meta V1Meta) *Node {
	node := &Node{Name: n.Strain}

	attrs := make(map[string]any)
	var labels map[string]string

	for k, v := range n.Attr {
		switch k {
		case "strain":
		case "div":
			attrs["div"] = v
		case "num_date":
			a := Attr{Value: v}
			if c, ok := n.Attr["num_date_confidence"]; ok {
				a.Confidence = c
			}
			attrs["num_date"] = a
		case "url", "accession":
			if s, ok := v.(string); ok {
				attrs[k] = s
			} else {
				attrs[k] = fmt.Sprint(v)
			}
		case "authors":
			authors := fmt.Sprint(v)
			a := AuthorAttr{Value: authors}
			if info, ok := meta.AuthorInfo[authors]; ok {
				a.Title = info.Title
				a.Journal = info.Journal
				a.PaperURL = info.PaperURL
			}
			attrs["author"] = a
		case "clade_annotation":
			if labels == nil {
				labels = make(map[string]string)
			}
			labels["clade"] = fmt.Sprint(v)
		default:
			if base, ok := foldedSuffix(k); ok {
				if _, exists := n.Attr[base]; exists {
					continue
				}
			}
			a := Attr{Value: v}
			if c, ok := n.Attr[k+"_confidence"]; ok {
				a.Confidence = c
			}
			if e, ok := n.Attr[k+"_entropy"]; ok {
				a.Entropy = e
			}
			attrs[k] = a
		}
	}

	if date, ok := meta.VaccineChoices[n.Strain]; ok {
		attrs["vaccine"] = map[string]string{"selection_date": date}
	}
	if len(attrs) > 0 {
		node.NodeAttrs = attrs
	}

	mutations := convertMutations(n.Muts, n.AAMuts)
	if mutations != nil || labels != nil {
		node.BranchAttrs = &BranchAttrs{Mutations: mutations, Labels: labels}
	}

	for _, c := range n.Children {
		node.Children = append(node.Children, convertNode(c, meta))
	}
	return node
}

// foldedSuffix returns the trait a <trait>_confidence or <trait>_entropy key belongs to.
func foldedSuffix(k string) (string, bool) {
	for _, s := range []string{"_confidence", "_entropy"} {
		if base, ok := strings.CutSuffix(k, s); ok && base != "" {
			return base, true
		}
	}
	return "", false
}

func convertMutations(nuc []string, aa map[string][]string) map[string][]string {
	m := make(map[string][]string)
	if len(nuc) > 0 {
		m["nuc"] = nuc
	}
	for gene, muts := range aa {
		if len(muts) > 0 {
			m[gene] = muts
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
