// Package dataset implements the dataset conventions of the charon API: how dataset and
// narrative requests map onto files, which datasets are available in a directory, how a
// request is resolved to files on disk and how legacy v1 datasets are converted to v2.
package dataset

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// TypeDataset is the data type of the main dataset JSON.
	TypeDataset = "dataset"

	// TypeTree is a deprecated alias of TypeDataset.
	TypeTree = "tree"

	jsonExt     = ".json"
	markdownExt = ".md"

	v1MetaSuffix = "_meta.json"
	v1TreeSuffix = "_tree.json"

	narrativePrefix = "narratives/"
	narrativeReadme = "README.md"
)

// Sidecars are the auxiliary files which can be requested alongside a dataset.
var Sidecars = []string{"tip-frequencies", "root-sequence", "measurements"}

// notV2Patterns matches JSON files in a dataset directory which are not v2 main dataset files.
var notV2Patterns = []string{
	"*manifest*",
	"*" + v1TreeSuffix,
	"*" + v1MetaSuffix,
	"*_tip-frequencies.json",
	"*_root-sequence.json",
	"*_seq.json",
	"*_measurements.json",
}

// IsV2File reports whether name is the main file of a v2 dataset.
func IsV2File(name string) bool {
	if !strings.HasSuffix(name, jsonExt) {
		return false
	}
	for _, p := range notV2Patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return false
		}
	}
	return true
}

// IsV1TreeFile reports whether name is the tree file of a v1 dataset.
func IsV1TreeFile(name string) bool {
	return strings.HasSuffix(name, v1TreeSuffix)
}

// IsNarrativeFile reports whether name is a narrative markdown file.
func IsNarrativeFile(name string) bool {
	return strings.HasSuffix(name, markdownExt) && name != narrativeReadme
}

// RequestFromBase converts an on-disk base name (flu_seasonal_h3n2) to a request (flu/seasonal/h3n2).
func RequestFromBase(base string) string {
	return strings.ReplaceAll(base, "_", "/")
}

// BaseFromParts converts request parts to the on-disk base name.
func BaseFromParts(parts []string) string {
	return strings.Join(parts, "_")
}

// MainFile is the file name of the v2 dataset with the given base name.
func MainFile(base string) string {
	return base + jsonExt
}

// SidecarFile is the file name of a sidecar of the dataset with the given base name.
func SidecarFile(base, sidecar string) string {
	return base + "_" + sidecar + jsonExt
}

// V1Files are the file names of the v1 meta and tree JSONs with the given base name.
func V1Files(base string) (meta, tree string) {
	return base + v1MetaSuffix, base + v1TreeSuffix
}
