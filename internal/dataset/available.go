package dataset

import (
	"path/filepath"
	"strings"
)

// Dataset is a dataset available to the client.
type Dataset struct {
	Request           string   `json:"request"`
	V2                bool     `json:"v2"`
	SecondTreeOptions []string `json:"secondTreeOptions"`
	BuildURL          string   `json:"buildUrl,omitempty"`

	// Dir is the directory the dataset files live in.
	Dir string `json:"-"`
}

// Narrative is a narrative available to the client.
type Narrative struct {
	Request string `json:"request"`

	// Path is the full path of the markdown file.
	Path string `json:"-"`
}

// AvailableDatasets returns the datasets which can be built from the file names found in dir.
//
// v2 datasets are listed before v1 ones. If v1 and v2 files share a base name, both are listed
// here and Unique is responsible for keeping the v2 one.
func AvailableDatasets(dir string, files []string) []Dataset {
	var v2, v1 []string
	for _, f := range files {
		switch {
		case IsV2File(f):
			v2 = append(v2, RequestFromBase(strings.TrimSuffix(f, jsonExt)))
		case IsV1TreeFile(f):
			v1 = append(v1, RequestFromBase(strings.TrimSuffix(f, v1TreeSuffix)))
		}
	}

	datasets := make([]Dataset, 0, len(v2)+len(v1))
	for _, r := range v2 {
		datasets = append(datasets, Dataset{
			Request:           r,
			V2:                true,
			SecondTreeOptions: SecondTreeOptions(r, v2),
			Dir:               dir,
		})
	}
	for _, r := range v1 {
		datasets = append(datasets, Dataset{
			Request:           r,
			SecondTreeOptions: SecondTreeOptions(r, v1),
			Dir:               dir,
		})
	}
	return datasets
}

// AvailableNarratives returns the narratives found in the file names of dir.
func AvailableNarratives(dir string, files []string) []Narrative {
	var narratives []Narrative
	for _, f := range files {
		if !IsNarrativeFile(f) {
			continue
		}
		narratives = append(narratives, Narrative{
			Request: narrativePrefix + RequestFromBase(strings.TrimSuffix(f, markdownExt)),
			Path:    filepath.Join(dir, f),
		})
	}
	return narratives
}

// SecondTreeOptions returns the requests in available which can be shown as a second tree next to current.
//
// A candidate is a different request with the same number of parts, the same first part
// (the pathogen) and at most one differing part.
func SecondTreeOptions(current string, available []string) []string {
	cur := strings.Split(current, "/")
	options := []string{}
	for _, candidate := range available {
		if candidate == current {
			continue
		}
		parts := strings.Split(candidate, "/")
		if len(parts) != len(cur) || parts[0] != cur[0] {
			continue
		}
		diff := 0
		for i := range cur {
			if parts[i] != cur[i] {
				diff++
			}
		}
		if diff > 1 {
			continue
		}
		options = append(options, candidate)
	}
	return options
}

// UniqueDatasets drops datasets whose request was already seen. The first one wins.
func UniqueDatasets(datasets []Dataset) []Dataset {
	seen := make(map[string]struct{}, len(datasets))
	out := make([]Dataset, 0, len(datasets))
	for _, d := range datasets {
		if _, ok := seen[d.Request]; ok {
			continue
		}
		seen[d.Request] = struct{}{}
		out = append(out, d)
	}
	return out
}

// UniqueNarratives drops narratives whose request was already seen. The first one wins.
func UniqueNarratives(narratives []Narrative) []Narrative {
	seen := make(map[string]struct{}, len(narratives))
	out := make([]Narrative, 0, len(narratives))
	for _, n := range narratives {
		if _, ok := seen[n.Request]; ok {
			continue
		}
		seen[n.Request] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Find returns the dataset matching request exactly.
func Find(datasets []Dataset, request string) (Dataset, bool) {
	for _, d := range datasets {
		if d.Request == request {
			return d, true
		}
	}
	return Dataset{}, false
}
