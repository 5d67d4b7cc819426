package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	// ErrBadRequest is returned when a request query cannot be interpreted.
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound is returned when the requested dataset is not available.
	ErrNotFound = errors.New("not in available datasets")
)

// Request is an interpreted getDataset request.
type Request struct {
	Parts    []string
	DataType string
}

// Path returns the slash separated request path.
func (r Request) Path() string {
	return strings.Join(r.Parts, "/")
}

// IsSidecar reports whether a sidecar file, rather than the main dataset, was requested.
func (r Request) IsSidecar() bool {
	return r.DataType != TypeDataset
}

// SplitPrefix strips a single leading and trailing slash from prefix and splits it on slashes.
func SplitPrefix(prefix string) []string {
	prefix = strings.TrimPrefix(prefix, "/")
	prefix = strings.TrimSuffix(prefix, "/")
	return strings.Split(prefix, "/")
}

// InterpretRequest builds a Request from the prefix and type query parameters.
func InterpretRequest(prefix, typ string) (Request, error) {
	if prefix == "" {
		return Request{}, fmt.Errorf("%w: 'prefix' not defined in request", ErrBadRequest)
	}

	parts := SplitPrefix(prefix)
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `\`+"\x00") {
			return Request{}, fmt.Errorf("%w: invalid prefix %q", ErrBadRequest, prefix)
		}
	}

	req := Request{Parts: parts}
	switch {
	case typ == "" || typ == TypeTree:
		req.DataType = TypeDataset
	case slices.Contains(Sidecars, typ):
		req.DataType = typ
	default:
		return Request{}, fmt.Errorf("%w: unknown file type '%s' requested", ErrBadRequest, typ)
	}
	return req, nil
}

// ClosestMatch returns the available request to redirect to when parts has no exact match.
//
// The available datasets are filtered one path fragment at a time from the root, stopping at the
// first fragment matching nothing. The remaining candidate closest to the request by edit distance
// wins, ties going to the listing order. It returns false if the root fragment matches nothing or
// if the best candidate is the request itself.
func ClosestMatch(parts []string, available []Dataset) (string, bool) {
	matching := available
	i := 0
	for ; i < len(parts); i++ {
		var next []Dataset
		for _, d := range matching {
			dParts := strings.Split(d.Request, "/")
			if i < len(dParts) && dParts[i] == parts[i] {
				next = append(next, d)
			}
		}
		if len(next) == 0 {
			break
		}
		matching = next
	}
	if i == 0 {
		return "", false
	}

	requested := strings.Join(parts, "/")
	best, bestDist := "", -1
	for _, d := range matching {
		dist := levenshtein.ComputeDistance(requested, d.Request)
		if bestDist < 0 || dist < bestDist {
			best, bestDist = d.Request, dist
		}
	}
	if best == requested {
		return "", false
	}
	return best, true
}

// Address locates the files answering a request.
//
// A single file is set in File. A v1 main dataset is set as the Meta and Tree pair.
type Address struct {
	File string

	Meta string
	Tree string
}

// IsV1Pair reports whether the address points to a v1 meta and tree pair needing conversion.
func (a Address) IsV1Pair() bool {
	return a.File == "" && a.Meta != "" && a.Tree != ""
}

// FetchAddress returns the files answering req among the available datasets.
func FetchAddress(req Request, available []Dataset) (Address, error) {
	d, ok := Find(available, req.Path())
	if !ok {
		return Address{}, fmt.Errorf("%s %w", req.Path(), ErrNotFound)
	}

	base := BaseFromParts(req.Parts)
	if req.IsSidecar() {
		return Address{File: filepath.Join(d.Dir, SidecarFile(base, req.DataType))}, nil
	}
	if d.V2 {
		return Address{File: filepath.Join(d.Dir, MainFile(base))}, nil
	}
	meta, tree := V1Files(base)
	return Address{Meta: filepath.Join(d.Dir, meta), Tree: filepath.Join(d.Dir, tree)}, nil
}
