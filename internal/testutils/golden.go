package testutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// UpdateGoldenEnv is the environment variable that rewrites the golden files with the test results when set.
const UpdateGoldenEnv = "TESTS_UPDATE_GOLDEN"

type goldenOptions struct {
	path string
}

// GoldenOption is a supported option reference to change the golden files comparison.
type GoldenOption func(*goldenOptions)

// WithGoldenPath overrides the path of the golden file used.
func WithGoldenPath(path string) GoldenOption {
	return func(o *goldenOptions) {
		if path != "" {
			o.path = path
		}
	}
}

// GoldenPath returns the golden path of the test: testdata/golden/<test name>, one directory per subtest level.
func GoldenPath(t *testing.T) string {
	t.Helper()

	return filepath.Join("testdata", "golden", filepath.FromSlash(t.Name()))
}

// LoadWithUpdateFromGolden loads the golden file of the test and returns its content.
// The file is first written with data when UpdateGoldenEnv is set.
func LoadWithUpdateFromGolden(t *testing.T, data string, opts ...GoldenOption) string {
	t.Helper()

	o := goldenOptions{path: GoldenPath(t)}
	for _, f := range opts {
		f(&o)
	}

	if os.Getenv(UpdateGoldenEnv) != "" {
		t.Logf("updating golden file %s", o.path)
		require.NoError(t, os.MkdirAll(filepath.Dir(o.path), 0750), "Cannot create directory for updating golden files")
		require.NoError(t, os.WriteFile(o.path, []byte(data), 0600), "Cannot write golden file")
	}

	want, err := os.ReadFile(o.path)
	require.NoError(t, err, "Cannot load golden file %s, run with %s=1 to create it", o.path, UpdateGoldenEnv)

	return strings.ReplaceAll(string(want), "\r\n", "\n")
}

// LoadWithUpdateFromGoldenYAML is LoadWithUpdateFromGolden for a value stored as YAML.
func LoadWithUpdateFromGoldenYAML[T any](t *testing.T, got T, opts ...GoldenOption) T {
	t.Helper()

	b, err := yaml.Marshal(got)
	require.NoError(t, err, "Cannot serialize provided object")
	want := LoadWithUpdateFromGolden(t, string(b), opts...)

	var wantObj T
	require.NoError(t, yaml.Unmarshal([]byte(want), &wantObj), "Cannot deserialize golden file")
	return wantObj
}
