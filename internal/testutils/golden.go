package testutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// UpdateGoldenEnv is the environment variable which, set to a non-empty value, rewrites the
// golden files from the current results instead of comparing against them.
const UpdateGoldenEnv = "TESTS_UPDATE_GOLDEN"

// GoldenPath returns the golden file path for the current test: testdata/golden/<TestName>/<subtest>.
func GoldenPath(t *testing.T) string {
	t.Helper()

	parts := strings.SplitN(t.Name(), "/", 2)
	path := filepath.Join("testdata", "golden", parts[0])
	if len(parts) == 2 {
		path = filepath.Join(path, normalizeGoldenName(parts[1]))
	}
	return path
}

// LoadWithUpdateFromGolden returns the content of the golden file of the current test.
// When UpdateGoldenEnv is set, got is written to the golden file first.
func LoadWithUpdateFromGolden(t *testing.T, got string) string {
	t.Helper()

	path := GoldenPath(t)
	if os.Getenv(UpdateGoldenEnv) != "" {
		t.Logf("Updating golden file %s", path)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750), "Cannot create golden directory")
		require.NoError(t, os.WriteFile(path, []byte(got), 0600), "Cannot write golden file")
	}

	want, err := os.ReadFile(path)
	require.NoError(t, err, "Cannot load golden file %s", path)
	return strings.ReplaceAll(string(want), "\r\n", "\n")
}

// LoadWithUpdateFromGoldenYAML is like LoadWithUpdateFromGolden for a value marshalled as YAML.
func LoadWithUpdateFromGoldenYAML[T any](t *testing.T, got T) T {
	t.Helper()

	data, err := yaml.Marshal(got)
	require.NoError(t, err, "Cannot marshal value to YAML")

	var want T
	require.NoError(t, yaml.Unmarshal([]byte(LoadWithUpdateFromGolden(t, string(data))), &want), "Cannot unmarshal golden file")
	return want
}

func normalizeGoldenName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, name)
}
