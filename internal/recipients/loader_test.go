package recipients

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileLoader(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		file    string
		content string
		want    []string
	}{
		{name: "json", file: "recipients.json", content: `["a@example.com", " b@example.com "]`, want: []string{"a@example.com", "b@example.com"}},
		{name: "txt skips blanks", file: "recipients.txt", content: "a@example.com\n\n  \nb@example.com\n", want: []string{"a@example.com", "b@example.com"}},
		{name: "yaml", file: "recipients.yaml", content: "- a@example.com\n- b@example.com\n", want: []string{"a@example.com", "b@example.com"}},
		{name: "yml uppercase ext", file: "RECIPIENTS.YML", content: "- a@example.com\n", want: []string{"a@example.com"}},
		{name: "malformed json", file: "recipients.json", content: `{"to": "a@example.com"}`, want: nil},
		{name: "unsupported ext", file: "recipients.csv", content: "a@example.com", want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := FileLoader{Path: write(t, tc.file, tc.content)}.Load()
			if tc.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFileLoaderMissingFile(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FileLoader{Path: filepath.Join(t.TempDir(), "missing.json")}.Load())
	assert.Empty(t, FileLoader{}.Load())
}
