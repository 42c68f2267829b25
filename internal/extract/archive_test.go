package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/rawsence/procheck/internal/pkg/errors"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestUnpackZipFiltersByExtension(t *testing.T) {
	raw := buildZip(t, map[string]string{
		"guide.md":     "# Guide",
		"notes.txt":    "ignored",
		"sub/deep.md":  "# Deep",
		"image.png":    "ignored",
	})
	entries, err := Unpack(context.Background(), raw, "bundle.zip", t.TempDir())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		require.Equal(t, KindMarkdown, entry.Kind)
		require.FileExists(t, entry.StagedPath)
	}
}

func TestUnpackZipSanitizesNames(t *testing.T) {
	raw := buildZip(t, map[string]string{"../../evil.md": "# Evil"})
	staging := t.TempDir()
	entries, err := Unpack(context.Background(), raw, "bundle.zip", staging)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotContains(t, entries[0].SafeName, "..")
	require.Contains(t, entries[0].StagedPath, staging)
}

func TestUnpackZipNoAcceptedEntries(t *testing.T) {
	raw := buildZip(t, map[string]string{"a.txt": "x", "b.csv": "y"})
	_, err := Unpack(context.Background(), raw, "bundle.zip", t.TempDir())
	require.ErrorIs(t, err, appErr.ErrNoDocuments)
}

func TestUnpackMalformedZip(t *testing.T) {
	raw := append([]byte("PK\x03\x04"), []byte("not really a zip")...)
	_, err := Unpack(context.Background(), raw, "bundle.zip", t.TempDir())
	require.ErrorIs(t, err, appErr.ErrExtraction)
}

func TestUnpackSingleDocument(t *testing.T) {
	entries, err := Unpack(context.Background(), []byte("# Single"), "protocol.md", t.TempDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "protocol.md", entries[0].SafeName)
	require.Equal(t, KindMarkdown, entries[0].Kind)
}

func TestUnpackSingleUnsupportedType(t *testing.T) {
	_, err := Unpack(context.Background(), []byte("plain"), "notes.txt", t.TempDir())
	require.ErrorIs(t, err, appErr.ErrNoDocuments)
}

func TestUnpackHonorsCancelledContext(t *testing.T) {
	raw := buildZip(t, map[string]string{"a.md": "x", "b.md": "y"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Unpack(ctx, raw, "bundle.zip", t.TempDir())
	require.ErrorIs(t, err, appErr.ErrCancelled)
}

func TestSanitizeName(t *testing.T) {
	require.Equal(t, "evil.md", SanitizeName("../../evil.md"))
	require.Equal(t, "doc.md", SanitizeName("nested/dir/doc.md"))
}
