package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docquery/types"
)

func testLoaderConfig() types.Config {
	return types.Config{
		ChunkSize:    50,
		ChunkOverlap: 10,
		TopK:         5,
		Threshold:    0.3,
	}
}

func TestProcessFileUnsupportedExtension(t *testing.T) {
	dl, err := NewWithTokenizer(testLoaderConfig(), newWordTokenizer())
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	chunks, err := dl.ProcessFile(path)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestProcessFileDispatchesByExtension(t *testing.T) {
	dl, err := NewWithTokenizer(testLoaderConfig(), newWordTokenizer())
	require.NoError(t, err)

	dir := t.TempDir()
	path := writeEmail(t, dir, "Message.EML", plainEmail)

	chunks, err := dl.ProcessFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "email", chunks[0].Section)
}

func TestProcessDirectorySkipsFailingFiles(t *testing.T) {
	dl, err := NewWithTokenizer(testLoaderConfig(), newWordTokenizer())
	require.NoError(t, err)

	dir := t.TempDir()
	writeEmail(t, dir, "good.eml", plainEmail)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.docx"), []byte("not a zip"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("skip me"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	chunks, err := dl.ProcessDirectory(dir)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.Equal(t, "good", chunk.Source)
	}
}

func TestProcessDirectoryMissingDir(t *testing.T) {
	dl, err := NewWithTokenizer(testLoaderConfig(), newWordTokenizer())
	require.NoError(t, err)

	_, err = dl.ProcessDirectory(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "policy", fileStem("/docs/policy.pdf"))
	assert.Equal(t, "mail", fileStem("mail.eml"))
	assert.Equal(t, "archive.tar", fileStem("archive.tar.gz"))
}
