package attach

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataURI(mime string, payload []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

func TestDecodeExtensionResolution(t *testing.T) {
	cases := []struct {
		mime string
		ext  string
	}{
		{"image/png", "png"},
		{"image/jpeg", "jpeg"},
		{"image/webp", "webp"},
		{"application/pdf", "pdf"},
		{"application/msword", "doc"},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "docx"},
		{"text/plain", "txt"},
		{"application/zip", "zip"},
		{"application/unknown", "txt"},
		{"image/tiff", "txt"},
	}

	for _, tc := range cases {
		t.Run(tc.mime, func(t *testing.T) {
			f, err := Decode(dataURI(tc.mime, []byte("payload")))
			require.NoError(t, err)
			assert.Equal(t, tc.ext, f.Ext)
			assert.Equal(t, []byte("payload"), f.Data)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode("not a data uri")
	require.ErrorIs(t, err, ErrMalformed)

	_, err = Decode("data:image/png;base64,!!!not-base64!!!")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestStoreSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, "/media/")
	require.NoError(t, err)

	url, err := store.Save(File{Data: []byte("hello"), Ext: "txt"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/media/"), "url = %q", url)
	require.True(t, strings.HasSuffix(url, ".txt"), "url = %q", url)

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	// Names are unique per save.
	second, err := store.Save(File{Data: []byte("hello"), Ext: "txt"})
	require.NoError(t, err)
	assert.NotEqual(t, url, second)
}

func TestNewStoreCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "media")
	store, err := NewStore(dir, "/media")
	require.NoError(t, err)
	info, err := os.Stat(store.Dir())
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
