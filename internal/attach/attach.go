package attach

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrMalformed reports a file payload that is not a base64 data URI.
var ErrMalformed = errors.New("malformed data uri")

// imageExts are extensions trusted straight from the MIME descriptor's path
// segment; anything else goes through the MIME table.
var imageExts = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "svg": {}, "webp": {},
}

// mimeExts maps known non-image MIME types to stored extensions.
var mimeExts = map[string]string{
	"application/pdf":    "pdf",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"text/plain":      "txt",
	"application/zip": "zip",
}

// File is a decoded attachment ready to be stored.
type File struct {
	Data []byte
	Ext  string
}

// Decode parses a "data:<mime>;base64,<payload>" URI. The extension comes
// from the descriptor's path segment when it is a known image format,
// otherwise from the MIME table, defaulting to txt for unknown types.
func Decode(dataURI string) (File, error) {
	descriptor, payload, ok := strings.Cut(dataURI, ";base64,")
	if !ok {
		return File{}, ErrMalformed
	}

	ext := descriptor[strings.LastIndex(descriptor, "/")+1:]
	if _, ok := imageExts[ext]; !ok {
		mime := descriptor
		if _, after, ok := strings.Cut(descriptor, ":"); ok {
			mime = after
		}
		mapped, ok := mimeExts[mime]
		if !ok {
			mapped = "txt"
		}
		ext = mapped
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return File{Data: data, Ext: ext}, nil
}

// Store writes attachments to a media directory under random names. The
// original upload name is discarded.
type Store struct {
	dir       string
	urlPrefix string
}

// NewStore creates the media directory if needed. Stored files are reachable
// under urlPrefix (e.g. "/media").
func NewStore(dir, urlPrefix string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Dir reports the backing directory, for static route wiring.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the file and returns its URL path.
func (s *Store) Save(f File) (string, error) {
	name := fmt.Sprintf("%s.%s", uuid.NewString(), f.Ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), f.Data, 0o644); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return path.Join(s.urlPrefix, name), nil
}
