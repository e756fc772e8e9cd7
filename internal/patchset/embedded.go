package patchset

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

//go:embed documents/*.yaml
var embedded embed.FS

// EmbeddedSource serves the documents compiled into the binary.
type EmbeddedSource struct{}

var _ Source = EmbeddedSource{}

// Name implements [Source].
func (EmbeddedSource) Name() string { return "embedded" }

// Fetch implements [Source].
func (EmbeddedSource) Fetch(_ context.Context, tag string) ([]byte, error) {
	return readDocument(embedded, "documents", tag)
}

// FileSource reads "<tag>.yaml" documents from a directory.
type FileSource struct {
	Dir string
}

var _ Source = FileSource{}

// Name implements [Source].
func (s FileSource) Name() string { return "file:" + s.Dir }

// Fetch implements [Source].
func (s FileSource) Fetch(_ context.Context, tag string) ([]byte, error) {
	return readDocument(os.DirFS(s.Dir), ".", tag)
}

func readDocument(fsys fs.FS, dir, tag string) ([]byte, error) {
	if tag == "" || strings.ContainsAny(tag, `/\.`) {
		return nil, fmt.Errorf("patchset: invalid release tag %q", tag)
	}
	data, err := fs.ReadFile(fsys, path.Join(dir, tag+".yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: missing %s.yaml", ErrNotFound, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("patchset: read %s.yaml: %w", tag, err)
	}
	return data, nil
}
