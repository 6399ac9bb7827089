package upload

import (
	"archive/zip"
	"bytes"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Limits bounds the size of an upload.
type Limits struct {
	MaxFiles     int
	MaxFileBytes int64
	MaxTotal     int64
}

// DefaultLimits are applied by the HTTP service and the CLI.
var DefaultLimits = Limits{
	MaxFiles:     500,
	MaxFileBytes: 5 << 20,
	MaxTotal:     25 << 20,
}

// IgnoredPatterns lists archive and OS artifacts dropped from every upload.
var IgnoredPatterns = []string{
	"__MACOSX/**",
	"**/.DS_Store",
	"**/Thumbs.db",
	"**/.git/**",
}

// NormalizePath converts p to a clean, slash-separated relative path and
// rejects paths that would escape the upload root.
func NormalizePath(p string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", errors.Errorf("invalid file path %q", p)
	}
	for _, segment := range strings.Split(strings.ReplaceAll(p, "\\", "/"), "/") {
		if segment == ".." {
			return "", errors.Errorf("file path %q escapes the upload root", p)
		}
	}
	return cleaned, nil
}

func ignored(p string) bool {
	for _, pattern := range IgnoredPatterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// Clean normalizes every path and drops ignored artifacts. The input is not
// modified.
func Clean(files []File) ([]File, error) {
	out := make([]File, 0, len(files))
	for _, f := range files {
		p, err := NormalizePath(f.Path)
		if err != nil {
			return nil, err
		}
		if ignored(p) {
			continue
		}
		out = append(out, File{Path: p, Content: f.Content})
	}
	return out, nil
}

// Archive is the content of an uploaded zip file.
type Archive struct {
	Files []File
	// RootName is the folder wrapping every entry, or the archive name
	// without its extension when there is none.
	RootName string
}

// ExtractZip reads a zip archive into memory, skipping directories and
// ignored artifacts.
func ExtractZip(r io.ReaderAt, size int64, name string, limits Limits) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open zip archive")
	}

	var files []File
	var total int64
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		p, err := NormalizePath(entry.Name)
		if err != nil {
			return nil, err
		}
		if ignored(p) {
			continue
		}
		if limits.MaxFiles > 0 && len(files) >= limits.MaxFiles {
			return nil, errors.Errorf("archive holds more than %d files", limits.MaxFiles)
		}

		content, err := readEntry(entry, limits.MaxFileBytes)
		if err != nil {
			return nil, err
		}
		total += int64(len(content))
		if limits.MaxTotal > 0 && total > limits.MaxTotal {
			return nil, errors.Errorf("archive content exceeds %d bytes", limits.MaxTotal)
		}
		files = append(files, File{Path: p, Content: content})
	}

	if len(files) == 0 {
		return nil, errors.New("archive contains no files")
	}

	archive := &Archive{Files: files, RootName: strings.TrimSuffix(path.Base(name), path.Ext(name))}
	if root, ok := singleRootFolder(files); ok {
		archive.RootName = root
		prefix := root + "/"
		for i := range archive.Files {
			archive.Files[i].Path = strings.TrimPrefix(archive.Files[i].Path, prefix)
		}
	}
	return archive, nil
}

// singleRootFolder reports the folder every entry lives under, as long as
// at least one entry is nested. Unlike StripRoot it also unwraps a
// single-file archive, since a zip entry path always names its folder.
func singleRootFolder(files []File) (string, bool) {
	var root string
	nested := false
	for i, f := range files {
		segment, _, found := strings.Cut(f.Path, "/")
		if !found {
			return "", false
		}
		nested = true
		if i == 0 {
			root = segment
		} else if segment != root {
			return "", false
		}
	}
	return root, nested
}

func readEntry(entry *zip.File, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 && entry.UncompressedSize64 > uint64(maxBytes) {
		return nil, errors.Errorf("file %q exceeds %d bytes", entry.Name, maxBytes)
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", entry.Name)
	}
	defer rc.Close()

	var buf bytes.Buffer
	reader := io.Reader(rc)
	if maxBytes > 0 {
		reader = io.LimitReader(rc, maxBytes+1)
	}
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, errors.Wrapf(err, "failed to read %q", entry.Name)
	}
	if maxBytes > 0 && int64(buf.Len()) > maxBytes {
		return nil, errors.Errorf("file %q exceeds %d bytes", entry.Name, maxBytes)
	}
	return buf.Bytes(), nil
}

// ReadDir loads every regular file below root, with paths relative to root.
func ReadDir(root string, limits Limits) ([]File, error) {
	var files []File
	var total int64

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && ignored(rel+"/x") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || ignored(rel) {
			return nil
		}
		if limits.MaxFiles > 0 && len(files) >= limits.MaxFiles {
			return errors.Errorf("directory holds more than %d files", limits.MaxFiles)
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", rel)
		}
		if limits.MaxFileBytes > 0 && int64(len(content)) > limits.MaxFileBytes {
			return errors.Errorf("file %q exceeds %d bytes", rel, limits.MaxFileBytes)
		}
		total += int64(len(content))
		if limits.MaxTotal > 0 && total > limits.MaxTotal {
			return errors.Errorf("directory content exceeds %d bytes", limits.MaxTotal)
		}
		files = append(files, File{Path: rel, Content: content})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", root)
	}
	if len(files) == 0 {
		return nil, errors.Errorf("%s contains no files", root)
	}
	return files, nil
}
