// Package source loads raw log text for parsing: files, directory trees,
// stdin and the output of configured commands.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/setevik/alarmtrace/internal/format"
)

// StdinPath selects standard input as a source.
const StdinPath = "-"

// DefaultExtensions are the file suffixes picked up when walking directories.
var DefaultExtensions = []string{".txt", ".log", ".log1", ".csv"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader reads sources into a map of source id to decoded text.
type Loader struct {
	extensions []string
	stdin      io.Reader
}

// NewLoader creates a Loader. Directory walks keep files whose lowercase
// name ends in one of extensions; nil means DefaultExtensions.
func NewLoader(extensions []string) *Loader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	lower := make([]string, len(extensions))
	for i, ext := range extensions {
		lower[i] = strings.ToLower(ext)
	}
	return &Loader{extensions: lower, stdin: os.Stdin}
}

// Load reads every path. A failing path is reported in the returned error
// but does not stop the others from loading, so callers should use whatever
// sources came back even when err is non-nil.
func (l *Loader) Load(ctx context.Context, paths []string) (map[string]string, error) {
	var errs []error

	files, readStdin, err := l.expand(paths)
	if err != nil {
		errs = append(errs, err)
	}

	ids := assignIDs(files)
	sources := make(map[string]string, len(files)+1)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return sources, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable source", "path", path, "error", err)
			errs = append(errs, fmt.Errorf("reading %s: %w", path, err))
			continue
		}
		sources[ids[path]] = Decode(data)
		slog.Debug("source loaded", "id", ids[path], "size", format.Bytes(len(data)))
	}

	if readStdin {
		data, err := io.ReadAll(l.stdin)
		if err != nil {
			errs = append(errs, fmt.Errorf("reading stdin: %w", err))
		} else {
			sources["stdin"] = Decode(data)
		}
	}

	return sources, errors.Join(errs...)
}

// expand resolves directories into matching files and de-duplicates paths.
func (l *Loader) expand(paths []string) ([]string, bool, error) {
	var (
		files     []string
		errs      []error
		readStdin bool
	)
	seen := make(map[string]bool)
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		if p == StdinPath {
			readStdin = true
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			slog.Warn("skipping missing source", "path", p, "error", err)
			errs = append(errs, fmt.Errorf("stat %s: %w", p, err))
			continue
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				slog.Warn("skipping unreadable entry", "path", path, "error", err)
				return nil
			}
			if !d.IsDir() && l.matches(d.Name()) {
				add(path)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("walking %s: %w", p, err))
		}
	}
	return files, readStdin, errors.Join(errs...)
}

func (l *Loader) matches(name string) bool {
	name = strings.ToLower(name)
	for _, ext := range l.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// assignIDs names each file by its base name, falling back to the full path
// when two files share a base name.
func assignIDs(files []string) map[string]string {
	count := make(map[string]int, len(files))
	for _, f := range files {
		count[filepath.Base(f)]++
	}
	ids := make(map[string]string, len(files))
	for _, f := range files {
		if base := filepath.Base(f); count[base] == 1 {
			ids[f] = base
		} else {
			ids[f] = filepath.ToSlash(f)
		}
	}
	return ids
}

// Decode converts raw bytes to text. UTF-8 input loses its BOM. Input that
// is mostly valid UTF-8 keeps its multi-byte characters and has the broken
// sequences replaced with U+FFFD. Input with no valid multi-byte sequences
// is read as Latin-1, which never fails.
func Decode(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	if looksLikeUTF8(data) {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(out)
}

// looksLikeUTF8 reports whether valid multi-byte sequences outnumber
// invalid bytes.
func looksLikeUTF8(data []byte) bool {
	valid, invalid := 0, 0
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		switch {
		case r == utf8.RuneError && size == 1:
			invalid++
		case size > 1:
			valid++
		}
		data = data[size:]
	}
	return valid > invalid
}

// IDs returns the source ids in sorted order.
func IDs(sources map[string]string) []string {
	ids := make([]string, 0, len(sources))
	for id := range sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
