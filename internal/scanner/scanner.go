// Package scanner discovers candidate note files and computes content fingerprints.
package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/psearch-dev/psearch/internal/models"
)

// sniffLen bounds how much of a file is read to decide whether it is text.
const sniffLen = 8192

// FileError records a file that could not be scanned. Scan reports these
// without aborting the run.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }

// Scanner walks a root directory and produces the set of candidate files.
// A file is a candidate when its extension is recognized, or when its
// extension is unknown but a bounded prefix of its content decodes as text.
type Scanner struct {
	root   string
	exts   map[string]struct{}
	logger *zap.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets a logger for debug output (skipped files, sniff decisions).
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// New creates a scanner over root. extensions are the recognized file
// extensions (with or without the leading dot, case-insensitive). Returns an
// error if root does not exist or is not a directory.
func New(root string, extensions []string, opts ...Option) (*Scanner, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat notes directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absRoot)
	}
	s := &Scanner{
		root: absRoot,
		exts: make(map[string]struct{}, len(extensions)),
	}
	for _, e := range extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		s.exts[e] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute root directory being scanned.
func (s *Scanner) Root() string { return s.root }

// Scan walks the root directory and returns candidate files with their stat
// info. Dot-directories (.git and the like) are skipped. Unreadable files
// are collected into the returned FileError slice and never abort the walk;
// only a failure to walk the root itself is returned as an error.
//
// Scan does not hash file contents; callers decide per file whether hashing
// is needed (see Fingerprint) so unchanged files can be skipped cheaply.
func (s *Scanner) Scan(ctx context.Context) ([]models.SourceFile, []FileError, error) {
	var (
		files    []models.SourceFile
		fileErrs []FileError
	)
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			if d != nil && d.IsDir() {
				fileErrs = append(fileErrs, FileError{Path: path, Err: walkErr})
				return filepath.SkipDir
			}
			fileErrs = append(fileErrs, FileError{Path: path, Err: walkErr})
			return nil
		}
		if d.IsDir() {
			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		// Resolve symlinks so only regular files are indexed.
		info, statErr := os.Stat(path)
		if statErr != nil {
			fileErrs = append(fileErrs, FileError{Path: path, Err: statErr})
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		sf, ok, acceptErr := s.accept(path, info)
		if acceptErr != nil {
			fileErrs = append(fileErrs, FileError{Path: path, Err: acceptErr})
			return nil
		}
		if !ok {
			if s.logger != nil {
				s.logger.Debug("scanner skipping unsupported file", zap.String("path", path))
			}
			return nil
		}
		files = append(files, sf)
		return nil
	})
	if err != nil {
		return nil, fileErrs, fmt.Errorf("walk %s: %w", s.root, err)
	}
	return files, fileErrs, nil
}

// Stat returns the SourceFile for a single path if it is a candidate.
// The second return is false when the file exists but is not accepted
// (unsupported extension and non-text content, or not a regular file).
func (s *Scanner) Stat(path string) (models.SourceFile, bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return models.SourceFile{}, false, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return models.SourceFile{}, false, err
	}
	if !info.Mode().IsRegular() {
		return models.SourceFile{}, false, nil
	}
	return s.accept(absPath, info)
}

// accept classifies a regular file: recognized extension, or unknown
// extension with text content.
func (s *Scanner) accept(path string, info os.FileInfo) (models.SourceFile, bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	sf := models.SourceFile{
		Path:    filepath.Clean(path),
		Ext:     ext,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}
	if _, ok := s.exts[ext]; ok {
		return sf, true, nil
	}
	isText, err := sniffText(path)
	if err != nil {
		return models.SourceFile{}, false, err
	}
	if !isText {
		return models.SourceFile{}, false, nil
	}
	if s.logger != nil {
		s.logger.Debug("scanner accepted file by content sniff", zap.String("path", path))
	}
	sf.Ext = ""
	return sf, true, nil
}

// Fingerprint returns the SHA-256 hex digest of the file content at path.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sniffText reads up to sniffLen bytes and reports whether the prefix looks
// like text: no NUL bytes and valid UTF-8 (ignoring a possibly truncated
// final rune).
func sniffText(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, err
	}
	return isTextPrefix(buf[:n]), nil
}

func isTextPrefix(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	for _, c := range b {
		if c == 0 {
			return false
		}
	}
	if utf8.Valid(b) {
		return true
	}
	// The sniff window may have cut a multi-byte rune in half; trim up to
	// three trailing bytes before giving up.
	for i := 1; i <= 3 && i < len(b); i++ {
		trimmed := b[:len(b)-i]
		if utf8.Valid(trimmed) {
			return true
		}
	}
	return false
}
