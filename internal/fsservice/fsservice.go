// Package fsservice is the only component that touches the filesystem
// directly. Every path it accepts is canonicalised against the workspace
// root and rejected if it would escape it; writes are atomic via a sibling
// temp file and rename.
package fsservice

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/fileforge/internal/config"
	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/security"
	"github.com/standardbeagle/fileforge/internal/types"
	"github.com/standardbeagle/fileforge/pkg/pathutil"
)

// Metadata caches a stat result so repeated lookups in the same request do
// not re-syscall.
type Metadata struct {
	Path    string
	Size    int64
	ModTime time.Time
	Mode    fs.FileMode
	IsDir   bool
	Exists  bool
}

// ModeOrDefault returns the recorded permission bits, or 0644 when no mode
// was recorded (e.g. the path did not exist at Stat time).
func (m Metadata) ModeOrDefault() fs.FileMode {
	if m.Mode == 0 {
		return 0o644
	}
	return m.Mode
}

// Service is the centralised, workspace-rooted filesystem façade.
type Service struct {
	root      string
	validator *security.FileValidator
	ignore    *config.GitignoreParser

	mu   sync.RWMutex
	stat map[string]Metadata

	validationThresholdKB int64
}

// Options configures a Service.
type Options struct {
	Root                  string
	ValidationThresholdKB int64 // 0 disables large-file content validation
}

// New creates a workspace-rooted file service. Root must be an absolute
// directory; it is Clean'd but not created.
func New(opts Options) (*Service, error) {
	root := filepath.Clean(opts.Root)
	if !filepath.IsAbs(root) {
		return nil, ferrors.New(ferrors.Validation, "new", fmt.Errorf("workspace root must be absolute: %s", opts.Root))
	}
	threshold := opts.ValidationThresholdKB
	if threshold == 0 {
		threshold = 256 // 256KB, matching the teacher's large-file validation posture
	}
	ignore := config.NewGitignoreParser()
	_ = ignore.LoadGitignore(root) // missing .gitignore is fine

	return &Service{
		root:                  root,
		validator:             security.NewFileValidator(threshold),
		ignore:                ignore,
		stat:                  make(map[string]Metadata),
		validationThresholdKB: threshold,
	}, nil
}

// Root returns the workspace root.
func (s *Service) Root() string { return s.root }

// resolve canonicalises path against root and rejects escapes. It does not
// touch the filesystem or follow symlinks itself — EvalSymlinks is applied
// separately at read/write time so a non-existent path (e.g. a Create
// target) still resolves.
func (s *Service) resolve(path string) (string, error) {
	abs, ok := pathutil.Resolve(path, s.root)
	if !ok {
		return "", ferrors.New(ferrors.OutOfWorkspace, "resolve", fmt.Errorf("path escapes workspace root")).WithPath(path)
	}
	return abs, nil
}

// resolveNoSymlinkEscape additionally verifies, for paths that already
// exist, that resolving symlinks keeps the target inside the workspace.
func (s *Service) resolveNoSymlinkEscape(path string) (string, error) {
	abs, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", ferrors.New(ferrors.Io, "resolve", err).WithPath(path)
	}
	if _, ok := pathutil.Resolve(real, s.root); !ok {
		return "", ferrors.New(ferrors.OutOfWorkspace, "resolve", fmt.Errorf("symlink escapes workspace root")).WithPath(path)
	}
	return abs, nil
}

// Resolve canonicalises path against the workspace root and rejects both
// traversal and symlink escapes, exposing the same resolution every
// internal method applies before a syscall. Callers outside this package
// use it to obtain the absolute form for policy checks and cache keys.
func (s *Service) Resolve(path string) (string, error) {
	return s.resolveNoSymlinkEscape(path)
}

// Read returns the full content of path.
func (s *Service) Read(path string) ([]byte, error) {
	abs, err := s.resolveNoSymlinkEscape(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, s.ioErr("read", path, err)
	}
	if info.IsDir() {
		return nil, ferrors.New(ferrors.Validation, "read", fmt.Errorf("is a directory")).WithPath(path)
	}

	if info.Size() > s.validationThresholdKB*1024 {
		if err := s.validateHeader(abs, path, info.Size()); err != nil {
			return nil, err
		}
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, s.ioErr("read", path, err)
	}
	s.cacheStat(path, Metadata{Path: path, Size: info.Size(), ModTime: info.ModTime(), Mode: info.Mode().Perm(), Exists: true})
	return content, nil
}

func (s *Service) validateHeader(abs, path string, size int64) error {
	f, err := os.Open(abs)
	if err != nil {
		return s.ioErr("read", path, err)
	}
	defer f.Close()
	header := make([]byte, 64*1024)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return s.ioErr("read", path, err)
	}
	return s.validator.Validate(path, size, header[:n])
}

// Write atomically replaces path's content: a sibling temp file is written
// and fsynced, then renamed over the destination so a crash mid-write never
// leaves a partial file visible. Missing parent directories are created.
func (s *Service) Write(path string, content []byte, mode fs.FileMode) error {
	abs, err := s.resolveNoSymlinkEscape(path)
	if err != nil {
		return err
	}
	if mode == 0 {
		mode = 0o644
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return s.ioErr("write", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".forge-tmp-*")
	if err != nil {
		return s.ioErr("write", path, err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return s.ioErr("write", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return s.ioErr("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		return s.ioErr("write", path, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return s.ioErr("write", path, err)
	}
	if err := os.Rename(tmpPath, abs); err != nil {
		return s.ioErr("write", path, err)
	}
	success = true

	s.invalidate(path)
	return nil
}

// Exists reports whether path exists.
func (s *Service) Exists(path string) bool {
	abs, err := s.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// Stat returns cached or fresh metadata for path.
func (s *Service) Stat(path string) (Metadata, error) {
	s.mu.RLock()
	if m, ok := s.stat[path]; ok {
		s.mu.RUnlock()
		return m, nil
	}
	s.mu.RUnlock()

	abs, err := s.resolve(path)
	if err != nil {
		return Metadata{}, err
	}
	info, err := os.Stat(abs)
	var m Metadata
	if err != nil {
		if os.IsNotExist(err) {
			m = Metadata{Path: path, Exists: false}
		} else {
			return Metadata{}, s.ioErr("stat", path, err)
		}
	} else {
		m = Metadata{Path: path, Size: info.Size(), ModTime: info.ModTime(), Mode: info.Mode().Perm(), IsDir: info.IsDir(), Exists: true}
	}
	s.cacheStat(path, m)
	return m, nil
}

// Chmod changes path's permission bits.
func (s *Service) Chmod(path string, mode fs.FileMode) error {
	abs, err := s.resolveNoSymlinkEscape(path)
	if err != nil {
		return err
	}
	if err := os.Chmod(abs, mode); err != nil {
		return s.ioErr("chmod", path, err)
	}
	s.invalidate(path)
	return nil
}

// Unlink removes a single file.
func (s *Service) Unlink(path string) error {
	abs, err := s.resolveNoSymlinkEscape(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return s.ioErr("unlink", path, err)
	}
	s.invalidate(path)
	return nil
}

// Readdir lists entry names of a directory, non-recursive.
func (s *Service) Readdir(path string) ([]string, error) {
	abs, err := s.resolveNoSymlinkEscape(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, s.ioErr("readdir", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Rmdir removes an empty directory. A directory that still contains files
// is not removed: os.Remove fails and that failure is surfaced, matching
// the engine's "only remove empty directories" contract.
func (s *Service) Rmdir(path string) error {
	abs, err := s.resolveNoSymlinkEscape(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return s.ioErr("rmdir", path, err)
	}
	s.invalidate(path)
	return nil
}

// IsEmptyDir reports whether path is a directory with no entries.
func (s *Service) IsEmptyDir(path string) (bool, error) {
	names, err := s.Readdir(path)
	if err != nil {
		return false, err
	}
	return len(names) == 0, nil
}

// Glob expands pattern against the workspace root, scoped so no result
// escapes it. Patterns follow doublestar syntax (`**` recursive match).
func (s *Service) Glob(pattern string) ([]string, error) {
	var abs string
	if filepath.IsAbs(pattern) {
		rel, err := filepath.Rel(s.root, pattern)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, ferrors.New(ferrors.OutOfWorkspace, "glob", fmt.Errorf("pattern escapes workspace root")).WithPath(pattern)
		}
		abs = rel
	} else {
		abs = pattern
	}
	abs = filepath.ToSlash(abs)

	fsys := os.DirFS(s.root)
	matches, err := doublestar.Glob(fsys, abs)
	if err != nil {
		return nil, ferrors.New(ferrors.Validation, "glob", err).WithPath(pattern)
	}
	results := make([]string, 0, len(matches))
	for _, m := range matches {
		if s.ignore != nil && s.ignore.Match(m) {
			continue
		}
		results = append(results, filepath.Join(s.root, m))
	}
	return results, nil
}

// Invalidate drops any cached metadata for path. Directory listings are
// never cached, so there is nothing else to drop.
func (s *Service) Invalidate(path string) { s.invalidate(path) }

func (s *Service) invalidate(path string) {
	s.mu.Lock()
	delete(s.stat, path)
	s.mu.Unlock()
}

func (s *Service) cacheStat(path string, m Metadata) {
	s.mu.Lock()
	s.stat[path] = m
	s.mu.Unlock()
}

func (s *Service) ioErr(op, path string, err error) error {
	if os.IsNotExist(err) {
		return ferrors.New(ferrors.NotFound, op, err).WithPath(path)
	}
	if os.IsPermission(err) {
		return ferrors.New(ferrors.PermissionDenied, op, err).WithPath(path)
	}
	return ferrors.New(ferrors.Io, op, err).WithPath(path)
}

// VersionMarker returns the (mtime, size) staleness marker for path.
func (s *Service) VersionMarker(path string) (types.VersionMarker, error) {
	m, err := s.Stat(path)
	if err != nil {
		return types.VersionMarker{}, err
	}
	if !m.Exists {
		return types.VersionMarker{}, ferrors.New(ferrors.NotFound, "version_marker", fmt.Errorf("file does not exist")).WithPath(path)
	}
	return types.VersionMarker{ModTime: m.ModTime, Size: m.Size}, nil
}
