// Package security validates files before the engine trusts their content,
// and enforces the allow/blocked path policy described by a request's
// SecurityOptions.
package security

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/types"
)

// FileValidator rejects files whose extension disagrees with their actual
// content: an image saved with a ".go" suffix, a binary masquerading as
// source, and similar disguise attacks.
type FileValidator struct {
	ValidationThreshold int64
	HeaderSize          int64
}

// NewFileValidator builds a validator; files at or below thresholdKB are
// never inspected, since the attack this guards against only pays off on
// files large enough to be loaded wholesale by a careless caller.
func NewFileValidator(thresholdKB int64) *FileValidator {
	return &FileValidator{
		ValidationThreshold: thresholdKB * 1024,
		HeaderSize:          64 * 1024,
	}
}

// Validate inspects a header already read from disk by the caller (the
// File Service owns the actual read; this package never touches the
// filesystem directly, matching the workspace-rooted-only access rule).
func (fv *FileValidator) Validate(path string, size int64, header []byte) error {
	if size <= fv.ValidationThreshold {
		return nil
	}
	if err := fv.checkMagicBytes(path, header); err != nil {
		return ferrors.New(ferrors.Validation, "validate", err).WithPath(path)
	}
	if fv.isBinaryData(header) {
		return ferrors.New(ferrors.Validation, "validate", fmt.Errorf("file appears to be binary (code extension on binary file)")).WithPath(path)
	}
	return nil
}

var magicBytes = map[string][]byte{
	".png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	".jpg":  {0xFF, 0xD8, 0xFF},
	".jpeg": {0xFF, 0xD8, 0xFF},
	".gif":  {0x47, 0x49, 0x46, 0x38, 0x39, 0x61},
	".pdf":  {0x25, 0x50, 0x44, 0x46, 0x2D},
	".zip":  {0x50, 0x4B, 0x03, 0x04},
	".exe":  {0x4D, 0x5A},
	".dll":  {0x4D, 0x5A},
}

func (fv *FileValidator) checkMagicBytes(path string, header []byte) error {
	ext := strings.ToLower(filepath.Ext(path))
	if magic, exists := magicBytes[ext]; exists {
		if !bytes.HasPrefix(header, magic) {
			return fmt.Errorf("magic bytes don't match %s extension (file may be disguised)", ext)
		}
		return nil
	}
	for known, magic := range magicBytes {
		if bytes.HasPrefix(header, magic) {
			return fmt.Errorf("content carries %s magic bytes under a %s extension (file may be disguised)", known, ext)
		}
	}
	return nil
}

// isBinaryData flags content with more than 30% non-printable bytes.
func (fv *FileValidator) isBinaryData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	nonPrintable := 0
	for _, b := range data {
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			nonPrintable++
		}
	}
	ratio := float64(nonPrintable) / float64(len(data))
	return ratio > 0.3
}

// PathPolicy enforces the allowed/blocked path lists of a request's
// SecurityOptions. Paths are expected already canonicalised and within the
// workspace root; this only layers the allow/deny lists on top.
type PathPolicy struct {
	allowed []string
	blocked []string
}

// NewPathPolicy builds a policy from a request's options.
func NewPathPolicy(opts types.SecurityOptions) *PathPolicy {
	return &PathPolicy{allowed: opts.AllowedPaths, blocked: opts.BlockedPaths}
}

// Check reports whether abs (already canonicalised, workspace-rooted) is
// permitted: not under any blocked prefix, and, when an allow list is
// configured, under one of its prefixes.
func (p *PathPolicy) Check(abs string) error {
	for _, blocked := range p.blocked {
		if hasPathPrefix(abs, blocked) {
			return ferrors.New(ferrors.PermissionDenied, "security", fmt.Errorf("path is within a blocked prefix")).WithPath(abs)
		}
	}
	if len(p.allowed) == 0 {
		return nil
	}
	for _, allow := range p.allowed {
		if hasPathPrefix(abs, allow) {
			return nil
		}
	}
	return ferrors.New(ferrors.PermissionDenied, "security", fmt.Errorf("path is not within any allowed prefix")).WithPath(abs)
}

func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}
