package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GitignoreParser loads .gitignore-style patterns and matches paths
// against them, so File Service glob expansion and the Predictor's
// directory-locality candidates skip the same files a developer's git
// status already ignores.
type GitignoreParser struct {
	patterns []gitignorePattern
}

type gitignorePattern struct {
	raw       string
	negate    bool
	directory bool
	anchored  bool // pattern starts with or contains a "/" (trailing "/" aside)
}

// NewGitignoreParser creates an empty parser.
func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{}
}

// LoadGitignore loads patterns from rootPath/.gitignore. A missing file is
// not an error.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	file, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		gp.patterns = append(gp.patterns, parsePattern(line))
	}
	return scanner.Err()
}

func parsePattern(line string) gitignorePattern {
	p := gitignorePattern{raw: line}
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.Contains(line, "/") {
		p.anchored = true
	}
	line = strings.TrimPrefix(line, "/")
	p.raw = line
	return p
}

// Match reports whether relPath (workspace-relative, forward-slash
// separated) should be ignored. Later patterns override earlier ones, and
// a "!" pattern re-includes a path an earlier pattern excluded, matching
// git's own precedence rule.
func (gp *GitignoreParser) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	ignored := false
	for _, p := range gp.patterns {
		if patternMatches(p, relPath) {
			ignored = !p.negate
		}
	}
	return ignored
}

func patternMatches(p gitignorePattern, relPath string) bool {
	name := relPath
	if idx := strings.LastIndex(relPath, "/"); idx >= 0 && !p.anchored {
		name = relPath[idx+1:]
	}
	target := name
	if p.anchored {
		target = relPath
	}

	if ok, _ := doublestar.Match(p.raw, target); ok {
		return true
	}
	if ok, _ := doublestar.Match(p.raw+"/**", target); ok {
		return true
	}
	return false
}
