package ast

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

// LinePlugin is the reference AST plugin: it parses common declaration and
// import statements with regular expressions rather than a real grammar.
// Replacing this with real per-language grammars (tree-sitter or similar)
// is explicitly out of scope for this engine; LinePlugin exists so Parse
// and ExtractImports are exercised by something concrete.
type LinePlugin struct {
	LangName string
	Exts     []string

	declPatterns   []*regexp.Regexp
	importPatterns []*regexp.Regexp
	exportPatterns []*regexp.Regexp
}

// NewGoLinePlugin recognizes the handful of Go declaration and import
// shapes the teacher's own node-type dispatch switch enumerates for Go,
// reduced to line patterns instead of AST node types.
func NewGoLinePlugin() *LinePlugin {
	return &LinePlugin{
		LangName: "go",
		Exts:     []string{".go"},
		declPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^\s*func\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)`),
			regexp.MustCompile(`^\s*type\s+([A-Za-z_][A-Za-z0-9_]*)`),
			regexp.MustCompile(`^\s*var\s+([A-Za-z_][A-Za-z0-9_]*)`),
			regexp.MustCompile(`^\s*const\s+([A-Za-z_][A-Za-z0-9_]*)`),
		},
		importPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^\s*"([^"]+)"\s*$`),
			regexp.MustCompile(`^\s*import\s+"([^"]+)"`),
		},
	}
}

// NewJSLinePlugin covers the JavaScript/TypeScript family.
func NewJSLinePlugin() *LinePlugin {
	return &LinePlugin{
		LangName: "javascript",
		Exts:     []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs"},
		declPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:export\s+)?function\s+([A-Za-z_$][A-Za-z0-9_$]*)`),
			regexp.MustCompile(`^\s*(?:export\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`),
			regexp.MustCompile(`^\s*(?:export\s+)?const\s+([A-Za-z_$][A-Za-z0-9_$]*)`),
		},
		importPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^\s*import\s+.*from\s+['"]([^'"]+)['"]`),
			regexp.MustCompile(`require\(['"]([^'"]+)['"]\)`),
		},
		exportPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^\s*export\s+(?:default\s+)?(?:function|class|const)\s+([A-Za-z_$][A-Za-z0-9_$]*)`),
		},
	}
}

// NewPythonLinePlugin covers Python.
func NewPythonLinePlugin() *LinePlugin {
	return &LinePlugin{
		LangName: "python",
		Exts:     []string{".py"},
		declPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^\s*def\s+([A-Za-z_][A-Za-z0-9_]*)`),
			regexp.MustCompile(`^\s*class\s+([A-Za-z_][A-Za-z0-9_]*)`),
		},
		importPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^\s*import\s+([A-Za-z_][A-Za-z0-9_.]*)`),
			regexp.MustCompile(`^\s*from\s+([A-Za-z_][A-Za-z0-9_.]*)\s+import`),
		},
	}
}

// Name implements Plugin.
func (p *LinePlugin) Name() string { return p.LangName }

// Extensions implements Plugin.
func (p *LinePlugin) Extensions() []string { return p.Exts }

// Supports implements Plugin: pure extension match, content is unused
// (no magic-byte sniffing needed once File Service has already validated
// the file isn't disguised binary content).
func (p *LinePlugin) Supports(path string, content []byte) bool {
	lower := strings.ToLower(path)
	for _, ext := range p.Exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Parse scans content line by line. Malformed input never causes a panic
// or error here — worst case, nothing matches and the result is empty,
// satisfying the "never throw on malformed input" contract.
func (p *LinePlugin) Parse(content []byte, path string) ParseResult {
	result := ParseResult{Language: p.LangName}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		for _, re := range p.declPatterns {
			if m := re.FindStringSubmatch(line); m != nil {
				result.Symbols = append(result.Symbols, m[1])
			}
		}
		for _, re := range p.importPatterns {
			if m := re.FindStringSubmatch(line); m != nil {
				result.Imports = append(result.Imports, m[1])
			}
		}
		for _, re := range p.exportPatterns {
			if m := re.FindStringSubmatch(line); m != nil {
				result.Exports = append(result.Exports, m[1])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	return result
}

// ExtractImports implements the optional ImportExtractor capability.
func (p *LinePlugin) ExtractImports(path string, content []byte) []ImportInfo {
	result := p.Parse(content, path)
	infos := make([]ImportInfo, 0, len(result.Imports))
	for _, imp := range result.Imports {
		infos = append(infos, ImportInfo{Path: path, Target: imp})
	}
	return infos
}
