// Package types holds the data model shared across the engine: operations,
// requests, results, cache statistics, access-pattern events, and file
// version markers.
package types

import "time"

// OperationKind is the tag of the closed operation sum type.
type OperationKind string

const (
	KindAnalyze  OperationKind = "analyze"
	KindEdit     OperationKind = "edit"
	KindCreate   OperationKind = "create"
	KindDelete   OperationKind = "delete"
	KindValidate OperationKind = "validate"
)

// Status is the terminal state of an operation once the engine is done
// with it.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Operation is the common envelope for all five operation kinds. Exactly
// one of Analyze/Edit/Create/Delete/Validate is populated, selected by
// Kind; this mirrors a closed tagged variant without a class hierarchy.
type Operation struct {
	ID         string        `json:"id,omitempty"`
	Kind       OperationKind `json:"type"`
	DependsOn  []string      `json:"depends_on,omitempty"`
	Transaction string       `json:"transaction,omitempty"`

	Analyze  *AnalyzeOp  `json:"analyze,omitempty"`
	Edit     *EditOp     `json:"edit,omitempty"`
	Create   *CreateOp   `json:"create,omitempty"`
	Delete   *DeleteOp   `json:"delete,omitempty"`
	Validate *ValidateOp `json:"validate,omitempty"`
}

// AnalyzeOp is a read-only scan of one or more paths.
type AnalyzeOp struct {
	Paths    []string `json:"paths"`
	Search   string   `json:"search,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
	Extract  []string `json:"extract,omitempty"`
}

// EditOp applies a list of per-file changes.
type EditOp struct {
	Edits        []FileEdit `json:"edits"`
	DryRun       bool       `json:"dry_run,omitempty"`
	CreateBackup bool       `json:"create_backup,omitempty"`
}

// FileEdit is the list of changes to apply to a single file.
type FileEdit struct {
	File    string   `json:"file"`
	Changes []Change `json:"changes"`
}

// ChangeKind distinguishes the supported edit primitives.
type ChangeKind string

const (
	ChangeFindReplace   ChangeKind = "find_replace"
	ChangeInsertLine    ChangeKind = "insert_line"
	ChangeReplaceLine   ChangeKind = "replace_line"
	ChangeDeleteLine    ChangeKind = "delete_line"
	ChangeInsertOffset  ChangeKind = "insert_offset"
	ChangeASTRewrite    ChangeKind = "ast_rewrite"
)

// Change is one mutation within a FileEdit.
type Change struct {
	Kind  ChangeKind `json:"kind"`
	Find  string     `json:"find,omitempty"`
	Replace string   `json:"replace,omitempty"`
	Regex bool       `json:"regex,omitempty"`
	Line  int        `json:"line,omitempty"`
	Text  string     `json:"text,omitempty"`
	Offset int       `json:"offset,omitempty"`
	Selector string  `json:"selector,omitempty"`
}

// CreateOp writes a batch of new files.
type CreateOp struct {
	Files     []NewFile `json:"files"`
	Overwrite bool      `json:"overwrite,omitempty"`
}

// NewFile is a single file to create.
type NewFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding,omitempty"`
	Mode     uint32 `json:"mode,omitempty"`
}

// DeleteOp removes files, possibly expressed as globs.
type DeleteOp struct {
	Paths           []string `json:"paths"`
	RemoveEmptyDirs bool     `json:"remove_empty_dirs,omitempty"`
}

// ValidateOp runs syntax/lint/custom checks, optionally auto-fixing.
type ValidateOp struct {
	Files    []string `json:"files,omitempty"`
	Commands []string `json:"commands,omitempty"`
	Checks   []string `json:"checks,omitempty"`
	Fix      bool     `json:"fix,omitempty"`
}

// SecurityOptions enumerates the workspace path allow/deny policy.
type SecurityOptions struct {
	AllowedPaths []string `json:"allowed_paths,omitempty"`
	BlockedPaths []string `json:"blocked_paths,omitempty"`
	Sandbox      bool     `json:"sandbox,omitempty"`
}

// CacheOptions tunes the cache for a single request; zero values mean
// "use engine defaults".
type CacheOptions struct {
	MaxBytes   int64 `json:"max_bytes,omitempty"`
	MaxEntries int   `json:"max_entries,omitempty"`
	TTLMs      int64 `json:"ttl_ms,omitempty"`
	Disabled   bool  `json:"disabled,omitempty"`
}

// MonitoringOptions controls optional instrumentation hooks; the core only
// exposes the surface, the exporter itself is an external collaborator.
type MonitoringOptions struct {
	Enabled bool `json:"enabled,omitempty"`
}

// RequestOptions is the global options struct accompanying a Request.
type RequestOptions struct {
	Concurrency int                `json:"concurrency,omitempty"`
	TimeoutMs   int64              `json:"timeout_ms,omitempty"`
	Cache       CacheOptions       `json:"cache,omitempty"`
	Security    SecurityOptions    `json:"security,omitempty"`
	Monitoring  MonitoringOptions  `json:"monitoring,omitempty"`
	Debug       bool               `json:"debug,omitempty"`
}

// Request is the ordered list of operations the client submits.
type Request struct {
	Operations []Operation    `json:"operations"`
	Options    RequestOptions `json:"options,omitempty"`
}

// ErrorInfo is the error envelope attached to a failed OperationResult.
type ErrorInfo struct {
	Message string                 `json:"message"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// OperationResult is the per-operation outcome returned to the client.
type OperationResult struct {
	ID         string                 `json:"id"`
	Kind       OperationKind          `json:"type"`
	Status     Status                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      *ErrorInfo             `json:"error,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
}

// Summary rolls up terminal statuses and elapsed wall-clock time.
type Summary struct {
	Total     int   `json:"total"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
	Cancelled int   `json:"cancelled"`
	ElapsedMs int64 `json:"elapsed_ms"`
}

// CacheStats is the cache section of the performance report.
type CacheStats struct {
	Hits    int64 `json:"hit"`
	Misses  int64 `json:"miss"`
	Bytes   int64 `json:"bytes"`
	Entries int   `json:"entries"`
}

// Performance is the performance section of a Response.
type Performance struct {
	ParallelizationOpportunities int        `json:"parallelization_opportunities"`
	CriticalPath                 []string   `json:"critical_path"`
	Cache                        CacheStats `json:"cache"`
}

// Response is the complete result of executing a Request.
type Response struct {
	Success     bool              `json:"success"`
	Operations  []OperationResult `json:"operations"`
	Summary     Summary           `json:"summary"`
	Performance Performance       `json:"performance"`
}

// AccessPatternEvent records one file touch for the predictor's sliding
// window.
type AccessPatternEvent struct {
	AbsPath   string        `json:"abs_path"`
	Timestamp time.Time     `json:"timestamp"`
	OpKind    OperationKind `json:"op_kind"`
	SessionID string        `json:"session_id,omitempty"`
	Context   string        `json:"context,omitempty"`
}

// VersionMarker detects staleness of a cached artifact: it combines
// modification time and size, the cheapest signal that changes on any
// write.
type VersionMarker struct {
	ModTime time.Time
	Size    int64
}

// Equal reports whether two markers describe the same file state.
func (v VersionMarker) Equal(other VersionMarker) bool {
	return v.ModTime.Equal(other.ModTime) && v.Size == other.Size
}
