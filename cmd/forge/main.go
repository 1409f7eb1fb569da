// Command forge is the minimal external entrypoint: it loads engine
// configuration, builds the Execution Engine and its collaborators, reads
// one Request as JSON from stdin, and writes the resulting Response as
// JSON to stdout. A full CLI/RPC surface (flags, subcommands, a long-lived
// server) is explicitly out of scope; this exists only to exercise the
// engine end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/standardbeagle/fileforge/internal/ast"
	"github.com/standardbeagle/fileforge/internal/cache"
	"github.com/standardbeagle/fileforge/internal/config"
	"github.com/standardbeagle/fileforge/internal/engine"
	"github.com/standardbeagle/fileforge/internal/fsservice"
	"github.com/standardbeagle/fileforge/internal/predictor"
	"github.com/standardbeagle/fileforge/internal/schema"
	"github.com/standardbeagle/fileforge/internal/types"
)

func main() {
	root := flag.String("root", ".", "workspace root the engine is scoped to")
	timeout := flag.Duration("timeout", 0, "hard ceiling on total execution time; 0 uses the request/engine default")
	flag.Parse()

	absRoot, err := os.Getwd()
	if err != nil {
		log.Fatalf("forge: resolve working directory: %v", err)
	}
	if *root != "." {
		absRoot = *root
	}

	cfg, err := config.LoadKDL(absRoot)
	if err != nil {
		log.Fatalf("forge: load .forge.kdl: %v", err)
	}
	if cfg == nil {
		cfg = config.Default(absRoot)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("forge: invalid configuration: %v", err)
	}

	fs, err := fsservice.New(fsservice.Options{Root: absRoot})
	if err != nil {
		log.Fatalf("forge: build file service: %v", err)
	}

	ca := cache.New(cache.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		MaxBytes:   cfg.Cache.MaxBytes,
		TTL:        time.Duration(cfg.Cache.TTLSeconds) * time.Second,
	})

	if cfg.Cache.WatchEnabled {
		watcher, err := cache.NewWatcher(ca)
		if err != nil {
			log.Printf("forge: cache watcher disabled: %v", err)
		} else {
			defer watcher.Close()
			if err := watcher.Add(absRoot); err != nil {
				log.Printf("forge: watch workspace root: %v", err)
			}
		}
	}

	registry := ast.NewRegistry()
	registry.Register(ast.NewGoLinePlugin())
	registry.Register(ast.NewJSLinePlugin())
	registry.Register(ast.NewPythonLinePlugin())
	af := ast.NewFacade(registry)

	eng := engine.New(fs, ca, af)

	pre := buildPreloader(cfg, fs, ca, af)

	validator, err := schema.New()
	if err != nil {
		log.Fatalf("forge: build request schema: %v", err)
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Fatalf("forge: read request: %v", err)
	}

	if err := validator.Validate(raw); err != nil {
		writeValidationFailure(err)
		os.Exit(1)
	}

	var req types.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		log.Fatalf("forge: decode request: %v", err)
	}
	req.Options = cfg.ResolveOptions(req.Options)

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	resp, err := eng.Execute(ctx, req, nil)
	if err != nil {
		// Planning-stage failure: resp still carries a best-effort summary.
		fmt.Fprintf(os.Stderr, "forge: planning failed: %v\n", err)
	}

	if pre != nil {
		recordAccesses(pre, req, fs)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(resp); encErr != nil {
		log.Fatalf("forge: encode response: %v", encErr)
	}
	if !resp.Success {
		os.Exit(1)
	}
}

// buildPreloader wires the Predictive Pre-loader's collaborators from
// engine configuration. A disabled predictor yields a nil Preloader, which
// main checks before feeding it access events.
func buildPreloader(cfg *config.EngineConfig, fs *fsservice.Service, ca *cache.Cache, af *ast.Facade) *predictor.Preloader {
	if !cfg.Predictor.Enabled {
		return nil
	}

	gate := predictor.NewResourceGate(cfg.Predictor.MaxConcurrentLoads)
	ctrl := predictor.NewController(gate, predictor.AdaptiveConfig{
		MaxConcurrentLoads:       cfg.Predictor.MaxConcurrentLoads,
		BackgroundLoadingEnabled: true,
		PredictionThreshold:      cfg.Predictor.PredictionThreshold,
		ModelComplexity:          cfg.Predictor.ModelComplexity,
	})
	window := predictor.NewAccessWindow(cfg.Predictor.WindowSize, time.Hour)
	graph := predictor.NewWorkspaceGraph(af, 5*time.Minute)

	pre := predictor.New(predictor.Config{
		FS: fs, Cache: ca, AST: af, Graph: graph, Window: window,
		Gate: gate, Controller: ctrl, Model: predictor.NewLinearModel(),
	})

	if files, err := listWorkspaceSources(fs); err == nil {
		pre.RebuildGraph(files)
		pre.RunStartupWarming()
	}
	return pre
}

// listWorkspaceSources reads every Go source file (**/*.go) under the workspace root
// for a one-time dependency-graph build. It is capped at maxGraphFiles so
// a very large workspace doesn't turn startup into a full-tree read.
func listWorkspaceSources(fs *fsservice.Service) (map[string][]byte, error) {
	const maxGraphFiles = 500
	matches, err := fs.Glob("**/*.go")
	if err != nil {
		return nil, err
	}
	files := make(map[string][]byte, len(matches))
	for i, m := range matches {
		if i >= maxGraphFiles {
			break
		}
		content, err := fs.Read(m)
		if err != nil {
			continue
		}
		files[m] = content
	}
	return files, nil
}

// recordAccesses feeds every path an operation touched into the preloader
// after execution completes. A long-lived server embedding this engine
// would call OnAccess per operation as it completes rather than after the
// whole batch, giving the background warmer a head start on the next
// request; this one-shot CLI still exercises the same path so the
// dependency is never dead code.
func recordAccesses(pre *predictor.Preloader, req types.Request, fs *fsservice.Service) {
	now := time.Now()
	for _, op := range req.Operations {
		for _, path := range operationPaths(op) {
			abs, err := fs.Resolve(path)
			if err != nil {
				continue
			}
			pre.OnAccess(types.AccessPatternEvent{AbsPath: abs, Timestamp: now, OpKind: op.Kind})
		}
	}
}

func operationPaths(op types.Operation) []string {
	switch op.Kind {
	case types.KindAnalyze:
		if op.Analyze != nil {
			return op.Analyze.Paths
		}
	case types.KindEdit:
		if op.Edit != nil {
			paths := make([]string, 0, len(op.Edit.Edits))
			for _, fe := range op.Edit.Edits {
				paths = append(paths, fe.File)
			}
			return paths
		}
	case types.KindCreate:
		if op.Create != nil {
			paths := make([]string, 0, len(op.Create.Files))
			for _, nf := range op.Create.Files {
				paths = append(paths, nf.Path)
			}
			return paths
		}
	case types.KindDelete:
		if op.Delete != nil {
			return op.Delete.Paths
		}
	case types.KindValidate:
		if op.Validate != nil {
			return op.Validate.Files
		}
	}
	return nil
}

func writeValidationFailure(err error) {
	resp := types.Response{
		Success: false,
		Summary: types.Summary{Total: 0},
	}
	fmt.Fprintf(os.Stderr, "forge: request failed validation: %v\n", err)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(resp)
}
