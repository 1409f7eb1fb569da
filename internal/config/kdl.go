package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load engine configuration from a .forge.kdl file in
// projectRoot. A missing file is not an error: callers fall back to
// Default(projectRoot).
func LoadKDL(projectRoot string) (*EngineConfig, error) {
	kdlPath := filepath.Join(projectRoot, ".forge.kdl")

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .forge.kdl: %w", err)
	}

	cfg, err := parseKDL(string(content), projectRoot)
	if err != nil {
		return nil, err
	}

	if cfg.Project.Root == "" {
		absRoot, err := filepath.Abs(projectRoot)
		if err == nil {
			cfg.Project.Root = absRoot
		} else {
			cfg.Project.Root = projectRoot
		}
	} else if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Project.Root))
	}

	return cfg, nil
}

func parseKDL(content, projectRoot string) (*EngineConfig, error) {
	cfg := Default(projectRoot)

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, child := range n.Children {
				switch nodeName(child) {
				case "root":
					if v, ok := firstStringArg(child); ok {
						cfg.Project.Root = v
					}
				case "name":
					if v, ok := firstStringArg(child); ok {
						cfg.Project.Name = v
					}
				}
			}
		case "cache":
			for _, child := range n.Children {
				switch nodeName(child) {
				case "max-entries":
					if v, ok := firstIntArg(child); ok {
						cfg.Cache.MaxEntries = v
					}
				case "max-bytes":
					if v, ok := firstIntArg(child); ok {
						cfg.Cache.MaxBytes = int64(v)
					}
				case "ttl-seconds":
					if v, ok := firstIntArg(child); ok {
						cfg.Cache.TTLSeconds = v
					}
				case "cleanup-interval":
					if v, ok := firstIntArg(child); ok {
						cfg.Cache.CleanupInterval = v
					}
				case "watch-enabled":
					if v, ok := firstBoolArg(child); ok {
						cfg.Cache.WatchEnabled = v
					}
				}
			}
		case "engine":
			for _, child := range n.Children {
				switch nodeName(child) {
				case "default-concurrency":
					if v, ok := firstIntArg(child); ok {
						cfg.Engine.DefaultConcurrency = v
					}
				case "default-timeout-sec":
					if v, ok := firstIntArg(child); ok {
						cfg.Engine.DefaultTimeoutSec = v
					}
				case "max-goroutines":
					if v, ok := firstIntArg(child); ok {
						cfg.Engine.MaxGoroutines = v
					}
				}
			}
		case "predictor":
			for _, child := range n.Children {
				switch nodeName(child) {
				case "enabled":
					if v, ok := firstBoolArg(child); ok {
						cfg.Predictor.Enabled = v
					}
				case "window-size":
					if v, ok := firstIntArg(child); ok {
						cfg.Predictor.WindowSize = v
					}
				case "prediction-threshold":
					if v, ok := firstFloatArg(child); ok {
						cfg.Predictor.PredictionThreshold = v
					}
				case "max-concurrent-loads":
					if v, ok := firstIntArg(child); ok {
						cfg.Predictor.MaxConcurrentLoads = v
					}
				case "model-complexity":
					if v, ok := firstStringArg(child); ok {
						cfg.Predictor.ModelComplexity = v
					}
				}
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid .forge.kdl config: %w", err)
	}

	return cfg, nil
}

// Helper functions leveraging the kdl-go document model, in the same shape
// the teacher's own KDL loader uses.

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		log.Printf("WARNING: invalid float value for %q in KDL config, expected number but got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}
