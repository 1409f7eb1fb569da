// Package predictor is the Predictive Pre-loader: it records access
// events, extracts a feature vector per warming candidate, scores
// candidates with a pluggable model, and issues best-effort background
// cache loads subject to a resource gate.
package predictor

import (
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/standardbeagle/fileforge/internal/types"
)

// FeatureNames lists the feature vector's components in the fixed order
// every Predictor implementation and FeatureVector call agrees on.
var FeatureNames = []string{
	"temporal_proximity",
	"spatial_proximity",
	"access_frequency",
	"file_type",
	"directory_depth",
	"dependency_count",
	"mean_dependency_strength",
	"in_degree",
	"entry_point",
	"core_file",
	"workspace_relevance",
	"time_of_day",
	"day_of_week",
}

// Features is the fixed-order feature vector for one candidate, every
// component normalised to [0,1].
type Features [13]float64

const (
	fTemporalProximity = iota
	fSpatialProximity
	fAccessFrequency
	fFileType
	fDirectoryDepth
	fDependencyCount
	fMeanDependencyStrength
	fInDegree
	fEntryPoint
	fCoreFile
	fWorkspaceRelevance
	fTimeOfDay
	fDayOfWeek
)

// DependencyGraph is the minimal surface the feature extractor needs from
// the lazily-built workspace dependency graph (§4.G signal source 2).
type DependencyGraph interface {
	OutDegree(path string) int
	InDegree(path string) int
	MeanDependencyStrength(path string) float64
	IsEntryPoint(path string) bool
	IsCoreFile(path string) bool
}

// ExtractInput bundles everything FeatureVector needs for one candidate.
type ExtractInput struct {
	Candidate    string
	Trigger      string
	Now          time.Time
	RecentEvents []types.AccessPatternEvent // sliding window, most recent last
	Graph        DependencyGraph            // may be nil if not yet built
	WorkspaceRoot string
}

// FeatureVector computes the fixed 13-dimensional feature vector for one
// candidate file relative to a trigger access, per spec.md §4.G step 2.
func FeatureVector(in ExtractInput) Features {
	var f Features

	f[fTemporalProximity] = temporalProximity(in.Candidate, in.Now, in.RecentEvents)
	f[fSpatialProximity] = spatialProximity(in.Trigger, in.Candidate)
	f[fAccessFrequency] = accessFrequency(in.Candidate, in.RecentEvents)
	f[fFileType] = fileTypeScore(in.Candidate)
	f[fDirectoryDepth] = directoryDepth(in.Candidate, in.WorkspaceRoot)

	if in.Graph != nil {
		f[fDependencyCount] = normalizeCount(in.Graph.OutDegree(in.Candidate))
		f[fMeanDependencyStrength] = clamp01(in.Graph.MeanDependencyStrength(in.Candidate))
		f[fInDegree] = normalizeCount(in.Graph.InDegree(in.Candidate))
		if in.Graph.IsEntryPoint(in.Candidate) {
			f[fEntryPoint] = 1
		}
		if in.Graph.IsCoreFile(in.Candidate) {
			f[fCoreFile] = 1
		}
	}

	f[fWorkspaceRelevance] = workspaceRelevance(f)
	f[fTimeOfDay] = timeOfDay(in.Now)
	f[fDayOfWeek] = dayOfWeek(in.Now)

	return f
}

// temporalProximity applies exponential decay over the candidate's most
// recent access in the window; a file accessed seconds ago scores near 1,
// one accessed near the window's edge scores near 0.
func temporalProximity(path string, now time.Time, events []types.AccessPatternEvent) float64 {
	const decaySeconds = 120.0 // time constant: the score falls to 1/e after this long
	var mostRecent time.Time
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].AbsPath == path {
			mostRecent = events[i].Timestamp
			break
		}
	}
	if mostRecent.IsZero() {
		return 0
	}
	elapsed := now.Sub(mostRecent).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Exp(-elapsed / decaySeconds)
}

// spatialProximity is the ratio of shared leading path segments between
// trigger and candidate, over the longer of the two segment counts.
func spatialProximity(trigger, candidate string) float64 {
	if trigger == "" || candidate == "" {
		return 0
	}
	ta := strings.Split(filepath.ToSlash(filepath.Dir(trigger)), "/")
	ca := strings.Split(filepath.ToSlash(filepath.Dir(candidate)), "/")
	shared := 0
	for i := 0; i < len(ta) && i < len(ca); i++ {
		if ta[i] != ca[i] {
			break
		}
		shared++
	}
	longer := len(ta)
	if len(ca) > longer {
		longer = len(ca)
	}
	if longer == 0 {
		return 0
	}
	return float64(shared) / float64(longer)
}

func accessFrequency(path string, events []types.AccessPatternEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	count := 0
	for _, e := range events {
		if e.AbsPath == path {
			count++
		}
	}
	return normalizeCount(count)
}

var sourceExtensions = map[string]float64{
	".go": 1, ".ts": 1, ".tsx": 1, ".js": 0.9, ".jsx": 0.9, ".py": 1,
	".rs": 1, ".java": 0.9, ".rb": 0.8, ".c": 0.8, ".cpp": 0.8, ".h": 0.6,
	".json": 0.4, ".yaml": 0.4, ".yml": 0.4, ".toml": 0.4, ".md": 0.2,
}

func fileTypeScore(path string) float64 {
	ext := strings.ToLower(filepath.Ext(path))
	if score, ok := sourceExtensions[ext]; ok {
		return score
	}
	return 0.1
}

func directoryDepth(path, root string) float64 {
	rel := path
	if root != "" {
		if r, err := filepath.Rel(root, path); err == nil {
			rel = r
		}
	}
	depth := strings.Count(filepath.ToSlash(rel), "/")
	return 1 - 1/(1+float64(depth))
}

func workspaceRelevance(f Features) float64 {
	return clamp01(0.3*f[fDependencyCount] + 0.3*f[fInDegree] + 0.2*f[fEntryPoint] + 0.2*f[fCoreFile])
}

func timeOfDay(now time.Time) float64 {
	minutesIntoDay := float64(now.Hour()*60 + now.Minute())
	return minutesIntoDay / (24 * 60)
}

func dayOfWeek(now time.Time) float64 {
	return float64(now.Weekday()) / 6
}

func normalizeCount(n int) float64 {
	if n <= 0 {
		return 0
	}
	// log-scaled so a handful of dependents doesn't saturate the feature
	return clamp01(math.Log2(float64(n)+1) / 6)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
