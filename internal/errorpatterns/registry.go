// Package errorpatterns matches tool output against known failure markers
// and returns suggested fixes, grounded on the construct prototype's
// src/patterns/{rust,nodejs,python,flutter,generic,mod}.rs. Each language
// gets its own detector; a generic detector runs across every language;
// results are deduplicated by ErrorType keeping the highest-confidence
// match, then sorted descending by confidence.
package errorpatterns

import "sort"

// Pattern is a single detected error with a suggested remedy.
type Pattern struct {
	ErrorType            string
	PatternName          string
	Suggestion           string
	AlternativeCommands  []string
	Confidence           float64
}

// Detector finds patterns for one language/tool in a chunk of tool output.
type Detector interface {
	Detect(output string) []Pattern
	Language() string
}

// Registry holds every detector and performs dedup/sort.
type Registry struct {
	detectors []Detector
}

// NewRegistry builds the registry with every known detector, mirroring
// PatternRegistry::new in mod.rs.
func NewRegistry() *Registry {
	return &Registry{detectors: []Detector{
		rustDetector{},
		nodeDetector{},
		goDetector{},
		pythonDetector{},
		flutterDetector{},
		genericDetector{},
	}}
}

// DetectAll runs every detector and returns the deduplicated, sorted result.
func (r *Registry) DetectAll(output string) []Pattern {
	var all []Pattern
	for _, d := range r.detectors {
		all = append(all, d.Detect(output)...)
	}
	return dedupeAndSort(all)
}

// DetectForLanguage runs only the named language's detector plus the
// generic detector (mirrors detect_for_language in mod.rs).
func (r *Registry) DetectForLanguage(output, language string) []Pattern {
	var found []Pattern
	for _, d := range r.detectors {
		if d.Language() == language {
			found = append(found, d.Detect(output)...)
		}
	}
	for _, d := range r.detectors {
		if d.Language() == "generic" {
			found = append(found, d.Detect(output)...)
		}
	}
	return dedupeAndSort(found)
}

func dedupeAndSort(patterns []Pattern) []Pattern {
	best := make(map[string]Pattern, len(patterns))
	order := make([]string, 0, len(patterns))
	for _, p := range patterns {
		existing, ok := best[p.ErrorType]
		if !ok {
			best[p.ErrorType] = p
			order = append(order, p.ErrorType)
			continue
		}
		if p.Confidence > existing.Confidence {
			best[p.ErrorType] = p
		}
	}
	result := make([]Pattern, 0, len(order))
	for _, key := range order {
		result = append(result, best[key])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Confidence > result[j].Confidence
	})
	return result
}
