package errorpatterns

import "strings"

// goDetector matches `go build`/`go vet`/`go test` output. Unlike the other
// detectors here, there is no prototype source to port — the original
// implementation never grew a Go-specific pattern module (its mod.rs
// declares one but the file is absent from the corpus). Markers are drawn
// directly from the Go toolchain's own diagnostic vocabulary.
type goDetector struct{}

func (goDetector) Language() string { return "go" }

func (d goDetector) Detect(output string) []Pattern {
	var out []Pattern
	for _, fn := range []func(string) (Pattern, bool){
		d.undefinedSymbol, d.missingPackage, d.unusedImport, d.unusedVariable,
	} {
		if p, ok := fn(output); ok {
			out = append(out, p)
		}
	}
	return out
}

func (goDetector) undefinedSymbol(output string) (Pattern, bool) {
	if !strings.Contains(output, "undefined: ") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "go_undefined_symbol",
		PatternName: "Undefined Symbol",
		Suggestion:  "A referenced identifier doesn't exist in any imported package. Check spelling, the package import, and exported capitalization.",
		AlternativeCommands: []string{"go doc <package>", "go build ./..."},
		Confidence:          0.85,
	}, true
}

func (goDetector) missingPackage(output string) (Pattern, bool) {
	if !strings.Contains(output, "cannot find package") && !strings.Contains(output, "no required module provides package") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "go_missing_package",
		PatternName: "Missing Go Module",
		Suggestion:  "An imported package isn't available in the module graph. Run `go get` for it, or `go mod tidy` to reconcile go.mod.",
		AlternativeCommands: []string{"go mod tidy", "go get <package>"},
		Confidence:          0.90,
	}, true
}

func (goDetector) unusedImport(output string) (Pattern, bool) {
	if !strings.Contains(output, "imported and not used") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "go_unused_import",
		PatternName: "Unused Import",
		Suggestion:  "An imported package is never referenced. Remove the import or use the package.",
		AlternativeCommands: []string{"goimports -w <file>"},
		Confidence:          0.95,
	}, true
}

func (goDetector) unusedVariable(output string) (Pattern, bool) {
	if !strings.Contains(output, "declared and not used") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "go_unused_variable",
		PatternName: "Unused Variable",
		Suggestion:  "A local variable is declared but never read. Use it, or replace its assignment with `_`.",
		Confidence:  0.90,
	}, true
}
