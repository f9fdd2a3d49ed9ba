package errorpatterns

import "strings"

// flutterDetector matches flutter/dart CLI output, grounded on
// src/patterns/flutter.rs.
type flutterDetector struct{}

func (flutterDetector) Language() string { return "flutter" }

func (d flutterDetector) Detect(output string) []Pattern {
	var out []Pattern
	for _, fn := range []func(string) (Pattern, bool){
		d.missingPackage, d.webCompilation, d.testFailure, d.pubGetFailure, d.analyzerError,
	} {
		if p, ok := fn(output); ok {
			out = append(out, p)
		}
	}
	return out
}

func (flutterDetector) missingPackage(output string) (Pattern, bool) {
	if !strings.Contains(output, "depends on") || !strings.Contains(output, "any which doesn't exist") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "flutter_missing_package",
		PatternName: "Missing Pub Package",
		Suggestion:  "A pubspec.yaml dependency doesn't resolve. Check the package name on pub.dev and run `flutter pub get`.",
		AlternativeCommands: []string{"flutter pub get", "flutter pub outdated"},
		Confidence:          0.95,
	}, true
}

func (flutterDetector) webCompilation(output string) (Pattern, bool) {
	if !strings.Contains(output, "Target dart2js failed") && !strings.Contains(output, "Compilation failed") {
		return Pattern{}, false
	}
	if strings.Contains(output, "dart:ffi") || strings.Contains(output, "FFI") {
		return Pattern{
			ErrorType:   "flutter_web_ffi_error",
			PatternName: "FFI Unsupported on Web",
			Suggestion:  "dart:ffi is unavailable on the web target. Gate the import with conditional imports or kIsWeb.",
			Confidence:  0.90,
		}, true
	}
	return Pattern{
		ErrorType:   "flutter_web_compilation_error",
		PatternName: "Web Compilation Failed",
		Suggestion:  "dart2js failed to compile for web. Review the reported file for web-incompatible APIs.",
		Confidence:  0.80,
	}, true
}

func (flutterDetector) testFailure(output string) (Pattern, bool) {
	if !strings.Contains(output, "Test failed") && !strings.Contains(output, "Some tests failed") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "flutter_test_failure",
		PatternName: "Flutter Test Failure",
		Suggestion:  "One or more flutter tests failed. Review the assertion diff in the test output.",
		AlternativeCommands: []string{"flutter test -r expanded"},
		Confidence:          0.85,
	}, true
}

func (flutterDetector) pubGetFailure(output string) (Pattern, bool) {
	if !strings.Contains(output, "pub get failed") && !strings.Contains(output, "version solving failed") {
		return Pattern{}, false
	}
	if strings.Contains(output, "connection refused") || strings.Contains(output, "network") {
		return Pattern{
			ErrorType:   "flutter_network_error",
			PatternName: "Pub Get Network Error",
			Suggestion:  "`flutter pub get` couldn't reach pub.dev. Check connectivity or configure PUB_HOSTED_URL for a mirror.",
			Confidence:  0.90,
		}, true
	}
	return Pattern{
		ErrorType:   "flutter_dependency_error",
		PatternName: "Pub Version Solving Failed",
		Suggestion:  "Dependency version constraints conflict. Loosen a constraint or run `flutter pub upgrade`.",
		Confidence:  0.80,
	}, true
}

func (flutterDetector) analyzerError(output string) (Pattern, bool) {
	if !strings.Contains(output, "error:") && !strings.Contains(output, "warning:") {
		return Pattern{}, false
	}
	switch {
	case strings.Contains(output, "The named parameter is not defined"):
		return Pattern{
			ErrorType:   "flutter_analyzer_parameter_error",
			PatternName: "Unknown Named Parameter",
			Suggestion:  "A constructor/function was called with a named parameter it doesn't declare. Check the widget's signature.",
			Confidence:  0.85,
		}, true
	case strings.Contains(output, "The method isn't defined for the type"):
		return Pattern{
			ErrorType:   "flutter_analyzer_method_error",
			PatternName: "Undefined Method",
			Suggestion:  "The analyzer couldn't find that method on the type. Check the import and the type's actual API.",
			Confidence:  0.80,
		}, true
	default:
		return Pattern{
			ErrorType:   "flutter_analyzer_error",
			PatternName: "Dart Analyzer Error",
			Suggestion:  "The Dart analyzer reported an issue. Run `flutter analyze` for the full list.",
			AlternativeCommands: []string{"flutter analyze"},
			Confidence:           0.75,
		}, true
	}
}
