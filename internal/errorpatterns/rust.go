package errorpatterns

import "strings"

// rustDetector matches cargo/rustc error output, grounded on
// src/patterns/rust.rs (detect_trait_version_error / detect_missing_dependency
// / detect_trait_bound_error / detect_type_mismatch).
type rustDetector struct{}

func (rustDetector) Language() string { return "rust" }

func (d rustDetector) Detect(output string) []Pattern {
	var out []Pattern
	if p, ok := d.traitVersionError(output); ok {
		out = append(out, p)
	}
	if p, ok := d.missingDependency(output); ok {
		out = append(out, p)
	}
	if p, ok := d.traitBoundError(output); ok {
		out = append(out, p)
	}
	if p, ok := d.typeMismatch(output); ok {
		out = append(out, p)
	}
	return out
}

func (d rustDetector) traitVersionError(output string) (Pattern, bool) {
	if !strings.Contains(output, "error[E0432]") || !strings.Contains(output, "unresolved import") {
		return Pattern{}, false
	}
	hasTraitSyntax := strings.Contains(output, "`") &&
		(strings.Contains(output, " in the root") || strings.Contains(output, "does not exist"))
	hasExplicitTrait := strings.Contains(output, "trait") && strings.Contains(output, "does not exist")
	if !hasTraitSyntax && !hasExplicitTrait {
		return Pattern{}, false
	}
	crateName := extractCrateName(output)
	return Pattern{
		ErrorType:   "rust_trait_version_error",
		PatternName: "Trait Not Found in Crate Version",
		Suggestion: "The trait '" + crateName + "' doesn't exist in the current version of the crate.\n" +
			"Try:\n1. Removing the trait import - methods may be directly available\n" +
			"2. Checking the crate's documentation for version-specific API changes: `cargo doc --open`\n" +
			"3. Updating the crate to a version that includes this trait: `cargo add " + crateName + " --vers latest`\n" +
			"4. Using the trait methods directly on the type without importing",
		AlternativeCommands: []string{
			"cargo doc --open",
			"cargo add " + crateName + " --vers latest",
			"Search for trait usage examples in the crate's documentation",
		},
		Confidence: 0.90,
	}, true
}

func (d rustDetector) missingDependency(output string) (Pattern, bool) {
	if !strings.Contains(output, "error[E0432]") || !strings.Contains(output, "unresolved import") {
		return Pattern{}, false
	}
	if strings.Contains(output, "trait") ||
		(strings.Contains(output, "unresolved import") &&
			((strings.Contains(output, "no ") && strings.Contains(output, " in the root")) ||
				strings.Contains(output, "not found in the root"))) {
		return Pattern{}, false
	}
	crateName := extractCrateName(output)
	if crateName == "" {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "rust_missing_dependency",
		PatternName: "Missing Crate Dependency",
		Suggestion: "The crate '" + crateName + "' is not in your Cargo.toml dependencies.\n" +
			"Add it using: `cargo add " + crateName + "`",
		AlternativeCommands: []string{
			"cargo add " + crateName,
			"cargo search " + crateName + " --limit 5",
			"Check crates.io for the correct package name",
		},
		Confidence: 0.85,
	}, true
}

func (d rustDetector) traitBoundError(output string) (Pattern, bool) {
	if !strings.Contains(output, "error[E0277]") || !strings.Contains(output, "trait bound") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "rust_trait_bound_error",
		PatternName: "Trait Bound Not Satisfied",
		Suggestion: "A type doesn't implement a required trait.\nTry:\n" +
			"1. Adding the trait derive to the type: `#[derive(TraitName)]`\n" +
			"2. Implementing the trait manually for your type: `impl TraitName for MyType`\n" +
			"3. Using a different type that already satisfies the trait bound\n" +
			"4. Adding the trait as a supertrait if defining your own trait: `trait MyTrait: OtherTrait`\n" +
			"5. Using generic type constraints properly",
		AlternativeCommands: []string{
			"Check type definitions and implement required traits",
			"Run `cargo doc --open` to view trait requirements",
			"Check if you need to add trait bounds to generic types",
		},
		Confidence: 0.80,
	}, true
}

func (d rustDetector) typeMismatch(output string) (Pattern, bool) {
	if !strings.Contains(output, "error[E0308]") || !strings.Contains(output, "mismatched types") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "rust_type_mismatch",
		PatternName: "Type Mismatch",
		Suggestion: "Types don't match in an assignment, function call, or expression.\nCommon solutions:\n" +
			"1. Convert between types using `.into()`, `.to_string()`, `as u32`, etc.\n" +
			"2. Check both sides of the assignment or function call\n" +
			"3. Add type annotations to clarify expected types: `let x: Type = ...`\n" +
			"4. Ensure generic type parameters match\n" +
			"5. Check if you need to dereference: `*variable` or `&variable`",
		AlternativeCommands: []string{
			"Add explicit type annotations to clarify expected types",
			"Use `.into()` for type conversions",
			"Run `cargo fix --edition-idioms` to apply common fixes",
		},
		Confidence: 0.75,
	}, true
}

func extractCrateName(errorText string) string {
	if idx := strings.Index(errorText, "use "); idx >= 0 {
		afterUse := errorText[idx+4:]
		if end := strings.Index(afterUse, ";"); end >= 0 {
			importPath := strings.TrimSpace(afterUse[:end])
			if name := strings.Split(importPath, "::")[0]; name != "" {
				return name
			}
		}
	}
	if idx := strings.Index(errorText, "extern crate "); idx >= 0 {
		afterExtern := errorText[idx+13:]
		if end := strings.Index(afterExtern, ";"); end >= 0 {
			return strings.TrimSpace(afterExtern[:end])
		}
	}
	return "unknown"
}
