package errorpatterns

import "strings"

// nodeDetector matches node/npm error output, grounded on
// src/patterns/nodejs.rs.
type nodeDetector struct{}

func (nodeDetector) Language() string { return "nodejs" }

func (d nodeDetector) Detect(output string) []Pattern {
	var out []Pattern
	if p, ok := d.missingModule(output); ok {
		out = append(out, p)
	}
	if p, ok := d.typeError(output); ok {
		out = append(out, p)
	}
	if p, ok := d.syntaxError(output); ok {
		out = append(out, p)
	}
	if p, ok := d.npmError(output); ok {
		out = append(out, p)
	}
	return out
}

func (d nodeDetector) missingModule(output string) (Pattern, bool) {
	if !strings.Contains(output, "Cannot find module") && !strings.Contains(output, "ERR_MODULE_NOT_FOUND") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "node_missing_module",
		PatternName: "Missing Node Module",
		Suggestion: "A required module is not installed.\nTry:\n" +
			"1. Install the missing package: `npm install <package>`\n" +
			"2. Run `npm install` to install all dependencies\n" +
			"3. Check package.json for a typo in the module name\n" +
			"4. Delete node_modules and reinstall: `rm -rf node_modules && npm install`",
		AlternativeCommands: []string{
			"npm install",
			"npm install <package>",
			"rm -rf node_modules package-lock.json && npm install",
		},
		Confidence: 0.90,
	}, true
}

func (d nodeDetector) typeError(output string) (Pattern, bool) {
	if !strings.Contains(output, "TypeError") || !strings.Contains(output, "is not a function") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "node_type_error",
		PatternName: "Not a Function",
		Suggestion: "Code called something that isn't a function.\nTry:\n" +
			"1. Check the import is correct (default vs named export)\n" +
			"2. Verify the object actually has that method\n" +
			"3. Check for a typo in the method name",
		AlternativeCommands: []string{"node -e \"console.log(require('./module'))\""},
		Confidence:          0.70,
	}, true
}

func (d nodeDetector) syntaxError(output string) (Pattern, bool) {
	if !strings.Contains(output, "SyntaxError") {
		return Pattern{}, false
	}
	if strings.Contains(output, "Unexpected token") {
		return Pattern{
			ErrorType:   "node_syntax_error",
			PatternName: "Unexpected Token",
			Suggestion: "JavaScript/TypeScript syntax error.\nCheck for a missing bracket, comma, or unsupported syntax " +
				"for the configured module type (CommonJS vs ESM).",
			AlternativeCommands: []string{"node --check <file>"},
			Confidence:           0.85,
		}, true
	}
	return Pattern{
		ErrorType:   "node_syntax_error",
		PatternName: "Syntax Error",
		Suggestion:  "JavaScript/TypeScript syntax error. Review the reported file and line.",
		AlternativeCommands: []string{"node --check <file>"},
		Confidence:          0.80,
	}, true
}

func (d nodeDetector) npmError(output string) (Pattern, bool) {
	if !strings.Contains(output, "npm ERR!") && !strings.Contains(output, "ENOAUTO") && !strings.Contains(output, "ERESOLVE") {
		return Pattern{}, false
	}
	switch {
	case strings.Contains(output, "ERESOLVE"):
		return Pattern{
			ErrorType:   "npm_dependency_conflict",
			PatternName: "npm Dependency Conflict",
			Suggestion: "npm could not resolve a conflicting dependency tree.\nTry:\n" +
				"1. `npm install --legacy-peer-deps`\n2. Align the conflicting package's version\n" +
				"3. Delete node_modules and package-lock.json and reinstall",
			AlternativeCommands: []string{"npm install --legacy-peer-deps", "npm install --force"},
			Confidence:           0.90,
		}, true
	case strings.Contains(output, "ENOENT") || strings.Contains(output, "missing script"):
		return Pattern{
			ErrorType:   "npm_missing_script",
			PatternName: "Missing npm Script",
			Suggestion:  "The requested npm script isn't defined in package.json. Check the \"scripts\" section.",
			AlternativeCommands: []string{"cat package.json"},
			Confidence:          0.95,
		}, true
	default:
		return Pattern{
			ErrorType:   "npm_generic_error",
			PatternName: "npm Error",
			Suggestion:  "npm reported an error. Check the npm log for details.",
			AlternativeCommands: []string{"npm install"},
			Confidence:          0.70,
		}, true
	}
}
