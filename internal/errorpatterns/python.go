package errorpatterns

import "strings"

// pythonDetector matches CPython tracebacks, grounded on
// src/patterns/python.rs.
type pythonDetector struct{}

func (pythonDetector) Language() string { return "python" }

func (d pythonDetector) Detect(output string) []Pattern {
	var out []Pattern
	for _, fn := range []func(string) (Pattern, bool){
		d.missingModule, d.syntaxError, d.typeError, d.attributeError, d.nameError, d.keyError,
	} {
		if p, ok := fn(output); ok {
			out = append(out, p)
		}
	}
	return out
}

func (pythonDetector) missingModule(output string) (Pattern, bool) {
	if !strings.Contains(output, "ModuleNotFoundError") && !strings.Contains(output, "ImportError") {
		return Pattern{}, false
	}
	if strings.Contains(output, "ModuleNotFoundError") {
		return Pattern{
			ErrorType:   "python_missing_module",
			PatternName: "Missing Python Module",
			Suggestion:  "A required module isn't installed.\nTry: `pip install <package>` or `pip install -r requirements.txt`.",
			AlternativeCommands: []string{"pip install -r requirements.txt", "pip list"},
			Confidence:          0.90,
		}, true
	}
	return Pattern{
		ErrorType:   "python_import_error",
		PatternName: "Import Error",
		Suggestion:  "A module exists but an imported name isn't found in it. Check the module version and the imported symbol.",
		AlternativeCommands: []string{"python -c \"import <module>; print(<module>.__file__)\""},
		Confidence:          0.80,
	}, true
}

func (pythonDetector) syntaxError(output string) (Pattern, bool) {
	if !strings.Contains(output, "SyntaxError") {
		return Pattern{}, false
	}
	if strings.Contains(output, "invalid syntax") {
		if strings.Contains(output, "expected") {
			return Pattern{
				ErrorType:   "python_syntax_error",
				PatternName: "Invalid Syntax (Expected Token)",
				Suggestion:  "Python parser expected a different token. Check for a missing colon, parenthesis, or indentation.",
				AlternativeCommands: []string{"python -m py_compile <file>"},
				Confidence:          0.85,
			}, true
		}
		return Pattern{
			ErrorType:   "python_syntax_error",
			PatternName: "Invalid Syntax",
			Suggestion:  "Python syntax error. Review the reported line.",
			AlternativeCommands: []string{"python -m py_compile <file>"},
			Confidence:          0.80,
		}, true
	}
	if strings.Contains(output, "IndentationError") {
		return Pattern{
			ErrorType:   "python_indentation_error",
			PatternName: "Indentation Error",
			Suggestion:  "Inconsistent indentation (mixing tabs/spaces or a missing indent level).",
			AlternativeCommands: []string{"python -m py_compile <file>"},
			Confidence:          0.95,
		}, true
	}
	return Pattern{}, false
}

func (pythonDetector) typeError(output string) (Pattern, bool) {
	if !strings.Contains(output, "TypeError") {
		return Pattern{}, false
	}
	switch {
	case strings.Contains(output, "unsupported operand type") || strings.Contains(output, "unsupported operand"):
		return Pattern{
			ErrorType:   "python_type_error",
			PatternName: "Unsupported Operand Type",
			Suggestion:  "An operator was applied to incompatible types. Convert one side explicitly.",
			Confidence:  0.85,
		}, true
	case strings.Contains(output, "is not subscriptable"):
		return Pattern{
			ErrorType:   "python_subscriptable_error",
			PatternName: "Object Not Subscriptable",
			Suggestion:  "Indexing was used on a type that doesn't support it (e.g. an int or None).",
			Confidence:  0.90,
		}, true
	case strings.Contains(output, "object is not callable"):
		return Pattern{
			ErrorType:   "python_callable_error",
			PatternName: "Object Not Callable",
			Suggestion:  "Something was called like a function but isn't one. Check for shadowed names.",
			Confidence:  0.85,
		}, true
	default:
		return Pattern{
			ErrorType:   "python_generic_type_error",
			PatternName: "Type Error",
			Suggestion:  "A type mismatch occurred. Review the traceback for the offending value.",
			Confidence:  0.75,
		}, true
	}
}

func (pythonDetector) attributeError(output string) (Pattern, bool) {
	if !strings.Contains(output, "AttributeError") {
		return Pattern{}, false
	}
	switch {
	case strings.Contains(output, "has no attribute") && strings.Contains(output, "module '"):
		return Pattern{
			ErrorType:   "python_module_attribute_error",
			PatternName: "Module Has No Attribute",
			Suggestion:  "The imported module doesn't define that attribute in the installed version.",
			Confidence:  0.80,
		}, true
	case strings.Contains(output, "has no attribute"):
		return Pattern{
			ErrorType:   "python_attribute_error",
			PatternName: "Attribute Error",
			Suggestion:  "An object doesn't have the referenced attribute or method. Check the type and for typos.",
			Confidence:  0.85,
		}, true
	default:
		return Pattern{
			ErrorType:   "python_generic_attribute_error",
			PatternName: "Attribute Error",
			Suggestion:  "AttributeError raised; check the object's type and available members.",
			Confidence:  0.75,
		}, true
	}
}

func (pythonDetector) nameError(output string) (Pattern, bool) {
	if !strings.Contains(output, "NameError") {
		return Pattern{}, false
	}
	if strings.Contains(output, "is not defined") {
		return Pattern{
			ErrorType:   "python_name_not_defined",
			PatternName: "Name Not Defined",
			Suggestion:  "A variable or function is used before assignment, or is missing an import.",
			Confidence:  0.90,
		}, true
	}
	return Pattern{
		ErrorType:   "python_generic_name_error",
		PatternName: "Name Error",
		Suggestion:  "NameError raised; check variable scope and import order.",
		Confidence:  0.75,
	}, true
}

func (pythonDetector) keyError(output string) (Pattern, bool) {
	if !strings.Contains(output, "KeyError") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "python_key_error",
		PatternName: "Key Error",
		Suggestion:  "A dict lookup used a key that doesn't exist. Use `.get(key, default)` or check membership first.",
		Confidence:  0.85,
	}, true
}
