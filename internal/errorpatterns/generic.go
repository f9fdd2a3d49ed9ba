package errorpatterns

import "strings"

// genericDetector matches language-agnostic failure markers, grounded on
// src/patterns/generic.rs.
type genericDetector struct{}

func (genericDetector) Language() string { return "generic" }

func (d genericDetector) Detect(output string) []Pattern {
	var out []Pattern
	for _, fn := range []func(string) (Pattern, bool){
		d.permissionError, d.diskSpaceError, d.networkError, d.fileNotFound, d.commandNotFound,
	} {
		if p, ok := fn(output); ok {
			out = append(out, p)
		}
	}
	return out
}

func (genericDetector) permissionError(output string) (Pattern, bool) {
	if !strings.Contains(output, "Permission denied") && !strings.Contains(output, "EACCES") && !strings.Contains(output, "Access denied") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "permission_error",
		PatternName: "Permission Denied",
		Suggestion: "You don't have permission to access this resource or execute this command.\n\n" +
			"Common causes:\n1. File/directory has restricted permissions\n2. Trying to write to a read-only location\n" +
			"3. Command requires elevated privileges\n4. File ownership issues\n\n" +
			"Solutions:\n1. Check file permissions: ls -la\n2. Change permissions if you own the file: chmod +x <file>\n" +
			"3. Use appropriate directory (e.g., /tmp or your home directory)\n4. Run with sudo if absolutely necessary",
		AlternativeCommands: []string{
			"ls -la <file>",
			"chmod +x <file>",
			"sudo <command> (use with caution!)",
			"cp <file> /tmp/",
		},
		Confidence: 0.90,
	}, true
}

func (genericDetector) diskSpaceError(output string) (Pattern, bool) {
	if !strings.Contains(output, "No space left on device") && !strings.Contains(output, "ENOSPC") && !strings.Contains(output, "disk full") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "disk_space_error",
		PatternName: "Disk Full",
		Suggestion: "Your disk is out of free space.\n\nImmediate actions:\n" +
			"1. Clean build artifacts: cargo clean, npm cache clean, go clean, etc.\n" +
			"2. Remove temporary files: rm -rf /tmp/*\n3. Clean package caches\n4. Check disk usage: df -h",
		AlternativeCommands: []string{
			"df -h",
			"cargo clean",
			"npm cache clean --force",
			"go clean -cache -testcache",
			"du -sh * | sort -h",
		},
		Confidence: 0.95,
	}, true
}

func (genericDetector) networkError(output string) (Pattern, bool) {
	if !strings.Contains(output, "network") && !strings.Contains(output, "connection") &&
		!strings.Contains(output, "ECONNREFUSED") && !strings.Contains(output, "timeout") &&
		!strings.Contains(output, "unreachable") {
		return Pattern{}, false
	}
	switch {
	case strings.Contains(output, "ECONNREFUSED") || strings.Contains(output, "Connection refused"):
		return Pattern{
			ErrorType:   "network_connection_refused",
			PatternName: "Connection Refused",
			Suggestion:  "Connection was refused by the remote host.\nVerify the service is running and the hostname/port are correct.",
			AlternativeCommands: []string{"ping <host>", "curl -v <url>", "telnet <host> <port>"},
			Confidence:           0.85,
		}, true
	case strings.Contains(output, "timeout") || strings.Contains(output, "timed out"):
		return Pattern{
			ErrorType:   "network_timeout",
			PatternName: "Network Timeout",
			Suggestion:  "Network operation timed out. Check connectivity, DNS, or increase the timeout.",
			AlternativeCommands: []string{"ping -c 5 <host>", "nslookup <host>"},
			Confidence:           0.80,
		}, true
	default:
		return Pattern{
			ErrorType:   "network_generic_error",
			PatternName: "Network Error",
			Suggestion:  "A network error occurred. Check connectivity, hostname/URL correctness, and DNS resolution.",
			Confidence:  0.70,
		}, true
	}
}

func (genericDetector) fileNotFound(output string) (Pattern, bool) {
	if !strings.Contains(output, "No such file or directory") && !strings.Contains(output, "cannot find") &&
		!strings.Contains(output, "ENOENT") && !strings.Contains(output, "file not found") {
		return Pattern{}, false
	}
	return Pattern{
		ErrorType:   "file_not_found",
		PatternName: "File Not Found",
		Suggestion:  "A required file or directory doesn't exist. Check the path, working directory, and spelling.",
		AlternativeCommands: []string{"ls -la", "pwd", "find . -name \"<filename>\""},
		Confidence:          0.90,
	}, true
}

func (genericDetector) commandNotFound(output string) (Pattern, bool) {
	if !strings.Contains(output, "command not found") && !strings.Contains(output, "is not recognized") &&
		!strings.Contains(output, "No such file or directory") {
		return Pattern{}, false
	}
	commandName := "command"
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "command not found") || strings.Contains(line, "not found") {
			if fields := strings.Fields(line); len(fields) > 0 {
				commandName = fields[0]
			}
			break
		}
	}
	return Pattern{
		ErrorType:   "command_not_found",
		PatternName: "Command Not Found",
		Suggestion: "The command '" + commandName + "' is not found or not installed.\n\n" +
			"Try:\n1. Check if installed: which " + commandName + "\n2. Install via your package manager\n3. Check PATH: echo $PATH",
		AlternativeCommands: []string{
			"which " + commandName,
			"apt install " + commandName,
			"brew install " + commandName,
			"echo $PATH",
		},
		Confidence: 0.95,
	}, true
}
