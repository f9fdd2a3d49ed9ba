package tools

import "regexp"

// defaultDenyPatterns is a defense-in-depth layer applied before sandbox
// policy classification: these are commands the tool executor refuses
// outright regardless of the configured CommandPolicy, carried over near
// verbatim from the teacher's internal/tools/shell.go defaultDenyPatterns
// (destructive filesystem ops, exfiltration, reverse shells, eval-injection,
// privilege escalation, dangerous path operations, env-var injection,
// container escape, crypto-mining, recon/persistence/process-kill, and
// bulk environment dumping).
var defaultDenyPatterns = []*regexp.Regexp{
	// Destructive filesystem operations.
	regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*f|-[a-z]*f[a-z]*r)\s+/(\s|$)`),
	regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*f|-[a-z]*f[a-z]*r)\s+~(\s|/|$)`),
	regexp.MustCompile(`(?i)\bmkfs(\.\w+)?\b`),
	regexp.MustCompile(`(?i)\bdd\s+.*\bof=/dev/(sd|nvme|hd|disk)`),
	regexp.MustCompile(`(?i):\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`), // fork bomb

	// Exfiltration.
	regexp.MustCompile(`(?i)\bcurl\b.*\s(-T|--upload-file)\s`),
	regexp.MustCompile(`(?i)\bcurl\b.*\s-d\s.*@`),
	regexp.MustCompile(`(?i)\bnc\b.*-e\s`),

	// Reverse shells.
	regexp.MustCompile(`(?i)/dev/tcp/\d`),
	regexp.MustCompile(`(?i)\bbash\s+-i\b.*>&`),
	regexp.MustCompile(`(?i)\bsocat\b.*exec:`),

	// Eval-injection.
	regexp.MustCompile(`(?i)\beval\s*\(\s*\$\(`),
	regexp.MustCompile(`(?i)\bpython3?\s+-c\s+.*\bos\.system\(`),

	// Privilege escalation.
	regexp.MustCompile(`(?i)\bsudo\s+su\b`),
	regexp.MustCompile(`(?i)\bchmod\s+(-\w+\s+)*(4755|6755|u\+s)\b`),
	regexp.MustCompile(`(?i)\bvisudo\b`),

	// Dangerous path operations.
	regexp.MustCompile(`(?i)\bchown\s+.*\s/\s*$`),
	regexp.MustCompile(`(?i)>\s*/etc/(passwd|shadow|sudoers)\b`),

	// Env-var injection.
	regexp.MustCompile(`(?i)\bLD_PRELOAD=`),
	regexp.MustCompile(`(?i)\bLD_LIBRARY_PATH=.*\bsudo\b`),

	// Container escape.
	regexp.MustCompile(`(?i)/var/run/docker\.sock`),
	regexp.MustCompile(`(?i)\bnsenter\b.*--target\s+1\b`),

	// Crypto-mining.
	regexp.MustCompile(`(?i)\b(xmrig|minerd|cgminer|ethminer)\b`),

	// Network recon at scale.
	regexp.MustCompile(`(?i)\bnmap\s+.*-p-\b`),
	regexp.MustCompile(`(?i)\bmasscan\b`),

	// Persistence.
	regexp.MustCompile(`(?i)>>\s*~?/\.(bashrc|profile|zshrc)\b`),
	regexp.MustCompile(`(?i)\bcrontab\s+-`),

	// Process kill at scale.
	regexp.MustCompile(`(?i)\bkillall5?\b`),
	regexp.MustCompile(`(?i)\bkill\s+-9\s+-1\b`),

	// Bulk environment dumping.
	regexp.MustCompile(`(?i)\benv\s*\|\s*(curl|nc|wget)\b`),
	regexp.MustCompile(`(?i)\bprintenv\b.*>\s*/dev/tcp`),
}
