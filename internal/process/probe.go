package process

import (
	"path/filepath"
	"strings"
)

// versionArgs maps a program base name to the arguments that make it print
// its version and exit successfully.
var versionArgs = map[string][]string{
	"git":     {"--version"},
	"go":      {"version"},
	"npm":     {"-v"},
	"npx":     {"-v"},
	"node":    {"--version"},
	"cargo":   {"--version"},
	"python":  {"--version"},
	"python3": {"--version"},
	"pip":     {"--version"},
	"pip3":    {"--version"},
}

// ProbeArgs returns the argument vector used to check that program is usable.
func ProbeArgs(program string) []string {
	args, ok := versionArgs[baseCommand(program)]
	if !ok {
		args = []string{"--version"}
	}
	return append([]string{program}, args...)
}

// Available reports whether program can be started and exits successfully
// when asked for its version. Spawn failures and non-zero exits both mean
// unavailable.
func Available(r Runner, dir, program string) bool {
	if strings.TrimSpace(program) == "" {
		return false
	}
	return r.RunSilent(dir, ProbeArgs(program)...) == nil
}

func baseCommand(program string) string {
	base := filepath.Base(strings.ReplaceAll(program, `\`, "/"))
	for _, ext := range []string{".exe", ".cmd", ".ps1"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}
