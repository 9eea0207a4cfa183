package compiler

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// glslc: "<stdin>:12: error: 'x' : undeclared identifier"
	glslcError = regexp.MustCompile(`^(?:<stdin>|[^:]*):(\d+): error: (.*)$`)
	// glslangValidator: "ERROR: 0:12: 'x' : undeclared identifier"
	glslangError = regexp.MustCompile(`^ERROR: (?:\d+|[^:]+):(\d+): (.*)$`)
	// either tool, no line: "ERROR: stdin: ..." or "glslc: error: ..."
	bareError = regexp.MustCompile(`^(?:ERROR|[^:]*: error): (.*)$`)
)

// ParseDiagnostic extracts the first error and its line from compiler output.
// Message is empty when the output holds no recognizable error.
func ParseDiagnostic(output string) *Diagnostic {
	d := &Diagnostic{Output: strings.TrimSpace(output)}
	for _, line := range strings.Split(d.Output, "\n") {
		line = strings.TrimSpace(line)
		for _, re := range []*regexp.Regexp{glslcError, glslangError} {
			if m := re.FindStringSubmatch(line); m != nil {
				d.Line, _ = strconv.Atoi(m[1])
				d.Message = m[2]
				return d
			}
		}
		if d.Message == "" {
			if m := bareError.FindStringSubmatch(line); m != nil {
				d.Message = m[1]
			}
		}
	}
	return d
}
