// Package scratch runs one step inline in the caller's process: it resets the
// shared execution context, merges the resolved configuration, classifies the
// step's variables, and delegates to the step runner. No workflow-level state
// is persisted.
package scratch

import (
	"regexp"
	"sort"
	"strings"

	"flowtap/internal/script"
)

// Analysis classifies a step's variables into the three sets the engine
// tracks: signature variables affect cache/reuse decisions, environ variables
// are external dependencies, changed variables are mutated by the step.
type Analysis struct {
	SignatureVars []string
	EnvironVars   []string
	ChangedVars   []string
}

var (
	assignPattern  = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*(?:\s*,\s*[A-Za-z_][A-Za-z0-9_]*)*)\s*:?=[^=]`)
	identPattern   = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	getenvPattern  = regexp.MustCompile(`os\.Getenv\(\s*"([^"]+)"\s*\)`)
	envExprPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

var reservedWords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true,
	"for": true, "func": true, "go": true, "goto": true, "if": true,
	"import": true, "interface": true, "map": true, "package": true,
	"range": true, "return": true, "select": true, "struct": true,
	"switch": true, "type": true, "var": true,
	"true": true, "false": true, "nil": true, "iota": true,
	"len": true, "cap": true, "make": true, "new": true, "append": true,
	"copy": true, "delete": true, "print": true, "println": true,
	"panic": true, "recover": true, "string": true, "int": true,
	"int64": true, "float64": true, "bool": true, "byte": true, "rune": true,
	"error": true, "any": true,
}

// AnalyzeSection performs the static pass over a single step. Variables
// assigned in the step are changed; env lookups are environ; identifiers read
// before any assignment in the step are signature variables.
func AnalyzeSection(section script.Section) Analysis {
	changed := map[string]bool{}
	environ := map[string]bool{}
	signature := map[string]bool{}

	for _, line := range section.Lines() {
		code := stripComment(line)
		if strings.TrimSpace(code) == "" {
			continue
		}
		for _, m := range getenvPattern.FindAllStringSubmatch(code, -1) {
			environ[m[1]] = true
		}
		for _, m := range envExprPattern.FindAllStringSubmatch(code, -1) {
			environ[m[1]] = true
		}
		rhs := code
		if m := assignPattern.FindStringSubmatch(code); m != nil {
			for _, name := range strings.Split(m[1], ",") {
				name = strings.TrimSpace(name)
				if name != "" && name != "_" {
					changed[name] = true
				}
			}
			// m[0] ends with the one non-'=' char matched after the
			// operator; keep it on the right-hand side.
			rhs = code[len(m[0])-1:]
		}
		for _, ident := range identPattern.FindAllString(stripStrings(rhs), -1) {
			if reservedWords[ident] || changed[ident] {
				continue
			}
			signature[ident] = true
		}
	}
	return Analysis{
		SignatureVars: sortedKeys(signature),
		EnvironVars:   sortedKeys(environ),
		ChangedVars:   sortedKeys(changed),
	}
}

// stripStrings blanks out double-quoted literals so their contents are not
// mistaken for variable references.
func stripStrings(code string) string {
	out := []byte(code)
	inString := false
	for i := 0; i < len(out); i++ {
		if out[i] == '"' {
			inString = !inString
			continue
		}
		if inString {
			out[i] = ' '
		}
	}
	return string(out)
}

func stripComment(line string) string {
	inString := false
	for i := 0; i < len(line)-1; i++ {
		switch line[i] {
		case '"':
			inString = !inString
		case '/':
			if !inString && line[i+1] == '/' {
				return line[:i]
			}
		}
	}
	return line
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
