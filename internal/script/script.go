package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ScratchSectionName is the header injected around header-free code so a bare
// block of statements parses as a one-section script.
const ScratchSectionName = "scratch_0"

var sectionHeaderPattern = regexp.MustCompile(`^\[\s*([A-Za-z_][A-Za-z0-9_]*(?:\s*,\s*[A-Za-z_][A-Za-z0-9_]*)*)\s*(?::\s*(.*?)\s*)?\]\s*$`)

// Section is the smallest independently executable portion of a workflow.
type Section struct {
	Name    string
	Options string
	Body    string
}

// Lines splits the section body without trailing blanks.
func (s Section) Lines() []string {
	body := strings.TrimRight(s.Body, "\n")
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

// Script is a parsed source document: an ordered list of sections plus any
// %include / %from directives that preceded them.
type Script struct {
	Directives []string
	Sections   []Section
}

// Workflow is a named sequence of sections selected from a script.
type Workflow struct {
	Name     string
	Sections []Section
}

// Parser turns raw source text into a Script. The production grammar lives in
// the external parser; tests and the default tooling use LineParser.
type Parser interface {
	Parse(content string) (*Script, error)
}

// IsSectionHeader reports whether line opens a new section.
func IsSectionHeader(line string) bool {
	return sectionHeaderPattern.MatchString(strings.TrimRight(line, " \t"))
}

// IsDirective reports whether line is a %include or %from directive.
func IsDirective(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "%include") || strings.HasPrefix(trimmed, "%from")
}

// HasHeaderOrDirective scans code for any section header or directive line.
// Code containing either is a multi-section document and is not eligible for
// scratch execution.
func HasHeaderOrDirective(code string) bool {
	for _, line := range strings.Split(code, "\n") {
		if IsSectionHeader(line) || IsDirective(line) {
			return true
		}
	}
	return false
}

// WrapScratch prefixes header-free code with the scratch section header.
func WrapScratch(code string) string {
	return "[" + ScratchSectionName + "]\n" + code
}

// LineParser is the default Parser. It recognizes headers of the form
// [name] or [name: options], collects directive lines, and treats everything
// else as section body text.
type LineParser struct{}

// Parse splits content into sections. Body text before the first header is
// rejected; callers wrap scratch code with WrapScratch first.
func (LineParser) Parse(content string) (*Script, error) {
	sc := &Script{}
	var current *Section
	for i, line := range strings.Split(content, "\n") {
		if m := sectionHeaderPattern.FindStringSubmatch(strings.TrimRight(line, " \t")); m != nil {
			if current != nil {
				sc.Sections = append(sc.Sections, *current)
			}
			current = &Section{Name: strings.TrimSpace(m[1]), Options: m[2]}
			continue
		}
		if IsDirective(line) {
			if current != nil {
				return nil, fmt.Errorf("script: line %d: directive after first section header", i+1)
			}
			sc.Directives = append(sc.Directives, strings.TrimSpace(line))
			continue
		}
		if current == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return nil, fmt.Errorf("script: line %d: statement before first section header", i+1)
		}
		current.Body += line + "\n"
	}
	if current != nil {
		sc.Sections = append(sc.Sections, *current)
	}
	if len(sc.Sections) == 0 {
		return nil, fmt.Errorf("script: no sections found")
	}
	return sc, nil
}

// Workflow selects the sections belonging to name, in document order. An
// empty name selects the workflow of the first section. Section names of the
// form base_N belong to workflow base; unsuffixed names form a single-section
// workflow of their own.
func (s *Script) Workflow(name string) (*Workflow, error) {
	if len(s.Sections) == 0 {
		return nil, fmt.Errorf("script: no sections found")
	}
	if name == "" {
		name = workflowOf(s.Sections[0].Name)
	}
	wf := &Workflow{Name: name}
	for _, sec := range s.Sections {
		if workflowOf(sec.Name) == name {
			wf.Sections = append(wf.Sections, sec)
		}
	}
	if len(wf.Sections) == 0 {
		return nil, fmt.Errorf("script: workflow %q not found", name)
	}
	return wf, nil
}

func workflowOf(sectionName string) string {
	idx := strings.LastIndex(sectionName, "_")
	if idx <= 0 {
		return sectionName
	}
	if _, err := strconv.Atoi(sectionName[idx+1:]); err != nil {
		return sectionName
	}
	return sectionName[:idx]
}
