// Package script models workflow source text: section headers, directive
// lines, and the parsed script/workflow structures the executors consume. The
// full parser is a collaborator behind the Parser interface; the line parser
// shipped here understands enough of the format to split sections and select
// workflows.
package script
