// Package runner implements the Script Runner of spec.md §4.6: inline
// dependency-preamble parsing, environment-hash reuse/creation, process
// replacement on UNIX, and sandbox shim injection. Grounded on the
// teacher's cmd/run.go (PATH injection, exec.ExitError code propagation,
// `--` argument splitting) generalized from "run a command in the active
// env" to "run a script, creating or reusing its own env".
package runner

import (
	"bufio"
	"strings"

	"github.com/BurntSushi/toml"
)

// Preamble is the PEP-723-style inline metadata block a script may declare:
//
//	# /// script
//	# requires-python = ">=3.11"
//	# dependencies = ["requests", "rich>=13"]
//	# ///
type Preamble struct {
	RequiresPython string   `toml:"requires-python"`
	Dependencies   []string `toml:"dependencies"`
}

const (
	fenceOpen  = "# /// script"
	fenceClose = "# ///"
)

// ParsePreamble scans source for a fenced inline metadata block and decodes
// its TOML body. A script with no preamble returns a zero Preamble and
// ok=false — callers skip the Environment Manager round-trip entirely in
// that case (spec.md §4.6 step 3 "if the preamble is non-empty").
func ParsePreamble(source string) (Preamble, bool, error) {
	scanner := bufio.NewScanner(strings.NewReader(source))
	var body strings.Builder
	inBlock := false
	found := false

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimRight(line, " \t")
		switch {
		case !inBlock && trimmed == fenceOpen:
			inBlock = true
			found = true
			continue
		case inBlock && trimmed == fenceClose:
			inBlock = false
			continue
		case inBlock:
			content := strings.TrimPrefix(line, "#")
			content = strings.TrimPrefix(content, " ")
			body.WriteString(content)
			body.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return Preamble{}, false, err
	}
	if !found {
		return Preamble{}, false, nil
	}

	var preamble Preamble
	if _, err := toml.Decode(body.String(), &preamble); err != nil {
		return Preamble{}, false, err
	}
	return preamble, true, nil
}
