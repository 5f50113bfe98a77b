// Package registry holds the static map of bank model names to parsers.
// Model selection is resolved against this map at startup, never by dynamic
// lookup at import time.
package registry

import (
	"fmt"
	"sort"

	"github.com/rumor-ml/commons.systems/treasury/internal/parser"
	"github.com/rumor-ml/commons.systems/treasury/internal/parsers/arbi"
	"github.com/rumor-ml/commons.systems/treasury/internal/parsers/csv"
	"github.com/rumor-ml/commons.systems/treasury/internal/parsers/ofx"
)

// Registry maps bank model names to their parsers
type Registry struct {
	parsers map[string]parser.Parser
}

// New creates a registry with all built-in bank models registered
func New() *Registry {
	r := &Registry{parsers: make(map[string]parser.Parser)}
	for _, p := range []parser.Parser{
		arbi.NewParser(),
		csv.NewParser(),
		ofx.NewParser(),
	} {
		r.parsers[p.Name()] = p
	}
	return r
}

// Register adds a custom parser (for extensibility). Registering a name
// twice replaces the earlier entry.
func (r *Registry) Register(p parser.Parser) {
	r.parsers[p.Name()] = p
}

// Get returns the parser registered under the given bank model name
func (r *Registry) Get(name string) (parser.Parser, error) {
	p, ok := r.parsers[name]
	if !ok {
		return nil, fmt.Errorf("unknown bank model %q (registered: %v)", name, r.List())
	}
	return p, nil
}

// Detect returns the first parser whose CanParse accepts the file, for
// callers that did not select a model explicitly. The header should hold
// the first bytes of content; 512 is enough for the magic numbers and
// header rows of the supported formats.
func (r *Registry) Detect(filename string, header []byte) (parser.Parser, error) {
	for _, name := range r.List() {
		p := r.parsers[name]
		if p.CanParse(filename, header) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no parser recognizes file %s", filename)
}

// List returns the registered model names, sorted for stable output
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
