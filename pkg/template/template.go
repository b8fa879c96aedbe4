package template

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var builtinYAML []byte

// Entry is one task in a template: a title and its business-day offset
// from the session date.
type Entry struct {
	Title  string `yaml:"title"`
	Offset int    `yaml:"offset"`
}

// OffsetLabel renders an offset the way engagement plans talk about it:
// T-28 for 28 business days before, T+2 for two after.
func OffsetLabel(offset int) string {
	switch {
	case offset > 0:
		return fmt.Sprintf("T-%d", offset)
	case offset < 0:
		return fmt.Sprintf("T+%d", -offset)
	default:
		return "T"
	}
}

// Set holds named templates. It is read-only once loaded.
type Set struct {
	templates map[string][]Entry
}

// Builtin returns the embedded initial and follow-on templates.
func Builtin() (*Set, error) {
	s := &Set{templates: make(map[string][]Entry)}
	if err := s.merge(bytes.NewReader(builtinYAML), "builtin"); err != nil {
		return nil, err
	}
	return s, nil
}

// Load returns the builtin set with templates from path layered on top.
// Templates in the file replace builtin templates of the same name.
// An empty path yields the builtin set.
func Load(path string) (*Set, error) {
	s, err := Builtin()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return s, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open templates file: %w", err)
	}
	defer f.Close()

	if err := s.merge(f, path); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) merge(r io.Reader, source string) error {
	var raw map[string][]Entry
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to decode templates from %s: %w", source, err)
	}
	for name, entries := range raw {
		if len(entries) == 0 {
			return fmt.Errorf("template %q in %s has no entries", name, source)
		}
		for i, e := range entries {
			if strings.TrimSpace(e.Title) == "" {
				return fmt.Errorf("template %q in %s: entry %d has an empty title", name, source, i)
			}
		}
		s.templates[name] = entries
	}
	return nil
}

// Lookup returns a copy of the named template.
func (s *Set) Lookup(name string) ([]Entry, bool) {
	entries, ok := s.templates[name]
	if !ok {
		return nil, false
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, true
}

// Names lists the template names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
