package source

import (
	"sort"
	"strings"
)

var registry = map[string]Source{}

// Register makes a source available by its lower-cased name. It is meant
// to be called from init and panics on a nil source or a duplicate name.
func Register(s Source) {
	if s == nil {
		panic("source: Register source is nil")
	}
	name := strings.ToLower(s.Name())
	if _, dup := registry[name]; dup {
		panic("source: Register called twice for " + name)
	}
	registry[name] = s
}

// Get looks a source up by name, ignoring case.
func Get(name string) (Source, bool) {
	s, ok := registry[strings.ToLower(name)]
	return s, ok
}

// Names lists the registered sources in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
