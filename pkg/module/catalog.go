package module

import (
	"fmt"
	"sort"
	"strings"
)

// legacyPrefix is accepted in front of module identifiers.
const legacyPrefix = "pira.modules."

// Catalog maps module identifiers to their constructors.
type Catalog map[string]Factory

// Normalize trims whitespace and the legacy dotted prefix from a module identifier.
func Normalize(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), legacyPrefix)
}

// Lookup returns the factory registered under name.
func (c Catalog) Lookup(name string) (Factory, error) {
	f, ok := c[Normalize(name)]
	if !ok || f == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, name)
	}
	return f, nil
}

// Names returns the registered identifiers in sorted order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
