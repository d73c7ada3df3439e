package render

import (
	"sort"

	"stack-keeper/internal/models"
)

// Layer is one named mapping of the variable source.
type Layer struct {
	Name   string
	Values map[string]string
}

/**
 * Source is the layered variable source consulted by the renderer
 * @description
 * - Pinned host-identity names win over every layer and over template defaults
 * - Layers are consulted in order, first match wins
 * - Port rewrites are literal substitutions applied after placeholder resolution
 * - A Source is a value: With* methods return a copy
 */
type Source struct {
	layers   []Layer
	pinned   map[string]string
	rewrites []models.PortRewrite
	loopback string
}

func NewSource(layers ...Layer) Source {
	return Source{layers: append([]Layer(nil), layers...)}
}

/**
 * Pin host-identity variables to a fixed address
 * @param {[]string} names - Variable names, e.g. MYSQL_HOST
 * @param {string} address - Address they always resolve to
 * @returns {Source} Copy of the source with the pins added
 */
func (s Source) WithPinnedHosts(names []string, address string) Source {
	pinned := make(map[string]string, len(s.pinned)+len(names))
	for k, v := range s.pinned {
		pinned[k] = v
	}
	for _, name := range names {
		pinned[name] = address
	}
	s.pinned = pinned
	s.loopback = address
	return s
}

// WithPortRewrites rewrites "<loopback>:<from>" to "<loopback>:<to>" in rendered text.
func (s Source) WithPortRewrites(rewrites ...models.PortRewrite) Source {
	s.rewrites = append(append([]models.PortRewrite(nil), s.rewrites...), rewrites...)
	return s
}

// Lookup resolves name through the pins then the layers.
func (s Source) Lookup(name string) (string, bool) {
	if v, ok := s.pinned[name]; ok {
		return v, true
	}
	for _, layer := range s.layers {
		if v, ok := layer.Values[name]; ok {
			return v, true
		}
	}
	return "", false
}

func (s Source) IsPinned(name string) bool {
	_, ok := s.pinned[name]
	return ok
}

// Loopback returns the address host variables are pinned to, empty if none.
func (s Source) Loopback() string {
	return s.loopback
}

// PinnedNames lists the pinned variables, sorted.
func (s Source) PinnedNames() []string {
	names := make([]string, 0, len(s.pinned))
	for name := range s.pinned {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
