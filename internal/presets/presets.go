// Package presets maps collection ids to named visualization
// parameter bundles.
package presets

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opengeos/maplibre-gl-planetary-computer/internal/titiler"
)

//go:embed presets.yaml
var builtin []byte

// Preset is a named, reusable parameter bundle for a collection.
type Preset struct {
	Name        string                `yaml:"name" json:"name"`
	Label       string                `yaml:"label" json:"label"`
	Description string                `yaml:"description,omitempty" json:"description,omitempty"`
	Options     titiler.RenderOptions `yaml:"options" json:"options"`
}

type collectionPresets struct {
	Default string   `yaml:"default"`
	Presets []Preset `yaml:"presets"`
}

// Registry is a static lookup table of presets per collection. It is
// built once and never mutated afterwards.
type Registry struct {
	byCollection map[string]collectionPresets
}

// Builtin returns the registry built from the embedded preset table.
func Builtin() *Registry {
	r, err := parse(builtin)
	if err != nil {
		// The embedded table is validated by tests; a parse failure
		// here is a build defect.
		panic(fmt.Sprintf("presets: invalid embedded table: %v", err))
	}
	return r
}

// LoadFile builds a registry from a YAML preset file, replacing the
// built-in table.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Registry, error) {
	var byCollection map[string]collectionPresets
	if err := yaml.Unmarshal(data, &byCollection); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	for id, cp := range byCollection {
		if cp.Default == "" {
			continue
		}
		found := false
		for _, p := range cp.Presets {
			if p.Name == cp.Default {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("collection %q declares unknown default preset %q", id, cp.Default)
		}
	}
	return &Registry{byCollection: byCollection}, nil
}

// ForCollection returns the presets of a collection in declaration
// order. Unknown collections yield an empty list, never an error.
func (r *Registry) ForCollection(collectionID string) []Preset {
	cp, ok := r.byCollection[collectionID]
	if !ok {
		return nil
	}
	out := make([]Preset, len(cp.Presets))
	copy(out, cp.Presets)
	return out
}

// Default returns the collection's declared default preset, or false
// when the collection or its default name is unknown.
func (r *Registry) Default(collectionID string) (Preset, bool) {
	cp, ok := r.byCollection[collectionID]
	if !ok || cp.Default == "" {
		return Preset{}, false
	}
	return r.Get(collectionID, cp.Default)
}

// Get returns the named preset of a collection, or false.
func (r *Registry) Get(collectionID, name string) (Preset, bool) {
	cp, ok := r.byCollection[collectionID]
	if !ok {
		return Preset{}, false
	}
	for _, p := range cp.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
