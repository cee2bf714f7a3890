package beast

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"zenbeasts/core/types"
)

// Weights is the five-bucket weight row for one trait layer, ordered from the
// most common band to the rarest.
type Weights [traitBuckets]uint32

// DefaultWeights is the stock distribution applied to every layer unless the
// operator ships a catalog override.
var DefaultWeights = Weights{1000, 400, 200, 80, 20}

// TraitCatalog carries the per-layer weight tables used by trait generation.
// The zero value (and a nil catalog) behaves as ten default layers.
type TraitCatalog struct {
	layers [types.TraitCount]Weights
	loaded bool
}

// DefaultCatalog returns a catalog with every layer on the stock weights.
func DefaultCatalog() *TraitCatalog {
	c := &TraitCatalog{loaded: true}
	for i := range c.layers {
		c.layers[i] = DefaultWeights
	}
	return c
}

// Layer returns the weight row for a layer index, falling back to the default
// row when out of range.
func (c *TraitCatalog) Layer(i int) Weights {
	if c == nil || !c.loaded || i < 0 || i >= types.TraitCount {
		return DefaultWeights
	}
	return c.layers[i]
}

func (c *TraitCatalog) layersOrDefault() [types.TraitCount]Weights {
	var out [types.TraitCount]Weights
	for i := range out {
		out[i] = c.Layer(i)
	}
	return out
}

type catalogFile struct {
	Layers []catalogLayer `yaml:"layers"`
}

type catalogLayer struct {
	Name    string   `yaml:"name"`
	Weights []uint32 `yaml:"weights"`
}

// LoadCatalog reads a YAML trait-weight catalog. Listed layers override the
// defaults in order; omitted trailing layers keep the stock weights. Every row
// must carry exactly five weights with a positive total.
func LoadCatalog(path string) (*TraitCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("beast: read trait catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("beast: parse trait catalog: %w", err)
	}
	return buildCatalog(file)
}

func buildCatalog(file catalogFile) (*TraitCatalog, error) {
	if len(file.Layers) > types.TraitCount {
		return nil, fmt.Errorf("beast: trait catalog has %d layers, maximum %d", len(file.Layers), types.TraitCount)
	}
	catalog := DefaultCatalog()
	for i, layer := range file.Layers {
		if len(layer.Weights) != traitBuckets {
			return nil, fmt.Errorf("beast: layer %d (%s) has %d weights, want %d", i, layer.Name, len(layer.Weights), traitBuckets)
		}
		var row Weights
		total := uint64(0)
		for j, w := range layer.Weights {
			row[j] = w
			total += uint64(w)
		}
		if total == 0 {
			return nil, fmt.Errorf("beast: layer %d (%s) has zero total weight", i, layer.Name)
		}
		catalog.layers[i] = row
	}
	return catalog, nil
}
