package destination

import (
	"context"
	"fmt"
	"os"
	"sort"

	sigsyaml "sigs.k8s.io/yaml"
)

// StaticRepository serves a fixed list of destinations.
type StaticRepository struct {
	items []Destination
}

// NewStaticRepository returns a Repository over items, sorted featured first.
func NewStaticRepository(items []Destination) *StaticRepository {
	sorted := make([]Destination, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Featured != sorted[j].Featured {
			return sorted[i].Featured
		}
		return sorted[i].Name < sorted[j].Name
	})
	return &StaticRepository{items: sorted}
}

// List returns a copy of the destinations.
func (r *StaticRepository) List(_ context.Context) ([]Destination, error) {
	out := make([]Destination, len(r.items))
	copy(out, r.items)
	return out, nil
}

type seedFile struct {
	Destinations []Destination `json:"destinations"`
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(data []byte) ([]Destination, error) {
	var seed seedFile
	if err := sigsyaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decoding destinations seed: %w", err)
	}

	seen := make(map[string]bool, len(seed.Destinations))
	for i, d := range seed.Destinations {
		switch {
		case d.ID == "":
			return nil, fmt.Errorf("%w: entry %d has no id", ErrInvalidSeed, i)
		case d.Name == "":
			return nil, fmt.Errorf("%w: %s has no name", ErrInvalidSeed, d.ID)
		case seen[d.ID]:
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidSeed, d.ID)
		case d.ProcessingDays < 0 || d.FeeCents < 0:
			return nil, fmt.Errorf("%w: %s has a negative fee or processing time", ErrInvalidSeed, d.ID)
		}
		seen[d.ID] = true
	}

	return seed.Destinations, nil
}

// LoadSeed reads and decodes the YAML seed file at path.
func LoadSeed(path string) ([]Destination, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading destinations seed: %w", err)
	}
	return ParseSeed(data)
}
