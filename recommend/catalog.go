package recommend

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/RyanBlaney/sonido-vibe/classifier/config"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Track is one playable recommendation
type Track struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Artist   string `json:"artist" yaml:"artist"`
	Album    string `json:"album" yaml:"album"`
	CoverURL string `json:"coverUrl" yaml:"coverUrl"`
	AudioURL string `json:"audioUrl" yaml:"audioUrl"`
	Duration int    `json:"duration" yaml:"duration"` // seconds
}

// Catalog is a static set of tracks keyed by environment category
type Catalog struct {
	tracks [config.NumCategories][]Track
}

// DefaultCatalog returns the built-in catalog
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(bytes.NewReader(defaultCatalogYAML))
}

// LoadCatalogFile reads a catalog from a YAML file
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// LoadCatalog decodes a YAML document mapping category names to track lists.
// The calm list must be present because it is the fallback for every other
// category.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var raw map[string][]Track
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{}
	for name, tracks := range raw {
		category, ok := config.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("catalog: unknown category %q", name)
		}
		c.tracks[category] = tracks
	}
	if len(c.tracks[config.CategoryCalm]) == 0 {
		return nil, fmt.Errorf("catalog: no calm tracks")
	}
	return c, nil
}

// Tracks returns every track for category, or the calm tracks when the
// category has none
func (c *Catalog) Tracks(category config.Category) []Track {
	if category < 0 || int(category) >= config.NumCategories || len(c.tracks[category]) == 0 {
		return c.tracks[config.CategoryCalm]
	}
	return c.tracks[category]
}

// Sample returns up to n distinct tracks for category in random order. When
// the category holds n tracks or fewer, all of them are returned.
func (c *Catalog) Sample(category config.Category, n int) []Track {
	tracks := c.Tracks(category)
	if len(tracks) <= n {
		out := make([]Track, len(tracks))
		copy(out, tracks)
		return out
	}
	if n <= 0 {
		return []Track{}
	}

	out := make([]Track, n)
	for i, idx := range rand.Perm(len(tracks))[:n] {
		out[i] = tracks[idx]
	}
	return out
}
