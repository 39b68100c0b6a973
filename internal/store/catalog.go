package store

import (
	"fmt"
	"sync"

	"github.com/matt-meaningfulgigs/data-killer/internal/model"
)

// Catalog is the broker definition store: a JSON array on disk, read once at
// session start and rewritten in place when a diagnosis is promoted. It is
// process-wide mutable shared state across runs; single-process sequential
// use is the only guarantee.
type Catalog struct {
	path string
	mu   sync.Mutex
}

// NewCatalog points at a catalog file.
func NewCatalog(path string) *Catalog {
	return &Catalog{path: path}
}

// Load reads and validates every broker entry. Any parse or validation
// failure aborts the whole run, so the error carries the offending entry.
func (c *Catalog) Load() ([]model.BrokerDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

func (c *Catalog) loadLocked() ([]model.BrokerDefinition, error) {
	var brokers []model.BrokerDefinition
	if err := readJSON(c.path, &brokers); err != nil {
		return nil, fmt.Errorf("broker catalog %s: %w", c.path, err)
	}

	seen := make(map[string]bool, len(brokers))
	for _, b := range brokers {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("broker catalog %s: %w", c.path, err)
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("broker catalog %s: duplicate broker %q", c.path, b.Name)
		}
		seen[b.Name] = true
	}
	return brokers, nil
}

// Save rewrites the whole catalog.
func (c *Catalog) Save(brokers []model.BrokerDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked(brokers)
}

func (c *Catalog) saveLocked(brokers []model.BrokerDefinition) error {
	for _, b := range brokers {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	return writeJSON(c.path, brokers, 0o644)
}

// UpdateBroker applies fn to the named broker and persists the catalog,
// read-modify-write keyed by broker name rather than index. Returns the
// updated definition.
func (c *Catalog) UpdateBroker(name string, fn func(*model.BrokerDefinition)) (model.BrokerDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	brokers, err := c.loadLocked()
	if err != nil {
		return model.BrokerDefinition{}, err
	}

	for i := range brokers {
		if brokers[i].Name != name {
			continue
		}
		fn(&brokers[i])
		if err := c.saveLocked(brokers); err != nil {
			return model.BrokerDefinition{}, fmt.Errorf("persist broker %q: %w", name, err)
		}
		return brokers[i], nil
	}
	return model.BrokerDefinition{}, fmt.Errorf("broker %q not in catalog", name)
}
