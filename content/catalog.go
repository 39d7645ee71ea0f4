package content

import (
	"context"
	"os"
	"sync"

	"github.com/DomeLiquid/federation/core"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type (
	// Catalog serves game content definitions from a YAML file.
	Catalog struct {
		path string
		log  core.Log

		mu    sync.RWMutex
		items map[string]*core.ContentItem
	}

	catalogFile struct {
		Items []*core.ContentItem `yaml:"items"`
	}
)

func Open(path string, log core.Log) (*Catalog, error) {
	c := &Catalog{
		path:  path,
		log:   log,
		items: map[string]*core.ContentItem{},
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewStatic builds a catalog that is never reloaded from disk.
func NewStatic(items ...*core.ContentItem) *Catalog {
	c := &Catalog{
		log:   core.NopLog(),
		items: make(map[string]*core.ContentItem, len(items)),
	}
	for _, item := range items {
		c.items[item.Id] = item
	}
	return c
}

// Reload re-reads the file. On error the previous items stay in place.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	buf, err := os.ReadFile(c.path)
	if err != nil {
		return errors.Wrapf(err, "read content catalog %s", c.path)
	}
	var file catalogFile
	if err := yaml.Unmarshal(buf, &file); err != nil {
		return errors.Wrapf(err, "parse content catalog %s", c.path)
	}

	items := make(map[string]*core.ContentItem, len(file.Items))
	for _, item := range file.Items {
		if item == nil || item.Id == "" {
			return errors.Errorf("content catalog %s: item without id", c.path)
		}
		if _, ok := items[item.Id]; ok {
			return errors.Errorf("content catalog %s: duplicate item %s", c.path, item.Id)
		}
		items[item.Id] = item
	}

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()

	c.log.Info().Str("path", c.path).Int("items", len(items)).Msg("content catalog loaded")
	return nil
}

func (c *Catalog) GetContent(_ context.Context, contentId string) (*core.ContentItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items[contentId], nil
}
