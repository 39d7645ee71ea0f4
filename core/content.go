package core

import (
	"context"
	"encoding/json"
)

type (
	ContentCatalog interface {
		// GetContent returns nil without error when the content id is unknown.
		GetContent(ctx context.Context, contentId string) (*ContentItem, error)
	}

	ContentItem struct {
		Id               string            `json:"id" yaml:"id"`
		Name             string            `json:"name" yaml:"name"`
		Description      string            `json:"description" yaml:"description"`
		Image            string            `json:"image" yaml:"image"`
		Url              string            `json:"url" yaml:"url"`
		CustomProperties map[string]string `json:"customProperties" yaml:"customProperties"`
	}

	contentMetadata struct {
		Name             string
		Description      string
		Image            string
		Url              string
		CustomProperties map[string]string
	}
)

// MetadataJSON is the publishable part of the item. Map keys are emitted
// sorted so equal metadata always encodes to equal bytes.
func (c *ContentItem) MetadataJSON() ([]byte, error) {
	return json.Marshal(contentMetadata{
		Name:             c.Name,
		Description:      c.Description,
		Image:            c.Image,
		Url:              c.Url,
		CustomProperties: c.CustomProperties,
	})
}
