package core

import "context"

type (
	InventorySink interface {
		ReplaceState(ctx context.Context, playerId int64, state *InventoryState) error
	}

	InventoryState struct {
		Currencies map[string]int64        `json:"currencies"`
		Items      map[string][]*ItemProxy `json:"items"`
	}

	ItemProxy struct {
		ProxyId    string          `json:"proxyId"`
		Properties []*ItemProperty `json:"properties"`
	}

	ItemProperty struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
)

func NewInventoryState() *InventoryState {
	return &InventoryState{
		Currencies: map[string]int64{},
		Items:      map[string][]*ItemProxy{},
	}
}
