package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DomeLiquid/federation/chain/chaintest"
	"github.com/DomeLiquid/federation/core"
	"github.com/DomeLiquid/federation/store"
	"github.com/facebookgo/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver struct {
	contract *core.Contract
}

func (r staticResolver) GetOrCreateDefaultContract(context.Context) (*core.Contract, error) {
	return r.contract, nil
}

func TestBuilderState(t *testing.T) {
	st, err := store.New("", store.WithPurgeInterval(0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clk := clock.NewMock()
	_, err = st.InsertMints(context.Background(), []*core.MintRecord{
		core.NewMintRecord(clk, "Game", "sword", "tpl-1", "", "H1"),
		core.NewMintRecord(clk, "Game", "sword", "tpl-1", "11", "H1"),
		core.NewMintRecord(clk, "Game", "sword", "tpl-1", "12", "H1"),
		core.NewMintRecord(clk, "Other", "shield", "tpl-9", "13", "H2"),
	})
	require.NoError(t, err)

	fake := chaintest.NewFake()
	fake.Tokens["0xwallet"] = []*core.WalletToken{
		{Id: "1", Name: "Gold", Fungible: true, Balance: decimal.NewFromInt(10)},
		{Id: "2", Name: "Gold", Fungible: true, Balance: decimal.RequireFromString("5.9")},
		{Id: "11", Name: "Sword", Description: "Sharp", ImageUrl: "https://img/sword.png",
			Attributes: []core.TokenAttribute{{Name: "damage", Type: core.TOKEN_ATTRIBUTE_TYPE_PROPERTY, Value: "12"}}},
		{Id: "12", Name: "Sword"},
		{Id: "13", Name: "Shield"},
		{Id: "14", Name: ""},
	}

	builder := NewBuilder(fake, staticResolver{&core.Contract{Id: "c-1", Name: "Game"}}, st, core.NopLog())
	state, err := builder.State(context.Background(), "0xwallet")
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"Gold": 15}, state.Currencies)
	require.Len(t, state.Items["sword"], 2)
	assert.Equal(t, "11", state.Items["sword"][0].ProxyId)
	assert.Equal(t, []*core.ItemProperty{
		{Name: "Name", Value: "Sword"},
		{Name: "Description", Value: "Sharp"},
		{Name: "Image", Value: "https://img/sword.png"},
		{Name: "damage", Value: "12"},
	}, state.Items["sword"][0].Properties)
	assert.Equal(t, []*core.ItemProperty{{Name: "Name", Value: "Sword"}}, state.Items["sword"][1].Properties)

	// minted on another contract, so it falls back to the token name
	require.Len(t, state.Items["Shield"], 1)
	assert.Len(t, state.Items, 2)
}

func TestBuilderStateTemplateOnlyLedger(t *testing.T) {
	st, err := store.New("", store.WithPurgeInterval(0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.InsertMints(context.Background(), []*core.MintRecord{
		core.NewMintRecord(clock.NewMock(), "Game", "items.sword", "7", "", "H1"),
	})
	require.NoError(t, err)

	fake := chaintest.NewFake()
	fake.Tokens["0xwallet"] = []*core.WalletToken{{Id: "7", Name: "Sword"}}

	builder := NewBuilder(fake, staticResolver{&core.Contract{Id: "c-1", Name: "Game"}}, st, core.NopLog())
	state, err := builder.State(context.Background(), "0xwallet")
	require.NoError(t, err)

	require.Len(t, state.Items["items.sword"], 1)
	assert.Equal(t, "7", state.Items["items.sword"][0].ProxyId)
	assert.NotContains(t, state.Items, "Sword")
}

func TestBuilderChainError(t *testing.T) {
	fake := chaintest.NewFake()
	fake.Errs["GetWalletTokenBalances"] = assert.AnError
	builder := NewBuilder(fake, staticResolver{&core.Contract{Name: "Game"}}, nil, core.NopLog())

	_, err := builder.State(context.Background(), "0xwallet")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSinkReplaceState(t *testing.T) {
	var got core.InventoryState
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/object/inventory/42/proxy/state" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sink-token" {
			t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	state := core.NewInventoryState()
	state.Currencies["Gold"] = 3
	state.Items["sword"] = []*core.ItemProxy{{ProxyId: "11"}}

	sink := NewSink(server.URL+"/", "sink-token", core.NopLog())
	require.NoError(t, sink.ReplaceState(context.Background(), 42, state))
	assert.Equal(t, int64(3), got.Currencies["Gold"])
	assert.Equal(t, "11", got.Items["sword"][0].ProxyId)
}

func TestSinkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewSink(server.URL, "", core.NopLog()).ReplaceState(context.Background(), 1, core.NewInventoryState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
