package minting

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DomeLiquid/federation/chain/chaintest"
	"github.com/DomeLiquid/federation/config"
	"github.com/DomeLiquid/federation/content"
	"github.com/DomeLiquid/federation/core"
	"github.com/DomeLiquid/federation/store"
	"github.com/DomeLiquid/federation/transaction"
	"github.com/DomeLiquid/federation/utils"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testContract = "Game Contract"
	testWallet   = "0xwallet"
)

type (
	staticResolver struct {
		contract *core.Contract
	}

	nopStates struct{}
	nopSink   struct{}

	failingInserts struct {
		*store.Store
		err error
	}

	testEnv struct {
		service *Service
		store   *store.Store
		chain   *chaintest.Fake
		manager *transaction.Manager
		clk     *clock.Mock
	}
)

func (r staticResolver) GetOrCreateDefaultContract(context.Context) (*core.Contract, error) {
	return r.contract, nil
}

func (nopStates) State(context.Context, string) (*core.InventoryState, error) {
	return core.NewInventoryState(), nil
}

func (nopSink) ReplaceState(context.Context, int64, *core.InventoryState) error {
	return nil
}

func (f failingInserts) InsertMints(context.Context, []*core.MintRecord) ([]core.InsertOutcome, error) {
	return nil, f.err
}

var (
	sword = &core.ContentItem{
		Id:               "sword",
		Name:             "Sword",
		Description:      "Sharp",
		CustomProperties: map[string]string{"damage": "12", "rarity": "rare"},
	}
	gold = &core.ContentItem{Id: "gold", Name: "Gold"}
)

func newTestEnv(t *testing.T, items ...*core.ContentItem) *testEnv {
	t.Helper()
	st, err := store.New("", store.WithPurgeInterval(0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.TransactionPollInterval = time.Millisecond
	cfg.DelayAfterConfirmation = 0

	fake := chaintest.NewFake()
	manager := transaction.NewManager(st, fake, nopStates{}, nopSink{}, config.NewProvider("", cfg),
		clock.New(), core.NopLog(), prometheus.NewRegistry())
	clk := clock.NewMock()
	resolver := staticResolver{&core.Contract{Id: "c-1", Name: testContract, Confirmed: true}}

	return &testEnv{
		service: NewService(resolver, st, fake, content.NewStatic(items...), manager, clk, core.NopLog()),
		store:   st,
		chain:   fake,
		manager: manager,
		clk:     clk,
	}
}

// mint runs the service inside a guarded transaction like the inbound
// operations do and waits for confirmation.
func (e *testEnv) mint(t *testing.T, txId string, requests ...core.MintRequest) *transaction.PollHandle {
	t.Helper()
	var handle *transaction.PollHandle
	err := e.manager.WithTransaction(context.Background(), core.MINT_BATCH_OPERATION_NAME, "{}", testWallet, txId, 7,
		func(ctx context.Context) error {
			var err error
			handle, err = e.service.Mint(ctx, 7, testWallet, txId, requests)
			return err
		})
	require.NoError(t, err)
	if handle != nil {
		handle.Wait()
	}
	return handle
}

func (e *testEnv) seed(t *testing.T, contentId, templateId, hash string) {
	t.Helper()
	_, err := e.store.InsertMints(context.Background(), []*core.MintRecord{
		core.NewMintRecord(e.clk, testContract, contentId, templateId, "", hash),
	})
	require.NoError(t, err)
	e.clk.Add(time.Second)
}

func fingerprint(t *testing.T, item *core.ContentItem) string {
	t.Helper()
	hash, err := utils.Fingerprint(item)
	require.NoError(t, err)
	return hash
}

func TestMintCreatesTemplate(t *testing.T) {
	env := newTestEnv(t, sword)

	handle := env.mint(t, "tx-1", core.MintRequest{ContentId: "sword", Amount: 2})
	require.NotNil(t, handle)
	assert.Equal(t, transaction.PollConfirmed, handle.Outcome())
	assert.Equal(t, []string{"CreateTokenTemplate", "GetTransactionStatus"}, env.chain.Calls())

	latest, err := env.store.LookupLatest(context.Background(), testContract, []string{"sword"})
	require.NoError(t, err)
	record := latest["sword"]
	require.NotNil(t, record)
	assert.Empty(t, record.TokenId)
	assert.Equal(t, fingerprint(t, sword), record.MetadataHash)

	metadata := env.chain.Metadata(record.TemplateId)
	require.Len(t, metadata, 1)
	assert.Equal(t, "Sword", metadata[0].Name)
	assert.Equal(t, []core.TokenAttribute{
		{Name: "damage", Type: core.TOKEN_ATTRIBUTE_TYPE_PROPERTY, Value: "12"},
		{Name: "rarity", Type: core.TOKEN_ATTRIBUTE_TYPE_PROPERTY, Value: "rare"},
	}, metadata[0].Attributes)

	tx, err := env.manager.GetTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, core.TransactionStateConfirmed, tx.State)
	assert.Equal(t, []string{"0x" + record.TemplateId}, tx.ChainTransactions)
}

func TestMintUnchangedMetadataOnlyMints(t *testing.T) {
	env := newTestEnv(t, sword)
	env.seed(t, "sword", "tpl-1", fingerprint(t, sword))

	env.mint(t, "tx-1", core.MintRequest{ContentId: "sword", Amount: 1})

	assert.Equal(t, 0, env.chain.CallCount("CreateTokenTemplate"))
	assert.Equal(t, 0, env.chain.CallCount("UpdateTokenTemplateMetadata"))
	assert.Equal(t, 1, env.chain.CallCount("MintTokens"))
}

func TestMintChangedMetadataUpdatesOnceBeforeMint(t *testing.T) {
	env := newTestEnv(t, sword)
	stale := *sword
	stale.CustomProperties = map[string]string{"damage": "10", "rarity": "rare"}
	env.seed(t, "sword", "tpl-1", fingerprint(t, &stale))

	env.mint(t, "tx-1", core.MintRequest{ContentId: "sword", Amount: 1})

	calls := env.chain.Calls()
	require.GreaterOrEqual(t, len(calls), 2)
	assert.Equal(t, []string{"UpdateTokenTemplateMetadata", "MintTokens"}, calls[:2])
	assert.Equal(t, 1, env.chain.CallCount("UpdateTokenTemplateMetadata"))
	assert.Equal(t, "12", env.chain.Metadata("tpl-1")[0].Attributes[0].Value)

	latest, err := env.store.LookupLatest(context.Background(), testContract, []string{"sword"})
	require.NoError(t, err)
	assert.Equal(t, fingerprint(t, sword), latest["sword"].MetadataHash)
	assert.NotEmpty(t, latest["sword"].TokenId)

	byToken, err := env.store.LookupByTokens(context.Background(), testContract, []string{latest["sword"].TokenId})
	require.NoError(t, err)
	assert.Equal(t, "sword", byToken[latest["sword"].TokenId])
}

func TestMintRepeatedContentReusesTemplate(t *testing.T) {
	env := newTestEnv(t, sword, gold)

	env.mint(t, "tx-1",
		core.MintRequest{ContentId: "gold", Amount: 100, Fungible: true},
		core.MintRequest{ContentId: "sword", Amount: 1},
		core.MintRequest{ContentId: "sword", Amount: 1},
	)

	assert.Equal(t, 2, env.chain.CallCount("CreateTokenTemplate"))
	assert.Equal(t, 1, env.chain.CallCount("MintTokens"))
	assert.Equal(t, 0, env.chain.CallCount("UpdateTokenTemplateMetadata"))
}

func TestMintUnknownContentFallsBackToId(t *testing.T) {
	env := newTestEnv(t)

	env.mint(t, "tx-1", core.MintRequest{ContentId: "mystery", Amount: 1})

	latest, err := env.store.LookupLatest(context.Background(), testContract, []string{"mystery"})
	require.NoError(t, err)
	record := latest["mystery"]
	require.NotNil(t, record)
	assert.Empty(t, record.MetadataHash)
	assert.Equal(t, "mystery", env.chain.Metadata(record.TemplateId)[0].Name)

	// no fingerprint, so the existing template is never updated
	env.mint(t, "tx-2", core.MintRequest{ContentId: "mystery", Amount: 1})
	assert.Equal(t, 0, env.chain.CallCount("UpdateTokenTemplateMetadata"))
	assert.Equal(t, 1, env.chain.CallCount("MintTokens"))
}

func TestMintFailureKeepsCreatedTemplates(t *testing.T) {
	env := newTestEnv(t, sword, gold)
	env.seed(t, "gold", "tpl-gold", fingerprint(t, gold))
	env.chain.Errs["MintTokens"] = assert.AnError

	err := env.manager.WithTransaction(context.Background(), core.MINT_BATCH_OPERATION_NAME, "{}", testWallet, "tx-1", 7,
		func(ctx context.Context) error {
			_, err := env.service.Mint(ctx, 7, testWallet, "tx-1", []core.MintRequest{
				{ContentId: "sword", Amount: 1},
				{ContentId: "gold", Amount: 5, Fungible: true},
			})
			return err
		})
	var txErr *core.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.ErrorIs(t, err, assert.AnError)

	latest, err := env.store.LookupLatest(context.Background(), testContract, []string{"sword"})
	require.NoError(t, err)
	assert.NotNil(t, latest["sword"])

	_, err = env.manager.GetTransaction(context.Background(), "tx-1")
	assert.ErrorIs(t, err, core.ErrTransactionNotFound)
}

func TestMintFailureLogsUnrecordedTemplates(t *testing.T) {
	env := newTestEnv(t, sword, gold)
	env.seed(t, "gold", "tpl-gold", fingerprint(t, gold))
	env.chain.Errs["MintTokens"] = errors.New("mint rejected")

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.ErrorLevel)
	resolver := staticResolver{&core.Contract{Id: "c-1", Name: testContract, Confirmed: true}}
	mints := failingInserts{Store: env.store, err: errors.New("database is locked")}
	service := NewService(resolver, mints, env.chain, content.NewStatic(sword, gold), env.manager, env.clk, &logger)

	_, err := service.Mint(context.Background(), 7, testWallet, "tx-1", []core.MintRequest{
		{ContentId: "sword", Amount: 1},
		{ContentId: "gold", Amount: 5, Fungible: true},
	})
	require.EqualError(t, errors.Cause(err), "mint rejected")
	assert.Equal(t, 1, env.chain.CallCount("CreateTokenTemplate"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "database is locked", entry["error"])
	assert.Equal(t, err.Error(), entry["cause"])
	assert.Equal(t, "tx-1", entry["transaction"])
	assert.Equal(t, float64(1), entry["records"])
}

func TestTokenMetadata(t *testing.T) {
	tests := []struct {
		name string
		item *core.ContentItem
		want *core.TokenMetadata
	}{
		{"nil item", nil, &core.TokenMetadata{Name: "c-1"}},
		{"empty name", &core.ContentItem{Id: "c-1", Image: "img"}, &core.TokenMetadata{Name: "c-1", ImageUrl: "img"}},
		{
			"full",
			&core.ContentItem{Id: "c-1", Name: "Helm", Description: "d", Url: "u", CustomProperties: map[string]string{"b": "2", "a": "1"}},
			&core.TokenMetadata{Name: "Helm", Description: "d", ExternalUrl: "u", Attributes: []core.TokenAttribute{
				{Name: "a", Type: core.TOKEN_ATTRIBUTE_TYPE_PROPERTY, Value: "1"},
				{Name: "b", Type: core.TOKEN_ATTRIBUTE_TYPE_PROPERTY, Value: "2"},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenMetadata("c-1", tt.item))
		})
	}
}
