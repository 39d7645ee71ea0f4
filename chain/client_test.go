package chain

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/DomeLiquid/federation/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func writeResult(w http.ResponseWriter, status int, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": status < 400,
		"result":  result,
	})
}

func TestListContracts(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/minter/contracts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Errorf("missing request id")
		}
		writeResult(w, http.StatusOK, []core.Contract{
			{Id: "c-1", Name: "Game Contract Polygon", Chain: core.ChainMatic, Confirmed: true},
		})
	})

	contracts, err := NewClient(server.URL).ListContracts(context.Background())
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, "c-1", contracts[0].Id)
	assert.True(t, contracts[0].Confirmed)
}

func TestCreateTokenTemplate(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/minter/contracts/c-1/token-types" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body core.CreateTokenTemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Name != "Sword" || !body.Fungible || len(body.Destinations) != 1 || body.Destinations[0].Amount != 5 {
			t.Errorf("unexpected body %+v", body)
		}
		writeResult(w, http.StatusOK, core.TokenTemplate{Id: "t-1", TransactionHash: "0xabc"})
	})

	template, err := NewClient(server.URL).CreateTokenTemplate(context.Background(), "c-1", &core.CreateTokenTemplateRequest{
		TokenMetadata: core.TokenMetadata{Name: "Sword"},
		Fungible:      true,
		Destinations:  []core.TokenDestination{{Address: "0xwallet", Amount: 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, "t-1", template.Id)
	assert.Equal(t, "0xabc", template.TransactionHash)
}

func TestMintTokens(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/minter/contracts/c-1/token-types/t-1/tokens" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeResult(w, http.StatusOK, []core.MintedToken{{TokenId: "7", TxHash: "0xdef"}})
	})

	minted, err := NewClient(server.URL).MintTokens(context.Background(), "c-1", "t-1",
		[]core.TokenDestination{{Address: "0xwallet", Amount: 1}})
	require.NoError(t, err)
	assert.Equal(t, []core.MintedToken{{TokenId: "7", TxHash: "0xdef"}}, minted)
}

func TestGetTransactionStatus(t *testing.T) {
	tests := []struct {
		name   string
		result any
		want   core.TransactionStatus
	}{
		{"succeeded", map[string]string{"status": "SUCCEEDED"}, core.TransactionStatusSucceeded},
		{"failed", map[string]string{"status": "FAILED"}, core.TransactionStatusFailed},
		{"pending", map[string]string{"status": "PENDING"}, core.TransactionStatusPending},
		{"empty", map[string]string{}, core.TransactionStatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/transactions/ETHEREUM/0xabc/status" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				writeResult(w, http.StatusOK, tt.result)
			})
			status, err := NewClient(server.URL, WithChain(core.ChainEthereum)).
				GetTransactionStatus(context.Background(), "0xabc")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestApiError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"success":false,"errors":[{"code":"contract.invalid","message":"bad name"}]}`)
	})

	_, err := NewClient(server.URL).CreateContract(context.Background(), &core.CreateContractRequest{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "bad name")
}

func TestGetWalletNotFound(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false}`)
	})

	_, err := NewClient(server.URL).GetWallet(context.Background(), "0xmissing")
	assert.ErrorIs(t, err, core.ErrWalletNotFound)
}

func TestGetWalletTokenBalances(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/wallets/MATIC/0xwallet/tokens" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"result":[{"id":"1","name":"Gold","fungible":true,"balance":"12.5"}]}`)
	})

	tokens, err := NewClient(server.URL).GetWalletTokenBalances(context.Background(), "0xwallet")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.True(t, decimal.RequireFromString("12.5").Equal(tokens[0].Balance))
}

func TestAccessTokenIsCached(t *testing.T) {
	var tokenCalls atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth":
			tokenCalls.Add(1)
			if err := r.ParseForm(); err != nil || r.PostForm.Get("client_id") != "id" {
				t.Errorf("unexpected token request")
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"access_token":"secret-token","expires_in":3600}`)
		default:
			if r.Header.Get("Authorization") != "Bearer secret-token" {
				t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
			}
			writeResult(w, http.StatusOK, []core.Wallet{{Id: "w-1", Address: "0xwallet", Identifier: "42"}})
		}
	})

	client := NewClient(server.URL, WithCredentials(server.URL+"/auth", "id", "secret"))
	for i := 0; i < 3; i++ {
		wallets, err := client.GetWalletsByIdentifier(context.Background(), "42")
		require.NoError(t, err)
		require.Len(t, wallets, 1)
	}
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestRequestMetrics(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, http.StatusOK, []core.Contract{})
	})
	reg := prometheus.NewRegistry()
	client := NewClient(server.URL, WithRegisterer(reg))

	_, err := client.ListContracts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(client.metrics.requestDuration))
}

func TestTransfer(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/wallets/MATIC/transactions/transfer" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body core.TransferRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.FromAddress != "0xfrom" || body.ToAddress != "0xto" || body.TokenId != "7" || body.Pincode != "123456" {
			t.Errorf("unexpected body %+v", body)
		}
		writeResult(w, http.StatusOK, map[string]string{"transactionHash": "0xtransfer"})
	})

	hash, err := NewClient(server.URL).Transfer(context.Background(), &core.TransferRequest{
		Pincode:      "123456",
		FromAddress:  "0xfrom",
		ToAddress:    "0xto",
		TokenAddress: "0xcontract",
		TokenId:      "7",
		Amount:       1,
	})
	require.NoError(t, err)
	assert.Equal(t, "0xtransfer", hash)
}

func TestTransferWithoutHash(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, http.StatusOK, map[string]string{})
	})

	_, err := NewClient(server.URL).Transfer(context.Background(), &core.TransferRequest{TokenId: "7"})
	assert.Error(t, err)
}
