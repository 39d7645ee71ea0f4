package chain

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/DomeLiquid/federation/core"
	"github.com/facebookgo/clock"
	"github.com/go-resty/resty/v2"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultTimeout = 30 * time.Second
	// tokens are refreshed this long before they expire
	tokenExpiryMargin = 30 * time.Second
)

type (
	Client struct {
		http  *resty.Client
		chain core.Chain
		clk   clock.Clock
		log   core.Log

		authUrl      string
		clientId     string
		clientSecret string

		tokenMu     sync.Mutex
		token       string
		tokenExpiry time.Time

		metrics *metrics
	}

	ClientOption func(*Client)

	envelope[T any] struct {
		Success bool       `json:"success"`
		Result  T          `json:"result"`
		Errors  []apiError `json:"errors"`
	}

	apiError struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	accessToken struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}

	statusResult struct {
		Status core.TransactionStatus `json:"status"`
	}

	transferResult struct {
		TransactionHash string `json:"transactionHash"`
	}

	mintTokensBody struct {
		Destinations []core.TokenDestination `json:"destinations"`
	}
)

func WithChain(chain core.Chain) ClientOption {
	return func(c *Client) { c.chain = chain }
}

// WithCredentials enables the client credentials flow against authUrl.
func WithCredentials(authUrl, clientId, clientSecret string) ClientOption {
	return func(c *Client) {
		c.authUrl = authUrl
		c.clientId = clientId
		c.clientSecret = clientSecret
	}
}

func WithClock(clk clock.Clock) ClientOption {
	return func(c *Client) { c.clk = clk }
}

func WithLog(log core.Log) ClientOption {
	return func(c *Client) { c.log = log }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.http.SetTimeout(timeout) }
}

// WithRegisterer exports request latency on reg.
func WithRegisterer(reg prometheus.Registerer) ClientOption {
	return func(c *Client) { c.metrics = newMetrics(reg) }
}

func NewClient(baseUrl string, opts ...ClientOption) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseUrl, "/")).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
		chain: core.DEFAULT_CHAIN,
		clk:   clock.New(),
		log:   core.NopLog(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newMetrics(nil)
	}
	return c
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", uuid.Must(uuid.NewV4()).String())
	if c.authUrl != "" {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.SetAuthToken(token)
	}
	return req, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && c.clk.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	var out accessToken
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     c.clientId,
			"client_secret": c.clientSecret,
		}).
		SetResult(&out).
		Post(c.authUrl)
	if err != nil {
		return "", errors.Wrap(err, "chain: fetch access token")
	}
	if resp.IsError() || out.AccessToken == "" {
		return "", errors.Errorf("chain: fetch access token: status %d", resp.StatusCode())
	}

	c.token = out.AccessToken
	c.tokenExpiry = c.clk.Now().Add(time.Duration(out.ExpiresIn)*time.Second - tokenExpiryMargin)
	return c.token, nil
}

// do runs one API call and unwraps the result envelope into result.
func do[T any](ctx context.Context, c *Client, operation, method, path string, configure func(*resty.Request), result *T) (int, error) {
	req, err := c.request(ctx)
	if err != nil {
		return 0, err
	}
	var out envelope[T]
	req.SetResult(&out).SetError(&out)
	if configure != nil {
		configure(req)
	}

	start := c.clk.Now()
	resp, err := req.Execute(method, path)
	c.metrics.observe(operation, c.clk.Now().Sub(start), resp, err)
	if err != nil {
		return 0, errors.Wrapf(err, "chain: %s", operation)
	}

	c.log.Debug().
		Str("operation", operation).
		Int("status", resp.StatusCode()).
		Msg("chain call")

	if resp.IsError() || !out.Success {
		return resp.StatusCode(), errors.Errorf("chain: %s: status %d: %s", operation, resp.StatusCode(), errorMessage(out.Errors))
	}
	if result != nil {
		*result = out.Result
	}
	return resp.StatusCode(), nil
}

func errorMessage(errs []apiError) string {
	if len(errs) == 0 {
		return "unknown error"
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Code+" "+e.Message)
	}
	return strings.Join(msgs, "; ")
}

func (c *Client) CreateContract(ctx context.Context, in *core.CreateContractRequest) (*core.Contract, error) {
	var contract core.Contract
	_, err := do(ctx, c, "create_contract", http.MethodPost, "/api/minter/contracts",
		func(r *resty.Request) { r.SetBody(in) }, &contract)
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (c *Client) ListContracts(ctx context.Context) ([]*core.Contract, error) {
	var contracts []*core.Contract
	_, err := do(ctx, c, "list_contracts", http.MethodGet, "/api/minter/contracts", nil, &contracts)
	return contracts, err
}

func (c *Client) CreateTokenTemplate(ctx context.Context, contractId string, in *core.CreateTokenTemplateRequest) (*core.TokenTemplate, error) {
	var template core.TokenTemplate
	_, err := do(ctx, c, "create_token_template", http.MethodPost, "/api/minter/contracts/{contractId}/token-types",
		func(r *resty.Request) {
			r.SetPathParam("contractId", contractId).SetBody(in)
		}, &template)
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (c *Client) UpdateTokenTemplateMetadata(ctx context.Context, contractId, templateId string, metadata *core.TokenMetadata) error {
	_, err := do[struct{}](ctx, c, "update_token_template_metadata", http.MethodPut,
		"/api/minter/contracts/{contractId}/token-types/{templateId}/metadata",
		func(r *resty.Request) {
			r.SetPathParams(map[string]string{
				"contractId": contractId,
				"templateId": templateId,
			}).SetBody(metadata)
		}, nil)
	return err
}

func (c *Client) MintTokens(ctx context.Context, contractId, templateId string, destinations []core.TokenDestination) ([]core.MintedToken, error) {
	var minted []core.MintedToken
	_, err := do(ctx, c, "mint_tokens", http.MethodPost,
		"/api/minter/contracts/{contractId}/token-types/{templateId}/tokens",
		func(r *resty.Request) {
			r.SetPathParams(map[string]string{
				"contractId": contractId,
				"templateId": templateId,
			}).SetBody(mintTokensBody{Destinations: destinations})
		}, &minted)
	return minted, err
}

func (c *Client) GetTransactionStatus(ctx context.Context, hash string) (core.TransactionStatus, error) {
	var status statusResult
	_, err := do(ctx, c, "get_transaction_status", http.MethodGet, "/api/transactions/{chain}/{hash}/status",
		func(r *resty.Request) {
			r.SetPathParams(map[string]string{
				"chain": string(c.chain),
				"hash":  hash,
			})
		}, &status)
	if err != nil {
		return core.TransactionStatusUnknown, err
	}
	if status.Status == "" {
		return core.TransactionStatusUnknown, nil
	}
	return status.Status, nil
}

func (c *Client) GetWalletTokenBalances(ctx context.Context, walletAddress string) ([]*core.WalletToken, error) {
	var tokens []*core.WalletToken
	_, err := do(ctx, c, "get_wallet_tokens", http.MethodGet, "/api/wallets/{chain}/{address}/tokens",
		func(r *resty.Request) {
			r.SetPathParams(map[string]string{
				"chain":   string(c.chain),
				"address": walletAddress,
			})
		}, &tokens)
	return tokens, err
}

func (c *Client) Transfer(ctx context.Context, in *core.TransferRequest) (string, error) {
	var result transferResult
	_, err := do(ctx, c, "transfer", http.MethodPost, "/api/wallets/{chain}/transactions/transfer",
		func(r *resty.Request) {
			r.SetPathParam("chain", string(c.chain)).SetBody(in)
		}, &result)
	if err != nil {
		return "", err
	}
	if result.TransactionHash == "" {
		return "", errors.Errorf("chain: transfer of token %s returned no transaction hash", in.TokenId)
	}
	return result.TransactionHash, nil
}

func (c *Client) GetWallet(ctx context.Context, walletAddress string) (*core.Wallet, error) {
	var wallet core.Wallet
	status, err := do(ctx, c, "get_wallet", http.MethodGet, "/api/wallets/{chain}/{address}",
		func(r *resty.Request) {
			r.SetPathParams(map[string]string{
				"chain":   string(c.chain),
				"address": walletAddress,
			})
		}, &wallet)
	if status == http.StatusNotFound {
		return nil, errors.Wrapf(core.ErrWalletNotFound, "wallet %s", walletAddress)
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (c *Client) GetWalletsByIdentifier(ctx context.Context, identifier string) ([]*core.Wallet, error) {
	var wallets []*core.Wallet
	_, err := do(ctx, c, "get_wallets_by_identifier", http.MethodGet, "/api/wallets",
		func(r *resty.Request) { r.SetQueryParam("identifier", identifier) }, &wallets)
	return wallets, err
}

func (c *Client) CreateWallet(ctx context.Context, in *core.CreateWalletRequest) (*core.Wallet, error) {
	var wallet core.Wallet
	_, err := do(ctx, c, "create_wallet", http.MethodPost, "/api/wallets",
		func(r *resty.Request) { r.SetBody(in) }, &wallet)
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}
