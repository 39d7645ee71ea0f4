package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/DomeLiquid/federation/core"
	"github.com/DomeLiquid/federation/transaction"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestTimeout = 60 * time.Second

type (
	Federation interface {
		MintBatch(ctx context.Context, playerId int64, wallet, transactionId string, requests []core.MintRequest) (*transaction.PollHandle, error)
		StartInventoryTransaction(ctx context.Context, wallet, transactionId string, currencies map[string]int64, newItems []string) (*core.InventoryState, error)
		InventoryState(ctx context.Context, wallet string) (*core.InventoryState, error)
		GetOrCreateWallet(ctx context.Context, playerId int64) (*core.Wallet, error)
		TransferItemToPlayer(ctx context.Context, sourcePlayerId, destinationPlayerId int64, tokenId, transactionId string) (*transaction.PollHandle, error)
		TransferItemExternal(ctx context.Context, sourcePlayerId int64, destinationWallet, tokenId, transactionId string) (*transaction.PollHandle, error)
	}

	Handler struct {
		svc Federation
		log core.Log
	}

	mintRequest struct {
		PlayerId      int64              `json:"playerId"`
		Wallet        string             `json:"wallet"`
		TransactionId string             `json:"transactionId"`
		Requests      []core.MintRequest `json:"requests"`
	}

	newItem struct {
		ContentId string `json:"contentId"`
	}

	inventoryTransactionRequest struct {
		Currencies map[string]int64 `json:"currencies"`
		NewItems   []newItem        `json:"newItems"`
	}

	// transferRequest names either a destination player or an outside wallet.
	transferRequest struct {
		TransactionId       string `json:"transactionId"`
		TokenId             string `json:"tokenId"`
		DestinationPlayerId int64  `json:"destinationPlayerId"`
		DestinationWallet   string `json:"destinationWallet"`
	}

	errorResponse struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

// New builds the router. gatherer backs /metrics.
func New(svc Federation, gatherer prometheus.Gatherer, log core.Log) *gin.Engine {
	h := &Handler{svc: svc, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.POST("/players/:playerId/wallet", h.getOrCreateWallet)
	r.POST("/players/:playerId/transfers", h.transfer)
	r.GET("/inventory/:wallet", h.inventoryState)
	r.PUT("/inventory/:wallet/transactions/:transactionId", h.startInventoryTransaction)
	r.POST("/mint", h.mint)
	return r
}

func (h *Handler) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.log.Debug().
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Int("status", c.Writer.Status()).
		Dur("elapsed", time.Since(start)).
		Msg("request")
}

func (h *Handler) getOrCreateWallet(c *gin.Context) {
	playerId, err := strconv.ParseInt(c.Param("playerId"), 10, 64)
	if err != nil {
		h.fail(c, errors.Wrapf(core.ErrInvalidRequest, "player id %q", c.Param("playerId")))
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	wallet, err := h.svc.GetOrCreateWallet(ctx, playerId)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

func (h *Handler) inventoryState(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	state, err := h.svc.InventoryState(ctx, c.Param("wallet"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) startInventoryTransaction(c *gin.Context) {
	var body inventoryTransactionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, errors.Wrap(core.ErrInvalidRequest, err.Error()))
		return
	}
	newItems := make([]string, 0, len(body.NewItems))
	for _, item := range body.NewItems {
		newItems = append(newItems, item.ContentId)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	state, err := h.svc.StartInventoryTransaction(ctx, c.Param("wallet"), c.Param("transactionId"), body.Currencies, newItems)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) mint(c *gin.Context) {
	var body mintRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, errors.Wrap(core.ErrInvalidRequest, err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if _, err := h.svc.MintBatch(ctx, body.PlayerId, body.Wallet, body.TransactionId, body.Requests); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"transactionId": body.TransactionId})
}

func (h *Handler) transfer(c *gin.Context) {
	playerId, err := strconv.ParseInt(c.Param("playerId"), 10, 64)
	if err != nil {
		h.fail(c, errors.Wrapf(core.ErrInvalidRequest, "player id %q", c.Param("playerId")))
		return
	}
	var body transferRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, errors.Wrap(core.ErrInvalidRequest, err.Error()))
		return
	}
	if (body.DestinationPlayerId > 0) == (body.DestinationWallet != "") {
		h.fail(c, errors.Wrap(core.ErrInvalidRequest, "exactly one of destinationPlayerId and destinationWallet is required"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if body.DestinationPlayerId > 0 {
		_, err = h.svc.TransferItemToPlayer(ctx, playerId, body.DestinationPlayerId, body.TokenId, body.TransactionId)
	} else {
		_, err = h.svc.TransferItemExternal(ctx, playerId, body.DestinationWallet, body.TokenId, body.TransactionId)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"transactionId": body.TransactionId})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, errorResponse{Code: code, Message: err.Error()})
}

func classify(err error) (int, string) {
	var txErr *core.TransactionError
	switch {
	case errors.Is(err, core.ErrTransactionInProgress):
		return http.StatusConflict, "DuplicateTransaction"
	case errors.Is(err, core.ErrInvalidRequest):
		return http.StatusBadRequest, "InvalidRequest"
	case errors.Is(err, core.ErrInvalidChain):
		return http.StatusBadRequest, "ConfigurationError"
	case errors.Is(err, core.ErrWalletNotFound):
		return http.StatusNotFound, "WalletNotFound"
	case errors.As(err, &txErr):
		return http.StatusBadRequest, "TransactionError"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}
