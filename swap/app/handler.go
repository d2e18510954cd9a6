package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/egaotan/solana-stateless-swap/metrics"
	"github.com/egaotan/solana-stateless-swap/offer"
	"github.com/egaotan/solana-stateless-swap/spltoken"
	"github.com/egaotan/solana-stateless-swap/statelisten"
	"github.com/egaotan/solana-stateless-swap/store"
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const defaultHistoryLimit = 50

type OfferService interface {
	Inspect(ctx context.Context, p offer.Params, taker solana.PublicKey) (*offer.Status, error)
	ChangeOffer(ctx context.Context, wallet solana.PublicKey, mintA solana.PublicKey, mintB solana.PublicKey, sizeA uint64, sizeB uint64, approve bool) (*offer.Receipt, error)
	Trade(ctx context.Context, taker solana.PublicKey, p offer.Params) (*offer.Receipt, error)
	Consolidate(ctx context.Context, wallet solana.PublicKey, mint solana.PublicKey) (*offer.Receipt, error)
}

type Watcher interface {
	Watch(p offer.Params, taker solana.PublicKey) (string, error)
	Update(id string, p offer.Params, taker solana.PublicKey) error
	Status(id string) (*statelisten.Snapshot, error)
	Unwatch(id string) error
}

type Historian interface {
	History(wallet solana.PublicKey, limit int) (*store.History, error)
}

type Decimals interface {
	Decimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

type Balances interface {
	Balance(ctx context.Context, wallet solana.PublicKey, mint solana.PublicKey) (uint64, error)
}

// Handler serves the swap api. History is optional.
type Handler struct {
	log      zerolog.Logger
	service  OfferService
	watcher  Watcher
	history  Historian
	decimals Decimals
	balances Balances
	linkBase string
}

func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	g := router.Group("/api")
	g.GET("/offer", h.getOffer)
	g.POST("/offer/open", h.openOffer)
	g.POST("/offer/close", h.closeOffer)
	g.POST("/trade", h.trade)
	g.POST("/consolidate", h.consolidate)
	g.GET("/balance", h.getBalance)
	g.POST("/watch", h.watch)
	g.GET("/watch/:id", h.getWatch)
	g.PUT("/watch/:id", h.updateWatch)
	g.DELETE("/watch/:id", h.unwatch)
	g.GET("/history", h.getHistory)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	return router
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, offer.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, offer.ErrWalletNotConnected):
		return http.StatusForbidden
	case errors.Is(err, statelisten.ErrWatchMissing):
		return http.StatusNotFound
	case errors.Is(err, offer.ErrMissingTokenAccount),
		errors.Is(err, offer.ErrNoValidDelegate),
		errors.Is(err, offer.ErrInsufficientBalance),
		errors.Is(err, offer.ErrInvalidCreators):
		return http.StatusUnprocessableEntity
	case errors.Is(err, offer.ErrSubmitFailed), errors.Is(err, offer.ErrMetadataUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (h *Handler) link(p offer.Params) string {
	if h.linkBase == "" {
		return ""
	}
	link, err := p.Link(h.linkBase)
	if err != nil {
		h.log.Warn().Err(err).Msg("build link")
		return ""
	}
	return link
}

func (h *Handler) offerStatus(ctx context.Context, status *offer.Status) (*OfferStatus, error) {
	decimalsA, err := h.decimals.Decimals(ctx, status.Params.MintA)
	if err != nil {
		return nil, err
	}
	decimalsB, err := h.decimals.Decimals(ctx, status.Params.MintB)
	if err != nil {
		return nil, err
	}
	newStatus := buildOfferStatus(status, decimalsA, decimalsB)
	newStatus.Link = h.link(status.Params)
	return newStatus, nil
}

func optionalKey(name string, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, nil
	}
	return parseKey(name, value)
}

func (h *Handler) getOffer(c *gin.Context) {
	p, err := offer.ParseQuery(c.Request.URL.Query())
	if err != nil {
		h.fail(c, err)
		return
	}
	taker, err := optionalKey("taker", c.Query("taker"))
	if err != nil {
		h.fail(c, err)
		return
	}
	status, err := h.service.Inspect(c.Request.Context(), p, taker)
	if err != nil {
		h.fail(c, err)
		return
	}
	newStatus, err := h.offerStatus(c.Request.Context(), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newStatus)
}

func (h *Handler) changeOffer(c *gin.Context, approve bool) {
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := req.Params()
	if err != nil {
		h.fail(c, err)
		return
	}
	receipt, err := h.service.ChangeOffer(c.Request.Context(), p.Maker, p.MintA, p.MintB, p.SizeA, p.SizeB, approve)
	if err != nil {
		h.fail(c, err)
		return
	}
	newReceipt := buildReceipt(receipt)
	if approve {
		newReceipt.Link = h.link(p)
	}
	c.JSON(http.StatusOK, newReceipt)
}

func (h *Handler) openOffer(c *gin.Context) {
	h.changeOffer(c, true)
}

func (h *Handler) closeOffer(c *gin.Context) {
	h.changeOffer(c, false)
}

func (h *Handler) trade(c *gin.Context) {
	var req TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := req.Params()
	if err != nil {
		h.fail(c, err)
		return
	}
	taker, err := parseKey("taker", req.Taker)
	if err != nil {
		h.fail(c, err)
		return
	}
	receipt, err := h.service.Trade(c.Request.Context(), taker, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, buildReceipt(receipt))
}

func (h *Handler) consolidate(c *gin.Context) {
	var req ConsolidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wallet, err := parseKey("wallet", req.Wallet)
	if err != nil {
		h.fail(c, err)
		return
	}
	mint, err := parseKey("mint", req.Mint)
	if err != nil {
		h.fail(c, err)
		return
	}
	receipt, err := h.service.Consolidate(c.Request.Context(), wallet, mint)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, buildReceipt(receipt))
}

func (h *Handler) getBalance(c *gin.Context) {
	wallet, err := parseKey("wallet", c.Query("wallet"))
	if err != nil {
		h.fail(c, err)
		return
	}
	mint, err := parseKey("mint", c.Query("mint"))
	if err != nil {
		h.fail(c, err)
		return
	}
	amount, err := h.balances.Balance(c.Request.Context(), wallet, mint)
	if errors.Is(err, spltoken.ErrAccountMissing) {
		amount, err = 0, nil
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	decimals, err := h.decimals.Decimals(c.Request.Context(), mint)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, buildAmount(amount, decimals))
}

func (h *Handler) watchParams(c *gin.Context) (offer.Params, solana.PublicKey, bool) {
	var req WatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return offer.Params{}, solana.PublicKey{}, false
	}
	p, err := req.Params()
	if err != nil {
		h.fail(c, err)
		return offer.Params{}, solana.PublicKey{}, false
	}
	taker, err := optionalKey("taker", req.Taker)
	if err != nil {
		h.fail(c, err)
		return offer.Params{}, solana.PublicKey{}, false
	}
	return p, taker, true
}

func (h *Handler) watch(c *gin.Context) {
	p, taker, ok := h.watchParams(c)
	if !ok {
		return
	}
	id, err := h.watcher.Watch(p, taker)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, &Watch{Id: id, Generation: 1})
}

func (h *Handler) updateWatch(c *gin.Context) {
	p, taker, ok := h.watchParams(c)
	if !ok {
		return
	}
	if err := h.watcher.Update(c.Param("id"), p, taker); err != nil {
		h.fail(c, err)
		return
	}
	h.getWatch(c)
}

func (h *Handler) getWatch(c *gin.Context) {
	snapshot, err := h.watcher.Status(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	watch := &Watch{
		Id:         snapshot.Id,
		Generation: snapshot.Generation,
		Error:      snapshot.Error,
		Updated:    formatTime(snapshot.Updated),
	}
	if snapshot.Status != nil {
		watch.Status, err = h.offerStatus(c.Request.Context(), snapshot.Status)
		if err != nil {
			h.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, watch)
}

func (h *Handler) unwatch(c *gin.Context) {
	if err := h.watcher.Unwatch(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "history is not configured"})
		return
	}
	wallet, err := parseKey("wallet", c.Query("wallet"))
	if err != nil {
		h.fail(c, err)
		return
	}
	limit := defaultHistoryLimit
	if value, ok := c.GetQuery("limit"); ok {
		limit, err = strconv.Atoi(value)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit is invalid"})
			return
		}
	}
	history, err := h.history.History(wallet, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, buildHistory(history))
}
