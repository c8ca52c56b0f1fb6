// Package handlers exposes the operator HTTP surface: health, public
// provably-fair verification, JWT-gated admin stats, and the live feed.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sushantdhakal00/discord-bot/internal/feed"
	"github.com/sushantdhakal00/discord-bot/internal/games"
	"github.com/sushantdhakal00/discord-bot/internal/models"
	"github.com/sushantdhakal00/discord-bot/internal/provable"
	"github.com/sushantdhakal00/discord-bot/internal/store"
)

type API struct {
	store   *store.Store
	hub     *feed.Hub
	houseID int64
}

func NewAPI(s *store.Store, hub *feed.Hub, houseID int64) *API {
	return &API{store: s, hub: hub, houseID: houseID}
}

// Register mounts all routes. The admin group is gated by authMW.
func (a *API) Register(r *gin.Engine, authMW gin.HandlerFunc) {
	r.GET("/healthz", a.health)
	r.GET("/pf/verify", a.verify)
	r.GET("/ws", a.hub.Handle)

	admin := r.Group("/admin", authMW)
	admin.GET("/stats", a.stats)
}

func (a *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// verify recomputes a disclosed round from seeds alone. It reads nothing but
// its query parameters, so anyone can audit any past result.
func (a *API) verify(c *gin.Context) {
	serverSeed := c.Query("server_seed")
	clientSeed := c.Query("client_seed")
	if serverSeed == "" || clientSeed == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "server_seed and client_seed are required"})
		return
	}
	nonce, err := strconv.ParseInt(c.DefaultQuery("nonce", "0"), 10, 64)
	if err != nil || nonce < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nonce must be a non-negative integer"})
		return
	}

	outcome := provable.Outcome(serverSeed, clientSeed, nonce)
	resp := gin.H{
		"server_hash": provable.HashSeed(serverSeed),
		"nonce":       nonce,
		"outcome":     outcome,
		"float":       provable.OutcomeFloat(serverSeed, clientSeed, nonce),
	}
	if c.Query("game") == string(games.FamilyKeno) {
		resp["keno_draw"] = games.KenoDraw(serverSeed, clientSeed, nonce)
	}
	c.JSON(http.StatusOK, resp)
}

// stats is the operator dashboard snapshot: treasury, credit exposure, and
// open escrow pools.
func (a *API) stats(c *gin.Context) {
	house, err := a.store.GetOrCreateAccount(a.houseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	outstanding, err := a.store.TotalOutstandingPrincipal()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	openPools := gin.H{}
	for _, kind := range []models.PoolKind{
		models.PoolKindLottery, models.PoolKindAirdrop, models.PoolKindBattle,
	} {
		pools, err := a.store.OpenPools(kind)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		openPools[string(kind)] = len(pools)
	}

	c.JSON(http.StatusOK, gin.H{
		"house_balance":         house.Balance,
		"outstanding_principal": outstanding,
		"open_pools":            openPools,
	})
}
