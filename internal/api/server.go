// Package api provides the REST and websocket query surface.
package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bil-network/bil-node/internal/chain"
	"github.com/bil-network/bil-node/internal/config"
	"github.com/bil-network/bil-node/internal/ledger"
	"github.com/bil-network/bil-node/internal/util"
)

// Server is the API server. Every endpoint is a read-only query against the
// ledger; mutating operations go through the ledger's principal-authenticated
// Go API, not HTTP.
type Server struct {
	cfg    *config.Config
	ledger *ledger.Ledger
	router *gin.Engine
	server *http.Server
	hub    *Hub

	// Cache
	statsCacheMu   sync.RWMutex
	statsCache     *StatsResponse
	statsCacheTime time.Time
}

// StatsResponse is the /api/stats response
type StatsResponse struct {
	Height           uint64 `json:"height"`
	BlockCount       uint64 `json:"block_count"`
	Difficulty       uint32 `json:"difficulty"`
	CurrentRewards   uint64 `json:"current_rewards"`
	NextHalving      uint64 `json:"next_halving"`
	AverageBlockTime uint64 `json:"average_block_time"`
	TransactionCount uint64 `json:"transaction_count"`
	MempoolSize      int    `json:"mempool_size"`
	MinerCount       int    `json:"miner_count"`
	ExeBurned        uint64 `json:"exe_burned"`
	Now              int64  `json:"now"`
}

// BalanceResponse is the /api/balance/:principal response
type BalanceResponse struct {
	Principal chain.Principal `json:"principal"`
	Balance   uint64          `json:"balance"`
	Pending   uint64          `json:"pending"`
}

// MinersResponse is the /api/miners/:owner response
type MinersResponse struct {
	Owner  chain.Principal   `json:"owner"`
	Miners []chain.Principal `json:"miners"`
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, l *ledger.Ledger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		ledger: l,
		router: router,
		hub:    NewHub(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures API endpoints
func (s *Server) setupRoutes() {
	// CORS middleware
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := s.router.Group("/api")
	{
		api.GET("/stats", s.handleStats)
		api.GET("/block/latest", s.handleLatestBlock)
		api.GET("/block/current", s.handleCurrentBlock)
		api.GET("/blocks", s.handleBlocks)
		api.GET("/difficulty", s.handleDifficulty)
		api.GET("/rewards", s.handleRewards)
		api.GET("/halving", s.handleHalving)
		api.GET("/mempool", s.handleMempool)
		api.GET("/balance/:principal", s.handleBalance)
		api.GET("/state", s.handleState)
		api.GET("/miners/:owner", s.handleMiners)
		api.GET("/leaderboard", s.handleLeaderboard)
		api.GET("/solutions", s.handleSolutions)
		api.GET("/solutions/:index", s.handleSolution)
	}

	if s.cfg.API.WebSocketEnabled {
		s.router.GET("/api/ws", s.handleWebSocket)
	}

	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}

// Start begins the API server
func (s *Server) Start() error {
	s.hub.Start()

	s.server = &http.Server{
		Addr:    s.cfg.API.Bind,
		Handler: s.router,
	}

	util.Infof("API server listening on %s", s.cfg.API.Bind)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Errorf("API server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts down the API server
func (s *Server) Stop() error {
	s.hub.Stop()
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// PublishEvent forwards a ledger event to websocket subscribers
func (s *Server) PublishEvent(event ledger.Event) {
	s.hub.Broadcast(event)
}

// handleStats returns chain-wide statistics
func (s *Server) handleStats(c *gin.Context) {
	// Check cache
	s.statsCacheMu.RLock()
	if s.statsCache != nil && time.Since(s.statsCacheTime) < s.cfg.API.StatsCache {
		cache := s.statsCache
		s.statsCacheMu.RUnlock()
		c.JSON(200, cache)
		return
	}
	s.statsCacheMu.RUnlock()

	state := s.ledger.GetState()

	count, err := s.ledger.BlockCount()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	rewards, err := s.ledger.GetCurrentRewards()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	halving, err := s.ledger.GetNextHalving()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	stats := &StatsResponse{
		Height:           state.BlockHeight,
		BlockCount:       count,
		Difficulty:       state.CurrentDifficulty,
		CurrentRewards:   rewards,
		NextHalving:      halving,
		AverageBlockTime: state.AverageBlockTime,
		TransactionCount: state.TransactionCount,
		MempoolSize:      len(state.Mempool),
		MinerCount:       len(state.MinerToOwner),
		ExeBurned:        state.ExeBurned,
		Now:              time.Now().Unix(),
	}

	s.statsCacheMu.Lock()
	s.statsCache = stats
	s.statsCacheTime = time.Now()
	s.statsCacheMu.Unlock()

	c.JSON(200, stats)
}

// handleLatestBlock returns the most recently committed block
func (s *Server) handleLatestBlock(c *gin.Context) {
	block, err := s.ledger.GetLatestBlock()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	if block == nil {
		c.JSON(404, gin.H{"error": "no blocks"})
		return
	}
	c.JSON(200, block)
}

// handleCurrentBlock returns the open template
func (s *Server) handleCurrentBlock(c *gin.Context) {
	block := s.ledger.GetCurrentBlock()
	if block == nil {
		c.JSON(404, gin.H{"error": "no open block"})
		return
	}
	c.JSON(200, block)
}

// handleBlocks returns the committed chain
func (s *Server) handleBlocks(c *gin.Context) {
	blocks, err := s.ledger.GetAllBlocks()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, blocks)
}

// handleDifficulty returns the current difficulty
func (s *Server) handleDifficulty(c *gin.Context) {
	c.JSON(200, gin.H{"difficulty": s.ledger.GetDifficulty()})
}

// handleRewards returns the current coinbase
func (s *Server) handleRewards(c *gin.Context) {
	rewards, err := s.ledger.GetCurrentRewards()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"rewards": rewards})
}

// handleHalving returns the blocks remaining until the next halving
func (s *Server) handleHalving(c *gin.Context) {
	halving, err := s.ledger.GetNextHalving()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"next_halving": halving})
}

// handleMempool returns pending transactions in admission order
func (s *Server) handleMempool(c *gin.Context) {
	c.JSON(200, s.ledger.GetMempool())
}

// handleBalance returns an account's settled and reserved balances
func (s *Server) handleBalance(c *gin.Context) {
	principal := chain.Principal(c.Param("principal"))

	balance, err := s.ledger.GetBalanceOf(principal)
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	state := s.ledger.GetState()

	c.JSON(200, BalanceResponse{
		Principal: principal,
		Balance:   balance,
		Pending:   state.PendingBalance[principal],
	})
}

// handleState returns a full ledger state snapshot
func (s *Server) handleState(c *gin.Context) {
	c.JSON(200, s.ledger.GetState())
}

// handleMiners returns the workers owned by a principal
func (s *Server) handleMiners(c *gin.Context) {
	owner := chain.Principal(c.Param("owner"))
	c.JSON(200, MinersResponse{
		Owner:  owner,
		Miners: s.ledger.GetMiners(owner),
	})
}

// handleLeaderboard returns the top owners by mined blocks
func (s *Server) handleLeaderboard(c *gin.Context) {
	c.JSON(200, s.ledger.GetLeaderboard())
}

// handleSolutions returns the full solution telemetry log
func (s *Server) handleSolutions(c *gin.Context) {
	stats, err := s.ledger.GetAllStats()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, stats)
}

// handleSolution returns one telemetry entry by log index
func (s *Server) handleSolution(c *gin.Context) {
	index, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid index"})
		return
	}
	stats, err := s.ledger.GetStats(index)
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	if stats == nil {
		c.JSON(404, gin.H{"error": "not found"})
		return
	}
	c.JSON(200, stats)
}
