package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/bil-network/bil-node/internal/chain"
	"github.com/bil-network/bil-node/internal/config"
	"github.com/bil-network/bil-node/internal/ledger"
	"github.com/bil-network/bil-node/internal/storage"
)

func setupTestServer(t *testing.T) (*Server, *storage.RedisClient, *ledger.Ledger) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store, err := storage.NewRedisClient(mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("Failed to create Redis client: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Node: config.NodeConfig{Name: "test node", ID: "bil-ledger"},
		Chain: config.ChainConfig{
			InitialDifficulty: 1,
			MinDifficulty:     1,
			MaxDifficulty:     48,
			BlockTime:         300 * time.Second,
			BlockHalving:      17500,
			CoinbaseRewards:   60_000_000_000,
			TransactionLimit:  150,
			AssemblyDelay:     time.Hour,
			AssemblyRetry:     time.Hour,
		},
		API: config.APIConfig{
			Enabled:          true,
			Bind:             "127.0.0.1:0",
			StatsCache:       time.Second,
			WebSocketEnabled: true,
		},
	}

	l := ledger.New(cfg, store, nil, nil, nil)
	if err := l.Start(); err != nil {
		t.Fatalf("Failed to start ledger: %v", err)
	}
	t.Cleanup(l.Stop)

	server := NewServer(cfg, l)
	return server, store, l
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/health")
	if w.Code != 200 {
		t.Errorf("GET /health = %d, want 200", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s, _, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/stats")
	if w.Code != 200 {
		t.Fatalf("GET /api/stats = %d, want 200", w.Code)
	}

	var stats StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}

	if stats.BlockCount != 1 {
		t.Errorf("block count = %d, want 1 (genesis)", stats.BlockCount)
	}
	if stats.Difficulty != 1 {
		t.Errorf("difficulty = %d, want 1", stats.Difficulty)
	}
	if stats.CurrentRewards != 60_000_000_000 {
		t.Errorf("rewards = %d, want full coinbase", stats.CurrentRewards)
	}
}

func TestLatestBlockEndpoint(t *testing.T) {
	s, _, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/block/latest")
	if w.Code != 200 {
		t.Fatalf("GET /api/block/latest = %d, want 200", w.Code)
	}

	var block chain.Block
	if err := json.Unmarshal(w.Body.Bytes(), &block); err != nil {
		t.Fatalf("decoding block: %v", err)
	}
	if block.Header.Height != 0 {
		t.Errorf("latest block height = %d, want genesis", block.Header.Height)
	}
}

func TestCurrentBlockEmpty(t *testing.T) {
	s, _, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/block/current")
	if w.Code != 404 {
		t.Errorf("GET /api/block/current with no template = %d, want 404", w.Code)
	}
}

func TestBlocksEndpoint(t *testing.T) {
	s, _, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/blocks")
	if w.Code != 200 {
		t.Fatalf("GET /api/blocks = %d, want 200", w.Code)
	}

	var blocks []chain.Block
	if err := json.Unmarshal(w.Body.Bytes(), &blocks); err != nil {
		t.Fatalf("decoding blocks: %v", err)
	}
	if len(blocks) != 1 {
		t.Errorf("blocks len = %d, want 1", len(blocks))
	}
}

func TestDifficultyAndRewards(t *testing.T) {
	s, _, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/difficulty")
	if w.Code != 200 {
		t.Errorf("GET /api/difficulty = %d", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, "/api/rewards")
	if w.Code != 200 {
		t.Errorf("GET /api/rewards = %d", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, "/api/halving")
	if w.Code != 200 {
		t.Errorf("GET /api/halving = %d", w.Code)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	s, store, _ := setupTestServer(t)

	store.AddBalance("alice", 777)

	w := doRequest(t, s, http.MethodGet, "/api/balance/alice")
	if w.Code != 200 {
		t.Fatalf("GET /api/balance/alice = %d, want 200", w.Code)
	}

	var balance BalanceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &balance); err != nil {
		t.Fatalf("decoding balance: %v", err)
	}
	if balance.Balance != 777 {
		t.Errorf("balance = %d, want 777", balance.Balance)
	}
	if balance.Pending != 0 {
		t.Errorf("pending = %d, want 0", balance.Pending)
	}
}

func TestMempoolEndpoint(t *testing.T) {
	s, store, l := setupTestServer(t)

	store.AddBalance("alice", 100)
	if err := l.CreateTransaction("alice", chain.TransactionArgs{Recipient: "bob", Amount: 50}); err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, s, http.MethodGet, "/api/mempool")
	if w.Code != 200 {
		t.Fatalf("GET /api/mempool = %d, want 200", w.Code)
	}

	var mempool []chain.Transaction
	if err := json.Unmarshal(w.Body.Bytes(), &mempool); err != nil {
		t.Fatalf("decoding mempool: %v", err)
	}
	if len(mempool) != 1 || mempool[0].Amount != 50 {
		t.Errorf("mempool = %+v", mempool)
	}
}

func TestStateEndpoint(t *testing.T) {
	s, _, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/state")
	if w.Code != 200 {
		t.Errorf("GET /api/state = %d, want 200", w.Code)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	s, _, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/leaderboard")
	if w.Code != 200 {
		t.Fatalf("GET /api/leaderboard = %d, want 200", w.Code)
	}

	var board []ledger.LeaderboardEntry
	if err := json.Unmarshal(w.Body.Bytes(), &board); err != nil {
		t.Fatalf("decoding leaderboard: %v", err)
	}
}

func TestSolutionsEndpoints(t *testing.T) {
	s, store, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/solutions")
	if w.Code != 200 {
		t.Errorf("GET /api/solutions = %d, want 200", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, "/api/solutions/0")
	if w.Code != 404 {
		t.Errorf("GET /api/solutions/0 on empty log = %d, want 404", w.Code)
	}

	store.AppendStats(&chain.Stats{CyclesBurned: 1, Timestamp: 2, SolveTime: 3, Miner: "m"})
	w = doRequest(t, s, http.MethodGet, "/api/solutions/0")
	if w.Code != 200 {
		t.Errorf("GET /api/solutions/0 = %d, want 200", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, "/api/solutions/notanumber")
	if w.Code != 400 {
		t.Errorf("GET /api/solutions/notanumber = %d, want 400", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodOptions, "/api/stats")
	if w.Code != 204 {
		t.Errorf("OPTIONS preflight = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestMinersEndpoint(t *testing.T) {
	s, _, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/miners/alice")
	if w.Code != 200 {
		t.Fatalf("GET /api/miners/alice = %d, want 200", w.Code)
	}

	var resp MinersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding miners: %v", err)
	}
	if resp.Owner != "alice" || len(resp.Miners) != 0 {
		t.Errorf("miners response = %+v", resp)
	}
}
