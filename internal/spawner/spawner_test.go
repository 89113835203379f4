package spawner

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/bil-network/bil-node/internal/chain"
	"github.com/bil-network/bil-node/internal/config"
)

// stubLedger satisfies the worker's ledger surface without handing out work
type stubLedger struct {
	mu sync.Mutex
}

func (s *stubLedger) GetCurrentBlock() *chain.Block { return nil }

func (s *stubLedger) SubmitSolution(caller chain.Principal, block chain.Block, stats chain.Stats) (bool, error) {
	return false, nil
}

func testFactoryConfig() *config.Config {
	return &config.Config{
		Node: config.NodeConfig{ID: "bil-ledger"},
		Miner: config.MinerConfig{
			ChunkSize:       1000,
			RefreshInterval: 3600e9, // effectively never during tests
			CyclesPerChunk:  100,
		},
	}
}

func TestDeriveMinerID(t *testing.T) {
	a := DeriveMinerID("alice", 42)
	b := DeriveMinerID("alice", 42)
	if a != b {
		t.Error("derivation should be deterministic")
	}

	if !strings.HasPrefix(string(a), "miner-") {
		t.Errorf("id = %s, want miner- prefix", a)
	}
	if len(a) != len("miner-")+16 {
		t.Errorf("id length = %d, want %d", len(a), len("miner-")+16)
	}

	if DeriveMinerID("alice", 43) == a {
		t.Error("different payments should derive different ids")
	}
	if DeriveMinerID("bob", 42) == a {
		t.Error("different owners should derive different ids")
	}
}

func TestCreateWorker(t *testing.T) {
	factory := NewFactory(testFactoryConfig(), &stubLedger{})
	defer factory.StopAll()

	id, err := factory.CreateWorker(context.Background(), "alice", 42, 2_500_000_000_000)
	if err != nil {
		t.Fatalf("CreateWorker() error: %v", err)
	}
	if id != DeriveMinerID("alice", 42) {
		t.Errorf("worker id = %s, want derived id", id)
	}

	worker, ok := factory.Worker(id)
	if !ok {
		t.Fatal("worker not registered")
	}
	if worker.Owner() != "alice" {
		t.Errorf("worker owner = %s, want alice", worker.Owner())
	}
	if worker.CyclesLeft() != 2_500_000_000_000 {
		t.Errorf("worker cycles = %d, want initial budget", worker.CyclesLeft())
	}

	if factory.Count() != 1 {
		t.Errorf("Count() = %d, want 1", factory.Count())
	}

	// The same payment cannot mint a second worker process
	if _, err := factory.CreateWorker(context.Background(), "alice", 42, 1); err == nil {
		t.Error("duplicate creation should fail")
	}
}

func TestDepositCycles(t *testing.T) {
	factory := NewFactory(testFactoryConfig(), &stubLedger{})
	defer factory.StopAll()

	if err := factory.DepositCycles(context.Background(), "ghost", 100); err == nil {
		t.Error("deposit to unknown worker should fail")
	}

	id, err := factory.CreateWorker(context.Background(), "alice", 7, 1000)
	if err != nil {
		t.Fatal(err)
	}

	if err := factory.DepositCycles(context.Background(), id, 500); err != nil {
		t.Fatalf("DepositCycles() error: %v", err)
	}

	worker, _ := factory.Worker(id)
	if worker.CyclesLeft() != 1500 {
		t.Errorf("cycles after deposit = %d, want 1500", worker.CyclesLeft())
	}
}

func TestWorkersListing(t *testing.T) {
	factory := NewFactory(testFactoryConfig(), &stubLedger{})
	defer factory.StopAll()

	factory.CreateWorker(context.Background(), "alice", 1, 100)
	factory.CreateWorker(context.Background(), "bob", 2, 100)

	if got := len(factory.Workers()); got != 2 {
		t.Errorf("Workers() len = %d, want 2", got)
	}
}
