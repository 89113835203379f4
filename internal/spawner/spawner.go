// Package spawner creates and funds miner workers once the ledger has
// verified their creation payment.
package spawner

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/bil-network/bil-node/internal/chain"
	"github.com/bil-network/bil-node/internal/config"
	"github.com/bil-network/bil-node/internal/miner"
	"github.com/bil-network/bil-node/internal/util"
)

// Factory spawns in-process miner workers, each an isolated goroutine-backed
// actor bound to one owner
type Factory struct {
	cfg      *config.Config
	ledgerID chain.Principal
	ledger   miner.LedgerAPI

	mu      sync.Mutex
	workers map[chain.Principal]*miner.Worker
}

// NewFactory creates a worker factory bound to the ledger
func NewFactory(cfg *config.Config, ledger miner.LedgerAPI) *Factory {
	return &Factory{
		cfg:      cfg,
		ledgerID: chain.Principal(cfg.Node.ID),
		ledger:   ledger,
		workers:  make(map[chain.Principal]*miner.Worker),
	}
}

// DeriveMinerID derives a worker principal from its owner and the funding
// transaction index. Deterministic, so re-running a spawn against the same
// payment cannot mint a second identity.
func DeriveMinerID(owner chain.Principal, txIndex uint64) chain.Principal {
	hasher := blake3.New()
	hasher.Write([]byte(owner))

	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], txIndex)
	hasher.Write(idx[:])

	sum := hasher.Sum(nil)
	return chain.Principal("miner-" + util.BytesToHexNoPre(sum[:8]))
}

// CreateWorker builds, funds, and starts a worker for the owner
func (f *Factory) CreateWorker(ctx context.Context, owner chain.Principal, txIndex uint64, cycles uint64) (chain.Principal, error) {
	id := DeriveMinerID(owner, txIndex)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.workers[id]; exists {
		return "", fmt.Errorf("create_canister - worker %s already exists", id)
	}

	worker := miner.NewWorker(f.cfg.Miner, id, owner, f.ledgerID, f.ledger, cycles)
	f.workers[id] = worker
	worker.Start()

	util.Infof("Created worker %s with %d cycles", id, cycles)
	return id, nil
}

// DepositCycles forwards a resource top-up to a running worker
func (f *Factory) DepositCycles(ctx context.Context, id chain.Principal, cycles uint64) error {
	f.mu.Lock()
	worker, ok := f.workers[id]
	f.mu.Unlock()

	if !ok {
		return fmt.Errorf("transfer_cycles failed: worker %s not running", id)
	}

	worker.Receive(cycles)
	return nil
}

// Worker returns a running worker by id
func (f *Factory) Worker(id chain.Principal) (*miner.Worker, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	worker, ok := f.workers[id]
	return worker, ok
}

// Workers returns all running workers
func (f *Factory) Workers() []*miner.Worker {
	f.mu.Lock()
	defer f.mu.Unlock()
	workers := make([]*miner.Worker, 0, len(f.workers))
	for _, w := range f.workers {
		workers = append(workers, w)
	}
	return workers
}

// Count returns the number of running workers
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.workers)
}

// StopAll shuts every worker down
func (f *Factory) StopAll() {
	f.mu.Lock()
	workers := make([]*miner.Worker, 0, len(f.workers))
	for _, w := range f.workers {
		workers = append(workers, w)
	}
	f.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
}
