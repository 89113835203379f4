// Package miner implements the proof-of-work worker: a chunked nonce search
// over the ledger's current block template.
package miner

import (
	"context"
	"sync"
	"time"

	"github.com/bil-network/bil-node/internal/chain"
	"github.com/bil-network/bil-node/internal/config"
	"github.com/bil-network/bil-node/internal/util"
)

// minerIDModulus spreads worker nonce streams; a fresh id is assigned from
// the clock whenever a new template arrives
const minerIDModulus = 300

// statsRefreshCycles is how many chunks pass between stats refreshes
const statsRefreshCycles = 5

// LedgerAPI is the ledger surface a worker talks to
type LedgerAPI interface {
	GetCurrentBlock() *chain.Block
	SubmitSolution(caller chain.Principal, block chain.Block, stats chain.Stats) (bool, error)
}

// State is a worker's mining record
type State struct {
	LedgerID            chain.Principal `json:"ledger_id"`
	Owner               chain.Principal `json:"owner"`
	CyclesBurned        uint64          `json:"cycles_burned"`
	BlocksMined         uint64          `json:"blocks_mined"`
	LastMiningTimestamp uint64          `json:"last_mining_timestamp"`
	IsMining            bool            `json:"is_mining"`
	TimeSpentMining     uint64          `json:"time_spent_mining"`
	MiningStartTime     uint64          `json:"mining_start_time"`
	MiningStartCycles   uint64          `json:"mining_start_cycles"`
	MiningTempTime      uint64          `json:"mining_temp_time"`
	MiningTempCycles    uint64          `json:"mining_temp_cycles"`
	CurrentBlock        *chain.Block    `json:"current_block"`
	MinerID             uint32          `json:"miner_id"`
	MiningCycle         uint64          `json:"mining_cycle"`
}

// Worker searches nonces on behalf of one owner. The search runs in chunks of
// ChunkSize nonces; the context is checked between chunks, which bounds how
// long a cancellation can lag, the same way the original bounded per-message
// instruction consumption.
type Worker struct {
	cfg    config.MinerConfig
	id     chain.Principal
	ledger LedgerAPI

	mu            sync.Mutex
	state         State
	cyclesBalance uint64

	kick         chan struct{}
	refreshReset chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a worker funded with an initial cycles balance
func NewWorker(cfg config.MinerConfig, id, owner, ledgerID chain.Principal, ledger LedgerAPI, initialCycles uint64) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		cfg:    cfg,
		id:     id,
		ledger: ledger,
		state: State{
			LedgerID: ledgerID,
			Owner:    owner,
		},
		cyclesBalance: initialCycles,
		kick:          make(chan struct{}, 1),
		refreshReset:  make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// ID returns the worker's principal
func (w *Worker) ID() chain.Principal {
	return w.id
}

// Owner returns the principal rewards accrue to
func (w *Worker) Owner() chain.Principal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Owner
}

// Start launches the search and template-refresh loops
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.miningLoop()

	w.wg.Add(1)
	go w.refreshLoop()

	util.Infof("Miner %s started for owner %s", w.id, w.state.Owner)
}

// Stop shuts the worker down
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	util.Infof("Miner %s stopped", w.id)
}

// refreshLoop polls the ledger for a fresh template. Receive re-arms the
// interval so top-ups start a clean accounting window.
func (w *Worker) refreshLoop() {
	defer w.wg.Done()

	// Fetch immediately so a newly spawned worker starts without waiting a
	// full interval
	w.pollTemplate()

	ticker := time.NewTicker(w.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.refreshReset:
			ticker.Reset(w.cfg.RefreshInterval)
		case <-ticker.C:
			w.pollTemplate()
		}
	}
}

// pollTemplate swaps in the ledger's template when it differs from ours
func (w *Worker) pollTemplate() {
	block := w.ledger.GetCurrentBlock()
	if block == nil {
		return
	}

	w.mu.Lock()
	held := w.state.CurrentBlock
	w.mu.Unlock()

	if held != nil && held.Equal(block) {
		return
	}

	w.newBlockFound(block, uint32(uint64(time.Now().UnixNano())%minerIDModulus))
}

// newBlockFound installs a template, resets the mining markers, and kicks the
// search if it is idle
func (w *Worker) newBlockFound(block *chain.Block, minerID uint32) {
	now := uint64(time.Now().UnixNano())

	w.mu.Lock()
	wasMining := w.state.IsMining
	w.state.CurrentBlock = block
	w.state.IsMining = true
	w.state.LastMiningTimestamp = now
	w.state.MiningStartTime = now
	w.state.MiningStartCycles = w.cyclesBalance
	w.state.MiningTempTime = now
	w.state.MiningTempCycles = w.cyclesBalance
	w.state.MinerID = minerID
	w.state.MiningCycle = 0
	w.mu.Unlock()

	util.Infof("Miner %s: new block template at height %d", w.id, block.Header.Height)

	if !wasMining {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
}

// PushBlock is the ledger-push alternate to template polling; only the
// bound ledger may call it
func (w *Worker) PushBlock(caller chain.Principal, block *chain.Block, minerID uint32) error {
	w.mu.Lock()
	ledgerID := w.state.LedgerID
	w.mu.Unlock()

	if caller != ledgerID {
		return ErrUnauthorized
	}
	w.newBlockFound(block, minerID)
	return nil
}

// miningLoop waits for work and runs the chunked search
func (w *Worker) miningLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.kick:
			w.findSolution()
		}
	}
}

// findSolution searches chunks of nonces until the template is solved or the
// worker is stopped. Each chunk re-seeds from the clock; the per-iteration
// nonce mixes (seed, i, miner_id).
func (w *Worker) findSolution() {
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		w.mu.Lock()
		if w.state.CurrentBlock == nil {
			w.state.IsMining = false
			w.mu.Unlock()
			return
		}
		block := *w.state.CurrentBlock
		minerID := w.state.MinerID
		w.mu.Unlock()

		seed := util.U128From64(uint64(time.Now().UnixNano()))
		mid := util.U128From64(uint64(minerID))

		solved := false
		for i := uint64(0); i < w.cfg.ChunkSize; i++ {
			block.Nonce = XorshiftNonce(seed, util.U128From64(i), mid)

			hash := block.SearchHash()
			if uint32(hash.LeadingZeros()) >= block.Header.Difficulty {
				if err := w.submitSolution(block); err != nil {
					util.Errorf("Miner %s: error submitting solution: %v", w.id, err)
					continue
				}
				util.Infof("Miner %s: solution submitted successfully", w.id)
				w.updateMiningStats(false)
				w.mu.Lock()
				w.state.BlocksMined++
				w.mu.Unlock()
				solved = true
				break
			}
		}
		if solved {
			return
		}

		w.burnChunk()

		w.mu.Lock()
		w.state.MiningCycle++
		shouldRefresh := w.state.MiningCycle%statsRefreshCycles == 0
		w.mu.Unlock()

		if shouldRefresh {
			w.updateMiningStats(true)
		}
	}
}

// burnChunk debits the per-chunk resource cost, saturating at zero
func (w *Worker) burnChunk() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cyclesBalance >= w.cfg.CyclesPerChunk {
		w.cyclesBalance -= w.cfg.CyclesPerChunk
	} else {
		w.cyclesBalance = 0
	}
}

// updateMiningStats folds the temp counters into the totals and restarts the
// accounting window
func (w *Worker) updateMiningStats(isMining bool) {
	now := uint64(time.Now().UnixNano())

	w.mu.Lock()
	defer w.mu.Unlock()

	w.state.TimeSpentMining += now - w.state.MiningTempTime
	if w.state.MiningTempCycles > w.cyclesBalance {
		w.state.CyclesBurned += w.state.MiningTempCycles - w.cyclesBalance
	}
	w.state.IsMining = isMining
	w.state.LastMiningTimestamp = now
	w.state.MiningTempTime = now
	w.state.MiningTempCycles = w.cyclesBalance
}

// submitSolution reports the solved block with its telemetry
func (w *Worker) submitSolution(block chain.Block) error {
	now := uint64(time.Now().UnixNano())

	w.mu.Lock()
	startTime := w.state.MiningStartTime
	startCycles := w.state.MiningStartCycles
	w.mu.Unlock()

	var burned uint64
	if startCycles > w.cyclesBalance {
		burned = startCycles - w.cyclesBalance
	}

	stats := chain.Stats{
		CyclesBurned: burned,
		Timestamp:    now,
		SolveTime:    now - startTime,
		Miner:        w.id,
	}

	_, err := w.ledger.SubmitSolution(w.id, block, stats)
	return err
}

// Receive accepts a resource top-up. The start and temp markers move up with
// the deposit so topped-up cycles are excluded from burned accounting, and
// the refresh interval restarts.
func (w *Worker) Receive(cycles uint64) {
	w.mu.Lock()
	w.cyclesBalance += cycles
	w.state.MiningStartCycles += cycles
	w.state.MiningTempCycles += cycles
	w.mu.Unlock()

	select {
	case w.refreshReset <- struct{}{}:
	default:
	}

	util.Infof("Miner %s: received %d cycles", w.id, cycles)
}

// CyclesLeft returns the remaining resource balance
func (w *Worker) CyclesLeft() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cyclesBalance
}

// GetState returns a snapshot of the worker's mining record
func (w *Worker) GetState() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	snapshot := w.state
	if w.state.CurrentBlock != nil {
		block := *w.state.CurrentBlock
		snapshot.CurrentBlock = &block
	}
	return snapshot
}
