// Package ledger implements the authoritative chain: block validation and
// commit, difficulty retargeting, reward issuance, mempool settlement, and
// worker registration.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bil-network/bil-node/internal/chain"
	"github.com/bil-network/bil-node/internal/config"
	"github.com/bil-network/bil-node/internal/newrelic"
	"github.com/bil-network/bil-node/internal/notify"
	"github.com/bil-network/bil-node/internal/storage"
	"github.com/bil-network/bil-node/internal/upstream"
	"github.com/bil-network/bil-node/internal/util"
)

// SecNanos is one second in nanoseconds
const SecNanos uint64 = 1_000_000_000

// retargetGap is the minimum deviation from the target block time, in
// seconds, before difficulty moves
const retargetGap = 60

// WorkerFactory creates and funds miner workers. The spawner package provides
// the production implementation; tests substitute a fake.
type WorkerFactory interface {
	CreateWorker(ctx context.Context, owner chain.Principal, txIndex uint64, cycles uint64) (chain.Principal, error)
	DepositCycles(ctx context.Context, miner chain.Principal, cycles uint64) error
}

// State is the ledger's in-memory record, rehydrated from storage on start
type State struct {
	CurrentDifficulty uint32                                `json:"current_difficulty"`
	TransactionCount  uint64                                `json:"transaction_count"`
	BlockHeight       uint64                                `json:"block_height"`
	ExeBurned         uint64                                `json:"exe_burned"`
	AverageBlockTime  uint64                                `json:"average_block_time"`
	CurrentBlock      *chain.Block                          `json:"current_block"`
	Mempool           []chain.Transaction                   `json:"mempool"`
	PendingBalance    map[chain.Principal]uint64            `json:"pending_balance"`
	MinerToOwner      map[chain.Principal]chain.Principal   `json:"miner_to_owner"`
	OwnerToMiners     map[chain.Principal][]chain.Principal `json:"owner_to_miners"`
	OwnerMinedBlocks  map[chain.Principal]uint64            `json:"owner_mined_blocks"`
	MinerBurnedCycles map[chain.Principal]uint64            `json:"miner_burned_cycles"`
	minerCreationTxs  map[uint64]struct{}
}

func newState(difficulty uint32) State {
	return State{
		CurrentDifficulty: difficulty,
		Mempool:           []chain.Transaction{},
		PendingBalance:    make(map[chain.Principal]uint64),
		MinerToOwner:      make(map[chain.Principal]chain.Principal),
		OwnerToMiners:     make(map[chain.Principal][]chain.Principal),
		OwnerMinedBlocks:  make(map[chain.Principal]uint64),
		MinerBurnedCycles: make(map[chain.Principal]uint64),
		minerCreationTxs:  make(map[uint64]struct{}),
	}
}

// LeaderboardEntry ranks an owner by mined blocks
type LeaderboardEntry struct {
	Owner      chain.Principal `json:"owner"`
	MinerCount int             `json:"miner_count"`
	BlockCount uint64          `json:"block_count"`
}

// Event is pushed to subscribers on template and block changes
type Event struct {
	Type  string       `json:"type"` // "block" or "template"
	Block *chain.Block `json:"block"`
}

// solutionRequest carries a worker's submission through the processing channel
type solutionRequest struct {
	caller     chain.Principal
	block      chain.Block
	stats      chain.Stats
	resultChan chan *solutionResult
}

type solutionResult struct {
	accepted bool
	err      error
}

// Ledger is the chain authority. All state transitions are serialized: block
// submissions flow through a single processing goroutine, and every other
// mutation takes the state mutex. A commit is one synchronous transition; the
// only outbound call it triggers (the upstream mint transfer) runs after the
// commit in its own goroutine.
type Ledger struct {
	cfg      *config.Config
	store    *storage.RedisClient
	token    upstream.TokenLedger
	factory  WorkerFactory
	notifier *notify.Notifier
	nr       *newrelic.Agent

	selfID chain.Principal

	mu    sync.Mutex
	state State

	solutionChan chan *solutionRequest
	assemblyCh   chan time.Duration
	eventFunc    func(Event)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a ledger bound to its durable store and the upstream token ledger
func New(cfg *config.Config, store *storage.RedisClient, token upstream.TokenLedger, notifier *notify.Notifier, nr *newrelic.Agent) *Ledger {
	ctx, cancel := context.WithCancel(context.Background())
	return &Ledger{
		cfg:          cfg,
		store:        store,
		token:        token,
		notifier:     notifier,
		nr:           nr,
		selfID:       chain.Principal(cfg.Node.ID),
		state:        newState(cfg.Chain.InitialDifficulty),
		solutionChan: make(chan *solutionRequest, 64),
		assemblyCh:   make(chan time.Duration, 1),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetWorkerFactory wires the spawner; must be called before Start
func (l *Ledger) SetWorkerFactory(f WorkerFactory) {
	l.factory = f
}

// SetEventFunc registers a sink for block/template events
func (l *Ledger) SetEventFunc(fn func(Event)) {
	l.eventFunc = fn
}

// SelfID returns the ledger's own principal
func (l *Ledger) SelfID() chain.Principal {
	return l.selfID
}

// Start rehydrates durable state and begins the processing loops
func (l *Ledger) Start() error {
	util.Info("Starting ledger...")

	if err := l.rehydrate(); err != nil {
		return err
	}

	l.wg.Add(1)
	go l.solutionLoop()

	l.wg.Add(1)
	go l.assemblyLoop()

	l.scheduleNextBlock(l.cfg.Chain.AssemblyDelay)

	util.Info("Ledger started")
	return nil
}

// Stop shuts down the ledger
func (l *Ledger) Stop() {
	util.Info("Stopping ledger...")
	l.cancel()
	l.wg.Wait()
	util.Info("Ledger stopped")
}

// rehydrate restores in-memory state from the durable store, inserting the
// genesis block on first init
func (l *Ledger) rehydrate() error {
	count, err := l.store.BlockCount()
	if err != nil {
		return err
	}
	if count == 0 {
		genesis := chain.Genesis()
		if err := l.store.AppendBlock(&genesis); err != nil {
			return err
		}
		util.Info("Inserted genesis block")
	}

	state := newState(l.cfg.Chain.InitialDifficulty)

	miners, err := l.store.MinerOwners()
	if err != nil {
		return err
	}
	for miner, rec := range miners {
		state.MinerToOwner[miner] = rec.Owner
		state.OwnerToMiners[rec.Owner] = append(state.OwnerToMiners[rec.Owner], miner)
		state.minerCreationTxs[rec.TxIndex] = struct{}{}
	}

	processed, err := l.store.ProcessedTxs()
	if err != nil {
		return err
	}
	for _, idx := range processed {
		state.minerCreationTxs[idx] = struct{}{}
	}

	if state.ExeBurned, err = l.store.GetBurnedExe(); err != nil {
		return err
	}
	if state.TransactionCount, err = l.store.GetTransactionCount(); err != nil {
		return err
	}
	if state.AverageBlockTime, err = l.store.GetAverageBlockTime(); err != nil {
		return err
	}

	diff, err := l.store.GetDifficulty()
	if err != nil {
		return err
	}
	if diff != 0 {
		state.CurrentDifficulty = diff
	}

	latest, err := l.store.LatestBlock()
	if err != nil {
		return err
	}
	if latest != nil {
		state.BlockHeight = latest.Header.Height
	}

	if state.CurrentBlock, err = l.store.CurrentBlock(); err != nil {
		return err
	}

	mined, err := l.store.BlocksMined()
	if err != nil {
		return err
	}
	for owner, n := range mined {
		state.OwnerMinedBlocks[owner] = n
	}

	l.mu.Lock()
	l.state = state
	l.mu.Unlock()

	util.Infof("Rehydrated state: height %d, difficulty %d, %d miners",
		state.BlockHeight, state.CurrentDifficulty, len(state.MinerToOwner))
	return nil
}

// ---- Solution processing ----

// SubmitSolution validates a mined block and, on success, commits it. Racing
// workers are serialized strictly first-come-first-served; only the first
// valid submission for a given (prev_hash, height) is accepted.
func (l *Ledger) SubmitSolution(caller chain.Principal, block chain.Block, stats chain.Stats) (bool, error) {
	req := &solutionRequest{
		caller:     caller,
		block:      block,
		stats:      stats,
		resultChan: make(chan *solutionResult, 1),
	}

	select {
	case l.solutionChan <- req:
	case <-l.ctx.Done():
		return false, ErrShuttingDown
	}

	select {
	case res := <-req.resultChan:
		return res.accepted, res.err
	case <-l.ctx.Done():
		return false, ErrShuttingDown
	}
}

// solutionLoop handles block submissions one at a time
func (l *Ledger) solutionLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		case req := <-l.solutionChan:
			accepted, err := l.processSolution(req)
			req.resultChan <- &solutionResult{accepted: accepted, err: err}
		}
	}
}

func (l *Ledger) processSolution(req *solutionRequest) (bool, error) {
	if err := l.validateSolution(req.caller, &req.block); err != nil {
		util.Infof("Solution from miner %s rejected: %v", req.caller, err)
		if l.nr != nil {
			l.nr.RecordSolutionRejected(string(req.caller), err.Error())
		}
		return false, err
	}

	if err := l.commitBlock(req.caller, &req.block, &req.stats); err != nil {
		util.Errorf("Failed to commit block %d: %v", req.block.Header.Height, err)
		return false, err
	}

	util.Infof("Solution from miner %s accepted at height %d", req.caller, req.block.Header.Height)

	if l.nr != nil {
		l.nr.RecordBlockAccepted(req.block.Header.Height, string(req.caller), len(req.block.Transactions))
		l.mu.Lock()
		height := l.state.BlockHeight
		difficulty := l.state.CurrentDifficulty
		mempoolSize := len(l.state.Mempool)
		l.mu.Unlock()
		l.nr.UpdateChainMetrics(height, difficulty, mempoolSize)
	}
	if l.notifier != nil {
		l.notifier.NotifyBlockFound(&req.block, req.caller)
	}
	l.emit(Event{Type: "block", Block: &req.block})

	l.scheduleNextBlock(l.cfg.Chain.AssemblyDelay)
	return true, nil
}

// validateSolution enforces the consensus checks against the committed chain
func (l *Ledger) validateSolution(caller chain.Principal, block *chain.Block) error {
	if caller.IsAnonymous() {
		return ErrAnonymous
	}

	l.mu.Lock()
	_, registered := l.state.MinerToOwner[caller]
	l.mu.Unlock()
	if !registered {
		return ErrUnregisteredMiner
	}

	latest, err := l.store.LatestBlock()
	if err != nil {
		return err
	}
	if latest != nil {
		if !block.Header.PrevHash.Equal(latest.Hash) {
			return ErrOutdatedChain
		}
	} else if !block.Header.PrevHash.IsZero() {
		return ErrOutdatedChain
	}

	count, err := l.store.BlockCount()
	if err != nil {
		return err
	}
	if block.Header.Height != count {
		return ErrHeightMismatch
	}

	if uint32(block.SearchHash().LeadingZeros()) < block.Header.Difficulty {
		return ErrInvalidSolution
	}

	return nil
}

// commitBlock applies a validated solution as one atomic transition: chain
// append, stats append, mempool removal, settlement, coinbase, counters, and
// the difficulty retarget all happen before any outbound call.
func (l *Ledger) commitBlock(caller chain.Principal, block *chain.Block, stats *chain.Stats) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	owner, ok := l.state.MinerToOwner[caller]
	if !ok {
		owner = chain.Anonymous
	}

	if err := l.store.AppendBlock(block); err != nil {
		return err
	}
	if err := l.store.AppendStats(stats); err != nil {
		util.Warnf("Failed to persist stats: %v", err)
	}

	l.state.OwnerMinedBlocks[owner]++
	if err := l.store.AddBlockMined(owner); err != nil {
		util.Warnf("Failed to persist mined-block count: %v", err)
	}

	l.state.MinerBurnedCycles[caller] += stats.CyclesBurned

	height := block.Header.Height
	blockTime := (l.state.AverageBlockTime*(height-1) + stats.SolveTime) / height
	l.state.AverageBlockTime = blockTime
	if err := l.store.SetAverageBlockTime(blockTime); err != nil {
		util.Warnf("Failed to persist average block time: %v", err)
	}

	l.state.BlockHeight = height
	l.state.TransactionCount += uint64(len(block.Transactions))
	if err := l.store.AddTransactionCount(uint64(len(block.Transactions))); err != nil {
		util.Warnf("Failed to persist transaction count: %v", err)
	}

	// Settle each included transaction and release its reservation
	var mints []chain.Transaction
	for _, tx := range block.Transactions {
		for i, pending := range l.state.Mempool {
			if pending.Equal(tx) {
				l.state.Mempool = append(l.state.Mempool[:i], l.state.Mempool[i+1:]...)
				break
			}
		}

		if reserved, ok := l.state.PendingBalance[tx.Sender]; ok {
			if reserved >= tx.Amount {
				l.state.PendingBalance[tx.Sender] = reserved - tx.Amount
			} else {
				l.state.PendingBalance[tx.Sender] = 0
			}
		}

		if tx.Recipient == l.selfID {
			// Mint request: redeem internal BIL for upstream tokens. The
			// transfer happens after commit; the internal debit applies only
			// once the upstream confirms.
			mints = append(mints, tx)
		} else {
			if err := l.store.AddBalance(tx.Recipient, tx.Amount); err != nil {
				util.Errorf("Failed to credit %s: %v", tx.Recipient, err)
			}
			if err := l.store.SubBalance(tx.Sender, tx.Amount); err != nil {
				util.Errorf("Failed to debit %s: %v", tx.Sender, err)
			}
		}
	}

	// Coinbase accrues to the worker's owner
	reward := l.currentRewardsLocked()
	if err := l.store.AddBalance(owner, reward); err != nil {
		util.Errorf("Failed to credit coinbase to %s: %v", owner, err)
	}

	l.retargetLocked(stats.SolveTime)

	for _, tx := range mints {
		l.mintUpstream(tx)
	}

	return nil
}

// mintUpstream issues the upstream ICRC-1 transfer for a recipient==self
// transaction, debiting the sender's internal balance on success
func (l *Ledger) mintUpstream(tx chain.Transaction) {
	transfer := upstream.TransferArg{
		To:     upstream.Account{Owner: tx.Sender},
		Amount: tx.Amount,
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if _, err := l.token.Icrc1Transfer(l.ctx, transfer); err != nil {
			util.Errorf("Error minting BIL: %v", err)
			return
		}
		util.Info("BIL minted successfully")
		if err := l.store.SubBalance(tx.Sender, tx.Amount); err != nil {
			util.Errorf("Failed to debit %s after mint: %v", tx.Sender, err)
		}
	}()
}

// retargetLocked moves difficulty by at most one step per block, bounded by
// the configured range; must be called with mu held
func (l *Ledger) retargetLocked(solveTime uint64) {
	target := uint64(l.cfg.Chain.BlockTime.Nanoseconds())

	if target > solveTime {
		sec := (target - solveTime) / SecNanos
		if sec > retargetGap && l.state.CurrentDifficulty < l.cfg.Chain.MaxDifficulty {
			l.state.CurrentDifficulty++
			if err := l.store.SetDifficulty(l.state.CurrentDifficulty); err != nil {
				util.Warnf("Failed to persist difficulty: %v", err)
			}
		}
	} else {
		sec := (solveTime - target) / SecNanos
		if sec > retargetGap && l.state.CurrentDifficulty > l.cfg.Chain.MinDifficulty {
			l.state.CurrentDifficulty--
			if err := l.store.SetDifficulty(l.state.CurrentDifficulty); err != nil {
				util.Warnf("Failed to persist difficulty: %v", err)
			}
		}
	}
}

// ---- Block assembly ----

// scheduleNextBlock arms the assembly timer; a pending schedule is replaced
func (l *Ledger) scheduleNextBlock(d time.Duration) {
	select {
	case l.assemblyCh <- d:
	default:
	}
}

// assemblyLoop builds block templates on the schedule set by commits and
// empty-mempool retries
func (l *Ledger) assemblyLoop() {
	defer l.wg.Done()

	timer := time.NewTimer(l.cfg.Chain.AssemblyDelay)
	defer timer.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case d := <-l.assemblyCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d)
		case <-timer.C:
			l.createBlock()
		}
	}
}

// createBlock snapshots the mempool into a fresh template. An empty mempool
// short-circuits and retries later.
func (l *Ledger) createBlock() {
	l.mu.Lock()

	if len(l.state.Mempool) == 0 {
		l.mu.Unlock()
		util.Debug("No transactions to include in block")
		l.scheduleNextBlock(l.cfg.Chain.AssemblyRetry)
		return
	}

	transactions := make([]chain.Transaction, len(l.state.Mempool))
	copy(transactions, l.state.Mempool)
	difficulty := l.state.CurrentDifficulty
	l.mu.Unlock()

	prev, err := l.store.LatestBlock()
	if err != nil || prev == nil {
		util.Errorf("Error creating block: no committed chain: %v", err)
		l.scheduleNextBlock(l.cfg.Chain.AssemblyRetry)
		return
	}

	block := chain.NewBlock(*prev, transactions, difficulty, uint64(time.Now().UnixNano()))

	l.mu.Lock()
	l.state.CurrentBlock = &block
	l.mu.Unlock()

	if err := l.store.SetCurrentBlock(&block); err != nil {
		util.Warnf("Failed to persist current block: %v", err)
	}

	util.Infof("Created block template at height %d with %d transactions",
		block.Header.Height, len(block.Transactions))
	l.emit(Event{Type: "template", Block: &block})
}

// ---- Transactions ----

// CreateTransaction admits a transfer to the mempool, reserving the amount
// against the sender's balance. Admitted transactions never expire; they stay
// queued until some block includes them.
func (l *Ledger) CreateTransaction(caller chain.Principal, args chain.TransactionArgs) error {
	if caller.IsAnonymous() {
		return ErrAnonymous
	}

	balance, err := l.store.GetBalance(caller)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if balance < args.Amount+l.state.PendingBalance[caller] {
		return ErrInsufficientFunds
	}

	if len(l.state.Mempool) > l.cfg.Chain.TransactionLimit {
		return ErrCongested
	}

	if args.Amount < 1 && args.Recipient == l.selfID {
		return ErrZeroAmount
	}

	l.state.PendingBalance[caller] += args.Amount
	l.state.Mempool = append(l.state.Mempool, chain.Transaction{
		Sender:    caller,
		Recipient: args.Recipient,
		Amount:    args.Amount,
		Timestamp: uint64(time.Now().UnixNano()),
	})

	return nil
}

// ---- Worker lifecycle ----

// SpawnMiner verifies a creation payment on the upstream ledger and creates a
// worker bound to the caller. The creation burn failing does not undo the
// spawn; the worker stays registered.
func (l *Ledger) SpawnMiner(ctx context.Context, caller chain.Principal, txIndex uint64) (chain.Principal, error) {
	if caller.IsAnonymous() {
		return "", ErrAnonymous
	}

	l.mu.Lock()
	_, processed := l.state.minerCreationTxs[txIndex]
	l.mu.Unlock()
	if processed {
		return "", ErrTxProcessed
	}

	tx, err := l.token.GetTransaction(ctx, txIndex)
	if err != nil {
		return "", err
	}
	if tx.Transfer == nil {
		return "", ErrExpectedTransfer
	}
	if tx.Transfer.From.Owner != caller {
		return "", ErrNotFromCaller
	}
	if tx.Transfer.Amount < l.cfg.Spawner.CreationAmount {
		return "", ErrAmountTooLow
	}
	if tx.Transfer.To.Owner != l.selfID {
		return "", ErrWrongRecipient
	}

	minerID, err := l.factory.CreateWorker(ctx, caller, txIndex, l.cfg.Spawner.CreationCycles)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	// Re-check: the fetch and create suspended, another call may have won
	if _, processed := l.state.minerCreationTxs[txIndex]; processed {
		l.mu.Unlock()
		return "", ErrTxProcessed
	}
	l.state.minerCreationTxs[txIndex] = struct{}{}
	l.state.MinerToOwner[minerID] = caller
	l.state.OwnerToMiners[caller] = append(l.state.OwnerToMiners[caller], minerID)
	l.mu.Unlock()

	if err := l.store.InsertMiner(minerID, caller, txIndex); err != nil {
		util.Errorf("Failed to persist miner %s: %v", minerID, err)
	}
	if err := l.store.AppendProcessedTx(txIndex); err != nil {
		util.Errorf("Failed to persist processed tx %d: %v", txIndex, err)
	}

	burned := (l.cfg.Spawner.CreationAmount * l.cfg.Spawner.SpawnBurnPercent) / 100
	if _, err := l.token.Burn(ctx, upstream.BurnArgs{Amount: burned}); err != nil {
		util.Errorf("Error burning EXE: %v", err)
	} else {
		util.Infof("Burned %d EXE", burned)
		l.mu.Lock()
		l.state.ExeBurned += burned
		l.mu.Unlock()
		if err := l.store.AddBurnedExe(burned); err != nil {
			util.Warnf("Failed to persist burned counter: %v", err)
		}
	}

	util.Infof("Miner %s spawned for %s", minerID, caller)
	if l.notifier != nil {
		l.notifier.NotifyMinerSpawned(minerID, caller)
	}
	if l.nr != nil {
		l.nr.RecordMinerSpawned(string(minerID), string(caller))
	}

	return minerID, nil
}

// TopupMiner verifies a payment and forwards resources to an owned worker.
// The processed-tx index is only recorded once the deposit succeeds, so a
// failed deposit leaves the payment reusable.
func (l *Ledger) TopupMiner(ctx context.Context, caller, miner chain.Principal, txIndex uint64) error {
	if caller.IsAnonymous() {
		return ErrAnonymous
	}

	l.mu.Lock()
	_, registered := l.state.MinerToOwner[miner]
	_, processed := l.state.minerCreationTxs[txIndex]
	l.mu.Unlock()

	if !registered {
		return ErrMinerNotFound
	}
	if processed {
		return ErrTxProcessed
	}

	tx, err := l.token.GetTransaction(ctx, txIndex)
	if err != nil {
		return err
	}
	if tx.Transfer == nil {
		return ErrExpectedTransfer
	}
	if tx.Transfer.From.Owner != caller {
		return ErrNotFromCaller
	}
	if tx.Transfer.To.Owner != l.selfID {
		return ErrWrongRecipient
	}

	burned := (tx.Transfer.Amount * l.cfg.Spawner.TopupBurnPercent) / 100
	if _, err := l.token.Burn(ctx, upstream.BurnArgs{Amount: burned}); err != nil {
		util.Errorf("Error burning %d EXE: %v", burned, err)
	} else {
		util.Infof("Burned %d EXE", burned)
		l.mu.Lock()
		l.state.ExeBurned += burned
		l.mu.Unlock()
		if err := l.store.AddBurnedExe(burned); err != nil {
			util.Warnf("Failed to persist burned counter: %v", err)
		}
	}

	cycles := TokensToCycles(tx.Transfer.Amount)
	if err := l.factory.DepositCycles(ctx, miner, (cycles*l.cfg.Spawner.TopupForwardPercent)/100); err != nil {
		util.Errorf("Error topping up miner: %v", err)
		return ErrTopupFailed
	}

	l.mu.Lock()
	l.state.minerCreationTxs[txIndex] = struct{}{}
	l.mu.Unlock()
	if err := l.store.AppendProcessedTx(txIndex); err != nil {
		util.Errorf("Failed to persist processed tx %d: %v", txIndex, err)
	}

	util.Infof("Topped up miner %s", miner)
	return nil
}

// TokensToCycles converts an upstream token amount (1e8 scale) into worker
// resource cycles at the fixed 0.6 USD/token, 1.35 USD/T-cycles rate
func TokensToCycles(tokenAmount uint64) uint64 {
	actualTokens := float64(tokenAmount) / 100000000.0
	dollars := actualTokens * 0.6
	cyclesPerDollar := 1_000_000_000_000.0 / 1.35
	return uint64(dollars * cyclesPerDollar)
}

// ---- Queries ----

// GetCurrentBlock returns the open template, or nil when none is published
func (l *Ledger) GetCurrentBlock() *chain.Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.CurrentBlock == nil {
		return nil
	}
	block := *l.state.CurrentBlock
	return &block
}

// GetLatestBlock returns the most recently committed block
func (l *Ledger) GetLatestBlock() (*chain.Block, error) {
	return l.store.LatestBlock()
}

// GetAllBlocks returns the committed chain
func (l *Ledger) GetAllBlocks() ([]*chain.Block, error) {
	return l.store.AllBlocks()
}

// GetAllStats returns the full solution telemetry log
func (l *Ledger) GetAllStats() ([]*chain.Stats, error) {
	return l.store.AllStats()
}

// GetStats returns one telemetry entry by index
func (l *Ledger) GetStats(index uint64) (*chain.Stats, error) {
	return l.store.GetStats(index)
}

// GetDifficulty returns the current difficulty
func (l *Ledger) GetDifficulty() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.CurrentDifficulty
}

// BlockCount returns the committed chain length (genesis included)
func (l *Ledger) BlockCount() (uint64, error) {
	return l.store.BlockCount()
}

// GetCurrentRewards returns the coinbase at the current chain length
func (l *Ledger) GetCurrentRewards() (uint64, error) {
	count, err := l.store.BlockCount()
	if err != nil {
		return 0, err
	}
	return l.cfg.Chain.CoinbaseRewards >> (count / l.cfg.Chain.BlockHalving), nil
}

// currentRewardsLocked computes the coinbase during a commit; the block has
// already been appended at this point, matching the original accounting
func (l *Ledger) currentRewardsLocked() uint64 {
	count, err := l.store.BlockCount()
	if err != nil {
		util.Warnf("Failed to read chain length for rewards: %v", err)
		return 0
	}
	return l.cfg.Chain.CoinbaseRewards >> (count / l.cfg.Chain.BlockHalving)
}

// GetNextHalving returns how many blocks remain until the coinbase halves
func (l *Ledger) GetNextHalving() (uint64, error) {
	count, err := l.store.BlockCount()
	if err != nil {
		return 0, err
	}
	return l.cfg.Chain.BlockHalving - (count % l.cfg.Chain.BlockHalving), nil
}

// GetMempool returns the pending transactions in admission order
func (l *Ledger) GetMempool() []chain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	mempool := make([]chain.Transaction, len(l.state.Mempool))
	copy(mempool, l.state.Mempool)
	return mempool
}

// GetBalanceOf returns an account's settled balance
func (l *Ledger) GetBalanceOf(user chain.Principal) (uint64, error) {
	return l.store.GetBalance(user)
}

// GetMiners returns the workers owned by a principal
func (l *Ledger) GetMiners(owner chain.Principal) []chain.Principal {
	l.mu.Lock()
	defer l.mu.Unlock()
	miners := make([]chain.Principal, len(l.state.OwnerToMiners[owner]))
	copy(miners, l.state.OwnerToMiners[owner])
	return miners
}

// GetMinerCount returns the number of registered workers
func (l *Ledger) GetMinerCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state.MinerToOwner)
}

// GetState returns a snapshot of the in-memory state
func (l *Ledger) GetState() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := l.state
	snapshot.Mempool = append([]chain.Transaction(nil), l.state.Mempool...)
	snapshot.PendingBalance = copyMap(l.state.PendingBalance)
	snapshot.MinerToOwner = copyMap(l.state.MinerToOwner)
	snapshot.OwnerMinedBlocks = copyMap(l.state.OwnerMinedBlocks)
	snapshot.MinerBurnedCycles = copyMap(l.state.MinerBurnedCycles)
	snapshot.OwnerToMiners = make(map[chain.Principal][]chain.Principal, len(l.state.OwnerToMiners))
	for owner, miners := range l.state.OwnerToMiners {
		snapshot.OwnerToMiners[owner] = append([]chain.Principal(nil), miners...)
	}
	if l.state.CurrentBlock != nil {
		block := *l.state.CurrentBlock
		snapshot.CurrentBlock = &block
	}
	return snapshot
}

// GetLeaderboard returns the top ten owners by mined blocks
func (l *Ledger) GetLeaderboard() []LeaderboardEntry {
	l.mu.Lock()
	entries := make([]LeaderboardEntry, 0, len(l.state.OwnerMinedBlocks))
	for owner, blocks := range l.state.OwnerMinedBlocks {
		entries = append(entries, LeaderboardEntry{
			Owner:      owner,
			MinerCount: len(l.state.OwnerToMiners[owner]),
			BlockCount: blocks,
		})
	}
	l.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].BlockCount != entries[j].BlockCount {
			return entries[i].BlockCount > entries[j].BlockCount
		}
		return entries[i].Owner < entries[j].Owner
	})

	if len(entries) > 10 {
		entries = entries[:10]
	}
	return entries
}

func (l *Ledger) emit(event Event) {
	if l.eventFunc != nil {
		l.eventFunc(event)
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
