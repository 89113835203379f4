package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-redis/redis/v8"

	"github.com/bil-network/bil-node/internal/chain"
	"github.com/bil-network/bil-node/internal/util"
)

const (
	keyPrefix = "bil:"

	// Append-only logs
	keyChain = keyPrefix + "chain"
	keyStats = keyPrefix + "stats"
	keyTxLog = keyPrefix + "txlog"

	// Maps
	keyMiners      = keyPrefix + "miners"
	keyBalances    = keyPrefix + "balances"
	keyBlocksMined = keyPrefix + "blocksmined"

	// Counters
	keyBurnedExe        = keyPrefix + "counters:burned"
	keyTransactionCount = keyPrefix + "counters:txcount"
	keyAverageBlockTime = keyPrefix + "counters:avgblocktime"
	keyDifficulty       = keyPrefix + "counters:difficulty"

	// Singleton, cleared and rewritten on each template update
	keyCurrentBlock = keyPrefix + "currentblock"
)

// RedisClient wraps Redis operations for the chain node. Complex records
// (blocks, stats, miner bindings) are stored as CBOR; scalar counters as
// plain integers.
type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisClient creates a new Redis client
func NewRedisClient(url, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	util.Info("Connected to Redis at ", url)
	return &RedisClient{client: client, ctx: ctx}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

func encode(v interface{}) ([]byte, error) {
	return cbor.Marshal(v)
}

func decode(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}

// AppendBlock appends a block to the chain log
func (r *RedisClient) AppendBlock(block *chain.Block) error {
	data, err := encode(block)
	if err != nil {
		return err
	}
	return r.client.RPush(r.ctx, keyChain, data).Err()
}

// BlockCount returns the chain log length
func (r *RedisClient) BlockCount() (uint64, error) {
	n, err := r.client.LLen(r.ctx, keyChain).Result()
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// LatestBlock returns the most recently appended block, or nil on an empty log
func (r *RedisClient) LatestBlock() (*chain.Block, error) {
	data, err := r.client.LIndex(r.ctx, keyChain, -1).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var block chain.Block
	if err := decode(data, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetBlock returns the block at the given log index, or nil when out of range
func (r *RedisClient) GetBlock(index uint64) (*chain.Block, error) {
	data, err := r.client.LIndex(r.ctx, keyChain, int64(index)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var block chain.Block
	if err := decode(data, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// AllBlocks returns the full chain in append order
func (r *RedisClient) AllBlocks() ([]*chain.Block, error) {
	results, err := r.client.LRange(r.ctx, keyChain, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	blocks := make([]*chain.Block, 0, len(results))
	for _, raw := range results {
		var block chain.Block
		if err := decode([]byte(raw), &block); err != nil {
			return nil, err
		}
		blocks = append(blocks, &block)
	}
	return blocks, nil
}

// AppendStats appends per-solution telemetry to the stats log
func (r *RedisClient) AppendStats(stats *chain.Stats) error {
	data, err := encode(stats)
	if err != nil {
		return err
	}
	return r.client.RPush(r.ctx, keyStats, data).Err()
}

// GetStats returns the stats entry at the given index, or nil
func (r *RedisClient) GetStats(index uint64) (*chain.Stats, error) {
	data, err := r.client.LIndex(r.ctx, keyStats, int64(index)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stats chain.Stats
	if err := decode(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// AllStats returns the full stats log
func (r *RedisClient) AllStats() ([]*chain.Stats, error) {
	results, err := r.client.LRange(r.ctx, keyStats, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	all := make([]*chain.Stats, 0, len(results))
	for _, raw := range results {
		var stats chain.Stats
		if err := decode([]byte(raw), &stats); err != nil {
			return nil, err
		}
		all = append(all, &stats)
	}
	return all, nil
}

// AppendProcessedTx records a consumed upstream transaction index
func (r *RedisClient) AppendProcessedTx(index uint64) error {
	return r.client.RPush(r.ctx, keyTxLog, strconv.FormatUint(index, 10)).Err()
}

// ProcessedTxs returns every consumed upstream transaction index
func (r *RedisClient) ProcessedTxs() ([]uint64, error) {
	results, err := r.client.LRange(r.ctx, keyTxLog, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	indices := make([]uint64, 0, len(results))
	for _, raw := range results {
		idx, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

// InsertMiner persists a worker→owner binding
func (r *RedisClient) InsertMiner(miner, owner chain.Principal, txIndex uint64) error {
	data, err := encode(&MinerRecord{Owner: owner, TxIndex: txIndex})
	if err != nil {
		return err
	}
	return r.client.HSet(r.ctx, keyMiners, string(miner), data).Err()
}

// MinerOwners returns all worker→owner bindings
func (r *RedisClient) MinerOwners() (map[chain.Principal]MinerRecord, error) {
	results, err := r.client.HGetAll(r.ctx, keyMiners).Result()
	if err != nil {
		return nil, err
	}
	miners := make(map[chain.Principal]MinerRecord, len(results))
	for miner, raw := range results {
		var rec MinerRecord
		if err := decode([]byte(raw), &rec); err != nil {
			return nil, err
		}
		miners[chain.Principal(miner)] = rec
	}
	return miners, nil
}

// MinerCount returns the number of registered workers
func (r *RedisClient) MinerCount() (uint64, error) {
	n, err := r.client.HLen(r.ctx, keyMiners).Result()
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// AddBalance credits an account
func (r *RedisClient) AddBalance(user chain.Principal, amount uint64) error {
	return r.client.HIncrBy(r.ctx, keyBalances, string(user), int64(amount)).Err()
}

// SubBalance debits an account, saturating at zero
func (r *RedisClient) SubBalance(user chain.Principal, amount uint64) error {
	balance, err := r.GetBalance(user)
	if err != nil {
		return err
	}
	if amount > balance {
		amount = balance
	}
	return r.client.HIncrBy(r.ctx, keyBalances, string(user), -int64(amount)).Err()
}

// GetBalance returns an account balance; unknown accounts hold zero
func (r *RedisClient) GetBalance(user chain.Principal) (uint64, error) {
	raw, err := r.client.HGet(r.ctx, keyBalances, string(user)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

// AddBlockMined increments an owner's mined-block count
func (r *RedisClient) AddBlockMined(owner chain.Principal) error {
	return r.client.HIncrBy(r.ctx, keyBlocksMined, string(owner), 1).Err()
}

// BlocksMined returns mined-block counts per owner
func (r *RedisClient) BlocksMined() (map[chain.Principal]uint64, error) {
	results, err := r.client.HGetAll(r.ctx, keyBlocksMined).Result()
	if err != nil {
		return nil, err
	}
	counts := make(map[chain.Principal]uint64, len(results))
	for owner, raw := range results {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		counts[chain.Principal(owner)] = n
	}
	return counts, nil
}

// AddBurnedExe accumulates the burned upstream-token counter
func (r *RedisClient) AddBurnedExe(amount uint64) error {
	return r.client.IncrBy(r.ctx, keyBurnedExe, int64(amount)).Err()
}

// GetBurnedExe returns the burned upstream-token counter
func (r *RedisClient) GetBurnedExe() (uint64, error) {
	return r.getCounter(keyBurnedExe)
}

// AddTransactionCount accumulates the settled-transaction counter
func (r *RedisClient) AddTransactionCount(n uint64) error {
	return r.client.IncrBy(r.ctx, keyTransactionCount, int64(n)).Err()
}

// GetTransactionCount returns the settled-transaction counter
func (r *RedisClient) GetTransactionCount() (uint64, error) {
	return r.getCounter(keyTransactionCount)
}

// SetAverageBlockTime stores the running average solve time
func (r *RedisClient) SetAverageBlockTime(ns uint64) error {
	return r.client.Set(r.ctx, keyAverageBlockTime, strconv.FormatUint(ns, 10), 0).Err()
}

// GetAverageBlockTime returns the running average solve time
func (r *RedisClient) GetAverageBlockTime() (uint64, error) {
	return r.getCounter(keyAverageBlockTime)
}

// SetDifficulty stores the retargeted difficulty
func (r *RedisClient) SetDifficulty(d uint32) error {
	return r.client.Set(r.ctx, keyDifficulty, strconv.FormatUint(uint64(d), 10), 0).Err()
}

// GetDifficulty returns the stored difficulty; zero when never set
func (r *RedisClient) GetDifficulty() (uint32, error) {
	n, err := r.getCounter(keyDifficulty)
	return uint32(n), err
}

func (r *RedisClient) getCounter(key string) (uint64, error) {
	raw, err := r.client.Get(r.ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

// SetCurrentBlock clears and rewrites the open template singleton
func (r *RedisClient) SetCurrentBlock(block *chain.Block) error {
	data, err := encode(block)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Del(r.ctx, keyCurrentBlock)
	pipe.Set(r.ctx, keyCurrentBlock, data, 0)
	_, err = pipe.Exec(r.ctx)
	return err
}

// CurrentBlock returns the persisted open template, or nil when none is stored
func (r *RedisClient) CurrentBlock() (*chain.Block, error) {
	data, err := r.client.Get(r.ctx, keyCurrentBlock).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var block chain.Block
	if err := decode(data, &block); err != nil {
		return nil, err
	}
	return &block, nil
}
