// Package chain defines the block, transaction, and principal types shared by
// the ledger, miners, and storage.
package chain

import "github.com/bil-network/bil-node/internal/util"

// Principal is an opaque account identifier in textual form.
type Principal string

// Anonymous is the caller identity of unauthenticated requests
const Anonymous Principal = "2vxsx-fae"

// IsAnonymous reports whether p is the anonymous principal (or empty)
func (p Principal) IsAnonymous() bool {
	return p == Anonymous || p == ""
}

func (p Principal) String() string {
	return string(p)
}

// TransactionArgs is the caller-supplied part of a transfer
type TransactionArgs struct {
	Recipient Principal `json:"recipient"`
	Amount    uint64    `json:"amount"`
}

// Transaction is a value transfer admitted to the mempool.
// Equality is structural, including Timestamp; mempool removal on block
// acceptance matches on the full struct.
type Transaction struct {
	Sender    Principal `json:"sender"`
	Recipient Principal `json:"recipient"`
	Amount    uint64    `json:"amount"`
	Timestamp uint64    `json:"timestamp"`
}

// BlockHeader carries the hashed consensus fields of a block
type BlockHeader struct {
	Version    uint32       `json:"version"`
	Height     uint64       `json:"height"`
	PrevHash   util.Uint128 `json:"prev_hash"`
	MerkleRoot util.Uint128 `json:"merkle_root"`
	Timestamp  uint64       `json:"timestamp"`
	Difficulty uint32       `json:"difficulty"`
}

// Block is a header plus its ordered transactions, the solving nonce, and the
// full block hash (computed over height and difficulty as well, unlike the
// search hash).
type Block struct {
	Header       BlockHeader   `json:"header"`
	Transactions []Transaction `json:"transactions"`
	Nonce        util.Uint128  `json:"nonce"`
	Hash         util.Uint128  `json:"hash"`
}

// Stats is the per-solution telemetry a worker submits with its block
type Stats struct {
	CyclesBurned uint64    `json:"cycles_burned"`
	Timestamp    uint64    `json:"timestamp"`
	SolveTime    uint64    `json:"solve_time"`
	Miner        Principal `json:"miner"`
}

// Equal reports structural equality of two transactions
func (t Transaction) Equal(o Transaction) bool {
	return t.Sender == o.Sender &&
		t.Recipient == o.Recipient &&
		t.Amount == o.Amount &&
		t.Timestamp == o.Timestamp
}
