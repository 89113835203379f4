package chain

import (
	"testing"

	"github.com/bil-network/bil-node/internal/util"
)

func TestGenesis(t *testing.T) {
	genesis := Genesis()

	if genesis.Header.Height != 0 {
		t.Errorf("genesis height = %d, want 0", genesis.Header.Height)
	}
	if !genesis.Header.PrevHash.IsZero() {
		t.Error("genesis prev_hash should be zero")
	}
	if !genesis.Header.MerkleRoot.IsZero() {
		t.Error("genesis merkle_root should be zero")
	}
	if !genesis.Hash.IsZero() {
		t.Error("genesis hash should be zero")
	}
	if !genesis.Nonce.IsZero() {
		t.Error("genesis nonce should be zero")
	}
	if len(genesis.Transactions) != 0 {
		t.Errorf("genesis should carry no transactions, got %d", len(genesis.Transactions))
	}
	if genesis.Header.Version != BlockVersion {
		t.Errorf("genesis version = %d, want %d", genesis.Header.Version, BlockVersion)
	}
}

func TestNewBlockLinksPrev(t *testing.T) {
	prev := Genesis()
	txs := []Transaction{{Sender: "alice", Recipient: "bob", Amount: 100, Timestamp: 7}}

	block := NewBlock(prev, txs, 26, 1234)

	if block.Header.Height != 1 {
		t.Errorf("height = %d, want 1", block.Header.Height)
	}
	if !block.Header.PrevHash.Equal(prev.Hash) {
		t.Error("prev_hash should equal previous block hash")
	}
	if block.Header.Difficulty != 26 {
		t.Errorf("difficulty = %d, want 26", block.Header.Difficulty)
	}
	if block.Header.Timestamp != 1234 {
		t.Errorf("timestamp = %d, want 1234", block.Header.Timestamp)
	}
	if !block.Header.MerkleRoot.Equal(MerkleRoot(txs)) {
		t.Error("merkle root mismatch")
	}
	if !block.Hash.Equal(block.BlockHash()) {
		t.Error("template hash should be the full block hash")
	}
}

func TestSearchHashIgnoresHeightAndDifficulty(t *testing.T) {
	txs := []Transaction{{Sender: "a", Recipient: "b", Amount: 5, Timestamp: 1}}
	block := NewBlock(Genesis(), txs, 26, 99)

	base := block.SearchHash()

	modified := block
	modified.Header.Height = 42
	modified.Header.Difficulty = 7
	if !modified.SearchHash().Equal(base) {
		t.Error("search hash must not depend on height or difficulty")
	}

	// But it must depend on the nonce
	modified = block
	modified.Nonce = util.U128From64(1)
	if modified.SearchHash().Equal(base) {
		t.Error("search hash must depend on the nonce")
	}

	// And on the timestamp
	modified = block
	modified.Header.Timestamp = 100
	if modified.SearchHash().Equal(base) {
		t.Error("search hash must depend on the timestamp")
	}
}

func TestBlockHashCoversHeightAndDifficulty(t *testing.T) {
	block := NewBlock(Genesis(), nil, 26, 99)
	base := block.BlockHash()

	modified := block
	modified.Header.Height = 2
	if modified.BlockHash().Equal(base) {
		t.Error("block hash must depend on height")
	}

	modified = block
	modified.Header.Difficulty = 30
	if modified.BlockHash().Equal(base) {
		t.Error("block hash must depend on difficulty")
	}
}

func TestHashDeterminism(t *testing.T) {
	block := NewBlock(Genesis(), []Transaction{{Sender: "x", Recipient: "y", Amount: 1, Timestamp: 2}}, 26, 3)

	other := block
	if !block.SearchHash().Equal(other.SearchHash()) {
		t.Error("equal blocks must have equal search hashes")
	}
	if !block.BlockHash().Equal(other.BlockHash()) {
		t.Error("equal blocks must have equal block hashes")
	}
}

func TestMerkleRootEmpty(t *testing.T) {
	if !MerkleRoot(nil).IsZero() {
		t.Error("merkle of empty list should be zero")
	}
	if !MerkleRoot([]Transaction{}).IsZero() {
		t.Error("merkle of empty slice should be zero")
	}
}

func TestMerkleRootSingleLeaf(t *testing.T) {
	tx := Transaction{Sender: "alice", Recipient: "bob", Amount: 42, Timestamp: 9}

	root := MerkleRoot([]Transaction{tx})
	if !root.Equal(HashTransaction(tx)) {
		t.Error("single-leaf merkle root should be the leaf hash, unpaired")
	}
}

func TestMerkleRootOrderSensitive(t *testing.T) {
	a := Transaction{Sender: "a", Recipient: "b", Amount: 1}
	b := Transaction{Sender: "c", Recipient: "d", Amount: 2}

	if MerkleRoot([]Transaction{a, b}).Equal(MerkleRoot([]Transaction{b, a})) {
		t.Error("merkle root should depend on transaction order")
	}
}

func TestMerkleRootOddDuplicatesLast(t *testing.T) {
	a := Transaction{Sender: "a", Recipient: "b", Amount: 1}
	b := Transaction{Sender: "c", Recipient: "d", Amount: 2}
	c := Transaction{Sender: "e", Recipient: "f", Amount: 3}

	// With three leaves the last is duplicated, so [a,b,c] and [a,b,c,c]
	// reduce identically
	if !MerkleRoot([]Transaction{a, b, c}).Equal(MerkleRoot([]Transaction{a, b, c, c})) {
		t.Error("odd leaf count should duplicate the last leaf")
	}
}

func TestHashTransactionAmountSensitive(t *testing.T) {
	a := Transaction{Sender: "s", Recipient: "r", Amount: 10}
	b := Transaction{Sender: "s", Recipient: "r", Amount: 11}

	if HashTransaction(a).Equal(HashTransaction(b)) {
		t.Error("transaction hash should depend on amount")
	}

	// Timestamp is not part of the leaf hash
	c := a
	c.Timestamp = 999
	if !HashTransaction(a).Equal(HashTransaction(c)) {
		t.Error("transaction hash should not depend on timestamp")
	}
}

func TestTransactionEqual(t *testing.T) {
	base := Transaction{Sender: "s", Recipient: "r", Amount: 10, Timestamp: 5}

	tests := []struct {
		name  string
		other Transaction
		want  bool
	}{
		{"identical", base, true},
		{"different sender", Transaction{Sender: "x", Recipient: "r", Amount: 10, Timestamp: 5}, false},
		{"different recipient", Transaction{Sender: "s", Recipient: "x", Amount: 10, Timestamp: 5}, false},
		{"different amount", Transaction{Sender: "s", Recipient: "r", Amount: 11, Timestamp: 5}, false},
		{"different timestamp", Transaction{Sender: "s", Recipient: "r", Amount: 10, Timestamp: 6}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBlockEqual(t *testing.T) {
	block := NewBlock(Genesis(), []Transaction{{Sender: "a", Recipient: "b", Amount: 1}}, 26, 7)
	same := block

	if !block.Equal(&same) {
		t.Error("identical blocks should be equal")
	}
	if block.Equal(nil) {
		t.Error("no block should equal nil")
	}

	diff := block
	diff.Nonce = util.U128From64(99)
	if block.Equal(&diff) {
		t.Error("blocks with different nonces should differ")
	}

	diff = block
	diff.Transactions = nil
	if block.Equal(&diff) {
		t.Error("blocks with different transactions should differ")
	}
}

func TestPrincipalIsAnonymous(t *testing.T) {
	if !Anonymous.IsAnonymous() {
		t.Error("Anonymous should be anonymous")
	}
	if !Principal("").IsAnonymous() {
		t.Error("empty principal should be anonymous")
	}
	if Principal("alice").IsAnonymous() {
		t.Error("named principal should not be anonymous")
	}
}
