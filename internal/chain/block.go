package chain

import (
	"encoding/binary"
	"strconv"

	"github.com/bil-network/bil-node/internal/bilhash"
	"github.com/bil-network/bil-node/internal/util"
)

// BlockVersion is the only header version in circulation
const BlockVersion uint32 = 1

// Genesis returns the height-0 block: all hashes zero, no transactions
func Genesis() Block {
	return Block{
		Header: BlockHeader{
			Version:    BlockVersion,
			Height:     0,
			PrevHash:   util.Uint128{},
			MerkleRoot: util.Uint128{},
			Timestamp:  0,
			Difficulty: 0,
		},
		Transactions: []Transaction{},
		Nonce:        util.Uint128{},
		Hash:         util.Uint128{},
	}
}

// NewBlock assembles the next block template on top of prev. The nonce starts
// at zero; Hash is the full block hash of the template as assembled.
func NewBlock(prev Block, transactions []Transaction, difficulty uint32, timestamp uint64) Block {
	block := Block{
		Header: BlockHeader{
			Version:    BlockVersion,
			Height:     prev.Header.Height + 1,
			PrevHash:   prev.Hash,
			MerkleRoot: MerkleRoot(transactions),
			Timestamp:  timestamp,
			Difficulty: difficulty,
		},
		Transactions: transactions,
		Nonce:        util.Uint128{},
	}
	block.Hash = block.BlockHash()
	return block
}

// SearchHash is the proof-of-work hash: it covers
// version | prev_hash | merkle_root | timestamp | nonce (all little-endian)
// and deliberately omits height and difficulty. Miners and the ledger must
// compute it over the identical byte sequence.
func (b *Block) SearchHash() util.Uint128 {
	data := make([]byte, 0, 60)

	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], b.Header.Version)
	data = append(data, v[:]...)

	prev := b.Header.PrevHash.BytesLE()
	data = append(data, prev[:]...)

	merkle := b.Header.MerkleRoot.BytesLE()
	data = append(data, merkle[:]...)

	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], b.Header.Timestamp)
	data = append(data, ts[:]...)

	nonce := b.Nonce.BytesLE()
	data = append(data, nonce[:]...)

	return bilhash.Hash128(data)
}

// BlockHash is the full hash, folding in height and difficulty as well
func (b *Block) BlockHash() util.Uint128 {
	data := make([]byte, 0, 72)

	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], b.Header.Version)
	data = append(data, v[:]...)

	var h [8]byte
	binary.LittleEndian.PutUint64(h[:], b.Header.Height)
	data = append(data, h[:]...)

	prev := b.Header.PrevHash.BytesLE()
	data = append(data, prev[:]...)

	merkle := b.Header.MerkleRoot.BytesLE()
	data = append(data, merkle[:]...)

	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], b.Header.Timestamp)
	data = append(data, ts[:]...)

	var d [4]byte
	binary.LittleEndian.PutUint32(d[:], b.Header.Difficulty)
	data = append(data, d[:]...)

	nonce := b.Nonce.BytesLE()
	data = append(data, nonce[:]...)

	return bilhash.Hash128(data)
}

// HashTransaction hashes a merkle leaf: the concatenated sender and recipient
// principals plus the decimal amount
func HashTransaction(tx Transaction) util.Uint128 {
	s := string(tx.Sender) + string(tx.Recipient) + strconv.FormatUint(tx.Amount, 10)
	return bilhash.Hash128([]byte(s))
}

// MerkleRoot combines transaction hashes pairwise, duplicating the last leaf
// on odd levels. An empty list yields a zero root.
func MerkleRoot(transactions []Transaction) util.Uint128 {
	if len(transactions) == 0 {
		return util.Uint128{}
	}

	hashes := make([]util.Uint128, len(transactions))
	for i, tx := range transactions {
		hashes[i] = HashTransaction(tx)
	}

	for len(hashes) > 1 {
		if len(hashes)%2 != 0 {
			hashes = append(hashes, hashes[len(hashes)-1])
		}

		next := make([]util.Uint128, 0, len(hashes)/2)
		for i := 0; i < len(hashes); i += 2 {
			left := hashes[i].BytesLE()
			right := hashes[i+1].BytesLE()
			pair := make([]byte, 0, 32)
			pair = append(pair, left[:]...)
			pair = append(pair, right[:]...)
			next = append(next, bilhash.Hash128(pair))
		}
		hashes = next
	}

	return hashes[0]
}

// Equal reports full structural equality of two blocks
func (b *Block) Equal(o *Block) bool {
	if o == nil {
		return false
	}
	if b.Header != o.Header || !b.Nonce.Equal(o.Nonce) || !b.Hash.Equal(o.Hash) {
		return false
	}
	if len(b.Transactions) != len(o.Transactions) {
		return false
	}
	for i := range b.Transactions {
		if !b.Transactions[i].Equal(o.Transactions[i]) {
			return false
		}
	}
	return true
}
