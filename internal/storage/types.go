// Package storage provides durable chain state on Redis.
package storage

import "github.com/bil-network/bil-node/internal/chain"

// MinerRecord binds a worker to its owner and the upstream transaction index
// that funded its creation
type MinerRecord struct {
	Owner   chain.Principal `json:"owner"`
	TxIndex uint64          `json:"tx_index"`
}
