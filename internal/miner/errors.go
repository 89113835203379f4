package miner

import "errors"

// ErrUnauthorized rejects control messages from anyone but the bound ledger
var ErrUnauthorized = errors.New("caller is not authorized")
