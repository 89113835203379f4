package ledger

import "errors"

// Request-level rejections. The strings are part of the caller contract.
var (
	ErrAnonymous         = errors.New("caller is anonymous")
	ErrUnregisteredMiner = errors.New("Unregistered miner")
	ErrOutdatedChain     = errors.New("Block references outdated chain state")
	ErrHeightMismatch    = errors.New("Block height mismatch")
	ErrInvalidSolution   = errors.New("Invalid solution")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrCongested         = errors.New("network is congested, transactions can be processed in next block")
	ErrZeroAmount        = errors.New("amount must be greater than 0")
	ErrTxProcessed       = errors.New("transaction already processed")
	ErrNotFromCaller     = errors.New("transfer not from caller")
	ErrAmountTooLow      = errors.New("transfer amount too low")
	ErrWrongRecipient    = errors.New("transfer not to BIL canister")
	ErrExpectedTransfer  = errors.New("expected transfer")
	ErrMinerNotFound     = errors.New("miner not found")
	ErrTopupFailed       = errors.New("error topping up miner")
	ErrShuttingDown      = errors.New("ledger shutting down")
)
