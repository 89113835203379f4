// Package upstream provides the client for the external ICRC-1 token ledger
// used for miner-creation payments, burns, and BIL minting.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bil-network/bil-node/internal/chain"
	"github.com/bil-network/bil-node/internal/util"
)

// Transaction kinds reported by the token ledger
const (
	KindBurn     = "burn"
	KindMint     = "mint"
	KindTransfer = "transfer"
)

// Account identifies a token-ledger account
type Account struct {
	Owner chain.Principal `json:"owner"`
}

// Transfer is the transfer variant of a ledger transaction
type Transfer struct {
	From   Account `json:"from"`
	To     Account `json:"to"`
	Amount uint64  `json:"amount"`
}

// Transaction is a token-ledger transaction record. Transfer is set only for
// transfer records; burn and mint records carry no variant payload.
type Transaction struct {
	Kind      string    `json:"kind"`
	Index     uint64    `json:"index"`
	Timestamp uint64    `json:"timestamp"`
	Transfer  *Transfer `json:"transfer,omitempty"`
}

// TransferArg is the argument of icrc1_transfer
type TransferArg struct {
	To     Account `json:"to"`
	Amount uint64  `json:"amount"`
}

// BurnArgs is the argument of burn
type BurnArgs struct {
	Amount uint64 `json:"amount"`
}

// TokenLedger is the surface the node uses; tests substitute a fake.
type TokenLedger interface {
	GetTransaction(ctx context.Context, index uint64) (*Transaction, error)
	Icrc1Transfer(ctx context.Context, arg TransferArg) (uint64, error)
	Burn(ctx context.Context, args BurnArgs) (uint64, error)
}

// Client talks JSON-RPC to the token ledger
type Client struct {
	url       string
	timeout   time.Duration
	client    *http.Client
	requestID uint64

	// Health tracking
	mu           sync.RWMutex
	healthy      bool
	successCount int
	failCount    int
}

// NewClient creates a token-ledger client
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:     url,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
		healthy: true,
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      uint64      `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC round trip, classifying transport failures
func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      atomic.AddUint64(&c.requestID, 1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return &CallError{Method: method, Reason: ReasonInternalError, Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &CallError{Method: method, Reason: ReasonInternalError, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.recordFailure()
		return &CallError{Method: method, Reason: ReasonTransientInternalError, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure()
		return &CallError{Method: method, Reason: ReasonTransientInternalError, Message: err.Error()}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		c.recordFailure()
		return &CallError{Method: method, Reason: ReasonInternalError, Message: fmt.Sprintf("decoding response: %v", err)}
	}

	if rpcResp.Error != nil {
		c.recordFailure()
		return &CallError{Method: method, Reason: classifyRPCError(rpcResp.Error.Code), Message: rpcResp.Error.Message}
	}

	c.recordSuccess()

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return &CallError{Method: method, Reason: ReasonInternalError, Message: fmt.Sprintf("decoding result: %v", err)}
		}
	}
	return nil
}

// GetTransaction fetches a ledger transaction by index; a missing index is an
// error ("Block not found") rather than a nil record.
func (c *Client) GetTransaction(ctx context.Context, index uint64) (*Transaction, error) {
	var result *Transaction
	if err := c.call(ctx, "get_transaction", map[string]uint64{"index": index}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("Block not found")
	}
	util.Debugf("Fetched upstream transaction %d (%s)", result.Index, result.Kind)
	return result, nil
}

type transferResult struct {
	Ok  *uint64 `json:"ok,omitempty"`
	Err *string `json:"err,omitempty"`
}

// Icrc1Transfer issues a token transfer from the node's ledger account
func (c *Client) Icrc1Transfer(ctx context.Context, arg TransferArg) (uint64, error) {
	var result transferResult
	if err := c.call(ctx, "icrc1_transfer", arg, &result); err != nil {
		return 0, err
	}
	if result.Err != nil {
		return 0, fmt.Errorf("icrc1_transfer: %s", *result.Err)
	}
	if result.Ok == nil {
		return 0, fmt.Errorf("icrc1_transfer: empty result")
	}
	return *result.Ok, nil
}

// Burn destroys tokens held by the node's ledger account
func (c *Client) Burn(ctx context.Context, args BurnArgs) (uint64, error) {
	var result transferResult
	if err := c.call(ctx, "burn", args, &result); err != nil {
		return 0, err
	}
	if result.Err != nil {
		return 0, fmt.Errorf("burn: %s", *result.Err)
	}
	if result.Ok == nil {
		return 0, fmt.Errorf("burn: empty result")
	}
	return *result.Ok, nil
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successCount++
	c.healthy = true
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failCount++
	if c.failCount > c.successCount {
		c.healthy = false
	}
}

// Healthy reports whether the last calls have been succeeding
func (c *Client) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

// Counts returns the success/failure totals for monitoring
func (c *Client) Counts() (success, fail int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.successCount, c.failCount
}
