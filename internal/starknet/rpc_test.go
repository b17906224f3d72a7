package starknet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/gatewayctl/internal/txn"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// fakeNode is a minimal Starknet JSON-RPC server.
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]func(params []json.RawMessage) (any, *rpcError)
	calls    map[string]int
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	n := &fakeNode{
		handlers: make(map[string]func([]json.RawMessage) (any, *rpcError)),
		calls:    make(map[string]int),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		n.mu.Lock()
		n.calls[req.Method]++
		h, ok := n.handlers[req.Method]
		n.mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if !ok {
			resp["error"] = rpcError{Code: -32601, Message: "method not found"}
		} else if result, rerr := h(req.Params); rerr != nil {
			resp["error"] = rerr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return n, srv
}

func (n *fakeNode) handle(method string, h func(params []json.RawMessage) (any, *rpcError)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

func (n *fakeNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func dialTestReader(t *testing.T, url string) *Reader {
	t.Helper()
	r, err := DialReader(context.Background(), url, ReaderOptions{RateLimitRPS: 1000, RateLimitBurst: 100})
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestReaderChainID(t *testing.T) {
	node, srv := newFakeNode(t)
	node.handle("starknet_chainId", func([]json.RawMessage) (any, *rpcError) {
		return "0x534e5f5345504f4c4941", nil
	})

	id, err := dialTestReader(t, srv.URL).ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SN_SEPOLIA", id)
}

func TestReaderTransactionStatus(t *testing.T) {
	node, srv := newFakeNode(t)
	node.handle("starknet_getTransactionStatus", func(params []json.RawMessage) (any, *rpcError) {
		var hash string
		_ = json.Unmarshal(params[0], &hash)
		switch hash {
		case "0xok":
			return map[string]string{"finality_status": "ACCEPTED_ON_L2", "execution_status": "SUCCEEDED"}, nil
		case "0xreverted":
			return map[string]string{"finality_status": "ACCEPTED_ON_L2", "execution_status": "REVERTED"}, nil
		default:
			return nil, &rpcError{Code: 29, Message: "Transaction hash not found"}
		}
	})
	node.handle("starknet_getTransactionReceipt", func([]json.RawMessage) (any, *rpcError) {
		return map[string]string{"revert_reason": "Caller is not the owner"}, nil
	})

	r := dialTestReader(t, srv.URL)

	receipt, err := r.TransactionStatus(context.Background(), "0xok")
	require.NoError(t, err)
	assert.True(t, receipt.Accepted())
	assert.Equal(t, "0xok", receipt.Hash)

	receipt, err = r.TransactionStatus(context.Background(), "0xreverted")
	require.NoError(t, err)
	assert.True(t, receipt.Failed())
	assert.Equal(t, txn.ExecutionReverted, receipt.ExecutionStatus)
	assert.Equal(t, "Caller is not the owner", receipt.RevertReason)

	_, err = r.TransactionStatus(context.Background(), "0xunknown")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestReaderCall(t *testing.T) {
	node, srv := newFakeNode(t)
	var got functionCall
	var block string
	node.handle("starknet_call", func(params []json.RawMessage) (any, *rpcError) {
		_ = json.Unmarshal(params[0], &got)
		_ = json.Unmarshal(params[1], &block)
		if got.ContractAddress == "0xdead" {
			return nil, &rpcError{Code: 20, Message: "Contract not found"}
		}
		return []string{"0x1"}, nil
	})

	r := dialTestReader(t, srv.URL)

	out, err := r.Call(context.Background(), "0xabc", "is_token_supported", []string{"0x53c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"0x1"}, out)
	assert.Equal(t, "0xabc", got.ContractAddress)
	assert.Equal(t, Selector("is_token_supported"), got.EntryPointSelector)
	assert.Equal(t, []string{"0x53c"}, got.Calldata)
	assert.Equal(t, "latest", block)

	_, err = r.Call(context.Background(), "0xdead", "owner", nil)
	assert.ErrorIs(t, err, ErrContractNotFound)
}

func TestReaderClassDeclared(t *testing.T) {
	node, srv := newFakeNode(t)
	node.handle("starknet_getClass", func(params []json.RawMessage) (any, *rpcError) {
		var hash string
		_ = json.Unmarshal(params[1], &hash)
		switch hash {
		case "0xknown":
			return map[string]any{"sierra_program": []string{}, "abi": "[]"}, nil
		case "0xunknown":
			return nil, &rpcError{Code: 28, Message: "Class hash not found"}
		default:
			return nil, &rpcError{Code: -32603, Message: "internal error"}
		}
	})

	r := dialTestReader(t, srv.URL)

	declared, err := r.ClassDeclared(context.Background(), "0xknown")
	require.NoError(t, err)
	assert.True(t, declared)

	declared, err = r.ClassDeclared(context.Background(), "0xunknown")
	require.NoError(t, err)
	assert.False(t, declared)

	_, err = r.ClassDeclared(context.Background(), "0xbroken")
	assert.Error(t, err)
	assert.Equal(t, 3, node.count("starknet_getClass"))
}
