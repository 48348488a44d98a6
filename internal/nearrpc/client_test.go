package nearrpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcutil/base58"

	"github.com/sudostake/sudostake-cli/internal/httpx"
	"github.com/sudostake/sudostake-cli/internal/model"
)

func bytesAsIntArray(data []byte) []int {
	out := make([]int, len(data))
	for i, b := range data {
		out[i] = int(b)
	}
	return out
}

func newTestServer(t *testing.T, handler func(method string, params json.RawMessage) (any, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		params, _ := json.Marshal(req.Params)
		result, rpcErr := handler(req.Method, params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestCallFunctionDecodesViewResult(t *testing.T) {
	stateJSON := []byte(`{
		"owner": "alice.testnet",
		"index": 1,
		"version": 3,
		"is_listed_for_takeover": false,
		"liquidity_request": {
			"token": "usdc.tkn.primitives.testnet",
			"amount": "500000000",
			"interest": "50000000",
			"collateral": "100000000000000000000000000",
			"duration": 2592000,
			"created_at": "1710000000000000000"
		},
		"accepted_offer": null,
		"liquidation": null,
		"active_validators": ["validator1.testnet"],
		"unstake_entries": [["validator2.testnet", {"amount": 5, "epoch_height": 101}]],
		"current_epoch": 105
	}`)

	srv := newTestServer(t, func(method string, params json.RawMessage) (any, *rpcError) {
		if method != "query" {
			t.Errorf("unexpected method %s", method)
		}
		var p struct {
			RequestType string `json:"request_type"`
			AccountID   string `json:"account_id"`
			MethodName  string `json:"method_name"`
			ArgsBase64  string `json:"args_base64"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			t.Errorf("decode params: %v", err)
		}
		if p.RequestType != "call_function" || p.MethodName != "get_vault_state" {
			t.Errorf("unexpected params %+v", p)
		}
		args, _ := base64.StdEncoding.DecodeString(p.ArgsBase64)
		if string(args) != "{}" {
			t.Errorf("unexpected args %s", args)
		}
		return callFunctionResult{Result: bytesAsIntArray(stateJSON), BlockHeight: 99}, nil
	})
	defer srv.Close()

	client := New(httpx.New(2*time.Second, 0), srv.URL)
	var state model.VaultState
	if err := client.CallFunction(context.Background(), "vault-0.nzaza.testnet", "get_vault_state", nil, &state); err != nil {
		t.Fatalf("CallFunction failed: %v", err)
	}
	if state.Owner != "alice.testnet" || state.LiquidityRequest == nil {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.LiquidityRequest.Amount.String() != "500000000" {
		t.Fatalf("unexpected amount %s", state.LiquidityRequest.Amount)
	}
	if entry, ok := state.UnstakeEntries["validator2.testnet"]; !ok || entry.EpochHeight != 101 || entry.Amount.String() != "5" {
		t.Fatalf("unexpected unstake entries %+v", state.UnstakeEntries)
	}
}

func TestCallFunctionSurfacesRPCError(t *testing.T) {
	srv := newTestServer(t, func(method string, params json.RawMessage) (any, *rpcError) {
		return nil, &rpcError{Name: "HANDLER_ERROR", Message: "server error", Data: json.RawMessage(`"contract not deployed"`)}
	})
	defer srv.Close()

	client := New(httpx.New(2*time.Second, 0), srv.URL)
	err := client.CallFunction(context.Background(), "missing.testnet", "get_vault_state", nil, &model.VaultState{})
	if err == nil {
		t.Fatal("expected rpc error")
	}
}

func TestAccessKeyNonceAndBlockHash(t *testing.T) {
	blockHash := make([]byte, 32)
	for i := range blockHash {
		blockHash[i] = byte(i + 1)
	}
	srv := newTestServer(t, func(method string, params json.RawMessage) (any, *rpcError) {
		switch method {
		case "query":
			return accessKeyResult{Nonce: 42}, nil
		case "block":
			return map[string]any{"header": map[string]any{"hash": base58.Encode(blockHash)}}, nil
		default:
			t.Errorf("unexpected method %s", method)
			return nil, nil
		}
	})
	defer srv.Close()

	client := New(httpx.New(2*time.Second, 0), srv.URL)
	nonce, err := client.AccessKeyNonce(context.Background(), "alice.testnet", "ed25519:abc")
	if err != nil || nonce != 42 {
		t.Fatalf("AccessKeyNonce = %d, %v", nonce, err)
	}

	hash, err := client.LatestBlockHash(context.Background())
	if err != nil {
		t.Fatalf("LatestBlockHash failed: %v", err)
	}
	if hash[0] != 1 || hash[31] != 32 {
		t.Fatalf("unexpected hash bytes %v", hash)
	}
}

func TestBroadcastTxCommit(t *testing.T) {
	var gotTx []byte
	srv := newTestServer(t, func(method string, params json.RawMessage) (any, *rpcError) {
		if method != "broadcast_tx_commit" {
			t.Errorf("unexpected method %s", method)
		}
		var p []string
		if err := json.Unmarshal(params, &p); err != nil || len(p) != 1 {
			t.Errorf("unexpected params %s", params)
		}
		gotTx, _ = base64.StdEncoding.DecodeString(p[0])
		return map[string]any{
			"status":      map[string]any{"SuccessValue": ""},
			"transaction": map[string]any{"hash": "tx123"},
			"transaction_outcome": map[string]any{
				"outcome": map[string]any{"logs": []string{}, "gas_burnt": 1000},
			},
			"receipts_outcome": []any{
				map[string]any{"outcome": map[string]any{"logs": []string{"EVENT_JSON:{\"event\":\"delegate_completed\"}"}, "gas_burnt": 2000}},
			},
		}, nil
	})
	defer srv.Close()

	client := New(httpx.New(2*time.Second, 0), srv.URL)
	outcome, err := client.BroadcastTxCommit(context.Background(), []byte{0xde, 0xad})
	if err != nil {
		t.Fatalf("BroadcastTxCommit failed: %v", err)
	}
	if string(gotTx) != string([]byte{0xde, 0xad}) {
		t.Fatalf("server saw tx %v", gotTx)
	}
	if outcome.Transaction.Hash != "tx123" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if logs := outcome.Logs(); len(logs) != 1 {
		t.Fatalf("unexpected logs %v", logs)
	}
	if outcome.GasBurnt() != 3000 {
		t.Fatalf("unexpected gas %d", outcome.GasBurnt())
	}
}
