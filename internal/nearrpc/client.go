package nearrpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcutil/base58"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
	"github.com/sudostake/sudostake-cli/internal/httpx"
	"github.com/sudostake/sudostake-cli/internal/model"
)

// Client speaks NEAR JSON-RPC 2.0 over HTTP POST.
type Client struct {
	http *httpx.Client
	url  string
}

func New(httpClient *httpx.Client, url string) *Client {
	return &Client{http: httpClient, url: url}
}

func (c *Client) URL() string { return c.url }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Name    string          `json:"name"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "sudostake",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "encode rpc request", err)
	}

	var resp rpcResponse
	if err := c.http.PostJSON(ctx, c.url, body, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		msg := fmt.Sprintf("rpc %s failed: %s", method, resp.Error.Message)
		if len(resp.Error.Data) > 0 {
			msg = fmt.Sprintf("%s (%s)", msg, string(resp.Error.Data))
		}
		return clierr.New(clierr.CodeUnavailable, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("decode rpc %s result", method), err)
	}
	return nil
}

type callFunctionResult struct {
	// Raw function return bytes; the RPC encodes them as an array of ints.
	Result      []int  `json:"result"`
	BlockHeight uint64 `json:"block_height"`
}

// CallFunction invokes a contract view method and decodes its JSON return
// value into out.
func (c *Client) CallFunction(ctx context.Context, contract, method string, args any, out any) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "encode view args", err)
	}
	if args == nil {
		argsJSON = []byte("{}")
	}

	var result callFunctionResult
	err = c.call(ctx, "query", map[string]any{
		"request_type": "call_function",
		"finality":     "optimistic",
		"account_id":   contract,
		"method_name":  method,
		"args_base64":  base64.StdEncoding.EncodeToString(argsJSON),
	}, &result)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	raw := make([]byte, len(result.Result))
	for i, b := range result.Result {
		if b < 0 || b > 255 {
			return clierr.New(clierr.CodeUnavailable, fmt.Sprintf("invalid byte %d in %s result", b, method))
		}
		raw[i] = byte(b)
	}
	if len(raw) == 0 {
		return clierr.New(clierr.CodeUnavailable, fmt.Sprintf("%s.%s returned no data", contract, method))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("decode %s.%s result", contract, method), err)
	}
	return nil
}

type accessKeyResult struct {
	Nonce uint64 `json:"nonce"`
}

// AccessKeyNonce fetches the current nonce for an account's access key.
func (c *Client) AccessKeyNonce(ctx context.Context, accountID, publicKey string) (uint64, error) {
	var result accessKeyResult
	err := c.call(ctx, "query", map[string]any{
		"request_type": "view_access_key",
		"finality":     "final",
		"account_id":   accountID,
		"public_key":   publicKey,
	}, &result)
	if err != nil {
		return 0, err
	}
	return result.Nonce, nil
}

type blockResult struct {
	Header struct {
		Hash string `json:"hash"`
	} `json:"header"`
}

// LatestBlockHash returns the hash of the latest final block, which anchors
// every transaction to a recent point in the chain.
func (c *Client) LatestBlockHash(ctx context.Context) ([32]byte, error) {
	var hash [32]byte
	var result blockResult
	if err := c.call(ctx, "block", map[string]any{"finality": "final"}, &result); err != nil {
		return hash, err
	}
	decoded := base58.Decode(result.Header.Hash)
	if len(decoded) != 32 {
		return hash, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("block hash %q is not 32 bytes", result.Header.Hash))
	}
	copy(hash[:], decoded)
	return hash, nil
}

// BroadcastTxCommit submits a signed transaction and waits for its outcome.
// It never retries: a change call is not idempotent from this side.
func (c *Client) BroadcastTxCommit(ctx context.Context, signedTx []byte) (model.TxOutcome, error) {
	var outcome model.TxOutcome
	params := []string{base64.StdEncoding.EncodeToString(signedTx)}
	if err := c.call(ctx, "broadcast_tx_commit", params, &outcome); err != nil {
		return model.TxOutcome{}, err
	}
	return outcome, nil
}
