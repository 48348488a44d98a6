package nearrpc

import (
	"context"
	"encoding/json"

	"github.com/sudostake/sudostake-cli/internal/engine"
	clierr "github.com/sudostake/sudostake-cli/internal/errors"
	"github.com/sudostake/sudostake-cli/internal/model"
	"github.com/sudostake/sudostake-cli/internal/neartx"
)

// Caller signs and submits change calls through the RPC node. It fetches a
// fresh nonce and block hash per transaction and submits exactly once;
// failed submissions surface to the operator instead of being replayed.
type Caller struct {
	client *Client
	key    neartx.KeyPair
}

func NewCaller(client *Client, key neartx.KeyPair) *Caller {
	return &Caller{client: client, key: key}
}

func (c *Caller) Call(ctx context.Context, session engine.Session, req engine.CallRequest) (model.TxOutcome, error) {
	args, err := json.Marshal(req.Args)
	if err != nil {
		return model.TxOutcome{}, clierr.Wrap(clierr.CodeInternal, "encode call args", err)
	}
	action := neartx.Action{FunctionCall: &neartx.FunctionCall{
		MethodName:   req.Method,
		Args:         args,
		Gas:          req.Gas,
		DepositYocto: req.DepositYocto,
	}}
	return c.submit(ctx, req.Receiver, action)
}

func (c *Caller) Transfer(ctx context.Context, session engine.Session, receiver, depositYocto string) (model.TxOutcome, error) {
	action := neartx.Action{Transfer: &neartx.Transfer{DepositYocto: depositYocto}}
	return c.submit(ctx, receiver, action)
}

func (c *Caller) submit(ctx context.Context, receiver string, action neartx.Action) (model.TxOutcome, error) {
	nonce, err := c.client.AccessKeyNonce(ctx, c.key.AccountID, c.key.PublicKeyString())
	if err != nil {
		return model.TxOutcome{}, err
	}
	blockHash, err := c.client.LatestBlockHash(ctx)
	if err != nil {
		return model.TxOutcome{}, err
	}

	signed, err := neartx.Sign(neartx.Transaction{
		SignerID:   c.key.AccountID,
		PublicKey:  c.key.PublicKey(),
		Nonce:      nonce + 1,
		ReceiverID: receiver,
		BlockHash:  blockHash,
		Actions:    []neartx.Action{action},
	}, c.key)
	if err != nil {
		return model.TxOutcome{}, err
	}
	return c.client.BroadcastTxCommit(ctx, signed)
}
