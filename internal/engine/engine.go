// Package engine drives the vault's liquidity-request lifecycle and
// delegation accounting. It never mutates financial state itself: the vault
// contract owns every balance, and the engine only reads state, decides which
// call to issue, and classifies the outcome.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sudostake/sudostake-cli/internal/model"
)

// SigningMode describes how a session can authorize change calls.
type SigningMode string

const (
	// SigningModeHeadless means a secret key is loaded and the session can
	// sign transactions itself.
	SigningModeHeadless SigningMode = "headless"
	// SigningModeView means no key is available; only view calls work.
	SigningModeView SigningMode = "view"
)

// Session carries the per-invocation signing identity. It replaces the
// process-wide account/signing globals of earlier revisions so one process
// can serve several vault owners concurrently.
type Session struct {
	Network   string
	AccountID string
	Mode      SigningMode
}

func (s Session) CanSign() bool {
	return s.Mode == SigningModeHeadless && s.AccountID != ""
}

// Viewer issues read-only contract view calls.
type Viewer interface {
	CallFunction(ctx context.Context, contract, method string, args any, out any) error
}

// CallRequest is one signed change call against a contract.
type CallRequest struct {
	Receiver     string
	Method       string
	Args         any
	Gas          uint64
	DepositYocto string
}

// Caller submits signed transactions and returns their chain outcome. It
// must not retry internally: the engine treats every submission as
// non-idempotent.
type Caller interface {
	Call(ctx context.Context, session Session, req CallRequest) (model.TxOutcome, error)
	Transfer(ctx context.Context, session Session, receiver, depositYocto string) (model.TxOutcome, error)
}

// Indexer registers vaults with the off-chain discovery index. Best-effort:
// the engine logs failures and never lets them change a financial outcome.
type Indexer interface {
	IndexVault(ctx context.Context, vaultID string) error
}

// TxRecord captures one submitted transaction for the local audit log.
type TxRecord struct {
	Network   string
	VaultID   string
	Method    string
	TxHash    string
	Status    string
	CreatedAt time.Time
}

// Recorder persists TxRecords. Like indexing, it is observability only.
type Recorder interface {
	Record(rec TxRecord) error
}

type Engine struct {
	viewer   Viewer
	caller   Caller
	indexer  Indexer
	recorder Recorder
	log      zerolog.Logger
	now      func() time.Time
}

type Option func(*Engine)

func WithIndexer(indexer Indexer) Option {
	return func(e *Engine) { e.indexer = indexer }
}

func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) { e.recorder = recorder }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(viewer Viewer, caller Caller, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		viewer: viewer,
		caller: caller,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// indexVault registers the vault with the off-chain index after a successful
// change. Failures are logged and swallowed; indexing is not part of the
// financial invariant.
func (e *Engine) indexVault(ctx context.Context, vaultID string) bool {
	if e.indexer == nil {
		return false
	}
	if err := e.indexer.IndexVault(ctx, vaultID); err != nil {
		e.log.Warn().Err(err).Str("vault", vaultID).Msg("vault indexing failed")
		return false
	}
	return true
}

// record appends to the local transaction log, best-effort.
func (e *Engine) record(session Session, vaultID, method string, outcome model.TxOutcome, callErr error) {
	if e.recorder == nil {
		return
	}
	status := "success"
	if callErr != nil {
		status = "failed"
	}
	rec := TxRecord{
		Network:   session.Network,
		VaultID:   vaultID,
		Method:    method,
		TxHash:    outcome.Transaction.Hash,
		Status:    status,
		CreatedAt: e.now().UTC(),
	}
	if err := e.recorder.Record(rec); err != nil {
		e.log.Warn().Err(err).Str("vault", vaultID).Str("method", method).Msg("tx log write failed")
	}
}
