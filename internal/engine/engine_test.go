package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sudostake/sudostake-cli/internal/model"
)

// fakeViewer serves canned view-call responses keyed by contract and method.
// Delegation summaries query it from several goroutines at once.
type fakeViewer struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func viewKey(contract, method string) string {
	return contract + "/" + method
}

func (v *fakeViewer) CallFunction(ctx context.Context, contract, method string, args any, out any) error {
	key := viewKey(contract, method)
	v.mu.Lock()
	v.calls = append(v.calls, key)
	v.mu.Unlock()
	if err, ok := v.errs[key]; ok {
		return err
	}
	raw, ok := v.responses[key]
	if !ok {
		return fmt.Errorf("unexpected view call %s", key)
	}
	return json.Unmarshal([]byte(raw), out)
}

// fakeCaller records change calls and returns a scripted outcome.
type fakeCaller struct {
	outcome   model.TxOutcome
	err       error
	calls     []CallRequest
	transfers []string
}

func (c *fakeCaller) Call(ctx context.Context, session Session, req CallRequest) (model.TxOutcome, error) {
	c.calls = append(c.calls, req)
	return c.outcome, c.err
}

func (c *fakeCaller) Transfer(ctx context.Context, session Session, receiver, depositYocto string) (model.TxOutcome, error) {
	c.transfers = append(c.transfers, receiver+"/"+depositYocto)
	return c.outcome, c.err
}

type fakeIndexer struct {
	indexed []string
	err     error
}

func (i *fakeIndexer) IndexVault(ctx context.Context, vaultID string) error {
	i.indexed = append(i.indexed, vaultID)
	return i.err
}

type fakeRecorder struct {
	records []TxRecord
	err     error
}

func (r *fakeRecorder) Record(rec TxRecord) error {
	r.records = append(r.records, rec)
	return r.err
}

func successOutcome(hash string, logs ...string) model.TxOutcome {
	empty := ""
	var outcome model.TxOutcome
	outcome.Status.SuccessValue = &empty
	outcome.Transaction.Hash = hash
	outcome.TransactionOutcome.Outcome.Logs = logs
	outcome.TransactionOutcome.Outcome.GasBurnt = 2_000_000_000_000
	return outcome
}

func panicOutcome(msg string) model.TxOutcome {
	var outcome model.TxOutcome
	outcome.Status.Failure = &model.TxFailure{}
	outcome.Status.Failure.ActionError.Kind.FunctionCallError.ExecutionError = msg
	outcome.Transaction.Hash = "panic-tx"
	return outcome
}

func signingSession() Session {
	return Session{Network: "testnet", AccountID: "alice.testnet", Mode: SigningModeHeadless}
}

func newTestEngine(viewer Viewer, caller Caller, opts ...Option) *Engine {
	return New(viewer, caller, zerolog.Nop(), opts...)
}

func argsJSON(t *testing.T, args any) string {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return string(raw)
}
