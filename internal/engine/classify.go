package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
	"github.com/sudostake/sudostake-cli/internal/model"
)

// Soft-failure event names emitted by the vault contract. The transaction
// succeeds on-chain but the business outcome is a rejection.
const (
	EventInsufficientStake = "liquidity_request_failed_insufficient_stake"
	EventRepayFailed       = "repay_loan_failed"
	EventVaultMinted       = "vault_minted"
)

const eventJSONPrefix = "EVENT_JSON:"

// SoftFailureError tags the business-rule rejection kind so callers can
// branch on it without string matching.
type SoftFailureError struct {
	Kind string
}

func (e *SoftFailureError) Error() string {
	return "soft failure: " + e.Kind
}

// ChainEvent is one structured EVENT_JSON payload from a transaction log.
type ChainEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ParseEvents extracts structured events from log lines. Lines carrying the
// EVENT_JSON prefix are parsed; a malformed payload degrades to an event
// whose name is the raw line, so substring matching still catches it.
func ParseEvents(logs []string) []ChainEvent {
	var events []ChainEvent
	for _, line := range logs {
		idx := strings.Index(line, eventJSONPrefix)
		if idx < 0 {
			continue
		}
		payload := line[idx+len(eventJSONPrefix):]
		var event ChainEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil || event.Event == "" {
			events = append(events, ChainEvent{Event: line})
			continue
		}
		events = append(events, event)
	}
	return events
}

// logsContainEvent reports whether the logs carry the named event, either as
// a parsed EVENT_JSON payload or as a raw substring of a malformed or
// unprefixed line.
func logsContainEvent(logs []string, name string) bool {
	for _, event := range ParseEvents(logs) {
		if event.Event == name || strings.Contains(event.Event, name) {
			return true
		}
	}
	for _, line := range logs {
		if !strings.Contains(line, eventJSONPrefix) && strings.Contains(line, name) {
			return true
		}
	}
	return false
}

// ClassifyOutcome applies the shared failure taxonomy to a transaction
// outcome. A structured execution error always wins over soft-failure
// events; the raw panic message is preserved verbatim for operators.
func ClassifyOutcome(outcome model.TxOutcome, softEvents ...string) error {
	if msg := outcome.Status.ExecutionError(); msg != "" {
		return clierr.New(clierr.CodeContractPanic, fmt.Sprintf("contract panic: %s", msg))
	}
	logs := outcome.Logs()
	for _, name := range softEvents {
		if logsContainEvent(logs, name) {
			return clierr.Wrap(clierr.CodeSoftFailure, softFailureMessage(name), &SoftFailureError{Kind: name})
		}
	}
	return nil
}

func softFailureMessage(kind string) string {
	switch kind {
	case EventInsufficientStake:
		return "liquidity request rejected: the vault does not have enough staked NEAR to cover the collateral"
	case EventRepayFailed:
		return "loan repayment failed: funds could not be transferred to the lender, the request remains open"
	default:
		return "transaction rejected by contract event " + kind
	}
}

// MintedVault pulls the new vault account out of a mint transaction's
// vault_minted event.
func MintedVault(logs []string) (string, bool) {
	for _, event := range ParseEvents(logs) {
		if event.Event != EventVaultMinted {
			continue
		}
		var data struct {
			Vault string `json:"vault"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil || data.Vault == "" {
			continue
		}
		return data.Vault, true
	}
	return "", false
}
