package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Network   string    `json:"network"`
}

// Balance is a yocto-denominated u128. The RPC layer is inconsistent about
// encoding these: NearToken and U128 fields arrive as JSON strings while raw
// u128 struct fields arrive as numbers, so both forms decode.
type Balance string

func (b *Balance) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*b = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = Balance(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("balance must be a string or number: %w", err)
	}
	*b = Balance(n.String())
	return nil
}

func (b Balance) String() string {
	if b == "" {
		return "0"
	}
	return string(b)
}

// Timestamp is a nanosecond u64 that some RPC responses quote as a string.
type Timestamp uint64

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if trimmed == "null" || trimmed == "" {
		*t = 0
		return nil
	}
	v, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", trimmed, err)
	}
	*t = Timestamp(v)
	return nil
}

// LiquidityRequest mirrors the vault contract's open request record. Amount
// and interest are denominated in the requested token's minor units; the
// collateral is always yoctoNEAR.
type LiquidityRequest struct {
	Token      string    `json:"token"`
	Amount     Balance   `json:"amount"`
	Interest   Balance   `json:"interest"`
	Collateral Balance   `json:"collateral"`
	Duration   int64     `json:"duration"`
	CreatedAt  Timestamp `json:"created_at"`
}

type AcceptedOffer struct {
	Lender     string    `json:"lender"`
	AcceptedAt Timestamp `json:"accepted_at"`
}

type Liquidation struct {
	Liquidated Balance `json:"liquidated"`
}

type UnstakeEntry struct {
	Amount      Balance `json:"amount"`
	EpochHeight uint64  `json:"epoch_height"`
}

// UnstakeEntries decodes the contract's validator→entry mapping, which has
// shipped both as a list of [validator, entry] pairs and as a JSON object.
type UnstakeEntries map[string]UnstakeEntry

func (u *UnstakeEntries) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	out := UnstakeEntries{}
	if trimmed == "null" {
		*u = out
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var m map[string]UnstakeEntry
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		for k, v := range m {
			out[k] = v
		}
		*u = out
		return nil
	}

	var pairs []json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	for _, raw := range pairs {
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("unstake entry pair has %d elements", len(pair))
		}
		var validator string
		if err := json.Unmarshal(pair[0], &validator); err != nil {
			return err
		}
		var entry UnstakeEntry
		if err := json.Unmarshal(pair[1], &entry); err != nil {
			return err
		}
		out[validator] = entry
	}
	*u = out
	return nil
}

// VaultState is the read-only view returned by get_vault_state. It is owned
// by the contract; this process only reads and interprets it.
type VaultState struct {
	Owner               string            `json:"owner"`
	Index               uint64            `json:"index"`
	Version             uint64            `json:"version"`
	IsListedForTakeover bool              `json:"is_listed_for_takeover"`
	LiquidityRequest    *LiquidityRequest `json:"liquidity_request"`
	AcceptedOffer       *AcceptedOffer    `json:"accepted_offer"`
	Liquidation         *Liquidation      `json:"liquidation"`
	ActiveValidators    []string          `json:"active_validators"`
	UnstakeEntries      UnstakeEntries    `json:"unstake_entries"`
	CurrentEpoch        uint64            `json:"current_epoch"`
}

// ValidatorAccount is the staking pool's get_account view for one delegator.
type ValidatorAccount struct {
	AccountID       string  `json:"account_id"`
	StakedBalance   Balance `json:"staked_balance"`
	UnstakedBalance Balance `json:"unstaked_balance"`
	CanWithdraw     bool    `json:"can_withdraw"`
}

// DelegationEntry is the per-validator slice of a delegation summary. Entries
// are ephemeral query results; validator state shifts every epoch, so they
// are rebuilt on every call and never cached.
type DelegationEntry struct {
	Validator    string  `json:"validator"`
	StakedNear   string  `json:"staked_near,omitempty"`
	UnstakedNear string  `json:"unstaked_near,omitempty"`
	CanWithdraw  bool    `json:"can_withdraw"`
	UnlockEpoch  *uint64 `json:"unlock_epoch,omitempty"`
	CurrentEpoch *uint64 `json:"current_epoch,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// TxStatus is the execution status attached to a transaction outcome.
type TxStatus struct {
	SuccessValue *string    `json:"SuccessValue,omitempty"`
	Failure      *TxFailure `json:"Failure,omitempty"`
}

type TxFailure struct {
	ActionError struct {
		Kind struct {
			FunctionCallError struct {
				ExecutionError string `json:"ExecutionError"`
			} `json:"FunctionCallError"`
		} `json:"kind"`
	} `json:"ActionError"`
}

// ExecutionError returns the structured panic message, if any.
func (s TxStatus) ExecutionError() string {
	if s.Failure == nil {
		return ""
	}
	return s.Failure.ActionError.Kind.FunctionCallError.ExecutionError
}

// ExecutionOutcome is one transaction or receipt outcome envelope.
type ExecutionOutcome struct {
	Outcome struct {
		Logs     []string `json:"logs"`
		GasBurnt uint64   `json:"gas_burnt"`
	} `json:"outcome"`
}

// TxOutcome is the broadcast_tx_commit result shape this engine consumes.
type TxOutcome struct {
	Status      TxStatus `json:"status"`
	Transaction struct {
		Hash string `json:"hash"`
	} `json:"transaction"`
	TransactionOutcome ExecutionOutcome   `json:"transaction_outcome"`
	ReceiptsOutcome    []ExecutionOutcome `json:"receipts_outcome"`
}

// Logs flattens log lines from the transaction and every receipt, in order.
func (o TxOutcome) Logs() []string {
	logs := append([]string(nil), o.TransactionOutcome.Outcome.Logs...)
	for _, r := range o.ReceiptsOutcome {
		logs = append(logs, r.Outcome.Logs...)
	}
	return logs
}

// GasBurnt sums gas across the transaction and its receipts.
func (o TxOutcome) GasBurnt() uint64 {
	total := o.TransactionOutcome.Outcome.GasBurnt
	for _, r := range o.ReceiptsOutcome {
		total += r.Outcome.GasBurnt
	}
	return total
}
