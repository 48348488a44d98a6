package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
	"github.com/sudostake/sudostake-cli/internal/id"
	"github.com/sudostake/sudostake-cli/internal/model"
	"github.com/sudostake/sudostake-cli/internal/registry"
)

// LoanState is the lifecycle position derived from a vault's view state.
type LoanState string

const (
	LoanStateNone        LoanState = "none"
	LoanStateOpen        LoanState = "open"
	LoanStateFunded      LoanState = "funded"
	LoanStateLiquidating LoanState = "liquidating"
)

// NoActiveRequestReason distinguishes the two conditions the user-facing
// message deliberately merges.
type NoActiveRequestReason string

const (
	ReasonRequestMissing  NoActiveRequestReason = "request_missing"
	ReasonAlreadyAccepted NoActiveRequestReason = "already_accepted"
)

// NoActiveRequestError reports that a vault has no request a lender could
// fund right now. The external message is the same for both reasons; the
// reason stays testable here.
type NoActiveRequestError struct {
	VaultID string
	Reason  NoActiveRequestReason
}

func (e *NoActiveRequestError) Error() string {
	return fmt.Sprintf("vault %s has no active liquidity request", e.VaultID)
}

func noActiveRequest(vaultID string, reason NoActiveRequestReason) error {
	cause := &NoActiveRequestError{VaultID: vaultID, Reason: reason}
	msg := cause.Error()
	if reason == ReasonAlreadyAccepted {
		msg += ": the request has already been accepted"
	}
	return clierr.Wrap(clierr.CodeNoActiveRequest, msg, cause)
}

// OpenRequestParams carries the human-denominated terms of a new request.
type OpenRequestParams struct {
	VaultID        string
	TokenKey       string
	Amount         string
	Interest       string
	DurationDays   int64
	CollateralNear string
}

// CallResult is the common success shape of a change call.
type CallResult struct {
	VaultID      string  `json:"vault_id"`
	TxHash       string  `json:"tx_hash"`
	GasBurntTGas float64 `json:"gas_burnt_tgas"`
	Indexed      bool    `json:"indexed,omitempty"`
	ExplorerURL  string  `json:"explorer_url,omitempty"`
}

// OpenRequestResult echoes the submitted terms alongside the call result.
type OpenRequestResult struct {
	CallResult
	TokenSymbol    string `json:"token_symbol"`
	Amount         string `json:"amount"`
	Interest       string `json:"interest"`
	CollateralNear string `json:"collateral_near"`
	DurationDays   int64  `json:"duration_days"`
}

// requestLiquidityArgs is the exact argument shape of request_liquidity.
// Amount-like fields travel as decimal strings, duration as a number.
type requestLiquidityArgs struct {
	Token      string `json:"token"`
	Amount     string `json:"amount"`
	Interest   string `json:"interest"`
	Collateral string `json:"collateral"`
	Duration   int64  `json:"duration"`
}

// OpenRequest validates and scales the request terms, then asks the vault to
// open a liquidity request. The contract enforces the NoRequest precondition;
// an insufficient-stake rejection arrives as a soft event, not a panic.
func (e *Engine) OpenRequest(ctx context.Context, session Session, params OpenRequestParams) (OpenRequestResult, error) {
	if err := e.requireSigning(session); err != nil {
		return OpenRequestResult{}, err
	}

	token, err := registry.ResolveToken(session.Network, params.TokenKey)
	if err != nil {
		return OpenRequestResult{}, err
	}
	amount, err := id.ToMinorUnits(params.Amount, token.Decimals)
	if err != nil {
		return OpenRequestResult{}, err
	}
	interest, err := id.ToMinorUnits(params.Interest, token.Decimals)
	if err != nil {
		return OpenRequestResult{}, err
	}
	collateral, err := id.ToMinorUnits(params.CollateralNear, registry.NearDecimals)
	if err != nil {
		return OpenRequestResult{}, err
	}
	durationSecs, err := id.DaysToSeconds(params.DurationDays)
	if err != nil {
		return OpenRequestResult{}, err
	}

	outcome, err := e.caller.Call(ctx, session, CallRequest{
		Receiver: params.VaultID,
		Method:   "request_liquidity",
		Args: requestLiquidityArgs{
			Token:      token.Contract,
			Amount:     amount,
			Interest:   interest,
			Collateral: collateral,
			Duration:   durationSecs,
		},
		Gas:          registry.DefaultCallGas,
		DepositYocto: registry.OneYocto,
	})
	if err != nil {
		return OpenRequestResult{}, err
	}
	classifyErr := ClassifyOutcome(outcome, EventInsufficientStake)
	e.record(session, params.VaultID, "request_liquidity", outcome, classifyErr)
	if classifyErr != nil {
		return OpenRequestResult{}, classifyErr
	}

	return OpenRequestResult{
		CallResult:     e.callResult(ctx, session, params.VaultID, outcome, true),
		TokenSymbol:    token.Symbol,
		Amount:         params.Amount,
		Interest:       params.Interest,
		CollateralNear: params.CollateralNear,
		DurationDays:   params.DurationDays,
	}, nil
}

// AcceptRequestResult reports the funded terms from the lender's side.
type AcceptRequestResult struct {
	CallResult
	TokenSymbol string `json:"token_symbol"`
	Amount      string `json:"amount"`
	Interest    string `json:"interest"`
}

// acceptRequestMessage is the ft_transfer_call msg payload. It echoes the
// recorded request exactly; the contract rejects any mismatch.
type acceptRequestMessage struct {
	Action     string `json:"action"`
	Token      string `json:"token"`
	Amount     string `json:"amount"`
	Interest   string `json:"interest"`
	Collateral string `json:"collateral"`
	Duration   int64  `json:"duration"`
}

type ftTransferCallArgs struct {
	ReceiverID string `json:"receiver_id"`
	Amount     string `json:"amount"`
	Msg        string `json:"msg"`
}

// AcceptRequest funds the vault's open request. The transfer is constructed
// from the request recorded on-chain, never from caller-supplied amounts, so
// the lender cannot fund stale or mismatched terms.
func (e *Engine) AcceptRequest(ctx context.Context, session Session, vaultID string) (AcceptRequestResult, error) {
	if err := e.requireSigning(session); err != nil {
		return AcceptRequestResult{}, err
	}

	var state model.VaultState
	if err := e.viewer.CallFunction(ctx, vaultID, "get_vault_state", nil, &state); err != nil {
		return AcceptRequestResult{}, err
	}
	if state.LiquidityRequest == nil {
		return AcceptRequestResult{}, noActiveRequest(vaultID, ReasonRequestMissing)
	}
	if state.AcceptedOffer != nil {
		return AcceptRequestResult{}, noActiveRequest(vaultID, ReasonAlreadyAccepted)
	}
	request := state.LiquidityRequest

	token, err := registry.ResolveTokenByContract(session.Network, request.Token)
	if err != nil {
		return AcceptRequestResult{}, err
	}

	msg, err := json.Marshal(acceptRequestMessage{
		Action:     "AcceptLiquidityRequest",
		Token:      request.Token,
		Amount:     request.Amount.String(),
		Interest:   request.Interest.String(),
		Collateral: request.Collateral.String(),
		Duration:   request.Duration,
	})
	if err != nil {
		return AcceptRequestResult{}, clierr.Wrap(clierr.CodeInternal, "encode accept message", err)
	}

	outcome, err := e.caller.Call(ctx, session, CallRequest{
		Receiver: request.Token,
		Method:   "ft_transfer_call",
		Args: ftTransferCallArgs{
			ReceiverID: vaultID,
			Amount:     request.Amount.String(),
			Msg:        string(msg),
		},
		Gas:          registry.DefaultCallGas,
		DepositYocto: registry.OneYocto,
	})
	if err != nil {
		return AcceptRequestResult{}, err
	}
	classifyErr := ClassifyOutcome(outcome)
	e.record(session, vaultID, "accept_liquidity_request", outcome, classifyErr)
	if classifyErr != nil {
		return AcceptRequestResult{}, classifyErr
	}

	amountHuman, err := id.ToHuman(request.Amount.String(), token.Decimals)
	if err != nil {
		return AcceptRequestResult{}, err
	}
	interestHuman, err := id.ToHuman(request.Interest.String(), token.Decimals)
	if err != nil {
		return AcceptRequestResult{}, err
	}

	return AcceptRequestResult{
		CallResult:  e.callResult(ctx, session, vaultID, outcome, true),
		TokenSymbol: token.Symbol,
		Amount:      amountHuman,
		Interest:    interestHuman,
	}, nil
}

// Repay settles an active loan. Three outcomes are distinguished: a contract
// panic, an on-chain success that still failed to reach the lender (the
// repay_loan_failed event, after which the loan stays open), and a true
// success, which alone triggers indexing.
func (e *Engine) Repay(ctx context.Context, session Session, vaultID string) (CallResult, error) {
	if err := e.requireSigning(session); err != nil {
		return CallResult{}, err
	}

	outcome, err := e.caller.Call(ctx, session, CallRequest{
		Receiver:     vaultID,
		Method:       "repay_loan",
		Args:         struct{}{},
		Gas:          registry.DefaultCallGas,
		DepositYocto: registry.OneYocto,
	})
	if err != nil {
		return CallResult{}, err
	}
	classifyErr := ClassifyOutcome(outcome, EventRepayFailed)
	e.record(session, vaultID, "repay_loan", outcome, classifyErr)
	if classifyErr != nil {
		return CallResult{}, classifyErr
	}
	return e.callResult(ctx, session, vaultID, outcome, true), nil
}

// LoanStatus is the observation-only view of a vault's borrow position.
// Liquidation is never initiated from here; the engine only reports its
// progress.
type LoanStatus struct {
	VaultID         string    `json:"vault_id"`
	State           LoanState `json:"state"`
	TokenSymbol     string    `json:"token_symbol,omitempty"`
	Amount          string    `json:"amount,omitempty"`
	Interest        string    `json:"interest,omitempty"`
	TotalDue        string    `json:"total_due,omitempty"`
	CollateralNear  string    `json:"collateral_near,omitempty"`
	Duration        string    `json:"duration,omitempty"`
	Lender          string    `json:"lender,omitempty"`
	LiquidatedNear  string    `json:"liquidated_near,omitempty"`
	OutstandingDebt string    `json:"outstanding_debt_near,omitempty"`
}

// Status reads the vault and derives the lifecycle position plus the
// display figures for an active loan.
func (e *Engine) Status(ctx context.Context, session Session, vaultID string) (LoanStatus, error) {
	var state model.VaultState
	if err := e.viewer.CallFunction(ctx, vaultID, "get_vault_state", nil, &state); err != nil {
		return LoanStatus{}, err
	}

	status := LoanStatus{VaultID: vaultID, State: LoanStateNone}
	request := state.LiquidityRequest
	if request == nil {
		return status, nil
	}

	token, err := registry.ResolveTokenByContract(session.Network, request.Token)
	if err != nil {
		return LoanStatus{}, err
	}
	status.TokenSymbol = token.Symbol
	if status.Amount, err = id.ToHuman(request.Amount.String(), token.Decimals); err != nil {
		return LoanStatus{}, err
	}
	if status.Interest, err = id.ToHuman(request.Interest.String(), token.Decimals); err != nil {
		return LoanStatus{}, err
	}
	if status.CollateralNear, err = id.ToHuman(request.Collateral.String(), registry.NearDecimals); err != nil {
		return LoanStatus{}, err
	}
	totalDue, err := addMinorUnits(request.Amount.String(), request.Interest.String())
	if err != nil {
		return LoanStatus{}, err
	}
	if status.TotalDue, err = id.ToHuman(totalDue, token.Decimals); err != nil {
		return LoanStatus{}, err
	}
	status.Duration = id.FormatDurationSeconds(request.Duration)

	if state.AcceptedOffer == nil {
		status.State = LoanStateOpen
		return status, nil
	}
	status.State = LoanStateFunded
	status.Lender = state.AcceptedOffer.Lender

	// A missing liquidation record means nothing has been seized yet.
	liquidated := "0"
	if state.Liquidation != nil {
		status.State = LoanStateLiquidating
		liquidated = state.Liquidation.Liquidated.String()
	}
	outstanding, err := subMinorUnits(request.Collateral.String(), liquidated)
	if err != nil {
		return LoanStatus{}, err
	}
	if status.LiquidatedNear, err = id.ToHuman(liquidated, registry.NearDecimals); err != nil {
		return LoanStatus{}, err
	}
	if status.OutstandingDebt, err = id.ToHuman(outstanding, registry.NearDecimals); err != nil {
		return LoanStatus{}, err
	}
	return status, nil
}

func (e *Engine) requireSigning(session Session) error {
	if e.caller == nil || !session.CanSign() {
		return clierr.New(clierr.CodeAuth, "signing keys required: set NEAR_ACCOUNT_ID and NEAR_PRIVATE_KEY")
	}
	return nil
}

func (e *Engine) callResult(ctx context.Context, session Session, vaultID string, outcome model.TxOutcome, index bool) CallResult {
	result := CallResult{
		VaultID:      vaultID,
		TxHash:       outcome.Transaction.Hash,
		GasBurntTGas: float64(outcome.GasBurnt()) / 1e12,
		ExplorerURL:  registry.ExplorerTxURL(session.Network, outcome.Transaction.Hash),
	}
	if index {
		result.Indexed = e.indexVault(ctx, vaultID)
	}
	return result
}

func addMinorUnits(a, b string) (string, error) {
	x, okX := new(big.Int).SetString(a, 10)
	y, okY := new(big.Int).SetString(b, 10)
	if !okX || !okY {
		return "", clierr.New(clierr.CodeInternal, fmt.Sprintf("invalid minor-unit amounts %q + %q", a, b))
	}
	return new(big.Int).Add(x, y).String(), nil
}

// subMinorUnits clamps at zero: liquidated can never exceed collateral by
// contract invariant, but a clamped display beats a negative one if the
// chain ever reports mid-settlement state.
func subMinorUnits(a, b string) (string, error) {
	x, okX := new(big.Int).SetString(a, 10)
	y, okY := new(big.Int).SetString(b, 10)
	if !okX || !okY {
		return "", clierr.New(clierr.CodeInternal, fmt.Sprintf("invalid minor-unit amounts %q - %q", a, b))
	}
	diff := new(big.Int).Sub(x, y)
	if diff.Sign() < 0 {
		return "0", nil
	}
	return diff.String(), nil
}
