package engine

import (
	"context"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
	"github.com/sudostake/sudostake-cli/internal/id"
	"github.com/sudostake/sudostake-cli/internal/model"
	"github.com/sudostake/sudostake-cli/internal/registry"
)

type validatorAmountArgs struct {
	Validator string `json:"validator"`
	Amount    string `json:"amount"`
}

type validatorArgs struct {
	Validator string `json:"validator"`
}

type withdrawArgs struct {
	Amount string  `json:"amount"`
	To     *string `json:"to,omitempty"`
}

// Delegate stakes available vault balance with a validator. The amount is
// human NEAR; the wire carries yocto.
func (e *Engine) Delegate(ctx context.Context, session Session, vaultID, validator, amountNear string) (CallResult, error) {
	return e.validatorAmountCall(ctx, session, vaultID, validator, amountNear, "delegate")
}

// Undelegate starts unbonding staked NEAR from a validator. Funds stay
// locked at the pool for the unbonding period before claim_unstaked can
// recover them.
func (e *Engine) Undelegate(ctx context.Context, session Session, vaultID, validator, amountNear string) (CallResult, error) {
	return e.validatorAmountCall(ctx, session, vaultID, validator, amountNear, "undelegate")
}

func (e *Engine) validatorAmountCall(ctx context.Context, session Session, vaultID, validator, amountNear, method string) (CallResult, error) {
	if err := e.requireSigning(session); err != nil {
		return CallResult{}, err
	}
	amount, err := id.ToMinorUnits(amountNear, registry.NearDecimals)
	if err != nil {
		return CallResult{}, err
	}
	outcome, err := e.caller.Call(ctx, session, CallRequest{
		Receiver:     vaultID,
		Method:       method,
		Args:         validatorAmountArgs{Validator: validator, Amount: amount},
		Gas:          registry.DefaultCallGas,
		DepositYocto: registry.OneYocto,
	})
	if err != nil {
		return CallResult{}, err
	}
	classifyErr := ClassifyOutcome(outcome)
	e.record(session, vaultID, method, outcome, classifyErr)
	if classifyErr != nil {
		return CallResult{}, classifyErr
	}
	return e.callResult(ctx, session, vaultID, outcome, true), nil
}

// ClaimUnstaked moves matured unbonded funds from a validator back into the
// vault's available balance.
func (e *Engine) ClaimUnstaked(ctx context.Context, session Session, vaultID, validator string) (CallResult, error) {
	if err := e.requireSigning(session); err != nil {
		return CallResult{}, err
	}
	outcome, err := e.caller.Call(ctx, session, CallRequest{
		Receiver:     vaultID,
		Method:       "claim_unstaked",
		Args:         validatorArgs{Validator: validator},
		Gas:          registry.DefaultCallGas,
		DepositYocto: registry.OneYocto,
	})
	if err != nil {
		return CallResult{}, err
	}
	classifyErr := ClassifyOutcome(outcome)
	e.record(session, vaultID, "claim_unstaked", outcome, classifyErr)
	if classifyErr != nil {
		return CallResult{}, classifyErr
	}
	return e.callResult(ctx, session, vaultID, outcome, true), nil
}

// Withdraw pulls available NEAR out of the vault, to the owner by default or
// to an explicit recipient. The contract rejects withdrawals that would dip
// into locked collateral.
func (e *Engine) Withdraw(ctx context.Context, session Session, vaultID, amountNear, recipient string) (CallResult, error) {
	if err := e.requireSigning(session); err != nil {
		return CallResult{}, err
	}
	amount, err := id.ToMinorUnits(amountNear, registry.NearDecimals)
	if err != nil {
		return CallResult{}, err
	}
	args := withdrawArgs{Amount: amount}
	if recipient != "" {
		args.To = &recipient
	}
	outcome, err := e.caller.Call(ctx, session, CallRequest{
		Receiver:     vaultID,
		Method:       "withdraw_balance",
		Args:         args,
		Gas:          registry.DefaultCallGas,
		DepositYocto: registry.OneYocto,
	})
	if err != nil {
		return CallResult{}, err
	}
	classifyErr := ClassifyOutcome(outcome)
	e.record(session, vaultID, "withdraw_balance", outcome, classifyErr)
	if classifyErr != nil {
		return CallResult{}, classifyErr
	}
	return e.callResult(ctx, session, vaultID, outcome, false), nil
}

// Transfer sends plain NEAR into the vault account.
func (e *Engine) Transfer(ctx context.Context, session Session, vaultID, amountNear string) (CallResult, error) {
	if err := e.requireSigning(session); err != nil {
		return CallResult{}, err
	}
	amount, err := id.ToMinorUnits(amountNear, registry.NearDecimals)
	if err != nil {
		return CallResult{}, err
	}
	outcome, err := e.caller.Transfer(ctx, session, vaultID, amount)
	if err != nil {
		return CallResult{}, err
	}
	classifyErr := ClassifyOutcome(outcome)
	e.record(session, vaultID, "transfer", outcome, classifyErr)
	if classifyErr != nil {
		return CallResult{}, classifyErr
	}
	return e.callResult(ctx, session, vaultID, outcome, false), nil
}

// MintResult reports a freshly minted vault.
type MintResult struct {
	CallResult
	FeeNear string `json:"fee_near"`
}

// Mint creates a new vault through the network's factory contract, paying
// the fixed minting fee. The new vault's account id comes from the
// vault_minted event; when the log is missing the mint still succeeded and
// the result reports only the transaction.
func (e *Engine) Mint(ctx context.Context, session Session) (MintResult, error) {
	if err := e.requireSigning(session); err != nil {
		return MintResult{}, err
	}
	factory, err := registry.FactoryContract(session.Network)
	if err != nil {
		return MintResult{}, err
	}
	fee, err := id.ToMinorUnits(registry.VaultMintFeeNear, registry.NearDecimals)
	if err != nil {
		return MintResult{}, err
	}
	outcome, err := e.caller.Call(ctx, session, CallRequest{
		Receiver:     factory,
		Method:       "mint_vault",
		Args:         struct{}{},
		Gas:          registry.DefaultCallGas,
		DepositYocto: fee,
	})
	if err != nil {
		return MintResult{}, err
	}
	classifyErr := ClassifyOutcome(outcome)
	if classifyErr != nil {
		e.record(session, "", "mint_vault", outcome, classifyErr)
		return MintResult{}, classifyErr
	}

	vaultID, found := MintedVault(outcome.Logs())
	if !found {
		e.log.Warn().Str("tx", outcome.Transaction.Hash).Msg("mint succeeded but vault_minted event is missing")
	}
	e.record(session, vaultID, "mint_vault", outcome, nil)

	result := MintResult{
		CallResult: CallResult{
			VaultID:      vaultID,
			TxHash:       outcome.Transaction.Hash,
			GasBurntTGas: float64(outcome.GasBurnt()) / 1e12,
			ExplorerURL:  registry.ExplorerTxURL(session.Network, outcome.Transaction.Hash),
		},
		FeeNear: registry.VaultMintFeeNear,
	}
	if found {
		result.Indexed = e.indexVault(ctx, vaultID)
	}
	return result, nil
}

// BalanceResult is the vault's spendable NEAR.
type BalanceResult struct {
	VaultID       string `json:"vault_id"`
	AvailableNear string `json:"available_near"`
	AvailableRaw  string `json:"available_yocto"`
}

// AvailableBalance reads the vault's spendable balance, net of storage
// reserve and locked collateral.
func (e *Engine) AvailableBalance(ctx context.Context, session Session, vaultID string) (BalanceResult, error) {
	var raw model.Balance
	if err := e.viewer.CallFunction(ctx, vaultID, "view_available_balance", nil, &raw); err != nil {
		return BalanceResult{}, err
	}
	human, err := id.ToHuman(raw.String(), registry.NearDecimals)
	if err != nil {
		return BalanceResult{}, clierr.Wrap(clierr.CodeInternal, "vault returned an invalid balance", err)
	}
	return BalanceResult{VaultID: vaultID, AvailableNear: human, AvailableRaw: raw.String()}, nil
}

// VaultState reads and returns the raw vault view state.
func (e *Engine) VaultState(ctx context.Context, session Session, vaultID string) (model.VaultState, error) {
	var state model.VaultState
	if err := e.viewer.CallFunction(ctx, vaultID, "get_vault_state", nil, &state); err != nil {
		return model.VaultState{}, err
	}
	return state, nil
}
