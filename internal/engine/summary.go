package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
	"github.com/sudostake/sudostake-cli/internal/id"
	"github.com/sudostake/sudostake-cli/internal/model"
	"github.com/sudostake/sudostake-cli/internal/registry"
)

// unbondingEpochs is the number of epochs unstaked funds stay locked before
// they can be withdrawn from a staking pool.
const unbondingEpochs = 4

// DelegationSummary is the merged per-validator view of a vault's stake.
// Empty distinguishes "no delegations at all" from a summary whose entries
// all happen to be zero.
type DelegationSummary struct {
	VaultID      string                  `json:"vault_id"`
	CurrentEpoch uint64                  `json:"current_epoch"`
	Entries      []model.DelegationEntry `json:"entries"`
	Empty        bool                    `json:"empty"`
}

type getAccountArgs struct {
	AccountID string `json:"account_id"`
}

// Delegations builds the summary by querying every validator the vault
// touches: the union of its active set and any validators holding unbonding
// entries. Queries fan out concurrently and results keep a deterministic
// lexicographic order regardless of arrival. One validator failing does not
// discard the rest; its entry carries the error instead.
func (e *Engine) Delegations(ctx context.Context, session Session, vaultID string) (DelegationSummary, error) {
	var state model.VaultState
	if err := e.viewer.CallFunction(ctx, vaultID, "get_vault_state", nil, &state); err != nil {
		return DelegationSummary{}, err
	}

	validators := validatorSet(state)
	summary := DelegationSummary{
		VaultID:      vaultID,
		CurrentEpoch: state.CurrentEpoch,
	}
	if len(validators) == 0 {
		summary.Empty = true
		summary.Entries = []model.DelegationEntry{}
		return summary, nil
	}

	entries := make([]model.DelegationEntry, len(validators))
	var wg sync.WaitGroup
	for i, validator := range validators {
		wg.Add(1)
		go func(i int, validator string) {
			defer wg.Done()
			entries[i] = e.delegationEntry(ctx, vaultID, validator, state)
		}(i, validator)
	}
	wg.Wait()

	summary.Entries = entries
	for _, entry := range entries {
		if entry.Error != "" {
			return summary, clierr.New(clierr.CodePartialSummary,
				fmt.Sprintf("delegation summary for %s is incomplete: one or more validators could not be queried", vaultID))
		}
	}
	return summary, nil
}

// validatorSet returns the union of active validators and unstake-entry
// holders, sorted lexicographically.
func validatorSet(state model.VaultState) []string {
	seen := make(map[string]struct{}, len(state.ActiveValidators)+len(state.UnstakeEntries))
	for _, v := range state.ActiveValidators {
		seen[v] = struct{}{}
	}
	for v := range state.UnstakeEntries {
		seen[v] = struct{}{}
	}
	validators := make([]string, 0, len(seen))
	for v := range seen {
		validators = append(validators, v)
	}
	sort.Strings(validators)
	return validators
}

func (e *Engine) delegationEntry(ctx context.Context, vaultID, validator string, state model.VaultState) model.DelegationEntry {
	entry := model.DelegationEntry{Validator: validator}

	var account model.ValidatorAccount
	err := e.viewer.CallFunction(ctx, validator, "get_account", getAccountArgs{AccountID: vaultID}, &account)
	if err != nil {
		e.log.Warn().Err(err).Str("vault", vaultID).Str("validator", validator).Msg("validator query failed")
		entry.Error = err.Error()
		return entry
	}

	if entry.StakedNear, err = id.ToHuman(account.StakedBalance.String(), registry.NearDecimals); err != nil {
		entry.Error = fmt.Sprintf("invalid staked balance from %s: %v", validator, err)
		return entry
	}
	if entry.UnstakedNear, err = id.ToHuman(account.UnstakedBalance.String(), registry.NearDecimals); err != nil {
		entry.Error = fmt.Sprintf("invalid unstaked balance from %s: %v", validator, err)
		return entry
	}
	entry.CanWithdraw = account.CanWithdraw

	// Locked unbonding funds get an unlock estimate from the vault's own
	// unstake record, when it has one for this validator.
	if !account.CanWithdraw {
		if unstake, ok := state.UnstakeEntries[validator]; ok {
			unlock := unstake.EpochHeight + unbondingEpochs
			epoch := state.CurrentEpoch
			entry.UnlockEpoch = &unlock
			entry.CurrentEpoch = &epoch
		}
	}
	return entry
}
