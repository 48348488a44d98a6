package engine

import (
	"context"
	"errors"
	"testing"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
)

func TestDelegationsMergesActiveAndUnbonding(t *testing.T) {
	viewer := &fakeViewer{responses: map[string]string{
		viewKey(testVault, "get_vault_state"): `{
			"owner": "alice.testnet",
			"active_validators": ["zeta.pool.testnet", "aurora.pool.testnet"],
			"unstake_entries": [["legacy.pool.testnet", {"amount": "2000000000000000000000000", "epoch_height": 100}]],
			"current_epoch": 102
		}`,
		viewKey("aurora.pool.testnet", "get_account"): `{
			"account_id": "` + testVault + `",
			"staked_balance": "5000000000000000000000000",
			"unstaked_balance": "0",
			"can_withdraw": true
		}`,
		viewKey("zeta.pool.testnet", "get_account"): `{
			"account_id": "` + testVault + `",
			"staked_balance": "1500000000000000000000000",
			"unstaked_balance": "0",
			"can_withdraw": true
		}`,
		viewKey("legacy.pool.testnet", "get_account"): `{
			"account_id": "` + testVault + `",
			"staked_balance": "0",
			"unstaked_balance": "2000000000000000000000000",
			"can_withdraw": false
		}`,
	}}
	eng := newTestEngine(viewer, &fakeCaller{})

	summary, err := eng.Delegations(context.Background(), signingSession(), testVault)
	if err != nil {
		t.Fatalf("Delegations: %v", err)
	}
	if summary.Empty {
		t.Fatal("summary should not be empty")
	}
	if summary.CurrentEpoch != 102 {
		t.Fatalf("epoch = %d", summary.CurrentEpoch)
	}

	// Deterministic lexicographic order, not RPC arrival order.
	order := []string{"aurora.pool.testnet", "legacy.pool.testnet", "zeta.pool.testnet"}
	if len(summary.Entries) != len(order) {
		t.Fatalf("got %d entries, want %d", len(summary.Entries), len(order))
	}
	for i, want := range order {
		if summary.Entries[i].Validator != want {
			t.Fatalf("entry[%d] = %s, want %s", i, summary.Entries[i].Validator, want)
		}
	}

	if summary.Entries[0].StakedNear != "5" || !summary.Entries[0].CanWithdraw {
		t.Fatalf("aurora entry = %+v", summary.Entries[0])
	}

	// Locked funds are enriched with the unlock estimate.
	legacy := summary.Entries[1]
	if legacy.UnstakedNear != "2" || legacy.CanWithdraw {
		t.Fatalf("legacy entry = %+v", legacy)
	}
	if legacy.UnlockEpoch == nil || *legacy.UnlockEpoch != 104 {
		t.Fatalf("unlock epoch = %v, want 104", legacy.UnlockEpoch)
	}
	if legacy.CurrentEpoch == nil || *legacy.CurrentEpoch != 102 {
		t.Fatalf("current epoch = %v", legacy.CurrentEpoch)
	}
}

func TestDelegationsIsolatesValidatorFailures(t *testing.T) {
	viewer := &fakeViewer{
		responses: map[string]string{
			viewKey(testVault, "get_vault_state"): `{
				"owner": "alice.testnet",
				"active_validators": ["bad.pool.testnet", "good.pool.testnet"],
				"current_epoch": 50
			}`,
			viewKey("good.pool.testnet", "get_account"): `{
				"account_id": "` + testVault + `",
				"staked_balance": "1000000000000000000000000",
				"unstaked_balance": "0",
				"can_withdraw": true
			}`,
		},
		errs: map[string]error{
			viewKey("bad.pool.testnet", "get_account"): errors.New("connection refused"),
		},
	}
	eng := newTestEngine(viewer, &fakeCaller{})

	summary, err := eng.Delegations(context.Background(), signingSession(), testVault)
	if !clierr.IsCode(err, clierr.CodePartialSummary) {
		t.Fatalf("expected partial summary error, got %v", err)
	}
	if len(summary.Entries) != 2 {
		t.Fatalf("got %d entries, want both", len(summary.Entries))
	}
	if summary.Entries[0].Error == "" {
		t.Fatal("failing validator should carry its error")
	}
	if summary.Entries[1].Validator != "good.pool.testnet" || summary.Entries[1].StakedNear != "1" {
		t.Fatalf("healthy validator lost: %+v", summary.Entries[1])
	}
}

func TestDelegationsEmptyVault(t *testing.T) {
	viewer := &fakeViewer{responses: map[string]string{
		viewKey(testVault, "get_vault_state"): `{"owner": "alice.testnet", "current_epoch": 7}`,
	}}
	eng := newTestEngine(viewer, &fakeCaller{})

	summary, err := eng.Delegations(context.Background(), signingSession(), testVault)
	if err != nil {
		t.Fatalf("Delegations: %v", err)
	}
	if !summary.Empty {
		t.Fatal("expected explicit empty marker")
	}
	if summary.Entries == nil || len(summary.Entries) != 0 {
		t.Fatalf("entries = %v, want empty slice", summary.Entries)
	}
}

func TestDelegationsNoUnlockEstimateWithoutEntry(t *testing.T) {
	// can_withdraw false but the vault holds no unstake record for the
	// validator, so there is nothing to estimate from.
	viewer := &fakeViewer{responses: map[string]string{
		viewKey(testVault, "get_vault_state"): `{
			"owner": "alice.testnet",
			"active_validators": ["solo.pool.testnet"],
			"current_epoch": 10
		}`,
		viewKey("solo.pool.testnet", "get_account"): `{
			"account_id": "` + testVault + `",
			"staked_balance": "1000000000000000000000000",
			"unstaked_balance": "500000000000000000000000",
			"can_withdraw": false
		}`,
	}}
	eng := newTestEngine(viewer, &fakeCaller{})

	summary, err := eng.Delegations(context.Background(), signingSession(), testVault)
	if err != nil {
		t.Fatalf("Delegations: %v", err)
	}
	if summary.Entries[0].UnlockEpoch != nil {
		t.Fatalf("unexpected unlock estimate: %v", *summary.Entries[0].UnlockEpoch)
	}
}
