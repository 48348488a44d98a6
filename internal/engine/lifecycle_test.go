package engine

import (
	"context"
	"errors"
	"testing"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
)

const testVault = "vault-0.nzaza.testnet"

const usdcTestnet = "usdc.tkn.primitives.testnet"

func TestOpenRequestScalesTerms(t *testing.T) {
	caller := &fakeCaller{outcome: successOutcome("tx-open")}
	indexer := &fakeIndexer{}
	recorder := &fakeRecorder{}
	eng := newTestEngine(&fakeViewer{}, caller, WithIndexer(indexer), WithRecorder(recorder))

	result, err := eng.OpenRequest(context.Background(), signingSession(), OpenRequestParams{
		VaultID:        testVault,
		TokenKey:       "usdc",
		Amount:         "500",
		Interest:       "50",
		DurationDays:   30,
		CollateralNear: "100",
	})
	if err != nil {
		t.Fatalf("OpenRequest: %v", err)
	}

	if len(caller.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(caller.calls))
	}
	call := caller.calls[0]
	if call.Receiver != testVault || call.Method != "request_liquidity" {
		t.Fatalf("unexpected call %s %s", call.Receiver, call.Method)
	}
	if call.DepositYocto != "1" {
		t.Fatalf("deposit = %q, want one yocto", call.DepositYocto)
	}
	if call.Gas != 300_000_000_000_000 {
		t.Fatalf("gas = %d", call.Gas)
	}
	want := `{"token":"` + usdcTestnet + `","amount":"500000000","interest":"50000000",` +
		`"collateral":"100000000000000000000000000","duration":2592000}`
	if got := argsJSON(t, call.Args); got != want {
		t.Fatalf("args = %s\nwant  %s", got, want)
	}

	if !result.Indexed || len(indexer.indexed) != 1 || indexer.indexed[0] != testVault {
		t.Fatalf("vault not indexed: %+v", indexer.indexed)
	}
	if len(recorder.records) != 1 || recorder.records[0].Method != "request_liquidity" {
		t.Fatalf("tx not recorded: %+v", recorder.records)
	}
	if result.TxHash != "tx-open" || result.TokenSymbol != "USDC" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestOpenRequestSoftFailureSkipsIndexing(t *testing.T) {
	caller := &fakeCaller{outcome: successOutcome("tx-open",
		`EVENT_JSON:{"event":"liquidity_request_failed_insufficient_stake","data":{}}`,
	)}
	indexer := &fakeIndexer{}
	recorder := &fakeRecorder{}
	eng := newTestEngine(&fakeViewer{}, caller, WithIndexer(indexer), WithRecorder(recorder))

	_, err := eng.OpenRequest(context.Background(), signingSession(), OpenRequestParams{
		VaultID:        testVault,
		TokenKey:       "usdc",
		Amount:         "500",
		Interest:       "50",
		DurationDays:   30,
		CollateralNear: "100000",
	})
	if !clierr.IsCode(err, clierr.CodeSoftFailure) {
		t.Fatalf("expected soft failure, got %v", err)
	}
	if len(indexer.indexed) != 0 {
		t.Fatal("soft failure must not index the vault")
	}
	if len(recorder.records) != 1 || recorder.records[0].Status != "failed" {
		t.Fatalf("soft failure should still be recorded: %+v", recorder.records)
	}
}

func TestOpenRequestRejectsWithoutKeys(t *testing.T) {
	caller := &fakeCaller{outcome: successOutcome("tx")}
	eng := newTestEngine(&fakeViewer{}, caller)

	session := Session{Network: "testnet", Mode: SigningModeView}
	_, err := eng.OpenRequest(context.Background(), session, OpenRequestParams{
		VaultID: testVault, TokenKey: "usdc", Amount: "1", Interest: "0", DurationDays: 1, CollateralNear: "1",
	})
	if !clierr.IsCode(err, clierr.CodeAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if len(caller.calls) != 0 {
		t.Fatal("no call should be issued without signing keys")
	}
}

func TestAcceptRequestBuildsTransferFromChainState(t *testing.T) {
	viewer := &fakeViewer{responses: map[string]string{
		viewKey(testVault, "get_vault_state"): `{
			"owner": "alice.testnet",
			"liquidity_request": {
				"token": "` + usdcTestnet + `",
				"amount": "500000000",
				"interest": "50000000",
				"collateral": "100000000000000000000000000",
				"duration": 2592000
			},
			"accepted_offer": null
		}`,
	}}
	caller := &fakeCaller{outcome: successOutcome("tx-accept")}
	eng := newTestEngine(viewer, caller, WithIndexer(&fakeIndexer{}))

	result, err := eng.AcceptRequest(context.Background(), signingSession(), testVault)
	if err != nil {
		t.Fatalf("AcceptRequest: %v", err)
	}

	call := caller.calls[0]
	if call.Receiver != usdcTestnet || call.Method != "ft_transfer_call" {
		t.Fatalf("unexpected call %s %s", call.Receiver, call.Method)
	}
	want := `{"receiver_id":"` + testVault + `","amount":"500000000",` +
		`"msg":"{\"action\":\"AcceptLiquidityRequest\",\"token\":\"` + usdcTestnet + `\",` +
		`\"amount\":\"500000000\",\"interest\":\"50000000\",` +
		`\"collateral\":\"100000000000000000000000000\",\"duration\":2592000}"}`
	if got := argsJSON(t, call.Args); got != want {
		t.Fatalf("args = %s\nwant  %s", got, want)
	}
	if result.Amount != "500" || result.Interest != "50" {
		t.Fatalf("human terms = %q / %q", result.Amount, result.Interest)
	}
}

func TestAcceptRequestNoActiveRequest(t *testing.T) {
	tests := []struct {
		name   string
		state  string
		reason NoActiveRequestReason
	}{
		{
			name:   "no request recorded",
			state:  `{"owner": "alice.testnet", "liquidity_request": null}`,
			reason: ReasonRequestMissing,
		},
		{
			name: "already funded",
			state: `{
				"owner": "alice.testnet",
				"liquidity_request": {"token": "` + usdcTestnet + `", "amount": "1", "interest": "0", "collateral": "1", "duration": 60},
				"accepted_offer": {"lender": "bob.testnet", "accepted_at": 1}
			}`,
			reason: ReasonAlreadyAccepted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viewer := &fakeViewer{responses: map[string]string{
				viewKey(testVault, "get_vault_state"): tt.state,
			}}
			caller := &fakeCaller{outcome: successOutcome("tx")}
			eng := newTestEngine(viewer, caller)

			_, err := eng.AcceptRequest(context.Background(), signingSession(), testVault)
			if !clierr.IsCode(err, clierr.CodeNoActiveRequest) {
				t.Fatalf("expected no-active-request, got %v", err)
			}
			var cause *NoActiveRequestError
			if !errors.As(err, &cause) || cause.Reason != tt.reason {
				t.Fatalf("reason = %+v, want %s", cause, tt.reason)
			}
			if len(caller.calls) != 0 {
				t.Fatal("no transfer should be issued")
			}
		})
	}
}

func TestRepaySoftFailureKeepsLoanOpen(t *testing.T) {
	caller := &fakeCaller{outcome: successOutcome("tx-repay",
		`EVENT_JSON:{"event":"repay_loan_failed","data":{"reason":"ft_transfer failed"}}`,
	)}
	indexer := &fakeIndexer{}
	eng := newTestEngine(&fakeViewer{}, caller, WithIndexer(indexer))

	_, err := eng.Repay(context.Background(), signingSession(), testVault)
	if !clierr.IsCode(err, clierr.CodeSoftFailure) {
		t.Fatalf("expected soft failure, got %v", err)
	}
	var soft *SoftFailureError
	if !errors.As(err, &soft) || soft.Kind != EventRepayFailed {
		t.Fatalf("unexpected cause: %v", err)
	}
	if len(indexer.indexed) != 0 {
		t.Fatal("failed repayment must not index the vault")
	}
}

func TestRepayContractPanic(t *testing.T) {
	caller := &fakeCaller{outcome: panicOutcome("Smart contract panicked: No active loan")}
	eng := newTestEngine(&fakeViewer{}, caller)

	_, err := eng.Repay(context.Background(), signingSession(), testVault)
	if !clierr.IsCode(err, clierr.CodeContractPanic) {
		t.Fatalf("expected contract panic, got %v", err)
	}
}

func TestStatusStates(t *testing.T) {
	request := `{"token": "` + usdcTestnet + `", "amount": "500000000", "interest": "50000000",
		"collateral": "100000000000000000000000000", "duration": 2592000}`

	tests := []struct {
		name  string
		state string
		check func(t *testing.T, status LoanStatus)
	}{
		{
			name:  "idle vault",
			state: `{"owner": "alice.testnet"}`,
			check: func(t *testing.T, status LoanStatus) {
				if status.State != LoanStateNone {
					t.Fatalf("state = %s", status.State)
				}
			},
		},
		{
			name:  "open request",
			state: `{"owner": "alice.testnet", "liquidity_request": ` + request + `}`,
			check: func(t *testing.T, status LoanStatus) {
				if status.State != LoanStateOpen {
					t.Fatalf("state = %s", status.State)
				}
				if status.TotalDue != "550" {
					t.Fatalf("total due = %q, want 550", status.TotalDue)
				}
				if status.Duration != "30 days" {
					t.Fatalf("duration = %q", status.Duration)
				}
			},
		},
		{
			name: "funded loan",
			state: `{"owner": "alice.testnet", "liquidity_request": ` + request + `,
				"accepted_offer": {"lender": "bob.testnet", "accepted_at": "1700000000000000000"}}`,
			check: func(t *testing.T, status LoanStatus) {
				if status.State != LoanStateFunded || status.Lender != "bob.testnet" {
					t.Fatalf("status = %+v", status)
				}
				if status.OutstandingDebt != "100" {
					t.Fatalf("outstanding = %q, want full collateral", status.OutstandingDebt)
				}
			},
		},
		{
			name: "liquidating",
			state: `{"owner": "alice.testnet", "liquidity_request": ` + request + `,
				"accepted_offer": {"lender": "bob.testnet", "accepted_at": 1},
				"liquidation": {"liquidated": "40000000000000000000000000"}}`,
			check: func(t *testing.T, status LoanStatus) {
				if status.State != LoanStateLiquidating {
					t.Fatalf("state = %s", status.State)
				}
				if status.LiquidatedNear != "40" || status.OutstandingDebt != "60" {
					t.Fatalf("liquidated = %q outstanding = %q", status.LiquidatedNear, status.OutstandingDebt)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viewer := &fakeViewer{responses: map[string]string{
				viewKey(testVault, "get_vault_state"): tt.state,
			}}
			eng := newTestEngine(viewer, &fakeCaller{})

			status, err := eng.Status(context.Background(), signingSession(), testVault)
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			tt.check(t, status)
		})
	}
}

func TestStatusNonDayAlignedDuration(t *testing.T) {
	viewer := &fakeViewer{responses: map[string]string{
		viewKey(testVault, "get_vault_state"): `{
			"owner": "alice.testnet",
			"liquidity_request": {"token": "` + usdcTestnet + `", "amount": "1000000",
				"interest": "0", "collateral": "1000000000000000000000000", "duration": 90000}
		}`,
	}}
	eng := newTestEngine(viewer, &fakeCaller{})

	status, err := eng.Status(context.Background(), signingSession(), testVault)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Duration != "90000s" {
		t.Fatalf("duration = %q, want exact seconds", status.Duration)
	}
}
