package registry

import (
	"fmt"
	"strings"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
)

// NEAR uses 10^24 yoctoNEAR per 1 NEAR.
const NearDecimals = 24

const (
	// Gas budget attached to every vault change call.
	DefaultCallGas uint64 = 300_000_000_000_000 // 300 TGas

	// Payable vault methods require exactly 1 yoctoNEAR for access control.
	OneYocto = "1"

	// Fixed fee charged by the factory when minting a new vault.
	VaultMintFeeNear = "10"
)

type networkEndpoints struct {
	RPCURL      string
	ExplorerURL string
	Factory     string
	IndexerURL  string
}

var endpointsByNetwork = map[string]networkEndpoints{
	"mainnet": {
		RPCURL:      "https://rpc.mainnet.near.org",
		ExplorerURL: "https://explorer.near.org",
		Factory:     "sudostake.near",
		IndexerURL:  "https://us-central1-sudostake.cloudfunctions.net",
	},
	"testnet": {
		RPCURL:      "https://rpc.testnet.near.org",
		ExplorerURL: "https://explorer.testnet.near.org",
		Factory:     "nzaza.testnet",
		IndexerURL:  "https://us-central1-sudostake.cloudfunctions.net",
	},
}

func RPCURL(network string) (string, error) {
	eps, err := networkFor(network)
	if err != nil {
		return "", err
	}
	return eps.RPCURL, nil
}

func ExplorerURL(network string) (string, error) {
	eps, err := networkFor(network)
	if err != nil {
		return "", err
	}
	return eps.ExplorerURL, nil
}

func FactoryContract(network string) (string, error) {
	eps, err := networkFor(network)
	if err != nil {
		return "", err
	}
	return eps.Factory, nil
}

func IndexerURL(network string) (string, error) {
	eps, err := networkFor(network)
	if err != nil {
		return "", err
	}
	return eps.IndexerURL, nil
}

// ExplorerAccountURL builds an explorer link for an account page.
func ExplorerAccountURL(network, accountID string) string {
	base, err := ExplorerURL(network)
	if err != nil {
		return ""
	}
	return base + "/accounts/" + accountID
}

// ExplorerTxURL builds an explorer link for a transaction page.
func ExplorerTxURL(network, txHash string) string {
	base, err := ExplorerURL(network)
	if err != nil {
		return ""
	}
	return base + "/transactions/" + txHash
}

func networkFor(network string) (networkEndpoints, error) {
	eps, ok := endpointsByNetwork[strings.ToLower(strings.TrimSpace(network))]
	if !ok {
		return networkEndpoints{}, clierr.Wrap(
			clierr.CodeUnsupported,
			fmt.Sprintf("unsupported network %q", network),
			ErrUnsupportedNetwork,
		)
	}
	return eps, nil
}
