package registry

import (
	"errors"
	"fmt"
	"strings"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
)

// Sentinels distinguishing the two lookup failure modes. Both surface to the
// user as CodeUnsupported; callers that care which one fired use errors.Is.
var (
	ErrUnsupportedNetwork = errors.New("unsupported network")
	ErrUnsupportedToken   = errors.New("unsupported token")
)

// TokenMetadata describes one whitelisted fungible token on a network.
type TokenMetadata struct {
	Symbol   string   `json:"symbol"`
	Contract string   `json:"contract"`
	Decimals int      `json:"decimals"`
	Aliases  []string `json:"aliases"`
}

// Canonical token tables per network. Immutable after process start; lookups
// are alias-inclusive and case-insensitive.
var tokensByNetwork = map[string][]TokenMetadata{
	"testnet": {
		{
			Symbol:   "USDC",
			Contract: "usdc.tkn.primitives.testnet",
			Decimals: 6,
			Aliases:  []string{"$", "usd", "usdc"},
		},
	},
	"mainnet": {
		{
			Symbol:   "USDC",
			Contract: "17208628f84f5d6ad33f0da3bbbeb27ffcb398eac501a31bd6ad2011e36133a1",
			Decimals: 6,
			Aliases:  []string{"$", "usd", "usdc"},
		},
	},
}

// ResolveToken resolves a token by alias (or symbol) on the given network.
func ResolveToken(network, key string) (TokenMetadata, error) {
	table, err := tokenTable(network)
	if err != nil {
		return TokenMetadata{}, err
	}
	normalized := strings.ToLower(strings.TrimSpace(key))
	for _, meta := range table {
		for _, alias := range meta.Aliases {
			if strings.ToLower(alias) == normalized {
				return meta, nil
			}
		}
	}
	return TokenMetadata{}, clierr.Wrap(
		clierr.CodeUnsupported,
		fmt.Sprintf("unsupported token %q on network %q", key, network),
		ErrUnsupportedToken,
	)
}

// ResolveTokenByContract resolves a token by its contract account id. Used
// when interpreting on-chain state, where only the contract is recorded.
func ResolveTokenByContract(network, contract string) (TokenMetadata, error) {
	table, err := tokenTable(network)
	if err != nil {
		return TokenMetadata{}, err
	}
	normalized := strings.ToLower(strings.TrimSpace(contract))
	for _, meta := range table {
		if strings.ToLower(meta.Contract) == normalized {
			return meta, nil
		}
	}
	return TokenMetadata{}, clierr.Wrap(
		clierr.CodeUnsupported,
		fmt.Sprintf("no registered token with contract %q on network %q", contract, network),
		ErrUnsupportedToken,
	)
}

// Tokens returns the full table for a network, for registry introspection.
func Tokens(network string) ([]TokenMetadata, error) {
	table, err := tokenTable(network)
	if err != nil {
		return nil, err
	}
	out := make([]TokenMetadata, len(table))
	copy(out, table)
	return out, nil
}

func tokenTable(network string) ([]TokenMetadata, error) {
	table, ok := tokensByNetwork[strings.ToLower(strings.TrimSpace(network))]
	if !ok {
		return nil, clierr.Wrap(
			clierr.CodeUnsupported,
			fmt.Sprintf("unsupported network %q", network),
			ErrUnsupportedNetwork,
		)
	}
	return table, nil
}
