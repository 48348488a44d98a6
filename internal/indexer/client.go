// Package indexer registers vaults with the hosted discovery index so agents
// and dashboards can find them. Indexing is advisory; callers treat failures
// as warnings, never as financial errors.
package indexer

import (
	"context"
	"encoding/json"
	"strings"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
	"github.com/sudostake/sudostake-cli/internal/httpx"
)

type Client struct {
	http    *httpx.Client
	baseURL string
}

func New(http *httpx.Client, baseURL string) *Client {
	return &Client{http: http, baseURL: strings.TrimRight(baseURL, "/")}
}

type indexVaultRequest struct {
	Vault string `json:"vault"`
}

// IndexVault asks the index to refresh its record of the vault.
func (c *Client) IndexVault(ctx context.Context, vaultID string) error {
	body, err := json.Marshal(indexVaultRequest{Vault: vaultID})
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "encode index request", err)
	}
	return c.http.PostJSON(ctx, c.baseURL+"/index_vault", body, nil)
}
