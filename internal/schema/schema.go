// Package schema serializes the command tree so agents can discover the
// CLI surface without parsing help text.
package schema

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// AnnotationRequiresSigning marks commands that submit signed transactions.
// Agents use it to know which commands need NEAR_ACCOUNT_ID and
// NEAR_PRIVATE_KEY before invocation.
const AnnotationRequiresSigning = "requires_signing"

type CommandSchema struct {
	Path            string          `json:"path"`
	Use             string          `json:"use"`
	Short           string          `json:"short"`
	Aliases         []string        `json:"aliases,omitempty"`
	RequiresSigning bool            `json:"requires_signing,omitempty"`
	Flags           []FlagSchema    `json:"flags,omitempty"`
	Subcommands     []CommandSchema `json:"subcommands,omitempty"`
}

type FlagSchema struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
}

func Build(root *cobra.Command, commandPath string) (CommandSchema, error) {
	cmd := root
	if strings.TrimSpace(commandPath) != "" {
		parts := strings.Fields(strings.TrimSpace(commandPath))
		for _, p := range parts {
			found := false
			for _, c := range cmd.Commands() {
				if c.Name() == p || contains(c.Aliases, p) {
					cmd = c
					found = true
					break
				}
			}
			if !found {
				return CommandSchema{}, fmt.Errorf("command not found: %s", commandPath)
			}
		}
	}
	return serialize(cmd), nil
}

func serialize(cmd *cobra.Command) CommandSchema {
	s := CommandSchema{
		Path:            strings.TrimSpace(cmd.CommandPath()),
		Use:             cmd.Use,
		Short:           cmd.Short,
		Aliases:         cmd.Aliases,
		RequiresSigning: cmd.Annotations[AnnotationRequiresSigning] == "true",
		Flags:           collectFlags(cmd),
	}

	for _, sub := range cmd.Commands() {
		if sub.Hidden {
			continue
		}
		s.Subcommands = append(s.Subcommands, serialize(sub))
	}

	return s
}

func collectFlags(cmd *cobra.Command) []FlagSchema {
	items := []FlagSchema{}
	cmd.NonInheritedFlags().VisitAll(func(f *pflag.Flag) {
		items = append(items, FlagSchema{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Usage:     f.Usage,
			Default:   f.DefValue,
		})
	})
	return items
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
