package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sudostake/sudostake-cli/internal/config"
	"github.com/sudostake/sudostake-cli/internal/engine"
	clierr "github.com/sudostake/sudostake-cli/internal/errors"
	"github.com/sudostake/sudostake-cli/internal/httpx"
	"github.com/sudostake/sudostake-cli/internal/indexer"
	"github.com/sudostake/sudostake-cli/internal/model"
	"github.com/sudostake/sudostake-cli/internal/nearrpc"
	"github.com/sudostake/sudostake-cli/internal/neartx"
	"github.com/sudostake/sudostake-cli/internal/observability"
	"github.com/sudostake/sudostake-cli/internal/out"
	"github.com/sudostake/sudostake-cli/internal/policy"
	"github.com/sudostake/sudostake-cli/internal/registry"
	"github.com/sudostake/sudostake-cli/internal/schema"
	"github.com/sudostake/sudostake-cli/internal/txlog"
	"github.com/sudostake/sudostake-cli/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	root        *cobra.Command
	lastCommand string
	warnings    []string

	session engine.Session
	engine  *engine.Engine
	txStore *txlog.Store
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r, flags: config.DefaultGlobalFlags()}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	if state.txStore != nil {
		_ = state.txStore.Close()
	}
	if err == nil {
		return 0
	}
	var rendered *renderedError
	if errors.As(err, &rendered) {
		return clierr.ExitCode(rendered.err)
	}
	state.renderError("", err)
	return clierr.ExitCode(err)
}

// renderedError marks an error whose envelope has already been written, so
// Run only maps it to an exit code.
type renderedError struct{ err error }

func (e *renderedError) Error() string { return e.err.Error() }
func (e *renderedError) Unwrap() error { return e.err }

// emitPartial writes a failure envelope that still carries data. Used when a
// result is usable but incomplete, like a delegation summary with failed
// validators.
func (s *runtimeState) emitPartial(commandPath string, data any, cause error) error {
	code := clierr.ExitCode(cause)
	typ := "partial_summary"
	message := cause.Error()
	if cErr, ok := clierr.As(cause); ok {
		message = cErr.Message
	}
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    data,
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Warnings: s.warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Network:   s.settings.Network,
		},
	}
	if err := out.Render(s.runner.stdout, env, s.settings.OutputMode); err != nil {
		return err
	}
	return &renderedError{err: cause}
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Agent-first CLI for SudoStake vaults on NEAR",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.warnings = nil

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			signing := cmd.Annotations[schema.AnnotationRequiresSigning] == "true"
			return s.initEngine(signing)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().StringVar(&s.flags.Network, "network", "", "NEAR network (mainnet or testnet)")
	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "RPC request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", s.flags.Retries, "Retries per view request")
	cmd.PersistentFlags().StringVar(&s.flags.RPCURL, "rpc-url", "", "Override the network RPC endpoint")
	cmd.PersistentFlags().StringVar(&s.flags.IndexerURL, "indexer-url", "", "Override the vault indexer endpoint")
	cmd.PersistentFlags().BoolVar(&s.flags.NoTxLog, "no-tx-log", false, "Disable the local transaction log")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newVaultCommand())
	cmd.AddCommand(s.newStakeCommand())
	cmd.AddCommand(s.newLiquidityCommand())
	cmd.AddCommand(s.newTokensCommand())
	cmd.AddCommand(s.newTxCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// initEngine wires the RPC viewer, the signing caller when the command needs
// one, the indexer and the transaction log into an engine for this
// invocation.
func (s *runtimeState) initEngine(signing bool) error {
	settings := s.settings
	rpcURL := settings.RPCURL
	if rpcURL == "" {
		url, err := registry.RPCURL(settings.Network)
		if err != nil {
			return err
		}
		rpcURL = url
	}

	viewClient := nearrpc.New(httpx.New(settings.Timeout, settings.Retries), rpcURL)

	s.session = engine.Session{
		Network:   settings.Network,
		AccountID: settings.AccountID,
		Mode:      engine.SigningModeView,
	}

	var caller engine.Caller
	if signing {
		if settings.AccountID == "" || settings.PrivateKey == "" {
			return clierr.New(clierr.CodeAuth, "signing keys required: set NEAR_ACCOUNT_ID and NEAR_PRIVATE_KEY")
		}
		key, err := neartx.ParseKeyPair(settings.AccountID, settings.PrivateKey)
		if err != nil {
			return err
		}
		// Change calls go through a non-retrying client; a duplicate
		// broadcast is worse than a reported failure.
		txClient := nearrpc.New(httpx.New(settings.Timeout, 0), rpcURL)
		caller = nearrpc.NewCaller(txClient, key)
		s.session.Mode = engine.SigningModeHeadless
	}

	opts := []engine.Option{}

	indexerURL := settings.IndexerURL
	if indexerURL == "" {
		url, err := registry.IndexerURL(settings.Network)
		if err != nil {
			return err
		}
		indexerURL = url
	}
	opts = append(opts, engine.WithIndexer(indexer.New(httpx.New(settings.Timeout, settings.Retries), indexerURL)))

	if signing && settings.TxLogEnabled {
		store, err := txlog.Open(settings.TxLogPath, settings.TxLogLockPath)
		if err != nil {
			s.warnings = append(s.warnings, fmt.Sprintf("transaction log unavailable: %v", err))
		} else {
			s.txStore = store
			opts = append(opts, engine.WithRecorder(store))
		}
	}

	s.engine = engine.New(viewClient, caller, observability.NewLogger("engine"), opts...)
	return nil
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = strings.Join(args, " ")
			}
			data, err := schema.Build(s.root, path)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data)
		},
	}
}

func (s *runtimeState) emitSuccess(commandPath string, data any) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: s.warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Network:   s.settings.Network,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings.OutputMode)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := "internal_error"
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		switch cErr.Code {
		case clierr.CodeUsage:
			typ = "usage_error"
		case clierr.CodeAuth:
			typ = "auth_error"
		case clierr.CodeRateLimited:
			typ = "rate_limited"
		case clierr.CodeUnavailable:
			typ = "endpoint_unavailable"
		case clierr.CodeUnsupported:
			typ = "unsupported"
		case clierr.CodeBlocked:
			typ = "command_blocked"
		case clierr.CodeContractPanic:
			typ = "contract_panic"
		case clierr.CodeSoftFailure:
			typ = "soft_failure"
		case clierr.CodeNoActiveRequest:
			typ = "no_active_request"
		case clierr.CodePartialSummary:
			typ = "partial_summary"
		}
	}

	mode := s.settings.OutputMode
	if mode == "" {
		mode = "json"
	}
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Warnings: s.warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Network:   s.settings.Network,
		},
	}
	_ = out.Render(s.runner.stderr, env, mode)
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func signingAnnotations() map[string]string {
	return map[string]string{schema.AnnotationRequiresSigning: "true"}
}
