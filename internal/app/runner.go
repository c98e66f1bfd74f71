package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ggonzalez94/satsuma/internal/cache"
	"github.com/ggonzalez94/satsuma/internal/config"
	clierr "github.com/ggonzalez94/satsuma/internal/errors"
	"github.com/ggonzalez94/satsuma/internal/execution"
	"github.com/ggonzalez94/satsuma/internal/logging"
	"github.com/ggonzalez94/satsuma/internal/metrics"
	"github.com/ggonzalez94/satsuma/internal/model"
	"github.com/ggonzalez94/satsuma/internal/out"
	"github.com/ggonzalez94/satsuma/internal/policy"
	"github.com/ggonzalez94/satsuma/internal/registry"
	"github.com/ggonzalez94/satsuma/internal/runstate"
	"github.com/ggonzalez94/satsuma/internal/schema"
	"github.com/ggonzalez94/satsuma/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type Runner struct {
	stdout   io.Writer
	stderr   io.Writer
	now      func() time.Time
	prompter Prompter
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout:   stdout,
		stderr:   stderr,
		now:      time.Now,
		prompter: terminalPrompter{},
	}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	chain       registry.Chain
	allow       policy.Allowlist
	logger      *zap.Logger
	metrics     *metrics.Metrics
	root        *cobra.Command
	lastCommand string
	// rendered is set once a command has already written its own failure.
	rendered bool

	keySource  string
	privateKey string

	history *execution.Store
	cache   *cache.Store
	state   *runstate.Store
	session *session
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	state.close()
	if err == nil {
		return 0
	}
	if !state.rendered {
		state.renderError("", err)
	}
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Satsuma DEX automation and governance CLI for Citrea testnet",
		Long: "Runs randomized swap campaigns and one-off swap, liquidity, lock, stake and vote\n" +
			"actions against the Satsuma deployment. Without a subcommand an interactive menu opens.",
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.lastCommand = trimRootPath(cmd.CommandPath())
			if !cmd.HasParent() {
				s.lastCommand = ""
			}
			s.allow = policy.NewAllowlist(settings.EnableCommands)
			if err := s.allow.Check(s.lastCommand); err != nil {
				return err
			}

			chainCfg, err := settings.Chain()
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "resolve chain configuration", err)
			}
			s.chain = chainCfg
			s.logger = logging.New(settings.LogLevel, s.runner.stderr)
			s.metrics = metrics.New()
			s.state = runstate.NewStore(settings.RunStatePath, settings.RunStateLockPath)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runMenu(cmd.Context())
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text (default)")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "RPC connect and read timeout")
	cmd.PersistentFlags().StringVar(&s.flags.RPCURL, "rpc-url", "", "Override the chain RPC endpoint")
	cmd.PersistentFlags().StringVar(&s.flags.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&s.flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during runs")
	cmd.PersistentFlags().BoolVar(&s.flags.NoCache, "no-cache", false, "Disable the token metadata cache")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.EnvFile, "env-file", "", "Load environment variables from this file instead of ./.env")
	cmd.PersistentFlags().StringVar(&s.keySource, "key-source", "auto", "Signer key source (auto|env|file)")
	cmd.PersistentFlags().StringVar(&s.privateKey, "private-key", "", "Private key hex override (unsafe: visible in process list)")

	cmd.AddCommand(s.newRunCommand())
	cmd.AddCommand(s.newCountCommand())
	cmd.AddCommand(s.newStatusCommand())
	cmd.AddCommand(s.newSwapCommand())
	cmd.AddCommand(s.newLiquidityCommand())
	cmd.AddCommand(s.newLockCommand())
	cmd.AddCommand(s.newUnlockCommand())
	cmd.AddCommand(s.newStakeCommand())
	cmd.AddCommand(s.newVoteCommand())
	cmd.AddCommand(s.newBalancesCommand())
	cmd.AddCommand(s.newHistoryCommand())
	cmd.AddCommand(s.newMenuCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.Build(s.root, strings.Join(args, " "))
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data)
		},
	}
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

func (s *runtimeState) emitSuccess(commandPath string, data any) error {
	return out.Render(s.runner.stdout, s.envelope(commandPath, true, data, nil), s.settings)
}

// emitOutcome renders a terminal outcome. A failed outcome is rendered in
// full here and surfaces as an already-rendered error carrying its exit code.
func (s *runtimeState) emitOutcome(commandPath string, outcome execution.Outcome) error {
	if outcome.Success {
		return s.emitSuccess(commandPath, outcome)
	}
	code := clierr.CodeActionFailed
	if outcome.Class == execution.ClassValidation {
		code = clierr.CodeUsage
	}
	body := &model.ErrorBody{Code: int(code), Type: clierr.TypeName(code), Message: outcome.Error}
	if err := out.Render(s.runner.stdout, s.envelope(commandPath, false, outcome, body), s.settings); err != nil {
		return err
	}
	s.rendered = true
	return clierr.New(code, fmt.Sprintf("%s failed (%s): %s", outcome.Kind, outcome.Class, outcome.Error))
}

func (s *runtimeState) envelope(commandPath string, success bool, data any, body *model.ErrorBody) model.Envelope {
	meta := model.EnvelopeMeta{
		RequestID: newRequestID(),
		Timestamp: s.runner.now().UTC(),
		Command:   commandPath,
	}
	if s.chain.ChainID != 0 {
		meta.ChainID = s.chain.CAIP2()
	}
	if s.session != nil {
		meta.Account = s.session.account.Hex()
	}
	return model.Envelope{
		Version: model.EnvelopeVersion,
		Success: success,
		Data:    data,
		Error:   body,
		Meta:    meta,
	}
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := clierr.TypeName(clierr.Code(code))
	message := err.Error()

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "plain"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := s.envelope(commandPath, false, nil, &model.ErrorBody{
		Code:    code,
		Type:    typ,
		Message: message,
	})
	_ = out.Render(s.runner.stderr, env, settings)
}

func (s *runtimeState) close() {
	if s.session != nil && s.session.client != nil {
		s.session.client.Close()
	}
	if s.history != nil {
		_ = s.history.Close()
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
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

