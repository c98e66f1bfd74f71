package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	clierr "github.com/ggonzalez94/satsuma/internal/errors"
	"github.com/ggonzalez94/satsuma/internal/execution"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Prompter is the interactive surface of the menu.
type Prompter interface {
	Select(label string, items []string) (int, error)
	Input(label, defaultValue string, validate func(string) error) (string, error)
}

type terminalPrompter struct{}

func (terminalPrompter) Select(label string, items []string) (int, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "▸ {{ . | cyan }}",
		Inactive: "  {{ . | faint }}",
		Selected: "✓ {{ . | green }}",
		Help:     color.New(color.FgYellow).Sprint("Use arrow keys to navigate, Enter to select"),
	}
	sel := promptui.Select{
		Label:     label,
		Items:     items,
		Templates: templates,
		Size:      len(items),
	}
	index, _, err := sel.Run()
	return index, err
}

func (terminalPrompter) Input(label, defaultValue string, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Default:  defaultValue,
		Validate: validate,
	}
	return prompt.Run()
}

type menuItem struct {
	label   string
	command string
	run     func(ctx context.Context) error
}

func (s *runtimeState) newMenuCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Open the interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.runMenu(cmd.Context())
		},
	}
}

// runMenu loops until the operator picks exit or interrupts the prompt. A
// failing or panicking option is reported and the menu is shown again.
func (s *runtimeState) runMenu(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	items := s.menuItems()
	labels := make([]string, 0, len(items)+1)
	for _, item := range items {
		labels = append(labels, item.label)
	}
	labels = append(labels, "Exit")

	prompter := s.runner.prompter
	for {
		index, err := prompter.Select("Satsuma menu", labels)
		if err != nil {
			if isPromptExit(err) {
				return nil
			}
			return clierr.Wrap(clierr.CodeInternal, "menu selection", err)
		}
		if index == len(items) {
			s.logger.Info("exiting")
			return nil
		}
		s.runMenuItem(ctx, items[index])
	}
}

func (s *runtimeState) runMenuItem(ctx context.Context, item menuItem) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("menu option panicked", zap.String("option", item.label), zap.Any("panic", r))
		}
	}()
	s.rendered = false
	s.lastCommand = "menu"
	err := s.allow.Check(item.command)
	if err == nil {
		err = item.run(ctx)
	}
	if err == nil || isPromptExit(err) {
		return
	}
	if !s.rendered {
		s.renderError("menu", normalizeRunError(err))
	}
	s.rendered = false
}

func (s *runtimeState) menuItems() []menuItem {
	p := s.runner.prompter
	return []menuItem{
		{label: "Start automated run", command: "run", run: func(ctx context.Context) error {
			return s.runCampaign(ctx, "menu run", 0, nil)
		}},
		{label: "Set planned transaction count", command: "count", run: func(ctx context.Context) error {
			raw, err := p.Input("Transaction count", "", validatePositiveInt)
			if err != nil {
				return err
			}
			n, _ := strconv.Atoi(strings.TrimSpace(raw))
			status, err := s.setPlannedCount(n)
			if err != nil {
				return err
			}
			return s.emitSuccess("menu count", status)
		}},
		{label: "Manual swap", command: "swap", run: func(ctx context.Context) error {
			s.printTokenHints()
			in, err := p.Input("Token in", "", nil)
			if err != nil {
				return err
			}
			outTok, err := p.Input("Token out", "", nil)
			if err != nil {
				return err
			}
			amt, err := p.Input("Amount", "", validatePositiveDecimal)
			if err != nil {
				return err
			}
			spec, err := swapSpec(s.chain, in, outTok, amt)
			if err != nil {
				return err
			}
			return s.executeAction(ctx, "menu swap", spec)
		}},
		{label: "Add liquidity", command: "liquidity", run: func(ctx context.Context) error {
			s.printTokenHints()
			a, err := p.Input("Token A", "", nil)
			if err != nil {
				return err
			}
			b, err := p.Input("Token B", "", nil)
			if err != nil {
				return err
			}
			amtA, err := p.Input("Amount A", "", validatePositiveDecimal)
			if err != nil {
				return err
			}
			amtB, err := p.Input("Amount B", "", validatePositiveDecimal)
			if err != nil {
				return err
			}
			spec, err := liquiditySpec(s.chain, a, b, amtA, amtB)
			if err != nil {
				return err
			}
			return s.executeAction(ctx, "menu liquidity", spec)
		}},
		{label: "Lock SUMA for veSUMA", command: "lock", run: func(ctx context.Context) error {
			amt, err := p.Input("SUMA amount", "", validatePositiveDecimal)
			if err != nil {
				return err
			}
			rawDays, err := p.Input("Lock time (days)", "7", validatePositiveInt)
			if err != nil {
				return err
			}
			days, _ := strconv.Atoi(strings.TrimSpace(rawDays))
			spec, err := lockSpec(amt, days)
			if err != nil {
				return err
			}
			return s.executeAction(ctx, "menu lock", spec)
		}},
		{label: "Withdraw expired lock", command: "unlock", run: func(ctx context.Context) error {
			return s.executeAction(ctx, "menu unlock", execution.ConvertFromLockSpec{})
		}},
		{label: "Stake veSUMA", command: "stake", run: func(ctx context.Context) error {
			amt, err := p.Input("veSUMA amount", "", validatePositiveDecimal)
			if err != nil {
				return err
			}
			spec, err := stakeSpec(amt)
			if err != nil {
				return err
			}
			return s.executeAction(ctx, "menu stake", spec)
		}},
		{label: "Vote with veSUMA", command: "vote", run: func(ctx context.Context) error {
			gauge, err := p.Input("Gauge address", s.chain.Contracts.Gauge.Hex(), nil)
			if err != nil {
				return err
			}
			weight, err := p.Input("Vote weight", "", validatePositiveInt)
			if err != nil {
				return err
			}
			spec, err := voteSpec(s.chain, gauge, weight)
			if err != nil {
				return err
			}
			return s.executeAction(ctx, "menu vote", spec)
		}},
		{label: "Show balances", command: "balances", run: func(ctx context.Context) error {
			ctx, cancel := signalContext(ctx)
			defer cancel()
			balances, err := s.balances(ctx)
			if err != nil {
				return err
			}
			return s.emitSuccess("menu balances", balances)
		}},
		{label: "Show history", command: "history", run: func(ctx context.Context) error {
			outcomes, err := s.recentOutcomes("", execution.DefaultHistorySize)
			if err != nil {
				return err
			}
			return s.emitSuccess("menu history", outcomes)
		}},
	}
}

func (s *runtimeState) printTokenHints() {
	hint := color.New(color.Faint)
	for _, tok := range s.chain.Tokens {
		symbol := tok.Symbol
		if tok.IsNative() {
			symbol = s.chain.NativeSymbol
		}
		_, _ = hint.Fprintf(s.runner.stdout, "  %-6s %s\n", symbol, tok.Address.Hex())
	}
}

func isPromptExit(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort)
}

func validatePositiveInt(raw string) error {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive whole number")
	}
	return nil
}

func validatePositiveDecimal(raw string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f <= 0 {
		return fmt.Errorf("enter a positive amount")
	}
	return nil
}
