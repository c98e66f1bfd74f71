package out

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/ggonzalez94/satsuma/internal/execution"
)

var (
	successStyle = color.New(color.FgGreen, color.Bold)
	failureStyle = color.New(color.FgRed, color.Bold)
	hashStyle    = color.New(color.FgCyan)
	faintStyle   = color.New(color.Faint)
	headerStyle  = color.New(color.Bold, color.FgHiWhite)
	bannerStyle  = color.New(color.FgYellow, color.Bold)
)

// OutcomeLine prints the one-line operator summary of an outcome.
func OutcomeLine(w io.Writer, o execution.Outcome) error {
	if o.Success {
		line := fmt.Sprintf("%s %s", successStyle.Sprint("✓"), successStyle.Sprintf("%s confirmed", o.Kind))
		if o.TxHash != "" {
			line += " " + hashStyle.Sprint(o.TxHash)
		}
		if o.ExplorerURL != "" {
			line += " " + faintStyle.Sprint(o.ExplorerURL)
		}
		_, err := fmt.Fprintln(w, line)
		return err
	}
	line := fmt.Sprintf("%s %s", failureStyle.Sprint("✗"), failureStyle.Sprintf("%s failed", o.Kind))
	if o.Class != execution.ClassNone {
		line += fmt.Sprintf(" (%s)", o.Class)
	}
	if o.Error != "" {
		line += ": " + o.Error
	}
	if o.TxHash != "" {
		line += " " + hashStyle.Sprint(o.TxHash)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// HistoryTable prints outcomes oldest first, one row each.
func HistoryTable(w io.Writer, outcomes []execution.Outcome) error {
	if len(outcomes) == 0 {
		_, err := fmt.Fprintln(w, faintStyle.Sprint("no transactions recorded yet"))
		return err
	}
	if _, err := fmt.Fprintln(w, headerStyle.Sprintf("%-20s %-14s %-8s %s", "TIME", "KIND", "STATUS", "TX")); err != nil {
		return err
	}
	for _, o := range outcomes {
		status := successStyle.Sprintf("%-8s", "ok")
		if !o.Success {
			status = failureStyle.Sprintf("%-8s", "failed")
		}
		tx := o.TxHash
		if tx == "" {
			tx = faintStyle.Sprint("-")
		}
		if _, err := fmt.Fprintf(w, "%-20s %-14s %s %s\n", o.Timestamp.Local().Format(time.DateTime), o.Kind, status, tx); err != nil {
			return err
		}
	}
	return nil
}

func ErrorLine(w io.Writer, typ, message string) error {
	_, err := fmt.Fprintf(w, "%s %s\n", failureStyle.Sprintf("error[%s]", typ), message)
	return err
}

// Banner is printed once when a command connects to the chain.
func Banner(w io.Writer, chainName string, chainID int64, rpcURL, account string) error {
	lines := []string{
		bannerStyle.Sprintf("satsuma · %s (chain %d)", chainName, chainID),
		faintStyle.Sprintf("rpc      %s", rpcURL),
	}
	if account != "" {
		lines = append(lines, faintStyle.Sprintf("account  %s", account))
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}
