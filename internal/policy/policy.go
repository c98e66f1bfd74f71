package policy

import (
	"strings"

	clierr "github.com/ggonzalez94/satsuma/internal/errors"
	"github.com/samber/lo"
)

// Allowlist restricts which command paths may run. An empty allowlist allows
// every command. The bare root command is the interactive menu.
type Allowlist []string

func NewAllowlist(entries []string) Allowlist {
	normalized := lo.Map(entries, func(v string, _ int) string { return normalize(v) })
	return lo.Uniq(lo.Compact(normalized))
}

func (a Allowlist) Allows(commandPath string) bool {
	if len(a) == 0 {
		return true
	}
	path := normalize(commandPath)
	if path == "" {
		path = "menu"
	}
	return lo.Contains(a, path)
}

func (a Allowlist) Check(commandPath string) error {
	if a.Allows(commandPath) {
		return nil
	}
	name := normalize(commandPath)
	if name == "" {
		name = "menu"
	}
	return clierr.New(clierr.CodeBlocked, "command "+name+" blocked by --enable-commands policy")
}

func normalize(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(v)), " ")
}
