package schema

import (
	"testing"

	"github.com/spf13/cobra"
)

func testTree() *cobra.Command {
	root := &cobra.Command{Use: "satsuma"}
	root.PersistentFlags().Bool("json", false, "Output JSON")
	swap := &cobra.Command{Use: "swap", Short: "swap tokens", Run: func(*cobra.Command, []string) {}}
	swap.Flags().String("amount", "", "amount in human units")
	_ = swap.MarkFlagRequired("amount")
	swap.Flags().String("token-in", "", "token to sell")
	hidden := &cobra.Command{Use: "debug", Hidden: true, Run: func(*cobra.Command, []string) {}}
	root.AddCommand(swap, hidden)
	return root
}

func TestBuildSchemaForLeaf(t *testing.T) {
	s, err := Build(testTree(), "swap")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Path != "satsuma swap" {
		t.Fatalf("unexpected path: %s", s.Path)
	}
	if len(s.Flags) != 2 {
		t.Fatalf("unexpected flags: %+v", s.Flags)
	}
	byName := map[string]FlagSchema{}
	for _, f := range s.Flags {
		byName[f.Name] = f
	}
	if !byName["amount"].Required || byName["token-in"].Required {
		t.Fatalf("unexpected required markers: %+v", s.Flags)
	}
	if len(s.Inherited) != 1 || s.Inherited[0].Name != "json" {
		t.Fatalf("expected inherited json flag, got %+v", s.Inherited)
	}
}

func TestBuildSchemaSkipsHiddenCommands(t *testing.T) {
	s, err := Build(testTree(), "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for _, sub := range s.Subcommands {
		if sub.Use == "debug" {
			t.Fatal("hidden command should not be listed")
		}
	}
	if _, err := Build(testTree(), "bridge"); err == nil {
		t.Fatal("expected unknown command error")
	}
}
