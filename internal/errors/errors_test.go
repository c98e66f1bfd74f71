package errors

import (
	"fmt"
	"testing"
)

func TestExitCodeUnwrapsTypedErrors(t *testing.T) {
	base := Wrap(CodeSigner, "load signer", fmt.Errorf("missing key"))
	wrapped := fmt.Errorf("startup: %w", base)
	if got := ExitCode(wrapped); got != int(CodeSigner) {
		t.Fatalf("expected signer exit code, got %d", got)
	}
	if got := ExitCode(fmt.Errorf("plain")); got != int(CodeInternal) {
		t.Fatalf("expected internal exit code for untyped error, got %d", got)
	}
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("expected success exit code, got %d", got)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(CodeUnavailable, "connect rpc", fmt.Errorf("dial tcp: refused"))
	if err.Error() != "connect rpc: dial tcp: refused" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if TypeName(CodeUnavailable) != "rpc_unavailable" {
		t.Fatalf("unexpected type name: %s", TypeName(CodeUnavailable))
	}
}
