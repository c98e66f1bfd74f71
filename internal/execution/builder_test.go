package execution

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/satsuma/internal/registry"
)

func TestSelectorCallEncodesSelectorThenArguments(t *testing.T) {
	call := SelectorCall{
		Label:    "create_lock",
		Selector: registry.MustSelector(registry.SelectorCreateLock),
		Inputs:   Uint256Arguments(2),
		Args:     []any{big.NewInt(1), big.NewInt(2)},
	}
	data, err := call.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	packed, err := Uint256Arguments(2).Pack(big.NewInt(1), big.NewInt(2))
	if err != nil {
		t.Fatalf("pack args: %v", err)
	}
	want := append(common.FromHex("0x65fc3873"), packed...)
	if !bytes.Equal(data, want) {
		t.Fatalf("unexpected encoding: %x", data)
	}
	if call.Encoding() != EncodingSelector || call.Method() != "create_lock" {
		t.Fatalf("unexpected call metadata: %s %s", call.Encoding(), call.Method())
	}

	if _, err := (SelectorCall{Selector: call.Selector, Inputs: Uint256Arguments(2), Args: []any{big.NewInt(1)}}).Encode(); err == nil {
		t.Fatal("expected argument count mismatch error")
	}
	if got := (SelectorCall{Selector: [4]byte{0x3c, 0xcf, 0xd6, 0x0b}}).Method(); got != "0x3ccfd60b" {
		t.Fatalf("unexpected unlabeled method: %s", got)
	}
}

func TestABICallRejectsUnknownMethod(t *testing.T) {
	if _, err := (ABICall{ABI: erc20ABI, Name: "transferFrom"}).Encode(); err == nil {
		t.Fatal("expected unknown method error")
	}
}

func TestBuilderRequestsShareShape(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	abiReq, err := h.builder.Stake(ctx, h.account, big.NewInt(10), 4)
	if err != nil {
		t.Fatalf("Stake failed: %v", err)
	}
	selReq, err := h.builder.Withdraw(ctx, h.account, 5)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if abiReq.Encoding != EncodingABI || selReq.Encoding != EncodingSelector {
		t.Fatalf("unexpected encodings: %s %s", abiReq.Encoding, selReq.Encoding)
	}
	for _, req := range []TransactionRequest{abiReq, selReq} {
		if req.From != h.account || req.GasPrice.Cmp(big.NewInt(1_000_000_000)) != 0 || req.Value.Sign() != 0 {
			t.Fatalf("unexpected request: %+v", req)
		}
	}
	if selReq.Nonce != 5 || selReq.GasLimit != 200_000 || len(selReq.Data) != 4 {
		t.Fatalf("unexpected withdraw request: %+v", selReq)
	}
}

func TestBuilderRejectsMissingTarget(t *testing.T) {
	h := newHarness(t)
	cfg := h.chain
	cfg.Contracts.Voter = common.Address{}
	b := NewBuilder(cfg, DefaultGasPolicy(), h.fake)
	if _, err := b.Vote(context.Background(), h.account, cfg.Contracts.Gauge, big.NewInt(1), 0); err == nil {
		t.Fatal("expected missing voter contract error")
	}
}

func TestGasPolicyFallsBackToDefaults(t *testing.T) {
	policy := GasPolicy{Swap: 350_000}
	if policy.Limit(KindSwap) != 350_000 {
		t.Fatalf("expected override, got %d", policy.Limit(KindSwap))
	}
	want := map[Kind]uint64{
		KindApprove:      100_000,
		KindAddLiquidity: 400_000,
		KindLock:         400_000,
		KindUnlock:       200_000,
		KindStake:        400_000,
		KindVote:         200_000,
	}
	for kind, limit := range want {
		if got := policy.Limit(kind); got != limit {
			t.Errorf("%s: expected %d, got %d", kind, limit, got)
		}
	}
}
