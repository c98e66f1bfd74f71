package execution

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ggonzalez94/satsuma/internal/execution/signer"
	"github.com/ggonzalez94/satsuma/internal/registry"
)

const testPrivateKey = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

// fakeChain is an in-memory chain.Client that also serves the token reads
// the sequencer needs.
type fakeChain struct {
	mu sync.Mutex

	pendingNonce  uint64
	nonceCalls    int
	nonceErr      error
	gasPrice      *big.Int
	allowances    map[common.Address]*big.Int
	allowanceErr  error
	allowanceRead int
	decimals      map[common.Address]int
	decimalsErr   error
	lockEnd       time.Time
	lockErr       error
	sendErr       error
	callErr       error
	receiptMisses int
	// statuses[i] is the receipt status of the i-th sent transaction.
	statuses []uint64
	sent     []*types.Transaction
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		gasPrice:   big.NewInt(1_000_000_000),
		allowances: map[common.Address]*big.Int{},
		decimals:   map[common.Address]int{},
	}
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(registry.ChainIDCitreaTestnet), nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	return f.pendingNonce, f.nonceErr
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeChain) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return nil, errors.New("execution reverted")
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptMisses > 0 {
		f.receiptMisses--
		return nil, ethereum.NotFound
	}
	for i, tx := range f.sent {
		if tx.Hash() != hash {
			continue
		}
		status := types.ReceiptStatusSuccessful
		if i < len(f.statuses) {
			status = f.statuses[i]
		}
		return &types.Receipt{Status: status, TxHash: hash, BlockNumber: big.NewInt(int64(100 + i))}, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeChain) Allowance(_ context.Context, token, _, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowanceRead++
	if f.allowanceErr != nil {
		return nil, f.allowanceErr
	}
	if v, ok := f.allowances[token]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) Decimals(_ context.Context, token common.Address) (int, error) {
	if f.decimalsErr != nil {
		return 0, f.decimalsErr
	}
	if d, ok := f.decimals[token]; ok {
		return d, nil
	}
	return 18, nil
}

func (f *fakeChain) LockEnd(context.Context, common.Address, common.Address) (time.Time, error) {
	return f.lockEnd, f.lockErr
}

func (f *fakeChain) sentNonces() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, 0, len(f.sent))
	for _, tx := range f.sent {
		out = append(out, tx.Nonce())
	}
	return out
}

type harness struct {
	chain     registry.Chain
	fake      *fakeChain
	account   common.Address
	nonces    *NonceManager
	history   *History
	builder   *Builder
	submitter *Submitter
	gate      *ApprovalGate
	seq       *Sequencer
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := registry.CitreaTestnet()
	fake := newFakeChain()
	txSigner, err := signer.FromHex(testPrivateKey)
	if err != nil {
		t.Fatalf("NewLocalSigner failed: %v", err)
	}

	nonces := NewNonceManager(fake)
	history := NewHistory(DefaultHistorySize, nil, nil)
	builder := NewBuilder(cfg, DefaultGasPolicy(), fake)
	builder.now = func() time.Time { return fixedNow }
	submitter := NewSubmitter(fake, txSigner, cfg, SubmitOptions{PollInterval: time.Millisecond}, nil, nil)
	gate := NewApprovalGate(fake, builder, submitter, history, nil, nil)
	seq := NewSequencer(SequencerDeps{
		Chain:     cfg,
		Account:   txSigner.Address(),
		Nonces:    nonces,
		Decimals:  fake,
		Locks:     fake,
		Gate:      gate,
		Builder:   builder,
		Submitter: submitter,
		History:   history,
	})
	seq.now = func() time.Time { return fixedNow }
	return &harness{
		chain:     cfg,
		fake:      fake,
		account:   txSigner.Address(),
		nonces:    nonces,
		history:   history,
		builder:   builder,
		submitter: submitter,
		gate:      gate,
		seq:       seq,
	}
}

func (h *harness) token(t *testing.T, symbol string) common.Address {
	t.Helper()
	tok, err := h.chain.Token(symbol)
	if err != nil {
		t.Fatalf("lookup %s: %v", symbol, err)
	}
	return tok.Address
}
