package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceSource reads the account's next usable nonce from the chain.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceManager tracks one nonce lineage per account. The local value only
// moves forward on Confirm; after any failure the caller Resets and the next
// read goes back to the chain.
type NonceManager struct {
	source NonceSource

	mu    sync.Mutex
	next  map[common.Address]uint64
	locks map[common.Address]*sync.Mutex
}

func NewNonceManager(source NonceSource) *NonceManager {
	return &NonceManager{
		source: source,
		next:   map[common.Address]uint64{},
		locks:  map[common.Address]*sync.Mutex{},
	}
}

// Next returns the nonce the next transaction from account must use.
func (m *NonceManager) Next(ctx context.Context, account common.Address) (uint64, error) {
	m.mu.Lock()
	if n, ok := m.next[account]; ok {
		m.mu.Unlock()
		return n, nil
	}
	m.mu.Unlock()

	n, err := m.source.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("fetch nonce for %s: %w", account.Hex(), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.next[account]; ok {
		return cached, nil
	}
	m.next[account] = n
	return n, nil
}

// Confirm records that used was consumed by a successful transaction.
func (m *NonceManager) Confirm(account common.Address, used uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.next[account]; ok && cur > used+1 {
		return
	}
	m.next[account] = used + 1
}

// Reset drops the local lineage for account.
func (m *NonceManager) Reset(account common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.next, account)
}

// Lock serializes whole sequences for one account. Different accounts never
// block each other.
func (m *NonceManager) Lock(account common.Address) func() {
	m.mu.Lock()
	lock, ok := m.locks[account]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[account] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
