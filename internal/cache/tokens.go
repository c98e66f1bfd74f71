package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MaxAge bounds how long cached metadata is trusted. Decimals never change
// once deployed, the bound only catches redeployed testnet addresses.
const MaxAge = 30 * 24 * time.Hour

type DecimalsReader interface {
	Decimals(ctx context.Context, token common.Address) (int, error)
}

// TokenDecimals reads token decimals through the sqlite cache. A nil store
// makes it a plain pass-through.
type TokenDecimals struct {
	store   *Store
	reader  DecimalsReader
	chainID int64
}

func NewTokenDecimals(store *Store, reader DecimalsReader, chainID int64) *TokenDecimals {
	if store != nil {
		_ = store.Prune(MaxAge)
	}
	return &TokenDecimals{store: store, reader: reader, chainID: chainID}
}

func (t *TokenDecimals) Decimals(ctx context.Context, token common.Address) (int, error) {
	if t.store != nil {
		if entry, ok, err := t.store.Lookup(t.chainID, token, MaxAge); err == nil && ok {
			return entry.Decimals, nil
		}
	}
	decimals, err := t.reader.Decimals(ctx, token)
	if err != nil {
		return 0, err
	}
	if decimals < 0 || decimals > 77 {
		return 0, fmt.Errorf("token %s reports implausible decimals %d", token.Hex(), decimals)
	}
	if t.store != nil {
		_ = t.store.Put(t.chainID, token, Entry{Decimals: decimals})
	}
	return decimals, nil
}
