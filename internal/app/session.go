package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ggonzalez94/satsuma/internal/cache"
	"github.com/ggonzalez94/satsuma/internal/chain"
	clierr "github.com/ggonzalez94/satsuma/internal/errors"
	"github.com/ggonzalez94/satsuma/internal/execution"
	execsigner "github.com/ggonzalez94/satsuma/internal/execution/signer"
	"github.com/ggonzalez94/satsuma/internal/out"
	"go.uber.org/zap"
)

// session is everything a command needs once it talks to the chain.
type session struct {
	client    *ethclient.Client
	account   common.Address
	tokens    *chain.TokenReader
	decimals  *cache.TokenDecimals
	history   *execution.History
	sequencer *execution.Sequencer
}

// connect loads the signer, dials the RPC and wires the execution stack. The
// signer is loaded first so a missing key fails before any network access.
func (s *runtimeState) connect(ctx context.Context) (*session, error) {
	if s.session != nil {
		return s.session, nil
	}
	txSigner, err := execsigner.Load(s.keySource, s.privateKey)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "load signer", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()
	client, err := chain.Dial(dialCtx, s.chain.RPCURL, s.chain.ChainID)
	if err != nil {
		return nil, err
	}

	account := txSigner.Address()
	if s.settings.OutputMode == "plain" {
		_ = out.Banner(s.runner.stderr, s.chain.Name, s.chain.ChainID, s.chain.RPCURL, account.Hex())
	}
	s.logger.Debug("connected", zap.String("rpc", s.chain.RPCURL), zap.Int64("chain_id", s.chain.ChainID), zap.String("account", account.Hex()), zap.String("key_origin", txSigner.Origin()))

	store, err := s.openHistory()
	if err != nil {
		client.Close()
		return nil, err
	}
	cacheStore, err := s.openCache()
	if err != nil {
		client.Close()
		return nil, err
	}

	tokens := chain.NewTokenReader(client)
	decimals := cache.NewTokenDecimals(cacheStore, tokens, s.chain.ChainID)
	history := execution.NewHistory(execution.DefaultHistorySize, store, s.logger)
	builder := execution.NewBuilder(s.chain, s.settings.Gas, client)
	submitter := execution.NewSubmitter(client, txSigner, s.chain, s.settings.SubmitOptions(), s.logger, s.metrics)
	gate := execution.NewApprovalGate(tokens, builder, submitter, history, s.logger, s.metrics)
	sequencer := execution.NewSequencer(execution.SequencerDeps{
		Chain:     s.chain,
		Account:   account,
		Nonces:    execution.NewNonceManager(client),
		Decimals:  decimals,
		Locks:     tokens,
		Gate:      gate,
		Builder:   builder,
		Submitter: submitter,
		History:   history,
		Logger:    s.logger,
	})

	s.session = &session{
		client:    client,
		account:   account,
		tokens:    tokens,
		decimals:  decimals,
		history:   history,
		sequencer: sequencer,
	}
	return s.session, nil
}

func (s *runtimeState) openHistory() (*execution.Store, error) {
	if s.history != nil {
		return s.history, nil
	}
	store, err := execution.OpenStore(s.settings.HistoryPath, s.settings.HistoryLockPath)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open history store", err)
	}
	s.history = store
	return store, nil
}

// openCache returns nil when caching is disabled; TokenDecimals then reads
// straight from the chain.
func (s *runtimeState) openCache() (*cache.Store, error) {
	if !s.settings.CacheEnabled {
		return nil, nil
	}
	if s.cache != nil {
		return s.cache, nil
	}
	store, err := cache.Open(s.settings.CachePath, s.settings.CacheLockPath)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open cache", err)
	}
	s.cache = store
	return store, nil
}

// signalContext is cancelled on the first interrupt or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
