package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/samber/lo"
)

const (
	EnvPrivateKey       = "SATSUMA_PRIVATE_KEY"
	EnvLegacyPrivateKey = "PRIVATE_KEY_1"
	EnvPrivateKeyFile   = "SATSUMA_PRIVATE_KEY_FILE"

	SourceAuto = "auto"
	SourceEnv  = "env"
	SourceFile = "file"

	keyFileName = "satsuma/key.hex"
	keyFileHint = "~/.config/satsuma/key.hex"
)

// Values shipped in example .env files. Loading one of them is always a
// configuration mistake.
var placeholderKeys = []string{"your_private_key_here", "0x...", "...", "changeme"}

var (
	ErrPlaceholderKey = errors.New("private key is a placeholder value")
	ErrMissingKey     = errors.New("missing signing key")
)

// LocalSigner holds one raw secp256k1 key in memory.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	origin  string
}

func (s *LocalSigner) Address() common.Address { return s.address }

// Origin names where the key was read from, e.g. "env SATSUMA_PRIVATE_KEY".
func (s *LocalSigner) Origin() string { return s.origin }

func (s *LocalSigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("local signer is not initialized")
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// FromHex builds a signer from a hex private key with or without 0x.
func FromHex(raw string) (*LocalSigner, error) {
	return fromHex(raw, "inline")
}

// Load resolves the key for source. An explicit override always wins. In auto
// mode the environment is tried before the key file.
func Load(source, override string) (*LocalSigner, error) {
	if v := strings.TrimSpace(override); v != "" {
		return fromHex(v, "--private-key")
	}
	source = strings.ToLower(strings.TrimSpace(source))
	switch source {
	case "", SourceAuto:
		s, err := fromEnv()
		if !errors.Is(err, ErrMissingKey) {
			return s, err
		}
		return fromFile()
	case SourceEnv:
		return fromEnv()
	case SourceFile:
		return fromFile()
	default:
		return nil, fmt.Errorf("unsupported key source %q (expected %s|%s|%s)", source, SourceAuto, SourceEnv, SourceFile)
	}
}

func fromEnv() (*LocalSigner, error) {
	for _, name := range []string{EnvPrivateKey, EnvLegacyPrivateKey} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return fromHex(v, "env "+name)
		}
	}
	return nil, missingKey()
}

func fromFile() (*LocalSigner, error) {
	path := strings.TrimSpace(os.Getenv(EnvPrivateKeyFile))
	if path == "" {
		path = DefaultKeyFile()
		if info, err := os.Stat(path); path == "" || err != nil || info.IsDir() {
			return nil, missingKey()
		}
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key file: %w", err)
	}
	return fromHex(string(buf), "file "+path)
}

func missingKey() error {
	return fmt.Errorf("%w: set %s, put a key in %s, or pass --private-key", ErrMissingKey, EnvPrivateKey, keyFileHint)
}

func fromHex(raw, origin string) (*LocalSigner, error) {
	clean := strings.TrimSpace(raw)
	if isPlaceholder(clean) {
		return nil, ErrPlaceholderKey
	}
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	if clean == "" {
		return nil, fmt.Errorf("empty private key")
	}
	key, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, fmt.Errorf("parse private key from %s: %w", origin, err)
	}
	return &LocalSigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey), origin: origin}, nil
}

// isPlaceholder also catches the all-zero key some templates ship.
func isPlaceholder(raw string) bool {
	lower := strings.ToLower(raw)
	if lo.Contains(placeholderKeys, lower) {
		return true
	}
	digits := strings.TrimPrefix(lower, "0x")
	return digits != "" && strings.Trim(digits, "0") == ""
}

// DefaultKeyFile is $XDG_CONFIG_HOME/satsuma/key.hex, or "" when no config
// directory can be determined.
func DefaultKeyFile() string {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, keyFileName)
}
