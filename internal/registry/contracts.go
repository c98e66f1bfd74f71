package registry

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeTokenAddress marks the chain's native coin wherever a token address is expected.
var NativeTokenAddress = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

const (
	ChainIDCitreaTestnet int64 = 5115

	// Fixed selectors for calls whose full interface is not published.
	SelectorCreateLock = "0x65fc3873" // create_lock(uint256,uint256)
	SelectorWithdraw   = "0x3ccfd60b" // withdraw()
)

type Token struct {
	Symbol   string
	Address  common.Address
	Decimals int
}

func (t Token) IsNative() bool {
	return t.Address == NativeTokenAddress
}

type Contracts struct {
	SwapRouter      common.Address
	LiquidityRouter common.Address
	Pool            common.Address
	VotingEscrow    common.Address
	Voter           common.Address
	Staking         common.Address
	Gauge           common.Address
}

type Selectors struct {
	CreateLock [4]byte
	Withdraw   [4]byte
}

// Chain is the full description of one deployment. It is built once at
// startup and handed to every component that needs an address, ABI or link.
type Chain struct {
	Name         string
	ChainID      int64
	RPCURL       string
	ExplorerURL  string
	NativeSymbol string
	Contracts    Contracts
	Selectors    Selectors
	Tokens       []Token
	// WrappedNative stands in for the native coin on router calls.
	WrappedNative string
}

// CitreaTestnet returns the Satsuma deployment on Citrea testnet. The
// governance addresses (voting escrow, voter, staking, gauge) have no public
// deployment yet and are expected to be overridden from config.
func CitreaTestnet() Chain {
	return Chain{
		Name:         "citrea-testnet",
		ChainID:      ChainIDCitreaTestnet,
		RPCURL:       "https://rpc.testnet.citrea.xyz",
		ExplorerURL:  "https://explorer.testnet.citrea.xyz",
		NativeSymbol: "cBTC",
		Contracts: Contracts{
			SwapRouter:      common.HexToAddress("0x3012e9049d05b4b5369d690114d5a5861ebb85cb"),
			LiquidityRouter: common.HexToAddress("0x55a4669cd6895EA25C174F13E1b49d69B4481704"),
			Pool:            common.HexToAddress("0x080c376e6aB309fF1a861e1c3F91F27b8D4f1443"),
			VotingEscrow:    common.HexToAddress("0x12e82674b3734567890123456789012345678901"),
			Voter:           common.HexToAddress("0x1234567890123456789012345678901234567891"),
			Staking:         common.HexToAddress("0x1234567890123456789012345678901234567892"),
			Gauge:           common.HexToAddress("0x1234567890123456789012345678901234567893"),
		},
		Selectors: Selectors{
			CreateLock: MustSelector(SelectorCreateLock),
			Withdraw:   MustSelector(SelectorWithdraw),
		},
		Tokens: []Token{
			{Symbol: "CBTC", Address: NativeTokenAddress, Decimals: 18},
			{Symbol: "USDC", Address: common.HexToAddress("0x2C8abD2A528D19AFc33d2eBA507c0F405c131335")},
			{Symbol: "WCBTC", Address: common.HexToAddress("0x8d0c9d1c17ae5e40fff9be350f57840e9e66cd93")},
			{Symbol: "SUMA", Address: common.HexToAddress("0xdE4251dd68e1aD5865b14Dd527E54018767Af58a")},
		},
		WrappedNative: "WCBTC",
	}
}

// Token resolves a symbol (case-insensitive) or a hex address. Addresses that
// are not in the table resolve to a token with unknown decimals.
func (c Chain) Token(input string) (Token, error) {
	clean := strings.TrimSpace(input)
	if clean == "" {
		return Token{}, fmt.Errorf("token is required")
	}
	if common.IsHexAddress(clean) {
		addr := common.HexToAddress(clean)
		for _, tok := range c.Tokens {
			if tok.Address == addr {
				return tok, nil
			}
		}
		if addr == c.Contracts.VotingEscrow {
			return Token{Symbol: "VESUMA", Address: addr}, nil
		}
		return Token{Address: addr}, nil
	}
	symbol := strings.ToUpper(clean)
	if symbol == strings.ToUpper(c.NativeSymbol) {
		symbol = "CBTC"
	}
	for _, tok := range c.Tokens {
		if tok.Symbol == symbol {
			return tok, nil
		}
	}
	if symbol == "VESUMA" {
		return Token{Symbol: "VESUMA", Address: c.Contracts.VotingEscrow}, nil
	}
	return Token{}, fmt.Errorf("unknown token symbol %q", input)
}

func (c Chain) MustToken(symbol string) Token {
	tok, err := c.Token(symbol)
	if err != nil {
		panic(err)
	}
	return tok
}

// WrappedNativeToken returns the ERC-20 that routers accept in place of the native coin.
func (c Chain) WrappedNativeToken() (Token, error) {
	return c.Token(c.WrappedNative)
}

func (c Chain) TxURL(hash string) string {
	base := strings.TrimRight(strings.TrimSpace(c.ExplorerURL), "/")
	if base == "" || hash == "" {
		return ""
	}
	return base + "/tx/" + hash
}

func (c Chain) CAIP2() string {
	return fmt.Sprintf("eip155:%d", c.ChainID)
}

func MustSelector(raw string) [4]byte {
	sel, err := ParseSelector(raw)
	if err != nil {
		panic(err)
	}
	return sel
}

func ParseSelector(raw string) ([4]byte, error) {
	var out [4]byte
	buf := common.FromHex(strings.TrimSpace(raw))
	if len(buf) != 4 {
		return out, fmt.Errorf("selector %q must be exactly 4 bytes", raw)
	}
	copy(out[:], buf)
	return out, nil
}
