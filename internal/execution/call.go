package execution

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Encoding names which path produced a request's calldata.
type Encoding string

const (
	EncodingABI      Encoding = "abi"
	EncodingSelector Encoding = "selector"
)

// Call is a contract invocation that can encode itself. ABICall and
// SelectorCall are the two implementations; the builder treats them alike.
type Call interface {
	Encode() ([]byte, error)
	Encoding() Encoding
	Method() string
}

// ABICall encodes through a parsed contract interface.
type ABICall struct {
	ABI  abi.ABI
	Name string
	Args []any
}

func (c ABICall) Encode() ([]byte, error) {
	if _, ok := c.ABI.Methods[c.Name]; !ok {
		return nil, fmt.Errorf("method %q not found in interface", c.Name)
	}
	data, err := c.ABI.Pack(c.Name, c.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", c.Name, err)
	}
	return data, nil
}

func (c ABICall) Encoding() Encoding { return EncodingABI }

func (c ABICall) Method() string { return c.Name }

// SelectorCall is a 4-byte selector followed by the ABI encoding of Args
// against Inputs. It is used when only the selector of a method is known.
type SelectorCall struct {
	Label    string
	Selector [4]byte
	Inputs   abi.Arguments
	Args     []any
}

func (c SelectorCall) Encode() ([]byte, error) {
	if len(c.Inputs) != len(c.Args) {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", c.Method(), len(c.Inputs), len(c.Args))
	}
	packed, err := c.Inputs.Pack(c.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s arguments: %w", c.Method(), err)
	}
	out := make([]byte, 0, 4+len(packed))
	out = append(out, c.Selector[:]...)
	return append(out, packed...), nil
}

func (c SelectorCall) Encoding() Encoding { return EncodingSelector }

func (c SelectorCall) Method() string {
	if c.Label != "" {
		return c.Label
	}
	return fmt.Sprintf("0x%x", c.Selector)
}

// Uint256Arguments builds n unnamed uint256 arguments for selector calls.
func Uint256Arguments(n int) abi.Arguments {
	args := make(abi.Arguments, n)
	for i := range args {
		args[i] = abi.Argument{Type: uint256Type}
	}
	return args
}

var uint256Type = mustType("uint256")

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}
