package asset

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Delegated calls use the conventional 4-byte keccak selector followed by
// 32-byte argument words, so managed token books speak the same dialect as
// standard token contracts.
var (
	selectorTransfer     = ethcrypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
	selectorTransferFrom = ethcrypto.Keccak256([]byte("transferFrom(address,address,uint256)"))[:4]
)

// ErrBadCalldata signals calldata that does not decode to a supported token
// instruction.
var ErrBadCalldata = errors.New("asset: malformed token calldata")

// TokenOp enumerates the instructions a managed token book executes.
type TokenOp uint8

const (
	OpTransfer TokenOp = iota + 1
	OpTransferFrom
)

// TokenInstruction is the decoded form of a delegated call payload.
type TokenInstruction struct {
	Op     TokenOp
	From   [20]byte // zero for OpTransfer; funds owner for OpTransferFrom
	To     [20]byte
	Amount *big.Int
}

// EncodeTransfer packs a `transfer(to, amount)` instruction.
func EncodeTransfer(to [20]byte, amount *big.Int) []byte {
	data := make([]byte, 0, 4+64)
	data = append(data, selectorTransfer...)
	data = append(data, addressWord(to)...)
	data = append(data, amountWord(amount)...)
	return data
}

// EncodeTransferFrom packs a `transferFrom(from, to, amount)` instruction.
func EncodeTransferFrom(from, to [20]byte, amount *big.Int) []byte {
	data := make([]byte, 0, 4+96)
	data = append(data, selectorTransferFrom...)
	data = append(data, addressWord(from)...)
	data = append(data, addressWord(to)...)
	data = append(data, amountWord(amount)...)
	return data
}

// DecodeCalldata parses a delegated call payload back into a token
// instruction. Unknown selectors and truncated words fail loudly.
func DecodeCalldata(data []byte) (TokenInstruction, error) {
	if len(data) < 4 {
		return TokenInstruction{}, ErrBadCalldata
	}
	selector, args := data[:4], data[4:]
	switch {
	case bytes.Equal(selector, selectorTransfer):
		if len(args) != 64 {
			return TokenInstruction{}, fmt.Errorf("%w: transfer wants 2 words, got %d bytes", ErrBadCalldata, len(args))
		}
		to, err := wordAddress(args[:32])
		if err != nil {
			return TokenInstruction{}, err
		}
		return TokenInstruction{Op: OpTransfer, To: to, Amount: new(big.Int).SetBytes(args[32:])}, nil
	case bytes.Equal(selector, selectorTransferFrom):
		if len(args) != 96 {
			return TokenInstruction{}, fmt.Errorf("%w: transferFrom wants 3 words, got %d bytes", ErrBadCalldata, len(args))
		}
		from, err := wordAddress(args[:32])
		if err != nil {
			return TokenInstruction{}, err
		}
		to, err := wordAddress(args[32:64])
		if err != nil {
			return TokenInstruction{}, err
		}
		return TokenInstruction{Op: OpTransferFrom, From: from, To: to, Amount: new(big.Int).SetBytes(args[64:])}, nil
	default:
		return TokenInstruction{}, fmt.Errorf("%w: unknown selector %x", ErrBadCalldata, selector)
	}
}

func addressWord(addr [20]byte) []byte {
	word := make([]byte, 32)
	copy(word[12:], addr[:])
	return word
}

func amountWord(amount *big.Int) []byte {
	word := make([]byte, 32)
	if amount == nil || amount.Sign() <= 0 {
		return word
	}
	raw := amount.Bytes()
	if len(raw) > 32 {
		// Amounts are validated positive and bounded upstream; a wider value
		// here is a programming error.
		panic("asset: amount exceeds 256 bits")
	}
	copy(word[32-len(raw):], raw)
	return word
}

func wordAddress(word []byte) ([20]byte, error) {
	var addr [20]byte
	if len(word) != 32 {
		return addr, ErrBadCalldata
	}
	for _, b := range word[:12] {
		if b != 0 {
			return addr, fmt.Errorf("%w: dirty address word", ErrBadCalldata)
		}
	}
	copy(addr[:], word[12:])
	return addr, nil
}
