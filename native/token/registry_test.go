package token

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"otcvault/native/asset"
)

type mockState struct {
	balances   map[string]*big.Int
	allowances map[string]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]*big.Int),
	}
}

func balKey(token, holder [20]byte) string {
	return string(token[:]) + string(holder[:])
}

func allowKey(token, owner, spender [20]byte) string {
	return string(token[:]) + string(owner[:]) + string(spender[:])
}

func (m *mockState) TokenBalanceGet(token, holder [20]byte) (*big.Int, error) {
	if v, ok := m.balances[balKey(token, holder)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) TokenBalancePut(token, holder [20]byte, amount *big.Int) error {
	m.balances[balKey(token, holder)] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) TokenAllowanceGet(token, owner, spender [20]byte) (*big.Int, error) {
	if v, ok := m.allowances[allowKey(token, owner, spender)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) TokenAllowancePut(token, owner, spender [20]byte, amount *big.Int) error {
	m.allowances[allowKey(token, owner, spender)] = new(big.Int).Set(amount)
	return nil
}

func addr(fill byte) [20]byte {
	var a [20]byte
	copy(a[:], bytes.Repeat([]byte{fill}, 20))
	return a
}

func TestExecuteTransferMovesOriginBalance(t *testing.T) {
	state := newMockState()
	registry := NewRegistry(state)
	tokenAddr := addr(0x77)
	alice := addr(0x01)
	bob := addr(0x02)
	if err := registry.Mint(tokenAddr, alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	call := asset.DelegatedCall{
		Token:    tokenAddr,
		Origin:   alice,
		Calldata: asset.EncodeTransfer(bob, big.NewInt(400)),
	}
	if err := registry.Execute(call); err != nil {
		t.Fatalf("execute: %v", err)
	}
	aliceBal, _ := registry.BalanceOf(tokenAddr, alice)
	bobBal, _ := registry.BalanceOf(tokenAddr, bob)
	if aliceBal.String() != "600" || bobBal.String() != "400" {
		t.Fatalf("expected 600/400, got %s/%s", aliceBal, bobBal)
	}

	overdraw := asset.DelegatedCall{
		Token:    tokenAddr,
		Origin:   alice,
		Calldata: asset.EncodeTransfer(bob, big.NewInt(601)),
	}
	if err := registry.Execute(overdraw); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestExecuteTransferFromSpendsAllowance(t *testing.T) {
	state := newMockState()
	registry := NewRegistry(state)
	tokenAddr := addr(0x77)
	owner := addr(0x01)
	vault := addr(0xEE)
	if err := registry.Mint(tokenAddr, owner, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	pull := asset.DelegatedCall{
		Token:    tokenAddr,
		Origin:   vault,
		Calldata: asset.EncodeTransferFrom(owner, vault, big.NewInt(300)),
	}
	if err := registry.Execute(pull); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance without grant, got %v", err)
	}

	if err := registry.Approve(tokenAddr, owner, vault, big.NewInt(500)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := registry.Execute(pull); err != nil {
		t.Fatalf("execute: %v", err)
	}
	remaining, _ := registry.Allowance(tokenAddr, owner, vault)
	if remaining.String() != "200" {
		t.Fatalf("expected allowance drawn down to 200, got %s", remaining)
	}
	vaultBal, _ := registry.BalanceOf(tokenAddr, vault)
	if vaultBal.String() != "300" {
		t.Fatalf("expected vault to hold 300, got %s", vaultBal)
	}

	// A second pull exceeding the remaining allowance fails even though the
	// owner still has balance.
	if err := registry.Execute(pull); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestExecuteTransferFromSelfSkipsAllowance(t *testing.T) {
	state := newMockState()
	registry := NewRegistry(state)
	tokenAddr := addr(0x77)
	owner := addr(0x01)
	dest := addr(0x02)
	if err := registry.Mint(tokenAddr, owner, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	call := asset.DelegatedCall{
		Token:    tokenAddr,
		Origin:   owner,
		Calldata: asset.EncodeTransferFrom(owner, dest, big.NewInt(100)),
	}
	if err := registry.Execute(call); err != nil {
		t.Fatalf("execute: %v", err)
	}
	destBal, _ := registry.BalanceOf(tokenAddr, dest)
	if destBal.String() != "100" {
		t.Fatalf("expected 100 moved without an allowance, got %s", destBal)
	}
}

func TestExecuteRejectsMalformedCalldata(t *testing.T) {
	state := newMockState()
	registry := NewRegistry(state)
	call := asset.DelegatedCall{
		Token:    addr(0x77),
		Origin:   addr(0x01),
		Calldata: []byte{0xde, 0xad, 0xbe, 0xef},
	}
	if err := registry.Execute(call); !errors.Is(err, asset.ErrBadCalldata) {
		t.Fatalf("expected ErrBadCalldata, got %v", err)
	}
}
