package crypto

import (
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	var raw [20]byte
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := NewAddress(Prefix, raw)
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(Prefix)+"1") {
		t.Fatalf("expected %q prefix, got %s", Prefix, encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bytes() != raw {
		t.Fatalf("roundtrip mismatch: %x != %x", decoded.Bytes(), raw)
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	cases := []string{"", "not-bech32", "otc1qqqq"}
	for _, c := range cases {
		if _, err := DecodeAddress(c); err == nil {
			t.Fatalf("expected %q to fail", c)
		}
	}
}

func TestGeneratedKeyDerivesStableAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	first := key.PubKey().Address()
	second := key.PubKey().Address()
	if first.String() != second.String() {
		t.Fatalf("expected deterministic address derivation")
	}
	if _, err := DecodeAddress(first.String()); err != nil {
		t.Fatalf("derived address must decode: %v", err)
	}
}

func TestMustNewAddressPanicsOnBadLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for short payload")
		}
	}()
	MustNewAddress(Prefix, []byte{0x01})
}
