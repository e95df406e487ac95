package ageseal

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	id, err := GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity: %v", err)
	}
	recipient, err := Recipient(id.Recipient().String())
	if err != nil {
		t.Fatalf("Recipient: %v", err)
	}

	plaintext := []byte("the object decryption key")
	ciphertext, err := Encrypt(plaintext, recipient)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := Decrypt(ciphertext, id)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestDecryptWrongIdentityFails(t *testing.T) {
	id, err := GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity: %v", err)
	}
	other, err := GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity: %v", err)
	}
	recipient, err := Recipient(id.Recipient().String())
	if err != nil {
		t.Fatalf("Recipient: %v", err)
	}
	ciphertext, err := Encrypt([]byte("secret"), recipient)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(ciphertext, other); err == nil {
		t.Fatalf("expected decryption with wrong identity to fail")
	}
}

func TestIsYubiKeyIdentifier(t *testing.T) {
	cases := map[string]bool{
		"age1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq": false,
		"YubiKey serial 12345678 slot 1":                                     true,
		"":                                                                   false,
	}
	for in, want := range cases {
		if got := IsYubiKeyIdentifier(in); got != want {
			t.Errorf("IsYubiKeyIdentifier(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseYubiKeyIdentifier(t *testing.T) {
	serial, slot, ok := ParseYubiKeyIdentifier("YubiKey serial 12345678 slot 2")
	if !ok || serial != 12345678 || slot != 2 {
		t.Fatalf("got (%d, %d, %v), want (12345678, 2, true)", serial, slot, ok)
	}
	if _, _, ok := ParseYubiKeyIdentifier("not a yubikey"); ok {
		t.Fatalf("expected parse failure")
	}
}

func TestParseYubiKeyList(t *testing.T) {
	out := []byte(`#    Serial: 12345678, Slot: 1
#    PIN policy: once
AGE-PLUGIN-YUBIKEY-1QQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQ

#    Serial: 12345678, Slot: 2
AGE-PLUGIN-YUBIKEY-1WWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWW
`)
	got, err := parseYubiKeyList(out)
	if err != nil {
		t.Fatalf("parseYubiKeyList: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 identities, got %d: %+v", len(got), got)
	}
	if got[0].Serial != 12345678 || got[0].Slot != 1 {
		t.Fatalf("unexpected first entry: %+v", got[0])
	}
	if got[1].Slot != 2 {
		t.Fatalf("unexpected second entry: %+v", got[1])
	}
	if got[0].Label() != "YubiKey serial 12345678 slot 1" {
		t.Fatalf("unexpected label: %s", got[0].Label())
	}
}
