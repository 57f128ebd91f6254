package secret

import (
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestBox_RoundTrip(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "secret.key")
	box, err := NewBox(keyPath, zap.NewNop())
	if err != nil {
		t.Fatalf("new box: %v", err)
	}

	cipher := box.Encrypt("hunter2")
	if !strings.HasPrefix(cipher, Prefix) {
		t.Fatalf("ciphertext should carry the prefix, got %q", cipher)
	}
	if cipher == Prefix+"hunter2" {
		t.Fatal("value should actually be encrypted")
	}
	if got := box.Decrypt(cipher); got != "hunter2" {
		t.Errorf("round trip = %q, want hunter2", got)
	}
}

func TestBox_KeyPersistsAcrossRestarts(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "secret.key")
	first, err := NewBox(keyPath, zap.NewNop())
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	cipher := first.Encrypt("api-token")

	second, err := NewBox(keyPath, zap.NewNop())
	if err != nil {
		t.Fatalf("reload box: %v", err)
	}
	if got := second.Decrypt(cipher); got != "api-token" {
		t.Errorf("reloaded box should decrypt old ciphertext, got %q", got)
	}
}

func TestBox_EncryptIsIdempotentOnCiphertext(t *testing.T) {
	box, err := NewBox(filepath.Join(t.TempDir(), "k"), zap.NewNop())
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	cipher := box.Encrypt("value")
	if again := box.Encrypt(cipher); again != cipher {
		t.Error("already-encrypted values must pass through unchanged")
	}
}

func TestBox_DecryptPassesThroughPlaintext(t *testing.T) {
	box, err := NewBox(filepath.Join(t.TempDir(), "k"), zap.NewNop())
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	if got := box.Decrypt("plain value"); got != "plain value" {
		t.Errorf("plaintext should pass through, got %q", got)
	}
}

func TestBox_WrongKeyReturnsCiphertext(t *testing.T) {
	dir := t.TempDir()
	a, _ := NewBox(filepath.Join(dir, "a.key"), zap.NewNop())
	b, _ := NewBox(filepath.Join(dir, "b.key"), zap.NewNop())

	cipher := a.Encrypt("secret")
	if got := b.Decrypt(cipher); got != cipher {
		t.Errorf("foreign ciphertext should come back untouched, got %q", got)
	}
}

func TestBox_NilBoxIsIdentity(t *testing.T) {
	var box *Box
	if box.Available() {
		t.Error("nil box should not report available")
	}
	if got := box.Encrypt("x"); got != "x" {
		t.Errorf("nil encrypt = %q", got)
	}
	if got := box.Decrypt(Prefix + "garbage"); got != Prefix+"garbage" {
		t.Errorf("nil decrypt = %q", got)
	}
}
