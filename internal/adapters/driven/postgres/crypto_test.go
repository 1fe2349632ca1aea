package postgres

import (
	"errors"
	"testing"
)

func TestSecretBox_RoundTrip(t *testing.T) {
	box, err := NewSecretBox("operator-secret")
	if err != nil {
		t.Fatalf("NewSecretBox: %v", err)
	}

	original := providerSecrets{EmbeddingAPIKey: "sk-embed", ChatAPIKey: "sk-chat"}

	blob, err := box.Seal(original)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if blob[0] != secretVersion {
		t.Errorf("version byte: got %d, want %d", blob[0], secretVersion)
	}

	var opened providerSecrets
	if err := box.Open(blob, &opened); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened != original {
		t.Errorf("got %+v, want %+v", opened, original)
	}
}

func TestSecretBox_SameSecretSameKey(t *testing.T) {
	a, _ := NewSecretBox("operator-secret")
	b, _ := NewSecretBox("operator-secret")

	blob, err := a.Seal("sk-test")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	var s string
	if err := b.Open(blob, &s); err != nil {
		t.Fatalf("Open with re-derived key: %v", err)
	}
	if s != "sk-test" {
		t.Errorf("got %q", s)
	}
}

func TestSecretBox_UniqueNonces(t *testing.T) {
	box, _ := NewSecretBox("operator-secret")

	a, _ := box.Seal("same")
	b, _ := box.Seal("same")
	if string(a) == string(b) {
		t.Error("expected different ciphertexts for the same plaintext")
	}
}

func TestSecretBox_WrongSecret(t *testing.T) {
	a, _ := NewSecretBox("secret-a")
	b, _ := NewSecretBox("secret-b")

	blob, _ := a.Seal("sk-test")
	var s string
	if err := b.Open(blob, &s); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestSecretBox_Tampered(t *testing.T) {
	box, _ := NewSecretBox("operator-secret")

	blob, _ := box.Seal("sk-test")
	blob[len(blob)-1] ^= 0xff
	var s string
	if err := box.Open(blob, &s); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestSecretBox_BadBlobs(t *testing.T) {
	box, _ := NewSecretBox("operator-secret")
	var s string

	if err := box.Open([]byte{secretVersion, 1, 2}, &s); !errors.Is(err, ErrInvalidBlobSize) {
		t.Errorf("short blob: expected ErrInvalidBlobSize, got %v", err)
	}

	blob, _ := box.Seal("sk-test")
	blob[0] = 0x7f
	if err := box.Open(blob, &s); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("bad version: expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestNewSecretBox_Empty(t *testing.T) {
	if _, err := NewSecretBox(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("expected ErrEmptySecret, got %v", err)
	}
}
