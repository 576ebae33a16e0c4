// Blackbox test: package rsasig_test. Keys are generated fresh per test
// with crypto/rsa.GenerateKey rather than checked-in fixtures.
package rsasig_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/ncbedge/edgecore/internal/errs"
	"github.com/ncbedge/edgecore/internal/platform/rsasig"
)

func generateKeyPair(t *testing.T) (privPath string, pub *rsa.PublicKey, key *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	der := x509.MarshalPKCS1PrivateKey(key)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}

	path := filepath.Join(t.TempDir(), "device_private_key.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path, &key.PublicKey, key
}

func publicKeyPEM(t *testing.T, pub *rsa.PublicKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block))
}

func TestSignVerify_RoundTrip(t *testing.T) {
	path, pub, _ := generateKeyPair(t)
	signer, err := rsasig.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	sig, err := signer.Sign("device-did-123")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	ok, err := signer.Verify("device-did-123", sig, publicKeyPEM(t, pub))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("expected signature to verify against the matching public key")
	}
}

func TestVerify_RejectsTamperedPlaintext(t *testing.T) {
	path, pub, _ := generateKeyPair(t)
	signer, err := rsasig.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	sig, err := signer.Sign("original")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	ok, err := signer.Verify("tampered", sig, publicKeyPEM(t, pub))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("expected verification to fail for tampered plaintext")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	path, pub, _ := generateKeyPair(t)
	signer, err := rsasig.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cipher, err := signer.Encrypt(`{"wifiName":"HomeNet"}`, publicKeyPEM(t, pub))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	plain, err := signer.Decrypt(cipher)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != `{"wifiName":"HomeNet"}` {
		t.Errorf("Decrypt() = %q, want original plaintext", plain)
	}
}

func TestLoad_MissingFileReturnsCryptoError(t *testing.T) {
	_, err := rsasig.Load(filepath.Join(t.TempDir(), "nope.pem"))
	if err == nil {
		t.Fatal("expected error for missing key file")
	}
	if errs.KindOf(err) != errs.KindCrypto {
		t.Errorf("KindOf(err) = %v, want KindCrypto", errs.KindOf(err))
	}
}

func TestLoad_MalformedPEMReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pem")
	if err := os.WriteFile(path, []byte("not a pem file"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := rsasig.Load(path); err == nil {
		t.Fatal("expected error for malformed PEM")
	}
}

func TestDecrypt_RejectsInvalidBase64(t *testing.T) {
	path, _, _ := generateKeyPair(t)
	signer, err := rsasig.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := signer.Decrypt("not-valid-base64!!!"); err == nil {
		t.Error("expected error for invalid base64 ciphertext")
	}
}
