// Package rsasig is the RSA sign/verify/encrypt/decrypt façade every
// signed message to and from the upstream collaborator passes through.
// It pins a single private key at construction and never exposes key
// material in an error or log line.
package rsasig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"

	"github.com/ncbedge/edgecore/internal/errs"
)

// Signer holds the device's pinned private key and performs every
// crypto operation the provisioning core needs.
type Signer struct {
	key *rsa.PrivateKey
}

// Load reads and parses the PEM-encoded PKCS#1 or PKCS#8 private key at
// path. A missing or malformed key file is fatal to bring-up — this is
// the one startup failure named explicitly in the provisioning design.
func Load(path string) (*Signer, error) {
	const op = errs.Op("rsasig.Load")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.E(op, errs.KindCrypto, err, "private key file is missing")
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errs.E(op, errs.KindCrypto, "private key is not valid PEM")
	}

	key, err := parsePrivateKey(block.Bytes)
	if err != nil {
		return nil, errs.E(op, errs.KindCrypto, "private key is malformed")
	}

	return &Signer{key: key}, nil
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errUnsupportedKeyType
	}
	return rsaKey, nil
}

var errUnsupportedKeyType = errs.E(errs.KindCrypto, "private key is not RSA")

// Sign returns a base64-encoded PSS signature of plaintext's SHA-256
// digest, using the pinned private key.
func (s *Signer) Sign(plaintext string) (string, error) {
	const op = errs.Op("rsasig.Sign")

	digest := sha256.Sum256([]byte(plaintext))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], nil)
	if err != nil {
		return "", errs.E(op, errs.KindCrypto, "signing failed")
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify reports whether base64Sig is a valid PSS signature of
// plaintext's SHA-256 digest under publicKeyPEM.
func (s *Signer) Verify(plaintext, base64Sig, publicKeyPEM string) (bool, error) {
	const op = errs.Op("rsasig.Verify")

	pub, err := parsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return false, errs.E(op, errs.KindCrypto, "public key is malformed")
	}

	sig, err := base64.StdEncoding.DecodeString(base64Sig)
	if err != nil {
		return false, errs.E(op, errs.KindCrypto, "signature is not valid base64")
	}

	digest := sha256.Sum256([]byte(plaintext))
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, nil); err != nil {
		return false, nil
	}
	return true, nil
}

// Decrypt OAEP-SHA-256-decrypts base64Cipher with the pinned private key.
func (s *Signer) Decrypt(base64Cipher string) (string, error) {
	const op = errs.Op("rsasig.Decrypt")

	cipherBytes, err := base64.StdEncoding.DecodeString(base64Cipher)
	if err != nil {
		return "", errs.E(op, errs.KindCrypto, "ciphertext is not valid base64")
	}

	plain, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, s.key, cipherBytes, nil)
	if err != nil {
		return "", errs.E(op, errs.KindCrypto, "decryption failed")
	}
	return string(plain), nil
}

// Encrypt OAEP-SHA-256-encrypts plaintext under publicKeyPEM, returning
// base64.
func (s *Signer) Encrypt(plaintext, publicKeyPEM string) (string, error) {
	const op = errs.Op("rsasig.Encrypt")

	pub, err := parsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return "", errs.E(op, errs.KindCrypto, "public key is malformed")
	}

	cipherBytes, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(plaintext), nil)
	if err != nil {
		return "", errs.E(op, errs.KindCrypto, "encryption failed")
	}
	return base64.StdEncoding.EncodeToString(cipherBytes), nil
}

func parsePublicKeyPEM(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errUnsupportedKeyType
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errUnsupportedKeyType
	}
	return pub, nil
}
