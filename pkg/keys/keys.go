// Package keys generates validator operating accounts and armors their
// private keys with a password so the raw key only needs to live in memory
// while a transfer is being signed.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// Account is a freshly generated chain account. RawPrivateKey is the
// hex-encoded signing key; callers persist the encrypted form and drop the
// raw key as soon as possible.
type Account struct {
	Address             string `json:"address"`
	PublicKey           string `json:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	RawPrivateKey       string `json:"rawPrivateKey"`
	Password            string `json:"password"`
}

// scrypt parameters for key armor. Interactive-grade: the armor protects
// per-node operating keys, not cold storage.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	armorVersion = 1
)

type armor struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Generate creates an ed25519 account and encrypts the private key under the
// given password.
func Generate(password string) (*Account, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	encrypted, err := EncryptKey(priv, password)
	if err != nil {
		return nil, err
	}
	return &Account{
		Address:             AddressFromPublicKey(pub),
		PublicKey:           hex.EncodeToString(pub),
		EncryptedPrivateKey: encrypted,
		RawPrivateKey:       hex.EncodeToString(priv),
		Password:            password,
	}, nil
}

// AddressFromPublicKey derives the hex account address: the first 20 bytes of
// the public key's SHA-256 digest.
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:20])
}

// EncryptKey armors a private key with scrypt-derived AES-256-GCM.
func EncryptKey(priv ed25519.PrivateKey, password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("armor salt: %w", err)
	}
	aead, err := newAEAD(password, salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("armor nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, priv, nil)
	blob, err := json.Marshal(armor{
		Version:    armorVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// DecryptKey recovers a private key from its armored form.
func DecryptKey(encrypted, password string) (ed25519.PrivateKey, error) {
	blob, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decode armor: %w", err)
	}
	var a armor
	if err := json.Unmarshal(blob, &a); err != nil {
		return nil, fmt.Errorf("parse armor: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(a.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(a.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(a.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	aead, err := newAEAD(password, salt)
	if err != nil {
		return nil, err
	}
	priv, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("open armor: %w", err)
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("armored key has unexpected size %d", len(priv))
	}
	return priv, nil
}

func newAEAD(password string, salt []byte) (cipher.AEAD, error) {
	dk, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, fmt.Errorf("derive armor key: %w", err)
	}
	block, err := aes.NewCipher(dk)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
