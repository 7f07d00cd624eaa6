package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	acct, err := Generate("hunter2hunter2")
	require.NoError(t, err)

	assert.Len(t, acct.Address, 40) // 20 bytes hex
	assert.NotEmpty(t, acct.EncryptedPrivateKey)
	assert.Equal(t, "hunter2hunter2", acct.Password)

	pub, err := hex.DecodeString(acct.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, acct.Address, AddressFromPublicKey(pub))

	priv, err := hex.DecodeString(acct.RawPrivateKey)
	require.NoError(t, err)
	assert.Len(t, priv, ed25519.PrivateKeySize)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	acct, err := Generate("correct horse battery staple")
	require.NoError(t, err)

	priv, err := DecryptKey(acct.EncryptedPrivateKey, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, acct.RawPrivateKey, hex.EncodeToString(priv))
}

func TestDecryptWrongPassword(t *testing.T) {
	acct, err := Generate("right-password")
	require.NoError(t, err)

	_, err = DecryptKey(acct.EncryptedPrivateKey, "wrong-password")
	assert.Error(t, err)
}

func TestGenerateIsUnique(t *testing.T) {
	a, err := Generate("pw")
	require.NoError(t, err)
	b, err := Generate("pw")
	require.NoError(t, err)
	assert.NotEqual(t, a.Address, b.Address)
}
