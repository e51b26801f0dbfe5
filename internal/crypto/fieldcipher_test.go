package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestFieldCipher_RoundTrip(t *testing.T) {
	fc, err := NewFieldCipher(testKey())
	require.NoError(t, err)

	encrypted, err := fc.Encrypt("A12345678")
	require.NoError(t, err)
	assert.NotEqual(t, "A12345678", encrypted)

	decrypted, err := fc.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "A12345678", decrypted)
}

func TestFieldCipher_NonDeterministic(t *testing.T) {
	fc, err := NewFieldCipher(testKey())
	require.NoError(t, err)

	a, err := fc.Encrypt("same value")
	require.NoError(t, err)
	b, err := fc.Encrypt("same value")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFieldCipher_RejectsBadKeyLength(t *testing.T) {
	_, err := NewFieldCipher([]byte("short"))
	assert.Error(t, err)
}

func TestFieldCipher_RejectsTamperedCiphertext(t *testing.T) {
	fc, err := NewFieldCipher(testKey())
	require.NoError(t, err)

	encrypted, err := fc.Encrypt("A12345678")
	require.NoError(t, err)

	_, err = fc.Decrypt(encrypted[:len(encrypted)-4] + "AAAA")
	assert.ErrorIs(t, err, ErrCiphertextInvalid)

	_, err = fc.Decrypt("not base64 !!!")
	assert.ErrorIs(t, err, ErrCiphertextInvalid)
}
