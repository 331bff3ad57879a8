package vault

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New(testKey(t))
	require.NoError(t, err)

	credentials := map[string]string{
		"access_token": "sq0atp-secret",
		"merchant_id":  "M123",
	}

	blob, err := v.Encrypt(credentials)
	require.NoError(t, err)
	assert.NotContains(t, blob, "sq0atp-secret")

	decrypted, err := v.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, credentials, decrypted)
}

func TestEncryptProducesUniqueBlobs(t *testing.T) {
	v, err := New(testKey(t))
	require.NoError(t, err)

	credentials := map[string]string{"api_key": "k"}
	first, err := v.Encrypt(credentials)
	require.NoError(t, err)
	second, err := v.Encrypt(credentials)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecryptRejectsTamperedBlob(t *testing.T) {
	v, err := New(testKey(t))
	require.NoError(t, err)

	blob, err := v.Encrypt(map[string]string{"token": "t"})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = v.Decrypt(tampered)
	assert.Error(t, err)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	v, err := New(testKey(t))
	require.NoError(t, err)

	blob, err := v.Encrypt(map[string]string{"token": "t"})
	require.NoError(t, err)

	other := testKey(t)
	other[0] ^= 0xff
	v2, err := New(other)
	require.NoError(t, err)

	_, err = v2.Decrypt(blob)
	assert.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	v, err := New(testKey(t))
	require.NoError(t, err)

	_, err = v.Decrypt("not base64!!!")
	assert.Error(t, err)

	_, err = v.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestNewFromHex(t *testing.T) {
	_, err := NewFromHex("zz")
	assert.Error(t, err)

	_, err = NewFromHex("abcd")
	assert.Error(t, err)

	_, err = NewFromHex("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	assert.NoError(t, err)
}
