package auth

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestSecretBoxRoundTrip(t *testing.T) {
	box, err := NewSecretBox(testKey())
	require.NoError(t, err)

	sealed := box.Seal("super-secret-refresh-token")
	opened, err := box.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "super-secret-refresh-token", opened)
}

func TestSecretBoxDeterministic(t *testing.T) {
	box, err := NewSecretBox(testKey())
	require.NoError(t, err)

	// The same plaintext must seal to the same ciphertext so sessions can be
	// looked up by ciphertext.
	require.Equal(t, box.Seal("abc"), box.Seal("abc"))
	require.NotEqual(t, box.Seal("abc"), box.Seal("abd"))
}

func TestSecretBoxDifferentKeys(t *testing.T) {
	box1, err := NewSecretBox(testKey())
	require.NoError(t, err)
	box2, err := NewSecretBox(bytes.Repeat([]byte{0x43}, 32))
	require.NoError(t, err)

	require.NotEqual(t, box1.Seal("abc"), box2.Seal("abc"))

	_, err = box2.Open(box1.Seal("abc"))
	require.Error(t, err)
}

func TestSecretBoxTamperedCiphertext(t *testing.T) {
	box, err := NewSecretBox(testKey())
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(box.Seal("abc"))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	_, err = box.Open(base64.RawURLEncoding.EncodeToString(raw))
	require.Error(t, err)
}

func TestSecretBoxRejectsShortKey(t *testing.T) {
	_, err := NewSecretBox([]byte("too short"))
	require.Error(t, err)
}

func TestSecretBoxRejectsGarbage(t *testing.T) {
	box, err := NewSecretBox(testKey())
	require.NoError(t, err)

	_, err = box.Open("not base64!!!")
	require.Error(t, err)
	_, err = box.Open("c2hvcnQ")
	require.Error(t, err)
}
