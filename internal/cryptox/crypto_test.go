package cryptox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	sealed, err := Seal(key, []byte(`{"accessToken":"a"}`), []byte("careercoach.session"))
	require.NoError(t, err)

	plain, err := Open(key, sealed, []byte("careercoach.session"))
	require.NoError(t, err)
	assert.Equal(t, `{"accessToken":"a"}`, string(plain))
}

func TestOpen_WrongSlotFails(t *testing.T) {
	key := make([]byte, KeySize)
	sealed, err := Seal(key, []byte("secret"), []byte("careercoach.session"))
	require.NoError(t, err)

	// a value moved to another slot must not decrypt
	_, err = Open(key, sealed, []byte("careercoach.profile"))
	require.Error(t, err)
}

func TestOpen_WrongKeyAndShortInput(t *testing.T) {
	key := make([]byte, KeySize)
	other := make([]byte, KeySize)
	other[0] = 1

	sealed, err := Seal(key, []byte("secret"), nil)
	require.NoError(t, err)

	_, err = Open(other, sealed, nil)
	require.Error(t, err)

	_, err = Open(key, []byte{1, 2}, nil)
	require.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestSeal_BadKeyLength(t *testing.T) {
	_, err := Seal([]byte("short"), []byte("x"), nil)
	require.Error(t, err)
}

func TestDeriveStorageKey_NamespacesDiffer(t *testing.T) {
	secret := []byte("device-secret-device-secret-0000")

	a, err := DeriveStorageKey(secret, "careercoach")
	require.NoError(t, err)
	b, err := DeriveStorageKey(secret, "other")
	require.NoError(t, err)
	again, err := DeriveStorageKey(secret, "careercoach")
	require.NoError(t, err)

	assert.Len(t, a, KeySize)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, again)
}

func TestDeriveKeyFromPassphrase_Deterministic(t *testing.T) {
	k1 := DeriveKeyFromPassphrase([]byte("pass"), []byte("salt-1"))
	k2 := DeriveKeyFromPassphrase([]byte("pass"), []byte("salt-1"))
	k3 := DeriveKeyFromPassphrase([]byte("pass"), []byte("salt-2"))

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, KeySize)
}

func TestLoadOrCreateDeviceKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "device.key")

	created, err := LoadOrCreateDeviceKey(path)
	require.NoError(t, err)
	require.Len(t, created, KeySize)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadOrCreateDeviceKey(path)
	require.NoError(t, err)
	assert.Equal(t, created, loaded)

	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))
	_, err = LoadOrCreateDeviceKey(path)
	require.Error(t, err)
}
