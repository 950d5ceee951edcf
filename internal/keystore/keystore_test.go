package keystore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-32-chars-exactly!"

func newTestStore(t *testing.T, secret string) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "keys"), secret)
	require.NoError(t, err)
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t, testSecret)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	meta, err := store.Save("agent-x", key, "test agent")
	require.NoError(t, err)
	assert.Equal(t, "agent-x", meta.AgentID)
	assert.Equal(t, key.PublicKey().String(), meta.PublicKey)
	assert.Equal(t, "test agent", meta.Label)

	loaded, err := store.Load("agent-x")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(key, loaded), "recovered private material must be byte-identical")
}

func TestStore_WrongSecretFailsIntegrity(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	store1, err := New(dir, testSecret)
	require.NoError(t, err)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	_, err = store1.Save("agent-x", key, "")
	require.NoError(t, err)

	store2, err := New(dir, "a-completely-different-secret-42!")
	require.NoError(t, err)

	_, err = store2.Load("agent-x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestStore_TamperedBlobFailsIntegrity(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	store, err := New(dir, testSecret)
	require.NoError(t, err)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	_, err = store.Save("agent-x", key, "")
	require.NoError(t, err)

	path := filepath.Join(dir, "agent-x.key")
	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	_, err = store.Load("agent-x")
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t, testSecret)

	_, err := store.Load("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t, testSecret)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	_, err = store.Save("agent-x", key, "")
	require.NoError(t, err)
	require.True(t, store.Has("agent-x"))

	require.NoError(t, store.Delete("agent-x"))
	assert.False(t, store.Has("agent-x"))

	// Deleting an absent credential is not an error.
	assert.NoError(t, store.Delete("agent-x"))
}

func TestStore_SaveRefusesOverwrite(t *testing.T) {
	store := newTestStore(t, testSecret)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	_, err = store.Save("agent-x", key, "")
	require.NoError(t, err)

	other, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	_, err = store.Save("agent-x", other, "")
	assert.ErrorIs(t, err, ErrExists)
}

func TestStore_ListAndPublicKey(t *testing.T) {
	store := newTestStore(t, testSecret)

	keyA, _ := solana.NewRandomPrivateKey()
	keyB, _ := solana.NewRandomPrivateKey()
	_, err := store.Save("agent-a", keyA, "alpha")
	require.NoError(t, err)
	_, err = store.Save("agent-b", keyB, "beta")
	require.NoError(t, err)

	metas, err := store.List()
	require.NoError(t, err)
	assert.Len(t, metas, 2)

	pub, err := store.PublicKey("agent-a")
	require.NoError(t, err)
	assert.Equal(t, keyA.PublicKey().String(), pub)
}

func TestStore_RejectsInvalidAgentID(t *testing.T) {
	store := newTestStore(t, testSecret)

	key, _ := solana.NewRandomPrivateKey()
	for _, id := range []string{"", "UPPER", "../escape", "white space"} {
		_, err := store.Save(id, key, "")
		assert.Error(t, err, "agent id %q should be rejected", id)
	}
}

func TestStore_FilePermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	store, err := New(dir, testSecret)
	require.NoError(t, err)

	key, _ := solana.NewRandomPrivateKey()
	_, err = store.Save("agent-x", key, "")
	require.NoError(t, err)

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

	keyInfo, err := os.Stat(filepath.Join(dir, "agent-x.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), keyInfo.Mode().Perm())
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	plaintext := []byte("the same plaintext twice")

	a, err := encrypt(testSecret, plaintext)
	require.NoError(t, err)
	b, err := encrypt(testSecret, plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "two encryptions must never share a nonce")

	// Both still decrypt to the original.
	for _, blob := range [][]byte{a, b} {
		plain, err := decrypt(testSecret, blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, plain)
	}
}

func TestDecrypt_TruncatedBlob(t *testing.T) {
	_, err := decrypt(testSecret, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrIntegrity)
}
