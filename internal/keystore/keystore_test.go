package keystore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenGeneratesFreshIdentityWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.bin")

	ks, err := Open(path, 30*24*time.Hour, nil)
	require.NoError(t, err)

	id := ks.Current()
	require.Len(t, id.PublicKey.Bytes(), 32)
	require.Len(t, id.PrivateKey.Bytes(), 32)
	require.NotEmpty(t, id.KeyID)
}

func TestOpenLoadsPersistedIdentity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.bin")

	first, err := Open(path, 30*24*time.Hour, nil)
	require.NoError(t, err)
	firstID := first.Current().KeyID

	second, err := Open(path, 30*24*time.Hour, nil)
	require.NoError(t, err)
	require.Equal(t, firstID, second.Current().KeyID)
	require.Equal(t, first.Current().PrivateKey.Bytes(), second.Current().PrivateKey.Bytes())
}

func TestRotateIfStaleIsIdempotentOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.bin")

	ks, err := Open(path, -time.Hour, nil) // already expired on creation
	require.NoError(t, err)

	require.NoError(t, ks.RotateIfStale(time.Now()))
	rotatedID := ks.Current().KeyID

	require.NoError(t, ks.RotateIfStale(time.Now()))
	require.Equal(t, rotatedID, ks.Current().KeyID)
}

func TestRotateIfStaleNoopWhenFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.bin")

	ks, err := Open(path, 30*24*time.Hour, nil)
	require.NoError(t, err)
	before := ks.Current().KeyID

	require.NoError(t, ks.RotateIfStale(time.Now()))
	require.Equal(t, before, ks.Current().KeyID)
}

func TestDecodeIdentityRejectsBadVersion(t *testing.T) {
	data := make([]byte, minBlobLen)
	data[offVersion] = 0x99
	_, err := decodeIdentity(data)
	require.ErrorIs(t, err, ErrCorruptBlob)
}

func TestDecodeIdentityRejectsShortBlob(t *testing.T) {
	_, err := decodeIdentity([]byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrCorruptBlob)
}

func TestCurrentPublicViewExposesSafeFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.bin")
	ks, err := Open(path, 30*24*time.Hour, nil)
	require.NoError(t, err)

	view := ks.CurrentPublicView()
	require.Len(t, view.PublicKey, 32)
	require.Equal(t, ks.Current().KeyID, view.KeyID)
}
