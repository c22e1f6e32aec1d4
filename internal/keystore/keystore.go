// Package keystore owns the gateway's long-lived X25519 server identity:
// generation, crash-safe persistence, and deterministic rotation.
package keystore

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/echolia/inference-gateway/internal/logger"
	"github.com/echolia/inference-gateway/internal/metrics"
)

const (
	formatVersion = byte(0x01)

	// Offsets into the persisted blob, per the wire format fixed by protocol.
	offVersion    = 0
	offPrivate    = 1
	offPublic     = 33
	offCreatedAt  = 65
	offExpiresAt  = 73
	offIdentifier = 81

	minBlobLen = offIdentifier
)

var (
	// ErrCorruptBlob is returned when a persisted identity fails basic
	// structural validation (bad version byte, short length, or a public
	// point that does not match the private scalar's derivation).
	ErrCorruptBlob = errors.New("keystore: corrupt identity blob")
)

// Identity is an immutable snapshot of the server's current X25519 key
// pair. Callers receive a borrowed view; they must not retain PrivateKey
// beyond the call that obtained it.
type Identity struct {
	PrivateKey *ecdh.PrivateKey
	PublicKey  *ecdh.PublicKey
	KeyID      string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// PublicView is the subset of Identity safe to expose to external callers.
type PublicView struct {
	PublicKey []byte
	KeyID     string
	ExpiresAt time.Time
}

// KeyStore holds the server's current X25519 identity under an atomic
// pointer for lock-free reads, and serializes rotation on a single writer
// lock.
type KeyStore struct {
	path           string
	rotationPeriod time.Duration
	log            logger.Logger

	current atomic.Pointer[Identity]
	rotMu   sync.Mutex
}

// Open loads an existing identity from path, or generates and persists a
// fresh one if the file is absent or its identity has expired. Persistence
// failure at this stage is fatal to the caller: the gateway must not start
// without a durable identity.
func Open(path string, rotationPeriod time.Duration, log logger.Logger) (*KeyStore, error) {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	ks := &KeyStore{path: path, rotationPeriod: rotationPeriod, log: log}

	ident, err := loadIdentity(path)
	switch {
	case err == nil && !isExpired(ident, rotationPeriod):
		ks.current.Store(ident)
		return ks, nil
	case err == nil:
		// Loaded fine but stale; fall through to generate a replacement.
	case errors.Is(err, os.ErrNotExist), errors.Is(err, ErrCorruptBlob):
		// Absence and corruption are both treated as "generate fresh" at
		// startup.
	default:
		return nil, fmt.Errorf("keystore: fatal load error: %w", err)
	}

	fresh, err := generateIdentity(rotationPeriod)
	if err != nil {
		return nil, fmt.Errorf("keystore: generate identity: %w", err)
	}
	if err := persistIdentity(path, fresh); err != nil {
		metrics.KeyStoreRotations.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("keystore: fatal persist error: %w", err)
	}
	ks.current.Store(fresh)
	metrics.KeyStoreRotations.WithLabelValues("rotated").Inc()
	return ks, nil
}

// Current returns the active identity. The returned pointer is a borrowed
// snapshot; callers must not retain PrivateKey beyond the call.
func (ks *KeyStore) Current() *Identity {
	return ks.current.Load()
}

// CurrentPublicView returns the externally-safe half of the active identity.
func (ks *KeyStore) CurrentPublicView() PublicView {
	id := ks.current.Load()
	return PublicView{
		PublicKey: id.PublicKey.Bytes(),
		KeyID:     id.KeyID,
		ExpiresAt: id.ExpiresAt,
	}
}

// RotateIfStale is the cooperative check invoked at the start of every
// operation that needs the key. If the active identity has expired it
// atomically generates a new one, persists it durably, and swaps the
// in-memory reference. Persistence failure during rotation logs a
// structured error and leaves the old identity serving.
func (ks *KeyStore) RotateIfStale(now time.Time) error {
	id := ks.current.Load()
	if !now.After(id.ExpiresAt) {
		return nil
	}

	ks.rotMu.Lock()
	defer ks.rotMu.Unlock()

	// Re-check under the lock: another goroutine may have already rotated.
	id = ks.current.Load()
	if !now.After(id.ExpiresAt) {
		metrics.KeyStoreRotations.WithLabelValues("skipped").Inc()
		return nil
	}

	fresh, err := generateIdentity(ks.rotationPeriod)
	if err != nil {
		metrics.KeyStoreRotations.WithLabelValues("failed").Inc()
		return fmt.Errorf("keystore: rotation generate: %w", err)
	}
	if err := persistIdentity(ks.path, fresh); err != nil {
		ks.log.Error("keystore rotation persist failed, retaining current identity",
			logger.Error(err), logger.String("key_id", id.KeyID))
		metrics.KeyStoreRotations.WithLabelValues("failed").Inc()
		return fmt.Errorf("keystore: rotation persist: %w", err)
	}

	ks.current.Store(fresh)
	metrics.KeyStoreRotations.WithLabelValues("rotated").Inc()
	ks.log.Info("keystore rotated", logger.String("key_id", fresh.KeyID))
	return nil
}

func isExpired(id *Identity, rotationPeriod time.Duration) bool {
	return time.Now().After(id.CreatedAt.Add(rotationPeriod))
}

func generateIdentity(rotationPeriod time.Duration) (*Identity, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate x25519 key: %w", err)
	}
	now := time.Now().UTC()
	return &Identity{
		PrivateKey: priv,
		PublicKey:  priv.PublicKey(),
		KeyID:      fmt.Sprintf("srv-%s", now.Format("2006-01")),
		CreatedAt:  now,
		ExpiresAt:  now.Add(rotationPeriod),
	}, nil
}

// persistIdentity writes the identity blob via write-temp, fsync, rename so
// a crash mid-write never leaves a half-written file in the real path.
func persistIdentity(path string, id *Identity) error {
	blob := encodeIdentity(id)

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".keystore-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func encodeIdentity(id *Identity) []byte {
	privBytes := id.PrivateKey.Bytes()
	pubBytes := id.PublicKey.Bytes()
	idBytes := []byte(id.KeyID)

	buf := make([]byte, offIdentifier+len(idBytes))
	buf[offVersion] = formatVersion
	copy(buf[offPrivate:offPublic], privBytes)
	copy(buf[offPublic:offCreatedAt], pubBytes)
	binary.BigEndian.PutUint64(buf[offCreatedAt:offExpiresAt], uint64(id.CreatedAt.Unix()))
	binary.BigEndian.PutUint64(buf[offExpiresAt:offIdentifier], uint64(id.ExpiresAt.Unix()))
	copy(buf[offIdentifier:], idBytes)
	return buf
}

func loadIdentity(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err // os.ErrNotExist propagates as-is
	}
	return decodeIdentity(data)
}

func decodeIdentity(data []byte) (*Identity, error) {
	if len(data) < minBlobLen {
		return nil, ErrCorruptBlob
	}
	if data[offVersion] != formatVersion {
		return nil, ErrCorruptBlob
	}

	priv, err := ecdh.X25519().NewPrivateKey(data[offPrivate:offPublic])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid private scalar: %v", ErrCorruptBlob, err)
	}
	pub, err := ecdh.X25519().NewPublicKey(data[offPublic:offCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid public point: %v", ErrCorruptBlob, err)
	}
	if !equalBytes(priv.PublicKey().Bytes(), pub.Bytes()) {
		return nil, fmt.Errorf("%w: public point does not match private scalar", ErrCorruptBlob)
	}

	created := time.Unix(int64(binary.BigEndian.Uint64(data[offCreatedAt:offExpiresAt])), 0).UTC()
	expires := time.Unix(int64(binary.BigEndian.Uint64(data[offExpiresAt:offIdentifier])), 0).UTC()
	id := string(data[offIdentifier:])

	return &Identity{
		PrivateKey: priv,
		PublicKey:  priv.PublicKey(),
		KeyID:      id,
		CreatedAt:  created,
		ExpiresAt:  expires,
	}, nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
