// Package sessioncrypto implements the gateway's end-to-end encryption
// envelope: X25519 key agreement, HKDF-SHA256 key derivation, and
// ChaCha20-Poly1305 sealing/opening. Every function here is pure and
// stateless given its inputs; none of it persists or logs key material.
package sessioncrypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/echolia/inference-gateway/internal/metrics"
)

// DomainInfo is the HKDF domain-separation tag fixed by the wire protocol.
// Any implementation must reproduce this byte string exactly.
const DomainInfo = "echolia-inference-v1"

const (
	KeySize       = 32
	NonceSize     = chacha20poly1305.NonceSize // 12
	TagSize       = 16
	PublicKeySize = 32 // X25519 public key, client ephemeral or server identity
)

// ErrAuthFailed is returned by Open on any decryption/authentication
// failure. It is deliberately the same error whether the key is wrong, the
// ciphertext was tampered with, or the envelope is otherwise malformed —
// the protocol treats these as indistinguishable to external observers.
var ErrAuthFailed = errors.New("sessioncrypto: authentication failed")

// DeriveKey performs X25519 scalar multiplication between serverPrivate and
// clientEphemeralPublic, then feeds the raw shared secret through
// HKDF-SHA256 (empty salt, the fixed domain info tag) to produce a 32-byte
// symmetric key. The shared secret is wiped before return.
//
// X25519 is defined for all 32-byte public inputs, including small-subgroup
// points; DeriveKey never rejects a syntactically valid point. Any weakness
// introduced by an invalid peer point is caught downstream by the AEAD tag,
// not here.
func DeriveKey(serverPrivate *ecdh.PrivateKey, clientEphemeralPublic []byte) (key [KeySize]byte, err error) {
	start := time.Now()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("derive_key").Observe(time.Since(start).Seconds())
	}()

	peerPub, err := ecdh.X25519().NewPublicKey(clientEphemeralPublic)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("derive_key").Inc()
		return key, fmt.Errorf("%w: invalid ephemeral public key: %v", ErrAuthFailed, err)
	}

	shared, err := serverPrivate.ECDH(peerPub)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("derive_key").Inc()
		return key, fmt.Errorf("%w: ecdh failed: %v", ErrAuthFailed, err)
	}
	defer Wipe(shared)

	kdf := hkdf.New(sha256.New, shared, nil, []byte(DomainInfo))
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		metrics.CryptoErrors.WithLabelValues("derive_key").Inc()
		return key, fmt.Errorf("hkdf expand: %w", err)
	}

	metrics.CryptoOperations.WithLabelValues("derive_key").Inc()
	return key, nil
}

// Seal encrypts plaintext under key with a freshly generated 12-byte nonce,
// returning the ciphertext, the nonce, and the 16-byte authentication tag
// split out as distinct fields (the AEAD's appended tag is the trailing
// TagSize bytes of its output). No additional-associated-data is bound.
func Seal(key [KeySize]byte, plaintext []byte) (ciphertext, nonce, tag []byte, err error) {
	start := time.Now()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("seal").Observe(time.Since(start).Seconds())
	}()

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("seal").Inc()
		return nil, nil, nil, fmt.Errorf("new aead: %w", err)
	}

	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		metrics.CryptoErrors.WithLabelValues("seal").Inc()
		return nil, nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	ctLen := len(sealed) - TagSize
	ciphertext = sealed[:ctLen]
	tag = sealed[ctLen:]

	metrics.CryptoOperations.WithLabelValues("seal").Inc()
	return ciphertext, nonce, tag, nil
}

// Open decrypts and authenticates a sealed envelope. Any failure — wrong
// key, tampered ciphertext, tampered nonce, tampered tag — returns
// ErrAuthFailed and nothing else.
func Open(key [KeySize]byte, nonce, ciphertext, tag []byte) (plaintext []byte, err error) {
	start := time.Now()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("open").Observe(time.Since(start).Seconds())
	}()

	if len(nonce) != NonceSize || len(tag) != TagSize {
		metrics.CryptoErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("%w: malformed envelope", ErrAuthFailed)
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("new aead: %w", err)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err = aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("open").Inc()
		return nil, ErrAuthFailed
	}

	metrics.CryptoOperations.WithLabelValues("open").Inc()
	return plaintext, nil
}

// Wipe overwrites b with zeros in place. It must be called on every exit
// path that held a shared secret, derived key, or plaintext buffer;
// ordinary garbage collection is not a substitute. runtime.KeepAlive
// prevents the compiler from eliding the write as dead code.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.XORBytes(b, b, b)
	runtime.KeepAlive(b)
}

// WipeKey overwrites a fixed-size key array in place.
func WipeKey(key *[KeySize]byte) {
	for i := range key {
		key[i] = 0
	}
	runtime.KeepAlive(key)
}
