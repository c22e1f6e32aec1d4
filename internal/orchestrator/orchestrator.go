// Package orchestrator implements the gateway's top-level per-request state
// machine: quota reservation, task lookup, key readiness, decryption,
// provider dispatch, output validation, and re-encryption. It is the only
// component that touches plaintext, and it wipes every sensitive buffer on
// every exit path.
package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/echolia/inference-gateway/internal/apierror"
	"github.com/echolia/inference-gateway/internal/keystore"
	"github.com/echolia/inference-gateway/internal/logger"
	"github.com/echolia/inference-gateway/internal/metrics"
	"github.com/echolia/inference-gateway/internal/provider"
	"github.com/echolia/inference-gateway/internal/quota"
	"github.com/echolia/inference-gateway/internal/sessioncrypto"
	"github.com/echolia/inference-gateway/internal/tasks"
)

// Envelope is the client's sealed request payload, already base64-decoded
// by the HTTP layer.
type Envelope struct {
	Task               tasks.Tag
	EncryptedContent   []byte
	Nonce              []byte
	MAC                []byte
	EphemeralPublicKey []byte
}

// SealedReply is the gateway's sealed response payload, ready for the HTTP
// layer to base64-encode.
type SealedReply struct {
	EncryptedResult []byte
	Nonce           []byte
	MAC             []byte
	Usage           quota.UsageSnapshot
}

// Orchestrator wires KeyStore, the quota ledger, the task registry, and the
// provider gateway into the single pipeline described by the state machine.
type Orchestrator struct {
	keys    *keystore.KeyStore
	ledger  *quota.Ledger
	gateway *provider.Gateway
	log     logger.Logger
}

func New(keys *keystore.KeyStore, ledger *quota.Ledger, gateway *provider.Gateway, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Orchestrator{keys: keys, ledger: ledger, gateway: gateway, log: log}
}

// Execute runs one request through the full pipeline. It returns exactly
// one of (SealedReply, nil) or (SealedReply{}, error): a quota rejection is
// a rate-limited error whose kind and usage are read with Kind and UsageOf;
// every other failure is an *apierror.Error.
func (o *Orchestrator) Execute(ctx context.Context, principalID string, env Envelope) (SealedReply, error) {
	start := time.Now()
	outcome := "reply"
	defer func() {
		metrics.OrchestratorRequests.WithLabelValues(outcome).Inc()
		metrics.OrchestratorDuration.WithLabelValues(string(env.Task)).Observe(time.Since(start).Seconds())
	}()

	now := time.Now()

	// Quota-check.
	reserveOutcome, usage, err := o.ledger.Reserve(ctx, principalID, now)
	if err != nil {
		outcome = apierror.Tag(apierror.Server)
		return SealedReply{}, apierror.New(apierror.Server, err)
	}
	if reserveOutcome == quota.Exhausted {
		outcome = apierror.Tag(apierror.RateLimited)
		return SealedReply{}, &rateLimitedError{usage: usage}
	}

	// Task-lookup.
	descriptor, err := tasks.Lookup(env.Task)
	if err != nil {
		outcome = apierror.Tag(apierror.BadTask)
		return SealedReply{}, apierror.New(apierror.BadTask, err)
	}

	if err := ctx.Err(); err != nil {
		outcome = apierror.Tag(apierror.Server)
		return SealedReply{}, apierror.New(apierror.Server, err)
	}

	// Key-ready. Rotation failure still consumes the quota reservation made
	// above, discouraging flooding against a degraded keystore.
	if err := o.keys.RotateIfStale(now); err != nil {
		o.log.Error("keystore rotation failed during request", logger.Error(err))
		outcome = apierror.Tag(apierror.Server)
		return SealedReply{}, apierror.New(apierror.Server, err)
	}
	identity := o.keys.Current()

	// Decode. Field lengths are checked before any crypto call touches them,
	// so a malformed envelope is rejected as MalformedEnvelope (400) rather
	// than falling through to sessioncrypto and surfacing as a 422
	// decrypt_failed, which spec.md §7/§8 reserve for auth failures.
	if err := validateEnvelope(env); err != nil {
		outcome = apierror.Tag(apierror.MalformedEnvelope)
		return SealedReply{}, apierror.New(apierror.MalformedEnvelope, err)
	}

	// Decrypt.
	key, err := sessioncrypto.DeriveKey(identity.PrivateKey, env.EphemeralPublicKey)
	if err != nil {
		outcome = apierror.Tag(apierror.Unprocessable)
		return SealedReply{}, apierror.New(apierror.Unprocessable, err)
	}
	defer sessioncrypto.WipeKey(&key)

	plaintext, err := sessioncrypto.Open(key, env.Nonce, env.EncryptedContent, env.MAC)
	if err != nil {
		outcome = apierror.Tag(apierror.Unprocessable)
		return SealedReply{}, apierror.New(apierror.Unprocessable, err)
	}
	defer sessioncrypto.Wipe(plaintext)

	if err := ctx.Err(); err != nil {
		outcome = apierror.Tag(apierror.Server)
		return SealedReply{}, apierror.New(apierror.Server, err)
	}

	// Format+Dispatch.
	systemMessage, userMessage := descriptor.Format(string(plaintext))
	modelOutput, providerUsage, err := o.gateway.Complete(ctx, systemMessage, userMessage)
	if err != nil {
		var perr *provider.Error
		if errors.As(err, &perr) {
			kind := mapProviderCategory(perr.Category)
			outcome = apierror.Tag(kind)
			return SealedReply{}, apierror.New(kind, err)
		}
		outcome = apierror.Tag(apierror.ProviderTransport)
		return SealedReply{}, apierror.New(apierror.ProviderTransport, err)
	}

	o.log.Info("provider completion",
		logger.String("provider", logger.Sanitize(o.gateway.Name())),
		logger.String("task", logger.Sanitize(string(env.Task))),
		logger.Int("input_token_count", providerUsage.PromptTokens),
		logger.Int("output_token_count", providerUsage.CompletionTokens),
	)

	// Parse+Validate.
	result, err := descriptor.Parse(modelOutput)
	if err != nil {
		o.log.Error("model output failed validation", logger.String("task", logger.Sanitize(string(env.Task))))
		outcome = apierror.Tag(apierror.Server)
		return SealedReply{}, apierror.New(apierror.Server, err)
	}
	canonical := []byte(result.JSON)
	defer sessioncrypto.Wipe(canonical)

	// Seal.
	ciphertext, nonce, mac, err := sessioncrypto.Seal(key, canonical)
	if err != nil {
		outcome = apierror.Tag(apierror.Server)
		return SealedReply{}, apierror.New(apierror.Server, err)
	}

	return SealedReply{
		EncryptedResult: ciphertext,
		Nonce:           nonce,
		MAC:             mac,
		Usage:           usage,
	}, nil
}

func mapProviderCategory(cat provider.Category) apierror.Kind {
	switch cat {
	case provider.CategoryTransport:
		return apierror.ProviderTransport
	case provider.CategoryRate:
		return apierror.ProviderTransport
	case provider.CategoryUnauthorized:
		return apierror.ProviderServer
	case provider.CategoryBadRequest:
		return apierror.ProviderBadRequest
	default:
		return apierror.ProviderServer
	}
}

// rateLimitedError carries the usage snapshot the HTTP layer must echo back
// on a quota_exceeded response.
type rateLimitedError struct {
	usage quota.UsageSnapshot
}

func (e *rateLimitedError) Error() string { return "orchestrator: quota exhausted" }

// Usage exposes the snapshot so the HTTP layer can populate the response
// body without a type assertion on *apierror.Error, which carries no usage
// field of its own.
func (e *rateLimitedError) Usage() quota.UsageSnapshot { return e.usage }

// UsageOf extracts the usage snapshot from a rate-limited rejection, if
// present.
func UsageOf(err error) (quota.UsageSnapshot, bool) {
	var rl *rateLimitedError
	if errors.As(err, &rl) {
		return rl.usage, true
	}
	return quota.UsageSnapshot{}, false
}

// Kind extracts the apierror.Kind for a rejection, handling both the
// standard *apierror.Error path and the rate-limited special case.
func Kind(err error) apierror.Kind {
	if _, ok := UsageOf(err); ok {
		return apierror.RateLimited
	}
	var aerr *apierror.Error
	if errors.As(err, &aerr) {
		return aerr.Kind
	}
	return apierror.Server
}

// validateEnvelope checks the fixed-length fields of a decoded envelope
// against the wire protocol's declared sizes (spec.md §8 boundary
// behaviors): nonce length ≠ 12, tag length ≠ 16, or ephemeral-pub length ≠
// 32 must all be rejected here, before either length reaches
// sessioncrypto.DeriveKey or sessioncrypto.Open and gets misreported as an
// auth failure.
func validateEnvelope(env Envelope) error {
	if len(env.Nonce) != sessioncrypto.NonceSize {
		return fmt.Errorf("nonce length %d, want %d", len(env.Nonce), sessioncrypto.NonceSize)
	}
	if len(env.MAC) != sessioncrypto.TagSize {
		return fmt.Errorf("mac length %d, want %d", len(env.MAC), sessioncrypto.TagSize)
	}
	if len(env.EphemeralPublicKey) != sessioncrypto.PublicKeySize {
		return fmt.Errorf("ephemeral public key length %d, want %d", len(env.EphemeralPublicKey), sessioncrypto.PublicKeySize)
	}
	return nil
}

// DecodeBase64 is a small helper the HTTP layer uses to decode the
// envelope's base64 fields; centralized here so envelope decode errors are
// reported uniformly as MalformedEnvelope.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
