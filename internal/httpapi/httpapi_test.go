package httpapi

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/echolia/inference-gateway/internal/identity"
	"github.com/echolia/inference-gateway/internal/keystore"
	"github.com/echolia/inference-gateway/internal/orchestrator"
	"github.com/echolia/inference-gateway/internal/provider"
	"github.com/echolia/inference-gateway/internal/quota"
	"github.com/echolia/inference-gateway/internal/sessioncrypto"
	"github.com/echolia/inference-gateway/internal/tasks"
	"github.com/echolia/inference-gateway/pkg/health"
)

type fixedTierResolver struct{ tier quota.Tier }

func (f fixedTierResolver) TierOf(context.Context, string) (quota.Tier, error) {
	return f.tier, nil
}

type testStack struct {
	mux        http.Handler
	secret     []byte
	keys       *keystore.KeyStore
	serverPriv *ecdh.PrivateKey
}

func newTestStack(t *testing.T) testStack {
	t.Helper()
	dir := t.TempDir()

	ks, err := keystore.Open(filepath.Join(dir, "identity.bin"), 30*24*time.Hour, nil)
	require.NoError(t, err)

	ledger := quota.NewLedger(quota.NewMemStore(), fixedTierResolver{quota.TierFree}, quota.Ceilings{
		FreeDailyLimit: 10, ElevatedDailyLimit: 100,
	})

	gw, err := provider.New(time.Second, provider.NewEcho(`{"tags":[{"tag":"reflection","confidence":0.8}],"confidence":0.7}`))
	require.NoError(t, err)

	orch := orchestrator.New(ks, ledger, gw, nil)
	checker := health.NewChecker(ks, ledger, gw)

	secret := []byte("test-secret")
	resolver := identity.NewJWTResolver(secret)

	srv := New(":0", resolver, ks, ledger, orch, checker, nil)

	return testStack{mux: srv.buildMux(), secret: secret, keys: ks, serverPriv: ks.Current().PrivateKey}
}

func (ts testStack) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(ts.secret)
	require.NoError(t, err)
	return signed
}

func TestPublicKeyRequiresAuth(t *testing.T) {
	ts := newTestStack(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/public-key", nil)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPublicKeyReturnsCurrentIdentity(t *testing.T) {
	ts := newTestStack(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/public-key", nil)
	req.Header.Set("Authorization", "Bearer "+ts.tokenFor(t, "user-1"))
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body publicKeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, ts.keys.Current().KeyID, body.KeyID)
	require.Equal(t, "X25519", body.Algorithm)
}

func TestExecuteHappyPath(t *testing.T) {
	ts := newTestStack(t)

	clientPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := sessioncrypto.DeriveKey(clientPriv, ts.serverPriv.PublicKey().Bytes())
	require.NoError(t, err)
	ciphertext, nonce, mac, err := sessioncrypto.Seal(key, []byte("felt reflective today"))
	require.NoError(t, err)

	body, err := json.Marshal(executeRequest{
		Task:               string(tasks.Tagging),
		EncryptedContent:   base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:              base64.StdEncoding.EncodeToString(nonce),
		MAC:                base64.StdEncoding.EncodeToString(mac),
		EphemeralPublicKey: base64.StdEncoding.EncodeToString(clientPriv.PublicKey().Bytes()),
		ClientVersion:      "test/1.0",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/execute", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+ts.tokenFor(t, "user-1"))
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp executeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, string(quota.TierFree), resp.Usage.Tier)
	require.Equal(t, int64(9), resp.Usage.RequestsRemaining)
}

func TestExecuteRejectsMalformedEnvelope(t *testing.T) {
	ts := newTestStack(t)
	body, err := json.Marshal(executeRequest{Task: string(tasks.Tagging), EncryptedContent: "not-base64!!"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/execute", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+ts.tokenFor(t, "user-1"))
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsageReflectsFreshLedger(t *testing.T) {
	ts := newTestStack(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
	req.Header.Set("Authorization", "Bearer "+ts.tokenFor(t, "user-2"))
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp usageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(10), resp.RequestsRemaining)
}

func TestHealthzUnauthenticated(t *testing.T) {
	ts := newTestStack(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
