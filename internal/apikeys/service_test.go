package apikeys

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secfolio/portfolio-gate/internal/secrets"
	"github.com/secfolio/portfolio-gate/internal/storage"
)

func testService(t *testing.T) (*Service, *storage.SQLiteStorage) {
	t.Helper()

	st, err := storage.Open(filepath.Join(t.TempDir(), "apikeys.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close() //nolint:errcheck
	})

	codec, err := secrets.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	return NewService(st, codec, nil), st
}

func auditCount(t *testing.T, st storage.Storage, action string) int {
	t.Helper()
	entries, err := st.ListAuditEntries(context.Background(), storage.AuditFilter{
		Kind:   storage.AuditKindAPIKey,
		Action: action,
	})
	require.NoError(t, err)
	return len(entries)
}

func TestCreateVerifyRotateScenario(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	admin := Actor{Name: "admin"}

	key, rawKey, err := svc.Create(ctx, "Prod", "Payments", admin, nil)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Len(t, rawKey, 64)
	assert.True(t, key.IsActive)
	assert.Equal(t, "admin", key.CreatedBy)

	// Fresh key verifies against its service
	verified, err := svc.Verify(ctx, rawKey, "Payments")
	require.NoError(t, err)
	require.NotNil(t, verified)
	assert.Equal(t, key.ID, verified.ID)
	assert.NotNil(t, verified.LastUsed)

	// Wrong service does not
	miss, err := svc.Verify(ctx, rawKey, "Email")
	require.NoError(t, err)
	assert.Nil(t, miss)

	// Rotation: same ID, new material
	rotated, newRaw, err := svc.Rotate(ctx, key.ID, admin)
	require.NoError(t, err)
	require.NotNil(t, rotated)
	assert.Equal(t, key.ID, rotated.ID)
	assert.NotEqual(t, rawKey, newRaw)

	// Old raw key is dead, new one verifies
	old, err := svc.Verify(ctx, rawKey, "Payments")
	require.NoError(t, err)
	assert.Nil(t, old)

	fresh, err := svc.Verify(ctx, newRaw, "Payments")
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.Equal(t, key.ID, fresh.ID)
}

func TestRawKeySecrecy(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	admin := Actor{Name: "admin"}

	_, rawKey, err := svc.Create(ctx, "Prod", "Payments", admin, nil)
	require.NoError(t, err)

	keys, err := svc.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	// No listed field may carry the raw key
	k := keys[0]
	for _, field := range []string{k.ID, k.Name, k.EncryptedKey, k.KeyDigest, k.Service, k.CreatedBy} {
		assert.NotContains(t, field, rawKey)
	}

	// Only the explicitly-audited decrypt path recovers it
	recovered, err := svc.GetDecrypted(ctx, k.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, rawKey, recovered)
}

func TestAuditCompleteness(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	admin := Actor{Name: "admin", IPAddress: "203.0.113.9", UserAgent: "test-agent"}

	key, rawKey, err := svc.Create(ctx, "Prod", "Payments", admin, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, auditCount(t, st, storage.ActionCreated))

	name := "Renamed"
	_, err = svc.Update(ctx, key.ID, Changes{Name: &name}, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, auditCount(t, st, storage.ActionUpdated))

	_, _, err = svc.Rotate(ctx, key.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, auditCount(t, st, storage.ActionUpdated)) // rotation logs as updated

	_, err = svc.Verify(ctx, rawKey, "") // stale after rotation: no match, no log
	require.NoError(t, err)
	assert.Equal(t, 0, auditCount(t, st, storage.ActionUsed))

	_, err = svc.GetDecrypted(ctx, key.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, auditCount(t, st, storage.ActionViewed))

	ok, err := svc.Delete(ctx, key.ID, admin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, auditCount(t, st, storage.ActionDeleted))

	// Actor detail lands in the entries
	entries, err := st.ListAuditEntries(ctx, storage.AuditFilter{Kind: storage.AuditKindAPIKey, Action: storage.ActionDeleted})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, key.ID, entries[0].SubjectID)
	assert.Equal(t, "203.0.113.9", entries[0].IPAddress)
	assert.Equal(t, "test-agent", entries[0].UserAgent)
}

func TestDeleteIdempotency(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	admin := Actor{Name: "admin"}

	key, _, err := svc.Create(ctx, "Prod", "Payments", admin, nil)
	require.NoError(t, err)

	ok, err := svc.Delete(ctx, key.ID, admin)
	require.NoError(t, err)
	assert.True(t, ok)

	// Already-inactive key: delete still succeeds
	ok, err = svc.Delete(ctx, key.ID, admin)
	require.NoError(t, err)
	assert.True(t, ok)

	// Unknown ID: not found
	ok, err = svc.Delete(ctx, "no-such-id", admin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInactiveKeyPaths(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	admin := Actor{Name: "admin"}

	key, rawKey, err := svc.Create(ctx, "Prod", "Payments", admin, nil)
	require.NoError(t, err)

	_, err = svc.Delete(ctx, key.ID, admin)
	require.NoError(t, err)

	verified, err := svc.Verify(ctx, rawKey, "Payments")
	require.NoError(t, err)
	assert.Nil(t, verified, "inactive keys must not verify")

	got, err := svc.GetByID(ctx, key.ID, admin)
	require.NoError(t, err)
	assert.Nil(t, got, "inactive keys are not retrievable")

	raw, err := svc.GetDecrypted(ctx, key.ID, admin)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestExpiredKeyFailsVerification(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	_, rawKey, err := svc.Create(ctx, "Ephemeral", "Payments", Actor{Name: "admin"}, &past)
	require.NoError(t, err)

	verified, err := svc.Verify(ctx, rawKey, "Payments")
	require.NoError(t, err)
	assert.Nil(t, verified)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		keyName string
		service string
	}{
		{name: "empty name", keyName: "", service: "Payments"},
		{name: "empty service", keyName: "Prod", service: ""},
		{name: "whitespace name", keyName: "   ", service: "Payments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Create(ctx, tt.keyName, tt.service, Actor{Name: "admin"}, nil)
			assert.True(t, errors.Is(err, ErrInvalidInput), "expected ErrInvalidInput, got %v", err)
		})
	}
}

func TestUpdateUnknownID(t *testing.T) {
	svc, _ := testService(t)

	name := "X"
	key, err := svc.Update(context.Background(), "no-such-id", Changes{Name: &name}, Actor{Name: "admin"})
	require.NoError(t, err)
	assert.Nil(t, key)

	rotated, raw, err := svc.Rotate(context.Background(), "no-such-id", Actor{Name: "admin"})
	require.NoError(t, err)
	assert.Nil(t, rotated)
	assert.Empty(t, raw)
}

func TestVerifyAuditsUsage(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	_, rawKey, err := svc.Create(ctx, "Prod", "Payments", Actor{Name: "admin"}, nil)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, rawKey, "Payments")
	require.NoError(t, err)

	entries, err := st.ListAuditEntries(ctx, storage.AuditFilter{Kind: storage.AuditKindAPIKey, Action: storage.ActionUsed})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "system", entries[0].PerformedBy)
	assert.False(t, strings.Contains(entries[0].Details, rawKey))
}
