package securestore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = bytes.Repeat([]byte{7}, 32)

func openTestStore(t *testing.T) (*Store, string) {
	path := filepath.Join(t.TempDir(), "session.db")
	store, err := Open(path, testKey)
	require.NoError(t, err)
	return store, path
}

func TestStore_SetGetDelete(t *testing.T) {
	store, _ := openTestStore(t)

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set("a", []byte("alpha")))
	require.NoError(t, store.Set("b", []byte("beta")))

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))

	require.NoError(t, store.Delete("a", "zzz"))
	_, err = store.Get("a")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	got, err = store.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "beta", string(got))
}

func TestStore_ValuesAreEncryptedAtRest(t *testing.T) {
	store, path := openTestStore(t)
	require.NoError(t, store.Set("token", []byte("super-secret-token")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret-token")
}

func TestStore_WrongKeyFailsToDecrypt(t *testing.T) {
	store, path := openTestStore(t)
	require.NoError(t, store.Set("token", []byte("value")))

	other, err := Open(path, bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)

	_, err = other.Get("token")
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestOpen_InvalidKey(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x.db"), []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSessionRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)
	repo := NewSessionRepository(store)

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)

	want := session.Session{
		User:  session.CurrentUser{ID: "u-1", SchoolID: "s-1", Name: "Asha", Role: session.RoleTeacher},
		Token: "opaque-token",
	}
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, repo.Clear(ctx))
	_, err = repo.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestSessionRepository_FillsIdentityFromToken(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)
	repo := NewSessionRepository(store)

	token, _, err := jwt.NewJWTService("secret", time.Hour).GenerateAccessToken("u-7", "s-7", "TEACHER")
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, session.Session{
		User:  session.CurrentUser{ID: "u-7"},
		Token: token,
	}))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-7", got.User.ID)
	assert.Equal(t, "s-7", got.User.SchoolID)
}

func TestStore_InstallIDIsStableAcrossSignOut(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	first, err := store.InstallID()
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	require.NoError(t, NewSessionRepository(store).Clear(ctx))

	second, err := store.InstallID()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
