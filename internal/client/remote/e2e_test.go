package remote

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fortress/internal/fortress"
	"github.com/dmitrijs2005/fortress/internal/fortresscrypto"
	"github.com/dmitrijs2005/fortress/internal/logging"
	"github.com/dmitrijs2005/fortress/internal/server/httpapi"
	"github.com/dmitrijs2005/fortress/internal/server/storage"
)

func fastFileParams() fortresscrypto.FileKdfParameters {
	params := fortresscrypto.FileKdfParameters{LogN: 4, R: 8, P: 1}
	copy(params.Salt[:], fortresscrypto.RandBytes(32))
	return params
}

func fastNetworkParams() fortresscrypto.NetworkScryptParams {
	return fortresscrypto.NetworkScryptParams{LogN: 4, R: 8, P: 1}
}

// Two replicas reconcile through the real server handler backed by the
// in-memory repository, over real HTTP.
func TestSyncOverHTTP(t *testing.T) {
	ctx := context.Background()

	handler := httpapi.NewHandler(storage.NewMemoryRepository(),
		[]byte("e2e-secret"), time.Minute, []byte("e2e-pepper"),
		logging.NewText(slog.LevelError))
	srv := httptest.NewServer(handler.Router())
	defer srv.Close()

	a, err := fortress.NewDatabaseWithParams("alice", "pw", fastFileParams(), fastNetworkParams())
	require.NoError(t, err)
	saved, err := a.Save()
	require.NoError(t, err)
	b, err := fortress.Open(saved, "pw")
	require.NoError(t, err)

	storeFor := func(db *fortress.Database) *HTTPStore {
		loginId, loginKey := db.LoginCredentials()
		return NewHTTPStore(srv.URL, loginId, loginKey, 5*time.Second)
	}

	entryId, err := a.EditEntry(nil, map[string]*string{
		"title":    strPtr("gmail"),
		"password": strPtr("p1"),
	}, fortress.RootID)
	require.NoError(t, err)

	_, err = a.Sync(ctx, storeFor(a))
	require.NoError(t, err)

	changed, err := b.Sync(ctx, storeFor(b))
	require.NoError(t, err)
	assert.True(t, changed)

	entry, err := b.GetEntry(entryId)
	require.NoError(t, err)
	title, _ := entry.Get("title")
	assert.Equal(t, "gmail", title)
	assert.True(t, b.Root().HasChild(entryId))
	assert.NoError(t, b.Validate())
}

// A replica under a different account never sees the first account's
// objects.
func TestSyncOverHTTPAccountIsolation(t *testing.T) {
	ctx := context.Background()

	handler := httpapi.NewHandler(storage.NewMemoryRepository(),
		[]byte("e2e-secret"), time.Minute, []byte("e2e-pepper"),
		logging.NewText(slog.LevelError))
	srv := httptest.NewServer(handler.Router())
	defer srv.Close()

	alice, err := fortress.NewDatabaseWithParams("alice", "pw", fastFileParams(), fastNetworkParams())
	require.NoError(t, err)
	bob, err := fortress.NewDatabaseWithParams("bob", "pw", fastFileParams(), fastNetworkParams())
	require.NoError(t, err)

	_, err = alice.EditEntry(nil, map[string]*string{"title": strPtr("secret")}, fortress.RootID)
	require.NoError(t, err)

	aliceId, aliceKey := alice.LoginCredentials()
	_, err = alice.Sync(ctx, NewHTTPStore(srv.URL, aliceId, aliceKey, 5*time.Second))
	require.NoError(t, err)

	bobId, bobKey := bob.LoginCredentials()
	_, err = bob.Sync(ctx, NewHTTPStore(srv.URL, bobId, bobKey, 5*time.Second))
	require.NoError(t, err)

	assert.Len(t, bob.ListEntries(), 0)
}

func strPtr(s string) *string { return &s }
