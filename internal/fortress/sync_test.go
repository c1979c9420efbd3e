package fortress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fortress/internal/fortresscrypto"
)

type memObject struct {
	siv fortresscrypto.SIV
	ct  []byte
}

// memStore is an in-memory ObjectStore for tests.
type memStore struct {
	objects map[ID]memObject
	puts    int
	gets    int
	listErr error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[ID]memObject)}
}

func (s *memStore) List(ctx context.Context) ([]RemoteObject, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []RemoteObject
	for id, o := range s.objects {
		out = append(out, RemoteObject{Id: id, Siv: o.siv})
	}
	return out, nil
}

func (s *memStore) Get(ctx context.Context, id ID) (fortresscrypto.SIV, []byte, error) {
	s.gets++
	o, ok := s.objects[id]
	if !ok {
		return fortresscrypto.SIV{}, nil, fmt.Errorf("%w: no object %s", ErrTransportFailure, id)
	}
	return o.siv, o.ct, nil
}

func (s *memStore) Put(ctx context.Context, id ID, siv fortresscrypto.SIV, ct []byte) error {
	s.puts++
	s.objects[id] = memObject{siv: siv, ct: append([]byte(nil), ct...)}
	return nil
}

// twoReplicas opens two databases from one save, so they share all key
// material and the initial object set.
func twoReplicas(t *testing.T) (*Database, *Database) {
	t.Helper()
	a := testDatabase(t, "alice", "pw")
	data, err := a.Save()
	require.NoError(t, err)
	b, err := Open(data, "pw")
	require.NoError(t, err)
	return a, b
}

func objectsJSON(t *testing.T, db *Database) []byte {
	t.Helper()
	data, err := json.Marshal(db.objects)
	require.NoError(t, err)
	return data
}

func TestSyncUploadAndDownload(t *testing.T) {
	ctx := context.Background()
	a, b := twoReplicas(t)
	store := newMemStore()

	entryId, err := a.EditEntry(nil, map[string]*string{KeyTitle: str("gmail"), KeyPassword: str("p1")}, RootID)
	require.NoError(t, err)

	// First sync pushes everything; the local replica does not change.
	changed, err := a.Sync(ctx, store)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, store.objects, 2)

	// The other replica pulls the entry via the root merge.
	changed, err = b.Sync(ctx, store)
	require.NoError(t, err)
	assert.True(t, changed)

	entry, err := b.GetEntry(entryId)
	require.NoError(t, err)
	title, _ := entry.Get(KeyTitle)
	assert.Equal(t, "gmail", title)
	assert.True(t, b.Root().HasChild(entryId))
	assert.NoError(t, b.Validate())

	assert.Equal(t, objectsJSON(t, a), objectsJSON(t, b))
}

func TestSyncIdenticalReplicaIsIdle(t *testing.T) {
	ctx := context.Background()
	a, _ := twoReplicas(t)
	store := newMemStore()

	_, err := a.Sync(ctx, store)
	require.NoError(t, err)
	puts, gets := store.puts, store.gets

	// Identical SIVs mean identical bytes; nothing is transferred again.
	changed, err := a.Sync(ctx, store)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, puts, store.puts)
	assert.Equal(t, gets, store.gets)
}

func TestSyncConcurrentRenameConverges(t *testing.T) {
	ctx := context.Background()
	a, b := twoReplicas(t)
	store := newMemStore()

	// Fixed timestamps keep the scenario deterministic.
	dir := NewDirectory()
	dir.rename(50, "D")
	dirId := dir.Id
	a.objects.Update(DirectoryObject(dir))
	rootA, _ := a.objects.Get(RootID)
	rootA.Directory.addChild(50, dirId)

	_, err := a.Sync(ctx, store)
	require.NoError(t, err)
	_, err = b.Sync(ctx, store)
	require.NoError(t, err)

	// Both replicas rename the same directory offline.
	dirA, _ := a.objects.Get(dirId)
	dirA.Directory.rename(100, "D2")
	dirB, _ := b.objects.Get(dirId)
	dirB.Directory.rename(200, "D3")

	_, err = a.Sync(ctx, store)
	require.NoError(t, err)
	_, err = b.Sync(ctx, store)
	require.NoError(t, err)
	_, err = a.Sync(ctx, store)
	require.NoError(t, err)

	for _, db := range []*Database{a, b} {
		dir, err := db.GetDirectory(dirId)
		require.NoError(t, err)
		name, _ := dir.Name()
		assert.Equal(t, "D3", name)
		// Both rename events survive in history.
		assert.Len(t, dir.History, 3)
	}
	assert.Equal(t, objectsJSON(t, a), objectsJSON(t, b))
}

func TestSyncIndependentAddsConverge(t *testing.T) {
	ctx := context.Background()
	a, b := twoReplicas(t)
	store := newMemStore()

	x := NewEntry(100)
	x.edit(100, map[string]*string{KeyTitle: str("X")})
	a.objects.Update(EntryObject(x))
	rootA, _ := a.objects.Get(RootID)
	rootA.Directory.addChild(100, x.Id)

	y := NewEntry(110)
	y.edit(110, map[string]*string{KeyTitle: str("Y")})
	b.objects.Update(EntryObject(y))
	rootB, _ := b.objects.Get(RootID)
	rootB.Directory.addChild(110, y.Id)

	_, err := a.Sync(ctx, store)
	require.NoError(t, err)
	_, err = b.Sync(ctx, store)
	require.NoError(t, err)
	_, err = a.Sync(ctx, store)
	require.NoError(t, err)

	for _, db := range []*Database{a, b} {
		root := db.Root()
		assert.True(t, root.HasChild(x.Id))
		assert.True(t, root.HasChild(y.Id))
		assert.NoError(t, db.Validate())
	}

	// Convergence is byte-exact, not just structural.
	assert.Equal(t, objectsJSON(t, a), objectsJSON(t, b))
}

func TestSyncRepairsCorruptServerObject(t *testing.T) {
	ctx := context.Background()
	a, _ := twoReplicas(t)
	store := newMemStore()

	_, err := a.Sync(ctx, store)
	require.NoError(t, err)

	// Corrupt the server's copy of the root but keep an inventory entry
	// with a mismatching SIV, so the engine is forced to fetch it.
	damaged := store.objects[RootID]
	damaged.ct = append([]byte(nil), damaged.ct...)
	if len(damaged.ct) == 0 {
		damaged.ct = []byte{1}
	} else {
		damaged.ct[0] ^= 1
	}
	damaged.siv[0] ^= 1
	store.objects[RootID] = damaged

	changed, err := a.Sync(ctx, store)
	require.NoError(t, err)
	assert.False(t, changed)

	// The server copy was replaced with a decryptable one.
	got := store.objects[RootID]
	_, err = a.networkSuite.DecryptObject(RootID[:], got.siv, got.ct)
	assert.NoError(t, err)
}

func TestSyncTransportFailure(t *testing.T) {
	a, _ := twoReplicas(t)
	store := newMemStore()
	store.listErr = fmt.Errorf("%w: connection refused", ErrTransportFailure)

	_, err := a.Sync(context.Background(), store)
	assert.True(t, errors.Is(err, ErrTransportFailure))
}

func TestSyncRetryAfterPartialFailure(t *testing.T) {
	ctx := context.Background()
	a, b := twoReplicas(t)
	store := newMemStore()

	_, err := a.EditEntry(nil, map[string]*string{KeyTitle: str("x")}, RootID)
	require.NoError(t, err)

	_, err = a.Sync(ctx, store)
	require.NoError(t, err)

	// A sync whose list call fails processes nothing; a retry converges.
	store.listErr = fmt.Errorf("%w: timeout", ErrTransportFailure)
	_, err = b.Sync(ctx, store)
	require.Error(t, err)

	store.listErr = nil
	_, err = b.Sync(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, objectsJSON(t, a), objectsJSON(t, b))
}
