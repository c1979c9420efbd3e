package fortress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fortress/internal/fortresscrypto"
)

// RemoteObject is one line of the server's inventory.
type RemoteObject struct {
	Id  ID
	Siv fortresscrypto.SIV
}

// ObjectStore is the remote half of the sync protocol. Implementations own
// transport and authentication; the engine only sees opaque encrypted
// objects.
type ObjectStore interface {
	// List returns the server's (id, siv) inventory.
	List(ctx context.Context) ([]RemoteObject, error)

	// Get fetches one encrypted object.
	Get(ctx context.Context, id ID) (fortresscrypto.SIV, []byte, error)

	// Put stores one encrypted object, replacing any previous version.
	Put(ctx context.Context, id ID, siv fortresscrypto.SIV, ciphertext []byte) error
}

// Sync reconciles the local database against the remote store. Every local
// object is skipped, merged, or uploaded based on its deterministic SIV;
// objects only the server knows are downloaded and inserted. Object unions
// are commutative and idempotent, so an interrupted sync leaves the
// database consistent and a retry converges.
//
// Returns true if the local database changed and should be saved.
func (db *Database) Sync(ctx context.Context, store ObjectStore) (bool, error) {
	inventory, err := store.List(ctx)
	if err != nil {
		return false, err
	}
	remote := make(map[ID]fortresscrypto.SIV, len(inventory))
	for _, ro := range inventory {
		remote[ro.Id] = ro.Siv
	}

	changed := false
	for _, id := range db.objects.Ids() {
		local, _ := db.objects.Get(id)
		localChanged, err := db.syncObject(ctx, store, local, remote)
		if err != nil {
			return changed, err
		}
		changed = changed || localChanged
		delete(remote, id)
	}

	// Whatever remains in the inventory is unknown locally.
	for _, ro := range inventory {
		if _, stillRemote := remote[ro.Id]; !stillRemote {
			continue
		}
		object, err := db.fetchObject(ctx, store, ro.Id)
		if err != nil {
			return changed, err
		}
		if object == nil {
			continue
		}
		db.objects.Update(object)
		changed = true
	}

	return changed, nil
}

// syncObject reconciles a single local object. Reports whether the local
// copy changed.
func (db *Database) syncObject(ctx context.Context, store ObjectStore, local *Object, remote map[ID]fortresscrypto.SIV) (bool, error) {
	id := local.Id()
	localPayload, err := json.Marshal(local)
	if err != nil {
		return false, err
	}
	localSiv, localCt := db.networkSuite.EncryptObject(id[:], localPayload)

	serverSiv, onServer := remote[id]
	if !onServer {
		return false, store.Put(ctx, id, localSiv, localCt)
	}
	if serverSiv == localSiv {
		// Identical SIV means identical bytes under deterministic
		// encryption. Nothing to transfer.
		return false, nil
	}

	serverObject, err := db.fetchObject(ctx, store, id)
	if err != nil {
		return false, err
	}
	if serverObject == nil {
		// The server copy is undecryptable or malformed. Repair it from
		// our good copy.
		return false, store.Put(ctx, id, localSiv, localCt)
	}

	merged, err := local.Merge(serverObject)
	if err != nil {
		// Type confusion on the server side. Repair it from our copy.
		return false, store.Put(ctx, id, localSiv, localCt)
	}

	mergedPayload, err := json.Marshal(merged)
	if err != nil {
		return false, err
	}
	mergedSiv, mergedCt := db.networkSuite.EncryptObject(id[:], mergedPayload)

	localDiffers := !bytes.Equal(mergedPayload, localPayload)
	if localDiffers {
		db.objects.Update(merged)
	}
	if mergedSiv != serverSiv {
		if err := store.Put(ctx, id, mergedSiv, mergedCt); err != nil {
			return localDiffers, err
		}
	}
	return localDiffers, nil
}

// fetchObject downloads and decrypts one object. A server copy that fails
// authentication or does not parse yields (nil, nil); the caller decides
// whether to repair or skip it.
func (db *Database) fetchObject(ctx context.Context, store ObjectStore, id ID) (*Object, error) {
	siv, ciphertext, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	payload, err := db.networkSuite.DecryptObject(id[:], siv, ciphertext)
	if err != nil {
		if errors.Is(err, fortresscrypto.ErrDecryptionFailed) {
			return nil, nil
		}
		return nil, err
	}
	object := &Object{}
	if err := json.Unmarshal(payload, object); err != nil {
		return nil, nil
	}
	if object.Id() != id {
		return nil, fmt.Errorf("%w: server returned object %s for id %s", ErrServerRejected, object.Id(), id)
	}
	return object, nil
}
