package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu      sync.Mutex
	users   map[string][]byte
	objects map[string]map[string]StoredObject
	data    map[string]map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:   make(map[string][]byte),
		objects: make(map[string]map[string]StoredObject),
		data:    make(map[string]map[string][]byte),
	}
}

func (r *MemoryRepository) CreateUser(ctx context.Context, loginId, loginKeyHash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := hex.EncodeToString(loginId)
	if _, ok := r.users[key]; ok {
		return fmt.Errorf("user %s already exists", key)
	}
	r.users[key] = append([]byte(nil), loginKeyHash...)
	return nil
}

func (r *MemoryRepository) GetUserKeyHash(ctx context.Context, loginId []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hash, ok := r.users[hex.EncodeToString(loginId)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return hash, nil
}

func (r *MemoryRepository) ListObjects(ctx context.Context, loginId []byte) ([]StoredObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StoredObject
	for _, o := range r.objects[hex.EncodeToString(loginId)] {
		out = append(out, o)
	}
	return out, nil
}

func (r *MemoryRepository) GetObject(ctx context.Context, loginId, objectId []byte) ([]byte, []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := hex.EncodeToString(loginId)
	o, ok := r.objects[user][hex.EncodeToString(objectId)]
	if !ok {
		return nil, nil, ErrNotFound
	}
	return o.Siv, r.data[user][hex.EncodeToString(objectId)], nil
}

func (r *MemoryRepository) PutObject(ctx context.Context, loginId, objectId, siv, ciphertext []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := hex.EncodeToString(loginId)
	if r.objects[user] == nil {
		r.objects[user] = make(map[string]StoredObject)
		r.data[user] = make(map[string][]byte)
	}
	obj := hex.EncodeToString(objectId)
	r.objects[user][obj] = StoredObject{
		ObjectId: append([]byte(nil), objectId...),
		Siv:      append([]byte(nil), siv...),
	}
	r.data[user][obj] = append([]byte(nil), ciphertext...)
	return nil
}

func (r *MemoryRepository) Close() {}
