package fortress

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ObjectMap owns every object in the database, keyed by ID. All
// modifications go through Update so the key always matches the object's
// own ID.
type ObjectMap struct {
	inner map[ID]*Object
}

func NewObjectMap() *ObjectMap {
	return &ObjectMap{inner: make(map[ID]*Object)}
}

func (m *ObjectMap) Get(id ID) (*Object, bool) {
	o, ok := m.inner[id]
	return o, ok
}

func (m *ObjectMap) Len() int {
	return len(m.inner)
}

// Update inserts the object, replacing any previous object with the same ID.
func (m *ObjectMap) Update(o *Object) {
	m.inner[o.Id()] = o
}

// Ids returns every key in ID order.
func (m *ObjectMap) Ids() []ID {
	ids := make([]ID, 0, len(m.inner))
	for id := range m.inner {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// MarshalJSON serializes the map keyed by hex ID. Map keys serialize in
// sorted order, which keeps the payload byte-stable.
func (m *ObjectMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.inner)
}

func (m *ObjectMap) UnmarshalJSON(data []byte) error {
	inner := make(map[ID]*Object)
	if err := json.Unmarshal(data, &inner); err != nil {
		return err
	}
	for id, o := range inner {
		if o == nil || o.Id() != id {
			return fmt.Errorf("object map key %s does not match its object", id)
		}
	}
	m.inner = inner
	return nil
}
