package fortress

import (
	"encoding/json"
	"fmt"
)

const (
	objectTypeDirectory = "directory"
	objectTypeEntry     = "entry"
)

// Object is a Directory or an Entry. Unknown serialized keys are retained
// across a round-trip so older clients do not destroy fields written by
// newer clients.
type Object struct {
	Directory *Directory
	Entry     *Entry

	extra map[string]json.RawMessage
}

func DirectoryObject(d *Directory) *Object {
	return &Object{Directory: d}
}

func EntryObject(e *Entry) *Object {
	return &Object{Entry: e}
}

// Id returns the contained object's ID.
func (o *Object) Id() ID {
	if o.Directory != nil {
		return o.Directory.Id
	}
	return o.Entry.Id
}

// Clone returns a deep copy of the contained object and its unknown keys.
func (o *Object) Clone() *Object {
	clone := &Object{}
	if o.Directory != nil {
		clone.Directory = o.Directory.Clone()
	}
	if o.Entry != nil {
		clone.Entry = o.Entry.Clone()
	}
	if len(o.extra) > 0 {
		clone.extra = make(map[string]json.RawMessage, len(o.extra))
		for k, v := range o.extra {
			clone.extra[k] = v
		}
	}
	return clone
}

// Merge unions the histories of two same-ID, same-type objects. Unknown
// keys from both sides survive; on a key collision the local side wins.
func (o *Object) Merge(other *Object) (*Object, error) {
	merged := &Object{}
	switch {
	case o.Directory != nil && other.Directory != nil:
		d, err := o.Directory.Merge(other.Directory)
		if err != nil {
			return nil, err
		}
		merged.Directory = d
	case o.Entry != nil && other.Entry != nil:
		e, err := o.Entry.Merge(other.Entry)
		if err != nil {
			return nil, err
		}
		merged.Entry = e
	default:
		return nil, fmt.Errorf("%w: object %s changed type", ErrInvalidInput, o.Id())
	}

	for _, src := range []map[string]json.RawMessage{other.extra, o.extra} {
		for k, v := range src {
			if merged.extra == nil {
				merged.extra = make(map[string]json.RawMessage)
			}
			merged.extra[k] = v
		}
	}
	return merged, nil
}

// MarshalJSON emits a flat, type-tagged document. Serialization goes
// through a string-keyed map so keys come out sorted and the bytes are
// identical on every replica.
func (o *Object) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(o.extra)+4)
	for k, v := range o.extra {
		doc[k] = v
	}

	put := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		doc[key] = raw
		return nil
	}

	switch {
	case o.Directory != nil:
		if err := put("type", objectTypeDirectory); err != nil {
			return nil, err
		}
		if err := put("id", o.Directory.Id); err != nil {
			return nil, err
		}
		if err := put("history", o.Directory.History); err != nil {
			return nil, err
		}
	case o.Entry != nil:
		if err := put("type", objectTypeEntry); err != nil {
			return nil, err
		}
		if err := put("id", o.Entry.Id); err != nil {
			return nil, err
		}
		if err := put("time_created", o.Entry.TimeCreated); err != nil {
			return nil, err
		}
		if err := put("history", o.Entry.History); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("empty object")
	}
	return json.Marshal(doc)
}

func (o *Object) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	var typ string
	if err := json.Unmarshal(doc["type"], &typ); err != nil {
		return fmt.Errorf("object has no type: %w", err)
	}

	take := func(key string, v any) error {
		raw, ok := doc[key]
		if !ok {
			return fmt.Errorf("object is missing %q", key)
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return err
		}
		delete(doc, key)
		return nil
	}
	delete(doc, "type")

	*o = Object{}
	switch typ {
	case objectTypeDirectory:
		d := &Directory{}
		if err := take("id", &d.Id); err != nil {
			return err
		}
		if err := take("history", &d.History); err != nil {
			return err
		}
		sortDirectoryEvents(d.History)
		o.Directory = d
	case objectTypeEntry:
		e := &Entry{}
		if err := take("id", &e.Id); err != nil {
			return err
		}
		if err := take("time_created", &e.TimeCreated); err != nil {
			return err
		}
		if err := take("history", &e.History); err != nil {
			return err
		}
		sortEntryEvents(e.History)
		o.Entry = e
	default:
		return fmt.Errorf("unknown object type %q", typ)
	}

	if len(doc) > 0 {
		o.extra = doc
	}
	return nil
}
