package fortress

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Well-known entry data keys. The data map is open; unknown keys ride along
// untouched so newer clients can add fields.
const (
	KeyTitle    = "title"
	KeyUsername = "username"
	KeyPassword = "password"
	KeyURL      = "url"
	KeyNotes    = "notes"
)

// EntryEvent is one append-only history record of an entry. Each key in
// Data sets the key in the materialized state; a nil value removes it.
type EntryEvent struct {
	Time int64              `json:"time"`
	Data map[string]*string `json:"data"`
}

// dataKey is the canonical JSON of the data map, used for duplicate
// detection and as the deterministic tiebreak between distinct events that
// share a timestamp.
func (e EntryEvent) dataKey() string {
	b, err := json.Marshal(e.Data)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func (e EntryEvent) equal(other EntryEvent) bool {
	return e.Time == other.Time && e.dataKey() == other.dataKey()
}

func (e EntryEvent) less(other EntryEvent) bool {
	if e.Time != other.Time {
		return e.Time < other.Time
	}
	return e.dataKey() < other.dataKey()
}

// Entry is a versioned record of key/value fields, such as a site login.
type Entry struct {
	Id          ID           `json:"id"`
	TimeCreated int64        `json:"time_created"`
	History     []EntryEvent `json:"history"`
}

// NewEntry creates an empty entry with a fresh random ID.
func NewEntry(timeCreated int64) *Entry {
	return &Entry{Id: NewID(), TimeCreated: timeCreated}
}

func (e *Entry) edit(time int64, data map[string]*string) {
	copied := make(map[string]*string, len(data))
	for k, v := range data {
		copied[k] = v
	}
	e.History = append(e.History, EntryEvent{Time: time, Data: copied})
	sortEntryEvents(e.History)
}

// State materializes the entry by folding events in history order.
func (e *Entry) State() map[string]string {
	state := make(map[string]string)
	for _, ev := range e.History {
		for k, v := range ev.Data {
			if v == nil {
				delete(state, k)
			} else {
				state[k] = *v
			}
		}
	}
	return state
}

// Get returns the current value of one field.
func (e *Entry) Get(key string) (string, bool) {
	v, ok := e.State()[key]
	return v, ok
}

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	history := make([]EntryEvent, len(e.History))
	for i, ev := range e.History {
		data := make(map[string]*string, len(ev.Data))
		for k, v := range ev.Data {
			data[k] = v
		}
		history[i] = EntryEvent{Time: ev.Time, Data: data}
	}
	return &Entry{Id: e.Id, TimeCreated: e.TimeCreated, History: history}
}

// Merge unions the histories of two same-ID entries, collapsing exact
// duplicates. The earlier TimeCreated wins so both replicas converge on it.
func (e *Entry) Merge(other *Entry) (*Entry, error) {
	if e.Id != other.Id {
		return nil, fmt.Errorf("%w: cannot merge entries %s and %s", ErrInvalidInput, e.Id, other.Id)
	}
	merged := append(append([]EntryEvent(nil), e.History...), other.History...)
	sortEntryEvents(merged)

	timeCreated := e.TimeCreated
	if other.TimeCreated < timeCreated {
		timeCreated = other.TimeCreated
	}
	return &Entry{Id: e.Id, TimeCreated: timeCreated, History: dedupeEntryEvents(merged)}, nil
}

func sortEntryEvents(events []EntryEvent) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].less(events[j]) })
}

func dedupeEntryEvents(events []EntryEvent) []EntryEvent {
	out := events[:0]
	for _, e := range events {
		if len(out) == 0 || !out[len(out)-1].equal(e) {
			out = append(out, e)
		}
	}
	return out
}
