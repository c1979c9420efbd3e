package fortress

import (
	"fmt"
	"sort"
)

// DirectoryEvent is one append-only history record of a directory. Exactly
// one of Rename, Add, or Remove is set.
type DirectoryEvent struct {
	Time   int64   `json:"time"`
	Rename *string `json:"rename,omitempty"`
	Add    *ID     `json:"add,omitempty"`
	Remove *ID     `json:"remove,omitempty"`
}

func renameEvent(time int64, name string) DirectoryEvent {
	return DirectoryEvent{Time: time, Rename: &name}
}

func addEvent(time int64, child ID) DirectoryEvent {
	return DirectoryEvent{Time: time, Add: &child}
}

func removeEvent(time int64, child ID) DirectoryEvent {
	return DirectoryEvent{Time: time, Remove: &child}
}

// kind orders actions within one timestamp: Rename before Add before Remove.
func (e DirectoryEvent) kind() int {
	switch {
	case e.Rename != nil:
		return 0
	case e.Add != nil:
		return 1
	default:
		return 2
	}
}

// arg is the action argument used as the final ordering key.
func (e DirectoryEvent) arg() string {
	switch {
	case e.Rename != nil:
		return *e.Rename
	case e.Add != nil:
		return e.Add.String()
	default:
		return e.Remove.String()
	}
}

func (e DirectoryEvent) equal(other DirectoryEvent) bool {
	return e.Time == other.Time && e.kind() == other.kind() && e.arg() == other.arg()
}

// less is the canonical event order: time ascending, then action kind, then
// action argument. Every replica sorting the same event set this way arrives
// at the same sequence.
func (e DirectoryEvent) less(other DirectoryEvent) bool {
	if e.Time != other.Time {
		return e.Time < other.Time
	}
	if e.kind() != other.kind() {
		return e.kind() < other.kind()
	}
	return e.arg() < other.arg()
}

// Directory is a named collection of references to Entries and Directories.
// State is always derived from the full history; the history itself is never
// rewritten or shortened.
type Directory struct {
	Id      ID               `json:"id"`
	History []DirectoryEvent `json:"history"`
}

// NewDirectory creates an empty directory with a fresh random ID.
func NewDirectory() *Directory {
	return &Directory{Id: NewID()}
}

// NewRootDirectory creates the well-known root directory.
func NewRootDirectory() *Directory {
	return &Directory{Id: RootID}
}

func (d *Directory) appendEvent(e DirectoryEvent) {
	d.History = append(d.History, e)
	sortDirectoryEvents(d.History)
}

func (d *Directory) rename(time int64, name string) {
	d.appendEvent(renameEvent(time, name))
}

func (d *Directory) addChild(time int64, child ID) {
	d.appendEvent(addEvent(time, child))
}

func (d *Directory) removeChild(time int64, child ID) {
	d.appendEvent(removeEvent(time, child))
}

// Name returns the directory's current name, which is the argument of the
// last Rename in history order, and false if it was never renamed.
func (d *Directory) Name() (string, bool) {
	name, ok := "", false
	for _, e := range d.History {
		if e.Rename != nil {
			name, ok = *e.Rename, true
		}
	}
	return name, ok
}

// Children materializes the current child set by folding Add and Remove
// events in history order. Add is idempotent and removing an absent ID is a
// no-op, so any well-ordered event set folds cleanly.
func (d *Directory) Children() map[ID]struct{} {
	children := make(map[ID]struct{})
	for _, e := range d.History {
		switch {
		case e.Add != nil:
			children[*e.Add] = struct{}{}
		case e.Remove != nil:
			delete(children, *e.Remove)
		}
	}
	return children
}

// HasChild reports whether id is currently in the directory.
func (d *Directory) HasChild(id ID) bool {
	_, ok := d.Children()[id]
	return ok
}

// ChildIds returns the materialized children in ID order.
func (d *Directory) ChildIds() []ID {
	children := d.Children()
	ids := make([]ID, 0, len(children))
	for id := range children {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// Clone returns a deep copy. Handing out clones keeps the history
// append-only: callers cannot mutate the database's copy.
func (d *Directory) Clone() *Directory {
	return &Directory{Id: d.Id, History: append([]DirectoryEvent(nil), d.History...)}
}

// Merge unions the histories of two same-ID directories. Exact duplicates
// collapse to one event and the result is in canonical order, so merging is
// idempotent, commutative, and associative.
func (d *Directory) Merge(other *Directory) (*Directory, error) {
	if d.Id != other.Id {
		return nil, fmt.Errorf("%w: cannot merge directories %s and %s", ErrInvalidInput, d.Id, other.Id)
	}
	merged := append(append([]DirectoryEvent(nil), d.History...), other.History...)
	sortDirectoryEvents(merged)
	return &Directory{Id: d.Id, History: dedupeDirectoryEvents(merged)}, nil
}

func sortDirectoryEvents(events []DirectoryEvent) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].less(events[j]) })
}

// dedupeDirectoryEvents removes adjacent exact duplicates from a sorted
// event list.
func dedupeDirectoryEvents(events []DirectoryEvent) []DirectoryEvent {
	out := events[:0]
	for _, e := range events {
		if len(out) == 0 || !out[len(out)-1].equal(e) {
			out = append(out, e)
		}
	}
	return out
}
