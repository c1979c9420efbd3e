package fortress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryMaterialization(t *testing.T) {
	d := NewDirectory()
	id1, id2 := NewID(), NewID()

	_, ok := d.Name()
	assert.False(t, ok)

	d.rename(10, "Accounts")
	d.addChild(20, id1)
	d.addChild(30, id2)
	d.removeChild(40, id1)
	d.rename(50, "Work")

	name, ok := d.Name()
	require.True(t, ok)
	assert.Equal(t, "Work", name)

	children := d.Children()
	assert.Len(t, children, 1)
	assert.True(t, d.HasChild(id2))
	assert.False(t, d.HasChild(id1))
}

func TestDirectoryAddIdempotentRemoveAbsent(t *testing.T) {
	d := NewDirectory()
	id := NewID()

	// Removing an ID that was never added is a no-op.
	d.removeChild(5, NewID())

	d.addChild(10, id)
	d.addChild(20, id)
	assert.Len(t, d.Children(), 1)

	d.removeChild(30, id)
	assert.Empty(t, d.Children())
}

func TestDirectoryEventOrderDeterministic(t *testing.T) {
	// Two renames at the same timestamp materialize to the same name no
	// matter which replica appended first.
	a := NewRootDirectory()
	b := NewRootDirectory()

	a.rename(100, "D2")
	a.rename(100, "D3")
	b.rename(100, "D3")
	b.rename(100, "D2")

	nameA, _ := a.Name()
	nameB, _ := b.Name()
	assert.Equal(t, nameA, nameB)
}

func TestDirectoryMerge(t *testing.T) {
	base := NewDirectory()
	x, y := NewID(), NewID()
	base.addChild(10, x)

	a := base.Clone()
	b := base.Clone()
	a.rename(100, "D2")
	b.rename(200, "D3")
	b.addChild(150, y)

	ab, err := a.Merge(b)
	require.NoError(t, err)
	ba, err := b.Merge(a)
	require.NoError(t, err)

	// Commutative.
	assert.Equal(t, ab, ba)

	// Idempotent.
	aa, err := ab.Merge(ab)
	require.NoError(t, err)
	assert.Equal(t, ab, aa)

	// The later rename wins; both children present.
	name, _ := ab.Name()
	assert.Equal(t, "D3", name)
	assert.True(t, ab.HasChild(x))
	assert.True(t, ab.HasChild(y))

	// Shared history is not duplicated.
	assert.Len(t, ab.History, 4)
}

func TestDirectoryMergeAssociative(t *testing.T) {
	base := NewDirectory()
	a, b, c := base.Clone(), base.Clone(), base.Clone()
	a.addChild(10, NewID())
	b.addChild(20, NewID())
	b.rename(25, "B")
	c.removeChild(30, NewID())
	c.rename(25, "C")

	merge := func(x, y *Directory) *Directory {
		m, err := x.Merge(y)
		require.NoError(t, err)
		return m
	}

	left := merge(merge(a, b), c)
	right := merge(a, merge(b, c))
	assert.Equal(t, left, right)
}

func TestDirectoryMergeDifferentIds(t *testing.T) {
	_, err := NewDirectory().Merge(NewDirectory())
	assert.ErrorIs(t, err, ErrInvalidInput)
}
