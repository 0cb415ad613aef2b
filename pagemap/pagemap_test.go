package pagemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n1ght-hunter/rtmalloc/metadata"
	"github.com/n1ght-hunter/rtmalloc/platform"
	"github.com/n1ght-hunter/rtmalloc/span"
)

func newTestMap(t *testing.T) *Map {
	adapter := platform.NewFakeAdapter(4096)
	m, err := New(metadata.New(adapter), adapter.PageSize())
	require.NoError(t, err)
	return m
}

func TestLookupMissIsNil(t *testing.T) {
	m := newTestMap(t)
	assert.Nil(t, m.Lookup(12345))
}

func TestInsertThenLookup(t *testing.T) {
	m := newTestMap(t)
	sp := &span.Span{StartPage: 10, PageCount: 3}
	require.NoError(t, m.Insert(10, 3, sp))

	for p := int64(10); p < 13; p++ {
		assert.Same(t, sp, m.Lookup(p))
	}
	assert.Nil(t, m.Lookup(9))
	assert.Nil(t, m.Lookup(13))
}

func TestRemoveClearsEntries(t *testing.T) {
	m := newTestMap(t)
	sp := &span.Span{StartPage: 5, PageCount: 2}
	require.NoError(t, m.Insert(5, 2, sp))
	require.NoError(t, m.Remove(5, 2))
	assert.Nil(t, m.Lookup(5))
	assert.Nil(t, m.Lookup(6))
}

func TestSparseHighPageNumbers(t *testing.T) {
	m := newTestMap(t)
	sp1 := &span.Span{StartPage: 1 << 28, PageCount: 1}
	sp2 := &span.Span{StartPage: 1 << 5, PageCount: 1}
	require.NoError(t, m.Insert(sp1.StartPage, 1, sp1))
	require.NoError(t, m.Insert(sp2.StartPage, 1, sp2))

	assert.Same(t, sp1, m.Lookup(1<<28))
	assert.Same(t, sp2, m.Lookup(1<<5))
}
