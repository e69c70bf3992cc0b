// SPDX-License-Identifier: GPL-3.0-or-later

package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryListPushAndDrainPreservesOrder(t *testing.T) {
	var l queryList
	assert.True(t, l.empty())

	a, b, c := &Query{ID: 1}, &Query{ID: 2}, &Query{ID: 3}
	l.push(a)
	l.push(b)
	l.push(c)
	assert.False(t, l.empty())
	assert.Equal(t, 3, l.n)

	drained := l.drain()
	require.Len(t, drained, 3)
	assert.Equal(t, []uint16{1, 2, 3}, []uint16{drained[0].ID, drained[1].ID, drained[2].ID})
	assert.True(t, l.empty())
}

func TestQueryListRemoveByID(t *testing.T) {
	var l queryList
	a, b, c := &Query{ID: 1}, &Query{ID: 2}, &Query{ID: 3}
	l.push(a)
	l.push(b)
	l.push(c)

	got := l.removeByID(2)
	require.NotNil(t, got)
	assert.Equal(t, uint16(2), got.ID)
	assert.Equal(t, 2, l.n)

	assert.Nil(t, l.removeByID(2))

	rest := l.drain()
	require.Len(t, rest, 2)
	assert.Equal(t, uint16(1), rest[0].ID)
	assert.Equal(t, uint16(3), rest[1].ID)
}

func TestQueryListRemoveByIDHeadAndTail(t *testing.T) {
	var l queryList
	a, b := &Query{ID: 1}, &Query{ID: 2}
	l.push(a)
	l.push(b)

	require.NotNil(t, l.removeByID(1))
	require.NotNil(t, l.removeByID(2))
	assert.True(t, l.empty())
	assert.Nil(t, l.head)
	assert.Nil(t, l.tail)
}

func TestQueryListPopFront(t *testing.T) {
	var l queryList
	assert.Nil(t, l.popFront())

	a, b := &Query{ID: 1}, &Query{ID: 2}
	l.push(a)
	l.push(b)

	got := l.popFront()
	require.NotNil(t, got)
	assert.Equal(t, uint16(1), got.ID)
	assert.Equal(t, 1, l.n)

	got = l.popFront()
	require.NotNil(t, got)
	assert.Equal(t, uint16(2), got.ID)
	assert.True(t, l.empty())
}
