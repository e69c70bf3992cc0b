// SPDX-License-Identifier: GPL-3.0-or-later

package sinks

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRespdiffSink(t *testing.T) *RespdiffSink {
	t.Helper()
	path := filepath.Join(t.TempDir(), "respdiff.sqlite")
	s, err := OpenRespdiffSink(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRespdiffSinkRunsMigrations(t *testing.T) {
	s := openTestRespdiffSink(t)

	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='queries'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "queries", name)
}

func TestRecordStoresQueryAndBothAnswers(t *testing.T) {
	s := openTestRespdiffSink(t)
	ctx := context.Background()

	query := []byte{0xAB, 0xCD}
	original := []byte{1, 2, 3}
	receiver := []byte{4, 5}

	require.NoError(t, s.Record(ctx, query, original, receiver, 5*time.Millisecond, 7*time.Millisecond))

	var storedQuery []byte
	var xid string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT payload, xid FROM queries WHERE id = 0`).Scan(&storedQuery, &xid))
	assert.Equal(t, query, storedQuery)
	assert.NotEmpty(t, xid)

	var answers []byte
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT payload FROM answers WHERE id = 0`).Scan(&answers))

	require.Equal(t, 6+len(original)+6+len(receiver), len(answers))
	assert.EqualValues(t, 5, binary.LittleEndian.Uint32(answers[0:4]))
	assert.EqualValues(t, len(original), binary.LittleEndian.Uint16(answers[4:6]))
	assert.Equal(t, original, answers[6:6+len(original)])

	rest := answers[6+len(original):]
	assert.EqualValues(t, 7, binary.LittleEndian.Uint32(rest[0:4]))
	assert.EqualValues(t, len(receiver), binary.LittleEndian.Uint16(rest[4:6]))
	assert.Equal(t, receiver, rest[6:6+len(receiver)])
}

func TestRecordEncodesMissingAnswerAsSentinel(t *testing.T) {
	s := openTestRespdiffSink(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, []byte{1}, nil, []byte{9}, 0, 3*time.Millisecond))

	var answers []byte
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT payload FROM answers WHERE id = 0`).Scan(&answers))

	assert.EqualValues(t, missingAnswerSentinel, binary.LittleEndian.Uint32(answers[0:4]))
	assert.EqualValues(t, 0, binary.LittleEndian.Uint16(answers[4:6]))
}

func TestRecordAssignsMonotonicIDs(t *testing.T) {
	s := openTestRespdiffSink(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, []byte{1}, []byte{1}, nil, 0, 0))
	require.NoError(t, s.Record(ctx, []byte{2}, []byte{2}, nil, 0, 0))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queries WHERE id IN (0, 1)`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestCommitWritesFixedMetaKeys(t *testing.T) {
	s := openTestRespdiffSink(t)
	ctx := context.Background()
	start := time.Unix(1000, 0)
	end := time.Unix(2000, 0)

	require.NoError(t, s.Commit(ctx, "resolverA", "resolverB", start, end))

	expect := map[string]string{
		"version":    respdiffMetaVersion,
		"servers":    "2",
		"name0":      "resolverA",
		"name1":      "resolverB",
		"start_time": "1000",
		"end_time":   "2000",
	}
	for k, want := range expect {
		var got string
		err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, k).Scan(&got)
		require.NoError(t, err, "key %q", k)
		assert.Equal(t, want, got, "key %q", k)
	}
}
