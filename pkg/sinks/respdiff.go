// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/src/output/respdiff.c's _receive and
// output_respdiff_commit (the three-store queries/answers/meta shape,
// the per-answer msec(4)||dnslen(2)||dns(dnslen) encoding with a
// 0xFFFFFFFF/0 sentinel for a missing answer, and the fixed meta keys)
// and jroosing-HydraDNS/internal/database's embedded-migration
// sqlite+golang-migrate wiring (db.go's Open/runMigrations shape).

package sinks

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/xid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const respdiffMetaVersion = "2018-05-21"

// missingAnswerSentinel marks a resolver that produced no answer in
// the answers blob's msec field, per the original's 0xFFFFFFFF/0 pair.
const missingAnswerSentinel = 0xFFFFFFFF

// RespdiffSink pairs a query with up to two resolvers' answers
// (original and receiver) and persists them for offline diffing,
// backed by an embedded SQLite database rather than the original's
// LMDB environment.
type RespdiffSink struct {
	db   *sql.DB
	next atomic.Uint32
}

// OpenRespdiffSink opens (creating if absent) a SQLite database at
// path and migrates it to the current schema.
func OpenRespdiffSink(path string) (*RespdiffSink, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sinks: opening respdiff database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateRespdiff(db); err != nil {
		db.Close()
		return nil, err
	}
	return &RespdiffSink{db: db}, nil
}

func migrateRespdiff(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("sinks: opening migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sinks: creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("sinks: creating migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("sinks: running respdiff migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *RespdiffSink) Close() error {
	return s.db.Close()
}

// Record stores one paired-response triple: query is the raw DNS
// request; original and receiver are each resolver's answer (nil if
// that resolver never answered) along with the elapsed time since the
// query was sent, spec §3's supplemented real elapsed-time measurement
// in place of the original's hardcoded msec=1.
func (s *RespdiffSink) Record(ctx context.Context, query, original, receiver []byte, origElapsed, recvElapsed time.Duration) error {
	id := s.next.Add(1) - 1
	corrID := xid.New().String()

	answers := encodeAnswerPair(original, origElapsed, receiver, recvElapsed)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sinks: beginning respdiff transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO queries (id, payload, xid) VALUES (?, ?, ?)`, id, query, corrID); err != nil {
		return fmt.Errorf("sinks: inserting query %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO answers (id, payload) VALUES (?, ?)`, id, answers); err != nil {
		return fmt.Errorf("sinks: inserting answer %d: %w", id, err)
	}
	return tx.Commit()
}

// encodeAnswerPair builds the two (msec(4)||dnslen(2)||dns(dnslen))
// entries the original always writes back to back, substituting the
// missing-answer sentinel for either resolver that produced nothing.
func encodeAnswerPair(original []byte, origElapsed time.Duration, receiver []byte, recvElapsed time.Duration) []byte {
	var buf []byte
	buf = appendAnswerEntry(buf, original, origElapsed)
	buf = appendAnswerEntry(buf, receiver, recvElapsed)
	return buf
}

func appendAnswerEntry(buf []byte, answer []byte, elapsed time.Duration) []byte {
	var hdr [6]byte
	if answer == nil {
		binary.LittleEndian.PutUint32(hdr[0:4], missingAnswerSentinel)
		binary.LittleEndian.PutUint16(hdr[4:6], 0)
		return append(buf, hdr[:]...)
	}
	ms := uint32(elapsed.Milliseconds())
	binary.LittleEndian.PutUint32(hdr[0:4], ms)
	binary.LittleEndian.PutUint16(hdr[4:6], uint16(len(answer)))
	buf = append(buf, hdr[:]...)
	return append(buf, answer...)
}

// Commit writes the meta store's fixed keys, matching
// output_respdiff_commit's {version, servers=2, name0, name1,
// start_time, end_time}.
func (s *RespdiffSink) Commit(ctx context.Context, origName, recvName string, start, end time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sinks: beginning respdiff meta commit: %w", err)
	}
	defer tx.Rollback()

	meta := map[string]string{
		"version":    respdiffMetaVersion,
		"servers":    "2",
		"name0":      origName,
		"name1":      recvName,
		"start_time": fmt.Sprintf("%d", start.Unix()),
		"end_time":   fmt.Sprintf("%d", end.Unix()),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("sinks: writing meta %q: %w", k, err)
		}
	}
	return tx.Commit()
}
