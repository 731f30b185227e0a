/* Copyright 2025 Matsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package database provides the local store: an embedded SQLite database
// holding the gym catalogue and its sync bookkeeping.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	// sqlite driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a record does not exist locally
	ErrNotFound = errors.New("not found")
	// ErrDuplicateTimeSlot is returned when a time slot with the same time and
	// class type already exists under the schedule
	ErrDuplicateTimeSlot = errors.New("duplicate time slot")
)

// MergeEvent announces records that a committed sync batch wrote into the store
type MergeEvent struct {
	Collection model.Collection
	UUIDs      []string
}

type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan MergeEvent
}

func (h *hub) publish(events []MergeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range events {
		for _, ch := range h.subs {
			select {
			case ch <- e:
			default:
			}
		}
	}
}

// DB contains information about the current database connection. When Tx is
// set, statements run inside that transaction.
type DB struct {
	Conn *sql.DB
	Tx   *sql.Tx

	hub     *hub
	pending []MergeEvent
}

// Open opens the connection to the database at the given path
func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening db connection")
	}

	db := &DB{
		Conn: conn,
		hub:  &hub{subs: map[int]chan MergeEvent{}},
	}

	return db, nil
}

// Begin begins a transaction
func (d *DB) Begin() (*DB, error) {
	return d.BeginTx(context.Background(), nil)
}

// BeginTx begins a transaction with the given options
func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*DB, error) {
	if d.Tx != nil {
		return nil, errors.New("transaction already in progress")
	}

	tx, err := d.Conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &DB{Conn: d.Conn, Tx: tx, hub: d.hub}, nil
}

// BeginIsolated begins a serializable transaction for a sync batch. It is never
// the handle the application reads through.
func (d *DB) BeginIsolated(ctx context.Context) (*DB, error) {
	return d.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// Commit commits the transaction and publishes the merge events announced on it
func (d *DB) Commit() error {
	if d.Tx == nil {
		return errors.New("no transaction in progress")
	}

	if err := d.Tx.Commit(); err != nil {
		return err
	}

	d.hub.publish(d.pending)
	d.pending = nil

	return nil
}

// Rollback rolls back the transaction and discards announced merge events
func (d *DB) Rollback() error {
	if d.Tx == nil {
		return errors.New("no transaction in progress")
	}

	d.pending = nil

	return d.Tx.Rollback()
}

// Exec executes a sql query
func (d *DB) Exec(query string, values ...interface{}) (sql.Result, error) {
	if d.Tx != nil {
		return d.Tx.Exec(query, values...)
	}

	return d.Conn.Exec(query, values...)
}

// Query queries rows
func (d *DB) Query(query string, values ...interface{}) (*sql.Rows, error) {
	if d.Tx != nil {
		return d.Tx.Query(query, values...)
	}

	return d.Conn.Query(query, values...)
}

// QueryRow queries a row
func (d *DB) QueryRow(query string, values ...interface{}) *sql.Row {
	if d.Tx != nil {
		return d.Tx.QueryRow(query, values...)
	}

	return d.Conn.QueryRow(query, values...)
}

// Savepoint marks a point inside the current transaction that can be rolled back to
func (d *DB) Savepoint(name string) error {
	if d.Tx == nil {
		return errors.New("savepoint outside of a transaction")
	}

	_, err := d.Tx.Exec(fmt.Sprintf("SAVEPOINT %s", name))
	return errors.Wrapf(err, "creating savepoint %s", name)
}

// RollbackTo undoes the changes made since the savepoint and releases it
func (d *DB) RollbackTo(name string) error {
	if _, err := d.Tx.Exec(fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", name)); err != nil {
		return errors.Wrapf(err, "rolling back to savepoint %s", name)
	}

	return d.Release(name)
}

// Release releases the savepoint, keeping its changes in the transaction
func (d *DB) Release(name string) error {
	_, err := d.Tx.Exec(fmt.Sprintf("RELEASE SAVEPOINT %s", name))
	return errors.Wrapf(err, "releasing savepoint %s", name)
}

// Announce queues a merge event that is published when the transaction commits
func (d *DB) Announce(c model.Collection, uuids ...string) {
	if len(uuids) == 0 {
		return
	}

	e := MergeEvent{Collection: c, UUIDs: append([]string(nil), uuids...)}

	if d.Tx == nil {
		d.hub.publish([]MergeEvent{e})
		return
	}

	d.pending = append(d.pending, e)
}

// Subscribe returns a channel receiving a MergeEvent for every committed sync
// batch, and a function that cancels the subscription. Events are dropped for
// subscribers that do not keep up.
func (d *DB) Subscribe(buffer int) (<-chan MergeEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}

	ch := make(chan MergeEvent, buffer)

	d.hub.mu.Lock()
	id := d.hub.nextID
	d.hub.nextID++
	d.hub.subs[id] = ch
	d.hub.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.hub.mu.Lock()
			delete(d.hub.subs, id)
			d.hub.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// Close closes the connection to the database
func (d *DB) Close() error {
	if err := d.Conn.Close(); err != nil {
		return errors.Wrap(err, "closing database connection")
	}

	return nil
}
