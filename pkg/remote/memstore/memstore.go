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

// Package memstore provides an in-memory remote.Store. It records every call
// and can be made to fail, which makes it suitable for tests and offline runs.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/matfinder/matsync/pkg/clock"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/matfinder/matsync/pkg/remote"
	"github.com/pkg/errors"
)

// ErrUnavailable is returned by a store that has been taken offline
var ErrUnavailable = errors.New("remote store unavailable")

// Op names a store operation for counting and failure injection
type Op string

const (
	// OpList is Store.List
	OpList Op = "list"
	// OpGet is Store.Get
	OpGet Op = "get"
	// OpExists is Store.Exists
	OpExists Op = "exists"
	// OpPut is Store.Put
	OpPut Op = "put"
	// OpDelete is Store.Delete
	OpDelete Op = "delete"
	// OpPing is Store.Ping
	OpPing Op = "ping"
)

type failure struct {
	op         Op
	collection model.Collection
	id         string
}

// Store is a thread-safe in-memory document store
type Store struct {
	mu       sync.Mutex
	clock    clock.Clock
	docs     map[model.Collection]map[string]remote.Document
	calls    map[Op]int
	failures map[failure]error
	offline  bool
}

// New returns an empty store stamping versions with the given clock
func New(c clock.Clock) *Store {
	return &Store{
		clock:    c,
		docs:     map[model.Collection]map[string]remote.Document{},
		calls:    map[Op]int{},
		failures: map[failure]error{},
	}
}

func (s *Store) begin(op Op, c model.Collection, id string) error {
	s.calls[op]++

	if s.offline {
		return ErrUnavailable
	}
	if err, ok := s.failures[failure{op, c, id}]; ok {
		return err
	}
	if err, ok := s.failures[failure{op, c, ""}]; ok {
		return err
	}

	return nil
}

// List implements remote.Store
func (s *Store) List(ctx context.Context, c model.Collection) ([]remote.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(OpList, c, ""); err != nil {
		return nil, err
	}

	ret := []remote.Entry{}
	for _, d := range s.docs[c] {
		ret = append(ret, d.Entry)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })

	return ret, nil
}

// Get implements remote.Store
func (s *Store) Get(ctx context.Context, c model.Collection, id string) (remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(OpGet, c, id); err != nil {
		return remote.Document{}, err
	}

	d, ok := s.docs[c][id]
	if !ok {
		return remote.Document{}, errors.Wrapf(remote.ErrNotFound, "%s/%s", c, id)
	}

	return d, nil
}

// Exists implements remote.Store
func (s *Store) Exists(ctx context.Context, c model.Collection, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(OpExists, c, id); err != nil {
		return false, err
	}

	_, ok := s.docs[c][id]
	return ok, nil
}

// Put implements remote.Store
func (s *Store) Put(ctx context.Context, c model.Collection, id string, data []byte) (remote.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(OpPut, c, id); err != nil {
		return remote.Entry{}, err
	}

	entry := remote.Entry{ID: id, UpdatedAt: s.clock.Now()}
	s.put(c, remote.Document{Entry: entry, Data: append([]byte(nil), data...)})

	return entry, nil
}

func (s *Store) put(c model.Collection, d remote.Document) {
	if s.docs[c] == nil {
		s.docs[c] = map[string]remote.Document{}
	}

	s.docs[c][d.ID] = d
}

// Delete implements remote.Store
func (s *Store) Delete(ctx context.Context, c model.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(OpDelete, c, id); err != nil {
		return err
	}

	if _, ok := s.docs[c][id]; !ok {
		return errors.Wrapf(remote.ErrNotFound, "%s/%s", c, id)
	}
	delete(s.docs[c], id)

	return nil
}

// Ping implements remote.Prober
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.begin(OpPing, "", "")
}

// Seed stores a document directly, bypassing call counting and failures
func (s *Store) Seed(c model.Collection, d remote.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(c, d)
}

// Remove deletes a document directly, bypassing call counting and failures
func (s *Store) Remove(c model.Collection, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs[c], id)
}

// Lookup returns a document directly, bypassing call counting and failures
func (s *Store) Lookup(c model.Collection, id string) (remote.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[c][id]
	return d, ok
}

// Len returns the number of documents in the collection
func (s *Store) Len(c model.Collection) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.docs[c])
}

// SetOffline makes every operation fail with ErrUnavailable
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offline = offline
}

// FailOn makes the operation fail with err. An empty id fails the operation
// for every document of the collection.
func (s *Store) FailOn(op Op, c model.Collection, id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[failure{op, c, id}] = err
}

// Calls returns the number of times the operation was invoked
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[op]
}

// TotalCalls returns the number of store operations invoked, pings excluded
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for op, count := range s.calls {
		if op != OpPing {
			n += count
		}
	}

	return n
}

// ResetCalls zeroes the call counters
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = map[Op]int{}
}
