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

// Package remote defines the contract of the remote document store the local
// store is reconciled against.
package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matfinder/matsync/pkg/model"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a document does not exist in the remote store
var ErrNotFound = errors.New("document not found")

// Entry identifies a remote document and its version
type Entry struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is a remote document with its JSON body
type Document struct {
	Entry
	Data json.RawMessage `json:"data"`
}

// Store is a remote document store partitioned into collections. Document ids
// are passed through as given; callers normalize them.
type Store interface {
	// List returns the entries of every document in the collection
	List(ctx context.Context, c model.Collection) ([]Entry, error)
	// Get returns the document, or ErrNotFound
	Get(ctx context.Context, c model.Collection, id string) (Document, error)
	// Exists reports whether the document exists
	Exists(ctx context.Context, c model.Collection, id string) (bool, error)
	// Put creates or replaces the document and returns its new version
	Put(ctx context.Context, c model.Collection, id string, data []byte) (Entry, error)
	// Delete removes the document, or returns ErrNotFound
	Delete(ctx context.Context, c model.Collection, id string) error
}

// Prober checks whether the remote store is reachable
type Prober interface {
	Ping(ctx context.Context) error
}

// ProberFunc adapts a function to the Prober interface
type ProberFunc func(ctx context.Context) error

// Ping calls f(ctx)
func (f ProberFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// IsNotFound reports whether err is caused by a missing document
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}
