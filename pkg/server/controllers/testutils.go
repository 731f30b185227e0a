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


package controllers

import (
	"net/http/httptest"
	"testing"

	"github.com/matfinder/matsync/pkg/server/app"
	"github.com/matfinder/matsync/pkg/server/testutils"
	"github.com/pkg/errors"
)

// MustNewServer starts a test server for the app. The server is closed when
// the test finishes.
func MustNewServer(t *testing.T, a *app.App) *httptest.Server {
	t.Helper()

	h, err := Handler(a)
	if err != nil {
		t.Fatal(errors.Wrap(err, "initializing router"))
	}

	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	return server
}

// NewTestServer starts a document server backed by an in-memory database that
// requires the given api key
func NewTestServer(t *testing.T, apiKey string) (*app.App, *httptest.Server) {
	t.Helper()

	a := app.NewTest(testutils.InitMemoryDB(t))
	a.APIKey = apiKey

	return &a, MustNewServer(t, &a)
}
