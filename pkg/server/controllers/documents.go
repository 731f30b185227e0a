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
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/matfinder/matsync/pkg/server/app"
	mw "github.com/matfinder/matsync/pkg/server/middleware"
	"github.com/matfinder/matsync/pkg/server/presenters"
	"github.com/pkg/errors"
)

// maxDocumentSize is the largest document body accepted
const maxDocumentSize = 1 << 20

// NewDocuments creates a new Documents controller.
func NewDocuments(app *app.App) *Documents {
	return &Documents{app: app}
}

// Documents is a controller for the document collections
type Documents struct {
	app *app.App
}

// ListResp is the response of the list endpoint
type ListResp struct {
	Documents interface{} `json:"documents"`
}

func handleAppError(w http.ResponseWriter, msg string, err error) {
	switch errors.Cause(err) {
	case app.ErrNotFound:
		mw.RespondNotFound(w)
	case app.ErrUnknownCollection, app.ErrInvalidDocument:
		mw.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		mw.DoError(w, msg, err, http.StatusInternalServerError)
	}
}

// Index handles GET /api/v1/collections/{collection}
func (d *Documents) Index(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]

	docs, err := d.app.ListDocuments(collection)
	if err != nil {
		handleAppError(w, "listing documents", err)
		return
	}

	mw.RespondJSON(w, http.StatusOK, ListResp{Documents: presenters.PresentEntries(docs)})
}

// Show handles GET /api/v1/collections/{collection}/{id}
func (d *Documents) Show(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	doc, err := d.app.GetDocument(vars["collection"], vars["id"])
	if err != nil {
		handleAppError(w, "getting document", err)
		return
	}

	mw.RespondJSON(w, http.StatusOK, presenters.PresentDocument(doc))
}

// Head handles HEAD /api/v1/collections/{collection}/{id}
func (d *Documents) Head(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	_, err := d.app.GetDocument(vars["collection"], vars["id"])
	switch errors.Cause(err) {
	case nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	case app.ErrNotFound:
		w.WriteHeader(http.StatusNotFound)
	case app.ErrUnknownCollection:
		w.WriteHeader(http.StatusBadRequest)
	default:
		mw.DoError(w, "checking document", err, http.StatusInternalServerError)
	}
}

// Put handles PUT /api/v1/collections/{collection}/{id}
func (d *Documents) Put(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize+1))
	if err != nil {
		mw.DoError(w, "reading body", err, http.StatusBadRequest)
		return
	}
	if len(body) > maxDocumentSize {
		mw.RespondError(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	}

	doc, err := d.app.PutDocument(vars["collection"], vars["id"], body)
	if err != nil {
		handleAppError(w, "putting document", err)
		return
	}

	mw.RespondJSON(w, http.StatusOK, presenters.PresentEntry(doc))
}

// Delete handles DELETE /api/v1/collections/{collection}/{id}
func (d *Documents) Delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := d.app.DeleteDocument(vars["collection"], vars["id"]); err != nil {
		handleAppError(w, "deleting document", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
