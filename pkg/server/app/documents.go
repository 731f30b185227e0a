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

package app

import (
	"encoding/json"
	"strings"

	"github.com/matfinder/matsync/pkg/model"
	"github.com/matfinder/matsync/pkg/server/database"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrInvalidDocument is returned for a malformed document body or id
	ErrInvalidDocument = errors.New("invalid document")
	// ErrUnknownCollection is returned for a collection that is not served
	ErrUnknownCollection = errors.New("unknown collection")
)

func checkCollection(collection string) error {
	if _, err := model.ParseCollection(collection); err != nil {
		return errors.Wrapf(ErrUnknownCollection, "'%s'", collection)
	}

	return nil
}

func checkDocument(id string, data []byte) error {
	if strings.TrimSpace(id) == "" {
		return errors.Wrap(ErrInvalidDocument, "empty id")
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrap(ErrInvalidDocument, "body must be a JSON object")
	}

	return nil
}

// ListDocuments returns the documents in the collection without their bodies, ordered by id
func (a *App) ListDocuments(collection string) ([]database.Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	var docs []database.Document
	if err := a.DB.Select("id", "doc_id", "collection", "updated_at").
		Where("collection = ?", collection).
		Order("doc_id").
		Find(&docs).Error; err != nil {
		return nil, errors.Wrap(err, "finding documents")
	}

	return docs, nil
}

func findDocument(tx *gorm.DB, collection, id string) (database.Document, error) {
	var doc database.Document

	err := tx.Where("collection = ? AND doc_id = ?", collection, id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return doc, errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	if err != nil {
		return doc, errors.Wrap(err, "finding document")
	}

	return doc, nil
}

// GetDocument returns the document
func (a *App) GetDocument(collection, id string) (database.Document, error) {
	if err := checkCollection(collection); err != nil {
		return database.Document{}, err
	}

	return findDocument(a.DB, collection, id)
}

// PutDocument creates or replaces the document and stamps its new version
func (a *App) PutDocument(collection, id string, data []byte) (database.Document, error) {
	if err := checkCollection(collection); err != nil {
		return database.Document{}, err
	}
	if err := checkDocument(id, data); err != nil {
		return database.Document{}, err
	}

	now := a.Clock.Now().UTC()

	var doc database.Document
	err := a.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := findDocument(tx, collection, id)
		if err != nil && errors.Cause(err) != ErrNotFound {
			return err
		}

		if err == nil {
			existing.Data = string(data)
			existing.UpdatedAt = now
			if err := tx.Save(&existing).Error; err != nil {
				return errors.Wrap(err, "updating document")
			}

			doc = existing
			return nil
		}

		doc = database.Document{
			Collection: collection,
			DocID:      id,
			Data:       string(data),
		}
		doc.UpdatedAt = now
		if err := tx.Create(&doc).Error; err != nil {
			return errors.Wrap(err, "inserting document")
		}

		return nil
	})
	if err != nil {
		return database.Document{}, err
	}

	return doc, nil
}

// DeleteDocument deletes the document
func (a *App) DeleteDocument(collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}

	res := a.DB.Where("collection = ? AND doc_id = ?", collection, id).Delete(&database.Document{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting document")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}

	return nil
}
