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

package database

import (
	"time"
)

// Model is the base model definition
type Model struct {
	ID        int       `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime:false;index"`
}

// Document is a stored remote document. UpdatedAt is its version and is set
// by the app from its clock.
type Document struct {
	Model
	Collection string `json:"collection" gorm:"uniqueIndex:idx_documents_collection_doc_id;type:text;not null"`
	DocID      string `json:"id" gorm:"column:doc_id;uniqueIndex:idx_documents_collection_doc_id;type:text;not null"`
	Data       string `json:"-" gorm:"type:text;not null"`
}
