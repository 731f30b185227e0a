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

package presenters

import (
	"encoding/json"
	"time"

	"github.com/matfinder/matsync/pkg/remote"
	"github.com/matfinder/matsync/pkg/server/database"
)

// FormatTS truncates the version to the microsecond, the resolution the
// document table keeps, so that listed and stored versions compare equal
func FormatTS(ts time.Time) time.Time {
	return ts.UTC().Round(time.Microsecond)
}

// PresentEntry presents the version of a document
func PresentEntry(doc database.Document) remote.Entry {
	return remote.Entry{
		ID:        doc.DocID,
		UpdatedAt: FormatTS(doc.UpdatedAt),
	}
}

// PresentEntries presents the versions of documents
func PresentEntries(docs []database.Document) []remote.Entry {
	ret := []remote.Entry{}

	for _, doc := range docs {
		ret = append(ret, PresentEntry(doc))
	}

	return ret
}

// PresentDocument presents a document with its body
func PresentDocument(doc database.Document) remote.Document {
	return remote.Document{
		Entry: PresentEntry(doc),
		Data:  json.RawMessage(doc.Data),
	}
}
