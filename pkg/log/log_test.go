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

package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/matfinder/matsync/pkg/assert"
	"github.com/pkg/errors"
)

func captureOutput(t *testing.T, level string) *bytes.Buffer {
	var buf bytes.Buffer

	prev := SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(prev)
		SetLevel(LevelInfo)
	})

	return &buf
}

func TestWithFields(t *testing.T) {
	buf := captureOutput(t, LevelDebug)

	WithFields(Fields{
		"collection": "gyms",
		"err":        errors.New("boom"),
	}).Info("uploading")

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(errors.Wrap(err, "decoding log line"))
	}

	assert.Equal(t, got["level"], "info", "level mismatch")
	assert.Equal(t, got["msg"], "uploading", "message mismatch")
	assert.Equal(t, got["collection"], "gyms", "field mismatch")
	assert.Equal(t, got["err"], "boom", "errors should be rendered as strings")
}

func TestEntryWithFields(t *testing.T) {
	base := WithFields(Fields{"run": 1})
	child := base.WithFields(Fields{"collection": "reviews"})

	assert.Equal(t, len(base.Fields), 1, "base entry should not be mutated")
	assert.Equal(t, len(child.Fields), 2, "child entry should carry both fields")
}

func TestSetLevel(t *testing.T) {
	buf := captureOutput(t, LevelWarn)

	Info("hidden")
	Debug("hidden")
	Warn("shown")
	ErrorWrap(errors.New("cause"), "failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, len(lines), 2, "only warn and error entries should be written")
	assert.Equal(t, strings.Contains(lines[1], "failed: cause"), true, "wrapped message mismatch")
}
