// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commitstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Memory_SaveGetDelete(t *testing.T) {
	store := New(ModeMemory, "")

	entry := Entry{Payload: []byte(`{"scores":[1000000]}`), Created: time.Now()}
	require.NoError(t, store.Save("abc123", entry))

	got, ok, err := store.Get("abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.Payload, got.Payload)

	require.NoError(t, store.Delete("abc123"))
	_, ok, err = store.Get("abc123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Memory_GetMissing(t *testing.T) {
	store := New(ModeMemory, "")
	_, ok, err := store.Get("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_File_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.json")
	store := New(ModeFile, path)

	entry := Entry{Payload: []byte(`{"v":1}`), Created: time.Now()}
	require.NoError(t, store.Save("deadbeef", entry))

	reloaded := New(ModeFile, path)
	got, ok, err := reloaded.Get("deadbeef")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.Payload, got.Payload)
}

func TestStore_File_MissingFileIsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	store := New(ModeFile, path)

	_, ok, err := store.Get("anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_File_CorruptFileIsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	store := New(ModeFile, path)
	_, ok, err := store.Get("anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_LaterSaveWinsOnCollision(t *testing.T) {
	store := New(ModeMemory, "")

	require.NoError(t, store.Save("hash1", Entry{Payload: []byte(`"first"`)}))
	require.NoError(t, store.Save("hash1", Entry{Payload: []byte(`"second"`)}))

	got, ok, err := store.Get("hash1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"second"`, string(got.Payload))
}

func TestStore_PurgeStale(t *testing.T) {
	store := New(ModeMemory, "")

	require.NoError(t, store.Save("old", Entry{Payload: []byte(`1`), Created: time.Now().Add(-4 * 24 * time.Hour)}))
	require.NoError(t, store.Save("fresh", Entry{Payload: []byte(`2`), Created: time.Now()}))

	removed, err := store.PurgeStale(DefaultTTL)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, _ := store.Get("old")
	assert.False(t, ok)
	_, ok, _ = store.Get("fresh")
	assert.True(t, ok)
}
