/*
 * This file is part of Samantha (https://github.com/samanthaos/samantha).
 * Copyright (C) 2025 Samantha OS
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samanthaos/samantha-hub/internal/events"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newStoredEvent(sessionID, transcription string) *events.TurnEvent {
	event := events.NewTurnEvent(sessionID)
	event.SetAudioMetadata(make([]float32, 1600), 16000, false)
	event.SetTranscription(transcription, 0.9)
	event.SetResponse("a reply", "kilo/openrouter/free")
	return event
}

func TestDatabaseLifecycle(t *testing.T) {
	db := newTestDatabase(t)

	require.NoError(t, db.Ping())
	assert.NotEmpty(t, db.GetPath())
	require.NoError(t, db.Checkpoint())
	require.NoError(t, db.Vacuum())
}

func TestInsertAndGetByUUID(t *testing.T) {
	db := newTestDatabase(t)
	store := NewTurnEventsStore(db)

	event := newStoredEvent("session-1", "what time is it")
	require.NoError(t, store.Insert(event))

	got, err := store.GetByUUID(event.UUID)
	require.NoError(t, err)
	assert.Equal(t, event.UUID, got.UUID)
	assert.Equal(t, "session-1", got.SessionID)
	assert.Equal(t, "what time is it", got.Transcription)
	assert.Equal(t, "a reply", got.ResponseText)
	assert.Equal(t, "kilo/openrouter/free", got.Model)
	assert.Equal(t, event.AudioHash, got.AudioHash)
	assert.InDelta(t, 0.1, got.AudioDuration, 0.001)
	assert.True(t, got.Success)
}

func TestInsertRejectsInvalidEvent(t *testing.T) {
	db := newTestDatabase(t)
	store := NewTurnEventsStore(db)

	err := store.Insert(&events.TurnEvent{})
	assert.Error(t, err)
}

func TestGetByUUIDNotFound(t *testing.T) {
	db := newTestDatabase(t)
	store := NewTurnEventsStore(db)

	_, err := store.GetByUUID("no-such-uuid")
	assert.Error(t, err)
}

func TestListFiltersAndPagination(t *testing.T) {
	db := newTestDatabase(t)
	store := NewTurnEventsStore(db)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Insert(newStoredEvent("session-a", "hello")))
	}
	failed := newStoredEvent("session-b", "broken turn")
	failed.SetError(assert.AnError)
	require.NoError(t, store.Insert(failed))

	t.Run("filter by session", func(t *testing.T) {
		list, err := store.List(ListOptions{SessionID: "session-a"})
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})

	t.Run("filter by success", func(t *testing.T) {
		success := false
		list, err := store.List(ListOptions{Success: &success})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "session-b", list[0].SessionID)
		assert.False(t, list[0].Success)
		assert.NotEmpty(t, list[0].ErrorMessage)
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := store.List(ListOptions{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, page, 2)

		rest, err := store.List(ListOptions{Limit: 10, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, rest, 2)
	})

	t.Run("count", func(t *testing.T) {
		count, err := store.Count(ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)

		count, err = store.Count(ListOptions{SessionID: "session-b"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestListSortWhitelist(t *testing.T) {
	db := newTestDatabase(t)
	store := NewTurnEventsStore(db)
	require.NoError(t, store.Insert(newStoredEvent("session-a", "one")))

	// Unknown sort columns fall back to timestamp instead of reaching SQL.
	list, err := store.List(ListOptions{SortBy: "uuid; DROP TABLE turn_events"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = store.List(ListOptions{SortBy: "processing_time", SortOrder: "ASC"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTimeRangeFilter(t *testing.T) {
	db := newTestDatabase(t)
	store := NewTurnEventsStore(db)

	old := newStoredEvent("session-a", "yesterday")
	old.Timestamp = time.Now().Add(-24 * time.Hour)
	require.NoError(t, store.Insert(old))
	require.NoError(t, store.Insert(newStoredEvent("session-a", "today")))

	cutoff := time.Now().Add(-time.Hour)
	list, err := store.List(ListOptions{StartTime: &cutoff})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "today", list[0].Transcription)
}

func TestGetByAudioHash(t *testing.T) {
	db := newTestDatabase(t)
	store := NewTurnEventsStore(db)

	event := newStoredEvent("session-a", "same audio")
	require.NoError(t, store.Insert(event))

	list, err := store.GetByAudioHash(event.AudioHash)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, event.UUID, list[0].UUID)
}

func TestDelete(t *testing.T) {
	db := newTestDatabase(t)
	store := NewTurnEventsStore(db)

	event := newStoredEvent("session-a", "soon gone")
	require.NoError(t, store.Insert(event))
	require.NoError(t, store.Delete(event.UUID))

	_, err := store.GetByUUID(event.UUID)
	assert.Error(t, err)

	assert.Error(t, store.Delete(event.UUID), "second delete reports not found")
}

func TestRecordTurnEvent(t *testing.T) {
	db := newTestDatabase(t)
	store := NewTurnEventsStore(db)

	event := newStoredEvent("session-a", "recorded via orchestrator")
	require.NoError(t, store.RecordTurnEvent(context.Background(), event))

	got, err := store.GetByUUID(event.UUID)
	require.NoError(t, err)
	assert.Equal(t, "recorded via orchestrator", got.Transcription)
}
