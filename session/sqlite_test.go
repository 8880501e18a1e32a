package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constellahq/constellation/auditor"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleSession(id string) *Session {
	return &Session{
		ID:          id,
		Title:       "Headache advice",
		HITLEnabled: true,
		Messages: []Message{
			{Role: "user", Content: "I have a headache", CreatedAt: time.Now().UTC()},
			{
				Role:         "assistant",
				Content:      "Take ibuprofen, at most 400mg per dose.",
				WasCorrected: true,
				Audits: map[auditor.ID]auditor.Result{
					auditor.Medical: {Safe: false, Reasoning: "dose missing", Name: "Medical Auditor"},
					auditor.Legal:   {Safe: true, Name: "Legal Auditor"},
				},
				CreatedAt: time.Now().UTC(),
			},
		},
	}
}

func TestOpenSQLiteCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "sessions.db")
	store, err := OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSession("s1")))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Headache advice", got.Title)
	assert.True(t, got.HITLEnabled)
	require.Len(t, got.Messages, 2)

	answer := got.Messages[1]
	assert.True(t, answer.WasCorrected)
	require.Contains(t, answer.Audits, auditor.Medical)
	assert.False(t, answer.Audits[auditor.Medical].Safe)
	assert.Equal(t, "dose missing", answer.Audits[auditor.Medical].Reasoning)
	assert.True(t, answer.Audits[auditor.Legal].Safe)
}

func TestSaveReplacesMessages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess := sampleSession("s1")
	require.NoError(t, store.Save(ctx, sess))

	sess.Messages = append(sess.Messages, Message{Role: "user", Content: "thanks"})
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 3)
	assert.Equal(t, "thanks", got.Messages[2].Content)
}

func TestLoadUnknownSession(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdersByRecency(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	older := sampleSession("older")
	require.NoError(t, store.Save(ctx, older))
	time.Sleep(5 * time.Millisecond)
	newer := sampleSession("newer")
	require.NoError(t, store.Save(ctx, newer))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)
	assert.Equal(t, "older", list[1].ID)
	assert.Equal(t, 2, list[0].MessageCount)
}

func TestDeleteRemovesSessionAndMessages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSession("s1")))
	require.NoError(t, store.Delete(ctx, "s1"))

	_, err := store.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteUnknownIsNoError(t *testing.T) {
	store := openTestStore(t)
	assert.NoError(t, store.Delete(context.Background(), "ghost"))
}

func TestSaveRequiresID(t *testing.T) {
	store := openTestStore(t)
	err := store.Save(context.Background(), &Session{})
	assert.Error(t, err)
}
