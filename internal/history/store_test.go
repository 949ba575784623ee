// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewConversation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.NewConversation(ctx, "first chat")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	conv, err := store.GetConversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "first chat", conv.Title)
}

func TestGetConversationNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetConversation(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendAndMessages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.NewConversation(ctx, "chat")
	require.NoError(t, err)

	_, err = store.Append(ctx, id, Message{Role: "user", Content: "hello"})
	require.NoError(t, err)
	_, err = store.Append(ctx, id, Message{
		Role: "assistant", Content: "hi there", Backend: "local", Model: "qwen2.5-coder:7b",
		TokenCount: 42, Duration: 1500 * time.Millisecond,
	})
	require.NoError(t, err)

	msgs, err := store.Messages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Zero(t, msgs[0].TokenCount)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "local", msgs[1].Backend)
	assert.Equal(t, "qwen2.5-coder:7b", msgs[1].Model)
	assert.Equal(t, 42, msgs[1].TokenCount)
	assert.Equal(t, 1500*time.Millisecond, msgs[1].Duration)
}

func TestAppendUnknownConversation(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Append(context.Background(), "no-such-id", Message{Role: "user", Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConversations(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.NewConversation(ctx, "first")
	require.NoError(t, err)
	_, err = store.NewConversation(ctx, "second")
	require.NoError(t, err)

	_, err = store.Append(ctx, first, Message{Role: "user", Content: "bump"})
	require.NoError(t, err)

	convs, err := store.ListConversations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	total := convs[0].MessageCount + convs[1].MessageCount
	assert.Equal(t, 1, total)

	limited, err := store.ListConversations(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.NewConversation(ctx, "doomed")
	require.NoError(t, err)
	_, err = store.Append(ctx, id, Message{Role: "user", Content: "x"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))

	_, err = store.GetConversation(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	// Cascade removes the messages too.
	msgs, err := store.Messages(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.ErrorIs(t, store.Delete(ctx, id), ErrNotFound)
}

func TestPrune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.NewConversation(ctx, "conv")
		require.NoError(t, err)
	}

	deleted, err := store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	convs, err := store.ListConversations(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, convs, 2)
}

func TestPruneNoop(t *testing.T) {
	store := openTestStore(t)

	deleted, err := store.Prune(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestClosedStore(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.NewConversation(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = store.ListConversations(context.Background(), 0)
	assert.ErrorIs(t, err, ErrClosed)
}
