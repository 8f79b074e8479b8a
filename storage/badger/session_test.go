package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndGetRecentMessages(t *testing.T) {
	_, _, sessionRepo, _ := newTestRepos(t)
	ctx := context.Background()

	messages := []*core.Message{
		{Role: core.MessageRoleUser, Content: "first question"},
		{Role: core.MessageRoleAssistant, Content: "first answer"},
		{Role: core.MessageRoleUser, Content: "second question"},
	}

	err := sessionRepo.AppendMessages(ctx, "session-1", messages...)
	require.NoError(t, err)

	got, err := sessionRepo.GetRecentMessages(ctx, "session-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Oldest first
	assert.Equal(t, "first question", got[0].Content)
	assert.Equal(t, "first answer", got[1].Content)
	assert.Equal(t, "second question", got[2].Content)

	// Timestamps were populated
	for _, m := range got {
		assert.False(t, m.Timestamp.IsZero())
	}
}

func TestGetRecentMessages_Window(t *testing.T) {
	_, _, sessionRepo, _ := newTestRepos(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		err := sessionRepo.AppendMessages(ctx, "session-1", &core.Message{
			Role:    core.MessageRoleUser,
			Content: fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	got, err := sessionRepo.GetRecentMessages(ctx, "session-1", 4)
	require.NoError(t, err)
	require.Len(t, got, 4)

	// The four most recent, oldest first
	assert.Equal(t, "message 6", got[0].Content)
	assert.Equal(t, "message 9", got[3].Content)
}

func TestGetRecentMessages_EmptySession(t *testing.T) {
	_, _, sessionRepo, _ := newTestRepos(t)

	got, err := sessionRepo.GetRecentMessages(context.Background(), "never-seen", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetRecentMessages_InvalidLimit(t *testing.T) {
	_, _, sessionRepo, _ := newTestRepos(t)

	_, err := sessionRepo.GetRecentMessages(context.Background(), "session-1", 0)
	assert.Equal(t, storage.ErrInvalidQuery, err)
}

func TestSessionIsolation(t *testing.T) {
	_, _, sessionRepo, _ := newTestRepos(t)
	ctx := context.Background()

	err := sessionRepo.AppendMessages(ctx, "alice", &core.Message{Role: core.MessageRoleUser, Content: "alice's question"})
	require.NoError(t, err)
	err = sessionRepo.AppendMessages(ctx, "bob", &core.Message{Role: core.MessageRoleUser, Content: "bob's question"})
	require.NoError(t, err)

	aliceMessages, err := sessionRepo.GetRecentMessages(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, aliceMessages, 1)
	assert.Equal(t, "alice's question", aliceMessages[0].Content)

	bobMessages, err := sessionRepo.GetRecentMessages(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, bobMessages, 1)
	assert.Equal(t, "bob's question", bobMessages[0].Content)
}

func TestCountMessages(t *testing.T) {
	_, _, sessionRepo, _ := newTestRepos(t)
	ctx := context.Background()

	count, err := sessionRepo.CountMessages(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for i := 0; i < 5; i++ {
		err := sessionRepo.AppendMessages(ctx, "session-1", &core.Message{
			Role:    core.MessageRoleUser,
			Content: fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	count, err = sessionRepo.CountMessages(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestDeleteSession(t *testing.T) {
	_, _, sessionRepo, _ := newTestRepos(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := sessionRepo.AppendMessages(ctx, "doomed", &core.Message{
			Role:    core.MessageRoleUser,
			Content: fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}
	err := sessionRepo.AppendMessages(ctx, "survivor", &core.Message{Role: core.MessageRoleUser, Content: "still here"})
	require.NoError(t, err)

	deleted, err := sessionRepo.DeleteSession(ctx, "doomed")
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	got, err := sessionRepo.GetRecentMessages(ctx, "doomed", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = sessionRepo.GetRecentMessages(ctx, "survivor", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDeleteSession_Empty(t *testing.T) {
	_, _, sessionRepo, _ := newTestRepos(t)

	deleted, err := sessionRepo.DeleteSession(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestListSessions(t *testing.T) {
	_, _, sessionRepo, _ := newTestRepos(t)
	ctx := context.Background()

	sessions, err := sessionRepo.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	for _, id := range []string{"charlie", "alice", "bob"} {
		err := sessionRepo.AppendMessages(ctx, id, &core.Message{Role: core.MessageRoleUser, Content: "hello"})
		require.NoError(t, err)
	}
	// A second message must not duplicate the session entry
	err = sessionRepo.AppendMessages(ctx, "alice", &core.Message{Role: core.MessageRoleUser, Content: "again"})
	require.NoError(t, err)

	sessions, err = sessionRepo.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "charlie"}, sessions)
}

func TestAppendMessages_PreservesRefs(t *testing.T) {
	_, _, sessionRepo, _ := newTestRepos(t)
	ctx := context.Background()

	refs := []core.SegmentRef{
		{DocId: core.IDFromContent("doc"), SegmentId: core.IDFromContent("seg"), Score: 0.88},
	}
	ts := time.Now().UTC().Truncate(time.Microsecond).Add(-time.Minute)

	err := sessionRepo.AppendMessages(ctx, "session-1", &core.Message{
		Role:      core.MessageRoleAssistant,
		Content:   "answer with citations",
		Timestamp: ts,
		Refs:      refs,
	})
	require.NoError(t, err)

	got, err := sessionRepo.GetRecentMessages(ctx, "session-1", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, refs, got[0].Refs)
	assert.True(t, ts.Equal(got[0].Timestamp))
}
