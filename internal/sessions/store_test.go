package sessions

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

func TestSaveAllIsIdempotent(t *testing.T) {
	mgr := newTestManager(t)
	sess, err := mgr.GetOrCreate(context.Background(), "cli", "1")
	require.NoError(t, err)
	mgr.AddMessage(sess.SessionID, models.Message{Role: models.RoleUser, Content: "hi", Timestamp: time.Now()})

	mgr.SaveAll(context.Background())
	path := mgr.sessionPath(sess.SessionID)
	first, err := os.Stat(path)
	require.NoError(t, err)

	// Nothing is dirty any more, so a second SaveAll must not rewrite.
	time.Sleep(10 * time.Millisecond)
	mgr.SaveAll(context.Background())
	second, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, first.ModTime(), second.ModTime())
}

func TestPersistClearsDirty(t *testing.T) {
	mgr := newTestManager(t)
	sess, err := mgr.GetOrCreate(context.Background(), "cli", "1")
	require.NoError(t, err)
	mgr.AddMessage(sess.SessionID, models.Message{Role: models.RoleUser, Content: "hi", Timestamp: time.Now()})

	require.NoError(t, mgr.Persist(context.Background(), sess.SessionID))
	assert.Empty(t, mgr.store.drainDirty(), "a direct persist clears the dirty mark")
}

func TestGetReturnsClone(t *testing.T) {
	store := NewStore()
	store.Insert(models.NewSession("cli", "1"))

	a, ok := store.Get("cli_1")
	require.True(t, ok)
	a.Messages = append(a.Messages, models.Message{Role: models.RoleUser, Content: "mutation"})

	b, _ := store.Get("cli_1")
	assert.Empty(t, b.Messages, "mutating a returned clone must not affect the store")
}

func TestRequeueDirty(t *testing.T) {
	store := NewStore()
	store.Insert(models.NewSession("cli", "1"))
	drained := store.drainDirty()
	require.Len(t, drained, 1)
	require.Empty(t, store.drainDirty())

	store.requeueDirty([]string{"cli_1"})
	assert.Len(t, store.drainDirty(), 1)
}

func TestPersistedFileRoundTripsToolCalls(t *testing.T) {
	mgr := newTestManager(t)
	sess, err := mgr.GetOrCreate(context.Background(), "cli", "1")
	require.NoError(t, err)
	mgr.AddMessage(sess.SessionID, models.Message{
		Role:      models.RoleAssistant,
		Content:   "calling",
		ToolCalls: []models.ToolCall{{ID: "c9", Name: "web", Arguments: `{"url":"https://example.com"}`}},
		Timestamp: time.Now().UTC(),
	})
	mgr.AddMessage(sess.SessionID, models.Message{
		Role: models.RoleToolResult, Content: "body", ToolCallID: "c9", Timestamp: time.Now().UTC(),
	})
	mgr.SaveAll(context.Background())

	reloaded, err := NewManager(mgr.dir, nil)
	require.NoError(t, err)
	_, err = reloaded.LoadAll(context.Background())
	require.NoError(t, err)

	got, ok := reloaded.Get(sess.SessionID)
	require.True(t, ok)
	require.Len(t, got.Messages, 2)
	require.Len(t, got.Messages[0].ToolCalls, 1)
	assert.Equal(t, "c9", got.Messages[0].ToolCalls[0].ID)
	assert.Equal(t, "c9", got.Messages[1].ToolCallID)
}
