package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parrot-ai/internal/domain"
)

func TestSessionLogAppendAndLoad(t *testing.T) {
	s := NewSessionLogStore(t.TempDir(), testLogger())

	require.NoError(t, s.Append("sess-1", SessionEntry{ID: "conv-1", Input: "q1", Output: "a1"}))
	require.NoError(t, s.Append("sess-1", SessionEntry{ID: "conv-2", Input: "q2", Output: "a2"}))

	entries := s.Load("sess-1")
	require.Len(t, entries, 2)
	require.Equal(t, "q1", entries[0].Input)
	require.Equal(t, "a2", entries[1].Output)
	require.False(t, entries[0].Timestamp.IsZero(), "timestamp defaulted on append")
}

func TestSessionLogLoadMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	s := NewSessionLogStore(dir, testLogger())

	require.Empty(t, s.Load("nope"))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sessions"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions", "bad.json"), []byte("]["), 0600))
	require.Empty(t, s.Load("bad"))
}

func TestSessionLogClear(t *testing.T) {
	s := NewSessionLogStore(t.TempDir(), testLogger())
	require.NoError(t, s.Append("sess-1", SessionEntry{Input: "q", Output: "a"}))

	require.NoError(t, s.Clear("sess-1"))
	require.Empty(t, s.Load("sess-1"))

	err := s.Clear("missing")
	require.True(t, errors.Is(err, domain.ErrConversationNotFound))
}

func TestSessionLogDelete(t *testing.T) {
	s := NewSessionLogStore(t.TempDir(), testLogger())
	require.NoError(t, s.Append("sess-1", SessionEntry{Input: "q", Output: "a"}))

	require.NoError(t, s.Delete("sess-1"))
	err := s.Delete("sess-1")
	require.True(t, errors.Is(err, domain.ErrConversationNotFound))
}

func TestSessionLogSessionsOrderingAndTitles(t *testing.T) {
	s := NewSessionLogStore(t.TempDir(), testLogger())
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	long := "this input is well over thirty characters long"
	require.NoError(t, s.Append("old", SessionEntry{Input: long, Output: "a", Timestamp: base}))
	require.NoError(t, s.Append("new", SessionEntry{Input: "short", Output: "a", Timestamp: base.Add(time.Hour)}))
	require.NoError(t, s.SetTitle("new", "Named session"))

	infos := s.Sessions()
	require.Len(t, infos, 2)
	require.Equal(t, "new", infos[0].ID, "most recent first")
	require.Equal(t, "Named session", infos[0].Title)
	require.Equal(t, long[:30]+"...", infos[1].Title, "derived title truncated")
	require.Equal(t, 1, infos[1].MessageCount)
}

func TestSessionLogSessionsSkipsEmpty(t *testing.T) {
	s := NewSessionLogStore(t.TempDir(), testLogger())
	require.NoError(t, s.Append("sess-1", SessionEntry{Input: "q", Output: "a"}))
	require.NoError(t, s.Clear("sess-1"))

	require.Empty(t, s.Sessions())
}

func TestNewSessionIDIsULID(t *testing.T) {
	id := NewSessionID()
	require.Len(t, id, 26)
	require.NoError(t, validateChatName(id))
}
