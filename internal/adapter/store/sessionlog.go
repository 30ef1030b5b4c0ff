package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"parrot-ai/internal/domain"
)

// SessionEntry is one completed exchange in the append-only session log.
type SessionEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
}

// sessionFile is the on-disk shape of a session log.
type sessionFile struct {
	SessionID string         `json:"session_id"`
	Title     string         `json:"title,omitempty"`
	Messages  []SessionEntry `json:"messages"`
}

// SessionInfo summarizes one session for listings.
type SessionInfo struct {
	ID           string
	Title        string
	MessageCount int
	LastUpdated  time.Time
}

// SessionLogStore persists an append-only exchange log per session under
// "<dir>/sessions/<session id>.json". Unlike the per-chat files, entries here
// are never rewritten, only appended, cleared, or deleted wholesale.
type SessionLogStore struct {
	dir    string
	logger *slog.Logger
}

// NewSessionLogStore creates a store whose logs live under dir/sessions.
func NewSessionLogStore(dir string, logger *slog.Logger) *SessionLogStore {
	return &SessionLogStore{dir: filepath.Join(dir, "sessions"), logger: logger}
}

func (s *SessionLogStore) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

func (s *SessionLogStore) read(sessionID string) sessionFile {
	sf := sessionFile{SessionID: sessionID, Messages: []SessionEntry{}}

	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		return sf
	}
	if err := json.Unmarshal(data, &sf); err != nil {
		s.logger.Error("corrupt session log, starting fresh", "session_id", sessionID, "error", err)
		return sessionFile{SessionID: sessionID, Messages: []SessionEntry{}}
	}
	if sf.SessionID == "" {
		sf.SessionID = sessionID
	}
	if sf.Messages == nil {
		sf.Messages = []SessionEntry{}
	}
	return sf
}

func (s *SessionLogStore) write(sessionID string, sf sessionFile) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return domain.NewDomainError("SessionLogStore.write", domain.ErrPersistenceIO, err.Error())
	}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return domain.NewDomainError("SessionLogStore.write", domain.ErrPersistenceIO, err.Error())
	}
	if err := os.WriteFile(s.path(sessionID), data, 0600); err != nil {
		return domain.NewDomainError("SessionLogStore.write", domain.ErrPersistenceIO, err.Error())
	}
	return nil
}

// Append records one completed exchange at the end of the session log. The
// entry's timestamp defaults to now if unset.
func (s *SessionLogStore) Append(sessionID string, entry SessionEntry) error {
	if err := validateChatName(sessionID); err != nil {
		return domain.NewDomainError("SessionLogStore.Append", domain.ErrPersistenceIO, err.Error())
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	sf := s.read(sessionID)
	sf.Messages = append(sf.Messages, entry)
	return s.write(sessionID, sf)
}

// Load returns all entries in a session log. A missing or corrupt file yields
// an empty slice.
func (s *SessionLogStore) Load(sessionID string) []SessionEntry {
	if err := validateChatName(sessionID); err != nil {
		return []SessionEntry{}
	}
	return s.read(sessionID).Messages
}

// Clear empties a session's log while keeping the session itself.
func (s *SessionLogStore) Clear(sessionID string) error {
	if err := validateChatName(sessionID); err != nil {
		return domain.NewDomainError("SessionLogStore.Clear", domain.ErrPersistenceIO, err.Error())
	}
	if _, err := os.Stat(s.path(sessionID)); err != nil {
		return domain.NewDomainError("SessionLogStore.Clear", domain.ErrConversationNotFound, sessionID)
	}

	sf := s.read(sessionID)
	sf.Messages = []SessionEntry{}
	return s.write(sessionID, sf)
}

// SetTitle stores an explicit title on a session, overriding the derived one.
func (s *SessionLogStore) SetTitle(sessionID, title string) error {
	if err := validateChatName(sessionID); err != nil {
		return domain.NewDomainError("SessionLogStore.SetTitle", domain.ErrPersistenceIO, err.Error())
	}
	if _, err := os.Stat(s.path(sessionID)); err != nil {
		return domain.NewDomainError("SessionLogStore.SetTitle", domain.ErrConversationNotFound, sessionID)
	}

	sf := s.read(sessionID)
	sf.Title = title
	return s.write(sessionID, sf)
}

// Delete removes a session log entirely.
func (s *SessionLogStore) Delete(sessionID string) error {
	if err := validateChatName(sessionID); err != nil {
		return domain.NewDomainError("SessionLogStore.Delete", domain.ErrPersistenceIO, err.Error())
	}
	if err := os.Remove(s.path(sessionID)); err != nil {
		if os.IsNotExist(err) {
			return domain.NewDomainError("SessionLogStore.Delete", domain.ErrConversationNotFound, sessionID)
		}
		return domain.NewDomainError("SessionLogStore.Delete", domain.ErrPersistenceIO, err.Error())
	}
	return nil
}

// Sessions lists all non-empty session logs, most recently updated first.
// The title is the stored one if set, otherwise the first user input
// truncated to 30 characters. Unreadable files are skipped.
func (s *SessionLogStore) Sessions() []SessionInfo {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}

	var infos []SessionInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")

		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var sf sessionFile
		if err := json.Unmarshal(data, &sf); err != nil {
			s.logger.Error("skipping unreadable session log", "session_id", id, "error", err)
			continue
		}
		if len(sf.Messages) == 0 {
			continue
		}

		title := sf.Title
		if title == "" {
			title = sf.Messages[0].Input
			if len(title) > 30 {
				title = title[:30] + "..."
			}
		}

		infos = append(infos, SessionInfo{
			ID:           id,
			Title:        title,
			MessageCount: len(sf.Messages),
			LastUpdated:  sf.Messages[len(sf.Messages)-1].Timestamp,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].LastUpdated.After(infos[j].LastUpdated)
	})
	return infos
}
