package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"parrot-ai/internal/domain"
)

// invalidFilenameChars matches characters stripped from user-supplied chat names.
var invalidFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// FilenameCorrection strips characters that are unsafe in filenames.
func FilenameCorrection(name string) string {
	return invalidFilenameChars.ReplaceAllString(name, "")
}

// LegacyRecord is the on-disk shape of a single chat file: the full message
// history plus the sampling parameters and context settings chosen for it.
type LegacyRecord struct {
	History    []domain.Message   `json:"history"`
	Parameters domain.Parameters  `json:"parameters"`
	Context    domain.ContextSpec `json:"context"`
}

// DefaultLegacyRecord returns an empty record with default parameters and context.
func DefaultLegacyRecord() LegacyRecord {
	return LegacyRecord{
		History:    []domain.Message{},
		Parameters: domain.DefaultParameters(),
		Context:    domain.DefaultContextSpec(),
	}
}

// LegacyStore persists one JSON file per chat, named "<chat name>.json",
// directly under the data directory. Chat names carry a "_<id>" suffix so
// that display names need not be unique.
type LegacyStore struct {
	dir    string
	logger *slog.Logger
}

// NewLegacyStore creates a store rooted at dir. The directory is created
// lazily on first write.
func NewLegacyStore(dir string, logger *slog.Logger) *LegacyStore {
	return &LegacyStore{dir: dir, logger: logger}
}

// validateChatName checks that a chat name is safe to use as a filename.
func validateChatName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("chat name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("chat name contains path separators: %q", name)
	}
	// Separators are already rejected, so dots are only dangerous as the
	// whole name. Titles legitimately end in "...".
	if name == "." || name == ".." {
		return fmt.Errorf("chat name is a directory reference: %q", name)
	}
	if strings.Contains(name, "\x00") {
		return fmt.Errorf("chat name contains null byte: %q", name)
	}
	if clean := filepath.Clean(name); clean != name {
		return fmt.Errorf("chat name not a clean path: %q vs %q", name, clean)
	}
	return nil
}

func (s *LegacyStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Save writes the record for the named chat, creating the data directory if needed.
func (s *LegacyStore) Save(name string, rec LegacyRecord) error {
	if err := validateChatName(name); err != nil {
		return domain.NewDomainError("LegacyStore.Save", domain.ErrPersistenceIO, err.Error())
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return domain.NewDomainError("LegacyStore.Save", domain.ErrPersistenceIO, err.Error())
	}
	if rec.History == nil {
		rec.History = []domain.Message{}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return domain.NewDomainError("LegacyStore.Save", domain.ErrPersistenceIO, err.Error())
	}
	if err := os.WriteFile(s.path(name), data, 0600); err != nil {
		return domain.NewDomainError("LegacyStore.Save", domain.ErrPersistenceIO, err.Error())
	}
	s.logger.Debug("chat saved", "name", name, "messages", len(rec.History))
	return nil
}

// Load reads the record for the named chat. A missing or unreadable file
// yields the defaulted record rather than an error, so a fresh or corrupted
// chat always starts from a usable state.
func (s *LegacyStore) Load(name string) LegacyRecord {
	if err := validateChatName(name); err != nil {
		return DefaultLegacyRecord()
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return DefaultLegacyRecord()
	}

	// Pointer fields distinguish an absent key from an explicit zero value,
	// so a record that deliberately chose level 0 keeps it.
	var raw struct {
		History    []domain.Message    `json:"history"`
		Parameters *domain.Parameters  `json:"parameters"`
		Context    *domain.ContextSpec `json:"context"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Error("corrupt chat file, falling back to defaults", "name", name, "error", err)
		return DefaultLegacyRecord()
	}

	rec := LegacyRecord{
		History:    raw.History,
		Parameters: domain.DefaultParameters(),
		Context:    domain.DefaultContextSpec(),
	}
	if rec.History == nil {
		rec.History = []domain.Message{}
	}
	if raw.Parameters != nil {
		rec.Parameters = *raw.Parameters
	}
	if raw.Context != nil {
		rec.Context = *raw.Context
	}
	return rec
}

// Delete removes the named chat file. Deleting a chat that does not exist is
// not an error.
func (s *LegacyStore) Delete(name string) error {
	if err := validateChatName(name); err != nil {
		return domain.NewDomainError("LegacyStore.Delete", domain.ErrPersistenceIO, err.Error())
	}
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return domain.NewDomainError("LegacyStore.Delete", domain.ErrPersistenceIO, err.Error())
	}
	return nil
}

// Rename gives a chat a new display name while preserving its "_<id>" suffix.
// The record is saved under the new name before the old file is removed, so a
// failure mid-rename never loses data. It returns the new full chat name.
func (s *LegacyStore) Rename(oldName, newDisplayName string) (string, error) {
	if strings.TrimSpace(newDisplayName) == "" {
		return oldName, nil
	}
	if err := validateChatName(oldName); err != nil {
		return "", domain.NewDomainError("LegacyStore.Rename", domain.ErrPersistenceIO, err.Error())
	}

	newDisplayName = FilenameCorrection(newDisplayName)

	// Keep the unique suffix from the old name.
	idPart := NewChatID()
	if i := strings.LastIndex(oldName, "_"); i >= 0 {
		idPart = oldName[i+1:]
	}
	newName := fmt.Sprintf("%s_%s", newDisplayName, idPart)
	if newName == oldName {
		return oldName, nil
	}

	rec := s.Load(oldName)
	if err := s.Save(newName, rec); err != nil {
		return "", err
	}
	if err := s.Delete(oldName); err != nil {
		return "", err
	}
	s.logger.Info("chat renamed", "from", oldName, "to", newName)
	return newName, nil
}

// List returns the names of all saved chats, without the .json extension.
func (s *LegacyStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.NewDomainError("LegacyStore.List", domain.ErrPersistenceIO, err.Error())
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}
