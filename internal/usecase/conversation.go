package usecase

import (
	"crypto/md5"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"parrot-ai/internal/adapter/store"
	"parrot-ai/internal/domain"
)

// Conversation is the unit of persisted chat state. It carries two identity
// keys: Name (display name with a stable "_<id>" suffix, used by the legacy
// store) and SessionID (used by the append-only session log).
type Conversation struct {
	Name      string
	SessionID string
	History   []domain.Message
	Params    domain.Parameters
	Context   domain.ContextSpec
	Mode      domain.ChatMode
}

// NewConversation creates an empty conversation with generated identity keys
// and default parameters.
func NewConversation() *Conversation {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	return &Conversation{
		Name:      "New Chat_" + id.String(),
		SessionID: id.String(),
		History:   []domain.Message{},
		Params:    domain.DefaultParameters(),
		Context:   domain.DefaultContextSpec(),
		Mode:      domain.ModeDefault,
	}
}

// ResumeConversation rebuilds a conversation from a saved record. The session
// id is recovered from the name's "_<id>" suffix so the resumed conversation
// keeps appending to the same session log.
func ResumeConversation(name string, rec store.LegacyRecord) *Conversation {
	sessionID := store.NewSessionID()
	if i := strings.LastIndex(name, "_"); i >= 0 && i+1 < len(name) {
		sessionID = name[i+1:]
	}
	return &Conversation{
		Name:      name,
		SessionID: sessionID,
		History:   rec.History,
		Params:    rec.Parameters,
		Context:   rec.Context,
		Mode:      domain.ModeDefault,
	}
}

// Record returns the conversation's persistable whole-document form.
func (c *Conversation) Record() store.LegacyRecord {
	return store.LegacyRecord{
		History:    c.History,
		Parameters: c.Params,
		Context:    c.Context,
	}
}

// AddTurn appends a message, stamping the timestamp if unset.
func (c *Conversation) AddTurn(msg domain.Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	c.History = append(c.History, msg)
}

// UserTurns counts the user messages in the history.
func (c *Conversation) UserTurns() int {
	n := 0
	for _, m := range c.History {
		if m.Role == domain.RoleUser {
			n++
		}
	}
	return n
}

// ExportMarkdown renders the conversation as a downloadable markdown
// document. System turns are omitted.
func (c *Conversation) ExportMarkdown() string {
	if len(c.History) == 0 {
		return "# Chat History\n\nNo messages yet."
	}

	var sb strings.Builder
	sb.WriteString("# Chat History\n\n")
	for _, m := range c.History {
		switch m.Role {
		case domain.RoleUser:
			fmt.Fprintf(&sb, "## User\n\n%s\n\n", m.Content)
		case domain.RoleAssistant:
			fmt.Fprintf(&sb, "## Assistant\n\n%s\n\n", m.Content)
		}
	}
	return sb.String()
}

var nonWordChars = regexp.MustCompile(`[^\w\s]`)

// ExtractTitle derives a short display title from the first prompt of a
// conversation: punctuation stripped, truncated to 18 characters.
func ExtractTitle(text string) string {
	text = strings.TrimSpace(nonWordChars.ReplaceAllString(text, ""))
	if text == "" {
		return "New Chat"
	}
	runes := []rune(text)
	if len(runes) <= 18 {
		return text
	}
	return string(runes[:18]) + "..."
}

// ConversationID derives a stable id for a session-log entry from the
// prompt's first 20 characters.
func ConversationID(prompt string) string {
	runes := []rune(prompt)
	if len(runes) > 20 {
		runes = runes[:20]
	}
	sum := fmt.Sprintf("%x", md5.Sum([]byte(string(runes))))
	return "conv-" + sum[:10]
}

var thinkingBlockRE = regexp.MustCompile(`(?s)<details>\n<summary>💭 Thinking</summary>\n\n.*?\n\n</details>\n*`)

// CleanThinking strips thinking markup from content, keeping only the final
// answer text. It removes both raw marker pairs and already-rendered
// collapsible blocks. Used when persisting session-log entries.
func CleanThinking(content string) string {
	content = strings.TrimSpace(thinkingBlockRE.ReplaceAllString(content, ""))
	if i := strings.LastIndex(content, thinkClose); i >= 0 {
		return strings.TrimSpace(content[i+len(thinkClose):])
	}
	if i := strings.Index(content, thinkOpen); i >= 0 {
		return strings.TrimSpace(content[:i])
	}
	return content
}
