package usecase

import (
	"strings"

	"parrot-ai/internal/domain"
)

// ContextWindowBuilder produces the bounded message list sent to the
// completion backend. It is a pure function of the history and context
// settings; presets are resolved against a config-provided name→text map.
type ContextWindowBuilder struct {
	presets map[string]string
}

// NewContextWindowBuilder creates a builder with the given preset contexts.
// The "default" preset resolves to empty text and injects nothing.
func NewContextWindowBuilder(presets map[string]string) *ContextWindowBuilder {
	return &ContextWindowBuilder{presets: presets}
}

// Build filters system turns out of history, truncates to the 2*Level most
// recent turns when Level > 0, and prepends the resolved preset context
// followed by the free-text context as system messages ahead of all kept
// turns.
func (b *ContextWindowBuilder) Build(history []domain.Message, spec domain.ContextSpec) []domain.Message {
	kept := make([]domain.Message, 0, len(history))
	for _, m := range history {
		if m.Role == domain.RoleSystem {
			continue
		}
		kept = append(kept, m)
	}

	if spec.Level > 0 && len(kept) > 2*spec.Level {
		kept = kept[len(kept)-2*spec.Level:]
	}

	var prefix []domain.Message
	if preset := b.presets[spec.Preset]; preset != "" {
		prefix = append(prefix, domain.Message{Role: domain.RoleSystem, Content: preset})
	}
	if free := strings.TrimSpace(spec.FreeText); free != "" {
		prefix = append(prefix, domain.Message{Role: domain.RoleSystem, Content: free})
	}

	if len(prefix) == 0 {
		return kept
	}
	return append(prefix, kept...)
}
