package domain

import "fmt"

// ChatMode selects the engine behavior for a conversation. Modes share one
// turn pipeline; they differ in system prompt, tool availability, and which
// provider configuration serves them.
type ChatMode string

const (
	// ModeDefault is a plain single-pass chat without tools.
	ModeDefault ChatMode = "default"
	// ModeSearch enables the search tool with the two-phase agent flow.
	ModeSearch ChatMode = "search"
	// ModeGrounding answers with search-grounded citations via an alternate
	// provider.
	ModeGrounding ChatMode = "grounding"
	// ModeDeepResearch targets long-form reasoning models that emit
	// thinking markers in-band.
	ModeDeepResearch ChatMode = "deep-research"
	// ModeReAct interleaves reasoning and search in the agent flow.
	ModeReAct ChatMode = "react"
)

// ModeSpec resolves a ChatMode to its engine settings.
type ModeSpec struct {
	// SystemPrompt is prepended when the conversation has no preset context.
	SystemPrompt string
	// ToolsEnabled advertises the tool schemas to the model and arms the
	// tool-executing phase.
	ToolsEnabled bool
	// Provider optionally names a non-default provider configuration.
	Provider string
}

var modeSpecs = map[ChatMode]ModeSpec{
	ModeDefault: {},
	ModeSearch: {
		SystemPrompt: "You are a helpful assistant with access to a web search tool. " +
			"Use the search tool when the question needs current or factual information.",
		ToolsEnabled: true,
	},
	ModeGrounding: {
		SystemPrompt: "You are a helpful assistant. Ground your answers in search results and cite sources.",
		Provider:     "grounding",
	},
	ModeDeepResearch: {
		SystemPrompt: "You are a careful research assistant. Think step by step before answering.",
		Provider:     "deep-research",
	},
	ModeReAct: {
		SystemPrompt: "You are an agent that reasons about what to do, acts with the search tool, " +
			"observes the result, and repeats until you can answer.",
		ToolsEnabled: true,
	},
}

// ParseChatMode validates a mode name.
func ParseChatMode(s string) (ChatMode, error) {
	m := ChatMode(s)
	if s == "" {
		return ModeDefault, nil
	}
	if _, ok := modeSpecs[m]; !ok {
		return "", fmt.Errorf("unknown chat mode %q", s)
	}
	return m, nil
}

// Spec returns the engine settings for the mode. Unknown modes resolve to
// the default spec.
func (m ChatMode) Spec() ModeSpec {
	return modeSpecs[m]
}
