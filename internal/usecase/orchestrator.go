package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"parrot-ai/internal/adapter/store"
	"parrot-ai/internal/domain"
)

// turnPhase tracks where a turn is in the two-phase pipeline. There is no
// transition back into phaseToolExecuting, which is what bounds a turn to at
// most one tool invocation and two backend round trips.
type turnPhase int

const (
	phaseDrafting turnPhase = iota
	phaseToolExecuting
	phaseFinalizing
	phaseComplete
	phaseFailed
)

func (p turnPhase) String() string {
	switch p {
	case phaseDrafting:
		return "drafting"
	case phaseToolExecuting:
		return "tool_executing"
	case phaseFinalizing:
		return "finalizing"
	case phaseComplete:
		return "complete"
	case phaseFailed:
		return "failed"
	}
	return "unknown"
}

// searchFailedMessage is the degraded final text when the tool path breaks.
const searchFailedMessage = "Search operation failed. Please try again with a different query."

// LegacyStore is the whole-document persistence surface the orchestrator needs.
type LegacyStore interface {
	Save(name string, rec store.LegacyRecord) error
	Rename(oldName, newDisplayName string) (string, error)
}

// SessionLog is the append-only persistence surface the orchestrator needs.
type SessionLog interface {
	Append(sessionID string, entry store.SessionEntry) error
}

// Orchestrator drives one conversation turn through the two-phase protocol:
// a drafting stream with tool use enabled, at most one tool execution, and an
// optional finalizing stream whose prompt embeds the tool result.
type Orchestrator struct {
	provider     domain.StreamingLLMProvider
	tools        domain.ToolExecutor
	builder      *ContextWindowBuilder
	legacy       LegacyStore
	sessions     SessionLog
	model        string
	maxTokens    int
	chunkTimeout time.Duration
	logger       *slog.Logger

	// OnUpdate, when set, receives each append-only display increment as it
	// is reassembled. It must not block.
	OnUpdate func(string)
}

// NewOrchestrator wires a turn pipeline. chunkTimeout bounds the wait for
// each streaming delta; zero disables the bound.
func NewOrchestrator(
	provider domain.StreamingLLMProvider,
	tools domain.ToolExecutor,
	builder *ContextWindowBuilder,
	legacy LegacyStore,
	sessions SessionLog,
	model string,
	maxTokens int,
	chunkTimeout time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		provider:     provider,
		tools:        tools,
		builder:      builder,
		legacy:       legacy,
		sessions:     sessions,
		model:        model,
		maxTokens:    maxTokens,
		chunkTimeout: chunkTimeout,
		logger:       logger,
	}
}

// RunTurn processes one user prompt to completion: it appends the user turn,
// streams the draft, executes at most one tool call, streams the final
// answer when a tool ran, appends the assistant turn, and persists to both
// stores. The turn is appended and persisted even when it fails, so the
// conversation is never silently truncated; the error is returned alongside
// the degraded final text.
func (o *Orchestrator) RunTurn(ctx context.Context, conv *Conversation, prompt string) (string, error) {
	firstTurn := conv.UserTurns() == 0
	conv.AddTurn(domain.Message{Role: domain.RoleUser, Content: prompt})

	final, turnErr := o.runPhases(ctx, conv, prompt)

	conv.AddTurn(domain.Message{Role: domain.RoleAssistant, Content: final})
	o.persist(conv, prompt, final)

	if firstTurn && turnErr == nil {
		o.autoTitle(conv, prompt)
	}
	return final, turnErr
}

// runPhases executes the drafting/tool/finalizing state machine and returns
// the turn's final text. On failure the text already reassembled is preserved
// and an explicit error notice is appended rather than substituted.
func (o *Orchestrator) runPhases(ctx context.Context, conv *Conversation, prompt string) (string, error) {
	mode := conv.Mode.Spec()
	phase := phaseDrafting

	req := o.buildRequest(conv, conv.History, mode.SystemPrompt)
	if mode.ToolsEnabled && o.tools != nil {
		req.Tools = o.tools.Schemas()
	}

	text, call, err := o.streamOnce(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrToolArgumentParse) {
			// Arguments never became valid JSON. Fall back to whatever plain
			// text the draft produced.
			o.logger.Error("tool arguments unparsable", "error", err)
			if text == "" {
				return searchFailedMessage, nil
			}
			return text, nil
		}
		o.logger.Error("turn failed", "phase", phase.String(), "error", err)
		return appendErrorNotice(text, err), err
	}

	if call == nil {
		o.logger.Debug("turn complete", "phase", phaseComplete.String(), "tool", false)
		return text, nil
	}

	phase = phaseToolExecuting
	result, err := o.executeTool(ctx, call)
	if err != nil {
		o.logger.Error("tool execution failed", "phase", phase.String(), "tool", call.Name, "error", err)
		return searchFailedMessage, nil
	}

	phase = phaseFinalizing
	finalReq := o.buildRequest(conv, finalizingHistory(conv.History, prompt, result), "")
	finalText, _, err := o.streamOnce(ctx, finalReq)
	if err != nil {
		o.logger.Error("turn failed", "phase", phase.String(), "error", err)
		return appendErrorNotice(finalText, err), err
	}

	o.logger.Debug("turn complete", "phase", phaseComplete.String(), "tool", true)
	return finalText, nil
}

// buildRequest assembles a completion request from the context window plus an
// optional mode system prompt placed ahead of everything else.
func (o *Orchestrator) buildRequest(conv *Conversation, history []domain.Message, systemPrompt string) domain.ChatRequest {
	messages := o.builder.Build(history, conv.Context)
	if systemPrompt != "" {
		messages = append([]domain.Message{{Role: domain.RoleSystem, Content: systemPrompt}}, messages...)
	}

	req := domain.ChatRequest{
		Model:     o.model,
		Messages:  messages,
		MaxTokens: o.maxTokens,
	}
	req.ApplyParameters(conv.Params)
	return req
}

// streamOnce opens one streaming completion call, feeds every delta through a
// fresh reassembler, and applies the terminal rules. The wait for each delta
// is bounded by the configured chunk timeout.
func (o *Orchestrator) streamOnce(ctx context.Context, req domain.ChatRequest) (string, *domain.ToolCall, error) {
	// Cancel the stream on every exit path. Abandoning the channel after a
	// timeout or transport drop would otherwise leave the SSE reader and its
	// pooled connection blocked on the stalled body.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := o.provider.ChatStream(ctx, req)
	if err != nil {
		return "", nil, err
	}

	r := NewChunkReassembler()
	var timer *time.Timer
	var timeout <-chan time.Time
	if o.chunkTimeout > 0 {
		timer = time.NewTimer(o.chunkTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

consume:
	for {
		select {
		case delta, ok := <-ch:
			if !ok {
				break consume
			}
			if inc := r.Feed(delta); inc != "" && o.OnUpdate != nil {
				o.OnUpdate(inc)
			}
			if delta.Done {
				break consume
			}
			if timer != nil {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(o.chunkTimeout)
			}
		case <-timeout:
			text, _, _ := r.Finalize()
			return text, nil, domain.NewDomainError("Orchestrator.streamOnce",
				domain.ErrTimeout, fmt.Sprintf("no delta within %s", o.chunkTimeout))
		case <-ctx.Done():
			text, _, _ := r.Finalize()
			return text, nil, ctx.Err()
		}
	}

	// A stream that ended without a finish reason was dropped by the
	// transport, not completed by the model.
	if r.FinishReason() == "" {
		text, _, _ := r.Finalize()
		return text, nil, domain.NewDomainError("Orchestrator.streamOnce",
			domain.ErrStreamTransport, "stream ended without finish reason")
	}

	return r.Finalize()
}

// executeTool resolves and runs the requested tool exactly once.
func (o *Orchestrator) executeTool(ctx context.Context, call *domain.ToolCall) (string, error) {
	if o.tools == nil {
		return "", domain.NewDomainError("Orchestrator.executeTool", domain.ErrUnsupportedTool, call.Name)
	}
	tool, err := o.tools.Get(call.Name)
	if err != nil {
		return "", err
	}

	o.logger.Info("executing tool", "tool", call.Name, "call_id", call.ID)
	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		return "", err
	}
	if result.IsError {
		return "", domain.NewDomainError("Orchestrator.executeTool", domain.ErrSearchBackend, result.Content)
	}
	return result.Content, nil
}

// finalizingHistory rewrites the last user turn so the second pass answers
// from the tool result: the prompt embeds the serialized result ahead of the
// original question.
func finalizingHistory(history []domain.Message, prompt, toolResult string) []domain.Message {
	augmented := fmt.Sprintf(
		"Use the updated information from the web search below to answer the question.\n\n"+
			"Here is the information:\n%s\n\n"+
			"Here is the user's question: %s",
		toolResult, prompt)

	out := make([]domain.Message, len(history))
	copy(out, history)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role == domain.RoleUser {
			out[i].Content = augmented
			break
		}
	}
	return out
}

// appendErrorNotice preserves partial output and appends an explicit notice.
func appendErrorNotice(text string, err error) string {
	notice := fmt.Sprintf("Sorry, an error occurred: %v", err)
	if text == "" {
		return notice
	}
	return text + "\n\n" + notice
}

// persist writes the turn to both stores. Persistence failures are logged
// and reported through the logger only; the in-memory conversation continues.
func (o *Orchestrator) persist(conv *Conversation, prompt, final string) {
	if o.legacy != nil {
		if err := o.legacy.Save(conv.Name, conv.Record()); err != nil {
			o.logger.Error("legacy save failed", "name", conv.Name, "error", err)
		}
	}
	if o.sessions != nil {
		entry := store.SessionEntry{
			ID:     ConversationID(prompt),
			Input:  prompt,
			Output: CleanThinking(final),
		}
		if err := o.sessions.Append(conv.SessionID, entry); err != nil {
			o.logger.Error("session log append failed", "session_id", conv.SessionID, "error", err)
		}
	}
}

// autoTitle renames a conversation after its first exchange, using the first
// characters of the prompt as the display name.
func (o *Orchestrator) autoTitle(conv *Conversation, prompt string) {
	if o.legacy == nil {
		return
	}
	title := ExtractTitle(prompt)
	if title == "New Chat" {
		return
	}
	newName, err := o.legacy.Rename(conv.Name, title)
	if err != nil {
		o.logger.Warn("auto-title rename failed", "name", conv.Name, "error", err)
		return
	}
	conv.Name = newName
}
