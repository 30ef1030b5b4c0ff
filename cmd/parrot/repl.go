package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"parrot-ai/internal/domain"
	"parrot-ai/internal/usecase"
)

var (
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	greetingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	streamStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func runChat() error {
	cfg, log, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	eng, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}

	conv := usecase.NewConversation()
	conv.Mode = eng.mode
	if err := eng.legacy.Save(conv.Name, conv.Record()); err != nil {
		eng.log.Warn("chat save failed", "name", conv.Name, "error", err)
	}

	fmt.Println(greetingStyle.Render(eng.greeting))
	fmt.Println(infoStyle.Render("Type /help for commands, /quit to exit."))

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := handleCommand(eng, &conv, line, renderer)
			if err != nil {
				fmt.Println(errorStyle.Render(err.Error()))
			}
			if done {
				return nil
			}
			continue
		}

		runOneTurn(eng, conv, line, renderer)
	}
}

func runOneTurn(eng *engine, conv *usecase.Conversation, prompt string, renderer *glamour.TermRenderer) {
	// Stream increments raw as they arrive, then replace with a rendered
	// markdown version once the turn completes.
	eng.orch.OnUpdate = func(inc string) {
		fmt.Print(streamStyle.Render(inc))
	}

	final, err := eng.orch.RunTurn(context.Background(), conv, prompt)
	fmt.Println()
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("turn failed: %v", err)))
	}

	rendered, rerr := renderer.Render(final)
	if rerr != nil {
		fmt.Println(final)
		return
	}
	fmt.Print(rendered)
}

// handleCommand processes a slash command. It returns true when the REPL
// should exit.
func handleCommand(eng *engine, conv **usecase.Conversation, line string, renderer *glamour.TermRenderer) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Println(infoStyle.Render(`/new            start a new conversation
/mode NAME      switch chat mode (default, search, grounding, deep-research, react)
/load NAME      resume a saved chat by its full name
/export         print this conversation as markdown
/sessions       list saved sessions
/quit           exit`))
		return false, nil

	case "/new":
		next := usecase.NewConversation()
		next.Mode = (*conv).Mode
		*conv = next
		if err := eng.legacy.Save(next.Name, next.Record()); err != nil {
			eng.log.Warn("chat save failed", "name", next.Name, "error", err)
		}
		fmt.Println(infoStyle.Render(eng.greeting))
		return false, nil

	case "/mode":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /mode NAME")
		}
		mode, err := domain.ParseChatMode(fields[1])
		if err != nil {
			return false, err
		}
		(*conv).Mode = mode
		fmt.Println(infoStyle.Render("mode: " + string(mode)))
		return false, nil

	case "/load":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /load NAME")
		}
		// Names can contain spaces; take everything after the command.
		name := strings.TrimSpace(strings.TrimPrefix(line, "/load"))
		resumed := usecase.ResumeConversation(name, eng.legacy.Load(name))
		resumed.Mode = (*conv).Mode
		*conv = resumed
		fmt.Println(infoStyle.Render(fmt.Sprintf("resumed %q (%d messages)", name, len(resumed.History))))
		return false, nil

	case "/export":
		md := (*conv).ExportMarkdown()
		rendered, err := renderer.Render(md)
		if err != nil {
			fmt.Print(md)
			return false, nil
		}
		fmt.Print(rendered)
		return false, nil

	case "/sessions":
		return false, runSessions()
	}
	return false, fmt.Errorf("unknown command %s", fields[0])
}
