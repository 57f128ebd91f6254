package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/nexira/nexira/internal/application/usecase"
	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/domain/service"
)

const clearLn = "\033[2K\r"

// Braille spinner frames
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// App is the interactive console: the same runtime as the web UI,
// talking to the in-process chat pipeline.
type App struct {
	chat        *usecase.ChatUseCase
	identity    *service.IdentityService
	personality *service.PersonalityEngine
	selfModel   *service.SelfModel
	goals       *service.GoalTracker
	messages    repository.MessageRepository
	knowledge   repository.KnowledgeRepository

	model    string
	renderer *glamour.TermRenderer
}

// Deps bundles everything the console needs.
type Deps struct {
	Chat        *usecase.ChatUseCase
	Identity    *service.IdentityService
	Personality *service.PersonalityEngine
	SelfModel   *service.SelfModel
	Goals       *service.GoalTracker
	Messages    repository.MessageRepository
	Knowledge   repository.KnowledgeRepository
	Model       string
}

func New(deps Deps) *App {
	w := termWidth()
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(w-4),
	)
	return &App{
		chat:        deps.Chat,
		identity:    deps.Identity,
		personality: deps.Personality,
		selfModel:   deps.SelfModel,
		goals:       deps.Goals,
		messages:    deps.Messages,
		knowledge:   deps.Knowledge,
		model:       deps.Model,
		renderer:    r,
	}
}

// Run starts the REPL loop and blocks until the user quits.
func (a *App) Run(ctx context.Context) error {
	conversations, _ := a.messages.CountByRole(ctx, entity.RoleUser)
	fmt.Println(RenderBanner(BannerInfo{
		AIName:        a.identity.Name(),
		AwaitingName:  a.identity.AwaitingName(),
		Model:         a.model,
		AgeDays:       a.identity.AgeDays(),
		Relationship:  a.identity.RelationshipStage(),
		Conversations: conversations,
	}, termWidth()))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\001\033[1;36m\002❯\001\033[0m\002 ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Printf("\n%s\n", dimRender("👋 再见"))
		rl.Close()
		os.Exit(0)
	}()

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Printf("%s\n", dimRender("👋 再见"))
				return nil
			}
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if cmd := ParseSlashCommand(input); cmd != nil {
			result := a.executeCommand(ctx, cmd)
			if result.IsQuit {
				fmt.Printf("%s\n", dimRender("👋 再见"))
				return nil
			}
			if result.Output != "" {
				fmt.Println(result.Output)
			}
			continue
		}

		a.exchange(ctx, input)
	}
}

// exchange runs one chat round and renders the reply.
func (a *App) exchange(parent context.Context, message string) {
	// Ctrl+C cancels the in-flight generation, not the REPL.
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT)
		defer signal.Stop(ch)
		select {
		case <-ch:
			cancel()
			fmt.Printf("\n%s\n", dimRender("⏹ 已中断"))
		case <-ctx.Done():
		}
	}()

	spinner := newSpinner()
	spinner.Update(a.identity.Name() + " is thinking...")

	result, err := a.chat.Execute(ctx, usecase.ChatRequest{
		Message:  message,
		Platform: "console",
	})
	spinner.Stop()

	if err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
		fmt.Println(errStyle.Render("✗ " + err.Error()))
		return
	}

	fmt.Println(a.renderMarkdown(result.Response))
	for i := range result.Actions {
		fmt.Println(a.renderActionCard(&result.Actions[i]))
	}
	fmt.Println(a.statusLine(result))
}

func (a *App) renderMarkdown(md string) string {
	if a.renderer == nil {
		return md
	}
	out, err := a.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}

// renderActionCard shows one completed autonomous action under the reply.
func (a *App) renderActionCard(card *entity.ActionCard) string {
	iconStyle := lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	nameStyle := lipgloss.NewStyle().Foreground(colorCyan)
	detailStyle := lipgloss.NewStyle().Foreground(colorGray)

	detail := card.Detail
	if len(detail) > 80 {
		detail = detail[:80] + "…"
	}
	icon := "⚙"
	if !card.Success {
		icon = "✗"
	}
	return fmt.Sprintf("  %s %s %s",
		iconStyle.Render(icon),
		nameStyle.Render(card.Label),
		detailStyle.Render(detail),
	)
}

// statusLine renders name · confidence · drift under each reply.
func (a *App) statusLine(result *entity.ChatResult) string {
	style := lipgloss.NewStyle().Foreground(colorDim)
	return style.Render(fmt.Sprintf("─── %s · confidence %.0f%% · drift %.3f ───",
		result.AIName, result.Confidence*100, a.personality.Drift()))
}

func dimRender(s string) string {
	return lipgloss.NewStyle().Foreground(colorDim).Render(s)
}

// ─── Braille Spinner ───

type asyncSpinner struct {
	mu      sync.Mutex
	running bool
	msg     string
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newSpinner() *asyncSpinner {
	return &asyncSpinner{}
}

func (s *asyncSpinner) Update(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msg = msg
	if !s.running {
		s.running = true
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		go s.run()
	}
}

func (s *asyncSpinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	fmt.Print(clearLn)
}

func (s *asyncSpinner) run() {
	defer close(s.doneCh)

	frame := 0
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			msg := s.msg
			s.mu.Unlock()

			f := spinnerFrames[frame%len(spinnerFrames)]
			fmt.Printf("%s\033[96m\033[1m%s\033[0m \033[90m%s\033[0m", clearLn, f, msg)
			frame++
		}
	}
}

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
