package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nexira/nexira/internal/domain/entity"
)

// SlashCommand represents a parsed slash command
type SlashCommand struct {
	Name string
	Args []string
}

// ParseSlashCommand parses a slash command from user input
func ParseSlashCommand(input string) *SlashCommand {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	parts := strings.Fields(input)
	name := strings.TrimPrefix(parts[0], "/")
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return &SlashCommand{Name: name, Args: args}
}

// CommandResult is the output of executing a slash command
type CommandResult struct {
	Output string
	IsQuit bool
}

// executeCommand handles slash commands against the live engines
func (a *App) executeCommand(ctx context.Context, cmd *SlashCommand) CommandResult {
	switch cmd.Name {
	case "help", "h":
		return CommandResult{Output: renderHelp()}
	case "exit", "quit", "q":
		return CommandResult{IsQuit: true}
	case "stats", "s":
		return CommandResult{Output: a.renderStats(ctx)}
	case "personality", "p":
		return CommandResult{Output: a.renderPersonality()}
	case "goals", "g":
		return CommandResult{Output: a.renderGoals(ctx)}
	case "version":
		return CommandResult{Output: fmt.Sprintf("Nexira v%s", appVersion)}
	default:
		return CommandResult{Output: fmt.Sprintf("未知命令: /%s  输入 /help 查看可用命令", cmd.Name)}
	}
}

func renderHelp() string {
	titleStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	cmdStyle := lipgloss.NewStyle().Foreground(colorGreen)
	descStyle := lipgloss.NewStyle().Foreground(colorGray)

	cmds := []struct {
		name string
		desc string
	}{
		{"/help", "显示此帮助"},
		{"/stats", "成长统计"},
		{"/personality", "当前人格与情绪"},
		{"/goals", "目标进度"},
		{"/version", "版本信息"},
		{"/quit", "退出"},
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("◇ 可用命令"))
	sb.WriteString("\n\n")

	for _, c := range cmds {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			cmdStyle.Render(fmt.Sprintf("%-16s", c.name)),
			descStyle.Render(c.desc),
		))
	}

	return sb.String()
}

func (a *App) renderStats(ctx context.Context) string {
	titleStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite)

	messages, _ := a.messages.Count(ctx)
	conversations, _ := a.messages.CountByRole(ctx, entity.RoleUser)
	facts, _ := a.knowledge.Count(ctx)

	row := func(label, value string) string {
		return fmt.Sprintf("  %s %s\n", labelStyle.Render(label), valueStyle.Render(value))
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("◇ " + a.identity.Name()))
	sb.WriteString("\n\n")
	sb.WriteString(row("年龄:", fmt.Sprintf("%d 天 (%s)", a.identity.AgeDays(), a.identity.RelationshipStage())))
	sb.WriteString(row("消息:", fmt.Sprintf("%d 条, %d 轮对话", messages, conversations)))
	sb.WriteString(row("知识:", fmt.Sprintf("%d 条事实", facts)))
	sb.WriteString(row("漂移:", fmt.Sprintf("%.3f", a.personality.Drift())))
	return sb.String()
}

func (a *App) renderPersonality() string {
	titleStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("◇ 人格"))
	sb.WriteString("\n\n")
	sb.WriteString(a.personality.FormatTraits())
	sb.WriteString("\n\n")
	sb.WriteString(a.selfModel.FormatEmotions())
	sb.WriteString("\n")
	return sb.String()
}

func (a *App) renderGoals(ctx context.Context) string {
	titleStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("◇ 目标"))
	sb.WriteString("\n\n")
	sb.WriteString(a.goals.Summary(ctx))
	sb.WriteString("\n")
	return sb.String()
}
