package console

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

const appVersion = "0.3.0"

// brand colors
var (
	colorCyan    = lipgloss.Color("#00D7FF")
	colorDimCyan = lipgloss.Color("#00AFAF")
	colorGray    = lipgloss.Color("#6C6C6C")
	colorWhite   = lipgloss.Color("#FFFFFF")
	colorDim     = lipgloss.Color("#4E4E4E")
	colorGreen   = lipgloss.Color("#00FF87")
	colorYellow  = lipgloss.Color("#FFD75F")
)

// Logo lines — clean block font, no box-drawing corners
var logoLines = []string{
	" ██  ██  ███████ ██   ██ ██ ██████   █████ ",
	" ███ ██  ██       ██ ██  ██ ██   ██ ██   ██",
	" ██████  █████     ███   ██ ██████  ███████",
	" ██ ███  ██       ██ ██  ██ ██   ██ ██   ██",
	" ██  ██  ███████ ██   ██ ██ ██   ██ ██   ██",
}

// Gradient colors top→bottom (cyan → blue → violet)
var logoGradient = []lipgloss.Color{
	lipgloss.Color("#00FFFF"),
	lipgloss.Color("#00CFFF"),
	lipgloss.Color("#009FFF"),
	lipgloss.Color("#006FFF"),
	lipgloss.Color("#5F5FFF"),
}

// BannerInfo carries dynamic stats shown in the welcome banner
type BannerInfo struct {
	AIName        string
	AwaitingName  bool
	Model         string
	AgeDays       int
	Relationship  string
	Conversations int64
}

// RenderBanner returns the styled welcome banner with gradient logo
func RenderBanner(info BannerInfo, width int) string {
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite)
	tipStyle := lipgloss.NewStyle().Foreground(colorDim)
	versionStyle := lipgloss.NewStyle().Foreground(colorDimCyan)

	// Render gradient logo
	var logo string
	if width >= 48 {
		for i, line := range logoLines {
			c := logoGradient[i%len(logoGradient)]
			logo += lipgloss.NewStyle().Foreground(c).Bold(true).Render(line) + "\n"
		}
	} else {
		// Compact fallback
		logo = lipgloss.NewStyle().Foreground(colorCyan).Bold(true).Render(" ◇  N E X I R A") + "\n"
	}

	ver := versionStyle.Render(fmt.Sprintf("  v%s", appVersion))

	name := info.AIName
	if info.AwaitingName {
		name += " (still waiting for a real name)"
	}
	nameLine := fmt.Sprintf("  %s %s",
		labelStyle.Render("Name "),
		valueStyle.Render(name),
	)
	modelLine := fmt.Sprintf("  %s %s",
		labelStyle.Render("Model"),
		valueStyle.Render(info.Model),
	)
	ageLine := fmt.Sprintf("  %s %s",
		labelStyle.Render("Age  "),
		valueStyle.Render(fmt.Sprintf("%d days · %s · %d conversations", info.AgeDays, info.Relationship, info.Conversations)),
	)

	tips := tipStyle.Render("  Enter 对话 · /help 命令 · Ctrl+C 退出")

	return fmt.Sprintf("\n%s%s\n\n%s\n%s\n%s\n\n%s\n",
		logo, ver,
		nameLine, modelLine, ageLine,
		tips,
	)
}
