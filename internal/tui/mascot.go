package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/amirbrooks/fivetask/internal/mood"
)

var (
	colorBlue   = lipgloss.Color("51")
	colorPurple = lipgloss.Color("99")
	colorPink   = lipgloss.Color("205")
	colorRed    = lipgloss.Color("203")
	colorGreen  = lipgloss.Color("42")
	colorMuted  = lipgloss.Color("244")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorMuted)
	slotsStyle    = lipgloss.NewStyle().Foreground(colorBlue)
	slotsFull     = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(colorPink).Bold(true)
	doneStyle     = lipgloss.NewStyle().Foreground(colorMuted).Strikethrough(true)
	ageStyle      = lipgloss.NewStyle().Foreground(colorMuted)
	staleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(colorRed).Bold(true).Padding(0, 1)
	emptyStyle    = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	statusStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	toastStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("236")).Padding(0, 1)
	toastKeyStyle = lipgloss.NewStyle().Foreground(colorBlue).Background(lipgloss.Color("236")).Bold(true)
)

var asciiBorder = lipgloss.Border{
	Top: "-", Bottom: "-", Left: "|", Right: "|",
	TopLeft: "+", TopRight: "+", BottomLeft: "+", BottomRight: "+",
}

var faces = map[mood.Mood][]string{
	mood.Happy:    {` ,,,,, `, `( ^ᴗ^ )`, ` \ ~ / `},
	mood.Thinking: {` ,,,,, `, `( ・_・)`, ` \ _ /?`},
	mood.Excited:  {` ,,,,, `, `( ★ᴗ★ )`, `\\ o //`},
	mood.Shocked:  {` ,,,,, `, `( ⊙_⊙ )`, ` \ O / `},
}

var asciiFaces = map[mood.Mood][]string{
	mood.Happy:    {` ,,,,, `, `( ^_^ )`, ` \ ~ / `},
	mood.Thinking: {` ,,,,, `, `( o_o )`, ` \ _ /?`},
	mood.Excited:  {` ,,,,, `, `( *o* )`, `\\ o //`},
	mood.Shocked:  {` ,,,,, `, `( O_O )`, ` \ O / `},
}

func moodColor(m mood.Mood) lipgloss.Color {
	switch m {
	case mood.Happy:
		return colorGreen
	case mood.Excited:
		return colorPurple
	case mood.Shocked:
		return colorRed
	default:
		return colorBlue
	}
}

// renderMascot draws the face next to a speech bubble holding quote.
func renderMascot(m mood.Mood, quote string, width int, ascii bool) string {
	set := faces
	border := lipgloss.RoundedBorder()
	if ascii {
		set = asciiFaces
		border = asciiBorder
	}
	face, ok := set[m]
	if !ok {
		face = set[mood.Thinking]
	}
	faceView := lipgloss.NewStyle().Foreground(moodColor(m)).Bold(true).Render(strings.Join(face, "\n"))

	bubbleWidth := width - lipgloss.Width(faceView) - 6
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}
	if bubbleWidth > 60 {
		bubbleWidth = 60
	}
	bubble := lipgloss.NewStyle().
		Border(border).
		BorderForeground(moodColor(m)).
		Padding(0, 1).
		Width(bubbleWidth).
		Render(`"` + quote + `"`)
	return lipgloss.JoinHorizontal(lipgloss.Center, faceView, "  ", bubble)
}

func dialogStyle(ascii bool) lipgloss.Style {
	border := lipgloss.RoundedBorder()
	if ascii {
		border = asciiBorder
	}
	return lipgloss.NewStyle().
		Border(border).
		BorderForeground(colorRed).
		Padding(0, 2).
		Width(50)
}
