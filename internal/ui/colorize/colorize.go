// Package colorize renders command text, decisions and stack frames for the
// terminal.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

// ShellDark is the theme for highlighted command text.
var ShellDark = styles.Register(chroma.MustNewStyle("raspguard-shell", chroma.StyleEntries{
	chroma.Text:          "#FFFFFF",
	chroma.Background:    "bg:#000000",
	chroma.Comment:       "#808080",
	chroma.Keyword:       "#FFC800",
	chroma.NameBuiltin:   "#FFC800",
	chroma.Name:          "#FFFFFF",
	chroma.NameVariable:  "#87CEEB",
	chroma.LiteralString: "#00FF00",
	chroma.LiteralNumber: "#FF80C0",
	chroma.Operator:      "#FF8000",
	chroma.Punctuation:   "#FF8000",
}))

var (
	allowBadge = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10"))
	blockBadge = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9"))
	summaryBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)

// IsDisabled returns true if colors are disabled via environment
func IsDisabled() bool {
	return os.Getenv("RASPGUARD_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

func getShellLexer() chroma.Lexer {
	for _, name := range []string{"bash", "sh", "shell"} {
		if lexer := lexers.Get(name); lexer != nil {
			return chroma.Coalesce(lexer)
		}
	}
	return nil
}

func getTerminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Command highlights command text as shell.
func Command(cmd string) string {
	if IsDisabled() {
		return cmd
	}
	lexer := getShellLexer()
	if lexer == nil {
		return cmd
	}

	iterator, err := lexer.Tokenise(nil, cmd)
	if err != nil {
		return cmd
	}
	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, ShellDark, iterator); err != nil {
		return cmd
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Decision renders an ALLOW or BLOCK badge.
func Decision(blocked bool) string {
	label, style := "ALLOW", allowBadge
	if blocked {
		label, style = "BLOCK", blockBadge
	}
	if IsDisabled() {
		return "[" + label + "]"
	}
	return style.Render(label)
}

// Keyword formats a matched keyword in red (high visibility)
func Keyword(kw string) string {
	if IsDisabled() {
		return kw
	}
	return fmt.Sprintf("\033[38;2;255;80;80m%s\033[0m", kw)
}

// Target formats a target name in yellow
func Target(name string) string {
	if IsDisabled() {
		return name
	}
	return fmt.Sprintf("\033[38;2;255;200;0m%s\033[0m", name)
}

// Detail formats detail text in light gray
func Detail(detail string) string {
	if IsDisabled() {
		return detail
	}
	return fmt.Sprintf("\033[38;2;180;180;180m%s\033[0m", detail)
}

// Header formats header text in blue
func Header(s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;86;156;214m%s\033[0m", s)
}

// Error formats error messages in pink
func Error(s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;255;128;192m%s\033[0m", s)
}

// Summary draws lines inside a rounded box.
func Summary(lines []string) string {
	body := strings.Join(lines, "\n")
	if IsDisabled() {
		return body
	}
	return summaryBox.Render(body)
}
