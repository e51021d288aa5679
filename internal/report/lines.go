package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/coral-mesh/irscan/internal/chain"
)

var (
	// Styles.
	markerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	targetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	addrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Lines writes one report line per event:
//
//	~ <binary>:<marker> => <function> (0x<addr>)
//	~ <binary>:<target> => 0x<addr>
//	~ <binary>:<target> => <function> (0x<addr>)
//	! <binary>:<name>: <reason>
//
// Chained targets are indented by their depth. Lines is safe for
// concurrent use.
type Lines struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

var _ chain.Reporter = (*Lines)(nil)

// NewLines creates a Lines reporter. color enables terminal styling.
func NewLines(w io.Writer, color bool) *Lines {
	return &Lines{w: w, color: color}
}

// NewTerminalLines creates a Lines reporter styled only when w itself is a
// terminal.
func NewTerminalLines(w io.Writer) *Lines {
	return NewLines(w, IsTerminal(w))
}

func (l *Lines) Located(binary string, m chain.MarkerResult) {
	l.printf(0, "~ %s => %s (%s)",
		l.style(dimStyle, binary+":")+l.style(markerStyle, m.Marker),
		m.Function,
		l.style(addrStyle, hex(m.Address)))
}

func (l *Lines) Matched(binary string, t chain.TargetResult) {
	name := l.style(dimStyle, binary+":") + l.style(targetStyle, t.Target)
	if !t.HasCapture {
		l.printf(t.Depth, "~ %s => %s", name, l.style(dimStyle, fmt.Sprintf("matched pattern %d", t.PatternIndex)))
		return
	}
	l.printf(t.Depth, "~ %s => %s", name, l.style(addrStyle, hex(t.Address)))
}

func (l *Lines) Resolved(binary string, t chain.TargetResult) {
	l.printf(t.Depth, "~ %s => %s (%s)",
		l.style(dimStyle, binary+":")+l.style(targetStyle, t.Target),
		t.Function,
		l.style(addrStyle, hex(t.Address)))
}

func (l *Lines) Failed(binary string, f chain.Failure) {
	l.printf(0, "%s %s: %s",
		l.style(failStyle, "!"),
		l.style(dimStyle, binary+":")+l.style(failStyle, f.Name),
		f.Reason)
}

func (l *Lines) style(s lipgloss.Style, text string) string {
	if !l.color {
		return text
	}
	return s.Render(text)
}

func (l *Lines) printf(depth int, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.w, strings.Repeat("  ", depth)+format+"\n", args...)
}
