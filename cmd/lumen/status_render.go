package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"lumen/internal/library"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// detailWidth lines up the values across "show" and "status" detail lines.
const (
	detailIndent = "  "
	detailWidth  = 20
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

func (k statusKind) tag() string {
	switch k {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (k statusKind) color() string {
	switch k {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ansiBlue
	}
}

// renderStatusLine renders one "Label: [TAG] value" detail line. Only the tag
// is colored so the values stay copyable from a terminal.
func renderStatusLine(label string, kind statusKind, value string, colorize bool) string {
	tag := "[" + kind.tag() + "]"
	if colorize {
		if c := kind.color(); c != "" {
			tag = c + tag + ansiReset
		}
	}
	line := detailIndent + fmt.Sprintf("%-*s", detailWidth, label+":") + " " + tag
	if value != "" {
		line += " " + value
	}
	return line
}

// renderSectionHeader renders a section title over a rule of matching width.
func renderSectionHeader(title string, colorize bool) []string {
	title = strings.TrimSpace(title)
	rule := strings.Repeat("=", len(title))
	if colorize {
		title = ansiBlue + title + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{title, rule}
}

// renderStageState maps a stage state to its uppercase, optionally colored
// table cell.
func renderStageState(state library.StageState, colorize bool) string {
	label := strings.ToUpper(string(state))
	if !colorize {
		return label
	}
	var c string
	switch state {
	case library.StageCompleted:
		c = ansiGreen
	case library.StageRunning:
		c = ansiBlue
	case library.StageFailed:
		c = ansiRed
	case library.StagePending:
		c = ansiYellow
	}
	if c == "" {
		return label
	}
	return c + label + ansiReset
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
