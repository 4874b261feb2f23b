package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/chazu/ellapad/compiler"
	"github.com/chazu/ellapad/runner"
)

const (
	promptMain  = "ella> "
	promptCont  = "  ... "
	historyFile = ".ella_history"
)

const (
	ansiRed   = "\x1b[31m"
	ansiDim   = "\x1b[2m"
	ansiReset = "\x1b[0m"
)

func runREPL(verbose bool) {
	fmt.Println("ella REPL (:quit to exit, :reset for a fresh session)")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	color := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	session := runner.NewSession()

	for {
		code, ok := readBalanced(ln)
		if !ok {
			fmt.Println()
			return
		}

		switch strings.TrimSpace(code) {
		case "":
			continue
		case ":quit":
			return
		case ":reset":
			session = runner.NewSession()
			fmt.Println("session reset")
			continue
		case ":globals":
			for _, sym := range session.Globals() {
				_, ty, _ := session.Lookup(sym.Name)
				fmt.Printf("%3d  %-14s %-8s %s\n", sym.Slot, sym.Name, sym.Kind, ty)
			}
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		out := newTranscriptWriter(os.Stdout, color)
		_, err := session.Run(code, runner.NewSubscription(out.Update))
		if runner.IsCompileError(err) {
			fmt.Fprint(os.Stderr, paint(color, ansiRed, err.Error()))
		} else if err != nil && !runner.IsRuntimeError(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		if verbose {
			fmt.Printf("(%d globals, %d runs)\n", len(session.Globals()), session.Runs())
		}
	}
}

// readBalanced reads lines until every brace opened in the input has been
// closed. It reports false at end of input.
func readBalanced(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl-C drops the pending input.
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		if braceDepth(b.String()) <= 0 {
			return b.String(), true
		}
	}
}

// braceDepth returns the number of unclosed braces in text. Braces inside
// strings and comments do not count.
func braceDepth(text string) int {
	lexer := compiler.NewLexer(text)
	depth := 0
	for {
		switch lexer.NextToken().Type {
		case compiler.TokenEOF:
			return depth
		case compiler.TokenLBrace:
			depth++
		case compiler.TokenRBrace:
			depth--
		}
	}
}

// transcriptWriter prints the part of a growing transcript it has not
// printed yet. Update is a Subscription callback.
type transcriptWriter struct {
	w       io.Writer
	color   bool
	written int
}

func newTranscriptWriter(w io.Writer, color bool) *transcriptWriter {
	return &transcriptWriter{w: w, color: color}
}

func (t *transcriptWriter) Update(transcript string) {
	if len(transcript) <= t.written {
		return
	}
	fmt.Fprint(t.w, colorize(t.color, transcript[t.written:]))
	t.written = len(transcript)
}

// colorize marks runtime errors red and the timing line dim.
func colorize(color bool, text string) string {
	if !color {
		return text
	}
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	inError := false
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "runtime error: "):
			inError = true
			b.WriteString(paint(true, ansiRed, line))
		case inError && strings.HasPrefix(line, "   --> "):
			b.WriteString(paint(true, ansiRed, line))
		case strings.HasPrefix(line, "[INFO] "):
			inError = false
			b.WriteString(paint(true, ansiDim, line))
		default:
			inError = false
			b.WriteString(line)
		}
	}
	return b.String()
}

// paint wraps text in an ANSI colour, keeping a trailing newline outside
// the escape.
func paint(color bool, code, text string) string {
	if !color || text == "" {
		return text
	}
	body := strings.TrimSuffix(text, "\n")
	return code + body + ansiReset + text[len(body):]
}
