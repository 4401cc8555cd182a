// Package setup implements the interactive `agendasync init` wizard that
// connects to a booking API and writes the configuration file.
package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Prompter provides reusable terminal prompts backed by an io.Reader/Writer
// pair. In production these are os.Stdin and os.Stdout; tests inject buffers
// for deterministic input.
type Prompter struct {
	r       io.Reader
	scanner *bufio.Scanner
	w       io.Writer
}

// NewPrompter creates a Prompter wired to the given reader and writer.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{r: r, scanner: bufio.NewScanner(r), w: w}
}

// String prompts the user for a text value. If the user presses Enter without
// typing anything, defaultVal is returned. An empty defaultVal means the field
// is required and the prompt repeats until a non-empty value is given.
func (p *Prompter) String(label, defaultVal string) string {
	for {
		if defaultVal != "" {
			_, _ = fmt.Fprintf(p.w, "  %s [%s]: ", label, defaultVal)
		} else {
			_, _ = fmt.Fprintf(p.w, "  %s: ", label)
		}

		if !p.scanner.Scan() {
			return defaultVal
		}

		val := strings.TrimSpace(p.scanner.Text())
		if val == "" {
			if defaultVal != "" {
				return defaultVal
			}
			_, _ = fmt.Fprintf(p.w, "  (required, please enter a value)\n")
			continue
		}
		return val
	}
}

// Secret prompts for a sensitive value such as a token or password. Input is
// not echoed when the reader is a terminal. When required is false an empty
// answer is accepted.
func (p *Prompter) Secret(label string, required bool) string {
	for {
		_, _ = fmt.Fprintf(p.w, "  %s: ", label)

		val, ok := p.readSecret()
		if !ok {
			return ""
		}
		if val == "" && required {
			_, _ = fmt.Fprintf(p.w, "  (required, please enter a value)\n")
			continue
		}
		return val
	}
}

// readSecret reads one line without echo when possible.
func (p *Prompter) readSecret() (string, bool) {
	if f, ok := p.r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(p.w)
		if err != nil {
			return "", false
		}
		return strings.TrimSpace(string(b)), true
	}
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

// Confirm asks a yes/no question. defaultYes controls what happens when the
// user presses Enter without typing: true means yes, false means no.
func (p *Prompter) Confirm(label string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	_, _ = fmt.Fprintf(p.w, "  %s %s: ", label, hint)

	if !p.scanner.Scan() {
		return defaultYes
	}

	answer := strings.TrimSpace(strings.ToLower(p.scanner.Text()))
	if answer == "" {
		return defaultYes
	}
	return answer == "y" || answer == "yes" || answer == "s" || answer == "si"
}

// Select presents a numbered list and asks the user to pick one. Enter picks
// def. Returns the zero-based index of the chosen option.
func (p *Prompter) Select(label string, options []string, def int) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("no options to select from")
	}
	if def < 0 || def >= len(options) {
		def = 0
	}

	_, _ = fmt.Fprintf(p.w, "  %s:\n", label)
	for i, opt := range options {
		_, _ = fmt.Fprintf(p.w, "    %d) %s\n", i+1, opt)
	}

	for {
		_, _ = fmt.Fprintf(p.w, "  Choice [%d]: ", def+1)

		if !p.scanner.Scan() {
			return -1, fmt.Errorf("no input")
		}

		val := strings.TrimSpace(p.scanner.Text())
		if val == "" {
			return def, nil
		}
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 || n > len(options) {
			_, _ = fmt.Fprintf(p.w, "  (enter a number between 1 and %d)\n", len(options))
			continue
		}
		return n - 1, nil
	}
}
