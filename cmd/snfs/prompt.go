package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// termPrompter reads secrets from the controlling terminal. Piped input is
// read a line at a time.
type termPrompter struct {
	in  *os.File
	out io.Writer
	r   *bufio.Reader
}

func newTermPrompter() *termPrompter {
	return &termPrompter{in: os.Stdin, out: os.Stderr, r: bufio.NewReader(os.Stdin)}
}

func (p *termPrompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	s, err := p.r.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(s), nil
}

// Username asks for the account email.
func (p *termPrompter) Username(ctx context.Context) (string, error) {
	return p.line("Username: ")
}

func (p *termPrompter) Password(ctx context.Context, username string) (string, error) {
	prompt := fmt.Sprintf("Password for %s: ", username)
	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		return p.line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

func (p *termPrompter) MFACode(ctx context.Context, message string) (string, error) {
	if message != "" {
		fmt.Fprintln(p.out, message)
	}
	return p.line("Two-factor code: ")
}
