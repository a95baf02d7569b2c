// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/agora-forum/agora/lib/secret"
)

// Prompter asks the user for input. On a terminal passwords are read
// without echo; otherwise (pipes, tests) each answer is one line of In.
type Prompter struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// Password prompts for a secret and returns it in a locked buffer the
// caller must Close. An empty answer is an error.
func (p *Prompter) Password(label string) (*secret.Buffer, error) {
	fmt.Fprintf(p.Out, "%s: ", label)

	var raw []byte
	if file, ok := p.In.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		read, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(p.Out)
		if err != nil {
			return nil, Internal("reading %s: %w", strings.ToLower(label), err)
		}
		raw = read
	} else {
		line, err := p.line()
		if err != nil {
			return nil, err
		}
		raw = []byte(line)
	}

	if len(raw) == 0 {
		return nil, Validation("%s is empty", label)
	}
	buffer, err := secret.NewFromBytes(raw)
	if err != nil {
		secret.Zero(raw)
		return nil, Internal("protecting %s: %w", strings.ToLower(label), err)
	}
	return buffer, nil
}

// Line prompts for a line of visible text.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprintf(p.Out, "%s: ", label)
	return p.line()
}

// Confirm asks a yes/no question; only "y" or "yes" confirm.
func (p *Prompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.Out, "%s [y/N]: ", question)
	answer, err := p.line()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (p *Prompter) line() (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", Validation("no input")
		}
		return "", Internal("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
