// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func run(root *Command, args ...string) error {
	return root.Execute(context.Background(), args, nil)
}

func TestExecuteDispatchesNestedSubcommands(t *testing.T) {
	var called string
	var received []string
	root := &Command{
		Name: "agora",
		Subcommands: []*Command{
			{
				Name: "posts",
				Subcommands: []*Command{
					{Name: "list", Run: func(_ context.Context, args []string, _ *slog.Logger) error {
						called = "posts list"
						return nil
					}},
					{Name: "show", Run: func(_ context.Context, args []string, _ *slog.Logger) error {
						called, received = "posts show", args
						return nil
					}},
				},
			},
		},
	}

	if err := run(root, "posts", "show", "42"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "posts show" || len(received) != 1 || received[0] != "42" {
		t.Errorf("called %q with %v", called, received)
	}
}

type listParams struct {
	JSONOutput
	Page    int           `flag:"page,p" desc:"page number" default:"1"`
	Tags    []string      `flag:"tag" desc:"tag filter"`
	Wait    time.Duration `flag:"wait" desc:"wait time" default:"2s"`
	Verbose bool          `flag:"verbose" desc:"chatty output"`
	Topic   string        `flag:"topic" desc:"post topic" required:"true"`
}

func TestExecuteBindsParams(t *testing.T) {
	var params listParams
	var positional []string
	command := &Command{
		Name:   "list",
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			positional = args
			return nil
		},
	}

	if err := run(command, "-p", "3", "--tag", "go", "--tag", "rust,c", "--topic", "Hello", "--json", "extra"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if params.Page != 3 || params.Wait != 2*time.Second || params.Verbose || !params.OutputJSON {
		t.Errorf("params = %+v", params)
	}
	if len(params.Tags) != 2 || params.Tags[1] != "rust,c" {
		t.Errorf("tags = %q, want values kept whole", params.Tags)
	}
	if params.Topic != "Hello" || len(positional) != 1 || positional[0] != "extra" {
		t.Errorf("topic %q args %v", params.Topic, positional)
	}
}

func TestExecuteRequiredFlag(t *testing.T) {
	var params listParams
	command := &Command{
		Name:   "list",
		Params: func() any { return &params },
		Run:    func(context.Context, []string, *slog.Logger) error { return nil },
	}
	err := run(command, "--page", "2")
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Category != CategoryValidation {
		t.Fatalf("error = %v, want validation", err)
	}
	if !strings.Contains(err.Error(), "--topic is required") {
		t.Errorf("error = %q", err)
	}
}

func TestExecuteSuggestions(t *testing.T) {
	var params listParams
	root := &Command{
		Name: "agora",
		Subcommands: []*Command{
			{Name: "posts", Params: func() any { return &params }, Run: func(context.Context, []string, *slog.Logger) error { return nil }},
			{Name: "profile"},
			{Name: "search"},
		},
	}

	tests := []struct {
		name    string
		args    []string
		want    string
		suggest bool
	}{
		{"command typo", []string{"psots"}, `did you mean "posts"`, true},
		{"distant command", []string{"zzzzzzzz"}, "unknown command", false},
		{"flag typo", []string{"posts", "--topci", "x"}, "did you mean --topic", true},
		{"distant flag", []string{"posts", "--qqqqqqqqq"}, "unknown flag", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := run(root, test.args...)
			if err == nil {
				t.Fatal("Execute succeeded")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error = %q, want %q", err, test.want)
			}
			if strings.Contains(err.Error(), "did you mean") != test.suggest {
				t.Errorf("suggestion presence wrong in %q", err)
			}
			if !strings.Contains(err.Error(), "--help") {
				t.Errorf("error %q lacks a help pointer", err)
			}
		})
	}
}

func TestHelpOutput(t *testing.T) {
	var output bytes.Buffer
	var params listParams
	ran := false
	root := &Command{
		Name:   "agora",
		Output: &output,
		Subcommands: []*Command{
			{
				Name:     "list",
				Summary:  "List posts",
				Params:   func() any { return &params },
				Examples: []Example{{Description: "Second page", Command: "agora list --page 2"}},
				Run: func(context.Context, []string, *slog.Logger) error {
					ran = true
					return nil
				},
			},
		},
	}

	if err := run(root, "--help"); err != nil {
		t.Fatalf("root help: %v", err)
	}
	if !strings.Contains(output.String(), "list   List posts") {
		t.Errorf("root help missing command table:\n%s", output.String())
	}

	output.Reset()
	if err := run(root, "list", "-h"); err != nil {
		t.Fatalf("list help: %v", err)
	}
	for _, want := range []string{"Usage:\n  agora list [flags]", "--page", "# Second page"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("list help missing %q:\n%s", want, output.String())
		}
	}
	if ran {
		t.Error("help ran the command")
	}
}

func TestGroupWithoutSubcommand(t *testing.T) {
	var output bytes.Buffer
	root := &Command{Name: "agora", Output: &output, Subcommands: []*Command{{Name: "posts", Summary: "Posts"}}}
	err := run(root)
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(output.String(), "Commands:") {
		t.Error("help not printed for bare group")
	}
}

func TestLoggerCarriesCommandPath(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	root := &Command{
		Name: "agora",
		Subcommands: []*Command{{
			Name: "chats",
			Subcommands: []*Command{{
				Name: "send",
				Run: func(_ context.Context, _ []string, logger *slog.Logger) error {
					logger.Info("sent")
					return nil
				},
			}},
		}},
	}
	if err := root.Execute(context.Background(), []string{"chats", "send"}, logger); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(logs.String(), "command=chats/send") {
		t.Errorf("log = %q", logs.String())
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"posts", "posts", 0},
		{"psots", "posts", 2},
		{"chat", "chats", 1},
		{"kitten", "sitting", 3},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}
