// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/agora-forum/agora/cmd/agora/cli"
	"github.com/agora-forum/agora/lib/version"
)

// Root builds the complete agora command tree.
func Root(app *App) *cli.Command {
	return &cli.Command{
		Name: "agora",
		Description: `agora: a terminal client for the Agora forum.

Read and write posts, comment, like, search, chat and manage your
profile from the command line, or open the full-screen UI with
'agora tui'.

Global flags (before the command):
  --config <path>   configuration file (default $XDG_CONFIG_HOME/agora/config.yaml)
  --api-url <url>   forum API base URL, overriding the configuration
  -v, --verbose     debug logging on stderr`,
		Output: app.Stderr,
		Subcommands: []*cli.Command{
			loginCommand(app),
			registerCommand(app),
			logoutCommand(app),
			whoamiCommand(app),
			postsCommand(app),
			usersCommand(app),
			searchCommand(app),
			chatsCommand(app),
			profileCommand(app),
			draftsCommand(app),
			cacheCommand(app),
			tuiCommand(app),
			versionCommand(app),
		},
		Examples: []cli.Example{
			{Description: "Sign in (saves the session locally)", Command: "agora login alice@example.com"},
			{Description: "Read the newest posts", Command: "agora posts list"},
			{Description: "Follow a post's comments live", Command: "agora posts watch 42"},
			{Description: "Open the full-screen UI", Command: "agora tui"},
			{Description: "Use another server for one command", Command: "agora --api-url http://localhost:8000 posts list"},
		},
	}
}

type versionParams struct {
	cli.JSONOutput
}

type versionResult struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	GitDirty  bool   `json:"git_dirty"`
	BuildTime string `json:"build_time"`
}

func versionCommand(app *App) *cli.Command {
	var params versionParams
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Params:  func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			result := versionResult{
				Version:   version.Version,
				GitCommit: version.GitCommit,
				GitDirty:  version.GitDirty == "true",
				BuildTime: version.BuildTime,
			}
			if done, err := params.EmitJSON(app.Stdout, result); done {
				return err
			}
			fmt.Fprintf(app.Stdout, "agora %s\n", version.Full())
			return nil
		},
	}
}

// Run parses the global flags and executes the command named by the
// remaining arguments.
func Run(ctx context.Context, app *App, args []string) error {
	flags := pflag.NewFlagSet("agora", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.Usage = func() {}
	flags.StringVar(&app.ConfigPath, "config", app.ConfigPath, "configuration file")
	flags.StringVar(&app.APIURL, "api-url", app.APIURL, "forum API base URL")
	flags.BoolVarP(&app.Verbose, "verbose", "v", app.Verbose, "debug logging")
	flags.BoolP("help", "h", false, "show help")
	if err := flags.Parse(args); err != nil {
		return cli.Validation("%v", err).WithHint("Run 'agora --help' for usage.")
	}
	rest := flags.Args()
	if help, _ := flags.GetBool("help"); help {
		rest = append([]string{"--help"}, rest...)
	}

	if app.LogLevel == nil {
		app.LogLevel = new(slog.LevelVar)
	}
	app.LogLevel.Set(slog.LevelWarn)
	if app.Verbose {
		app.LogLevel.Set(slog.LevelDebug)
	}
	logger := cli.NewCommandLogger(app.Stderr, app.LogLevel)
	return Root(app).Execute(ctx, rest, logger)
}
