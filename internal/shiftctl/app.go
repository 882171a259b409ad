// Package shiftctl implements the shiftctl command line tool: offline
// scoring of answer files and uploads to a running server.
package shiftctl

import (
	"context"
	"net/http"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/okian/shift/pkg/logger"
)

const (
	debugFlag   = "debug"
	formatFlag  = "format"
	prettyFlag  = "pretty"
	catalogFlag = "catalog"
	answersFlag = "answers"
	urlFlag     = "url"
	emailFlag   = "email"
	countFlag   = "count"
	workersFlag = "workers"
	replayFlag  = "replay"

	defaultServerURL = "http://localhost:9080"
)

var version = "v0.0.1-default"

// Flags are built per command tree; urfave flags keep parse state.
func prettyFlagDef() cli.Flag {
	return &cli.BoolFlag{Name: prettyFlag, Usage: "Indent JSON output"}
}

func urlFlagDef() cli.Flag {
	return &cli.StringFlag{Name: urlFlag, Usage: "Base URL of the shift server", Value: defaultServerURL}
}

func answersFlagDef() cli.Flag {
	return &cli.StringFlag{
		Name:     answersFlag,
		Usage:    "Path to the answers file: a list of {questionId, value, pillar}",
		Required: true,
	}
}

// NewCommand builds the root command. hc is used by submit; nil means a
// default client.
func NewCommand(hc *http.Client) *cli.Command {
	return &cli.Command{
		Name:    "shiftctl",
		Usage:   "Score SHIFT ESG self-assessments",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: debugFlag, Usage: "Prints verbose logs (optional, default: false)"},
			&cli.StringFlag{Name: formatFlag, Usage: "Output format [json, yaml]", Value: formatJSON},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
				return ctx, err
			}
			if cmd.Bool(debugFlag) {
				_ = logger.SetLevelString("debug")
			} else {
				_ = logger.SetLevelString("warn")
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			scoreCmd(),
			submitCmd(hc),
			loadCmd(hc),
		},
	}
}

// Execute runs the CLI with the process arguments.
func Execute(ctx context.Context) error {
	return NewCommand(nil).Run(ctx, os.Args)
}

func scoreCmd() *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "Score an answers file against a catalog without a server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: catalogFlag, Usage: "Path to the question catalog (YAML or JSON)", Required: true},
			answersFlagDef(),
			prettyFlagDef(),
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			report, err := ScoreFiles(cmd.String(catalogFlag), cmd.String(answersFlag))
			if err != nil {
				return err
			}
			return write(cmd.Root().Writer, cmd.String(formatFlag), cmd.Bool(prettyFlag), report)
		},
	}
}

func submitCmd(hc *http.Client) *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Upload an answers file to a running server and print its score",
		Flags: []cli.Flag{
			urlFlagDef(),
			answersFlagDef(),
			&cli.StringFlag{Name: emailFlag, Usage: "Owner email of the new assessment (optional)"},
			prettyFlagDef(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			answers, err := LoadAnswers(cmd.String(answersFlag))
			if err != nil {
				return err
			}
			res, err := Submit(ctx, NewClient(cmd.String(urlFlag), hc), cmd.String(emailFlag), answers)
			if err != nil {
				return err
			}
			return write(cmd.Root().Writer, cmd.String(formatFlag), cmd.Bool(prettyFlag), res)
		},
	}
}

func loadCmd(hc *http.Client) *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "Create generated assessments concurrently and verify the server's scores",
		Flags: []cli.Flag{
			urlFlagDef(),
			&cli.IntFlag{Name: countFlag, Usage: "Number of assessments", Value: DefaultLoadAssessments},
			&cli.IntFlag{Name: workersFlag, Usage: "Concurrent assessments", Value: DefaultLoadWorkers},
			&cli.BoolFlag{Name: replayFlag, Usage: "Replay one submission per assessment and expect a duplicate"},
			prettyFlagDef(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			stats, err := RunLoad(ctx, NewClient(cmd.String(urlFlag), hc), LoadOptions{
				Assessments: cmd.Int(countFlag),
				Workers:     cmd.Int(workersFlag),
				Resubmit:    cmd.Bool(replayFlag),
			})
			if werr := write(cmd.Root().Writer, cmd.String(formatFlag), cmd.Bool(prettyFlag), stats); werr != nil {
				return werr
			}
			return err
		},
	}
}
