package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

// These variables are populated via the Go linker.
var (
	version string
	commit  string
	branch  string
)

func init() {
	// If commit or branch are not set, make that clear.
	if commit == "" {
		commit = "unknown"
	}
	if branch == "" {
		branch = "unknown"
	}
}

func main() {
	m := NewMain()
	if err := m.Run(os.Args...); err != nil {
		fmt.Fprintln(m.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program execution.
type Main struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewMain return a new instance of Main.
func NewMain() *Main {
	return &Main{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run runs the command named by the CLI args, args[0] being the program name.
func (m *Main) Run(args ...string) error {
	return m.newApp().Run(args)
}

func (m *Main) newApp() *cli.App {
	return &cli.App{
		Name:      "opsgenie-notify",
		Usage:     "Route error tracking issues to OpsGenie",
		UsageText: "opsgenie-notify [global options] command [command options]",
		Version:   fmt.Sprintf("%s (git: %s %s)", version, branch, commit),
		Reader:    m.Stdin,
		Writer:    m.Stdout,
		ErrWriter: m.Stderr,
		Metadata:  make(map[string]interface{}),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      "config",
				Aliases:   []string{"c"},
				Usage:     "Path to the configuration file",
				EnvVars:   []string{"OPSGENIE_NOTIFY_CONFIG_PATH"},
				TakesFile: true,
			},
		},
		Commands: []*cli.Command{
			newConfigCmd(),
			newAccountsCmd(),
			newRuleCmd(),
			newFireCmd(),
			newTestCmd(),
		},
	}
}
