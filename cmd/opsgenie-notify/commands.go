package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/influxdata/opsgenie-notify/alert"
	"github.com/influxdata/opsgenie-notify/models"
	"github.com/influxdata/opsgenie-notify/server"
	"github.com/influxdata/opsgenie-notify/services/diagnostic"
	"github.com/influxdata/opsgenie-notify/services/opsgenie"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func loadConfig(ctx *cli.Context) (*server.Config, error) {
	c, err := server.ParseConfig(ctx.String("config"))
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnvOverrides(); err != nil {
		return nil, errors.Wrap(err, "failed to apply env overrides")
	}
	return c, nil
}

// withServer opens a server for the duration of the command, see closeServer.
func withServer() cli.BeforeFunc {
	return func(ctx *cli.Context) error {
		c, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		d := diagnostic.NewService(c.Logging, ctx.App.Writer, ctx.App.ErrWriter)
		if err := d.Open(); err != nil {
			return errors.Wrap(err, "failed to open diagnostic service")
		}
		s, err := server.New(c, server.BuildInfo{Version: version, Commit: commit, Branch: branch}, d)
		if err != nil {
			d.Close()
			return err
		}
		if err := s.Open(); err != nil {
			d.Close()
			return err
		}
		ctx.App.Metadata["server"] = s
		ctx.App.Metadata["diag"] = d
		return nil
	}
}

func closeServer(ctx *cli.Context) error {
	if s, ok := ctx.App.Metadata["server"].(*server.Server); ok {
		s.Close()
		delete(ctx.App.Metadata, "server")
	}
	if d, ok := ctx.App.Metadata["diag"].(*diagnostic.Service); ok {
		d.Close()
		delete(ctx.App.Metadata, "diag")
	}
	return nil
}

func getServer(ctx *cli.Context) *server.Server {
	s, ok := ctx.App.Metadata["server"].(*server.Server)
	if !ok {
		panic("missing server")
	}
	return s
}

func commonFlags() []cli.Flag {
	return []cli.Flag{&cli.BoolFlag{
		Name:  "json",
		Usage: "Output data as JSON",
	}}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// priorityUsage lists the priorities a rule may set.
func priorityUsage() string {
	names := make([]string, 0, 5)
	for _, p := range alert.Priorities() {
		names = append(names, string(p))
	}
	return "one of " + strings.Join(names, ", ") + ", mapped from the event level when empty"
}

func newConfigCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Display the configuration, defaults are shown when no configuration file is given",
		Action: func(ctx *cli.Context) error {
			c, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			return c.Encode(ctx.App.Writer)
		},
	}
}

func newAccountsCmd() *cli.Command {
	return &cli.Command{
		Name:  "accounts",
		Usage: "OpsGenie account management commands",
		Subcommands: []*cli.Command{
			newAccountsListCmd(),
			newAccountsAddCmd(),
			newAccountsDeleteCmd(),
		},
	}
}

func newAccountsListCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List accounts",
		Aliases: []string{"ls"},
		Flags: append(commonFlags(), &cli.StringFlag{
			Name:  "org",
			Usage: "Only list the accounts of the organization",
		}),
		Before: withServer(),
		After:  closeServer,
		Action: func(ctx *cli.Context) error {
			accounts, err := getServer(ctx).OpsGenieService.Accounts(ctx.String("org"))
			if err != nil {
				return err
			}
			if ctx.Bool("json") {
				// API keys are never printed.
				for i := range accounts {
					accounts[i].APIKey = ""
				}
				return printJSON(ctx.App.Writer, accounts)
			}
			w := tabwriter.NewWriter(ctx.App.Writer, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tORGANIZATION\tURL")
			for _, a := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Organization, a.URL)
			}
			return w.Flush()
		},
	}
}

func newAccountsAddCmd() *cli.Command {
	var a opsgenie.Account
	return &cli.Command{
		Name:  "add",
		Usage: "Create or replace an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Required: true, Destination: &a.ID},
			&cli.StringFlag{Name: "name", Destination: &a.Name},
			&cli.StringFlag{Name: "org", Required: true, Destination: &a.Organization},
			&cli.StringFlag{Name: "api-key", Required: true, EnvVars: []string{"OPSGENIE_API_KEY"}, Destination: &a.APIKey},
			&cli.StringFlag{Name: "url", Usage: "OpsGenie API URL of the account", Destination: &a.URL},
		},
		Before: withServer(),
		After:  closeServer,
		Action: func(ctx *cli.Context) error {
			return getServer(ctx).OpsGenieService.PutAccount(a)
		},
	}
}

func newAccountsDeleteCmd() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an account, rules using it stop alerting",
		ArgsUsage: "ID",
		Before:    withServer(),
		After:     closeServer,
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return errors.New("must provide exactly one account ID")
			}
			return getServer(ctx).OpsGenieService.DeleteAccount(ctx.Args().First())
		},
	}
}

func newRuleCmd() *cli.Command {
	return &cli.Command{
		Name:  "rule",
		Usage: "Alert rule management commands",
		Subcommands: []*cli.Command{
			newRuleSaveCmd(),
			newRuleListCmd(),
			newRuleDeleteCmd(),
		},
	}
}

// ruleOptionFlags maps rule options to their flags.
var ruleOptionFlags = map[string]string{
	"id":       "id",
	"org":      "organization",
	"project":  "project",
	"account":  "account",
	"team":     "team",
	"username": "username",
	"priority": "priority",
	"tags":     "tags",
}

func newRuleSaveCmd() *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Validate and store a rule, the team and user are resolved in OpsGenie",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "rule ID, generated when empty"},
			&cli.StringFlag{Name: "org", Required: true},
			&cli.StringFlag{Name: "project", Usage: "only alert for issues of the project"},
			&cli.StringFlag{Name: "account", Required: true},
			&cli.StringFlag{Name: "team", Usage: "OpsGenie team name"},
			&cli.StringFlag{Name: "username", Usage: "OpsGenie username"},
			&cli.StringFlag{Name: "priority", Usage: priorityUsage()},
			&cli.StringFlag{Name: "tags", Usage: "comma separated list of tag keys shown in the alert"},
		},
		Before: withServer(),
		After:  closeServer,
		Action: func(ctx *cli.Context) error {
			options := make(map[string]interface{})
			for flag, option := range ruleOptionFlags {
				if ctx.IsSet(flag) {
					options[option] = ctx.String(flag)
				}
			}
			opts, err := opsgenie.DecodeRuleOptions(options)
			if err != nil {
				return err
			}
			if opts.ID == "" {
				opts.ID = uuid.New().String()
			}
			s := getServer(ctx).OpsGenieService
			saved, err := s.SaveRule(ctx.Context, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, saved.ID, s.RenderLabel(saved))
			return nil
		},
	}
}

func newRuleListCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List rules",
		Aliases: []string{"ls"},
		Flags: append(commonFlags(), &cli.StringFlag{
			Name:  "org",
			Usage: "Only list the rules of the organization",
		}),
		Before: withServer(),
		After:  closeServer,
		Action: func(ctx *cli.Context) error {
			s := getServer(ctx).OpsGenieService
			rules, err := s.Rules(ctx.String("org"))
			if err != nil {
				return err
			}
			if ctx.Bool("json") {
				return printJSON(ctx.App.Writer, rules)
			}
			w := tabwriter.NewWriter(ctx.App.Writer, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tORGANIZATION\tPROJECT\tLABEL")
			for _, r := range rules {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Organization, r.Project, s.RenderLabel(r))
			}
			return w.Flush()
		},
	}
}

func newRuleDeleteCmd() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a rule",
		ArgsUsage: "ID",
		Before:    withServer(),
		After:     closeServer,
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return errors.New("must provide exactly one rule ID")
			}
			return getServer(ctx).OpsGenieService.DeleteRule(ctx.Args().First())
		},
	}
}

func newFireCmd() *cli.Command {
	return &cli.Command{
		Name:  "fire",
		Usage: "Apply the stored rules to an event read as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      "event",
				Aliases:   []string{"e"},
				Usage:     "Path to the event JSON file, '-' for stdin",
				Value:     "-",
				TakesFile: true,
			},
		},
		Before: withServer(),
		After:  closeServer,
		Action: func(ctx *cli.Context) error {
			var r io.Reader = ctx.App.Reader
			if path := ctx.String("event"); path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var event models.Event
			if err := json.NewDecoder(r).Decode(&event); err != nil {
				return errors.Wrap(err, "failed to decode event")
			}
			n, err := getServer(ctx).Fire(ctx.Context, event)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "%d notification(s) triggered\n", n)
			return nil
		},
	}
}

func newTestCmd() *cli.Command {
	return &cli.Command{
		Name:  "test",
		Usage: "Send a test alert",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Required: true},
			&cli.StringFlag{Name: "team"},
			&cli.StringFlag{Name: "username"},
			&cli.StringFlag{Name: "message"},
			&cli.StringFlag{Name: "priority", Usage: priorityUsage()},
		},
		Before: withServer(),
		After:  closeServer,
		Action: func(ctx *cli.Context) error {
			s := getServer(ctx).OpsGenieService
			fields := make(map[string]string)
			for _, name := range []string{"account", "team", "username", "message", "priority"} {
				if ctx.IsSet(name) {
					fields[name] = ctx.String(name)
				}
			}
			data, err := json.Marshal(fields)
			if err != nil {
				return err
			}
			options := s.TestOptions()
			if err := json.Unmarshal(data, options); err != nil {
				return errors.Wrap(err, "invalid test options")
			}
			if err := s.Test(options); err != nil {
				return errors.Wrap(err, "test alert failed")
			}
			fmt.Fprintln(ctx.App.Writer, "test alert sent")
			return nil
		},
	}
}
