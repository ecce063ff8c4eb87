// Jiractl looks up the Jira ids soarbridge needs in its configuration: the
// archive transition id and the analyst accountId.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/linnemanlabs/go-core/cfg"

	"github.com/linnemanlabs/soarbridge/internal/ticket/jira"
)

const usage = `usage: jiractl [flags] <command> <arg>

commands:
  transitions <ISSUE-KEY>   list transitions available on an issue
  users <query>             search users by email or name

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("jiractl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c jira.Config
	fs.StringVar(&c.BaseURL, "jira-url", "", "Jira site base URL")
	fs.StringVar(&c.User, "jira-user", "", "Jira user email")
	fs.StringVar(&c.Token, "jira-api-token", "", "Jira API token")
	fs.StringVar(&c.APIVersion, "jira-api-version", "3", "Jira REST API version: 2 or 3")
	fs.DurationVar(&c.Timeout, "timeout", 10*time.Second, "request timeout")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.FillFromEnv(fs, "SOARBRIDGE_", func(format string, args ...any) {
		fmt.Fprintf(stderr, format+"\n", args...)
	})
	if err := c.Validate(); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("expected a command and one argument")
	}

	client := jira.New(c)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()

	switch cmd, arg := fs.Arg(0), fs.Arg(1); cmd {
	case "transitions":
		ts, err := client.ListTransitions(ctx, arg)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tNAME\tTO STATUS")
		for _, t := range ts {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Name, t.To.Name)
		}
	case "users":
		us, err := client.SearchUsers(ctx, arg)
		if err != nil {
			return err
		}
		if len(us) == 0 {
			return fmt.Errorf("no users match %q", arg)
		}
		fmt.Fprintln(tw, "ACCOUNT ID\tNAME\tEMAIL\tACTIVE")
		for _, u := range us {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", u.AccountID, u.DisplayName, u.EmailAddress, u.Active)
		}
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}
