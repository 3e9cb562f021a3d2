// Package cli implements the scholarisctl subcommands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/scholaris/scholaris/internal/client"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitError  = 1
	ExitUsage  = 64
	ExitDenied = 2
)

// Env carries the collaborators a command needs.
type Env struct {
	Client *client.Client
	Guard  *client.Guard
	// Jobs is nil when the queue is not reachable.
	Jobs   *JobsCLI
	Stdout io.Writer
	Stderr io.Writer
}

type command struct {
	view  string
	usage string
	run   func(ctx context.Context, env Env, args []string) int
}

const jobsUsage = "jobs stats|scheduled|archived|orphan-scan"

var commands = map[string]command{
	"signup":    {view: client.ViewSignup, usage: "signup -name N -email E -password P [-role admin|student]", run: runSignup},
	"login":     {view: client.ViewLogin, usage: "login -email E -password P", run: runLogin},
	"logout":    {usage: "logout", run: runLogout},
	"whoami":    {usage: "whoami", run: runWhoami},
	"me":        {view: client.ViewStudent, usage: "me", run: runMe},
	"me-update": {view: client.ViewStudent, usage: "me-update [-name N] [-email E] [-course C]", run: runMeUpdate},
	"list":      {view: client.ViewAdmin, usage: "list", run: runList},
	"add":       {view: client.ViewAdmin, usage: "add -name N -email E [-course C]", run: runAdd},
	"update":    {view: client.ViewAdmin, usage: "update ID [-name N] [-email E] [-course C] [-enrolled-at RFC3339] [-user ID]", run: runUpdate},
	"delete":    {view: client.ViewAdmin, usage: "delete ID", run: runDelete},
	"jobs":      {view: client.ViewAdmin, usage: jobsUsage, run: runJobs},
}

// Run dispatches args[0] to its subcommand and returns the process exit code.
func Run(ctx context.Context, env Env, args []string) int {
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}
	if len(args) == 0 {
		printUsage(env.Stderr)
		return ExitUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		_, _ = fmt.Fprintf(env.Stderr, "unknown command %q\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	if cmd.view != "" {
		decision, _, err := env.Guard.Check(ctx, cmd.view)
		if err != nil {
			_, _ = fmt.Fprintf(env.Stderr, "%s: %v\n", args[0], err)
			return ExitError
		}
		if !decision.Allow {
			_, _ = fmt.Fprintf(env.Stderr, "%s: %s\n", args[0], deniedMessage(decision))
			return ExitDenied
		}
	}
	return cmd.run(ctx, env, args[1:])
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: scholarisctl <command> [flags]")
	for _, name := range []string{"signup", "login", "logout", "whoami", "me", "me-update", "list", "add", "update", "delete", "jobs"} {
		_, _ = fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

func deniedMessage(d client.Decision) string {
	switch d.Redirect {
	case client.ViewLogin:
		return "not signed in with the required role, run login first"
	case client.ViewHome:
		return "already signed in, run logout first"
	}
	return "not available, open " + d.Redirect
}

func fail(env Env, name string, err error) int {
	if errors.Is(err, client.ErrNoSession) {
		_, _ = fmt.Fprintf(env.Stderr, "%s: not signed in\n", name)
		return ExitDenied
	}
	_, _ = fmt.Fprintf(env.Stderr, "%s: %s\n", name, client.Message(err))
	return ExitError
}

func printJSON(env Env, v any) int {
	enc := json.NewEncoder(env.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_, _ = fmt.Fprintf(env.Stderr, "encode output: %v\n", err)
		return ExitError
	}
	return ExitOK
}

func newFlags(env Env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	return fs
}

// setFlags reports which flags were given explicitly.
func setFlags(fs *flag.FlagSet) map[string]bool {
	seen := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	return seen
}

func runSignup(ctx context.Context, env Env, args []string) int {
	fs := newFlags(env, "signup")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	role := fs.String("role", "", "admin or student (default student)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if *email == "" || *password == "" {
		_, _ = fmt.Fprintln(env.Stderr, "signup: -email and -password are required")
		return ExitUsage
	}
	s, err := env.Client.Signup(ctx, client.SignupRequest{Name: *name, Email: *email, Password: *password, Role: *role})
	if err != nil {
		return fail(env, "signup", err)
	}
	_, _ = fmt.Fprintf(env.Stdout, "signed up as %s (%s)\n", s.User.Email, s.User.Role)
	return ExitOK
}

func runLogin(ctx context.Context, env Env, args []string) int {
	fs := newFlags(env, "login")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if *email == "" || *password == "" {
		_, _ = fmt.Fprintln(env.Stderr, "login: -email and -password are required")
		return ExitUsage
	}
	s, err := env.Client.Login(ctx, *email, *password)
	if err != nil {
		return fail(env, "login", err)
	}
	_, _ = fmt.Fprintf(env.Stdout, "logged in as %s (%s)\n", s.User.Email, s.User.Role)
	return ExitOK
}

func runLogout(ctx context.Context, env Env, _ []string) int {
	if err := env.Client.Logout(ctx); err != nil {
		return fail(env, "logout", err)
	}
	_, _ = fmt.Fprintln(env.Stdout, "logged out")
	return ExitOK
}

func runWhoami(ctx context.Context, env Env, _ []string) int {
	_, s, err := env.Guard.Check(ctx, client.ViewHome)
	if err != nil {
		return fail(env, "whoami", err)
	}
	if s == nil {
		_, _ = fmt.Fprintln(env.Stdout, "not signed in")
		return ExitOK
	}
	_, _ = fmt.Fprintf(env.Stdout, "%s (%s) home %s\n", s.User.Email, strings.ToLower(s.User.Role), client.Resolve(client.ViewHome, s))
	return ExitOK
}

func runMe(ctx context.Context, env Env, _ []string) int {
	p, err := env.Client.Me(ctx)
	if err != nil {
		return fail(env, "me", err)
	}
	return printJSON(env, p)
}

func runMeUpdate(ctx context.Context, env Env, args []string) int {
	fs := newFlags(env, "me-update")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "contact email")
	course := fs.String("course", "", "course")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	seen := setFlags(fs)
	var fields client.ProfileFields
	if seen["name"] {
		fields.Name = name
	}
	if seen["email"] {
		fields.Email = email
	}
	if seen["course"] {
		fields.Course = course
	}
	p, err := env.Client.UpdateMe(ctx, fields)
	if err != nil {
		return fail(env, "me-update", err)
	}
	return printJSON(env, p)
}

func runList(ctx context.Context, env Env, _ []string) int {
	list, err := env.Client.ListStudents(ctx)
	if err != nil {
		return fail(env, "list", err)
	}
	tw := tabwriter.NewWriter(env.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tCOURSE\tENROLLED")
	for _, s := range list {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Email, s.Course, s.EnrolledAt.Format(time.DateOnly))
	}
	if err := tw.Flush(); err != nil {
		return fail(env, "list", err)
	}
	return ExitOK
}

func runAdd(ctx context.Context, env Env, args []string) int {
	fs := newFlags(env, "add")
	name := fs.String("name", "", "student name")
	email := fs.String("email", "", "student email")
	course := fs.String("course", "", "course")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if *name == "" || *email == "" {
		_, _ = fmt.Fprintln(env.Stderr, "add: -name and -email are required")
		return ExitUsage
	}
	p, err := env.Client.CreateStudent(ctx, client.NewStudent{Name: *name, Email: *email, Course: *course})
	if err != nil {
		return fail(env, "add", err)
	}
	return printJSON(env, p)
}

func runUpdate(ctx context.Context, env Env, args []string) int {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		_, _ = fmt.Fprintln(env.Stderr, "update: student ID is required")
		return ExitUsage
	}
	id := args[0]
	fs := newFlags(env, "update")
	name := fs.String("name", "", "student name")
	email := fs.String("email", "", "student email")
	course := fs.String("course", "", "course")
	enrolledAt := fs.String("enrolled-at", "", "enrolment time (RFC 3339)")
	user := fs.String("user", "", "linked identity id")
	if err := fs.Parse(args[1:]); err != nil {
		return ExitUsage
	}
	seen := setFlags(fs)
	fields := map[string]any{}
	if seen["name"] {
		fields["name"] = *name
	}
	if seen["email"] {
		fields["email"] = *email
	}
	if seen["course"] {
		fields["course"] = *course
	}
	if seen["enrolled-at"] {
		ts, err := time.Parse(time.RFC3339, *enrolledAt)
		if err != nil {
			_, _ = fmt.Fprintf(env.Stderr, "update: invalid -enrolled-at %q\n", *enrolledAt)
			return ExitUsage
		}
		fields["enrolledAt"] = ts
	}
	if seen["user"] {
		fields["user"] = *user
	}
	p, err := env.Client.UpdateStudent(ctx, id, fields)
	if err != nil {
		return fail(env, "update", err)
	}
	return printJSON(env, p)
}

func runDelete(ctx context.Context, env Env, args []string) int {
	if len(args) != 1 {
		_, _ = fmt.Fprintln(env.Stderr, "delete: exactly one student ID is required")
		return ExitUsage
	}
	if err := env.Client.DeleteStudent(ctx, args[0]); err != nil {
		return fail(env, "delete", err)
	}
	_, _ = fmt.Fprintf(env.Stdout, "deleted %s\n", args[0])
	return ExitOK
}

func runJobs(ctx context.Context, env Env, args []string) int {
	if env.Jobs == nil {
		_, _ = fmt.Fprintln(env.Stderr, "jobs: queue not configured")
		return ExitError
	}
	if len(args) != 1 {
		_, _ = fmt.Fprintln(env.Stderr, "usage: "+jobsUsage)
		return ExitUsage
	}
	switch args[0] {
	case "stats":
		stats, err := env.Jobs.InspectQueue(ctx)
		if err != nil {
			return fail(env, "jobs stats", err)
		}
		return printJSON(env, stats)
	case "scheduled":
		tasks, err := env.Jobs.ListScheduled(ctx, 10)
		if err != nil {
			return fail(env, "jobs scheduled", err)
		}
		for _, task := range tasks {
			_, _ = fmt.Fprintf(env.Stdout, "%s\t%s\t%s\n", task.ID, task.Type, task.NextProcessAt.Format(time.RFC3339))
		}
		return ExitOK
	case "archived":
		tasks, err := env.Jobs.ListArchived(ctx, 10)
		if err != nil {
			return fail(env, "jobs archived", err)
		}
		for _, task := range tasks {
			_, _ = fmt.Fprintf(env.Stdout, "%s\t%s\t%s\t%s\n", task.ID, task.Type, task.LastFailedAt.Format(time.RFC3339), task.LastErr)
		}
		return ExitOK
	case "orphan-scan":
		info, err := env.Jobs.TriggerOrphanScan(ctx)
		if err != nil {
			return fail(env, "jobs orphan-scan", err)
		}
		_, _ = fmt.Fprintf(env.Stdout, "enqueued %s on %s\n", info.ID, info.Queue)
		return ExitOK
	}
	_, _ = fmt.Fprintf(env.Stderr, "jobs: unknown subcommand %q\n", args[0])
	return ExitUsage
}
