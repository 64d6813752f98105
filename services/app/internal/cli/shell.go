// Package cli is the interactive terminal front end. Every command maps to a
// view of the route table and is gated by the access guard before it runs.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/term"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/services/app/internal/gateway"
	"github.com/bookineo/bookineo/services/app/internal/guard"
	"github.com/bookineo/bookineo/services/app/internal/quota"
	"github.com/bookineo/bookineo/services/app/internal/session"
)

// Deps are the collaborators of a Shell.
type Deps struct {
	Gateway  gateway.Gateway
	Sessions *session.Manager
	Guard    *guard.Guard
	Quota    *quota.Enforcer
	Logger   *slog.Logger
}

type command struct {
	usage   string
	help    string
	minArgs int
	// route yields the view the command opens, or "" for ungated commands.
	route func(args []string) string
	run   func(ctx context.Context, args []string) error
}

func fixed(path string) func([]string) string {
	return func([]string) string { return path }
}

func withArg(prefix string) func([]string) string {
	return func(args []string) string { return prefix + args[0] }
}

// Shell reads commands from in and writes to out.
type Shell struct {
	gw       gateway.Gateway
	sessions *session.Manager
	guard    *guard.Guard
	quota    *quota.Enforcer
	logger   *slog.Logger

	in           *bufio.Reader
	out          io.Writer
	readPassword func() (string, error)

	commands map[string]command
	route    string
	// quiet suppresses the session-ended notice during explicit sign-outs.
	quiet atomic.Bool
}

// NewShell creates a shell. When in is a terminal, passwords are read
// without echo.
func NewShell(deps Deps, in io.Reader, out io.Writer) *Shell {
	s := &Shell{
		gw:       deps.Gateway,
		sessions: deps.Sessions,
		guard:    deps.Guard,
		quota:    deps.Quota,
		logger:   deps.Logger,
		in:       bufio.NewReader(in),
		out:      &lockedWriter{w: out},
		route:    "/",
	}

	s.readPassword = s.readLine
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		s.readPassword = func() (string, error) {
			pw, err := term.ReadPassword(fd)
			s.println()
			return string(pw), err
		}
	}

	s.commands = s.commandTable()
	return s
}

func (s *Shell) commandTable() map[string]command {
	return map[string]command{
		"help":           {usage: "help", help: "list commands", route: fixed("/"), run: s.help},
		"pricing":        {usage: "pricing", help: "compare plans", route: fixed("/pricing"), run: s.pricing},
		"signin":         {usage: "signin", help: "sign in", route: fixed("/auth"), run: s.signIn},
		"signup":         {usage: "signup", help: "create an account", route: fixed("/auth"), run: s.signUp},
		"signout":        {usage: "signout", help: "sign out", run: s.signOut},
		"whoami":         {usage: "whoami", help: "show the signed-in user", run: s.whoami},
		"map":            {usage: "map", help: "list all book boxes", route: fixed("/map"), run: s.showMap},
		"box":            {usage: "box <id>", help: "show a book box", minArgs: 1, route: withArg("/box/"), run: s.showBox},
		"add-box":        {usage: "add-box", help: "add a book box", route: fixed("/add-box"), run: s.addBox},
		"edit-box":       {usage: "edit-box <id>", help: "edit one of your boxes", minArgs: 1, route: withArg("/edit-box/"), run: s.editBox},
		"my-boxes":       {usage: "my-boxes", help: "your boxes and favorites", route: fixed("/my-boxes"), run: s.myBoxes},
		"delete-box":     {usage: "delete-box <id>", help: "delete one of your boxes", minArgs: 1, route: fixed("/my-boxes"), run: s.deleteBox},
		"fav":            {usage: "fav <id>", help: "add a box to favorites", minArgs: 1, route: withArg("/box/"), run: s.favorite},
		"unfav":          {usage: "unfav <id>", help: "remove a box from favorites", minArgs: 1, route: withArg("/box/"), run: s.unfavorite},
		"visit":          {usage: "visit <id> <rating> [comment]", help: "record a visit", minArgs: 2, route: withArg("/box/"), run: s.recordVisit},
		"profile":        {usage: "profile", help: "your profile and plan usage", route: fixed("/profile"), run: s.profile},
		"profile-edit":   {usage: "profile-edit", help: "change your name or username", route: fixed("/profile"), run: s.editProfile},
		"avatar":         {usage: "avatar <path>", help: "upload a profile picture", minArgs: 1, route: fixed("/profile"), run: s.uploadAvatar},
		"delete-account": {usage: "delete-account", help: "delete your account", route: fixed("/profile"), run: s.deleteAccount},
		"user":           {usage: "user <username>", help: "show a user's profile", minArgs: 1, route: withArg("/user/"), run: s.showUser},
	}
}

// Route is the view the shell currently shows.
func (s *Shell) Route() string {
	return s.route
}

// Run reads commands until EOF, "exit" or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	sub := s.sessions.Store().Observe(s.sessionNotice())
	defer sub.Unsubscribe()

	s.println("Bookineo. Type help for commands.")
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.printf("%s> ", s.prompt())

		line, err := s.readLine()
		if errors.Is(err, io.EOF) {
			s.println()
			return nil
		}
		if err != nil {
			return fmt.Errorf("read command: %w", err)
		}
		if line == "exit" || line == "quit" {
			s.println("Bye!")
			return nil
		}
		s.Exec(ctx, line)
	}
}

func (s *Shell) prompt() string {
	if identity := s.sessions.Current(); identity != nil {
		return fmt.Sprintf("bookineo %s %s", identity.Username, s.route)
	}
	return "bookineo " + s.route
}

// sessionNotice tells the user when the session ends outside a command,
// for example when a token refresh fails.
func (s *Shell) sessionNotice() session.Observer {
	var wasSignedIn atomic.Bool
	wasSignedIn.Store(s.sessions.Current() != nil)

	return func(snap session.Snapshot) {
		signedIn := snap.Authenticated()
		if wasSignedIn.Swap(signedIn) && !signedIn && !s.quiet.Load() {
			s.println()
			s.println("Your session has ended. Please sign in again.")
		}
	}
}

// Exec runs one command line.
func (s *Shell) Exec(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	name, args := fields[0], fields[1:]

	cmd, ok := s.commands[name]
	if !ok {
		s.printf("Unknown command %q. Type help for commands.\n", name)
		return
	}
	if len(args) < cmd.minArgs {
		s.printf("Usage: %s\n", cmd.usage)
		return
	}

	if cmd.route != nil {
		path := cmd.route(args)
		decision, _ := s.guard.AuthorizePath(path)
		if !decision.Allowed() {
			s.println("Please sign in to continue.")
			s.route = decision.Redirect
			return
		}
		s.route = path
	}

	if err := cmd.run(ctx, args); err != nil {
		s.report(ctx, name, err)
	}
}

// report prints err for the user. Errors never end the shell.
func (s *Shell) report(ctx context.Context, name string, err error) {
	if errors.Is(err, errAborted) {
		s.println("Cancelled.")
		return
	}

	s.logger.WarnContext(ctx, "command failed", slog.String("command", name), slog.String("error", err.Error()))

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr) && appErr.Message != "":
		s.printf("Error: %s\n", appErr.Message)
	case apperrors.IsNotFound(err):
		s.println("Error: not found.")
	default:
		s.println("Error: something went wrong. Please try again.")
	}
}

func (s *Shell) help(_ context.Context, _ []string) error {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := newTable(s.out)
	for _, name := range names {
		cmd := s.commands[name]
		fmt.Fprintf(tw, "  %s\t%s\n", cmd.usage, cmd.help)
	}
	fmt.Fprintf(tw, "  %s\t%s\n", "exit", "leave Bookineo")
	return tw.Flush()
}
