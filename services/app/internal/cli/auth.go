package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bookineo/bookineo/pkg/subscription"
	"github.com/bookineo/bookineo/services/app/internal/gateway"
)

func (s *Shell) pricing(ctx context.Context, _ []string) error {
	plans, err := s.gw.Plans(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "plans unavailable, using built-in table", slog.String("error", err.Error()))
		plans = subscription.Plans()
	}

	var current subscription.Tier
	if identity := s.sessions.Current(); identity != nil {
		current = identity.Tier
	}

	tw := newTable(s.out)
	fmt.Fprintln(tw, "  PLAN\tBOXES\tFAVORITES\tREVIEWS\t")
	for _, p := range plans {
		marker := ""
		if p.Tier == current {
			marker = "(current)"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", p.Name,
			formatLimit(p.Limits.Boxes), formatLimit(p.Limits.Favorites), formatLimit(p.Limits.Reviews), marker)
	}
	return tw.Flush()
}

func (s *Shell) signIn(ctx context.Context, _ []string) error {
	if identity := s.sessions.Current(); identity != nil {
		s.printf("Already signed in as %s.\n", identity.Username)
		return nil
	}

	email, err := s.askRequired("Email")
	if err != nil {
		return err
	}
	password, err := s.askPassword()
	if err != nil {
		return err
	}

	sess, err := s.gw.SignIn(ctx, gateway.Credentials{Email: email, Password: password})
	if err != nil {
		return err
	}

	// SIGNED_IN also starts a Resolve in the Manager. This lookup runs anyway
	// so the welcome and the map render with the identity already set; both
	// writes carry the same principal, so their order does not matter.
	identity, err := s.gw.FindIdentityByPrincipal(ctx, sess.PrincipalID)
	if err != nil {
		s.logger.WarnContext(ctx, "profile lookup after sign in failed", slog.String("error", err.Error()))
		s.sessions.SetIdentity(nil)
		s.println("Signed in, but your profile could not be loaded.")
		return nil
	}
	s.sessions.SetIdentity(identity)

	s.printf("Welcome, %s!\n", identity.Username)
	s.route = "/map"
	return s.showMap(ctx, nil)
}

func (s *Shell) signUp(ctx context.Context, _ []string) error {
	email, err := s.askRequired("Email")
	if err != nil {
		return err
	}
	password, err := s.askPassword()
	if err != nil {
		return err
	}
	username, err := s.askRequired("Username")
	if err != nil {
		return err
	}
	firstName, err := s.ask("First name")
	if err != nil {
		return errAborted
	}
	lastName, err := s.ask("Last name")
	if err != nil {
		return errAborted
	}

	identity, err := s.gw.SignUp(ctx, gateway.SignUpInput{
		Credentials: gateway.Credentials{Email: email, Password: password},
		Username:    username,
		FirstName:   firstName,
		LastName:    lastName,
	})
	if err != nil {
		return err
	}

	s.printf("Account created for %s. Sign in to continue.\n", identity.Username)
	s.route = "/auth"
	return nil
}

func (s *Shell) signOut(ctx context.Context, _ []string) error {
	if s.sessions.Current() == nil {
		s.println("Not signed in.")
		return nil
	}

	s.quiet.Store(true)
	defer s.quiet.Store(false)

	err := s.sessions.SignOut(ctx)
	s.route = "/"
	s.println("Signed out.")
	if err != nil {
		s.logger.WarnContext(ctx, "remote sign out failed", slog.String("error", err.Error()))
	}
	return nil
}

func (s *Shell) whoami(_ context.Context, _ []string) error {
	identity := s.sessions.Current()
	if identity == nil {
		s.println("Not signed in.")
		return nil
	}
	s.printf("%s (%s), %s account\n", identity.Username, identity.Email, identity.Tier.DisplayName())
	return nil
}
