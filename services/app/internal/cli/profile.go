package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/pkg/subscription"
	"github.com/bookineo/bookineo/services/app/internal/gateway"
)

func (s *Shell) profile(ctx context.Context, _ []string) error {
	identity := s.sessions.Current()
	if identity == nil {
		return apperrors.Unauthorized("not signed in")
	}

	s.printf("%s %s (@%s)\n", identity.FirstName, identity.LastName, identity.Username)
	s.printf("  Email: %s\n", identity.Email)
	s.printf("  Plan: %s\n", identity.Tier.DisplayName())
	if identity.AvatarURL != nil {
		s.printf("  Avatar: %s\n", *identity.AvatarURL)
	}
	if !identity.CreatedAt.IsZero() {
		s.printf("  Member since %s\n", identity.CreatedAt.Format("2006-01-02"))
	}

	limit, err := subscription.LimitFor(identity.Tier, subscription.KindBox)
	if err != nil {
		return err
	}
	if limit == subscription.Unlimited {
		s.println("  Boxes: unlimited")
		return nil
	}

	count, err := s.gw.CountResourcesByOwner(ctx, identity.ID, subscription.KindBox)
	if err != nil {
		return err
	}
	s.printf("  Boxes: %d of %d\n", count, limit)
	if count >= limit {
		s.printf("  You have reached the box limit for a %s account. Upgrade to Premium for unlimited boxes.\n",
			identity.Tier.DisplayName())
	}
	return nil
}

func (s *Shell) editProfile(ctx context.Context, _ []string) error {
	identity := s.sessions.Current()
	if identity == nil {
		return apperrors.Unauthorized("not signed in")
	}

	s.println("Press enter to keep the current value.")
	var upd gateway.ProfileUpdate
	var err error
	if upd.Username, err = s.askDefault("Username", identity.Username); err != nil {
		return err
	}
	if upd.FirstName, err = s.askDefault("First name", identity.FirstName); err != nil {
		return err
	}
	if upd.LastName, err = s.askDefault("Last name", identity.LastName); err != nil {
		return err
	}
	if upd.Username == nil && upd.FirstName == nil && upd.LastName == nil {
		s.println("Nothing to change.")
		return nil
	}

	updated, err := s.gw.UpdateProfile(ctx, upd)
	if err != nil {
		return err
	}
	s.sessions.SetIdentity(updated)
	s.println("Profile updated.")
	return nil
}

func (s *Shell) uploadAvatar(ctx context.Context, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("cannot open %s", path))
	}
	defer f.Close()

	updated, err := s.gw.UploadAvatar(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	s.sessions.SetIdentity(updated)
	s.println("Avatar updated.")
	return nil
}

func (s *Shell) deleteAccount(ctx context.Context, _ []string) error {
	identity := s.sessions.Current()
	if identity == nil {
		return apperrors.Unauthorized("not signed in")
	}

	s.println("This deletes your profile, your boxes, favorites and visits.")
	if !s.confirm(fmt.Sprintf("Type your username (%s) to confirm", identity.Username), identity.Username) {
		return errAborted
	}

	s.quiet.Store(true)
	defer s.quiet.Store(false)

	if err := s.gw.DeleteAccount(ctx); err != nil {
		return err
	}
	s.sessions.SetIdentity(nil)
	s.route = "/"
	s.println("Your account has been deleted.")
	return nil
}

func (s *Shell) showUser(ctx context.Context, args []string) error {
	p, err := s.gw.ProfileByUsername(ctx, args[0])
	if err != nil {
		return err
	}

	s.printf("@%s", p.User.Username)
	if name := fmt.Sprintf("%s %s", p.User.FirstName, p.User.LastName); name != " " {
		s.printf(" (%s)", name)
	}
	s.println()
	s.printf("  %d boxes, %d visits\n", len(p.Boxes), p.VisitCount)
	if len(p.Boxes) > 0 {
		return s.printBoxes(p.Boxes)
	}
	return nil
}
