package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/pkg/subscription"
	"github.com/bookineo/bookineo/services/app/internal/gateway"
	"github.com/bookineo/bookineo/services/app/internal/quota"
)

const visitsShown = 5

func (s *Shell) printBoxes(boxes []gateway.Box) error {
	tw := newTable(s.out)
	for _, b := range boxes {
		fmt.Fprintf(tw, "  %s\t%s\t(%.5f, %.5f)\tby %s\n", b.ID, b.Name, b.Latitude, b.Longitude, b.CreatorUsername)
	}
	return tw.Flush()
}

func (s *Shell) showMap(ctx context.Context, _ []string) error {
	boxes, err := s.gw.ListBoxes(ctx)
	if err != nil {
		return err
	}
	if len(boxes) == 0 {
		s.println("No book boxes yet. Add the first one with add-box.")
		return nil
	}
	s.printf("%d book boxes:\n", len(boxes))
	return s.printBoxes(boxes)
}

func (s *Shell) showBox(ctx context.Context, args []string) error {
	id := args[0]
	box, err := s.gw.GetBox(ctx, id)
	if err != nil {
		return err
	}

	s.printf("%s\n", box.Name)
	if box.Description != "" {
		s.printf("  %s\n", box.Description)
	}
	s.printf("  Location: %.5f, %.5f\n", box.Latitude, box.Longitude)
	s.printf("  Added by %s on %s\n", box.CreatorUsername, box.CreatedAt.Format("2006-01-02"))
	if box.ImageURL != nil {
		s.printf("  Photo: %s\n", *box.ImageURL)
	}

	if fav, err := s.gw.IsFavorite(ctx, id); err == nil && fav {
		s.println("  In your favorites.")
	}

	if mine, err := s.gw.LatestVisit(ctx, id); err == nil {
		s.printf("  Your last visit: %s %s\n", mine.VisitedAt.Format("2006-01-02"), stars(mine.Rating))
	} else if !apperrors.IsNotFound(err) {
		s.logger.WarnContext(ctx, "latest visit lookup failed", slog.String("error", err.Error()))
	}

	page, err := s.gw.ListVisits(ctx, id, 1, visitsShown)
	if err != nil {
		return err
	}
	if page.TotalCount == 0 {
		s.println("  No visits yet.")
		return nil
	}
	s.printf("  Visits (%d):\n", page.TotalCount)
	for _, v := range page.Items {
		comment := ""
		if v.Comment != nil {
			comment = " " + *v.Comment
		}
		s.printf("    %s %s %s%s\n", v.VisitedAt.Format("2006-01-02"), v.Visitor.Username, stars(v.Rating), comment)
	}
	return nil
}

// addBox runs one creation attempt: quota check, form, optional image
// upload, insert.
func (s *Shell) addBox(ctx context.Context, _ []string) error {
	attempt := quota.NewAttempt(s.quota, s.gw, subscription.KindBox)

	decision, err := attempt.Check(ctx, s.sessions.Current())
	if err != nil {
		s.logger.WarnContext(ctx, "quota check failed", slog.String("error", err.Error()))
		s.println("Could not check your box allowance. Please try again.")
		return nil
	}
	if !decision.Allowed {
		s.println(decision.Message() + ".")
		s.println("See pricing to add more boxes with Premium.")
		return nil
	}

	in, err := s.boxForm()
	if err != nil {
		attempt.Abort(err)
		return err
	}

	if path, err := s.ask("Image file (optional)"); err == nil && path != "" {
		up, err := s.uploadImage(ctx, in.Name, path)
		if err != nil {
			attempt.Abort(err)
			return err
		}
		in.ImageKey = up.Key
	}

	box, err := attempt.Submit(ctx, in)
	if err != nil {
		return err
	}

	s.printf("Book box %q added.\n", box.Name)
	s.route = "/my-boxes"
	return s.myBoxes(ctx, nil)
}

func (s *Shell) boxForm() (gateway.BoxInput, error) {
	var in gateway.BoxInput
	var err error

	if in.Name, err = s.askRequired("Name"); err != nil {
		return in, err
	}
	if in.Description, err = s.ask("Description"); err != nil {
		return in, errAborted
	}
	if in.Latitude, err = s.askFloat("Latitude", -90, 90); err != nil {
		return in, err
	}
	if in.Longitude, err = s.askFloat("Longitude", -180, 180); err != nil {
		return in, err
	}
	return in, nil
}

func (s *Shell) uploadImage(ctx context.Context, boxName, path string) (*gateway.Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot open %s", path))
	}
	defer f.Close()

	return s.gw.UploadBoxImage(ctx, boxName, filepath.Base(path), f)
}

func (s *Shell) ownedBox(ctx context.Context, id string) (*gateway.Box, error) {
	box, err := s.gw.GetBox(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity := s.sessions.Current(); identity == nil || box.CreatorID != identity.ID {
		return nil, apperrors.Forbidden("you can only change your own boxes")
	}
	return box, nil
}

func (s *Shell) editBox(ctx context.Context, args []string) error {
	box, err := s.ownedBox(ctx, args[0])
	if err != nil {
		return err
	}

	s.println("Press enter to keep the current value.")
	var upd gateway.BoxUpdate
	if upd.Name, err = s.askDefault("Name", box.Name); err != nil {
		return err
	}
	if upd.Description, err = s.askDefault("Description", box.Description); err != nil {
		return err
	}
	if upd.Latitude, err = s.askCoordinate("Latitude", box.Latitude, -90, 90); err != nil {
		return err
	}
	if upd.Longitude, err = s.askCoordinate("Longitude", box.Longitude, -180, 180); err != nil {
		return err
	}

	if path, err := s.ask("New image file (optional)"); err == nil && path != "" {
		name := box.Name
		if upd.Name != nil {
			name = *upd.Name
		}
		up, err := s.uploadImage(ctx, name, path)
		if err != nil {
			return err
		}
		upd.ImageKey = &up.Key
	}

	updated, err := s.gw.UpdateBox(ctx, box.ID, upd)
	if err != nil {
		return err
	}
	s.printf("Book box %q updated.\n", updated.Name)
	s.route = "/box/" + updated.ID
	return nil
}

func (s *Shell) askCoordinate(prompt string, current, lo, hi float64) (*float64, error) {
	v, err := s.askDefault(prompt, strconv.FormatFloat(current, 'f', -1, 64))
	if err != nil || v == nil {
		return nil, err
	}
	f, perr := strconv.ParseFloat(strings.Replace(*v, ",", ".", 1), 64)
	if perr != nil || f < lo || f > hi {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%s must be a number between %g and %g", prompt, lo, hi))
	}
	return &f, nil
}

func (s *Shell) myBoxes(ctx context.Context, _ []string) error {
	identity := s.sessions.Current()
	if identity == nil {
		return apperrors.Unauthorized("not signed in")
	}

	boxes, err := s.gw.ListBoxesByOwner(ctx, identity.ID)
	if err != nil {
		return err
	}
	limit, _ := subscription.LimitFor(identity.Tier, subscription.KindBox)
	s.printf("Your boxes (%d of %s):\n", len(boxes), formatLimit(limit))
	if len(boxes) == 0 {
		s.println("  none yet")
	} else if err := s.printBoxes(boxes); err != nil {
		return err
	}

	favs, err := s.gw.ListFavorites(ctx)
	if err != nil {
		return err
	}
	s.printf("Favorites (%d):\n", len(favs))
	tw := newTable(s.out)
	for _, f := range favs {
		fmt.Fprintf(tw, "  %s\t%s\tsince %s\n", f.Box.ID, f.Box.Name, f.FavoritedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func (s *Shell) deleteBox(ctx context.Context, args []string) error {
	box, err := s.ownedBox(ctx, args[0])
	if err != nil {
		return err
	}
	if !s.confirm(fmt.Sprintf("Type %q to delete it", box.Name), box.Name) {
		return errAborted
	}
	if err := s.gw.DeleteBox(ctx, box.ID); err != nil {
		return err
	}
	s.printf("Book box %q deleted.\n", box.Name)
	return nil
}

func (s *Shell) favorite(ctx context.Context, args []string) error {
	if err := s.gw.AddFavorite(ctx, args[0]); err != nil {
		return err
	}
	s.println("Added to favorites.")
	return nil
}

func (s *Shell) unfavorite(ctx context.Context, args []string) error {
	if err := s.gw.RemoveFavorite(ctx, args[0]); err != nil {
		return err
	}
	s.println("Removed from favorites.")
	return nil
}

func (s *Shell) recordVisit(ctx context.Context, args []string) error {
	rating, err := strconv.Atoi(args[1])
	if err != nil || rating < 1 || rating > 5 {
		return apperrors.InvalidInput("rating must be a whole number from 1 to 5")
	}
	comment := strings.Join(args[2:], " ")

	if _, err := s.gw.RecordVisit(ctx, args[0], rating, comment); err != nil {
		return err
	}
	s.printf("Visit recorded %s.\n", stars(rating))
	return nil
}
