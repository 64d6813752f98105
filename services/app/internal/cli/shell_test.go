package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/pkg/subscription"
	"github.com/bookineo/bookineo/services/app/internal/gateway"
	"github.com/bookineo/bookineo/services/app/internal/guard"
	"github.com/bookineo/bookineo/services/app/internal/quota"
	"github.com/bookineo/bookineo/services/app/internal/session"
)

// ============================================================================
// Mock gateway
// ============================================================================

type mockGateway struct {
	mock.Mock
	notifier gateway.Notifier
}

func (m *mockGateway) GetPersistedSession(ctx context.Context) (*gateway.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Session), args.Error(1)
}

func (m *mockGateway) OnAuthStateChange(fn gateway.Listener) gateway.Subscription {
	return m.notifier.Subscribe(fn)
}

func (m *mockGateway) SignIn(ctx context.Context, creds gateway.Credentials) (*gateway.Session, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Session), args.Error(1)
}

func (m *mockGateway) SignUp(ctx context.Context, in gateway.SignUpInput) (*gateway.Identity, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Identity), args.Error(1)
}

func (m *mockGateway) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockGateway) FindIdentityByPrincipal(ctx context.Context, principalID string) (*gateway.Identity, error) {
	args := m.Called(ctx, principalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Identity), args.Error(1)
}

func (m *mockGateway) CountResourcesByOwner(ctx context.Context, ownerID string, kind subscription.Kind) (int, error) {
	args := m.Called(ctx, ownerID, kind)
	return args.Int(0), args.Error(1)
}

func (m *mockGateway) InsertResource(ctx context.Context, kind subscription.Kind, payload gateway.BoxInput) (*gateway.Box, error) {
	args := m.Called(ctx, kind, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Box), args.Error(1)
}

func (m *mockGateway) ListBoxes(ctx context.Context) ([]gateway.Box, error) {
	args := m.Called(ctx)
	boxes, _ := args.Get(0).([]gateway.Box)
	return boxes, args.Error(1)
}

func (m *mockGateway) GetBox(ctx context.Context, id string) (*gateway.Box, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Box), args.Error(1)
}

func (m *mockGateway) ListBoxesByOwner(ctx context.Context, ownerID string) ([]gateway.Box, error) {
	args := m.Called(ctx, ownerID)
	boxes, _ := args.Get(0).([]gateway.Box)
	return boxes, args.Error(1)
}

func (m *mockGateway) UpdateBox(ctx context.Context, id string, in gateway.BoxUpdate) (*gateway.Box, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Box), args.Error(1)
}

func (m *mockGateway) DeleteBox(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockGateway) UploadBoxImage(ctx context.Context, boxName, filename string, r io.Reader) (*gateway.Upload, error) {
	args := m.Called(ctx, boxName, filename, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Upload), args.Error(1)
}

func (m *mockGateway) ListFavorites(ctx context.Context) ([]gateway.FavoriteBox, error) {
	args := m.Called(ctx)
	favs, _ := args.Get(0).([]gateway.FavoriteBox)
	return favs, args.Error(1)
}

func (m *mockGateway) IsFavorite(ctx context.Context, boxID string) (bool, error) {
	args := m.Called(ctx, boxID)
	return args.Bool(0), args.Error(1)
}

func (m *mockGateway) AddFavorite(ctx context.Context, boxID string) error {
	return m.Called(ctx, boxID).Error(0)
}

func (m *mockGateway) RemoveFavorite(ctx context.Context, boxID string) error {
	return m.Called(ctx, boxID).Error(0)
}

func (m *mockGateway) ListVisits(ctx context.Context, boxID string, page, perPage int) (*gateway.VisitPage, error) {
	args := m.Called(ctx, boxID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.VisitPage), args.Error(1)
}

func (m *mockGateway) RecordVisit(ctx context.Context, boxID string, rating int, comment string) (*gateway.Visit, error) {
	args := m.Called(ctx, boxID, rating, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Visit), args.Error(1)
}

func (m *mockGateway) LatestVisit(ctx context.Context, boxID string) (*gateway.Visit, error) {
	args := m.Called(ctx, boxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Visit), args.Error(1)
}

func (m *mockGateway) ProfileByUsername(ctx context.Context, username string) (*gateway.Profile, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Profile), args.Error(1)
}

func (m *mockGateway) UpdateProfile(ctx context.Context, in gateway.ProfileUpdate) (*gateway.Identity, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Identity), args.Error(1)
}

func (m *mockGateway) UploadAvatar(ctx context.Context, filename string, r io.Reader) (*gateway.Identity, error) {
	args := m.Called(ctx, filename, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Identity), args.Error(1)
}

func (m *mockGateway) DeleteAccount(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockGateway) Plans(ctx context.Context) ([]subscription.Plan, error) {
	args := m.Called(ctx)
	plans, _ := args.Get(0).([]subscription.Plan)
	return plans, args.Error(1)
}

// ============================================================================
// Harness
// ============================================================================

type harness struct {
	gw       *mockGateway
	sessions *session.Manager
	shell    *Shell
	out      *bytes.Buffer
}

func newHarness(t *testing.T, input string, identity *gateway.Identity) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gw := new(mockGateway)
	sessions := session.NewManager(gw, session.NewStore(), logger)
	t.Cleanup(sessions.Close)
	sessions.SetIdentity(identity)

	out := &bytes.Buffer{}
	shell := NewShell(Deps{
		Gateway:  gw,
		Sessions: sessions,
		Guard:    guard.New(sessions),
		Quota:    quota.NewEnforcer(gw, logger),
		Logger:   logger,
	}, strings.NewReader(input), out)

	return &harness{gw: gw, sessions: sessions, shell: shell, out: out}
}

func reader(tier subscription.Tier) *gateway.Identity {
	return &gateway.Identity{ID: "u-1", Email: "reader@example.com", Username: "reader", Tier: tier}
}

// ============================================================================
// Guarding
// ============================================================================

func TestExec_AnonymousIsSentToSignIn(t *testing.T) {
	for _, line := range []string{"map", "my-boxes", "add-box", "box b-1", "profile", "user alice", "edit-box b-1"} {
		h := newHarness(t, "", nil)

		h.shell.Exec(context.Background(), line)

		assert.Contains(t, h.out.String(), "Please sign in", line)
		assert.Equal(t, "/auth", h.shell.Route(), line)
		h.gw.AssertNotCalled(t, "ListBoxes", mock.Anything)
		h.gw.AssertNotCalled(t, "CountResourcesByOwner", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestExec_PublicCommandsNeedNoSession(t *testing.T) {
	h := newHarness(t, "", nil)
	h.gw.On("Plans", mock.Anything).Return(subscription.Plans(), nil)

	h.shell.Exec(context.Background(), "pricing")

	assert.Contains(t, h.out.String(), "Freemium")
	assert.Contains(t, h.out.String(), "unlimited")
	assert.Equal(t, "/pricing", h.shell.Route())
}

func TestExec_PricingFallsBackToBuiltInPlans(t *testing.T) {
	h := newHarness(t, "", reader(subscription.Premium))
	h.gw.On("Plans", mock.Anything).Return(nil, errors.New("offline"))

	h.shell.Exec(context.Background(), "pricing")

	assert.Contains(t, h.out.String(), "Premium")
	assert.Contains(t, h.out.String(), "(current)")
}

func TestExec_UnknownAndUsage(t *testing.T) {
	h := newHarness(t, "", reader(subscription.Freemium))

	h.shell.Exec(context.Background(), "teleport")
	h.shell.Exec(context.Background(), "box")

	assert.Contains(t, h.out.String(), `Unknown command "teleport"`)
	assert.Contains(t, h.out.String(), "Usage: box <id>")
}

// ============================================================================
// add-box
// ============================================================================

func TestAddBox_FreemiumAtLimitIsDenied(t *testing.T) {
	h := newHarness(t, "", reader(subscription.Freemium))
	h.gw.On("CountResourcesByOwner", mock.Anything, "u-1", subscription.KindBox).Return(5, nil)

	h.shell.Exec(context.Background(), "add-box")

	assert.Contains(t, h.out.String(), "limit of 5 boxes")
	h.gw.AssertNotCalled(t, "InsertResource", mock.Anything, mock.Anything, mock.Anything)
	h.gw.AssertNotCalled(t, "UploadBoxImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddBox_FreemiumUnderLimitInserts(t *testing.T) {
	input := "Park box\nNear the fountain\n48,85\n2.35\n\n"
	h := newHarness(t, input, reader(subscription.Freemium))
	want := gateway.BoxInput{Name: "Park box", Description: "Near the fountain", Latitude: 48.85, Longitude: 2.35}

	h.gw.On("CountResourcesByOwner", mock.Anything, "u-1", subscription.KindBox).Return(4, nil)
	h.gw.On("InsertResource", mock.Anything, subscription.KindBox, want).Return(&gateway.Box{ID: "b-1", Name: "Park box"}, nil)
	h.gw.On("ListBoxesByOwner", mock.Anything, "u-1").Return([]gateway.Box{{ID: "b-1", Name: "Park box"}}, nil)
	h.gw.On("ListFavorites", mock.Anything).Return([]gateway.FavoriteBox{}, nil)

	h.shell.Exec(context.Background(), "add-box")

	assert.Contains(t, h.out.String(), `Book box "Park box" added.`)
	assert.Contains(t, h.out.String(), "Your boxes (1 of 5)")
	assert.Equal(t, "/my-boxes", h.shell.Route())
	h.gw.AssertExpectations(t)
}

func TestAddBox_PremiumSkipsCount(t *testing.T) {
	input := "Shelf\n\n0\n0\n\n"
	h := newHarness(t, input, reader(subscription.Premium))
	h.gw.On("InsertResource", mock.Anything, subscription.KindBox, mock.Anything).Return(&gateway.Box{ID: "b-2", Name: "Shelf"}, nil)
	h.gw.On("ListBoxesByOwner", mock.Anything, "u-1").Return([]gateway.Box{}, nil)
	h.gw.On("ListFavorites", mock.Anything).Return([]gateway.FavoriteBox{}, nil)

	h.shell.Exec(context.Background(), "add-box")

	assert.Contains(t, h.out.String(), "added")
	h.gw.AssertNotCalled(t, "CountResourcesByOwner", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddBox_UploadsImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelf.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o600))

	input := "Shelf\n\n1\n1\n" + path + "\n"
	h := newHarness(t, input, reader(subscription.Premium))
	h.gw.On("UploadBoxImage", mock.Anything, "Shelf", "shelf.png", mock.Anything).Return(&gateway.Upload{Key: "boxes/shelf.png"}, nil)
	h.gw.On("InsertResource", mock.Anything, subscription.KindBox, mock.MatchedBy(func(in gateway.BoxInput) bool {
		return in.ImageKey == "boxes/shelf.png"
	})).Return(&gateway.Box{ID: "b-3", Name: "Shelf"}, nil)
	h.gw.On("ListBoxesByOwner", mock.Anything, "u-1").Return([]gateway.Box{}, nil)
	h.gw.On("ListFavorites", mock.Anything).Return([]gateway.FavoriteBox{}, nil)

	h.shell.Exec(context.Background(), "add-box")

	h.gw.AssertExpectations(t)
}

func TestAddBox_QuotaCheckFailure(t *testing.T) {
	h := newHarness(t, "", reader(subscription.Freemium))
	h.gw.On("CountResourcesByOwner", mock.Anything, "u-1", subscription.KindBox).Return(0, errors.New("timeout"))

	h.shell.Exec(context.Background(), "add-box")

	assert.Contains(t, h.out.String(), "Could not check your box allowance")
	h.gw.AssertNotCalled(t, "InsertResource", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddBox_InsertErrorIsShown(t *testing.T) {
	h := newHarness(t, "Shelf\n\n1\n1\n\n", reader(subscription.Freemium))
	h.gw.On("CountResourcesByOwner", mock.Anything, "u-1", subscription.KindBox).Return(0, nil)
	h.gw.On("InsertResource", mock.Anything, subscription.KindBox, mock.Anything).Return(nil, apperrors.InvalidInput("name is too long"))

	h.shell.Exec(context.Background(), "add-box")

	assert.Contains(t, h.out.String(), "Error: name is too long")
	assert.Equal(t, "/add-box", h.shell.Route())
}

// ============================================================================
// Auth commands
// ============================================================================

func TestSignIn_SetsIdentityAndShowsMap(t *testing.T) {
	h := newHarness(t, "reader@example.com\nsecret123\n", nil)
	h.gw.On("SignIn", mock.Anything, gateway.Credentials{Email: "reader@example.com", Password: "secret123"}).
		Return(&gateway.Session{PrincipalID: "u-1"}, nil)
	h.gw.On("FindIdentityByPrincipal", mock.Anything, "u-1").Return(reader(subscription.Freemium), nil)
	h.gw.On("ListBoxes", mock.Anything).Return([]gateway.Box{}, nil)

	h.shell.Exec(context.Background(), "signin")

	require.NotNil(t, h.sessions.Current())
	assert.Equal(t, "u-1", h.sessions.Current().ID)
	assert.Contains(t, h.out.String(), "Welcome, reader!")
	assert.Equal(t, "/map", h.shell.Route())
}

func TestSignIn_WrongPassword(t *testing.T) {
	h := newHarness(t, "reader@example.com\nnope\n", nil)
	h.gw.On("SignIn", mock.Anything, mock.Anything).Return(nil, apperrors.Unauthorized("invalid email or password"))

	h.shell.Exec(context.Background(), "signin")

	assert.Nil(t, h.sessions.Current())
	assert.Contains(t, h.out.String(), "Error: invalid email or password")
}

func TestSignUp_ReturnsToSignIn(t *testing.T) {
	h := newHarness(t, "new@example.com\nsecret123\nnewbie\nNew\nReader\n", nil)
	h.gw.On("SignUp", mock.Anything, mock.MatchedBy(func(in gateway.SignUpInput) bool {
		return in.Email == "new@example.com" && in.Username == "newbie"
	})).Return(&gateway.Identity{ID: "u-2", Username: "newbie"}, nil)

	h.shell.Exec(context.Background(), "signup")

	assert.Contains(t, h.out.String(), "Account created for newbie")
	assert.Equal(t, "/auth", h.shell.Route())
	assert.Nil(t, h.sessions.Current())
}

func TestSignOut(t *testing.T) {
	h := newHarness(t, "", reader(subscription.Freemium))
	h.gw.On("SignOut", mock.Anything).Return(nil)

	h.shell.Exec(context.Background(), "signout")

	assert.Nil(t, h.sessions.Current())
	assert.Contains(t, h.out.String(), "Signed out.")
	assert.Equal(t, "/", h.shell.Route())
}

// ============================================================================
// Other commands
// ============================================================================

func TestShowBox(t *testing.T) {
	comment := "Great selection"
	h := newHarness(t, "", reader(subscription.Freemium))
	h.gw.On("GetBox", mock.Anything, "b-1").Return(&gateway.Box{ID: "b-1", Name: "Park box", CreatorUsername: "alice"}, nil)
	h.gw.On("IsFavorite", mock.Anything, "b-1").Return(true, nil)
	h.gw.On("LatestVisit", mock.Anything, "b-1").Return(nil, apperrors.NotFound("visit", "b-1"))
	visit := gateway.Visit{ID: "v-1", Rating: 4, Comment: &comment}
	visit.Visitor.Username = "bob"
	h.gw.On("ListVisits", mock.Anything, "b-1", 1, visitsShown).Return(&gateway.VisitPage{Items: []gateway.Visit{visit}, TotalCount: 1}, nil)

	h.shell.Exec(context.Background(), "box b-1")

	out := h.out.String()
	assert.Contains(t, out, "Park box")
	assert.Contains(t, out, "In your favorites.")
	assert.Contains(t, out, "bob ****. Great selection")
	assert.Equal(t, "/box/b-1", h.shell.Route())
}

func TestDeleteBox_OnlyOwner(t *testing.T) {
	h := newHarness(t, "", reader(subscription.Freemium))
	h.gw.On("GetBox", mock.Anything, "b-9").Return(&gateway.Box{ID: "b-9", Name: "Not mine", CreatorID: "u-2"}, nil)

	h.shell.Exec(context.Background(), "delete-box b-9")

	assert.Contains(t, h.out.String(), "only change your own boxes")
	h.gw.AssertNotCalled(t, "DeleteBox", mock.Anything, mock.Anything)
}

func TestDeleteBox_Confirmed(t *testing.T) {
	h := newHarness(t, "Shelf\n", reader(subscription.Freemium))
	h.gw.On("GetBox", mock.Anything, "b-1").Return(&gateway.Box{ID: "b-1", Name: "Shelf", CreatorID: "u-1"}, nil)
	h.gw.On("DeleteBox", mock.Anything, "b-1").Return(nil)

	h.shell.Exec(context.Background(), "delete-box b-1")

	assert.Contains(t, h.out.String(), `Book box "Shelf" deleted.`)
}

func TestRecordVisit(t *testing.T) {
	h := newHarness(t, "", reader(subscription.Freemium))
	h.gw.On("RecordVisit", mock.Anything, "b-1", 5, "lovely spot").Return(&gateway.Visit{ID: "v-1", Rating: 5}, nil)

	h.shell.Exec(context.Background(), "visit b-1 5 lovely spot")
	h.shell.Exec(context.Background(), "visit b-1 9")

	out := h.out.String()
	assert.Contains(t, out, "Visit recorded *****.")
	assert.Contains(t, out, "rating must be a whole number from 1 to 5")
	h.gw.AssertNumberOfCalls(t, "RecordVisit", 1)
}

func TestProfile_ShowsUsageAgainstLimit(t *testing.T) {
	h := newHarness(t, "", reader(subscription.Freemium))
	h.gw.On("CountResourcesByOwner", mock.Anything, "u-1", subscription.KindBox).Return(5, nil)

	h.shell.Exec(context.Background(), "profile")

	assert.Contains(t, h.out.String(), "Boxes: 5 of 5")
	assert.Contains(t, h.out.String(), "reached the box limit")
}

func TestEditProfile_UpdatesIdentity(t *testing.T) {
	h := newHarness(t, "renamed\n\n\n", reader(subscription.Freemium))
	renamed := reader(subscription.Freemium)
	renamed.Username = "renamed"
	h.gw.On("UpdateProfile", mock.Anything, mock.MatchedBy(func(u gateway.ProfileUpdate) bool {
		return u.Username != nil && *u.Username == "renamed" && u.FirstName == nil
	})).Return(renamed, nil)

	h.shell.Exec(context.Background(), "profile-edit")

	assert.Equal(t, "renamed", h.sessions.Current().Username)
}

func TestDeleteAccount_RequiresConfirmation(t *testing.T) {
	h := newHarness(t, "wrong\n", reader(subscription.Freemium))

	h.shell.Exec(context.Background(), "delete-account")

	assert.Contains(t, h.out.String(), "Cancelled.")
	h.gw.AssertNotCalled(t, "DeleteAccount", mock.Anything)
	assert.NotNil(t, h.sessions.Current())
}

func TestDeleteAccount(t *testing.T) {
	h := newHarness(t, "reader\n", reader(subscription.Freemium))
	h.gw.On("DeleteAccount", mock.Anything).Return(nil)

	h.shell.Exec(context.Background(), "delete-account")

	assert.Nil(t, h.sessions.Current())
	assert.Contains(t, h.out.String(), "Your account has been deleted.")
	assert.NotContains(t, h.out.String(), "Your session has ended")
}

// ============================================================================
// Run
// ============================================================================

func TestRun_ExitsOnQuitAndEOF(t *testing.T) {
	h := newHarness(t, "whoami\nquit\nmap\n", reader(subscription.Premium))

	require.NoError(t, h.shell.Run(context.Background()))

	out := h.out.String()
	assert.Contains(t, out, "reader (reader@example.com), Premium account")
	assert.Contains(t, out, "Bye!")
	h.gw.AssertNotCalled(t, "ListBoxes", mock.Anything)

	h2 := newHarness(t, "whoami\n", nil)
	require.NoError(t, h2.shell.Run(context.Background()))
	assert.Contains(t, h2.out.String(), "Not signed in.")
}

func TestSessionNotice_OnExternalSignOut(t *testing.T) {
	h := newHarness(t, "", reader(subscription.Freemium))
	sub := h.sessions.Store().Observe(h.shell.sessionNotice())
	defer sub.Unsubscribe()

	h.sessions.SetIdentity(nil)

	assert.Contains(t, h.out.String(), "Your session has ended. Please sign in again.")
}
