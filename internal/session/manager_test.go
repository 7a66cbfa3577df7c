package session

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/educlass/portal/internal/db"
	"github.com/educlass/portal/internal/events"
	"github.com/educlass/portal/internal/identity"
	"github.com/educlass/portal/internal/kv"
	"github.com/educlass/portal/internal/models"
	"github.com/educlass/portal/internal/roster"
	"github.com/educlass/portal/internal/services"
)

type stubRestorer struct {
	sessions map[string]identity.Session
}

func (s stubRestorer) Restore(_ context.Context, token string) (identity.Session, error) {
	if sess, ok := s.sessions[token]; ok {
		return sess, nil
	}
	return identity.Session{}, &identity.Error{Code: identity.CodeInvalidToken, Message: "Session is invalid or expired."}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testRoster(t *testing.T) *roster.Store {
	t.Helper()
	st := roster.NewStore(kv.NewMemory(), quietLogger())
	if err := st.Append(context.Background(), models.StudentRecord{StudentID: "STU00000007", Email: "ann@x.io", FullName: "Ann"}); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestCreateRestoresPersistedToken(t *testing.T) {
	gw := stubRestorer{sessions: map[string]identity.Session{
		"tok-ann": {
			Principal: models.Principal{UID: "u1", Email: "ann@x.io", Role: models.RoleStudent},
			Token:     "tok-ann",
			TokenID:   "jti-1",
		},
	}}
	m := NewManager(gw, testRoster(t), quietLogger())

	sid, c := m.Create(context.Background(), "tok-ann")
	if sid == "" {
		t.Fatal("expected a session id")
	}
	if got, ok := m.Get(sid); !ok || got != c {
		t.Fatal("controller not registered under its sid")
	}
	id := c.Identity()
	if id == nil || id.UID != "u1" || id.Student == nil || id.Student.StudentID != "STU00000007" {
		t.Fatalf("expected restored identity with roster record, got %+v", id)
	}
	if c.Page() != PageHome {
		t.Fatalf("restore must not change the page, got %s", c.Page())
	}

	_, anon := m.Create(context.Background(), "stale")
	if anon.LoggedIn() {
		t.Fatal("stale token must not sign in")
	}
}

func TestIdentityChangeRoutedByToken(t *testing.T) {
	m := NewManager(nil, testRoster(t), quietLogger())
	sid, c := m.Create(context.Background(), "")
	c.SignIn(models.SessionIdentity{UID: "u1", TokenID: "jti-1"}, "tok")
	m.Bind(sid, "jti-1")

	var pushed []string
	m.OnIdentityChange = func(s string, id *models.SessionIdentity) {
		if id == nil {
			pushed = append(pushed, s+":out")
		} else {
			pushed = append(pushed, s+":in")
		}
	}

	bus := events.NewBus()
	bus.Subscribe(m.HandleIdentityChange)
	bus.Publish(events.IdentityChange{TokenID: "other"})
	bus.Publish(events.IdentityChange{TokenID: "jti-1"})

	if c.LoggedIn() {
		t.Fatal("sign-out change should clear the bound controller")
	}
	if len(pushed) != 1 || pushed[0] != sid+":out" {
		t.Fatalf("unexpected pushes %v", pushed)
	}

	bus.Publish(events.IdentityChange{TokenID: "jti-1"})
	if len(pushed) != 1 {
		t.Fatal("token binding should be dropped after sign-out")
	}
}

func TestSweepEvictsIdleBrowsers(t *testing.T) {
	m := NewManager(nil, nil, quietLogger())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	idleSid, _ := m.Create(context.Background(), "")
	now = base.Add(time.Hour)
	activeSid, active := m.Create(context.Background(), "")
	active.Snapshot()
	m.Bind(idleSid, "jti-idle")

	if n := m.Sweep(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, ok := m.Get(idleSid); ok {
		t.Fatal("idle session should be gone")
	}
	if _, ok := m.Get(activeSid); !ok {
		t.Fatal("active session should remain")
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 session left, got %d", m.Len())
	}
}

func TestSignInReplacesRestoredToken(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open("sqlite", filepath.Join(t.TempDir(), "session_test.db"), quietLogger())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	base := time.Now()
	now := base
	gw := identity.New(conn, events.NewBus(), quietLogger(), identity.Options{
		Secret:     "test",
		Issuer:     "test",
		TTL:        time.Hour,
		BcryptCost: bcrypt.MinCost,
		Now:        func() time.Time { return now },
	})
	rs := testRoster(t)
	m := NewManager(gw, rs, quietLogger())
	gw.OnIdentityChange(m.HandleIdentityChange)

	first, err := gw.CreateAccount(ctx, "ann@x.io", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	sid, c := m.Create(ctx, first.Token)
	if !c.LoggedIn() {
		t.Fatal("expected restored sign-in")
	}

	now = base.Add(30 * time.Minute)
	second, err := gw.VerifyCredentials(ctx, "ann@x.io", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Fire(ChooseStudentLogin)
	old := m.SignIn(sid, c, services.IdentityFromPrincipal(second.Principal, second.TokenID, rs), second.Token)
	if old != first.Token {
		t.Fatalf("expected the restored token back, got %q", old)
	}
	_ = c.Fire(LoginSucceeded)

	// The first session expires while the second is still live.
	now = base.Add(70 * time.Minute)
	if n, err := gw.SweepExpired(ctx); err != nil || n != 1 {
		t.Fatalf("expected one expired session, got %d (%v)", n, err)
	}
	if !c.LoggedIn() || c.Token() != second.Token || c.Identity() == nil {
		t.Fatal("expiry of the replaced token must not sign the browser out")
	}
	if c.Page() != PageStudentDashboard {
		t.Fatalf("unexpected page %s", c.Page())
	}

	if err := gw.SignOut(ctx, second.Token); err != nil {
		t.Fatal(err)
	}
	if c.LoggedIn() {
		t.Fatal("sign-out of the current token should still reach the browser")
	}

	if again := m.SignIn(sid, c, services.IdentityFromPrincipal(second.Principal, second.TokenID, rs), second.Token); again != "" {
		t.Fatalf("a signed-out browser has nothing to replace, got %q", again)
	}
}
