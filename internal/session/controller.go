// Package session holds the per-browser application state: which page is
// showing, who is signed in, the current notification and form errors.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/educlass/portal/internal/models"
)

var (
	ErrInvalidTransition = errors.New("invalid page transition")
	ErrSubmitPending     = errors.New("a submission is already in progress")
)

const NotificationLifetime = 5 * time.Second

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

type Notification struct {
	Message  string
	Severity Severity
	Shown    time.Time
}

// View is a consistent copy of a controller's state for rendering.
type View struct {
	Page         Page
	Role         models.Role
	LoggedIn     bool
	Identity     *models.SessionIdentity
	Notification *Notification
	FormErrors   map[string]string
	FormValues   map[string]string
	LoginError   string
	Pending      bool
}

type Controller struct {
	mu sync.Mutex

	page       Page
	role       models.Role
	identity   *models.SessionIdentity
	loggedIn   bool
	note       *Notification
	formErrors map[string]string
	formValues map[string]string
	loginError string
	pending    bool
	token      string
	lastSeen   time.Time

	now func() time.Time
}

func NewController(now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{page: PageHome, role: models.RoleUnset, now: now, lastSeen: now()}
}

// Fire applies ev to the current page. Undefined combinations return
// ErrInvalidTransition and leave the state alone.
func (c *Controller) Fire(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := transitions[c.page][ev]
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, c.page)
	}
	if t.to != c.page {
		c.formErrors = nil
		c.formValues = nil
		c.loginError = ""
	}
	if t.setRole {
		c.role = t.role
	}
	if t.clearIdentity {
		c.identity = nil
		c.loggedIn = false
		c.token = ""
	}
	c.page = t.to
	return nil
}

func (c *Controller) Page() Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

func (c *Controller) Role() models.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

func (c *Controller) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

// Identity returns a copy of the signed-in identity, or nil.
func (c *Controller) Identity() *models.SessionIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyIdentity(c.identity)
}

// SignIn records a fresh identity and the gateway token that persists it. It
// returns the token id and token of the sign-in it replaced, if any.
func (c *Controller) SignIn(id models.SessionIdentity, token string) (prevTokenID, prevToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil {
		prevTokenID = c.identity.TokenID
	}
	prevToken = c.token
	c.identity = copyIdentity(&id)
	c.loggedIn = true
	c.token = token
	return prevTokenID, prevToken
}

// Token is the gateway session token bound to this browser.
func (c *Controller) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// ApplyIdentityChange installs id as the current identity, or clears it when
// id is nil. The page never changes here.
func (c *Controller) ApplyIdentityChange(id *models.SessionIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == nil {
		c.identity = nil
		c.loggedIn = false
		c.token = ""
		return
	}
	c.identity = copyIdentity(id)
	c.loggedIn = true
}

func (c *Controller) Notify(message string, sev Severity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.note = &Notification{Message: message, Severity: sev, Shown: c.now()}
}

// Notification returns the live notification, if any.
func (c *Controller) Notification() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.liveNoteLocked()
	if n == nil {
		return Notification{}, false
	}
	return *n, true
}

func (c *Controller) liveNoteLocked() *Notification {
	if c.note == nil {
		return nil
	}
	if c.now().Sub(c.note.Shown) >= NotificationLifetime {
		c.note = nil
		return nil
	}
	n := *c.note
	return &n
}

// BeginSubmit marks a submission in flight. The caller must call EndSubmit
// when it returns nil.
func (c *Controller) BeginSubmit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return ErrSubmitPending
	}
	c.pending = true
	return nil
}

func (c *Controller) EndSubmit() {
	c.mu.Lock()
	c.pending = false
	c.mu.Unlock()
}

func (c *Controller) SetFormErrors(errs map[string]string, values map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formErrors = copyMap(errs)
	c.formValues = copyMap(values)
}

func (c *Controller) SetLoginError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loginError = msg
}

// Snapshot returns the render state and marks the browser as active.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = c.now()
	return View{
		Page:         c.page,
		Role:         c.role,
		LoggedIn:     c.loggedIn,
		Identity:     copyIdentity(c.identity),
		Notification: c.liveNoteLocked(),
		FormErrors:   copyMap(c.formErrors),
		FormValues:   copyMap(c.formValues),
		LoginError:   c.loginError,
		Pending:      c.pending,
	}
}

func (c *Controller) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func copyIdentity(id *models.SessionIdentity) *models.SessionIdentity {
	if id == nil {
		return nil
	}
	out := *id
	if id.Student != nil {
		rec := *id.Student
		out.Student = &rec
	}
	return &out
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
