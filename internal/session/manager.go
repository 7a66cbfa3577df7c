package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/educlass/portal/internal/events"
	"github.com/educlass/portal/internal/identity"
	"github.com/educlass/portal/internal/models"
	"github.com/educlass/portal/internal/roster"
	"github.com/educlass/portal/internal/services"
)

// Restorer resolves a persisted gateway token.
type Restorer interface {
	Restore(ctx context.Context, token string) (identity.Session, error)
}

// Manager owns one Controller per browser, keyed by an opaque session id,
// and routes identity changes to the browser bound to each token.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Controller
	byToken  map[string]string // token id -> session id

	gw     Restorer
	roster *roster.Store
	log    logrus.FieldLogger
	now    func() time.Time

	// OnIdentityChange is called after a routed change has been applied.
	OnIdentityChange func(sid string, id *models.SessionIdentity)
}

func NewManager(gw Restorer, r *roster.Store, log logrus.FieldLogger) *Manager {
	return &Manager{
		sessions: map[string]*Controller{},
		byToken:  map[string]string{},
		gw:       gw,
		roster:   r,
		log:      log,
		now:      time.Now,
	}
}

func (m *Manager) Get(sid string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[sid]
	return c, ok
}

// Create starts a controller for a new browser. A persisted gateway token is
// restored and delivered as an identity change; an unusable one is dropped.
func (m *Manager) Create(ctx context.Context, token string) (string, *Controller) {
	sid := uuid.NewString()
	c := NewController(m.now)

	m.mu.Lock()
	m.sessions[sid] = c
	m.mu.Unlock()

	if token == "" || m.gw == nil {
		return sid, c
	}
	sess, err := m.gw.Restore(ctx, token)
	if err != nil {
		if identity.HasCode(err, identity.CodeInvalidToken) {
			m.log.WithError(err).Debug("persisted session not restored")
		} else {
			m.log.WithError(err).Warn("restoring persisted session failed")
		}
		c.ApplyIdentityChange(nil)
		return sid, c
	}
	id := services.IdentityFromPrincipal(sess.Principal, sess.TokenID, m.roster)
	c.SignIn(id, token)
	m.Bind(sid, sess.TokenID)
	return sid, c
}

// Bind routes identity changes for tokenID to the browser sid.
func (m *Manager) Bind(sid, tokenID string) {
	if tokenID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byToken[tokenID] = sid
}

// SignIn installs a new sign-in on the browser sid and moves identity routing
// from the token it replaces to the new one. The replaced token is returned,
// empty when there was none, so the caller can revoke it.
func (m *Manager) SignIn(sid string, c *Controller, id models.SessionIdentity, token string) string {
	prevID, prevToken := c.SignIn(id, token)

	m.mu.Lock()
	if prevID != "" && prevID != id.TokenID && m.byToken[prevID] == sid {
		delete(m.byToken, prevID)
	}
	if id.TokenID != "" {
		m.byToken[id.TokenID] = sid
	}
	m.mu.Unlock()

	if prevToken == token {
		return ""
	}
	return prevToken
}

// HandleIdentityChange is subscribed to the gateway feed.
func (m *Manager) HandleIdentityChange(ev events.IdentityChange) {
	m.mu.Lock()
	sid, ok := m.byToken[ev.TokenID]
	var c *Controller
	if ok {
		c = m.sessions[sid]
		if ev.Principal == nil {
			delete(m.byToken, ev.TokenID)
		}
	}
	m.mu.Unlock()
	if c == nil {
		return
	}

	var id *models.SessionIdentity
	if ev.Principal != nil {
		v := services.IdentityFromPrincipal(*ev.Principal, ev.TokenID, m.roster)
		id = &v
	}
	c.ApplyIdentityChange(id)
	m.log.WithFields(logrus.Fields{"sid": sid, "signed_in": id != nil}).Debug("identity change applied")
	if m.OnIdentityChange != nil {
		m.OnIdentityChange(sid, id)
	}
}

// Sweep forgets browsers that have not rendered a page for idle.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := m.now().Add(-idle)
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for sid, c := range m.sessions {
		if c.idleSince().Before(cutoff) {
			delete(m.sessions, sid)
			n++
		}
	}
	for tok, sid := range m.byToken {
		if _, ok := m.sessions[sid]; !ok {
			delete(m.byToken, tok)
		}
	}
	return n
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StartSweeper runs Sweep every interval until ctx is done.
func (m *Manager) StartSweeper(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(idle); n > 0 {
					m.log.WithField("evicted", n).Debug("idle browser sessions evicted")
				}
			}
		}
	}()
}
