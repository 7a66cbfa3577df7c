package identity

import (
	"context"
	"time"

	"github.com/educlass/portal/internal/events"
	"github.com/educlass/portal/internal/models"
)

// StartSessionSweeper revokes expired sessions every interval until ctx is
// done, publishing a sign-out for each.
func (g *Gateway) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
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
				if n, err := g.SweepExpired(ctx); err != nil {
					g.log.WithError(err).Warn("session sweep failed")
				} else if n > 0 {
					g.log.WithField("expired", n).Info("sessions expired")
				}
			}
		}
	}()
}

// SweepExpired revokes every live session past its expiry and returns how
// many it revoked.
func (g *Gateway) SweepExpired(ctx context.Context) (int, error) {
	now := g.opts.Now()
	var tokenIDs []string
	tx := g.db.WithContext(ctx)
	if err := tx.Model(&models.IdentitySession{}).
		Where("revoked_at IS NULL AND expires_at <= ?", now).
		Pluck("token_id", &tokenIDs).Error; err != nil {
		return 0, err
	}
	if len(tokenIDs) == 0 {
		return 0, nil
	}
	if err := tx.Model(&models.IdentitySession{}).
		Where("token_id IN ?", tokenIDs).
		Update("revoked_at", now).Error; err != nil {
		return 0, err
	}
	for _, id := range tokenIDs {
		g.bus.Publish(events.IdentityChange{TokenID: id})
	}
	return len(tokenIDs), nil
}
