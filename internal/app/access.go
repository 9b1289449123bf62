package app

import "context"

// checkAccess decides whether a user may receive catalog content. Active
// means: subscribed, expiry set, expiry in the future. Expiry is never
// swept in the background; an expired-but-flagged user is flipped inactive
// lazily, right here, the moment access is tested.
func (a *App) checkAccess(ctx context.Context, userID int64) (bool, string) {
	if a.isAdmin(userID) {
		return true, ""
	}
	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		a.log.Error("access lookup failed", "user", userID, "err", err)
		return false, "no active subscription"
	}
	if !user.Subscribed || user.ExpiresAt == nil {
		return false, "no active subscription"
	}
	if a.now().After(*user.ExpiresAt) {
		if err := a.store.Deactivate(ctx, userID); err != nil {
			a.log.Error("lazy expiry write failed", "user", userID, "err", err)
		}
		a.log.Info("subscription expired", "user", userID, "expired_at", *user.ExpiresAt)
		return false, "subscription expired"
	}
	return true, ""
}
