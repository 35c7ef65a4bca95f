package service

import (
	"context"
	"time"

	"github.com/trojan-ui/trojan-ui/database"
	"github.com/trojan-ui/trojan-ui/database/model"
	"github.com/trojan-ui/trojan-ui/logger"
)

// UsageService enforces quota and expiry: it derives a user's status from
// their traffic and expiry date and mirrors it onto their assignments.
type UsageService struct {
	now func() time.Time
}

func (s *UsageService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// evaluateStatus decides a user's status. An expiry date is valid through
// the end of that day; expiry is checked before quota.
func evaluateStatus(user *model.User, used int64, now time.Time) model.UserStatus {
	if user.ExpiryDate != nil && !now.Before(user.ExpiryDate.AddDate(0, 0, 1)) {
		return model.UserExpired
	}
	if !user.IsUnlimited() && used >= user.Quota {
		return model.UserOverQuota
	}
	return model.UserActive
}

// CheckUser re-evaluates one user and persists the result through store,
// which may be a transaction.
func (s *UsageService) CheckUser(ctx context.Context, store database.EntitlementStore, username string) (model.UserStatus, error) {
	user, err := getUser(ctx, store, username)
	if err != nil {
		return "", err
	}
	upload, download, err := store.SumTraffic(ctx, username)
	if err != nil {
		return "", storeFailure("sum traffic", err)
	}

	status := evaluateStatus(user, upload+download, s.clock())
	if status != user.Status {
		if err := store.UpdateUser(ctx, username, map[string]any{"status": status}); err != nil {
			return "", storeFailure("update user status", err)
		}
		logger.Infof("user %s status %s -> %s", username, user.Status, status)
	}
	if err := store.SetAssignmentsEnable(ctx, username, status == model.UserActive); err != nil {
		return "", storeFailure("set assignments enable", err)
	}
	return status, nil
}

// CheckAll re-evaluates every user. A failure on one user is logged and does
// not stop the others.
func (s *UsageService) CheckAll(ctx context.Context, store database.EntitlementStore) (int, error) {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return 0, storeFailure("list users", err)
	}
	changed := 0
	for _, user := range users {
		status, err := s.CheckUser(ctx, store, user.Username)
		if err != nil {
			logger.Warningf("usage check for %s failed: %v", user.Username, err)
			continue
		}
		if status != user.Status {
			changed++
		}
	}
	return changed, nil
}
