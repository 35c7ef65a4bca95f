package service

import (
	"testing"
	"time"

	"github.com/trojan-ui/trojan-ui/database/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateStatus(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	day := func(y int, m time.Month, d int) *time.Time {
		v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &v
	}
	tests := []struct {
		name string
		user model.User
		used int64
		want model.UserStatus
	}{
		{"unlimited", model.User{Quota: model.UnlimitedQuota}, 1 << 40, model.UserActive},
		{"under quota", model.User{Quota: 100}, 99, model.UserActive},
		{"at quota", model.User{Quota: 100}, 100, model.UserOverQuota},
		{"expires today", model.User{Quota: -1, ExpiryDate: day(2025, 6, 15)}, 0, model.UserActive},
		{"expired yesterday", model.User{Quota: -1, ExpiryDate: day(2025, 6, 14)}, 0, model.UserExpired},
		{"expired wins over quota", model.User{Quota: 1, ExpiryDate: day(2025, 1, 1)}, 5, model.UserExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluateStatus(&tt.user, tt.used, now))
		})
	}
}

func TestCheckAll(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")
	env.register(t, "alice")
	_, err := env.reconcile.Reconcile(env.ctx, "alice", []string{LocalNodeName})
	require.NoError(t, err)
	require.NoError(t, env.store.UpdateUser(env.ctx, "alice", map[string]any{"quota": int64(10)}))
	require.NoError(t, env.store.AddTraffic(env.ctx, "alice", LocalNodeName, 5, 5))

	changed, err := env.usage.CheckAll(env.ctx, env.store)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, model.UserOverQuota, env.getUser(t, "alice").Status)

	assignments, err := env.store.ListAssignments(env.ctx, "alice")
	require.NoError(t, err)
	assert.False(t, assignments[0].Enable)

	// Raising the quota re-enables the assignments on the next pass.
	require.NoError(t, env.store.UpdateUser(env.ctx, "alice", map[string]any{"quota": int64(-1)}))
	status, err := env.usage.CheckUser(env.ctx, env.store, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.UserActive, status)
	assignments, err = env.store.ListAssignments(env.ctx, "alice")
	require.NoError(t, err)
	assert.True(t, assignments[0].Enable)

	_, err = env.usage.CheckUser(env.ctx, env.store, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
