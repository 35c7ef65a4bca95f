package service

import (
	"strings"
	"testing"
	"time"

	"github.com/trojan-ui/trojan-ui/database/model"
	"github.com/trojan-ui/trojan-ui/web/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xlzd/gotp"
)

func TestRegisterBootstrapsFirstUser(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")
	env.register(t, "alice")

	admin := env.getUser(t, "admin")
	assert.Equal(t, model.PermissionSuperAdmin, admin.Permission)
	assert.Equal(t, model.PermissionUser, env.getUser(t, "alice").Permission)

	local, err := env.store.GetNode(env.ctx, LocalNodeName)
	require.NoError(t, err)
	assert.Equal(t, model.LocalDomain, local.Domain)
	assert.NotEmpty(t, local.Password)

	nodes, err := env.store.ListNodes(env.ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)

	assert.GreaterOrEqual(t, len(admin.SubscribeSecret), 8)
	assert.LessOrEqual(t, len(admin.SubscribeSecret), 16)
	assert.NotEqual(t, "secret-pass", admin.Password)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")

	tests := []struct {
		name string
		req  entity.RegisterRequest
		want error
	}{
		{"short username", entity.RegisterRequest{Username: "abc", Password: "secret-pass"}, ErrValidation},
		{"bad username chars", entity.RegisterRequest{Username: "al ice", Password: "secret-pass"}, ErrValidation},
		{"long username", entity.RegisterRequest{Username: strings.Repeat("a", 17), Password: "secret-pass"}, ErrValidation},
		{"short password", entity.RegisterRequest{Username: "alice", Password: "12345"}, ErrValidation},
		{"password with space", entity.RegisterRequest{Username: "alice", Password: "secret pass"}, ErrValidation},
		{"bad email", entity.RegisterRequest{Username: "alice", Password: "secret-pass", Email: "nope"}, ErrValidation},
		{"duplicate", entity.RegisterRequest{Username: "admin", Password: "secret-pass"}, ErrDuplicate},
		{"ok with email", entity.RegisterRequest{Username: "alice", Password: "secret-pass", Email: "a@example.org"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.users.Register(env.ctx, &tt.req)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegisterCapacityCheckedFirst(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.settings.SetUserMaxNum(1))
	env.register(t, "admin")

	err := env.users.Register(env.ctx, &entity.RegisterRequest{Username: "x", Password: "1"})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	err = env.users.Register(env.ctx, &entity.RegisterRequest{Username: "alice", Password: "secret-pass"})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	count, err := env.store.CountUsers(env.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")

	user, err := env.users.Login(env.ctx, "admin", "secret-pass", "")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)

	_, err = env.users.Login(env.ctx, "admin", "wrong-pass", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.users.Login(env.ctx, "ghost", "secret-pass", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginTwoFactor(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")
	token := gotp.RandomSecret(16)
	require.NoError(t, env.settings.SetTwoFactorEnable(true))
	require.NoError(t, env.settings.SetTwoFactorToken(token))

	_, err := env.users.Login(env.ctx, "admin", "secret-pass", "000000x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.users.Login(env.ctx, "admin", "secret-pass", gotp.NewDefaultTOTP(token).Now())
	assert.NoError(t, err)
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")
	env.register(t, "alice")
	_, err := env.reconcile.Reconcile(env.ctx, "alice", []string{LocalNodeName})
	require.NoError(t, err)
	require.NoError(t, env.store.AddTraffic(env.ctx, "alice", LocalNodeName, 1024, 512))

	resp, err := env.users.ListUsers(env.ctx)
	require.NoError(t, err)
	require.Len(t, resp.Users, 2)
	assert.Equal(t, []string{LocalNodeName}, resp.NodeList)

	alice := resp.Users[1]
	assert.Equal(t, "alice", alice.Username)
	assert.Equal(t, "unlimited", alice.Quota)
	assert.Equal(t, "permanent", alice.ExpiryDate)
	assert.Equal(t, []string{LocalNodeName}, alice.Nodes)
	assert.Equal(t, "1.00KB", alice.Upload)
	assert.Equal(t, "512.00B", alice.Download)
	assert.Equal(t, "1.50KB", alice.Total)
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")
	env.register(t, "alice")
	env.addNode(t, "hk")
	admin := env.getUser(t, "admin")

	perm := model.PermissionAdmin
	quota := entity.Quota(4096)
	expiry := "2099-01-31"
	err := env.users.UpdateUser(env.ctx, admin, &entity.UpdateUserRequest{
		Username: "alice",
		UserData: entity.UserData{Permission: &perm, Quota: &quota, ExpiryDate: &expiry},
		NodeList: []string{"hk", LocalNodeName},
	})
	require.NoError(t, err)

	alice := env.getUser(t, "alice")
	assert.Equal(t, model.PermissionAdmin, alice.Permission)
	assert.EqualValues(t, 4096, alice.Quota)
	require.NotNil(t, alice.ExpiryDate)
	assert.Equal(t, expiry, alice.ExpiryDate.Format("2006-01-02"))
	assert.Len(t, env.assignedSecrets(t, "alice"), 2)
	env.requireCountsConsistent(t)

	// A nil node list leaves assignments untouched.
	unlimited := entity.Quota(-1)
	err = env.users.UpdateUser(env.ctx, admin, &entity.UpdateUserRequest{
		Username: "alice",
		UserData: entity.UserData{Quota: &unlimited},
	})
	require.NoError(t, err)
	assert.Len(t, env.assignedSecrets(t, "alice"), 2)
	alice = env.getUser(t, "alice")
	assert.True(t, alice.IsUnlimited())
	// Leaving the expiry date out makes the account permanent again.
	assert.Nil(t, alice.ExpiryDate)
}

func TestUpdateUserClearsExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")
	env.register(t, "alice")
	admin := env.getUser(t, "admin")

	expiry := "2099-01-31"
	permanent := "permanent"
	empty := ""
	tests := []struct {
		name   string
		expiry *string
	}{
		{"absent", nil},
		{"empty", &empty},
		{"permanent", &permanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, env.users.UpdateUser(env.ctx, admin, &entity.UpdateUserRequest{
				Username: "alice",
				UserData: entity.UserData{ExpiryDate: &expiry},
			}))
			require.NotNil(t, env.getUser(t, "alice").ExpiryDate)

			require.NoError(t, env.users.UpdateUser(env.ctx, admin, &entity.UpdateUserRequest{
				Username: "alice",
				UserData: entity.UserData{ExpiryDate: tt.expiry},
			}))
			assert.Nil(t, env.getUser(t, "alice").ExpiryDate)
		})
	}
}

func TestUpdateUserReevaluatesStatus(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")
	env.register(t, "alice")
	admin := env.getUser(t, "admin")
	_, err := env.reconcile.Reconcile(env.ctx, "alice", []string{LocalNodeName})
	require.NoError(t, err)
	require.NoError(t, env.store.AddTraffic(env.ctx, "alice", LocalNodeName, 100, 100))

	quota := entity.Quota(150)
	err = env.users.UpdateUser(env.ctx, admin, &entity.UpdateUserRequest{
		Username: "alice",
		UserData: entity.UserData{Quota: &quota},
		NodeList: []string{LocalNodeName},
	})
	require.NoError(t, err)
	assert.Equal(t, model.UserOverQuota, env.getUser(t, "alice").Status)

	past := time.Now().AddDate(0, 0, -3).Format("2006-01-02")
	unlimited := entity.Quota(-1)
	err = env.users.UpdateUser(env.ctx, admin, &entity.UpdateUserRequest{
		Username: "alice",
		UserData: entity.UserData{Quota: &unlimited, ExpiryDate: &past},
	})
	require.NoError(t, err)
	assert.Equal(t, model.UserExpired, env.getUser(t, "alice").Status)
}

func TestUpdateUserRejects(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")
	env.register(t, "moder")
	env.register(t, "alice")
	admin := env.getUser(t, "admin")
	modPerm := model.PermissionAdmin
	require.NoError(t, env.users.UpdateUser(env.ctx, admin, &entity.UpdateUserRequest{
		Username: "moder",
		UserData: entity.UserData{Permission: &modPerm},
	}))
	mod := env.getUser(t, "moder")

	superPerm := model.PermissionSuperAdmin
	badPerm := 7
	badDate := "31/01/2099"
	tests := []struct {
		name  string
		actor *model.User
		req   entity.UpdateUserRequest
		want  error
	}{
		{"missing user", admin, entity.UpdateUserRequest{Username: "ghost"}, ErrNotFound},
		{"unknown tier", admin, entity.UpdateUserRequest{Username: "alice", UserData: entity.UserData{Permission: &badPerm}}, ErrValidation},
		{"bad date", admin, entity.UpdateUserRequest{Username: "alice", UserData: entity.UserData{ExpiryDate: &badDate}}, ErrValidation},
		{"grant above own tier", mod, entity.UpdateUserRequest{Username: "alice", UserData: entity.UserData{Permission: &superPerm}}, ErrUnauthorized},
		{"touch higher tier", mod, entity.UpdateUserRequest{Username: "admin", NodeList: []string{}}, ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.users.UpdateUser(env.ctx, tt.actor, &tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")
	env.register(t, "alice")
	admin := env.getUser(t, "admin")
	_, err := env.reconcile.Reconcile(env.ctx, "alice", []string{LocalNodeName})
	require.NoError(t, err)

	require.NoError(t, env.users.DeleteUser(env.ctx, admin, "alice"))
	_, err = env.users.GetUser(env.ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, env.assignedSecrets(t, "alice"))
	env.requireCountsConsistent(t)

	assert.ErrorIs(t, env.users.DeleteUser(env.ctx, admin, "alice"), ErrNotFound)
}

func TestGetTrojanUrls(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.settings.SetWebDomain("panel.example.org"))
	renderer, err := LoadLinkRenderer(env.settings)
	require.NoError(t, err)
	env.users.renderer = renderer

	env.register(t, "admin")
	_, err = env.reconcile.Reconcile(env.ctx, "admin", []string{LocalNodeName})
	require.NoError(t, err)
	admin := env.getUser(t, "admin")
	secret := env.assignedSecrets(t, "admin")[LocalNodeName]

	resp, err := env.users.GetTrojanUrls(env.ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{"trojan://" + secret + "@panel.example.org:443#Local|local"}, resp.TrojanUrls)
	assert.Equal(t, "/user/subscribe?u=admin&p="+admin.SubscribeSecret, resp.SubscribeLink)

	_, err = env.users.GetTrojanUrls(env.ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetSubscribe(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")
	admin := env.getUser(t, "admin")

	require.NoError(t, env.users.ResetSubscribe(env.ctx, admin, "admin"))
	assert.NotEqual(t, admin.SubscribeSecret, env.getUser(t, "admin").SubscribeSecret)
	assert.ErrorIs(t, env.users.ResetSubscribe(env.ctx, admin, "ghost"), ErrNotFound)
}

func TestSubscribeQRCode(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")

	png, err := env.users.SubscribeQRCode(env.ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}
