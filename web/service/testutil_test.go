package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/trojan-ui/trojan-ui/database"
	"github.com/trojan-ui/trojan-ui/database/model"
	"github.com/trojan-ui/trojan-ui/web/entity"

	"github.com/stretchr/testify/require"
)

type testEnv struct {
	ctx       context.Context
	store     *database.GormStore
	settings  *SettingService
	usage     *UsageService
	nodes     *NodeService
	reconcile *ReconcileService
	users     *UserService
	renderer  *LinkRenderer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	require.NoError(t, database.InitDB(filepath.Join(t.TempDir(), "trojan-ui.db")))
	t.Cleanup(func() { _ = database.CloseDB() })

	store := database.DefaultStore()
	settings := &SettingService{}
	renderer, err := LoadLinkRenderer(settings)
	require.NoError(t, err)

	usage := &UsageService{}
	nodes := NewNodeService(store, usage)
	reconcile := NewReconcileService(store, usage)
	return &testEnv{
		ctx:       context.Background(),
		store:     store,
		settings:  settings,
		usage:     usage,
		nodes:     nodes,
		reconcile: reconcile,
		users:     NewUserService(store, nodes, reconcile, usage, renderer),
		renderer:  renderer,
	}
}

func (e *testEnv) register(t *testing.T, username string) {
	t.Helper()
	require.NoError(t, e.users.Register(e.ctx, &entity.RegisterRequest{
		Username: username,
		Password: "secret-pass",
	}))
}

func (e *testEnv) addNode(t *testing.T, name string) *entity.NodeCredential {
	t.Helper()
	cred, err := e.nodes.AddNode(e.ctx, &entity.NodeRequest{
		Name:   name,
		Domain: name + ".example.org",
		Region: "HK",
	})
	require.NoError(t, err)
	return cred
}

func (e *testEnv) assignedSecrets(t *testing.T, username string) map[string]string {
	t.Helper()
	assignments, err := e.store.ListAssignments(e.ctx, username)
	require.NoError(t, err)
	secrets := make(map[string]string, len(assignments))
	for _, a := range assignments {
		secrets[a.NodeName] = a.Password
	}
	return secrets
}

// requireCountsConsistent asserts every node's user_number equals its number
// of assignment rows.
func (e *testEnv) requireCountsConsistent(t *testing.T) {
	t.Helper()
	nodes, err := e.store.ListNodes(e.ctx)
	require.NoError(t, err)
	for _, node := range nodes {
		assignments, err := e.store.ListNodeAssignments(e.ctx, node.Name)
		require.NoError(t, err)
		require.Equal(t, len(assignments), node.UserNumber, "node %s", node.Name)
	}
}

func (e *testEnv) getUser(t *testing.T, username string) *model.User {
	t.Helper()
	user, err := e.store.GetUser(e.ctx, username)
	require.NoError(t, err)
	return user
}
