package service

import (
	"maps"
	"slices"
	"testing"

	"github.com/trojan-ui/trojan-ui/database/model"
	"github.com/trojan-ui/trojan-ui/web/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode(t *testing.T) {
	env := newTestEnv(t)
	cred := env.addNode(t, "hk")
	assert.Equal(t, "hk", cred.Name)
	assert.NotEmpty(t, cred.Password)

	_, err := env.nodes.AddNode(env.ctx, &entity.NodeRequest{Name: "hk", Domain: "x.example.org"})
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = env.nodes.AddNode(env.ctx, &entity.NodeRequest{Name: "bad name", Domain: "x.example.org"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.nodes.AddNode(env.ctx, &entity.NodeRequest{Name: "jp"})
	assert.ErrorIs(t, err, ErrValidation)

	nodes, err := env.nodes.ListNodes(env.ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "hk.example.org", nodes[0].Domain)
}

func TestProvisionLocalNodeSkipsExisting(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.CreateNode(env.ctx, &model.Node{Name: LocalNodeName, Domain: "relay.example.org", Password: "keep"}))
	env.register(t, "admin")

	local, err := env.store.GetNode(env.ctx, LocalNodeName)
	require.NoError(t, err)
	assert.Equal(t, "relay.example.org", local.Domain)
	assert.Equal(t, "keep", local.Password)
}

func TestDeleteNode(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")
	env.register(t, "alice")
	env.addNode(t, "hk")
	_, err := env.reconcile.Reconcile(env.ctx, "alice", []string{"hk", LocalNodeName})
	require.NoError(t, err)

	require.NoError(t, env.nodes.DeleteNode(env.ctx, "hk"))
	assert.Equal(t, []string{LocalNodeName}, slices.Sorted(maps.Keys(env.assignedSecrets(t, "alice"))))
	env.requireCountsConsistent(t)

	assert.ErrorIs(t, env.nodes.DeleteNode(env.ctx, "hk"), ErrNotFound)
}

func TestNodeAgentFeed(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "admin")
	env.register(t, "alice")
	env.register(t, "bobby")
	cred := env.addNode(t, "hk")
	for _, u := range []string{"alice", "bobby"} {
		_, err := env.reconcile.Reconcile(env.ctx, u, []string{"hk"})
		require.NoError(t, err)
	}
	require.NoError(t, env.store.UpdateUser(env.ctx, "bobby", map[string]any{"quota": int64(100)}))

	_, err := env.nodes.NodeUsers(env.ctx, "hk", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.nodes.NodeUsers(env.ctx, "ghost", cred.Password)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, env.nodes.ReportTraffic(env.ctx, "hk", "", nil), ErrUnauthorized)

	users, err := env.nodes.NodeUsers(env.ctx, "hk", cred.Password)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	err = env.nodes.ReportTraffic(env.ctx, "hk", cred.Password, []entity.TrafficRecord{
		{Username: "alice", Upload: 10, Download: 20},
		{Username: "bobby", Upload: 60, Download: 60},
		{Username: "carol", Upload: 1, Download: 1},
	})
	require.NoError(t, err)

	up, down, err := env.store.SumTraffic(env.ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 10, up)
	assert.EqualValues(t, 20, down)
	assert.Equal(t, model.UserOverQuota, env.getUser(t, "bobby").Status)

	users, err = env.nodes.NodeUsers(env.ctx, "hk", cred.Password)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, env.assignedSecrets(t, "alice")["hk"], users[0].Password)
}
