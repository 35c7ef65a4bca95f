package service

import (
	"context"
	"slices"

	"github.com/trojan-ui/trojan-ui/database"
	"github.com/trojan-ui/trojan-ui/database/model"
)

type nameSet map[string]struct{}

func newNameSet(names []string) nameSet {
	set := make(nameSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func (s nameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

// minus returns the sorted members of s that are not in other.
func (s nameSet) minus(other nameSet) []string {
	out := make([]string, 0, len(s))
	for name := range s {
		if !other.has(name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// intersect returns the sorted members present in both sets.
func (s nameSet) intersect(other nameSet) []string {
	out := make([]string, 0)
	for name := range s {
		if other.has(name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func (s nameSet) equal(other nameSet) bool {
	if len(s) != len(other) {
		return false
	}
	for name := range s {
		if !other.has(name) {
			return false
		}
	}
	return true
}

// assignedNodeNames lists the node names a user is currently assigned to, in
// assignment order.
func assignedNodeNames(ctx context.Context, store database.EntitlementStore, username string) ([]string, error) {
	assignments, err := store.ListAssignments(ctx, username)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(assignments))
	for _, a := range assignments {
		names = append(names, a.NodeName)
	}
	return names, nil
}

func allNodeNames(ctx context.Context, store database.EntitlementStore) ([]string, error) {
	nodes, err := store.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	return nodeNames(nodes), nil
}

func nodeNames(nodes []*model.Node) []string {
	names := make([]string, 0, len(nodes))
	for _, node := range nodes {
		names = append(names, node.Name)
	}
	return names
}

// getUser maps a missing row to ErrNotFound and any other failure to
// ErrStoreFailure.
func getUser(ctx context.Context, store database.EntitlementStore, username string) (*model.User, error) {
	user, err := store.GetUser(ctx, username)
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, storeFailure("get user "+username, err)
	}
	return user, nil
}

func (s nameSet) sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
