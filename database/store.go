package database

import (
	"context"

	"github.com/trojan-ui/trojan-ui/database/model"
)

// EntitlementStore is the persistence capability the panel services consume:
// users, nodes, user-node assignments and their counters.
//
// Implementations must make each method atomic on its own; multi-step
// sequences that need to be consistent run inside Transaction.
type EntitlementStore interface {
	Transaction(ctx context.Context, fn func(tx EntitlementStore) error) error

	CountUsers(ctx context.Context) (int64, error)
	GetUser(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, username string, fields map[string]any) error
	DeleteUser(ctx context.Context, username string) error

	ListNodes(ctx context.Context) ([]*model.Node, error)
	GetNode(ctx context.Context, name string) (*model.Node, error)
	CreateNode(ctx context.Context, node *model.Node) error
	DeleteNode(ctx context.Context, name string) error

	ListAssignments(ctx context.Context, username string) ([]*model.UserNode, error)
	ListNodeAssignments(ctx context.Context, nodeName string) ([]*model.UserNode, error)
	AddAssignments(ctx context.Context, assignments []*model.UserNode) error
	DeleteAssignments(ctx context.Context, username string, nodeNames []string) error
	// DeleteUserAssignments removes every assignment of username and returns
	// the names of the nodes it was assigned to.
	DeleteUserAssignments(ctx context.Context, username string) ([]string, error)
	// DeleteNodeAssignments removes every assignment of nodeName and returns
	// the affected usernames.
	DeleteNodeAssignments(ctx context.Context, nodeName string) ([]string, error)
	SetAssignmentsEnable(ctx context.Context, username string, enable bool) error

	// RefreshNodeUserNumber recomputes a node's assigned-user count from the
	// assignment table in a single statement.
	RefreshNodeUserNumber(ctx context.Context, nodeName string) error
	// AddTraffic atomically increments the usage counters of one assignment.
	AddTraffic(ctx context.Context, username, nodeName string, upload, download int64) error
	// SumTraffic totals a user's usage over all of their assignments.
	SumTraffic(ctx context.Context, username string) (upload int64, download int64, err error)
}
