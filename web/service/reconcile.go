package service

import (
	"context"
	"slices"

	"github.com/trojan-ui/trojan-ui/database"
	"github.com/trojan-ui/trojan-ui/database/model"
	"github.com/trojan-ui/trojan-ui/logger"
	"github.com/trojan-ui/trojan-ui/util/random"
)

// ReconcileResult lists the node names whose assignment was created or
// removed, sorted.
type ReconcileResult struct {
	Inserted []string
	Deleted  []string
}

func (r *ReconcileResult) Changed() bool {
	return len(r.Inserted) > 0 || len(r.Deleted) > 0
}

// ReconcileService moves a user's assignment set to a desired set of node
// names with the fewest inserts and deletes.
type ReconcileService struct {
	store        database.EntitlementStore
	usageService *UsageService
}

func NewReconcileService(store database.EntitlementStore, usage *UsageService) *ReconcileService {
	return &ReconcileService{store: store, usageService: usage}
}

// Reconcile runs the whole diff and its writes in one transaction. Desired
// names that match no node are ignored, retained assignments keep their
// secret and counters, and an empty desired set removes everything.
func (s *ReconcileService) Reconcile(ctx context.Context, username string, desired []string) (*ReconcileResult, error) {
	var result *ReconcileResult
	err := s.store.Transaction(ctx, func(tx database.EntitlementStore) error {
		var err error
		result, err = s.reconcileTx(ctx, tx, username, desired)
		return err
	})
	if err != nil {
		return nil, err
	}
	if result.Changed() {
		logger.Infof("reconciled %s: +%v -%v", username, result.Inserted, result.Deleted)
	}
	return result, nil
}

func (s *ReconcileService) reconcileTx(ctx context.Context, tx database.EntitlementStore, username string, desired []string) (*ReconcileResult, error) {
	user, err := getUser(ctx, tx, username)
	if err != nil {
		return nil, err
	}

	current, err := assignedNodeNames(ctx, tx, username)
	if err != nil {
		return nil, storeFailure("list assignments", err)
	}
	all, err := allNodeNames(ctx, tx)
	if err != nil {
		return nil, storeFailure("list nodes", err)
	}

	existing := newNameSet(current)
	wanted := newNameSet(desired)
	available := newNameSet(newNameSet(all).minus(existing))

	result := &ReconcileResult{
		Inserted: available.intersect(wanted),
		Deleted:  existing.minus(wanted),
	}
	if !result.Changed() {
		return result, nil
	}

	if len(result.Inserted) > 0 {
		enable := user.Status == model.UserActive
		rows := make([]*model.UserNode, 0, len(result.Inserted))
		for _, name := range result.Inserted {
			rows = append(rows, &model.UserNode{
				Username: username,
				NodeName: name,
				Password: random.SeqRange(8, 16),
				Enable:   enable,
			})
		}
		if err := tx.AddAssignments(ctx, rows); err != nil {
			return nil, storeFailure("add assignments", err)
		}
	}
	if err := tx.DeleteAssignments(ctx, username, result.Deleted); err != nil {
		return nil, storeFailure("delete assignments", err)
	}

	touched := slices.Concat(result.Inserted, result.Deleted)
	if err := refreshNodes(ctx, tx, touched); err != nil {
		return nil, err
	}

	if _, err := s.usageService.CheckUser(ctx, tx, username); err != nil {
		return nil, err
	}
	return result, nil
}

func refreshNodes(ctx context.Context, store database.EntitlementStore, names []string) error {
	for _, name := range names {
		if err := store.RefreshNodeUserNumber(ctx, name); err != nil {
			return storeFailure("refresh node "+name, err)
		}
	}
	return nil
}
