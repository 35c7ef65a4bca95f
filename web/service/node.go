package service

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/trojan-ui/trojan-ui/database"
	"github.com/trojan-ui/trojan-ui/database/model"
	"github.com/trojan-ui/trojan-ui/logger"
	"github.com/trojan-ui/trojan-ui/util/crypto"
	"github.com/trojan-ui/trojan-ui/web/entity"
)

const (
	LocalNodeName   = "local"
	LocalNodeRegion = "Local"
)

var nodeNameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,32}$`)

// NodeService manages the relay node table and serves the relay agents.
type NodeService struct {
	store        database.EntitlementStore
	usageService *UsageService
}

func NewNodeService(store database.EntitlementStore, usage *UsageService) *NodeService {
	return &NodeService{store: store, usageService: usage}
}

// ProvisionLocalNode creates the default node that runs next to the panel.
// It does nothing when a node with that name already exists.
func (s *NodeService) ProvisionLocalNode(ctx context.Context, tx database.EntitlementStore) error {
	_, err := tx.GetNode(ctx, LocalNodeName)
	if err == nil {
		return nil
	} else if !database.IsNotFound(err) {
		return storeFailure("get local node", err)
	}
	node := &model.Node{
		Name:     LocalNodeName,
		Domain:   model.LocalDomain,
		Region:   LocalNodeRegion,
		Password: uuid.NewString(),
	}
	if err := tx.CreateNode(ctx, node); err != nil {
		return storeFailure("create local node", err)
	}
	logger.Info("provisioned local node")
	return nil
}

func (s *NodeService) ListNodes(ctx context.Context) ([]entity.NodeInfo, error) {
	nodes, err := s.store.ListNodes(ctx)
	if err != nil {
		return nil, storeFailure("list nodes", err)
	}
	infos := make([]entity.NodeInfo, 0, len(nodes))
	for _, node := range nodes {
		infos = append(infos, entity.NodeInfo{
			Name:       node.Name,
			Domain:     node.Domain,
			Region:     node.Region,
			UserNumber: node.UserNumber,
		})
	}
	return infos, nil
}

// AddNode registers a relay and returns the credential its agent must use.
func (s *NodeService) AddNode(ctx context.Context, req *entity.NodeRequest) (*entity.NodeCredential, error) {
	if !nodeNameRegex.MatchString(req.Name) {
		return nil, fmt.Errorf("%w: node name", ErrValidation)
	}
	if req.Domain == "" {
		return nil, fmt.Errorf("%w: node domain", ErrValidation)
	}
	node := &model.Node{
		Name:     req.Name,
		Domain:   req.Domain,
		Region:   req.Region,
		Password: uuid.NewString(),
	}
	err := s.store.Transaction(ctx, func(tx database.EntitlementStore) error {
		_, err := tx.GetNode(ctx, req.Name)
		if err == nil {
			return fmt.Errorf("%w: node %s", ErrDuplicate, req.Name)
		} else if !database.IsNotFound(err) {
			return storeFailure("get node", err)
		}
		if err := tx.CreateNode(ctx, node); err != nil {
			return storeFailure("create node", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("node %s added (%s, %s)", node.Name, node.Domain, node.Region)
	return &entity.NodeCredential{Name: node.Name, Password: node.Password}, nil
}

// DeleteNode removes a node together with its assignments and re-evaluates
// every user that lost one.
func (s *NodeService) DeleteNode(ctx context.Context, name string) error {
	err := s.store.Transaction(ctx, func(tx database.EntitlementStore) error {
		if _, err := tx.GetNode(ctx, name); database.IsNotFound(err) {
			return fmt.Errorf("%w: node %s", ErrNotFound, name)
		} else if err != nil {
			return storeFailure("get node", err)
		}
		usernames, err := tx.DeleteNodeAssignments(ctx, name)
		if err != nil {
			return storeFailure("delete node assignments", err)
		}
		if err := tx.DeleteNode(ctx, name); err != nil {
			return storeFailure("delete node", err)
		}
		for _, username := range usernames {
			if _, err := s.usageService.CheckUser(ctx, tx, username); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Infof("node %s deleted", name)
	return nil
}

// authenticateNode checks a relay agent's credential. An unknown node costs
// the same comparison as a wrong password.
func (s *NodeService) authenticateNode(ctx context.Context, name, password string) (*model.Node, error) {
	node, err := s.store.GetNode(ctx, name)
	if err != nil && !database.IsNotFound(err) {
		return nil, storeFailure("get node", err)
	}
	stored := ""
	if node != nil {
		stored = node.Password
	}
	if !crypto.SecretEqual(password, stored) || node == nil || password == "" {
		logger.Debugf("node credential rejected for %q", name)
		return nil, fmt.Errorf("%w: node %s", ErrUnauthorized, name)
	}
	return node, nil
}

// NodeUsers lists the enabled assignment secrets a relay should accept.
func (s *NodeService) NodeUsers(ctx context.Context, name, password string) ([]entity.NodeUser, error) {
	node, err := s.authenticateNode(ctx, name, password)
	if err != nil {
		return nil, err
	}
	assignments, err := s.store.ListNodeAssignments(ctx, node.Name)
	if err != nil {
		return nil, storeFailure("list node assignments", err)
	}
	users := make([]entity.NodeUser, 0, len(assignments))
	for _, a := range assignments {
		if !a.Enable {
			continue
		}
		users = append(users, entity.NodeUser{Username: a.Username, Password: a.Password})
	}
	return users, nil
}

// ReportTraffic adds a relay's usage deltas and re-evaluates the reported
// users. Records for users not assigned to the node are skipped.
func (s *NodeService) ReportTraffic(ctx context.Context, name, password string, records []entity.TrafficRecord) error {
	node, err := s.authenticateNode(ctx, name, password)
	if err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx database.EntitlementStore) error {
		seen := make(nameSet)
		for _, r := range records {
			if r.Upload < 0 || r.Download < 0 {
				return fmt.Errorf("%w: negative traffic for %s", ErrValidation, r.Username)
			}
			err := tx.AddTraffic(ctx, r.Username, node.Name, r.Upload, r.Download)
			if database.IsNotFound(err) {
				logger.Warningf("node %s reported traffic for unassigned user %s", node.Name, r.Username)
				continue
			} else if err != nil {
				return storeFailure("add traffic", err)
			}
			seen[r.Username] = struct{}{}
		}
		for _, username := range seen.sorted() {
			if _, err := s.usageService.CheckUser(ctx, tx, username); err != nil {
				return err
			}
		}
		return nil
	})
}
