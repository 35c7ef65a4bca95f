package database

import (
	"context"

	"github.com/trojan-ui/trojan-ui/database/model"

	"gorm.io/gorm"
)

// GormStore implements EntitlementStore on top of gorm.
type GormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DefaultStore wraps the database opened by InitDB.
func DefaultStore() *GormStore {
	return NewStore(GetDB())
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx EntitlementStore) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&model.User{}).Count(&count).Error
	return count, err
}

func (s *GormStore) GetUser(ctx context.Context, username string) (*model.User, error) {
	user := &model.User{}
	err := s.conn(ctx).Model(&model.User{}).
		Where("username = ?", username).
		First(user).
		Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *GormStore) ListUsers(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	err := s.conn(ctx).Model(&model.User{}).Order("id ASC").Find(&users).Error
	return users, err
}

func (s *GormStore) CreateUser(ctx context.Context, user *model.User) error {
	return s.conn(ctx).Create(user).Error
}

func (s *GormStore) UpdateUser(ctx context.Context, username string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	result := s.conn(ctx).Model(&model.User{}).Where("username = ?", username).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) DeleteUser(ctx context.Context, username string) error {
	result := s.conn(ctx).Where("username = ?", username).Delete(&model.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) ListNodes(ctx context.Context) ([]*model.Node, error) {
	var nodes []*model.Node
	err := s.conn(ctx).Model(&model.Node{}).Order("id ASC").Find(&nodes).Error
	return nodes, err
}

func (s *GormStore) GetNode(ctx context.Context, name string) (*model.Node, error) {
	node := &model.Node{}
	err := s.conn(ctx).Model(&model.Node{}).Where("name = ?", name).First(node).Error
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (s *GormStore) CreateNode(ctx context.Context, node *model.Node) error {
	return s.conn(ctx).Create(node).Error
}

func (s *GormStore) DeleteNode(ctx context.Context, name string) error {
	result := s.conn(ctx).Where("name = ?", name).Delete(&model.Node{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) ListAssignments(ctx context.Context, username string) ([]*model.UserNode, error) {
	var assignments []*model.UserNode
	err := s.conn(ctx).Model(&model.UserNode{}).
		Where("username = ?", username).
		Order("id ASC").
		Find(&assignments).Error
	return assignments, err
}

func (s *GormStore) ListNodeAssignments(ctx context.Context, nodeName string) ([]*model.UserNode, error) {
	var assignments []*model.UserNode
	err := s.conn(ctx).Model(&model.UserNode{}).
		Where("node_name = ?", nodeName).
		Order("id ASC").
		Find(&assignments).Error
	return assignments, err
}

func (s *GormStore) AddAssignments(ctx context.Context, assignments []*model.UserNode) error {
	if len(assignments) == 0 {
		return nil
	}
	return s.conn(ctx).Create(&assignments).Error
}

func (s *GormStore) DeleteAssignments(ctx context.Context, username string, nodeNames []string) error {
	if len(nodeNames) == 0 {
		return nil
	}
	return s.conn(ctx).
		Where("username = ? AND node_name IN ?", username, nodeNames).
		Delete(&model.UserNode{}).Error
}

func (s *GormStore) DeleteUserAssignments(ctx context.Context, username string) ([]string, error) {
	var nodeNames []string
	err := s.conn(ctx).Model(&model.UserNode{}).
		Where("username = ?", username).
		Pluck("node_name", &nodeNames).Error
	if err != nil {
		return nil, err
	}
	if len(nodeNames) == 0 {
		return nil, nil
	}
	err = s.conn(ctx).Where("username = ?", username).Delete(&model.UserNode{}).Error
	return nodeNames, err
}

func (s *GormStore) DeleteNodeAssignments(ctx context.Context, nodeName string) ([]string, error) {
	var usernames []string
	err := s.conn(ctx).Model(&model.UserNode{}).
		Where("node_name = ?", nodeName).
		Pluck("username", &usernames).Error
	if err != nil {
		return nil, err
	}
	if len(usernames) == 0 {
		return nil, nil
	}
	err = s.conn(ctx).Where("node_name = ?", nodeName).Delete(&model.UserNode{}).Error
	return usernames, err
}

func (s *GormStore) SetAssignmentsEnable(ctx context.Context, username string, enable bool) error {
	return s.conn(ctx).Model(&model.UserNode{}).
		Where("username = ?", username).
		Update("enable", enable).Error
}

func (s *GormStore) RefreshNodeUserNumber(ctx context.Context, nodeName string) error {
	return s.conn(ctx).Exec(
		"UPDATE nodes SET user_number = (SELECT COUNT(*) FROM user_nodes WHERE node_name = ?) WHERE name = ?",
		nodeName, nodeName,
	).Error
}

func (s *GormStore) AddTraffic(ctx context.Context, username, nodeName string, upload, download int64) error {
	result := s.conn(ctx).Model(&model.UserNode{}).
		Where("username = ? AND node_name = ?", username, nodeName).
		Updates(map[string]any{
			"upload":   gorm.Expr("upload + ?", upload),
			"download": gorm.Expr("download + ?", download),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) SumTraffic(ctx context.Context, username string) (int64, int64, error) {
	var sum struct {
		Upload   int64
		Download int64
	}
	err := s.conn(ctx).Model(&model.UserNode{}).
		Select("COALESCE(SUM(upload), 0) AS upload, COALESCE(SUM(download), 0) AS download").
		Where("username = ?", username).
		Scan(&sum).Error
	return sum.Upload, sum.Download, err
}
