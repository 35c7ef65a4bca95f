package model

import (
	"time"
)

// Permission tiers. Higher tiers include every lower one.
const (
	PermissionUser       = 1
	PermissionAdmin      = 4
	PermissionSuperAdmin = 100
)

// UnlimitedQuota marks a user without a traffic cap.
const UnlimitedQuota int64 = -1

// LocalDomain is the node domain that renders as the panel's own public domain.
const LocalDomain = "localhost"

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserExpired   UserStatus = "expired"
	UserOverQuota UserStatus = "over_quota"
)

type User struct {
	Id              int        `json:"id" gorm:"primaryKey;autoIncrement"`
	Username        string     `json:"username" gorm:"uniqueIndex;not null"`
	Password        string     `json:"-"`
	Email           string     `json:"email"`
	Permission      int        `json:"permission" gorm:"not null;default:1"`
	Quota           int64      `json:"quota" gorm:"not null;default:-1"`
	ExpiryDate      *time.Time `json:"expiryDate"`
	SubscribeSecret string     `json:"-"`
	Status          UserStatus `json:"status" gorm:"not null;default:'active'"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// IsUnlimited reports whether the user has no traffic cap.
func (u *User) IsUnlimited() bool {
	return u.Quota == UnlimitedQuota
}

type Node struct {
	Id         int       `json:"id" gorm:"primaryKey;autoIncrement"`
	Name       string    `json:"name" gorm:"uniqueIndex;not null"`
	Domain     string    `json:"domain" gorm:"not null"`
	Region     string    `json:"region"`
	UserNumber int       `json:"userNumber" gorm:"not null;default:0"`
	Password   string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UserNode is the assignment of a node to a user. Its password is generated
// when the row is created and never edited in place.
type UserNode struct {
	Id        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username" gorm:"uniqueIndex:idx_user_node;index;not null"`
	NodeName  string    `json:"nodeName" gorm:"uniqueIndex:idx_user_node;index;not null"`
	Password  string    `json:"-" gorm:"not null"`
	Upload    int64     `json:"upload" gorm:"not null;default:0"`
	Download  int64     `json:"download" gorm:"not null;default:0"`
	Enable    bool      `json:"enable" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}

type Setting struct {
	Id    int    `json:"id" form:"id" gorm:"primaryKey;autoIncrement"`
	Key   string `json:"key" form:"key" gorm:"uniqueIndex"`
	Value string `json:"value" form:"value"`
}
