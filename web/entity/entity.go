// Package entity defines the request and response payloads of the trojan-ui web API.
package entity

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Msg represents a standard API response message with success status, message text, and optional data object.
type Msg struct {
	Success bool   `json:"success"` // Indicates if the operation was successful
	Msg     string `json:"msg"`     // Response message text
	Obj     any    `json:"obj"`     // Optional data object
}

type RegisterRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Email    string `json:"usermail" form:"usermail"`
}

type LoginRequest struct {
	Username      string `json:"username" form:"username"`
	Password      string `json:"password" form:"password"`
	TwoFactorCode string `json:"twoFactorCode" form:"twoFactorCode"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// UnlimitedQuota is the wire spelling of a quota of -1.
const UnlimitedQuota = "unlimited"

// Quota is a byte allowance that accepts either a number or "unlimited" on
// the wire. Unlimited is stored as -1.
type Quota int64

func (q *Quota) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == UnlimitedQuota {
			*q = -1
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid quota %q", s)
		}
		*q = Quota(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid quota %s", data)
	}
	*q = Quota(n)
	return nil
}

func (q Quota) MarshalJSON() ([]byte, error) {
	if q < 0 {
		return json.Marshal(UnlimitedQuota)
	}
	return json.Marshal(int64(q))
}

// UserData holds the optional attribute changes of an update. Nil fields are
// left untouched.
type UserData struct {
	Permission *int    `json:"user_permission"`
	Quota      *Quota  `json:"quota"`
	ExpiryDate *string `json:"expiry_date"`
}

// UpdateUserRequest rewrites a user's attributes and, when NodeList is
// present, their node set.
type UpdateUserRequest struct {
	Username string   `json:"username"`
	UserData UserData `json:"user_data"`
	NodeList []string `json:"node_list"`
}

type UsernameRequest struct {
	Username string `json:"username" form:"username"`
}

type UserInfo struct {
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	Permission int      `json:"permission"`
	Quota      string   `json:"quota"`
	ExpiryDate string   `json:"expiry_date"`
	Status     string   `json:"status"`
	Nodes      []string `json:"nodes"`
	Upload     string   `json:"upload"`
	Download   string   `json:"download"`
	Total      string   `json:"total"`
}

type UserListResponse struct {
	Users    []UserInfo `json:"users"`
	NodeList []string   `json:"node_list"`
}

type TrojanUrlsResponse struct {
	TrojanUrls    []string `json:"trojan_urls"`
	SubscribeLink string   `json:"subscribe_link"`
}

type NodeRequest struct {
	Name   string `json:"name" form:"name"`
	Domain string `json:"domain" form:"domain"`
	Region string `json:"region" form:"region"`
}

type NodeInfo struct {
	Name       string `json:"name"`
	Domain     string `json:"domain"`
	Region     string `json:"region"`
	UserNumber int    `json:"user_number"`
}

// NodeCredential is what a relay agent created with AddNode must keep.
type NodeCredential struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// NodeUser is one enabled assignment as served to the relay agent.
type NodeUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TrafficRecord is a usage delta reported by a relay agent.
type TrafficRecord struct {
	Username string `json:"username"`
	Upload   int64  `json:"upload"`
	Download int64  `json:"download"`
}

type TrafficReport struct {
	Records []TrafficRecord `json:"records"`
}
