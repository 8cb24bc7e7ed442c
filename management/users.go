// Package management administers BiteUI user accounts.
package management

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Status int

const (
	StatusUnverified Status = 1
	StatusActive     Status = 2
	StatusBanned     Status = 3
	StatusDeleted    Status = 4
)

var statusNames = map[Status]string{
	StatusUnverified: "Unverified",
	StatusActive:     "Active",
	StatusBanned:     "Banned",
	StatusDeleted:    "Deleted",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// ParseStatus accepts a status name (any case) or its number.
func ParseStatus(v string) (Status, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil && Status(n).Valid() {
		return Status(n), nil
	}
	for s, name := range statusNames {
		if strings.EqualFold(name, v) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown user status %q", v)
}

// User is a managed account.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnmarshalJSON tolerates a null avatar and an empty or missing updated_at.
func (u *User) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID        string  `json:"id"`
		Email     string  `json:"email"`
		FullName  string  `json:"full_name"`
		AvatarURL *string `json:"avatar_url"`
		Status    Status  `json:"status"`
		UpdatedAt string  `json:"updated_at"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*u = User{ID: raw.ID, Email: raw.Email, FullName: raw.FullName, Status: raw.Status}
	if raw.AvatarURL != nil {
		u.AvatarURL = *raw.AvatarURL
	}
	if raw.UpdatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, raw.UpdatedAt)
		if err != nil {
			return fmt.Errorf("updated_at: %w", err)
		}
		u.UpdatedAt = t
	}
	return nil
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Filter narrows list and export results. Zero fields are not sent.
type Filter struct {
	Statuses  []Status
	Search    string
	SortBy    string
	SortOrder SortOrder
	DateFrom  string
	DateTo    string
}

type ListInput struct {
	Page int
	Size int
	Filter
}

type UserList struct {
	Users []User
	Page  int
	Size  int
	Total int
}

type CreateUserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required"`
	Status   Status `json:"status" validate:"required,min=1,max=4"`
}

// UpdateUserInput changes only the non-nil fields.
type UpdateUserInput struct {
	ID       string  `json:"-" validate:"required"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
	FullName *string `json:"full_name,omitempty"`
	Status   *Status `json:"status,omitempty" validate:"omitempty,min=1,max=4"`
}

type ImportUser struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Status   Status `json:"status,omitempty" validate:"omitempty,min=1,max=4"`
}

type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}
