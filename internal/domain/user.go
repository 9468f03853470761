// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"fmt"
)

const (
	MaxUserIDLen      = 64
	MaxDisplayNameLen = 64
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrUserIDEmpty        = errors.New("user id empty")
	ErrUserIDTooLong      = errors.New("user id too long")
	ErrUnknownRole        = errors.New("unknown role")
)

type UserID string

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// User is the identity part of a participant, as announced by the signaling server.
type User struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
	Role        Role   `json:"role"`
}

func (u User) Validate() error {
	if len(u.ID) == 0 {
		return ErrUserIDEmpty
	}
	if len(u.ID) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	if len(u.DisplayName) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return err
	}
	return nil
}
