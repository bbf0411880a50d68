package models

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// User is a member of the organization.
type User struct {
	DefaultModel
	Name             string `json:"name" example:"Alex"`
	Role             Role   `json:"role" gorm:"index" example:"member"`
	PendingDismissal bool   `json:"pendingDismissal" example:"false"` // Only meaningful for interns
}

func (u User) Self() string {
	return "User"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if !u.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, u.Role)
	}

	return u.DefaultModel.BeforeCreate(tx)
}

// BeforeSave trims the name. Updates through a map leave the zero value here,
// so the role is only checked when it is set.
func (u *User) BeforeSave(_ *gorm.DB) error {
	u.Name = strings.TrimSpace(u.Name)

	if u.Role != "" && !u.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, u.Role)
	}

	return nil
}

// CountFormalSeats returns the number of users holding a formal seat.
func CountFormalSeats(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&User{}).Where("role IN ?", FormalRoles()).Count(&count).Error
	return count, err
}

// FormalSeatHolders returns all users holding a formal seat, sorted by ID.
func FormalSeatHolders(db *gorm.DB) ([]User, error) {
	var users []User
	err := db.Where("role IN ?", FormalRoles()).Order("id ASC").Find(&users).Error
	return users, err
}

// UsersWithRole returns all users with the role, sorted by ID.
func UsersWithRole(db *gorm.DB, role Role) ([]User, error) {
	var users []User
	err := db.Where(&User{Role: role}).Order("id ASC").Find(&users).Error
	return users, err
}
