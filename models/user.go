package models

import (
	"strings"
	"time"

	"platestyle/tools"
)

/************************************************
/**** MARK: USER STATUS ****/
/************************************************/
const USER_STATUS_AVAILABLE = 0
const USER_STATUS_PENDING = 1
const USER_STATUS_BLOCKED = 2

// User is an account of the system.
// Credits is the generation balance; admins are never charged.
type User struct {
	ID        int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name      string     `gorm:"not null" json:"name" form:"name"`
	Email     string     `gorm:"not null;unique" json:"email" form:"email"`
	Password  string     `gorm:"not null" json:"-" form:"password"`
	Credits   int        `gorm:"not null;default:0" json:"credits"`
	Admin     bool       `gorm:"not null;default:false" json:"admin"`
	Status    int        `gorm:"not null;default:0" json:"status"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func (user User) MissingFields() string {
	if strings.TrimSpace(user.Name) == "" {
		return "name"
	} else if strings.TrimSpace(user.Email) == "" {
		return "email"
	} else if user.Password == "" {
		return "password"
	} else if tools.CheckPassword(user.Password) != "" {
		return tools.CheckPassword(user.Password)
	}
	return ""
}

// CanAfford reports whether the user may spend cost credits.
func (user User) CanAfford(cost int) bool {
	return user.Admin || user.Credits >= cost
}

func IsValidUserStatus(status int) bool {
	switch status {
	case USER_STATUS_AVAILABLE, USER_STATUS_PENDING, USER_STATUS_BLOCKED:
		return true
	}
	return false
}
