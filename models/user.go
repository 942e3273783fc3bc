package models

import "gorm.io/gorm"

// User is the identity row the auth collaborator resolves tokens against.
type User struct {
	gorm.Model
	Email    string `gorm:"uniqueIndex;not null"`
	FullName string
}
