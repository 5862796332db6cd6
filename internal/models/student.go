package models

import "time"

// Student is the role profile owned by a STUDENT account.
type Student struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	ClassID   *string   `db:"class_id" json:"class_id,omitempty"`
	ParentID  *string   `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins the profile with account and class metadata.
type StudentDetail struct {
	Student
	Name       string  `db:"name" json:"name"`
	Email      string  `db:"email" json:"email"`
	ClassName  *string `db:"class_name" json:"class_name,omitempty"`
	ParentName *string `db:"parent_name" json:"parent_name,omitempty"`
}
