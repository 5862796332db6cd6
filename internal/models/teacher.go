package models

import "time"

// Teacher is the role profile owned by a TEACHER account. A teacher may
// be assigned to one class; class-less teachers still take attendance.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	ClassID   *string   `db:"class_id" json:"class_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherDetail joins the profile with account and class metadata.
type TeacherDetail struct {
	Teacher
	Name      string  `db:"name" json:"name"`
	Email     string  `db:"email" json:"email"`
	ClassName *string `db:"class_name" json:"class_name,omitempty"`
}
