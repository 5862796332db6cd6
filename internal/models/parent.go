package models

import "time"

// Parent is the role profile owned by a PARENT account. Children are
// owned by the student side through students.parent_id.
type Parent struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ParentDetail joins the profile with account metadata.
type ParentDetail struct {
	Parent
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// ChildSummary is the parent-dashboard read model for one child.
type ChildSummary struct {
	StudentID      string  `json:"student_id"`
	Name           string  `json:"name"`
	ClassName      *string `json:"class_name,omitempty"`
	AttendanceRate int     `json:"attendance_rate"`
	TotalRecords   int     `json:"total_records"`
}
