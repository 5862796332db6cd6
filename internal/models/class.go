package models

import "time"

// Class groups students and their assigned teachers.
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends the class with roster counts.
type ClassDetail struct {
	Class
	StudentCount int `db:"student_count" json:"student_count"`
	TeacherCount int `db:"teacher_count" json:"teacher_count"`
}
