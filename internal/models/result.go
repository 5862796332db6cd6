package models

import "time"

// Result is one subject result for a student, out of 100 marks.
type Result struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Subject   string    `db:"subject" json:"subject"`
	Marks     int       `db:"marks" json:"marks"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ResultRecord extends the result with account metadata.
type ResultRecord struct {
	Result
	StudentName string `db:"student_name" json:"student_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}
