package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AttendanceStatus represents one status observation for a student.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceAbsent:
		return true
	default:
		return false
	}
}

// Attendance is one status observation for one student on one calendar
// day, attributed to the teacher who recorded it. At most one row exists
// per (student, calendar day); re-marks mutate the row in place.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	TeacherID string           `db:"teacher_id" json:"teacher_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Date      time.Time        `db:"date" json:"date"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends the row with student and teacher metadata.
type AttendanceRecord struct {
	Attendance
	StudentName string  `db:"student_name" json:"student_name"`
	TeacherName string  `db:"teacher_name" json:"teacher_name"`
	ClassID     *string `db:"class_id" json:"class_id,omitempty"`
	ClassName   *string `db:"class_name" json:"class_name,omitempty"`
}

// AttendanceFilter scopes register queries. Date selects a single
// calendar day using the same bounds as the write path.
type AttendanceFilter struct {
	StudentID string
	ClassID   string
	Date      *time.Time
	Page      int
	PageSize  int
}

// AttendanceSummary is the derived read model for a student's register.
// Rate is present/total rounded to the nearest integer percent, 0 when
// the register is empty.
type AttendanceSummary struct {
	Present int `json:"present"`
	Late    int `json:"late"`
	Absent  int `json:"absent"`
	Total   int `json:"total"`
	Rate    int `json:"rate"`
}

// AttendanceDate is a request timestamp that accepts either a full
// RFC 3339 value or a plain YYYY-MM-DD date, which is what clients
// marking a whole day send.
type AttendanceDate struct {
	time.Time
}

func (d *AttendanceDate) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return fmt.Errorf("invalid attendance date %q", raw)
	}
	d.Time = t
	return nil
}

// DayBounds truncates t to its calendar day in t's location, returning
// the half-open interval [midnight, next midnight).
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
