package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lsls-dev/school-portal-api/internal/models"
	appErrors "github.com/lsls-dev/school-portal-api/pkg/errors"
)

type mockAttendanceRepo struct {
	records map[string]*models.Attendance
	nextID  int
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{records: make(map[string]*models.Attendance)}
}

func (m *mockAttendanceRepo) FindByStudentAndDay(_ context.Context, studentID string, dayStart, dayEnd time.Time) (*models.Attendance, error) {
	for _, record := range m.records {
		if record.StudentID != studentID {
			continue
		}
		if !record.Date.Before(dayStart) && record.Date.Before(dayEnd) {
			copied := *record
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceRepo) Insert(_ context.Context, record *models.Attendance) (*models.Attendance, error) {
	m.nextID++
	stored := *record
	stored.ID = fmt.Sprintf("att-%d", m.nextID)
	m.records[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

func (m *mockAttendanceRepo) UpdateMark(_ context.Context, id string, status models.AttendanceStatus, teacherID string, ts time.Time) (*models.Attendance, error) {
	record, ok := m.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	record.Status = status
	record.TeacherID = teacherID
	record.UpdatedAt = ts
	copied := *record
	return &copied, nil
}

func (m *mockAttendanceRepo) UpdateStatus(_ context.Context, id string, status models.AttendanceStatus, ts time.Time) (*models.Attendance, error) {
	record, ok := m.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	record.Status = status
	record.UpdatedAt = ts
	copied := *record
	return &copied, nil
}

func (m *mockAttendanceRepo) Delete(_ context.Context, id string) (int64, error) {
	if _, ok := m.records[id]; !ok {
		return 0, nil
	}
	delete(m.records, id)
	return 1, nil
}

func (m *mockAttendanceRepo) List(_ context.Context, _ models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	rows := make([]models.AttendanceRecord, 0, len(m.records))
	for _, record := range m.records {
		rows = append(rows, models.AttendanceRecord{Attendance: *record})
	}
	return rows, len(rows), nil
}

func (m *mockAttendanceRepo) Summarize(_ context.Context, studentID string, _, _ *time.Time) (*models.AttendanceSummary, error) {
	summary := &models.AttendanceSummary{}
	for _, record := range m.records {
		if record.StudentID != studentID {
			continue
		}
		switch record.Status {
		case models.AttendancePresent:
			summary.Present++
		case models.AttendanceLate:
			summary.Late++
		case models.AttendanceAbsent:
			summary.Absent++
		}
		summary.Total++
	}
	return summary, nil
}

type mockStudentReader struct {
	byID     map[string]*models.StudentDetail
	byUserID map[string]*models.StudentDetail
}

func (m *mockStudentReader) FindByID(_ context.Context, id string) (*models.StudentDetail, error) {
	student, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (m *mockStudentReader) FindByUserID(_ context.Context, userID string) (*models.StudentDetail, error) {
	student, ok := m.byUserID[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

type mockTeacherReader struct {
	byUserID map[string]*models.TeacherDetail
	byClass  map[string]*models.TeacherDetail
	fallback *models.TeacherDetail
}

func (m *mockTeacherReader) FindByUserID(_ context.Context, userID string) (*models.TeacherDetail, error) {
	teacher, ok := m.byUserID[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return teacher, nil
}

func (m *mockTeacherReader) FindByClass(_ context.Context, classID string) (*models.TeacherDetail, error) {
	teacher, ok := m.byClass[classID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return teacher, nil
}

func (m *mockTeacherReader) FindAny(_ context.Context) (*models.TeacherDetail, error) {
	if m.fallback == nil {
		return nil, sql.ErrNoRows
	}
	return m.fallback, nil
}

func classID(id string) *string { return &id }

func newAttendanceFixture() (*AttendanceService, *mockAttendanceRepo, *mockStudentReader, *mockTeacherReader) {
	repo := newMockAttendanceRepo()
	students := &mockStudentReader{
		byID: map[string]*models.StudentDetail{
			"student-1": {Student: models.Student{ID: "student-1", UserID: "user-s1", ClassID: classID("class-1")}},
			"student-2": {Student: models.Student{ID: "student-2", UserID: "user-s2"}},
		},
		byUserID: map[string]*models.StudentDetail{
			"user-s1": {Student: models.Student{ID: "student-1", UserID: "user-s1", ClassID: classID("class-1")}},
			"user-s2": {Student: models.Student{ID: "student-2", UserID: "user-s2"}},
		},
	}
	teachers := &mockTeacherReader{
		byUserID: map[string]*models.TeacherDetail{
			"user-t1": {Teacher: models.Teacher{ID: "teacher-1", UserID: "user-t1"}},
		},
		byClass: map[string]*models.TeacherDetail{
			"class-1": {Teacher: models.Teacher{ID: "teacher-1", UserID: "user-t1"}},
		},
		fallback: &models.TeacherDetail{Teacher: models.Teacher{ID: "teacher-2", UserID: "user-t2"}},
	}
	svc := NewAttendanceService(repo, students, teachers, nil, nil, zap.NewNop())
	return svc, repo, students, teachers
}

func teacherClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-t1", Role: models.RoleTeacher}
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-s1", Role: models.RoleStudent}
}

func TestRecordCreatesThenOverwritesSameDay(t *testing.T) {
	svc, repo, _, _ := newAttendanceFixture()
	ctx := context.Background()

	first, err := svc.Record(ctx, teacherClaims(), RecordAttendanceRequest{StudentID: "student-1", Status: models.AttendancePresent})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, models.AttendancePresent, first.Record.Status)

	second, err := svc.Record(ctx, teacherClaims(), RecordAttendanceRequest{StudentID: "student-1", Status: models.AttendanceLate})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, models.AttendanceLate, second.Record.Status)
	assert.Len(t, repo.records, 1)
}

func TestRecordSeparateDaysMakeSeparateRecords(t *testing.T) {
	svc, repo, _, _ := newAttendanceFixture()
	ctx := context.Background()

	yesterday := models.AttendanceDate{Time: time.Now().AddDate(0, 0, -1)}
	_, err := svc.Record(ctx, teacherClaims(), RecordAttendanceRequest{StudentID: "student-1", Status: models.AttendancePresent, Date: &yesterday})
	require.NoError(t, err)

	result, err := svc.Record(ctx, teacherClaims(), RecordAttendanceRequest{StudentID: "student-1", Status: models.AttendancePresent})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Len(t, repo.records, 2)
}

func TestRecordAcceptsDateOnlyPayload(t *testing.T) {
	svc, repo, _, _ := newAttendanceFixture()
	ctx := context.Background()

	var req RecordAttendanceRequest
	payload := []byte(`{"student_id":"student-1","status":"PRESENT","date":"2024-03-01"}`)
	require.NoError(t, json.Unmarshal(payload, &req))
	require.NotNil(t, req.Date)

	result, err := svc.Record(ctx, teacherClaims(), req)
	require.NoError(t, err)
	assert.True(t, result.Created)

	want := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.Local)
	assert.True(t, repo.records[result.Record.ID].Date.Equal(want))
}

func TestRecordStudentSelfMarkAttributedToClassTeacher(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()

	result, err := svc.Record(context.Background(), studentClaims(), RecordAttendanceRequest{StudentID: "student-1", Status: models.AttendancePresent})
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", result.Record.TeacherID)
}

func TestRecordStudentWithoutClassFallsBackToAnyTeacher(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	claims := &models.JWTClaims{UserID: "user-s2", Role: models.RoleStudent}

	result, err := svc.Record(context.Background(), claims, RecordAttendanceRequest{StudentID: "student-2", Status: models.AttendanceLate})
	require.NoError(t, err)
	assert.Equal(t, "teacher-2", result.Record.TeacherID)
}

func TestRecordStudentCannotMarkOthers(t *testing.T) {
	svc, repo, _, _ := newAttendanceFixture()

	_, err := svc.Record(context.Background(), studentClaims(), RecordAttendanceRequest{StudentID: "student-2", Status: models.AttendancePresent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.records)
}

func TestRecordNoTeacherAvailable(t *testing.T) {
	svc, _, _, teachers := newAttendanceFixture()
	teachers.byClass = map[string]*models.TeacherDetail{}
	teachers.fallback = nil

	_, err := svc.Record(context.Background(), studentClaims(), RecordAttendanceRequest{StudentID: "student-1", Status: models.AttendancePresent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRecordRejectsAdminAndParent(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()

	for _, role := range []models.Role{models.RoleAdmin, models.RoleParent} {
		claims := &models.JWTClaims{UserID: "user-x", Role: role}
		_, err := svc.Record(context.Background(), claims, RecordAttendanceRequest{StudentID: "student-1", Status: models.AttendancePresent})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	}
}

func TestRecordRejectsUnknownStatus(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()

	_, err := svc.Record(context.Background(), teacherClaims(), RecordAttendanceRequest{StudentID: "student-1", Status: "SLEEPING"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateStatusTeacherOnly(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	ctx := context.Background()

	created, err := svc.Record(ctx, teacherClaims(), RecordAttendanceRequest{StudentID: "student-1", Status: models.AttendancePresent})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, studentClaims(), created.Record.ID, models.AttendanceAbsent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	updated, err := svc.UpdateStatus(ctx, teacherClaims(), created.Record.ID, models.AttendanceAbsent)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceAbsent, updated.Status)
}

func TestUpdateStatusMissingRecord(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()

	_, err := svc.UpdateStatus(context.Background(), teacherClaims(), "missing", models.AttendanceLate)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeleteIsNotIdempotent(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	ctx := context.Background()

	created, err := svc.Record(ctx, teacherClaims(), RecordAttendanceRequest{StudentID: "student-1", Status: models.AttendancePresent})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, teacherClaims(), created.Record.ID))

	err = svc.Delete(ctx, teacherClaims(), created.Record.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSummaryRoundsRate(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	ctx := context.Background()

	days := []models.AttendanceStatus{models.AttendancePresent, models.AttendancePresent, models.AttendancePresent, models.AttendanceAbsent}
	for i, status := range days {
		date := models.AttendanceDate{Time: time.Now().AddDate(0, 0, -i)}
		_, err := svc.Record(ctx, teacherClaims(), RecordAttendanceRequest{StudentID: "student-1", Status: status, Date: &date})
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx, teacherClaims(), "student-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Present)
	assert.Equal(t, 1, summary.Absent)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 75, summary.Rate)
}

func TestSummaryEmptyRegisterIsZero(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()

	summary, err := svc.Summary(context.Background(), teacherClaims(), "student-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0, summary.Rate)
}

func TestSummaryServedFromCache(t *testing.T) {
	repo := newMockAttendanceRepo()
	students := &mockStudentReader{byID: map[string]*models.StudentDetail{}, byUserID: map[string]*models.StudentDetail{}}
	teachers := &mockTeacherReader{}
	cacheSvc := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := NewAttendanceService(repo, students, teachers, cacheSvc, nil, zap.NewNop())
	ctx := context.Background()

	first, err := svc.Summary(ctx, teacherClaims(), "student-1", nil, nil)
	require.NoError(t, err)

	repo.records["att-x"] = &models.Attendance{ID: "att-x", StudentID: "student-1", Status: models.AttendancePresent, Date: time.Now()}

	cached, err := svc.Summary(ctx, teacherClaims(), "student-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Total, cached.Total)
}

func TestExportCSVContainsRows(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	ctx := context.Background()

	_, err := svc.Record(ctx, teacherClaims(), RecordAttendanceRequest{StudentID: "student-1", Status: models.AttendancePresent})
	require.NoError(t, err)

	payload, contentType, err := svc.Export(ctx, teacherClaims(), models.AttendanceFilter{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Equal(t, "\xEF\xBB\xBF", string(payload[:3]))
	assert.Contains(t, string(payload), "PRESENT")
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()

	_, _, err := svc.Export(context.Background(), teacherClaims(), models.AttendanceFilter{}, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
