package main

import (
	"flag"
	"log"

	"github.com/lsls-dev/school-portal-api/pkg/config"
	"github.com/lsls-dev/school-portal-api/pkg/database"
)

// Schema statements in dependency order. The partial expression index on
// attendance is what backs the one-record-per-(student, day) rule; the
// insert path relies on it for conflict resolution.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('ADMIN', 'TEACHER', 'STUDENT', 'PARENT')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS parents (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS teachers (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		class_id UUID REFERENCES classes(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		class_id UUID REFERENCES classes(id) ON DELETE SET NULL,
		parent_id UUID REFERENCES parents(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		teacher_id UUID NOT NULL REFERENCES teachers(id),
		status TEXT NOT NULL CHECK (status IN ('PRESENT', 'LATE', 'ABSENT')),
		date TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS attendance_student_day
		ON attendance (student_id, ((timezone('UTC', date))::date))`,
	`CREATE TABLE IF NOT EXISTS results (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		teacher_id UUID NOT NULL REFERENCES teachers(id),
		subject TEXT NOT NULL,
		marks INT NOT NULL CHECK (marks BETWEEN 0 AND 100),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS attendance_date_idx ON attendance (date)`,
	`CREATE INDEX IF NOT EXISTS students_class_idx ON students (class_id)`,
	`CREATE INDEX IF NOT EXISTS students_parent_idx ON students (parent_id)`,
}

func main() {
	var dryRun bool
	flag.BoolVar(&dryRun, "dry-run", false, "print statements without executing")
	flag.Parse()

	if dryRun {
		for _, stmt := range statements {
			log.Println(stmt)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	for i, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("statement %d failed: %v", i+1, err)
		}
	}
	log.Printf("applied %d statements", len(statements))
}
