package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertRegistration creates or refreshes the registration state for a
// student after a successful enrollment. Re-registration only moves the
// timestamp; the Registered state never reverts here.
func (r *Repository) UpsertRegistration(ctx context.Context, studentID string, at time.Time) error {
	if studentID == "" {
		return errors.New("student id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO biometric_registrations (student_id, face_registered, status, last_registered_at)
		VALUES ($1, TRUE, 'Registered', $2)
		ON CONFLICT (student_id) DO UPDATE SET
			face_registered = TRUE,
			status = 'Registered',
			last_registered_at = EXCLUDED.last_registered_at,
			updated_at = NOW()
	`, studentID, at)
	return err
}

// GetRegistration returns the stored registration state, or nil when the
// student has never registered.
func (r *Repository) GetRegistration(ctx context.Context, studentID string) (*RegistrationState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT student_id, face_registered, status, last_registered_at, created_at, updated_at
		FROM biometric_registrations WHERE student_id = $1
	`, studentID)
	var st RegistrationState
	if err := row.Scan(&st.StudentID, &st.FaceRegistered, &st.Status, &st.LastRegisteredAt, &st.CreatedAt, &st.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// InsertRecord writes a new attendance record and returns its id. A second
// record for the same (student, subject, date, semester) tuple is rejected
// with ErrDuplicate by the unique index.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, student_id, subject_code, attendance_date, semester, academic_year, status, marked_by, remarks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, rec.ID, rec.StudentID, rec.SubjectCode, rec.Date, rec.Semester, rec.AcademicYear, rec.Status, rec.MarkedBy, rec.Remarks)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicate
		}
		return "", err
	}
	return rec.ID, nil
}

// ListFilter narrows ListRecords results. Zero values mean "no filter".
type ListFilter struct {
	StudentID   string
	SubjectCode string
	Semester    int
	Limit       int
	Offset      int
}

// ListRecords returns records matching the filter, newest first.
func (r *Repository) ListRecords(ctx context.Context, f ListFilter) ([]Record, error) {
	query, args := buildListQuery(f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.SubjectCode, &rec.Date, &rec.Semester,
			&rec.AcademicYear, &rec.Status, &rec.MarkedBy, &rec.Remarks, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func buildListQuery(f ListFilter) (string, []any) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	query := `SELECT id, student_id, subject_code, attendance_date, semester, academic_year, status, marked_by, remarks, created_at FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		clauses = append(clauses, "student_id = $"+strconv.Itoa(len(args)))
	}
	if f.SubjectCode != "" {
		args = append(args, f.SubjectCode)
		clauses = append(clauses, "subject_code = $"+strconv.Itoa(len(args)))
	}
	if f.Semester > 0 {
		args = append(args, f.Semester)
		clauses = append(clauses, "semester = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += " ORDER BY attendance_date DESC, created_at DESC LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))
	return query, args
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
