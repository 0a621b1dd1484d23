// Package catalog serves reference data: departments and the subjects
// taught in them.
package catalog

import (
	"context"
	"database/sql"
)

type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Subject struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	DepartmentID string `json:"department_id"`
	Semester     int    `json:"semester"`
}

// Repository reads reference data from Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListDepartments returns all departments ordered by name.
func (r *Repository) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// ListSubjects returns subjects, optionally filtered by department.
func (r *Repository) ListSubjects(ctx context.Context, departmentID string) ([]Subject, error) {
	query := `SELECT code, name, department_id, semester FROM subjects`
	args := []any{}
	if departmentID != "" {
		query += ` WHERE department_id = $1`
		args = append(args, departmentID)
	}
	query += ` ORDER BY code`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Subject
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.Code, &s.Name, &s.DepartmentID, &s.Semester); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
