package attendance

import (
	"errors"
	"time"
)

// Record status written by the biometric flow. The flow only builds a record
// after a successful face match, so the status is always Present.
const (
	StatusPresent = "Present"

	// MarkedByBiometric labels records produced by the biometric channel.
	MarkedByBiometric = "Biometric System"

	// RemarkBiometric is the fixed remark on biometric records.
	RemarkBiometric = "Attendance marked via face recognition"
)

// ErrDuplicate is returned when a record for the same (student, subject,
// date, semester) tuple already exists. Uniqueness is enforced by the
// database, not pre-checked by callers.
var ErrDuplicate = errors.New("attendance already marked")

// Record is one persisted presence assertion. Immutable once written.
type Record struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	SubjectCode  string    `json:"subject_code"`
	Date         time.Time `json:"date"`
	Semester     int       `json:"semester"`
	AcademicYear string    `json:"academic_year"`
	Status       string    `json:"status"`
	MarkedBy     string    `json:"marked_by"`
	Remarks      string    `json:"remarks,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegistrationState tracks whether a student has a registered face template.
// It only ever transitions Unregistered to Registered; re-registration
// refreshes the timestamp.
type RegistrationState struct {
	StudentID        string    `json:"student_id"`
	FaceRegistered   bool      `json:"face_registered"`
	Status           string    `json:"status"`
	LastRegisteredAt time.Time `json:"last_registered_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
