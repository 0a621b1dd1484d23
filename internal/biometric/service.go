// Package biometric implements the face registration, verification and
// verification-gated attendance marking workflow. All collaborators are
// injected; the service itself keeps no mutable state between calls.
package biometric

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
)

// FaceCapability is the external face recognition service, reduced to its
// boolean contract. Any returned error is an unexpected fault.
type FaceCapability interface {
	HasTemplate(ctx context.Context, studentID string) (bool, error)
	Enroll(ctx context.Context, studentID string) (bool, error)
	Match(ctx context.Context, studentID string) (bool, error)
}

// Notifier delivers fire-and-forget notifications. Errors are logged by the
// workflow and never propagated.
type Notifier interface {
	NotifyRegistration(ctx context.Context, ident auth.Identity, ok bool) error
	NotifyAttendance(ctx context.Context, ident auth.Identity, rec attendance.Record, subjectCode string) error
}

// Repository is the persistence boundary consumed by the workflow.
// InsertRecord must reject duplicate (student, subject, date, semester)
// tuples with attendance.ErrDuplicate.
type Repository interface {
	UpsertRegistration(ctx context.Context, studentID string, at time.Time) error
	InsertRecord(ctx context.Context, rec attendance.Record) (string, error)
}

// Service coordinates the biometric attendance workflow.
type Service struct {
	face  FaceCapability
	repo  Repository
	notif Notifier
	log   *log.Logger
	now   func() time.Time
}

// NewService creates a workflow service with injected collaborators.
func NewService(face FaceCapability, repo Repository, notif Notifier, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		face:  face,
		repo:  repo,
		notif: notif,
		log:   logger,
		now:   time.Now,
	}
}

const (
	opStatus   = "registration status"
	opRegister = "face registration"
	opVerify   = "face verification"
	opMark     = "attendance marking"
)

// checkRole is the access guard: only students use the biometric flows.
func checkRole(ident auth.Identity, op string) error {
	if ident.Role != auth.RoleStudent {
		return &AuthorizationError{Role: string(ident.Role), Op: op}
	}
	return nil
}

// RegistrationStatus reports whether the student has a registered face
// template. Read-only, no side effects.
func (s *Service) RegistrationStatus(ctx context.Context, ident auth.Identity) (bool, error) {
	if err := checkRole(ident, opStatus); err != nil {
		return false, err
	}
	registered, err := s.face.HasTemplate(ctx, ident.ID)
	if err != nil {
		s.log.Printf("face template lookup failed for student %s: %v", ident.ID, err)
		return false, &CapabilityFault{Op: opStatus, Err: err}
	}
	return registered, nil
}

// RegisterResult is the outcome of a registration attempt. A capability "no"
// is an expected outcome, not an error.
type RegisterResult struct {
	Registered   bool      `json:"registered"`
	Reason       string    `json:"reason,omitempty"`
	RegisteredAt time.Time `json:"registered_at,omitempty"`
}

// Register enrolls the student's face. Re-registration is allowed and simply
// refreshes the stored timestamp. The registration notification is
// best-effort: its failure never rolls back a completed registration.
func (s *Service) Register(ctx context.Context, ident auth.Identity) (RegisterResult, error) {
	if err := checkRole(ident, opRegister); err != nil {
		registerTotal.WithLabelValues(outcomeDenied).Inc()
		return RegisterResult{}, err
	}

	enrolled, err := s.face.Enroll(ctx, ident.ID)
	if err != nil {
		registerTotal.WithLabelValues(outcomeFault).Inc()
		s.log.Printf("face enrollment fault for student %s: %v", ident.ID, err)
		return RegisterResult{}, &CapabilityFault{Op: opRegister, Err: err}
	}
	if !enrolled {
		registerTotal.WithLabelValues(outcomeFailed).Inc()
		s.log.Printf("face enrollment rejected for student %s", ident.ID)
		return RegisterResult{Reason: "face could not be registered, please try again"}, nil
	}

	now := s.now()
	if err := s.repo.UpsertRegistration(ctx, ident.ID, now); err != nil {
		registerTotal.WithLabelValues(outcomeFault).Inc()
		s.log.Printf("saving registration state for student %s failed: %v", ident.ID, err)
		return RegisterResult{}, &CapabilityFault{Op: opRegister, Err: err}
	}

	if err := s.notif.NotifyRegistration(ctx, ident, true); err != nil {
		s.log.Printf("registration notification for student %s failed: %v", ident.ID, err)
	}

	registerTotal.WithLabelValues(outcomeSuccess).Inc()
	s.log.Printf("face registered for student %s", ident.ID)
	return RegisterResult{Registered: true, RegisteredAt: now}, nil
}

// Verify checks a live face against the registered template. It requires a
// prior registration and mutates nothing, so a failed attempt may be retried
// freely.
func (s *Service) Verify(ctx context.Context, ident auth.Identity) (bool, error) {
	if err := checkRole(ident, opVerify); err != nil {
		verifyTotal.WithLabelValues(outcomeDenied).Inc()
		return false, err
	}

	registered, err := s.face.HasTemplate(ctx, ident.ID)
	if err != nil {
		verifyTotal.WithLabelValues(outcomeFault).Inc()
		s.log.Printf("face template lookup failed for student %s: %v", ident.ID, err)
		return false, &CapabilityFault{Op: opVerify, Err: err}
	}
	if !registered {
		verifyTotal.WithLabelValues(outcomeUnregistered).Inc()
		return false, &PreconditionError{Reason: "you must register your face first"}
	}

	matched, err := s.face.Match(ctx, ident.ID)
	if err != nil {
		verifyTotal.WithLabelValues(outcomeFault).Inc()
		s.log.Printf("face match fault for student %s: %v", ident.ID, err)
		return false, &CapabilityFault{Op: opVerify, Err: err}
	}
	if matched {
		verifyTotal.WithLabelValues(outcomeSuccess).Inc()
	} else {
		verifyTotal.WithLabelValues(outcomeFailed).Inc()
	}
	return matched, nil
}

// MarkRequest carries the caller-supplied fields for marking attendance.
// The date is always the server's, never the client's.
type MarkRequest struct {
	SubjectCode  string
	Semester     string
	AcademicYear string
}

// MarkAttendance runs the full precondition chain (role, input, registration,
// live match) and on success persists a Present record and notifies the
// student. Persistence happens strictly before notification; a notification
// failure never invalidates the stored record.
func (s *Service) MarkAttendance(ctx context.Context, ident auth.Identity, req MarkRequest) (attendance.Record, error) {
	if err := checkRole(ident, opMark); err != nil {
		markTotal.WithLabelValues(outcomeDenied).Inc()
		return attendance.Record{}, err
	}

	semester, vErr := validateMarkRequest(req)
	if vErr != nil {
		markTotal.WithLabelValues(outcomeInvalid).Inc()
		return attendance.Record{}, vErr
	}

	registered, err := s.face.HasTemplate(ctx, ident.ID)
	if err != nil {
		markTotal.WithLabelValues(outcomeFault).Inc()
		s.log.Printf("face template lookup failed for student %s: %v", ident.ID, err)
		return attendance.Record{}, &CapabilityFault{Op: opMark, Err: err}
	}
	if !registered {
		markTotal.WithLabelValues(outcomeUnregistered).Inc()
		return attendance.Record{}, &PreconditionError{Reason: "you must register your face before marking attendance"}
	}

	matched, err := s.face.Match(ctx, ident.ID)
	if err != nil {
		markTotal.WithLabelValues(outcomeFault).Inc()
		s.log.Printf("face match fault for student %s: %v", ident.ID, err)
		return attendance.Record{}, &CapabilityFault{Op: opMark, Err: err}
	}
	if !matched {
		markTotal.WithLabelValues(outcomeFailed).Inc()
		s.log.Printf("face verification failed for student %s, attendance not marked", ident.ID)
		return attendance.Record{}, &VerificationError{}
	}

	rec := attendance.Record{
		StudentID:    ident.ID,
		SubjectCode:  req.SubjectCode,
		Date:         s.now(),
		Semester:     semester,
		AcademicYear: req.AcademicYear,
		Status:       attendance.StatusPresent,
		MarkedBy:     attendance.MarkedByBiometric,
		Remarks:      attendance.RemarkBiometric,
	}

	id, err := s.repo.InsertRecord(ctx, rec)
	if err != nil {
		if errors.Is(err, attendance.ErrDuplicate) {
			markTotal.WithLabelValues(outcomeConflict).Inc()
			return attendance.Record{}, &ConflictError{SubjectCode: req.SubjectCode}
		}
		markTotal.WithLabelValues(outcomeFault).Inc()
		s.log.Printf("saving attendance for student %s failed: %v", ident.ID, err)
		return attendance.Record{}, &CapabilityFault{Op: opMark, Err: err}
	}
	rec.ID = id

	if err := s.notif.NotifyAttendance(ctx, ident, rec, req.SubjectCode); err != nil {
		s.log.Printf("attendance notification for student %s failed: %v", ident.ID, err)
	}

	markTotal.WithLabelValues(outcomeSuccess).Inc()
	s.log.Printf("attendance marked for student %s, subject %s", ident.ID, req.SubjectCode)
	return rec, nil
}

// validateMarkRequest checks required fields and parses the semester.
// A non-numeric semester is a validation failure, never coerced to zero.
func validateMarkRequest(req MarkRequest) (int, *ValidationError) {
	var fields []FieldError
	if req.SubjectCode == "" {
		fields = append(fields, FieldError{Field: "subjectCode", Error: "subject code is required"})
	}
	if req.Semester == "" {
		fields = append(fields, FieldError{Field: "semester", Error: "semester is required"})
	}
	if req.AcademicYear == "" {
		fields = append(fields, FieldError{Field: "academicYear", Error: "academic year is required"})
	}
	if len(fields) > 0 {
		return 0, &ValidationError{Fields: fields}
	}

	semester, err := strconv.Atoi(req.Semester)
	if err != nil || semester <= 0 {
		return 0, &ValidationError{Fields: []FieldError{
			{Field: "semester", Error: "semester must be a positive integer"},
		}}
	}
	return semester, nil
}
