package biometric

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
)

type fakeFace struct {
	templates map[string]bool
	enrollOK  bool
	matchOK   bool

	hasErr    error
	enrollErr error
	matchErr  error

	hasCalls    int
	enrollCalls int
	matchCalls  int
}

func newFakeFace() *fakeFace {
	return &fakeFace{templates: make(map[string]bool), enrollOK: true, matchOK: true}
}

func (f *fakeFace) HasTemplate(_ context.Context, studentID string) (bool, error) {
	f.hasCalls++
	if f.hasErr != nil {
		return false, f.hasErr
	}
	return f.templates[studentID], nil
}

func (f *fakeFace) Enroll(_ context.Context, studentID string) (bool, error) {
	f.enrollCalls++
	if f.enrollErr != nil {
		return false, f.enrollErr
	}
	if f.enrollOK {
		f.templates[studentID] = true
	}
	return f.enrollOK, nil
}

func (f *fakeFace) Match(_ context.Context, studentID string) (bool, error) {
	f.matchCalls++
	if f.matchErr != nil {
		return false, f.matchErr
	}
	return f.matchOK, nil
}

func (f *fakeFace) calls() int { return f.hasCalls + f.enrollCalls + f.matchCalls }

type fakeRepo struct {
	regs      map[string]time.Time
	records   []attendance.Record
	insertErr error

	upsertCalls int
	events      *[]string
}

func newFakeRepo(events *[]string) *fakeRepo {
	return &fakeRepo{regs: make(map[string]time.Time), events: events}
}

func (r *fakeRepo) UpsertRegistration(_ context.Context, studentID string, at time.Time) error {
	r.upsertCalls++
	r.regs[studentID] = at
	return nil
}

func (r *fakeRepo) InsertRecord(_ context.Context, rec attendance.Record) (string, error) {
	if r.insertErr != nil {
		return "", r.insertErr
	}
	r.records = append(r.records, rec)
	if r.events != nil {
		*r.events = append(*r.events, "insert")
	}
	return "rec-1", nil
}

type fakeNotifier struct {
	regCalls int
	attCalls int
	fail     error
	events   *[]string
}

func (n *fakeNotifier) NotifyRegistration(_ context.Context, _ auth.Identity, _ bool) error {
	n.regCalls++
	return n.fail
}

func (n *fakeNotifier) NotifyAttendance(_ context.Context, _ auth.Identity, _ attendance.Record, _ string) error {
	n.attCalls++
	if n.events != nil {
		*n.events = append(*n.events, "notify")
	}
	return n.fail
}

func student(id string) auth.Identity {
	return auth.Identity{ID: id, Role: auth.RoleStudent, Name: "Test Student", Email: "s1@example.com"}
}

func newTestService(face *fakeFace, repo *fakeRepo, notif *fakeNotifier) *Service {
	svc := NewService(face, repo, notif, log.New(io.Discard, "", 0))
	svc.now = func() time.Time { return time.Date(2024, 9, 16, 10, 30, 0, 0, time.UTC) }
	return svc
}

func validRequest() MarkRequest {
	return MarkRequest{SubjectCode: "CS101", Semester: "3", AcademicYear: "2024-25"}
}

func TestRegisterThenStatus(t *testing.T) {
	face := newFakeFace()
	svc := newTestService(face, newFakeRepo(nil), &fakeNotifier{})

	res, err := svc.Register(context.Background(), student("S1"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !res.Registered {
		t.Fatalf("Register returned %+v, want registered", res)
	}

	registered, err := svc.RegistrationStatus(context.Background(), student("S1"))
	if err != nil {
		t.Fatalf("RegistrationStatus: %v", err)
	}
	if !registered {
		t.Error("status should be true after a successful registration")
	}
}

func TestRegisterIdempotent(t *testing.T) {
	face := newFakeFace()
	repo := newFakeRepo(nil)
	svc := newTestService(face, repo, &fakeNotifier{})

	first, err := svc.Register(context.Background(), student("S1"))
	if err != nil || !first.Registered {
		t.Fatalf("first Register = %+v, %v", first, err)
	}
	svc.now = func() time.Time { return time.Date(2024, 9, 17, 8, 0, 0, 0, time.UTC) }
	second, err := svc.Register(context.Background(), student("S1"))
	if err != nil || !second.Registered {
		t.Fatalf("second Register = %+v, %v", second, err)
	}

	if len(repo.regs) != 1 {
		t.Errorf("expected a single registration state, got %d", len(repo.regs))
	}
	if repo.upsertCalls != 2 {
		t.Errorf("upsert calls = %d, want 2", repo.upsertCalls)
	}
	if got := repo.regs["S1"]; !got.Equal(second.RegisteredAt) {
		t.Errorf("stored timestamp = %v, want refreshed %v", got, second.RegisteredAt)
	}
}

func TestRegisterEnrollRejected(t *testing.T) {
	face := newFakeFace()
	face.enrollOK = false
	repo := newFakeRepo(nil)
	notif := &fakeNotifier{}
	svc := newTestService(face, repo, notif)

	res, err := svc.Register(context.Background(), student("S1"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Registered {
		t.Error("registration should have failed")
	}
	if res.Reason == "" {
		t.Error("failure must carry a user-facing reason")
	}
	if repo.upsertCalls != 0 {
		t.Errorf("no state mutation expected, got %d upserts", repo.upsertCalls)
	}
	if notif.regCalls != 0 {
		t.Errorf("no notification expected, got %d", notif.regCalls)
	}
}

func TestRegisterEnrollFault(t *testing.T) {
	face := newFakeFace()
	cause := errors.New("camera offline")
	face.enrollErr = cause
	svc := newTestService(face, newFakeRepo(nil), &fakeNotifier{})

	_, err := svc.Register(context.Background(), student("S1"))
	var fault *CapabilityFault
	if !errors.As(err, &fault) {
		t.Fatalf("expected CapabilityFault, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("fault should wrap the underlying error")
	}
	if got := fault.Error(); got == cause.Error() {
		t.Error("fault message must not leak the internal error text")
	}
}

func TestRegisterNotificationFailureIgnored(t *testing.T) {
	face := newFakeFace()
	notif := &fakeNotifier{fail: errors.New("smtp down")}
	svc := newTestService(face, newFakeRepo(nil), notif)

	res, err := svc.Register(context.Background(), student("S1"))
	if err != nil || !res.Registered {
		t.Fatalf("Register = %+v, %v; notification failure must not fail registration", res, err)
	}
	if notif.regCalls != 1 {
		t.Errorf("notification calls = %d, want 1", notif.regCalls)
	}
}

func TestVerifyUnregisteredFailsFast(t *testing.T) {
	face := newFakeFace()
	svc := newTestService(face, newFakeRepo(nil), &fakeNotifier{})

	_, err := svc.Verify(context.Background(), student("S1"))
	var pre *PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	if face.matchCalls != 0 {
		t.Errorf("match must not be invoked before registration, got %d calls", face.matchCalls)
	}
}

func TestVerifyReturnsMatchVerbatim(t *testing.T) {
	for _, matched := range []bool{true, false} {
		face := newFakeFace()
		face.templates["S1"] = true
		face.matchOK = matched
		svc := newTestService(face, newFakeRepo(nil), &fakeNotifier{})

		got, err := svc.Verify(context.Background(), student("S1"))
		if err != nil {
			t.Fatalf("Verify(match=%v): %v", matched, err)
		}
		if got != matched {
			t.Errorf("Verify = %v, want %v", got, matched)
		}
	}
}

func TestNonStudentRolesRejectedEverywhere(t *testing.T) {
	roles := []auth.Role{auth.RoleAdmin, auth.RolePrincipal, auth.RoleHOD, auth.RoleTeacher}
	ops := []struct {
		name string
		call func(svc *Service, ident auth.Identity) error
	}{
		{"register", func(svc *Service, ident auth.Identity) error {
			_, err := svc.Register(context.Background(), ident)
			return err
		}},
		{"verify", func(svc *Service, ident auth.Identity) error {
			_, err := svc.Verify(context.Background(), ident)
			return err
		}},
		{"markAttendance", func(svc *Service, ident auth.Identity) error {
			_, err := svc.MarkAttendance(context.Background(), ident, validRequest())
			return err
		}},
	}

	for _, role := range roles {
		for _, op := range ops {
			t.Run(string(role)+"/"+op.name, func(t *testing.T) {
				face := newFakeFace()
				repo := newFakeRepo(nil)
				notif := &fakeNotifier{}
				svc := newTestService(face, repo, notif)

				ident := auth.Identity{ID: "U1", Role: role, Name: "Staff"}
				err := op.call(svc, ident)
				var denied *AuthorizationError
				if !errors.As(err, &denied) {
					t.Fatalf("expected AuthorizationError, got %v", err)
				}
				if face.calls() != 0 {
					t.Errorf("face capability invoked %d times before authorization", face.calls())
				}
				if repo.upsertCalls != 0 || len(repo.records) != 0 {
					t.Error("repository must not be touched on denied access")
				}
				if notif.regCalls != 0 || notif.attCalls != 0 {
					t.Error("notifier must not be touched on denied access")
				}
			})
		}
	}
}

// Scenario A: an unregistered student cannot mark attendance.
func TestMarkAttendanceUnregistered(t *testing.T) {
	face := newFakeFace()
	repo := newFakeRepo(nil)
	svc := newTestService(face, repo, &fakeNotifier{})

	_, err := svc.MarkAttendance(context.Background(), student("S1"), validRequest())
	var pre *PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	if len(repo.records) != 0 {
		t.Errorf("no record should be persisted, got %d", len(repo.records))
	}
	if face.matchCalls != 0 {
		t.Errorf("match must not run for unregistered students, got %d calls", face.matchCalls)
	}
}

// Scenario B: register, then mark with a passing match.
func TestMarkAttendanceSuccess(t *testing.T) {
	var events []string
	face := newFakeFace()
	repo := newFakeRepo(&events)
	notif := &fakeNotifier{events: &events}
	svc := newTestService(face, repo, notif)

	if _, err := svc.Register(context.Background(), student("S1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	rec, err := svc.MarkAttendance(context.Background(), student("S1"), validRequest())
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	if rec.SubjectCode != "CS101" || rec.Semester != 3 || rec.AcademicYear != "2024-25" {
		t.Errorf("unexpected record fields: %+v", rec)
	}
	if rec.Status != attendance.StatusPresent {
		t.Errorf("status = %q, want %q", rec.Status, attendance.StatusPresent)
	}
	if rec.MarkedBy != attendance.MarkedByBiometric {
		t.Errorf("marked by = %q, want %q", rec.MarkedBy, attendance.MarkedByBiometric)
	}
	if want := time.Date(2024, 9, 16, 10, 30, 0, 0, time.UTC); !rec.Date.Equal(want) {
		t.Errorf("date = %v, want server clock %v", rec.Date, want)
	}
	if len(repo.records) != 1 {
		t.Fatalf("persisted records = %d, want 1", len(repo.records))
	}
	if notif.attCalls != 1 {
		t.Errorf("attendance notifications = %d, want 1", notif.attCalls)
	}
	if len(events) != 2 || events[0] != "insert" || events[1] != "notify" {
		t.Errorf("persistence must precede notification, got order %v", events)
	}
}

// Scenario C: a failed match writes nothing and notifies nobody.
func TestMarkAttendanceMatchFails(t *testing.T) {
	face := newFakeFace()
	face.templates["S1"] = true
	face.matchOK = false
	repo := newFakeRepo(nil)
	notif := &fakeNotifier{}
	svc := newTestService(face, repo, notif)

	_, err := svc.MarkAttendance(context.Background(), student("S1"), validRequest())
	var verr *VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected VerificationError, got %v", err)
	}
	if len(repo.records) != 0 {
		t.Errorf("repository writes = %d, want 0", len(repo.records))
	}
	if notif.attCalls != 0 {
		t.Errorf("attendance notifications = %d, want 0", notif.attCalls)
	}
}

// Scenarios D and E plus field combinations: validation rejects bad input
// before any capability call.
func TestMarkAttendanceValidation(t *testing.T) {
	tests := []struct {
		name       string
		req        MarkRequest
		wantFields []string
	}{
		{"missing subject", MarkRequest{Semester: "3", AcademicYear: "2024-25"}, []string{"subjectCode"}},
		{"non-numeric semester", MarkRequest{SubjectCode: "CS101", Semester: "abc", AcademicYear: "2024-25"}, []string{"semester"}},
		{"zero semester", MarkRequest{SubjectCode: "CS101", Semester: "0", AcademicYear: "2024-25"}, []string{"semester"}},
		{"negative semester", MarkRequest{SubjectCode: "CS101", Semester: "-2", AcademicYear: "2024-25"}, []string{"semester"}},
		{"missing year", MarkRequest{SubjectCode: "CS101", Semester: "3"}, []string{"academicYear"}},
		{"everything missing", MarkRequest{}, []string{"subjectCode", "semester", "academicYear"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			face := newFakeFace()
			face.templates["S1"] = true
			repo := newFakeRepo(nil)
			svc := newTestService(face, repo, &fakeNotifier{})

			_, err := svc.MarkAttendance(context.Background(), student("S1"), tc.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tc.wantFields) {
				t.Fatalf("fields = %+v, want %v", verr.Fields, tc.wantFields)
			}
			for i, want := range tc.wantFields {
				if verr.Fields[i].Field != want {
					t.Errorf("field[%d] = %q, want %q", i, verr.Fields[i].Field, want)
				}
			}
			if face.calls() != 0 {
				t.Errorf("capability invocations = %d, want 0", face.calls())
			}
			if len(repo.records) != 0 {
				t.Error("no record should be written on validation failure")
			}
		})
	}
}

func TestMarkAttendanceDuplicate(t *testing.T) {
	face := newFakeFace()
	face.templates["S1"] = true
	repo := newFakeRepo(nil)
	repo.insertErr = attendance.ErrDuplicate
	notif := &fakeNotifier{}
	svc := newTestService(face, repo, notif)

	_, err := svc.MarkAttendance(context.Background(), student("S1"), validRequest())
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.SubjectCode != "CS101" {
		t.Errorf("conflict subject = %q, want CS101", conflict.SubjectCode)
	}
	if notif.attCalls != 0 {
		t.Errorf("no notification expected for duplicates, got %d", notif.attCalls)
	}
}

func TestMarkAttendanceRepoFault(t *testing.T) {
	face := newFakeFace()
	face.templates["S1"] = true
	repo := newFakeRepo(nil)
	repo.insertErr = errors.New("connection reset")
	svc := newTestService(face, repo, &fakeNotifier{})

	_, err := svc.MarkAttendance(context.Background(), student("S1"), validRequest())
	var fault *CapabilityFault
	if !errors.As(err, &fault) {
		t.Fatalf("expected CapabilityFault, got %v", err)
	}
}

func TestMarkAttendanceNotificationFailureKeepsRecord(t *testing.T) {
	face := newFakeFace()
	face.templates["S1"] = true
	repo := newFakeRepo(nil)
	notif := &fakeNotifier{fail: errors.New("mailbox full")}
	svc := newTestService(face, repo, notif)

	rec, err := svc.MarkAttendance(context.Background(), student("S1"), validRequest())
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if rec.ID == "" {
		t.Error("record id should be set after persistence")
	}
	if len(repo.records) != 1 {
		t.Errorf("persisted records = %d, want 1", len(repo.records))
	}
}
