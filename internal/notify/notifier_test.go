package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
	"campusattend/internal/queue"
)

type fakeMailer struct {
	sent []sentMail
	fail error
}

type sentMail struct {
	toName, toEmail, subject, body string
}

func (m *fakeMailer) Send(_ context.Context, toName, toEmail, subject, body string) error {
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sentMail{toName, toEmail, subject, body})
	return nil
}

func testIdentity() auth.Identity {
	return auth.Identity{ID: "S1", Role: auth.RoleStudent, Name: "Asha Rao", Email: "asha@example.com"}
}

func testRecord() attendance.Record {
	return attendance.Record{
		StudentID:    "S1",
		SubjectCode:  "CS101",
		Date:         time.Date(2024, 9, 16, 0, 0, 0, 0, time.UTC),
		Semester:     3,
		AcademicYear: "2024-25",
		Status:       attendance.StatusPresent,
		MarkedBy:     attendance.MarkedByBiometric,
		Remarks:      attendance.RemarkBiometric,
	}
}

func TestAttendanceEmailContent(t *testing.T) {
	subject, body := AttendanceEmail(testIdentity(), testRecord(), "CS101")

	if subject != "Attendance Update for CS101" {
		t.Errorf("subject = %q", subject)
	}
	for _, want := range []string{
		"Dear Asha Rao",
		"marked as PRESENT for CS101 on 16-09-2024",
		"- Status: Present",
		"- Marked by: Biometric System",
		"- Remarks: Attendance marked via face recognition",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestRegistrationEmailContent(t *testing.T) {
	subject, body := RegistrationEmail(testIdentity(), true)
	if subject != "Face Registration Successful" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "registered successfully") {
		t.Errorf("body missing success text:\n%s", body)
	}

	subject, body = RegistrationEmail(testIdentity(), false)
	if subject != "Face Registration Failed" {
		t.Errorf("failure subject = %q", subject)
	}
	if !strings.Contains(body, "Please try again") {
		t.Errorf("body missing retry text:\n%s", body)
	}
}

func TestEmailNotifier(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewEmailNotifier(mailer)

	if err := n.NotifyRegistration(context.Background(), testIdentity(), true); err != nil {
		t.Fatalf("NotifyRegistration: %v", err)
	}
	if err := n.NotifyAttendance(context.Background(), testIdentity(), testRecord(), "CS101"); err != nil {
		t.Fatalf("NotifyAttendance: %v", err)
	}
	if len(mailer.sent) != 2 {
		t.Fatalf("sent %d mails, want 2", len(mailer.sent))
	}
	if mailer.sent[0].toEmail != "asha@example.com" {
		t.Errorf("recipient = %q", mailer.sent[0].toEmail)
	}
}

func TestEmailNotifierNoAddress(t *testing.T) {
	n := NewEmailNotifier(&fakeMailer{})
	ident := testIdentity()
	ident.Email = ""
	if err := n.NotifyRegistration(context.Background(), ident, true); err == nil {
		t.Error("expected error for identity without an email address")
	}
}

func TestQueueNotifierRoundTrip(t *testing.T) {
	q := queue.NewInMemory(4)
	n := NewQueueNotifier(q)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := n.NotifyAttendance(ctx, testIdentity(), testRecord(), "CS101"); err != nil {
		t.Fatalf("NotifyAttendance: %v", err)
	}

	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	msg := <-msgs
	if msg.Type != "notify" {
		t.Errorf("message type = %q", msg.Type)
	}

	var job Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if job.Kind != KindAttendance || job.Email != "asha@example.com" || job.SubjectCode != "CS101" {
		t.Errorf("job = %+v", job)
	}

	mailer := &fakeMailer{}
	if err := SendJob(ctx, mailer, job); err != nil {
		t.Fatalf("SendJob: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mailer.sent))
	}
}

func TestSendJobUnknownKind(t *testing.T) {
	err := SendJob(context.Background(), &fakeMailer{}, Job{Kind: "sms", Email: "a@b.c"})
	if err == nil {
		t.Error("expected error for unknown job kind")
	}
}

func TestSendJobMailerFailure(t *testing.T) {
	mailer := &fakeMailer{fail: errors.New("smtp down")}
	job := Job{Kind: KindRegistration, Name: "Asha", Email: "a@b.c", Registered: true}
	if err := SendJob(context.Background(), mailer, job); err == nil {
		t.Error("expected mailer error to propagate to the worker")
	}
}
