package notify

import (
	"context"
	"encoding/json"
	"errors"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
	"campusattend/internal/biometric"
	"campusattend/internal/queue"
)

// EmailNotifier sends notifications synchronously through a Mailer.
type EmailNotifier struct {
	mailer Mailer
}

var _ biometric.Notifier = (*EmailNotifier)(nil)

func NewEmailNotifier(mailer Mailer) *EmailNotifier {
	return &EmailNotifier{mailer: mailer}
}

func (n *EmailNotifier) NotifyRegistration(ctx context.Context, ident auth.Identity, ok bool) error {
	if ident.Email == "" {
		return errors.New("identity has no email address")
	}
	subject, body := RegistrationEmail(ident, ok)
	return n.mailer.Send(ctx, ident.Name, ident.Email, subject, body)
}

func (n *EmailNotifier) NotifyAttendance(ctx context.Context, ident auth.Identity, rec attendance.Record, subjectCode string) error {
	if ident.Email == "" {
		return errors.New("identity has no email address")
	}
	subject, body := AttendanceEmail(ident, rec, subjectCode)
	return n.mailer.Send(ctx, ident.Name, ident.Email, subject, body)
}

// Job kinds carried on the notification queue.
const (
	KindRegistration = "registration"
	KindAttendance   = "attendance"
)

// Job is one queued notification, consumed by the worker.
type Job struct {
	Kind        string            `json:"kind"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Registered  bool              `json:"registered,omitempty"`
	Record      attendance.Record `json:"record"`
	SubjectCode string            `json:"subject_code,omitempty"`
}

// QueueNotifier hands notifications off to the queue; the worker process
// does the actual sending.
type QueueNotifier struct {
	q queue.Queue
}

var _ biometric.Notifier = (*QueueNotifier)(nil)

func NewQueueNotifier(q queue.Queue) *QueueNotifier {
	return &QueueNotifier{q: q}
}

func (n *QueueNotifier) NotifyRegistration(ctx context.Context, ident auth.Identity, ok bool) error {
	return n.publish(ctx, Job{
		Kind:       KindRegistration,
		Name:       ident.Name,
		Email:      ident.Email,
		Registered: ok,
	})
}

func (n *QueueNotifier) NotifyAttendance(ctx context.Context, ident auth.Identity, rec attendance.Record, subjectCode string) error {
	return n.publish(ctx, Job{
		Kind:        KindAttendance,
		Name:        ident.Name,
		Email:       ident.Email,
		Record:      rec,
		SubjectCode: subjectCode,
	})
}

func (n *QueueNotifier) publish(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return n.q.Publish(ctx, queue.Message{Type: "notify", Body: body})
}

// SendJob delivers one queued job through the mailer. Shared by the worker.
func SendJob(ctx context.Context, mailer Mailer, job Job) error {
	if job.Email == "" {
		return errors.New("job has no email address")
	}
	ident := auth.Identity{Name: job.Name, Email: job.Email}
	var subject, body string
	switch job.Kind {
	case KindRegistration:
		subject, body = RegistrationEmail(ident, job.Registered)
	case KindAttendance:
		subject, body = AttendanceEmail(ident, job.Record, job.SubjectCode)
	default:
		return errors.New("unknown notification kind " + job.Kind)
	}
	return mailer.Send(ctx, job.Name, job.Email, subject, body)
}
