// Package notify delivers registration and attendance notifications by
// email. Delivery is fire-and-forget from the workflow's point of view.
package notify

import (
	"fmt"
	"strings"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
)

const dateLayout = "02-01-2006"

// RegistrationEmail builds the subject and plain-text body announcing a face
// registration result.
func RegistrationEmail(ident auth.Identity, ok bool) (subject, body string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", ident.Name)
	if ok {
		subject = "Face Registration Successful"
		b.WriteString("Your face has been registered successfully. You can now use biometric attendance.\n\n")
	} else {
		subject = "Face Registration Failed"
		b.WriteString("Your face registration attempt failed. Please try again.\n\n")
	}
	b.WriteString("This is an automated notification. Please do not reply to this email.\n\n")
	b.WriteString("Regards,\nAttendance Management System")
	return subject, b.String()
}

// AttendanceEmail builds the subject and plain-text body for a marked
// attendance record.
func AttendanceEmail(ident auth.Identity, rec attendance.Record, subjectName string) (subject, body string) {
	subject = "Attendance Update for " + subjectName
	date := rec.Date.Format(dateLayout)

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", ident.Name)
	fmt.Fprintf(&b, "Your attendance has been marked as %s for %s on %s.\n\n",
		strings.ToUpper(rec.Status), subjectName, date)
	b.WriteString("Attendance details:\n")
	fmt.Fprintf(&b, "- Subject: %s\n", subjectName)
	fmt.Fprintf(&b, "- Date: %s\n", date)
	fmt.Fprintf(&b, "- Status: %s\n", rec.Status)
	fmt.Fprintf(&b, "- Marked by: %s\n", rec.MarkedBy)
	if rec.Remarks != "" {
		fmt.Fprintf(&b, "- Remarks: %s\n", rec.Remarks)
	}
	b.WriteString("\nThis is an automated notification. Please do not reply to this email.\n\n")
	b.WriteString("Regards,\nAttendance Management System")
	return subject, b.String()
}
