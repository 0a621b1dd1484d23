package biometric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registerTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biometric_register_total",
		Help: "Face registration attempts by outcome.",
	}, []string{"outcome"})

	verifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biometric_verify_total",
		Help: "Face verification attempts by outcome.",
	}, []string{"outcome"})

	markTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biometric_mark_attendance_total",
		Help: "Attendance marking attempts by outcome.",
	}, []string{"outcome"})
)

const (
	outcomeSuccess      = "success"
	outcomeFailed       = "failed"
	outcomeDenied       = "denied"
	outcomeInvalid      = "invalid"
	outcomeUnregistered = "unregistered"
	outcomeConflict     = "conflict"
	outcomeFault        = "fault"
)
