package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OTPIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "otp_issued_total",
			Help: "Total number of OTP codes issued",
		},
	)

	OTPVerifiedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "otp_verified_total",
			Help: "Total number of successful OTP verifications",
		},
	)

	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Total number of successful logins by auth type",
		},
		[]string{"auth_type"},
	)

	NotesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notes_created_total",
			Help: "Total number of notes created",
		},
	)
)

// Init registers all collectors. Call once at startup.
func Init() {
	prometheus.MustRegister(OTPIssuedTotal)
	prometheus.MustRegister(OTPVerifiedTotal)
	prometheus.MustRegister(LoginsTotal)
	prometheus.MustRegister(NotesCreatedTotal)
}

// Handler returns the prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
