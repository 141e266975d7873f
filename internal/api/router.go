package api

import (
	"context"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"motorent/internal/auth"
	apperr "motorent/internal/errors"
	"motorent/internal/metrics"
	"motorent/internal/reqid"
	"motorent/internal/storage"
)

type Deps struct {
	Users        UserService
	Motors       MotorService
	Reservations ReservationService
	Payments     PaymentService
	Testimonials TestimonialService
	Files        storage.Files
	Tokens       *auth.Tokens
	Metrics      *metrics.Metrics
	MaxUpload    int64
	CORSOrigins  []string
	// Ping reports whether the database answers; nil skips the check.
	Ping func(ctx context.Context) error
}

// NewRouter wires every route and the middleware chain.
func NewRouter(d Deps) http.Handler {
	authn := auth.NewMiddleware(d.Tokens, writeError)

	authH := NewAuthHandler(d.Users, d.MaxUpload)
	accountH := NewAccountHandler(d.Users)
	motorH := NewMotorHandler(d.Motors, d.Reservations, d.MaxUpload)
	reservationH := NewReservationHandler(d.Reservations)
	paymentH := NewPaymentHandler(d.Payments, d.MaxUpload)
	testimonialH := NewTestimonialHandler(d.Testimonials)
	fileH := NewFileHandler(d.Files)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apperr.ErrNotFound("route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apperr.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed"))
	})
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Handle("/metrics", d.Metrics.Handler()).Methods("GET")
	}
	r.HandleFunc("/healthz", health(d.Ping)).Methods("GET")

	// Public endpoints
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", authH.Register).Methods("POST")
	api.HandleFunc("/auth/login", authH.Login).Methods("POST")
	api.HandleFunc("/motors", motorH.List).Methods("GET")
	api.HandleFunc("/motors/available", motorH.Available).Methods("GET")
	api.HandleFunc("/motors/{id:[0-9]+}", motorH.Get).Methods("GET")
	api.HandleFunc("/motors/{id:[0-9]+}/availability", motorH.Availability).Methods("GET")
	api.HandleFunc("/testimonials", testimonialH.Public).Methods("GET")
	r.HandleFunc("/files/{category:motors}/{name}", fileH.Serve).Methods("GET")

	// Authenticated endpoints. They stay on the /api subrouter; a
	// matcher-less subrouter turns 405 into 404.
	user := func(h http.HandlerFunc) http.Handler { return authn.Authenticate(h) }
	api.Handle("/reservations", user(reservationH.Create)).Methods("POST")
	api.Handle("/reservations/mine", user(reservationH.Mine)).Methods("GET")
	api.Handle("/reservations/{id:[0-9]+}", user(reservationH.Get)).Methods("GET")
	api.Handle("/reservations/{id:[0-9]+}/cancel", user(reservationH.Cancel)).Methods("POST")
	api.Handle("/reservations/{id:[0-9]+}/payment", user(paymentH.Submit)).Methods("POST")
	api.Handle("/reservations/{id:[0-9]+}/payment", user(paymentH.ForReservation)).Methods("GET")
	api.Handle("/testimonials", user(testimonialH.Create)).Methods("POST")

	// Admin endpoints (protected)
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(authn.Authenticate, authn.RequireAdmin)
	admin.HandleFunc("/pending-users", accountH.ListPending).Methods("GET")
	admin.HandleFunc("/pending-users/{id:[0-9]+}/approve", accountH.Approve).Methods("POST")
	admin.HandleFunc("/pending-users/{id:[0-9]+}/reject", accountH.Reject).Methods("POST")
	admin.HandleFunc("/users", accountH.ListUsers).Methods("GET")
	admin.HandleFunc("/users/{id:[0-9]+}/verification", accountH.SetVerification).Methods("PUT")
	admin.HandleFunc("/users/{id:[0-9]+}", accountH.DeleteUser).Methods("DELETE")
	admin.HandleFunc("/motors", motorH.Create).Methods("POST")
	admin.HandleFunc("/motors/bulk-delete", motorH.BulkDelete).Methods("POST")
	admin.HandleFunc("/motors/{id:[0-9]+}", motorH.Update).Methods("PUT")
	admin.HandleFunc("/motors/{id:[0-9]+}/status", motorH.SetStatus).Methods("PUT")
	admin.HandleFunc("/motors/{id:[0-9]+}", motorH.Delete).Methods("DELETE")
	admin.HandleFunc("/reservations", reservationH.AdminList).Methods("GET")
	admin.HandleFunc("/reservations/{id:[0-9]+}/status", reservationH.AdminSetStatus).Methods("PUT")
	admin.HandleFunc("/payments", paymentH.AdminList).Methods("GET")
	admin.HandleFunc("/payments/{id:[0-9]+}", paymentH.AdminGet).Methods("GET")
	admin.HandleFunc("/payments/{id:[0-9]+}/decision", paymentH.Decide).Methods("PUT")
	admin.HandleFunc("/testimonials", testimonialH.AdminList).Methods("GET")
	admin.HandleFunc("/testimonials/{id:[0-9]+}/status", testimonialH.Moderate).Methods("PUT")
	admin.HandleFunc("/testimonials/{id:[0-9]+}", testimonialH.Delete).Methods("DELETE")

	files := r.PathPrefix("/files").Subrouter()
	files.Use(authn.Authenticate, authn.RequireAdmin)
	files.HandleFunc("/{category:proofs|documents}/{name}", fileH.Serve).Methods("GET")

	var h http.Handler = r
	if len(d.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(d.CORSOrigins),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type", reqid.Header}),
			handlers.ExposedHeaders([]string{reqid.Header}),
		)(h)
	}
	h = accessLog(h)
	h = recoverer(h)
	h = handlers.ProxyHeaders(h)
	return reqid.Middleware(h)
}

func health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				writeError(w, r, apperr.Transient("database unavailable", err))
				return
			}
		}
		ok(w, "ok", nil)
	}
}
