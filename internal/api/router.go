package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Post("/login", apiHandler.LoginHandler)
		r.Post("/register", apiHandler.RegisterHandler)
		r.Post("/logout", apiHandler.LogoutHandler)
		r.Get("/me", apiHandler.MeHandler)
		r.Get("/onboarding", apiHandler.OnboardingHandler)
		r.Post("/onboarding", apiHandler.MarkOnboardingHandler)

		// The triage chat works anonymously with the device id.
		r.Route("/chat", func(r chi.Router) {
			r.Get("/", apiHandler.ChatStateHandler)
			r.Get("/sessions", apiHandler.ListSessionsHandler)
			r.Post("/sessions", apiHandler.CreateSessionHandler)
			r.Post("/sessions/{sessionID}/select", apiHandler.SelectSessionHandler)
			r.Post("/messages", apiHandler.SendMessageHandler)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/medicines", apiHandler.MedicinesHandler)
			r.Get("/medicines/{name}", apiHandler.MedicineHandler)
			r.Get("/pharmacies", apiHandler.PharmaciesHandler)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", apiHandler.CartHandler)
			r.Delete("/", apiHandler.ClearCartHandler)
			r.Post("/items", apiHandler.AddToCartHandler)
			r.Put("/items/{medicineID}", apiHandler.SetCartQuantityHandler)
			r.Delete("/items/{medicineID}", apiHandler.RemoveFromCartHandler)
			r.Post("/checkout", apiHandler.CheckoutHandler)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", apiHandler.AdminLoginHandler)
			r.Post("/logout", apiHandler.AdminLogoutHandler)
			r.With(apiHandler.RequireAdmin).Get("/me", apiHandler.AdminMeHandler)
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.RequireSession)

			r.Get("/appointments", apiHandler.MyAppointmentsHandler)
			r.Post("/appointments", apiHandler.BookAppointmentHandler)
			r.Get("/appointments/doctor", apiHandler.DoctorAppointmentsHandler)
			r.Get("/appointments/{appointmentID}", apiHandler.GetAppointmentHandler)
			r.Patch("/appointments/{appointmentID}/status", apiHandler.UpdateAppointmentStatusHandler)
			r.Delete("/appointments/{appointmentID}", apiHandler.DeleteAppointmentHandler)

			r.Get("/availability", apiHandler.ListAvailabilityHandler)
			r.Post("/availability", apiHandler.CreateAvailabilityHandler)
			r.Get("/availability/doctors", apiHandler.AvailableDoctorsHandler)
			r.Put("/availability/{availabilityID}", apiHandler.UpdateAvailabilityHandler)
			r.Delete("/availability/{availabilityID}", apiHandler.DeleteAvailabilityHandler)

			r.Get("/reports", apiHandler.ReportsHandler)
			r.Get("/elimu", apiHandler.ElimuHandler)
			r.Post("/feedback", apiHandler.FeedbackHandler)
			r.Put("/profile", apiHandler.UpdateProfileHandler)
			r.Post("/voice-notes/{recipientID}", apiHandler.VoiceNoteHandler)
		})
	})

	return r
}
