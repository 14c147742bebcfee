package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"afyacare.app/client/internal/backend"
	"afyacare.app/client/internal/core"
	"afyacare.app/client/internal/store"
)

const maxUploadMemory = 10 << 20

// Appointments

func (h *APIHandler) MyAppointmentsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Appointments.Mine(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *APIHandler) DoctorAppointmentsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Appointments.ForDoctor(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *APIHandler) GetAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "appointmentID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.svc.Appointments.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *APIHandler) BookAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	var req store.BookAppointmentRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.svc.Appointments.Book(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (h *APIHandler) UpdateAppointmentStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "appointmentID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req UpdateStatusRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.svc.Appointments.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *APIHandler) DeleteAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "appointmentID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.Appointments.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Availability

func (h *APIHandler) ListAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Availability.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *APIHandler) CreateAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	var req store.Availability
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.svc.Availability.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *APIHandler) UpdateAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "availabilityID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req store.Availability
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.svc.Availability.Update(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *APIHandler) DeleteAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "availabilityID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.Availability.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) AvailableDoctorsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Availability.AvailableDoctors(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Reports, education, feedback, profile

func (h *APIHandler) ReportsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Reports.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *APIHandler) ElimuHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Profile.Elimu(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type FeedbackRequest struct {
	Message string `json:"message"`
}

func (h *APIHandler) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.Profile.SendFeedback(r.Context(), req.Message); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req store.ProfileUpdate
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.svc.Profile.UpdateProfile(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// VoiceNoteHandler relays a multipart "audio" upload to the backend.
func (h *APIHandler) VoiceNoteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "recipientID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.writeError(w, r, &backend.ValidationError{Field: "audio", Message: "expected a multipart upload"})
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		h.writeError(w, r, &backend.ValidationError{Field: "audio", Message: "audio file is required"})
		return
	}
	defer file.Close()

	if err := h.svc.Profile.SendVoiceNote(r.Context(), id, header.Filename, file); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Catalog and cart

func (h *APIHandler) MedicinesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Catalog.Medicines(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *APIHandler) MedicineHandler(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Catalog.Medicine(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *APIHandler) PharmaciesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Catalog.Pharmacies(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type CartResponse struct {
	Items []store.CartItem `json:"items"`
	Total float64          `json:"total"`
}

func (h *APIHandler) writeCart(w http.ResponseWriter, r *http.Request, items []store.CartItem, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []store.CartItem{}
	}
	writeJSON(w, http.StatusOK, CartResponse{Items: items, Total: core.Total(items)})
}

func (h *APIHandler) CartHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Cart.Items(r.Context())
	h.writeCart(w, r, items, err)
}

type AddToCartRequest struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func (h *APIHandler) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	items, err := h.svc.Cart.Add(r.Context(), store.Medicine{ID: req.ID, Name: req.Name, Price: req.Price}, req.Quantity)
	h.writeCart(w, r, items, err)
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *APIHandler) SetCartQuantityHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "medicineID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req SetQuantityRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.svc.Cart.SetQuantity(r.Context(), id, req.Quantity)
	h.writeCart(w, r, items, err)
}

func (h *APIHandler) RemoveFromCartHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "medicineID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.svc.Cart.Remove(r.Context(), id)
	h.writeCart(w, r, items, err)
}

func (h *APIHandler) ClearCartHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cart.Clear(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Cart.Checkout(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// Admin

type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *APIHandler) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.svc.Catalog.Admin().Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *APIHandler) AdminLogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.svc.Catalog.Admin().Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) AdminMeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Catalog.Admin().CurrentUser())
}
