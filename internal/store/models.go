package store

import "time"

// User is the profile cached client-side next to the tokens.
type User struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Phone    string `json:"phone,omitempty"`
}

type ChatSession struct {
	SessionID   string    `json:"session_id"`
	DeviceID    string    `json:"device_id,omitempty"`
	Topic       string    `json:"topic"`
	CreatedAt   time.Time `json:"created_at"`
	LastMessage string    `json:"last_message,omitempty"`
}

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusConfirmed MessageStatus = "confirmed"
	StatusFailed    MessageStatus = "failed"
)

type Message struct {
	ID     string        `json:"id"`
	Text   string        `json:"text"`
	Sender Sender        `json:"sender"`
	Status MessageStatus `json:"status"`
}

type Appointment struct {
	ID         int64  `json:"id"`
	Doctor     string `json:"doctor,omitempty"`
	DoctorName string `json:"doctor_name,omitempty"`
	Patient    string `json:"patient,omitempty"`
	Date       string `json:"date"` // YYYY-MM-DD
	Time       string `json:"time"` // HH:MM[:SS]
	Reason     string `json:"reason,omitempty"`
	Status     string `json:"status,omitempty"`
}

type BookAppointmentRequest struct {
	Doctor string `json:"doctor"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Reason string `json:"reason,omitempty"`
}

type Availability struct {
	ID        int64  `json:"id,omitempty"`
	Doctor    string `json:"doctor,omitempty"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type Doctor struct {
	ID             int64  `json:"id"`
	FullName       string `json:"full_name"`
	Email          string `json:"email,omitempty"`
	Specialization string `json:"specialization,omitempty"`
}

type Report struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	FileURL   string    `json:"file,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ElimuArticle is one health-education entry.
type ElimuArticle struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}

type ProfileUpdate struct {
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
}

type Medicine struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock,omitempty"`
	Image       string  `json:"image,omitempty"`
}

type Pharmacy struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Phone     string  `json:"phone,omitempty"`
}

type CartItem struct {
	MedicineID int64   `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
}

type Order struct {
	ID     int64      `json:"id,omitempty"`
	Items  []CartItem `json:"items"`
	Total  float64    `json:"total"`
	Status string     `json:"status,omitempty"`
}
