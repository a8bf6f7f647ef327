package api

import (
	"time"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/service"
)

// --- Request DTOs shared by the admin and portal handlers ---

type PaymentRequest struct {
	Amount         float64 `json:"amount" binding:"required,gt=0"`
	DurationMonths int     `json:"durationMonths" binding:"required,gt=0"`
	Method         *string `json:"method"`
}

func (r PaymentRequest) input() service.PaymentInput {
	return service.PaymentInput{Amount: r.Amount, DurationMonths: r.DurationMonths, Method: r.Method}
}

type CreateClientRequest struct {
	Name           string          `json:"name" binding:"required"`
	Email          string          `json:"email" binding:"required,email"`
	Phone          *string         `json:"phone"`
	PlanType       string          `json:"planType"`
	Status         string          `json:"status" binding:"omitempty,oneof=active inactive pending"`
	ExpiresAt      *time.Time      `json:"expiresAt"`
	InitialPayment *PaymentRequest `json:"initialPayment"`
}

type UpdateClientRequest struct {
	Name        *string    `json:"name"`
	Email       *string    `json:"email" binding:"omitempty,email"`
	Phone       *string    `json:"phone"`
	PlanType    *string    `json:"planType"`
	Status      *string    `json:"status" binding:"omitempty,oneof=active inactive pending"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	ClearExpiry bool       `json:"clearExpiry"`
}

type CheckRequest struct {
	Weight float64       `json:"weight" binding:"required,gt=0"`
	Notes  string        `json:"notes"`
	Photos domain.Photos `json:"photos"`
	Date   *time.Time    `json:"date"`
}

func (r CheckRequest) input() service.CheckInput {
	return service.CheckInput{Weight: r.Weight, Notes: r.Notes, Photos: r.Photos, Date: r.Date}
}

type FeedbackRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

// AnamnesiRequest carries the answers plus the photo keys, which the
// stored document does not expose in JSON.
type AnamnesiRequest struct {
	domain.Anamnesi
	Photos domain.Photos `json:"photos"`
}

func (r AnamnesiRequest) answers() domain.Anamnesi {
	a := r.Anamnesi
	a.Photos = r.Photos
	return a
}

type UploadRequest struct {
	Folder      domain.PhotoFolder `json:"folder" binding:"required,oneof=checks anamnesi"`
	ContentType string             `json:"contentType" binding:"required"`
}

type MessageRequest struct {
	Text string `json:"text" binding:"required"`
}

type DismissRequest struct {
	ItemID string `json:"itemId" binding:"required"`
}
