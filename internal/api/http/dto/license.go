package dto

import "time"

type CreateLicenseRequest struct {
	ProductID    string   `json:"product_id" binding:"required"`
	CustomerID   string   `json:"customer_id" binding:"required"`
	HardwareID   *string  `json:"hardware_id"`
	Features     []string `json:"features" binding:"required"`
	DurationDays *int     `json:"duration_days" binding:"required"`
}

type LicenseResponse struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	ProductID  string    `json:"product_id"`
	CustomerID string    `json:"customer_id"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	HardwareID *string   `json:"hardware_id"`
	Features   []string  `json:"features"`
	Active     bool      `json:"active"`
	Status     string    `json:"status,omitempty"`
}

type ListLicensesResponse struct {
	Licenses []LicenseResponse `json:"licenses"`
	Count    int               `json:"count"`
}

type ValidateRequest struct {
	LicenseKey string  `json:"license_key"`
	HardwareID *string `json:"hardware_id"`
}

// ValidateBinding is the server-side shape of ValidateRequest. The pointer
// separates an absent license_key from an empty one.
type ValidateBinding struct {
	LicenseKey *string `json:"license_key" binding:"required"`
	HardwareID *string `json:"hardware_id"`
}

type ValidateResponse struct {
	Valid    bool     `json:"valid"`
	Token    string   `json:"token"`
	Features []string `json:"features"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
