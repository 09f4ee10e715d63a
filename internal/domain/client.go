package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// mpesaPhonePattern matches an M-Pesa number in international form, e.g. 254712345678.
var mpesaPhonePattern = regexp.MustCompile(`^2547\d{8}$`)

// ValidMpesaPhone reports whether phone is in the normalized M-Pesa format.
func ValidMpesaPhone(phone string) bool {
	return mpesaPhonePattern.MatchString(phone)
}

// Client is a payer known to one owning merchant account. The phone number is
// unique per owner and is the destination of STK push prompts.
type Client struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
	Email       *string   `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
