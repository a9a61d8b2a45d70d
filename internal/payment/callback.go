package payment

import (
	"crypto/subtle"
	"strings"
)

const (
	CallbackPaid    = "PAID"
	CallbackSettled = "SETTLED"
	CallbackExpired = "EXPIRED"
)

// Callback adalah body webhook invoice dari gateway.
type Callback struct {
	ID            string `json:"id"`
	ExternalID    string `json:"external_id"`
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
	PaidAmount    int64  `json:"paid_amount"`
}

func (c Callback) IsPaid() bool {
	s := strings.ToUpper(c.Status)
	return s == CallbackPaid || s == CallbackSettled
}

func (c Callback) IsExpired() bool { return strings.ToUpper(c.Status) == CallbackExpired }

// VerifyToken membandingkan header x-callback-token secara constant-time.
func VerifyToken(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
