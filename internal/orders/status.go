package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	PaymentExpired PaymentStatus = "expired"
)

// Status yang hanya ada di read path (lihat Project).
const (
	DisplayActive  = "active"
	DisplayExpired = "expired"
)

type OrderType string

const (
	TypePremium OrderType = "premium"
	TypeSMM     OrderType = "smm"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusPaid: true, StatusFailed: true, StatusCancelled: true},
	StatusPaid:       {StatusProcessing: true, StatusCompleted: true},
	StatusProcessing: {StatusCompleted: true, StatusFailed: true},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func ValidStatus(s string) bool {
	_, ok := validNext[Status(s)]
	return ok
}
