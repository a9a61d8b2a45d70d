package orders

import (
	"math"
	"time"
)

type Projection struct {
	DisplayStatus      string
	MinutesUntilExpiry int
	CanCancel          bool
}

// Project menghitung status tampilan dari field tersimpan + waktu sekarang.
// Tidak pernah menulis apa pun; order pending yang lewat expires_at tampil "expired"
// walaupun sweeper belum jalan.
func Project(o Order, now time.Time) Projection {
	p := Projection{
		DisplayStatus:      string(o.Status),
		MinutesUntilExpiry: int(math.Floor(o.ExpiresAt.Sub(now).Minutes())),
	}
	if o.Status == StatusPending {
		if !now.Before(o.ExpiresAt) {
			p.DisplayStatus = DisplayExpired
		} else {
			p.DisplayStatus = DisplayActive
		}
	}
	p.CanCancel = o.Status == StatusPending &&
		p.DisplayStatus != DisplayExpired &&
		p.MinutesUntilExpiry > 0 &&
		o.AutoCancelledAt == nil
	return p
}

func View(o Order, now time.Time) OrderView {
	return OrderView{Order: o, Projection: Project(o, now)}
}
