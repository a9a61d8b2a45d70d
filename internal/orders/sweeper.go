package orders

import (
	"context"
	"go.uber.org/zap"
	"time"
)

type expirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// Sweeper adalah satu-satunya penulis status terminal untuk order yang kedaluwarsa.
type Sweeper struct {
	Orders   expirer
	Interval time.Duration
	Batch    int
	Log      *zap.Logger
}

// Run blok sampai ctx selesai.
func (s *Sweeper) Run(ctx context.Context) {
	s.Log.Info("expiry sweeper started", zap.Duration("interval", s.Interval), zap.Int("batch", s.Batch))
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			s.Log.Info("expiry sweeper stopped")
			return
		}
	}
}

// RunOnce menguras semua order due, batch demi batch.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := s.Orders.ExpireDue(ctx, s.Batch)
		if err != nil {
			s.Log.Error("expiry sweep failed", zap.Error(err))
			return total
		}
		total += n
		if n < s.Batch {
			break
		}
	}
	return total
}
