package services

import (
	"context"
	"log"
	"time"

	"github.com/coursplus/crm/internal/models"

	"gorm.io/gorm"
)

// Sweeper flips pending notes to overdue once an installment due date has
// elapsed. Due dates pass without any user action, so this runs on a ticker
// instead of reacting to events.
type Sweeper struct {
	DB       *gorm.DB
	Interval time.Duration
}

func NewSweeper(db *gorm.DB, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{DB: db, Interval: interval}
}

// SweepOverdue transitions every pending note having a lapsed pending
// installment to overdue and returns the count. Paid notes are never swept
// and overdue never auto-reverts; manual payment marks the whole note paid.
func (s *Sweeper) SweepOverdue() (int, error) {
	var ids []uint
	if err := s.DB.Model(&models.Installment{}).
		Distinct("settlement_note_id").
		Where("status = ? AND due_date < ?", models.InstallmentPending, time.Now()).
		Pluck("settlement_note_id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.DB.Model(&models.SettlementNote{}).
		Where("id IN ? AND status = ?", ids, models.NotePending).
		Update("status", models.NoteOverdue)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// Run sweeps on every tick until the context is cancelled. Runs outside the
// request path so it never blocks API latency.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.SweepOverdue()
			if err != nil {
				log.Printf("overdue sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("overdue sweep: %d note(s) transitioned", n)
			}
		}
	}
}
