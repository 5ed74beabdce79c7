package services

import (
	"time"

	"library-backend/internal/config"
	"library-backend/internal/models"
)

// Tariff holds the lending policy constants. Amounts are KES.
type Tariff struct {
	BorrowFee  int64
	FinePerDay int64
	LoanPeriod time.Duration
	Currency   string
}

func TariffFromConfig(cfg *config.Config) Tariff {
	return Tariff{
		BorrowFee:  cfg.Lending.BorrowFee,
		FinePerDay: cfg.Lending.FinePerDay,
		LoanPeriod: time.Duration(cfg.Lending.LoanPeriodDays) * 24 * time.Hour,
		Currency:   cfg.Lending.Currency,
	}
}

// ComputeFine returns the whole days overdue at ref and the fine owed.
// The due moment itself is not overdue: ref == dueAt yields (0, 0), and a
// partial day late counts as zero days.
func ComputeFine(dueAt, ref time.Time, finePerDay int64) (days int, fine int64) {
	if !ref.After(dueAt) {
		return 0, 0
	}
	days = int(ref.Sub(dueAt) / (24 * time.Hour))
	return days, int64(days) * finePerDay
}

// fineFor evaluates a loan's fine. Once returned the fine is frozen at
// returned_at (preferring the stored snapshot); while active it accrues
// against ref.
func fineFor(loan *models.Loan, ref time.Time, finePerDay int64) (int, int64) {
	if loan.Status == models.LoanStatusReturned {
		if loan.ReturnedAt != nil {
			days, fine := ComputeFine(loan.DueAt, *loan.ReturnedAt, finePerDay)
			if loan.Fine != nil {
				fine = *loan.Fine
			}
			return days, fine
		}
		if loan.Fine != nil {
			return 0, *loan.Fine
		}
		return 0, 0
	}
	return ComputeFine(loan.DueAt, ref, finePerDay)
}
