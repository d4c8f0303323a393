package installment

import (
	"time"

	"github.com/shopspring/decimal"
)

// State of a single installment.
type State string

const (
	StatePending State = "pending"
	StatePaid    State = "paid"
	StateOverdue State = "overdue"
)

// Installment is one scheduled slice of a credit sale. Seq is 1-based
// and unique per sale.
type Installment struct {
	ID       int64           `json:"id"`
	SaleID   int64           `json:"sale_id"`
	Seq      int             `json:"seq"`
	DueDate  time.Time       `json:"due_date"`
	Amount   decimal.Decimal `json:"amount"`
	State    State           `json:"state"`
	PaidDate *time.Time      `json:"paid_date,omitempty"`
}

// Payable reports whether the installment can still receive money.
func (i Installment) Payable() bool {
	return i.State == StatePending || i.State == StateOverdue
}

// cadence between consecutive due dates.
const cadenceDays = 30

// BuildSchedule produces term installments starting 30 days after base,
// 30 days apart. Every installment carries monthly except the last,
// which absorbs the rounding remainder so the amounts sum to total
// exactly.
func BuildSchedule(base time.Time, term int, monthly, total decimal.Decimal) []Installment {
	out := make([]Installment, 0, term)
	due := base
	for seq := 1; seq <= term; seq++ {
		due = due.AddDate(0, 0, cadenceDays)
		amount := monthly
		if seq == term {
			amount = total.Sub(monthly.Mul(decimal.NewFromInt(int64(term - 1))))
		}
		out = append(out, Installment{
			Seq:     seq,
			DueDate: due,
			Amount:  amount,
			State:   StatePending,
		})
	}
	return out
}
