package payments

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Alba-Tab/backend-boutique/internal/installment"
	"github.com/Alba-Tab/backend-boutique/internal/sales"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// memRepo fakes RepositoryPort. The mutex plays the role of the sale
// row lock: concurrent transactions serialize on it, and a failed
// transaction leaves committed state untouched.
type memRepo struct {
	mu           sync.Mutex
	sales        map[int64]sales.Sale
	installments map[int64]installment.Installment
	payments     []Payment
	nextID       int64
}

func (m *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		repo:         m,
		sales:        map[int64]sales.Sale{},
		installments: map[int64]installment.Installment{},
	}
	for id, s := range m.sales {
		tx.sales[id] = s
	}
	for id, in := range m.installments {
		tx.installments[id] = in
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.sales = tx.sales
	m.installments = tx.installments
	m.payments = append(m.payments, tx.inserted...)
	return nil
}

func (m *memRepo) ListBySale(_ context.Context, saleID int64) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payment
	for _, p := range m.payments {
		if p.SaleID == saleID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) GetInstallment(_ context.Context, id int64) (installment.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.installments[id]
	if !ok {
		return installment.Installment{}, ErrInstallmentNotFound
	}
	return in, nil
}

func (m *memRepo) paidTotal(saleID int64) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range m.payments {
		if p.SaleID == saleID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum
}

type memTx struct {
	repo         *memRepo
	sales        map[int64]sales.Sale
	installments map[int64]installment.Installment
	inserted     []Payment
}

func (t *memTx) GetSaleForUpdate(_ context.Context, saleID int64) (sales.Sale, error) {
	s, ok := t.sales[saleID]
	if !ok {
		return sales.Sale{}, ErrSaleNotFound
	}
	return s, nil
}

func (t *memTx) GetInstallmentForUpdate(_ context.Context, id int64) (installment.Installment, error) {
	in, ok := t.installments[id]
	if !ok {
		return installment.Installment{}, ErrInstallmentNotFound
	}
	return in, nil
}

func (t *memTx) ListInstallmentsForUpdate(_ context.Context, saleID int64) ([]installment.Installment, error) {
	var out []installment.Installment
	for _, in := range t.installments {
		if in.SaleID == saleID {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (t *memTx) SumPayments(_ context.Context, saleID int64) (decimal.Decimal, error) {
	sum := t.repo.paidTotal(saleID)
	for _, p := range t.inserted {
		if p.SaleID == saleID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (t *memTx) MarkInstallmentPaid(_ context.Context, id int64, paidAt time.Time) error {
	in, ok := t.installments[id]
	if !ok {
		return ErrInstallmentNotFound
	}
	in.State = installment.StatePaid
	in.PaidDate = &paidAt
	t.installments[id] = in
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, p *Payment) error {
	t.repo.nextID++
	p.ID = t.repo.nextID
	p.CreatedAt = time.Now()
	t.inserted = append(t.inserted, *p)
	return nil
}

func (t *memTx) SetSaleState(_ context.Context, saleID int64, state sales.SaleState) error {
	s := t.sales[saleID]
	s.State = state
	t.sales[saleID] = s
	return nil
}

// creditSaleRepo seeds a credit sale of 1000 + 10% over three
// installments: 366.67, 366.67, 366.66.
func creditSaleRepo() *memRepo {
	base := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	repo := &memRepo{
		sales: map[int64]sales.Sale{
			1: {
				ID: 1, SellerID: 1, PaymentType: sales.PaymentCredit, State: sales.StatePending,
				Subtotal: d("1000.00"), InterestRate: d("10"), InterestAmount: d("100.00"),
				Total: d("1100.00"), TermMonths: 3, MonthlyAmount: d("366.67"), CreatedAt: base,
			},
		},
		installments: map[int64]installment.Installment{},
	}
	for i, in := range installment.BuildSchedule(base, 3, d("366.67"), d("1100.00")) {
		in.ID = int64(i + 1)
		in.SaleID = 1
		repo.installments[in.ID] = in
	}
	return repo
}

func cashSaleRepo() *memRepo {
	return &memRepo{
		sales: map[int64]sales.Sale{
			2: {
				ID: 2, SellerID: 1, PaymentType: sales.PaymentCash, State: sales.StatePending,
				Subtotal: d("250.00"), Total: d("250.00"), CreatedAt: time.Now(),
			},
		},
		installments: map[int64]installment.Installment{},
	}
}

func newTestService(repo *memRepo) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, nil, nil)
}

func TestRegisterPaymentTargeted(t *testing.T) {
	repo := creditSaleRepo()
	svc := newTestService(repo)

	instID := int64(1)
	p, err := svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, InstallmentID: &instID, Amount: d("366.67"), Method: MethodTransfer,
	})
	require.NoError(t, err)
	require.NotEmpty(t, p.Reference)

	require.Equal(t, installment.StatePaid, repo.installments[1].State)
	require.NotNil(t, repo.installments[1].PaidDate)
	require.Equal(t, installment.StatePending, repo.installments[2].State)
	require.Equal(t, sales.StatePartial, repo.sales[1].State)
}

func TestRegisterPaymentTargetedPartialRejected(t *testing.T) {
	repo := creditSaleRepo()
	svc := newTestService(repo)

	instID := int64(1)
	_, err := svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, InstallmentID: &instID, Amount: d("100.00"), Method: MethodCash,
	})

	var partial *PartialInstallmentError
	require.ErrorAs(t, err, &partial)
	require.True(t, partial.InstallmentAmount.Equal(d("366.67")))
	require.Empty(t, repo.payments)
	require.Equal(t, installment.StatePending, repo.installments[1].State)
	require.Equal(t, sales.StatePending, repo.sales[1].State)
}

func TestRegisterPaymentTargetedValidation(t *testing.T) {
	repo := creditSaleRepo()
	// An installment of a different sale.
	repo.installments[99] = installment.Installment{ID: 99, SaleID: 42, Seq: 1, Amount: d("10.00"), State: installment.StatePending}
	svc := newTestService(repo)

	foreign := int64(99)
	_, err := svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, InstallmentID: &foreign, Amount: d("366.67"), Method: MethodCash,
	})
	require.ErrorIs(t, err, ErrInstallmentMismatch)

	instID := int64(1)
	_, err = svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, InstallmentID: &instID, Amount: d("366.67"), Method: MethodCash,
	})
	require.NoError(t, err)
	_, err = svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, InstallmentID: &instID, Amount: d("366.67"), Method: MethodCash,
	})
	require.ErrorIs(t, err, ErrInstallmentAlreadyPaid)
}

func TestRegisterPaymentWaterfall(t *testing.T) {
	repo := creditSaleRepo()
	svc := newTestService(repo)

	// 800 covers installments 1 (366.67) and 2 (cumulative 733.34) but
	// not 3 (cumulative 1100.00).
	_, err := svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, Amount: d("800.00"), Method: MethodTransfer,
	})
	require.NoError(t, err)
	require.Equal(t, installment.StatePaid, repo.installments[1].State)
	require.Equal(t, installment.StatePaid, repo.installments[2].State)
	require.Equal(t, installment.StatePending, repo.installments[3].State)
	require.Equal(t, sales.StatePartial, repo.sales[1].State)

	// The remaining 300 completes the schedule and the sale.
	_, err = svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, Amount: d("300.00"), Method: MethodTransfer,
	})
	require.NoError(t, err)
	require.Equal(t, installment.StatePaid, repo.installments[3].State)
	require.Equal(t, sales.StatePaid, repo.sales[1].State)
	require.True(t, repo.paidTotal(1).Equal(d("1100.00")))
}

func TestRegisterPaymentWaterfallCountsPaidInstallments(t *testing.T) {
	repo := creditSaleRepo()
	svc := newTestService(repo)

	instID := int64(1)
	_, err := svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, InstallmentID: &instID, Amount: d("366.67"), Method: MethodCash,
	})
	require.NoError(t, err)

	// 366.67 already applied; 733.33 more reaches the 1100 total, so
	// the two remaining installments are both covered.
	_, err = svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, Amount: d("733.33"), Method: MethodCash,
	})
	require.NoError(t, err)
	require.Equal(t, installment.StatePaid, repo.installments[2].State)
	require.Equal(t, installment.StatePaid, repo.installments[3].State)
	require.Equal(t, sales.StatePaid, repo.sales[1].State)
}

func TestRegisterPaymentOverpayment(t *testing.T) {
	repo := creditSaleRepo()
	svc := newTestService(repo)

	_, err := svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, Amount: d("1100.01"), Method: MethodCash,
	})
	var over *OverpaymentError
	require.ErrorAs(t, err, &over)
	require.True(t, over.AmountDue.Equal(d("1100.00")))
	require.True(t, over.AlreadyPaid.Equal(decimal.Zero))
	require.True(t, over.Attempted.Equal(d("1100.01")))
	require.Empty(t, repo.payments)
	require.Equal(t, sales.StatePending, repo.sales[1].State)

	_, err = svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, Amount: d("1000.00"), Method: MethodCash,
	})
	require.NoError(t, err)
	_, err = svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, Amount: d("100.01"), Method: MethodCash,
	})
	require.ErrorAs(t, err, &over)
	require.True(t, repo.paidTotal(1).Equal(d("1000.00")))
}

func TestRegisterPaymentInvalidInput(t *testing.T) {
	svc := newTestService(creditSaleRepo())

	_, err := svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, Amount: decimal.Zero, Method: MethodCash,
	})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, Amount: d("-5.00"), Method: MethodCash,
	})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 1, Amount: d("10.00"), Method: MethodManual,
	})
	require.ErrorIs(t, err, ErrInvalidMethod)

	_, err = svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 404, Amount: d("10.00"), Method: MethodCash,
	})
	require.ErrorIs(t, err, ErrSaleNotFound)
}

func TestConcurrentPaymentRace(t *testing.T) {
	repo := creditSaleRepo()
	svc := newTestService(repo)

	// Each attempt is amountDue/2 + 1 cent short of conflict-free:
	// both together exceed 1100, so exactly one must lose.
	amount := d("551.00")
	results := make(chan error, 2)
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
				SaleID: 1, Amount: amount, Method: MethodTransfer,
			})
			results <- err
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(results)

	var succeeded, overpaid int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var over *OverpaymentError
		require.ErrorAs(t, err, &over)
		overpaid++
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, overpaid)
	require.True(t, repo.paidTotal(1).Equal(amount))
}

func TestPayFull(t *testing.T) {
	repo := cashSaleRepo()
	svc := newTestService(repo)

	p, err := svc.PayFull(context.Background(), 2, MethodCash, "till-17")
	require.NoError(t, err)
	require.True(t, p.Amount.Equal(d("250.00")))
	require.Equal(t, sales.StatePaid, repo.sales[2].State)

	_, err = svc.PayFull(context.Background(), 2, MethodCash, "")
	require.ErrorIs(t, err, ErrSaleAlreadyPaid)
}

func TestPayFullRemainingBalance(t *testing.T) {
	repo := cashSaleRepo()
	svc := newTestService(repo)

	_, err := svc.RegisterPayment(context.Background(), RegisterPaymentRequest{
		SaleID: 2, Amount: d("100.00"), Method: MethodCash,
	})
	require.NoError(t, err)
	require.Equal(t, sales.StatePartial, repo.sales[2].State)

	p, err := svc.PayFull(context.Background(), 2, MethodCash, "")
	require.NoError(t, err)
	require.True(t, p.Amount.Equal(d("150.00")))
	require.True(t, repo.paidTotal(2).Equal(d("250.00")))
	require.Equal(t, sales.StatePaid, repo.sales[2].State)
}

func TestPayFullCashOnly(t *testing.T) {
	svc := newTestService(creditSaleRepo())
	_, err := svc.PayFull(context.Background(), 1, MethodCash, "")
	require.ErrorIs(t, err, ErrCashOnly)
}

func TestMarkInstallmentPaid(t *testing.T) {
	repo := creditSaleRepo()
	svc := newTestService(repo)

	paidDate := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	inst, err := svc.MarkInstallmentPaid(context.Background(), 1, 7, &paidDate)
	require.NoError(t, err)
	require.Equal(t, installment.StatePaid, inst.State)
	require.Equal(t, paidDate, *inst.PaidDate)

	// A manual ledger row keeps totals reconcilable with payments.
	require.Len(t, repo.payments, 1)
	require.Equal(t, MethodManual, repo.payments[0].Method)
	require.True(t, repo.payments[0].Amount.Equal(d("366.67")))
	require.Equal(t, sales.StatePartial, repo.sales[1].State)

	_, err = svc.MarkInstallmentPaid(context.Background(), 1, 7, nil)
	require.ErrorIs(t, err, ErrInstallmentAlreadyPaid)
}

func TestMarkInstallmentPaidCompletesSale(t *testing.T) {
	repo := creditSaleRepo()
	svc := newTestService(repo)

	for id := int64(1); id <= 3; id++ {
		_, err := svc.MarkInstallmentPaid(context.Background(), id, 7, nil)
		require.NoError(t, err)
	}
	require.Equal(t, sales.StatePaid, repo.sales[1].State)
	require.True(t, repo.paidTotal(1).Equal(d("1100.00")))
}
