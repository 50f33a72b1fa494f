package ledger

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

func label(s string) *string { return &s }

var (
	base      = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	domestic  = label("12kg (Domestic cylinder)")
	ali       = "7 · Ali"
	dec       = decimal.RequireFromString
	createdAt = func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }
)

func delivered(id string, date *time.Time, qty int, price, amount string, min int) Transaction {
	return Transaction{
		ID:            id,
		CylinderType:  CylinderDelivered,
		CustomerName:  ali,
		CylinderLabel: domestic,
		UnitPrice:     dec(price),
		Quantity:      qty,
		Amount:        dec(amount),
		DeliveryDate:  date,
		CreatedAt:     createdAt(min),
	}
}

func received(id string, date *time.Time, qty int, price, paid string, pt PaymentType, by string, min int) Transaction {
	return Transaction{
		ID:                id,
		CylinderType:      CylinderReceived,
		CustomerName:      ali,
		CylinderLabel:     domestic,
		UnitPrice:         dec(price),
		Quantity:          qty,
		PaymentType:       pt,
		PaymentAmount:     dec(paid),
		PaymentReceivedBy: by,
		DeliveryDate:      date,
		CreatedAt:         createdAt(min),
	}
}

func TestAggregate_SameDaySamePriceMerges(t *testing.T) {
	txs := []Transaction{
		delivered("1", day("2024-05-01"), 3, "500", "1500", 0),
		delivered("2", day("2024-05-01"), 2, "500", "1000", 5),
	}

	agg := Aggregate(txs)
	require.Len(t, agg.Delivered, 1)

	row := agg.Delivered[KeyOf(txs[0])]
	require.NotNil(t, row)
	assert.Equal(t, 5, row.Quantity)
	assert.True(t, row.Amount.Equal(dec("2500")), "amount %s", row.Amount)
	assert.True(t, row.UnitPrice.Equal(dec("500")))
	assert.Equal(t, []string{"1", "2"}, row.TransactionIDs)
	assert.Equal(t, "1", row.ID)
}

func TestAggregate_PriceScaleDoesNotSplitBucket(t *testing.T) {
	a := delivered("1", day("2024-05-01"), 1, "500", "500", 0)
	b := delivered("2", day("2024-05-01"), 1, "500.00", "500", 1)
	assert.Equal(t, KeyOf(a), KeyOf(b))
}

func TestAggregate_UndatedShareNoDateBucket(t *testing.T) {
	txs := []Transaction{
		delivered("1", nil, 1, "500", "500", 0),
		delivered("2", nil, 4, "500", "2000", 1),
	}
	agg := Aggregate(txs)
	require.Len(t, agg.Delivered, 1)
	for k, row := range agg.Delivered {
		assert.Equal(t, NoDateKey, k.DateKey)
		assert.Equal(t, 5, row.Quantity)
	}
}

func TestAggregate_ReceiptPaymentResolution(t *testing.T) {
	d := day("2024-05-01")
	txs := []Transaction{
		received("1", d, 1, "500", "100", PaymentCredit, "ahmed", 0),
		received("2", d, 2, "500", "200", PaymentCash, "bilal", 10),
		received("3", d, 1, "500", "50", PaymentNone, "", 20),
		received("4", d, 0, "500", "25", PaymentCash, "sana", 30),
	}

	agg := Aggregate(txs)
	require.Len(t, agg.Received, 1)
	r := agg.Received[KeyOf(txs[0])]
	require.NotNil(t, r)
	assert.Equal(t, PaymentCash, r.PaymentType)
	assert.Equal(t, "sana", r.PaymentReceivedBy)
	assert.Equal(t, 4, r.Quantity)
	assert.Equal(t, 4, r.ReceivedCylinders)
	assert.True(t, r.PaymentAmount.Equal(dec("375")))
}

func TestAggregate_ReceiptWithoutCashKeepsFirstType(t *testing.T) {
	d := day("2024-05-01")
	txs := []Transaction{
		received("1", d, 1, "500", "0", PaymentNone, "", 0),
		received("2", d, 1, "500", "100", PaymentCredit, "ahmed", 5),
	}
	r := Aggregate(txs).Received[KeyOf(txs[0])]
	require.NotNil(t, r)
	assert.Equal(t, PaymentCredit, r.PaymentType)
	assert.Equal(t, "", r.PaymentReceivedBy)
}

func TestAggregate_EmptyCylinderReceivedOverridesQuantity(t *testing.T) {
	n := 3
	tx := received("1", day("2024-05-01"), 5, "500", "0", PaymentNone, "", 0)
	tx.EmptyCylinderReceived = &n
	r := Aggregate([]Transaction{tx}).Received[KeyOf(tx)]
	require.NotNil(t, r)
	assert.Equal(t, 5, r.Quantity)
	assert.Equal(t, 3, r.ReceivedCylinders)
}

func randomTransactions(rng *rand.Rand, n int) []Transaction {
	days := []string{"2024-04-30", "2024-05-01", "2024-05-02", "2024-06-11"}
	prices := []string{"450", "500", "2300"}
	labels := []*string{domestic, label("45kg (Commercial cylinder)"), nil}
	customers := []string{ali, "9 · Sara"}

	txs := make([]Transaction, 0, n)
	for i := 0; i < n; i++ {
		var date *time.Time
		if rng.Intn(8) > 0 {
			date = day(days[rng.Intn(len(days))])
		}
		price := prices[rng.Intn(len(prices))]
		qty := rng.Intn(6)
		tx := Transaction{
			ID:            fmt.Sprintf("%04d", i),
			CustomerName:  customers[rng.Intn(len(customers))],
			CylinderLabel: labels[rng.Intn(len(labels))],
			UnitPrice:     dec(price),
			Quantity:      qty,
			DeliveryDate:  date,
			CreatedAt:     createdAt(rng.Intn(500)),
		}
		if rng.Intn(2) == 0 {
			tx.CylinderType = CylinderDelivered
			tx.Amount = dec(price).Mul(decimal.NewFromInt(int64(qty)))
		} else {
			tx.CylinderType = CylinderReceived
			tx.PaymentAmount = decimal.NewFromInt(int64(rng.Intn(1000)))
			tx.PaymentType = []PaymentType{PaymentNone, PaymentCash, PaymentCredit}[rng.Intn(3)]
			tx.PaymentReceivedBy = fmt.Sprintf("clerk-%d", rng.Intn(3))
		}
		txs = append(txs, tx)
	}
	return txs
}

func TestAggregate_Conservation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		txs := randomTransactions(rng, 60)
		agg := Aggregate(txs)

		wantQty, wantRecv := 0, 0
		wantAmount, wantPaid := decimal.Zero, decimal.Zero
		deliveredKeys := map[AggregateKey]struct{}{}
		receivedKeys := map[AggregateKey]struct{}{}
		for _, tx := range txs {
			if tx.CylinderType == CylinderDelivered {
				wantQty += tx.Quantity
				wantAmount = wantAmount.Add(tx.Amount)
				deliveredKeys[KeyOf(tx)] = struct{}{}
			} else {
				wantRecv += tx.ReceivedCount()
				wantPaid = wantPaid.Add(tx.PaymentAmount)
				receivedKeys[KeyOf(tx)] = struct{}{}
			}
		}

		gotQty, gotRecv := 0, 0
		gotAmount, gotPaid := decimal.Zero, decimal.Zero
		for _, d := range agg.Delivered {
			gotQty += d.Quantity
			gotAmount = gotAmount.Add(d.Amount)
		}
		for _, r := range agg.Received {
			gotRecv += r.ReceivedCylinders
			gotPaid = gotPaid.Add(r.PaymentAmount)
		}

		assert.Len(t, agg.Delivered, len(deliveredKeys))
		assert.Len(t, agg.Received, len(receivedKeys))
		assert.Equal(t, wantQty, gotQty)
		assert.Equal(t, wantRecv, gotRecv)
		assert.True(t, wantAmount.Equal(gotAmount), "amount %s != %s", wantAmount, gotAmount)
		assert.True(t, wantPaid.Equal(gotPaid), "paid %s != %s", wantPaid, gotPaid)
	}
}

type bucketView struct {
	Quantity     int
	Amount       string
	Received     int
	Paid         string
	PaymentType  PaymentType
	ReceivedBy   string
	SeedID       string
	Transactions int
}

func viewOf(agg Aggregates) map[string]bucketView {
	out := map[string]bucketView{}
	for k, d := range agg.Delivered {
		out["D"+k.String()] = bucketView{
			Quantity:     d.Quantity,
			Amount:       d.Amount.String(),
			SeedID:       d.ID,
			Transactions: len(d.TransactionIDs),
		}
	}
	for k, r := range agg.Received {
		out["R"+k.String()] = bucketView{
			Quantity:     r.Quantity,
			Received:     r.ReceivedCylinders,
			Paid:         r.PaymentAmount.String(),
			PaymentType:  r.PaymentType,
			ReceivedBy:   r.PaymentReceivedBy,
			Transactions: len(r.TransactionIDs),
		}
	}
	return out
}

func TestAggregate_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	txs := randomTransactions(rng, 80)
	want := viewOf(Aggregate(txs))

	for i := 0; i < 10; i++ {
		shuffled := make([]Transaction, len(txs))
		copy(shuffled, txs)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		require.Equal(t, want, viewOf(Aggregate(shuffled)))
	}
}

func TestReconcile_RunningBalanceScenario(t *testing.T) {
	txs := []Transaction{
		delivered("3", day("2024-05-03"), 1, "100", "100", 0),
		delivered("2", day("2024-05-02"), 1, "200", "200", 0),
		delivered("1", day("2024-05-01"), 1, "300", "300", 0),
	}

	res, err := Reconcile(txs, Period{Month: All, Year: All})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	var cumulative, remaining []string
	for _, r := range res.Rows {
		c, ok := r.DisplayCumulative()
		require.True(t, ok)
		cumulative = append(cumulative, c.String())
		remaining = append(remaining, r.RemainingLabel())
	}
	assert.Equal(t, []string{"100", "300", "600"}, cumulative)
	assert.Equal(t, []string{NillLabel, "100.00", "300.00"}, remaining)

	_, ok := res.Rows[0].DisplayRemaining()
	assert.False(t, ok)
	prev, ok := res.Rows[2].DisplayRemaining()
	require.True(t, ok)
	assert.True(t, prev.Equal(dec("300")))
}

func TestReconcile_BalanceInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for round := 0; round < 20; round++ {
		res, err := Reconcile(randomTransactions(rng, 50), Period{Month: All, Year: All})
		require.NoError(t, err)

		sum := decimal.Zero
		for i, r := range res.Rows {
			sum = sum.Add(r.Delivery.Amount)
			assert.True(t, r.Cumulative.Equal(sum), "row %d", i)
			if i == 0 {
				assert.Nil(t, r.Previous)
				continue
			}
			assert.True(t, r.Cumulative.GreaterThanOrEqual(res.Rows[i-1].Cumulative), "row %d not monotonic", i)
			require.NotNil(t, r.Previous)
			assert.True(t, r.Previous.Equal(res.Rows[i-1].Cumulative), "row %d remaining shift", i)
		}
		if n := len(res.Rows); n > 0 {
			assert.True(t, res.Rows[n-1].Cumulative.Equal(sum))
		}
	}
}

func TestReconcile_ZeroAmountRowsSuppressDisplay(t *testing.T) {
	txs := []Transaction{
		delivered("2", day("2024-05-02"), 0, "500", "0", 0),
		delivered("1", day("2024-05-01"), 2, "500", "1000", 0),
	}
	res, err := Reconcile(txs, Period{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	_, ok := res.Rows[0].DisplayCumulative()
	assert.False(t, ok)
	assert.Equal(t, "", res.Rows[0].RemainingLabel())

	c, ok := res.Rows[1].DisplayCumulative()
	require.True(t, ok)
	assert.True(t, c.Equal(dec("1000")))
	r, ok := res.Rows[1].DisplayRemaining()
	require.True(t, ok)
	assert.True(t, r.Equal(decimal.Zero))
}

func TestReconcile_PriceIsPartOfMatchKey(t *testing.T) {
	d := day("2024-05-01")
	txs := []Transaction{
		delivered("1", d, 4, "500", "2000", 0),
		received("2", d, 4, "450", "1800", PaymentCash, "bilal", 5),
	}
	res, err := Reconcile(txs, Period{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Nil(t, res.Rows[0].Receipt)
	require.Len(t, res.Receipts, 1)

	left, ok := res.Rows[0].RemainingCylinders()
	require.True(t, ok)
	assert.Equal(t, 4, left)

	// The unmatched receipt still counts in the raw summary.
	assert.Equal(t, 4, res.Summary.TotalReceivedQuantity)
	assert.True(t, res.Summary.TotalPaymentAmount.Equal(dec("1800")))
}

func TestReconcile_MatchedReceiptAndRemainingCylinders(t *testing.T) {
	d := day("2024-05-01")
	txs := []Transaction{
		delivered("1", d, 5, "500", "2500", 0),
		received("2", d, 3, "500", "1000", PaymentCash, "bilal", 5),
	}
	res, err := Reconcile(txs, Period{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.NotNil(t, res.Rows[0].Receipt)

	left, ok := res.Rows[0].RemainingCylinders()
	require.True(t, ok)
	assert.Equal(t, 2, left)
}

func TestReconcile_OverReceiptIsSuppressed(t *testing.T) {
	d := day("2024-05-01")
	txs := []Transaction{
		delivered("1", d, 2, "500", "1000", 0),
		received("2", d, 3, "500", "0", PaymentNone, "", 5),
	}
	res, err := Reconcile(txs, Period{})
	require.NoError(t, err)
	_, ok := res.Rows[0].RemainingCylinders()
	assert.False(t, ok)
}

func TestReconcile_SummaryUsesRawTransactions(t *testing.T) {
	txs := []Transaction{
		delivered("1", day("2024-05-01"), 3, "500", "1500", 0),
		delivered("2", day("2024-05-01"), 2, "500", "1000", 1),
		delivered("3", day("2024-06-01"), 1, "500", "500", 2),
		received("4", day("2024-05-09"), 2, "500", "700", PaymentCredit, "ahmed", 3),
	}
	res, err := Reconcile(txs, Period{Month: "05", Year: All})
	require.NoError(t, err)

	assert.Len(t, res.Rows, 1)
	assert.Equal(t, 2, res.Summary.DeliveredTransactions)
	assert.Equal(t, 1, res.Summary.ReceivedTransactions)
	assert.Equal(t, 5, res.Summary.TotalQuantity)
	assert.Equal(t, 2, res.Summary.TotalReceivedQuantity)
	assert.True(t, res.Summary.TotalAmount.Equal(dec("2500")))
}

func TestReconcile_NegativeQuantitiesPropagate(t *testing.T) {
	txs := []Transaction{
		delivered("1", day("2024-05-01"), -2, "500", "-1000", 0),
		delivered("2", day("2024-05-01"), 5, "500", "2500", 1),
	}
	res, err := Reconcile(txs, Period{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows[0].Delivery.Quantity)
	assert.Equal(t, 3, res.Summary.TotalQuantity)
	assert.True(t, res.Summary.TotalAmount.Equal(dec("1500")))
}

func TestReconcile_RejectsUnknownCylinderType(t *testing.T) {
	tx := delivered("1", day("2024-05-01"), 1, "500", "500", 0)
	tx.CylinderType = "RETURNED"
	_, err := Reconcile([]Transaction{tx}, Period{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCylinderType))
}

func TestReconcile_EmptyInput(t *testing.T) {
	res, err := Reconcile(nil, Period{Month: "03", Year: "2024"})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Receipts)
	assert.Equal(t, 0, res.Summary.TotalQuantity)
	assert.True(t, res.Summary.TotalAmount.IsZero())
}

func TestOrder_NewestFirstWithTieBreaks(t *testing.T) {
	txs := []Transaction{
		delivered("a", day("2024-05-01"), 1, "100", "100", 0),
		delivered("b", day("2024-05-02"), 1, "100", "100", 0),
		delivered("c", nil, 1, "100", "100", 50),
		delivered("d", day("2024-05-02"), 1, "200", "200", 10),
		delivered("e", day("2024-05-02"), 1, "300", "300", 10),
	}
	agg := Aggregate(txs)
	buckets := make([]*DeliveryAggregate, 0, len(agg.Delivered))
	for _, d := range agg.Delivered {
		buckets = append(buckets, d)
	}

	first := Order(buckets)
	ids := make([]string, len(first))
	for i, r := range first {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"e", "d", "b", "a", "c"}, ids)

	for i := 0; i < 5; i++ {
		again := Order(buckets)
		for j := range again {
			assert.Equal(t, first[j].ID, again[j].ID)
		}
	}
}

func TestPaginate_KeepsBalancesFromFullSet(t *testing.T) {
	txs := make([]Transaction, 0, 7)
	for i := 0; i < 7; i++ {
		d := base.AddDate(0, 0, -i)
		txs = append(txs, delivered(fmt.Sprintf("%d", i), &d, 1, "100", "100", 0))
	}
	res, err := Reconcile(txs, Period{})
	require.NoError(t, err)

	page := Paginate(res.Rows, 2, 3)
	require.Len(t, page.Rows, 3)
	assert.Equal(t, 7, page.TotalRows)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.Rows[0].Cumulative.Equal(dec("400")))
	require.NotNil(t, page.Rows[0].Previous)
	assert.True(t, page.Rows[0].Previous.Equal(dec("300")))

	last := Paginate(res.Rows, 3, 3)
	require.Len(t, last.Rows, 1)
	assert.True(t, last.Rows[0].Cumulative.Equal(dec("700")))

	assert.Empty(t, Paginate(res.Rows, 9, 3).Rows)
	assert.Equal(t, DefaultPageSize, Paginate(res.Rows, 0, 0).PageSize)
}

func TestPaginate_HugeInputsDoNotOverflow(t *testing.T) {
	txs := make([]Transaction, 0, 3)
	for i := 0; i < 3; i++ {
		d := base.AddDate(0, 0, -i)
		txs = append(txs, delivered(fmt.Sprintf("%d", i), &d, 1, "100", "100", 0))
	}
	res, err := Reconcile(txs, Period{})
	require.NoError(t, err)

	var far Page[Row]
	require.NotPanics(t, func() { far = Paginate(res.Rows, math.MaxInt/25+2, 25) })
	assert.Empty(t, far.Rows)
	assert.Equal(t, 3, far.TotalRows)
	assert.Equal(t, 1, far.TotalPages)

	require.NotPanics(t, func() { far = Paginate(res.Rows, math.MaxInt, math.MaxInt) })
	assert.Empty(t, far.Rows)

	var whole Page[Row]
	require.NotPanics(t, func() { whole = Paginate(res.Rows, 1, math.MaxInt) })
	assert.Len(t, whole.Rows, 3)
	assert.Equal(t, 1, whole.TotalPages)
}

func TestOrder_ZeroDateSortsWithUndated(t *testing.T) {
	var zero time.Time
	txs := []Transaction{
		delivered("a", day("2024-05-01"), 1, "100", "100", 0),
		delivered("z", &zero, 1, "200", "200", 5),
		delivered("n", nil, 1, "300", "300", 1),
	}
	agg := Aggregate(txs)
	buckets := make([]*DeliveryAggregate, 0, len(agg.Delivered))
	for _, d := range agg.Delivered {
		buckets = append(buckets, d)
		if d.ID == "z" {
			assert.Nil(t, d.DeliveryDate)
			assert.Equal(t, NoDateKey, d.Key.DateKey)
		}
	}

	ordered := Order(buckets)
	ids := make([]string, len(ordered))
	for i, r := range ordered {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"a", "z", "n"}, ids)

	assert.False(t, Period{Month: "01", Year: All}.Contains(&zero))
}

func TestFilter_MonthAndYear(t *testing.T) {
	txs := []Transaction{
		delivered("1", day("2024-05-01"), 1, "100", "100", 0),
		delivered("2", day("2023-05-14"), 1, "100", "100", 0),
		delivered("3", day("2024-06-01"), 1, "100", "100", 0),
		delivered("4", nil, 1, "100", "100", 0),
	}

	tests := []struct {
		name   string
		period Period
		want   []string
	}{
		{"all", Period{Month: All, Year: All}, []string{"1", "2", "3", "4"}},
		{"empty means all", Period{}, []string{"1", "2", "3", "4"}},
		{"month", Period{Month: "05", Year: All}, []string{"1", "2"}},
		{"month without padding", Period{Month: "5"}, []string{"1", "2"}},
		{"month and year", Period{Month: "05", Year: "2024"}, []string{"1"}},
		{"year", Period{Month: All, Year: "2024"}, []string{"1", "3"}},
		{"out of range month ignored", Period{Month: "13", Year: All}, []string{"1", "2", "3", "4"}},
		{"garbage year ignored", Period{Month: All, Year: "twenty"}, []string{"1", "2", "3", "4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(txs, tt.period)
			ids := make([]string, 0, len(got))
			for _, tx := range got {
				ids = append(ids, tx.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	assert.Empty(t, Filter(nil, Period{Month: "01"}))
}

func TestAggregateKey_StringEscapesSeparator(t *testing.T) {
	a := AggregateKey{DateKey: "2024-05-01", CustomerName: "a|b", CylinderLabel: "c", UnitPrice: "1"}
	b := AggregateKey{DateKey: "2024-05-01", CustomerName: "a", CylinderLabel: "b|c", UnitPrice: "1"}
	assert.NotEqual(t, a.String(), b.String())
	assert.Equal(t, `2024-05-01|a\|b|c|1`, a.String())
}

func TestDateGroups(t *testing.T) {
	txs := []Transaction{
		delivered("1", day("2024-05-02"), 1, "100", "100", 0),
		delivered("2", day("2024-05-02"), 1, "200", "200", 1),
		delivered("3", day("2024-05-01"), 1, "100", "100", 0),
		delivered("4", day("2024-04-28"), 1, "100", "100", 0),
	}
	res, err := Reconcile(txs, Period{})
	require.NoError(t, err)

	groups := DateGroups(res.Rows, 2)
	require.Len(t, groups, 4)
	assert.Equal(t, []int{0, 0, 1, 2}, []int{groups[0].Index, groups[1].Index, groups[2].Index, groups[3].Index})
	assert.Equal(t, []int{0, 0, 1, 0}, []int{groups[0].Slot, groups[1].Slot, groups[2].Slot, groups[3].Slot})
	assert.True(t, groups[0].First)
	assert.False(t, groups[1].First)
}

func TestParseCylinderType(t *testing.T) {
	ct, err := ParseCylinderType(" delivered ")
	require.NoError(t, err)
	assert.Equal(t, CylinderDelivered, ct)

	_, err = ParseCylinderType("EMPTY")
	assert.ErrorIs(t, err, ErrUnknownCylinderType)

	pt, err := ParsePaymentType("")
	require.NoError(t, err)
	assert.Equal(t, PaymentNone, pt)

	_, err = ParsePaymentType("CHEQUE")
	assert.ErrorIs(t, err, ErrUnknownPaymentType)
}
