package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/messbook/internal/amqp"
	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/internal/settlement"
	"github.com/mmynk/messbook/internal/storage"
	"github.com/mmynk/messbook/internal/storage/sqlite"
)

var (
	march = models.Period{Year: 2025, Month: time.March}
	// The ledger clock sits in March 2025 so leave requests use that month.
	fixedNow = time.Date(2025, time.March, 20, 18, 30, 0, 0, time.UTC)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.Event
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, event *amqp.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	store     *sqlite.SQLiteStore
	ledger    *Ledger
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	publisher := &recordingPublisher{}
	return &fixture{
		t:         t,
		ctx:       context.Background(),
		store:     store,
		ledger:    New(store, WithPublisher(publisher), WithClock(func() time.Time { return fixedNow })),
		publisher: publisher,
	}
}

func (f *fixture) user(name string) string {
	f.t.Helper()
	u := models.NewUser(name, name, "", "hash")
	if err := f.store.CreateUser(f.ctx, u); err != nil {
		f.t.Fatalf("CreateUser(%s): %v", name, err)
	}
	return u.ID
}

// group creates a group administered by admin and joins the members to it.
func (f *fixture) group(admin string, members ...string) *models.Group {
	f.t.Helper()
	g, err := f.ledger.CreateGroup(f.ctx, admin, "Flat 4B", "")
	if err != nil {
		f.t.Fatalf("CreateGroup: %v", err)
	}
	for _, m := range members {
		if _, err := f.ledger.JoinGroup(f.ctx, m, g.JoinCode); err != nil {
			f.t.Fatalf("JoinGroup(%s): %v", m, err)
		}
	}
	return g
}

func (f *fixture) meal(actor, groupID, date string, b, l, d int) {
	f.t.Helper()
	_, _, err := f.ledger.RecordMeal(f.ctx, actor, MealInput{GroupID: groupID, Date: mustDate(f.t, date), Breakfast: b, Lunch: l, Dinner: d})
	if err != nil {
		f.t.Fatalf("RecordMeal(%s, %s): %v", actor, date, err)
	}
}

func (f *fixture) expense(actor, groupID, date, cost string) *models.GroceryExpense {
	f.t.Helper()
	e, err := f.ledger.RecordExpense(f.ctx, actor, ExpenseInput{GroupID: groupID, Date: mustDate(f.t, date), Item: "Groceries", Cost: dec(cost)})
	if err != nil {
		f.t.Fatalf("RecordExpense(%s, %s): %v", actor, cost, err)
	}
	return e
}

func mustDate(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%s): %v", s, err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSingleEaterScenario(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	b := f.user("b")
	g := f.group(a, b)

	for _, day := range []string{"2025-03-01", "2025-03-02", "2025-03-03", "2025-03-04", "2025-03-05"} {
		f.meal(a, g.ID, day, 1, 1, 1)
	}
	f.expense(a, g.ID, "2025-03-02", "500")
	f.expense(a, g.ID, "2025-03-04", "400")

	summary, err := f.ledger.GroupSummary(f.ctx, g.ID, march)
	if err != nil {
		t.Fatalf("GroupSummary failed: %v", err)
	}
	if summary.TotalMealUnits != 15 {
		t.Errorf("TotalMealUnits = %d, want 15", summary.TotalMealUnits)
	}
	if summary.CostPerMeal.StringFixed(2) != "60.00" {
		t.Errorf("CostPerMeal = %s, want 60.00", summary.CostPerMeal.StringFixed(2))
	}

	sa, err := f.ledger.MemberSummary(f.ctx, a, g.ID, march)
	if err != nil {
		t.Fatalf("MemberSummary(a) failed: %v", err)
	}
	if !sa.TotalCost.Equal(dec("900")) || !sa.Balance.IsZero() {
		t.Errorf("A cost/balance = %s/%s, want 900/0", sa.TotalCost, sa.Balance)
	}

	sb, err := f.ledger.MemberSummary(f.ctx, b, g.ID, march)
	if err != nil {
		t.Fatalf("MemberSummary(b) failed: %v", err)
	}
	if !sb.TotalCost.IsZero() || !sb.Balance.IsZero() {
		t.Errorf("B cost/balance = %s/%s, want 0/0", sb.TotalCost, sb.Balance)
	}
}

func TestZeroUnitPeriodRefundsSpend(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	b := f.user("b")
	g := f.group(a, b)

	f.expense(a, g.ID, "2025-03-10", "120.50")
	f.expense(b, g.ID, "2025-03-11", "30")

	report, err := f.ledger.MemberSummaries(f.ctx, g.ID, march)
	if err != nil {
		t.Fatalf("MemberSummaries failed: %v", err)
	}
	if !report.Group.CostPerMeal.IsZero() {
		t.Errorf("CostPerMeal = %s, want 0", report.Group.CostPerMeal)
	}
	for _, m := range report.Members {
		if !m.Balance.Equal(m.TotalSpent) {
			t.Errorf("%s balance = %s, want spent %s", m.UserID, m.Balance, m.TotalSpent)
		}
	}
}

func TestMemberSummariesAgreeWithGroup(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	b := f.user("b")
	c := f.user("c")
	g := f.group(a, b, c)

	f.meal(a, g.ID, "2025-03-01", 1, 1, 1)
	f.meal(b, g.ID, "2025-03-01", 0, 1, 2)
	f.meal(c, g.ID, "2025-03-02", 1, 0, 0)
	f.meal(c, g.ID, "2025-02-28", 3, 3, 3) // previous month
	f.expense(a, g.ID, "2025-03-01", "100")
	f.expense(c, g.ID, "2025-03-03", "33.33")

	report, err := f.ledger.MemberSummaries(f.ctx, g.ID, march)
	if err != nil {
		t.Fatalf("MemberSummaries failed: %v", err)
	}
	if len(report.Members) != 3 {
		t.Fatalf("got %d member summaries, want 3", len(report.Members))
	}

	units := 0
	cost := decimal.Zero
	for _, m := range report.Members {
		units += m.TotalMealUnits
		cost = cost.Add(m.TotalCost)
	}
	if units != report.Group.TotalMealUnits || units != 7 {
		t.Errorf("member units = %d, group units = %d, want 7", units, report.Group.TotalMealUnits)
	}
	tolerance := dec("0.005").Mul(decimal.NewFromInt(int64(units)))
	if diff := cost.Sub(report.Group.TotalGrocerySpend).Abs(); diff.GreaterThan(tolerance) {
		t.Errorf("member cost %s vs group spend %s", cost, report.Group.TotalGrocerySpend)
	}

	// 133.33 / 7 = 19.047... -> 19.05
	if !report.Group.CostPerMeal.Equal(dec("19.05")) {
		t.Errorf("CostPerMeal = %s, want 19.05", report.Group.CostPerMeal)
	}
	if len(report.Transfers) == 0 {
		t.Error("expected suggested transfers for unequal balances")
	}
}

func TestRecordMealIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	g := f.group(a)

	in := MealInput{GroupID: g.ID, Date: mustDate(t, "2025-03-07"), Breakfast: 1, Lunch: 2, Dinner: 1}

	first, created, err := f.ledger.RecordMeal(f.ctx, a, in)
	if err != nil || !created {
		t.Fatalf("first RecordMeal = %v, %v; want created", created, err)
	}
	before, err := f.ledger.MemberSummary(f.ctx, a, g.ID, march)
	if err != nil {
		t.Fatalf("MemberSummary failed: %v", err)
	}

	second, created, err := f.ledger.RecordMeal(f.ctx, a, in)
	if err != nil || created {
		t.Fatalf("second RecordMeal = %v, %v; want update", created, err)
	}
	if second.ID != first.ID {
		t.Errorf("entry ID changed: %s -> %s", first.ID, second.ID)
	}

	meals, err := f.ledger.ListMeals(f.ctx, a, g.ID, march, "")
	if err != nil {
		t.Fatalf("ListMeals failed: %v", err)
	}
	if len(meals) != 1 {
		t.Errorf("got %d entries, want 1", len(meals))
	}

	after, err := f.ledger.MemberSummary(f.ctx, a, g.ID, march)
	if err != nil {
		t.Fatalf("MemberSummary failed: %v", err)
	}
	if after.TotalMealUnits != before.TotalMealUnits || !after.Balance.Equal(before.Balance) {
		t.Errorf("summary changed after identical re-record: %+v -> %+v", before, after)
	}
}

func TestConcurrentRecordMealKeepsOneRow(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	g := f.group(a)
	day := mustDate(t, "2025-03-08")

	const writers = 32
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := f.ledger.RecordMeal(f.ctx, a, MealInput{
				GroupID: g.ID, Date: day, Breakfast: i % 4, Lunch: (i / 4) % 4, Dinner: 1,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent RecordMeal failed: %v", err)
		}
	}

	meals, err := f.ledger.ListMeals(f.ctx, a, g.ID, march, a)
	if err != nil {
		t.Fatalf("ListMeals failed: %v", err)
	}
	if len(meals) != 1 {
		t.Fatalf("got %d rows for one key, want 1", len(meals))
	}
	if meals[0].Dinner != 1 {
		t.Errorf("stored entry %+v matches no submitted write", meals[0])
	}

	// The write that commits last is the one kept.
	f.meal(a, g.ID, "2025-03-08", 3, 3, 3)
	summary, err := f.ledger.MemberSummary(f.ctx, a, g.ID, march)
	if err != nil {
		t.Fatalf("MemberSummary failed: %v", err)
	}
	if summary.TotalMealUnits != 9 {
		t.Errorf("TotalMealUnits = %d, want 9", summary.TotalMealUnits)
	}
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	g := f.group(a)
	day := mustDate(t, "2025-03-07")

	tests := []struct {
		name      string
		call      func() error
		wantField string
	}{
		{
			name: "breakfast above range",
			call: func() error {
				_, _, err := f.ledger.RecordMeal(f.ctx, a, MealInput{GroupID: g.ID, Date: day, Breakfast: 5})
				return err
			},
			wantField: "breakfast",
		},
		{
			name: "negative dinner",
			call: func() error {
				_, _, err := f.ledger.RecordMeal(f.ctx, a, MealInput{GroupID: g.ID, Date: day, Dinner: -1})
				return err
			},
			wantField: "dinner",
		},
		{
			name: "missing meal date",
			call: func() error {
				_, _, err := f.ledger.RecordMeal(f.ctx, a, MealInput{GroupID: g.ID, Lunch: 1})
				return err
			},
			wantField: "date",
		},
		{
			name: "negative cost",
			call: func() error {
				_, err := f.ledger.RecordExpense(f.ctx, a, ExpenseInput{GroupID: g.ID, Date: day, Item: "Rice", Cost: dec("-1")})
				return err
			},
			wantField: "cost",
		},
		{
			name: "sub-cent cost",
			call: func() error {
				_, err := f.ledger.RecordExpense(f.ctx, a, ExpenseInput{GroupID: g.ID, Date: day, Item: "Rice", Cost: dec("1.005")})
				return err
			},
			wantField: "cost",
		},
		{
			name: "cost with an extreme exponent",
			call: func() error {
				_, err := f.ledger.RecordExpense(f.ctx, a, ExpenseInput{GroupID: g.ID, Date: day, Item: "Rice", Cost: dec("1e200000000")})
				return err
			},
			wantField: "cost",
		},
		{
			name: "blank item",
			call: func() error {
				_, err := f.ledger.RecordExpense(f.ctx, a, ExpenseInput{GroupID: g.ID, Date: day, Item: "   ", Cost: dec("10")})
				return err
			},
			wantField: "item",
		},
		{
			name: "blank group name",
			call: func() error {
				_, err := f.ledger.CreateGroup(f.ctx, a, "  ", "")
				return err
			},
			wantField: "name",
		},
		{
			name: "short join code",
			call: func() error {
				_, err := f.ledger.JoinGroup(f.ctx, a, "AB1")
				return err
			},
			wantField: "join_code",
		},
		{
			name: "invalid period",
			call: func() error {
				_, err := f.ledger.GroupSummary(f.ctx, g.ID, models.Period{Year: 2025, Month: 13})
				return err
			},
			wantField: "period",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}

	meals, err := f.ledger.ListMeals(f.ctx, a, g.ID, march, "")
	if err != nil {
		t.Fatalf("ListMeals failed: %v", err)
	}
	if len(meals) != 0 {
		t.Errorf("rejected input was stored: %+v", meals)
	}
}

func TestZeroCostIsCanonical(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	g := f.group(a)

	e, err := f.ledger.RecordExpense(f.ctx, a, ExpenseInput{
		GroupID: g.ID, Date: mustDate(t, "2025-03-07"), Item: "Salt", Cost: dec("0e-200000000"),
	})
	if err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}
	if got := e.Cost.StringFixed(2); got != "0.00" || e.Cost.Exponent() != -2 {
		t.Errorf("Cost = %s (exp %d), want 0.00", got, e.Cost.Exponent())
	}
}

func TestAccessRules(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	b := f.user("b")
	outsider := f.user("outsider")
	g := f.group(a, b)
	other := f.group(outsider)
	day := mustDate(t, "2025-03-07")

	t.Run("non-member cannot record", func(t *testing.T) {
		_, _, err := f.ledger.RecordMeal(f.ctx, outsider, MealInput{GroupID: g.ID, Date: day, Lunch: 1})
		var perr *PermissionError
		if !errors.As(err, &perr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
	})

	t.Run("only admin records meals for another member", func(t *testing.T) {
		_, _, err := f.ledger.RecordMeal(f.ctx, b, MealInput{UserID: a, GroupID: g.ID, Date: day, Lunch: 1})
		var perr *PermissionError
		if !errors.As(err, &perr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
		entry, _, err := f.ledger.RecordMeal(f.ctx, a, MealInput{UserID: b, GroupID: g.ID, Date: day, Lunch: 1})
		if err != nil {
			t.Fatalf("admin RecordMeal failed: %v", err)
		}
		if entry.UserID != b {
			t.Errorf("UserID = %s, want b", entry.UserID)
		}
	})

	t.Run("cannot record meals for a member of another group", func(t *testing.T) {
		_, _, err := f.ledger.RecordMeal(f.ctx, a, MealInput{UserID: outsider, GroupID: g.ID, Date: day, Lunch: 1})
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("only admin records expenses paid by others", func(t *testing.T) {
		_, err := f.ledger.RecordExpense(f.ctx, b, ExpenseInput{UserID: a, GroupID: g.ID, Date: day, Item: "Oil", Cost: dec("5")})
		var perr *PermissionError
		if !errors.As(err, &perr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
		e, err := f.ledger.RecordExpense(f.ctx, a, ExpenseInput{UserID: b, GroupID: g.ID, Date: day, Item: "Oil", Cost: dec("5")})
		if err != nil {
			t.Fatalf("admin RecordExpense failed: %v", err)
		}
		if e.UserID != b {
			t.Errorf("UserID = %s, want b", e.UserID)
		}
	})

	t.Run("unknown group is not found", func(t *testing.T) {
		_, err := f.ledger.ListMeals(f.ctx, a, "nonexistent-id", march, "")
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("other group's data is off limits", func(t *testing.T) {
		_, err := f.ledger.ListExpenses(f.ctx, a, other.ID, march, "")
		var perr *PermissionError
		if !errors.As(err, &perr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
	})
}

func TestUpdateExpense(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	b := f.user("b")
	c := f.user("c")
	g := f.group(a, b, c)

	e := f.expense(b, g.ID, "2025-03-03", "80")
	in := ExpenseInput{Date: mustDate(t, "2025-03-04"), Item: "Fish", Quantity: "1 kg", Cost: dec("95.50")}

	t.Run("other member is refused", func(t *testing.T) {
		_, err := f.ledger.UpdateExpense(f.ctx, c, e.ID, in)
		var perr *PermissionError
		if !errors.As(err, &perr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
	})

	t.Run("owner updates", func(t *testing.T) {
		got, err := f.ledger.UpdateExpense(f.ctx, b, e.ID, in)
		if err != nil {
			t.Fatalf("UpdateExpense failed: %v", err)
		}
		if got.UserID != b || got.Item != "Fish" || !got.Cost.Equal(dec("95.50")) {
			t.Errorf("unexpected expense: %+v", got)
		}
	})

	t.Run("admin updates", func(t *testing.T) {
		in.Cost = dec("90")
		if _, err := f.ledger.UpdateExpense(f.ctx, a, e.ID, in); err != nil {
			t.Fatalf("admin UpdateExpense failed: %v", err)
		}
		expenses, err := f.ledger.ListExpenses(f.ctx, a, g.ID, march, b)
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		if len(expenses) != 1 || !expenses[0].Cost.Equal(dec("90")) {
			t.Errorf("unexpected expenses: %+v", expenses)
		}
	})

	t.Run("invalid update is rejected", func(t *testing.T) {
		bad := in
		bad.Cost = dec("-3")
		_, err := f.ledger.UpdateExpense(f.ctx, b, e.ID, bad)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("unknown expense", func(t *testing.T) {
		_, err := f.ledger.UpdateExpense(f.ctx, b, "nonexistent-id", in)
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})
}

func TestRecordMealSheet(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	b := f.user("b")
	outsider := f.user("outsider")
	g := f.group(a, b)
	day := mustDate(t, "2025-03-09")

	rows := []MealInput{
		{UserID: a, Breakfast: 1, Lunch: 1},
		{UserID: b, Dinner: 2},
	}
	entries, err := f.ledger.RecordMealSheet(f.ctx, a, g.ID, day, rows)
	if err != nil {
		t.Fatalf("RecordMealSheet failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, in := range rows {
		if in.GroupID != "" || !in.Date.IsZero() {
			t.Errorf("caller's row was modified: %+v", in)
		}
	}
	if got := f.publisher.types(); len(got) < 2 || got[len(got)-1] != amqp.EventMealRecorded || got[len(got)-2] != amqp.EventMealRecorded {
		t.Errorf("events = %v, want one meal.recorded per row", got)
	}

	summary, err := f.ledger.GroupSummary(f.ctx, g.ID, march)
	if err != nil {
		t.Fatalf("GroupSummary failed: %v", err)
	}
	if summary.TotalMealUnits != 4 {
		t.Errorf("TotalMealUnits = %d, want 4", summary.TotalMealUnits)
	}

	t.Run("one bad row writes nothing", func(t *testing.T) {
		_, err := f.ledger.RecordMealSheet(f.ctx, a, g.ID, mustDate(t, "2025-03-10"), []MealInput{
			{UserID: a, Lunch: 1},
			{UserID: b, Lunch: 9},
		})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		meals, err := f.ledger.ListMeals(f.ctx, a, g.ID, march, "")
		if err != nil {
			t.Fatalf("ListMeals failed: %v", err)
		}
		if len(meals) != 2 {
			t.Errorf("got %d entries after rejected sheet, want 2", len(meals))
		}
	})

	t.Run("non-member row", func(t *testing.T) {
		_, err := f.ledger.RecordMealSheet(f.ctx, a, g.ID, day, []MealInput{{UserID: outsider, Lunch: 1}})
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("member cannot submit rows of others", func(t *testing.T) {
		_, err := f.ledger.RecordMealSheet(f.ctx, b, g.ID, day, []MealInput{{UserID: b, Lunch: 1}, {UserID: a, Lunch: 1}})
		var perr *PermissionError
		if !errors.As(err, &perr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
	})

	t.Run("member submits own row", func(t *testing.T) {
		entries, err := f.ledger.RecordMealSheet(f.ctx, b, g.ID, day, []MealInput{{UserID: b, Dinner: 2}})
		if err != nil {
			t.Fatalf("RecordMealSheet failed: %v", err)
		}
		if len(entries) != 1 || entries[0].UserID != b {
			t.Errorf("entries = %+v, want one row for b", entries)
		}
	})

	t.Run("duplicate row", func(t *testing.T) {
		_, err := f.ledger.RecordMealSheet(f.ctx, a, g.ID, day, []MealInput{{UserID: a}, {UserID: a}})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})
}

func TestMembershipExclusivity(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	b := f.user("b")
	g := f.group(a)
	other := f.group(b)

	_, err := f.ledger.CreateGroup(f.ctx, a, "Second", "")
	var cerr *ConflictError
	if !errors.As(err, &cerr) || cerr.Blocked() {
		t.Errorf("CreateGroup while in a group: expected membership ConflictError, got %v", err)
	}

	_, err = f.ledger.JoinGroup(f.ctx, a, other.JoinCode)
	if !errors.As(err, &cerr) {
		t.Errorf("JoinGroup while in a group: expected ConflictError, got %v", err)
	}

	c := f.user("c")
	if _, err := f.ledger.JoinGroup(f.ctx, c, "zzzzzz"); err == nil {
		t.Error("expected error for unknown join code")
	} else {
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	}

	joined, err := f.ledger.JoinGroup(f.ctx, c, "  "+g.JoinCode+" ")
	if err != nil {
		t.Fatalf("JoinGroup with padded code failed: %v", err)
	}
	if len(joined.Members) != 2 {
		t.Errorf("roster size = %d, want 2", len(joined.Members))
	}
}

func TestLeaveGroup(t *testing.T) {
	t.Run("sole admin deletes the group", func(t *testing.T) {
		f := newFixture(t)
		a := f.user("a")
		g := f.group(a)
		f.meal(a, g.ID, "2025-03-01", 1, 1, 1)

		result, err := f.ledger.RequestLeave(f.ctx, a, g.ID)
		if err != nil {
			t.Fatalf("RequestLeave failed: %v", err)
		}
		if result.Outcome != settlement.OutcomeGroupDeleted {
			t.Errorf("Outcome = %s, want %s", result.Outcome, settlement.OutcomeGroupDeleted)
		}

		_, err = f.ledger.GetGroup(f.ctx, a, g.ID)
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("GetGroup after deletion: expected NotFoundError, got %v", err)
		}
		if _, err := f.store.GetMembership(f.ctx, a); err == nil {
			t.Error("membership survived group deletion")
		}
	})

	t.Run("admin with members is blocked regardless of balance", func(t *testing.T) {
		f := newFixture(t)
		a := f.user("a")
		b := f.user("b")
		g := f.group(a, b)
		f.expense(a, g.ID, "2025-03-01", "500") // positive balance for a

		_, err := f.ledger.RequestLeave(f.ctx, a, g.ID)
		var cerr *ConflictError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if !cerr.Blocked() || cerr.Reasons[0] != settlement.ReasonAdminTransferRequired {
			t.Errorf("Reasons = %v, want admin transfer first", cerr.Reasons)
		}
		if _, err := f.store.GetMembership(f.ctx, a); err != nil {
			t.Errorf("blocked leave removed the membership: %v", err)
		}
	})

	t.Run("admin in debt gets both reasons", func(t *testing.T) {
		f := newFixture(t)
		a := f.user("a")
		b := f.user("b")
		g := f.group(a, b)
		f.meal(a, g.ID, "2025-03-01", 1, 0, 0)
		f.expense(b, g.ID, "2025-03-01", "50")

		_, err := f.ledger.RequestLeave(f.ctx, a, g.ID)
		var cerr *ConflictError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		want := []settlement.Reason{settlement.ReasonAdminTransferRequired, settlement.ReasonNegativeBalance}
		if len(cerr.Reasons) != 2 || cerr.Reasons[0] != want[0] || cerr.Reasons[1] != want[1] {
			t.Errorf("Reasons = %v, want %v", cerr.Reasons, want)
		}
	})

	t.Run("member in debt is blocked until settled", func(t *testing.T) {
		f := newFixture(t)
		a := f.user("a")
		b := f.user("b")
		g := f.group(a, b)
		f.meal(a, g.ID, "2025-03-02", 1, 1, 0)
		f.meal(b, g.ID, "2025-03-02", 1, 1, 0)
		f.expense(a, g.ID, "2025-03-02", "100")

		// rate 25, b owes 50
		_, err := f.ledger.RequestLeave(f.ctx, b, g.ID)
		var cerr *ConflictError
		if !errors.As(err, &cerr) || len(cerr.Reasons) != 1 || cerr.Reasons[0] != settlement.ReasonNegativeBalance {
			t.Fatalf("expected negative balance conflict, got %v", err)
		}

		// b matching a's spend brings both balances to zero
		f.expense(b, g.ID, "2025-03-03", "100")
		result, err := f.ledger.RequestLeave(f.ctx, b, g.ID)
		if err != nil {
			t.Fatalf("RequestLeave after settling failed: %v", err)
		}
		if result.Outcome != settlement.OutcomeLeft || result.Period != march {
			t.Errorf("result = %+v, want left in %s", result, march)
		}
		if !result.Balance.IsZero() {
			t.Errorf("Balance = %s, want 0", result.Balance)
		}

		// the former member no longer counts
		if _, err := f.ledger.MemberSummary(f.ctx, b, g.ID, march); err == nil {
			t.Error("expected former member to be excluded from summaries")
		}
		summary, err := f.ledger.GroupSummary(f.ctx, g.ID, march)
		if err != nil {
			t.Fatalf("GroupSummary failed: %v", err)
		}
		if summary.TotalMealUnits != 2 || !summary.TotalGrocerySpend.Equal(dec("100")) {
			t.Errorf("summary after leave = %+v, want a's 2 units and 100", summary)
		}

		// ledger rows were kept: rejoining brings them back
		if _, err := f.ledger.JoinGroup(f.ctx, b, g.JoinCode); err != nil {
			t.Fatalf("JoinGroup failed: %v", err)
		}
		sb, err := f.ledger.MemberSummary(f.ctx, b, g.ID, march)
		if err != nil {
			t.Fatalf("MemberSummary failed: %v", err)
		}
		if sb.TotalMealUnits != 2 || !sb.TotalSpent.Equal(dec("100")) {
			t.Errorf("rejoined member summary = %+v", sb)
		}
	})

	t.Run("transfer admin then leave", func(t *testing.T) {
		f := newFixture(t)
		a := f.user("a")
		b := f.user("b")
		g := f.group(a, b)

		if _, err := f.ledger.TransferAdmin(f.ctx, b, g.ID, a); err == nil {
			t.Error("expected non-admin transfer to fail")
		}

		updated, err := f.ledger.TransferAdmin(f.ctx, a, g.ID, b)
		if err != nil {
			t.Fatalf("TransferAdmin failed: %v", err)
		}
		if updated.AdminID != b {
			t.Errorf("AdminID = %s, want b", updated.AdminID)
		}

		result, err := f.ledger.RequestLeave(f.ctx, a, g.ID)
		if err != nil {
			t.Fatalf("RequestLeave failed: %v", err)
		}
		if result.Outcome != settlement.OutcomeLeft {
			t.Errorf("Outcome = %s, want left", result.Outcome)
		}

		group, err := f.ledger.GetGroup(f.ctx, b, g.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if len(group.Members) != 1 || group.Members[0].UserID != b || !group.Members[0].IsAdmin() {
			t.Errorf("roster after leave = %+v", group.Members)
		}
	})
}

// interleavingStore runs before() ahead of the leave write, standing in for
// a concurrent request that lands between the decision and its application.
type interleavingStore struct {
	storage.Store
	before func()
}

func (s *interleavingStore) RemoveMember(ctx context.Context, groupID, userID string) error {
	s.before()
	return s.Store.RemoveMember(ctx, groupID, userID)
}

func (s *interleavingStore) DeleteGroup(ctx context.Context, groupID, lastMemberID string) error {
	s.before()
	return s.Store.DeleteGroup(ctx, groupID, lastMemberID)
}

func TestLeaveRechecksGroupState(t *testing.T) {
	t.Run("member promoted to admin mid-leave stays", func(t *testing.T) {
		f := newFixture(t)
		a := f.user("a")
		b := f.user("b")
		g := f.group(a, b)

		racing := New(&interleavingStore{Store: f.store, before: func() {
			if err := f.store.TransferAdmin(f.ctx, g.ID, a, b); err != nil {
				t.Fatalf("TransferAdmin: %v", err)
			}
		}}, WithClock(func() time.Time { return fixedNow }))

		_, err := racing.RequestLeave(f.ctx, b, g.ID)
		var cerr *ConflictError
		if !errors.As(err, &cerr) || !cerr.Stale || cerr.Blocked() {
			t.Fatalf("expected stale ConflictError, got %v", err)
		}

		got, err := f.store.GetGroup(f.ctx, g.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if len(got.Members) != 2 {
			t.Fatalf("roster size = %d, want 2", len(got.Members))
		}
		admin, ok := got.Member(b)
		if got.AdminID != b || !ok || !admin.IsAdmin() {
			t.Errorf("admin = %s, want b holding the admin role", got.AdminID)
		}
	})

	t.Run("member joining before deletion keeps the group", func(t *testing.T) {
		f := newFixture(t)
		a := f.user("a")
		c := f.user("c")
		g := f.group(a)

		racing := New(&interleavingStore{Store: f.store, before: func() {
			if _, err := f.ledger.JoinGroup(f.ctx, c, g.JoinCode); err != nil {
				t.Fatalf("JoinGroup: %v", err)
			}
		}}, WithClock(func() time.Time { return fixedNow }))

		_, err := racing.RequestLeave(f.ctx, a, g.ID)
		var cerr *ConflictError
		if !errors.As(err, &cerr) || !cerr.Stale {
			t.Fatalf("expected stale ConflictError, got %v", err)
		}

		got, err := f.store.GetGroup(f.ctx, g.ID)
		if err != nil {
			t.Fatalf("group was deleted under a new member: %v", err)
		}
		if len(got.Members) != 2 {
			t.Errorf("roster size = %d, want 2", len(got.Members))
		}

		// A fresh request sees the new roster and is blocked on the admin role.
		_, err = f.ledger.RequestLeave(f.ctx, a, g.ID)
		if !errors.As(err, &cerr) || !cerr.Blocked() {
			t.Errorf("retry: expected blocked ConflictError, got %v", err)
		}
	})
}

func TestTransferAdminErrors(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	outsider := f.user("outsider")
	g := f.group(a)

	_, err := f.ledger.TransferAdmin(f.ctx, a, g.ID, a)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("transfer to self: expected ValidationError, got %v", err)
	}

	_, err = f.ledger.TransferAdmin(f.ctx, a, g.ID, outsider)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("transfer to non-member: expected NotFoundError, got %v", err)
	}
}

func TestLeapYearMonthBounds(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	g := f.group(a)

	f.meal(a, g.ID, "2024-02-29", 1, 0, 0)
	f.meal(a, g.ID, "2024-03-01", 1, 0, 0)
	f.meal(a, g.ID, "2025-02-28", 0, 1, 0)

	feb2024, err := f.ledger.GroupSummary(f.ctx, g.ID, models.Period{Year: 2024, Month: time.February})
	if err != nil {
		t.Fatalf("GroupSummary failed: %v", err)
	}
	if feb2024.TotalMealUnits != 1 {
		t.Errorf("Feb 2024 units = %d, want 1", feb2024.TotalMealUnits)
	}

	feb2025, err := f.ledger.GroupSummary(f.ctx, g.ID, models.Period{Year: 2025, Month: time.February})
	if err != nil {
		t.Fatalf("GroupSummary failed: %v", err)
	}
	if feb2025.TotalMealUnits != 1 {
		t.Errorf("Feb 2025 units = %d, want 1", feb2025.TotalMealUnits)
	}
}

func TestEventsArePublished(t *testing.T) {
	f := newFixture(t)
	a := f.user("a")
	b := f.user("b")
	g := f.group(a, b)
	f.meal(a, g.ID, "2025-03-01", 1, 0, 0)
	e := f.expense(a, g.ID, "2025-03-01", "10")
	if _, err := f.ledger.UpdateExpense(f.ctx, a, e.ID, ExpenseInput{Date: e.Date, Item: e.Item, Cost: dec("12")}); err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}
	if _, err := f.ledger.TransferAdmin(f.ctx, a, g.ID, b); err != nil {
		t.Fatalf("TransferAdmin failed: %v", err)
	}
	if _, err := f.ledger.RequestLeave(f.ctx, a, g.ID); err != nil {
		t.Fatalf("RequestLeave(a) failed: %v", err)
	}
	if _, err := f.ledger.RequestLeave(f.ctx, b, g.ID); err != nil {
		t.Fatalf("RequestLeave(b) failed: %v", err)
	}

	want := []amqp.EventType{
		amqp.EventGroupCreated,
		amqp.EventMemberJoined,
		amqp.EventMealRecorded,
		amqp.EventExpenseRecorded,
		amqp.EventExpenseUpdated,
		amqp.EventAdminTransferred,
		amqp.EventMemberLeft,
		amqp.EventGroupDeleted,
	}
	got := f.publisher.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	a := f.user("a")
	g := f.group(a)

	if _, _, err := f.ledger.RecordMeal(f.ctx, a, MealInput{GroupID: g.ID, Date: mustDate(t, "2025-03-01"), Lunch: 1}); err != nil {
		t.Fatalf("RecordMeal failed because of the publisher: %v", err)
	}

	plain := New(f.store)
	if _, _, err := plain.RecordMeal(f.ctx, a, MealInput{GroupID: g.ID, Date: mustDate(t, "2025-03-02"), Lunch: 1}); err != nil {
		t.Fatalf("RecordMeal without publisher failed: %v", err)
	}
}

func TestCurrentPeriodFollowsClock(t *testing.T) {
	l := New(nil, WithClock(func() time.Time {
		return time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC)
	}))
	if got := l.CurrentPeriod(); got != (models.Period{Year: 2024, Month: time.December}) {
		t.Errorf("CurrentPeriod = %s, want 2024-12", got)
	}
}
