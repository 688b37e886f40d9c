package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/messbook/internal/auth"
	"github.com/mmynk/messbook/internal/ledger"
	"github.com/mmynk/messbook/internal/middleware"
	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/internal/storage/sqlite"
	"github.com/mmynk/messbook/pkg/api"
)

const testUserHeader = "X-Test-User-Id"

// testAuthInterceptor returns a Connect interceptor that sets the user named
// by the X-Test-User-Id header in the context.
func testAuthInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if userID := req.Header().Get(testUserHeader); userID != "" {
				ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
			}
			return next(ctx, req)
		}
	}
}

type testClients struct {
	auth    api.AuthServiceClient
	groups  api.GroupServiceClient
	ledger  api.LedgerServiceClient
	summary api.SummaryServiceClient
	store   *sqlite.SQLiteStore
}

// setupTestServer creates a test server backed by a temp SQLite database.
// The ledger clock is fixed at 2025-03-20.
func setupTestServer(t *testing.T) *testClients {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := func() time.Time { return time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC) }
	l := ledger.New(store, ledger.WithClock(clock))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	authInterceptor := connect.WithInterceptors(testAuthInterceptor())
	mux := http.NewServeMux()
	mux.Handle(api.NewAuthServiceHandler(
		NewAuthService(auth.NewPasswordAuthenticator(store), auth.NewJWTManager("service-test-secret", time.Hour), logger),
	))
	mux.Handle(api.NewGroupServiceHandler(NewGroupService(l), authInterceptor))
	mux.Handle(api.NewLedgerServiceHandler(NewLedgerService(l), authInterceptor))
	mux.Handle(api.NewSummaryServiceHandler(NewSummaryService(l), authInterceptor))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testClients{
		auth:    api.NewAuthServiceClient(http.DefaultClient, server.URL),
		groups:  api.NewGroupServiceClient(http.DefaultClient, server.URL),
		ledger:  api.NewLedgerServiceClient(http.DefaultClient, server.URL),
		summary: api.NewSummaryServiceClient(http.DefaultClient, server.URL),
		store:   store,
	}
}

// user creates an account directly in the store and returns its ID.
func (c *testClients) user(t *testing.T, name string) string {
	t.Helper()
	u := models.NewUser(strings.ToLower(name), name, "", "unused-hash")
	if err := c.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return u.ID
}

// as builds a request authenticated as userID.
func as[T any](userID string, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set(testUserHeader, userID)
	return req
}

// household creates a group administered by admin and joins the others.
func (c *testClients) household(t *testing.T, admin string, others ...string) *api.Group {
	t.Helper()
	ctx := context.Background()

	resp, err := c.groups.CreateGroup(ctx, as(admin, &api.CreateGroupRequest{Name: "Flat 4B"}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	for _, id := range others {
		if _, err := c.groups.JoinGroup(ctx, as(id, &api.JoinGroupRequest{JoinCode: resp.Msg.Group.JoinCode})); err != nil {
			t.Fatalf("JoinGroup failed: %v", err)
		}
	}
	return resp.Msg.Group
}

func TestAuthService(t *testing.T) {
	c := setupTestServer(t)
	ctx := context.Background()

	reg, err := c.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Username:    "01711000000",
		DisplayName: "Rahim",
		Password:    "correct horse",
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if reg.Msg.Token == "" || reg.Msg.User.DisplayName != "Rahim" {
		t.Errorf("unexpected register response: %+v", reg.Msg)
	}

	_, err = c.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{Username: "01711000000", Password: "another password"}))
	if connect.CodeOf(err) != connect.CodeAlreadyExists {
		t.Errorf("duplicate username: expected AlreadyExists, got %v", err)
	}

	_, err = c.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{Username: "karim", Password: "short"}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("weak password: expected InvalidArgument, got %v", err)
	}

	login, err := c.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Username: "01711000000", Password: "correct horse"}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.Msg.User.ID != reg.Msg.User.ID {
		t.Errorf("logged in as %s, want %s", login.Msg.User.ID, reg.Msg.User.ID)
	}

	_, err = c.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Username: "01711000000", Password: "wrong horse"}))
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("wrong password: expected Unauthenticated, got %v", err)
	}
}

func TestUnauthenticated(t *testing.T) {
	c := setupTestServer(t)

	_, err := c.groups.GetGroup(context.Background(), connect.NewRequest(&api.GetGroupRequest{}))
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}
}

func TestGroupLifecycle(t *testing.T) {
	c := setupTestServer(t)
	ctx := context.Background()
	alice, bob, carol := c.user(t, "Alice"), c.user(t, "Bob"), c.user(t, "Carol")

	group := c.household(t, alice)
	if group.AdminID != alice || len(group.Members) != 1 {
		t.Fatalf("unexpected new group: %+v", group)
	}

	// Join codes are matched case-insensitively.
	joined, err := c.groups.JoinGroup(ctx, as(bob, &api.JoinGroupRequest{JoinCode: " " + strings.ToLower(group.JoinCode)}))
	if err != nil {
		t.Fatalf("JoinGroup failed: %v", err)
	}
	if len(joined.Msg.Group.Members) != 2 {
		t.Errorf("expected 2 members, got %d", len(joined.Msg.Group.Members))
	}

	_, err = c.groups.JoinGroup(ctx, as(bob, &api.JoinGroupRequest{JoinCode: group.JoinCode}))
	if connect.CodeOf(err) != connect.CodeAlreadyExists {
		t.Errorf("second join: expected AlreadyExists, got %v", err)
	}

	own, err := c.groups.GetGroup(ctx, as(bob, &api.GetGroupRequest{}))
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if own.Msg.Group.ID != group.ID {
		t.Errorf("expected bob's own group %s, got %s", group.ID, own.Msg.Group.ID)
	}

	_, err = c.groups.GetGroup(ctx, as(carol, &api.GetGroupRequest{GroupID: group.ID}))
	if connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Errorf("outsider: expected PermissionDenied, got %v", err)
	}

	_, err = c.groups.GetGroup(ctx, as(carol, &api.GetGroupRequest{GroupID: "no-such-group"}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("unknown group: expected NotFound, got %v", err)
	}

	_, err = c.groups.LeaveGroup(ctx, as(alice, &api.LeaveGroupRequest{GroupID: group.ID}))
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Fatalf("admin leave: expected FailedPrecondition, got %v", err)
	}
	if reasons := BlockedReasons(err); !slices.Equal(reasons, []string{"admin_transfer_required"}) {
		t.Errorf("unexpected reasons: %v", reasons)
	}

	_, err = c.groups.TransferAdmin(ctx, as(bob, &api.TransferAdminRequest{GroupID: group.ID, NewAdminID: bob}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("self transfer: expected InvalidArgument, got %v", err)
	}
	_, err = c.groups.TransferAdmin(ctx, as(bob, &api.TransferAdminRequest{GroupID: group.ID, NewAdminID: alice}))
	if connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Errorf("non-admin transfer: expected PermissionDenied, got %v", err)
	}

	transferred, err := c.groups.TransferAdmin(ctx, as(alice, &api.TransferAdminRequest{GroupID: group.ID, NewAdminID: bob}))
	if err != nil {
		t.Fatalf("TransferAdmin failed: %v", err)
	}
	if transferred.Msg.Group.AdminID != bob {
		t.Errorf("expected bob as admin, got %s", transferred.Msg.Group.AdminID)
	}

	left, err := c.groups.LeaveGroup(ctx, as(alice, &api.LeaveGroupRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("LeaveGroup failed: %v", err)
	}
	if left.Msg.Outcome != "left" || left.Msg.Balance != "0.00" || left.Msg.Period != "2025-03" {
		t.Errorf("unexpected leave response: %+v", left.Msg)
	}

	deleted, err := c.groups.LeaveGroup(ctx, as(bob, &api.LeaveGroupRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("LeaveGroup (sole admin) failed: %v", err)
	}
	if deleted.Msg.Outcome != "group_deleted" {
		t.Errorf("expected group_deleted, got %s", deleted.Msg.Outcome)
	}
	_, err = c.groups.GetGroup(ctx, as(bob, &api.GetGroupRequest{GroupID: group.ID}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("deleted group: expected NotFound, got %v", err)
	}
}

func TestLeaveBlockedByDebt(t *testing.T) {
	c := setupTestServer(t)
	ctx := context.Background()
	alice, bob := c.user(t, "Alice"), c.user(t, "Bob")
	group := c.household(t, alice, bob)

	if _, err := c.ledger.RecordMeal(ctx, as(bob, &api.RecordMealRequest{
		GroupID: group.ID, Date: "2025-03-02", Lunch: 1, Dinner: 1,
	})); err != nil {
		t.Fatalf("RecordMeal failed: %v", err)
	}
	if _, err := c.ledger.RecordExpense(ctx, as(alice, &api.RecordExpenseRequest{
		GroupID: group.ID, Date: "2025-03-02", Item: "Rice", Quantity: "5 kg", Cost: "50.00",
	})); err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}

	_, err := c.groups.LeaveGroup(ctx, as(bob, &api.LeaveGroupRequest{GroupID: group.ID}))
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
	if reasons := BlockedReasons(err); !slices.Equal(reasons, []string{"negative_balance"}) {
		t.Errorf("unexpected reasons: %v", reasons)
	}
}

func TestMealsAndSummaries(t *testing.T) {
	c := setupTestServer(t)
	ctx := context.Background()
	alice, bob := c.user(t, "Alice"), c.user(t, "Bob")
	group := c.household(t, alice, bob)

	// Alice eats three meals on five days: 15 units.
	for day := 1; day <= 5; day++ {
		resp, err := c.ledger.RecordMealSheet(ctx, as(alice, &api.RecordMealSheetRequest{
			GroupID: group.ID,
			Date:    models.NewDate(2025, time.March, day).String(),
			Rows: []*api.MealSheetRow{
				{UserID: alice, Breakfast: 1, Lunch: 1, Dinner: 1},
				{UserID: bob},
			},
		}))
		if err != nil {
			t.Fatalf("RecordMealSheet day %d failed: %v", day, err)
		}
		if len(resp.Msg.Entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(resp.Msg.Entries))
		}
	}

	// Recording the same day again replaces the entry.
	again, err := c.ledger.RecordMeal(ctx, as(alice, &api.RecordMealRequest{
		GroupID: group.ID, Date: "2025-03-05", Breakfast: 1, Lunch: 1, Dinner: 1,
	}))
	if err != nil {
		t.Fatalf("RecordMeal failed: %v", err)
	}
	if again.Msg.Created || again.Msg.Entry.Total != 3 {
		t.Errorf("expected an unchanged upsert, got %+v", again.Msg)
	}

	// Only the admin may record meals of other members.
	_, err = c.ledger.RecordMeal(ctx, as(bob, &api.RecordMealRequest{
		GroupID: group.ID, UserID: alice, Date: "2025-03-06", Lunch: 1,
	}))
	if connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Errorf("expected PermissionDenied, got %v", err)
	}

	if _, err := c.ledger.RecordExpense(ctx, as(alice, &api.RecordExpenseRequest{
		GroupID: group.ID, Date: "2025-03-03", Item: "Groceries", Cost: "900",
	})); err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}

	// Outside the period.
	if _, err := c.ledger.RecordExpense(ctx, as(alice, &api.RecordExpenseRequest{
		GroupID: group.ID, Date: "2025-02-28", Item: "Oil", Cost: "120.50",
	})); err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}

	summary, err := c.summary.GetGroupSummary(ctx, as(bob, &api.GetGroupSummaryRequest{GroupID: group.ID, Period: "2025-03"}))
	if err != nil {
		t.Fatalf("GetGroupSummary failed: %v", err)
	}
	want := api.GroupSummary{
		GroupID:           group.ID,
		Period:            "2025-03",
		TotalMealUnits:    15,
		TotalGrocerySpend: "900.00",
		CostPerMeal:       "60.00",
	}
	if *summary.Msg.Summary != want {
		t.Errorf("group summary = %+v, want %+v", *summary.Msg.Summary, want)
	}

	// Empty period means the current month of the ledger clock.
	self, err := c.summary.GetMemberSummary(ctx, as(alice, &api.GetMemberSummaryRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("GetMemberSummary failed: %v", err)
	}
	if self.Msg.Summary.TotalCost != "900.00" || self.Msg.Summary.Balance != "0.00" || self.Msg.Summary.Breakfasts != 5 {
		t.Errorf("unexpected alice summary: %+v", self.Msg.Summary)
	}

	report, err := c.summary.ListMemberSummaries(ctx, as(bob, &api.ListMemberSummariesRequest{GroupID: group.ID, Period: "2025-03"}))
	if err != nil {
		t.Fatalf("ListMemberSummaries failed: %v", err)
	}
	if len(report.Msg.Members) != 2 || len(report.Msg.Transfers) != 0 {
		t.Errorf("unexpected report: %+v", report.Msg)
	}
	for _, m := range report.Msg.Members {
		if m.UserID == bob && (m.TotalCost != "0.00" || m.Balance != "0.00") {
			t.Errorf("unexpected bob summary: %+v", m)
		}
	}

	feb, err := c.summary.GetGroupSummary(ctx, as(bob, &api.GetGroupSummaryRequest{GroupID: group.ID, Period: "2025-02"}))
	if err != nil {
		t.Fatalf("GetGroupSummary failed: %v", err)
	}
	if feb.Msg.Summary.CostPerMeal != "0.00" || feb.Msg.Summary.TotalGrocerySpend != "120.50" {
		t.Errorf("unexpected february summary: %+v", feb.Msg.Summary)
	}

	meals, err := c.ledger.ListMeals(ctx, as(bob, &api.ListMealsRequest{GroupID: group.ID, Period: "2025-03", UserID: alice}))
	if err != nil {
		t.Fatalf("ListMeals failed: %v", err)
	}
	if len(meals.Msg.Entries) != 5 || meals.Msg.Entries[0].Date != "2025-03-05" {
		t.Errorf("expected 5 entries newest first, got %+v", meals.Msg.Entries)
	}
}

func TestTransfersSuggested(t *testing.T) {
	c := setupTestServer(t)
	ctx := context.Background()
	alice, bob := c.user(t, "Alice"), c.user(t, "Bob")
	group := c.household(t, alice, bob)

	for _, id := range []string{alice, bob} {
		if _, err := c.ledger.RecordMeal(ctx, as(id, &api.RecordMealRequest{
			GroupID: group.ID, Date: "2025-03-10", Lunch: 1, Dinner: 1,
		})); err != nil {
			t.Fatalf("RecordMeal failed: %v", err)
		}
	}
	if _, err := c.ledger.RecordExpense(ctx, as(alice, &api.RecordExpenseRequest{
		GroupID: group.ID, Date: "2025-03-10", Item: "Fish", Cost: "100.00",
	})); err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}

	report, err := c.summary.ListMemberSummaries(ctx, as(alice, &api.ListMemberSummariesRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("ListMemberSummaries failed: %v", err)
	}
	want := []*api.Transfer{{FromUserID: bob, ToUserID: alice, Amount: "50.00"}}
	if len(report.Msg.Transfers) != 1 || *report.Msg.Transfers[0] != *want[0] {
		t.Errorf("transfers = %+v, want %+v", report.Msg.Transfers, want)
	}
}

func TestExpenses(t *testing.T) {
	c := setupTestServer(t)
	ctx := context.Background()
	alice, bob := c.user(t, "Alice"), c.user(t, "Bob")
	group := c.household(t, alice, bob)

	created, err := c.ledger.RecordExpense(ctx, as(bob, &api.RecordExpenseRequest{
		GroupID: group.ID, Date: "2025-03-04", Item: " Lentils ", Quantity: "2 kg", Cost: "240.5",
	}))
	if err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}
	if created.Msg.Expense.Item != "Lentils" || created.Msg.Expense.Cost != "240.50" || created.Msg.Expense.UserID != bob {
		t.Errorf("unexpected expense: %+v", created.Msg.Expense)
	}

	_, err = c.ledger.RecordExpense(ctx, as(bob, &api.RecordExpenseRequest{
		GroupID: group.ID, UserID: alice, Date: "2025-03-04", Item: "Eggs", Cost: "10",
	}))
	if connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Errorf("member recording for another: expected PermissionDenied, got %v", err)
	}

	updated, err := c.ledger.UpdateExpense(ctx, as(alice, &api.UpdateExpenseRequest{
		ExpenseID: created.Msg.Expense.ID, Date: "2025-03-05", Item: "Lentils", Quantity: "3 kg", Cost: "300",
	}))
	if err != nil {
		t.Fatalf("admin UpdateExpense failed: %v", err)
	}
	if updated.Msg.Expense.Cost != "300.00" || updated.Msg.Expense.UserID != bob {
		t.Errorf("unexpected updated expense: %+v", updated.Msg.Expense)
	}

	_, err = c.ledger.UpdateExpense(ctx, as(alice, &api.UpdateExpenseRequest{
		ExpenseID: "missing", Date: "2025-03-05", Item: "Lentils", Cost: "1",
	}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("missing expense: expected NotFound, got %v", err)
	}

	list, err := c.ledger.ListExpenses(ctx, as(alice, &api.ListExpensesRequest{GroupID: group.ID, Period: "2025-03"}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(list.Msg.Expenses) != 1 || list.Msg.Expenses[0].Quantity != "3 kg" {
		t.Errorf("unexpected expenses: %+v", list.Msg.Expenses)
	}
}

func TestInvalidArguments(t *testing.T) {
	c := setupTestServer(t)
	ctx := context.Background()
	alice := c.user(t, "Alice")
	group := c.household(t, alice)

	tests := []struct {
		name string
		call func() error
	}{
		{"breakfast out of range", func() error {
			_, err := c.ledger.RecordMeal(ctx, as(alice, &api.RecordMealRequest{GroupID: group.ID, Date: "2025-03-01", Breakfast: 5}))
			return err
		}},
		{"negative slot", func() error {
			_, err := c.ledger.RecordMeal(ctx, as(alice, &api.RecordMealRequest{GroupID: group.ID, Date: "2025-03-01", Dinner: -1}))
			return err
		}},
		{"impossible date", func() error {
			_, err := c.ledger.RecordMeal(ctx, as(alice, &api.RecordMealRequest{GroupID: group.ID, Date: "2025-02-29", Lunch: 1}))
			return err
		}},
		{"negative cost", func() error {
			_, err := c.ledger.RecordExpense(ctx, as(alice, &api.RecordExpenseRequest{GroupID: group.ID, Date: "2025-03-01", Item: "Salt", Cost: "-1"}))
			return err
		}},
		{"sub-cent cost", func() error {
			_, err := c.ledger.RecordExpense(ctx, as(alice, &api.RecordExpenseRequest{GroupID: group.ID, Date: "2025-03-01", Item: "Salt", Cost: "1.005"}))
			return err
		}},
		{"non-numeric cost", func() error {
			_, err := c.ledger.RecordExpense(ctx, as(alice, &api.RecordExpenseRequest{GroupID: group.ID, Date: "2025-03-01", Item: "Salt", Cost: "ten"}))
			return err
		}},
		{"missing item", func() error {
			_, err := c.ledger.RecordExpense(ctx, as(alice, &api.RecordExpenseRequest{GroupID: group.ID, Date: "2025-03-01", Cost: "1"}))
			return err
		}},
		{"bad period", func() error {
			_, err := c.summary.GetGroupSummary(ctx, as(alice, &api.GetGroupSummaryRequest{GroupID: group.ID, Period: "2025-13"}))
			return err
		}},
		{"missing group", func() error {
			_, err := c.summary.ListMemberSummaries(ctx, as(alice, &api.ListMemberSummariesRequest{}))
			return err
		}},
		{"empty meal sheet", func() error {
			_, err := c.ledger.RecordMealSheet(ctx, as(alice, &api.RecordMealSheetRequest{GroupID: group.ID, Date: "2025-03-01"}))
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); connect.CodeOf(err) != connect.CodeInvalidArgument {
				t.Errorf("expected InvalidArgument, got %v", err)
			}
		})
	}
}
