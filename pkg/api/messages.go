package api

// Money is always a decimal string with two places ("60.00"), dates are
// YYYY-MM-DD and periods YYYY-MM. An empty period means the current month.

// User is a registered account as other users see it.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

type RegisterRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// Group is a household with its current roster.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	JoinCode    string    `json:"join_code"`
	AdminID     string    `json:"admin_id"`
	CreatedAt   int64     `json:"created_at"`
	Members     []*Member `json:"members"`
}

type Member struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	JoinedAt    int64  `json:"joined_at"`
}

type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type JoinGroupRequest struct {
	JoinCode string `json:"join_code"`
}

type JoinGroupResponse struct {
	Group *Group `json:"group"`
}

// GetGroupRequest with an empty GroupID returns the caller's own group.
type GetGroupRequest struct {
	GroupID string `json:"group_id,omitempty"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

type TransferAdminRequest struct {
	GroupID    string `json:"group_id"`
	NewAdminID string `json:"new_admin_id"`
}

type TransferAdminResponse struct {
	Group *Group `json:"group"`
}

type LeaveGroupRequest struct {
	GroupID string `json:"group_id"`
}

// LeaveGroupResponse reports an applied leave. Blocked requests fail with
// FailedPrecondition and the reasons in the error message.
type LeaveGroupResponse struct {
	Outcome string `json:"outcome"` // "left" or "group_deleted"
	Period  string `json:"period"`
	Balance string `json:"balance"`
}

type MealEntry struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	GroupID   string `json:"group_id"`
	Date      string `json:"date"`
	Breakfast int    `json:"breakfast"`
	Lunch     int    `json:"lunch"`
	Dinner    int    `json:"dinner"`
	Total     int    `json:"total"`
	UpdatedAt int64  `json:"updated_at"`
}

// RecordMealRequest with an empty UserID records the caller's own meals.
type RecordMealRequest struct {
	GroupID   string `json:"group_id"`
	UserID    string `json:"user_id,omitempty"`
	Date      string `json:"date"`
	Breakfast int    `json:"breakfast"`
	Lunch     int    `json:"lunch"`
	Dinner    int    `json:"dinner"`
}

type RecordMealResponse struct {
	Entry   *MealEntry `json:"entry"`
	Created bool       `json:"created"`
}

// MealSheetRow is one member's line on a day's meal sheet.
type MealSheetRow struct {
	UserID    string `json:"user_id"`
	Breakfast int    `json:"breakfast"`
	Lunch     int    `json:"lunch"`
	Dinner    int    `json:"dinner"`
}

type RecordMealSheetRequest struct {
	GroupID string          `json:"group_id"`
	Date    string          `json:"date"`
	Rows    []*MealSheetRow `json:"rows"`
}

type RecordMealSheetResponse struct {
	Entries []*MealEntry `json:"entries"`
}

type ListMealsRequest struct {
	GroupID string `json:"group_id"`
	Period  string `json:"period,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

type ListMealsResponse struct {
	Entries []*MealEntry `json:"entries"`
}

type GroceryExpense struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	GroupID   string `json:"group_id"`
	Date      string `json:"date"`
	Item      string `json:"item"`
	Quantity  string `json:"quantity,omitempty"`
	Cost      string `json:"cost"`
	UpdatedAt int64  `json:"updated_at"`
}

// RecordExpenseRequest with an empty UserID records the caller as payer.
type RecordExpenseRequest struct {
	GroupID  string `json:"group_id"`
	UserID   string `json:"user_id,omitempty"`
	Date     string `json:"date"`
	Item     string `json:"item"`
	Quantity string `json:"quantity,omitempty"`
	Cost     string `json:"cost"`
}

type RecordExpenseResponse struct {
	Expense *GroceryExpense `json:"expense"`
}

type UpdateExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
	Date      string `json:"date"`
	Item      string `json:"item"`
	Quantity  string `json:"quantity,omitempty"`
	Cost      string `json:"cost"`
}

type UpdateExpenseResponse struct {
	Expense *GroceryExpense `json:"expense"`
}

type ListExpensesRequest struct {
	GroupID string `json:"group_id"`
	Period  string `json:"period,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

type ListExpensesResponse struct {
	Expenses []*GroceryExpense `json:"expenses"`
}

type GroupSummary struct {
	GroupID           string `json:"group_id"`
	Period            string `json:"period"`
	TotalMealUnits    int    `json:"total_meal_units"`
	TotalGrocerySpend string `json:"total_grocery_spend"`
	CostPerMeal       string `json:"cost_per_meal"`
}

// MemberSummary is a member's position for a period. A positive balance
// means the group owes the member.
type MemberSummary struct {
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	Role           string `json:"role"`
	Period         string `json:"period"`
	TotalMealUnits int    `json:"total_meal_units"`
	Breakfasts     int    `json:"breakfasts"`
	Lunches        int    `json:"lunches"`
	Dinners        int    `json:"dinners"`
	TotalSpent     string `json:"total_spent"`
	TotalCost      string `json:"total_cost"`
	Balance        string `json:"balance"`
}

// Transfer is a suggested payment that would settle the period.
type Transfer struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     string `json:"amount"`
}

type GetGroupSummaryRequest struct {
	GroupID string `json:"group_id"`
	Period  string `json:"period,omitempty"`
}

type GetGroupSummaryResponse struct {
	Summary *GroupSummary `json:"summary"`
}

// GetMemberSummaryRequest with an empty UserID returns the caller's summary.
type GetMemberSummaryRequest struct {
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id,omitempty"`
	Period  string `json:"period,omitempty"`
}

type GetMemberSummaryResponse struct {
	Summary *MemberSummary `json:"summary"`
}

type ListMemberSummariesRequest struct {
	GroupID string `json:"group_id"`
	Period  string `json:"period,omitempty"`
}

type ListMemberSummariesResponse struct {
	Group     *GroupSummary    `json:"group"`
	Members   []*MemberSummary `json:"members"`
	Transfers []*Transfer      `json:"transfers"`
}
