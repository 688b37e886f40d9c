package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/messbook/internal/models"
)

// Transfer is a suggested payment from a member who owes the group to a
// member the group owes.
type Transfer struct {
	From   string // User ID of the debtor
	To     string // User ID of the creditor
	Amount decimal.Decimal
}

// SuggestTransfers proposes payments that would bring every balance of the
// period to zero. Nothing is recorded; the list is informational.
//
// Algorithm:
//   - Split members into debtors (balance < 0) and creditors (balance > 0)
//   - Sort both by amount, largest first (ties by user ID for stable output)
//   - Greedily match the largest debt with the largest credit
//
// Balances only net to zero up to per-member rounding of the rate, so a
// residue under one cent per member may remain unmatched.
func SuggestTransfers(members []models.MemberPeriodSummary) []Transfer {
	type position struct {
		userID string
		amount decimal.Decimal // always positive
	}

	var debtors, creditors []position
	for _, m := range members {
		switch m.Balance.Sign() {
		case -1:
			debtors = append(debtors, position{m.UserID, m.Balance.Neg()})
		case 1:
			creditors = append(creditors, position{m.UserID, m.Balance})
		}
	}

	byAmount := func(list []position) func(i, j int) bool {
		return func(i, j int) bool {
			if c := list[i].amount.Cmp(list[j].amount); c != 0 {
				return c > 0
			}
			return list[i].userID < list[j].userID
		}
	}
	sort.Slice(debtors, byAmount(debtors))
	sort.Slice(creditors, byAmount(creditors))

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		// Amount to settle is the smaller of what is owed and what is due
		amount := decimal.Min(debtors[i].amount, creditors[j].amount)
		if amount.IsPositive() {
			transfers = append(transfers, Transfer{
				From:   debtors[i].userID,
				To:     creditors[j].userID,
				Amount: amount,
			})
		}

		debtors[i].amount = debtors[i].amount.Sub(amount)
		creditors[j].amount = creditors[j].amount.Sub(amount)

		if !debtors[i].amount.IsPositive() {
			i++
		}
		if !creditors[j].amount.IsPositive() {
			j++
		}
	}

	return transfers
}
