// Package settlement decides whether a member may leave their group.
//
// The decision is a pure function of the group's size, the member's role and
// the member's balance for the current month; applying it (deleting the
// membership or the whole group) is left to the caller.
package settlement

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Outcome is the resolution of a leave request.
type Outcome string

const (
	// OutcomeGroupDeleted: the member was the only one, so the group goes.
	OutcomeGroupDeleted Outcome = "group_deleted"
	// OutcomeLeft: the membership is removed, ledger history stays.
	OutcomeLeft Outcome = "left"
	// OutcomeBlocked: the member must act first (see Reasons).
	OutcomeBlocked Outcome = "blocked"
)

// Reason explains why a leave request is blocked.
type Reason string

const (
	ReasonAdminTransferRequired Reason = "admin_transfer_required"
	ReasonNegativeBalance       Reason = "negative_balance"
)

// Message is the user-facing text for a blocking reason.
func (r Reason) Message() string {
	switch r {
	case ReasonAdminTransferRequired:
		return "transfer the admin role to another member to leave the group"
	case ReasonNegativeBalance:
		return "settle your unpaid balance first"
	default:
		return string(r)
	}
}

// Request is everything the policy looks at.
type Request struct {
	// MemberCount is the size of the group's current roster, requester included.
	MemberCount int

	// IsAdmin reports whether the requester is the group admin.
	IsAdmin bool

	// Balance is the requester's balance for the current month.
	Balance decimal.Decimal
}

// Decision is the policy's answer.
type Decision struct {
	Outcome Outcome

	// Reasons is non-empty only for OutcomeBlocked. For an admin the transfer
	// requirement always comes first.
	Reasons []Reason
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome != OutcomeBlocked
}

// Message joins the reasons' messages.
func (d Decision) Message() string {
	msgs := make([]string, len(d.Reasons))
	for i, r := range d.Reasons {
		msgs[i] = r.Message()
	}
	return strings.Join(msgs, "; ")
}

// Decide applies the leave rules:
//
//   - sole member: the group is deleted, whatever the balance
//   - admin of a larger group: blocked until the admin role is transferred;
//     a negative balance is reported as an additional reason
//   - other members: blocked while the balance is negative, otherwise they leave
//
// A zero balance (including the no-meals refund case where balance equals
// spend) never blocks.
func Decide(req Request) Decision {
	if req.MemberCount <= 1 {
		return Decision{Outcome: OutcomeGroupDeleted}
	}

	negative := req.Balance.IsNegative()

	if req.IsAdmin {
		reasons := []Reason{ReasonAdminTransferRequired}
		if negative {
			reasons = append(reasons, ReasonNegativeBalance)
		}
		return Decision{Outcome: OutcomeBlocked, Reasons: reasons}
	}

	if negative {
		return Decision{Outcome: OutcomeBlocked, Reasons: []Reason{ReasonNegativeBalance}}
	}
	return Decision{Outcome: OutcomeLeft}
}
