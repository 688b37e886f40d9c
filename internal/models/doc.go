// Package models defines the domain models for Messbook.
//
// # Stored facts
//
// The ledger stores only raw facts:
//   - User: a registered account
//   - Group: a household sharing meals and groceries, with exactly one admin
//   - Member: the membership of one user in one group (a user has at most one)
//   - MealEntry: breakfast/lunch/dinner counts of one member on one date
//   - GroceryExpense: a purchase paid by one member
//
// # Derived values
//
// GroupPeriodSummary and MemberPeriodSummary are computed per calendar month on
// every request and returned as values. They are never persisted and never
// written back onto the stored entities.
//
// # Conventions
//
//  1. Relationships use ID strings, not pointers
//  2. Dates are naive calendar dates (Date), months are Periods
//  3. Money is decimal.Decimal with two decimal places; stores keep integer cents
package models
