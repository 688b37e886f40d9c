package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// LedgerService records and lists meals and grocery expenses.
const LedgerServiceName = "LedgerService"

const (
	LedgerServiceRecordMealProcedure      = "/" + packageName + "." + LedgerServiceName + "/RecordMeal"
	LedgerServiceRecordMealSheetProcedure = "/" + packageName + "." + LedgerServiceName + "/RecordMealSheet"
	LedgerServiceListMealsProcedure       = "/" + packageName + "." + LedgerServiceName + "/ListMeals"
	LedgerServiceRecordExpenseProcedure   = "/" + packageName + "." + LedgerServiceName + "/RecordExpense"
	LedgerServiceUpdateExpenseProcedure   = "/" + packageName + "." + LedgerServiceName + "/UpdateExpense"
	LedgerServiceListExpensesProcedure    = "/" + packageName + "." + LedgerServiceName + "/ListExpenses"
)

// LedgerServiceHandler is implemented by the server side of LedgerService.
type LedgerServiceHandler interface {
	RecordMeal(context.Context, *connect.Request[RecordMealRequest]) (*connect.Response[RecordMealResponse], error)
	RecordMealSheet(context.Context, *connect.Request[RecordMealSheetRequest]) (*connect.Response[RecordMealSheetResponse], error)
	ListMeals(context.Context, *connect.Request[ListMealsRequest]) (*connect.Response[ListMealsResponse], error)
	RecordExpense(context.Context, *connect.Request[RecordExpenseRequest]) (*connect.Response[RecordExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
}

// NewLedgerServiceHandler returns the path prefix and handler to mount on a mux.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	return serviceHandler(servicePath(LedgerServiceName), map[string]*connect.Handler{
		LedgerServiceRecordMealProcedure:      unaryHandler(LedgerServiceRecordMealProcedure, svc.RecordMeal, opts),
		LedgerServiceRecordMealSheetProcedure: unaryHandler(LedgerServiceRecordMealSheetProcedure, svc.RecordMealSheet, opts),
		LedgerServiceListMealsProcedure:       unaryHandler(LedgerServiceListMealsProcedure, svc.ListMeals, opts),
		LedgerServiceRecordExpenseProcedure:   unaryHandler(LedgerServiceRecordExpenseProcedure, svc.RecordExpense, opts),
		LedgerServiceUpdateExpenseProcedure:   unaryHandler(LedgerServiceUpdateExpenseProcedure, svc.UpdateExpense, opts),
		LedgerServiceListExpensesProcedure:    unaryHandler(LedgerServiceListExpensesProcedure, svc.ListExpenses, opts),
	})
}

// LedgerServiceClient is a client for LedgerService.
type LedgerServiceClient interface {
	RecordMeal(context.Context, *connect.Request[RecordMealRequest]) (*connect.Response[RecordMealResponse], error)
	RecordMealSheet(context.Context, *connect.Request[RecordMealSheetRequest]) (*connect.Response[RecordMealSheetResponse], error)
	ListMeals(context.Context, *connect.Request[ListMealsRequest]) (*connect.Response[ListMealsResponse], error)
	RecordExpense(context.Context, *connect.Request[RecordExpenseRequest]) (*connect.Response[RecordExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
}

type ledgerServiceClient struct {
	recordMeal      *connect.Client[RecordMealRequest, RecordMealResponse]
	recordMealSheet *connect.Client[RecordMealSheetRequest, RecordMealSheetResponse]
	listMeals       *connect.Client[ListMealsRequest, ListMealsResponse]
	recordExpense   *connect.Client[RecordExpenseRequest, RecordExpenseResponse]
	updateExpense   *connect.Client[UpdateExpenseRequest, UpdateExpenseResponse]
	listExpenses    *connect.Client[ListExpensesRequest, ListExpensesResponse]
}

// NewLedgerServiceClient constructs a client for LedgerService at baseURL.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) LedgerServiceClient {
	return &ledgerServiceClient{
		recordMeal:      unaryClient[RecordMealRequest, RecordMealResponse](httpClient, baseURL, LedgerServiceRecordMealProcedure, opts),
		recordMealSheet: unaryClient[RecordMealSheetRequest, RecordMealSheetResponse](httpClient, baseURL, LedgerServiceRecordMealSheetProcedure, opts),
		listMeals:       unaryClient[ListMealsRequest, ListMealsResponse](httpClient, baseURL, LedgerServiceListMealsProcedure, opts),
		recordExpense:   unaryClient[RecordExpenseRequest, RecordExpenseResponse](httpClient, baseURL, LedgerServiceRecordExpenseProcedure, opts),
		updateExpense:   unaryClient[UpdateExpenseRequest, UpdateExpenseResponse](httpClient, baseURL, LedgerServiceUpdateExpenseProcedure, opts),
		listExpenses:    unaryClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL, LedgerServiceListExpensesProcedure, opts),
	}
}

func (c *ledgerServiceClient) RecordMeal(ctx context.Context, req *connect.Request[RecordMealRequest]) (*connect.Response[RecordMealResponse], error) {
	return c.recordMeal.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) RecordMealSheet(ctx context.Context, req *connect.Request[RecordMealSheetRequest]) (*connect.Response[RecordMealSheetResponse], error) {
	return c.recordMealSheet.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListMeals(ctx context.Context, req *connect.Request[ListMealsRequest]) (*connect.Response[ListMealsResponse], error) {
	return c.listMeals.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) RecordExpense(ctx context.Context, req *connect.Request[RecordExpenseRequest]) (*connect.Response[RecordExpenseResponse], error) {
	return c.recordExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}
