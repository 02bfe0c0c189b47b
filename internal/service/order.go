package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/smtech/caterer-api/internal/apperr"
	"github.com/smtech/caterer-api/internal/calc"
	"github.com/smtech/caterer-api/internal/database"
	"github.com/smtech/caterer-api/internal/enum"
	"github.com/smtech/caterer-api/internal/tenancy"
	"github.com/smtech/caterer-api/internal/workflow"
)

const maxOrderNumberRetries = 3

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	CountOrdersByNumberPrefix(ctx context.Context, arg database.CountOrdersByNumberPrefixParams) (int64, error)
	GetCustomer(ctx context.Context, arg database.GetCustomerParams) (database.Customer, error)
	GetEventType(ctx context.Context, arg database.GetEventTypeParams) (database.EventType, error)
	GetMenu(ctx context.Context, arg database.GetMenuParams) (database.Menu, error)
	GetUtility(ctx context.Context, arg database.GetUtilityParams) (database.Utility, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderIncludingDeleted(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrderDetails(ctx context.Context, arg database.UpdateOrderDetailsParams) (database.Order, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	SoftDeleteOrder(ctx context.Context, arg database.SoftDeleteParams) error
	RestoreOrder(ctx context.Context, arg database.RestoreParams) (database.Order, error)
	CreateOrderMenuItem(ctx context.Context, arg database.CreateOrderMenuItemParams) (database.OrderMenuItem, error)
	ListOrderMenuItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderMenuItem, error)
	DeleteOrderMenuItem(ctx context.Context, arg database.DeleteOrderLineParams) error
	CreateOrderUtility(ctx context.Context, arg database.CreateOrderUtilityParams) (database.OrderUtility, error)
	ListOrderUtilities(ctx context.Context, orderID uuid.UUID) ([]database.OrderUtility, error)
	DeleteOrderUtility(ctx context.Context, arg database.DeleteOrderLineParams) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderService owns the order lifecycle: creation, draft edits, workflow
// transitions and the totals reconciliation that rides on each of them.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// OrderResult is an order with its owned line items.
type OrderResult struct {
	Order     database.Order
	MenuItems []database.OrderMenuItem
	Utilities []database.OrderUtility
}

// OrderLineRequest is one requested line: a catalog id plus a quantity.
type OrderLineRequest struct {
	ItemID   string
	Quantity int32
}

// CreateOrderRequest is the validated input for creating a DRAFT order.
// Identity fields (tenant, user) come from the caller's token, never the body.
type CreateOrderRequest struct {
	TenantID  uuid.UUID
	CreatedBy uuid.UUID

	CustomerID      string
	EventTypeID     string
	EventDate       string // YYYY-MM-DD
	EventTime       string // HH:MM, optional
	VenueName       string
	VenueAddress    string
	GuestCount      int32
	DiscountPercent string
	TaxPercent      string
	Notes           string

	MenuItems []OrderLineRequest
	Utilities []OrderLineRequest
}

// UpdateOrderRequest carries a full replacement of the editable fields of a
// DRAFT order. Line items are managed through their own operations.
type UpdateOrderRequest struct {
	TenantID  uuid.UUID
	OrderID   uuid.UUID
	Version   int64
	UpdatedBy uuid.UUID

	CustomerID      string
	EventTypeID     string
	EventDate       string
	EventTime       string
	VenueName       string
	VenueAddress    string
	GuestCount      int32
	DiscountPercent string
	TaxPercent      string
	Notes           string
}

// WorkflowRequest identifies the order a transition acts on. Version is the
// version the caller last read; a mismatch at write time is a conflict.
// Reason is required for reject and cancel.
type WorkflowRequest struct {
	TenantID uuid.UUID
	OrderID  uuid.UUID
	Version  int64
	UserID   uuid.UUID
	Reason   string
}

// --- Create ---

// Create validates the request, snapshots current catalog prices into line
// items, computes totals and inserts the DRAFT order atomically. Retries on
// order number collisions from concurrent creations.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	if req.EventDate == "" {
		return nil, &apperr.Validation{Field: "event_date", Message: "required"}
	}
	if req.GuestCount < 0 {
		return nil, &apperr.Validation{Field: "guest_count", Message: "must not be negative"}
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if database.UniqueViolation(err, "orders_number_key") {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *OrderService) createTx(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, &apperr.Validation{Field: "customer_id", Message: "invalid uuid"}
	}
	if _, err := store.GetCustomer(ctx, database.GetCustomerParams{ID: customerID, TenantID: req.TenantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.NotFound{Entity: "customer", Field: "id", Value: req.CustomerID}
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	eventTypeID, err := uuid.Parse(req.EventTypeID)
	if err != nil {
		return nil, &apperr.Validation{Field: "event_type_id", Message: "invalid uuid"}
	}
	if _, err := store.GetEventType(ctx, database.GetEventTypeParams{ID: eventTypeID, TenantID: req.TenantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.NotFound{Entity: "event type", Field: "id", Value: req.EventTypeID}
		}
		return nil, fmt.Errorf("get event type: %w", err)
	}

	eventDate, err := parseEventDate(req.EventDate)
	if err != nil {
		return nil, err
	}
	eventTime, err := parseEventTime(req.EventTime)
	if err != nil {
		return nil, err
	}

	discountPercent, err := parsePercent("discount_percent", req.DiscountPercent)
	if err != nil {
		return nil, err
	}
	taxPercent, err := parsePercent("tax_percent", req.TaxPercent)
	if err != nil {
		return nil, err
	}

	// Snapshot catalog prices into the lines. Later catalog edits never touch
	// an existing order.
	menuParams, menuLines, err := s.resolveMenuLines(ctx, store, req.TenantID, req.MenuItems)
	if err != nil {
		return nil, err
	}
	utilityParams, utilityLines, err := s.resolveUtilityLines(ctx, store, req.TenantID, req.Utilities)
	if err != nil {
		return nil, err
	}

	totals, err := calc.OrderTotals(menuLines, utilityLines, discountPercent, taxPercent)
	if err != nil {
		return nil, calcToValidation(err)
	}
	balance := calc.Balance(totals.GrandTotal, decimal.Zero)

	orderNumber, err := s.nextNumber(ctx, store, req.TenantID, "ORD")
	if err != nil {
		return nil, err
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TenantID:        req.TenantID,
		OrderNumber:     orderNumber,
		CustomerID:      customerID,
		EventTypeID:     eventTypeID,
		EventDate:       eventDate,
		EventTime:       eventTime,
		VenueName:       textOrNull(req.VenueName),
		VenueAddr:       textOrNull(req.VenueAddress),
		GuestCount:      req.GuestCount,
		MenuSubtotal:    database.DecimalToNumeric(totals.MenuSubtotal),
		UtilitySubtotal: database.DecimalToNumeric(totals.UtilitySubtotal),
		Subtotal:        database.DecimalToNumeric(totals.Subtotal),
		DiscountPercent: database.DecimalToNumeric(discountPercent),
		DiscountAmount:  database.DecimalToNumeric(totals.DiscountAmount),
		TaxPercent:      database.DecimalToNumeric(taxPercent),
		TaxAmount:       database.DecimalToNumeric(totals.TaxAmount),
		TotalAmount:     database.DecimalToNumeric(totals.GrandTotal),
		AdvanceAmount:   database.DecimalToNumeric(decimal.Zero),
		BalanceAmount:   database.DecimalToNumeric(balance),
		Status:          enum.OrderStatusDraft,
		Notes:           textOrNull(req.Notes),
		CreatedBy:       pgtype.UUID{Bytes: req.CreatedBy, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var menuItems []database.OrderMenuItem
	for _, p := range menuParams {
		p.OrderID = order.ID
		item, err := store.CreateOrderMenuItem(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("create order menu item: %w", err)
		}
		menuItems = append(menuItems, item)
	}

	var utilities []database.OrderUtility
	for _, p := range utilityParams {
		p.OrderID = order.ID
		item, err := store.CreateOrderUtility(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("create order utility: %w", err)
		}
		utilities = append(utilities, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{Order: order, MenuItems: menuItems, Utilities: utilities}, nil
}

// --- Read ---

func (s *OrderService) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	result, err := s.load(ctx, store, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

func (s *OrderService) load(ctx context.Context, store OrderStore, tenantID, orderID uuid.UUID) (*OrderResult, error) {
	order, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, TenantID: tenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.NotFound{Entity: "order", Field: "id", Value: orderID.String()}
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	// Children below are fetched by order id alone, so verify the parent's
	// tenant before crossing the boundary.
	if err := tenancy.Check(tenantID, order.TenantID); err != nil {
		return nil, err
	}
	menuItems, err := store.ListOrderMenuItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order menu items: %w", err)
	}
	utilities, err := store.ListOrderUtilities(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order utilities: %w", err)
	}
	return &OrderResult{Order: order, MenuItems: menuItems, Utilities: utilities}, nil
}

// --- Draft edits ---

// Update replaces the editable fields of a DRAFT order and recomputes totals
// with the new discount and tax percentages.
func (s *OrderService) Update(ctx context.Context, req UpdateOrderRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, database.GetOrderParams{ID: req.OrderID, TenantID: req.TenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.NotFound{Entity: "order", Field: "id", Value: req.OrderID.String()}
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !workflow.Editable(order.Status) {
		return nil, &apperr.InvalidOperation{Message: fmt.Sprintf("cannot modify order in %s status", order.Status)}
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, &apperr.Validation{Field: "customer_id", Message: "invalid uuid"}
	}
	if _, err := store.GetCustomer(ctx, database.GetCustomerParams{ID: customerID, TenantID: req.TenantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.NotFound{Entity: "customer", Field: "id", Value: req.CustomerID}
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	eventTypeID, err := uuid.Parse(req.EventTypeID)
	if err != nil {
		return nil, &apperr.Validation{Field: "event_type_id", Message: "invalid uuid"}
	}
	if _, err := store.GetEventType(ctx, database.GetEventTypeParams{ID: eventTypeID, TenantID: req.TenantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.NotFound{Entity: "event type", Field: "id", Value: req.EventTypeID}
		}
		return nil, fmt.Errorf("get event type: %w", err)
	}
	if req.GuestCount < 0 {
		return nil, &apperr.Validation{Field: "guest_count", Message: "must not be negative"}
	}

	eventDate, err := parseEventDate(req.EventDate)
	if err != nil {
		return nil, err
	}
	eventTime, err := parseEventTime(req.EventTime)
	if err != nil {
		return nil, err
	}
	discountPercent, err := parsePercent("discount_percent", req.DiscountPercent)
	if err != nil {
		return nil, err
	}
	taxPercent, err := parsePercent("tax_percent", req.TaxPercent)
	if err != nil {
		return nil, err
	}

	totals, advance, err := s.recalc(ctx, store, order, discountPercent, taxPercent)
	if err != nil {
		return nil, err
	}

	updated, err := store.UpdateOrderDetails(ctx, database.UpdateOrderDetailsParams{
		ID:              order.ID,
		TenantID:        req.TenantID,
		Version:         req.Version,
		CustomerID:      customerID,
		EventTypeID:     eventTypeID,
		EventDate:       eventDate,
		EventTime:       eventTime,
		VenueName:       textOrNull(req.VenueName),
		VenueAddr:       textOrNull(req.VenueAddress),
		GuestCount:      req.GuestCount,
		Notes:           textOrNull(req.Notes),
		MenuSubtotal:    database.DecimalToNumeric(totals.MenuSubtotal),
		UtilitySubtotal: database.DecimalToNumeric(totals.UtilitySubtotal),
		Subtotal:        database.DecimalToNumeric(totals.Subtotal),
		DiscountPercent: database.DecimalToNumeric(discountPercent),
		DiscountAmount:  database.DecimalToNumeric(totals.DiscountAmount),
		TaxPercent:      database.DecimalToNumeric(taxPercent),
		TaxAmount:       database.DecimalToNumeric(totals.TaxAmount),
		TotalAmount:     database.DecimalToNumeric(totals.GrandTotal),
		AdvanceAmount:   database.DecimalToNumeric(advance),
		BalanceAmount:   database.DecimalToNumeric(calc.Balance(totals.GrandTotal, advance)),
		UpdatedBy:       pgtype.UUID{Bytes: req.UpdatedBy, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.Conflict{Entity: "order", ID: order.ID}
		}
		return nil, fmt.Errorf("update order: %w", err)
	}

	result, err := s.load(ctx, store, req.TenantID, updated.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// LineMutationRequest targets one line item on a DRAFT order.
type LineMutationRequest struct {
	TenantID  uuid.UUID
	OrderID   uuid.UUID
	Version   int64
	UpdatedBy uuid.UUID
	ItemID    string // catalog id on add, line id on remove
	Quantity  int32
}

// AddMenuItem appends a line to a DRAFT order at the menu's current price,
// then recomputes and persists the totals under the caller's version.
func (s *OrderService) AddMenuItem(ctx context.Context, req LineMutationRequest) (*OrderResult, error) {
	return s.mutateLines(ctx, req, func(ctx context.Context, store OrderStore, order database.Order) error {
		menuID, err := uuid.Parse(req.ItemID)
		if err != nil {
			return &apperr.Validation{Field: "menu_id", Message: "invalid uuid"}
		}
		menu, err := store.GetMenu(ctx, database.GetMenuParams{ID: menuID, TenantID: req.TenantID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &apperr.NotFound{Entity: "menu", Field: "id", Value: req.ItemID}
			}
			return fmt.Errorf("get menu: %w", err)
		}
		unitPrice := database.NumericToDecimal(menu.UnitPrice)
		subtotal, err := calc.Subtotal(req.Quantity, unitPrice)
		if err != nil {
			return &apperr.Validation{Field: "quantity", Message: "must be at least 1"}
		}
		_, err = store.CreateOrderMenuItem(ctx, database.CreateOrderMenuItemParams{
			OrderID:   order.ID,
			MenuID:    menuID,
			Quantity:  req.Quantity,
			UnitPrice: database.DecimalToNumeric(unitPrice),
			Subtotal:  database.DecimalToNumeric(subtotal),
		})
		if err != nil {
			return fmt.Errorf("create order menu item: %w", err)
		}
		return nil
	})
}

func (s *OrderService) RemoveMenuItem(ctx context.Context, req LineMutationRequest) (*OrderResult, error) {
	return s.mutateLines(ctx, req, func(ctx context.Context, store OrderStore, order database.Order) error {
		lineID, err := uuid.Parse(req.ItemID)
		if err != nil {
			return &apperr.Validation{Field: "item_id", Message: "invalid uuid"}
		}
		if err := store.DeleteOrderMenuItem(ctx, database.DeleteOrderLineParams{ID: lineID, OrderID: order.ID}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &apperr.NotFound{Entity: "order menu item", Field: "id", Value: req.ItemID}
			}
			return fmt.Errorf("delete order menu item: %w", err)
		}
		return nil
	})
}

func (s *OrderService) AddUtility(ctx context.Context, req LineMutationRequest) (*OrderResult, error) {
	return s.mutateLines(ctx, req, func(ctx context.Context, store OrderStore, order database.Order) error {
		utilityID, err := uuid.Parse(req.ItemID)
		if err != nil {
			return &apperr.Validation{Field: "utility_id", Message: "invalid uuid"}
		}
		utility, err := store.GetUtility(ctx, database.GetUtilityParams{ID: utilityID, TenantID: req.TenantID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &apperr.NotFound{Entity: "utility", Field: "id", Value: req.ItemID}
			}
			return fmt.Errorf("get utility: %w", err)
		}
		unitPrice := database.NumericToDecimal(utility.UnitPrice)
		subtotal, err := calc.Subtotal(req.Quantity, unitPrice)
		if err != nil {
			return &apperr.Validation{Field: "quantity", Message: "must be at least 1"}
		}
		_, err = store.CreateOrderUtility(ctx, database.CreateOrderUtilityParams{
			OrderID:   order.ID,
			UtilityID: utilityID,
			Quantity:  req.Quantity,
			UnitPrice: database.DecimalToNumeric(unitPrice),
			Subtotal:  database.DecimalToNumeric(subtotal),
		})
		if err != nil {
			return fmt.Errorf("create order utility: %w", err)
		}
		return nil
	})
}

func (s *OrderService) RemoveUtility(ctx context.Context, req LineMutationRequest) (*OrderResult, error) {
	return s.mutateLines(ctx, req, func(ctx context.Context, store OrderStore, order database.Order) error {
		lineID, err := uuid.Parse(req.ItemID)
		if err != nil {
			return &apperr.Validation{Field: "item_id", Message: "invalid uuid"}
		}
		if err := store.DeleteOrderUtility(ctx, database.DeleteOrderLineParams{ID: lineID, OrderID: order.ID}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &apperr.NotFound{Entity: "order utility", Field: "id", Value: req.ItemID}
			}
			return fmt.Errorf("delete order utility: %w", err)
		}
		return nil
	})
}

// mutateLines runs a child mutation on a DRAFT order, then recomputes totals
// from the surviving children and writes them under the caller's version.
// Child writes and the parent totals commit or roll back together.
func (s *OrderService) mutateLines(ctx context.Context, req LineMutationRequest, mutate func(context.Context, OrderStore, database.Order) error) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, database.GetOrderParams{ID: req.OrderID, TenantID: req.TenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.NotFound{Entity: "order", Field: "id", Value: req.OrderID.String()}
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !workflow.Editable(order.Status) {
		return nil, &apperr.InvalidOperation{Message: fmt.Sprintf("cannot modify order in %s status", order.Status)}
	}

	if err := mutate(ctx, store, order); err != nil {
		return nil, err
	}

	totals, advance, err := s.recalc(ctx, store, order,
		database.NumericToDecimal(order.DiscountPercent), database.NumericToDecimal(order.TaxPercent))
	if err != nil {
		return nil, err
	}

	updated, err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:              order.ID,
		TenantID:        req.TenantID,
		Version:         req.Version,
		MenuSubtotal:    database.DecimalToNumeric(totals.MenuSubtotal),
		UtilitySubtotal: database.DecimalToNumeric(totals.UtilitySubtotal),
		Subtotal:        database.DecimalToNumeric(totals.Subtotal),
		DiscountAmount:  database.DecimalToNumeric(totals.DiscountAmount),
		TaxAmount:       database.DecimalToNumeric(totals.TaxAmount),
		TotalAmount:     database.DecimalToNumeric(totals.GrandTotal),
		AdvanceAmount:   database.DecimalToNumeric(advance),
		BalanceAmount:   database.DecimalToNumeric(calc.Balance(totals.GrandTotal, advance)),
		UpdatedBy:       pgtype.UUID{Bytes: req.UpdatedBy, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.Conflict{Entity: "order", ID: order.ID}
		}
		return nil, fmt.Errorf("update order totals: %w", err)
	}

	result, err := s.load(ctx, store, req.TenantID, updated.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// --- Workflow transitions ---

// Submit moves DRAFT to SUBMITTED after the completeness guards pass: at
// least one menu item, a positive guest count and an event date not in the
// past.
func (s *OrderService) Submit(ctx context.Context, req WorkflowRequest) (*OrderResult, error) {
	return s.transition(ctx, req, "submit", enum.OrderStatusSubmitted,
		func(order database.Order, menuItems []database.OrderMenuItem) error {
			if len(menuItems) == 0 {
				return &apperr.InvalidOperation{Message: "order has no menu items"}
			}
			if order.GuestCount < 1 {
				return &apperr.InvalidOperation{Message: "guest count must be at least 1"}
			}
			if order.EventDate.Valid && order.EventDate.Time.Before(startOfToday()) {
				return &apperr.InvalidOperation{Message: "event date is in the past"}
			}
			return nil
		},
		func(now pgtype.Timestamptz, by pgtype.UUID, arg *database.UpdateOrderStatusParams) {
			arg.SubmittedAt, arg.SubmittedBy = now, by
		})
}

func (s *OrderService) Approve(ctx context.Context, req WorkflowRequest) (*OrderResult, error) {
	return s.transition(ctx, req, "approve", enum.OrderStatusApproved, nil,
		func(now pgtype.Timestamptz, by pgtype.UUID, arg *database.UpdateOrderStatusParams) {
			arg.ApprovedAt, arg.ApprovedBy = now, by
		})
}

// Reject sends a SUBMITTED or APPROVED order back to DRAFT for rework.
// The recorded reason is what the requester sees.
func (s *OrderService) Reject(ctx context.Context, req WorkflowRequest) (*OrderResult, error) {
	if req.Reason == "" {
		return nil, &apperr.Validation{Field: "reason", Message: "required"}
	}
	return s.transition(ctx, req, "reject", enum.OrderStatusDraft,
		func(order database.Order, _ []database.OrderMenuItem) error {
			if !workflow.Rejectable(order.Status) {
				return apperr.InvalidTransition("reject", order.Status)
			}
			return nil
		},
		func(now pgtype.Timestamptz, by pgtype.UUID, arg *database.UpdateOrderStatusParams) {
			arg.RejectedAt, arg.RejectedBy = now, by
			arg.RejectionReason = pgtype.Text{String: req.Reason, Valid: true}
		})
}

func (s *OrderService) StartProgress(ctx context.Context, req WorkflowRequest) (*OrderResult, error) {
	return s.transition(ctx, req, "start", enum.OrderStatusInProgress, nil, nil)
}

func (s *OrderService) Complete(ctx context.Context, req WorkflowRequest) (*OrderResult, error) {
	return s.transition(ctx, req, "complete", enum.OrderStatusCompleted, nil,
		func(now pgtype.Timestamptz, by pgtype.UUID, arg *database.UpdateOrderStatusParams) {
			arg.CompletedAt, arg.CompletedBy = now, by
		})
}

func (s *OrderService) Cancel(ctx context.Context, req WorkflowRequest) (*OrderResult, error) {
	if req.Reason == "" {
		return nil, &apperr.Validation{Field: "reason", Message: "required"}
	}
	return s.transition(ctx, req, "cancel", enum.OrderStatusCancelled, nil,
		func(now pgtype.Timestamptz, by pgtype.UUID, arg *database.UpdateOrderStatusParams) {
			arg.CancelledAt, arg.CancelledBy = now, by
			arg.CancellationReason = pgtype.Text{String: req.Reason, Valid: true}
		})
}

// transition runs one workflow move: legality check, optional guard,
// recomputed totals and the stamp for this transition, all under the
// caller's version in one transaction.
func (s *OrderService) transition(
	ctx context.Context,
	req WorkflowRequest,
	op, target string,
	guard func(database.Order, []database.OrderMenuItem) error,
	stamp func(pgtype.Timestamptz, pgtype.UUID, *database.UpdateOrderStatusParams),
) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, database.GetOrderParams{ID: req.OrderID, TenantID: req.TenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.NotFound{Entity: "order", Field: "id", Value: req.OrderID.String()}
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !workflow.CanTransition(order.Status, target) {
		return nil, apperr.InvalidTransition(op, order.Status)
	}

	menuItems, err := store.ListOrderMenuItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order menu items: %w", err)
	}
	if guard != nil {
		if err := guard(order, menuItems); err != nil {
			return nil, err
		}
	}

	totals, advance, err := s.recalc(ctx, store, order,
		database.NumericToDecimal(order.DiscountPercent), database.NumericToDecimal(order.TaxPercent))
	if err != nil {
		return nil, err
	}

	arg := database.UpdateOrderStatusParams{
		ID:              order.ID,
		TenantID:        req.TenantID,
		Version:         req.Version,
		Status:          target,
		MenuSubtotal:    database.DecimalToNumeric(totals.MenuSubtotal),
		UtilitySubtotal: database.DecimalToNumeric(totals.UtilitySubtotal),
		Subtotal:        database.DecimalToNumeric(totals.Subtotal),
		DiscountAmount:  database.DecimalToNumeric(totals.DiscountAmount),
		TaxAmount:       database.DecimalToNumeric(totals.TaxAmount),
		TotalAmount:     database.DecimalToNumeric(totals.GrandTotal),
		AdvanceAmount:   database.DecimalToNumeric(advance),
		BalanceAmount:   database.DecimalToNumeric(calc.Balance(totals.GrandTotal, advance)),
		UpdatedBy:       pgtype.UUID{Bytes: req.UserID, Valid: true},
	}
	if stamp != nil {
		now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
		by := pgtype.UUID{Bytes: req.UserID, Valid: true}
		stamp(now, by, &arg)
	}

	updated, err := store.UpdateOrderStatus(ctx, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.Conflict{Entity: "order", ID: order.ID}
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	result, err := s.load(ctx, store, req.TenantID, updated.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// --- Clone ---

// CloneRequest asks for a fresh DRAFT copy of an existing order.
type CloneRequest struct {
	TenantID  uuid.UUID
	OrderID   uuid.UUID
	CreatedBy uuid.UUID
	EventDate string // optional new date; defaults to the source's
}

// Clone copies an order of any status into a new DRAFT with a fresh number.
// Line items keep the source's snapshotted prices; payments and workflow
// history do not carry over.
func (s *OrderService) Clone(ctx context.Context, req CloneRequest) (*OrderResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.cloneTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if database.UniqueViolation(err, "orders_number_key") {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *OrderService) cloneTx(ctx context.Context, req CloneRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	src, err := s.load(ctx, store, req.TenantID, req.OrderID)
	if err != nil {
		return nil, err
	}

	eventDate := src.Order.EventDate
	if req.EventDate != "" {
		eventDate, err = parseEventDate(req.EventDate)
		if err != nil {
			return nil, err
		}
	}

	var menuLines, utilityLines []calc.LineItem
	for _, it := range src.MenuItems {
		menuLines = append(menuLines, calc.LineItem{Quantity: it.Quantity, UnitPrice: database.NumericToDecimal(it.UnitPrice)})
	}
	for _, it := range src.Utilities {
		utilityLines = append(utilityLines, calc.LineItem{Quantity: it.Quantity, UnitPrice: database.NumericToDecimal(it.UnitPrice)})
	}

	discountPercent := database.NumericToDecimal(src.Order.DiscountPercent)
	taxPercent := database.NumericToDecimal(src.Order.TaxPercent)
	totals, err := calc.OrderTotals(menuLines, utilityLines, discountPercent, taxPercent)
	if err != nil {
		return nil, calcToValidation(err)
	}

	orderNumber, err := s.nextNumber(ctx, store, req.TenantID, "ORD")
	if err != nil {
		return nil, err
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TenantID:        req.TenantID,
		OrderNumber:     orderNumber,
		CustomerID:      src.Order.CustomerID,
		EventTypeID:     src.Order.EventTypeID,
		EventDate:       eventDate,
		EventTime:       src.Order.EventTime,
		VenueName:       src.Order.VenueName,
		VenueAddr:       src.Order.VenueAddr,
		GuestCount:      src.Order.GuestCount,
		MenuSubtotal:    database.DecimalToNumeric(totals.MenuSubtotal),
		UtilitySubtotal: database.DecimalToNumeric(totals.UtilitySubtotal),
		Subtotal:        database.DecimalToNumeric(totals.Subtotal),
		DiscountPercent: database.DecimalToNumeric(discountPercent),
		DiscountAmount:  database.DecimalToNumeric(totals.DiscountAmount),
		TaxPercent:      database.DecimalToNumeric(taxPercent),
		TaxAmount:       database.DecimalToNumeric(totals.TaxAmount),
		TotalAmount:     database.DecimalToNumeric(totals.GrandTotal),
		AdvanceAmount:   database.DecimalToNumeric(decimal.Zero),
		BalanceAmount:   database.DecimalToNumeric(totals.GrandTotal),
		Status:          enum.OrderStatusDraft,
		Notes:           src.Order.Notes,
		CreatedBy:       pgtype.UUID{Bytes: req.CreatedBy, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var menuItems []database.OrderMenuItem
	for _, it := range src.MenuItems {
		item, err := store.CreateOrderMenuItem(ctx, database.CreateOrderMenuItemParams{
			OrderID:   order.ID,
			MenuID:    it.MenuID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
		if err != nil {
			return nil, fmt.Errorf("create order menu item: %w", err)
		}
		menuItems = append(menuItems, item)
	}
	var utilities []database.OrderUtility
	for _, it := range src.Utilities {
		item, err := store.CreateOrderUtility(ctx, database.CreateOrderUtilityParams{
			OrderID:   order.ID,
			UtilityID: it.UtilityID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
		if err != nil {
			return nil, fmt.Errorf("create order utility: %w", err)
		}
		utilities = append(utilities, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &OrderResult{Order: order, MenuItems: menuItems, Utilities: utilities}, nil
}

// --- Soft deletion ---

func (s *OrderService) SoftDelete(ctx context.Context, req WorkflowRequest) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	err = store.SoftDeleteOrder(ctx, database.SoftDeleteParams{
		ID:        req.OrderID,
		TenantID:  req.TenantID,
		Version:   req.Version,
		UpdatedBy: pgtype.UUID{Bytes: req.UserID, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.classifyMiss(ctx, store, req.TenantID, req.OrderID)
		}
		return fmt.Errorf("soft delete order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *OrderService) Restore(ctx context.Context, req WorkflowRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	order, err := store.RestoreOrder(ctx, database.RestoreParams{
		ID:        req.OrderID,
		TenantID:  req.TenantID,
		UpdatedBy: pgtype.UUID{Bytes: req.UserID, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.NotFound{Entity: "order", Field: "id", Value: req.OrderID.String()}
		}
		return nil, fmt.Errorf("restore order: %w", err)
	}

	result, err := s.load(ctx, store, req.TenantID, order.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// classifyMiss decides whether a zero-row CAS write was a stale version or a
// missing row, by probing without the version predicate.
func (s *OrderService) classifyMiss(ctx context.Context, store OrderStore, tenantID, orderID uuid.UUID) error {
	_, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, TenantID: tenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &apperr.NotFound{Entity: "order", Field: "id", Value: orderID.String()}
		}
		return fmt.Errorf("get order: %w", err)
	}
	return &apperr.Conflict{Entity: "order", ID: orderID}
}

// --- Helpers ---

// recalc recomputes totals from the order's current children. Advance is
// whatever the row carries; only the payment service moves it.
func (s *OrderService) recalc(ctx context.Context, store OrderStore, order database.Order, discountPercent, taxPercent decimal.Decimal) (calc.Totals, decimal.Decimal, error) {
	menuItems, err := store.ListOrderMenuItems(ctx, order.ID)
	if err != nil {
		return calc.Totals{}, decimal.Zero, fmt.Errorf("list order menu items: %w", err)
	}
	utilities, err := store.ListOrderUtilities(ctx, order.ID)
	if err != nil {
		return calc.Totals{}, decimal.Zero, fmt.Errorf("list order utilities: %w", err)
	}

	var menuLines, utilityLines []calc.LineItem
	for _, it := range menuItems {
		menuLines = append(menuLines, calc.LineItem{Quantity: it.Quantity, UnitPrice: database.NumericToDecimal(it.UnitPrice)})
	}
	for _, it := range utilities {
		utilityLines = append(utilityLines, calc.LineItem{Quantity: it.Quantity, UnitPrice: database.NumericToDecimal(it.UnitPrice)})
	}

	totals, err := calc.OrderTotals(menuLines, utilityLines, discountPercent, taxPercent)
	if err != nil {
		return calc.Totals{}, decimal.Zero, calcToValidation(err)
	}
	return totals, database.NumericToDecimal(order.AdvanceAmount), nil
}

func (s *OrderService) resolveMenuLines(ctx context.Context, store OrderStore, tenantID uuid.UUID, reqs []OrderLineRequest) ([]database.CreateOrderMenuItemParams, []calc.LineItem, error) {
	var params []database.CreateOrderMenuItemParams
	var lines []calc.LineItem
	for i, r := range reqs {
		menuID, err := uuid.Parse(r.ItemID)
		if err != nil {
			return nil, nil, &apperr.Validation{Field: fmt.Sprintf("menu_items[%d].menu_id", i), Message: "invalid uuid"}
		}
		menu, err := store.GetMenu(ctx, database.GetMenuParams{ID: menuID, TenantID: tenantID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, &apperr.NotFound{Entity: "menu", Field: "id", Value: r.ItemID}
			}
			return nil, nil, fmt.Errorf("get menu: %w", err)
		}
		unitPrice := database.NumericToDecimal(menu.UnitPrice)
		subtotal, err := calc.Subtotal(r.Quantity, unitPrice)
		if err != nil {
			return nil, nil, &apperr.Validation{Field: fmt.Sprintf("menu_items[%d].quantity", i), Message: "must be at least 1"}
		}
		params = append(params, database.CreateOrderMenuItemParams{
			MenuID:    menuID,
			Quantity:  r.Quantity,
			UnitPrice: database.DecimalToNumeric(unitPrice),
			Subtotal:  database.DecimalToNumeric(subtotal),
		})
		lines = append(lines, calc.LineItem{Quantity: r.Quantity, UnitPrice: unitPrice})
	}
	return params, lines, nil
}

func (s *OrderService) resolveUtilityLines(ctx context.Context, store OrderStore, tenantID uuid.UUID, reqs []OrderLineRequest) ([]database.CreateOrderUtilityParams, []calc.LineItem, error) {
	var params []database.CreateOrderUtilityParams
	var lines []calc.LineItem
	for i, r := range reqs {
		utilityID, err := uuid.Parse(r.ItemID)
		if err != nil {
			return nil, nil, &apperr.Validation{Field: fmt.Sprintf("utilities[%d].utility_id", i), Message: "invalid uuid"}
		}
		utility, err := store.GetUtility(ctx, database.GetUtilityParams{ID: utilityID, TenantID: tenantID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, &apperr.NotFound{Entity: "utility", Field: "id", Value: r.ItemID}
			}
			return nil, nil, fmt.Errorf("get utility: %w", err)
		}
		unitPrice := database.NumericToDecimal(utility.UnitPrice)
		subtotal, err := calc.Subtotal(r.Quantity, unitPrice)
		if err != nil {
			return nil, nil, &apperr.Validation{Field: fmt.Sprintf("utilities[%d].quantity", i), Message: "must be at least 1"}
		}
		params = append(params, database.CreateOrderUtilityParams{
			UtilityID: utilityID,
			Quantity:  r.Quantity,
			UnitPrice: database.DecimalToNumeric(unitPrice),
			Subtotal:  database.DecimalToNumeric(subtotal),
		})
		lines = append(lines, calc.LineItem{Quantity: r.Quantity, UnitPrice: unitPrice})
	}
	return params, lines, nil
}

// nextNumber builds the next sequential document number for the tenant and
// day, e.g. ORD-20250115-0001. Concurrent callers may race to the same
// number; the unique index plus the caller's retry loop resolve it.
func (s *OrderService) nextNumber(ctx context.Context, store OrderStore, tenantID uuid.UUID, kind string) (string, error) {
	prefix := fmt.Sprintf("%s-%s-", kind, time.Now().Format("20060102"))
	count, err := store.CountOrdersByNumberPrefix(ctx, database.CountOrdersByNumberPrefixParams{
		TenantID: tenantID,
		Prefix:   prefix,
	})
	if err != nil {
		return "", fmt.Errorf("count orders by prefix: %w", err)
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func parseEventDate(s string) (pgtype.Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return pgtype.Date{}, &apperr.Validation{Field: "event_date", Message: "must be YYYY-MM-DD"}
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

func parseEventTime(s string) (pgtype.Time, error) {
	if s == "" {
		return pgtype.Time{}, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return pgtype.Time{}, &apperr.Validation{Field: "event_time", Message: "must be HH:MM"}
	}
	micros := int64(t.Hour())*3600*1e6 + int64(t.Minute())*60*1e6
	return pgtype.Time{Microseconds: micros, Valid: true}, nil
}

func parsePercent(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &apperr.Validation{Field: field, Message: "invalid number"}
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, &apperr.Validation{Field: field, Message: "must be between 0 and 100"}
	}
	return d, nil
}

func calcToValidation(err error) error {
	switch {
	case errors.Is(err, calc.ErrInvalidPercent):
		return &apperr.Validation{Field: "percent", Message: "must be between 0 and 100"}
	case errors.Is(err, calc.ErrInvalidAmount):
		return &apperr.Validation{Field: "quantity", Message: "must be at least 1"}
	default:
		return err
	}
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
