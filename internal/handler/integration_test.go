//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/smtech/caterer-api/internal/config"
	"github.com/smtech/caterer-api/internal/database"
	"github.com/smtech/caterer-api/internal/router"
	"github.com/smtech/caterer-api/internal/ws"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

// TestIntegrationFlow exercises the full API lifecycle against a real
// PostgreSQL database: bootstrap a tenant, build a catalog, walk an order
// through the workflow and reconcile its payments.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:        "8082",
		DatabaseURL: connStr,
		JWTSecret:   "integration-test-secret",
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// NOTE: hub.Run() goroutine leaks on test exit — Hub has no shutdown mechanism.
	// Acceptable for tests; production should add context-based shutdown.
	go hub.Run()

	r := router.New(cfg, queries, pool, hub)

	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Bootstrap tenant + owner (manual DB inserts) ---
	tenantID := createTenant(t, ctx, pool)
	ownerID := createOwnerUser(t, ctx, pool, tenantID)

	// --- 2. Login as owner ---
	token := login(t, server, "owner@test.com", "password123")

	// --- 3. Master data through the API ---
	customerResp := createCustomer(t, server, tenantID, token)
	customerID := uuid.MustParse(customerResp["id"].(string))

	eventTypeResp := createEventType(t, server, tenantID, token)
	eventTypeID := uuid.MustParse(eventTypeResp["id"].(string))

	menuResp := createMenu(t, server, tenantID, token)
	menuID := uuid.MustParse(menuResp["id"].(string))

	utilityResp := createUtility(t, server, tenantID, token)
	utilityID := uuid.MustParse(utilityResp["id"].(string))

	// --- 4. Create a draft order with lines ---
	orderResp := createOrder(t, server, tenantID, customerID, eventTypeID, menuID, utilityID, token)
	orderID := uuid.MustParse(orderResp["id"].(string))

	if orderResp["status"].(string) != "DRAFT" {
		t.Fatalf("new order status: got %s, want DRAFT", orderResp["status"])
	}
	orderNumber := orderResp["order_number"].(string)
	if orderNumber == "" {
		t.Fatal("order_number not assigned")
	}

	// Assert the totals pipeline:
	// Menu: 250.00 x 20 = 5000.00; Utility: 500.00 x 1 = 500.00
	// Subtotal 5500.00, discount 10% = 550.00 → 4950.00
	// Tax 18% on the discounted base = 891.00 → total 5841.00
	if got := orderResp["total_amount"].(string); got != "5841.00" {
		t.Fatalf("order total_amount: got %s, want 5841.00", got)
	}
	if got := orderResp["balance_amount"].(string); got != "5841.00" {
		t.Fatalf("order balance_amount: got %s, want 5841.00", got)
	}

	// --- 5. Walk the workflow: submit then approve ---
	version := int64(orderResp["version"].(float64))
	submitted := workflowStep(t, server, tenantID, orderID, "submit", version, "", token)
	if submitted["status"].(string) != "SUBMITTED" {
		t.Fatalf("status after submit: got %s, want SUBMITTED", submitted["status"])
	}

	version = int64(submitted["version"].(float64))
	approved := workflowStep(t, server, tenantID, orderID, "approve", version, "", token)
	if approved["status"].(string) != "APPROVED" {
		t.Fatalf("status after approve: got %s, want APPROVED", approved["status"])
	}

	// Draft editing is locked after submission.
	assertDraftEditRejected(t, server, tenantID, orderID, int64(approved["version"].(float64)), token)

	// --- 6. Record a partial advance payment ---
	payment1 := recordPayment(t, server, tenantID, orderID, "2000.00", "UPI", token)
	p1 := payment1["payment"].(map[string]interface{})
	if p1["payment_number"].(string) == "" {
		t.Fatal("payment_number not assigned")
	}
	orderAfterP1 := payment1["order"].(map[string]interface{})
	if got := orderAfterP1["balance_amount"].(string); got != "3841.00" {
		t.Fatalf("balance after partial payment: got %s, want 3841.00", got)
	}
	if _, ok := payment1["overpayment_warning"]; ok {
		t.Fatal("partial payment should not flag overpayment")
	}

	// --- 7. Overpay the remainder and check the warning ---
	payment2 := recordPayment(t, server, tenantID, orderID, "4000.00", "CASH", token)
	orderAfterP2 := payment2["order"].(map[string]interface{})
	if got := orderAfterP2["balance_amount"].(string); got != "-159.00" {
		t.Fatalf("balance after overpayment: got %s, want -159.00", got)
	}
	if payment2["overpayment_warning"] != true {
		t.Fatal("overpayment_warning not set")
	}

	// --- 8. Finish the workflow: start then complete ---
	current := getOrder(t, server, tenantID, orderID, token)
	version = int64(current["version"].(float64))
	started := workflowStep(t, server, tenantID, orderID, "start", version, "", token)
	if started["status"].(string) != "IN_PROGRESS" {
		t.Fatalf("status after start: got %s, want IN_PROGRESS", started["status"])
	}

	version = int64(started["version"].(float64))
	completed := workflowStep(t, server, tenantID, orderID, "complete", version, "", token)
	if completed["status"].(string) != "COMPLETED" {
		t.Fatalf("status after complete: got %s, want COMPLETED", completed["status"])
	}

	// --- 9. Revenue report reflects both payments ---
	report := httpGetJSON(t, server, fmt.Sprintf("/tenants/%s/reports/revenue", tenantID), token)
	if got := report["total"].(string); got != "6000.00" {
		t.Fatalf("revenue total: got %s, want 6000.00", got)
	}

	t.Logf("Integration test passed: container=%s, tenant=%s, owner=%s, customer=%s, order=%s (%s)",
		pgContainer.GetContainerID(), tenantID, ownerID, customerID, orderID, orderNumber)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("caterer_test"),
		tcpostgres.WithUsername("caterer"),
		tcpostgres.WithPassword("caterer"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	// Connect with stdlib for migrate
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Path relative to this test file's package directory.
	// Go test sets cwd to the package directory.
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createTenant(t *testing.T, ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO tenants (tenant_code, business_name, status)
		 VALUES ($1, $2, 'ACTIVE')
		 RETURNING id`,
		"TEST", "Test Caterers",
	).Scan(&id)
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return id
}

func createOwnerUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID) uuid.UUID {
	t.Helper()
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO users (tenant_id, email, password_hash, full_name, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		tenantID, "owner@test.com", string(hashedPassword), "Test Owner", "OWNER",
	).Scan(&id)
	if err != nil {
		t.Fatalf("create owner user: %v", err)
	}
	return id
}

// --- API call helpers ---

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	body := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	resp := httpPostJSON(t, server, "/auth/login", body, "")
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

func createCustomer(t *testing.T, server *httptest.Server, tenantID uuid.UUID, token string) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{
		"customer_code": "CUST-001",
		"name":          "Ravi Kumar",
		"phone":         "9876543210",
		"email":         "ravi@test.com",
	}
	return httpPostJSON(t, server, fmt.Sprintf("/tenants/%s/customers", tenantID), body, token)
}

func createEventType(t *testing.T, server *httptest.Server, tenantID uuid.UUID, token string) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{
		"event_code": "WED",
		"name":       "Wedding Reception",
	}
	return httpPostJSON(t, server, fmt.Sprintf("/tenants/%s/event-types", tenantID), body, token)
}

func createMenu(t *testing.T, server *httptest.Server, tenantID uuid.UUID, token string) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{
		"menu_code":   "VEG-THALI",
		"name":        "Vegetarian Thali",
		"description": "Full vegetarian meal",
		"unit_price":  "250.00",
	}
	return httpPostJSON(t, server, fmt.Sprintf("/tenants/%s/menus", tenantID), body, token)
}

func createUtility(t *testing.T, server *httptest.Server, tenantID uuid.UUID, token string) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{
		"utility_code": "TENT-L",
		"name":         "Large Tent",
		"description":  "Covers up to 100 guests",
		"unit_price":   "500.00",
	}
	return httpPostJSON(t, server, fmt.Sprintf("/tenants/%s/utilities", tenantID), body, token)
}

func createOrder(t *testing.T, server *httptest.Server, tenantID, customerID, eventTypeID, menuID, utilityID uuid.UUID, token string) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{
		"customer_id":      customerID.String(),
		"event_type_id":    eventTypeID.String(),
		"event_date":       time.Now().AddDate(0, 1, 0).Format("2006-01-02"),
		"event_time":       "18:30",
		"venue_name":       "Grand Palace",
		"guest_count":      20,
		"discount_percent": "10",
		"tax_percent":      "18",
		"menu_items": []map[string]interface{}{
			{"menu_id": menuID.String(), "quantity": 20},
		},
		"utilities": []map[string]interface{}{
			{"utility_id": utilityID.String(), "quantity": 1},
		},
	}
	return httpPostJSON(t, server, fmt.Sprintf("/tenants/%s/orders", tenantID), body, token)
}

func workflowStep(t *testing.T, server *httptest.Server, tenantID, orderID uuid.UUID, verb string, version int64, reason, token string) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{"version": version}
	if reason != "" {
		body["reason"] = reason
	}
	return httpPostJSON(t, server, fmt.Sprintf("/tenants/%s/orders/%s/%s", tenantID, orderID, verb), body, token)
}

func assertDraftEditRejected(t *testing.T, server *httptest.Server, tenantID, orderID uuid.UUID, version int64, token string) {
	t.Helper()
	body := map[string]interface{}{
		"version":     version,
		"guest_count": 50,
	}
	b, _ := json.Marshal(body)
	req, err := http.NewRequest("PUT", server.URL+fmt.Sprintf("/tenants/%s/orders/%s", tenantID, orderID), bytes.NewReader(b))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("editing a non-draft order: got status %d, want 409", resp.StatusCode)
	}
}

func recordPayment(t *testing.T, server *httptest.Server, tenantID, orderID uuid.UUID, amount, method, token string) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{
		"amount":         amount,
		"payment_method": method,
	}
	if method == "UPI" {
		body["upi_id"] = "ravi@upi"
	}
	return httpPostJSON(t, server, fmt.Sprintf("/tenants/%s/orders/%s/payments", tenantID, orderID), body, token)
}

func getOrder(t *testing.T, server *httptest.Server, tenantID, orderID uuid.UUID, token string) map[string]interface{} {
	t.Helper()
	return httpGetJSON(t, server, fmt.Sprintf("/tenants/%s/orders/%s", tenantID, orderID), token)
}

// --- HTTP helpers ---

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req, err := http.NewRequest("POST", server.URL+path, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("POST %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpGetJSON(t *testing.T, server *httptest.Server, path string, token string) map[string]interface{} {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("GET %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}
