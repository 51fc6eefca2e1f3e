package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tableside/pos-api/internal/auth"
	"github.com/tableside/pos-api/internal/database"
	"github.com/tableside/pos-api/internal/middleware"
	"github.com/tableside/pos-api/internal/notify"
	"github.com/tableside/pos-api/internal/service"
)

const testSecret = "test-secret"

// --- Mock services ---

type mockTableService struct {
	runningTables func(ctx context.Context) (*service.RunningTables, error)
	runningOrder  func(ctx context.Context, tableID uuid.UUID) (*service.RunningOrder, error)
	tableMenu     func(ctx context.Context, tableID uuid.UUID) (*service.TableMenu, error)
	menu          func(ctx context.Context) ([]service.MenuSection, error)
}

func (m *mockTableService) GetRunningTables(ctx context.Context) (*service.RunningTables, error) {
	return m.runningTables(ctx)
}

func (m *mockTableService) GetRunningOrder(ctx context.Context, tableID uuid.UUID) (*service.RunningOrder, error) {
	return m.runningOrder(ctx, tableID)
}

func (m *mockTableService) GetTableMenu(ctx context.Context, tableID uuid.UUID) (*service.TableMenu, error) {
	return m.tableMenu(ctx, tableID)
}

func (m *mockTableService) GetMenu(ctx context.Context) ([]service.MenuSection, error) {
	return m.menu(ctx)
}

type mockOrderService struct {
	upsert func(ctx context.Context, sess service.Session, req service.TableOrderRequest) (*service.OrderResult, error)
	submit func(ctx context.Context, req service.CustomerOrderRequest) (*service.OrderResult, error)
	close  func(ctx context.Context, sess service.Session, req service.CloseTableRequest) (*service.CloseResult, error)
}

func (m *mockOrderService) CreateOrUpdateTableOrder(ctx context.Context, sess service.Session, req service.TableOrderRequest) (*service.OrderResult, error) {
	return m.upsert(ctx, sess, req)
}

func (m *mockOrderService) SubmitCustomerOrder(ctx context.Context, req service.CustomerOrderRequest) (*service.OrderResult, error) {
	return m.submit(ctx, req)
}

func (m *mockOrderService) CloseTable(ctx context.Context, sess service.Session, req service.CloseTableRequest) (*service.CloseResult, error) {
	return m.close(ctx, sess, req)
}

type mockShiftService struct {
	open    func(ctx context.Context, staffID uuid.UUID, balance decimal.Decimal) (database.Shift, error)
	close   func(ctx context.Context, id uuid.UUID, cash decimal.Decimal) (database.Shift, error)
	current func(ctx context.Context, sess service.Session) (database.Shift, error)
	summary func(ctx context.Context, id uuid.UUID) (*service.ShiftSummary, error)
	list    func(ctx context.Context, limit, offset int32) ([]database.Shift, error)
}

func (m *mockShiftService) OpenShift(ctx context.Context, staffID uuid.UUID, balance decimal.Decimal) (database.Shift, error) {
	return m.open(ctx, staffID, balance)
}

func (m *mockShiftService) CloseShift(ctx context.Context, id uuid.UUID, cash decimal.Decimal) (database.Shift, error) {
	return m.close(ctx, id, cash)
}

func (m *mockShiftService) CurrentShift(ctx context.Context, sess service.Session) (database.Shift, error) {
	return m.current(ctx, sess)
}

func (m *mockShiftService) Summary(ctx context.Context, id uuid.UUID) (*service.ShiftSummary, error) {
	return m.summary(ctx, id)
}

func (m *mockShiftService) ListShifts(ctx context.Context, limit, offset int32) ([]database.Shift, error) {
	return m.list(ctx, limit, offset)
}

type mockReservationService struct {
	assign       func(ctx context.Context, reservationID, tableID uuid.UUID) (*service.AssignResult, error)
	autoAssign   func(ctx context.Context, partySize int32) (database.Table, error)
	createCust   func(ctx context.Context, req service.ReservationRequest) (database.Reservation, error)
	createStaff  func(ctx context.Context, sess service.Session, req service.ReservationRequest) (*service.AssignResult, error)
	updateStatus func(ctx context.Context, id uuid.UUID, status string) (*service.StatusResult, error)
	list         func(ctx context.Context, date, status string) ([]database.Reservation, error)
}

func (m *mockReservationService) Assign(ctx context.Context, reservationID, tableID uuid.UUID) (*service.AssignResult, error) {
	return m.assign(ctx, reservationID, tableID)
}

func (m *mockReservationService) AutoAssign(ctx context.Context, partySize int32) (database.Table, error) {
	return m.autoAssign(ctx, partySize)
}

func (m *mockReservationService) CreateCustomerReservation(ctx context.Context, req service.ReservationRequest) (database.Reservation, error) {
	return m.createCust(ctx, req)
}

func (m *mockReservationService) CreateStaffReservation(ctx context.Context, sess service.Session, req service.ReservationRequest) (*service.AssignResult, error) {
	return m.createStaff(ctx, sess, req)
}

func (m *mockReservationService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*service.StatusResult, error) {
	return m.updateStatus(ctx, id, status)
}

func (m *mockReservationService) List(ctx context.Context, date, status string) ([]database.Reservation, error) {
	return m.list(ctx, date, status)
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// --- Helpers ---

func staffToken(t *testing.T, userID, shiftID uuid.UUID, role string) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, userID, shiftID, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

// withAuth wraps h so requests pass through the real JWT middleware.
func withAuth(h http.Handler) http.Handler {
	return middleware.Authenticate(testSecret)(h)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("marshal request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func dataOf(t *testing.T, resp map[string]interface{}) map[string]interface{} {
	t.Helper()
	if resp["success"] != true {
		t.Fatalf("expected success, got %v", resp)
	}
	data, ok := resp["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("data is not an object: %v", resp["data"])
	}
	return data
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status: got %d, want %d (body %s)", rr.Code, status, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["success"] != false {
		t.Errorf("success: got %v, want false", resp["success"])
	}
	if msg != "" && resp["error"] != msg {
		t.Errorf("error: got %v, want %q", resp["error"], msg)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func numeric(s string) pgtype.Numeric {
	return service.DecimalToNumeric(dec(s))
}
