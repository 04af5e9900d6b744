package front

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fitflow/billing/internal/billing"
	"github.com/fitflow/billing/internal/config"
	dbutil "github.com/fitflow/billing/internal/db"
	"github.com/fitflow/billing/internal/models"
	"github.com/fitflow/billing/internal/notify"
	"github.com/fitflow/billing/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	testSecret   = "front-test-secret"
	testPassword = "jane-password"
)

type stubGateway struct {
	mu    sync.Mutex
	calls int
}

func (g *stubGateway) Initiate(_ context.Context, _ string, _ decimal.Decimal) (billing.GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return billing.GatewayResponse{
		ProviderRequestID: fmt.Sprintf("ws_CO_%d", g.calls),
		MerchantRequestID: fmt.Sprintf("M%d", g.calls),
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

type testEnv struct {
	engine *gin.Engine
	db     *gorm.DB
	client models.Client
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := dbutil.Open(dbutil.BuildSQLiteDSN(filepath.Join(t.TempDir(), "front.db")))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	hash, errHash := security.HashPassword(testPassword)
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	client := models.Client{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Phone: "254712345678", Password: hash}
	if errCreate := conn.Create(&client).Error; errCreate != nil {
		t.Fatalf("create client: %v", errCreate)
	}
	token, errToken := security.IssueToken(testSecret, security.RoleClient, client.ID, time.Hour, time.Now())
	if errToken != nil {
		t.Fatalf("issue token: %v", errToken)
	}

	svc := billing.NewService(conn, billing.Options{Gateway: &stubGateway{}, Notifier: &notify.Recorder{}})
	r := gin.New()
	RegisterFrontRoutes(r, conn, config.JWTConfig{Secret: testSecret, Expiry: time.Hour}, svc)
	return &testEnv{engine: r, db: conn, client: client, token: token}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	switch v := body.(type) {
	case nil:
	case string:
		payload = []byte(v)
	default:
		var errMarshal error
		if payload, errMarshal = json.Marshal(v); errMarshal != nil {
			t.Fatalf("marshal: %v", errMarshal)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(w.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), errDecode)
	}
	return out
}

func callbackBody(requestID string, resultCode int) string {
	if resultCode != 0 {
		return fmt.Sprintf(`{"Body":{"stkCallback":{"MerchantRequestID":"M1","CheckoutRequestID":%q,"ResultCode":%d,"ResultDesc":"Request cancelled by user"}}}`, requestID, resultCode)
	}
	return fmt.Sprintf(`{"Body":{"stkCallback":{"MerchantRequestID":"M1","CheckoutRequestID":%q,"ResultCode":0,"ResultDesc":"ok","CallbackMetadata":{"Item":[
		{"Name":"Amount","Value":3000},{"Name":"MpesaReceiptNumber","Value":"RCPT-%s"},{"Name":"PhoneNumber","Value":254712345678}]}}}}`, requestID, requestID)
}

func TestPlansList(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v0/plans", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	plans, _ := decodeBody(t, w)["plans"].([]any)
	if len(plans) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(plans))
	}
	first, _ := plans[0].(map[string]any)
	if first["name"] != "Monthly" {
		t.Fatalf("expected Monthly first, got %v", first["name"])
	}
}

func TestClientAuth(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, http.MethodGet, "/v0/dashboard", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	adminToken, errToken := security.IssueToken(testSecret, security.RoleAdmin, env.client.ID, time.Hour, time.Now())
	if errToken != nil {
		t.Fatalf("issue token: %v", errToken)
	}
	if w := env.do(t, http.MethodGet, "/v0/dashboard", adminToken, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for admin token, got %d", w.Code)
	}

	ghost, errGhost := security.IssueToken(testSecret, security.RoleClient, 9999, time.Hour, time.Now())
	if errGhost != nil {
		t.Fatalf("issue token: %v", errGhost)
	}
	if w := env.do(t, http.MethodGet, "/v0/dashboard", ghost, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown client, got %d", w.Code)
	}
}

func TestMobileMoneyFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v0/payments/mpesa", env.token, map[string]string{"plan_name": "monthly"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	initiated := decodeBody(t, w)
	requestID, _ := initiated["provider_request_id"].(string)
	if requestID != "ws_CO_1" || initiated["status"] != "Pending" {
		t.Fatalf("unexpected initiation %v", initiated)
	}

	w = env.do(t, http.MethodPost, "/v0/mpesa/callback", "", callbackBody(requestID, 0))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	ack := decodeBody(t, w)
	if ack["ResultCode"] != float64(0) || ack["ResultDesc"] != "Accepted" {
		t.Fatalf("unexpected ack %v", ack)
	}

	var client models.Client
	if errFind := env.db.Take(&client, env.client.ID).Error; errFind != nil {
		t.Fatalf("load client: %v", errFind)
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if client.Expiry == nil || !client.Expiry.Equal(today.AddDate(0, 0, 30)) {
		t.Fatalf("expected expiry %s, got %v", today.AddDate(0, 0, 30), client.Expiry)
	}

	// Replays are acknowledged and change nothing.
	w = env.do(t, http.MethodPost, "/v0/mpesa/callback", "", callbackBody(requestID, 0))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", w.Code)
	}
	var again models.Client
	if errFind := env.db.Take(&again, env.client.ID).Error; errFind != nil {
		t.Fatalf("load client: %v", errFind)
	}
	if !again.Expiry.Equal(*client.Expiry) {
		t.Fatalf("replay moved expiry to %s", again.Expiry)
	}

	w = env.do(t, http.MethodGet, "/v0/payments", env.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	payments, _ := decodeBody(t, w)["payments"].([]any)
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(payments))
	}
	payment, _ := payments[0].(map[string]any)
	if payment["status"] != "Success" || payment["method"] != "M-PESA" {
		t.Fatalf("unexpected payment %v", payment)
	}

	w = env.do(t, http.MethodGet, "/v0/dashboard", env.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	dash := decodeBody(t, w)
	if dash["status"] != "Active" || dash["days_remaining"] != float64(30) {
		t.Fatalf("unexpected dashboard %v", dash)
	}
}

func TestCallbackResponses(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, http.MethodPost, "/v0/mpesa/callback", "", callbackBody("unknown", 0)); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for orphan, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/v0/mpesa/callback", "", `{"Body":`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
	missingMetadata := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_9","ResultCode":0}}}`
	if w := env.do(t, http.MethodPost, "/v0/mpesa/callback", "", missingMetadata); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing metadata, got %d", w.Code)
	}

	w := env.do(t, http.MethodPost, "/v0/payments/mpesa", env.token, map[string]string{"plan_name": "Monthly", "phone_number": "0712345678"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	requestID, _ := decodeBody(t, w)["provider_request_id"].(string)
	if w := env.do(t, http.MethodPost, "/v0/mpesa/callback", "", callbackBody(requestID, 1032)); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for failed payment, got %d", w.Code)
	}

	var payment models.Payment
	if errFind := env.db.Where("provider_request_id = ?", requestID).Take(&payment).Error; errFind != nil {
		t.Fatalf("load payment: %v", errFind)
	}
	if payment.Status != models.PaymentStatusFailed {
		t.Fatalf("expected Failed, got %s", payment.Status)
	}
	var client models.Client
	if errFind := env.db.Take(&client, env.client.ID).Error; errFind != nil {
		t.Fatalf("load client: %v", errFind)
	}
	if client.Expiry != nil {
		t.Fatalf("failed payment set expiry %s", client.Expiry)
	}
}

func TestInitiateValidation(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, http.MethodPost, "/v0/payments/mpesa", env.token, map[string]string{}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without plan, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/v0/payments/mpesa", env.token, map[string]string{"plan_name": "Weekly"}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown plan, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/v0/payments/mpesa", env.token, map[string]string{"plan_name": "Monthly", "phone_number": "12"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad phone, got %d", w.Code)
	}
}

func TestClientLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v0/login", "", map[string]string{"email": " JANE@example.com ", "password": testPassword})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	out := decodeBody(t, w)
	token, _ := out["token"].(string)
	if out["name"] != "Jane Doe" {
		t.Fatalf("unexpected name %v", out["name"])
	}
	if w := env.do(t, http.MethodGet, "/v0/dashboard", token, nil); w.Code != http.StatusOK {
		t.Fatalf("expected login token to authorize, got %d", w.Code)
	}

	if w := env.do(t, http.MethodPost, "/v0/login", "", map[string]string{"email": "jane@example.com", "password": "nope-nope"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/v0/login", "", "{"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", w.Code)
	}
}
