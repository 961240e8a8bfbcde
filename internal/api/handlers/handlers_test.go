package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shipshape-api-server/internal/golive"
	"shipshape-api-server/internal/marketplace"
	"shipshape-api-server/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, payload models.GoLiveTaskPayload) golive.GoLiveResult {
	args := m.Called(payload)
	return args.Get(0).(golive.GoLiveResult)
}

type mockMarketplace struct {
	mock.Mock
}

func (m *mockMarketplace) GetShipment(ctx context.Context, id string) (*models.Shipment, error) {
	args := m.Called(id)
	sh, _ := args.Get(0).(*models.Shipment)
	return sh, args.Error(1)
}

func (m *mockMarketplace) ListShipmentsByExporter(ctx context.Context, exporterID string) ([]models.Shipment, error) {
	args := m.Called(exporterID)
	list, _ := args.Get(0).([]models.Shipment)
	return list, args.Error(1)
}

func (m *mockMarketplace) CreateShipment(ctx context.Context, in marketplace.ShipmentInput) (*models.Shipment, error) {
	args := m.Called(in)
	sh, _ := args.Get(0).(*models.Shipment)
	return sh, args.Error(1)
}

func (m *mockMarketplace) UpdateShipment(ctx context.Context, id string, in marketplace.ShipmentInput, revision int64) (*models.Shipment, error) {
	args := m.Called(id, in, revision)
	sh, _ := args.Get(0).(*models.Shipment)
	return sh, args.Error(1)
}

func (m *mockMarketplace) RegisterInterest(ctx context.Context, shipmentID, carrierID string) (bool, error) {
	args := m.Called(shipmentID, carrierID)
	return args.Bool(0), args.Error(1)
}

func (m *mockMarketplace) PlaceBid(ctx context.Context, shipmentID, carrierID, carrierName string, amount float64) (*models.Bid, error) {
	args := m.Called(shipmentID, carrierID, carrierName, amount)
	bid, _ := args.Get(0).(*models.Bid)
	return bid, args.Error(1)
}

func (m *mockMarketplace) ListBids(ctx context.Context, shipmentID string) ([]models.Bid, error) {
	args := m.Called(shipmentID)
	list, _ := args.Get(0).([]models.Bid)
	return list, args.Error(1)
}

func (m *mockMarketplace) Award(ctx context.Context, shipmentID, bidID string) (*models.Shipment, error) {
	args := m.Called(shipmentID, bidID)
	sh, _ := args.Get(0).(*models.Shipment)
	return sh, args.Error(1)
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func goLiveRouter(exec GoLiveExecutor) *gin.Engine {
	r := gin.New()
	h := &GoLiveHandler{Executor: exec}
	r.POST("/api/v1/tasks/go-live", h.Execute)
	return r
}

func TestGoLiveHandlerResponses(t *testing.T) {
	cases := []struct {
		name   string
		result golive.GoLiveResult
		code   int
		body   string
	}{
		{"transitioned", golive.GoLiveResult{Status: golive.Transitioned}, http.StatusOK, "OK"},
		{"guard hit", golive.GoLiveResult{Status: golive.NoAction}, http.StatusOK, "No action needed."},
		{"not found", golive.GoLiveResult{Status: golive.NotFound}, http.StatusNotFound, "Shipment not found."},
		{"failed", golive.GoLiveResult{Status: golive.Failed, Err: errors.New("boom")}, http.StatusInternalServerError, "Internal error."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec := &mockExecutor{}
			exec.On("Execute", models.GoLiveTaskPayload{ShipmentID: "S1", Revision: 2}).Return(tc.result).Once()

			w := doJSON(goLiveRouter(exec), http.MethodPost, "/api/v1/tasks/go-live", map[string]interface{}{"shipmentId": "S1", "revision": 2})

			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, tc.body, w.Body.String())
			exec.AssertExpectations(t)
		})
	}
}

func TestGoLiveHandlerRejectsMissingID(t *testing.T) {
	exec := &mockExecutor{}
	r := goLiveRouter(exec)

	for _, body := range []string{`{}`, `{"shipmentId":""}`, `not json`} {
		w := doJSON(r, http.MethodPost, "/api/v1/tasks/go-live", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	exec.AssertNotCalled(t, "Execute", mock.Anything)
}

func shipmentRouter(m Marketplace) *gin.Engine {
	r := gin.New()
	h := &ShipmentHandler{Marketplace: m}
	r.POST("/shipments", h.CreateShipment)
	r.PUT("/shipments/:id", h.UpdateShipment)
	r.GET("/shipments/:id", h.GetShipment)
	r.POST("/shipments/:id/register", h.Register)
	r.POST("/shipments/:id/bids", h.PlaceBid)
	r.GET("/shipments/:id/bids", h.ListBids)
	r.POST("/shipments/:id/award", h.Award)
	return r
}

func TestCreateShipmentHandler(t *testing.T) {
	m := &mockMarketplace{}
	m.On("CreateShipment", mock.MatchedBy(func(in marketplace.ShipmentInput) bool {
		return in.ExporterID == "exp-1" && in.Status == models.ShipmentDraft
	})).Return(&models.Shipment{ID: "SHP-1", Status: models.ShipmentDraft, Revision: 1}, nil)

	w := doJSON(shipmentRouter(m), http.MethodPost, "/shipments", map[string]interface{}{
		"exporterId": "exp-1", "productName": "Rice", "status": "draft",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var got models.Shipment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "SHP-1", got.ID)
	m.AssertExpectations(t)
}

func TestUpdateShipmentHandlerMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{models.ErrRevisionConflict, http.StatusConflict},
		{models.ErrNotFound, http.StatusNotFound},
		{errors.Join(models.ErrValidation, errors.New("productName is required")), http.StatusBadRequest},
		{models.ErrInvalidState, http.StatusConflict},
		{errors.New("socket closed"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		m := &mockMarketplace{}
		m.On("UpdateShipment", "SHP-1", mock.Anything, int64(3)).Return(nil, tc.err)

		w := doJSON(shipmentRouter(m), http.MethodPut, "/shipments/SHP-1", map[string]interface{}{
			"productName": "Rice", "status": "draft", "revision": 3,
		})
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
	}
}

func TestUpdateShipmentHandlerRequiresRevision(t *testing.T) {
	m := &mockMarketplace{}
	w := doJSON(shipmentRouter(m), http.MethodPut, "/shipments/SHP-1", map[string]interface{}{"productName": "Rice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	m.AssertNotCalled(t, "UpdateShipment", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterHandler(t *testing.T) {
	m := &mockMarketplace{}
	m.On("RegisterInterest", "SHP-1", "carrier-1").Return(true, nil).Once()
	m.On("RegisterInterest", "SHP-1", "carrier-1").Return(false, nil).Once()
	r := shipmentRouter(m)

	w := doJSON(r, http.MethodPost, "/shipments/SHP-1/register", map[string]string{"carrierId": "carrier-1"})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(r, http.MethodPost, "/shipments/SHP-1/register", map[string]string{"carrierId": "carrier-1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBidHandlers(t *testing.T) {
	m := &mockMarketplace{}
	m.On("PlaceBid", "SHP-1", "carrier-1", "", 450.0).Return(&models.Bid{ID: "BID-1", BidAmount: 450}, nil)
	m.On("ListBids", "SHP-1").Return([]models.Bid{{ID: "BID-1", BidAmount: 450}, {ID: "BID-2", BidAmount: 500}}, nil)
	m.On("Award", "SHP-1", "BID-1").Return(&models.Shipment{ID: "SHP-1", Status: models.ShipmentAwarded}, nil)
	r := shipmentRouter(m)

	w := doJSON(r, http.MethodPost, "/shipments/SHP-1/bids", map[string]interface{}{"carrierId": "carrier-1", "bidAmount": 450})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodGet, "/shipments/SHP-1/bids", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bids []models.Bid
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bids))
	assert.Len(t, bids, 2)

	w = doJSON(r, http.MethodPost, "/shipments/SHP-1/award", map[string]string{"bidId": "BID-1"})
	assert.Equal(t, http.StatusOK, w.Code)
	m.AssertExpectations(t)
}

type fakeNotificationStore struct {
	list     []models.Notification
	limit    int64
	markErr  error
	markedID string
}

func (f *fakeNotificationStore) ListNotifications(ctx context.Context, recipientID string, limit int64) ([]models.Notification, error) {
	f.limit = limit
	return f.list, nil
}

func (f *fakeNotificationStore) MarkNotificationRead(ctx context.Context, id string) error {
	f.markedID = id
	return f.markErr
}

func TestNotificationHandlers(t *testing.T) {
	store := &fakeNotificationStore{list: []models.Notification{{RecipientID: "carrier-1", Message: "hi"}}}
	h := &NotificationHandler{Store: store}
	r := gin.New()
	r.GET("/users/:id/notifications", h.GetNotifications)
	r.POST("/notifications/:id/read", h.MarkRead)

	w := doJSON(r, http.MethodGet, "/users/carrier-1/notifications", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(50), store.limit)

	w = doJSON(r, http.MethodGet, "/users/carrier-1/notifications?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/notifications/abc/read", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", store.markedID)

	store.markErr = models.ErrNotFound
	w = doJSON(r, http.MethodPost, "/notifications/abc/read", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
