package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/api/handlers"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/api/middleware"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/models"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/services"
)

// asUser injects an authenticated identity the way AuthMiddleware would.
func asUser(userID primitive.ObjectID, isAdmin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, userID.Hex())
		c.Set(middleware.ContextKeyIsAdmin, isAdmin)
		c.Next()
	}
}

func TestListingHandler_GetListing_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockListingSvc := new(MockListingService)
	mockQuerySvc := new(MockQueryService)
	handler := handlers.NewListingHandler(mockListingSvc, mockQuerySvc)

	r := gin.New()
	r.GET("/api/listings/:id", handler.GetListing)

	listingID := primitive.NewObjectID()
	expected := &models.Listing{
		ID:     listingID,
		Title:  "Table fan",
		Price:  500,
		Status: models.StatusAvailable,
	}
	mockListingSvc.On("FindListingByID", mock.Anything, listingID).Return(expected, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/listings/"+listingID.Hex(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool           `json:"success"`
		Data    models.Listing `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, expected.ID, resp.Data.ID)
	assert.Equal(t, expected.Title, resp.Data.Title)
	mockListingSvc.AssertExpectations(t)
}

func TestListingHandler_GetListing_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockListingSvc := new(MockListingService)
	handler := handlers.NewListingHandler(mockListingSvc, new(MockQueryService))

	r := gin.New()
	r.GET("/api/listings/:id", handler.GetListing)

	listingID := primitive.NewObjectID()
	mockListingSvc.On("FindListingByID", mock.Anything, listingID).
		Return(nil, &models.NotFoundError{Resource: "listing", ID: listingID.Hex()})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/listings/"+listingID.Hex(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	mockListingSvc.AssertExpectations(t)
}

func TestListingHandler_GetListing_BadID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewListingHandler(new(MockListingService), new(MockQueryService))

	r := gin.New()
	r.GET("/api/listings/:id", handler.GetListing)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/listings/not-an-id", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListingHandler_ListAvailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuerySvc := new(MockQueryService)
	handler := handlers.NewListingHandler(new(MockListingService), mockQuerySvc)

	r := gin.New()
	r.GET("/api/listings", handler.ListAvailable)

	expected := []models.Listing{
		{ID: primitive.NewObjectID(), Title: "Cycle"},
		{ID: primitive.NewObjectID(), Title: "Lamp"},
	}
	mockQuerySvc.On("ListAvailable", mock.Anything).Return(expected, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/listings", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool             `json:"success"`
		Count   int              `json:"count"`
		Data    []models.Listing `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Data, 2)
	mockQuerySvc.AssertExpectations(t)
}

func TestListingHandler_RequestToBuy_Conflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockListingSvc := new(MockListingService)
	handler := handlers.NewListingHandler(mockListingSvc, new(MockQueryService))

	r := gin.New()
	r.PUT("/api/listings/:id/request", handler.RequestToBuy)

	listingID := primitive.NewObjectID()
	input := services.BuyRequestInput{
		BuyerName: "Ravi", Contact: "9000000001", Hostel: "Kaveri",
	}
	mockListingSvc.On("RequestToBuy", mock.Anything, listingID, input).
		Return(nil, &models.InvalidStateError{Operation: "request to buy", Status: models.StatusPending})

	body, _ := json.Marshal(input)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/listings/"+listingID.Hex()+"/request", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	mockListingSvc.AssertExpectations(t)
}

func TestListingHandler_ConfirmSale_UsesAuthenticatedSeller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockListingSvc := new(MockListingService)
	handler := handlers.NewListingHandler(mockListingSvc, new(MockQueryService))

	sellerID := primitive.NewObjectID()
	listingID := primitive.NewObjectID()

	r := gin.New()
	r.PUT("/api/listings/:id/confirm", asUser(sellerID, false), handler.ConfirmSale)

	sold := &models.Listing{ID: listingID, Status: models.StatusSold, SellerID: sellerID}
	mockListingSvc.On("ConfirmSale", mock.Anything, listingID, sellerID).Return(sold, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/listings/"+listingID.Hex()+"/confirm", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockListingSvc.AssertExpectations(t)
}

func TestListingHandler_ConfirmSale_NotOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockListingSvc := new(MockListingService)
	handler := handlers.NewListingHandler(mockListingSvc, new(MockQueryService))

	callerID := primitive.NewObjectID()
	listingID := primitive.NewObjectID()

	r := gin.New()
	r.PUT("/api/listings/:id/confirm", asUser(callerID, false), handler.ConfirmSale)

	mockListingSvc.On("ConfirmSale", mock.Anything, listingID, callerID).Return(nil, models.ErrNotOwner)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/listings/"+listingID.Hex()+"/confirm", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockListingSvc.AssertExpectations(t)
}

func TestListingHandler_DeleteListing_PassesAdminFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockListingSvc := new(MockListingService)
	handler := handlers.NewListingHandler(mockListingSvc, new(MockQueryService))

	adminID := primitive.NewObjectID()
	listingID := primitive.NewObjectID()

	r := gin.New()
	r.DELETE("/api/listings/:id", asUser(adminID, true), handler.DeleteListing)

	mockListingSvc.On("DeleteListing", mock.Anything, listingID, adminID, true).Return(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/listings/"+listingID.Hex(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockListingSvc.AssertExpectations(t)
}

func TestListingHandler_GetStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockQuerySvc := new(MockQueryService)
	handler := handlers.NewListingHandler(new(MockListingService), mockQuerySvc)

	r := gin.New()
	r.GET("/api/listings/stats", handler.GetStats)

	mockQuerySvc.On("GetStatistics", mock.Anything).Return(&models.MarketStats{
		TotalListings: 5, AvailableListings: 3, SoldListings: 2, TotalInterest: 11, TotalUsers: 4,
	}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/listings/stats", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data models.MarketStats `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 5, resp.Data.TotalListings)
	assert.EqualValues(t, 11, resp.Data.TotalInterest)
	mockQuerySvc.AssertExpectations(t)
}
