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
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/models"
)

func TestUserHandler_RegisterUser_ResolvesProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockUserSvc := new(MockUserService)
	handler := handlers.NewUserHandler(mockUserSvc)

	r := gin.New()
	r.POST("/api/users/register", handler.RegisterUser)

	profile := models.Profile{
		Name: "Asha", RollNo: "B21CS001", Contact: "9876543210", Hostel: "Ganga",
	}
	resolved := &models.User{
		ID: primitive.NewObjectID(), Name: "Asha", RollNo: "B21CS001",
		Contact: "9876543210", Hostel: "Ganga",
	}
	mockUserSvc.On("Resolve", mock.Anything, profile).Return(resolved, nil)

	body, _ := json.Marshal(profile)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/users/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool        `json:"success"`
		Data    models.User `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, resolved.ID, resp.Data.ID)
	mockUserSvc.AssertExpectations(t)
}

func TestUserHandler_RegisterUser_ValidationError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockUserSvc := new(MockUserService)
	handler := handlers.NewUserHandler(mockUserSvc)

	r := gin.New()
	r.POST("/api/users/register", handler.RegisterUser)

	mockUserSvc.On("Resolve", mock.Anything, mock.Anything).
		Return(nil, &models.ValidationError{Field: "contact", Reason: "must be exactly 10 digits"})

	body, _ := json.Marshal(map[string]string{"name": "Asha", "contact": "123"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/users/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockUserSvc.AssertExpectations(t)
}

func TestUserHandler_GetUserByContact_BadContact(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewUserHandler(new(MockUserService))

	r := gin.New()
	r.GET("/api/users/contact/:contact", handler.GetUserByContact)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/users/contact/abc", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_GetUserHistory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockUserSvc := new(MockUserService)
	handler := handlers.NewUserHandler(mockUserSvc)

	r := gin.New()
	r.GET("/api/users/:id/history", handler.GetUserHistory)

	userID := primitive.NewObjectID()
	history := &models.UserHistory{
		Name: "Asha", Contact: "9876543210", Hostel: "Ganga",
		Sold:           []models.Listing{{ID: primitive.NewObjectID(), Price: 350}},
		Bought:         []models.Listing{},
		TotalSoldValue: 350,
	}
	mockUserSvc.On("GetHistory", mock.Anything, userID).Return(history, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/users/"+userID.Hex()+"/history", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data models.UserHistory `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Sold, 1)
	assert.Equal(t, 350.0, resp.Data.TotalSoldValue)
	mockUserSvc.AssertExpectations(t)
}
