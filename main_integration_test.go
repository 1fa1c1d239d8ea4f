package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	testAppBinary     = "./marketplace_test_app"
	testAppPort       = "8089"
	testServiceport   = "8091"
	testDbName        = "marketplace_integration_test"
	testAppURL        = "http://localhost:" + testAppPort
	testServiceApiURL = "http://localhost:" + testServiceport
	startupTimeout    = 15 * time.Second
	pingEndpoint      = testAppURL + "/api/ping"
)

// TestMain builds the application binary, runs it in "all" mode (API plus
// background worker in one process) against a dedicated test database, and
// tears it down after the tests.
func TestMain(m *testing.M) {
	defer func() {
		_ = os.Remove(testAppBinary)
	}()

	godotenv.Load()

	log.Println("Integration Test Setup: Building application...")
	buildCmd := exec.Command("go", "build", "-o", testAppBinary, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		log.Printf("Failed to build application: %v\nOutput:\n%s", err, string(out))
		os.Exit(1)
	}

	if err := dropTestDatabase(); err != nil {
		log.Printf("Failed to reset test database: %v", err)
		os.Exit(1)
	}

	appCmd := exec.Command(testAppBinary, "-m", "all")
	appCmd.Env = append(os.Environ(),
		"API_PORT="+testAppPort,
		"SERVICE_API_PORT="+testServiceport,
		"MONGO_DB_NAME="+testDbName,
		"JWT_SECRET=integration-test-secret",
		"GIN_MODE=release",
		"MOCK_SERVICES=true", // emails captured in Redis for getTestEmail
		"REDIS_ADDR=localhost:6379",
		"SMTP_FROM_ADDRESS=test@example.com",
	)
	appCmd.Stderr = os.Stderr
	appCmd.Stdout = os.Stdout

	log.Println("Integration Test Setup: Starting application process...")
	if err := appCmd.Start(); err != nil {
		log.Printf("Failed to start application process: %v", err)
		os.Exit(1)
	}

	defer func() {
		log.Println("Integration Test Teardown: Stopping application process...")
		if err := appCmd.Process.Signal(syscall.SIGTERM); err != nil {
			log.Printf("SIGTERM failed (%v), killing process", err)
			_ = appCmd.Process.Kill()
		} else {
			_, _ = appCmd.Process.Wait()
		}
	}()

	log.Printf("Integration Test Setup: Waiting for readiness at %s...", pingEndpoint)
	ready := false
	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(pingEndpoint)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK && string(body) == "pong" {
				ready = true
				break
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	if !ready {
		log.Printf("Application failed to start within %v", startupTimeout)
		os.Exit(1)
	}

	m.Run()
}

func dropTestDatabase() error {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		return fmt.Errorf("MONGO_URI is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)
	return client.Database(testDbName).Drop(ctx)
}

// apiResponse is the envelope every handler responds with.
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Count   *int            `json:"count"`
}

func doJSON(t *testing.T, method, url, token string, payload interface{}) (*http.Response, apiResponse) {
	t.Helper()
	var bodyReader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "%s %s should not fail at transport level", method, url)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var envelope apiResponse
	require.NoError(t, json.Unmarshal(raw, &envelope), "response should be a JSON envelope: %s", string(raw))
	return resp, envelope
}

// getEmailFromServiceAPI fetches a captured mock email for the given event and
// recipient. The service API itself polls Redis, so one request is enough to
// absorb worker latency.
func getEmailFromServiceAPI(t *testing.T, event, email string) map[string]interface{} {
	t.Helper()
	payload := map[string]interface{}{
		"method":    "getTestEmail",
		"arguments": []string{event, email},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(testServiceApiURL+"/api", "application/json", bytes.NewReader(raw))
	require.NoError(t, err, "service API request should not fail")
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "expected captured email for %s/%s, got: %s", event, email, string(body))

	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func signupSeller(t *testing.T) (token, email, rollNo string) {
	t.Helper()
	suffix := time.Now().UnixNano()
	email = fmt.Sprintf("seller_%d@example.com", suffix)
	rollNo = fmt.Sprintf("2021IT%06d", suffix%1000000)
	resp, envelope := doJSON(t, http.MethodPost, testAppURL+"/api/auth/signup", "", map[string]interface{}{
		"name":     "Integration Seller",
		"rollNo":   rollNo,
		"contact":  "9876501234",
		"hostel":   "Aravali",
		"email":    email,
		"password": "StrongP@ssw0rd123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "signup should succeed: %s", envelope.Error)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token, email, rollNo
}

func TestIntegration_Ping(t *testing.T) {
	resp, err := http.Get(pingEndpoint)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
}

// TestIntegration_ListingLifecycle walks a listing end to end over HTTP:
// signup, post, buy request (with mock email capture), confirm, history.
func TestIntegration_ListingLifecycle(t *testing.T) {
	token, sellerEmail, rollNo := signupSeller(t)

	// Post a listing as the registered seller. The rollNo ties the listing
	// to the signup account, so notifications reach the account email.
	resp, envelope := doJSON(t, http.MethodPost, testAppURL+"/api/listings", "", map[string]interface{}{
		"title":       "Clip-on study lamp",
		"description": "Warm white, barely used",
		"condition":   "Excellent",
		"price":       450,
		"seller":      "Integration Seller",
		"rollNo":      rollNo,
		"contact":     "9876501234",
		"hostel":      "Aravali",
		"images":      []string{"https://img.example.com/lamp.jpg"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create listing should succeed: %s", envelope.Error)

	var listing struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &listing))
	require.NotEmpty(t, listing.ID)
	assert.Equal(t, "available", listing.Status)

	// Listing appears in the public feed.
	resp, envelope = doJSON(t, http.MethodGet, testAppURL+"/api/listings", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, envelope.Count)
	assert.GreaterOrEqual(t, *envelope.Count, 1)

	// A buyer (no account) requests to buy.
	resp, envelope = doJSON(t, http.MethodPut, testAppURL+"/api/listings/"+listing.ID+"/request", "", map[string]interface{}{
		"buyerName":    "Integration Buyer",
		"buyerContact": "9123456780",
		"buyerHostel":  "Nilgiri",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "buy request should succeed: %s", envelope.Error)
	require.NoError(t, json.Unmarshal(envelope.Data, &listing))
	assert.Equal(t, "pending", listing.Status)

	// The background worker delivers the seller notification to Redis.
	emailData := getEmailFromServiceAPI(t, "buy_request", sellerEmail)
	subject, _ := emailData["subject"].(string)
	assert.Contains(t, subject, "wants to buy")
	assert.Contains(t, subject, "Clip-on study lamp")

	// A second buy request must lose the race against the pending state.
	resp, envelope = doJSON(t, http.MethodPut, testAppURL+"/api/listings/"+listing.ID+"/request", "", map[string]interface{}{
		"buyerName":    "Late Buyer",
		"buyerContact": "9123456781",
		"buyerHostel":  "Shivalik",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.NotEmpty(t, envelope.Error)

	// The seller confirms the sale with their token.
	resp, envelope = doJSON(t, http.MethodPut, testAppURL+"/api/listings/"+listing.ID+"/confirm", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "confirm should succeed: %s", envelope.Error)
	require.NoError(t, json.Unmarshal(envelope.Data, &listing))
	assert.Equal(t, "sold", listing.Status)

	// The sale landed in the seller's transaction history.
	resp, envelope = doJSON(t, http.MethodGet, testAppURL+"/api/transactions/history", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, envelope.Count)
	assert.Equal(t, 1, *envelope.Count)

	// Stats reflect the completed sale.
	resp, envelope = doJSON(t, http.MethodGet, testAppURL+"/api/listings/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats struct {
		SoldListings int64 `json:"soldListings"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &stats))
	assert.GreaterOrEqual(t, stats.SoldListings, int64(1))
}

func TestIntegration_ConfirmRequiresAuth(t *testing.T) {
	req, err := http.NewRequest(http.MethodPut, testAppURL+"/api/listings/000000000000000000000000/confirm", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}
