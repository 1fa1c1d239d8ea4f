package db

import (
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

// mockDuplicateKeyError builds an error that IsMongoDuplicateKeyError
// recognizes: a WriteException carrying write error code 11000.
func mockDuplicateKeyError(key string) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: test.users index: contact_1 dup key: { : %q }", key),
	}}}
}

func TestWithRetries_SuccessfulFirstAttempt(t *testing.T) {
	var calls int
	err := WithRetries(func() error {
		calls++
		return nil
	}, 3, IsMongoDuplicateKeyError)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
}

func TestWithRetries_NonDuplicateKeyAbortsImmediately(t *testing.T) {
	var calls int
	wantErr := errors.New("connection reset")
	err := WithRetries(func() error {
		calls++
		return wantErr
	}, 3, IsMongoDuplicateKeyError)
	if !errors.Is(err, wantErr) {
		t.Errorf("expected %v, got %v", wantErr, err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
}

func TestWithRetries_ExhaustRetries(t *testing.T) {
	var calls int
	maxRetries := 3
	err := WithRetries(func() error {
		calls++
		return mockDuplicateKeyError("9876543210")
	}, maxRetries, IsMongoDuplicateKeyError)

	if err == nil {
		t.Fatal("expected a duplicate key error, got nil")
	}
	if !IsMongoDuplicateKeyError(err) {
		t.Errorf("expected a duplicate key error, got %T: %v", err, err)
	}
	if calls != maxRetries+1 {
		t.Errorf("expected %d attempts, got %d", maxRetries+1, calls)
	}
}

func TestWithRetries_CollisionResolves(t *testing.T) {
	var calls int
	err := WithRetries(func() error {
		calls++
		if calls < 3 {
			return mockDuplicateKeyError("collision")
		}
		return nil
	}, 3, IsMongoDuplicateKeyError)

	if err != nil {
		t.Fatalf("expected collision to resolve, got: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestIsMongoDuplicateKeyError_OtherCodes(t *testing.T) {
	err := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 121, Message: "document failed validation"}}}
	if IsMongoDuplicateKeyError(err) {
		t.Error("code 121 must not be treated as a duplicate key error")
	}
	if IsMongoDuplicateKeyError(errors.New("plain error")) {
		t.Error("plain errors must not be treated as duplicate key errors")
	}
}
