package db

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a storage action that may fail transiently.
type Operation func() error

// DuplicateKeyCheck decides whether an error warrants another attempt.
type DuplicateKeyCheck func(err error) bool

const DefaultMaxRetries = 3

// Try runs op with the default retry budget, retrying only on MongoDB
// duplicate-key errors. The operation must regenerate any random _id on
// each attempt for the retry to be useful.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsMongoDuplicateKeyError)
}

// WithRetries runs op up to maxRetries+1 times with a small incremental
// backoff between duplicate-key failures. Any other error aborts at once.
func WithRetries(op Operation, maxRetries int, isDuplicateKey DuplicateKeyCheck) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		if !isDuplicateKey(err) {
			return err
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsMongoDuplicateKeyError reports whether err carries a MongoDB
// duplicate-key write error (code 11000), for single and bulk writes.
func IsMongoDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}
