package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/db"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/models"
)

// ITransactionService keeps the append-only sale ledger. Records are never
// updated or deleted.
type ITransactionService interface {
	Record(ctx context.Context, listing *models.Listing) (*models.Transaction, error)
	HistoryForUser(ctx context.Context, userID primitive.ObjectID) ([]models.TransactionDetail, error)
	CountForListing(ctx context.Context, listingID primitive.ObjectID) (int64, error)
}

type transactionService struct {
	db *mongo.Database
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(database *mongo.Database) ITransactionService {
	return &transactionService{db: database}
}

// Record appends a transaction for a sold listing. The listing must carry
// its buyer snapshot.
func (s *transactionService) Record(ctx context.Context, listing *models.Listing) (*models.Transaction, error) {
	if listing.BuyerID == nil {
		return nil, &models.ValidationError{Field: "buyer", Reason: "listing has no buyer to record"}
	}

	collection := s.db.Collection(db.TransactionsCollection)
	var txn *models.Transaction
	operation := func() error {
		txn = &models.Transaction{
			ID:        primitive.NewObjectID(),
			ListingID: listing.ID,
			SellerID:  listing.SellerID,
			BuyerID:   *listing.BuyerID,
			Price:     listing.Price,
			CreatedAt: time.Now().UTC(),
		}
		_, insertErr := collection.InsertOne(ctx, txn)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, &models.DependencyError{Op: "recording transaction", Err: err}
	}
	return txn, nil
}

// HistoryForUser returns the transactions where the user was buyer or
// seller, newest first, with the referenced documents attached. A
// referenced listing or user that has since disappeared leaves a nil slot
// rather than failing the whole history.
func (s *transactionService) HistoryForUser(ctx context.Context, userID primitive.ObjectID) ([]models.TransactionDetail, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(db.TransactionsCollection).Find(ctx,
		bson.M{"$or": bson.A{
			bson.M{"buyer": userID},
			bson.M{"seller": userID},
		}}, opts)
	if err != nil {
		return nil, &models.DependencyError{Op: "loading transaction history", Err: err}
	}
	defer cursor.Close(ctx)

	var txns []models.Transaction
	if err = cursor.All(ctx, &txns); err != nil {
		return nil, &models.DependencyError{Op: "decoding transactions", Err: err}
	}

	details := make([]models.TransactionDetail, 0, len(txns))
	for _, txn := range txns {
		detail := models.TransactionDetail{Transaction: txn}
		detail.Listing = s.loadListing(ctx, txn.ListingID)
		detail.Seller = s.loadUser(ctx, txn.SellerID)
		detail.Buyer = s.loadUser(ctx, txn.BuyerID)
		details = append(details, detail)
	}
	return details, nil
}

// CountForListing returns how many transactions reference a listing.
func (s *transactionService) CountForListing(ctx context.Context, listingID primitive.ObjectID) (int64, error) {
	count, err := s.db.Collection(db.TransactionsCollection).CountDocuments(ctx, bson.M{"listing": listingID})
	if err != nil {
		return 0, &models.DependencyError{Op: fmt.Sprintf("counting transactions for listing %s", listingID.Hex()), Err: err}
	}
	return count, nil
}

func (s *transactionService) loadListing(ctx context.Context, id primitive.ObjectID) *models.Listing {
	var listing models.Listing
	if err := s.db.Collection(db.ListingsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&listing); err != nil {
		return nil
	}
	return &listing
}

func (s *transactionService) loadUser(ctx context.Context, id primitive.ObjectID) *models.User {
	var user models.User
	if err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil
	}
	return &user
}
