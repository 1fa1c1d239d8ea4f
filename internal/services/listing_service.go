package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/db"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/models"
)

// CreateListingInput carries the fields a seller submits when posting an
// item. The seller profile fields feed the identity resolver.
type CreateListingInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Condition   models.Condition `json:"condition"`
	Price       float64          `json:"price"`
	SellerName  string           `json:"seller"`
	RollNo      string           `json:"rollNo"`
	Contact     string           `json:"contact"`
	Hostel      string           `json:"hostel"`
	Images      []string         `json:"images"`
}

// BuyRequestInput carries the buyer profile submitted with a buy request.
type BuyRequestInput struct {
	BuyerName string `json:"buyerName"`
	RollNo    string `json:"rollNo"`
	Contact   string `json:"buyerContact"`
	Hostel    string `json:"buyerHostel"`
}

// IListingService owns the listing lifecycle. All state transitions go
// through conditional updates so concurrent callers race on the document
// version, never on read-then-write.
type IListingService interface {
	CreateListing(ctx context.Context, in CreateListingInput) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error)
	ShowInterest(ctx context.Context, listingID primitive.ObjectID) (int, error)
	RequestToBuy(ctx context.Context, listingID primitive.ObjectID, in BuyRequestInput) (*models.Listing, error)
	ConfirmSale(ctx context.Context, listingID, sellerID primitive.ObjectID) (*models.Listing, error)
	RejectSale(ctx context.Context, listingID, sellerID primitive.ObjectID) (*models.Listing, error)
	DeleteListing(ctx context.Context, listingID, callerID primitive.ObjectID, isAdmin bool) error
}

type listingService struct {
	db           *mongo.Database
	users        IUserService
	transactions ITransactionService
	notifier     Notifier
	maxImages    int
}

// NewListingService creates a new ListingService.
func NewListingService(database *mongo.Database, users IUserService, transactions ITransactionService, notifier Notifier, maxImages int) IListingService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &listingService{
		db:           database,
		users:        users,
		transactions: transactions,
		notifier:     notifier,
		maxImages:    maxImages,
	}
}

func (s *listingService) collection() *mongo.Collection {
	return s.db.Collection(db.ListingsCollection)
}

func (in *CreateListingInput) validate(maxImages int) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Hostel = strings.TrimSpace(in.Hostel)
	switch {
	case in.Title == "":
		return &models.ValidationError{Field: "title", Reason: "is required"}
	case in.Description == "":
		return &models.ValidationError{Field: "description", Reason: "is required"}
	case in.SellerName == "":
		return &models.ValidationError{Field: "seller", Reason: "is required"}
	case in.RollNo == "":
		return &models.ValidationError{Field: "rollNo", Reason: "is required"}
	case in.Hostel == "":
		return &models.ValidationError{Field: "hostel", Reason: "is required"}
	case in.Price < 0:
		return &models.ValidationError{Field: "price", Reason: "must not be negative"}
	case !models.IsValidContact(in.Contact):
		return &models.ValidationError{Field: "contact", Reason: "must be a 10-digit number"}
	case len(in.Images) == 0:
		return &models.ValidationError{Field: "images", Reason: "at least one image is required"}
	case len(in.Images) > maxImages:
		return &models.ValidationError{Field: "images", Reason: fmt.Sprintf("at most %d images are allowed", maxImages)}
	}
	if in.Condition == "" {
		in.Condition = models.ConditionGood
	}
	if !models.IsValidCondition(in.Condition) {
		return &models.ValidationError{Field: "condition", Reason: "must be Excellent, Good or Fair"}
	}
	return nil
}

// CreateListing validates the submission, resolves the seller identity and
// inserts the listing as available.
func (s *listingService) CreateListing(ctx context.Context, in CreateListingInput) (*models.Listing, error) {
	if err := in.validate(s.maxImages); err != nil {
		return nil, err
	}

	seller, err := s.users.Resolve(ctx, models.Profile{
		Name:    in.SellerName,
		RollNo:  in.RollNo,
		Contact: in.Contact,
		Hostel:  in.Hostel,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var listing *models.Listing
	operation := func() error {
		listing = &models.Listing{
			ID:          primitive.NewObjectID(),
			Title:       in.Title,
			Description: in.Description,
			Condition:   in.Condition,
			Price:       in.Price,
			Contact:     seller.Contact,
			Hostel:      in.Hostel,
			Images:      in.Images,
			SellerID:    seller.ID,
			SellerName:  seller.Name,
			Status:      models.StatusAvailable,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, insertErr := s.collection().InsertOne(ctx, listing)
		return insertErr
	}
	if err = db.Try(operation); err != nil {
		return nil, &models.DependencyError{Op: "creating listing", Err: err}
	}
	log.Printf("Listing %s created by %s", listing.ID.Hex(), seller.ID.Hex())
	return listing, nil
}

// FindListingByID finds a listing by its ID.
func (s *listingService) FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error) {
	var listing models.Listing
	err := s.collection().FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &models.NotFoundError{Resource: "listing", ID: listingID.Hex()}
		}
		return nil, &models.DependencyError{Op: fmt.Sprintf("finding listing %s", listingID.Hex()), Err: err}
	}
	return &listing, nil
}

// ShowInterest bumps the interest counter of an available listing and
// returns the new count.
func (s *listingService) ShowInterest(ctx context.Context, listingID primitive.ObjectID) (int, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Listing
	err := s.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": listingID, "status": models.StatusAvailable},
		bson.M{
			"$inc": bson.M{"interested": 1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, s.diagnoseTransitionFailure(ctx, listingID, "show interest", nil, models.StatusAvailable)
		}
		return 0, &models.DependencyError{Op: "recording interest", Err: err}
	}
	return updated.Interested, nil
}

// RequestToBuy claims an available listing for the resolved buyer, moving
// it to pending. Under concurrent requests exactly one caller wins; the
// rest see an InvalidStateError.
func (s *listingService) RequestToBuy(ctx context.Context, listingID primitive.ObjectID, in BuyRequestInput) (*models.Listing, error) {
	buyer, err := s.users.Resolve(ctx, models.Profile{
		Name:    in.BuyerName,
		RollNo:  in.RollNo,
		Contact: in.Contact,
		Hostel:  in.Hostel,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Listing
	err = s.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": listingID, "status": models.StatusAvailable},
		bson.M{"$set": bson.M{
			"status":        models.StatusPending,
			"buyer":         buyer.ID,
			"buyer_name":    buyer.Name,
			"buyer_contact": buyer.Contact,
			"buyer_hostel":  buyer.Hostel,
			"requested_at":  now,
			"updated_at":    now,
		}},
		opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.diagnoseTransitionFailure(ctx, listingID, "request to buy", nil, models.StatusAvailable)
		}
		return nil, &models.DependencyError{Op: "claiming listing", Err: err}
	}

	if err = s.notifier.NotifyBuyRequest(ctx, &updated); err != nil {
		log.Printf("Failed to queue buy request notification for listing %s: %v", updated.ID.Hex(), err)
	}
	return &updated, nil
}

// ConfirmSale moves a pending listing to sold and records the transaction.
// Only the seller may confirm. The listing flips first; if the transaction
// record then fails the listing stays sold, the failure is logged CRITICAL
// and the caller gets a DependencyError.
func (s *listingService) ConfirmSale(ctx context.Context, listingID, sellerID primitive.ObjectID) (*models.Listing, error) {
	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Listing
	err := s.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": listingID, "seller": sellerID, "status": models.StatusPending},
		bson.M{"$set": bson.M{
			"status":     models.StatusSold,
			"sold_at":    now,
			"updated_at": now,
		}},
		opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.diagnoseTransitionFailure(ctx, listingID, "confirm sale", &sellerID, models.StatusPending)
		}
		return nil, &models.DependencyError{Op: "confirming sale", Err: err}
	}

	if _, err = s.transactions.Record(ctx, &updated); err != nil {
		log.Printf("CRITICAL: listing %s is sold but recording its transaction failed: %v", updated.ID.Hex(), err)
		return nil, &models.DependencyError{Op: "recording transaction", Err: err}
	}

	if err = s.notifier.NotifySaleConfirmed(ctx, &updated); err != nil {
		log.Printf("Failed to queue sale confirmation notification for listing %s: %v", updated.ID.Hex(), err)
	}
	return &updated, nil
}

// RejectSale returns a pending listing to available and clears the buyer
// snapshot. Only the seller may reject.
func (s *listingService) RejectSale(ctx context.Context, listingID, sellerID primitive.ObjectID) (*models.Listing, error) {
	// Return the pre-update document: the rejected buyer's identity is
	// needed for the notification and is gone from the stored record.
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var before models.Listing
	err := s.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": listingID, "seller": sellerID, "status": models.StatusPending},
		bson.M{
			"$set": bson.M{
				"status":     models.StatusAvailable,
				"updated_at": time.Now().UTC(),
			},
			"$unset": bson.M{
				"buyer":         "",
				"buyer_name":    "",
				"buyer_contact": "",
				"buyer_hostel":  "",
				"requested_at":  "",
			},
		},
		opts).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.diagnoseTransitionFailure(ctx, listingID, "reject sale", &sellerID, models.StatusPending)
		}
		return nil, &models.DependencyError{Op: "rejecting sale", Err: err}
	}

	if before.BuyerID != nil {
		if err = s.notifier.NotifySaleRejected(ctx, &before, *before.BuyerID, before.BuyerName); err != nil {
			log.Printf("Failed to queue rejection notification for listing %s: %v", before.ID.Hex(), err)
		}
	}

	after := before
	after.Status = models.StatusAvailable
	after.BuyerID = nil
	after.BuyerName = ""
	after.BuyerContact = ""
	after.BuyerHostel = ""
	after.RequestedAt = nil
	return &after, nil
}

// DeleteListing removes a listing. Only the seller (or an admin) may
// delete, and a listing referenced by a transaction is kept for the
// ledger's sake.
func (s *listingService) DeleteListing(ctx context.Context, listingID, callerID primitive.ObjectID, isAdmin bool) error {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return err
	}
	if !isAdmin && listing.SellerID != callerID {
		return models.ErrNotOwner
	}

	count, err := s.transactions.CountForListing(ctx, listingID)
	if err != nil {
		return err
	}
	if count > 0 {
		return &models.ConflictError{Reason: "listing has recorded transactions and cannot be deleted"}
	}

	result, err := s.collection().DeleteOne(ctx, bson.M{"_id": listingID})
	if err != nil {
		return &models.DependencyError{Op: "deleting listing", Err: err}
	}
	if result.DeletedCount == 0 {
		return &models.NotFoundError{Resource: "listing", ID: listingID.Hex()}
	}
	log.Printf("Listing %s deleted by %s", listingID.Hex(), callerID.Hex())
	return nil
}

// diagnoseTransitionFailure explains why a conditional update matched
// nothing: the listing is gone, belongs to someone else, or sits in the
// wrong state.
func (s *listingService) diagnoseTransitionFailure(ctx context.Context, listingID primitive.ObjectID, operation string, sellerID *primitive.ObjectID, wanted models.ListingStatus) error {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return err
	}
	if sellerID != nil && listing.SellerID != *sellerID {
		return models.ErrNotOwner
	}
	// Covers both a genuinely wrong state and a state that moved between
	// the failed update and this read.
	return &models.InvalidStateError{Operation: operation, Status: listing.Status}
}
