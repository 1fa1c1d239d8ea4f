package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/db"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/models"
)

// IQueryService serves read-only views over listings. Results are computed
// fresh per call; nothing is cached.
type IQueryService interface {
	ListAvailable(ctx context.Context) ([]models.Listing, error)
	ListPendingForSeller(ctx context.Context, sellerID primitive.ObjectID) ([]models.Listing, error)
	GetStatistics(ctx context.Context) (*models.MarketStats, error)
}

type queryService struct {
	db *mongo.Database
}

// NewQueryService creates a new QueryService.
func NewQueryService(database *mongo.Database) IQueryService {
	return &queryService{db: database}
}

func (s *queryService) findListings(ctx context.Context, filter bson.M, sort bson.D) ([]models.Listing, error) {
	cursor, err := s.db.Collection(db.ListingsCollection).Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, &models.DependencyError{Op: "querying listings", Err: err}
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, &models.DependencyError{Op: "decoding listings", Err: err}
	}
	return listings, nil
}

// ListAvailable returns the browse feed: available listings, newest first.
func (s *queryService) ListAvailable(ctx context.Context) ([]models.Listing, error) {
	return s.findListings(ctx,
		bson.M{"status": models.StatusAvailable},
		bson.D{{Key: "created_at", Value: -1}})
}

// ListPendingForSeller returns a seller's pending listings, most recently
// requested first, for the approval queue.
func (s *queryService) ListPendingForSeller(ctx context.Context, sellerID primitive.ObjectID) ([]models.Listing, error) {
	return s.findListings(ctx,
		bson.M{"seller": sellerID, "status": models.StatusPending},
		bson.D{{Key: "requested_at", Value: -1}})
}

// GetStatistics computes the marketplace snapshot. The counts come from
// separate queries and may not be mutually consistent under load.
func (s *queryService) GetStatistics(ctx context.Context) (*models.MarketStats, error) {
	listings := s.db.Collection(db.ListingsCollection)

	countStatus := func(filter bson.M) (int64, error) {
		count, err := listings.CountDocuments(ctx, filter)
		if err != nil {
			return 0, &models.DependencyError{Op: "counting listings", Err: err}
		}
		return count, nil
	}

	stats := &models.MarketStats{}
	var err error
	if stats.TotalListings, err = countStatus(bson.M{}); err != nil {
		return nil, err
	}
	if stats.AvailableListings, err = countStatus(bson.M{"status": models.StatusAvailable}); err != nil {
		return nil, err
	}
	if stats.PendingListings, err = countStatus(bson.M{"status": models.StatusPending}); err != nil {
		return nil, err
	}
	if stats.SoldListings, err = countStatus(bson.M{"status": models.StatusSold}); err != nil {
		return nil, err
	}

	cursor, err := listings.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$interested"},
		}}},
	})
	if err != nil {
		return nil, &models.DependencyError{Op: "aggregating interest", Err: err}
	}
	defer cursor.Close(ctx)
	var grouped []struct {
		Total int64 `bson:"total"`
	}
	if err = cursor.All(ctx, &grouped); err != nil {
		return nil, &models.DependencyError{Op: "decoding interest aggregate", Err: err}
	}
	if len(grouped) > 0 {
		stats.TotalInterest = grouped[0].Total
	}

	stats.TotalUsers, err = s.db.Collection(db.UsersCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, &models.DependencyError{Op: "counting users", Err: err}
	}
	return stats, nil
}
