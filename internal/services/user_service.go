package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/auth"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/db"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/models"
)

// ErrInvalidCredentials is returned by VerifyCredentials when the email is
// unknown or the password does not match. Callers must not distinguish the
// two cases.
var ErrInvalidCredentials = errors.New("invalid email or password")

// IUserService is the identity resolver plus the account operations built
// on top of it.
type IUserService interface {
	Resolve(ctx context.Context, profile models.Profile) (*models.User, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	FindByContact(ctx context.Context, contact string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)
	CreateAccount(ctx context.Context, profile models.Profile, password string) (*models.User, error)
	VerifyCredentials(ctx context.Context, email, password string) (*models.User, error)
	GetHistory(ctx context.Context, userID primitive.ObjectID) (*models.UserHistory, error)
}

// userService implements IUserService.
type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(database *mongo.Database) IUserService {
	return &userService{db: database}
}

// lookupFilter returns the identity lookup key: roll number when supplied,
// contact otherwise. Roll number wins because buyers often re-appear with a
// new phone number but the same roll.
func lookupFilter(p models.Profile) bson.M {
	if p.RollNo != "" {
		return bson.M{"roll_no": p.RollNo}
	}
	return bson.M{"contact": p.Contact}
}

// Resolve maps a free-form profile to a durable User, creating one if
// absent and merging fresh profile fields into an existing match. The
// operation is idempotent under retry for the same profile.
//
// Create races with a concurrent resolver are absorbed by the unique
// indexes: a duplicate-key failure falls back to a re-lookup by the same
// key, and only an unresolvable collision surfaces as a ConflictError.
func (s *userService) Resolve(ctx context.Context, profile models.Profile) (*models.User, error) {
	profile.Normalize()
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	collection := s.db.Collection(db.UsersCollection)
	filter := lookupFilter(profile)

	var existing models.User
	err := collection.FindOne(ctx, filter).Decode(&existing)
	if err == nil {
		return s.merge(ctx, &existing, profile)
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &models.DependencyError{Op: "looking up user", Err: err}
	}

	now := time.Now().UTC()
	newUser := &models.User{
		ID:        primitive.NewObjectID(),
		Name:      profile.Name,
		RollNo:    profile.RollNo,
		Contact:   profile.Contact,
		Hostel:    profile.Hostel,
		Email:     profile.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, insertErr := collection.InsertOne(ctx, newUser)
	if insertErr == nil {
		log.Printf("New user created: %s (%s)", newUser.Name, newUser.ID.Hex())
		return newUser, nil
	}

	if db.IsMongoDuplicateKeyError(insertErr) {
		// A concurrent resolver won the create. Re-run the lookup by the
		// same key and return the record it made.
		err = collection.FindOne(ctx, filter).Decode(&existing)
		if err == nil {
			return s.merge(ctx, &existing, profile)
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &models.ConflictError{
				Reason: fmt.Sprintf("profile conflicts with an existing user (contact %s)", profile.Contact),
			}
		}
		return nil, &models.DependencyError{Op: "re-looking up user after create conflict", Err: err}
	}
	return nil, &models.DependencyError{Op: "creating user", Err: insertErr}
}

// merge overwrites name/hostel/email with supplied non-empty values and
// backfills roll_no only when the record lacks one.
func (s *userService) merge(ctx context.Context, user *models.User, profile models.Profile) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if profile.Name != "" {
		set["name"] = profile.Name
	}
	if profile.Hostel != "" {
		set["hostel"] = profile.Hostel
	}
	if profile.Email != "" {
		set["email"] = profile.Email
	}
	if profile.RollNo != "" && user.RollNo == "" {
		set["roll_no"] = profile.RollNo
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var merged models.User
	err := s.db.Collection(db.UsersCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": user.ID}, bson.M{"$set": set}, opts).
		Decode(&merged)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, &models.ConflictError{
				Reason: fmt.Sprintf("roll number %s or email already belongs to another user", profile.RollNo),
			}
		}
		return nil, &models.DependencyError{Op: "merging user profile", Err: err}
	}
	return &merged, nil
}

// FindByID finds a user by their ID.
func (s *userService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &models.NotFoundError{Resource: "user", ID: userID.Hex()}
		}
		return nil, &models.DependencyError{Op: fmt.Sprintf("finding user %s", userID.Hex()), Err: err}
	}
	return &user, nil
}

// FindByContact finds a user by their contact number.
func (s *userService) FindByContact(ctx context.Context, contact string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"contact": contact}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &models.NotFoundError{Resource: "user", ID: contact}
		}
		return nil, &models.DependencyError{Op: fmt.Sprintf("finding user by contact %s", contact), Err: err}
	}
	return &user, nil
}

// ListUsers returns all users, newest first.
func (s *userService) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(db.UsersCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, &models.DependencyError{Op: "listing users", Err: err}
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, &models.DependencyError{Op: "decoding users", Err: err}
	}
	return users, nil
}

// CountUsers returns the total number of user records.
func (s *userService) CountUsers(ctx context.Context) (int64, error) {
	count, err := s.db.Collection(db.UsersCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, &models.DependencyError{Op: "counting users", Err: err}
	}
	return count, nil
}

// CreateAccount registers a user with credentials. Unlike Resolve, an
// existing email or contact is a hard conflict here, not a merge target.
func (s *userService) CreateAccount(ctx context.Context, profile models.Profile, password string) (*models.User, error) {
	profile.Normalize()
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if profile.Email == "" {
		return nil, &models.ValidationError{Field: "email", Reason: "is required"}
	}
	if profile.RollNo == "" {
		return nil, &models.ValidationError{Field: "rollNo", Reason: "is required"}
	}
	if password == "" {
		return nil, &models.ValidationError{Field: "password", Reason: "is required"}
	}

	collection := s.db.Collection(db.UsersCollection)
	count, err := collection.CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"email": profile.Email},
		bson.M{"contact": profile.Contact},
	}})
	if err != nil {
		return nil, &models.DependencyError{Op: "checking existing account", Err: err}
	}
	if count > 0 {
		return nil, &models.ConflictError{Reason: "user already exists with this email or contact"}
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, &models.DependencyError{Op: "hashing password", Err: err}
	}

	now := time.Now().UTC()
	var newUser *models.User
	operation := func() error {
		newUser = &models.User{
			ID:           primitive.NewObjectID(), // regenerated on each attempt
			Name:         profile.Name,
			RollNo:       profile.RollNo,
			Contact:      profile.Contact,
			Hostel:       profile.Hostel,
			Email:        profile.Email,
			PasswordHash: hashed,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		_, insertErr := collection.InsertOne(ctx, newUser)
		return insertErr
	}

	if err = db.Try(operation); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, &models.ConflictError{Reason: "user already exists with this email or contact"}
		}
		return nil, &models.DependencyError{Op: "creating account", Err: err}
	}
	return newUser, nil
}

// VerifyCredentials checks an email/password pair and returns the matching
// user, or ErrInvalidCredentials.
func (s *userService) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, &models.DependencyError{Op: "looking up account", Err: err}
	}
	if user.PasswordHash == "" || !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// GetHistory assembles the sold/bought summary for a user by explicit
// queries against the listings collection.
func (s *userService) GetHistory(ctx context.Context, userID primitive.ObjectID) (*models.UserHistory, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	listings := s.db.Collection(db.ListingsCollection)

	findSide := func(field string) ([]models.Listing, error) {
		cursor, err := listings.Find(ctx,
			bson.M{field: userID, "status": models.StatusSold},
			options.Find().SetSort(bson.D{{Key: "sold_at", Value: -1}}))
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)
		var results []models.Listing
		if err = cursor.All(ctx, &results); err != nil {
			return nil, err
		}
		return results, nil
	}

	sold, err := findSide("seller")
	if err != nil {
		return nil, &models.DependencyError{Op: "loading sold listings", Err: err}
	}
	bought, err := findSide("buyer")
	if err != nil {
		return nil, &models.DependencyError{Op: "loading bought listings", Err: err}
	}

	history := &models.UserHistory{
		Name:    user.Name,
		RollNo:  user.RollNo,
		Contact: user.Contact,
		Hostel:  user.Hostel,
		Sold:    sold,
		Bought:  bought,
	}
	for _, l := range sold {
		history.TotalSoldValue += l.Price
	}
	for _, l := range bought {
		history.TotalBoughtValue += l.Price
	}
	return history, nil
}
