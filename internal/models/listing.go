package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListingStatus is the lifecycle state of a listing. Exactly one holds at
// any time; sold and cancelled are terminal.
type ListingStatus string

const (
	StatusAvailable ListingStatus = "available"
	StatusPending   ListingStatus = "pending"
	StatusSold      ListingStatus = "sold"
	StatusCancelled ListingStatus = "cancelled"
)

// Condition is the advertised condition of the item.
type Condition string

const (
	ConditionExcellent Condition = "Excellent"
	ConditionGood      Condition = "Good"
	ConditionFair      Condition = "Fair"
)

// IsValidCondition reports whether c is one of the three allowed values.
func IsValidCondition(c Condition) bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair:
		return true
	}
	return false
}

// Listing is an item offered for sale. SellerName and the Buyer* fields are
// denormalized snapshots refreshed only at the transition that sets them;
// the seller/buyer ObjectIDs stay authoritative.
type Listing struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Condition   Condition          `bson:"condition" json:"condition"`
	Price       float64            `bson:"price" json:"price"`
	Contact     string             `bson:"contact" json:"contact"`
	Hostel      string             `bson:"hostel" json:"hostel"`
	Images      []string           `bson:"images" json:"images"` // 1..2 opaque URIs
	Interested  int                `bson:"interested" json:"interested"`
	SellerID    primitive.ObjectID `bson:"seller" json:"seller"`
	SellerName  string             `bson:"seller_name" json:"sellerName"`
	Status      ListingStatus      `bson:"status" json:"status"`

	// Buyer scratch state, present only while pending or sold.
	BuyerID      *primitive.ObjectID `bson:"buyer,omitempty" json:"buyer,omitempty"`
	BuyerName    string              `bson:"buyer_name,omitempty" json:"buyerName,omitempty"`
	BuyerContact string              `bson:"buyer_contact,omitempty" json:"buyerContact,omitempty"`
	BuyerHostel  string              `bson:"buyer_hostel,omitempty" json:"buyerHostel,omitempty"`
	RequestedAt  *time.Time          `bson:"requested_at,omitempty" json:"requestedAt,omitempty"`

	SoldAt    *time.Time `bson:"sold_at,omitempty" json:"soldAt,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// MarketStats is the reporting snapshot returned by the query service.
// Computed fresh on each call; approximate under concurrent writes.
type MarketStats struct {
	TotalListings     int64 `json:"totalListings"`
	AvailableListings int64 `json:"availableListings"`
	PendingListings   int64 `json:"pendingListings"`
	SoldListings      int64 `json:"soldListings"`
	TotalInterest     int64 `json:"totalInterest"`
	TotalUsers        int64 `json:"totalUsers"`
}
