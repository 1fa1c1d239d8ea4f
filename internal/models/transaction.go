package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction is the immutable record of a completed sale. Price is copied
// at confirmation time and never re-derived from the listing.
type Transaction struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ListingID primitive.ObjectID `bson:"listing" json:"listing"`
	SellerID  primitive.ObjectID `bson:"seller" json:"seller"`
	BuyerID   primitive.ObjectID `bson:"buyer" json:"buyer"`
	Price     float64            `bson:"price" json:"price"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// TransactionDetail is a transaction joined with its listing and the two
// counterparties, assembled by explicit follow-up queries.
type TransactionDetail struct {
	Transaction `bson:",inline"`
	Listing     *Listing `json:"listingDetail,omitempty"`
	Seller      *User    `json:"sellerDetail,omitempty"`
	Buyer       *User    `json:"buyerDetail,omitempty"`
}
