package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/api/middleware"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/models"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/services"
)

// ListingHandler handles REST requests for listings.
type ListingHandler struct {
	listingService services.IListingService
	queryService   services.IQueryService
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(listingService services.IListingService, queryService services.IQueryService) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		queryService:   queryService,
	}
}

// pathID parses the :id path parameter as an ObjectID.
func pathID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, &models.ValidationError{Field: "id", Reason: "is not a valid ID"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// currentUserID reads the authenticated user's ID set by the auth
// middleware.
func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	raw := c.GetString(middleware.ContextKeyUserID)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false, "error": "Invalid user identity in token",
		})
		return primitive.NilObjectID, false
	}
	return id, true
}

// ListAvailable handles GET /api/listings.
func (h *ListingHandler) ListAvailable(c *gin.Context) {
	listings, err := h.queryService.ListAvailable(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, listings, len(listings))
}

// ListPending handles GET /api/listings/pending for the authenticated
// seller.
func (h *ListingHandler) ListPending(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}
	listings, err := h.queryService.ListPendingForSeller(c.Request.Context(), sellerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, listings, len(listings))
}

// GetStats handles GET /api/listings/stats.
func (h *ListingHandler) GetStats(c *gin.Context) {
	stats, err := h.queryService.GetStatistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", stats)
}

// GetListing handles GET /api/listings/:id.
func (h *ListingHandler) GetListing(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	listing, err := h.listingService.FindListingByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", listing)
}

// CreateListing handles POST /api/listings.
func (h *ListingHandler) CreateListing(c *gin.Context) {
	var input services.CreateListingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, &models.ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	listing, err := h.listingService.CreateListing(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Listing created", listing)
}

// ShowInterest handles PUT /api/listings/:id/interested.
func (h *ListingHandler) ShowInterest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	count, err := h.listingService.ShowInterest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Interest recorded", gin.H{"interested": count})
}

// RequestToBuy handles PUT /api/listings/:id/request.
func (h *ListingHandler) RequestToBuy(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input services.BuyRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, &models.ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	listing, err := h.listingService.RequestToBuy(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Buy request sent to seller", listing)
}

// ConfirmSale handles PUT /api/listings/:id/confirm.
func (h *ListingHandler) ConfirmSale(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}
	listing, err := h.listingService.ConfirmSale(c.Request.Context(), id, sellerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Sale confirmed", listing)
}

// RejectSale handles PUT /api/listings/:id/reject.
func (h *ListingHandler) RejectSale(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}
	listing, err := h.listingService.RejectSale(c.Request.Context(), id, sellerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Buy request rejected, listing is available again", listing)
}

// DeleteListing handles DELETE /api/listings/:id.
func (h *ListingHandler) DeleteListing(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	callerID, ok := currentUserID(c)
	if !ok {
		return
	}
	isAdmin := c.GetBool(middleware.ContextKeyIsAdmin)
	if err := h.listingService.DeleteListing(c.Request.Context(), id, callerID, isAdmin); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Listing deleted", nil)
}
