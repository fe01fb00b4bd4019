// Package catalog holds the catalog record type and the in-memory query engine
// (filter, sort, paginate) applied to scanned records.
package catalog

import (
	"math"
	"strings"

	appErrors "product-catalog/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Attribute names of the catalog table.
const (
	AttrProductID     = "productId"
	AttrCategoryName  = "categoryName"
	AttrProductName   = "productName"
	AttrDescription   = "Description"
	AttrImageURL      = "imageURL"
	AttrPrice         = "Price"
	AttrDiscountPrice = "discountPrice"
	AttrAverageRating = "AverageRating"
	AttrCommentsCount = "commentsCount"
)

// MaxRating is the upper bound of AverageRating.
const MaxRating = 5.0

var validate = validator.New()

// Product is one catalog entry.
type Product struct {
	ProductID     string  `json:"productId" dynamodbav:"productId"`
	CategoryName  string  `json:"categoryName" dynamodbav:"categoryName" validate:"max=100"`
	ProductName   string  `json:"productName" dynamodbav:"productName" validate:"required,max=200"`
	Description   string  `json:"description" dynamodbav:"Description" validate:"max=4000"`
	ImageURL      string  `json:"imageURL" dynamodbav:"imageURL" validate:"omitempty,max=2048"`
	Price         float64 `json:"price" dynamodbav:"Price" validate:"gte=0"`
	DiscountPrice float64 `json:"discountPrice" dynamodbav:"discountPrice" validate:"gte=0"`
	AverageRating float64 `json:"averageRating" dynamodbav:"AverageRating" validate:"gte=0,lte=5"`
	CommentsCount int     `json:"commentsCount" dynamodbav:"commentsCount" validate:"gte=0"`
}

// Validate checks field ranges before the record is written.
func (p Product) Validate() error {
	if err := validate.Struct(p); err != nil {
		return appErrors.Validation("invalid product: "+err.Error(), err)
	}
	return nil
}

// EnsureID assigns a fresh identifier when none was supplied and returns the identifier.
func (p *Product) EnsureID() string {
	p.ProductID = strings.TrimSpace(p.ProductID)
	if p.ProductID == "" {
		p.ProductID = uuid.New().String()
	}
	return p.ProductID
}

// StringField returns the value of a string attribute, or "" for unknown names.
func (p Product) StringField(attr string) string {
	switch attr {
	case AttrProductID:
		return p.ProductID
	case AttrCategoryName:
		return p.CategoryName
	case AttrProductName:
		return p.ProductName
	case AttrDescription:
		return p.Description
	case AttrImageURL:
		return p.ImageURL
	default:
		return ""
	}
}

// NumberField returns the value of a numeric attribute.
func (p Product) NumberField(attr string) (float64, bool) {
	switch attr {
	case AttrPrice:
		return p.Price, true
	case AttrDiscountPrice:
		return p.DiscountPrice, true
	case AttrAverageRating:
		return p.AverageRating, true
	case AttrCommentsCount:
		return float64(p.CommentsCount), true
	default:
		return 0, false
	}
}

// RatingAction selects the comment counter delta applied with a rating update.
type RatingAction string

const (
	ActionAdd    RatingAction = "add"
	ActionDelete RatingAction = "delete"
	ActionZero   RatingAction = "zero"
)

// Delta returns +1, -1 or 0. Unrecognized actions leave the counter unchanged.
func (a RatingAction) Delta() int {
	switch RatingAction(strings.ToLower(strings.TrimSpace(string(a)))) {
	case ActionAdd:
		return 1
	case ActionDelete:
		return -1
	default:
		return 0
	}
}

// RatingUpdate is an absolute rating overwrite plus a signed comment counter delta.
type RatingUpdate struct {
	AverageRating float64
	CommentsDelta int
}

// NewRatingUpdate validates the rating and resolves the action delta.
func NewRatingUpdate(avgRating float64, action RatingAction) (RatingUpdate, error) {
	if math.IsNaN(avgRating) || math.IsInf(avgRating, 0) || avgRating < 0 || avgRating > MaxRating {
		return RatingUpdate{}, appErrors.Validation("avgRating must be between 0 and 5", nil)
	}
	return RatingUpdate{AverageRating: avgRating, CommentsDelta: action.Delta()}, nil
}

// Apply returns a copy of p with the update applied. A decrement that would take
// the comment counter below zero is dropped and only the rating is written.
func (u RatingUpdate) Apply(p Product) Product {
	p.AverageRating = u.AverageRating
	if p.CommentsCount+u.CommentsDelta >= 0 {
		p.CommentsCount += u.CommentsDelta
	}
	return p
}
