package cart

import "time"

// Line is one product in a user's draft cart. There is at most one Line per
// (UserID, ProductID) and Quantity is always at least 1.
type Line struct {
	ID        string    `json:"lineId"`
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
