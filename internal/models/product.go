package models

// Product is a read-only snapshot of a storefront product fetched from the
// commerce platform. It is never persisted locally.
type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl,omitempty"`
}
