package model

// Category groups items. Categories are seeded and never edited at runtime.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
