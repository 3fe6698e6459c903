package model

import "time"

// Item is a catalog entry owned by the user who created it.
type Item struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CategoryID  int64      `json:"category_id"`
	UserID      int64      `json:"user_id"`
	ImageKey    string     `json:"-"`
	ImageMime   string     `json:"image_mime,omitempty"`
	TimeCreated time.Time  `json:"time_created"`
	TimeUpdated *time.Time `json:"time_updated,omitempty"`

	// Joined fields (not always populated).
	CategoryName string `json:"category_name,omitempty"`
	OwnerName    string `json:"owner_name,omitempty"`
	OwnerPicture string `json:"owner_picture,omitempty"`
}

// HasImage reports whether an image has been uploaded for the item.
func (i *Item) HasImage() bool {
	return i.ImageKey != ""
}

// LastModified returns the update time, or the creation time for items that
// were never edited.
func (i *Item) LastModified() time.Time {
	if i.TimeUpdated != nil {
		return *i.TimeUpdated
	}
	return i.TimeCreated
}
