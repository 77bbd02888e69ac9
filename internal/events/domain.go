package events

import "time"

// Event is an association happening that assistance requests attach to.
type Event struct {
	ID        int64     `json:"id"`
	Label     string    `json:"libelle"`
	Date      time.Time `json:"date"`
	Location  string    `json:"lieu"`
	CreatedAt time.Time `json:"-"`
}

// CreateInput carries the fields required to record an event.
type CreateInput struct {
	Label    string
	Date     time.Time
	Location string
}
