package domain

import (
	"strings"
	"time"
)

// CategoryName enumerates the closed set of ticket lifecycle stages.
type CategoryName string

const (
	CategoryAssigned       CategoryName = "assigned"
	CategoryWorkInProgress CategoryName = "work_in_progress"
	CategoryProcessed      CategoryName = "processed"
	CategoryCompleted      CategoryName = "completed"
	CategoryReturned       CategoryName = "returned"
)

// CategoryNames lists the stages in display order.
var CategoryNames = []CategoryName{
	CategoryAssigned,
	CategoryWorkInProgress,
	CategoryProcessed,
	CategoryCompleted,
	CategoryReturned,
}

var categoryLabels = map[CategoryName]string{
	CategoryAssigned:       "Assigned",
	CategoryWorkInProgress: "Work in Progress",
	CategoryProcessed:      "Processed",
	CategoryCompleted:      "Completed",
	CategoryReturned:       "Returned",
}

// ParseCategoryName validates a raw name against the closed set.
func ParseCategoryName(raw string) (CategoryName, bool) {
	name := CategoryName(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := categoryLabels[name]
	return name, ok
}

// Label returns the display label.
func (c CategoryName) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// AssociateSelectable reports whether an associate may move a ticket into this stage.
func (c CategoryName) AssociateSelectable() bool {
	return c == CategoryWorkInProgress || c == CategoryProcessed
}

// Category is a persisted lifecycle stage.
type Category struct {
	ID        string
	Name      CategoryName
	CreatedAt time.Time
}

// CategoryCount pairs a category with the number of tickets in it.
type CategoryCount struct {
	Category
	Count int
}

// DeriveCategory decides which category a ticket carries once it is saved.
//
//   - no associate: no category
//   - associate but no category: assigned
//
// Anything else keeps the category the caller chose.
func DeriveCategory(next *Ticket) *CategoryName {
	if !next.IsAssigned() {
		return nil
	}
	if next.Category == nil {
		assigned := CategoryAssigned
		return &assigned
	}
	c := *next.Category
	return &c
}

// Handover reports whether next is held by a different associate than prev.
// The assignment operation restarts such tickets at assigned.
func Handover(prev, next *Ticket) bool {
	if !next.IsAssigned() {
		return false
	}
	return prev == nil || !prev.IsAssigned() || *prev.AssociateID != *next.AssociateID
}

// StampCompletion sets CompletedAt when the ticket enters the completed stage.
// The timestamp is left alone on saves that do not change the stage.
func StampCompletion(prev, next *Ticket, now time.Time) {
	if next.Category == nil || *next.Category != CategoryCompleted {
		return
	}
	if prev != nil && prev.Category != nil && *prev.Category == CategoryCompleted {
		return
	}
	next.CompletedAt = &now
}
