package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskpad/internal/utils"
)

// Item represents a single owner-scoped task
type Item struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Status      Status
	Priority    Priority // PriorityNone when unset
	Category    Category // CategoryNone when unset
	CreatedAt   time.Time
}

// Status represents the lifecycle state of an item
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusActive, StatusCompleted, StatusArchived}

// ParseStatus converts a string into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if contains(Statuses, st) {
		return st, nil
	}
	return "", utils.ErrValidation(fmt.Sprintf("unknown status %q (valid: active, completed, archived)", s))
}

// Toggled returns the status a completion toggle moves to.
func (s Status) Toggled() Status {
	if s == StatusCompleted {
		return StatusActive
	}
	return StatusCompleted
}

// Priority is an optional urgency level
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every settable priority, lowest first.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority converts a string into a Priority. The empty string is PriorityNone.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if p == PriorityNone {
		return PriorityNone, nil
	}
	if contains(Priorities, p) {
		return p, nil
	}
	return "", utils.ErrValidation(fmt.Sprintf("unknown priority %q (valid: low, medium, high)", s))
}

// Category is an optional label from a fixed, closed set
type Category string

const (
	CategoryNone      Category = ""
	CategoryWork      Category = "Work"
	CategoryPersonal  Category = "Personal"
	CategoryShopping  Category = "Shopping"
	CategoryHealth    Category = "Health"
	CategoryEducation Category = "Education"
	CategoryOther     Category = "Other"
)

// Categories lists every settable category in display order.
var Categories = []Category{
	CategoryWork, CategoryPersonal, CategoryShopping,
	CategoryHealth, CategoryEducation, CategoryOther,
}

// ParseCategory converts a string into a Category (case-insensitive).
// The empty string is CategoryNone.
func ParseCategory(s string) (Category, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return CategoryNone, nil
	}
	for _, v := range Categories {
		if strings.EqualFold(trimmed, string(v)) {
			return v, nil
		}
	}
	return "", utils.ErrValidation(fmt.Sprintf("unknown category %q", s))
}

// Draft is the input to Create: an item without id or creation time.
type Draft struct {
	OwnerID     string
	Title       string
	Description string
	Status      Status // defaults to StatusActive
	Priority    Priority
	Category    Category
}

// Patch holds the fields of a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	Category    *Category
}

// IsEmpty reports whether the patch carries no fields.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil && p.Category == nil
}

// ItemStore defines the owner-scoped CRUD contract every item backend satisfies
type ItemStore interface {
	// List returns every item owned by ownerID, in no particular order.
	List(ctx context.Context, ownerID string) ([]Item, error)
	// Create stores a draft, assigning a fresh id and creation time.
	Create(ctx context.Context, draft Draft) (*Item, error)
	// Update shallow-merges patch into the item with the given id.
	Update(ctx context.Context, id string, patch Patch) (*Item, error)
	// Delete removes the item permanently. Deleting an unknown id fails.
	Delete(ctx context.Context, id string) error

	Close() error
}

// ValidateDraft checks the fields a store requires before accepting a draft.
func ValidateDraft(d Draft) error {
	if err := utils.ValidateTitle(d.Title); err != nil {
		return err
	}
	if strings.TrimSpace(d.OwnerID) == "" {
		return utils.ErrValidation("owner is required")
	}
	return validateEnums(d.Status, d.Priority, d.Category)
}

// ValidatePatch checks the fields present in a patch.
func ValidatePatch(p Patch) error {
	if p.Title != nil {
		if err := utils.ValidateTitle(*p.Title); err != nil {
			return err
		}
	}
	var st Status
	var pr Priority
	var cat Category
	if p.Status != nil {
		if *p.Status == "" {
			return utils.ErrValidation("status cannot be empty")
		}
		st = *p.Status
	}
	if p.Priority != nil {
		pr = *p.Priority
	}
	if p.Category != nil {
		cat = *p.Category
	}
	return validateEnums(st, pr, cat)
}

func validateEnums(st Status, pr Priority, cat Category) error {
	if st != "" && !contains(Statuses, st) {
		return utils.ErrValidation(fmt.Sprintf("unknown status %q", st))
	}
	if pr != PriorityNone && !contains(Priorities, pr) {
		return utils.ErrValidation(fmt.Sprintf("unknown priority %q", pr))
	}
	if cat != CategoryNone && !contains(Categories, cat) {
		return utils.ErrValidation(fmt.Sprintf("unknown category %q", cat))
	}
	return nil
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// NewItem materializes a validated draft with the given id and creation time.
func NewItem(id string, d Draft, createdAt time.Time) Item {
	status := d.Status
	if status == "" {
		status = StatusActive
	}
	return Item{
		ID:          id,
		OwnerID:     d.OwnerID,
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Status:      status,
		Priority:    d.Priority,
		Category:    d.Category,
		CreatedAt:   createdAt,
	}
}

// Apply returns a copy of item with the patch merged in.
func (p Patch) Apply(item Item) Item {
	if p.Title != nil {
		item.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Status != nil {
		item.Status = *p.Status
	}
	if p.Priority != nil {
		item.Priority = *p.Priority
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	return item
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T {
	return &v
}

// GenerateID generates a unique identifier using UUID v4.
func GenerateID() string {
	return uuid.New().String()
}
