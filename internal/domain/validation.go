package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRoomNameTaken is returned when a room name collides by normalized key.
	ErrRoomNameTaken = errors.New("room name already in use")
	// ErrStoreNameTaken is returned when a store name collides by normalized key.
	ErrStoreNameTaken = errors.New("store name already in use")
	// ErrRoomNotEmpty is returned when deleting a room that still has children
	// and no destination room was given.
	ErrRoomNotEmpty = errors.New("room still has items or measurements; a destination room is required")
	// ErrDuplicateConversion is returned when an item was already converted.
	ErrDuplicateConversion = errors.New("item was already converted to an option")
)

// NormalizeKey lower-cases and trims a display name and collapses inner
// whitespace, producing the key used for uniqueness checks.
func NormalizeKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// ParseStatus maps a loosely formatted status to an ItemStatus.
func ParseStatus(s string) (ItemStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idea":
		return StatusIdea, true
	case "shortlist":
		return StatusShortlist, true
	case "selected":
		return StatusSelected, true
	case "ordered":
		return StatusOrdered, true
	case "delivered":
		return StatusDelivered, true
	case "installed":
		return StatusInstalled, true
	default:
		return "", false
	}
}

// ParseDiscountType maps a loose discount type string.
func ParseDiscountType(s string) DiscountType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "amount", "$", "fixed":
		return DiscountAmount
	case "percent", "%", "pct":
		return DiscountPercent
	default:
		return DiscountNone
	}
}

// ParseConfidence maps a loose confidence string.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ConfidenceLow
	case "med", "medium":
		return ConfidenceMed
	case "high":
		return ConfidenceHigh
	default:
		return ""
	}
}

// ValidationError reports field-level validation failures.
type ValidationError struct {
	Kind   Kind
	ID     string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s", e.Kind, e.ID, strings.Join(e.Fields, "; "))
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate checks struct tags on an entity.
func Validate(kind Kind, e Entity) error {
	err := validatorInstance().Struct(e)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate %s: %w", kind, err)
	}
	ve := &ValidationError{Kind: kind, ID: e.Meta().ID}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return ve
}
