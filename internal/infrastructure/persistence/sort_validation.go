package persistence

import (
	"strings"

	"github.com/storefront/inventory/internal/domain/shared"
)

// ValidateSortOrder normalizes a sort order to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, otherwise defaultField.
// Matching is exact and case sensitive.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// orderClause builds a safe ORDER BY term from the page's requested sort
func orderClause(page shared.Page, allowedFields map[string]bool, defaultField string) string {
	return ValidateSortField(page.SortBy, allowedFields, defaultField) + " " + ValidateSortOrder(page.SortOrder)
}

// MovementSortFields contains allowed sort fields for the movement ledger.
// Movements are append-only and carry no updated_at.
var MovementSortFields = map[string]bool{
	"created_at":      true,
	"sequence":        true,
	"movement_type":   true,
	"quantity_change": true,
	"quantity_after":  true,
	"reference_type":  true,
	"reference_id":    true,
}

// ReservationSortFields contains allowed sort fields for reservations
var ReservationSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"quantity":         true,
	"reservation_type": true,
	"status":           true,
	"expires_at":       true,
	"closed_at":        true,
}

// AlertSortFields contains allowed sort fields for stock alerts
var AlertSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"alert_type":  true,
	"status":      true,
	"available":   true,
	"resolved_at": true,
}
