package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/infrastructure/logger"
	"github.com/storefront/inventory/internal/interfaces/http/dto"
)

// RequestIDKey is the header carrying the request ID
const RequestIDKey = "X-Request-ID"

// enumTag backs a binding tag with a domain enum check
type enumTag struct {
	valid  func(string) bool
	values string
}

// enumTags are the inventory enums accepted in request bodies and query strings
var enumTags = map[string]enumTag{
	"movement_type": {
		valid:  func(s string) bool { return inventory.MovementType(s).IsValid() },
		values: "sale restock adjustment reservation release return",
	},
	"reservation_type": {
		valid:  func(s string) bool { return inventory.ReservationType(s).IsValid() },
		values: "cart order manual",
	},
	"reservation_status": {
		valid:  func(s string) bool { return inventory.ReservationStatus(s).IsValid() },
		values: "active fulfilled released expired",
	},
	"alert_type": {
		valid:  func(s string) bool { return inventory.AlertType(s).IsValid() },
		values: "low_stock out_of_stock consistency_violation",
	},
	"alert_status": {
		valid:  func(s string) bool { return inventory.AlertStatus(s).IsValid() },
		values: "active resolved ignored",
	},
}

var setupOnce sync.Once

// SetupValidator configures the gin validator: JSON field names in errors,
// the inventory enum tags and the actor tag. Safe to call more than once.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		// Use JSON tag names for field names in errors
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})

		for tag, enum := range enumTags {
			valid := enum.valid
			// only fails on an empty tag name or a reserved one
			_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
				return valid(fl.Field().String())
			})
		}
		_ = v.RegisterValidation("actor", validateActor)
	})
}

// validateActor rejects control characters; actors end up in log lines and the ledger
func validateActor(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// FormatValidationErrors formats binding errors into a standard response.
// Decode failures are reported against the offending field, or "body" when
// no field is known.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var (
		validationErrors validator.ValidationErrors
		typeErr          *json.UnmarshalTypeError
		syntaxErr        *json.SyntaxError
	)
	switch {
	case errors.As(err, &validationErrors):
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		details = append(details, dto.ValidationDetail{
			Field:   field,
			Message: "Must be of type " + typeErr.Type.String(),
		})
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		details = append(details, dto.ValidationDetail{Field: "body", Message: "Malformed JSON"})
	case errors.Is(err, io.EOF):
		details = append(details, dto.ValidationDetail{Field: "body", Message: "Request body is required"})
	}

	return dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID,
		details,
	)
}

// HandleValidationError returns a validation error response
func HandleValidationError(c *gin.Context, err error) {
	requestID := getRequestIDFromContext(c)
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, requestID))
}

// getRequestIDFromContext extracts request ID from gin context
func getRequestIDFromContext(c *gin.Context) string {
	if id := c.GetString(logger.GinRequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDKey)
}

// getValidationMessage returns a human-readable validation message
func getValidationMessage(e validator.FieldError) string {
	if enum, ok := enumTags[e.Tag()]; ok {
		return "Must be one of: " + enum.values
	}

	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Type().Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "lt":
		return "Must be less than " + e.Param()
	case "actor":
		return "Must not contain control characters"
	default:
		return "Invalid value"
	}
}
