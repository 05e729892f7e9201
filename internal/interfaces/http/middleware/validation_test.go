package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/storefront/inventory/internal/infrastructure/logger"
	"github.com/storefront/inventory/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validationEnvelope mirrors dto.Response with typed details
type validationEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code      string                 `json:"code"`
		Message   string                 `json:"message"`
		RequestID string                 `json:"request_id"`
		Details   []dto.ValidationDetail `json:"details"`
	} `json:"error"`
}

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func TestHandleValidationError(t *testing.T) {
	type reserveBody struct {
		VariantID string `json:"variant_id" binding:"required,uuid"`
		Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	}

	SetupValidator()

	router := gin.New()
	router.Use(RequestID())
	router.POST("/reservations", func(c *gin.Context) {
		var req reserveBody
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	t.Run("lists failing fields by json name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(`{"variant_id":"nope","quantity":-1}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(RequestIDKey, "req-7")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp validationEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "Request validation failed", resp.Error.Message)
		assert.Equal(t, "req-7", resp.Error.RequestID)
		require.Len(t, resp.Error.Details, 2)
		assert.Equal(t, dto.ValidationDetail{Field: "variant_id", Message: "Invalid UUID format"}, resp.Error.Details[0])
		assert.Equal(t, dto.ValidationDetail{Field: "quantity", Message: "Must be greater than 0"}, resp.Error.Details[1])
	})

	decodeCases := []struct {
		name string
		body string
		want dto.ValidationDetail
	}{
		{"truncated json", `{`, dto.ValidationDetail{Field: "body", Message: "Malformed JSON"}},
		{"invalid json", `{"quantity":}`, dto.ValidationDetail{Field: "body", Message: "Malformed JSON"}},
		{"empty body", ``, dto.ValidationDetail{Field: "body", Message: "Request body is required"}},
		{"wrong type", `{"variant_id":"6f1c1f4e-8f3a-4a43-9d8e-2b1f0c8b7a11","quantity":"two"}`, dto.ValidationDetail{Field: "quantity", Message: "Must be of type int64"}},
	}
	for _, tc := range decodeCases {
		t.Run("decode failure: "+tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp validationEnvelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, []dto.ValidationDetail{tc.want}, resp.Error.Details)
		})
	}

	t.Run("valid body passes", func(t *testing.T) {
		body := `{"variant_id":"6f1c1f4e-8f3a-4a43-9d8e-2b1f0c8b7a11","quantity":2}`
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetValidationMessage(t *testing.T) {
	type sample struct {
		Required string `validate:"required"`
		Min      string `validate:"min=5"`
		Max      string `validate:"max=3"`
		Len      string `validate:"len=5"`
		UUID     string `validate:"uuid"`
		OneOf    string `validate:"oneof=cart checkout"`
		GTE      int64  `validate:"gte=10"`
		LTE      int64  `validate:"lte=1"`
		GT       int64  `validate:"gt=0"`
	}

	v := validator.New()
	err := v.Struct(sample{
		Min:   "ab",
		Max:   "abcdef",
		Len:   "ab",
		UUID:  "nope",
		OneOf: "order",
		GTE:   1,
		LTE:   5,
		GT:    0,
	})
	require.Error(t, err)

	got := map[string]string{}
	for _, e := range err.(validator.ValidationErrors) {
		got[e.Field()] = getValidationMessage(e)
	}

	assert.Equal(t, map[string]string{
		"Required": "This field is required",
		"Min":      "Must be at least 5 characters",
		"Max":      "Must be at most 3 characters",
		"Len":      "Must be exactly 5 characters",
		"UUID":     "Invalid UUID format",
		"OneOf":    "Must be one of: cart checkout",
		"GTE":      "Must be greater than or equal to 10",
		"LTE":      "Must be less than or equal to 1",
		"GT":       "Must be greater than 0",
	}, got)
}

func TestGetRequestIDFromContext(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set(RequestIDKey, "from-header")
	assert.Equal(t, "from-header", getRequestIDFromContext(c))

	c.Set(logger.GinRequestIDKey, "from-context")
	assert.Equal(t, "from-context", getRequestIDFromContext(c))
}

func TestSetupValidator_InventoryTags(t *testing.T) {
	type filter struct {
		MovementType string `form:"movement_type" binding:"omitempty,movement_type"`
		Status       string `form:"status" binding:"omitempty,reservation_status"`
		AlertType    string `form:"alert_type" binding:"omitempty,alert_type"`
		Actor        string `form:"actor" binding:"omitempty,actor"`
	}

	SetupValidator()
	SetupValidator()

	router := gin.New()
	router.GET("/movements", func(c *gin.Context) {
		var f filter
		if err := c.ShouldBindQuery(&f); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantDetail *dto.ValidationDetail
	}{
		{"known enums pass", "?movement_type=release&status=expired&alert_type=low_stock&actor=ops", http.StatusOK, nil},
		{"empty values pass", "", http.StatusOK, nil},
		{
			"unknown movement type",
			"?movement_type=transfer",
			http.StatusBadRequest,
			&dto.ValidationDetail{Field: "movement_type", Message: "Must be one of: sale restock adjustment reservation release return"},
		},
		{
			"unknown reservation status",
			"?status=pending",
			http.StatusBadRequest,
			&dto.ValidationDetail{Field: "status", Message: "Must be one of: active fulfilled released expired"},
		},
		{
			"actor with control characters",
			"?actor=ops%0Aadmin",
			http.StatusBadRequest,
			&dto.ValidationDetail{Field: "actor", Message: "Must not contain control characters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/movements"+tt.query, nil))

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantDetail == nil {
				return
			}
			var resp validationEnvelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, []dto.ValidationDetail{*tt.wantDetail}, resp.Error.Details)
		})
	}
}
