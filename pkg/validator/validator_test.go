package validator_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	pkgvalidator "github.com/ghuser/agritrack/pkg/validator"
)

type intakeReq struct {
	Producer string           `json:"producer"           validate:"required,max=10"`
	Unit     string           `json:"unit"               validate:"required,oneof=kg tons bags"`
	PhotoURL string           `json:"photo_url"          validate:"omitempty,url"`
	Humidity int              `json:"humidity,omitempty" validate:"gte=0,lte=100"`
	Quantity decimal.Decimal  `json:"quantity"           validate:"gt=0"`
	Moisture *decimal.Decimal `json:"moisture,omitempty" validate:"omitempty,lte=100"`
	Currency string           `json:"currency,omitempty" validate:"omitempty,iso4217"`
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestValidate_valid(t *testing.T) {
	s := intakeReq{Producer: "Valley", Unit: "kg", Quantity: dec("0.5"), Moisture: decPtr("12.5"), Currency: "USD"}
	if err := pkgvalidator.Validate(&s); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestFormatValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		req   intakeReq
		field string
		want  string
	}{
		{"required", intakeReq{Unit: "kg", Quantity: dec("1")}, "producer", "This field is required"},
		{"max", intakeReq{Producer: "Green Valley Farm", Unit: "kg", Quantity: dec("1")}, "producer", "Maximum length is 10"},
		{"oneof", intakeReq{Producer: "Valley", Unit: "crates", Quantity: dec("1")}, "unit", "Must be one of: kg tons bags"},
		{"url", intakeReq{Producer: "Valley", Unit: "kg", Quantity: dec("1"), PhotoURL: "not a url"}, "photo_url", "Must be a valid URL"},
		{"lte", intakeReq{Producer: "Valley", Unit: "kg", Quantity: dec("1"), Humidity: 101}, "humidity", "Must be less than or equal to 100"},
		{"gte", intakeReq{Producer: "Valley", Unit: "kg", Quantity: dec("1"), Humidity: -1}, "humidity", "Must be greater than or equal to 0"},
		{"decimal gt", intakeReq{Producer: "Valley", Unit: "kg", Quantity: dec("0")}, "quantity", "Must be greater than 0"},
		{"decimal pointer lte", intakeReq{Producer: "Valley", Unit: "kg", Quantity: dec("1"), Moisture: decPtr("100.5")}, "moisture", "Must be less than or equal to 100"},
		{"currency", intakeReq{Producer: "Valley", Unit: "kg", Quantity: dec("1"), Currency: "DOLLARS"}, "currency", "Must be an ISO 4217 currency code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := pkgvalidator.FormatValidationErrors(pkgvalidator.Validate(&tt.req))
			if m[tt.field] != tt.want {
				t.Errorf("field %q: got %q, want %q (all: %v)", tt.field, m[tt.field], tt.want, m)
			}
		})
	}
}

func TestFormatValidationErrors_nonValidationError(t *testing.T) {
	m := pkgvalidator.FormatValidationErrors(http.ErrNoCookie)
	if len(m) != 0 {
		t.Errorf("expected empty map for non-validation error, got %v", m)
	}
}

// --- ValidateRequest ---

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantOK     bool
		wantStatus int
		wantBody   string
	}{
		{"valid", `{"producer":"Valley","unit":"tons","quantity":"2.5"}`, true, http.StatusOK, ""},
		{"invalid json", "{bad json", false, http.StatusBadRequest, "Invalid JSON"},
		{"missing field", `{"unit":"kg","quantity":"1"}`, false, http.StatusUnprocessableEntity, "Validation failed"},
		{"zero quantity", `{"producer":"Valley","unit":"kg","quantity":"0"}`, false, http.StatusUnprocessableEntity, "Must be greater than 0"},
		{"oversized body", `{"producer":"` + strings.Repeat("a", 2<<20) + `"}`, false, http.StatusRequestEntityTooLarge, "Request body exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			req, ok := pkgvalidator.ValidateRequest[intakeReq](w, r)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v. Response: %s", ok, tt.wantOK, w.Body.String())
			}
			if ok {
				if req.Unit != "tons" {
					t.Errorf("unexpected Unit: %q", req.Unit)
				}
				return
			}
			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("expected %q in body, got: %s", tt.wantBody, w.Body.String())
			}
		})
	}
}
