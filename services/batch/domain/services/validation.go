package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	batchdomain "github.com/ghuser/agritrack/services/batch/domain"
	"github.com/ghuser/agritrack/services/batch/domain/models"
)

const (
	maxTextLength      = 255
	maxNotesLength     = 2000
	maxAttributes      = 32
	maxAttributeKeyLen = 64
)

var (
	attributeKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)
	currencyPattern     = regexp.MustCompile(`^[A-Z]{3}$`)

	minTemperatureC = decimal.NewFromInt(-80)
	maxTemperatureC = decimal.NewFromInt(80)
	hundred         = decimal.NewFromInt(100)

	// Every stored timestamp has a four-digit year, which keeps the
	// fixed-width text encoding in the SQL stores lossless and ordered.
	earliestTime = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	latestTime   = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)
)

// ValidateText enforces the rules shared by every free-text field:
//   - required fields must not be empty
//   - no leading or trailing whitespace
//   - no control characters (Unicode category Cc)
//   - at most max bytes
func ValidateText(field, s string, required bool, max int) error {
	if s == "" {
		if required {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	if len(s) > max {
		return fmt.Errorf("%s must not exceed %d characters", field, max)
	}
	if s != strings.TrimSpace(s) {
		return fmt.Errorf("%s must not have leading or trailing whitespace", field)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s must not contain control characters", field)
		}
	}
	return nil
}

// ValidateIntake checks producer intake data before a batch is created.
func ValidateIntake(in models.Intake) error {
	if err := validateIntake(in); err != nil {
		return fmt.Errorf("%w: %w", batchdomain.ErrInvalidIntake, err)
	}
	return nil
}

func validateIntake(in models.Intake) error {
	if err := ValidateText("producer name", in.Producer.Name, true, maxTextLength); err != nil {
		return err
	}
	if err := ValidateText("producer location", in.Producer.Location, false, maxTextLength); err != nil {
		return err
	}
	if err := ValidateText("product type", in.Product.Type, true, maxTextLength); err != nil {
		return err
	}
	if !in.Product.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be greater than zero")
	}
	if _, err := models.ParseUnit(string(in.Product.Unit)); err != nil {
		return err
	}
	if !in.OccurredAt.IsZero() {
		if err := validateTime("occurred_at", in.OccurredAt); err != nil {
			return err
		}
	}
	if err := ValidateText("location", in.Location, false, maxTextLength); err != nil {
		return err
	}
	if err := validateAttributes(in.Attributes); err != nil {
		return err
	}
	return validateProducerDetails(in.Details)
}

// ValidateStageInput checks a custodian's stage before it reaches the
// transition engine. Which stage may follow which is not checked here.
func ValidateStageInput(in models.StageInput) error {
	if err := validateStageInput(in); err != nil {
		return fmt.Errorf("%w: %w", batchdomain.ErrInvalidStage, err)
	}
	return nil
}

func validateStageInput(in models.StageInput) error {
	if err := ValidateText("actor", in.Actor, true, maxTextLength); err != nil {
		return err
	}
	if in.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	if err := validateTime("occurred_at", in.OccurredAt); err != nil {
		return err
	}
	if err := ValidateText("location", in.Location, false, maxTextLength); err != nil {
		return err
	}
	if err := validateAttributes(in.Attributes); err != nil {
		return err
	}

	switch d := in.Details.(type) {
	case models.ProducerDetails:
		return validateProducerDetails(d)
	case models.TransportDetails:
		return validateTransportDetails(d)
	case models.SellerDetails:
		return validateSellerDetails(d)
	case nil:
		return fmt.Errorf("stage details are required")
	default:
		return fmt.Errorf("unsupported stage details %T", in.Details)
	}
}

func validateAttributes(attrs map[string]string) error {
	if len(attrs) > maxAttributes {
		return fmt.Errorf("at most %d attributes are allowed", maxAttributes)
	}
	for k, v := range attrs {
		if len(k) > maxAttributeKeyLen || !attributeKeyPattern.MatchString(k) {
			return fmt.Errorf("attribute key %q must match %s and not exceed %d characters", k, attributeKeyPattern, maxAttributeKeyLen)
		}
		if err := ValidateText("attribute "+k, v, false, maxTextLength); err != nil {
			return err
		}
	}
	return nil
}

func validateProducerDetails(d models.ProducerDetails) error {
	if err := validateOptionalTime("planted_on", d.PlantedOn); err != nil {
		return err
	}
	if err := validateOptionalTime("harvested_on", d.HarvestedOn); err != nil {
		return err
	}
	if d.PlantedOn != nil && d.HarvestedOn != nil && d.HarvestedOn.Before(*d.PlantedOn) {
		return fmt.Errorf("harvest date must not precede planting date")
	}
	if err := ValidateText("photo reference", d.PhotoRef, false, maxTextLength); err != nil {
		return err
	}
	return validateNotes(d.Notes)
}

func validateTransportDetails(d models.TransportDetails) error {
	if t := d.TemperatureC; t != nil && (t.LessThan(minTemperatureC) || t.GreaterThan(maxTemperatureC)) {
		return fmt.Errorf("temperature must be between %s and %s °C", minTemperatureC, maxTemperatureC)
	}
	if err := validatePercent("humidity", d.HumidityPct); err != nil {
		return err
	}
	if err := validateOptionalTime("expected_delivery", d.ExpectedDelivery); err != nil {
		return err
	}
	return validateNotes(d.Notes)
}

func validateSellerDetails(d models.SellerDetails) error {
	if d.Price != nil && d.Price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	if d.Currency != "" && !currencyPattern.MatchString(d.Currency) {
		return fmt.Errorf("currency must be an ISO 4217 code")
	}
	if d.Price != nil && d.Currency == "" {
		return fmt.Errorf("currency is required with a price")
	}
	if err := validatePercent("discount", d.DiscountPct); err != nil {
		return err
	}
	if err := validateOptionalTime("best_before", d.BestBefore); err != nil {
		return err
	}
	return validateNotes(d.Notes)
}

func validateTime(field string, t time.Time) error {
	if t.Before(earliestTime) || t.After(latestTime) {
		return fmt.Errorf("%s must fall between years %d and %d", field, earliestTime.Year(), latestTime.Year())
	}
	return nil
}

func validateOptionalTime(field string, t *time.Time) error {
	if t == nil {
		return nil
	}
	return validateTime(field, *t)
}

func validatePercent(field string, p *decimal.Decimal) error {
	if p != nil && (p.IsNegative() || p.GreaterThan(hundred)) {
		return fmt.Errorf("%s must be between 0 and 100 percent", field)
	}
	return nil
}

func validateNotes(notes string) error {
	if len(notes) > maxNotesLength {
		return fmt.Errorf("notes must not exceed %d characters", maxNotesLength)
	}
	for _, r := range notes {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return fmt.Errorf("notes must not contain control characters")
		}
	}
	return nil
}
