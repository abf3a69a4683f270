package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"serveq/pkg/logger"
	"serveq/pkg/model"
)

var slotIDRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_([01][0-9]|2[0-3])[0-5][0-9]$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type SlotValidator struct {
	logger *logger.Logger
}

func NewSlotValidator(log *logger.Logger) *SlotValidator {
	log.Info("Slot validator initialized successfully")
	return &SlotValidator{logger: log}
}

// ValidateDate checks the calendar date string used for listing.
func (v *SlotValidator) ValidateDate(date string) error {
	if _, err := time.Parse(model.SlotDateLayout, date); err != nil {
		return ValidationErrors{
			ValidationError{
				Field:   "Date",
				Message: fmt.Sprintf("date must be in %s format", model.SlotDateLayout),
			},
		}
	}
	return nil
}

// ValidateSlotID checks the shape of a slot identifier before any lookup.
func (v *SlotValidator) ValidateSlotID(slotID string) error {
	if !slotIDRegex.MatchString(slotID) {
		return ValidationErrors{
			ValidationError{
				Field:   "SlotID",
				Message: "slot_id must be in YYYY-MM-DD_HHMM format",
			},
		}
	}

	datePart := strings.SplitN(slotID, "_", 2)[0]
	if _, err := time.Parse(model.SlotDateLayout, datePart); err != nil {
		return ValidationErrors{
			ValidationError{
				Field:   "SlotID",
				Message: "slot_id date component is not a valid calendar date",
			},
		}
	}
	return nil
}
