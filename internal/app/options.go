package app

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// GenerateOptions configure a one-shot report.
type GenerateOptions struct {
	Date   *time.Time
	DryRun bool
}

// BackfillOptions configure a date range regeneration. Both ends are
// inclusive calendar days.
type BackfillOptions struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required"`
	// ContinueOnError keeps going after a failed day.
	ContinueOnError bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Date  *time.Time
	Limit int `validate:"gte=0"`
}

// ExportOptions hold parameters for exporting a stored report.
type ExportOptions struct {
	Date    *time.Time
	PNGPath string
	CSVPath string
	Width   int `validate:"gte=0"`
	Height  int `validate:"gte=0"`
}

// LoadOptions configure a rate import.
type LoadOptions struct {
	File      string `validate:"required"`
	BatchSize int    `default:"500" validate:"gte=1"`
}

// AnnounceOptions configure a manual notification of a stored report.
type AnnounceOptions struct {
	Date    *time.Time
	TopRows int `default:"5" validate:"gte=1,lte=50"`
}

// prepare fills defaults and validates an options struct.
func prepare(opts any) error {
	if err := defaults.Set(opts); err != nil {
		return fmt.Errorf("apply option defaults: %w", err)
	}
	if err := validate.Struct(opts); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}
