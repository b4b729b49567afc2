package types

import (
	"errors"
	"strings"
)

var (
	ErrFileNotFound            = errors.New("file not found")
	ErrUnsupportedFile         = errors.New("unsupported file type")
	ErrSchemaMissing           = errors.New("field schema missing")
	ErrMissingMandatoryFields  = errors.New("missing mandatory fields")
	ErrInsufficientRadioInputs = errors.New("insufficient radioactivity inputs")
	ErrInconsistentRadioInputs = errors.New("inconsistent radioactivity inputs")
	ErrDefaultsFileMissing     = errors.New("defaults file missing")
	ErrDefaultsFieldEmpty      = errors.New("defaults field empty")
	ErrUnknownParameter        = errors.New("unknown parameter")
	ErrInvalidParameter        = errors.New("invalid parameter")
	ErrBloodData               = errors.New("invalid blood data")
)

// FieldError names the fields or path a conversion failed on. It unwraps to
// one of the sentinel errors above.
type FieldError struct {
	Err    error
	Fields []string
	Path   string
	Detail string
}

func (e *FieldError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if len(e.Fields) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Fields, ", "))
	}
	if e.Path != "" {
		if len(e.Fields) > 0 {
			b.WriteString(" in ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Path)
	}
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	return b.String()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// FieldsOf returns the field names carried by err, or nil.
func FieldsOf(err error) []string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Fields
	}
	return nil
}
