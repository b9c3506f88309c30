// Package validation holds the numeric-id, length and duplicate checks used
// by the catalog and the process engine. Bounds are configured once in Rules.
package validation

import (
	"fmt"
	"unicode/utf8"

	"github.com/Spok95/batch-weighing/internal/apperr"
)

// IsNumericID reports whether s is non-empty and made of decimal digits only.
func IsNumericID(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsLengthInRange reports whether min <= len(s) <= max, counted in runes.
func IsLengthInRange(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

// HasDuplicates reports whether list holds fewer distinct values than items.
func HasDuplicates(list []string) bool {
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		seen[v] = struct{}{}
	}
	return len(seen) < len(list)
}

type Field string

const (
	FieldProductNo  Field = "product no"
	FieldMaterialNo Field = "material no"
	FieldProcessNo  Field = "process no"
	FieldBatchNo    Field = "batch no"
)

type Bounds struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

type Rules struct {
	ProductNo  Bounds `mapstructure:"product_no"`
	MaterialNo Bounds `mapstructure:"material_no"`
	ProcessNo  Bounds `mapstructure:"process_no"`
	BatchNo    Bounds `mapstructure:"batch_no"`
}

// DefaultRules mirrors the defaults in config/example.yaml.
func DefaultRules() Rules {
	return Rules{
		ProductNo:  Bounds{Min: 1, Max: 18},
		MaterialNo: Bounds{Min: 1, Max: 18},
		ProcessNo:  Bounds{Min: 1, Max: 20},
		BatchNo:    Bounds{Min: 1, Max: 20},
	}
}

func (r Rules) bounds(f Field) Bounds {
	switch f {
	case FieldProductNo:
		return r.ProductNo
	case FieldMaterialNo:
		return r.MaterialNo
	case FieldProcessNo:
		return r.ProcessNo
	case FieldBatchNo:
		return r.BatchNo
	}
	return Bounds{}
}

// Check validates a single identifier of the given field.
func (r Rules) Check(f Field, value string) error {
	if !IsNumericID(value) {
		return fmt.Errorf("%w: %s %q must contain digits only", apperr.ErrInvalidFormat, f, value)
	}
	b := r.bounds(f)
	if !IsLengthInRange(value, b.Min, b.Max) {
		return fmt.Errorf("%w: %s %q must be %d-%d digits long", apperr.ErrInvalidFormat, f, value, b.Min, b.Max)
	}
	return nil
}

// CheckAll validates every value and rejects repeated ones.
func (r Rules) CheckAll(f Field, values []string) error {
	for _, v := range values {
		if err := r.Check(f, v); err != nil {
			return err
		}
	}
	if HasDuplicates(values) {
		return fmt.Errorf("%w: duplicate %s in list", apperr.ErrConflict, f)
	}
	return nil
}
