package message

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrAttributeKeyRequired = errors.New("attribute key is required")
	ErrUnknownAttributeKind = errors.New("unknown attribute kind")
)

// Kind identifies the value type carried by an attribute.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBinary
)

// String returns the wire name of the kind.
func (kind Kind) String() string {
	switch kind {
	case KindString:
		return "String"
	case KindNumber:
		return "Number"
	case KindBinary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// Value holds an attribute value together with its kind. Only the field
// matching Kind is meaningful; downstream translators must reject kinds they
// do not recognize instead of dropping them.
type Value struct {
	Kind   Kind
	Text   string
	Number decimal.Decimal
	Binary []byte
}

// Attribute is one key/value pair of opaque message metadata. Attributes form
// an ordered list; order is preserved through enqueue and delivery.
type Attribute struct {
	Key   string
	Value Value
}

// String creates a string attribute.
func String(key, text string) Attribute {
	return Attribute{Key: key, Value: Value{Kind: KindString, Text: text}}
}

// Number creates a numeric attribute. Numbers travel as decimals so precision
// survives the trip through the downstream attribute format.
func Number(key string, number decimal.Decimal) Attribute {
	return Attribute{Key: key, Value: Value{Kind: KindNumber, Number: number}}
}

// Binary creates a binary attribute.
func Binary(key string, data []byte) Attribute {
	return Attribute{Key: key, Value: Value{Kind: KindBinary, Binary: data}}
}

// Validate checks the attribute has a key and a recognized kind.
func (attribute Attribute) Validate() error {
	if attribute.Key == "" {
		return ErrAttributeKeyRequired
	}

	switch attribute.Value.Kind {
	case KindString, KindNumber, KindBinary:
		return nil
	default:
		return fmt.Errorf("%w: attribute %q kind %d", ErrUnknownAttributeKind, attribute.Key, attribute.Value.Kind)
	}
}

// ValidateAttributes validates each attribute in order, failing on the first
// invalid entry.
func ValidateAttributes(attributes []Attribute) error {
	for _, attribute := range attributes {
		if err := attribute.Validate(); err != nil {
			return err
		}
	}

	return nil
}
