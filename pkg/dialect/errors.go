package dialect

import "fmt"

// UnknownBlockTypeError is returned when a content block carries a "type"
// discriminator (or Go value) this package does not recognize.
type UnknownBlockTypeError struct {
	Value any
}

func (e *UnknownBlockTypeError) Error() string {
	return fmt.Sprintf("dialect: unknown content block type %v", e.Value)
}
