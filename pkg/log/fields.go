package log

// Field is a single structured logging attribute.
type Field struct {
	Key   string
	Value interface{}
}

const errorFieldKey = "error"

// Str creates a string field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Bool creates a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Any creates a field holding an arbitrary value.
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Err creates an error field.
func Err(err error) Field { return Field{Key: errorFieldKey, Value: err} }

// Component tags logs with a component name.
func Component(name string) Field { return Field{Key: "component", Value: name} }
