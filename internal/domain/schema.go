package domain

import (
	"fmt"
	"regexp"
)

// FieldType enumerates the scalar and structural types a collection field may take.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldText     FieldType = "text"
	FieldInt      FieldType = "int"
	FieldFloat    FieldType = "float"
	FieldBoolean  FieldType = "boolean"
	FieldDate     FieldType = "date"
	FieldDateTime FieldType = "datetime"
	FieldEnum     FieldType = "enum"
	FieldArray    FieldType = "array"
	FieldFile     FieldType = "file"
	FieldJSON     FieldType = "json"
)

// StoreLocation names a backing store a field's value is written to.
type StoreLocation string

const (
	StorePostgres      StoreLocation = "postgres"
	StoreQdrant        StoreLocation = "qdrant"
	StoreQdrantPayload StoreLocation = "qdrant_payload"
	StoreMinio         StoreLocation = "minio"
)

// ExtractConfig controls text extraction and chunking for a file field.
type ExtractConfig struct {
	ExtractText bool
	OCRIfNeeded bool
	ChunkSize   int // 0 means inherit the collection default
	ChunkOverlap int
}

// ScalarField describes a non-array field: one of string/text/int/float/boolean/
// date/datetime/enum/file/json.
type ScalarField struct {
	Name          string
	Type          FieldType
	Description   string
	Required      bool
	Indexed       bool
	Unique        bool
	Filterable    bool
	Vectorize     bool
	Default       *Value
	EnumValues    []Value
	StoreIn       []StoreLocation
	ExtractConfig *ExtractConfig
}

// ArrayField describes an array-typed field: a repeated group of nested fields,
// each materialized as a child table row (relational store) or a payload list
// entry (vector store), per field's own StoreIn.
type ArrayField struct {
	Name        string
	Description string
	Required    bool
	StoreIn     []StoreLocation
	Schema      []Field
}

// Field is a two-variant sum: exactly one of Scalar or Array is non-nil. Kept
// as two structs rather than one recursive struct so the zero value can't
// silently mean "array with no schema" or "scalar with a type".
type Field struct {
	Scalar *ScalarField
	Array  *ArrayField
}

// NewScalarField wraps a ScalarField as a Field.
func NewScalarField(f ScalarField) Field { return Field{Scalar: &f} }

// NewArrayField wraps an ArrayField as a Field.
func NewArrayField(f ArrayField) Field { return Field{Array: &f} }

// Name returns the field's name regardless of variant.
func (f Field) Name() string {
	if f.Array != nil {
		return f.Array.Name
	}
	if f.Scalar != nil {
		return f.Scalar.Name
	}
	return ""
}

// IsArray reports whether this field is the array variant.
func (f Field) IsArray() bool { return f.Array != nil }

var fieldNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate checks the field's shape against the invariants the original schema
// model enforces: identifier-shaped names, vectorize only on text-like fields,
// enum fields carrying values, array fields carrying a non-empty nested schema,
// unique only on scalar-comparable types, extract_config only on file fields.
func (f Field) Validate() error {
	name := f.Name()
	if !fieldNamePattern.MatchString(name) {
		return fmt.Errorf("%w: field name %q must match ^[a-zA-Z_][a-zA-Z0-9_]*$", ErrFieldInvalid, name)
	}

	switch {
	case f.Array != nil:
		a := f.Array
		if len(a.StoreIn) == 0 {
			return fmt.Errorf("%w: field %q: store_in must be non-empty", ErrFieldInvalid, name)
		}
		if len(a.Schema) == 0 {
			return fmt.Errorf("%w: array field %q requires a non-empty nested schema", ErrFieldInvalid, name)
		}
		seen := make(map[string]struct{}, len(a.Schema))
		for _, nested := range a.Schema {
			if err := nested.Validate(); err != nil {
				return err
			}
			nn := nested.Name()
			if _, dup := seen[nn]; dup {
				return fmt.Errorf("%w: array field %q: duplicate nested field %q", ErrFieldInvalid, name, nn)
			}
			seen[nn] = struct{}{}
		}
	case f.Scalar != nil:
		s := f.Scalar
		if len(s.StoreIn) == 0 {
			return fmt.Errorf("%w: field %q: store_in must be non-empty", ErrFieldInvalid, name)
		}
		if s.Type == FieldEnum && len(s.EnumValues) == 0 {
			return fmt.Errorf("%w: enum field %q must declare at least one value", ErrFieldInvalid, name)
		}
		if s.Type != FieldEnum && len(s.EnumValues) > 0 {
			return fmt.Errorf("%w: field %q: values is only valid for enum fields", ErrFieldInvalid, name)
		}
		if s.Vectorize && s.Type != FieldText && s.Type != FieldString && s.Type != FieldFile {
			return fmt.Errorf("%w: field %q: vectorize can only be enabled for string, text, or file fields", ErrFieldInvalid, name)
		}
		if s.Type != FieldFile && s.ExtractConfig != nil {
			return fmt.Errorf("%w: field %q: extract_config is only applicable to file fields", ErrFieldInvalid, name)
		}
		if s.Unique && s.Type != FieldString && s.Type != FieldInt && s.Type != FieldFloat {
			return fmt.Errorf("%w: field %q: unique constraint is only supported for string, int, or float fields", ErrFieldInvalid, name)
		}
	default:
		return fmt.Errorf("%w: field %q has neither scalar nor array variant set", ErrFieldInvalid, name)
	}
	return nil
}

// CollectionConfig carries collection-wide defaults that individual file
// fields may override via their own ExtractConfig.
type CollectionConfig struct {
	EmbeddingModel      string
	ChunkSize           int
	ChunkOverlap        int
	EmbeddingProviderID string
}

// CollectionSchema is the compiled, validated shape of a collection: its
// field list plus chunking/embedding defaults.
type CollectionSchema struct {
	Name        string
	Database    string
	Description string
	Fields      []Field
	Config      CollectionConfig
}

var collectionNamePattern = fieldNamePattern

// Validate checks field-name uniqueness, the collection name shape, and
// recursively validates every field.
func (s CollectionSchema) Validate() error {
	if !collectionNamePattern.MatchString(s.Name) {
		return fmt.Errorf("%w: collection name %q must match ^[a-zA-Z_][a-zA-Z0-9_]*$", ErrSchemaInvalid, s.Name)
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if err := f.Validate(); err != nil {
			return err
		}
		n := f.Name()
		if _, dup := seen[n]; dup {
			return fmt.Errorf("%w: duplicate field name %q", ErrSchemaInvalid, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// GetField returns the named top-level field and true, or a zero Field and
// false if no such field exists.
func (s CollectionSchema) GetField(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name() == name {
			return f, true
		}
	}
	return Field{}, false
}

// VectorFields returns every scalar field with Vectorize set, in declaration order.
func (s CollectionSchema) VectorFields() []ScalarField {
	var out []ScalarField
	for _, f := range s.Fields {
		if f.Scalar != nil && f.Scalar.Vectorize {
			out = append(out, *f.Scalar)
		}
	}
	return out
}
