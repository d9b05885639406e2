package metamemory

import (
	"fmt"
	"strings"
)

// Type identifies the layer and kind of a node.
type Type int

const (
	TypeUnknown Type = iota
	TypeConcept
	TypeDirectory
	TypeFile
	TypeFunction
	TypeStruct
	TypeEnum
	TypeTypedef
	TypeMacro
	TypeVariable

	typeCount
)

var typeNames = [typeCount]string{
	"unknown",
	"concept",
	"directory",
	"file",
	"function",
	"struct",
	"enum",
	"typedef",
	"macro",
	"variable",
}

var typePrefixes = [typeCount]string{
	"",
	"concept",
	"dir",
	"file",
	"func",
	"struct",
	"enum",
	"typedef",
	"macro",
	"var",
}

// Valid reports whether t is a concrete node type.
func (t Type) Valid() bool {
	return t > TypeUnknown && t < typeCount
}

// String returns the canonical name ("function", "struct", ...).
func (t Type) String() string {
	if t < TypeUnknown || t >= typeCount {
		return typeNames[TypeUnknown]
	}
	return typeNames[t]
}

// Prefix returns the ID prefix for nodes of this type ("func", "dir", ...).
func (t Type) Prefix() string {
	if !t.Valid() {
		return ""
	}
	return typePrefixes[t]
}

// IsComponent reports whether t belongs to the component layer.
func (t Type) IsComponent() bool {
	return t == TypeDirectory || t == TypeFile
}

// IsCode reports whether t belongs to the code layer.
func (t Type) IsCode() bool {
	return t >= TypeFunction && t < typeCount
}

// ParseType accepts either the canonical name or the ID prefix of a type,
// case-insensitively.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TypeUnknown, fmt.Errorf("node type: %w", ErrMissingInput)
	}
	for t := TypeConcept; t < typeCount; t++ {
		if s == typeNames[t] || s == typePrefixes[t] {
			return t, nil
		}
	}
	return TypeUnknown, fmt.Errorf("node type %q: %w", s, ErrInvalidInput)
}

// TypeValues returns the canonical names of every concrete type.
func TypeValues() []string {
	out := make([]string, 0, typeCount-1)
	for t := TypeConcept; t < typeCount; t++ {
		out = append(out, typeNames[t])
	}
	return out
}

// MakeID builds the node ID for a type and name. It is a pure function:
// the same inputs always yield the same ID, and different types never
// collide because each type has its own prefix.
func MakeID(t Type, name string) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("make id: type %d: %w", int(t), ErrInvalidInput)
	}
	if name == "" {
		return "", fmt.Errorf("make id: name: %w", ErrMissingInput)
	}
	return t.Prefix() + ":" + name, nil
}

// SplitID returns the type and name encoded in an ID.
func SplitID(id string) (Type, string, error) {
	prefix, name, ok := strings.Cut(id, ":")
	if !ok || name == "" {
		return TypeUnknown, "", fmt.Errorf("node id %q: %w", id, ErrInvalidInput)
	}
	for t := TypeConcept; t < typeCount; t++ {
		if typePrefixes[t] == prefix {
			return t, name, nil
		}
	}
	return TypeUnknown, "", fmt.Errorf("node id %q: unknown prefix: %w", id, ErrInvalidInput)
}

// Visibility describes how widely a code element can be referenced.
type Visibility int

const (
	VisibilityUnknown Visibility = iota
	VisibilityPublic
	VisibilityInternal
	VisibilityPrivate
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityInternal:
		return "internal"
	case VisibilityPrivate:
		return "private"
	default:
		return "unknown"
	}
}
