package metamemory

import (
	"fmt"
	"strings"
)

// LinkType is the closed set of relationships a node can hold.
type LinkType int

const (
	LinkParentConcept LinkType = iota
	LinkChildConcept
	LinkImplements
	LinkImplementedBy
	LinkCalls
	LinkCalledBy
	LinkUsesTypes
	LinkUsedBy
	LinkIncludes
	LinkIncludedBy
	LinkRelated

	linkTypeCount
)

var linkNames = [linkTypeCount]string{
	"parent_concept",
	"child_concept",
	"implements",
	"implemented_by",
	"calls",
	"called_by",
	"uses_types",
	"used_by",
	"includes",
	"included_by",
	"related",
}

// AllLinkTypes lists every link type in declaration order.
func AllLinkTypes() []LinkType {
	out := make([]LinkType, linkTypeCount)
	for i := range out {
		out[i] = LinkType(i)
	}
	return out
}

// Valid reports whether l is one of the declared link types.
func (l LinkType) Valid() bool {
	return l >= 0 && l < linkTypeCount
}

// String returns the storage token for the link type.
func (l LinkType) String() string {
	if !l.Valid() {
		return fmt.Sprintf("LinkType(%d)", int(l))
	}
	return linkNames[l]
}

// Inverse returns the mirror relationship. includes/included_by has no
// automatic inverse: inclusion is recorded one way, by the includer.
func (l LinkType) Inverse() (LinkType, bool) {
	switch l {
	case LinkParentConcept:
		return LinkChildConcept, true
	case LinkChildConcept:
		return LinkParentConcept, true
	case LinkImplements:
		return LinkImplementedBy, true
	case LinkImplementedBy:
		return LinkImplements, true
	case LinkCalls:
		return LinkCalledBy, true
	case LinkCalledBy:
		return LinkCalls, true
	case LinkUsesTypes:
		return LinkUsedBy, true
	case LinkUsedBy:
		return LinkUsesTypes, true
	case LinkRelated:
		return LinkRelated, true
	default:
		return l, false
	}
}

// ParseLinkType converts a storage or wire token into a LinkType.
func ParseLinkType(s string) (LinkType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("link type: %w", ErrMissingInput)
	}
	for i, name := range linkNames {
		if name == s {
			return LinkType(i), nil
		}
	}
	return 0, fmt.Errorf("link type %q: %w", s, ErrInvalidInput)
}
