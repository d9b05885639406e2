package softdev

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/softdev/internal/metamemory"
)

// Depth selects how much of the graph an analysis builds. Each level
// includes everything the previous one does.
type Depth int

const (
	// DepthStructure records directory and file nodes only.
	DepthStructure Depth = iota + 1
	// DepthSignatures parses functions and structs and tracks file hashes.
	DepthSignatures
	// DepthRelationships links calls, type usage and includes.
	DepthRelationships
	// DepthFull infers a concept per top-level directory.
	DepthFull
)

var depthNames = map[Depth]string{
	DepthStructure:     "structure",
	DepthSignatures:    "signatures",
	DepthRelationships: "relationships",
	DepthFull:          "full",
}

// DepthValues lists the accepted depth names, shallowest first.
func DepthValues() []string {
	return []string{"structure", "signatures", "relationships", "full"}
}

func (d Depth) String() string {
	if name, ok := depthNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Depth(%d)", int(d))
}

// ParseDepth parses a depth name. The empty string selects DepthFull.
func ParseDepth(s string) (Depth, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DepthFull, nil
	}
	for d, name := range depthNames {
		if name == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("depth %q (want one of %s): %w",
		s, strings.Join(DepthValues(), ", "), metamemory.ErrInvalidInput)
}
