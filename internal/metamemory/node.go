// Package metamemory defines the node model of the project knowledge graph.
//
// A Node is a concept, a component (directory or file) or a code element
// (function, struct, ...). Nodes reference each other through eleven typed
// link collections. Collections are only reachable through mutators so the
// size limits and the no-duplicate rule can never be bypassed.
package metamemory

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Collection limits.
const (
	MaxLinks  = 256
	MaxTasks  = 32
	MaxParams = 32
)

// now is a package-level var to allow deterministic timestamps in tests.
var now = func() time.Time { return time.Now().UTC().Truncate(time.Second) }

// Location points at the source span of a component or code node.
// Lines and columns are 1-based; zero means unknown.
type Location struct {
	FilePath    string `json:"file_path"`
	LineStart   int    `json:"line_start,omitempty"`
	LineEnd     int    `json:"line_end,omitempty"`
	ColumnStart int    `json:"column_start,omitempty"`
	ColumnEnd   int    `json:"column_end,omitempty"`
}

// Param is one function parameter.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Field is one struct member.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Node is a single entity of the graph.
type Node struct {
	ID        string
	Type      Type
	ProjectID string
	Name      string
	Purpose   string
	Location  Location

	Signature  string
	ReturnType string
	Visibility Visibility

	SourceHash string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Curated    bool
	CuratedAt  time.Time
	Notes      string

	tasks  []string
	params []Param
	fields []Field
	links  [linkTypeCount][]string
}

// ─── Constructors ────────────────────────────────────────────────────────────

// NewNode creates a node of the given type. The ID is derived from type and name.
func NewNode(t Type, projectID, name string) (*Node, error) {
	if projectID == "" {
		return nil, fmt.Errorf("new node: project id: %w", ErrMissingInput)
	}
	id, err := MakeID(t, name)
	if err != nil {
		return nil, fmt.Errorf("new node: %w", err)
	}
	ts := now()
	return &Node{
		ID:        id,
		Type:      t,
		ProjectID: projectID,
		Name:      name,
		CreatedAt: ts,
		UpdatedAt: ts,
	}, nil
}

// NewConcept creates a concept node with an optional purpose and task list.
func NewConcept(projectID, name, purpose string, tasks []string) (*Node, error) {
	n, err := NewNode(TypeConcept, projectID, name)
	if err != nil {
		return nil, err
	}
	n.Purpose = purpose
	for _, task := range tasks {
		if err := n.AddTask(task); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// NewFunction creates a function node located in file.
func NewFunction(projectID, name, file string, lineStart, lineEnd int, signature string) (*Node, error) {
	if file == "" {
		return nil, fmt.Errorf("new function: file: %w", ErrMissingInput)
	}
	n, err := NewNode(TypeFunction, projectID, name)
	if err != nil {
		return nil, err
	}
	n.Location = Location{FilePath: file, LineStart: lineStart, LineEnd: lineEnd}
	n.Signature = signature
	return n, nil
}

// NewStruct creates a struct node located in file.
func NewStruct(projectID, name, file string, lineStart, lineEnd int) (*Node, error) {
	if file == "" {
		return nil, fmt.Errorf("new struct: file: %w", ErrMissingInput)
	}
	n, err := NewNode(TypeStruct, projectID, name)
	if err != nil {
		return nil, err
	}
	n.Location = Location{FilePath: file, LineStart: lineStart, LineEnd: lineEnd}
	return n, nil
}

// ─── Links ───────────────────────────────────────────────────────────────────

// AddLink appends target to the collection for t. Adding an existing link
// is a no-op, even when the collection is full.
func (n *Node) AddLink(t LinkType, target string) error {
	if n == nil || target == "" {
		return fmt.Errorf("add link: %w", ErrMissingInput)
	}
	if !t.Valid() {
		return fmt.Errorf("add link: %v: %w", t, ErrInvalidInput)
	}
	if slices.Contains(n.links[t], target) {
		return nil
	}
	if len(n.links[t]) >= MaxLinks {
		return fmt.Errorf("add link %s to %s: %w", t, n.ID, ErrCapacity)
	}
	n.links[t] = append(n.links[t], target)
	return nil
}

// RemoveLink deletes target from the collection for t.
func (n *Node) RemoveLink(t LinkType, target string) error {
	if n == nil || target == "" {
		return fmt.Errorf("remove link: %w", ErrMissingInput)
	}
	if !t.Valid() {
		return fmt.Errorf("remove link: %v: %w", t, ErrInvalidInput)
	}
	i := slices.Index(n.links[t], target)
	if i < 0 {
		return fmt.Errorf("remove link %s %s: %w", t, target, ErrNotFound)
	}
	n.links[t] = slices.Delete(n.links[t], i, i+1)
	return nil
}

// HasLink reports whether target is present in the collection for t.
func (n *Node) HasLink(t LinkType, target string) bool {
	if n == nil || !t.Valid() {
		return false
	}
	return slices.Contains(n.links[t], target)
}

// Links returns a copy of the collection for t.
func (n *Node) Links(t LinkType) []string {
	if n == nil || !t.Valid() {
		return nil
	}
	return slices.Clone(n.links[t])
}

// LinkCount returns the size of the collection for t.
func (n *Node) LinkCount(t LinkType) int {
	if n == nil || !t.Valid() {
		return 0
	}
	return len(n.links[t])
}

// TotalLinks returns the number of links across every collection.
func (n *Node) TotalLinks() int {
	total := 0
	for _, l := range n.links {
		total += len(l)
	}
	return total
}

// ─── Attributes ──────────────────────────────────────────────────────────────

// AddTask appends a typical task. Duplicates are ignored.
func (n *Node) AddTask(task string) error {
	if n == nil || task == "" {
		return fmt.Errorf("add task: %w", ErrMissingInput)
	}
	if slices.Contains(n.tasks, task) {
		return nil
	}
	if len(n.tasks) >= MaxTasks {
		return fmt.Errorf("add task to %s: %w", n.ID, ErrCapacity)
	}
	n.tasks = append(n.tasks, task)
	return nil
}

// Tasks returns a copy of the typical tasks in insertion order.
func (n *Node) Tasks() []string { return slices.Clone(n.tasks) }

// AddParam appends a parameter. Name and type are both required.
func (n *Node) AddParam(p Param) error {
	if n == nil || p.Name == "" || p.Type == "" {
		return fmt.Errorf("add parameter: %w", ErrMissingInput)
	}
	if len(n.params) >= MaxParams {
		return fmt.Errorf("add parameter to %s: %w", n.ID, ErrCapacity)
	}
	n.params = append(n.params, p)
	return nil
}

// Params returns a copy of the parameters in declaration order.
func (n *Node) Params() []Param { return slices.Clone(n.params) }

// AddField appends a struct member. Name and type are both required, so
// the record is either added whole or not at all.
func (n *Node) AddField(name, typ string) error {
	if n == nil || name == "" || typ == "" {
		return fmt.Errorf("add field: %w", ErrMissingInput)
	}
	n.fields = append(n.fields, Field{Name: name, Type: typ})
	return nil
}

// Fields returns a copy of the struct members in declaration order.
func (n *Node) Fields() []Field { return slices.Clone(n.fields) }

// SetPurpose replaces the purpose and refreshes UpdatedAt.
func (n *Node) SetPurpose(purpose string) {
	n.Purpose = purpose
	n.UpdatedAt = now()
}

// SetNotes replaces the curation notes and refreshes UpdatedAt.
func (n *Node) SetNotes(notes string) {
	n.Notes = notes
	n.UpdatedAt = now()
}

// MarkCurated flags the node as reviewed by an agent.
func (n *Node) MarkCurated() {
	ts := now()
	n.Curated = true
	n.CuratedAt = ts
	n.UpdatedAt = ts
}

// Touch refreshes UpdatedAt.
func (n *Node) Touch() { n.UpdatedAt = now() }

// Clone copies every attribute except links. The clone starts with empty
// link collections; it is a template, not a graph duplicate.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		ID:         n.ID,
		Type:       n.Type,
		ProjectID:  n.ProjectID,
		Name:       n.Name,
		Purpose:    n.Purpose,
		Location:   n.Location,
		Signature:  n.Signature,
		ReturnType: n.ReturnType,
		Visibility: n.Visibility,
		SourceHash: n.SourceHash,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
		Curated:    n.Curated,
		CuratedAt:  n.CuratedAt,
		Notes:      n.Notes,
		tasks:      slices.Clone(n.tasks),
		params:     slices.Clone(n.params),
		fields:     slices.Clone(n.fields),
	}
	return c
}

// Equal compares nodes by ID. Two nil nodes are equal.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}

// ─── JSON ────────────────────────────────────────────────────────────────────

type nodeJSON struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	ProjectID  string              `json:"project_id"`
	Name       string              `json:"name"`
	Purpose    string              `json:"purpose,omitempty"`
	Location   *Location           `json:"location,omitempty"`
	Signature  string              `json:"signature,omitempty"`
	ReturnType string              `json:"return_type,omitempty"`
	Visibility string              `json:"visibility,omitempty"`
	Parameters []Param             `json:"parameters,omitempty"`
	Fields     []Field             `json:"fields,omitempty"`
	Tasks      []string            `json:"typical_tasks,omitempty"`
	Links      map[string][]string `json:"links,omitempty"`
	SourceHash string              `json:"source_hash,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Curated    bool                `json:"ci_curated,omitempty"`
	CuratedAt  *time.Time          `json:"ci_curated_at,omitempty"`
	Notes      string              `json:"ci_notes,omitempty"`
}

// MarshalJSON renders the node with links keyed by their storage token.
func (n *Node) MarshalJSON() ([]byte, error) {
	v := nodeJSON{
		ID:         n.ID,
		Type:       n.Type.String(),
		ProjectID:  n.ProjectID,
		Name:       n.Name,
		Purpose:    n.Purpose,
		Signature:  n.Signature,
		ReturnType: n.ReturnType,
		Parameters: n.params,
		Fields:     n.fields,
		Tasks:      n.tasks,
		SourceHash: n.SourceHash,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
		Curated:    n.Curated,
		Notes:      n.Notes,
	}
	if n.Location.FilePath != "" {
		loc := n.Location
		v.Location = &loc
	}
	if n.Visibility != VisibilityUnknown {
		v.Visibility = n.Visibility.String()
	}
	if n.Curated {
		at := n.CuratedAt
		v.CuratedAt = &at
	}
	for t, targets := range n.links {
		if len(targets) == 0 {
			continue
		}
		if v.Links == nil {
			v.Links = make(map[string][]string)
		}
		v.Links[LinkType(t).String()] = targets
	}
	return json.Marshal(v)
}
