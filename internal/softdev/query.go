package softdev

import (
	"context"
	"fmt"

	"github.com/HendryAvila/softdev/internal/metamemory"
)

// FindConcept returns the concepts whose name or purpose contains query,
// case-insensitively. An empty query lists every concept.
func (s *Service) FindConcept(ctx context.Context, projectID, query string) (out []*metamemory.Node, err error) {
	x, err := s.open(projectID, false)
	if err != nil {
		return nil, err
	}
	ctx, done := observe(ctx, "FindConcept", projectID)
	defer func() { done(err) }()
	return x.SearchConcepts(ctx, query)
}

// FindCode returns code nodes whose name or signature contains query.
// With no types, functions and structs are searched.
func (s *Service) FindCode(ctx context.Context, projectID, query string, types ...metamemory.Type) (out []*metamemory.Node, err error) {
	x, err := s.open(projectID, false)
	if err != nil {
		return nil, err
	}
	ctx, done := observe(ctx, "FindCode", projectID)
	defer func() { done(err) }()
	return x.SearchCode(ctx, query, types...)
}

// Search runs a ranked full-text query over names, purposes and tasks of
// every node. A limit of zero uses the index default.
func (s *Service) Search(ctx context.Context, projectID, query string, limit int) (out []*metamemory.Node, err error) {
	x, err := s.open(projectID, false)
	if err != nil {
		return nil, err
	}
	ctx, done := observe(ctx, "Search", projectID)
	defer func() { done(err) }()
	return x.Search(ctx, query, limit)
}

// WhatImplements returns the nodes a concept is implemented by. A concept
// with no implementations yields an empty result.
func (s *Service) WhatImplements(ctx context.Context, projectID, conceptID string) (out []*metamemory.Node, err error) {
	if conceptID == "" {
		return nil, fmt.Errorf("softdev: concept id: %w", metamemory.ErrMissingInput)
	}
	x, err := s.open(projectID, false)
	if err != nil {
		return nil, err
	}
	ctx, done := observe(ctx, "WhatImplements", projectID)
	defer func() { done(err) }()

	concept, err := x.Load(ctx, conceptID)
	if err != nil {
		return nil, err
	}
	if concept.Type != metamemory.TypeConcept {
		return nil, fmt.Errorf("softdev: %s is a %s, not a concept: %w", conceptID, concept.Type, metamemory.ErrInvalidInput)
	}
	return x.LoadMany(ctx, concept.Links(metamemory.LinkImplements))
}

// ─── Impact ──────────────────────────────────────────────────────────────────

// AffectedNode is one node reached by an impact analysis.
type AffectedNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

// ImpactResult estimates what a change to one node affects.
type ImpactResult struct {
	NodeID           string         `json:"node_id"`
	Name             string         `json:"name"`
	DirectlyAffected []AffectedNode `json:"directly_affected"`
	// TransitivelyAffected is always empty: impact is computed one hop
	// deep.
	TransitivelyAffected []AffectedNode `json:"transitively_affected"`
	AffectedFiles        []string       `json:"affected_files"`
	Summary              string         `json:"summary"`
}

// Impact lists the direct callers of a node, and for types the functions
// using it, together with the distinct files they live in.
func (s *Service) Impact(ctx context.Context, projectID, nodeID string) (res *ImpactResult, err error) {
	if nodeID == "" {
		return nil, fmt.Errorf("softdev: node id: %w", metamemory.ErrMissingInput)
	}
	x, err := s.open(projectID, false)
	if err != nil {
		return nil, err
	}
	ctx, done := observe(ctx, "Impact", projectID)
	defer func() { done(err) }()

	n, err := x.Load(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	ids := n.Links(metamemory.LinkCalledBy)
	for _, id := range n.Links(metamemory.LinkUsedBy) {
		if !n.HasLink(metamemory.LinkCalledBy, id) {
			ids = append(ids, id)
		}
	}
	affected, err := x.LoadMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	res = &ImpactResult{
		NodeID:               n.ID,
		Name:                 n.Name,
		DirectlyAffected:     make([]AffectedNode, 0, len(affected)),
		TransitivelyAffected: []AffectedNode{},
		AffectedFiles:        []string{},
	}
	files := make(map[string]bool)
	for _, a := range affected {
		res.DirectlyAffected = append(res.DirectlyAffected, AffectedNode{
			ID:   a.ID,
			Name: a.Name,
			Type: a.Type.String(),
			File: a.Location.FilePath,
			Line: a.Location.LineStart,
		})
		if f := a.Location.FilePath; f != "" && !files[f] {
			files[f] = true
			res.AffectedFiles = append(res.AffectedFiles, f)
		}
	}
	dependents := "callers"
	if n.Type != metamemory.TypeFunction {
		dependents = "users"
	}
	res.Summary = fmt.Sprintf("Changing '%s' would affect %d direct %s in %d files",
		n.Name, len(res.DirectlyAffected), dependents, len(res.AffectedFiles))
	return res, nil
}
