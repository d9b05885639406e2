package softdev

import (
	"context"
	"fmt"

	"github.com/HendryAvila/softdev/internal/metamemory"
)

// ConceptInput describes a concept to create.
type ConceptInput struct {
	Name    string
	Purpose string
	Tasks   []string
	// ParentID optionally names an existing concept the new one refines.
	ParentID string
}

// AddConcept creates a concept node. It fails with ErrDuplicate when a
// concept of that name exists. The project is created if needed.
func (s *Service) AddConcept(ctx context.Context, projectID string, in ConceptInput) (n *metamemory.Node, err error) {
	concept, err := metamemory.NewConcept(projectID, in.Name, in.Purpose, in.Tasks)
	if err != nil {
		return nil, fmt.Errorf("softdev: add concept: %w", err)
	}
	x, err := s.open(projectID, true)
	if err != nil {
		return nil, err
	}
	defer s.lockWrites(projectID)()
	ctx, done := observe(ctx, "AddConcept", projectID)
	defer func() { done(err) }()

	exists, err := x.Exists(ctx, concept.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("softdev: add concept %s: %w", concept.ID, metamemory.ErrDuplicate)
	}
	if in.ParentID != "" {
		if _, err := requireConcept(ctx, x, in.ParentID); err != nil {
			return nil, err
		}
	}

	if err := x.Store(ctx, concept); err != nil {
		return nil, err
	}
	if in.ParentID != "" {
		if _, err := x.LinkBoth(ctx, in.ParentID, metamemory.LinkChildConcept, concept.ID); err != nil {
			return nil, err
		}
	}
	s.logger.Info("concept added", "project", projectID, "id", concept.ID, "parent", in.ParentID)
	return x.Load(ctx, concept.ID)
}

// LinkToConcept records that a code or component node implements a
// concept. Both directions are written together.
func (s *Service) LinkToConcept(ctx context.Context, projectID, codeID, conceptID string) (err error) {
	if codeID == "" || conceptID == "" {
		return fmt.Errorf("softdev: link to concept: %w", metamemory.ErrMissingInput)
	}
	x, err := s.open(projectID, false)
	if err != nil {
		return err
	}
	defer s.lockWrites(projectID)()
	ctx, done := observe(ctx, "LinkToConcept", projectID)
	defer func() { done(err) }()

	if _, err := requireConcept(ctx, x, conceptID); err != nil {
		return err
	}
	code, err := x.Load(ctx, codeID)
	if err != nil {
		return err
	}
	if code.Type == metamemory.TypeConcept {
		return fmt.Errorf("softdev: %s is a concept, not code: %w", codeID, metamemory.ErrInvalidInput)
	}
	_, err = x.LinkBoth(ctx, conceptID, metamemory.LinkImplements, codeID)
	return err
}

// Curate records a reviewed purpose and notes on a node and marks it as
// curated. Empty arguments leave the current values.
func (s *Service) Curate(ctx context.Context, projectID, nodeID, purpose, notes string) (n *metamemory.Node, err error) {
	if nodeID == "" {
		return nil, fmt.Errorf("softdev: curate: node id: %w", metamemory.ErrMissingInput)
	}
	x, err := s.open(projectID, false)
	if err != nil {
		return nil, err
	}
	defer s.lockWrites(projectID)()
	ctx, done := observe(ctx, "Curate", projectID)
	defer func() { done(err) }()

	n, err = x.Load(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if purpose != "" {
		n.SetPurpose(purpose)
	}
	if notes != "" {
		n.SetNotes(notes)
	}
	n.MarkCurated()
	if err := x.Store(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

type nodeLoader interface {
	Load(ctx context.Context, id string) (*metamemory.Node, error)
}

func requireConcept(ctx context.Context, x nodeLoader, id string) (*metamemory.Node, error) {
	n, err := x.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Type != metamemory.TypeConcept {
		return nil, fmt.Errorf("softdev: %s is a %s, not a concept: %w", id, n.Type, metamemory.ErrInvalidInput)
	}
	return n, nil
}
