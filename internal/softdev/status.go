package softdev

import (
	"context"
	"errors"
	"time"

	"github.com/HendryAvila/softdev/internal/index"
	"github.com/HendryAvila/softdev/internal/metamemory"
)

// Status describes the state of a project's graph.
type Status struct {
	ProjectID  string         `json:"project_id"`
	Name       string         `json:"name,omitempty"`
	RootPath   string         `json:"root_path,omitempty"`
	Depth      string         `json:"depth,omitempty"`
	Concepts   int            `json:"concepts"`
	Components int            `json:"components"`
	Functions  int            `json:"functions"`
	Structs    int            `json:"structs"`
	TotalNodes int            `json:"total_nodes"`
	Links      int            `json:"links"`
	Files      int            `json:"files"`
	ByType     map[string]int `json:"by_type"`

	LastAnalyzed  *time.Time `json:"last_analyzed,omitempty"`
	LastRefreshed *time.Time `json:"last_refreshed,omitempty"`

	// NeedsRefresh is set when source files were added, modified or
	// removed since the last analysis, or when the root is gone.
	NeedsRefresh   bool `json:"needs_refresh"`
	StaleFileCount int  `json:"stale_file_count"`
	RootMissing    bool `json:"root_missing,omitempty"`
}

// Status reports node counts and whether the project needs a refresh.
// It never writes to the index.
func (s *Service) Status(ctx context.Context, projectID string) (st *Status, err error) {
	x, err := s.open(projectID, false)
	if err != nil {
		return nil, err
	}
	ctx, done := observe(ctx, "Status", projectID)
	defer func() { done(err) }()

	stats, err := x.Stats(ctx)
	if err != nil {
		return nil, err
	}
	st = &Status{
		ProjectID:  projectID,
		Concepts:   stats.Concepts,
		Components: stats.Components,
		Functions:  stats.Functions,
		Structs:    stats.Structs,
		TotalNodes: stats.TotalNodes,
		Links:      stats.LinkCount,
		Files:      stats.FileCount,
		ByType:     stats.ByType,
	}
	if st.Name, err = x.Meta(ctx, index.MetaName); err != nil {
		return nil, err
	}
	if st.LastAnalyzed, err = metaTime(ctx, x, index.MetaLastAnalyzed); err != nil {
		return nil, err
	}
	if st.LastRefreshed, err = metaTime(ctx, x, index.MetaLastRefreshed); err != nil {
		return nil, err
	}

	root, opts, err := s.loadProject(ctx, x)
	if errors.Is(err, metamemory.ErrNotFound) {
		// Only concepts were added; there is no tree to compare.
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	st.RootPath = root
	st.Depth = opts.Depth.String()
	if opts.Depth == DepthStructure {
		return st, nil
	}

	sc, err := s.newScanner(projectID, x, s.merge(opts))
	if err != nil {
		return nil, err
	}
	changes, err := sc.Changed(ctx, root)
	if errors.Is(err, metamemory.ErrInvalidInput) {
		st.RootMissing = true
		st.NeedsRefresh = true
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	st.StaleFileCount = changes.Count()
	st.NeedsRefresh = st.StaleFileCount > 0
	return st, nil
}

func metaTime(ctx context.Context, x *index.Index, key string) (*time.Time, error) {
	v, err := x.Meta(ctx, key)
	if err != nil || v == "" {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, nil
	}
	return &t, nil
}
