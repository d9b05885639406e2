package softdev

// LockWrites exposes the per-project write lock to tests.
func (s *Service) LockWrites(projectID string) func() { return s.lockWrites(projectID) }
