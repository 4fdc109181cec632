package inventory

// SetCommitHook installs a hook that runs between a transaction body and its
// commit check, letting tests interleave a concurrent writer.
func (s *Store) SetCommitHook(h func()) { s.commitHook = h }
