package postgres

import "context"

// ResetForTest truncates every row and restarts the global-position
// sequence, giving each contract-test scenario its own clean slate
// against one long-lived database. Grounded on the teacher's
// ClearNamespaceMessages (truncate + reset sequence); test-only, not
// part of the Driver interface.
func (s *Store) ResetForTest(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE TABLE messages, streams`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `ALTER SEQUENCE messages_global_position_seq RESTART WITH 0`)
	return err
}
