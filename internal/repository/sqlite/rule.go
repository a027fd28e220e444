package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/pkg/errors"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
	"github.com/pratik-mahalle/infrasec/internal/pkg/metrics"
)

const ruleColumns = "id, name, description, severity, pattern, remediation, origin, status, created_at, checksum"

// RuleStore persists rules in SQLite. Timestamps are stored as UTC RFC3339
// strings so the checksum canonical form survives the round-trip unchanged.
type RuleStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRuleStore creates a SQLite-backed rule store
func NewRuleStore(db *sql.DB, log *logger.Logger) rule.Store {
	return &RuleStore{db: db, logger: log.WithComponent("sqlite")}
}

func (s *RuleStore) CreateRule(ctx context.Context, r *rule.SecurityRule) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create_rule", "security_rules", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageError("Failed to start transaction", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO security_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		r.ID, r.Name, r.Description, string(r.Severity), r.Pattern, r.Remediation,
		string(r.Origin), string(r.Status), r.CreatedAt.UTC().Format(time.RFC3339), r.Checksum(),
	)
	if err != nil {
		return errors.StorageError("Failed to create rule", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rule_metrics (rule_id, times_triggered, true_positives, false_positives, effectiveness_score)
		VALUES (?, 0, 0, 0, 0)
	`, r.ID)
	if err != nil {
		return errors.StorageError("Failed to create rule metrics", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("Failed to commit rule", err)
	}
	return nil
}

func (s *RuleStore) UpdateRuleWithVersion(ctx context.Context, updated *rule.SecurityRule, snapshot rule.Version) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update_rule", "security_rules", time.Since(start)) }()

	snapshotJSON, err := json.Marshal(snapshot.Snapshot)
	if err != nil {
		return errors.StorageError("Failed to encode version snapshot", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageError("Failed to start transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE security_rules
		SET name = ?, description = ?, severity = ?, pattern = ?, remediation = ?,
		    origin = ?, status = ?, created_at = ?, checksum = ?
		WHERE id = ?
	`,
		updated.Name, updated.Description, string(updated.Severity), updated.Pattern,
		updated.Remediation, string(updated.Origin), string(updated.Status),
		updated.CreatedAt.UTC().Format(time.RFC3339), updated.Checksum(), updated.ID,
	)
	if err != nil {
		return errors.StorageError("Failed to update rule", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.StorageError("Failed to get affected rows", err)
	}
	if rows == 0 {
		return errors.NotFound("Rule")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rule_versions (rule_id, version, created_at, change_reason, snapshot)
		VALUES (?, ?, ?, ?, ?)
	`,
		snapshot.RuleID, snapshot.Version, snapshot.CreatedAt.UTC().Format(time.RFC3339),
		snapshot.ChangeReason, string(snapshotJSON),
	)
	if err != nil {
		return errors.StorageError("Failed to record rule version", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("Failed to commit rule update", err)
	}
	return nil
}

func (s *RuleStore) UpdateRuleStatus(ctx context.Context, id string, status rule.Status) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update_rule_status", "security_rules", time.Since(start)) }()

	// The checksum covers status, so recompute it from the stored content
	// inside one transaction.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageError("Failed to start transaction", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM security_rules WHERE id = ?", id)
	r, storedChecksum, err := scanRule(row)
	if err == sql.ErrNoRows {
		return errors.NotFound("Rule")
	}
	if err != nil {
		return errors.StorageError("Failed to get rule", err)
	}
	if r.Checksum() != storedChecksum {
		return errors.Integrity(fmt.Sprintf("Rule %s failed checksum verification", id))
	}

	r.Status = status
	_, err = tx.ExecContext(ctx, "UPDATE security_rules SET status = ?, checksum = ? WHERE id = ?",
		string(status), r.Checksum(), id)
	if err != nil {
		return errors.StorageError("Failed to update rule status", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("Failed to commit status update", err)
	}
	return nil
}

func (s *RuleStore) GetRule(ctx context.Context, id string) (*rule.SecurityRule, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_rule", "security_rules", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM security_rules WHERE id = ?", id)

	r, storedChecksum, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Rule")
	}
	if err != nil {
		return nil, errors.StorageError("Failed to get rule", err)
	}

	if r.Checksum() != storedChecksum {
		return nil, errors.Integrity(fmt.Sprintf("Rule %s failed checksum verification", id))
	}
	return r, nil
}

func (s *RuleStore) ListRules(ctx context.Context, filter rule.Filter) ([]*rule.SecurityRule, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_rules", "security_rules", time.Since(start)) }()

	query := "SELECT " + ruleColumns + " FROM security_rules"

	var conds []string
	var args []interface{}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Origin != "" {
		conds = append(conds, "origin = ?")
		args = append(args, string(filter.Origin))
	}
	if filter.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StorageError("Failed to list rules", err)
	}
	defer rows.Close()

	var rules []*rule.SecurityRule
	for rows.Next() {
		r, storedChecksum, err := scanRule(rows)
		if err != nil {
			return nil, errors.StorageError("Failed to scan rule", err)
		}
		if r.Checksum() != storedChecksum {
			s.logger.WithFields(map[string]interface{}{
				"rule_id": r.ID,
			}).Warn("Skipping rule that failed checksum verification")
			continue
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("Failed to iterate rules", err)
	}
	return rules, nil
}

func (s *RuleStore) DeleteRule(ctx context.Context, id string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete_rule", "security_rules", time.Since(start)) }()

	// Foreign keys cascade to versions, metrics, and conflicts on both sides
	result, err := s.db.ExecContext(ctx, "DELETE FROM security_rules WHERE id = ?", id)
	if err != nil {
		return errors.StorageError("Failed to delete rule", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.StorageError("Failed to get affected rows", err)
	}
	if rows == 0 {
		return errors.NotFound("Rule")
	}
	return nil
}

func (s *RuleStore) ListVersions(ctx context.Context, ruleID string) ([]*rule.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, version, created_at, change_reason, snapshot
		FROM rule_versions WHERE rule_id = ? ORDER BY version
	`, ruleID)
	if err != nil {
		return nil, errors.StorageError("Failed to list rule versions", err)
	}
	defer rows.Close()

	var versions []*rule.Version
	for rows.Next() {
		var v rule.Version
		var createdAt, snapshot string
		if err := rows.Scan(&v.RuleID, &v.Version, &createdAt, &v.ChangeReason, &snapshot); err != nil {
			return nil, errors.StorageError("Failed to scan rule version", err)
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if err := json.Unmarshal([]byte(snapshot), &v.Snapshot); err != nil {
			return nil, errors.StorageError("Failed to decode version snapshot", err)
		}
		versions = append(versions, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("Failed to iterate rule versions", err)
	}
	return versions, nil
}

func (s *RuleStore) NextVersion(ctx context.Context, ruleID string) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) + 1 FROM rule_versions WHERE rule_id = ?", ruleID,
	).Scan(&next)
	if err != nil {
		return 0, errors.StorageError("Failed to get next version", err)
	}
	return next, nil
}

func (s *RuleStore) GetMetrics(ctx context.Context, ruleID string) (*rule.Metrics, error) {
	var m rule.Metrics
	var lastTriggered sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT rule_id, times_triggered, true_positives, false_positives, last_triggered, effectiveness_score
		FROM rule_metrics WHERE rule_id = ?
	`, ruleID).Scan(
		&m.RuleID, &m.TimesTriggered, &m.TruePositives, &m.FalsePositives,
		&lastTriggered, &m.EffectivenessScore,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Rule metrics")
	}
	if err != nil {
		return nil, errors.StorageError("Failed to get rule metrics", err)
	}

	if lastTriggered.Valid {
		if t, err := time.Parse(time.RFC3339, lastTriggered.String); err == nil {
			m.LastTriggered = &t
		}
	}
	return &m, nil
}

func (s *RuleStore) UpdateMetrics(ctx context.Context, m *rule.Metrics) error {
	var lastTriggered interface{}
	if m.LastTriggered != nil {
		lastTriggered = m.LastTriggered.UTC().Format(time.RFC3339)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rule_metrics
		SET times_triggered = ?, true_positives = ?, false_positives = ?,
		    last_triggered = ?, effectiveness_score = ?
		WHERE rule_id = ?
	`, m.TimesTriggered, m.TruePositives, m.FalsePositives, lastTriggered, m.EffectivenessScore, m.RuleID)
	if err != nil {
		return errors.StorageError("Failed to update rule metrics", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.StorageError("Failed to get affected rows", err)
	}
	if rows == 0 {
		return errors.NotFound("Rule metrics")
	}
	return nil
}

func (s *RuleStore) SaveConflict(ctx context.Context, c *rule.Conflict) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_conflicts (rule_id, conflicting_rule_id, conflict_type, description, severity, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (rule_id, conflicting_rule_id, conflict_type) DO NOTHING
	`,
		c.RuleID, c.ConflictingRuleID, string(c.Type), c.Description, string(c.Severity),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.StorageError("Failed to save conflict", err)
	}
	return nil
}

func (s *RuleStore) ListConflicts(ctx context.Context) ([]*rule.Conflict, error) {
	return s.queryConflicts(ctx, `
		SELECT rule_id, conflicting_rule_id, conflict_type, description, severity
		FROM rule_conflicts ORDER BY id
	`)
}

func (s *RuleStore) ListConflictsForRule(ctx context.Context, ruleID string) ([]*rule.Conflict, error) {
	return s.queryConflicts(ctx, `
		SELECT rule_id, conflicting_rule_id, conflict_type, description, severity
		FROM rule_conflicts WHERE rule_id = ? OR conflicting_rule_id = ? ORDER BY id
	`, ruleID, ruleID)
}

func (s *RuleStore) queryConflicts(ctx context.Context, query string, args ...interface{}) ([]*rule.Conflict, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StorageError("Failed to list conflicts", err)
	}
	defer rows.Close()

	var conflicts []*rule.Conflict
	for rows.Next() {
		var c rule.Conflict
		if err := rows.Scan(&c.RuleID, &c.ConflictingRuleID, &c.Type, &c.Description, &c.Severity); err != nil {
			return nil, errors.StorageError("Failed to scan conflict", err)
		}
		conflicts = append(conflicts, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("Failed to iterate conflicts", err)
	}
	return conflicts, nil
}

func (s *RuleStore) DeleteConflictPair(ctx context.Context, ruleID, otherID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM rule_conflicts
		WHERE (rule_id = ? AND conflicting_rule_id = ?)
		   OR (rule_id = ? AND conflicting_rule_id = ?)
	`, ruleID, otherID, otherID, ruleID)
	if err != nil {
		return errors.StorageError("Failed to delete conflict pair", err)
	}
	return nil
}

func (s *RuleStore) CountByStatus(ctx context.Context) (map[rule.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM security_rules GROUP BY status")
	if err != nil {
		return nil, errors.StorageError("Failed to count rules", err)
	}
	defer rows.Close()

	counts := make(map[rule.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.StorageError("Failed to scan rule count", err)
		}
		counts[rule.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("Failed to iterate rule counts", err)
	}
	return counts, nil
}

func (s *RuleStore) CountConflicts(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rule_conflicts").Scan(&count); err != nil {
		return 0, errors.StorageError("Failed to count conflicts", err)
	}
	return count, nil
}

func (s *RuleStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*rule.SecurityRule, string, error) {
	var r rule.SecurityRule
	var createdAt, checksum string
	err := row.Scan(
		&r.ID, &r.Name, &r.Description, &r.Severity, &r.Pattern, &r.Remediation,
		&r.Origin, &r.Status, &createdAt, &checksum,
	)
	if err != nil {
		return nil, "", err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &r, checksum, nil
}

// Backup snapshots the database into dest using VACUUM INTO, which produces
// a consistent copy without blocking readers.
func (s *RuleStore) Backup(dest string) error {
	escaped := strings.ReplaceAll(dest, "'", "''")
	if _, err := s.db.Exec(fmt.Sprintf("VACUUM INTO '%s'", escaped)); err != nil {
		return errors.StorageError("Failed to back up database", err)
	}
	return nil
}
