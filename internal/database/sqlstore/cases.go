package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"warden/internal/moderation"

	"github.com/disgoorg/snowflake/v2"
)

// CaseStore implements moderation.CaseRepository.
type CaseStore struct {
	db *DB
}

func NewCaseStore(db *DB) *CaseStore {
	return &CaseStore{db: db}
}

var _ moderation.CaseRepository = (*CaseStore)(nil)

const caseColumns = `guild_id, case_id, action, target_id, target_tag, executor_id, reason, attachments, msg_id, dm, pending, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (moderation.Case, error) {
	var (
		c                   moderation.Case
		guildID, targetID   int64
		executorID, msgID   sql.NullInt64
		reason, dm          sql.NullString
		attachments, action string
		createdAt           int64
	)
	if err := row.Scan(&guildID, &c.CaseID, &action, &targetID, &c.TargetTag, &executorID,
		&reason, &attachments, &msgID, &dm, &c.Pending, &createdAt); err != nil {
		return c, err
	}
	c.GuildID = snowflake.ID(guildID)
	c.TargetID = snowflake.ID(targetID)
	c.Action = moderation.ActionType(action)
	c.ExecutorID = snowflake.ID(executorID.Int64)
	c.MsgID = snowflake.ID(msgID.Int64)
	c.Reason = reason.String
	c.CreatedAt = fromMillis(createdAt)
	if err := json.Unmarshal([]byte(attachments), &c.Attachments); err != nil {
		return c, fmt.Errorf("decode attachments of case %d: %w", c.CaseID, err)
	}
	if dm.Valid {
		var r moderation.DMResult
		if err := json.Unmarshal([]byte(dm.String), &r); err != nil {
			return c, fmt.Errorf("decode dm result of case %d: %w", c.CaseID, err)
		}
		c.DM = &r
	}
	return c, nil
}

// caseArgs returns the nullable columns of c in storage form.
func caseArgs(c *moderation.Case) (executorID, reason, msgID, dm any, attachments string, err error) {
	if c.ExecutorID != 0 {
		executorID = int64(c.ExecutorID)
	}
	if c.Reason != "" {
		reason = c.Reason
	}
	if c.MsgID != 0 {
		msgID = int64(c.MsgID)
	}
	if c.DM != nil {
		b, err := json.Marshal(c.DM)
		if err != nil {
			return nil, nil, nil, nil, "", err
		}
		dm = string(b)
	}
	list := c.Attachments
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil, nil, nil, nil, "", err
	}
	return executorID, reason, msgID, dm, string(b), nil
}

func (s *CaseStore) queryCases(ctx context.Context, q querier, query string, args ...any) ([]moderation.Case, error) {
	rows, err := q.QueryContext(ctx, s.db.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []moderation.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func sortByCaseID(cases []moderation.Case) {
	sort.Slice(cases, func(i, j int) bool { return cases[i].CaseID < cases[j].CaseID })
}

// ========== Numbering ==========

func (s *CaseStore) NextCaseNumber(ctx context.Context, tx moderation.Tx, guildID snowflake.ID) (int64, error) {
	q, err := s.db.conn(tx)
	if err != nil {
		return 0, err
	}
	var next int64
	err = q.QueryRowContext(ctx, s.db.rebind(`
		INSERT INTO case_counters (guild_id, last_case_id) VALUES (?, 1)
		ON CONFLICT (guild_id) DO UPDATE SET last_case_id = case_counters.last_case_id + 1
		RETURNING last_case_id
	`), int64(guildID)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next case number: %w", err)
	}
	return next, nil
}

func (s *CaseStore) MaxCaseID(ctx context.Context, guildID snowflake.ID) (int64, error) {
	var maxID sql.NullInt64
	err := s.db.db.QueryRowContext(ctx, s.db.rebind(`SELECT MAX(case_id) FROM cases WHERE guild_id = ?`), int64(guildID)).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("max case id: %w", err)
	}
	return maxID.Int64, nil
}

// ========== Single cases ==========

func (s *CaseStore) Save(ctx context.Context, tx moderation.Tx, c *moderation.Case) error {
	q, err := s.db.conn(tx)
	if err != nil {
		return err
	}
	executorID, reason, msgID, dm, attachments, err := caseArgs(c)
	if err != nil {
		return fmt.Errorf("encode case: %w", err)
	}
	_, err = q.ExecContext(ctx, s.db.rebind(`
		INSERT INTO cases (`+caseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), int64(c.GuildID), c.CaseID, string(c.Action), int64(c.TargetID), c.TargetTag,
		executorID, reason, attachments, msgID, dm, c.Pending, millis(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert case %d: %w", c.CaseID, err)
	}
	return nil
}

// The setters below each write a single column, so concurrent writers of
// one case never overwrite each other's fields.

func (s *CaseStore) SetDMResult(ctx context.Context, tx moderation.Tx, guildID snowflake.ID, caseID int64, dm moderation.DMResult) error {
	b, err := json.Marshal(dm)
	if err != nil {
		return fmt.Errorf("encode dm result: %w", err)
	}
	return s.updateColumn(ctx, tx, "dm", string(b), guildID, caseID)
}

func (s *CaseStore) SetMessageID(ctx context.Context, tx moderation.Tx, guildID snowflake.ID, caseID int64, msgID snowflake.ID) error {
	var v any
	if msgID != 0 {
		v = int64(msgID)
	}
	return s.updateColumn(ctx, tx, "msg_id", v, guildID, caseID)
}

func (s *CaseStore) ClearPending(ctx context.Context, tx moderation.Tx, guildID snowflake.ID, caseID int64) error {
	return s.updateColumn(ctx, tx, "pending", false, guildID, caseID)
}

// updateColumn sets one column of a case. column is never user input.
func (s *CaseStore) updateColumn(ctx context.Context, tx moderation.Tx, column string, value any, guildID snowflake.ID, caseID int64) error {
	q, err := s.db.conn(tx)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, s.db.rebind(`UPDATE cases SET `+column+` = ? WHERE guild_id = ? AND case_id = ?`),
		value, int64(guildID), caseID)
	if err != nil {
		return fmt.Errorf("update %s of case %d: %w", column, caseID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return moderation.ErrCaseNotFound
	}
	return nil
}

func (s *CaseStore) Get(ctx context.Context, tx moderation.Tx, guildID snowflake.ID, caseID int64) (*moderation.Case, error) {
	q, err := s.db.conn(tx)
	if err != nil {
		return nil, err
	}
	c, err := scanCase(q.QueryRowContext(ctx, s.db.rebind(`
		SELECT `+caseColumns+` FROM cases WHERE guild_id = ? AND case_id = ?
	`), int64(guildID), caseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, moderation.ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get case %d: %w", caseID, err)
	}
	return &c, nil
}

func (s *CaseStore) Delete(ctx context.Context, tx moderation.Tx, guildID snowflake.ID, caseID int64) error {
	q, err := s.db.conn(tx)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, s.db.rebind(`DELETE FROM cases WHERE guild_id = ? AND case_id = ?`), int64(guildID), caseID)
	if err != nil {
		return fmt.Errorf("delete case %d: %w", caseID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return moderation.ErrCaseNotFound
	}
	return nil
}

func (s *CaseStore) Exists(ctx context.Context, tx moderation.Tx, guildID snowflake.ID, caseID int64) (bool, error) {
	q, err := s.db.conn(tx)
	if err != nil {
		return false, err
	}
	var one int
	err = q.QueryRowContext(ctx, s.db.rebind(`SELECT 1 FROM cases WHERE guild_id = ? AND case_id = ?`), int64(guildID), caseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("case exists: %w", err)
	}
	return true, nil
}

// ========== Ranges ==========

func (s *CaseStore) DeleteRange(ctx context.Context, tx moderation.Tx, guildID snowflake.ID, start, end int64) ([]moderation.Case, error) {
	q, err := s.db.conn(tx)
	if err != nil {
		return nil, err
	}
	removed, err := s.queryCases(ctx, q, `
		DELETE FROM cases WHERE guild_id = ? AND case_id BETWEEN ? AND ?
		RETURNING `+caseColumns, int64(guildID), start, end)
	if err != nil {
		return nil, fmt.Errorf("delete cases %d-%d: %w", start, end, err)
	}
	sortByCaseID(removed)
	return removed, nil
}

func (s *CaseStore) FindByRange(ctx context.Context, tx moderation.Tx, guildID snowflake.ID, start, end int64) ([]moderation.Case, error) {
	q, err := s.db.conn(tx)
	if err != nil {
		return nil, err
	}
	found, err := s.queryCases(ctx, q, `
		SELECT `+caseColumns+` FROM cases
		WHERE guild_id = ? AND case_id BETWEEN ? AND ?
		ORDER BY case_id`, int64(guildID), start, end)
	if err != nil {
		return nil, fmt.Errorf("find cases %d-%d: %w", start, end, err)
	}
	return found, nil
}

func (s *CaseStore) UpdateReasonBulk(ctx context.Context, tx moderation.Tx, guildID snowflake.ID, start, end int64, reason string, onlyEmpty bool) ([]moderation.Case, error) {
	q, err := s.db.conn(tx)
	if err != nil {
		return nil, err
	}
	query := `UPDATE cases SET reason = ? WHERE guild_id = ? AND case_id BETWEEN ? AND ?`
	if onlyEmpty {
		query += ` AND (reason IS NULL OR reason = '')`
	}
	updated, err := s.queryCases(ctx, q, query+` RETURNING `+caseColumns, reason, int64(guildID), start, end)
	if err != nil {
		return nil, fmt.Errorf("update reasons %d-%d: %w", start, end, err)
	}
	sortByCaseID(updated)
	return updated, nil
}

// ========== Lookups ==========

func (s *CaseStore) SearchByIDPrefix(ctx context.Context, guildID snowflake.ID, prefix string, limit int) ([]moderation.Case, error) {
	found, err := s.queryCases(ctx, s.db.db, `
		SELECT `+caseColumns+` FROM cases
		WHERE guild_id = ? AND CAST(case_id AS TEXT) LIKE ?
		ORDER BY case_id DESC
		LIMIT ?`, int64(guildID), prefix+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search cases: %w", err)
	}
	return found, nil
}

func (s *CaseStore) FindRecent(ctx context.Context, guildID snowflake.ID, limit int) ([]moderation.Case, error) {
	found, err := s.queryCases(ctx, s.db.db, `
		SELECT `+caseColumns+` FROM cases
		WHERE guild_id = ?
		ORDER BY case_id DESC
		LIMIT ?`, int64(guildID), limit)
	if err != nil {
		return nil, fmt.Errorf("recent cases: %w", err)
	}
	return found, nil
}

func (s *CaseStore) FindPending(ctx context.Context, tx moderation.Tx, guildID, userID snowflake.ID, types []moderation.ActionType, since time.Time) (*moderation.Case, error) {
	if len(types) == 0 {
		return nil, moderation.ErrCaseNotFound
	}
	q, err := s.db.conn(tx)
	if err != nil {
		return nil, err
	}

	args := []any{int64(guildID), int64(userID), true, millis(since)}
	for _, t := range types {
		args = append(args, string(t))
	}
	found, err := s.queryCases(ctx, q, `
		SELECT `+caseColumns+` FROM cases
		WHERE guild_id = ? AND target_id = ? AND pending = ? AND created_at >= ?
		  AND action IN (`+placeholders(len(types))+`)
		ORDER BY case_id ASC
		LIMIT 1`, args...)
	if err != nil {
		return nil, fmt.Errorf("find pending case: %w", err)
	}
	if len(found) == 0 {
		return nil, moderation.ErrCaseNotFound
	}
	return &found[0], nil
}
