// Package moderationtest provides in-memory repositories and function-field
// mocks of the moderation ports for tests.
package moderationtest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"warden/internal/moderation"

	"github.com/disgoorg/snowflake/v2"
)

type caseKey struct {
	guild snowflake.ID
	id    int64
}

type banKey struct {
	guild snowflake.ID
	user  snowflake.ID
}

type state struct {
	counters map[snowflake.ID]int64
	cases    map[caseKey]moderation.Case
	tempBans map[banKey]moderation.TempBan
}

func (s state) clone() state {
	c := state{
		counters: make(map[snowflake.ID]int64, len(s.counters)),
		cases:    make(map[caseKey]moderation.Case, len(s.cases)),
		tempBans: make(map[banKey]moderation.TempBan, len(s.tempBans)),
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	for k, v := range s.cases {
		c.cases[k] = v
	}
	for k, v := range s.tempBans {
		c.tempBans[k] = v
	}
	return c
}

// Store is an in-memory case and temp-ban store. Transactions are
// serialized and roll back to a snapshot taken at BeginTx, counters
// included, like the counter table of the SQL store.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data state

	// Optional hooks. A non-nil error aborts the call.
	SaveCaseFunc    func(c moderation.Case) error
	SaveTempBanFunc func(tb moderation.TempBan) error
}

func NewStore() *Store {
	return &Store{data: state{
		counters: map[snowflake.ID]int64{},
		cases:    map[caseKey]moderation.Case{},
		tempBans: map[banKey]moderation.TempBan{},
	}}
}

var (
	_ moderation.Transactor     = (*Store)(nil)
	_ moderation.CaseRepository = (*Store)(nil)
)

type tx struct {
	store    *Store
	snapshot state
	done     bool
}

func (t *tx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	t.store.data = t.snapshot
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

func (s *Store) BeginTx(ctx context.Context) (moderation.Tx, error) {
	s.txMu.Lock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return &tx{store: s, snapshot: s.data.clone()}, nil
}

func (s *Store) NextCaseNumber(ctx context.Context, _ moderation.Tx, guildID snowflake.ID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.counters[guildID]++
	return s.data.counters[guildID], nil
}

func (s *Store) Save(ctx context.Context, _ moderation.Tx, c *moderation.Case) error {
	if s.SaveCaseFunc != nil {
		if err := s.SaveCaseFunc(*c); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := caseKey{c.GuildID, c.CaseID}
	if _, ok := s.data.cases[k]; ok {
		return fmt.Errorf("case %d already exists", c.CaseID)
	}
	s.data.cases[k] = *c
	return nil
}

func (s *Store) SetDMResult(ctx context.Context, _ moderation.Tx, guildID snowflake.ID, caseID int64, dm moderation.DMResult) error {
	return s.modify(guildID, caseID, func(c *moderation.Case) { c.DM = &dm })
}

func (s *Store) SetMessageID(ctx context.Context, _ moderation.Tx, guildID snowflake.ID, caseID int64, msgID snowflake.ID) error {
	return s.modify(guildID, caseID, func(c *moderation.Case) { c.MsgID = msgID })
}

func (s *Store) ClearPending(ctx context.Context, _ moderation.Tx, guildID snowflake.ID, caseID int64) error {
	return s.modify(guildID, caseID, func(c *moderation.Case) { c.Pending = false })
}

func (s *Store) modify(guildID snowflake.ID, caseID int64, fn func(*moderation.Case)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := caseKey{guildID, caseID}
	c, ok := s.data.cases[k]
	if !ok {
		return moderation.ErrCaseNotFound
	}
	fn(&c)
	s.data.cases[k] = c
	return nil
}

func (s *Store) Get(ctx context.Context, _ moderation.Tx, guildID snowflake.ID, caseID int64) (*moderation.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.cases[caseKey{guildID, caseID}]
	if !ok {
		return nil, moderation.ErrCaseNotFound
	}
	return &c, nil
}

func (s *Store) Delete(ctx context.Context, _ moderation.Tx, guildID snowflake.ID, caseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := caseKey{guildID, caseID}
	if _, ok := s.data.cases[k]; !ok {
		return moderation.ErrCaseNotFound
	}
	delete(s.data.cases, k)
	return nil
}

func (s *Store) Exists(ctx context.Context, _ moderation.Tx, guildID snowflake.ID, caseID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data.cases[caseKey{guildID, caseID}]
	return ok, nil
}

// sorted returns the guild's cases ordered by case id, filtered by keep.
func (s *Store) sorted(guildID snowflake.ID, keep func(moderation.Case) bool) []moderation.Case {
	var out []moderation.Case
	for k, c := range s.data.cases {
		if k.guild == guildID && keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CaseID < out[j].CaseID })
	return out
}

func inRange(start, end int64) func(moderation.Case) bool {
	return func(c moderation.Case) bool { return c.CaseID >= start && c.CaseID <= end }
}

func (s *Store) DeleteRange(ctx context.Context, _ moderation.Tx, guildID snowflake.ID, start, end int64) ([]moderation.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.sorted(guildID, inRange(start, end))
	for _, c := range removed {
		delete(s.data.cases, caseKey{guildID, c.CaseID})
	}
	return removed, nil
}

func (s *Store) FindByRange(ctx context.Context, _ moderation.Tx, guildID snowflake.ID, start, end int64) ([]moderation.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(guildID, inRange(start, end)), nil
}

func (s *Store) UpdateReasonBulk(ctx context.Context, _ moderation.Tx, guildID snowflake.ID, start, end int64, reason string, onlyEmpty bool) ([]moderation.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated []moderation.Case
	for _, c := range s.sorted(guildID, inRange(start, end)) {
		if onlyEmpty && c.HasReason() {
			continue
		}
		c.Reason = reason
		s.data.cases[caseKey{guildID, c.CaseID}] = c
		updated = append(updated, c)
	}
	return updated, nil
}

func (s *Store) SearchByIDPrefix(ctx context.Context, guildID snowflake.ID, prefix string, limit int) ([]moderation.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sorted(guildID, func(c moderation.Case) bool {
		return strings.HasPrefix(strconv.FormatInt(c.CaseID, 10), prefix)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CaseID > out[j].CaseID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FindRecent(ctx context.Context, guildID snowflake.ID, limit int) ([]moderation.Case, error) {
	return s.SearchByIDPrefix(ctx, guildID, "", limit)
}

func (s *Store) MaxCaseID(ctx context.Context, guildID snowflake.ID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max int64
	for k := range s.data.cases {
		if k.guild == guildID && k.id > max {
			max = k.id
		}
	}
	return max, nil
}

func (s *Store) FindPending(ctx context.Context, _ moderation.Tx, guildID, userID snowflake.ID, types []moderation.ActionType, since time.Time) (*moderation.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := s.sorted(guildID, func(c moderation.Case) bool {
		if !c.Pending || c.TargetID != userID || c.CreatedAt.Before(since) {
			return false
		}
		for _, t := range types {
			if c.Action == t {
				return true
			}
		}
		return false
	})
	if len(matches) == 0 {
		return nil, moderation.ErrCaseNotFound
	}
	c := matches[0]
	return &c, nil
}

// Cases returns every case of the guild ordered by case id.
func (s *Store) Cases(guildID snowflake.ID) []moderation.Case {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(guildID, func(moderation.Case) bool { return true })
}

// PutCase stores c directly, advancing the guild counter past its id.
func (s *Store) PutCase(c moderation.Case) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.cases[caseKey{c.GuildID, c.CaseID}] = c
	if s.data.counters[c.GuildID] < c.CaseID {
		s.data.counters[c.GuildID] = c.CaseID
	}
}

// TempBans is the temp-ban half of Store, exposed under its own method set
// because both repositories name their methods Save, Delete and Get.
type TempBans struct {
	s *Store
}

// TempBanRepo returns the temp-ban repository sharing this store's
// transactions.
func (s *Store) TempBanRepo() *TempBans { return &TempBans{s: s} }

var _ moderation.TempBanRepository = (*TempBans)(nil)

func (r *TempBans) Save(ctx context.Context, _ moderation.Tx, tb moderation.TempBan, now time.Time) error {
	if !tb.ExpiresAt.After(now) {
		return moderation.ErrTempBanExpiryNotFuture
	}
	if r.s.SaveTempBanFunc != nil {
		if err := r.s.SaveTempBanFunc(tb); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.tempBans[banKey{tb.GuildID, tb.UserID}] = tb
	return nil
}

func (r *TempBans) Delete(ctx context.Context, _ moderation.Tx, guildID, userID snowflake.ID) (*moderation.TempBan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := banKey{guildID, userID}
	tb, ok := r.s.data.tempBans[k]
	if !ok {
		return nil, moderation.ErrTempBanNotFound
	}
	delete(r.s.data.tempBans, k)
	return &tb, nil
}

func (r *TempBans) Get(ctx context.Context, guildID, userID snowflake.ID) (*moderation.TempBan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tb, ok := r.s.data.tempBans[banKey{guildID, userID}]
	if !ok {
		return nil, moderation.ErrTempBanNotFound
	}
	return &tb, nil
}

func (r *TempBans) ListExpired(ctx context.Context, now time.Time, limit int) ([]moderation.TempBan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []moderation.TempBan
	for _, tb := range r.s.data.tempBans {
		if !tb.ExpiresAt.After(now) {
			out = append(out, tb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *TempBans) Count(ctx context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.data.tempBans), nil
}
