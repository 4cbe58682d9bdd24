package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/persistence/snapshot"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/catalogs"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/tuning"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/world"
)

// SQLiteIndex is a queryable copy of the tick and audit logs. Writes are
// queued to one goroutine and dropped when the queue is full; the JSONL logs
// stay the source of truth.
type SQLiteIndex struct {
	db  *sql.DB
	log *zap.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
	writeFail    atomic.Uint64
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropAuditTotal    uint64 `json:"drop_audit_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
	WriteFailTotal    uint64 `json:"write_fail_total"`
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick            uint64
	Path            string
	Actors          int
	Specs           int
	AbilitiesDigest string
	EffectsDigest   string
	TuningDigest    string
}

const defaultQueue = 65536

func OpenSQLite(path string, log *zap.Logger) (*SQLiteIndex, error) {
	return openSQLite(path, log, defaultQueue)
}

func openSQLite(path string, log *zap.Logger, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	s := &SQLiteIndex{
		db:  db,
		log: log,
		ch:  make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			commands INTEGER NOT NULL,
			tuning_json TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS joins (
			tick INTEGER NOT NULL,
			actor_id TEXT NOT NULL,
			name TEXT NOT NULL,
			locally_controlled INTEGER NOT NULL,
			PRIMARY KEY (tick, actor_id)
		);`,
		`CREATE TABLE IF NOT EXISTS leaves (
			tick INTEGER NOT NULL,
			actor_id TEXT NOT NULL,
			PRIMARY KEY (tick, actor_id)
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor_id TEXT NOT NULL,
			cmd_id TEXT NOT NULL,
			type TEXT NOT NULL,
			ability TEXT,
			handle INTEGER,
			prediction_key INTEGER,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_actor_tick ON commands(actor_id, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			ability TEXT,
			handle INTEGER,
			prediction_key INTEGER,
			tags TEXT,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_ability_action ON audits(ability, action);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			actors INTEGER NOT NULL,
			specs INTEGER NOT NULL,
			abilities_digest TEXT NOT NULL,
			effects_digest TEXT NOT NULL,
			tuning_digest TEXT
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropAuditTotal:    s.dropAudit.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		WriteFailTotal:    s.writeFail.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:            snap.Header.Tick,
		Path:            path,
		Actors:          len(snap.Actors),
		AbilitiesDigest: snap.AbilitiesDigest,
		EffectsDigest:   snap.EffectsDigest,
		TuningDigest:    snap.TuningDigest,
	}
	for _, a := range snap.Actors {
		r.Specs += len(a.State.Specs)
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// UpsertCatalogs stores the loaded catalogs and tuning, keyed by name. It
// runs synchronously; call it before the world starts.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning, tuneDigest string) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv

	defs := make([]catalogs.AbilityDef, 0, len(cats.Abilities.IDs))
	for _, id := range cats.Abilities.IDs {
		defs = append(defs, cats.Abilities.Defs[id])
	}
	b, err := json.Marshal(defs)
	if err != nil {
		return fmt.Errorf("marshal abilities: %w", err)
	}
	rows = append(rows, kv{name: "abilities", digest: cats.Abilities.Digest, json: b})

	if b, err = json.Marshal(cats.Effects.ByID); err != nil {
		return fmt.Errorf("marshal effects: %w", err)
	}
	rows = append(rows, kv{name: "effects", digest: cats.Effects.Digest, json: b})

	if b, err = json.Marshal(tune); err != nil {
		return fmt.Errorf("marshal tuning: %w", err)
	}
	rows = append(rows, kv{name: "tuning", digest: tuneDigest, json: b})

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type writer struct {
	s  *SQLiteIndex
	tx *sql.Tx

	tick, join, leave, command, audit, snap *sql.Stmt

	ops        int
	lastCommit time.Time

	lastAuditTick uint64
	auditSeq      int
}

const (
	commitEvery   = 2000
	commitMaxWait = 2 * time.Second
)

func (s *SQLiteIndex) loop() {
	w := &writer{s: s, lastCommit: time.Now()}
	prepare := func(q string) *sql.Stmt {
		st, err := s.db.Prepare(q)
		if err != nil {
			s.log.Error("index prepare failed", zap.String("query", q), zap.Error(err))
			return nil
		}
		return st
	}
	w.tick = prepare(`INSERT OR REPLACE INTO ticks(tick,digest,joins,leaves,commands,tuning_json) VALUES(?,?,?,?,?,?)`)
	w.join = prepare(`INSERT OR REPLACE INTO joins(tick,actor_id,name,locally_controlled) VALUES(?,?,?,?)`)
	w.leave = prepare(`INSERT OR REPLACE INTO leaves(tick,actor_id) VALUES(?,?)`)
	w.command = prepare(`INSERT OR REPLACE INTO commands(tick,seq,actor_id,cmd_id,type,ability,handle,prediction_key,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	w.audit = prepare(`INSERT OR REPLACE INTO audits(tick,seq,actor,action,ability,handle,prediction_key,tags) VALUES(?,?,?,?,?,?,?,?)`)
	w.snap = prepare(`INSERT OR REPLACE INTO snapshots(tick,path,actors,specs,abilities_digest,effects_digest,tuning_digest) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{w.tick, w.join, w.leave, w.command, w.audit, w.snap} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	for r := range s.ch {
		if !w.begin() {
			continue
		}
		var err error
		switch r.kind {
		case reqTick:
			err = w.writeTick(r.tick)
		case reqAudit:
			err = w.writeAudit(r.audit)
		case reqSnapshot:
			err = w.writeSnapshot(r.snapshot)
		}
		if err != nil {
			s.writeFail.Add(1)
			s.log.Warn("index write failed", zap.Error(err))
			w.rollback()
			continue
		}
		if w.ops >= commitEvery || time.Since(w.lastCommit) >= commitMaxWait {
			w.commit()
		}
	}
	w.commit()
}

func (w *writer) begin() bool {
	if w.tx != nil {
		return true
	}
	tx, err := w.s.db.BeginTx(context.Background(), nil)
	if err != nil {
		w.s.log.Warn("index begin failed", zap.Error(err))
		time.Sleep(50 * time.Millisecond)
		return false
	}
	w.tx = tx
	w.ops = 0
	w.lastCommit = time.Now()
	return true
}

func (w *writer) commit() {
	if w.tx == nil {
		return
	}
	if err := w.tx.Commit(); err != nil {
		w.s.writeFail.Add(1)
		w.s.log.Warn("index commit failed", zap.Error(err))
	}
	w.tx = nil
	w.ops = 0
	w.lastCommit = time.Now()
}

func (w *writer) rollback() {
	if w.tx == nil {
		return
	}
	_ = w.tx.Rollback()
	w.tx = nil
	w.ops = 0
	w.lastCommit = time.Now()
}

func (w *writer) exec(st *sql.Stmt, args ...any) error {
	if st == nil {
		return fmt.Errorf("statement not prepared")
	}
	if _, err := w.tx.Stmt(st).Exec(args...); err != nil {
		return err
	}
	w.ops++
	return nil
}

func (w *writer) writeTick(e world.TickLogEntry) error {
	var tuningJSON any
	if e.Tuning != nil {
		b, _ := json.Marshal(e.Tuning)
		tuningJSON = string(b)
	}
	tick := int64(e.Tick)
	if err := w.exec(w.tick, tick, e.Digest, len(e.Joins), len(e.Leaves), len(e.Commands), tuningJSON); err != nil {
		return fmt.Errorf("tick %d: %w", e.Tick, err)
	}
	for _, j := range e.Joins {
		if err := w.exec(w.join, tick, j.ActorID, j.Name, j.LocallyControlled); err != nil {
			return fmt.Errorf("join %s: %w", j.ActorID, err)
		}
	}
	for _, id := range e.Leaves {
		if err := w.exec(w.leave, tick, id); err != nil {
			return fmt.Errorf("leave %s: %w", id, err)
		}
	}
	seq := 0
	for _, env := range e.Commands {
		for _, c := range env.Act.Commands {
			raw, _ := json.Marshal(c)
			if err := w.exec(w.command, tick, seq, env.ActorID, c.ID, c.Type, c.Ability, int64(c.Handle), int64(c.PredictionKey), string(raw)); err != nil {
				return fmt.Errorf("command %s: %w", c.ID, err)
			}
			seq++
		}
	}
	return nil
}

func (w *writer) writeAudit(a world.AuditEntry) error {
	if a.Tick != w.lastAuditTick {
		w.lastAuditTick = a.Tick
		w.auditSeq = 0
	}
	seq := w.auditSeq
	w.auditSeq++
	return w.exec(w.audit, int64(a.Tick), seq, a.Actor, a.Action, a.Ability, int64(a.Handle), int64(a.PredictionKey), strings.Join(a.Tags, ","))
}

func (w *writer) writeSnapshot(r snapshotRow) error {
	return w.exec(w.snap, int64(r.Tick), r.Path, r.Actors, r.Specs, r.AbilitiesDigest, r.EffectsDigest, r.TuningDigest)
}
