package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"kanabot/internal/domain"
	"kanabot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store owns the SQLite handle and exposes the repository views.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &Store{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	st.log.Debug("sqlite opened", logx.String("path", cfg.Path))
	return st, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Users returns the user repository view.
func (s *Store) Users() UserRepository { return &userRepo{db: s.db} }

// Questions returns the question repository view.
func (s *Store) Questions() QuestionRepository { return &questionRepo{db: s.db} }

// ---- users ----

type userRepo struct {
	db *sql.DB
}

func (r *userRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users(id, chat_id, username, streak, questions_per_day, created_at)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		u.ID, u.ChatID, nullStr(u.Username), u.Streak, u.QuestionsPerDay, u.CreatedAt.UnixMilli(),
	)
	return err
}

func (r *userRepo) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return oneUser(r.db.QueryRowContext(ctx,
		`SELECT id, chat_id, username, streak, questions_per_day, created_at
		 FROM users WHERE id = ?`, id))
}

func (r *userRepo) FindByChatID(ctx context.Context, chatID int64) (*domain.User, error) {
	return oneUser(r.db.QueryRowContext(ctx,
		`SELECT id, chat_id, username, streak, questions_per_day, created_at
		 FROM users WHERE chat_id = ? LIMIT 1`, chatID))
}

func (r *userRepo) ListAll(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, chat_id, username, streak, questions_per_day, created_at
		 FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *userRepo) Save(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET chat_id=?, username=?, streak=?, questions_per_day=? WHERE id=?`,
		u.ChatID, nullStr(u.Username), u.Streak, u.QuestionsPerDay, u.ID,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func oneUser(row *sql.Row) (*domain.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func scanUser(r rowScanner) (*domain.User, error) {
	var (
		u        domain.User
		username sql.NullString
		created  int64
	)
	if err := r.Scan(&u.ID, &u.ChatID, &username, &u.Streak, &u.QuestionsPerDay, &created); err != nil {
		return nil, err
	}
	u.Username = username.String
	u.CreatedAt = time.UnixMilli(created)
	return &u, nil
}

// ---- questions ----

type questionRepo struct {
	db *sql.DB
}

const questionCols = `id, user_id, prompt, answer, attempts, time_limit_sec,
	created_at, sent_at, accepted, answered, expired, message_id`

func (r *questionRepo) Create(ctx context.Context, q *domain.Question) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO questions(`+questionCols+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		q.ID, q.UserID, q.Prompt, q.Answer, q.Attempts, int64(q.TimeLimit.Seconds()),
		q.CreatedAt.UnixMilli(), sentAtArg(q), q.Accepted, q.Answered, q.Expired, q.MessageID,
	)
	return err
}

func (r *questionRepo) FindByID(ctx context.Context, id string) (*domain.Question, error) {
	return oneQuestion(r.db.QueryRowContext(ctx,
		`SELECT `+questionCols+` FROM questions WHERE id = ?`, id))
}

func (r *questionRepo) FindOpenByUser(ctx context.Context, userID int64) (*domain.Question, error) {
	return oneQuestion(r.db.QueryRowContext(ctx,
		`SELECT `+questionCols+` FROM questions
		 WHERE user_id = ? AND answered = 0 AND expired = 0
		 ORDER BY created_at DESC LIMIT 1`, userID))
}

func (r *questionRepo) FindAcceptanceExpired(ctx context.Context, cutoff time.Time) ([]*domain.Question, error) {
	return r.query(ctx,
		`SELECT `+questionCols+` FROM questions
		 WHERE answered = 0 AND expired = 0 AND accepted = 0 AND created_at <= ?`,
		cutoff.UnixMilli())
}

func (r *questionRepo) FindAnswerExpired(ctx context.Context, now time.Time) ([]*domain.Question, error) {
	return r.query(ctx,
		`SELECT `+questionCols+` FROM questions
		 WHERE answered = 0 AND expired = 0 AND accepted = 1
		   AND sent_at IS NOT NULL AND sent_at + time_limit_sec*1000 <= ?`,
		now.UnixMilli())
}

func (r *questionRepo) Save(ctx context.Context, q *domain.Question) error {
	return saveQuestion(ctx, r.db, q)
}

// SaveBatch persists a sweep batch in one transaction.
func (r *questionRepo) SaveBatch(ctx context.Context, qs []*domain.Question) error {
	if len(qs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range qs {
		if err := saveQuestion(ctx, tx, q); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveQuestion(ctx context.Context, db execer, q *domain.Question) error {
	_, err := db.ExecContext(ctx,
		`UPDATE questions
		 SET attempts=?, sent_at=?, accepted=?, answered=?, expired=?, message_id=?
		 WHERE id=?`,
		q.Attempts, sentAtArg(q), q.Accepted, q.Answered, q.Expired, q.MessageID, q.ID,
	)
	return err
}

func sentAtArg(q *domain.Question) any {
	if q.SentAt.IsZero() {
		return nil
	}
	return q.SentAt.UnixMilli()
}

func oneQuestion(row *sql.Row) (*domain.Question, error) {
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return q, err
}

func (r *questionRepo) query(ctx context.Context, query string, args ...any) ([]*domain.Question, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func scanQuestion(r rowScanner) (*domain.Question, error) {
	var (
		q            domain.Question
		timeLimitSec int64
		created      int64
		sentAt       sql.NullInt64
	)
	if err := r.Scan(&q.ID, &q.UserID, &q.Prompt, &q.Answer, &q.Attempts, &timeLimitSec,
		&created, &sentAt, &q.Accepted, &q.Answered, &q.Expired, &q.MessageID); err != nil {
		return nil, err
	}
	q.TimeLimit = time.Duration(timeLimitSec) * time.Second
	q.CreatedAt = time.UnixMilli(created)
	if sentAt.Valid {
		q.SentAt = time.UnixMilli(sentAt.Int64)
	}
	return &q, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
