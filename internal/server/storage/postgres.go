package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/fortress/internal/server/storage/migrations"
)

// PostgresRepository implements Repository over a pgx connection pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects, runs pending migrations, and returns the
// repository.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if err := runMigrations(ctx, dsn); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresRepository{pool: pool}, nil
}

func runMigrations(ctx context.Context, dsn string) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateUser(ctx context.Context, loginId, loginKeyHash []byte) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (login_id, login_key_hash) VALUES ($1, $2)`,
		loginId, loginKeyHash)
	return err
}

func (r *PostgresRepository) GetUserKeyHash(ctx context.Context, loginId []byte) ([]byte, error) {
	var hash []byte
	err := r.pool.QueryRow(ctx,
		`SELECT login_key_hash FROM users WHERE login_id = $1`,
		loginId).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return hash, nil
}

func (r *PostgresRepository) ListObjects(ctx context.Context, loginId []byte) ([]StoredObject, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT object_id, siv FROM objects WHERE login_id = $1 ORDER BY object_id`,
		loginId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredObject
	for rows.Next() {
		var o StoredObject
		if err := rows.Scan(&o.ObjectId, &o.Siv); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetObject(ctx context.Context, loginId, objectId []byte) ([]byte, []byte, error) {
	var siv, ciphertext []byte
	err := r.pool.QueryRow(ctx,
		`SELECT siv, ciphertext FROM objects WHERE login_id = $1 AND object_id = $2`,
		loginId, objectId).Scan(&siv, &ciphertext)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return siv, ciphertext, nil
}

func (r *PostgresRepository) PutObject(ctx context.Context, loginId, objectId, siv, ciphertext []byte) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO objects (login_id, object_id, siv, ciphertext)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (login_id, object_id)
		 DO UPDATE SET siv = EXCLUDED.siv, ciphertext = EXCLUDED.ciphertext, updated_at = now()`,
		loginId, objectId, siv, ciphertext)
	return err
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}
