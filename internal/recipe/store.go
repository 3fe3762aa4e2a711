package recipe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// ListFilter narrows ListRecipes. Empty fields match everything.
type ListFilter struct {
	CuisineType    string
	MainIngredient string
}

// Store defines the interface for recipe data operations.
type Store interface {
	CreateRecipe(ctx context.Context, r *Recipe) error
	GetRecipe(ctx context.Context, id string) (*Recipe, error)
	ListRecipes(ctx context.Context, filter ListFilter) ([]*Recipe, error)
	DeleteRecipe(ctx context.Context, id string) (bool, error)
	GetExtraction(ctx context.Context, key string) ([]byte, error)
	SaveExtraction(ctx context.Context, key string, payload []byte) error
}

// SQLStore implements Store on top of PostgreSQL or SQLite.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var schemas = map[string][]string{
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS recipes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			image_url TEXT,
			cuisine_type TEXT,
			main_ingredient TEXT,
			time_estimation INTEGER NOT NULL DEFAULT 0,
			health_score INTEGER CHECK (health_score BETWEEN 0 AND 100),
			servings INTEGER,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recipe_ingredients (
			id TEXT PRIMARY KEY,
			recipe_id TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			amount TEXT,
			sort_order INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recipe_instructions (
			id TEXT PRIMARY KEY,
			recipe_id TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			step_number INTEGER NOT NULL,
			instruction TEXT NOT NULL,
			sort_order INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS extraction_cache (
			cache_key TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	DriverSQLite: {
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS recipes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			image_url TEXT,
			cuisine_type TEXT,
			main_ingredient TEXT,
			time_estimation INTEGER NOT NULL DEFAULT 0,
			health_score INTEGER CHECK (health_score BETWEEN 0 AND 100),
			servings INTEGER,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recipe_ingredients (
			id TEXT PRIMARY KEY,
			recipe_id TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			amount TEXT,
			sort_order INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recipe_instructions (
			id TEXT PRIMARY KEY,
			recipe_id TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			step_number INTEGER NOT NULL,
			instruction TEXT NOT NULL,
			sort_order INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS extraction_cache (
			cache_key TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	},
}

// NewSQLStore connects to the database and creates the tables if needed.
func NewSQLStore(driver, dataSourceName string) (*SQLStore, error) {
	ddl, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// the pragma and in-memory databases are per connection
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLStore{db: db, now: time.Now}, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateRecipe saves a recipe and its children in one transaction. It assigns
// identifiers and timestamps on r and its children.
func (s *SQLStore) CreateRecipe(ctx context.Context, r *Recipe) error {
	now := s.now().UTC()
	r.ID = uuid.NewString()
	r.CreatedAt = now
	r.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx,
		`INSERT INTO recipes (id, name, description, image_url, cuisine_type, main_ingredient, time_estimation, health_score, servings, created_at, updated_at)
		VALUES (:id, :name, :description, :image_url, :cuisine_type, :main_ingredient, :time_estimation, :health_score, :servings, :created_at, :updated_at)`,
		r,
	)
	if err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}

	for i := range r.Ingredients {
		ing := &r.Ingredients[i]
		ing.ID = uuid.NewString()
		ing.RecipeID = r.ID
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO recipe_ingredients (id, recipe_id, name, amount, sort_order) VALUES (:id, :recipe_id, :name, :amount, :sort_order)`,
			ing,
		)
		if err != nil {
			return fmt.Errorf("failed to save ingredient %d: %w", i, err)
		}
	}

	for i := range r.Instructions {
		inst := &r.Instructions[i]
		inst.ID = uuid.NewString()
		inst.RecipeID = r.ID
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO recipe_instructions (id, recipe_id, step_number, instruction, sort_order) VALUES (:id, :recipe_id, :step_number, :instruction, :sort_order)`,
			inst,
		)
		if err != nil {
			return fmt.Errorf("failed to save instruction %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recipe: %w", err)
	}
	return nil
}

const recipeColumns = `id, name, description, image_url, cuisine_type, main_ingredient, time_estimation, health_score, servings, created_at, updated_at`

// GetRecipe retrieves a recipe with its ingredients and instructions. It
// returns nil, nil when no recipe has the given id.
func (s *SQLStore) GetRecipe(ctx context.Context, id string) (*Recipe, error) {
	var r Recipe
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT `+recipeColumns+` FROM recipes WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Recipe not found
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	err = s.db.SelectContext(ctx, &r.Ingredients,
		s.db.Rebind(`SELECT id, recipe_id, name, amount, sort_order FROM recipe_ingredients WHERE recipe_id = ? ORDER BY sort_order`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get ingredients: %w", err)
	}

	err = s.db.SelectContext(ctx, &r.Instructions,
		s.db.Rebind(`SELECT id, recipe_id, step_number, instruction, sort_order FROM recipe_instructions WHERE recipe_id = ? ORDER BY sort_order`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get instructions: %w", err)
	}

	return &r, nil
}

// ListRecipes returns recipes without their children, newest first.
func (s *SQLStore) ListRecipes(ctx context.Context, filter ListFilter) ([]*Recipe, error) {
	var args []interface{}
	query := `SELECT ` + recipeColumns + ` FROM recipes WHERE 1=1`

	if filter.CuisineType != "" {
		query += ` AND cuisine_type = ?`
		args = append(args, filter.CuisineType)
	}
	if filter.MainIngredient != "" {
		query += ` AND main_ingredient = ?`
		args = append(args, filter.MainIngredient)
	}
	query += ` ORDER BY created_at DESC, id`

	recipes := []*Recipe{}
	if err := s.db.SelectContext(ctx, &recipes, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	return recipes, nil
}

// DeleteRecipe removes a recipe and its children. It reports whether a recipe
// was deleted.
func (s *SQLStore) DeleteRecipe(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"recipe_ingredients", "recipe_instructions"} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE recipe_id = ?`), id); err != nil {
			return false, fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM recipes WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete recipe: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete recipe: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	return n > 0, nil
}

// GetExtraction retrieves a cached extraction payload. It returns nil, nil on
// a miss.
func (s *SQLStore) GetExtraction(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT payload FROM extraction_cache WHERE cache_key = ?`), key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}
	return payload, nil
}

// SaveExtraction stores an extraction payload under key.
func (s *SQLStore) SaveExtraction(ctx context.Context, key string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO extraction_cache (cache_key, payload) VALUES (?, ?) ON CONFLICT (cache_key) DO UPDATE SET payload = excluded.payload`),
		key,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save extraction: %w", err)
	}
	return nil
}
