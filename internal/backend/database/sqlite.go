package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES items(id),
		image_path TEXT NOT NULL,
		descriptor BLOB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_images_item_id ON images(item_id)`,
}

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// every connection to ":memory:" is a separate database, and SQLite
	// serializes writers anyway
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase(ctx context.Context) (*sql.DB, error) {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return nil, err
		}
	}
	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) CreateItem(ctx context.Context, url string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO items (url) VALUES (?)", url)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteDatabase) GetItemByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, url FROM items WHERE id = ?", id)
	var item Item
	if err := row.Scan(&item.ID, &item.URL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrItemNotFound, id)
		}
		return nil, err
	}
	return &item, nil
}

func (s *SQLiteDatabase) ListItems(ctx context.Context) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, url FROM items ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var items []*Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.URL); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (s *SQLiteDatabase) CountItems(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n)
	return n, err
}

func (s *SQLiteDatabase) CreateImage(ctx context.Context, itemID int64, imagePath string, descriptor []byte) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM items WHERE id = ?", itemID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", ErrItemNotFound, itemID)
	}
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO images (item_id, image_path, descriptor) VALUES (?, ?, ?)",
		itemID, imagePath, nullableBlob(descriptor))
	if err != nil {
		return 0, err
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteDatabase) ReplaceDescriptor(ctx context.Context, imageID int64, descriptor []byte) error {
	res, err := s.db.ExecContext(ctx, "UPDATE images SET descriptor = ? WHERE id = ?", nullableBlob(descriptor), imageID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrImageNotFound, imageID)
	}
	return nil
}

func (s *SQLiteDatabase) CountImages(ctx context.Context, itemID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images WHERE item_id = ?", itemID).Scan(&n)
	return n, err
}

func (s *SQLiteDatabase) GetImagesByItemID(ctx context.Context, itemID int64) ([]*Image, error) {
	return s.queryImages(ctx,
		"SELECT id, item_id, image_path, descriptor FROM images WHERE item_id = ? ORDER BY id", itemID)
}

func (s *SQLiteDatabase) GetAllImages(ctx context.Context) ([]*Image, error) {
	return s.queryImages(ctx,
		"SELECT id, item_id, image_path, descriptor FROM images ORDER BY item_id, id")
}

func (s *SQLiteDatabase) queryImages(ctx context.Context, query string, args ...any) ([]*Image, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var images []*Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ItemID, &img.ImagePath, &img.Descriptor); err != nil {
			return nil, err
		}
		images = append(images, &img)
	}
	return images, rows.Err()
}

// nullableBlob stores an empty descriptor set as NULL
func nullableBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
