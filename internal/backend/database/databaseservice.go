package database

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrItemNotFound is returned when an item id does not exist
	ErrItemNotFound = errors.New("item not found")
	// ErrImageNotFound is returned when an image id does not exist
	ErrImageNotFound = errors.New("image not found")
)

type DatabaseService interface {
	CreateDatabase(ctx context.Context) (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	CreateItem(ctx context.Context, url string) (int64, error)
	GetItemByID(ctx context.Context, id int64) (*Item, error)
	ListItems(ctx context.Context) ([]*Item, error)
	CountItems(ctx context.Context) (int, error)

	// CreateImage inserts the image row together with its descriptor bytes in
	// one transaction, so no row is ever visible without its descriptor.
	CreateImage(ctx context.Context, itemID int64, imagePath string, descriptor []byte) (int64, error)
	// ReplaceDescriptor overwrites the descriptor, storing NULL for empty input
	ReplaceDescriptor(ctx context.Context, imageID int64, descriptor []byte) error
	CountImages(ctx context.Context, itemID int64) (int, error)
	GetImagesByItemID(ctx context.Context, itemID int64) ([]*Image, error)
	// GetAllImages returns every image ordered by item id, then image id
	GetAllImages(ctx context.Context) ([]*Image, error)
}
