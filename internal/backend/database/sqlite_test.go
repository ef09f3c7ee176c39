package database

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) DatabaseService {
	t.Helper()

	ds, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDatabase error: %v", err)
	}
	_, err = ds.CreateDatabase(context.Background())
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func TestSQLite_DoesDatabaseExist(t *testing.T) {
	ds := newTestDB(t)
	if !ds.DoesDatabaseExist() {
		t.Fatalf("expected DoesDatabaseExist to return true")
	}
}

func TestSQLite_CreateDatabase_Idempotent(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()

	if _, err := ds.CreateItem(ctx, "example.com"); err != nil {
		t.Fatalf("CreateItem error: %v", err)
	}
	if _, err := ds.CreateDatabase(ctx); err != nil {
		t.Fatalf("second CreateDatabase error: %v", err)
	}
	n, err := ds.CountItems(ctx)
	if err != nil {
		t.Fatalf("CountItems error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected existing rows to survive schema re-creation, got %d items", n)
	}
}

func TestSQLite_Items(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()

	id1, err := ds.CreateItem(ctx, "example.com/widget")
	if err != nil {
		t.Fatalf("CreateItem #1 error: %v", err)
	}
	id2, err := ds.CreateItem(ctx, "https://example.org/gadget")
	if err != nil {
		t.Fatalf("CreateItem #2 error: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("expected increasing ids, got %d then %d", id1, id2)
	}

	item, err := ds.GetItemByID(ctx, id1)
	if err != nil {
		t.Fatalf("GetItemByID error: %v", err)
	}
	if item.URL != "example.com/widget" {
		t.Errorf("URL = %q, want stored value unchanged", item.URL)
	}

	items, err := ds.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems error: %v", err)
	}
	if len(items) != 2 || items[0].ID != id1 || items[1].ID != id2 {
		t.Fatalf("unexpected items %+v", items)
	}

	if _, err := ds.GetItemByID(ctx, 999); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("GetItemByID(999) error = %v, want ErrItemNotFound", err)
	}
}

func TestSQLite_CreateImage_StoresDescriptorAtomically(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()

	itemID, err := ds.CreateItem(ctx, "example.com")
	if err != nil {
		t.Fatalf("CreateItem error: %v", err)
	}
	desc := bytes.Repeat([]byte{0xAB}, 64)

	imageID, err := ds.CreateImage(ctx, itemID, "uploads/a.png", desc)
	if err != nil {
		t.Fatalf("CreateImage error: %v", err)
	}

	images, err := ds.GetImagesByItemID(ctx, itemID)
	if err != nil {
		t.Fatalf("GetImagesByItemID error: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(images))
	}
	img := images[0]
	if img.ID != imageID || img.ItemID != itemID || img.ImagePath != "uploads/a.png" {
		t.Errorf("unexpected image row %+v", img)
	}
	if !bytes.Equal(img.Descriptor, desc) {
		t.Errorf("descriptor bytes not preserved")
	}
}

func TestSQLite_CreateImage_EmptyDescriptorIsNull(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()

	itemID, _ := ds.CreateItem(ctx, "example.com")
	if _, err := ds.CreateImage(ctx, itemID, "uploads/flat.png", []byte{}); err != nil {
		t.Fatalf("CreateImage error: %v", err)
	}
	images, err := ds.GetAllImages(ctx)
	if err != nil {
		t.Fatalf("GetAllImages error: %v", err)
	}
	if len(images) != 1 || images[0].Descriptor != nil {
		t.Fatalf("expected a single image with a NULL descriptor, got %+v", images)
	}
}

func TestSQLite_CreateImage_UnknownItem(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()

	_, err := ds.CreateImage(ctx, 42, "uploads/x.png", []byte{1})
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("CreateImage error = %v, want ErrItemNotFound", err)
	}
	images, err := ds.GetAllImages(ctx)
	if err != nil {
		t.Fatalf("GetAllImages error: %v", err)
	}
	if len(images) != 0 {
		t.Fatalf("expected no image rows after a rejected insert, got %d", len(images))
	}
}

func TestSQLite_CountAndOrder(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()

	a, _ := ds.CreateItem(ctx, "a")
	b, _ := ds.CreateItem(ctx, "b")
	for _, itemID := range []int64{b, a, b, a, a} {
		if _, err := ds.CreateImage(ctx, itemID, "p", []byte{byte(itemID)}); err != nil {
			t.Fatalf("CreateImage error: %v", err)
		}
	}

	if n, _ := ds.CountImages(ctx, a); n != 3 {
		t.Errorf("CountImages(a) = %d, want 3", n)
	}
	if n, _ := ds.CountImages(ctx, b); n != 2 {
		t.Errorf("CountImages(b) = %d, want 2", n)
	}
	if n, _ := ds.CountImages(ctx, 999); n != 0 {
		t.Errorf("CountImages(999) = %d, want 0", n)
	}

	images, err := ds.GetAllImages(ctx)
	if err != nil {
		t.Fatalf("GetAllImages error: %v", err)
	}
	if len(images) != 5 {
		t.Fatalf("expected 5 images, got %d", len(images))
	}
	for i := 1; i < len(images); i++ {
		prev, cur := images[i-1], images[i]
		if cur.ItemID < prev.ItemID || (cur.ItemID == prev.ItemID && cur.ID < prev.ID) {
			t.Fatalf("images not ordered by item then id: %+v before %+v", prev, cur)
		}
	}
}

func TestSQLite_ReplaceDescriptor(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()

	itemID, _ := ds.CreateItem(ctx, "example.com")
	imageID, _ := ds.CreateImage(ctx, itemID, "p", []byte{1, 2, 3})

	if err := ds.ReplaceDescriptor(ctx, imageID, []byte{9, 9}); err != nil {
		t.Fatalf("ReplaceDescriptor error: %v", err)
	}
	images, _ := ds.GetImagesByItemID(ctx, itemID)
	if !bytes.Equal(images[0].Descriptor, []byte{9, 9}) {
		t.Fatalf("descriptor = %v, want [9 9]", images[0].Descriptor)
	}

	if err := ds.ReplaceDescriptor(ctx, imageID, nil); err != nil {
		t.Fatalf("ReplaceDescriptor(nil) error: %v", err)
	}
	images, _ = ds.GetImagesByItemID(ctx, itemID)
	if images[0].Descriptor != nil {
		t.Fatalf("expected NULL descriptor, got %v", images[0].Descriptor)
	}
	if err := ds.ReplaceDescriptor(ctx, 999, nil); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("ReplaceDescriptor(999) error = %v, want ErrImageNotFound", err)
	}
}

func TestSQLite_FileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "itemlens.db")
	ctx := context.Background()

	ds, err := NewDatabase(ctx, "sqlite", path)
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	id, err := ds.CreateItem(ctx, "example.com/persist")
	if err != nil {
		t.Fatalf("CreateItem error: %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	reopened, err := NewDatabase(ctx, "sqlite", path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	item, err := reopened.GetItemByID(ctx, id)
	if err != nil {
		t.Fatalf("GetItemByID error: %v", err)
	}
	if item.URL != "example.com/persist" {
		t.Errorf("URL = %q after reopen", item.URL)
	}
}

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	if _, err := NewDatabase(context.Background(), "postgres", ""); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
