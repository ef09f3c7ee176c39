package database

type Item struct {
	ID  int64  `db:"id"`
	URL string `db:"url"`
}

type Image struct {
	ID         int64  `db:"id"`
	ItemID     int64  `db:"item_id"`
	ImagePath  string `db:"image_path"`
	Descriptor []byte `db:"descriptor"` // nil when the frame had no features
}
