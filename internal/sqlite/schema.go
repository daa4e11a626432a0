package sqlite

// Schema DDL. Every statement is "create if absent"; there is no schema
// versioning.
const (
	createFoodItems = `CREATE TABLE IF NOT EXISTS food_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    expiry_date TEXT NOT NULL,
    image_path TEXT
);`

	// One image file belongs to at most one item. NULLs do not collide.
	idxFoodItemsImagePath = `CREATE UNIQUE INDEX IF NOT EXISTS idx_food_items_image_path ON food_items(image_path);`

	idxFoodItemsExpiry = `CREATE INDEX IF NOT EXISTS idx_food_items_expiry ON food_items(expiry_date);`
)

// schemaDDL lists all statements in execution order.
var schemaDDL = []string{
	createFoodItems,
	idxFoodItemsImagePath,
	idxFoodItemsExpiry,
}

// foodItemColumns is the column list shared by every SELECT.
const foodItemColumns = "id, title, expiry_date, image_path"
