package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// addSearchIndexes adds the indexes used by paginated search.
//
// Pages are read with a row comparison on (center_time, id), so the
// composite indexes below let each page start where the last one ended
// instead of skipping rows. The bounds indexes serve bbox filters.
func addSearchIndexes() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "002_add_search_indexes",
		Migrate: func(tx *gorm.DB) error {
			indexes := []string{
				"CREATE INDEX IF NOT EXISTS idx_datasets_keyset ON datasets(center_time, id);",
				"CREATE INDEX IF NOT EXISTS idx_datasets_product_keyset ON datasets(product, center_time, id);",
				"CREATE INDEX IF NOT EXISTS idx_datasets_bounds_x ON datasets(min_x, max_x);",
				"CREATE INDEX IF NOT EXISTS idx_datasets_bounds_y ON datasets(min_y, max_y);",
			}

			for _, idx := range indexes {
				if err := tx.Exec(idx).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			for _, idx := range []string{
				"idx_datasets_keyset", "idx_datasets_product_keyset",
				"idx_datasets_bounds_x", "idx_datasets_bounds_y",
			} {
				if err := tx.Exec("DROP INDEX IF EXISTS " + idx).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}
}
