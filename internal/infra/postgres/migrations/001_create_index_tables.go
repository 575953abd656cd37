package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// createIndexTables creates the products and datasets tables.
func createIndexTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "001_create_index_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS products (
					name VARCHAR(200) PRIMARY KEY,
					description TEXT,
					platform VARCHAR(100),
					instrument VARCHAR(100),
					asset_layout VARCHAR(20) NOT NULL DEFAULT 'per_band',
					bands TEXT[],

					created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,

					CONSTRAINT chk_products_asset_layout
						CHECK (asset_layout IN ('per_band', 'single_location'))
				);
			`).Error; err != nil {
				return err
			}

			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS datasets (
					id UUID PRIMARY KEY,
					product VARCHAR(200) NOT NULL REFERENCES products(name),

					-- Sort value, microsecond precision
					center_time TIMESTAMPTZ NOT NULL,
					time_start TIMESTAMPTZ,
					time_end TIMESTAMPTZ,
					creation_time TIMESTAMPTZ,

					-- Footprint (GeoJSON, EPSG:4326) and its bounds
					geometry JSONB,
					min_x DOUBLE PRECISION NOT NULL DEFAULT 0,
					min_y DOUBLE PRECISION NOT NULL DEFAULT 0,
					max_x DOUBLE PRECISION NOT NULL DEFAULT 0,
					max_y DOUBLE PRECISION NOT NULL DEFAULT 0,

					crs VARCHAR(100),
					region_code VARCHAR(50),
					base_uri TEXT,
					measurements JSONB NOT NULL DEFAULT '{}',

					indexed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			if err := tx.Exec("DROP TABLE IF EXISTS datasets;").Error; err != nil {
				return err
			}
			return tx.Exec("DROP TABLE IF EXISTS products;").Error
		},
	}
}
