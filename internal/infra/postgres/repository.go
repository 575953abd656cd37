package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
)

const upsertBatchSize = 100

// Repository implements domain.DatasetRepository using PostgreSQL.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Query returns up to limit datasets matching f strictly after the given
// key, in (center_time, id) order. The row comparison lets the keyset
// index serve the page without an OFFSET scan.
func (r *Repository) Query(ctx context.Context, f domain.Filter, after *domain.SortKey, limit int) ([]*domain.Dataset, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := r.buildFilterQuery(ctx, f)
	if after != nil {
		query = query.Where("(center_time, id) > (?, ?)", after.CenterTime, after.ID)
	}

	var models []DatasetModel
	err := query.
		Order("center_time ASC, id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("querying datasets: %w", err)
	}

	out := make([]*domain.Dataset, len(models))
	for i := range models {
		ds, err := models[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out[i] = ds
	}
	return out, nil
}

// buildFilterQuery builds the WHERE clause for a filter. Bounding boxes
// intersect when they share any point, edges included, and datasets without
// a footprint never match one. The time window is half-open.
func (r *Repository) buildFilterQuery(ctx context.Context, f domain.Filter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&DatasetModel{})

	if f.Product != "" {
		query = query.Where("product = ?", f.Product)
	}
	if f.Time != nil {
		query = query.Where("center_time >= ? AND center_time < ?", f.Time.Start, f.Time.End)
	}
	if b := f.BBox; b != nil {
		query = query.Where(
			"min_x <= ? AND max_x >= ? AND min_y <= ? AND max_y >= ? AND "+hasBBox,
			b.MaxX, b.MinX, b.MaxY, b.MinY,
		)
	}

	return query
}

// GetProduct returns domain.ErrNotFound for unknown names.
func (r *Repository) GetProduct(ctx context.Context, name string) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting product: %w", err)
	}
	return model.ToDomain(), nil
}

// ListProducts returns every product ordered by name.
func (r *Repository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	var models []ProductModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	out := make([]*domain.Product, len(models))
	for i := range models {
		out[i] = models[i].ToDomain()
	}
	return out, nil
}

// GetDataset returns domain.ErrNotFound for unknown ids.
func (r *Repository) GetDataset(ctx context.Context, id string) (*domain.Dataset, error) {
	// Ids that are not UUIDs cannot exist.
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}

	var model DatasetModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting dataset: %w", err)
	}
	return model.ToDomain()
}

// hasBBox excludes datasets indexed without a footprint.
const hasBBox = "NOT (min_x = 0 AND min_y = 0 AND max_x = 0 AND max_y = 0)"

type summaryRow struct {
	Count    int64
	Earliest *time.Time
	Latest   *time.Time
	MinX     *float64
	MinY     *float64
	MaxX     *float64
	MaxY     *float64
}

// Summarize computes a product's extent with a single aggregate query.
func (r *Repository) Summarize(ctx context.Context, product string) (*domain.ProductSummary, error) {
	if _, err := r.GetProduct(ctx, product); err != nil {
		return nil, err
	}

	var row summaryRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT count(*) AS count,
		       min(center_time) AS earliest,
		       max(center_time) AS latest,
		       min(min_x) FILTER (WHERE `+hasBBox+`) AS min_x,
		       min(min_y) FILTER (WHERE `+hasBBox+`) AS min_y,
		       max(max_x) FILTER (WHERE `+hasBBox+`) AS max_x,
		       max(max_y) FILTER (WHERE `+hasBBox+`) AS max_y
		FROM datasets
		WHERE product = ?`, product).Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("summarizing product: %w", err)
	}

	sum := &domain.ProductSummary{Product: product, DatasetCount: row.Count}
	if row.Earliest != nil && row.Latest != nil {
		earliest, latest := row.Earliest.UTC(), row.Latest.UTC()
		sum.TimeEarliest, sum.TimeLatest = &earliest, &latest
	}
	if row.MinX != nil && row.MinY != nil && row.MaxX != nil && row.MaxY != nil {
		sum.BBox = &domain.BBox{MinX: *row.MinX, MinY: *row.MinY, MaxX: *row.MaxX, MaxY: *row.MaxY}
	}
	return sum, nil
}

// UpsertProducts creates or updates products keyed by name.
func (r *Repository) UpsertProducts(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := make([]*ProductModel, len(products))
	for i, p := range products {
		models[i] = ProductFromDomain(p)
		models[i].UpdatedAt = now
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"description", "platform", "instrument", "asset_layout", "bands", "updated_at",
		}),
	}).Create(&models).Error
	if err != nil {
		return fmt.Errorf("upserting products: %w", err)
	}
	return nil
}

// UpsertDatasets creates or updates datasets keyed by id.
func (r *Repository) UpsertDatasets(ctx context.Context, datasets []*domain.Dataset) error {
	if len(datasets) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := make([]*DatasetModel, len(datasets))
	for i, d := range datasets {
		cp := *d
		cp.Normalize()
		cp.IndexedAt = now

		m, err := DatasetFromDomain(&cp)
		if err != nil {
			return err
		}
		models[i] = m
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"product", "center_time", "time_start", "time_end", "creation_time",
			"geometry", "min_x", "min_y", "max_x", "max_y",
			"crs", "region_code", "base_uri", "measurements", "indexed_at",
		}),
	}).CreateInBatches(models, upsertBatchSize).Error
	if err != nil {
		return fmt.Errorf("bulk upserting datasets: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
