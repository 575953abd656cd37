package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/paulmach/orb/geojson"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
)

// ProductModel is the GORM model for the products table.
type ProductModel struct {
	Name        string         `gorm:"type:varchar(200);primaryKey"`
	Description string         `gorm:"type:text"`
	Platform    string         `gorm:"type:varchar(100)"`
	Instrument  string         `gorm:"type:varchar(100)"`
	AssetLayout string         `gorm:"type:varchar(20);not null;default:per_band"`
	Bands       pq.StringArray `gorm:"type:text[]"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for ProductModel.
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts ProductModel to domain.Product.
func (m *ProductModel) ToDomain() *domain.Product {
	return &domain.Product{
		Name:        m.Name,
		Description: m.Description,
		Platform:    m.Platform,
		Instrument:  m.Instrument,
		AssetLayout: domain.AssetLayout(m.AssetLayout),
		Bands:       []string(m.Bands),
		UpdatedAt:   m.UpdatedAt,
	}
}

// ProductFromDomain creates a ProductModel from domain.Product.
func ProductFromDomain(p *domain.Product) *ProductModel {
	layout := p.AssetLayout
	if !layout.Valid() {
		layout = domain.AssetLayoutPerBand
	}
	return &ProductModel{
		Name:        p.Name,
		Description: p.Description,
		Platform:    p.Platform,
		Instrument:  p.Instrument,
		AssetLayout: string(layout),
		Bands:       pq.StringArray(p.Bands),
	}
}

// DatasetModel is the GORM model for the datasets table. The footprint is
// kept as GeoJSON next to its bounding box columns.
type DatasetModel struct {
	ID      string `gorm:"type:uuid;primaryKey"`
	Product string `gorm:"type:varchar(200);not null"`

	CenterTime   time.Time  `gorm:"type:timestamptz;not null"`
	TimeStart    *time.Time `gorm:"type:timestamptz"`
	TimeEnd      *time.Time `gorm:"type:timestamptz"`
	CreationTime *time.Time `gorm:"type:timestamptz"`

	Geometry *string `gorm:"type:jsonb"`
	MinX     float64 `gorm:"not null;default:0"`
	MinY     float64 `gorm:"not null;default:0"`
	MaxX     float64 `gorm:"not null;default:0"`
	MaxY     float64 `gorm:"not null;default:0"`

	CRS          string `gorm:"column:crs;type:varchar(100)"`
	RegionCode   string `gorm:"type:varchar(50)"`
	BaseURI      string `gorm:"column:base_uri;type:text"`
	Measurements string `gorm:"type:jsonb;not null;default:'{}'"`

	IndexedAt time.Time `gorm:"type:timestamptz;not null"`
}

// TableName returns the table name for DatasetModel.
func (DatasetModel) TableName() string {
	return "datasets"
}

// ToDomain converts DatasetModel to domain.Dataset.
func (m *DatasetModel) ToDomain() (*domain.Dataset, error) {
	ds := &domain.Dataset{
		ID:           m.ID,
		Product:      m.Product,
		CenterTime:   m.CenterTime.UTC(),
		BBox:         domain.BBox{MinX: m.MinX, MinY: m.MinY, MaxX: m.MaxX, MaxY: m.MaxY},
		CRS:          m.CRS,
		RegionCode:   m.RegionCode,
		BaseURI:      m.BaseURI,
		Measurements: map[string]string{},
		IndexedAt:    m.IndexedAt,
	}
	if m.CreationTime != nil {
		t := m.CreationTime.UTC()
		ds.CreationTime = &t
	}
	if m.TimeStart != nil && m.TimeEnd != nil {
		ds.TimeRange = &domain.TimeRange{Start: m.TimeStart.UTC(), End: m.TimeEnd.UTC()}
	}
	if m.Geometry != nil {
		g, err := geojson.UnmarshalGeometry([]byte(*m.Geometry))
		if err != nil {
			return nil, fmt.Errorf("decoding geometry of %s: %w", m.ID, err)
		}
		ds.Geometry = g.Geometry()
	}
	if m.Measurements != "" {
		if err := json.Unmarshal([]byte(m.Measurements), &ds.Measurements); err != nil {
			return nil, fmt.Errorf("decoding measurements of %s: %w", m.ID, err)
		}
	}
	return ds, nil
}

// DatasetFromDomain creates a DatasetModel from domain.Dataset.
func DatasetFromDomain(d *domain.Dataset) (*DatasetModel, error) {
	m := &DatasetModel{
		ID:           d.ID,
		Product:      d.Product,
		CenterTime:   d.CenterTime,
		CreationTime: d.CreationTime,
		MinX:         d.BBox.MinX,
		MinY:         d.BBox.MinY,
		MaxX:         d.BBox.MaxX,
		MaxY:         d.BBox.MaxY,
		CRS:          d.CRS,
		RegionCode:   d.RegionCode,
		BaseURI:      d.BaseURI,
		IndexedAt:    d.IndexedAt,
	}
	if d.TimeRange != nil {
		start, end := d.TimeRange.Start, d.TimeRange.End
		m.TimeStart, m.TimeEnd = &start, &end
	}
	if d.Geometry != nil {
		data, err := geojson.NewGeometry(d.Geometry).MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encoding geometry of %s: %w", d.ID, err)
		}
		s := string(data)
		m.Geometry = &s
	}

	measurements := d.Measurements
	if measurements == nil {
		measurements = map[string]string{}
	}
	data, err := json.Marshal(measurements)
	if err != nil {
		return nil, fmt.Errorf("encoding measurements of %s: %w", d.ID, err)
	}
	m.Measurements = string(data)

	return m, nil
}
