package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
)

// Fixture layout. FixtureMatching of the FixtureTotal datasets fall inside
// FixtureBBox and FixtureTime. FixtureTime carries no offset, so it is read
// in the grouping time zone; matching datasets keep clear of both ends by
// more than any zone offset and the count holds in every zone.
const (
	FixtureTotal    = 393
	FixtureMatching = 66
	FixtureBBox     = "[114,-33,153,-10]"
	FixtureTime     = "2017-04-16T01:12:16/2017-05-10T00:24:21"
)

var fixtureNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

var (
	fixtureStart = time.Date(2017, 4, 16, 1, 12, 16, 0, time.UTC)
	fixtureEnd   = time.Date(2017, 5, 10, 0, 24, 21, 0, time.UTC)
)

// fixtureMargin exceeds the widest UTC offset in the tz database.
const fixtureMargin = 15 * time.Hour

// FixtureProducts are the products the fixture datasets belong to.
func FixtureProducts() []*domain.Product {
	return []*domain.Product{
		{
			Name:        "high_tide_comp_20p",
			Description: "High tide 20 percentage composites",
			AssetLayout: domain.AssetLayoutSingleLocation,
			Bands:       []string{"blue", "green", "nir", "red", "swir1", "swir2"},
		},
		{
			Name:        "ls8_nbar_scene",
			Description: "Landsat 8 NBAR 25 metre",
			Platform:    "LANDSAT_8",
			Instrument:  "OLI_TIRS",
			AssetLayout: domain.AssetLayoutPerBand,
			Bands:       []string{"coastal_aerosol", "blue", "green", "red", "nir", "swir1", "swir2"},
		},
		{
			Name:        "wofs_albers",
			Description: "Historic Flood Mapping Water Observations from Space",
			AssetLayout: domain.AssetLayoutPerBand,
			Bands:       []string{"water"},
		},
	}
}

// FixtureDatasets builds the deterministic fixture datasets.
//
// Matching datasets are spread through the fixture time window over
// Australia. Every fifth matching dataset shares its center time with the
// next one so ties are ordered by id. Non-matching datasets either fall
// outside the window or lie over Europe.
func FixtureDatasets() []*domain.Dataset {
	products := FixtureProducts()
	out := make([]*domain.Dataset, 0, FixtureTotal)

	first := fixtureStart.Add(fixtureMargin)
	step := (fixtureEnd.Add(-fixtureMargin).Sub(first)) / FixtureMatching
	for i := 0; i < FixtureMatching; i++ {
		n := i
		if i%5 == 1 {
			n = i - 1
		}
		center := first.Add(time.Duration(n) * step)
		lon := 115 + float64(i%35)
		lat := -32 + float64(i%20)
		out = append(out, fixtureDataset(i, products[i%len(products)], center, lon, lat))
	}

	for i := FixtureMatching; i < FixtureTotal; i++ {
		p := products[i%len(products)]
		switch i % 3 {
		case 0:
			center := fixtureStart.AddDate(-1, 0, 0).Add(time.Duration(i) * time.Hour)
			out = append(out, fixtureDataset(i, p, center, 120, -25))
		case 1:
			center := fixtureEnd.Add(fixtureMargin + time.Duration(i)*time.Hour)
			out = append(out, fixtureDataset(i, p, center, 130, -20))
		default:
			center := fixtureStart.Add(time.Duration(i) * time.Minute)
			out = append(out, fixtureDataset(i, p, center, 10+float64(i%20), 40))
		}
	}

	// Footprint-less and broken-footprint datasets keep their bbox.
	out[2].Geometry = nil
	out[3].Geometry = orb.Polygon{{{117, -30}, {118, -29}, {118, -30}, {117, -29}, {117, -30}}}

	return out
}

// SeedFixture loads the fixture into a repository.
func SeedFixture(ctx context.Context, repo domain.DatasetRepository) error {
	if err := repo.UpsertProducts(ctx, FixtureProducts()); err != nil {
		return fmt.Errorf("seeding products: %w", err)
	}
	if err := repo.UpsertDatasets(ctx, FixtureDatasets()); err != nil {
		return fmt.Errorf("seeding datasets: %w", err)
	}
	return nil
}

func fixtureDataset(i int, p *domain.Product, center time.Time, lon, lat float64) *domain.Dataset {
	id := uuid.NewSHA1(fixtureNamespace, []byte(fmt.Sprintf("fixture-%d", i))).String()

	poly := orb.Polygon{{
		{lon, lat}, {lon + 0.9, lat}, {lon + 0.9, lat + 0.9}, {lon, lat + 0.9}, {lon, lat},
	}}

	measurements := make(map[string]string, len(p.Bands))
	for _, band := range p.Bands {
		measurements[band] = fmt.Sprintf("%s_%s.tif", id[:8], band)
	}
	if p.AssetLayout == domain.AssetLayoutSingleLocation {
		// Composites are a single multi-band file.
		for _, band := range p.Bands {
			measurements[band] = ""
		}
	}

	created := center.Add(72 * time.Hour)
	return &domain.Dataset{
		ID:           id,
		Product:      p.Name,
		CenterTime:   center,
		TimeRange:    &domain.TimeRange{Start: center.Add(-10 * time.Second), End: center.Add(10 * time.Second)},
		CreationTime: &created,
		Geometry:     poly,
		BBox:         domain.BBoxFromBound(poly.Bound()),
		CRS:          "EPSG:3577",
		RegionCode:   fmt.Sprintf("%d_%d", int(lon), int(-lat)),
		BaseURI:      fmt.Sprintf("s3://dea-public-data/%s/%s/ga-metadata.yaml", p.Name, id),
		Measurements: measurements,
	}
}
