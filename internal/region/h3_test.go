package region

import (
	"testing"

	h3 "github.com/uber/h3-go/v4"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
)

func TestNewCoder_ValidatesResolution(t *testing.T) {
	for _, res := range []int{-1, 16} {
		if _, err := NewCoder(res); err == nil {
			t.Errorf("expected error for resolution %d", res)
		}
	}
}

func TestCoder_Code(t *testing.T) {
	c, err := NewCoder(DefaultResolution)
	if err != nil {
		t.Fatalf("new coder: %v", err)
	}

	code, err := c.Code(domain.BBox{MinX: 130, MinY: -13, MaxX: 131, MaxY: -12})
	if err != nil {
		t.Fatalf("code: %v", err)
	}

	var cell h3.Cell
	if err := cell.UnmarshalText([]byte(code)); err != nil {
		t.Fatalf("parse cell %q: %v", code, err)
	}
	if !cell.IsValid() {
		t.Fatalf("invalid cell %q", code)
	}
	if cell.Resolution() != DefaultResolution {
		t.Errorf("resolution = %d, want %d", cell.Resolution(), DefaultResolution)
	}
}

func TestCoder_FillKeepsExistingCodes(t *testing.T) {
	c, err := NewCoder(DefaultResolution)
	if err != nil {
		t.Fatalf("new coder: %v", err)
	}

	datasets := []*domain.Dataset{
		{ID: "a", RegionCode: "090084", BBox: domain.BBox{MinX: 130, MinY: -13, MaxX: 131, MaxY: -12}},
		{ID: "b", BBox: domain.BBox{MinX: 130, MinY: -13, MaxX: 131, MaxY: -12}},
		{ID: "c"},
	}

	if n := c.Fill(datasets); n != 1 {
		t.Errorf("filled %d datasets, want 1", n)
	}
	if datasets[0].RegionCode != "090084" {
		t.Errorf("existing code overwritten: %q", datasets[0].RegionCode)
	}
	if datasets[1].RegionCode == "" {
		t.Error("expected a derived code")
	}
	if datasets[2].RegionCode != "" {
		t.Error("datasets without a footprint get no code")
	}
}
