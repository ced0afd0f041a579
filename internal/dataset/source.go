// Package dataset loads planning inputs from files.
package dataset

import (
	"fmt"

	"fleetroute/internal/model"
)

// Source produces the input of one planning run.
type Source interface {
	Name() string
	Load() (model.Input, error)
}

// Files reads a location sheet and two matrix CSVs. An empty SheetPath uses
// Builtin.
type Files struct {
	SheetPath    string
	DistancePath string
	TimePath     string
	Capacities   []int
}

func (f Files) Name() string { return "files" }

func (f Files) Load() (model.Input, error) {
	sheet := Builtin()
	if f.SheetPath != "" {
		var err error
		if sheet, err = ReadSheetFile(f.SheetPath); err != nil {
			return model.Input{}, fmt.Errorf("dataset: %w", err)
		}
	}
	dist, err := ReadMatrixFile(f.DistancePath)
	if err != nil {
		return model.Input{}, fmt.Errorf("dataset: distance: %w", err)
	}
	tm, err := ReadMatrixFile(f.TimePath)
	if err != nil {
		return model.Input{}, fmt.Errorf("dataset: time: %w", err)
	}
	if len(dist) != len(sheet.Locations) || len(tm) != len(sheet.Locations) {
		return model.Input{}, fmt.Errorf("dataset: %d locations but %dx%d distance and %dx%d time matrices: %w",
			len(sheet.Locations), len(dist), len(dist), len(tm), len(tm), model.ErrInvalidConfiguration)
	}
	return model.Input{
		Names:      sheet.Names(),
		Distance:   dist,
		Time:       tm,
		Demands:    sheet.Demands(),
		Capacities: append([]int(nil), f.Capacities...),
	}, nil
}
