package dataset

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"fleetroute/internal/model"
)

// Sheet is the YAML location sheet: names and raw demands, depot first.
type Sheet struct {
	Locations []model.Location `yaml:"locations"`
}

// Names returns the location names in order.
func (s Sheet) Names() []string {
	out := make([]string, len(s.Locations))
	for i, l := range s.Locations {
		out[i] = l.Name
	}
	return out
}

// Demands returns the raw demands in order.
func (s Sheet) Demands() []int {
	out := make([]int, len(s.Locations))
	for i, l := range s.Locations {
		out[i] = l.Demand
	}
	return out
}

func ReadSheet(r io.Reader) (Sheet, error) {
	var s Sheet
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return Sheet{}, fmt.Errorf("read sheet: %w", err)
	}
	if len(s.Locations) == 0 {
		return Sheet{}, fmt.Errorf("read sheet: no locations: %w", model.ErrInvalidConfiguration)
	}
	for i := range s.Locations {
		s.Locations[i].Index = i
	}
	return s, nil
}

func ReadSheetFile(path string) (Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sheet{}, err
	}
	defer f.Close()
	s, err := ReadSheet(f)
	if err != nil {
		return Sheet{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

var builtinNames = []string{
	"Depot", "Airoli", "Amar Mahal, Mumbai", "Saki Naka, Andheri East", "Andheri West", "Bandra West",
	"Bhayandar", "Borivali", "Dadar t.t", "Dharavi, Mumbai", "ghansoli", "goregaon East", "kalwa", "Kharghar",
	"kopri, Thane", "Lalbaug, Mumbai", "mahim, Mumbai", "evershine nagar, malad West", "Metro Cinema, Mumbai", "Mulund", "Powai", "sanpada, Mumbai",
	"seawoods station, Mumbai", "vasai", "virar", "Waghbil Naka", "wasi naka, Mumbai", "Worli Naka",
}

var builtinDemands = []int{
	0, 37, 60, 67, 14, 4, 27, 32, 8, 34, 35, 19, 28, 12,
	106, 5, 3, 24, 5, 38, 15, 14, 12, 34, 5, 58, 9, 7,
}

// Builtin is the 28 location Mumbai sheet the batch run uses by default.
func Builtin() Sheet {
	s := Sheet{Locations: make([]model.Location, len(builtinNames))}
	for i, n := range builtinNames {
		s.Locations[i] = model.Location{Index: i, Name: n, Demand: builtinDemands[i]}
	}
	return s
}
