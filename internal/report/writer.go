package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fleetroute/internal/model"
)

// CSVHeader is the column order of the vehicle summary file.
var CSVHeader = []string{"Distance", "Time", "Capacity", "Load"}

// WriteCSV writes one row per vehicle: distance in whole km, time in whole
// minutes, capacity and load.
func WriteCSV(w io.Writer, rep model.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range rep.Routes {
		row := []string{
			strconv.FormatInt(r.DistanceMeters/1000, 10),
			strconv.FormatInt(r.TimeSeconds/60, 10),
			strconv.Itoa(r.Capacity),
			strconv.FormatInt(r.Load, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteText renders the report for a terminal.
func WriteText(w io.Writer, rep model.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %d\n", rep.Objective)
	for _, r := range rep.Routes {
		fmt.Fprintf(&b, "Is vehicle %d used? - %t\n", r.VehicleID, r.Used)
		fmt.Fprintf(&b, "Route for vehicle %d:\n", r.VehicleID)
		for i, s := range r.Stops {
			if i == len(r.Stops)-1 {
				fmt.Fprintf(&b, " %s Load(%d)\n", s.Name, s.Load)
			} else {
				fmt.Fprintf(&b, " %s Load(%d) -> ", s.Name, s.Load)
			}
		}
		fmt.Fprintf(&b, "Distance of the route: %dkm\n", r.DistanceKm)
		fmt.Fprintf(&b, "Load of the route: %d\n", r.Load)
		fmt.Fprintf(&b, "Time for the route: %ds, %dmins\n", r.TimeSeconds, r.TimeMinutes)
	}
	fmt.Fprintf(&b, "Total Distance of all routes: %dkm\n", rep.Totals.DistanceKm)
	fmt.Fprintf(&b, "Total Load of all routes: %d\n", rep.Totals.Load)
	fmt.Fprintf(&b, "Total Time of all routes: %ds, %dmins\n", rep.Totals.TimeSeconds, rep.Totals.TimeMinutes)
	_, err := io.WriteString(w, b.String())
	return err
}
