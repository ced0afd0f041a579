package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/model"
)

const distanceCSV = `,Depot,Airoli,Dadar
Depot,0,1200.0,3400
Airoli,1300,0,2100
Dadar,3300,2000.4,0
`

func TestReadMatrixDropsHeaderAndIndex(t *testing.T) {
	m, err := ReadMatrix(strings.NewReader(distanceCSV))
	require.NoError(t, err)
	assert.Equal(t, [][]int64{
		{0, 1200, 3400},
		{1300, 0, 2100},
		{3300, 2000, 0},
	}, m)
}

func TestReadMatrixErrors(t *testing.T) {
	cases := map[string]string{
		"header only": ",A,B\n",
		"ragged":      ",A,B\nA,0,1\nB,1\n",
		"not square":  ",A,B,C\nA,0,1,2\nB,1,0,2\n",
		"bad cell":    ",A,B\nA,0,x\nB,1,0\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadMatrix(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestWriteMatrixRoundTrip(t *testing.T) {
	names := []string{"Depot", "Airoli"}
	m := [][]int64{{0, 5}, {6, 0}}
	var buf bytes.Buffer
	require.NoError(t, WriteMatrix(&buf, names, m))
	got, err := ReadMatrix(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestBuiltinSheet(t *testing.T) {
	s := Builtin()
	require.Len(t, s.Locations, 28)
	assert.Equal(t, "Depot", s.Locations[0].Name)
	assert.Zero(t, s.Locations[0].Demand)
	assert.Equal(t, 106, s.Demands()[14])
	assert.Equal(t, "Worli Naka", s.Names()[27])
	total := 0
	for _, d := range s.Demands() {
		total += d
	}
	assert.Equal(t, 712, total)
}

func TestFilesLoad(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	src := Files{
		SheetPath: write("sheet.yaml", `
locations:
  - name: Depot
    demand: 0
  - name: Airoli
    demand: 37
  - name: Dadar
    demand: 60
`),
		DistancePath: write("distance.csv", distanceCSV),
		TimePath:     write("time.csv", ",a,b,c\na,0,300,700\nb,310,0,450\nc,690,440,0\n"),
		Capacities:   []int{20, 30},
	}
	var _ Source = src
	in, err := src.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Depot", "Airoli", "Dadar"}, in.Names)
	assert.Equal(t, []int{0, 37, 60}, in.Demands)
	assert.Equal(t, int64(450), in.Time[1][2])
	assert.Equal(t, []int{20, 30}, in.Capacities)

	src.TimePath = write("short.csv", ",a,b\na,0,1\nb,1,0\n")
	_, err = src.Load()
	assert.ErrorIs(t, err, model.ErrInvalidConfiguration)
}
