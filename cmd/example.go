package cmd

import (
	"context"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/medailey/activitysim/sim"
)

// ExampleScenario is a small synthetic region standing in for the
// external data-loading collaborator: a zone grid with distance-based
// skims, a synthetic population, and the shared alternative tables the
// built-in models expect. Real deployments replace Load/Write with
// their own table I/O.
type ExampleScenario struct {
	Skims *sim.SkimMatrix
	zones []int64
}

// NewExampleScenario builds the skim matrix for a 25-zone grid.
// Travel times grow with grid distance and carry a peak-period
// surcharge in the first and last configured periods.
func NewExampleScenario(periods *sim.TimePeriods) *ExampleScenario {
	const side = 5
	zones := make([]int64, 0, side*side)
	for i := 0; i < side*side; i++ {
		zones = append(zones, int64(100+i))
	}
	skims := sim.NewSkimMatrix(zones, periods)
	for oi, o := range zones {
		for di, d := range zones {
			dist := math.Abs(float64(oi%side-di%side)) + math.Abs(float64(oi/side-di/side))
			for li, label := range periods.Labels {
				v := 5 + 8*dist
				if li == 0 || li == len(periods.Labels)-1 {
					v *= 1.5 // peak congestion
				}
				// Set cannot fail here: zones and labels come from the
				// same arrays the matrix was built over.
				_ = skims.Set(o, d, label, v)
			}
		}
	}
	return &ExampleScenario{Skims: skims, zones: zones}
}

// Load produces the scenario's input tables.
func (s *ExampleScenario) Load(ctx context.Context) ([]*sim.Table, error) {
	n := len(s.zones)

	landUse := sim.NewTable("land_use", s.zones)
	enroll := make([]float64, n)
	employ := make([]float64, n)
	hhDens := make([]float64, n)
	empDens := make([]float64, n)
	for i := range s.zones {
		enroll[i] = float64((i * 37 % 11) * 200)
		employ[i] = float64(500 + i*211%1700)
		hhDens[i] = float64(2 + i*13%40)
		empDens[i] = float64(1 + i*29%55)
	}
	if err := addColumns(landUse, map[string][]float64{
		"school_enrollment":  enroll,
		"total_employment":   employ,
		"household_density":  hhDens,
		"employment_density": empDens,
	}); err != nil {
		return nil, err
	}

	const numHH = 400
	hhIDs := make([]int64, numHH)
	income := make([]float64, numHH)
	numActive := make([]float64, numHH)
	hhZone := make([]float64, numHH)
	for i := 0; i < numHH; i++ {
		hhIDs[i] = int64(1 + i)
		income[i] = float64(20000 + (i*7919)%90000)
		numActive[i] = float64(1 + i%4)
		hhZone[i] = float64(s.zones[i%len(s.zones)])
	}
	households := sim.NewTable("households", hhIDs)
	if err := addColumns(households, map[string][]float64{
		"income":     income,
		"num_active": numActive,
		"home_zone":  hhZone,
	}); err != nil {
		return nil, err
	}

	const perHH = 2
	numPersons := numHH * perHH
	pIDs := make([]int64, numPersons)
	pHH := make([]float64, numPersons)
	pHome := make([]float64, numPersons)
	isStudent := make([]float64, numPersons)
	isWorker := make([]float64, numPersons)
	for i := 0; i < numPersons; i++ {
		pIDs[i] = int64(1 + i)
		hh := i / perHH
		pHH[i] = float64(hhIDs[hh])
		pHome[i] = hhZone[hh]
		if i%3 == 0 {
			isStudent[i] = 1
		} else {
			isWorker[i] = 1
		}
	}
	persons := sim.NewTable("persons", pIDs)
	if err := addColumns(persons, map[string][]float64{
		"household_id": pHH,
		"home_zone":    pHome,
		"is_student":   isStudent,
		"is_worker":    isWorker,
	}); err != nil {
		return nil, err
	}

	// One mandatory tour per worker.
	var tIDs []int64
	var tOrigin, tDest, tOut, tIn []float64
	for i := 0; i < numPersons; i++ {
		if isWorker[i] == 0 {
			continue
		}
		tIDs = append(tIDs, int64(len(tIDs)+1))
		tOrigin = append(tOrigin, pHome[i])
		tDest = append(tDest, float64(s.zones[(i*17)%len(s.zones)]))
		tOut = append(tOut, 7.5)
		tIn = append(tIn, 17.5)
	}
	tours := sim.NewTable("tours", tIDs)
	if err := addColumns(tours, map[string][]float64{
		"origin_zone": tOrigin,
		"dest_zone":   tDest,
		"out_hour":    tOut,
		"in_hour":     tIn,
	}); err != nil {
		return nil, err
	}

	modes := sim.NewTable("modes", []int64{1, 2, 3, 4})
	if err := addColumns(modes, map[string][]float64{
		"time_factor": {1.0, 1.0, 1.6, 2.2}, // drive, shared ride, transit, walk
		"cost":        {250, 125, 100, 0},
		"asc":         {0, -0.6, -1.1, -2.3},
	}); err != nil {
		return nil, err
	}

	jtAlts := sim.NewTable("joint_tour_alternatives", []int64{0, 1, 2, 3})
	if err := addColumns(jtAlts, map[string][]float64{
		"n_tours": {0, 1, 2, 3},
	}); err != nil {
		return nil, err
	}

	return []*sim.Table{landUse, households, persons, tours, modes, jtAlts}, nil
}

// Write reports final table shapes; a real writer would persist them.
func (s *ExampleScenario) Write(tables []*sim.Table) error {
	for _, t := range tables {
		logrus.Infof("[write_tables] %s: %d rows, columns %v", t.Name, t.Len(), t.ColumnNames())
	}
	return nil
}

// WriteDict reports the data dictionary.
func (s *ExampleScenario) WriteDict(columns map[string][]string) error {
	for name, cols := range columns {
		logrus.Infof("[write_data_dictionary] %s: %v", name, cols)
	}
	return nil
}

func addColumns(t *sim.Table, cols map[string][]float64) error {
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := t.AddColumn(name, cols[name]); err != nil {
			return err
		}
	}
	return nil
}
