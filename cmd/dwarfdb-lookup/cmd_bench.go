package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/ndl/dwarf-idea/dwarfdb"
)

// earthRadiusMeters is the mean Earth radius used by the haversine
// distance check below. No library in the corpus offers a great-circle
// distance helper (the teacher and the rest of the pack are blockchain
// archival tooling), so this one formula is plain math/stdlib.
const earthRadiusMeters = 6371000.0

func greatCircleDistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

func newCmd_Bench() *cli.Command {
	return &cli.Command{
		Name:      "bench",
		Usage:     "Replay a builder-emitted (key_hex, lat, lon, extra_hex?) CSV against a dwarfdb file, reporting recall and latency.",
		ArgsUsage: "<db-path> <csv-path>",
		Flags: []cli.Flag{
			configFlag,
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 2 {
				return cli.Exit("bench requires two arguments: <db-path> <csv-path>", 1)
			}
			opts, err := resolveOptions(c)
			if err != nil {
				return err
			}
			db, err := dwarfdb.Open(c.Args().Get(0), opts)
			if err != nil {
				return cli.Exit(fmt.Errorf("open: %w", err), 1)
			}
			defer db.Close()

			maxDistErr, err := db.MaxDistError()
			if err != nil {
				return cli.Exit(fmt.Errorf("max_dist_error: %w", err), 1)
			}

			f, err := os.Open(c.Args().Get(1))
			if err != nil {
				return cli.Exit(fmt.Errorf("open csv: %w", err), 1)
			}
			defer f.Close()

			return runBench(db, f, float64(maxDistErr))
		},
	}
}

func runBench(db *dwarfdb.DB, csvSrc io.Reader, maxDistErrMeters float64) error {
	r := csv.NewReader(csvSrc)
	r.FieldsPerRecord = -1

	var hits, misses, exceeded int
	var maxObserved float64
	var latencies []time.Duration

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return cli.Exit(fmt.Errorf("read csv row: %w", err), 1)
		}
		if len(record) < 3 {
			continue
		}

		key, err := parseHexKey(record[0])
		if err != nil {
			return cli.Exit(err, 1)
		}
		wantLat, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return cli.Exit(fmt.Errorf("invalid lat %q: %w", record[1], err), 1)
		}
		wantLon, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return cli.Exit(fmt.Errorf("invalid lon %q: %w", record[2], err), 1)
		}

		start := time.Now()
		result, err := db.Lookup(key)
		latencies = append(latencies, time.Since(start))
		if err != nil {
			return cli.Exit(fmt.Errorf("lookup %q: %w", record[0], err), 1)
		}
		if result == nil {
			misses++
			continue
		}
		hits++
		dist := greatCircleDistanceMeters(wantLat, wantLon, float64(result.Lat), float64(result.Lon))
		if dist > maxObserved {
			maxObserved = dist
		}
		if dist > maxDistErrMeters {
			exceeded++
		}
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	p50 := percentile(latencies, 0.50)
	p99 := percentile(latencies, 0.99)

	fmt.Printf("rows: hits=%d misses=%d exceeded_max_dist_error=%d\n", hits, misses, exceeded)
	fmt.Printf("max_observed_distance_m=%.3f max_dist_error_m=%.3f\n", maxObserved, maxDistErrMeters)
	fmt.Printf("latency: p50=%s p99=%s\n", p50, p99)
	klog.V(1).Infof("bench complete: %d rows", hits+misses)
	return nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
