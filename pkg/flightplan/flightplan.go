// Package flightplan reads autonomous mission files in the QGroundControl
// WPL 110 format, the format the drone's mavlink player consumes.
package flightplan

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Waypoint is one mission item. Type is the raw MAV_CMD number.
type Waypoint struct {
	Index int     `json:"index"`
	Type  int     `json:"type"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Alt   float64 `json:"alt"`
}

// Plan is a named mission.
type Plan struct {
	Name      string     `json:"name"`
	Waypoints []Waypoint `json:"waypoints"`
}

// Load reads the plan <name>.mavlink from dir. The error wraps
// os.ErrNotExist when no such plan exists, which the API maps to 404.
func Load(dir, name string) (*Plan, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("flightplan: invalid name %q", name)
	}

	f, err := os.Open(filepath.Join(dir, name+".mavlink"))
	if err != nil {
		return nil, fmt.Errorf("flightplan: %w", err)
	}
	defer f.Close()

	return Parse(name, f)
}

// Parse decodes a WPL file: a header line followed by one tab-separated
// mission item per line. Blank lines are skipped.
func Parse(name string, r io.Reader) (*Plan, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		return nil, fmt.Errorf("flightplan %s: missing header", name)
	}
	if !strings.HasPrefix(scanner.Text(), "QGC WPL") {
		return nil, fmt.Errorf("flightplan %s: bad header %q", name, scanner.Text())
	}

	plan := &Plan{Name: name, Waypoints: []Waypoint{}}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		wp, err := parseItem(line)
		if err != nil {
			return nil, fmt.Errorf("flightplan %s: item %d: %w", name, len(plan.Waypoints), err)
		}
		plan.Waypoints = append(plan.Waypoints, wp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("flightplan %s: %w", name, err)
	}
	return plan, nil
}

// parseItem reads the fields the relay cares about out of one WPL line:
// sequence, command, and the x/y/z columns.
func parseItem(line string) (Waypoint, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 11 {
		return Waypoint{}, fmt.Errorf("short line, %d fields", len(fields))
	}

	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return Waypoint{}, fmt.Errorf("index: %w", err)
	}
	cmd, err := strconv.Atoi(fields[3])
	if err != nil {
		return Waypoint{}, fmt.Errorf("command: %w", err)
	}
	lat, err := strconv.ParseFloat(fields[8], 64)
	if err != nil {
		return Waypoint{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(fields[9], 64)
	if err != nil {
		return Waypoint{}, fmt.Errorf("longitude: %w", err)
	}
	alt, err := strconv.ParseFloat(fields[10], 64)
	if err != nil {
		return Waypoint{}, fmt.Errorf("altitude: %w", err)
	}

	return Waypoint{Index: index, Type: cmd, Lat: lat, Lon: lon, Alt: alt}, nil
}
