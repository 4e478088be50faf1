package flightplan

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const samplePlan = "QGC WPL 110\n" +
	"0\t1\t0\t16\t0\t0\t0\t0\t53.354000\t17.640000\t50.000000\t1\n" +
	"1\t0\t3\t16\t0\t0\t0\t0\t53.355000\t17.641000\t60.000000\t1\n" +
	"\n" +
	"2\t0\t3\t21\t0\t0\t0\t0\t53.354000\t17.640000\t0.000000\t1\n"

func TestParse(t *testing.T) {
	plan, err := Parse("survey", strings.NewReader(samplePlan))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if plan.Name != "survey" {
		t.Errorf("name = %q", plan.Name)
	}
	if len(plan.Waypoints) != 3 {
		t.Fatalf("waypoints = %d, want 3", len(plan.Waypoints))
	}

	want := Waypoint{Index: 1, Type: 16, Lat: 53.355, Lon: 17.641, Alt: 60}
	if plan.Waypoints[1] != want {
		t.Errorf("waypoint[1] = %+v, want %+v", plan.Waypoints[1], want)
	}
	// The landing item.
	if plan.Waypoints[2].Type != 21 || plan.Waypoints[2].Alt != 0 {
		t.Errorf("waypoint[2] = %+v", plan.Waypoints[2])
	}
}

func TestParseRejectsBadHeader(t *testing.T) {
	if _, err := Parse("x", strings.NewReader("not a plan\n0\t1\n")); err == nil {
		t.Error("bad header accepted")
	}
}

func TestParseRejectsShortLine(t *testing.T) {
	if _, err := Parse("x", strings.NewReader("QGC WPL 110\n0\t1\t0\n")); err == nil {
		t.Error("short mission item accepted")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "survey.mavlink"), []byte(samplePlan), 0o644); err != nil {
		t.Fatal(err)
	}

	plan, err := Load(dir, "survey")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(plan.Waypoints) != 3 {
		t.Errorf("waypoints = %d, want 3", len(plan.Waypoints))
	}
}

func TestLoadMissingPlan(t *testing.T) {
	_, err := Load(t.TempDir(), "nope")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestLoadRejectsPathTraversal(t *testing.T) {
	if _, err := Load(t.TempDir(), "../etc/passwd"); err == nil {
		t.Error("traversal name accepted")
	}
}
