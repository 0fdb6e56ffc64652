package main

import (
	"flag"
	"io"
	"reflect"
	"testing"
)

func newTestFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String("window", "", "")
	fs.Bool("json", false, "")
	return fs
}

func TestNormalizeArgsMovesFlagsFirst(t *testing.T) {
	fs := newTestFlagSet()
	got := normalizeArgs(fs, []string{"SessionEnd", "-window", "@1"})
	want := []string{"-window", "@1", "SessionEnd"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if err := fs.Parse(got); err != nil {
		t.Fatal(err)
	}
	if fs.Lookup("window").Value.String() != "@1" {
		t.Error("flag value lost in reorder")
	}
	if fs.Arg(0) != "SessionEnd" {
		t.Errorf("positional lost: %q", fs.Args())
	}
}

func TestNormalizeArgsBoolFlagTakesNoValue(t *testing.T) {
	fs := newTestFlagSet()
	got := normalizeArgs(fs, []string{"extra", "-json"})
	want := []string{"-json", "extra"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNormalizeArgsEqualsForm(t *testing.T) {
	fs := newTestFlagSet()
	got := normalizeArgs(fs, []string{"pos", "--window=@3"})
	want := []string{"--window=@3", "pos"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNormalizeArgsDoubleDashStopsProcessing(t *testing.T) {
	fs := newTestFlagSet()
	got := normalizeArgs(fs, []string{"-json", "--", "-not-a-flag"})
	want := []string{"-json", "-not-a-flag"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestAlignRows(t *testing.T) {
	out := alignRows([][]string{
		{"A", "BB", "C"},
		{"CCC", "D", "EE"},
	})
	want := "A    BB  C\nCCC  D   EE\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestAlignRowsEmpty(t *testing.T) {
	if out := alignRows(nil); out != "" {
		t.Fatalf("got %q", out)
	}
}
