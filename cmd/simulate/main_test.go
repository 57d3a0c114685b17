//go:build !(rp2040 || rp2350)

package main

import (
	"reflect"
	"testing"
	"time"
)

func TestParseScript(t *testing.T) {
	got, err := parseScript(`print@12s "sleep@1m30s" wake@2m`)
	if err != nil {
		t.Fatalf("parseScript: %v", err)
	}
	want := []event{{12 * time.Second, "print"}, {90 * time.Second, "sleep"}, {2 * time.Minute, "wake"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	for _, bad := range []string{"print", "dance@1s", "sleep@soon"} {
		if _, err := parseScript(bad); err == nil {
			t.Fatalf("parseScript(%q) accepted", bad)
		}
	}
}

func TestParseTemps(t *testing.T) {
	got, err := parseTemps("20 20.1 -127")
	if err != nil || !reflect.DeepEqual(got, []float64{20, 20.1, -127}) {
		t.Fatalf("parseTemps = %v, %v", got, err)
	}
	if got, err := parseTemps(""); err != nil || len(got) != 0 {
		t.Fatalf("empty = %v, %v", got, err)
	}
}
