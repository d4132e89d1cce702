package dataset

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/kshedden/datareader"
)

func TestSeriesStrings(t *testing.T) {
	cases := []struct {
		name    string
		data    interface{}
		missing []bool
		want    []string
	}{
		{"float64", []float64{5, math.NaN(), 2.5, 7}, []bool{false, false, false, true}, []string{"5", "", "2.5", ""}},
		{"int32", []int32{1, -3, 12}, []bool{false, false, false}, []string{"1", "-3", "12"}},
		{"string", []string{"AT", "BE", "x"}, []bool{false, false, true}, []string{"AT", "BE", ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := datareader.NewSeries(tc.name, tc.data, tc.missing)
			if err != nil {
				t.Fatalf("NewSeries: %v", err)
			}
			got, err := seriesStrings(s)
			if err != nil {
				t.Fatalf("seriesStrings: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

type boolColumn []bool

func (c boolColumn) Data() interface{} { return []bool(c) }
func (boolColumn) Missing() []bool     { return nil }

func TestSeriesStringsRejectsUnsupportedType(t *testing.T) {
	_, err := seriesStrings(boolColumn{true, false})
	if err == nil || !strings.Contains(err.Error(), "unsupported column type []bool") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
}
