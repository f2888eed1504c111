package nodepath

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"/root/Main/Player", []string{"root", "Main", "Player"}},
		{"root/Main", []string{"root", "Main"}},
		{"/root/Main/", []string{"root", "Main"}},
		{"root//Main", []string{"root", "Main"}},
		{"/", []string{}},
		{"", []string{}},
		{"Player", []string{"Player"}},
	}
	for _, tc := range cases {
		if got := Split(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Split(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
