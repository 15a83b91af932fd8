//go:build unit

package config

import (
	"reflect"
	"testing"

	"github.com/emergingrobotics/go-ohci/pkg/ohci"
	"github.com/emergingrobotics/go-ohci/testutil"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		cmdline string
		want    Config
	}{
		{"empty", "", Config{}},
		{"program name only", "morbo", Config{}},
		{"program name is skipped", "wait", Config{}},
		{"all switches", "morbo quiet keepgoing postedwrites wait noapic",
			Config{Quiet: true, KeepGoing: true, PostedWrites: true, Wait: true, NoAPIC: true}},
		{"unknown words", "morbo wait debug=1 'two words'",
			Config{Wait: true, Unknown: []string{"debug=1", "two words"}}},
		{"extra spaces", "  morbo   quiet  ", Config{Quiet: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.cmdline)
			testutil.AssertNoError(t, err, "Parse")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %+v, expected %+v", tt.cmdline, got, tt.want)
			}
		})
	}
}

func TestParseUnterminatedQuote(t *testing.T) {
	_, err := Parse(`morbo "wait`)
	testutil.AssertError(t, err, "unterminated quote")
}

func TestApply(t *testing.T) {
	var opts ohci.Options
	Config{PostedWrites: true}.Apply(&opts)
	testutil.AssertEqual(t, opts.PostedWrites, true, "PostedWrites")
}

func TestApplyIgnoresNoAPIC(t *testing.T) {
	var opts ohci.Options
	Config{NoAPIC: true, Quiet: true, Wait: true}.Apply(&opts)
	if !reflect.DeepEqual(opts, ohci.Options{}) {
		t.Errorf("Apply changed options: %+v", opts)
	}
}

func TestVerbosity(t *testing.T) {
	testutil.AssertEqual(t, Config{}.Verbosity(2), 2, "verbose")
	testutil.AssertEqual(t, Config{Quiet: true}.Verbosity(2), 0, "quiet")
}

func TestLog(t *testing.T) {
	Config{KeepGoing: true, PostedWrites: true, NoAPIC: true, Unknown: []string{"x"}}.Log(testutil.Logger(t))
}
