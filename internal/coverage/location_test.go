package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantKind  Kind
		wantZip   string
		wantCity  string
		wantState string
	}{
		{
			name:     "bare zip",
			input:    "45202",
			wantKind: KindZip,
			wantZip:  "45202",
		},
		{
			name:     "zip with whitespace",
			input:    "  90210 ",
			wantKind: KindZip,
			wantZip:  "90210",
		},
		{
			name:      "state by name",
			input:     "Texas",
			wantKind:  KindState,
			wantState: "TX",
		},
		{
			name:      "state by lowercase code",
			input:     "tx",
			wantKind:  KindState,
			wantState: "TX",
		},
		{
			name:      "district of columbia",
			input:     "District of Columbia",
			wantKind:  KindState,
			wantState: "DC",
		},
		{
			name:      "city with state code",
			input:     "Austin, TX",
			wantKind:  KindCity,
			wantCity:  "Austin",
			wantState: "TX",
		},
		{
			name:      "city with state name",
			input:     "Cincinnati, Ohio",
			wantKind:  KindCity,
			wantCity:  "Cincinnati",
			wantState: "OH",
		},
		{
			name:     "bare city",
			input:    "Cincinnati",
			wantKind: KindCity,
			wantCity: "Cincinnati",
		},
		{
			name:     "neighbourhood with non-state suffix",
			input:    "Over-the-Rhine, Cincinnati",
			wantKind: KindCity,
			wantCity: "Over-the-Rhine, Cincinnati",
		},
		{
			name:     "six digits is not a zip",
			input:    "452021",
			wantKind: KindCity,
			wantCity: "452021",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tt.input)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantZip, got.Zip)
			assert.Equal(t, tt.wantCity, got.City)
			assert.Equal(t, tt.wantState, got.State)
		})
	}
}

func TestLocationLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "45202", Classify("45202").Label())
	assert.Equal(t, "TX", Classify("Texas").Label())
	assert.Equal(t, "Austin, TX", Classify("Austin, Texas").Label())
	assert.Equal(t, "Cincinnati", Classify("Cincinnati").Label())
}

func TestStateCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"Ohio", "OH", true},
		{"ohio", "OH", true},
		{"OH", "OH", true},
		{"oh", "OH", true},
		{"New Mexico", "NM", true},
		{"Puerto Rico", "PR", true},
		{"XX", "", false},
		{"Springfield", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := stateCode(tt.input)
		assert.Equal(t, tt.wantOK, ok, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}
