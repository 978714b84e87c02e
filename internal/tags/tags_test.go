package tags_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fundsight/tally/internal/tags"
)

func ptr[T any](v T) *T { return &v }

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    tags.Kind
		wantErr bool
	}{
		{input: "period", want: tags.KindPeriod},
		{input: "type", want: tags.KindType},
		{input: "custom", want: tags.KindCustom},
		{input: "status", want: tags.KindStatus},
		{input: "label", wantErr: true},
		{input: "", wantErr: true},
		{input: "PERIOD", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("kind %q", tt.input), func(t *testing.T) {
			got, err := tags.ParseKind(tt.input)
			if tt.wantErr {
				if !errors.Is(err, tags.ErrValidation) {
					t.Errorf("err = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("kind = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPeriodValidate(t *testing.T) {
	tests := []struct {
		name    string
		period  tags.Period
		wantErr bool
	}{
		{name: "valid period", period: tags.Period{Year: 2024, Month: 7}},
		{name: "lower bounds", period: tags.Period{Year: 1900, Month: 1}},
		{name: "upper bounds", period: tags.Period{Year: 2100, Month: 12}},
		{name: "year too small", period: tags.Period{Year: 1899, Month: 6}, wantErr: true},
		{name: "year too large", period: tags.Period{Year: 2101, Month: 6}, wantErr: true},
		{name: "month zero", period: tags.Period{Year: 2024, Month: 0}, wantErr: true},
		{name: "month thirteen", period: tags.Period{Year: 2024, Month: 13}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.period.Validate()
			if tt.wantErr {
				if !errors.Is(err, tags.ErrValidation) {
					t.Errorf("err = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestPeriodValue(t *testing.T) {
	p := tags.Period{Year: 2024, Month: 7}
	if got := p.Value(); got != "7/2024" {
		t.Errorf("value = %s, want 7/2024", got)
	}

	p = tags.Period{Year: 2026, Month: 12}
	if got := p.Value(); got != "12/2026" {
		t.Errorf("value = %s, want 12/2026", got)
	}
}

func TestUpdateCommandPeriods(t *testing.T) {
	t.Run("single year month pair", func(t *testing.T) {
		cmd := tags.UpdateCommand{Year: ptr(2024), Month: ptr(7)}
		periods, err := cmd.Periods()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(periods) != 1 || periods[0].Year != 2024 || periods[0].Month != 7 {
			t.Errorf("periods = %v, want [7/2024]", periods)
		}
	})

	t.Run("period tags list", func(t *testing.T) {
		cmd := tags.UpdateCommand{
			PeriodTags: []tags.Period{
				{Year: 2024, Month: 6},
				{Year: 2024, Month: 7},
			},
		}
		periods, err := cmd.Periods()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(periods) != 2 {
			t.Errorf("len = %d, want 2", len(periods))
		}
	})

	t.Run("pair and list combine", func(t *testing.T) {
		cmd := tags.UpdateCommand{
			Year:       ptr(2023),
			Month:      ptr(12),
			PeriodTags: []tags.Period{{Year: 2024, Month: 1}},
		}
		periods, err := cmd.Periods()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(periods) != 2 {
			t.Fatalf("len = %d, want 2", len(periods))
		}
		if periods[0].Year != 2023 || periods[1].Month != 1 {
			t.Errorf("periods = %v, want pair first", periods)
		}
	})

	t.Run("year without month fails", func(t *testing.T) {
		cmd := tags.UpdateCommand{Year: ptr(2024)}
		if _, err := cmd.Periods(); !errors.Is(err, tags.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("out of range period fails", func(t *testing.T) {
		cmd := tags.UpdateCommand{PeriodTags: []tags.Period{{Year: 2024, Month: 13}}}
		if _, err := cmd.Periods(); !errors.Is(err, tags.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("empty command yields no periods", func(t *testing.T) {
		cmd := tags.UpdateCommand{CustomTags: []string{"reviewed"}}
		periods, err := cmd.Periods()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(periods) != 0 {
			t.Errorf("periods = %v, want none", periods)
		}
	})
}

func TestUpdateCommandEmpty(t *testing.T) {
	if !(tags.UpdateCommand{}).Empty() {
		t.Error("zero command should be empty")
	}
	if (tags.UpdateCommand{Year: ptr(2024), Month: ptr(7)}).Empty() {
		t.Error("command with period should not be empty")
	}
	if (tags.UpdateCommand{CustomTags: []string{"a"}}).Empty() {
		t.Error("command with custom tags should not be empty")
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: tags.ErrValidation, want: http.StatusBadRequest},
		{name: "not found", err: tags.ErrNotFound, want: http.StatusNotFound},
		{name: "invalid status", err: tags.ErrInvalidStatus, want: http.StatusConflict},
		{name: "wrapped validation", err: fmt.Errorf("context: %w", tags.ErrValidation), want: http.StatusBadRequest},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tags.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}
