package risk

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

const testItems = 52

func TestParseKey(t *testing.T) {
	tests := []struct {
		key    string
		want   int
		wantOK bool
	}{
		{"7", 7, true},
		{"07", 7, true},
		{"item_07", 7, true},
		{"item_07_some_label", 7, true},
		{"ITEM_07", 7, true},
		{"item7", 7, true},
		{"item-12 golpes", 12, true},
		{" item_52 ", 52, true},
		{"item_070", 70, true},
		{"item_10", 10, true},
		{"0", 0, false},
		{"item_00", 0, false},
		{"item_", 0, false},
		{"item_7abc", 0, false},
		{"observaciones", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := ParseKey(tt.key)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseKey(%q) = %d, %v; want %d, %v", tt.key, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAffirmative(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"true", true, true},
		{"false", false, false},
		{"int 1", 1, true},
		{"int 0", 0, false},
		{"int 2", 2, false},
		{"float 1", float64(1), true},
		{"json number 1", json.Number("1"), true},
		{"json number 0", json.Number("0"), false},
		{"string 1", "1", true},
		{"string 0", "0", false},
		{"string true", "true", false},
		{"string si", "si", false},
		{"nil", nil, false},
		{"slice", []any{1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Affirmative(tt.v); got != tt.want {
				t.Errorf("Affirmative(%#v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestNormalizeMapShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want []int
	}{
		{"any", map[string]any{"item_01": true, "item_02": 0, "3": "1"}, []int{1, 3}},
		{"bool", map[string]bool{"item_05_label": true, "6": false}, []int{5}},
		{"string", map[string]string{"item_08": "1", "item_09": "no"}, []int{8}},
		{"int", map[string]int{"10": 1, "11": 0}, []int{10}},
		{"int keys", map[int]bool{4: true, 5: false}, []int{4}},
		{"answers", AnswersOf(2, 9), []int{2, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ignored, err := Normalize(tt.raw, testItems)
			if err != nil {
				t.Fatal(err)
			}
			if got := a.Positive(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Positive() = %v, want %v", got, tt.want)
			}
			if ignored == nil || len(ignored) != 0 {
				t.Errorf("ignored = %#v, want empty", ignored)
			}
		})
	}
}

func TestNormalizeDuplicateKeysAffirmativeWins(t *testing.T) {
	raws := []map[string]any{
		{"item_07": false, "item_07_amenaza": true},
		{"item_07": true, "item_07_amenaza": false},
		{"7": "0", "07": 1, "item_07": nil},
	}
	for _, raw := range raws {
		a, _, err := Normalize(raw, testItems)
		if err != nil {
			t.Fatal(err)
		}
		if !a.Affirmative(7) {
			t.Errorf("Normalize(%v): item 7 should be affirmative", raw)
		}
	}
	a, _, _ := Normalize(map[string]any{"item_07": false, "7": 0}, testItems)
	if a.Affirmative(7) {
		t.Error("item 7 should be negative when every binding is negative")
	}
}

func TestNormalizeReportsIgnoredKeys(t *testing.T) {
	_, ignored, err := Normalize(map[string]any{
		"item_01":       true,
		"observaciones": "x",
		"fecha":         "2024-01-01",
	}, testItems)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"fecha", "observaciones"}
	if !reflect.DeepEqual(ignored, want) {
		t.Errorf("ignored = %v, want %v", ignored, want)
	}
}

func TestNormalizeInvalidInput(t *testing.T) {
	var nilMap map[string]any
	var nilAnswers Answers
	for _, raw := range []any{nil, nilMap, nilAnswers, []any{true}, "item_01", 42} {
		if _, _, err := Normalize(raw, testItems); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Normalize(%#v) error = %v, want ErrInvalidInput", raw, err)
		}
	}
}

func TestNormalizeCopiesAnswers(t *testing.T) {
	src := AnswersOf(1)
	a, _, err := Normalize(src, testItems)
	if err != nil {
		t.Fatal(err)
	}
	a[2] = true
	if src[2] {
		t.Error("Normalize shares the caller's map")
	}
}

func TestDecode(t *testing.T) {
	a, ignored, err := Decode([]byte(`{"item_01": true, "item_02_gritos": 1, "item_17": "1", "item_23": 1.0, "item_24": 0, "nota": "x"}`), testItems)
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Positive(); !reflect.DeepEqual(got, []int{1, 2, 17, 23}) {
		t.Errorf("Positive() = %v", got)
	}
	if !reflect.DeepEqual(ignored, []string{"nota"}) {
		t.Errorf("ignored = %v", ignored)
	}

	for _, in := range []string{`null`, `[1,2]`, `"x"`, `{bad json`, ``} {
		if _, _, err := Decode([]byte(in), testItems); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Decode(%q) error = %v, want ErrInvalidInput", in, err)
		}
	}
}

func TestNormalizeOutOfRangeKeys(t *testing.T) {
	tests := []struct {
		name        string
		raw         any
		wantPos     []int
		wantIgnored []string
	}{
		{"one past the last item", map[string]any{"item_53": true, "item_52": true}, []int{52}, []string{"item_53"}},
		{"far out of range", map[string]any{"item_99": true, "item_01": true}, []int{1}, []string{"item_99"}},
		{"labelled key", map[string]bool{"item_53_extra": true}, []int{}, []string{"item_53_extra"}},
		{"int keys", map[int]bool{0: true, 7: true, 60: true}, []int{7}, []string{"0", "60"}},
		{"answers", AnswersOf(3, 99), []int{3}, []string{"99"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ignored, err := Normalize(tt.raw, testItems)
			if err != nil {
				t.Fatal(err)
			}
			if got := a.Positive(); !reflect.DeepEqual(got, tt.wantPos) {
				t.Errorf("Positive() = %v, want %v", got, tt.wantPos)
			}
			if !reflect.DeepEqual(ignored, tt.wantIgnored) {
				t.Errorf("ignored = %v, want %v", ignored, tt.wantIgnored)
			}
		})
	}
}

func TestDecodeOutOfRangeKeys(t *testing.T) {
	a, ignored, err := Decode([]byte(`{"item_99": true, "item_01": true}`), testItems)
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Positive(); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("Positive() = %v, want [1]", got)
	}
	if !reflect.DeepEqual(ignored, []string{"item_99"}) {
		t.Errorf("ignored = %v, want [item_99]", ignored)
	}
}
