package risk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidInput is returned when an answer set is not a mapping at all.
var ErrInvalidInput = errors.New("invalid input: answers must be a mapping of item to value")

// Answers binds questionnaire item indices to their resolved value.
// Items absent from the map are unanswered and count as negative.
type Answers map[int]bool

// Affirmative reports whether item was answered yes.
func (a Answers) Affirmative(item int) bool { return a[item] }

// Positive returns the affirmative item indices in ascending order.
func (a Answers) Positive() []int {
	items := make([]int, 0, len(a))
	for item, v := range a {
		if v {
			items = append(items, item)
		}
	}
	sort.Ints(items)
	return items
}

// AnswersOf builds an answer set with the given items affirmative.
func AnswersOf(items ...int) Answers {
	a := make(Answers, len(items))
	for _, item := range items {
		a[item] = true
	}
	return a
}

// keyPattern accepts "7", "07", "item7", "item_07", "ITEM_07_golpes", "item-07 label".
var keyPattern = regexp.MustCompile(`(?i)^(?:item[_\-]?)?0*(\d+)(?:[_\-\s].*)?$`)

// ParseKey extracts the item index from an answer key. Any label suffix
// after the numeric part is discarded.
func ParseKey(key string) (int, bool) {
	m := keyPattern.FindStringSubmatch(strings.TrimSpace(key))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Affirmative reports whether a raw answer value means yes. Only true, the
// number 1 and the string "1" are affirmative.
func Affirmative(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int:
		return x == 1
	case int64:
		return x == 1
	case float64:
		return x == 1
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 1
	case string:
		return x == "1"
	default:
		return false
	}
}

// Normalize converts a raw answer mapping into Answers, resolving every key
// to its bare item index once. Keys that carry no item index, or whose index
// falls outside 1..items, are returned in ignored, sorted. When several keys
// bind the same item the item is affirmative if any of them is.
func Normalize(raw any, items int) (Answers, []string, error) {
	switch m := raw.(type) {
	case Answers:
		if m == nil {
			return nil, nil, ErrInvalidInput
		}
		return normalizeItems(m, items), ignoredItems(m, items), nil
	case map[int]bool:
		if m == nil {
			return nil, nil, ErrInvalidInput
		}
		return Normalize(Answers(m), items)
	case map[string]any:
		if m == nil {
			return nil, nil, ErrInvalidInput
		}
		return normalizeKeys(m, items), ignoredKeys(m, items), nil
	case map[string]bool:
		if m == nil {
			return nil, nil, ErrInvalidInput
		}
		return normalizeKeys(m, items), ignoredKeys(m, items), nil
	case map[string]string:
		if m == nil {
			return nil, nil, ErrInvalidInput
		}
		return normalizeKeys(m, items), ignoredKeys(m, items), nil
	case map[string]int:
		if m == nil {
			return nil, nil, ErrInvalidInput
		}
		return normalizeKeys(m, items), ignoredKeys(m, items), nil
	default:
		return nil, nil, fmt.Errorf("%w: got %T", ErrInvalidInput, raw)
	}
}

func inRange(item, items int) bool { return item >= 1 && item <= items }

func normalizeItems(m Answers, items int) Answers {
	out := make(Answers, len(m))
	for k, v := range m {
		if inRange(k, items) {
			out[k] = v
		}
	}
	return out
}

func ignoredItems(m Answers, items int) []string {
	ignored := []string{}
	for k := range m {
		if !inRange(k, items) {
			ignored = append(ignored, strconv.Itoa(k))
		}
	}
	sort.Strings(ignored)
	return ignored
}

func normalizeKeys[V any](m map[string]V, items int) Answers {
	a := make(Answers, len(m))
	for key, v := range m {
		item, ok := ParseKey(key)
		if !ok || !inRange(item, items) {
			continue
		}
		a[item] = a[item] || Affirmative(v)
	}
	return a
}

func ignoredKeys[V any](m map[string]V, items int) []string {
	ignored := []string{}
	for key := range m {
		if item, ok := ParseKey(key); !ok || !inRange(item, items) {
			ignored = append(ignored, key)
		}
	}
	sort.Strings(ignored)
	return ignored
}

// Decode parses a JSON object of answers for an instrument of the given
// number of items. A JSON value that is not an object (null, array, scalar)
// yields ErrInvalidInput.
func Decode(data []byte, items int) (Answers, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return Normalize(raw, items)
}
