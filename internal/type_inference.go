package internal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lychee-technology/lowcoder"
	"go.uber.org/zap"
)

const (
	defaultMaxDigits     = 2
	defaultDecimalPlaces = 1
)

// FieldKwargs are the datatype dependent attributes produced by inference.
type FieldKwargs struct {
	MaxLength     *int
	MaxDigits     *int
	DecimalPlaces *int
	Choices       lowcoder.Choices
	Null          bool
	Blank         bool
	DefaultValue  *string
}

// Inference is the result for one column.
type Inference struct {
	Datatype      lowcoder.Datatype
	Kwargs        FieldKwargs
	HasDuplicates bool
	ProposeUnique bool
	Diagnostic    string
}

// TypeInferenceEngine infers a field datatype from one column.
type TypeInferenceEngine struct {
	choiceMaxRatio  float64
	choiceMaxCount  int
	uniqueMinValues int
	charSteps       []int
}

func NewTypeInferenceEngine(cfg lowcoder.ImportConfig) *TypeInferenceEngine {
	steps := cfg.CharLengthSteps
	if len(steps) == 0 {
		steps = lowcoder.DefaultCharLengthSteps
	}
	return &TypeInferenceEngine{
		choiceMaxRatio:  cfg.ChoiceMaxRatio,
		choiceMaxCount:  cfg.ChoiceMaxCount,
		uniqueMinValues: cfg.UniqueMinValues,
		charSteps:       steps,
	}
}

// Infer inspects s. Enumeration columns are rewritten in place so that every
// label is replaced by its integer choice key.
func (e *TypeInferenceEngine) Infer(s *Series) Inference {
	values := make([]any, 0, len(s.Values))
	nullable := false
	for _, v := range s.Values {
		if v == nil {
			nullable = true
			continue
		}
		values = append(values, v)
	}

	distinct := distinctValues(values)
	res := Inference{HasDuplicates: len(distinct) < len(values)}
	res.ProposeUnique = !res.HasDuplicates && len(values) >= e.uniqueMinValues

	switch s.Kind {
	case KindText:
		if e.isEnumeration(len(distinct), len(values), res.HasDuplicates) {
			res.Datatype = lowcoder.DatatypeInteger
			res.Kwargs.Choices = remapToChoices(s, distinct)
		} else {
			res.Datatype = lowcoder.DatatypeChar
			maxLength := e.snapCharLength(longestText(values))
			res.Kwargs.MaxLength = &maxLength
		}
	case KindBool:
		res.Datatype = lowcoder.DatatypeBoolean
	case KindInt:
		res.Datatype = lowcoder.DatatypeInteger
	case KindFloat:
		res.Datatype = lowcoder.DatatypeDecimal
		digits, places := decimalShape(values)
		res.Kwargs.MaxDigits = &digits
		res.Kwargs.DecimalPlaces = &places
	case KindDateTime:
		res.Datatype = lowcoder.DatatypeDateTime
	default:
		res.Datatype = lowcoder.DatatypeNone
		res.Diagnostic = fmt.Sprintf("column %q: no datatype for kind %s, using %s", s.Name, s.Kind, lowcoder.DatatypeNone)
		zap.S().Warnw("type inference fell back to NONE", "column", s.Name, "kind", s.Kind.String())
	}

	if nullable {
		res.Kwargs.Null = true
		res.Kwargs.Blank = true
	}
	return res
}

func (e *TypeInferenceEngine) isEnumeration(distinct, total int, hasDuplicates bool) bool {
	if !hasDuplicates || total == 0 {
		return false
	}
	ratio := 100 * float64(distinct) / float64(total)
	return ratio <= e.choiceMaxRatio && distinct <= e.choiceMaxCount
}

// snapCharLength rounds up to the next configured step; lengths beyond the
// last step pass through.
func (e *TypeInferenceEngine) snapCharLength(longest int) int {
	for _, step := range e.charSteps {
		if step >= longest {
			return step
		}
	}
	return longest
}

// distinctValues keeps first occurrence order.
func distinctValues(values []any) []any {
	seen := make(map[any]struct{}, len(values))
	out := make([]any, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func remapToChoices(s *Series, distinct []any) lowcoder.Choices {
	choices := make(lowcoder.Choices, len(distinct))
	keys := make(map[any]int64, len(distinct))
	for i, v := range distinct {
		choices[i] = lowcoder.Choice{Key: i + 1, Label: fmt.Sprint(v)}
		keys[v] = int64(i + 1)
	}
	for i, v := range s.Values {
		if v != nil {
			s.Values[i] = keys[v]
		}
	}
	s.Kind = KindInt
	return choices
}

func longestText(values []any) int {
	longest := 0
	for _, v := range values {
		longest = max(longest, utf8.RuneCountInString(fmt.Sprint(v)))
	}
	return longest
}

// decimalShape measures total and fractional digits on the shortest round
// trip representation, which always carries a fractional part.
func decimalShape(values []any) (int, int) {
	digits, places := 0, 0
	for _, v := range values {
		f, ok := v.(float64)
		if !ok {
			continue
		}
		text := strings.TrimPrefix(floatString(f), "-")
		whole, frac, _ := strings.Cut(text, ".")
		digits = max(digits, len(whole)+len(frac))
		places = max(places, len(frac))
	}
	if digits == 0 {
		digits = defaultMaxDigits
	}
	if places == 0 {
		places = defaultDecimalPlaces
	}
	return digits, places
}

func floatString(f float64) string {
	text := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(text, ".") {
		text += ".0"
	}
	return text
}
