package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"MarketRadar/internal/domain"
	"MarketRadar/internal/textutil"
)

// ErrNotSequence means the payload parsed but holds no verdict list.
var ErrNotSequence = errors.New("classifier payload is not a sequence")

// wrapperKeys are the only object members accepted as the verdict list. Any
// other object fails the batch, even when it holds an array.
var wrapperKeys = []string{"results", "verdicts"}

type wireVerdict struct {
	PostID            *flexInt `json:"post_id"`
	SequenceIndex     *flexInt `json:"sequence_index"`
	IsOpportunity     *bool    `json:"is_opportunity"`
	PainPoint         string   `json:"pain_point"`
	TargetAudience    string   `json:"target_audience"`
	SuggestedSolution string   `json:"suggested_solution"`
	Score             *flexInt `json:"score"`
}

// flexInt accepts 8, 8.0 and "8".
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return errors.New("null number")
	}
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid number %q", raw)
	}
	*f = flexInt(math.Round(v))
	return nil
}

// DecodeVerdicts parses a classifier payload into verdicts. Elements that are
// not verdict objects are skipped; a payload that is not a list fails as a whole.
func DecodeVerdicts(content string) ([]domain.Verdict, error) {
	elems, err := decodeSequence(content)
	if err != nil {
		return nil, err
	}

	verdicts := make([]domain.Verdict, 0, len(elems))
	for _, elem := range elems {
		var w wireVerdict
		if err := json.Unmarshal(elem, &w); err != nil {
			continue
		}
		verdicts = append(verdicts, w.toDomain())
	}
	return verdicts, nil
}

func (w wireVerdict) toDomain() domain.Verdict {
	v := domain.Verdict{
		Index:             -1,
		PainPoint:         strings.TrimSpace(w.PainPoint),
		TargetAudience:    strings.TrimSpace(w.TargetAudience),
		SuggestedSolution: strings.TrimSpace(w.SuggestedSolution),
	}
	switch {
	case w.PostID != nil:
		v.Index = int(*w.PostID)
	case w.SequenceIndex != nil:
		v.Index = int(*w.SequenceIndex)
	}
	if w.IsOpportunity != nil {
		v.IsOpportunity = *w.IsOpportunity
	}
	if w.Score != nil {
		score := int(*w.Score)
		v.Score = &score
	}
	return v
}

func decodeSequence(content string) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return nil, errors.New("empty classifier payload")
	}

	elems, err := sequenceFrom([]byte(trimmed))
	if err != nil {
		return nil, fmt.Errorf("%w (payload snippet: %s)", err, textutil.Snippet(trimmed, 160))
	}
	return elems, nil
}

func sequenceFrom(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrNotSequence
	}

	switch data[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, fmt.Errorf("decode verdict list: %w", err)
		}
		return elems, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("decode verdict object: %w", err)
		}
		for _, key := range wrapperKeys {
			raw, ok := obj[key]
			if !ok {
				continue
			}
			var elems []json.RawMessage
			if err := json.Unmarshal(raw, &elems); err != nil {
				return nil, fmt.Errorf("%w: %q member: %v", ErrNotSequence, key, err)
			}
			return elems, nil
		}
		return nil, ErrNotSequence
	default:
		if !json.Valid(data) {
			return nil, errors.New("classifier payload is not valid JSON")
		}
		return nil, ErrNotSequence
	}
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
