package board

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"insight-board/domain"
)

var lastSeed int64

// nextSeed returns a strictly increasing nanosecond value shared by all
// cards of one normalization call. Monotonicity keeps IDs from colliding
// with cards already on the board even when calls land on the same tick.
func nextSeed() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastSeed)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastSeed, last, now) {
			return now
		}
	}
}

// Normalize coerces a raw service payload into a complete board state.
// It never fails: malformed shapes degrade to empty sequences and a nil
// payload yields an empty board with every group present. The payload's
// single severity label applies to every card produced.
func Normalize(p *domain.RawTaskPayload) domain.BoardState {
	state := domain.NewBoardState()
	if p == nil {
		return state
	}

	sev := domain.SeverityOrDefault(p.Severity)
	groups := decodeTaskGroups(p.Tasks)
	seed := nextSeed()

	for _, g := range domain.Groups() {
		titles := groupTitles(groups[string(g)])
		cards := make([]domain.Card, 0, len(titles))
		for idx, title := range titles {
			cards = append(cards, domain.Card{
				ID:       fmt.Sprintf("%s-%d-%d", g, seed, idx),
				Title:    title,
				Severity: sev,
			})
		}
		state[g] = cards
	}
	return state
}

// decodeTaskGroups splits the raw tasks document into per-group raw
// values. A missing or non-object document yields no groups.
func decodeTaskGroups(raw []byte) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var groups map[string]json.RawMessage
	if err := sonic.ConfigStd.Unmarshal(raw, &groups); err != nil {
		return nil
	}
	return groups
}

// groupTitles extracts ordered task titles from one group's raw value.
// Two shapes are accepted: a JSON array of strings, used verbatim, and an
// index-keyed object of strings, flattened in document key order. The
// upstream model emits both. Anything else normalizes to empty.
func groupTitles(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := sonic.ConfigStd.Unmarshal(raw, &list); err == nil {
		return list
	}
	return flattenKeyed(raw)
}

// flattenKeyed walks an object token by token so values come out in
// document order; decoding into a Go map would lose it. Non-string values
// are skipped.
func flattenKeyed(raw json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}
	var titles []string
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return titles
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return titles
		}
		if s, ok := value.(string); ok {
			titles = append(titles, s)
		}
	}
	return titles
}
