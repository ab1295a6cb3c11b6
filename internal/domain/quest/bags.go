package quest

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	RequirementCountKey = "count"
	MetaIsGroupKey      = "isGroup"
	MetaIsFinalKey      = "isFinal"

	// SequenceMarkerKey marks a link as display ordering only.
	SequenceMarkerKey = "__sequence"
)

// rawBag keeps every key of a JSON object byte-for-byte so unknown keys
// survive a read/write cycle untouched.
type rawBag map[string]json.RawMessage

func decodeBag(data []byte) (rawBag, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return rawBag{}, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("expected JSON object, got %q", truncate(string(trimmed), 32))
	}
	out := rawBag{}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b rawBag) clone() rawBag {
	out := make(rawBag, len(b))
	for k, v := range b {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func (b rawBag) has(key string) bool {
	_, ok := b[key]
	return ok
}

func (b rawBag) keys() []string {
	out := make([]string, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func scanBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported bag source type %T", value)
	}
}

func bagDBType(db *gorm.DB) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	default:
		return "JSON"
	}
}

// coerceCount reads a non-negative integer from numbers or numeric strings.
// Anything else is 0.
func coerceCount(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0
	}
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func coerceBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y", "on":
			return true
		}
	}
	return false
}

func mustRaw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Requirements is the node requirement bag. Only count is interpreted.
type Requirements struct {
	Count int
	extra rawBag
}

func NewRequirements(count int) Requirements {
	if count < 0 {
		count = 0
	}
	return Requirements{Count: count}
}

// Raw returns the stored value of an uninterpreted key.
func (r Requirements) Raw(key string) (json.RawMessage, bool) {
	v, ok := r.extra[key]
	return v, ok
}

func (r Requirements) Keys() []string { return r.extra.keys() }

func (r Requirements) MarshalJSON() ([]byte, error) {
	out := r.extra.clone()
	if r.Count != 0 || out.has(RequirementCountKey) {
		out[RequirementCountKey] = mustRaw(r.Count)
	}
	return json.Marshal(out)
}

func (r *Requirements) UnmarshalJSON(data []byte) error {
	bag, err := decodeBag(data)
	if err != nil {
		return fmt.Errorf("requirements: %w", err)
	}
	r.extra = bag
	r.Count = coerceCount(bag[RequirementCountKey])
	return nil
}

func (r *Requirements) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	return r.UnmarshalJSON(b)
}

func (r Requirements) Value() (driver.Value, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (Requirements) GormDataType() string { return "json" }

func (Requirements) GormDBDataType(db *gorm.DB, _ *schema.Field) string { return bagDBType(db) }

// NodeMeta is the node metadata bag. Only isGroup and isFinal are interpreted.
type NodeMeta struct {
	IsGroup bool
	IsFinal bool
	extra   rawBag
}

func NewNodeMeta(isGroup, isFinal bool) NodeMeta {
	return NodeMeta{IsGroup: isGroup, IsFinal: isFinal}
}

func (m NodeMeta) Raw(key string) (json.RawMessage, bool) {
	v, ok := m.extra[key]
	return v, ok
}

func (m NodeMeta) Keys() []string { return m.extra.keys() }

func (m NodeMeta) MarshalJSON() ([]byte, error) {
	out := m.extra.clone()
	if m.IsGroup || out.has(MetaIsGroupKey) {
		out[MetaIsGroupKey] = mustRaw(m.IsGroup)
	}
	if m.IsFinal || out.has(MetaIsFinalKey) {
		out[MetaIsFinalKey] = mustRaw(m.IsFinal)
	}
	return json.Marshal(out)
}

func (m *NodeMeta) UnmarshalJSON(data []byte) error {
	bag, err := decodeBag(data)
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	m.extra = bag
	m.IsGroup = coerceBool(bag[MetaIsGroupKey])
	m.IsFinal = coerceBool(bag[MetaIsFinalKey])
	return nil
}

func (m *NodeMeta) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	return m.UnmarshalJSON(b)
}

func (m NodeMeta) Value() (driver.Value, error) {
	b, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (NodeMeta) GormDataType() string { return "json" }

func (NodeMeta) GormDBDataType(db *gorm.DB, _ *schema.Field) string { return bagDBType(db) }

// LinkConditions is the link condition bag. The sequence marker is lifted
// into Sequencing; an explicit false/0 marker value does not count.
type LinkConditions struct {
	Sequencing bool
	extra      rawBag
}

func NewLinkConditions(sequencing bool) LinkConditions {
	return LinkConditions{Sequencing: sequencing}
}

func (c LinkConditions) Raw(key string) (json.RawMessage, bool) {
	v, ok := c.extra[key]
	return v, ok
}

func (c LinkConditions) Keys() []string { return c.extra.keys() }

func (c LinkConditions) MarshalJSON() ([]byte, error) {
	out := c.extra.clone()
	if c.Sequencing {
		out[SequenceMarkerKey] = mustRaw(true)
	} else {
		delete(out, SequenceMarkerKey)
	}
	return json.Marshal(out)
}

func (c *LinkConditions) UnmarshalJSON(data []byte) error {
	bag, err := decodeBag(data)
	if err != nil {
		return fmt.Errorf("conditions: %w", err)
	}
	c.extra = bag
	c.Sequencing = false
	if raw, ok := bag[SequenceMarkerKey]; ok {
		c.Sequencing = !explicitlyFalse(raw)
	}
	return nil
}

func explicitlyFalse(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "false" || s == "0" || s == "no"
	}
	return false
}

func (c *LinkConditions) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	return c.UnmarshalJSON(b)
}

func (c LinkConditions) Value() (driver.Value, error) {
	b, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (LinkConditions) GormDataType() string { return "json" }

func (LinkConditions) GormDBDataType(db *gorm.DB, _ *schema.Field) string { return bagDBType(db) }
