package shapes

import (
	"bytes"
	"encoding/json"
	"sort"

	"space-planner/internal/common/errors"
	"space-planner/internal/planner/geometry"
)

// ============================================================
// Coordinate payloads
// ============================================================

func schemaKeys(s geometry.Schema) []string {
	switch s {
	case geometry.SchemaRect:
		return []string{"height", "left", "top", "width"}
	case geometry.SchemaCircle:
		return []string{"cx", "cy", "radius"}
	case geometry.SchemaAnchor:
		return []string{"x", "y"}
	case geometry.SchemaPoints:
		return []string{"points"}
	default:
		return nil
	}
}

// ParseCoordinates decodes a JSON coordinate payload for kind. The payload
// must carry exactly the fields of the kind's schema, so a circle payload
// sent for a rectangle is rejected instead of silently zeroed.
func ParseCoordinates(kind Kind, raw json.RawMessage) (geometry.Coordinates, error) {
	entry, err := Lookup(kind)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, errors.Validation("%s coordinates must be a JSON object", kind)
	}
	if err := checkKeys(kind, entry.Schema, fields, true); err != nil {
		return nil, err
	}

	c, err := decodeSchema(entry.Schema, raw)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "decode %s coordinates", kind)
	}
	if err := ValidateCoordinates(kind, c); err != nil {
		return nil, err
	}
	return c, nil
}

// MergeCoordinates overlays a partial JSON payload on the current
// coordinates of a kind and returns the complete replacement payload.
func MergeCoordinates(kind Kind, current geometry.Coordinates, patch json.RawMessage) (geometry.Coordinates, error) {
	entry, err := Lookup(kind)
	if err != nil {
		return nil, err
	}

	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(patch, &overlay); err != nil || overlay == nil {
		return nil, errors.Validation("%s coordinates must be a JSON object", kind)
	}
	if err := checkKeys(kind, entry.Schema, overlay, false); err != nil {
		return nil, err
	}

	base, err := json.Marshal(current)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "encode current coordinates")
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "decode current coordinates")
	}
	if merged == nil {
		// Inert shape: the patch has to carry every key.
		merged = make(map[string]json.RawMessage, len(overlay))
	}
	for k, v := range overlay {
		merged[k] = v
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "encode merged coordinates")
	}
	return ParseCoordinates(kind, out)
}

func checkKeys(kind Kind, schema geometry.Schema, fields map[string]json.RawMessage, requireAll bool) error {
	allowed := schemaKeys(schema)
	for k := range fields {
		if !contains(allowed, k) {
			return errors.Validation("field %q is not part of %s coordinates (%s)", k, kind, schema)
		}
	}
	if !requireAll {
		return nil
	}
	var missing []string
	for _, k := range allowed {
		if _, ok := fields[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Validation("%s coordinates missing %v", kind, missing)
	}
	return nil
}

func decodeSchema(s geometry.Schema, raw json.RawMessage) (geometry.Coordinates, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	switch s {
	case geometry.SchemaRect:
		var v geometry.RectCoords
		err := dec.Decode(&v)
		return v, err
	case geometry.SchemaCircle:
		var v geometry.CircleCoords
		err := dec.Decode(&v)
		return v, err
	case geometry.SchemaAnchor:
		var v geometry.AnchorCoords
		err := dec.Decode(&v)
		return v, err
	case geometry.SchemaPoints:
		var v geometry.PathCoords
		err := dec.Decode(&v)
		return v, err
	default:
		return nil, errors.Validation("unsupported schema %s", s)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ============================================================
// Shape wire format
// ============================================================

type wireShape struct {
	ID          string          `json:"id"`
	Type        Kind            `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
	Color       *string         `json:"color,omitempty"`
	StrokeColor *string         `json:"strokeColor,omitempty"`
	StrokeWidth *float64        `json:"strokeWidth,omitempty"`
	Rotation    *float64        `json:"rotation,omitempty"`
	Text        *string         `json:"text,omitempty"`
	Metadata    *Metadata       `json:"metadata,omitempty"`
}

// MarshalJSON encodes the shape in the document wire format.
func (s Shape) MarshalJSON() ([]byte, error) {
	w := wireShape{
		ID:          s.ID,
		Type:        s.Type,
		Color:       s.Color,
		StrokeColor: s.StrokeColor,
		StrokeWidth: s.StrokeWidth,
		Rotation:    s.Rotation,
		Text:        s.Text,
		Metadata:    s.Metadata,
	}
	switch {
	case s.Coordinates != nil:
		raw, err := json.Marshal(s.Coordinates)
		if err != nil {
			return nil, err
		}
		w.Coordinates = raw
	case s.Opaque != nil:
		w.Coordinates = s.Opaque
	default:
		w.Coordinates = json.RawMessage("null")
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire format. Known kinds get typed, validated
// coordinates. Unknown kinds, and known kinds whose payload does not parse,
// keep it in Opaque; only a broken envelope is an error.
func (s *Shape) UnmarshalJSON(data []byte) error {
	var w wireShape
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := Shape{
		ID:          w.ID,
		Type:        w.Type,
		Color:       w.Color,
		StrokeColor: w.StrokeColor,
		StrokeWidth: w.StrokeWidth,
		Rotation:    w.Rotation,
		Text:        w.Text,
		Metadata:    w.Metadata,
	}
	if !Known(w.Type) {
		out.Opaque = append(json.RawMessage(nil), w.Coordinates...)
		*s = out
		return nil
	}

	c, err := ParseCoordinates(w.Type, w.Coordinates)
	if err != nil {
		out.Opaque = append(json.RawMessage(nil), w.Coordinates...)
		if out.Opaque == nil {
			out.Opaque = json.RawMessage("null")
		}
		*s = out
		return nil
	}
	out.Coordinates = c
	*s = out
	return nil
}
