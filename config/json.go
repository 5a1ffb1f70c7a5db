package config

import (
	"bytes"
	"encoding/json"
	"errors"
)

// NetworkMsg is the envelope for every frame in both directions.
type NetworkMsg struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokeID keeps the client's identifier verbatim. Browsers generate
// either strings or numbers (Date.now()+Math.random()), and peers compare
// with ===, so a numeric id must go back out as a number.
type StrokeID struct {
	v   string
	num bool
}

func NewStrokeID(s string) StrokeID { return StrokeID{v: s} }

func (id StrokeID) String() string { return id.v }

func (id StrokeID) IsZero() bool { return id.v == "" }

func (id StrokeID) MarshalJSON() ([]byte, error) {
	if id.num {
		return []byte(id.v), nil
	}
	return json.Marshal(id.v)
}

func (id *StrokeID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = StrokeID{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = StrokeID{v: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("stroke id must be a string or a number")
	}
	*id = StrokeID{v: n.String(), num: true}
	return nil
}

// Stroke kinds. Freehand variants share the points path, shapes use the
// first and last point, text and image use points[0] as the anchor.
const (
	StrokePen       = "pen"
	StrokePencil    = "pencil"
	StrokeMarker    = "marker"
	StrokeHighlight = "highlighter"
	StrokeLine      = "line"
	StrokeArrow     = "arrow"
	StrokeRect      = "rectangle"
	StrokeCircle    = "circle"
	StrokeTriangle  = "triangle"
	StrokeText      = "text"
	StrokeImage     = "image"
	StrokeSticky    = "sticky"
)

type Stroke struct {
	ID          StrokeID `json:"id"`
	Type        string   `json:"type"`
	Points      []Point  `json:"points"`
	Color       string   `json:"color,omitempty"`
	Size        float64  `json:"size,omitempty"`
	Opacity     float64  `json:"opacity,omitempty"`
	StrokeStyle string   `json:"strokeStyle,omitempty"` // solid / dashed
	Fill        bool     `json:"fill,omitempty"`

	// text
	Text string `json:"text,omitempty"`

	// image
	Src  string  `json:"src,omitempty"`
	ImgW float64 `json:"imgW,omitempty"`
	ImgH float64 `json:"imgH,omitempty"`

	// set by the emitting client, used by replicas to settle same-id races
	UpdatedAt int64 `json:"updatedAt,omitempty"`
}

// PageRef is the page-list entry sent to clients.
type PageRef struct {
	PageID   string `json:"pageId"`
	PageName string `json:"pageName"`
}
