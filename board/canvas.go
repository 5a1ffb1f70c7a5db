package board

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Roygautam8852/SyncSpace/config"
)

type entry struct {
	stroke  config.Stroke
	created int64
	raw     []byte
}

// Canvas is one client's replica of the active page. Independent strokes
// commute because they are addressed by id; same-id writes settle on the
// highest UpdatedAt (ties on the larger encoding) and an erase is final.
type Canvas struct {
	mu      sync.Mutex
	pageID  string
	strokes map[config.StrokeID]*entry
	erased  map[config.StrokeID]struct{}
}

func NewCanvas() *Canvas {
	return &Canvas{
		strokes: make(map[config.StrokeID]*entry),
		erased:  make(map[config.StrokeID]struct{}),
	}
}

func (c *Canvas) PageID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageID
}

// Put applies new-stroke and update-stroke.
func (c *Canvas) Put(s config.Stroke) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(s)
}

func (c *Canvas) put(s config.Stroke) {
	if s.ID.IsZero() {
		return
	}
	if _, gone := c.erased[s.ID]; gone {
		return
	}
	raw, _ := json.Marshal(s)

	cur, ok := c.strokes[s.ID]
	if !ok {
		c.strokes[s.ID] = &entry{stroke: s, created: s.UpdatedAt, raw: raw}
		return
	}
	if s.UpdatedAt < cur.created {
		cur.created = s.UpdatedAt
	}
	switch {
	case s.UpdatedAt > cur.stroke.UpdatedAt:
	case s.UpdatedAt == cur.stroke.UpdatedAt && bytes.Compare(raw, cur.raw) > 0:
	default:
		return
	}
	cur.stroke = s
	cur.raw = raw
}

// Erase applies erase-stroke.
func (c *Canvas) Erase(id config.StrokeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.strokes, id)
	c.erased[id] = struct{}{}
}

// Reset replaces the replica with an authoritative sequence
// (canvas-state, board-state-updated, page switches, board-cleared).
func (c *Canvas) Reset(pageID string, strokes []config.Stroke) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pageID != "" {
		c.pageID = pageID
	}
	c.strokes = make(map[config.StrokeID]*entry, len(strokes))
	c.erased = make(map[config.StrokeID]struct{})
	for _, s := range strokes {
		c.put(s)
	}
}

// Strokes returns the replica in creation order, id as tie-break, so two
// converged replicas render identically.
func (c *Canvas) Strokes() []config.Stroke {
	c.mu.Lock()
	defer c.mu.Unlock()

	es := make([]*entry, 0, len(c.strokes))
	for _, e := range c.strokes {
		es = append(es, e)
	}
	sort.Slice(es, func(i, j int) bool {
		if es[i].created != es[j].created {
			return es[i].created < es[j].created
		}
		return es[i].stroke.ID.String() < es[j].stroke.ID.String()
	})

	out := make([]config.Stroke, 0, len(es))
	for _, e := range es {
		out = append(out, e.stroke)
	}
	return out
}

// Apply feeds one server frame into the replica. Events unrelated to the
// canvas are ignored.
func (c *Canvas) Apply(event string, data []byte) error {
	switch event {
	case config.EvNewStroke, config.EvUpdateStroke:
		var s config.Stroke
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%s: %w", event, err)
		}
		c.Put(s)

	case config.EvEraseStroke:
		var m config.EraseStrokeOut
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("%s: %w", event, err)
		}
		c.Erase(m.StrokeID)

	case config.EvBoardStateUpdated:
		// the frame carries no pageId, it always replaces the page on screen
		var strokes []config.Stroke
		if err := json.Unmarshal(data, &strokes); err != nil {
			return fmt.Errorf("%s: %w", event, err)
		}
		c.Reset("", strokes)

	case config.EvBoardCleared:
		var m config.PageOut
		if len(data) > 0 {
			if err := json.Unmarshal(data, &m); err != nil {
				return fmt.Errorf("%s: %w", event, err)
			}
		}
		if m.PageID != "" && m.PageID != c.PageID() {
			return nil
		}
		c.Reset("", nil)

	case config.EvCanvasState:
		var m config.CanvasStateOut
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("%s: %w", event, err)
		}
		c.Reset(m.PageID, m.Strokes)

	case config.EvPageSwitched:
		var m config.PageSwitchedOut
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("%s: %w", event, err)
		}
		c.Reset(m.PageID, m.Strokes)

	case config.EvPageAdded:
		var m config.PageAddedOut
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("%s: %w", event, err)
		}
		c.Reset(m.PageID, nil)

	case config.EvPageDeleted:
		var m config.PageDeletedOut
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("%s: %w", event, err)
		}
		c.Reset(m.ActivePageID, m.Strokes)
	}
	return nil
}
