package board

import (
	"encoding/json"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/Roygautam8852/SyncSpace/config"
)

type op struct {
	event string
	data  []byte
}

func putOp(t *testing.T, id string, at int64, color string) op {
	t.Helper()
	b, err := json.Marshal(config.Stroke{ID: config.NewStrokeID(id), Type: config.StrokePen, Color: color, UpdatedAt: at})
	if err != nil {
		t.Fatal(err)
	}
	return op{config.EvNewStroke, b}
}

func eraseOp(id string) op {
	b, _ := json.Marshal(config.EraseStrokeOut{StrokeID: config.NewStrokeID(id)})
	return op{config.EvEraseStroke, b}
}

func render(t *testing.T, ops []op) string {
	t.Helper()
	c := NewCanvas()
	for _, o := range ops {
		if err := c.Apply(o.event, o.data); err != nil {
			t.Fatal(err)
		}
	}
	b, _ := json.Marshal(c.Strokes())
	return string(b)
}

func TestCanvasConverges(t *testing.T) {
	ops := []op{
		putOp(t, "a", 1, "red"),
		putOp(t, "b", 2, "red"),
		putOp(t, "a", 5, "blue"),
		putOp(t, "a", 5, "green"), // same time, settles on the larger encoding
		putOp(t, "c", 3, "red"),
		eraseOp("c"),
		putOp(t, "c", 9, "red"),
		putOp(t, "d", 4, "red"),
	}
	want := render(t, ops)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		shuffled := slices.Clone(ops)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		if got := render(t, shuffled); got != want {
			t.Fatalf("replicas diverged:\n got %s\nwant %s", got, want)
		}
	}

	var strokes []config.Stroke
	if err := json.Unmarshal([]byte(want), &strokes); err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, s := range strokes {
		ids = append(ids, s.ID.String())
	}
	if !slices.Equal(ids, []string{"a", "b", "d"}) {
		t.Fatalf("ids = %v", ids)
	}
	if strokes[0].Color != "green" || strokes[0].UpdatedAt != 5 {
		t.Fatalf("a = %+v", strokes[0])
	}
}

func TestCanvasResets(t *testing.T) {
	c := NewCanvas()
	state, _ := json.Marshal(config.CanvasStateOut{
		PageID:  "p1",
		Strokes: []config.Stroke{{ID: config.NewStrokeID("s1"), UpdatedAt: 1}},
	})
	if err := c.Apply(config.EvCanvasState, state); err != nil {
		t.Fatal(err)
	}
	if c.PageID() != "p1" || len(c.Strokes()) != 1 {
		t.Fatalf("after canvas-state: %q %+v", c.PageID(), c.Strokes())
	}

	other, _ := json.Marshal(config.PageOut{PageID: "p2"})
	if err := c.Apply(config.EvBoardCleared, other); err != nil {
		t.Fatal(err)
	}
	if len(c.Strokes()) != 1 {
		t.Fatal("clear of another page wiped this one")
	}

	mine, _ := json.Marshal(config.PageOut{PageID: "p1"})
	if err := c.Apply(config.EvBoardCleared, mine); err != nil {
		t.Fatal(err)
	}
	if len(c.Strokes()) != 0 {
		t.Fatal("board-cleared kept strokes")
	}

	// an erased id stays erased until an authoritative reset
	c.Erase(config.NewStrokeID("x"))
	c.Put(config.Stroke{ID: config.NewStrokeID("x"), UpdatedAt: 10})
	if len(c.Strokes()) != 0 {
		t.Fatal("erased stroke came back")
	}
	c.Reset("", []config.Stroke{{ID: config.NewStrokeID("x"), UpdatedAt: 10}})
	if len(c.Strokes()) != 1 || c.PageID() != "p1" {
		t.Fatal("reset did not restore")
	}

	// board-state-updated has no pageId and replaces whatever page is shown
	full, _ := json.Marshal([]config.Stroke{{ID: config.NewStrokeID("y1")}, {ID: config.NewStrokeID("y2")}})
	if err := c.Apply(config.EvBoardStateUpdated, full); err != nil {
		t.Fatal(err)
	}
	if len(c.Strokes()) != 2 || c.PageID() != "p1" {
		t.Fatalf("after board-state-updated: %q %+v", c.PageID(), c.Strokes())
	}

	if err := c.Apply(config.EvNewStroke, []byte(`"oops"`)); err == nil {
		t.Fatal("malformed stroke accepted")
	}
}

func TestStrokeIDKeepsNumbers(t *testing.T) {
	var s config.Stroke
	if err := json.Unmarshal([]byte(`{"id":1712345678901.5,"type":"pen","points":[]}`), &s); err != nil {
		t.Fatal(err)
	}
	b, _ := json.Marshal(config.EraseStrokeOut{StrokeID: s.ID})
	if string(b) != `{"strokeId":1712345678901.5}` {
		t.Fatalf("encoded = %s", b)
	}
}
