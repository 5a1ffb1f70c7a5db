// Package board holds the page and stroke rules of a room document and the
// client-side canvas replica that applies the sync protocol.
package board

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Roygautam8852/SyncSpace/config"
)

var (
	ErrLastPage     = errors.New("cannot delete the last page")
	ErrPageNotFound = errors.New("page not found")
)

func NewPageID() string {
	return uuid.NewString()[:8]
}

func pageName(n int) string {
	return fmt.Sprintf("Page %d", n)
}

// EnsurePages synthesizes the first page from the legacy single-canvas
// fields when a room has none. It reports whether the room changed.
func EnsurePages(r *config.Room, now time.Time) bool {
	if len(r.Pages) > 0 {
		if FindPage(r, r.ActivePageID) == nil {
			r.ActivePageID = r.Pages[0].PageID
			return true
		}
		return false
	}

	strokes := r.LegacyStrokes
	if strokes == nil {
		strokes = []config.Stroke{}
	}
	p := config.Page{
		PageID:     NewPageID(),
		PageName:   pageName(1),
		Strokes:    strokes,
		CanvasData: r.LegacyCanvasData,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.Pages = []config.Page{p}
	r.ActivePageID = p.PageID
	return true
}

func Refs(r *config.Room) []config.PageRef {
	refs := make([]config.PageRef, 0, len(r.Pages))
	for _, p := range r.Pages {
		refs = append(refs, config.PageRef{PageID: p.PageID, PageName: p.PageName})
	}
	return refs
}

func FindPage(r *config.Room, pageID string) *config.Page {
	i := pageIndex(r, pageID)
	if i < 0 {
		return nil
	}
	return &r.Pages[i]
}

func pageIndex(r *config.Room, pageID string) int {
	if pageID == "" {
		return -1
	}
	for i := range r.Pages {
		if r.Pages[i].PageID == pageID {
			return i
		}
	}
	return -1
}

// ActivePage returns the active page, or the first page when the pointer
// is stale. Nil only for a room without pages.
func ActivePage(r *config.Room) *config.Page {
	if p := FindPage(r, r.ActivePageID); p != nil {
		return p
	}
	if len(r.Pages) == 0 {
		return nil
	}
	return &r.Pages[0]
}

// TargetPage resolves an optional page id, falling back to the active page
// pointer when the id is empty.
func TargetPage(r *config.Room, pageID string) (*config.Page, error) {
	if pageID == "" {
		pageID = r.ActivePageID
	}
	p := FindPage(r, pageID)
	if p == nil {
		return nil, fmt.Errorf("page %q: %w", pageID, ErrPageNotFound)
	}
	return p, nil
}

func AppendStroke(r *config.Room, pageID string, s config.Stroke, now time.Time) error {
	p, err := TargetPage(r, pageID)
	if err != nil {
		return err
	}
	p.Strokes = append(p.Strokes, s)
	p.UpdatedAt = now
	return nil
}

// ReplaceStrokes swaps the whole stroke sequence of a page and drops its
// legacy raster, which no longer matches the strokes.
func ReplaceStrokes(r *config.Room, pageID string, strokes []config.Stroke, now time.Time) error {
	p, err := TargetPage(r, pageID)
	if err != nil {
		return err
	}
	if strokes == nil {
		strokes = []config.Stroke{}
	}
	p.Strokes = strokes
	p.CanvasData = ""
	p.UpdatedAt = now
	return nil
}

func ClearPage(r *config.Room, pageID string, now time.Time) error {
	return ReplaceStrokes(r, pageID, nil, now)
}

func Touch(r *config.Room, pageID string, now time.Time) error {
	p, err := TargetPage(r, pageID)
	if err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// AddPage appends an empty page named after its position and makes it active.
func AddPage(r *config.Room, now time.Time) config.Page {
	p := config.Page{
		PageID:    NewPageID(),
		PageName:  pageName(len(r.Pages) + 1),
		Strokes:   []config.Stroke{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.Pages = append(r.Pages, p)
	r.ActivePageID = p.PageID
	return p
}

func SwitchPage(r *config.Room, pageID string) (*config.Page, error) {
	p := FindPage(r, pageID)
	if p == nil {
		return nil, fmt.Errorf("page %q: %w", pageID, ErrPageNotFound)
	}
	r.ActivePageID = pageID
	return p, nil
}

// DeletePage removes a page. When the removed page was active the page
// before it (or the new first page) becomes active. The sole page of a
// room is never removed.
func DeletePage(r *config.Room, pageID string) (*config.Page, error) {
	if len(r.Pages) <= 1 {
		return nil, ErrLastPage
	}
	i := pageIndex(r, pageID)
	if i < 0 {
		return nil, fmt.Errorf("page %q: %w", pageID, ErrPageNotFound)
	}

	r.Pages = append(r.Pages[:i], r.Pages[i+1:]...)

	if r.ActivePageID == pageID {
		r.ActivePageID = r.Pages[max(0, i-1)].PageID
	}
	return ActivePage(r), nil
}
