package usecases

import (
	"context"
	"sync"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
)

// ViewportState is the map position a controller renders for.
// Viewport is nil until the first interaction.
type ViewportState struct {
	Center   domain.LatLng    `json:"center"`
	Zoom     int              `json:"zoom"`
	Viewport *domain.Viewport `json:"viewport,omitempty"`
	Seq      uint64           `json:"seq"`
}

// Render is the output for one state. Renders with a lower Seq than the
// latest one received are stale and should be dropped by the caller.
type Render struct {
	Seq     uint64                 `json:"seq"`
	Version uint64                 `json:"version"`
	Zoom    int                    `json:"zoom"`
	BBox    domain.BBox            `json:"bbox"`
	Markers []domain.ClusterResult `json:"markers"`
	Events  []domain.Event         `json:"events,omitempty"`
}

// ViewportOption customises a ViewportController.
type ViewportOption func(*ViewportController)

// WithEventList also runs the index-free filter path and fills Render.Events.
func WithEventList() ViewportOption {
	return func(c *ViewportController) { c.withEvents = true }
}

// ViewportController tracks one map's position and recomputes its markers
// whenever that position or the dataset changes.
type ViewportController struct {
	maps       *EventMapService
	withEvents bool

	mu    sync.Mutex
	state ViewportState
}

// NewViewportController starts at the default center and zoom with no viewport.
func NewViewportController(maps *EventMapService, defaults domain.MapDefaults, opts ...ViewportOption) *ViewportController {
	c := &ViewportController{
		maps:  maps,
		state: ViewportState{Center: defaults.Center, Zoom: defaults.Zoom},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OnInteraction replaces the state with the new position and renders it.
func (c *ViewportController) OnInteraction(ctx context.Context, center domain.LatLng, zoom int, bounds domain.Viewport) (Render, error) {
	bounds.Zoom = zoom

	c.mu.Lock()
	c.state = ViewportState{
		Center:   center,
		Zoom:     zoom,
		Viewport: &bounds,
		Seq:      c.state.Seq + 1,
	}
	st := c.state
	c.mu.Unlock()

	return c.render(ctx, st)
}

// Render recomputes markers for the current state.
func (c *ViewportController) Render(ctx context.Context) (Render, error) {
	return c.render(ctx, c.State())
}

// State returns a copy of the current state.
func (c *ViewportController) State() ViewportState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	if st.Viewport != nil {
		vp := *st.Viewport
		st.Viewport = &vp
	}
	return st
}

func (c *ViewportController) render(ctx context.Context, st ViewportState) (Render, error) {
	bbox := domain.WorldBBox
	if st.Viewport != nil {
		bbox = st.Viewport.BBox()
	}

	markers, err := c.maps.Clusters(ctx, bbox, st.Zoom, false)
	if err != nil {
		return Render{}, err
	}

	r := Render{Seq: st.Seq, Zoom: st.Zoom, BBox: bbox, Markers: markers}
	if info, ok := c.maps.Dataset(); ok {
		r.Version = info.Version
	}

	if c.withEvents {
		events, err := c.maps.Events(st.Viewport)
		if err != nil {
			return Render{}, err
		}
		r.Events = events
	}
	return r, nil
}
