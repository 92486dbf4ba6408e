package module

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/najoast/stagehand/core"
)

type snapshot struct {
	Frames int `cbor:"frames"`
}

// counterStage is a guest root that counts frames and carries the count
// across reloads.
type counterStage struct {
	core.Backstage

	frames   int
	restored int
	panicAt  int
	payload  *payload
}

// payload is plain data held only by a stage, used to watch the stage
// being collected.
type payload struct {
	data [64]byte
}

func (s *counterStage) OnUpdate() {
	s.frames++
	if s.panicAt != 0 && s.frames == s.panicAt {
		panic("guest exploded")
	}
}

func (s *counterStage) ExportState() (any, error) {
	return snapshot{Frames: s.frames}, nil
}

func (s *counterStage) ImportState(h Handoff) error {
	if h.Empty() {
		return nil
	}
	var snap snapshot
	if err := h.Decode(&snap); err != nil {
		return err
	}
	s.restored = snap.Frames
	s.frames = snap.Frames
	return nil
}

type brokenChild struct {
	core.Node
	Thing *struct{} `atom:"component"`
}

type brokenStage struct {
	core.Backstage
	Child *brokenChild `atom:"component"`
}

func counterModule(panicAt int) ExportsFunc {
	return func(uint64) []any {
		return []any{EntryFunc(func() core.BackstageAtom {
			return &counterStage{panicAt: panicAt}
		})}
	}
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newRegistryHost(t *testing.T, exports ExportsFunc, mutate ...func(*Options)) (*Host, *RegistryLoader) {
	t.Helper()
	reg := NewRegistryLoader()
	reg.Register("game", exports)
	opts := Options{
		Name:     "game",
		Loader:   reg,
		CacheDir: t.TempDir(),
		Logger:   zerolog.Nop(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	h, err := NewHost(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Stop(ctx)
	})
	return h, reg
}

func stage(t *testing.T, h *Host) *counterStage {
	t.Helper()
	s, ok := h.Root().(*counterStage)
	require.True(t, ok, "root is %T", h.Root())
	return s
}
