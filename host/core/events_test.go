package core

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventBusDeliversToRegisteredHandler(t *testing.T) {
	require.True(t, EventSystemInitialize())
	t.Cleanup(func() { _ = EventSystemShutdown() })
	go ProcessEvents()

	var got atomic.Int32
	ok := EventRegister(EVENT_TYPE_SURFACE_CHANGED, func(ctx EventContext) {
		se, isSurface := ctx.Data.(*SurfaceEvent)
		if isSurface && se.Width == 1920 {
			got.Add(1)
		}
	})
	require.True(t, ok)

	require.True(t, EventFire(EventContext{
		Type: EVENT_TYPE_SURFACE_CHANGED,
		Data: &SurfaceEvent{Width: 1920, Height: 1080},
	}))

	require.Eventually(t, func() bool {
		return got.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventBusRejectsWhenUninitialized(t *testing.T) {
	// The bus starts uninitialized in a fresh process; after a shutdown it
	// must behave the same way.
	require.True(t, EventSystemInitialize())
	require.NoError(t, EventSystemShutdown())

	require.False(t, EventFire(EventContext{Type: EVENT_TYPE_SURFACE_CREATED}))
	require.False(t, EventRegister(EVENT_TYPE_SURFACE_CREATED, func(EventContext) {}))
}
