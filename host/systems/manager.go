package systems

import (
	"github.com/gantryengine/gantry/host/config"
	"github.com/gantryengine/gantry/host/engine"
	"github.com/gantryengine/gantry/host/lifecycle"
)

type SystemManager struct {
	backgroundHostSystem *BackgroundHostSystem
	pollerSystem         *PollerSystem
}

// NewSystemManager wires the background host first so its callbacks exist
// before any lifecycle event can fire, then attaches the poller once the
// coordinator is available.
func NewSystemManager(callbacks HostCallbacks) (*SystemManager, error) {
	bh, err := NewBackgroundHostSystem(&BackgroundHostSystemConfig{
		QueueSize: 16,
	}, callbacks)
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		backgroundHostSystem: bh,
	}, nil
}

func (sm *SystemManager) BackgroundHost() *BackgroundHostSystem {
	return sm.backgroundHostSystem
}

// AttachPoller starts the client-size poller. Called after the coordinator
// exists; the poller depends on it for size snapshots.
func (sm *SystemManager) AttachPoller(cfg *config.Config, eng *engine.Guarded, coord *lifecycle.Coordinator) error {
	ps, err := NewPollerSystem(cfg, eng, coord)
	if err != nil {
		return err
	}
	sm.pollerSystem = ps
	return nil
}

func (sm *SystemManager) Shutdown() error {
	if sm.pollerSystem != nil {
		if err := sm.pollerSystem.Shutdown(); err != nil {
			return err
		}
	}
	if err := sm.backgroundHostSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
