/*
Demo application hosting the stand-in engine through the full
surface lifecycle stack
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gantryengine/gantry/host"
	"github.com/gantryengine/gantry/host/config"
	"github.com/gantryengine/gantry/host/core"
	"github.com/gantryengine/gantry/testbed"
)

func main() {
	cfg, err := config.Load("gantry.toml")
	if err != nil {
		panic(err)
	}

	demo := testbed.NewDemoEngine()

	h, err := host.New(cfg, demo)
	if err != nil {
		panic(err)
	}
	demo.OnReady = func() { h.NotifyRendererReady(true) }

	if err := h.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		// capture sigterm and other system call here
		<-sigCh
		core.EventFire(core.EventContext{Type: core.EVENT_TYPE_APPLICATION_QUIT})
	}()

	if err := h.Run(); err != nil {
		panic(err)
	}

	if err := h.Shutdown(); err != nil {
		panic(err)
	}
}
