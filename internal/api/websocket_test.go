package api

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rawblock/riskgraph/internal/alerts"
)

func TestHubBroadcastAfterCloseIsDropped(t *testing.T) {
	hub := NewHub("")
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	hub.Close()
	<-done

	assert.NotPanics(t, func() {
		hub.Broadcast([]byte(`{"type":"late"}`))
		BroadcastAlert(hub)(alerts.Alert{ID: "late-alert"})
		hub.Close()
	})
	assert.Zero(t, hub.ClientCount())
}

func TestHubCloseRacesBroadcast(t *testing.T) {
	hub := NewHub("")
	go hub.Run()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				hub.Broadcast([]byte("tick"))
			}
		}()
	}
	hub.Close()
	wg.Wait()
}
