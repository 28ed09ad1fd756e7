package main

import (
	"context"
	"time"

	"github.com/leandrodaf/midisuite/internal/midi/midimem"
	"github.com/leandrodaf/midisuite/sdk/contracts"
)

// simulatedStudio is the device graph used with -simulate: a USB interface,
// the IAC driver and a rack synth wired to the interface.
func simulatedStudio() *midimem.System {
	s := midimem.New()

	iface := s.AddDevice("UM-ONE", 0x4D1)
	port := s.AddEntity(iface, "UM-ONE")
	s.AddSource(port, "UM-ONE In", 0x4D2)
	s.AddDestination(port, "UM-ONE Out", 0x4D3)

	iac := s.AddDevice("IAC Driver", 0x1AC)
	bus := s.AddEntity(iac, "Bus 1")
	s.AddSource(bus, "IAC Bus 1", 0x1AD)
	s.AddDestination(bus, "IAC Bus 1", 0x1AE)

	synth := s.AddExternalDevice("JV-1080", 0x1080)
	synthEntity := s.AddEntity(synth, "JV-1080")
	s.AddSource(synthEntity, "JV-1080 Out", 0)
	s.AddDestination(synthEntity, "JV-1080 In", 0)
	return s
}

// churn plugs and unplugs a network session source every interval, so
// watchers have something to report.
func churn(ctx context.Context, s *midimem.System, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var session contracts.ObjectRef
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if session == 0 {
				session = s.AddSource(0, "Network Session 1", 0)
			} else {
				s.Remove(session)
				session = 0
			}
		}
	}
}
