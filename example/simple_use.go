package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/leandrodaf/midisuite/internal/logger"
	"github.com/leandrodaf/midisuite/sdk/contracts"
	"github.com/leandrodaf/midisuite/sdk/midi"
	"github.com/leandrodaf/midisuite/sdk/sysex"
)

func main() {
	log := logger.NewZapLogger()

	mctx, err := midi.NewContext(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithClientName("simple-use"),
	)
	if err != nil {
		log.Error("Failed to connect to the MIDI subsystem", log.Field().Error("error", err))
		return
	}
	defer mctx.Disconnect()

	for _, source := range mctx.Sources().Objects() {
		name, _ := source.Name()
		fmt.Printf("Source %d: %s\n", source.UniqueID(), name)
	}

	recorder, err := midi.NewRecorder(contracts.WithLogger(log))
	if err != nil {
		log.Error("Failed to initialize the recorder", log.Field().Error("error", err))
		return
	}

	messages := make(chan *sysex.Message, 16)
	if err := recorder.Start(0, messages); err != nil {
		log.Error("Failed to select MIDI source", log.Field().Error("error", err))
		return
	}
	defer recorder.Stop()

	go func() {
		for m := range messages {
			name, _ := m.ManufacturerName()
			log.Info("SysEx",
				log.Field().Uint64("Timestamp", m.Timestamp),
				log.Field().String("Manufacturer", name),
				log.Field().Int("Length", m.Len()),
			)
		}
	}()

	events := mctx.Subscribe("simple-use")
	go func() {
		for ev := range events {
			log.Info("Device graph changed",
				log.Field().String("Type", ev.ObjectType.String()),
				log.Field().Int("Added", len(ev.Added)),
				log.Field().Int("Removed", len(ev.Removed)),
			)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Capturing SysEx and watching devices... Press Ctrl+C to exit.")
	if err := mctx.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("Notification loop stopped", log.Field().Error("error", err))
	}
}
