package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/leandrodaf/midisuite/internal/config"
	"github.com/leandrodaf/midisuite/internal/library"
	"github.com/leandrodaf/midisuite/internal/logger"
	"github.com/leandrodaf/midisuite/internal/midi/midimem"
	"github.com/leandrodaf/midisuite/sdk/contracts"
	"github.com/leandrodaf/midisuite/sdk/midi"
	"github.com/leandrodaf/midisuite/sdk/sysex"
)

// commonFlags are accepted by every command that talks to MIDI.
type commonFlags struct {
	configPath *string
	simulate   *bool
	verbose    *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: fs.String("config", "", "Configuration file (default: user config dir)"),
		simulate:   fs.Bool("simulate", false, "Use a simulated device graph instead of the OS MIDI subsystem"),
		verbose:    fs.Bool("v", false, "Enable debug logging"),
	}
}

func (c *commonFlags) load() (*config.Config, []contracts.Option, error) {
	cfg, err := config.Load(*c.configPath)
	if err != nil {
		return nil, nil, err
	}

	opts := append([]contracts.Option{contracts.WithLogger(logger.NewConsoleLogger())}, cfg.Options()...)
	if *c.verbose {
		opts = append(opts, contracts.WithLogLevel(contracts.DebugLevel))
	}
	return cfg, opts, nil
}

func (c *commonFlags) openContext() (*midi.Context, *midimem.System, error) {
	_, opts, err := c.load()
	if err != nil {
		return nil, nil, err
	}
	if *c.simulate {
		system := simulatedStudio()
		mctx, err := midi.NewContextWithSystem(system, opts...)
		return mctx, system, err
	}
	mctx, err := midi.NewContext(opts...)
	return mctx, nil, err
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func usageFor(fs *flag.FlagSet, text string) func() {
	return func() {
		fmt.Fprint(os.Stderr, text)
		fmt.Fprintln(os.Stderr, "\nFlags:")
		fs.PrintDefaults()
	}
}

func displayName(o *midi.Object) string {
	if name, ok := o.Name(); ok {
		return name
	}
	return "(unnamed)"
}

func runDevices(args []string) error {
	fs := flag.NewFlagSet("devices", flag.ExitOnError)
	fs.Usage = usageFor(fs, `midisuite devices - List the MIDI device graph

Usage:
  midisuite devices [flags]
`)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	mctx, _, err := common.openContext()
	if err != nil {
		return err
	}
	defer mctx.Disconnect()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tUNIQUE ID\tNAME\tDETAIL")
	for _, d := range mctx.Devices().Objects() {
		fmt.Fprintf(w, "device\t%d\t%s\t%d bytes/s\n", d.UniqueID(), displayName(&d.Object), d.MaxSysExSpeed())
	}
	for _, d := range mctx.ExternalDevices().Objects() {
		fmt.Fprintf(w, "external\t%d\t%s\t%d bytes/s\n", d.UniqueID(), displayName(&d.Object), d.MaxSysExSpeed())
	}
	for _, s := range mctx.Sources().Objects() {
		fmt.Fprintf(w, "source\t%d\t%s\t%s\n", s.UniqueID(), displayName(&s.Object), endpointDetail(&s.Endpoint))
	}
	for _, d := range mctx.Destinations().Objects() {
		fmt.Fprintf(w, "destination\t%d\t%s\t%s\n", d.UniqueID(), displayName(&d.Object), endpointDetail(&d.Endpoint))
	}
	return w.Flush()
}

func endpointDetail(e *midi.Endpoint) string {
	var parts []string
	if manufacturer, ok := e.Manufacturer(); ok {
		parts = append(parts, manufacturer)
	}
	if model, ok := e.Model(); ok {
		parts = append(parts, model)
	}
	if e.IsOwnedByThisProcess() {
		parts = append(parts, "(ours)")
	}
	return strings.Join(parts, " ")
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	fs.Usage = usageFor(fs, `midisuite watch - Print device-graph changes until interrupted

Usage:
  midisuite watch [flags]
`)
	common := addCommonFlags(fs)
	interval := fs.Duration("churn", 2*time.Second, "With -simulate, how often the simulated graph changes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mctx, system, err := common.openContext()
	if err != nil {
		return err
	}
	defer mctx.Disconnect()

	ctx, stop := signalContext()
	defer stop()

	events := mctx.Subscribe("watch")
	go func() {
		for ev := range events {
			printEvent(ev)
		}
	}()
	if system != nil {
		go churn(ctx, system, *interval)
	}

	fmt.Println("Watching the MIDI device graph; press Ctrl-C to stop.")
	if err := mctx.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printEvent(ev contracts.GraphEvent) {
	switch ev.Kind {
	case contracts.ObjectListChanged:
		for _, ref := range ev.Added {
			fmt.Printf("+ %s %d\n", ev.ObjectType, ref)
		}
		for _, ref := range ev.Removed {
			fmt.Printf("- %s %d\n", ev.ObjectType, ref)
		}
	case contracts.ObjectPropertyChanged:
		fmt.Printf("~ %s %d %s\n", ev.ObjectType, ev.Object, ev.Property)
	}
}

func parseFormat(name string) (sysex.Format, error) {
	switch strings.ToLower(name) {
	case "syx", "raw":
		return sysex.FormatRaw, nil
	case "mid", "midi", "smf":
		return sysex.FormatSMF, nil
	}
	return 0, fmt.Errorf("unknown format %q (use syx or mid)", name)
}

func readSysExFile(path string) ([]*sysex.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	messages := sysex.DecodeFile(data)
	if len(messages) == 0 {
		return nil, fmt.Errorf("%s: %w", path, library.ErrNoSysEx)
	}
	return messages, nil
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	fs.Usage = usageFor(fs, `midisuite convert - Convert a sysex file between .syx and .mid

Usage:
  midisuite convert [flags] <input> <output>
`)
	format := fs.String("format", "", "Output format: syx or mid (default: from the output extension)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("input and output paths required")
	}
	in, out := fs.Arg(0), fs.Arg(1)

	outFormat := sysex.FormatForPath(out)
	if *format != "" {
		f, err := parseFormat(*format)
		if err != nil {
			return err
		}
		outFormat = f
	}

	messages, err := readSysExFile(in)
	if err != nil {
		return err
	}
	data, err := sysex.EncodeFile(messages, outFormat)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("Converted %d messages to %s\n", len(messages), out)
	return nil
}

func runRecord(args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	fs.Usage = usageFor(fs, `midisuite record - Record sysex from a MIDI source

Usage:
  midisuite record -list
  midisuite record -source <index> [-o file | -library name] [-duration d]
`)
	common := addCommonFlags(fs)
	list := fs.Bool("list", false, "List MIDI sources and exit")
	source := fs.Int("source", -1, "Index of the source to record from")
	output := fs.String("o", "", "Write the recording to this .syx or .mid file")
	name := fs.String("library", "", "Store the recording in the library under this name")
	duration := fs.Duration("duration", 0, "Stop after this long (default: until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, opts, err := common.load()
	if err != nil {
		return err
	}
	recorder, err := midi.NewRecorder(opts...)
	if err != nil {
		return err
	}

	if *list || *source < 0 {
		sources, err := recorder.Sources()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tNAME\tENTITY\tMANUFACTURER")
		for i, s := range sources {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, s.Name, s.EntityName, s.Manufacturer)
		}
		return w.Flush()
	}

	ctx, stop := signalContext()
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	received := make(chan *sysex.Message, 16)
	if err := recorder.Start(*source, received); err != nil {
		return err
	}
	fmt.Println("Recording; press Ctrl-C to stop.")

loop:
	for {
		select {
		case m := <-received:
			fmt.Printf("%4d  %s\n", len(recorder.Messages()), m)
		case <-ctx.Done():
			break loop
		}
	}

	messages, err := recorder.Stop()
	if err != nil {
		return err
	}
	fmt.Printf("Recorded %d messages\n", len(messages))
	if len(messages) == 0 {
		return nil
	}

	switch {
	case *output != "":
		data, err := sysex.EncodeFile(messages, sysex.FormatForPath(*output))
		if err != nil {
			return err
		}
		return os.WriteFile(*output, data, 0o644)
	case *name != "":
		lib, err := library.Open(cfg.LibraryDir, logger.NewConsoleLogger())
		if err != nil {
			return err
		}
		entry, err := lib.Add(*name, messages, sysex.FormatRaw)
		if err != nil {
			return err
		}
		fmt.Printf("Stored as %s (%s)\n", entry.File, entry.ID)
	}
	return nil
}

func runLibrary(args []string) error {
	fs := flag.NewFlagSet("library", flag.ExitOnError)
	fs.Usage = usageFor(fs, `midisuite library - Manage the sysex library

Usage:
  midisuite library [flags] list
  midisuite library [flags] import <file>...
  midisuite library [flags] export <id> <file>
  midisuite library [flags] remove [-delete] <id>
  midisuite library [flags] watch
`)
	configPath := fs.String("config", "", "Configuration file (default: user config dir)")
	dir := fs.String("dir", "", "Library directory (default: library_dir from the configuration)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("library command required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dir == "" {
		*dir = cfg.LibraryDir
	}
	log := logger.NewConsoleLogger()
	if level, ok := contracts.ParseLogLevel(strings.ToLower(cfg.LogLevel)); ok {
		log.SetLevel(level)
	}
	lib, err := library.Open(*dir, log)
	if err != nil {
		return err
	}

	rest := fs.Args()[1:]
	switch fs.Arg(0) {
	case "list":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tFILE\tMESSAGES\tBYTES\tMANUFACTURER")
		for _, e := range lib.Entries() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", e.ID, e.Name, e.File, e.Messages, e.Bytes, e.Manufacturer)
		}
		return w.Flush()

	case "import":
		if len(rest) == 0 {
			return errors.New("files to import required")
		}
		entries, err := lib.ImportFiles(rest)
		for _, e := range entries {
			fmt.Printf("Imported %s (%d messages)\n", e.File, e.Messages)
		}
		return err

	case "export":
		if len(rest) != 2 {
			return errors.New("entry id and output path required")
		}
		return lib.Export(rest[0], rest[1], sysex.FormatForPath(rest[1]))

	case "remove":
		rfs := flag.NewFlagSet("remove", flag.ExitOnError)
		deleteFile := rfs.Bool("delete", false, "Also delete the file")
		if err := rfs.Parse(rest); err != nil {
			return err
		}
		if rfs.NArg() != 1 {
			return errors.New("entry id required")
		}
		return lib.Remove(rfs.Arg(0), *deleteFile)

	case "watch":
		ctx, stop := signalContext()
		defer stop()
		fmt.Printf("Watching %s; press Ctrl-C to stop.\n", lib.Dir())
		if err := lib.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
	return fmt.Errorf("unknown library command %q", fs.Arg(0))
}

func runVirtual(args []string) error {
	fs := flag.NewFlagSet("virtual", flag.ExitOnError)
	fs.Usage = usageFor(fs, `midisuite virtual - Publish a virtual source and optionally send a sysex file

Usage:
  midisuite virtual [flags] [file]
`)
	common := addCommonFlags(fs)
	name := fs.String("name", "midisuite", "Name of the virtual endpoints")
	uniqueID := fs.Int("unique-id", 0, "Unique id of the virtual source (default: generated)")
	listen := fs.Bool("listen", false, "Also publish a virtual destination and print the sysex it receives, until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mctx, system, err := common.openContext()
	if err != nil {
		return err
	}
	defer mctx.Disconnect()

	source, err := mctx.CreateVirtualSource(*name, contracts.UniqueID(*uniqueID))
	if err != nil {
		return err
	}
	defer mctx.RemoveVirtualEndpoint(&source.Endpoint)
	fmt.Printf("Virtual source %q has unique id %d\n", *name, source.UniqueID())

	if fs.NArg() > 0 {
		messages, err := readSysExFile(fs.Arg(0))
		if err != nil {
			return err
		}
		if err := mctx.SendFromVirtualSource(source, messages); err != nil {
			return err
		}
		fmt.Printf("Sent %d messages\n", len(messages))
		if system != nil {
			fmt.Printf("Simulated subsystem received %d packets\n", len(system.Sent(source.Ref())))
		}
	}

	if !*listen {
		return nil
	}

	var (
		mu        sync.Mutex
		assembler sysex.Assembler
	)
	destination, err := mctx.CreateVirtualDestination(*name+" In", 0, func(data []byte) {
		mu.Lock()
		defer mu.Unlock()
		for _, m := range assembler.Write(uint64(time.Now().UnixNano()), data) {
			fmt.Printf("Received %s\n", m)
		}
	})
	if err != nil {
		return err
	}
	defer mctx.RemoveVirtualEndpoint(&destination.Endpoint)
	fmt.Printf("Virtual destination %q has unique id %d\n", *name+" In", destination.UniqueID())

	ctx, stop := signalContext()
	defer stop()
	if err := mctx.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
