// Command midisuite inspects the MIDI device graph and manages sysex dumps.
//
// Usage:
//
//	midisuite <command> [flags] [args]
//
// Commands:
//
//	devices  List devices, external devices, sources and destinations
//	watch    Print device-graph changes as they happen
//	convert  Convert a sysex file between .syx and .mid
//	record   Record sysex from a MIDI source
//	library  Manage the sysex library
//	virtual  Publish a virtual source and send a sysex file from it
//
// Examples:
//
//	# List the device graph of a simulated studio
//	midisuite devices -simulate
//
//	# Record a dump into the library
//	midisuite record -source 0 -library "JV-1080 bank A"
//
//	# Convert a Standard MIDI File to raw sysex
//	midisuite convert patches.mid patches.syx
package main

import (
	"fmt"
	"os"
)

const usage = `midisuite - MIDI device graph and sysex librarian

Usage:
  midisuite <command> [flags] [args]

Commands:
  devices  List devices, external devices, sources and destinations
  watch    Print device-graph changes as they happen
  convert  Convert a sysex file between .syx and .mid
  record   Record sysex from a MIDI source
  library  Manage the sysex library (list, import, export, remove, watch)
  virtual  Publish a virtual source and send a sysex file from it

Use "midisuite <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "devices":
		err = runDevices(args)
	case "watch":
		err = runWatch(args)
	case "convert":
		err = runConvert(args)
	case "record":
		err = runRecord(args)
	case "library":
		err = runLibrary(args)
	case "virtual":
		err = runVirtual(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
