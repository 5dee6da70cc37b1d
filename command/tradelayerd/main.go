// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/tradelayer/tradelayerd/activation"
	"github.com/tradelayer/tradelayerd/background"
	"github.com/tradelayer/tradelayerd/configuration"
	"github.com/tradelayer/tradelayerd/hostchain"
	"github.com/tradelayer/tradelayerd/interpreter"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/mode"
	"github.com/tradelayer/tradelayerd/notify"
	"github.com/tradelayer/tradelayerd/property"
	"github.com/tradelayer/tradelayerd/scanner"
	"github.com/tradelayer/tradelayerd/snapshot"
	"github.com/tradelayer/tradelayerd/storage"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "verbose", HasArg: getoptions.NO_ARGUMENT, Short: 'v'},
		{Long: "quiet", HasArg: getoptions.NO_ARGUMENT, Short: 'q'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "config-file", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
	}

	program, options, arguments, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		processSetupCommand(program, []string{"version"})
		return
	}

	if len(options["help"]) > 0 {
		processSetupCommand(program, []string{"help"})
		return
	}

	// these commands do not require the configuration
	if len(arguments) > 0 && processSetupCommand(program, arguments) {
		return
	}

	if 1 != len(options["config-file"]) {
		exitwithstatus.Message("%s: only one config-file option is required, %d were detected", program, len(options["config-file"]))
	}

	// read options and parse the configuration file
	configurationFile := options["config-file"][0]
	theConfiguration, err := configuration.GetConfiguration(configurationFile)
	if nil != err {
		exitwithstatus.Message("%s: failed to read configuration from: %q  error: %s", program, configurationFile, err)
	}

	// start logging
	if err = logger.Initialise(theConfiguration.Logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	// create a logger channel for the main program
	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", version)
	log.Debugf("theConfiguration: %v", theConfiguration)

	// ------------------
	// start of real main
	// ------------------

	// optional PID file
	// use if not running under a supervisor program like daemon(8)
	if "" != theConfiguration.PidFile {
		lockFile, err := os.OpenFile(theConfiguration.PidFile, os.O_WRONLY|os.O_EXCL|os.O_CREATE, os.ModeExclusive|0600)
		if err != nil {
			if os.IsExist(err) {
				exitwithstatus.Message("%s: another instance is already running", program)
			}
			exitwithstatus.Message("%s: PID file: %q creation failed, error: %s", program, theConfiguration.PidFile, err)
		}
		fmt.Fprintf(lockFile, "%d\n", os.Getpid())
		lockFile.Close()
		defer os.Remove(theConfiguration.PidFile)
	}

	// set the initial system mode - before any background tasks are started
	err = mode.Initialise(theConfiguration.Chain)
	if nil != err {
		log.Criticalf("mode initialise error: %s", err)
		exitwithstatus.Message("mode initialise error: %s", err)
	}
	defer mode.Finalise()

	// general info
	log.Infof("test mode: %v", mode.IsTesting())
	log.Infof("database: %q", theConfiguration.Database)
	log.Infof("snapshots: %q", theConfiguration.Snapshot.Directory)

	// start the data storage
	log.Info("initialise storage")
	err = storage.Initialise(theConfiguration.Database.Name, storage.ReadWrite)
	if nil != err {
		log.Criticalf("storage initialise error: %s", err)
		exitwithstatus.Message("storage initialise error: %s", err)
	}
	defer storage.Finalise()

	// the in-memory consensus state
	theLedger := ledger.New()
	theRegistry := property.NewRegistry()

	theGate, err := activation.NewGate(theConfiguration.Chain)
	if nil != err {
		log.Criticalf("activation initialise error: %s", err)
		exitwithstatus.Message("activation initialise error: %s", err)
	}

	// operator notifications
	sink := notify.NewSink()
	if 0 == len(options["quiet"]) {
		sink.Subscribe(func(event notify.Event) {
			fmt.Printf("%s: height: %d value: %d %s\n", event.Kind, event.Height, event.Value, event.Text)
		})
	}

	// snapshot persistence
	snapshots, err := snapshot.NewManager(
		theConfiguration.Snapshot.Directory,
		theConfiguration.Snapshot.KeepRecent,
		theConfiguration.Snapshot.KeepEvery,
	)
	if nil != err {
		log.Criticalf("snapshot initialise error: %s", err)
		exitwithstatus.Message("snapshot initialise error: %s", err)
	}
	// host chain connection
	client := hostchain.New(theConfiguration.HostChain)
	err = client.VerifyChain(theConfiguration.Chain)
	if nil != err {
		log.Criticalf("host chain error: %s", err)
		exitwithstatus.Message("host chain error: %s", err)
	}

	// the processing pipeline
	interp := interpreter.New(theLedger, theRegistry, theGate, nil, sink)
	interp.EnableResultIndex(true)

	// every consensus table rolls back together
	snapshots.Register(theLedger)
	snapshots.Register(theRegistry)
	snapshots.Register(property.CrowdsaleTable{Registry: theRegistry})
	snapshots.Register(theGate)
	snapshots.Register(interp.Fees())

	scan := scanner.New(client, interp, theLedger, snapshots, sink,
		theConfiguration.Snapshot.CheckpointEvery)

	// a feature activation demanding a newer client stops this node
	// at the activation boundary
	theGate.SetShutdownHandler(func(activationHeight uint64) {
		log.Criticalf("client version: %d is too old for a scheduled activation", activation.ClientVersion)
		scan.ScheduleStop(activationHeight)
	})

	// restore the last consistent state before scanning starts
	err = scan.Recover()
	if nil != err {
		log.Criticalf("recover error: %s", err)
		exitwithstatus.Message("recover error: %s", err)
	}
	log.Infof("scanning from height: %d", scan.NextHeight())

	// start the scanning background process
	processes := background.Processes{scan}
	bg := background.Start(processes, log)
	defer bg.Stop()

	// wait for CTRL-C before shutting down to allow manual testing
	if 0 == len(options["quiet"]) {
		fmt.Printf("\n\nWaiting for CTRL-C (SIGINT) or 'kill <pid>' (SIGTERM)…")
	}

	// turn Signals into channel messages
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	log.Infof("received signal: %v", sig)
	if 0 == len(options["quiet"]) {
		fmt.Printf("\nreceived signal: %v\n", sig)
		fmt.Printf("\nshutting down…\n")
	}

	log.Info("shutting down…")
	mode.Set(mode.Stopped)
}
