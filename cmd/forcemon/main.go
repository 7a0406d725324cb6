// Command forcemon streams readings from a serial force or weight sensor,
// applies the persisted calibration, and prints classified readings with
// session statistics. Interactive commands on stdin drive calibration,
// drift baselines, and session export.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forcelab/forcemon/internal/calibration"
	"github.com/forcelab/forcemon/internal/config"
	"github.com/forcelab/forcemon/internal/fsutil"
	"github.com/forcelab/forcemon/internal/publish"
	"github.com/forcelab/forcemon/internal/reading"
	"github.com/forcelab/forcemon/internal/serialmux"
	"github.com/forcelab/forcemon/internal/sessiondb"
	"github.com/forcelab/forcemon/internal/stream"
	"github.com/forcelab/forcemon/internal/timeutil"
	"github.com/forcelab/forcemon/internal/units"
	"github.com/forcelab/forcemon/internal/version"
)

var (
	familyFlag  = flag.String("family", "", "Sensor family ("+units.ValidFamiliesString()+")")
	portFlag    = flag.String("port", "", "Serial device path (e.g. /dev/ttyUSB0)")
	configFlag  = flag.String("config", "", "Path to a JSON config file")
	dbFlag      = flag.String("db", "", "Path to the session database")
	devMode     = flag.Bool("dev", false, "Use a simulated sensor instead of real hardware")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// statsEvery is how many readings pass between printed session summaries.
const statsEvery = 100

// maxExportRows bounds the per-session reading buffer kept for export.
const maxExportRows = 10000

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := &config.Config{}
	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *familyFlag != "" {
		cfg.SensorFamily = familyFlag
	}
	if *portFlag != "" {
		cfg.PortPath = portFlag
	}
	if *dbFlag != "" {
		cfg.DatabasePath = dbFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	family := cfg.GetSensorFamily()
	clock := timeutil.RealClock{}
	store := calibration.NewStore(cfg.GetCalibrationPath(), family, fsutil.OSFileSystem{}, clock)

	rec := store.Load()
	log.Printf("Sensor: %s, calibration: %s", family, store.Status(rec))

	mux, err := openMux(cfg, family)
	if err != nil {
		log.Fatalf("Failed to open sensor: %v", err)
	}

	reader := stream.NewReader(mux, store, clock, stream.Options{
		Family:             family,
		SmoothingWindow:    cfg.GetSmoothingWindow(),
		SettleDelay:        cfg.GetSettleDelay(),
		DiscardLines:       cfg.GetDiscardLines(),
		PollInterval:       cfg.GetPollInterval(),
		CalibrationSamples: cfg.GetCalibrationSamples(),
	})

	var publisher *publish.Publisher
	if broker := cfg.GetMQTTBroker(); broker != "" {
		publisher, err = publish.New(broker, cfg.GetMQTTTopicPrefix(), family)
		if err != nil {
			log.Printf("Warning: publishing disabled: %v", err)
		} else {
			defer publisher.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := reader.Start(ctx); err != nil {
		log.Fatalf("Failed to start stream: %v", err)
	}
	defer reader.Stop()

	exportReq := make(chan struct{}, 1)
	go readCommands(ctx, reader, exportReq, stop)

	runEventLoop(ctx, reader, publisher, cfg, exportReq)
}

// openMux builds the serial mux: a simulated sensor in dev mode, otherwise a
// real port through the hardware factory.
func openMux(cfg *config.Config, family units.Family) (serialmux.Muxer, error) {
	if *devMode {
		log.Printf("Dev mode: simulating a %s sensor", family)
		return serialmux.NewSimulatedMux(family, 100*time.Millisecond), nil
	}

	factory := serialmux.HardwareSerialPortFactory{}
	port, err := factory.Open(cfg.GetPortPath(), cfg.PortOptions())
	if err != nil {
		return nil, err
	}
	log.Printf("Opened %s", cfg.GetPortPath())
	return serialmux.New(port), nil
}

// readCommands maps stdin lines to reader commands.
func readCommands(ctx context.Context, reader *stream.Reader, exportReq chan<- struct{}, stop func()) {
	fmt.Println("Commands: [t]are calibrate, [T] device tare, [b]aseline set, [c]lear baseline, [r]eset session, [s]tats, [e]xport session, [q]uit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		var err error
		switch scanner.Text() {
		case "t":
			err = reader.TareCalibrate()
		case "T":
			err = reader.SendDeviceCommand("TARE")
		case "b":
			err = reader.SetBaseline()
			if err == nil {
				fmt.Println("Drift baseline set to current value")
			}
		case "c":
			err = reader.ClearBaseline()
			if err == nil {
				fmt.Println("Drift baseline cleared")
			}
		case "r":
			err = reader.ResetSession()
			if err == nil {
				fmt.Println("Session reset")
			}
		case "s":
			printStats(reader)
		case "e":
			select {
			case exportReq <- struct{}{}:
			default:
			}
		case "q":
			stop()
			return
		case "":
		default:
			fmt.Println("Unknown command")
		}
		if err != nil {
			log.Printf("Command failed: %v", err)
		}
	}
}

func printStats(reader *stream.Reader) {
	snap, err := reader.Snapshot()
	if err != nil {
		log.Printf("Snapshot failed: %v", err)
		return
	}
	printSnapshot(snap)
}

func printSnapshot(snap stream.SessionSnapshot) {
	th := units.ThresholdsFor(snap.Family)
	if !snap.HasStats {
		fmt.Printf("Session %s: %d readings, none above the %.2f %s floor\n",
			snap.ID, snap.Total, th.StatsFloor, th.PrimaryUnit)
		return
	}
	fmt.Printf("Session %s: %d readings (%d retained) over %s\n",
		snap.ID, snap.Total, snap.Stats.Count, snap.Elapsed.Round(time.Second))
	fmt.Printf("  min %.3f  max %.3f  mean %.3f  stdev %.3f %s\n",
		snap.Stats.Min, snap.Stats.Max, snap.Stats.Mean, snap.Stats.Stdev, th.PrimaryUnit)
}

// runEventLoop consumes reader events until shutdown, printing readings and
// collecting rows for export. The last session snapshot is refreshed on each
// stats interval so a shutdown export works even after the reader has
// stopped.
func runEventLoop(ctx context.Context, reader *stream.Reader, publisher *publish.Publisher, cfg *config.Config, exportReq <-chan struct{}) {
	th := units.ThresholdsFor(cfg.GetSensorFamily())
	var rows []sessiondb.Reading
	var count int64
	var lastSnap stream.SessionSnapshot

	refreshSnap := func() {
		if snap, err := reader.Snapshot(); err == nil {
			lastSnap = snap
		}
	}

	defer func() {
		refreshSnap()
		if len(rows) > 0 && lastSnap.ID != "" {
			exportSession(lastSnap, cfg, rows)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-reader.Done():
			return

		case <-exportReq:
			refreshSnap()
			if lastSnap.ID == "" {
				log.Printf("Nothing to export yet")
				continue
			}
			exportSession(lastSnap, cfg, rows)
			rows = nil
			if err := reader.ResetSession(); err == nil {
				fmt.Println("Session exported and reset")
			}

		case ev := <-reader.Events():
			switch e := ev.(type) {
			case stream.ConnectionChanged:
				log.Printf("Stream %s", e.State)

			case stream.ReadingAvailable:
				count++
				printReading(e, th)
				if publisher != nil {
					publisher.PublishReading(e.Reading)
				}
				if e.Reading.Class != reading.ClassZero && len(rows) < maxExportRows {
					rows = append(rows, sessiondb.Reading{
						Seq:         e.Reading.Sample.Seq,
						Value:       e.Reading.Value,
						Secondary:   e.Reading.Secondary,
						Smoothed:    e.Reading.Smoothed,
						Class:       string(e.Reading.Class),
						Temperature: e.Reading.Sample.Temperature,
						RecordedAt:  e.Reading.Sample.ReceivedAt,
					})
					if lastSnap.ID == "" {
						refreshSnap()
					}
				}
				if count%statsEvery == 0 {
					refreshSnap()
					printSnapshot(lastSnap)
				}

			case stream.CalibrationProgress:
				fmt.Printf("Calibrating: %d/%d samples\n", e.Collected, e.Target)
				if publisher != nil {
					publisher.PublishCalibrationProgress(e.Collected, e.Target)
				}

			case stream.CalibrationComplete:
				fmt.Printf("Calibration complete: tare %.4f (%s)\n", e.Record.TareReference, e.Status)
				if !e.Persisted {
					log.Printf("Warning: calibration active for this session but not saved to disk")
				}
				if publisher != nil {
					publisher.PublishCalibrationComplete(e.Record.TareReference, e.Status)
				}

			case stream.CalibrationFailed:
				log.Printf("Calibration failed: %v", e.Err)
				if publisher != nil {
					publisher.PublishCalibrationFailed(e.Err)
				}

			case stream.StreamError:
				log.Printf("Stream error: %v", e.Err)
			}
		}
	}
}

func printReading(e stream.ReadingAvailable, th units.Thresholds) {
	r := e.Reading
	line := fmt.Sprintf("#%-6d %8.3f %-3s  %-8s", r.Sample.Seq, r.Smoothed, th.PrimaryUnit, r.Class)
	if th.SecondaryUnit != "" {
		line += fmt.Sprintf("  (%.1f %s)", r.SmoothedSecondary, th.SecondaryUnit)
	}
	if e.Drift != nil {
		line += fmt.Sprintf("  drift %.3f [%s]", e.Drift.Current, e.Drift.Tier)
	}
	fmt.Println(line)
}

// exportSession writes the session summary and collected readings to the
// session database.
func exportSession(snap stream.SessionSnapshot, cfg *config.Config, rows []sessiondb.Reading) {
	db, err := sessiondb.New(cfg.GetDatabasePath())
	if err != nil {
		log.Printf("Session not exported: %v", err)
		return
	}
	defer db.Close()

	err = db.ExportSession(sessiondb.Session{
		ID:           snap.ID,
		SensorFamily: string(snap.Family),
		StartedAt:    snap.StartedAt,
		EndedAt:      snap.StartedAt.Add(snap.Elapsed),
		ReadingCount: snap.Total,
	}, rows)
	if err != nil {
		log.Printf("Session not exported: %v", err)
		return
	}
	log.Printf("Exported session %s (%d readings) to %s", snap.ID, len(rows), cfg.GetDatabasePath())
}
