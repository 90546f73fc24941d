package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

const Version = "v1"

type Config struct {
	BinDir            string
	DbUrl             string
	DbName            string
	CaptureStderr     bool
	ContinueOnFailure bool
	Timeout           time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BinDir:            BENCHSUITE_BIN_DIR,
		DbUrl:             BENCHSUITE_DB_URL,
		DbName:            BENCHSUITE_DB_NAME,
		CaptureStderr:     BENCHSUITE_CAPTURE_STDERR,
		ContinueOnFailure: BENCHSUITE_CONTINUE_ON_FAILURE,
		Timeout:           BENCHSUITE_TIMEOUT,
	}
}

type System struct {
	registry  *Registry
	sequencer *Sequencer
	storage   *Storage
	db        *sql.DB
	config    Config
}

type SysInfo struct {
	Arch     string
	Hostname string
	Platform string
	Kernel   string
	CPUCount int
	CPUFreq  float64
	RAM      float64
}

func HostStat() SysInfo {
	hostStat, _ := host.Info()
	cpuStat, _ := cpu.Info()
	vmStat, _ := mem.VirtualMemory()
	info := SysInfo{
		Arch:     runtime.GOARCH,
		CPUCount: len(cpuStat),
	}
	if hostStat != nil {
		info.Hostname = hostStat.Hostname
		info.Platform = hostStat.Platform
		info.Kernel = hostStat.KernelVersion
	}
	if vmStat != nil {
		info.RAM = float64(vmStat.Total) / 1024 / 1024 / 1024
	}
	totalFreq := 0.0
	for _, cpu := range cpuStat {
		totalFreq += cpu.Mhz
	}
	if len(cpuStat) > 0 {
		info.CPUFreq = totalFreq / float64(len(cpuStat)) * 1000
	}
	return info
}

func NewSystem(config Config, registry *Registry, runner Runner) *System {
	if runner == nil {
		runner = &ExecRunner{CaptureStderr: config.CaptureStderr}
	}
	return &System{
		registry: registry,
		sequencer: &Sequencer{
			Registry:                registry,
			Resolver:                &DirResolver{Dir: config.BinDir},
			Runner:                  runner,
			ContinueOnLaunchFailure: config.ContinueOnFailure,
			Timeout:                 config.Timeout,
		},
		storage: &Storage{
			OrgName:   TURSO_ORG_NAME,
			GroupName: TURSO_GROUP_NAME,
			ApiToken:  TURSO_API_TOKEN,
			AuthToken: TURSO_AUTH_TOKEN,
		},
		config: config,
	}
}

// OpenStorage connects the transcript database if one is configured.
func (s *System) OpenStorage() error {
	url := s.config.DbUrl
	if url == "" && s.config.DbName != "" {
		if s.storage.ApiToken != "" {
			if err := s.storage.CreateDatabase(s.config.DbName); err != nil {
				return fmt.Errorf("unable to create database %v: %w", s.config.DbName, err)
			}
		}
		url = s.storage.DbUrl(s.config.DbName)
	}
	if url == "" {
		return nil
	}
	db, err := s.storage.ConnectDb(url)
	if err != nil {
		return err
	}
	if err := s.storage.InitRunsDb(db); err != nil {
		db.Close()
		return fmt.Errorf("unable to initialize runs database: %w", err)
	}
	s.db = db
	return nil
}

func (s *System) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Start runs the request on a background worker. Events arrive in emission
// order and the channel is closed before the error is delivered.
func (s *System) Start(ctx context.Context, request RunRequest) (<-chan RunEvent, <-chan error) {
	events := make(chan RunEvent, 256)
	errc := make(chan error, 1)
	go func() {
		err := s.sequencer.Run(ctx, request, NewChannelSink(ctx, events))
		close(events)
		errc <- err
	}()
	return events, errc
}

// Run executes the request and mirrors the transcript to out.
func (s *System) Run(ctx context.Context, request RunRequest, out io.Writer) (*TextSink, error) {
	info := HostStat()
	Logger.Infof("host stat: %+v", info)

	display := NewTextSink(out)
	var sink Sink = display
	var store *StoreSink
	if s.db != nil {
		run, err := s.storage.StartRun(s.db, request.Target, map[string]any{
			"version":  Version,
			"arch":     info.Arch,
			"hostname": info.Hostname,
			"platform": info.Platform,
			"kernel":   info.Kernel,
			"ram":      info.RAM,
			"cpu":      info.CPUCount,
			"freq":     info.CPUFreq,
			"bin_dir":  s.config.BinDir,
		})
		if err != nil {
			return nil, fmt.Errorf("unable to record run: %w", err)
		}
		store = NewStoreSink(s.storage, s.db, run)
		sink = MultiSink{display, store}
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, errc := s.Start(workerCtx, request)
	var sinkErr error
	for event := range events {
		if sinkErr != nil {
			continue
		}
		if err := sink.Emit(event); err != nil {
			Logger.Errorf("failed to deliver %v event: %v", event.Kind, err)
			sinkErr = err
			cancel()
		}
	}
	runErr := <-errc
	if sinkErr != nil {
		runErr = sinkErr
	}

	if store != nil {
		status := RunStatus(ctx, display, runErr)
		if err := s.storage.FinishRun(s.db, store.Run(), status); err != nil {
			Logger.Errorf("failed to finish run %v: %v", store.Run(), err)
		} else {
			Logger.Infof("recorded run %v with status %v", store.Run(), status)
		}
	}
	return display, runErr
}

func RunStatus(ctx context.Context, display *TextSink, err error) string {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return "canceled"
	case err != nil:
		return "error"
	case len(display.Failed()) > 0:
		return "failed"
	}
	return "completed"
}

func (s *System) Registry() *Registry { return s.registry }

func (s *System) Resolver() Resolver { return s.sequencer.Resolver }

func (s *System) DB() *sql.DB { return s.db }

func (s *System) Storage() *Storage { return s.storage }
