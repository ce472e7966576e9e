package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/jessevdk/go-flags"
	"github.com/wkchan/callgw/internal/api"
	"github.com/wkchan/callgw/internal/at"
	"github.com/wkchan/callgw/internal/config"
	"github.com/wkchan/callgw/internal/model"
	"github.com/wkchan/callgw/internal/modem"
	"github.com/wkchan/callgw/internal/repository"
	"github.com/wkchan/callgw/internal/session"
	"github.com/wkchan/callgw/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type options struct {
	Port   string `long:"port" short:"p" description:"Serial port device, overrides config"`
	Dial   string `long:"dial" short:"d" value-name:"NUMBER" description:"Place a call and monitor it until it ends"`
	Answer bool   `long:"answer" short:"a" description:"Wait for an inbound call and answer it"`
	Hangup bool   `long:"hangup" description:"Hang up any ongoing call and exit"`
	Signal bool   `long:"signal" short:"s" description:"Print signal quality and exit"`
	Logs   bool   `long:"logs" short:"l" description:"Print recent call history and exit"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(1)
	}

	config.LoadConfig()
	logger.InitLogger(config.AppConfig.Log.Level)

	if opts.Port != "" {
		config.AppConfig.Serial.Port = opts.Port
	}

	if opts.Logs {
		printCallLogs()
		return
	}

	serialCfg := config.AppConfig.Serial
	tr := modem.NewTransport(serialCfg.Port, serialCfg.BaudRate, nil)
	if err := tr.Open(); err != nil {
		logger.Log.Fatalf("Failed to open %s: %v", serialCfg.Port, err)
	}
	defer tr.Close()

	engine := modem.NewEngine(tr, serialCfg.CommandTimeoutDuration(), serialCfg.MaxRetries)
	go engine.Run()
	defer engine.Stop()

	if err := engine.Init(serialCfg.InitATCommands); err != nil {
		logger.Log.Fatalf("Modem init failed: %v", err)
	}

	monitor := modem.NewSignalMonitor(engine, modem.Thresholds{
		PoorMax: config.AppConfig.Signal.PoorMax,
		FairMax: config.AppConfig.Signal.FairMax,
		GoodMax: config.AppConfig.Signal.GoodMax,
	})

	switch {
	case opts.Signal:
		reading, err := monitor.Query()
		if err != nil {
			logger.Log.Fatalf("Signal query failed: %v", err)
		}
		fmt.Printf("Signal: %s (rssi %d/31)\n", reading.Quality, reading.RSSI)
		return

	case opts.Hangup:
		// A fresh process has no call state; send ATH directly.
		if _, err := engine.Exec(modem.Command{Text: at.CmdHangup}); err != nil {
			logger.Log.Fatalf("Hangup failed: %v", err)
		}
		fmt.Println("Hung up.")
		return
	}

	db := initDB()
	repo := repository.NewCallLogRepository(db)

	fileLog, err := session.NewFileLogger(config.AppConfig.Session.LogDir)
	if err != nil {
		logger.Log.Fatalf("Failed to prepare call log dir: %v", err)
	}
	sess := session.Multi{fileLog, session.NewRecorder(repo)}

	machine := modem.NewMachine(engine, sess)
	go machine.Run(engine.Events())

	poller := modem.NewPoller(engine, machine, serialCfg.PollIntervalDuration())
	go poller.Run()
	defer poller.Stop()

	switch {
	case opts.Dial != "":
		if err := machine.Dial(opts.Dial); err != nil {
			logger.Log.Fatalf("Dial failed: %v", err)
		}
		fmt.Printf("Calling %s... (Ctrl+C to hang up)\n", opts.Dial)
		monitorCall(machine)
		return

	case opts.Answer:
		fmt.Println("Waiting for inbound call... (Ctrl+C to abort)")
		if !waitAndAnswer(machine) {
			return
		}
		fmt.Println("Answered. (Ctrl+C to hang up)")
		monitorCall(machine)
		return
	}

	runServer(machine, monitor, repo)
}

// monitorCall blocks until the call returns to idle or the user interrupts,
// in which case we hang up first.
func monitorCall(machine *modem.Machine) {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-interrupt:
			if err := machine.Hangup(); err != nil && !modem.IsInvalidState(err) {
				logger.Log.Warnf("Hangup failed: %v", err)
			}
			// Let the teardown poll close the record.
			deadline := time.After(10 * time.Second)
			for machine.State() != modem.StateIdle {
				select {
				case <-deadline:
					return
				case <-time.After(200 * time.Millisecond):
				}
			}
			fmt.Println("Call ended.")
			return

		case <-ticker.C:
			if machine.State() == modem.StateIdle {
				fmt.Println("Call ended.")
				return
			}
		}
	}
}

// waitAndAnswer waits for a RING, then answers. Returns false if interrupted
// or nothing rings.
func waitAndAnswer(machine *modem.Machine) bool {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(interrupt)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-interrupt:
			return false
		case <-ticker.C:
			if machine.State() != modem.StateRinging {
				continue
			}
			if err := machine.Answer(); err != nil {
				logger.Log.Errorf("Answer failed: %v", err)
				continue
			}
			return true
		}
	}
}

func runServer(machine *modem.Machine, monitor *modem.SignalMonitor, repo *repository.CallLogRepository) {
	if config.AppConfig.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	handler := api.NewCallHandler(machine, monitor, repo)
	handler.Register(r.Group("/api/v1"))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"state": machine.State().String()})
	})

	port := config.AppConfig.Server.Port
	logger.Log.Infof("Server listening on %s", port)
	if err := r.Run(port); err != nil {
		logger.Log.Fatalf("Server failed to start: %v", err)
	}
}

func initDB() *gorm.DB {
	var db *gorm.DB
	var err error

	driver := config.AppConfig.Database.Driver
	dsn := config.AppConfig.Database.DSN

	switch driver {
	case "mysql":
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	default:
		// Default to SQLite (pure Go)
		if dsn == "" {
			dsn = "callgw.db"
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}

	if err != nil {
		logger.Log.Fatalf("Failed to connect database (%s): %v", driver, err)
	}

	db.AutoMigrate(&model.CallLog{})

	return db
}

func printCallLogs() {
	db := initDB()
	repo := repository.NewCallLogRepository(db)

	calls, err := repo.Recent(10)
	if err != nil {
		logger.Log.Fatalf("Failed to load call history: %v", err)
	}
	if len(calls) == 0 {
		fmt.Println("No call history.")
		return
	}

	fmt.Println("=== Call history ===")
	for _, call := range calls {
		ended := "-"
		if call.EndedAt != nil {
			ended = call.EndedAt.Format("15:04:05")
		}
		fmt.Printf("%s  %-8s  %-16s  %-11s  ended %s (%ds)\n",
			call.StartedAt.Format("2006-01-02 15:04:05"),
			call.Direction, call.Number, call.Status, ended, call.Duration)
	}
}
