package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jasonlvhit/gocron"
	"github.com/peterbourgon/ff"
	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/a-bouts/race-engine/api"
	"github.com/a-bouts/race-engine/fetch"
	"github.com/a-bouts/race-engine/land"
	"github.com/a-bouts/race-engine/polar"
	"github.com/a-bouts/race-engine/prefs"
	"github.com/a-bouts/race-engine/race"
	"github.com/a-bouts/race-engine/session"
	"github.com/a-bouts/race-engine/track"
	"github.com/a-bouts/race-engine/wind"
	"github.com/a-bouts/race-engine/xmpp"
)

type options struct {
	listen       string
	coursePath   string
	polarPath    string
	windDir      string
	windManifest string
	refresh      int
	tick         time.Duration
	turnRate     float64
	tolerance    float64
	workers      int
	cacheSize    int
	cacheTTL     time.Duration
	s3           fetch.S3Config
	landPath     string
	landColumns  int
	xmpp         xmpp.Config
	prefsPath    string
	trackPath    string
	trackEvery   time.Duration
	cpuprofile   bool
	logLevel     string
	logFile      string
}

func parseFlags(args []string) (options, error) {
	var o options

	fs := flag.NewFlagSet("race-engine", flag.ExitOnError)
	fs.StringVar(&o.listen, "listen", ":8888", "http listen address")
	fs.StringVar(&o.coursePath, "course", "course.yaml", "course file (yaml or json)")
	fs.StringVar(&o.polarPath, "polar", "", "polar file, defaults to the course polar")
	fs.StringVar(&o.windDir, "wind-dir", "grib-data", "directory scanned for wind files")
	fs.StringVar(&o.windManifest, "wind-manifest", "", "wind manifest file, replaces the directory scan")
	fs.IntVar(&o.refresh, "refresh", 15, "wind refresh interval in seconds")
	fs.DurationVar(&o.tick, "tick", 100*time.Millisecond, "simulation tick interval")
	fs.Float64Var(&o.turnRate, "turn-rate", 10, "turn rate in degrees per second")
	fs.Float64Var(&o.tolerance, "tolerance", 0.5, "heading tolerance in degrees")
	fs.IntVar(&o.workers, "workers", 2, "concurrent wind decodes")
	fs.IntVar(&o.cacheSize, "cache-size", 8, "raw wind files kept in memory")
	fs.DurationVar(&o.cacheTTL, "cache-ttl", time.Hour, "raw wind files cache ttl")
	fs.StringVar(&o.s3.Endpoint, "s3-endpoint", "", "s3 endpoint for s3:// wind sources")
	fs.StringVar(&o.s3.AccessKey, "s3-access-key", "", "")
	fs.StringVar(&o.s3.SecretKey, "s3-secret-key", "", "")
	fs.BoolVar(&o.s3.UseSSL, "s3-ssl", true, "")
	fs.StringVar(&o.landPath, "land", "", "land mask file")
	fs.IntVar(&o.landColumns, "land-columns", 43200, "land mask columns")
	fs.StringVar(&o.xmpp.Host, "xmpp-host", "", "")
	fs.StringVar(&o.xmpp.Jid, "xmpp-jid", "", "")
	fs.StringVar(&o.xmpp.Password, "xmpp-password", "", "")
	fs.StringVar(&o.xmpp.To, "xmpp-to", "", "")
	fs.BoolVar(&o.xmpp.Insecure, "xmpp-insecure", false, "")
	fs.StringVar(&o.prefsPath, "prefs", "prefs.yaml", "player preferences file")
	fs.StringVar(&o.trackPath, "track", "", "track output file")
	fs.DurationVar(&o.trackEvery, "track-every", 10*time.Minute, "course time between track points")
	fs.BoolVar(&o.cpuprofile, "cpuprofile", false, "write cpu profile")
	fs.StringVar(&o.logLevel, "log-level", "info", "")
	fs.StringVar(&o.logFile, "log-file", "", "rotated log file, stderr when empty")
	_ = fs.String("config", "", "config file")

	err := ff.Parse(fs, args,
		ff.WithEnvVarNoPrefix(),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser))
	return o, err
}

func initLog(o options) io.Writer {
	level, err := log.ParseLevel(o.logLevel)
	if err != nil {
		log.WithError(err).Warnf("Unknown log level '%s'", o.logLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if o.logFile == "" {
		return os.Stdout
	}
	w := &lumberjack.Logger{
		Filename:   o.logFile,
		MaxSize:    64, // MB
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
	log.SetOutput(w)
	log.SetFormatter(&log.JSONFormatter{})
	return w
}

func loadDescriptors(o options) ([]wind.Descriptor, error) {
	if o.windManifest != "" {
		return wind.LoadManifestFile(o.windManifest)
	}
	return wind.ScanDir(o.windDir)
}

func polarPath(o options, c *race.Course) string {
	if o.polarPath != "" {
		return o.polarPath
	}
	if c.Polar == "" || filepath.IsAbs(c.Polar) {
		return c.Polar
	}
	return filepath.Join(filepath.Dir(o.coursePath), c.Polar)
}

func newFetcher(o options) (fetch.Fetcher, error) {
	router := fetch.Router{
		"file":  fetch.File{},
		"http":  fetch.NewHTTP(30 * time.Second),
		"https": fetch.NewHTTP(30 * time.Second),
	}
	if o.s3.Endpoint != "" {
		s3, err := fetch.NewS3(o.s3)
		if err != nil {
			return nil, err
		}
		router["s3"] = s3
	}
	return fetch.NewCached(router, o.cacheSize, o.cacheTTL), nil
}

func main() {

	o, err := parseFlags(os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("Error parsing flags")
	}
	accessLog := initLog(o)

	if o.cpuprofile {
		defer profile.Start().Stop()
	}

	var (
		course *race.Course
		table  *polar.Table
		descs  []wind.Descriptor
		mask   session.Mask
	)

	log.Info("Load course, polar and winds")
	g := new(errgroup.Group)
	g.Go(func() error {
		c, err := race.LoadCourse(o.coursePath)
		if err != nil {
			return err
		}
		course = c
		table, err = polar.Load(polarPath(o, c))
		return err
	})
	g.Go(func() error {
		d, err := loadDescriptors(o)
		descs = d
		return err
	})
	g.Go(func() error {
		if o.landPath == "" {
			return nil
		}
		l, err := land.Load(o.landPath, o.landColumns)
		if err != nil {
			return err
		}
		mask = l
		return nil
	})
	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("Error loading race")
	}

	fetcher, err := newFetcher(o)
	if err != nil {
		log.WithError(err).Fatal("Error creating fetcher")
	}
	loader := wind.NewLoader(fetcher, o.workers)
	defer loader.Cancel()

	s, err := session.New(session.Config{
		Course:      course,
		Polar:       table,
		Descriptors: descs,
		TurnRate:    o.turnRate,
		Tolerance:   o.tolerance,
	}, session.Deps{Loader: loader, Land: mask})
	if err != nil {
		log.WithError(err).Fatal("Error creating session")
	}

	store := prefs.NewFile(o.prefsPath)
	recorder := track.NewRecorder(course.Name, o.trackEvery)
	notifier := xmpp.Xmpp{Config: o.xmpp}

	runner := session.NewRunner(s, o.tick)
	runner.OnRender(recorder.Record)
	runner.OnFinish(func(snap session.Snapshot) {
		if o.trackPath != "" {
			if err := recorder.WriteFile(o.trackPath); err != nil {
				log.WithError(err).Errorf("Error writing track '%s'", o.trackPath)
			}
		}
		if !o.xmpp.Enabled() {
			return
		}
		p, err := store.Load()
		if err != nil {
			log.WithError(err).Warn("Error loading preferences")
		}
		elapsed := snap.CourseTime.Sub(course.StartTime)
		go notifier.Send(xmpp.FinishMessage(p.PlayerName, course.Name, snap.RaceFinished, elapsed, snap.DistanceNm))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	refresh := func() {
		descs, err := loadDescriptors(o)
		if err != nil {
			log.WithError(err).Error("Error refreshing winds")
			return
		}
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		n, err := runner.Merge(rctx, descs)
		if err != nil {
			log.WithError(err).Debug("Wind refresh skipped")
			return
		}
		if n > 0 {
			log.Infof("%d new wind steps", n)
		}
	}

	sched := gocron.NewScheduler()
	sched.Every(uint64(o.refresh)).Seconds().Do(refresh)
	go sched.Start()
	defer sched.Clear()

	router := api.InitServer(api.Config{
		Race:     runner,
		Course:   course,
		Polar:    table,
		Prefs:    store,
		Recorder: recorder,
	})
	srv := &http.Server{Addr: o.listen, Handler: api.WithMiddlewares(router, accessLog)}

	go func() {
		log.Infof("Start server on %s", o.listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Server stopped")
			stop()
		}
	}()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("Race stopped")
	}

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdown)
}
