package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"videoanalyzer/internal/biz"
	"videoanalyzer/internal/conf"
	"videoanalyzer/internal/data"
	pkgredis "videoanalyzer/internal/pkg/redis"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name = "videoanalyzer"
	// Version is the version of the compiled software.
	Version string

	flagconf  string
	flagmedia string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs", "config path, eg: -conf config.yaml")
	flag.StringVar(&flagmedia, "media", "", "analyze one local file, print the result as JSON and exit")
}

func newApp(logger log.Logger, hs *khttp.Server) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(hs),
	)
}

func main() {
	flag.Parse()
	// .env is optional; keys may come from the environment.
	_ = godotenv.Load()

	logger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}
	if bc.Data == nil {
		bc.Data = &conf.Data{}
	}

	if flagmedia != "" {
		if err := analyzeOnce(bc, flagmedia, logger); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	app, cleanup, err := wireApp(bc.Server, bc.Data, bc.Analysis, bc.Capabilities, bc.Media, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}

// analyzeOnce runs one analysis without a database. Results are cached in
// memory only. An interrupt cancels the run and prints the partial result.
func analyzeOnce(bc conf.Bootstrap, path string, logger log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	caps, cleanup, err := data.NewCapabilities(bc.Capabilities, bc.Data, pkgredis.NewMemory(), logger)
	if err != nil {
		return err
	}
	defer cleanup()

	uc := biz.NewAnalysisUsecase(nil, nil, caps,
		biz.NewAnalysisConfig(bc.Analysis),
		biz.NewTaxonomy(bc.Analysis),
		biz.NewPricing(bc.Capabilities),
		bc.Capabilities,
		logger,
	)
	src, err := data.NewMediaOpener(bc.Media, logger).Open(ctx, path)
	if err != nil {
		return biz.ErrMediaUnreadable(biz.StageProbe, 0, 0, err)
	}
	defer src.Close()

	result, err := uc.Analyze(ctx, src, uc.Defaults())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
