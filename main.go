package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/imghub/internal/config"
	"github.com/any-hub/imghub/internal/derivative"
	"github.com/any-hub/imghub/internal/ident"
	"github.com/any-hub/imghub/internal/logging"
	"github.com/any-hub/imghub/internal/objects"
	"github.com/any-hub/imghub/internal/server"
	"github.com/any-hub/imghub/internal/server/routes"
	"github.com/any-hub/imghub/internal/store"
	"github.com/any-hub/imghub/internal/transform"
	"github.com/any-hub/imghub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

const defaultConfigFile = "config.toml"

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	app, err := buildApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	for k, v := range cfg.Summary() {
		fields[k] = v
	}
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(app, cfg.Global.ListenPort, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildApp 按“对象存储 → 派生缓存 → 缩放池 → 检索服务 → Fiber”顺序装配依赖，
// 所有请求共享同一个缓存实例。
func buildApp(cfg *config.Config, logger *logrus.Logger) (*fiber.App, error) {
	global := cfg.Global

	objectStore, err := store.NewStore(global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("初始化存储目录失败: %w", err)
	}

	cache, err := derivative.New(global.DerivativeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("初始化派生缓存失败: %w", err)
	}
	registry := server.NewMetricsRegistry()
	if err := cache.RegisterMetrics(registry); err != nil {
		return nil, err
	}

	svc, err := objects.NewService(objects.Options{
		Store:   objectStore,
		IDs:     ident.UUID{},
		Cache:   cache,
		Resizer: transform.NewLimitedPool(global.TransformConcurrency, transform.Limits{
			MaxSourcePixels: global.MaxSourcePixels,
			MaxOutputPixels: global.MaxOutputPixels,
		}),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	opts := server.AppOptions{
		Logger:     logger,
		ListenPort: global.ListenPort,
		TrustProxy: global.TrustProxy,
		BodyLimit:  int(global.MaxUploadSize),
	}
	if global.RateLimitEnabled() {
		opts.RateLimitMax = global.RateLimitMaxReqs
		opts.RateLimitWindow = global.RateLimitWindow.DurationValue()
	}
	app, err := server.NewApp(opts)
	if err != nil {
		return nil, err
	}
	routes.RegisterDiagnosticsRoutes(app, svc, registry)
	routes.RegisterObjectRoutes(app, svc, logger)
	return app, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
// 未指定且当前目录没有 config.toml 时返回空路径，仅使用默认值与环境变量。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("imghub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 IMGHUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("IMGHUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(app *fiber.App, port int, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
