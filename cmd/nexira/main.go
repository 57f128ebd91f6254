package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/application"
	"github.com/nexira/nexira/internal/infrastructure/config"
	"github.com/nexira/nexira/internal/infrastructure/logger"
	"github.com/nexira/nexira/internal/interfaces/console"
)

const (
	appName    = "nexira"
	appVersion = "0.3.0"
)

var cfgFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Nexira — a personal AI that grows with you",
		Long:  "Nexira 是常驻的个人 AI 运行时: 持久人格、三层记忆、好奇心研究与夜间整理",
		RunE:  runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFlag, "config", "c", "", "配置文件路径 (默认 ./config.yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "启动完整运行时 (HTTP + WebSocket + 后台调度)",
		RunE:  runServe,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "console",
		Short: "终端对话模式",
		RunE:  runConsole,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "backup",
		Short: "立即备份记忆与配置",
		RunE:  runBackup,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "consolidate",
		Short: "立即执行一次夜间整理",
		RunE:  runConsolidate,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", appName, appVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap 解析配置并建好首启文件
func bootstrap(level, format string) (string, *config.Config, *zap.Logger, error) {
	path, created, err := config.EnsureDefaultConfig(cfgFlag)
	if err != nil {
		return "", nil, nil, err
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		return "", nil, nil, fmt.Errorf("load config: %w", err)
	}

	if level == "" {
		level = cfg.Log.Level
	}
	if format == "" {
		format = cfg.Log.Format
	}
	log, err := logger.NewLogger(logger.Config{
		Level:      level,
		Format:     format,
		OutputPath: cfg.Log.Output,
	})
	if err != nil {
		return "", nil, nil, fmt.Errorf("logger init: %w", err)
	}
	if created {
		log.Info("Default config written", zap.String("path", path))
	}
	return path, cfg, log, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	path, cfg, log, err := bootstrap("", "")
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting Nexira",
		zap.String("version", appVersion),
		zap.String("config", path),
	)

	app, err := application.NewApp(path, cfg, log)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return app.Stop(shutdownCtx)
}

func runConsole(cmd *cobra.Command, args []string) error {
	// 终端模式压低日志, 不刷屏
	path, cfg, log, err := bootstrap("warn", "console")
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := application.NewAppHeadless(path, cfg, log)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	return console.New(console.Deps{
		Chat:        app.Chat(),
		Identity:    app.Identity(),
		Personality: app.Personality(),
		SelfModel:   app.SelfModel(),
		Goals:       app.Goals(),
		Messages:    app.Messages(),
		Knowledge:   app.Knowledge(),
		Model:       cfg.AI.Model,
	}).Run(ctx)
}

func runBackup(cmd *cobra.Command, args []string) error {
	path, cfg, log, err := bootstrap("warn", "console")
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := application.NewAppHeadless(path, cfg, log)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	archive, err := app.Backups().Run(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	fmt.Printf("Backup written: %s\n", archive)
	return nil
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	path, cfg, log, err := bootstrap("info", "console")
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := application.NewAppHeadless(path, cfg, log)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	run, err := app.Consolidator().Run(ctx, app.Identity().Name())
	if err != nil {
		return fmt.Errorf("consolidation failed: %w", err)
	}
	if run == nil {
		fmt.Println("Already consolidated today.")
		return nil
	}
	fmt.Printf("Consolidation done: %d facts, %d topics, %d journal entries (%.1fs)\n",
		run.FactsExtracted, run.CuriosityProcessed, run.JournalsWritten, run.DurationSeconds)
	return nil
}
