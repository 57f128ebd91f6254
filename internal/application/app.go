package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nexira/nexira/internal/application/usecase"
	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/domain/service"
	"github.com/nexira/nexira/internal/infrastructure/backup"
	"github.com/nexira/nexira/internal/infrastructure/config"
	"github.com/nexira/nexira/internal/infrastructure/email"
	"github.com/nexira/nexira/internal/infrastructure/imagegen"
	"github.com/nexira/nexira/internal/infrastructure/llm"
	"github.com/nexira/nexira/internal/infrastructure/moltbook"
	"github.com/nexira/nexira/internal/infrastructure/notify"
	"github.com/nexira/nexira/internal/infrastructure/persistence"
	"github.com/nexira/nexira/internal/infrastructure/sandbox"
	"github.com/nexira/nexira/internal/infrastructure/search"
	"github.com/nexira/nexira/internal/infrastructure/secret"
	"github.com/nexira/nexira/internal/infrastructure/upload"
	httpServer "github.com/nexira/nexira/internal/interfaces/http"
	"github.com/nexira/nexira/internal/interfaces/http/handlers"
	"github.com/nexira/nexira/internal/interfaces/websocket"
)

// repos 全量仓储
type repos struct {
	messages      repository.MessageRepository
	knowledge     repository.KnowledgeRepository
	episodes      repository.EpisodeRepository
	weekly        repository.WeeklyRepository
	curiosity     repository.CuriosityRepository
	interests     repository.InterestRepository
	skills        repository.SkillRepository
	goals         repository.GoalRepository
	personality   repository.PersonalityRepository
	journal       repository.JournalRepository
	awareness     repository.AwarenessRepository
	selfModel     repository.SelfModelRepository
	values        repository.ValueRepository
	threads       repository.ThreadRepository
	state         repository.StateRepository
	activity      repository.ActivityRepository
	emailLog      repository.EmailLogRepository
	searchLog     repository.SearchLogRepository
	creative      repository.CreativeRepository
	consolidation repository.ConsolidationRepository
	errors        repository.ErrorLogRepository
}

// App 应用程序（依赖注入容器）
type App struct {
	watcher *config.Watcher
	logger  *zap.Logger
	db      *gorm.DB
	box     *secret.Box

	repos repos
	gate  *llm.OllamaGate

	// 心智引擎
	identity    *service.IdentityService
	personality *service.PersonalityEngine
	selfModel   *service.SelfModel
	memory      *service.MemoryEngine
	curiosity   *service.CuriosityEngine
	interests   *service.InterestTracker
	skills      *service.SkillTracker
	goals       *service.GoalTracker
	journal     *service.JournalEngine
	awareness   *service.AwarenessMeter
	threading   *service.ThreadingEngine
	composer    *service.PromptComposer
	actions     *service.ActionPipeline
	creative    *service.CreativeStudio

	// 协作方
	searcher *search.DuckDuckGo
	mailer   *email.Mailer
	summary  *email.DailySummary
	social   *moltbook.Client
	images   *imagegen.Generator
	backups  *backup.Service
	notifier *notify.Telegram
	uploads  *upload.Handler
	runner   *sandbox.Runner

	// 应用层
	chat         *usecase.ChatUseCase
	consolidator *service.Consolidator
	scheduler    *service.Scheduler

	// 接口层
	hub        *websocket.Hub
	httpServer *httpServer.Server

	runCtx    context.Context
	runCancel context.CancelFunc
}

// NewApp 组装完整运行时: serve 模式用
func NewApp(cfgPath string, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app, err := newCore(cfgPath, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.initInterfaces()
	app.initScheduler()
	return app, nil
}

// NewAppHeadless 组装不含 HTTP/WS/调度器的运行时: console 与一次性命令用
func NewAppHeadless(cfgPath string, cfg *config.Config, logger *zap.Logger) (*App, error) {
	return newCore(cfgPath, cfg, logger)
}

func newCore(cfgPath string, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := config.EnsureDataDirs(cfg, logger); err != nil {
		return nil, fmt.Errorf("prepare data dirs: %w", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	app := &App{
		watcher:   config.NewWatcher(cfgPath, cfg, logger),
		logger:    logger,
		runCtx:    runCtx,
		runCancel: runCancel,
	}

	box, err := secret.NewBox(cfg.SecretKeyPath(), logger)
	if err != nil {
		logger.Warn("Encryption unavailable, secrets stored in plaintext", zap.Error(err))
	}
	app.box = box

	if err := app.initRepositories(cfg); err != nil {
		runCancel()
		return nil, fmt.Errorf("init repositories: %w", err)
	}
	app.initEngines(cfg)
	app.initCollaborators()
	app.initApplicationServices()

	if err := app.loadEngines(); err != nil {
		runCancel()
		return nil, fmt.Errorf("load engines: %w", err)
	}
	return app, nil
}

// cfg 返回当前配置快照, 所有 live getter 经由它
func (app *App) cfg() *config.Config {
	return app.watcher.Current()
}

func (app *App) initRepositories(cfg *config.Config) error {
	app.logger.Info("Initializing repositories")

	db, err := persistence.NewDBConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	app.db = db

	app.repos = repos{
		messages:      persistence.NewGormMessageRepository(db),
		knowledge:     persistence.NewGormKnowledgeRepository(db),
		episodes:      persistence.NewGormEpisodeRepository(db),
		weekly:        persistence.NewGormWeeklyRepository(db),
		curiosity:     persistence.NewGormCuriosityRepository(db),
		interests:     persistence.NewGormInterestRepository(db),
		skills:        persistence.NewGormSkillRepository(db),
		goals:         persistence.NewGormGoalRepository(db),
		personality:   persistence.NewGormPersonalityRepository(db),
		journal:       persistence.NewGormJournalRepository(db, app.box),
		awareness:     persistence.NewGormAwarenessRepository(db),
		selfModel:     persistence.NewGormSelfModelRepository(db),
		values:        persistence.NewGormValueRepository(db),
		threads:       persistence.NewGormThreadRepository(db),
		state:         persistence.NewGormStateRepository(db),
		activity:      persistence.NewGormActivityRepository(db),
		emailLog:      persistence.NewGormEmailLogRepository(db),
		searchLog:     persistence.NewGormSearchLogRepository(db),
		creative:      persistence.NewGormCreativeRepository(db),
		consolidation: persistence.NewGormConsolidationRepository(db),
		errors:        persistence.NewGormErrorLogRepository(db),
	}
	return nil
}

// initEngines 组装心智引擎
// Ollama 连接参数来自启动时快照; 其余引擎参数走热加载 getter
func (app *App) initEngines(cfg *config.Config) {
	app.logger.Info("Initializing engines")

	app.gate = llm.NewOllamaGate(&cfg.AI, &cfg.Hardware, app.logger)

	app.searcher = search.NewDuckDuckGo(&cfg.Search, app.repos.searchLog, app.logger)

	app.identity = service.NewIdentityService(app.repos.state, app.repos.messages, app.gate, app.logger)
	app.personality = service.NewPersonalityEngine(app.repos.personality,
		func() float64 { return app.cfg().Personality.EvolutionSpeed }, app.logger)
	app.selfModel = service.NewSelfModel(app.repos.selfModel, app.repos.values, app.repos.goals,
		app.repos.skills, app.repos.state, app.gate, app.logger)
	app.memory = service.NewMemoryEngine(app.repos.messages, app.repos.episodes, app.repos.weekly,
		app.repos.knowledge, app.gate,
		func() service.MemoryOptions {
			m := app.cfg().Memory
			return service.MemoryOptions{
				SummarizeEveryN:   m.SummarizeEveryN,
				EpisodesInContext: m.EpisodesInContext,
				RetentionDays:     m.RetentionDays,
				MinConfirmations:  m.MinConfirmations,
				EpisodeTokens:     m.EpisodeTokens,
			}
		}, app.logger)
	app.curiosity = service.NewCuriosityEngine(app.repos.curiosity, app.repos.knowledge, app.gate,
		app.searcher,
		func() bool { return app.cfg().Intelligence.CuriosityEnabled }, app.logger)
	app.interests = service.NewInterestTracker(app.repos.interests, app.logger)
	app.skills = service.NewSkillTracker(app.repos.skills, app.logger)
	app.goals = service.NewGoalTracker(app.repos.goals, app.repos.knowledge, app.repos.messages,
		app.gate, app.logger)
	app.journal = service.NewJournalEngine(app.repos.journal, app.repos.messages, app.gate, app.logger)
	app.awareness = service.NewAwarenessMeter(app.repos.awareness, app.logger)
	app.threading = service.NewThreadingEngine(app.repos.threads, app.repos.messages, app.logger)

	app.composer = service.NewPromptComposer(app.identity, app.personality, app.selfModel,
		app.skills, app.memory, app.journal, app.goals,
		app.repos.knowledge, app.repos.messages, app.repos.activity,
		func() int { return app.cfg().Memory.ContextMessages }, app.logger)
}

// initCollaborators 组装外部协作方, 各自读取热加载配置
func (app *App) initCollaborators() {
	app.logger.Info("Initializing collaborators")

	app.mailer = email.NewMailer(
		func() *config.EmailConfig { return &app.cfg().Email },
		func() *config.DailyEmailConfig { return &app.cfg().DailyEmail },
		app.box, app.repos.emailLog, app.logger)
	app.summary = email.NewDailySummary(app.mailer, app.repos.messages, app.repos.knowledge,
		app.repos.goals, app.repos.personality, app.repos.curiosity, app.logger)

	app.social = moltbook.NewClient(
		func() *config.MoltbookConfig { return &app.cfg().Moltbook },
		app.box, app.repos.activity, app.logger)

	app.images = imagegen.NewGenerator(
		func() *config.ImagesConfig { return &app.cfg().Images },
		app.gate, app.repos.activity, app.logger)

	app.backups = backup.NewService(
		func() *config.BackupConfig { return &app.cfg().Backup },
		func() string { return app.cfg().DataDir },
		app.repos.activity, app.logger)

	app.notifier = notify.NewTelegram(
		func() *config.TelegramConfig { return &app.cfg().Telegram },
		app.box, app.logger)

	app.uploads = upload.NewHandler(func() string { return app.cfg().UploadDir() }, app.logger)

	app.runner = sandbox.NewRunner(
		func() *config.ActionsConfig { return &app.cfg().Actions },
		app.logger)
}

func (app *App) initApplicationServices() {
	app.logger.Info("Initializing application services")

	temperature := func() float64 { return app.cfg().AI.Temperature }

	app.actions = service.NewActionPipeline(app.repos.creative, app.repos.activity,
		app.runner, app.images, app.social, app.mailer, app.logger)

	app.creative = service.NewCreativeStudio(app.repos.creative, app.gate, app.runner,
		temperature, app.logger)

	app.chat = usecase.NewChatUseCase(usecase.ChatDeps{
		Identity:    app.identity,
		Composer:    app.composer,
		Gate:        app.gate,
		Messages:    app.repos.messages,
		Knowledge:   app.repos.knowledge,
		Errors:      app.repos.errors,
		SelfModel:   app.selfModel,
		Personality: app.personality,
		Interests:   app.interests,
		Skills:      app.skills,
		Awareness:   app.awareness,
		Memory:      app.memory,
		Curiosity:   app.curiosity,
		Threading:   app.threading,
		Goals:       app.goals,
		Actions:     app.actions,
		Searcher:    app.searcher,
		Temperature: temperature,
	}, app.logger)

	app.consolidator = service.NewConsolidator(app.repos.consolidation, app.repos.messages,
		app.repos.knowledge, app.repos.journal, app.repos.activity,
		app.personality, app.curiosity, app.memory, app.journal, app.goals, app.selfModel,
		app.social, app.gate,
		func() service.ConsolidatorOptions {
			return service.ConsolidatorOptions{
				CreativeJournaling:      true,
				PhilosophicalJournaling: true,
			}
		}, app.logger)
}

// loadEngines 恢复持久状态并播种首启数据
func (app *App) loadEngines() error {
	ctx := context.Background()

	if err := app.identity.Load(ctx); err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	if err := app.personality.Load(ctx); err != nil {
		return fmt.Errorf("load personality: %w", err)
	}

	seeds, err := config.LoadSeeds()
	if err != nil {
		return err
	}
	seedValues := make([]entity.AIValue, 0, len(seeds.Values))
	for _, v := range seeds.Values {
		seedValues = append(seedValues, entity.AIValue{Statement: v.Statement, Priority: v.Priority})
	}
	if err := app.selfModel.Load(ctx, seedValues); err != nil {
		return fmt.Errorf("load self model: %w", err)
	}

	seedGoals := make([]service.SeedGoal, 0, len(seeds.Goals))
	for _, g := range seeds.Goals {
		seedGoals = append(seedGoals, service.SeedGoal{
			Name:        g.Name,
			Type:        g.Type,
			Target:      g.Target,
			Description: g.Description,
		})
	}
	if err := app.goals.Load(ctx, seedGoals); err != nil {
		return fmt.Errorf("load goals: %w", err)
	}

	if err := app.curiosity.Load(ctx); err != nil {
		return fmt.Errorf("load curiosity: %w", err)
	}
	return nil
}

// initInterfaces 组装 WS hub 与 HTTP 服务器
func (app *App) initInterfaces() {
	app.logger.Info("Initializing interfaces")

	app.hub = websocket.NewHub(app.logger)
	app.hub.SetChatHandler(func(ctx context.Context, client *websocket.Client, content string) {
		result, err := app.chat.Execute(ctx, usecase.ChatRequest{Message: content, Platform: "web"})
		if err != nil {
			client.Send(&websocket.WSMessage{Type: websocket.MessageTypeError, Content: err.Error()})
			return
		}
		client.Send(&websocket.WSMessage{
			Type:       websocket.MessageTypeResponse,
			Content:    result.Response,
			AIName:     result.AIName,
			Confidence: result.Confidence,
			Actions:    result.Actions,
		})
	})

	chatHandler := handlers.NewChatHandler(app.chat, app.repos.messages, app.selfModel,
		app.uploads, app.logger)
	mindHandler := handlers.NewMindHandler(app.identity, app.personality, app.selfModel,
		app.awareness, app.interests, app.skills, app.curiosity, app.threading,
		handlers.MindRepos{
			Messages:      app.repos.messages,
			Knowledge:     app.repos.knowledge,
			Episodes:      app.repos.episodes,
			Personality:   app.repos.personality,
			Goals:         app.repos.goals,
			Interests:     app.repos.interests,
			Curiosity:     app.repos.curiosity,
			Journal:       app.repos.journal,
			Consolidation: app.repos.consolidation,
		}, app.logger)
	opsHandler := handlers.NewOpsHandler(handlers.OpsDeps{
		ConfigPath:    app.watcher.Path(),
		Box:           app.box,
		Identity:      app.identity,
		Mailer:        app.mailer,
		Summary:       app.summary,
		Consolidator:  app.consolidator,
		Backups:       app.backups,
		Social:        app.social,
		Searcher:      app.searcher,
		Creative:      app.creative,
		Images:        app.images,
		EmailLog:      app.repos.emailLog,
		SearchLog:     app.repos.searchLog,
		Activity:      app.repos.activity,
		Errors:        app.repos.errors,
		Consolidation: app.repos.consolidation,
	}, app.logger)

	cfg := app.cfg()
	app.httpServer = httpServer.NewServer(httpServer.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
		Mode: cfg.Server.Mode,
	}, chatHandler, mindHandler, opsHandler, app.hub, app.logger)
}

// initScheduler 注册全部后台任务
func (app *App) initScheduler() {
	app.scheduler = service.NewScheduler(service.RealClock(), app.repos.activity, app.repos.errors,
		func(event *entity.ActivityEvent) { app.hub.BroadcastActivity(event) },
		app.logger)

	consolidationClock := func() (int, int) {
		h, m, err := config.ParseClock(app.cfg().Consolidation.Time)
		if err != nil {
			return 3, 0
		}
		return h, m
	}
	app.scheduler.Add(service.Job{
		Name: "night_consolidation",
		Due:  service.DueAtClock(consolidationClock),
		Run: func(ctx context.Context) error {
			if !app.consolidator.ShouldRunTonight(ctx) {
				return nil
			}
			run, err := app.consolidator.Run(ctx, app.identity.Name())
			if err != nil {
				return err
			}
			if run != nil && app.notifier.Enabled() {
				_ = app.notifier.Notify(fmt.Sprintf(
					"🌙 %s finished the nightly consolidation: %d facts, %d topics researched.",
					app.identity.Name(), run.FactsExtracted, run.CuriosityProcessed))
			}
			return nil
		},
	})

	app.scheduler.Add(service.Job{
		Name: "goal_ticks",
		Due:  service.DueMinutes(15),
		Run: func(ctx context.Context) error {
			name := app.identity.Name()
			convCount, err := app.repos.messages.CountByRole(ctx, entity.RoleUser)
			if err != nil {
				return err
			}
			journalCount, _ := app.repos.journal.Count(ctx)
			app.goals.TickKnowledge(ctx, name)
			app.goals.TickPersonality(ctx, convCount, name)
			app.goals.TickPhilosophical(ctx, journalCount, name)
			return nil
		},
	})

	app.scheduler.Add(service.Job{
		Name: "moltbook_heartbeat",
		Due:  service.DueMinutes(0, 30),
		Run: func(ctx context.Context) error {
			if !app.social.Enabled() {
				return nil
			}
			return app.social.Heartbeat(ctx)
		},
	})

	emailClock := func() (int, int) {
		h, m, err := config.ParseClock(app.cfg().DailyEmail.SendTime)
		if err != nil {
			return 21, 0
		}
		return h, m
	}
	app.scheduler.Add(service.Job{
		Name: "daily_email",
		Due:  service.DueAtClock(emailClock),
		Run: func(ctx context.Context) error {
			if !app.summary.ShouldSendToday(ctx) {
				return nil
			}
			if err := app.summary.Send(ctx, app.identity.Name()); err != nil {
				return err
			}
			if app.notifier.Enabled() {
				_ = app.notifier.Notify(fmt.Sprintf("📬 %s's daily summary email is out.", app.identity.Name()))
			}
			return nil
		},
	})

	app.scheduler.Add(service.Job{
		Name: "backup",
		Due:  service.DueAt(func() int { return app.cfg().Backup.Hour }, 5),
		Run: func(ctx context.Context) error {
			if !app.cfg().Backup.Enabled {
				return nil
			}
			if _, err := app.backups.Run(ctx); err != nil {
				if app.notifier.Enabled() {
					_ = app.notifier.Notify(fmt.Sprintf("⚠️ Backup failed: %v", err))
				}
				return err
			}
			return nil
		},
	})

	app.scheduler.Add(service.Job{
		Name: "idle_research",
		Due:  service.OncePerHour(service.DueEveryHours(4, 30)),
		Run: func(ctx context.Context) error {
			if !app.cfg().Autonomy.IdleResearchEnabled {
				return nil
			}
			app.curiosity.ProcessQueue(ctx, 3, app.identity.Name())
			return nil
		},
	})

	app.scheduler.Add(service.Job{
		Name: "feed_read",
		Due:  service.OncePerHour(service.DueEveryHours(6, 45)),
		Run: func(ctx context.Context) error {
			if !app.cfg().Autonomy.FeedCheckEnabled || !app.social.Enabled() {
				return nil
			}
			_, err := app.social.Feed(ctx, "new", 10)
			return err
		},
	})
}

// Start 启动应用程序
func (app *App) Start(ctx context.Context) error {
	app.logger.Info("Starting application")

	if err := app.watcher.Start(app.runCtx); err != nil {
		app.logger.Warn("Config hot reload unavailable", zap.Error(err))
	}

	go app.hub.Run(app.runCtx)

	if err := app.httpServer.Start(ctx); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}
	if err := app.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	// 预热模型, 首条消息不用等冷启动
	go func() {
		warmCtx, cancel := context.WithTimeout(app.runCtx, 2*time.Minute)
		defer cancel()
		if err := app.gate.Warm(warmCtx); err != nil {
			app.logger.Warn("Model warm-up failed", zap.Error(err))
		}
	}()

	app.logger.Info("Application started",
		zap.String("ai_name", app.identity.Name()),
		zap.Int("age_days", app.identity.AgeDays()),
	)
	return nil
}

// Stop 停止应用程序
func (app *App) Stop(ctx context.Context) error {
	app.logger.Info("Stopping application")

	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if app.httpServer != nil {
		if err := app.httpServer.Stop(ctx); err != nil {
			app.logger.Error("Failed to stop HTTP server", zap.Error(err))
		}
	}
	app.runCancel()
	_ = app.watcher.Close()

	if app.db != nil {
		if sqlDB, err := app.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				app.logger.Error("Failed to close database", zap.Error(err))
			}
		}
	}

	app.logger.Info("Application stopped")
	return nil
}

// ─── 访问器: console 与一次性命令用 ───

// Chat returns the chat pipeline.
func (app *App) Chat() *usecase.ChatUseCase { return app.chat }

// Identity returns the identity service.
func (app *App) Identity() *service.IdentityService { return app.identity }

// Personality returns the personality engine.
func (app *App) Personality() *service.PersonalityEngine { return app.personality }

// SelfModel returns the self model.
func (app *App) SelfModel() *service.SelfModel { return app.selfModel }

// Goals returns the goal tracker.
func (app *App) Goals() *service.GoalTracker { return app.goals }

// Messages returns the message repository.
func (app *App) Messages() repository.MessageRepository { return app.repos.messages }

// Knowledge returns the knowledge repository.
func (app *App) Knowledge() repository.KnowledgeRepository { return app.repos.knowledge }

// Consolidator returns the nightly consolidation runner.
func (app *App) Consolidator() *service.Consolidator { return app.consolidator }

// Backups returns the backup service.
func (app *App) Backups() *backup.Service { return app.backups }

// Config returns the live configuration snapshot.
func (app *App) Config() *config.Config { return app.cfg() }

// Logger returns the application logger.
func (app *App) Logger() *zap.Logger { return app.logger }
