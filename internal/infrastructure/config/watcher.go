package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher 持有当前生效的配置快照并在文件变更时热加载
// 引擎通过 Current() 取快照, 不直接持有 *Config
type Watcher struct {
	path     string
	logger   *zap.Logger
	fsw      *fsnotify.Watcher
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// NewWatcher 创建配置热加载器
func NewWatcher(path string, initial *Config, logger *zap.Logger) *Watcher {
	return &Watcher{
		path:    path,
		logger:  logger,
		current: initial,
	}
}

// Current 返回当前配置快照
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Path 配置文件路径
func (w *Watcher) Path() string {
	return w.path
}

// OnChange 注册配置变更回调, 在每次成功热加载后触发
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start 启动文件监视
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.fsw = fsw

	// 监视目录而不是文件本身, rename 落盘后事件才不会丢
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error("Config watcher error", zap.Error(err))
			}
		}
	}()

	w.logger.Info("Config hot-reload watching started",
		zap.String("path", w.path),
	)
	return nil
}

// handleEvent 处理文件变更事件
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != filepath.Base(w.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	w.Reload()
}

// Reload 重新加载配置, 失败时保留上一份可用快照
func (w *Watcher) Reload() {
	cfg, err := LoadFrom(w.path)
	if err != nil {
		w.logger.Error("Config reload failed, keeping previous snapshot",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := make([]func(*Config), len(w.onChange))
	copy(callbacks, w.onChange)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}

	w.logger.Info("Config reloaded", zap.String("path", w.path))
}

// ApplyPatch 深合并补丁到配置文件并立即热加载
func (w *Watcher) ApplyPatch(patch map[string]any) (*Config, error) {
	if err := SavePatch(w.path, patch); err != nil {
		return nil, err
	}
	w.Reload()
	return w.Current(), nil
}

// Close 关闭文件监视
func (w *Watcher) Close() error {
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
