package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/service"
	"github.com/nexira/nexira/internal/infrastructure/config"
)

// 输出超过此长度截断, 防止死循环打印撑爆记录
const maxOutputBytes = 2000

// interpreter 一种语言的执行方式
type interpreter struct {
	bin     string
	ext     string
	timeout time.Duration
}

// 语言别名 → 解释器. 超时按语言习惯差异化
var interpreters = map[string]interpreter{
	"python":     {bin: "python3", ext: ".py", timeout: 10 * time.Second},
	"python3":    {bin: "python3", ext: ".py", timeout: 10 * time.Second},
	"bash":       {bin: "bash", ext: ".sh", timeout: 5 * time.Second},
	"shell":      {bin: "bash", ext: ".sh", timeout: 5 * time.Second},
	"sh":         {bin: "bash", ext: ".sh", timeout: 5 * time.Second},
	"js":         {bin: "node", ext: ".js", timeout: 8 * time.Second},
	"javascript": {bin: "node", ext: ".js", timeout: 8 * time.Second},
	"node":       {bin: "node", ext: ".js", timeout: 8 * time.Second},
}

// Runner 进程级代码沙箱
// 只提供进程组隔离和超时, 不做文件系统隔离
type Runner struct {
	cfg    func() *config.ActionsConfig
	logger *zap.Logger
}

func NewRunner(cfg func() *config.ActionsConfig, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "sandbox")),
	}
}

var _ service.CodeRunner = (*Runner)(nil)

// Supports 语言受支持且解释器已安装
func (r *Runner) Supports(language string) bool {
	if !r.cfg().Enabled {
		return false
	}
	interp, ok := interpreters[strings.ToLower(language)]
	if !ok {
		return false
	}
	_, err := exec.LookPath(interp.bin)
	return err == nil
}

// Run 把代码写进临时文件执行, 返回合并的 stdout+stderr
func (r *Runner) Run(ctx context.Context, language, code string) (string, error) {
	interp, ok := interpreters[strings.ToLower(language)]
	if !ok {
		return "", fmt.Errorf("unsupported language: %s", language)
	}
	bin, err := exec.LookPath(interp.bin)
	if err != nil {
		return "", fmt.Errorf("interpreter not installed: %s", interp.bin)
	}

	tempDir := r.cfg().TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	script, err := os.CreateTemp(tempDir, "nexira-run-*"+interp.ext)
	if err != nil {
		return "", fmt.Errorf("create temp script: %w", err)
	}
	defer os.Remove(script.Name())
	if _, err := script.WriteString(code); err != nil {
		script.Close()
		return "", fmt.Errorf("write temp script: %w", err)
	}
	script.Close()

	runCtx, cancel := context.WithTimeout(ctx, interp.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, script.Name())
	cmd.Dir = tempDir
	cmd.Env = minimalEnv(tempDir)
	// 新进程组, 超时时连子进程一起杀
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	output := out.String()
	if len(output) > maxOutputBytes {
		output = output[:maxOutputBytes]
	}
	if strings.TrimSpace(output) == "" {
		output = "(no output)"
	}

	if runCtx.Err() == context.DeadlineExceeded {
		r.logger.Warn("Code run killed on timeout",
			zap.String("language", language),
			zap.Duration("timeout", interp.timeout),
		)
		return output, fmt.Errorf("execution timed out after %v", interp.timeout)
	}
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); ok {
			// 非零退出不是基础设施错误, 输出里已有报错文本
			r.logger.Debug("Code run exited nonzero", zap.String("language", language))
			return output, nil
		}
		return output, fmt.Errorf("execution failed: %w", runErr)
	}

	r.logger.Info("Code run complete",
		zap.String("language", language),
		zap.Duration("duration", elapsed),
		zap.Int("output_bytes", len(output)),
	)
	return output, nil
}

// minimalEnv 裁剪过的环境变量, 继承 PATH 但不带密钥类变量
func minimalEnv(tempDir string) []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		home = tempDir
	}
	return []string{
		"PATH=" + path,
		"HOME=" + home,
		"TMPDIR=" + tempDir,
		"LANG=en_US.UTF-8",
	}
}
