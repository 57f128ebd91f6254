package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const maskedValue = "********"

// SavePatch 将补丁深合并进配置文件并原子落盘
// 未出现在补丁里的键保持原样, 不会被重置
func SavePatch(path string, patch map[string]any) error {
	current := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	merged := mergeMaps(current, patch)

	out, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// 先写临时文件再 rename, 避免写一半被热加载读到
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// mergeMaps 深合并, src 覆盖 dst, 嵌套 map 递归处理
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = mergeMaps(dm, sm)
				continue
			}
			dst[k] = mergeMaps(map[string]any{}, sm)
			continue
		}
		dst[k] = sv
	}
	return dst
}

// Settings 返回完整的键值视图 (默认值叠加文件内容), 供配置 API 返回
func Settings(path string) (map[string]any, error) {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}
	return v.AllSettings(), nil
}

// MaskSecrets 就地把敏感字段替换成掩码, 返回同一个 map
func MaskSecrets(settings map[string]any) map[string]any {
	maskKey(settings, "email", "password")
	maskKey(settings, "email", "username")
	maskKey(settings, "moltbook", "api_key")
	maskKey(settings, "telegram", "bot_token")
	return settings
}

func maskKey(settings map[string]any, section, key string) {
	sec, ok := settings[section].(map[string]any)
	if !ok {
		return
	}
	if v, ok := sec[key].(string); ok && v != "" {
		sec[key] = maskedValue
	}
}
