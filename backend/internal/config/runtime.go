package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// ModeLocal 表示当前运行在离线/本地模式。
	ModeLocal = "local"
	// ModeOnline 表示运行在默认的在线模式。
	ModeOnline = "online"

	defaultLocalUserID    = "local-user"
	defaultLocalName      = "Local User"
	defaultLocalEmail     = "offline@localhost"
	defaultLocalDBRelPath = "data/prompt-studio-local.db"
)

// RuntimeFlags 汇总运行期所需的模式与本地环境配置。
type RuntimeFlags struct {
	Mode  string
	Local LocalRuntime
}

// IsLocal 报告是否运行在本地模式。
func (f RuntimeFlags) IsLocal() bool {
	return f.Mode == ModeLocal
}

// LocalRuntime 描述本地模式下需要的额外配置，本地模式下所有请求都以该身份执行。
type LocalRuntime struct {
	DBPath string
	UserID string
	Name   string
	Email  string
	Image  string
}

// LoadRuntimeFlags 读取环境变量，推导当前运行模式及本地模式参数。
func LoadRuntimeFlags() RuntimeFlags {
	LoadEnvFiles()

	mode := strings.ToLower(strings.TrimSpace(os.Getenv("APP_MODE")))
	if mode != ModeLocal {
		mode = ModeOnline
	}

	local := LocalRuntime{
		DBPath: defaultLocalDBPath(),
		UserID: EnvString("LOCAL_USER_ID", defaultLocalUserID),
		Name:   EnvString("LOCAL_USER_NAME", defaultLocalName),
		Email:  EnvString("LOCAL_USER_EMAIL", defaultLocalEmail),
		Image:  EnvString("LOCAL_USER_IMAGE", ""),
	}
	if rawPath := strings.TrimSpace(os.Getenv("LOCAL_SQLITE_PATH")); rawPath != "" {
		local.DBPath = normalisePath(rawPath)
	}

	return RuntimeFlags{
		Mode:  mode,
		Local: local,
	}
}

// defaultLocalDBPath 计算默认的本地数据库路径并返回绝对路径。
func defaultLocalDBPath() string {
	return normalisePath(defaultLocalDBRelPath)
}

// normalisePath 将路径展开为绝对路径，兼容 ~ 前缀与相对路径。
func normalisePath(raw string) string {
	if raw == "" {
		return raw
	}
	if strings.HasPrefix(raw, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			raw = filepath.Join(home, strings.TrimPrefix(raw, "~"))
		}
	}
	if filepath.IsAbs(raw) {
		return raw
	}
	if abs, err := filepath.Abs(raw); err == nil {
		return abs
	}
	return raw
}
