package util

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// LoadEnv 按环境加载 .env.<env>，再加载 .env 作为兜底；已存在的环境变量不会被覆盖
func LoadEnv(env string) error {
	var files []string
	if env != "" {
		name := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(name); err == nil {
			files = append(files, name)
		}
	}
	if _, err := os.Stat(".env"); err == nil {
		files = append(files, ".env")
	}
	if len(files) == 0 {
		return fmt.Errorf("no env file found for %q", env)
	}
	return godotenv.Load(files...)
}

func GetEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// GetEnvDefault 读取环境变量，为空时返回默认值
func GetEnvDefault(key, defaultValue string) string {
	if v := GetEnv(key); v != "" {
		return v
	}
	return defaultValue
}

func GetIntEnv(key string) int64 {
	return cast.ToInt64(GetEnv(key))
}

func GetIntEnvDefault(key string, defaultValue int64) int64 {
	v := GetEnv(key)
	if v == "" {
		return defaultValue
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func GetBoolEnv(key string) bool {
	return cast.ToBool(GetEnv(key))
}

func GetBoolEnvDefault(key string, defaultValue bool) bool {
	v := GetEnv(key)
	if v == "" {
		return defaultValue
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return defaultValue
	}
	return b
}

// GetDurationEnv 支持 "90s"、"2h" 这类写法，纯数字按秒处理
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	v := GetEnv(key)
	if v == "" {
		return defaultValue
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return defaultValue
	}
	if !strings.ContainsAny(v, "nsuµmh") {
		return time.Duration(cast.ToInt64(v)) * time.Second
	}
	return d
}

// GetListEnv 逗号分隔的列表，忽略空项
func GetListEnv(key string, defaultValue ...string) []string {
	v := GetEnv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
