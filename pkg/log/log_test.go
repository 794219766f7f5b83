package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitWithoutOutputPath(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(cwd) }()

	Init("info", "json", "")
	Info("logger ready")

	// 未配置文件输出时不应在工作目录留下任何日志目录
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestInitWithOutputPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	Init("debug", "json", dir)
	Info("logger ready")

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
