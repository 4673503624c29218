package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Camera  CameraConfig  `toml:"camera"`
	Zoom    ZoomConfig    `toml:"zoom"`
	Capture CaptureConfig `toml:"capture"`
	Notify  NotifyConfig  `toml:"notify"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `toml:"host"` // リッスンするホスト
	Port int    `toml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `toml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `toml:"write_timeout"` // 書き込みタイムアウト
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	DefaultDevice string `toml:"default_device"` // カタログが空の場合のデバイスパス
	DefaultFPS    int    `toml:"default_fps"`    // フレームレート (fps)
	DefaultWidth  int    `toml:"default_width"`  // プレビューの画像幅
	DefaultHeight int    `toml:"default_height"` // プレビューの画像高さ

	// 光学ズーム切替時の目標解像度（望遠カメラは高解像度で要求する）
	TeleWidth  int `toml:"tele_width"`
	TeleHeight int `toml:"tele_height"`
}

// ZoomConfig はズーム関連の設定
type ZoomConfig struct {
	Threshold float64 `toml:"threshold"` // 光学ズーム切替を試みる閾値
}

// CaptureConfig は静止画キャプチャの設定
type CaptureConfig struct {
	JPEGQuality int `toml:"jpeg_quality"` // JPEGエンコード品質 (1-100)
}

// NotifyConfig は通知表示の設定
type NotifyConfig struct {
	DismissMillis int `toml:"dismiss_millis"` // トーストの自動消去までのミリ秒
	FlashMillis   int `toml:"flash_millis"`   // 撮影フラッシュ表示のミリ秒
}

// Load は設定を読み込む。
// デフォルト値をベースに、BOUEN_CONFIG で指定されたTOMLファイル、
// 環境変数の順に上書きする
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Camera: CameraConfig{
			DefaultDevice: "/dev/video0",
			DefaultFPS:    15,
			DefaultWidth:  1280,
			DefaultHeight: 720,
			TeleWidth:     1920,
			TeleHeight:    1080,
		},
		Zoom: ZoomConfig{
			Threshold: 4.5,
		},
		Capture: CaptureConfig{
			JPEGQuality: 92,
		},
		Notify: NotifyConfig{
			DismissMillis: 1400,
			FlashMillis:   350,
		},
	}

	// TOMLファイルによる上書き（任意）
	if path := os.Getenv("BOUEN_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// 環境変数による上書き
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsIntOrDefault("PORT", cfg.Server.Port)
	cfg.Camera.DefaultDevice = getEnvOrDefault("CAMERA_DEVICE", cfg.Camera.DefaultDevice)

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// loadFile はTOMLファイルから設定を読み込む
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("設定ファイルが見つかりません: %s", path)
		}
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗: %w", err)
	}

	return nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	if c.Camera.DefaultFPS <= 0 || c.Camera.DefaultFPS > 60 {
		return fmt.Errorf("無効なFPS値: %d", c.Camera.DefaultFPS)
	}

	if c.Camera.DefaultWidth <= 0 || c.Camera.DefaultHeight <= 0 {
		return fmt.Errorf("無効なプレビュー解像度: %dx%d", c.Camera.DefaultWidth, c.Camera.DefaultHeight)
	}

	if c.Zoom.Threshold <= 1 || c.Zoom.Threshold >= 10 {
		return fmt.Errorf("無効なズーム閾値: %g", c.Zoom.Threshold)
	}

	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("無効なJPEG品質: %d", c.Capture.JPEGQuality)
	}

	if c.Notify.DismissMillis <= 0 {
		return fmt.Errorf("無効なトースト表示時間: %d", c.Notify.DismissMillis)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
