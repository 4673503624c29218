package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bouen/internal/camera"
	"bouen/internal/config"
	"bouen/internal/notify"
	"bouen/internal/photo"
	"bouen/internal/zoom"

	"github.com/gin-gonic/gin"
)

// Server はHTTPサーバーとカメラ操作の配線を管理する構造体
type Server struct {
	config      *config.Config
	engine      *gin.Engine
	httpServer  *http.Server
	catalog     *camera.Catalog
	streams     *camera.StreamController
	zoomCtl     *zoom.Controller
	snapshotter *photo.Snapshotter
	hub         *notify.Hub

	// 現在のカメラの向きの推定（切替ボタン用）
	facingMu sync.Mutex
	facing   camera.Facing
}

// New は本番構成のServerを作成する（V4L2列挙＋ffmpegフレーム取得）
func New(cfg *config.Config) *Server {
	return newServer(cfg, camera.NewV4L2Enumerator(), camera.NewFFmpegGrabber)
}

// newServer は依存を差し替え可能なコンストラクタ（テストから使用する）
func newServer(cfg *config.Config, enum camera.Enumerator, factory camera.GrabberFactory) *Server {
	catalog := camera.NewCatalog(enum)
	streams := camera.NewStreamController(
		catalog, factory,
		cfg.Camera.DefaultDevice,
		cfg.Camera.DefaultWidth, cfg.Camera.DefaultHeight, cfg.Camera.DefaultFPS,
	)
	hub := notify.NewHub()
	zoomCtl := zoom.New(streams, catalog, hub, cfg.Zoom.Threshold, cfg.Camera.TeleWidth, cfg.Camera.TeleHeight)
	snapshotter := photo.NewSnapshotter(streams, zoomCtl, cfg.Capture.JPEGQuality)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		config:      cfg,
		engine:      engine,
		catalog:     catalog,
		streams:     streams,
		zoomCtl:     zoomCtl,
		snapshotter: snapshotter,
		hub:         hub,
		facing:      camera.FacingEnvironment,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/devices", s.handleDevices)
		api.GET("/state", s.handleState)
		api.POST("/zoom", s.handleZoom)
		api.POST("/toggle", s.handleToggle)
		api.POST("/capture", s.handleCapture)
		api.GET("/stream", s.handleStream)
		api.GET("/events", s.handleEvents)
	}
}

// Start はサーバーを起動し、初期ストリームを開始する
func (s *Server) Start(ctx context.Context) error {
	// 初期カタログ取得（ラベルはストリーム開始後に揃う）
	s.catalog.Refresh(ctx)

	// 初期ストリームを開始する。背面カメラらしいラベルを優先し、
	// 無ければ向きヒント（デフォルトデバイス）にフォールバックする
	if _, err := s.streams.Start(ctx, camera.Constraints{Facing: camera.FacingEnvironment}); err != nil {
		// 起動は継続する。UIからの再操作で回復できる
		log.Printf("初期ストリームの開始に失敗しました: %v", err)
		s.hub.Error("カメラの起動に失敗しました")
	}

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		log.Printf("HTTPサーバーを起動しています: %s", s.config.ServerAddress())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		s.streams.Stop()
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はストリームを解放し、サーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	s.streams.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}

// currentFacing は現在の向きの推定を返す
func (s *Server) currentFacing() camera.Facing {
	s.facingMu.Lock()
	defer s.facingMu.Unlock()
	return s.facing
}

// setFacing は向きの推定を更新する
func (s *Server) setFacing(f camera.Facing) {
	s.facingMu.Lock()
	s.facing = f
	s.facingMu.Unlock()
}
