package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"bouen/internal/camera"

	"github.com/gin-gonic/gin"
)

// handleIndex は埋め込みUIページを配信する
func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML())
}

// handleHealth はヘルスチェックエンドポイントの実装
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// handleStatus はシステム状態取得エンドポイントの実装
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: s.config.Server.Host,
			Port: s.config.Server.Port,
		},
		Devices: len(s.catalog.Devices()),
		Notify: NotifySettings{
			DismissMillis: s.config.Notify.DismissMillis,
			FlashMillis:   s.config.Notify.FlashMillis,
		},
		Timestamp: time.Now(),
	})
}

// handleDevices はデバイス一覧取得エンドポイントの実装
func (s *Server) handleDevices(c *gin.Context) {
	devices := s.catalog.Devices()
	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		infos = append(infos, DeviceInfo{
			ID:    d.ID,
			Label: d.Label,
			Kind:  string(d.Kind),
		})
	}

	response := DevicesResponse{Devices: infos}
	if tele, found := s.catalog.PreferredTele(); found {
		response.TeleDeviceID = tele.ID
	}

	c.JSON(http.StatusOK, response)
}

// handleState は現在のズーム・ストリーム状態を返す
func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.stateResponse())
}

// handleZoom はズーム倍率の変更エンドポイントの実装。
// スライダーもプリセットボタンも同じ遷移ロジックを通る
func (s *Server) handleZoom(c *gin.Context) {
	var req ZoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid_request",
			Message:   "ズーム倍率の指定が不正です",
			Timestamp: time.Now(),
		})
		return
	}

	s.zoomCtl.Apply(c.Request.Context(), req.Level)
	c.JSON(http.StatusOK, s.stateResponse())
}

// handleToggle は前面・背面カメラの切替エンドポイントの実装。
// まず向きヒントでの切替を試み、失敗した場合はラベル検索で
// もう一方のデバイスを探す。どちらも失敗したら通知のみで状態は変えない
func (s *Server) handleToggle(c *gin.Context) {
	ctx := c.Request.Context()

	target := camera.FacingUser
	if s.currentFacing() == camera.FacingUser {
		target = camera.FacingEnvironment
	}

	if _, err := s.streams.Start(ctx, camera.Constraints{Facing: target}); err == nil {
		s.setFacing(target)
		s.hub.Toast("カメラを切り替えました")
		c.JSON(http.StatusOK, s.stateResponse())
		return
	}

	// フォールバック: アクティブでないデバイスをカタログから探す
	if device, found := s.otherDevice(); found {
		if _, err := s.streams.Start(ctx, camera.Constraints{DeviceID: device.ID}); err == nil {
			s.setFacing(target)
			s.hub.Toast("カメラを切り替えました")
			c.JSON(http.StatusOK, s.stateResponse())
			return
		}
	}

	s.hub.Error("もう一方のカメラが見つかりません")
	c.JSON(http.StatusConflict, ErrorResponse{
		Error:     "camera_not_found",
		Message:   "もう一方のカメラが見つかりません",
		Timestamp: time.Now(),
	})
}

// handleCapture は静止画撮影エンドポイントの実装。
// 現在のズーム倍率に合わせて切り出した静止画をダウンロードとして返す
func (s *Server) handleCapture(c *gin.Context) {
	p, err := s.snapshotter.Capture(c.Request.Context())
	if err != nil {
		s.hub.Error("撮影に失敗しました")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:     "capture_failed",
			Message:   "撮影に失敗しました",
			Timestamp: time.Now(),
		})
		return
	}

	s.hub.Toast("撮影しました")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, p.Filename))
	c.Data(http.StatusOK, "image/jpeg", p.Data)
}

// handleStream はMJPEGプレビューストリームの配信
func (s *Server) handleStream(c *gin.Context) {
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	frameCh := s.streams.Subscribe()
	defer s.streams.Unsubscribe(frameCh)

	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			return

		case frame, ok := <-frameCh:
			if !ok {
				return
			}

			if _, err := writer.Write([]byte("--frame\r\n")); err != nil {
				return
			}
			if _, err := fmt.Fprintf(writer, "Content-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
				return
			}
			if _, err := writer.Write(frame); err != nil {
				return
			}
			if _, err := writer.Write([]byte("\r\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleEvents はServer-Sent Eventsによる通知配信
func (s *Server) handleEvents(c *gin.Context) {
	msgCh := s.hub.Subscribe()
	defer s.hub.Unsubscribe(msgCh)

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case msg := <-msgCh:
			c.SSEvent("toast", msg)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

// stateResponse は現在のズーム状態とアクティブデバイスからレスポンスを構築する
func (s *Server) stateResponse() StateResponse {
	state := s.zoomCtl.State()
	response := StateResponse{
		Mode:      string(state.Mode),
		Level:     state.Level,
		Scale:     state.Scale,
		Indicator: state.Indicator,
	}

	if device, ok := s.streams.ActiveDevice(); ok {
		response.DeviceID = device.ID
		response.DeviceLabel = device.Label
	}

	return response
}

// otherDevice はアクティブでないカタログ内のデバイスを返す
func (s *Server) otherDevice() (camera.Device, bool) {
	active, hasActive := s.streams.ActiveDevice()

	for _, d := range s.catalog.Devices() {
		if !hasActive || d.ID != active.ID {
			return d, true
		}
	}

	return camera.Device{}, false
}
