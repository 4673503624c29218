package camera

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// jpegSOI / jpegEOI はJPEGフレームの開始・終了マーカー
var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// FFmpegGrabber はffmpeg経由でV4L2デバイスからJPEGフレームを取得する
type FFmpegGrabber struct {
	path   string
	width  int
	height int
	fps    int

	mu      sync.Mutex
	cancel  context.CancelFunc
	frameCh chan []byte
	wg      sync.WaitGroup
	running bool
}

// NewFFmpegGrabber は新しいFFmpegGrabberを作成する
func NewFFmpegGrabber(path string, width, height, fps int) Grabber {
	return &FFmpegGrabber{
		path:   path,
		width:  width,
		height: height,
		fps:    fps,
	}
}

// Start はffmpegを起動してフレームの連続取得を開始する
func (g *FFmpegGrabber) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return fmt.Errorf("デバイス %s のグラバーは既に開始されています", g.path)
	}

	runCtx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(runCtx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", g.width, g.height),
		"-r", strconv.Itoa(g.fps),
		"-i", g.path,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("ffmpegの起動に失敗: %w", err)
	}

	g.cancel = cancel
	g.frameCh = make(chan []byte, 4)
	g.running = true

	g.wg.Add(1)
	go g.readFrames(runCtx, cmd, stdout)

	return nil
}

// Stop は取得を停止し、ffmpegプロセスを終了させる。複数回呼んでも安全
func (g *FFmpegGrabber) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	cancel := g.cancel
	g.mu.Unlock()

	cancel()
	g.wg.Wait()
}

// Frames はJPEGフレームのチャンネルを返す
func (g *FFmpegGrabber) Frames() <-chan []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.frameCh
}

// Grab は1フレームをJPEGとして単発取得する
func (g *FFmpegGrabber) Grab(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", g.width, g.height),
		"-i", g.path,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", "2",
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("フレームの取得に失敗: %w (stderr: %s)", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// readFrames はffmpegの出力を読み取り、JPEGフレーム単位に分割して送信する
func (g *FFmpegGrabber) readFrames(ctx context.Context, cmd *exec.Cmd, stdout io.ReadCloser) {
	defer g.wg.Done()
	defer close(g.frameCh)
	defer func() {
		_ = cmd.Wait() // キャンセル時のエラーは無視
	}()

	buf := make([]byte, 256*1024)
	var pending []byte

	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)

			for {
				frame, rest, ok := splitJPEG(pending)
				if !ok {
					pending = rest
					break
				}
				pending = rest

				select {
				case g.frameCh <- frame:
				case <-ctx.Done():
					return
				default:
					// 受信側が遅い場合はフレームを破棄する
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// splitJPEG はバッファ先頭の完全なJPEGフレームを1枚切り出す。
// 完全なフレームが無い場合は ok=false を返し、restには開始マーカー以降の
// 未処理データだけを残す
func splitJPEG(data []byte) (frame []byte, rest []byte, ok bool) {
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		return nil, nil, false
	}

	end := bytes.Index(data[start+2:], jpegEOI)
	if end == -1 {
		return nil, data[start:], false
	}

	end += start + 2 + len(jpegEOI)
	frame = make([]byte, end-start)
	copy(frame, data[start:end])

	return frame, data[end:], true
}

// MockGrabber はテスト用のモックGrabber実装
type MockGrabber struct {
	mu      sync.Mutex
	frameCh chan []byte
	running bool

	startErr error
	grabData []byte
	grabErr  error

	// テスト検証用
	StartCount int
	StopCount  int
}

// NewMockGrabber は新しいMockGrabberを作成する
func NewMockGrabber() *MockGrabber {
	return &MockGrabber{}
}

// Start はモックの取得を開始する
func (m *MockGrabber) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartCount++
	if m.startErr != nil {
		return m.startErr
	}

	m.frameCh = make(chan []byte, 4)
	m.running = true
	return nil
}

// Stop はモックの取得を停止する
func (m *MockGrabber) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StopCount++
	if !m.running {
		return
	}
	m.running = false
	close(m.frameCh)
}

// Frames はモックのフレームチャンネルを返す
func (m *MockGrabber) Frames() <-chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frameCh
}

// Grab はテスト用に設定されたフレームを返す
func (m *MockGrabber) Grab(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.grabErr != nil {
		return nil, m.grabErr
	}
	return m.grabData, nil
}

// PushFrame はテスト用にフレームを送信する
func (m *MockGrabber) PushFrame(frame []byte) {
	m.mu.Lock()
	ch := m.frameCh
	running := m.running
	m.mu.Unlock()

	if running {
		ch <- frame
	}
}

// IsRunning はモックが動作中か返す
func (m *MockGrabber) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// SetStartError はテスト用にStart失敗を設定する
func (m *MockGrabber) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// SetGrabResult はテスト用にGrabの結果を設定する
func (m *MockGrabber) SetGrabResult(data []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grabData = data
	m.grabErr = err
}
