package camera

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// StreamController はアクティブストリームの排他的ライフサイクルを管理する。
// 不変条件: アクティブストリームは常に0本または1本。新しいストリームを
// 取得する前に、必ず前のストリームを完全に解放する（カメラロックの多重保持を防ぐ）
type StreamController struct {
	catalog    *Catalog
	newGrabber GrabberFactory

	// 制約が解決できない場合のフォールバック設定
	defaultPath   string
	defaultWidth  int
	defaultHeight int
	defaultFPS    int

	mu       sync.Mutex
	inflight bool
	active   *activeStream
	wg       sync.WaitGroup

	subMu     sync.Mutex
	subs      map[chan []byte]struct{}
	lastFrame []byte
}

// activeStream は現在ライブなストリーム1本を表す
type activeStream struct {
	grabber Grabber
	device  Device
}

// NewStreamController は新しいStreamControllerを作成する
func NewStreamController(catalog *Catalog, factory GrabberFactory, defaultPath string, width, height, fps int) *StreamController {
	return &StreamController{
		catalog:       catalog,
		newGrabber:    factory,
		defaultPath:   defaultPath,
		defaultWidth:  width,
		defaultHeight: height,
		defaultFPS:    fps,
		subs:          make(map[chan []byte]struct{}),
	}
}

// Start は制約に合うデバイスでストリームを開始する。
// 既存のストリームは新規取得の前に必ず停止・解放される。
// 取得が進行中の場合はキューせず ErrAcquisitionInFlight で拒否する。
// 成功時は解決されたデバイスを返し、カタログを再取得する
// （ラベルはストリーム開始成功後に初めて取得できる場合があるため）
func (s *StreamController) Start(ctx context.Context, c Constraints) (Device, error) {
	s.mu.Lock()
	if s.inflight {
		s.mu.Unlock()
		return Device{}, ErrAcquisitionInFlight
	}
	s.inflight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight = false
		s.mu.Unlock()
	}()

	device, err := s.resolve(c)
	if err != nil {
		return Device{}, err
	}

	// 前のストリームを完全に解放してから次を取得する
	s.stopActive()

	width, height, fps := s.defaultWidth, s.defaultHeight, s.defaultFPS
	if c.Width > 0 {
		width = c.Width
	}
	if c.Height > 0 {
		height = c.Height
	}
	if c.FPS > 0 {
		fps = c.FPS
	}

	grabber := s.newGrabber(device.Path, width, height, fps)
	if err := grabber.Start(ctx); err != nil {
		// 失敗時は半端な状態を残さない。前のストリームは停止済みのまま
		return Device{}, fmt.Errorf("ストリームの取得に失敗 (%s): %w", device.Path, err)
	}

	s.mu.Lock()
	s.active = &activeStream{grabber: grabber, device: device}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.pump(grabber.Frames())

	log.Printf("ストリームを開始しました: %s (%dx%d@%dfps)", device.Path, width, height, fps)

	// ストリーム取得成功＝デバイスラベルが読めるようになったタイミング
	s.catalog.Refresh(ctx)

	return device, nil
}

// Stop はアクティブストリームを停止し、リソースを解放する。
// アクティブストリームが無くても安全に呼べる
func (s *StreamController) Stop() {
	s.mu.Lock()
	if s.inflight {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.stopActive()
}

// ActiveDevice は現在ストリーム中のデバイスを返す
func (s *StreamController) ActiveDevice() (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return Device{}, false
	}
	return s.active.device, true
}

// Subscribe はフレーム配信の購読チャンネルを登録する
func (s *StreamController) Subscribe() chan []byte {
	ch := make(chan []byte, 4)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	return ch
}

// Unsubscribe は購読チャンネルを解除する
func (s *StreamController) Unsubscribe(ch chan []byte) {
	s.subMu.Lock()
	delete(s.subs, ch)
	s.subMu.Unlock()
}

// CurrentFrame は最新のJPEGフレームを返す。
// まだフレームが届いていない場合は到着を少し待つ
func (s *StreamController) CurrentFrame(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	if active == nil {
		return nil, ErrNoStream
	}

	s.subMu.Lock()
	if s.lastFrame != nil {
		frame := s.lastFrame
		s.subMu.Unlock()
		return frame, nil
	}
	s.subMu.Unlock()

	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	select {
	case frame, ok := <-ch:
		if !ok {
			return nil, ErrNoFrame
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(3 * time.Second):
		return nil, ErrNoFrame
	}
}

// resolve は制約からデバイスを決定する
func (s *StreamController) resolve(c Constraints) (Device, error) {
	// デバイスIDの完全一致指定が最優先
	if c.DeviceID != "" {
		device, found := s.catalog.FindByID(c.DeviceID)
		if !found {
			return Device{}, fmt.Errorf("%w: %s", ErrNoDevice, c.DeviceID)
		}
		return device, nil
	}

	// 向きヒントによるラベル検索
	if c.Facing != "" {
		if device, found := s.catalog.FindByFacing(c.Facing); found {
			return device, nil
		}
		// 前面指定でラベルが見つからない場合はフォールバックしない
		if c.Facing == FacingUser {
			return Device{}, fmt.Errorf("%w: facing=%s", ErrNoDevice, c.Facing)
		}
	}

	if device, found := s.catalog.ChooseInitialDevice(); found {
		return device, nil
	}

	// カタログが空の場合は設定済みのデフォルトデバイスに頼る
	// （向きヒントだけで取得を試みる状況に相当する）
	return Device{
		ID:   fmt.Sprintf("video%d", extractDeviceNumber(s.defaultPath)),
		Path: s.defaultPath,
		Kind: KindVideoInput,
	}, nil
}

// stopActive はアクティブストリームを解放する（単一飛行ガード内または外部停止から呼ぶ）
func (s *StreamController) stopActive() {
	s.mu.Lock()
	active := s.active
	s.active = nil
	s.mu.Unlock()

	if active == nil {
		return
	}

	active.grabber.Stop()
	s.wg.Wait()

	s.subMu.Lock()
	s.lastFrame = nil
	s.subMu.Unlock()

	log.Printf("ストリームを停止しました: %s", active.device.Path)
}

// pump はグラバーのフレームを購読者へ配信する。
// チャンネルのクローズ（グラバー停止）で終了する
func (s *StreamController) pump(frames <-chan []byte) {
	defer s.wg.Done()

	for frame := range frames {
		s.subMu.Lock()
		s.lastFrame = frame
		for ch := range s.subs {
			select {
			case ch <- frame:
			default:
				// 受信が遅い購読者はフレームをスキップする
			}
		}
		s.subMu.Unlock()
	}
}
