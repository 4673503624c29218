package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// orderedGrabber は開始・停止の順序を記録するテスト用ラッパー
type orderedGrabber struct {
	*MockGrabber
	path   string
	record func(string)
}

func (g *orderedGrabber) Start(ctx context.Context) error {
	if err := g.MockGrabber.Start(ctx); err != nil {
		g.record("startfail:" + g.path)
		return err
	}
	g.record("start:" + g.path)
	return nil
}

func (g *orderedGrabber) Stop() {
	if g.IsRunning() {
		g.record("stop:" + g.path)
	}
	g.MockGrabber.Stop()
}

// newOrderedFactory はイベント記録付きのGrabberFactoryを作成する
func newOrderedFactory(failPaths map[string]error) (GrabberFactory, func() []string) {
	var mu sync.Mutex
	var events []string

	record := func(ev string) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}

	factory := func(path string, _, _, _ int) Grabber {
		mock := NewMockGrabber()
		if err, ok := failPaths[path]; ok {
			mock.SetStartError(err)
		}
		return &orderedGrabber{MockGrabber: mock, path: path, record: record}
	}

	snapshot := func() []string {
		mu.Lock()
		defer mu.Unlock()
		result := make([]string, len(events))
		copy(result, events)
		return result
	}

	return factory, snapshot
}

func testCatalog(devices []Device) *Catalog {
	catalog := NewCatalog(NewMockEnumerator(devices))
	catalog.Refresh(context.Background())
	return catalog
}

func TestStreamController_ExclusiveStream(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog([]Device{
		{ID: "video0", Path: "/dev/video0", Label: "Back Camera"},
		{ID: "video2", Path: "/dev/video2", Label: "Telephoto Camera"},
	})

	factory, events := newOrderedFactory(nil)
	streams := NewStreamController(catalog, factory, "/dev/video0", 1280, 720, 15)

	if _, err := streams.Start(ctx, Constraints{DeviceID: "video0"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := streams.Start(ctx, Constraints{DeviceID: "video2"}); err != nil {
		t.Fatalf("2回目のStart failed: %v", err)
	}

	// 前のストリームの解放が、次の取得より必ず先に行われる
	want := []string{"start:/dev/video0", "stop:/dev/video0", "start:/dev/video2"}
	got := events()
	if len(got) != len(want) {
		t.Fatalf("イベント数 = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("イベント[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	active, ok := streams.ActiveDevice()
	if !ok || active.ID != "video2" {
		t.Errorf("ActiveDevice = %v, %v", active.ID, ok)
	}

	streams.Stop()
}

func TestStreamController_StopIdempotent(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog([]Device{
		{ID: "video0", Path: "/dev/video0", Label: "Back Camera"},
	})

	factory, _ := newOrderedFactory(nil)
	streams := NewStreamController(catalog, factory, "/dev/video0", 1280, 720, 15)

	// ストリームが無い状態で呼んでも安全
	streams.Stop()

	if _, err := streams.Start(ctx, Constraints{DeviceID: "video0"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	streams.Stop()
	streams.Stop()

	if _, ok := streams.ActiveDevice(); ok {
		t.Error("停止後にアクティブデバイスが残っています")
	}
}

func TestStreamController_StartFailureLeavesStopped(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog([]Device{
		{ID: "video0", Path: "/dev/video0", Label: "Back Camera"},
		{ID: "video2", Path: "/dev/video2", Label: "Broken Camera"},
	})

	factory, events := newOrderedFactory(map[string]error{
		"/dev/video2": errors.New("デバイスがビジー"),
	})
	streams := NewStreamController(catalog, factory, "/dev/video0", 1280, 720, 15)

	if _, err := streams.Start(ctx, Constraints{DeviceID: "video0"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := streams.Start(ctx, Constraints{DeviceID: "video2"}); err == nil {
		t.Fatal("失敗するはずのStartが成功しました")
	}

	// 失敗時は半端な状態を残さない。前のストリームは停止済みのまま
	if _, ok := streams.ActiveDevice(); ok {
		t.Error("取得失敗後にアクティブデバイスが残っています")
	}

	got := events()
	want := []string{"start:/dev/video0", "stop:/dev/video0", "startfail:/dev/video2"}
	if len(got) != len(want) {
		t.Fatalf("イベント = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("イベント[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestStreamController_UnknownDevice(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog([]Device{
		{ID: "video0", Path: "/dev/video0", Label: "Back Camera"},
	})

	factory, _ := newOrderedFactory(nil)
	streams := NewStreamController(catalog, factory, "/dev/video0", 1280, 720, 15)

	_, err := streams.Start(ctx, Constraints{DeviceID: "video9"})
	if !errors.Is(err, ErrNoDevice) {
		t.Errorf("err = %v, want ErrNoDevice", err)
	}
}

func TestStreamController_EmptyCatalogFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog(nil)

	factory, events := newOrderedFactory(nil)
	streams := NewStreamController(catalog, factory, "/dev/video0", 1280, 720, 15)

	// カタログが空でも向きヒントだけで開始できる（デフォルトデバイス）
	device, err := streams.Start(ctx, Constraints{Facing: FacingEnvironment})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if device.Path != "/dev/video0" {
		t.Errorf("解決されたパス = %s, want /dev/video0", device.Path)
	}

	got := events()
	if len(got) != 1 || got[0] != "start:/dev/video0" {
		t.Errorf("イベント = %v", got)
	}

	streams.Stop()
}

func TestStreamController_RefreshAfterStart(t *testing.T) {
	ctx := context.Background()

	// ラベルはストリーム開始成功後の再取得で初めて揃う
	enum := NewMockEnumerator([]Device{
		{ID: "video0", Path: "/dev/video0", Label: "Back Camera"},
		{ID: "video2", Path: "/dev/video2", Label: "Telephoto Camera"},
	})
	enum.SetLabelsAfterFirstScan()

	catalog := NewCatalog(enum)
	catalog.Refresh(ctx)

	if _, found := catalog.PreferredTele(); found {
		t.Fatal("開始前に望遠候補が検出されてはいけません")
	}

	factory, _ := newOrderedFactory(nil)
	streams := NewStreamController(catalog, factory, "/dev/video0", 1280, 720, 15)

	if _, err := streams.Start(ctx, Constraints{DeviceID: "video0"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer streams.Stop()

	if _, found := catalog.PreferredTele(); !found {
		t.Fatal("開始成功後の再取得で望遠候補が検出されるはずです")
	}
}

// blockingGrabber はStartが解放されるまでブロックするテスト用Grabber
type blockingGrabber struct {
	*MockGrabber
	started chan struct{}
	release chan struct{}
}

func (g *blockingGrabber) Start(ctx context.Context) error {
	close(g.started)
	<-g.release
	return g.MockGrabber.Start(ctx)
}

func TestStreamController_RejectsConcurrentAcquisition(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog([]Device{
		{ID: "video0", Path: "/dev/video0", Label: "Back Camera"},
	})

	blocking := &blockingGrabber{
		MockGrabber: NewMockGrabber(),
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	factory := func(string, int, int, int) Grabber { return blocking }
	streams := NewStreamController(catalog, factory, "/dev/video0", 1280, 720, 15)

	done := make(chan error, 1)
	go func() {
		_, err := streams.Start(ctx, Constraints{DeviceID: "video0"})
		done <- err
	}()

	// 1本目の取得がブロックしている間の再要求は拒否される
	<-blocking.started
	_, err := streams.Start(ctx, Constraints{DeviceID: "video0"})
	if !errors.Is(err, ErrAcquisitionInFlight) {
		t.Errorf("err = %v, want ErrAcquisitionInFlight", err)
	}

	close(blocking.release)
	if err := <-done; err != nil {
		t.Fatalf("ブロックしていたStartが失敗しました: %v", err)
	}

	streams.Stop()
}

func TestStreamController_CurrentFrame(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog([]Device{
		{ID: "video0", Path: "/dev/video0", Label: "Back Camera"},
	})

	var grabber *MockGrabber
	factory := func(string, int, int, int) Grabber {
		grabber = NewMockGrabber()
		return grabber
	}
	streams := NewStreamController(catalog, factory, "/dev/video0", 1280, 720, 15)

	// ストリームが無ければエラー
	if _, err := streams.CurrentFrame(ctx); !errors.Is(err, ErrNoStream) {
		t.Errorf("err = %v, want ErrNoStream", err)
	}

	if _, err := streams.Start(ctx, Constraints{DeviceID: "video0"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer streams.Stop()

	go func() {
		time.Sleep(50 * time.Millisecond)
		grabber.PushFrame([]byte("frame-1"))
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	frame, err := streams.CurrentFrame(waitCtx)
	if err != nil {
		t.Fatalf("CurrentFrame failed: %v", err)
	}
	if string(frame) != "frame-1" {
		t.Errorf("frame = %q, want frame-1", frame)
	}
}
