package zoom

import (
	"context"
	"log"
	"strconv"
	"sync"

	"bouen/internal/camera"
)

// Mode はズームの動作モードを表す
type Mode string

const (
	// ModeDigital は映像の拡大によるデジタルズーム
	ModeDigital Mode = "digital"
	// ModeOptical は望遠カメラへの切替による光学ズーム
	ModeOptical Mode = "optical"
)

const (
	// MinLevel / MaxLevel はズーム倍率の範囲
	MinLevel = 1.0
	MaxLevel = 10.0

	// DefaultThreshold は光学ズーム切替を試みる閾値
	DefaultThreshold = 4.5

	// fallbackScale は望遠カメラが無いまま閾値を超えた場合の最低拡大率。
	// ハードウェア無しでも閾値越えが視覚的に拡大されるようにする
	fallbackScale = 5.0

	// opticalIndicator は光学ズーム時の固定インジケーター表示
	opticalIndicator = "5× (光学)"
)

// Streams はズームコントローラーが必要とするストリーム操作
type Streams interface {
	Start(ctx context.Context, c camera.Constraints) (camera.Device, error)
	ActiveDevice() (camera.Device, bool)
}

// TeleFinder は望遠カメラ候補の問い合わせ
type TeleFinder interface {
	PreferredTele() (camera.Device, bool)
}

// Notifier は利用者への短命通知
type Notifier interface {
	Toast(text string)
	Error(text string)
}

// State はズーム状態のスナップショットを表す
type State struct {
	Level     float64 // 要求されたズーム倍率
	Mode      Mode    // 現在のモード
	Scale     float64 // プレビューに適用する視覚拡大率（光学時は1）
	Indicator string  // 表示用インジケーター文字列
}

// Controller はズーム状態機械を実装する。
// 初期状態は DIGITAL, level=1
type Controller struct {
	streams  Streams
	catalog  TeleFinder
	notifier Notifier

	threshold  float64
	teleWidth  int // 光学切替時の目標解像度
	teleHeight int

	mu             sync.Mutex
	level          float64
	mode           Mode
	scale          float64
	warnedFallback bool // 閾値越えごとに一度だけフォールバック通知を出すためのフラグ
}

// New は新しいControllerを作成する
func New(streams Streams, catalog TeleFinder, notifier Notifier, threshold float64, teleWidth, teleHeight int) *Controller {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	return &Controller{
		streams:    streams,
		catalog:    catalog,
		notifier:   notifier,
		threshold:  threshold,
		teleWidth:  teleWidth,
		teleHeight: teleHeight,
		level:      MinLevel,
		mode:       ModeDigital,
		scale:      1,
	}
}

// Apply はズーム倍率の要求を処理し、遷移後の状態を返す。
// スライダー入力もプリセットボタンも必ずこの1本を通る
func (c *Controller) Apply(ctx context.Context, level float64) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	level = clamp(level, MinLevel, MaxLevel)
	c.level = level

	if level < c.threshold {
		c.applyDigital(level)
		return c.snapshot()
	}

	tele, found := c.catalog.PreferredTele()
	if !found {
		// 望遠カメラ無しでの閾値越え: デジタルズームで代用する
		c.mode = ModeDigital
		c.scale = max(fallbackScale, level)
		if !c.warnedFallback {
			c.warnedFallback = true
			c.notifier.Toast("光学ズームは利用できません。デジタルズームで代用します")
		}
		return c.snapshot()
	}

	if active, ok := c.streams.ActiveDevice(); ok && active.ID == tele.ID {
		// 既に望遠カメラがアクティブ。ストリームは切り替えない
		c.mode = ModeOptical
		c.scale = 1
		c.notifier.Toast("すでに光学ズームです")
		return c.snapshot()
	}

	// 望遠カメラへの切替を便宜的に試行する（高めの目標解像度で要求）
	_, err := c.streams.Start(ctx, camera.Constraints{
		DeviceID: tele.ID,
		Width:    c.teleWidth,
		Height:   c.teleHeight,
	})
	if err != nil {
		log.Printf("光学ズームへの切替に失敗しました: %v", err)
		c.mode = ModeDigital
		c.scale = max(1, level)
		c.notifier.Error("光学ズームへの切替に失敗しました")
		return c.snapshot()
	}

	// 光学モードでは視覚拡大を中立に戻す（二重ズームの防止）
	c.mode = ModeOptical
	c.scale = 1
	c.notifier.Toast("光学ズームに切り替えました")
	return c.snapshot()
}

// State は現在の状態のスナップショットを返す
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Scale は現在の視覚拡大率を返す（静止画キャプチャが参照する）
func (c *Controller) Scale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scale
}

// applyDigital は閾値未満のデジタルズーム遷移を適用する（ロック取得済み前提）。
// 光学モードから閾値未満へ戻った場合、表示と拡大率はデジタルに戻るが、
// 望遠カメラからメインカメラへのストリーム切り戻しは行わない（既知の挙動）
func (c *Controller) applyDigital(level float64) {
	c.mode = ModeDigital
	c.scale = max(1, level)
	c.warnedFallback = false
}

// snapshot は現在の状態を構築する（ロック取得済み前提）
func (c *Controller) snapshot() State {
	return State{
		Level:     c.level,
		Mode:      c.mode,
		Scale:     c.scale,
		Indicator: c.indicator(),
	}
}

// indicator は表示用の倍率文字列を生成する（ロック取得済み前提）
func (c *Controller) indicator() string {
	if c.mode == ModeOptical {
		return opticalIndicator
	}
	return FormatLevel(c.scale)
}

// FormatLevel は倍率を表示用文字列にする。
// 整数は小数点なし、それ以外は小数第1位までを「×」付きで表示する
func FormatLevel(level float64) string {
	if level == float64(int(level)) {
		return strconv.Itoa(int(level)) + "×"
	}
	return strconv.FormatFloat(level, 'f', 1, 64) + "×"
}

// clamp は値を[lo,hi]に収める
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
