package camera

import (
	"context"
	"errors"
)

// Kind はデバイスの種別を表す
type Kind string

const (
	// KindVideoInput は映像入力デバイス（カメラ）を表す
	KindVideoInput Kind = "videoinput"
)

// Facing はカメラの向きのヒントを表す
type Facing string

const (
	// FacingUser は自分側（前面）を向くカメラ
	FacingUser Facing = "user"
	// FacingEnvironment は外側（背面）を向くカメラ
	FacingEnvironment Facing = "environment"
)

// Device は列挙されたカメラ1台の不変スナップショットを表す
type Device struct {
	ID    string // デバイスの一意識別子（例: video0）
	Path  string // デバイスパス（例: /dev/video0）
	Label string // 表示名。取得できるまでは空文字列の場合がある
	Kind  Kind   // デバイス種別（映像入力のみ扱う）
}

// Constraints はストリーム取得時の制約を表す
type Constraints struct {
	DeviceID string // 完全一致で指定するデバイスID（空なら未指定）
	Facing   Facing // 向きのヒント（DeviceID未指定時のフォールバック）
	Width    int    // 希望する画像幅
	Height   int    // 希望する画像高さ
	FPS      int    // 希望するフレームレート
}

// Enumerator はカメラデバイスの列挙機能を提供する
type Enumerator interface {
	// ScanDevices はシステム内の利用可能な映像入力デバイスをスキャンする
	ScanDevices(ctx context.Context) ([]Device, error)

	// IsDeviceAvailable は指定されたデバイスパスが利用可能かチェックする
	IsDeviceAvailable(ctx context.Context, path string) bool
}

// Grabber は単一デバイスからのフレーム取得を担う
type Grabber interface {
	// Start はフレームの連続取得を開始する
	Start(ctx context.Context) error

	// Stop は取得を停止し、リソースを解放する。複数回呼んでも安全
	Stop()

	// Frames はJPEGフレームのチャンネルを返す。Stop時にクローズされる
	Frames() <-chan []byte

	// Grab は1フレームをJPEGとして取得する（ストリーム外の単発取得）
	Grab(ctx context.Context) ([]byte, error)
}

// GrabberFactory はデバイスパスと設定からGrabberを作成する
type GrabberFactory func(path string, width, height, fps int) Grabber

var (
	// ErrNoDevice は制約を満たすデバイスが存在しないことを表す
	ErrNoDevice = errors.New("条件に合うカメラデバイスがありません")

	// ErrAcquisitionInFlight はストリーム取得の多重実行を表す。
	// 取得中の再要求はキューせず拒否する
	ErrAcquisitionInFlight = errors.New("ストリーム取得が進行中です")

	// ErrNoStream はアクティブなストリームが無いことを表す
	ErrNoStream = errors.New("アクティブなストリームがありません")

	// ErrNoFrame はフレームがまだ到着していないことを表す
	ErrNoFrame = errors.New("フレームがまだ取得できていません")
)
