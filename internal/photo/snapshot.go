package photo

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
)

// DefaultQuality はJPEGエンコードのデフォルト品質
const DefaultQuality = 92

// sameFrameScale はこの値以下の倍率を「切り出し不要」とみなす
const sameFrameScale = 1.01

// FrameSource は現在のフレームの取得元
type FrameSource interface {
	CurrentFrame(ctx context.Context) ([]byte, error)
}

// ScaleSource は現在の視覚拡大率の取得元
type ScaleSource interface {
	Scale() float64
}

// Photo は撮影された静止画1枚を表す
type Photo struct {
	ID       string    // 撮影の一意識別子
	Data     []byte    // JPEGデータ
	Filename string    // ダウンロード用ファイル名
	Width    int       // 出力画像幅
	Height   int       // 出力画像高さ
	Scale    float64   // 撮影時の拡大率
	TakenAt  time.Time // 撮影時刻
}

// Snapshotter は現在のフレームから静止画を生成する
type Snapshotter struct {
	frames  FrameSource
	scale   ScaleSource
	quality int
}

// NewSnapshotter は新しいSnapshotterを作成する
func NewSnapshotter(frames FrameSource, scale ScaleSource, quality int) *Snapshotter {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	return &Snapshotter{
		frames:  frames,
		scale:   scale,
		quality: quality,
	}
}

// Capture は現在のフレームを現在のズーム倍率で撮影する。
// 拡大率Sが1.01を超える場合、中央の (幅/S, 高さ/S) を切り出して
// 元のサイズへ再サンプリングする。プレビューで見えていた範囲と
// 保存される静止画を一致させるため（センサー全体のフレームではない）
func (s *Snapshotter) Capture(ctx context.Context) (*Photo, error) {
	frame, err := s.frames.CurrentFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("フレームの取得に失敗: %w", err)
	}

	src, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("フレームのデコードに失敗: %w", err)
	}

	scale := s.scale.Scale()
	if scale < 1 {
		scale = 1
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	out := image.NewRGBA(image.Rect(0, 0, width, height))

	if scale <= sameFrameScale {
		// 等倍: フレーム全体をそのまま使う
		xdraw.Draw(out, out.Bounds(), src, bounds.Min, xdraw.Src)
	} else {
		// 中央切り出し → 出力サイズへ拡大
		cropW := int(float64(width) / scale)
		cropH := int(float64(height) / scale)
		x0 := bounds.Min.X + (width-cropW)/2
		y0 := bounds.Min.Y + (height-cropH)/2
		cropRect := image.Rect(x0, y0, x0+cropW, y0+cropH)

		xdraw.CatmullRom.Scale(out, out.Bounds(), src, cropRect, xdraw.Src, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗: %w", err)
	}

	takenAt := time.Now()
	return &Photo{
		ID:       uuid.New().String(),
		Data:     buf.Bytes(),
		Filename: fmt.Sprintf("photo_%s.jpg", takenAt.Format("20060102_150405")),
		Width:    width,
		Height:   height,
		Scale:    scale,
		TakenAt:  takenAt,
	}, nil
}
