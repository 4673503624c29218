package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// V4L2Enumerator はLinux環境でのカメラデバイス列挙を実装する
type V4L2Enumerator struct{}

// NewV4L2Enumerator は新しいV4L2Enumeratorを作成する
func NewV4L2Enumerator() Enumerator {
	return &V4L2Enumerator{}
}

// ScanDevices はシステム内の利用可能な映像入力デバイスをスキャンする
func (e *V4L2Enumerator) ScanDevices(ctx context.Context) ([]Device, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	// デバイス番号でソート
	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	var devices []Device
	for _, path := range matches {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if !e.IsDeviceAvailable(ctx, path) {
			continue
		}

		// 同一カメラの複数チャンネルを除外し、カラー対応のメインチャンネルだけを残す
		if !e.isMainChannel(ctx, path) {
			continue
		}

		devices = append(devices, Device{
			ID:    fmt.Sprintf("video%d", extractDeviceNumber(path)),
			Path:  path,
			Label: e.deviceLabel(path),
			Kind:  KindVideoInput,
		})
	}

	return devices, nil
}

// IsDeviceAvailable は指定されたデバイスパスが利用可能かチェックする
func (e *V4L2Enumerator) IsDeviceAvailable(_ context.Context, path string) bool {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false
	}

	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	defer func() {
		_ = file.Close()
	}()

	matched, _ := regexp.MatchString(`^/dev/video\d+$`, path)
	return matched
}

// deviceLabel はv4l2-ctlを使ってデバイスの表示名を取得する。
// v4l2-ctlが無い・失敗した場合は空文字列を返す（ラベル未取得として扱う）
func (e *V4L2Enumerator) deviceLabel(path string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", path, "--info")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}

	// "Card type" の行からカメラ名を抽出
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Card type") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}

	return ""
}

// isMainChannel はデバイスがカラー対応のメインチャンネルかどうかを判定する。
// 同じカメラ名を持つ小さい番号のチャンネルがカラー対応なら、そちらを優先する
func (e *V4L2Enumerator) isMainChannel(ctx context.Context, path string) bool {
	formats := e.listFormats(ctx, path)
	if formats == "" {
		return false
	}

	// グレースケールのみのデバイスは除外
	hasColor := strings.Contains(formats, "YUYV") || strings.Contains(formats, "MJPG")
	if !hasColor {
		return false
	}

	num := extractDeviceNumber(path)
	for i := 0; i < num; i++ {
		sibling := fmt.Sprintf("/dev/video%d", i)
		if !e.IsDeviceAvailable(ctx, sibling) {
			continue
		}
		siblingFormats := e.listFormats(ctx, sibling)
		if !strings.Contains(siblingFormats, "YUYV") && !strings.Contains(siblingFormats, "MJPG") {
			continue
		}
		if e.deviceLabel(sibling) != "" && e.deviceLabel(sibling) == e.deviceLabel(path) {
			return false
		}
	}

	return true
}

// listFormats はv4l2-ctlでサポートフォーマット一覧を取得する
func (e *V4L2Enumerator) listFormats(ctx context.Context, path string) string {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", path, "--list-formats-ext")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(output)
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(path string) int {
	re := regexp.MustCompile(`video(\d+)`)
	matches := re.FindStringSubmatch(path)
	if len(matches) < 2 {
		return 0
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}

	return num
}

// MockEnumerator はテスト用のモックEnumerator実装
type MockEnumerator struct {
	devices    []Device
	scanErr    error
	labelsOnce bool // trueの場合、初回スキャンではラベルを空にする
	scanned    bool
}

// NewMockEnumerator は新しいMockEnumeratorを作成する
func NewMockEnumerator(devices []Device) *MockEnumerator {
	return &MockEnumerator{devices: devices}
}

// ScanDevices はモックデバイス一覧を返す
func (m *MockEnumerator) ScanDevices(_ context.Context) ([]Device, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}

	result := make([]Device, len(m.devices))
	copy(result, m.devices)

	// 権限付与前のラベル未取得状態を再現する
	if m.labelsOnce && !m.scanned {
		for i := range result {
			result[i].Label = ""
		}
	}
	m.scanned = true

	return result, nil
}

// IsDeviceAvailable はモックデバイスが利用可能かチェックする
func (m *MockEnumerator) IsDeviceAvailable(_ context.Context, path string) bool {
	for _, d := range m.devices {
		if d.Path == path {
			return true
		}
	}
	return false
}

// SetScanError はテスト用にスキャン失敗を設定する
func (m *MockEnumerator) SetScanError(err error) {
	m.scanErr = err
}

// SetLabelsAfterFirstScan はテスト用に「初回スキャンはラベル無し」を設定する
func (m *MockEnumerator) SetLabelsAfterFirstScan() {
	m.labelsOnce = true
}

// SetDevices はテスト用にデバイス一覧を差し替える
func (m *MockEnumerator) SetDevices(devices []Device) {
	m.devices = devices
}
