package camera

import (
	"context"
	"log"
	"strings"
	"sync"
)

// ラベル分類に使うヒント文字列。小文字化したラベルとの部分一致で判定する。
// ベンダー・ロケール依存のベストエフォート判定であり、確実な能力問い合わせではない
var (
	teleHints  = []string{"tele", "zoom", "5x", "telephoto"}
	backHints  = []string{"back", "rear", "environment"}
	frontHints = []string{"front", "user", "face"}
)

// Catalog はカメラデバイス一覧の不変スナップショットと分類結果を保持する
type Catalog struct {
	enum Enumerator

	mu      sync.RWMutex
	devices []Device
	teleID  string // 望遠カメラ候補のデバイスID。未検出なら空
}

// NewCatalog は新しいCatalogを作成する
func NewCatalog(enum Enumerator) *Catalog {
	return &Catalog{enum: enum}
}

// Refresh はデバイス一覧を再取得し、望遠カメラ候補を再分類する。
// 列挙に失敗した場合は空の一覧として扱い、エラーは返さない（ログのみ）。
// デバイスラベルはストリーム開始が一度成功するまで取得できない場合があるため、
// 呼び出し側はストリーム取得が成功するたびにRefreshすること
func (c *Catalog) Refresh(ctx context.Context) {
	devices, err := c.enum.ScanDevices(ctx)
	if err != nil {
		log.Printf("デバイス列挙に失敗しました（空の一覧として続行します）: %v", err)
		devices = nil
	}

	teleID := ""
	for _, d := range devices {
		if labelMatches(d.Label, teleHints) {
			teleID = d.ID
			break
		}
	}

	c.mu.Lock()
	c.devices = devices
	c.teleID = teleID
	c.mu.Unlock()
}

// Devices は現在のデバイス一覧のコピーを返す
func (c *Catalog) Devices() []Device {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Device, len(c.devices))
	copy(result, c.devices)
	return result
}

// PreferredTele は望遠カメラ候補を返す。候補が無い場合は false
func (c *Catalog) PreferredTele() (Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.teleID == "" {
		return Device{}, false
	}
	return c.findByID(c.teleID)
}

// ChooseInitialDevice は初期ストリームに使うデバイスを選択する。
// 背面カメラらしいラベルを優先し、無ければ先頭のデバイスを返す。
// 一覧が空の場合は false（呼び出し側は向きヒントにフォールバックする）
func (c *Catalog) ChooseInitialDevice() (Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, d := range c.devices {
		if labelMatches(d.Label, backHints) {
			return d, true
		}
	}

	if len(c.devices) > 0 {
		return c.devices[0], true
	}

	return Device{}, false
}

// FindByFacing は指定された向きに合うラベルを持つ最初のデバイスを返す
func (c *Catalog) FindByFacing(facing Facing) (Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hints := backHints
	if facing == FacingUser {
		hints = frontHints
	}

	for _, d := range c.devices {
		if labelMatches(d.Label, hints) {
			return d, true
		}
	}

	return Device{}, false
}

// FindByID は指定されたIDのデバイスを返す
func (c *Catalog) FindByID(id string) (Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findByID(id)
}

// findByID はロック取得済み前提の内部検索
func (c *Catalog) findByID(id string) (Device, bool) {
	for _, d := range c.devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// labelMatches はラベルがヒント文字列のいずれかを含むか判定する（大文字小文字を無視）
func labelMatches(label string, hints []string) bool {
	if label == "" {
		return false
	}

	lower := strings.ToLower(label)
	for _, hint := range hints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
