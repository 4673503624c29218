package server

import "time"

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerInfo はサーバー情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// NotifySettings はUI側の通知表示設定
type NotifySettings struct {
	DismissMillis int `json:"dismiss_millis"`
	FlashMillis   int `json:"flash_millis"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status    string         `json:"status"`
	Server    ServerInfo     `json:"server"`
	Devices   int            `json:"devices"`
	Notify    NotifySettings `json:"notify"`
	Timestamp time.Time      `json:"timestamp"`
}

// DeviceInfo はカメラデバイス1台の情報
type DeviceInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// DevicesResponse はデバイス一覧のレスポンス
type DevicesResponse struct {
	Devices      []DeviceInfo `json:"devices"`
	TeleDeviceID string       `json:"tele_device_id,omitempty"`
}

// StateResponse は現在のズーム・ストリーム状態のレスポンス
type StateResponse struct {
	Mode        string  `json:"mode"`
	Level       float64 `json:"level"`
	Scale       float64 `json:"scale"`
	Indicator   string  `json:"indicator"`
	DeviceID    string  `json:"device_id,omitempty"`
	DeviceLabel string  `json:"device_label,omitempty"`
}

// ZoomRequest はズーム倍率の変更リクエスト
type ZoomRequest struct {
	Level float64 `json:"level" binding:"required"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
