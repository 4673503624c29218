// Package zoom ズーム状態（デジタル／光学）の状態遷移を担う
//
// # 責務
// - ズーム倍率 [1,10] の管理と表示用インジケーターの生成
// - 閾値（4.5）を境にしたデジタルズームと光学ズーム（望遠カメラ切替）の判定
// - 望遠カメラへの便宜的な切替試行と、失敗時のデジタルズームフォールバック
//
// # 仕様
// - カメラハードウェアの取得は信頼できないため、光学切替は保証ではなく
//   ベストエフォート。全ての試行にデジタルズームのフォールバックがあり、
//   実際にどちらのモードになったかは通知とインジケーターで必ず利用者に伝える
// - スライダーもプリセットボタンも同じ遷移ロジック（Apply）を通る
package zoom
