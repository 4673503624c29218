// Package camera カメラデバイスの列挙とストリームの排他管理を担う
//
// # 責務
// - V4L2デバイスの検出とラベル（カメラ名）の取得
// - ラベルヒューリスティクスによる望遠カメラ候補・背面カメラの分類
// - アクティブストリームの排他的ライフサイクル管理（常に0本または1本）
// - ffmpeg経由でのMJPEGフレーム取得と静止画グラブ
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 接続中のカメラ一覧を取得したい
// - カメラを切り替えてプレビューストリームを開始したい
// - 現在のフレームを静止画として取得したい
//
// # 仕様
// - Catalog: デバイス一覧のスナップショット管理と分類
// - StreamController: ストリームの開始・停止・購読（単一飛行ガード付き）
// - FFmpegGrabber: ffmpeg経由でのフレーム取得
// - ラベル分類はあくまでヒューリスティクスであり、確実な能力問い合わせではない
//   （ロケールやベンダーに依存する文字列に基づくベストエフォート判定）
//
// # 前提要件
//   - v4l-utils: カメラ名の取得に使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - ffmpeg: フレーム取得とストリーミングに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
