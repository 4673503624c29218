// Package photo 静止画キャプチャ（切り出し・拡大・JPEGエンコード）を担う
//
// # 責務
// - 現在のフレームをズーム倍率に合わせて中央切り出しする
// - 切り出した領域を元の出力サイズへ再サンプリングする
// - JPEG（品質92）へのエンコードとタイムスタンプ付きファイル名の生成
//
// # 仕様
// - 倍率が1.01以下の場合はフレーム全体をそのまま使う
// - 倍率Sの場合、中央の (幅/S, 高さ/S) を切り出して全体サイズへ拡大する。
//   利用者がプレビューで見ていた範囲と、保存される静止画を一致させるため
package photo
