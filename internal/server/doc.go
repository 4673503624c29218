// Package server は、HTTPサーバーとカメラ操作APIを管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// 埋め込みWebページの配信、プレビューストリームと通知の配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - カメラ操作API（デバイス一覧・ズーム・撮影・カメラ切替）の提供
//   - MJPEGプレビューストリームの配信
//   - Server-Sent Eventsによるトースト通知の配信
//   - 埋め込み単一ページUI（スライダー・プリセット・シャッター・切替）の配信
//
// 仕様:
//   - ルーティングとJSONはgin-gonic/ginを使用
//   - UIからの操作は1イベント1リクエストで逐次処理される
//   - グレースフルシャットダウンに対応
package server
