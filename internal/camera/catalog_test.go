package camera

import (
	"context"
	"errors"
	"testing"
)

func TestCatalog_PreferredTele(t *testing.T) {
	testCases := []struct {
		name       string
		devices    []Device
		wantID     string
		wantExists bool
	}{
		{
			name: "ラベルにteleを含むデバイスが候補になる",
			devices: []Device{
				{ID: "video0", Path: "/dev/video0", Label: "Main Camera"},
				{ID: "video2", Path: "/dev/video2", Label: "Telephoto Camera 5x"},
			},
			wantID:     "video2",
			wantExists: true,
		},
		{
			name: "大文字小文字を無視して判定する",
			devices: []Device{
				{ID: "video0", Path: "/dev/video0", Label: "ZOOM Lens Module"},
			},
			wantID:     "video0",
			wantExists: true,
		},
		{
			name: "カタログ順で最初の一致が候補になる",
			devices: []Device{
				{ID: "video0", Path: "/dev/video0", Label: "zoom A"},
				{ID: "video2", Path: "/dev/video2", Label: "tele B"},
			},
			wantID:     "video0",
			wantExists: true,
		},
		{
			name: "一致が無ければ候補は未設定",
			devices: []Device{
				{ID: "video0", Path: "/dev/video0", Label: "Front Camera"},
			},
			wantExists: false,
		},
		{
			name:       "空のカタログでは候補は未設定",
			devices:    nil,
			wantExists: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			catalog := NewCatalog(NewMockEnumerator(tc.devices))
			catalog.Refresh(context.Background())

			tele, found := catalog.PreferredTele()
			if found != tc.wantExists {
				t.Fatalf("PreferredTele found = %v, want %v", found, tc.wantExists)
			}
			if found && tele.ID != tc.wantID {
				t.Errorf("PreferredTele ID = %s, want %s", tele.ID, tc.wantID)
			}
		})
	}
}

func TestCatalog_ChooseInitialDevice(t *testing.T) {
	testCases := []struct {
		name       string
		devices    []Device
		wantID     string
		wantExists bool
	}{
		{
			name: "背面らしいラベルを優先する",
			devices: []Device{
				{ID: "video0", Path: "/dev/video0", Label: "Front Camera"},
				{ID: "video2", Path: "/dev/video2", Label: "Back Camera"},
			},
			wantID:     "video2",
			wantExists: true,
		},
		{
			name: "rearも背面として扱う",
			devices: []Device{
				{ID: "video0", Path: "/dev/video0", Label: "Rear Module"},
			},
			wantID:     "video0",
			wantExists: true,
		},
		{
			name: "背面が無ければ先頭のデバイスを返す",
			devices: []Device{
				{ID: "video0", Path: "/dev/video0", Label: "Camera A"},
				{ID: "video2", Path: "/dev/video2", Label: "Camera B"},
			},
			wantID:     "video0",
			wantExists: true,
		},
		{
			name:       "空のカタログでは選択なし",
			devices:    nil,
			wantExists: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			catalog := NewCatalog(NewMockEnumerator(tc.devices))
			catalog.Refresh(context.Background())

			device, found := catalog.ChooseInitialDevice()
			if found != tc.wantExists {
				t.Fatalf("ChooseInitialDevice found = %v, want %v", found, tc.wantExists)
			}
			if found && device.ID != tc.wantID {
				t.Errorf("ChooseInitialDevice ID = %s, want %s", device.ID, tc.wantID)
			}
		})
	}
}

func TestCatalog_RefreshFailure(t *testing.T) {
	enum := NewMockEnumerator([]Device{
		{ID: "video0", Path: "/dev/video0", Label: "tele"},
	})
	catalog := NewCatalog(enum)
	catalog.Refresh(context.Background())

	if _, found := catalog.PreferredTele(); !found {
		t.Fatal("望遠候補が検出されるはずです")
	}

	// 列挙失敗は空の一覧として扱われ、エラーにはならない
	enum.SetScanError(errors.New("列挙失敗"))
	catalog.Refresh(context.Background())

	if devices := catalog.Devices(); len(devices) != 0 {
		t.Errorf("失敗後のデバイス数 = %d, want 0", len(devices))
	}
	if _, found := catalog.PreferredTele(); found {
		t.Error("失敗後は望遠候補も未設定になるはずです")
	}
}

func TestCatalog_LabelsAfterFirstScan(t *testing.T) {
	// ラベルはストリーム開始成功（権限付与相当）後の再取得で初めて揃う
	enum := NewMockEnumerator([]Device{
		{ID: "video0", Path: "/dev/video0", Label: "Telephoto Camera"},
	})
	enum.SetLabelsAfterFirstScan()

	catalog := NewCatalog(enum)
	catalog.Refresh(context.Background())

	if _, found := catalog.PreferredTele(); found {
		t.Fatal("ラベル取得前に望遠候補が検出されてはいけません")
	}

	catalog.Refresh(context.Background())

	if _, found := catalog.PreferredTele(); !found {
		t.Fatal("再取得後は望遠候補が検出されるはずです")
	}
}

func TestCatalog_FindByFacing(t *testing.T) {
	catalog := NewCatalog(NewMockEnumerator([]Device{
		{ID: "video0", Path: "/dev/video0", Label: "Front Camera"},
		{ID: "video2", Path: "/dev/video2", Label: "Back Camera"},
	}))
	catalog.Refresh(context.Background())

	front, found := catalog.FindByFacing(FacingUser)
	if !found || front.ID != "video0" {
		t.Errorf("FindByFacing(user) = %v, %v", front.ID, found)
	}

	back, found := catalog.FindByFacing(FacingEnvironment)
	if !found || back.ID != "video2" {
		t.Errorf("FindByFacing(environment) = %v, %v", back.ID, found)
	}
}
