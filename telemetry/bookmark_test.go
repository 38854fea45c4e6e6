package telemetry

import "testing"

func hasBookmark(bms []Bookmark, bt BookmarkType) bool {
	for _, bm := range bms {
		if bm.Type == bt {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_DamageSpike(t *testing.T) {
	bd := NewBookmarkDetector(10)

	// Add some history with steady output
	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{
			WindowEndMs:  int64(i * 10000),
			PlayerHPFrac: 1,
			DPS:          10,
			Kills:        1,
			DamageTaken:  5,
		})
	}

	spike := WindowStats{
		WindowEndMs:  50000,
		PlayerHPFrac: 1,
		DPS:          35,
		Kills:        2,
		DamageTaken:  5,
	}
	if !hasBookmark(bd.Check(spike), BookmarkDamageSpike) {
		t.Error("expected damage_spike bookmark")
	}
}

func TestBookmarkDetector_CloseCallOncePerDip(t *testing.T) {
	bd := NewBookmarkDetector(10)

	if !hasBookmark(bd.Check(WindowStats{PlayerHPFrac: 0.1}), BookmarkCloseCall) {
		t.Fatal("expected close_call at 10% HP")
	}
	if hasBookmark(bd.Check(WindowStats{PlayerHPFrac: 0.08}), BookmarkCloseCall) {
		t.Error("close_call should not repeat during the same dip")
	}

	bd.Check(WindowStats{PlayerHPFrac: 0.9})
	if !hasBookmark(bd.Check(WindowStats{PlayerHPFrac: 0.12}), BookmarkCloseCall) {
		t.Error("close_call should re-arm after healing")
	}
}

func TestBookmarkDetector_Comeback(t *testing.T) {
	bd := NewBookmarkDetector(10)

	bd.Check(WindowStats{PlayerHPFrac: 0.5})
	bd.Check(WindowStats{PlayerHPFrac: 0.2})
	if !hasBookmark(bd.Check(WindowStats{PlayerHPFrac: 0.7}), BookmarkComeback) {
		t.Error("expected comeback bookmark")
	}
	if hasBookmark(bd.Check(WindowStats{PlayerHPFrac: 0.8}), BookmarkComeback) {
		t.Error("comeback should not repeat without a new low")
	}
}

func TestBookmarkDetector_ResourceStarve(t *testing.T) {
	bd := NewBookmarkDetector(10)

	if hasBookmark(bd.Check(WindowStats{PlayerHPFrac: 1, Rejections: 2}), BookmarkResourceStarve) {
		t.Error("two rejections should not trigger")
	}
	if !hasBookmark(bd.Check(WindowStats{PlayerHPFrac: 1, Rejections: 4}), BookmarkResourceStarve) {
		t.Error("expected resource_starve bookmark")
	}
}

func TestBookmarkDetector_Flawless(t *testing.T) {
	bd := NewBookmarkDetector(10)

	fired := 0
	for i := 0; i < 8; i++ {
		bms := bd.Check(WindowStats{WindowEndMs: int64(i * 1000), PlayerHPFrac: 1, Kills: 1})
		if hasBookmark(bms, BookmarkFlawless) {
			fired++
			if i != 4 {
				t.Errorf("flawless fired at window %d, want 4", i)
			}
		}
	}
	if fired != 1 {
		t.Errorf("flawless fired %d times, want 1", fired)
	}
}
