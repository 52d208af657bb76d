package seed

import (
	"testing"

	"github.com/smallbiznis/coursepass/internal/storetest"
	"go.uber.org/zap"
)

func TestEnsureDemoDataIsIdempotent(t *testing.T) {
	db := storetest.Open(t)
	node := storetest.Node(t)

	for i := 0; i < 2; i++ {
		if err := EnsureDemoData(db, node, zap.NewNop()); err != nil {
			t.Fatalf("seed run %d: %v", i, err)
		}
	}

	if got := storetest.Count(t, db, "users"); got != 1 {
		t.Fatalf("expected 1 user, got %d", got)
	}
	if got := storetest.Count(t, db, "courses"); got != int64(len(demoCourses)) {
		t.Fatalf("expected %d courses, got %d", len(demoCourses), got)
	}

	var hash string
	if err := db.Raw(`SELECT password_hash FROM users WHERE email = ?`, DemoUserEmail).Row().Scan(&hash); err != nil {
		t.Fatalf("read hash: %v", err)
	}
	if hash == "" || hash == demoUserPassword {
		t.Fatalf("expected hashed password")
	}
}
