package migrate_test

import (
	"os"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/wlhd7/dz-weekend-overtime/internal/database"
	"github.com/wlhd7/dz-weekend-overtime/internal/migrate"
	"github.com/wlhd7/dz-weekend-overtime/internal/model"
)

func mustOpen(t *testing.T) (*gorm.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weekend-overtime.sqlite")
	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db, path
}

func count(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	if err := db.Table(table).Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestRun_SeedsReferenceData(t *testing.T) {
	db, path := mustOpen(t)

	if err := migrate.Run(db, path); err != nil {
		t.Fatalf("run: %v", err)
	}

	if n := count(t, db, "departments"); n != 8 {
		t.Fatalf("departments=%d, want 8", n)
	}
	if n := count(t, db, "sub_departments"); n != 7 {
		t.Fatalf("sub_departments=%d, want 7", n)
	}

	var manu model.DepartmentDB
	if err := db.First(&manu, "name = ?", "制造").Error; err != nil {
		t.Fatalf("制造 not seeded: %v", err)
	}
	if manu.ID != 1 {
		t.Fatalf("制造 id=%d, want 1", manu.ID)
	}

	var sub model.SubDepartmentDB
	if err := db.First(&sub, "name = ?", "铣床").Error; err != nil {
		t.Fatalf("铣床 not seeded: %v", err)
	}
	if sub.DepartmentID == nil || *sub.DepartmentID != manu.ID {
		t.Fatalf("铣床 not linked to 制造: %+v", sub.DepartmentID)
	}
}

func TestRun_Idempotent(t *testing.T) {
	db, path := mustOpen(t)

	for i := 0; i < 2; i++ {
		if err := migrate.Run(db, path); err != nil {
			t.Fatalf("run #%d: %v", i+1, err)
		}
	}

	if n := count(t, db, "departments"); n != 8 {
		t.Fatalf("departments duplicated: %d", n)
	}
	if n := count(t, db, "sub_departments"); n != 7 {
		t.Fatalf("sub_departments duplicated: %d", n)
	}
}

func TestEnforceUniqueDays_DedupsLegacyTable(t *testing.T) {
	db, path := mustOpen(t)

	// legacy shape: no UNIQUE(staff_id), no updated_at
	if err := db.Exec(`CREATE TABLE sat (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		staff_id INTEGER NOT NULL,
		is_evection BOOLEAN DEFAULT 0
	)`).Error; err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	for _, row := range [][2]int{{1, 0}, {1, 1}, {1, 0}, {2, 0}} {
		if err := db.Exec("INSERT INTO sat (staff_id, is_evection) VALUES (?, ?)", row[0], row[1]).Error; err != nil {
			t.Fatalf("insert legacy row: %v", err)
		}
	}

	if err := migrate.Run(db, path); err != nil {
		t.Fatalf("run: %v", err)
	}

	// staff 1 deduplicated keeping the max evection flag
	var rows []model.DayAssignmentDB
	if err := db.Table("sat").Where("staff_id = ?", 1).Find(&rows).Error; err != nil {
		t.Fatalf("query sat: %v", err)
	}
	if len(rows) != 1 || !rows[0].IsEvection {
		t.Fatalf("staff 1 rows after dedup: %+v", rows)
	}
	if err := db.Table("sat").Where("staff_id = ?", 2).Find(&rows).Error; err != nil {
		t.Fatalf("query sat: %v", err)
	}
	if len(rows) != 1 || rows[0].IsEvection {
		t.Fatalf("staff 2 rows after dedup: %+v", rows)
	}

	// uniqueness is now enforced by the table itself
	if err := db.Exec("INSERT INTO sat (staff_id, is_evection) VALUES (1, 0)").Error; err == nil {
		t.Fatalf("duplicate staff row accepted after dedup")
	}

	// the file was backed up before the rebuild
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("backup missing: %v", err)
	}

	// second run leaves the data alone
	if err := migrate.Run(db, path); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if n := count(t, db, "sat"); n != 2 {
		t.Fatalf("sat rows after rerun: %d", n)
	}
}
