// Package migrate patches the database schema on boot. Both migrations are
// idempotent: running them against an already-migrated database is a no-op.
package migrate

import (
	"fmt"
	"io"
	"log"
	"os"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wlhd7/dz-weekend-overtime/internal/model"
)

// Run applies both migrations. Dedup runs first so the unique staff index
// created by Standardize never lands on a table that still holds duplicates.
// Failures are returned for logging but are not fatal to the caller: the
// server still starts against whatever schema is present.
func Run(db *gorm.DB, dbPath string) error {
	if err := EnforceUniqueDays(db, dbPath); err != nil {
		log.Printf("[migrate] sat/sun dedup failed: %v", err)
		return err
	}
	if err := Standardize(db); err != nil {
		log.Printf("[migrate] standardize failed: %v", err)
		return err
	}
	return nil
}

// Standardize brings the schema to the normalized department_id /
// sub_department_id form: creates missing tables and columns, seeds the
// reference data, copies values out of the legacy manu_sub_department_id
// column, and creates the lookup indexes.
func Standardize(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.DepartmentDB{}, &model.SubDepartmentDB{}, &model.StaffDB{}); err != nil {
		return err
	}
	// sat and sun share one row shape but are distinct tables, so they are
	// created with explicit DDL instead of AutoMigrate
	for _, day := range []string{"sat", "sun"} {
		if err := createDayTable(db, day); err != nil {
			return err
		}
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, d := range model.SeedDepartments {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&d).Error; err != nil {
				return err
			}
		}

		manuID := int64(1)
		var manu model.DepartmentDB
		if err := tx.First(&manu, "name = ?", "制造").Error; err == nil {
			manuID = manu.ID
		}
		for _, name := range model.ManuSubDepartmentNames {
			sub := model.SubDepartmentDB{Name: name, DepartmentID: &manuID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&sub).Error; err != nil {
				return err
			}
		}

		// older files carried the sub-department link in a dedicated
		// manufacturing column
		if tx.Migrator().HasColumn(&model.StaffDB{}, "manu_sub_department_id") {
			if err := tx.Exec(
				"UPDATE staffs SET sub_department_id = manu_sub_department_id " +
					"WHERE sub_department_id IS NULL AND manu_sub_department_id IS NOT NULL",
			).Error; err != nil {
				return err
			}
		}

		for _, stmt := range []string{
			"CREATE INDEX IF NOT EXISTS idx_staffs_dept ON staffs(department_id)",
			"CREATE INDEX IF NOT EXISTS idx_staffs_subdept ON staffs(sub_department_id)",
			"CREATE INDEX IF NOT EXISTS idx_sub_dept ON sub_departments(department_id)",
		} {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func createDayTable(db *gorm.DB, table string) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.Dialector.Name() == "postgres" {
		pk = "BIGSERIAL PRIMARY KEY"
	}
	return db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id %s,
		staff_id INTEGER NOT NULL,
		is_evection BOOLEAN DEFAULT FALSE,
		updated_at INTEGER,
		UNIQUE (staff_id),
		FOREIGN KEY (staff_id) REFERENCES staffs(id)
	)`, table, pk)).Error
}

// EnforceUniqueDays rebuilds sat and sun so each staff has at most one row per
// table, keeping the highest is_evection (and latest updated_at) observed. The
// database file is backed up next to itself before the first rebuild.
//
// Duplicate rows only ever existed in historical sqlite files; on other
// backends the standardized schema enforces uniqueness by index, so this is a
// no-op there.
func EnforceUniqueDays(db *gorm.DB, dbPath string) error {
	if db.Dialector.Name() != "sqlite" {
		return nil
	}

	backedUp := false
	for _, day := range []string{"sat", "sun"} {
		if !db.Migrator().HasTable(day) {
			continue
		}
		if !needsRebuild(db, day) {
			continue
		}
		if !backedUp && dbPath != "" {
			if err := backupFile(dbPath); err != nil {
				log.Printf("[migrate] backup of %s failed: %v", dbPath, err)
			}
			backedUp = true
		}
		if err := rebuildDay(db, day); err != nil {
			return fmt.Errorf("rebuild %s: %w", day, err)
		}
		log.Printf("[migrate] rebuilt %s with unique staff rows", day)
	}
	return nil
}

// needsRebuild: a day table needs rebuilding when it predates the updated_at
// column or still holds duplicate staff rows.
func needsRebuild(db *gorm.DB, day string) bool {
	if !tableHasColumn(db, day, "updated_at") {
		return true
	}
	var n int64
	db.Raw(
		"SELECT COUNT(*) FROM (SELECT staff_id FROM " + day + " GROUP BY staff_id HAVING COUNT(*) > 1)",
	).Scan(&n)
	return n > 0
}

func tableHasColumn(db *gorm.DB, table, column string) bool {
	var n int64
	db.Raw("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&n)
	return n > 0
}

func rebuildDay(db *gorm.DB, day string) error {
	sel := "SELECT staff_id, MAX(is_evection), NULL FROM " + day + " GROUP BY staff_id"
	if tableHasColumn(db, day, "updated_at") {
		sel = "SELECT staff_id, MAX(is_evection), MAX(updated_at) FROM " + day + " GROUP BY staff_id"
	}
	newTable := day + "_new"

	return db.Transaction(func(tx *gorm.DB) error {
		for _, stmt := range []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				staff_id INTEGER NOT NULL,
				is_evection BOOLEAN DEFAULT 0,
				updated_at INTEGER,
				UNIQUE (staff_id),
				FOREIGN KEY (staff_id) REFERENCES staffs(id)
			)`, newTable),
			fmt.Sprintf("INSERT OR IGNORE INTO %s (staff_id, is_evection, updated_at) %s", newTable, sel),
			"DROP TABLE IF EXISTS " + day,
			fmt.Sprintf("ALTER TABLE %s RENAME TO %s", newTable, day),
		} {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func backupFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".bak")
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
