// Package model holds the database row types and the seeded reference data.
package model

// DepartmentDB — fixed reference row, seeded by the schema migration.
type DepartmentDB struct {
	ID   int64  `gorm:"primaryKey;column:id"`
	Name string `gorm:"column:name;uniqueIndex"`
}

func (DepartmentDB) TableName() string { return "departments" }

// SubDepartmentDB — second-level grouping; the manufacturing set is seeded,
// others are created ad hoc.
type SubDepartmentDB struct {
	ID           int64  `gorm:"primaryKey;column:id"`
	Name         string `gorm:"column:name;uniqueIndex"`
	DepartmentID *int64 `gorm:"column:department_id"`
}

func (SubDepartmentDB) TableName() string { return "sub_departments" }

// StaffDB — one tracked staff member. Name is unique across departments;
// re-adding an existing name moves the row instead of duplicating it.
type StaffDB struct {
	ID              int64  `gorm:"primaryKey;column:id"`
	Name            string `gorm:"column:name;uniqueIndex"`
	DepartmentID    int64  `gorm:"column:department_id;index:idx_staffs_dept"`
	SubDepartmentID *int64 `gorm:"column:sub_department_id;index:idx_staffs_subdept"`
}

func (StaffDB) TableName() string { return "staffs" }

// DayAssignmentDB maps onto both the `sat` and `sun` tables via db.Table(...).
// A row means the staff member is scheduled for overtime that day; no row means
// "not scheduled". UpdatedDay is the day of month the row was last written,
// which is what the daily summary filters on.
type DayAssignmentDB struct {
	ID         int64 `gorm:"primaryKey;column:id"`
	StaffID    int64 `gorm:"column:staff_id"` // UNIQUE per table, enforced by DDL
	IsEvection bool  `gorm:"column:is_evection"`
	UpdatedDay int   `gorm:"column:updated_at"`
}

// SeedDepartments — the eight departments with stable ids. The chooser page
// renders this list directly so it never drifts from the seeded rows.
var SeedDepartments = []DepartmentDB{
	{ID: 1, Name: "制造"},
	{ID: 2, Name: "品质"},
	{ID: 3, Name: "工艺"},
	{ID: 4, Name: "装配"},
	{ID: 5, Name: "电气"},
	{ID: 6, Name: "技术"},
	{ID: 7, Name: "机加"},
	{ID: 8, Name: "业务"},
}

// ManuSubDepartmentNames — sub-departments seeded under 制造.
var ManuSubDepartmentNames = []string{"铣床", "车床", "CNC", "磨床", "线割", "钳工", "生管"}
