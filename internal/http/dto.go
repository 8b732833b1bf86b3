// Package httpapi holds the HTTP handlers, wire contracts and page data.
package httpapi

import "github.com/wlhd7/dz-weekend-overtime/internal/model"

// Tri-state status codes used by the client toggle control.
const (
	StatusAbsent   = "bg-1" // not scheduled
	StatusPresent  = "bg-2" // working on site
	StatusEvection = "bg-3" // on business trip
)

// Day table names accepted by the toggle endpoint.
const (
	DaySat = "sat"
	DaySun = "sun"
)

// ToggleRequest — body of POST /toggle-sat.
type ToggleRequest struct {
	StaffID int64  `json:"staff_id"`
	Status  string `json:"status"`
	Day     string `json:"day"`
}

// ToggleResponse — reply of POST /toggle-sat.
type ToggleResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// StaffRow is one line of the listing; nil evection pointers mean the staff
// member is not scheduled for that day.
type StaffRow struct {
	ID                int64
	Name              string
	SubDepartmentName *string
	SatEvection       *bool
	SunEvection       *bool
}

// SubDepartment returns the group name, or "" when the staff has none.
func (s StaffRow) SubDepartment() string {
	if s.SubDepartmentName != nil {
		return *s.SubDepartmentName
	}
	return ""
}

// SatClass returns the tri-state css class for the Saturday cell.
func (s StaffRow) SatClass() string { return statusClass(s.SatEvection) }

// SunClass returns the tri-state css class for the Sunday cell.
func (s StaffRow) SunClass() string { return statusClass(s.SunEvection) }

func statusClass(evec *bool) string {
	switch {
	case evec == nil:
		return StatusAbsent
	case *evec:
		return StatusEvection
	default:
		return StatusPresent
	}
}

// SelectDepartmentData — page data for the department chooser.
type SelectDepartmentData struct {
	Departments []model.DepartmentDB
	Error       string
}

// IndexData — page data for the listing view.
type IndexData struct {
	Department     string
	Staffs         []StaffRow
	SubDepartments []model.SubDepartmentDB
}

// InfoData — page data for the daily summary: department → staff names,
// split by day and by on-site/evection.
type InfoData struct {
	Today     int
	SatNormal map[string][]string
	SatEvec   map[string][]string
	SunNormal map[string][]string
	SunEvec   map[string][]string
}
