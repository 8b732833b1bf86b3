package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wlhd7/dz-weekend-overtime/internal/model"
	"github.com/wlhd7/dz-weekend-overtime/internal/view"
)

const (
	departmentCookie = "department"
	cookieMaxAge     = 365 * 24 * 3600
)

// Handler carries the HTTP layer dependencies (DB and views).
type Handler struct{ db *gorm.DB }

// NewHandler creates a new Handler.
func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

// Router mounts all routes on a fresh chi router.
func Router(db *gorm.DB) *chi.Mux {
	h := NewHandler(db)
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)

	r.Get("/", h.Index)
	r.Post("/", h.Index)

	r.Get("/select-department", h.SelectDepartment)
	r.Post("/select-department", h.SelectDepartment)

	r.Get("/info", h.Info)
	r.Post("/info", h.Info)

	r.Post("/edit-names", h.EditNames)
	r.Post("/toggle-sat", h.ToggleDay)

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, ToggleResponse{OK: false, Error: msg})
}

// Healthz returns 200 OK for liveness checks.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// departmentID reads the department cookie; ok=false means "not selected".
// Missing and malformed values are treated the same way, never as an error.
func departmentID(r *http.Request) (int64, bool) {
	c, err := r.Cookie(departmentCookie)
	if err != nil || c.Value == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(c.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// chinaDay returns the current day of month in the plant's time zone, falling
// back to a fixed UTC+8 offset when tzdata is unavailable.
func chinaDay() int {
	if loc, err := time.LoadLocation("Asia/Shanghai"); err == nil {
		return time.Now().In(loc).Day()
	}
	return time.Now().UTC().Add(8 * time.Hour).Day()
}

// SelectDepartment handles GET/POST /select-department.
// GET renders the chooser; POST stores the picked department id in a one-year
// cookie and redirects to the listing. The options come from the seeded
// reference list — the page touches no database.
func (h *Handler) SelectDepartment(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		dept := r.FormValue("department")
		if dept == "" {
			view.Render(w, "select-department", SelectDepartmentData{
				Departments: model.SeedDepartments,
				Error:       "请选择部门",
			})
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:   departmentCookie,
			Value:  dept,
			Path:   "/",
			MaxAge: cookieMaxAge,
		})
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	view.Render(w, "select-department", SelectDepartmentData{Departments: model.SeedDepartments})
}

// Index handles GET/POST /.
// Missing, malformed and stale department cookies all redirect to the chooser.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	deptID, ok := departmentID(r)
	if !ok {
		http.Redirect(w, r, "/select-department", http.StatusFound)
		return
	}

	var dept model.DepartmentDB
	if err := h.db.First(&dept, "id = ?", deptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Redirect(w, r, "/select-department", http.StatusFound)
			return
		}
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	var staffs []StaffRow
	if err := h.db.
		Table("staffs").
		Select("staffs.id, staffs.name, sub_departments.name AS sub_department_name, "+
			"sat.is_evection AS sat_evection, sun.is_evection AS sun_evection").
		Joins("LEFT JOIN sub_departments ON staffs.sub_department_id = sub_departments.id").
		Joins("LEFT JOIN sat ON sat.staff_id = staffs.id").
		Joins("LEFT JOIN sun ON sun.staff_id = staffs.id").
		Where("staffs.department_id = ?", deptID).
		Order("staffs.name").
		Scan(&staffs).Error; err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	var subs []model.SubDepartmentDB
	if err := h.db.Where("department_id = ?", deptID).Order("id").Find(&subs).Error; err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	view.Render(w, "index", IndexData{
		Department:     dept.Name,
		Staffs:         staffs,
		SubDepartments: subs,
	})
}

// Info handles GET/POST /info — today's overtime summary grouped by department.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	today := chinaDay()
	satNormal, satEvec := h.daySummary(DaySat, today)
	sunNormal, sunEvec := h.daySummary(DaySun, today)

	view.Render(w, "info", InfoData{
		Today:     today,
		SatNormal: satNormal,
		SatEvec:   satEvec,
		SunNormal: sunNormal,
		SunEvec:   sunEvec,
	})
}

// daySummary partitions today's rows of one day table into department→names
// maps for on-site and on-evection staff. Query failures (older database
// files may lack the updated_at column) degrade to empty maps, not a 5xx.
func (h *Handler) daySummary(day string, today int) (normal, evection map[string][]string) {
	normal = map[string][]string{}
	evection = map[string][]string{}

	type row struct {
		StaffName  string
		DeptName   *string
		IsEvection bool
	}
	var rows []row
	if err := h.db.
		Table(day+" AS a").
		Select("s.name AS staff_name, d.name AS dept_name, a.is_evection AS is_evection").
		Joins("JOIN staffs s ON a.staff_id = s.id").
		Joins("LEFT JOIN departments d ON s.department_id = d.id").
		Where("a.updated_at = ?", today).
		Order("d.name, s.name").
		Scan(&rows).Error; err != nil {
		log.Printf("summary query for %s failed: %v", day, err)
		return normal, evection
	}

	for _, x := range rows {
		dept := "未知"
		if x.DeptName != nil && *x.DeptName != "" {
			dept = *x.DeptName
		}
		if x.IsEvection {
			evection[dept] = append(evection[dept], x.StaffName)
		} else {
			normal[dept] = append(normal[dept], x.StaffName)
		}
	}
	return normal, evection
}

// EditNames handles POST /edit-names (form fields: name, action, and for add
// an optional sub_department id). The write outcome never changes the
// response: errors are logged and the client is redirected back to the
// listing either way.
func (h *Handler) EditNames(w http.ResponseWriter, r *http.Request) {
	deptID, ok := departmentID(r)
	if !ok {
		http.Redirect(w, r, "/select-department", http.StatusFound)
		return
	}

	name := r.FormValue("name")
	action := r.FormValue("action")
	if name == "" || action == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	var err error
	switch action {
	case "add":
		var subID *int64
		if v := r.FormValue("sub_department"); v != "" {
			if id, perr := strconv.ParseInt(v, 10, 64); perr == nil {
				subID = &id
			}
		}
		err = h.addStaff(name, deptID, subID)
	case "remove":
		// scoped to the active department so a same-named staff filed
		// elsewhere survives
		err = h.db.Where("name = ? AND department_id = ?", name, deptID).
			Delete(&model.StaffDB{}).Error
	}
	if err != nil {
		log.Printf("edit-names %s %q: %v", action, name, err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// addStaff inserts a staff row, or moves the existing row with that name to
// the current department (and sub-department, when one was picked and
// differs).
func (h *Handler) addStaff(name string, deptID int64, subID *int64) error {
	return h.db.Transaction(func(tx *gorm.DB) error {
		staff := model.StaffDB{Name: name, DepartmentID: deptID, SubDepartmentID: subID}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&staff)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		var existing model.StaffDB
		if err := tx.First(&existing, "name = ?", name).Error; err != nil {
			return err
		}
		updates := map[string]any{}
		if existing.DepartmentID != deptID {
			updates["department_id"] = deptID
		}
		if subID != nil && (existing.SubDepartmentID == nil || *existing.SubDepartmentID != *subID) {
			updates["sub_department_id"] = *subID
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&model.StaffDB{}).Where("name = ?", name).Updates(updates).Error
	})
}

// ToggleDay handles POST /toggle-sat, the JSON tri-state endpoint.
// {"staff_id":5,"status":"bg-3","day":"sun"} -> 200 {"ok":true}
// | 400 {"ok":false,"error":...} | 500 {"ok":false,"error":...}
//
// bg-2/bg-3 are a full replace: delete any existing row, then insert a fresh
// one stamped with today's day of month. The delete-then-insert shape also
// clears duplicate rows left behind by pre-dedup database files.
func (h *Handler) ToggleDay(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		writeErr(w, "expected JSON", http.StatusBadRequest)
		return
	}

	in := ToggleRequest{Day: DaySat}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, "expected JSON", http.StatusBadRequest)
		return
	}
	if in.Day != DaySat && in.Day != DaySun {
		writeErr(w, "invalid day", http.StatusBadRequest)
		return
	}
	if in.StaffID == 0 ||
		(in.Status != StatusAbsent && in.Status != StatusPresent && in.Status != StatusEvection) {
		writeErr(w, "invalid payload", http.StatusBadRequest)
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(in.Day).Where("staff_id = ?", in.StaffID).
			Delete(&model.DayAssignmentDB{}).Error; err != nil {
			return err
		}
		if in.Status == StatusAbsent {
			return nil
		}
		row := model.DayAssignmentDB{
			StaffID:    in.StaffID,
			IsEvection: in.Status == StatusEvection,
			UpdatedDay: chinaDay(),
		}
		return tx.Table(in.Day).Create(&row).Error
	})
	if err != nil {
		writeErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{OK: true})
}
