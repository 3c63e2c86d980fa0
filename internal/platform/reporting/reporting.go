package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/dentalclinic/clinic/internal/platform/auth"
	"github.com/dentalclinic/clinic/internal/platform/db"
)

// MeasureDefinition defines a reporting measure with its SQL query.
// Parameters bind positionally: the n-th name is $n, NULL when not given.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"sql"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "patients-by-status",
		Name:        "Patients by Status",
		Description: "Number of patients in each workflow status",
		SQL:         `SELECT status, COUNT(*) AS total FROM patients GROUP BY status ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "students-by-availability",
		Name:        "Students by Availability",
		Description: "Students grouped by displayed availability; unregistered students are not applicable",
		SQL: `SELECT CASE
    WHEN registration_status = 'unregistered' THEN 'not_applicable'
    WHEN is_available THEN 'available'
    ELSE 'busy'
END AS availability, COUNT(*) AS total
FROM students GROUP BY 1 ORDER BY total DESC`,
		Parameters: []string{},
	},
	{
		ID:          "treatments-by-count",
		Name:        "Treatments by Count",
		Description: "Tooth-treatment line items per treatment, optionally for one patient status",
		SQL: `SELECT t.name AS treatment, COUNT(tt.id) AS total
FROM treatments t
LEFT JOIN tooth_treatments tt ON tt.treatment_id = t.id
LEFT JOIN patients p ON p.id = tt.patient_id
WHERE $1::text IS NULL OR p.status = $1
GROUP BY t.name ORDER BY total DESC, t.name`,
		Parameters: []string{"status"},
	},
	{
		ID:          "completed-by-class-year",
		Name:        "Completed Patients by Class Year",
		Description: "Completed patients per class year, optionally since a date (YYYY-MM-DD)",
		SQL: `SELECT COALESCE(cy.name, 'unassigned') AS class_year, COUNT(*) AS total
FROM patients p
LEFT JOIN class_years cy ON cy.id = p.class_year_id
WHERE p.status = 'completed' AND ($1::date IS NULL OR p.end_date >= $1::date)
GROUP BY cy.name ORDER BY total DESC`,
		Parameters: []string{"since"},
	},
	{
		ID:          "student-workload",
		Name:        "Student Workload",
		Description: "Stored workload counters per student, optionally for one registration status",
		SQL: `SELECT name, mobile, registration_status, patients_in_progress, patients_completed, is_available
FROM students
WHERE $1::text IS NULL OR registration_status = $1
ORDER BY patients_in_progress DESC, name`,
		Parameters: []string{"registration_status"},
	},
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates a new reporting handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole(auth.RoleSupervisor))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	params, args := bindParameters(measure, c.QueryParam)

	results, err := h.executeSQL(c.Request().Context(), measure.SQL, args...)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	report := MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now(),
		Results:     results,
		Parameters:  params,
	}

	return c.JSON(http.StatusOK, report)
}

// bindParameters reads the measure's parameters with lookup and returns the
// given values and the positional query arguments.
func bindParameters(m *MeasureDefinition, lookup func(string) string) (map[string]string, []interface{}) {
	params := map[string]string{}
	args := make([]interface{}, len(m.Parameters))
	for i, p := range m.Parameters {
		if v := lookup(p); v != "" {
			params[p] = v
			args[i] = v
		}
	}
	return params, args
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := db.Conn(ctx, h.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if results == nil {
		results = []map[string]interface{}{}
	}

	return results, nil
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
