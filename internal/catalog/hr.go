package catalog

import "github.com/kyleking/hr-insight/internal/types"

func hrTables() []types.TableSchema {
	return []types.TableSchema{
		{
			Name:        "departments",
			Description: "Organizational units. One row per department.",
			Columns: []types.ColumnSchema{
				{Name: "department_id", Type: "INTEGER", Description: "Unique department identifier"},
				{Name: "name", Type: "VARCHAR", Description: "Department name, e.g. Engineering, Sales"},
				{Name: "division", Type: "VARCHAR", Description: "Parent division, e.g. Product, Go-To-Market, G&A"},
				{Name: "location", Type: "VARCHAR", Description: "Primary office location"},
				{Name: "budget", Type: "DOUBLE", Description: "Annual headcount budget in USD"},
			},
		},
		{
			Name:        "employees",
			Description: "Current and former employees. One row per person; terminated staff keep their row.",
			Columns: []types.ColumnSchema{
				{Name: "employee_id", Type: "INTEGER", Description: "Unique employee identifier"},
				{Name: "first_name", Type: "VARCHAR", Description: "Given name"},
				{Name: "last_name", Type: "VARCHAR", Description: "Family name"},
				{Name: "department_id", Type: "INTEGER", Description: "References departments.department_id"},
				{Name: "job_title", Type: "VARCHAR", Description: "Current job title"},
				{Name: "job_level", Type: "INTEGER", Description: "Career level from 1 (entry) to 7 (executive)"},
				{Name: "manager_id", Type: "INTEGER", Description: "employee_id of the direct manager, NULL for the CEO"},
				{Name: "hire_date", Type: "DATE", Description: "First day of employment"},
				{Name: "employment_status", Type: "VARCHAR", Description: "One of 'active', 'on_leave', 'terminated'"},
				{Name: "employment_type", Type: "VARCHAR", Description: "One of 'full_time', 'part_time', 'contractor'"},
				{Name: "gender", Type: "VARCHAR", Description: "Self-reported gender"},
				{Name: "birth_date", Type: "DATE", Description: "Date of birth"},
				{Name: "location", Type: "VARCHAR", Description: "Work location or 'Remote'"},
				{Name: "salary", Type: "DOUBLE", Description: "Current annual base salary in USD"},
			},
		},
		{
			Name:        "terminations",
			Description: "Employment separations used for attrition and turnover analysis.",
			Columns: []types.ColumnSchema{
				{Name: "termination_id", Type: "INTEGER", Description: "Unique separation identifier"},
				{Name: "employee_id", Type: "INTEGER", Description: "References employees.employee_id"},
				{Name: "termination_date", Type: "DATE", Description: "Last day of employment"},
				{Name: "reason", Type: "VARCHAR", Description: "Primary reason, e.g. 'compensation', 'relocation', 'performance'"},
				{Name: "voluntary", Type: "BOOLEAN", Description: "TRUE when the employee resigned"},
				{Name: "regrettable", Type: "BOOLEAN", Description: "TRUE when the company wanted to retain the employee"},
			},
		},
		{
			Name:        "performance_reviews",
			Description: "Periodic performance review outcomes.",
			Columns: []types.ColumnSchema{
				{Name: "review_id", Type: "INTEGER", Description: "Unique review identifier"},
				{Name: "employee_id", Type: "INTEGER", Description: "References employees.employee_id"},
				{Name: "review_date", Type: "DATE", Description: "Date the review was finalized"},
				{Name: "rating", Type: "INTEGER", Description: "Overall rating from 1 (low) to 5 (high)"},
				{Name: "reviewer_id", Type: "INTEGER", Description: "employee_id of the reviewer"},
				{Name: "goals_met_pct", Type: "DOUBLE", Description: "Share of goals met, 0 to 100"},
			},
		},
		{
			Name:        "compensation_history",
			Description: "Salary and bonus changes over time.",
			Columns: []types.ColumnSchema{
				{Name: "change_id", Type: "INTEGER", Description: "Unique change identifier"},
				{Name: "employee_id", Type: "INTEGER", Description: "References employees.employee_id"},
				{Name: "effective_date", Type: "DATE", Description: "Date the change took effect"},
				{Name: "base_salary", Type: "DOUBLE", Description: "Annual base salary after the change, USD"},
				{Name: "bonus", Type: "DOUBLE", Description: "Bonus awarded with the change, USD"},
				{Name: "change_reason", Type: "VARCHAR", Description: "One of 'hire', 'merit', 'promotion', 'market_adjustment'"},
			},
		},
		{
			Name:        "engagement_surveys",
			Description: "Employee engagement survey responses.",
			Columns: []types.ColumnSchema{
				{Name: "response_id", Type: "INTEGER", Description: "Unique response identifier"},
				{Name: "employee_id", Type: "INTEGER", Description: "References employees.employee_id"},
				{Name: "survey_date", Type: "DATE", Description: "Date the survey closed"},
				{Name: "engagement_score", Type: "DOUBLE", Description: "Composite engagement score from 0 to 10"},
				{Name: "would_recommend", Type: "INTEGER", Description: "Likelihood to recommend the company, 0 to 10"},
			},
		},
	}
}
