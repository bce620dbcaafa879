package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type demoDepartment struct {
	name     string
	division string
	location string
	budget   float64
	titles   []string
	base     float64
}

var demoDepartments = []demoDepartment{
	{"Engineering", "Product", "San Francisco", 4200000, []string{"Software Engineer", "Senior Engineer", "Staff Engineer"}, 135000},
	{"Sales", "Go-To-Market", "New York", 2600000, []string{"Account Executive", "Sales Manager"}, 92000},
	{"Marketing", "Go-To-Market", "New York", 1500000, []string{"Marketing Specialist", "Content Lead"}, 88000},
	{"Customer Support", "Operations", "Austin", 1100000, []string{"Support Agent", "Support Lead"}, 61000},
	{"Finance", "G&A", "Chicago", 900000, []string{"Financial Analyst", "Controller"}, 98000},
	{"People", "G&A", "Remote", 700000, []string{"HR Business Partner", "Recruiter"}, 84000},
}

var (
	demoFirstNames = []string{"Ava", "Liam", "Maya", "Noah", "Zoe", "Ethan", "Priya", "Lucas", "Chloe", "Omar", "Sofia", "Mateo"}
	demoLastNames  = []string{"Chen", "Patel", "Garcia", "Kim", "Nguyen", "Smith", "Okafor", "Rossi", "Silva", "Cohen"}
	demoReasons    = []string{"compensation", "relocation", "career_growth", "performance", "manager", "restructuring"}
	demoGenders    = []string{"female", "male", "female", "male", "non_binary"}
)

const demoEmployees = 72

// SeedDemoData inserts a small deterministic HR dataset into a freshly
// migrated store. It refuses to run against a store that already has
// employees.
func SeedDemoData(ctx context.Context, db *sql.DB) error {
	var existing int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM employees").Scan(&existing); err != nil {
		return fmt.Errorf("failed to inspect employees: %w", err)
	}

	if existing > 0 {
		return fmt.Errorf("database already contains %d employees", existing)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	for _, stmt := range demoStatements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return tx.Commit()
}

// demoStatements renders the dataset as literal INSERT statements so the
// same text works on every supported local driver.
func demoStatements() []string {
	var stmts []string

	depts := make([]string, 0, len(demoDepartments))
	for i, d := range demoDepartments {
		depts = append(depts, fmt.Sprintf("(%d, '%s', '%s', '%s', %.0f)",
			i+1, d.name, d.division, d.location, d.budget))
	}

	stmts = append(stmts, insert("departments",
		"department_id, name, division, location, budget", depts))

	var (
		employees    []string
		terminations []string
		reviews      []string
		compensation []string
		surveys      []string
	)

	epoch := time.Date(2019, time.January, 7, 0, 0, 0, 0, time.UTC)

	for i := 0; i < demoEmployees; i++ {
		id := i + 1
		deptIdx := i % len(demoDepartments)
		dept := demoDepartments[deptIdx]
		level := 1 + (i*7)%5
		title := dept.titles[(i/len(demoDepartments))%len(dept.titles)]
		hire := epoch.AddDate(0, (i*5)%66, (i*11)%28)
		birth := time.Date(1965+(i*3)%35, time.Month(1+i%12), 1+(i*5)%27, 0, 0, 0, 0, time.UTC)
		salary := dept.base + float64(level-1)*9500 + float64((i*37)%11)*750

		manager := "NULL"
		if id > len(demoDepartments) {
			manager = fmt.Sprint(deptIdx + 1)
		}

		employmentType := "full_time"
		switch {
		case i%17 == 5:
			employmentType = "contractor"
		case i%13 == 4:
			employmentType = "part_time"
		}

		status := "active"
		terminated := i%6 == 3 || i%11 == 7
		if terminated {
			status = "terminated"
		} else if i%19 == 9 {
			status = "on_leave"
		}

		location := dept.location
		if i%4 == 1 {
			location = "Remote"
		}

		employees = append(employees, fmt.Sprintf("(%d, '%s', '%s', %d, '%s', %d, %s, '%s', '%s', '%s', '%s', '%s', '%s', %.0f)",
			id,
			demoFirstNames[i%len(demoFirstNames)],
			demoLastNames[(i*3)%len(demoLastNames)],
			deptIdx+1, title, level, manager,
			date(hire), status, employmentType,
			demoGenders[i%len(demoGenders)],
			date(birth), location, salary))

		compensation = append(compensation, fmt.Sprintf("(%d, %d, '%s', %.0f, 0, 'hire')",
			len(compensation)+1, id, date(hire), salary*0.9))

		if hire.Before(time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)) {
			reason := "merit"
			if i%5 == 0 {
				reason = "promotion"
			}

			compensation = append(compensation, fmt.Sprintf("(%d, %d, '2023-04-01', %.0f, %.0f, '%s')",
				len(compensation)+1, id, salary, salary*0.05, reason))
		}

		for year := 2023; year <= 2024; year++ {
			reviewDate := time.Date(year, time.December, 10+(i%10), 0, 0, 0, 0, time.UTC)
			if !hire.Before(reviewDate.AddDate(0, -6, 0)) {
				continue
			}

			rating := 1 + (i*3+year)%5
			reviews = append(reviews, fmt.Sprintf("(%d, %d, '%s', %d, %d, %d)",
				len(reviews)+1, id, date(reviewDate), rating, deptIdx+1, 40+rating*11+(i%7)))
		}

		if !terminated {
			score := 4.5 + float64((i*7)%50)/10
			surveys = append(surveys, fmt.Sprintf("(%d, %d, '2024-10-15', %.1f, %d)",
				len(surveys)+1, id, score, (i*3)%11))

			continue
		}

		exit := hire.AddDate(1+i%3, (i*2)%12, 0)
		if latest := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC); exit.After(latest) {
			exit = latest.AddDate(0, -(i % 9), 0)
		}

		voluntary := i%4 != 3
		terminations = append(terminations, fmt.Sprintf("(%d, %d, '%s', '%s', %s, %s)",
			len(terminations)+1, id, date(exit),
			demoReasons[i%len(demoReasons)],
			boolLiteral(voluntary), boolLiteral(voluntary && level >= 3)))
	}

	stmts = append(stmts,
		insert("employees", "employee_id, first_name, last_name, department_id, job_title, job_level, manager_id, hire_date, employment_status, employment_type, gender, birth_date, location, salary", employees),
		insert("terminations", "termination_id, employee_id, termination_date, reason, voluntary, regrettable", terminations),
		insert("performance_reviews", "review_id, employee_id, review_date, rating, reviewer_id, goals_met_pct", reviews),
		insert("compensation_history", "change_id, employee_id, effective_date, base_salary, bonus, change_reason", compensation),
		insert("engagement_surveys", "response_id, employee_id, survey_date, engagement_score, would_recommend", surveys),
	)

	return stmts
}

func insert(table, columns string, values []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES\n%s", table, columns, strings.Join(values, ",\n"))
}

func date(t time.Time) string {
	return t.Format("2006-01-02")
}

func boolLiteral(b bool) string {
	if b {
		return "TRUE"
	}

	return "FALSE"
}
