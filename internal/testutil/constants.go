// Package testutil provides common constants and utilities for tests
package testutil

import "time"

const (
	// TestTimeout is the default timeout for test operations
	TestTimeout = 30 * time.Second

	// ShortTestTimeout is a shorter timeout for quick operations
	ShortTestTimeout = 5 * time.Second

	// TestQuestion is a typical analytics question
	TestQuestion = "How many employees are in each department?"

	// TestHeadcountSQL answers TestQuestion against the HR schema
	TestHeadcountSQL = "SELECT d.name AS department, COUNT(*) AS count FROM employees e " +
		"JOIN departments d ON d.department_id = e.department_id " +
		"WHERE LOWER(e.employment_status) = 'active' GROUP BY d.name ORDER BY count DESC"

	// TestHeadcountTemplate exercises every placeholder family
	TestHeadcountTemplate = "There are {total_count} departments, largest is {top_department} with {top_count} employees"
)
