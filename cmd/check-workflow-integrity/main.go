package main

import (
	"fmt"
	"log"

	"esgbridge-data/internal/config"
	"esgbridge-data/internal/database"
	"esgbridge-data/internal/domain"

	_ "github.com/lib/pq"
)

// 巡检响应工作流数据的一致性：
//   1. response_workflows.current_status 与 responses.status 是否一致
//   2. response_status_histories 按时间排序是否构成合法迁移路径
//   3. 终态响应是否仍有未解决的 requires_change 意见
func main() {
	cfg := config.Load()
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)
	problems := 0

	// 1. 影子投影与响应行状态一致性
	rows, err := db.Query(`
		SELECT r.response_id::text, r.status, w.current_status
		FROM responses r
		JOIN response_workflows w ON w.response_id = r.response_id
		WHERE r.status <> w.current_status
	`)
	if err != nil {
		log.Fatalf("Failed to check workflow shadows: %v", err)
	}
	for rows.Next() {
		var responseID, status, shadow string
		if err := rows.Scan(&responseID, &status, &shadow); err != nil {
			log.Fatalf("Failed to scan: %v", err)
		}
		fmt.Printf("❌ response %s: status=%s but workflow shadow=%s\n", responseID, status, shadow)
		problems++
	}
	rows.Close()

	// 2. 状态历史必须构成合法迁移路径
	rows, err = db.Query(`
		SELECT response_id::text, from_status, to_status
		FROM response_status_histories
		ORDER BY response_id, created_at, history_id
	`)
	if err != nil {
		log.Fatalf("Failed to read status histories: %v", err)
	}
	var lastResponse, lastTo string
	for rows.Next() {
		var responseID, from, to string
		if err := rows.Scan(&responseID, &from, &to); err != nil {
			log.Fatalf("Failed to scan: %v", err)
		}
		if !domain.CanTransition(from, to) {
			fmt.Printf("❌ response %s: illegal recorded transition %s -> %s\n", responseID, from, to)
			problems++
		}
		if responseID == lastResponse && from != lastTo {
			fmt.Printf("❌ response %s: broken history chain (%s -> ... -> %s)\n", responseID, lastTo, from)
			problems++
		}
		lastResponse, lastTo = responseID, to
	}
	rows.Close()

	// 3. 终态响应不应有未解决的 requires_change 意见
	rows, err = db.Query(`
		SELECT r.response_id::text, COUNT(*)
		FROM responses r
		JOIN review_comments c ON c.response_id = r.response_id
		WHERE r.status = 'final' AND c.requires_change = TRUE AND c.is_resolved = FALSE
		GROUP BY r.response_id
	`)
	if err != nil {
		log.Fatalf("Failed to check unresolved comments: %v", err)
	}
	for rows.Next() {
		var responseID string
		var count int
		if err := rows.Scan(&responseID, &count); err != nil {
			log.Fatalf("Failed to scan: %v", err)
		}
		fmt.Printf("❌ response %s: final with %d unresolved change-requiring comments\n", responseID, count)
		problems++
	}
	rows.Close()

	if problems == 0 {
		fmt.Println("✅ Workflow integrity check passed")
	} else {
		fmt.Printf("\nFound %d problems\n", problems)
	}
}
