package indexes

import (
	"strings"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// Definition describes a named index and the SQL used to create it.
type Definition struct {
	Name  string
	Table string
	SQL   string
}

// expectedDefinitions lists the composite indexes the query paths rely on.
// Single-column indexes come from the gorm model tags.
var expectedDefinitions = []Definition{
	// ===== DETECTION LOOKUPS =====
	// Most recent prior detection for a user (ORDER BY id DESC LIMIT 1)
	{Name: "idx_gsd_user_recent", Table: "geo_spoof_detections", SQL: `CREATE INDEX IF NOT EXISTS idx_gsd_user_recent ON geo_spoof_detections(user_id, id DESC)`},
	// Trailing-window counts for frequent location changes
	{Name: "idx_gsd_user_detected", Table: "geo_spoof_detections", SQL: `CREATE INDEX IF NOT EXISTS idx_gsd_user_detected ON geo_spoof_detections(user_id, detected_at)`},
	// Moderation queue
	{Name: "idx_gsd_review_queue", Table: "geo_spoof_detections", SQL: `CREATE INDEX IF NOT EXISTS idx_gsd_review_queue ON geo_spoof_detections(review_state, id DESC)`},

	// ===== THROTTLES =====
	{Name: "idx_throttle_user_expiry", Table: "throttles", SQL: `CREATE INDEX IF NOT EXISTS idx_throttle_user_expiry ON throttles(user_id, expires_at)`},
	{Name: "idx_throttle_active_order", Table: "throttles", SQL: `CREATE INDEX IF NOT EXISTS idx_throttle_active_order ON throttles(severity DESC, started_at DESC)`},

	// ===== AUDIT =====
	{Name: "idx_action_target_time", Table: "moderation_actions", SQL: `CREATE INDEX IF NOT EXISTS idx_action_target_time ON moderation_actions(target_user_id, created_at DESC)`},
}

// legacyIndexes are names from earlier schema revisions that should be dropped when reconciling.
var legacyIndexes = []string{
	"idx_gsd_user_id_desc",
	"idx_gsd_pending",
	"idx_throttle_expiry",
}

// Definitions returns a copy of the expected index set.
func Definitions() []Definition {
	defs := make([]Definition, len(expectedDefinitions))
	copy(defs, expectedDefinitions)
	return defs
}

// Ensure reconciles expected indexes, dropping obsolete ones and creating missing ones.
func Ensure(db *gorm.DB, logger *pterm.Logger) (created int, dropped int, err error) {
	existingIndexes, err := fetchExistingIndexes(db)
	if err != nil {
		return 0, 0, err
	}

	existingSet := make(map[string]struct{}, len(existingIndexes))
	for _, name := range existingIndexes {
		existingSet[name] = struct{}{}
	}

	for _, name := range legacyIndexes {
		if _, ok := existingSet[name]; !ok {
			continue
		}
		if err := db.Exec("DROP INDEX IF EXISTS " + name).Error; err != nil {
			logger.Warn("Failed to drop index", logger.Args("index", name, "error", err))
			continue
		}
		dropped++
	}

	for _, def := range expectedDefinitions {
		if err := db.Exec(def.SQL).Error; err != nil {
			logger.Warn("Failed to create index", logger.Args("index", def.Name, "error", err))
			return created, dropped, err
		}
		if _, ok := existingSet[def.Name]; !ok {
			created++
		}
	}

	return created, dropped, nil
}

func fetchExistingIndexes(db *gorm.DB) ([]string, error) {
	query := `SELECT name FROM sqlite_master WHERE type='index' AND name NOT LIKE 'sqlite_%'`
	if db.Dialector.Name() == "postgres" {
		query = `SELECT indexname FROM pg_indexes WHERE schemaname = current_schema()`
	}

	var names []string
	rows, err := db.Raw(query).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	return names, rows.Err()
}
