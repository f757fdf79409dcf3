package analytics

import (
	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/user"
)

// Scope selects whose records a report aggregates. The zero value is every record.
type Scope struct {
	UserID string
}

func AllRecords() Scope { return Scope{} }

func OwnedBy(userID string) Scope { return Scope{UserID: userID} }

func (s Scope) IsAll() bool { return s.UserID == "" }

// PersonalScope is used by personal views (KPIs, own performance): an explicit target wins,
// staff otherwise see everything and plain users only their own records.
func PersonalScope(actor user.User, targetUserID string) Scope {
	if targetUserID != "" {
		return OwnedBy(targetUserID)
	}
	if actor.CanViewAll() {
		return AllRecords()
	}
	return OwnedBy(actor.ID)
}

// InsightScope is used by aggregate insights (leaderboards, regional trends) that every role
// sees across all records.
func InsightScope() Scope { return AllRecords() }

// Authorize checks that actor may look at targetUserID's data.
func Authorize(actor user.User, targetUserID string) error {
	if targetUserID == "" || targetUserID == actor.ID || actor.CanViewAll() {
		return nil
	}
	return core.ErrPermissionDenied
}
