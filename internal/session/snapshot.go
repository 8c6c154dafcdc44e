package session

import (
	"github.com/lox/cardtable/internal/action"
	"github.com/lox/cardtable/internal/protocol"
	"github.com/lox/cardtable/internal/roundlog"
	"github.com/lox/cardtable/internal/seating"
)

// Snapshot is a read-only copy of the session state. Maps and slices
// taken from server updates are shared and must not be modified.
type Snapshot struct {
	SessionID string
	Table     protocol.TableID
	Player    string
	Seated    bool
	Spectator bool

	TableView protocol.TableView
	View      *protocol.PokerView
	Layout    seating.Layout

	Prompt    action.Prompt
	Selection *action.Selection
	Choice    *action.Choice

	Page    roundlog.Page
	HasPage bool
	Rounds  int
	Offset  int

	// Submission is the lifecycle state of the last submitted intent.
	Submission string
	// Notice is transient connection feedback, cleared by the next update.
	Notice string
	// Err is the last failed intent or the error that stopped polling.
	Err error
}

// Pot is everything bet so far in the running hand
func (s Snapshot) Pot() int64 {
	if s.View == nil {
		return 0
	}
	return s.View.Pot()
}

// CanStart reports whether the start affordance should be enabled
func (s Snapshot) CanStart() bool {
	return s.TableView.CanStart()
}

// Snapshot returns the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:  s.id,
		Table:      s.table,
		Player:     s.self,
		Seated:     s.seated,
		Spectator:  s.player == "",
		TableView:  s.tableView,
		View:       s.view,
		Layout:     seating.Build(s.self, &s.tableView, s.view),
		Prompt:     s.prompt,
		Rounds:     s.rounds.Len(),
		Offset:     s.cursor.Offset,
		Submission: s.submitter.State(),
		Notice:     s.notice,
		Err:        s.lastErr,
	}
	if snap.Player == "" {
		snap.Player = s.player
	}
	if s.selection != nil {
		snap.Selection = s.selection.Clone()
	}
	if s.choice != nil {
		snap.Choice = s.choice.Clone()
	}
	snap.Page, snap.HasPage = s.pager.Page()
	return snap
}
