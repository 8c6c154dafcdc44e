// Package roundlog rebuilds the per-round game log from incremental
// updates and pages through it one round at a time.
package roundlog

import (
	"fmt"

	"github.com/lox/cardtable/internal/protocol"
)

// Log is the reconstructed log: one slice of entries per round, indexed by
// round number. It only grows.
type Log struct {
	rounds [][]string
}

// Len returns the number of rounds, including empty padding rounds
func (l *Log) Len() int {
	return len(l.rounds)
}

// Round returns the entries of round r, or nil if it does not exist
func (l *Log) Round(r int) []string {
	if r < 0 || r >= len(l.rounds) {
		return nil
	}
	return l.rounds[r]
}

// Entries returns the total number of entries across all rounds
func (l *Log) Entries() int {
	n := 0
	for _, r := range l.rounds {
		n += len(r)
	}
	return n
}

// Ingest appends entries to round, adding empty rounds until it exists.
// Entries are not deduplicated.
func (l *Log) Ingest(round int, entries []string) {
	if round < 0 {
		return
	}
	for len(l.rounds) <= round {
		l.rounds = append(l.rounds, []string{})
	}
	l.rounds[round] = append(l.rounds[round], entries...)
}

// IngestUpdate adds the human-readable log carried by an update. The i-th
// text batch belongs to the round of the i-th structured batch; updates
// without text add nothing.
func (l *Log) IngestUpdate(u *protocol.ServerUpdate) int {
	added := 0
	for i, text := range u.StringLog {
		if i >= len(u.Log) {
			break
		}
		l.Ingest(u.Log[i].Round, text)
		added += len(text)
	}
	return added
}

// Pager selects which round of a Log is shown. When it was showing the
// newest round it follows new rounds as they arrive; after manual
// navigation it stays put.
type Pager struct {
	log     *Log
	current int
	seen    int
}

func NewPager(l *Log) *Pager {
	return &Pager{log: l}
}

// Advance moves the page by delta and clamps it into range. Pass 0 to
// refresh after new data.
func (p *Pager) Advance(delta int) {
	n := p.log.Len()
	onLast := p.seen == 0 || p.current == p.seen-1
	p.seen = n
	if n == 0 {
		return
	}
	if onLast {
		p.current = n - 1
	}
	p.current += delta
	if p.current < 0 {
		p.current = 0
	}
	if p.current >= n {
		p.current = n - 1
	}
}

// Current returns the selected round, or false while the log is empty
func (p *Pager) Current() (int, bool) {
	if p.seen == 0 {
		return 0, false
	}
	return p.current, true
}

// OnLast reports whether the newest round is selected
func (p *Pager) OnLast() bool {
	return p.seen == 0 || p.current == p.seen-1
}

// Page is one round of the log ready to display
type Page struct {
	Round   int
	Label   string
	Entries []string
	OnLast  bool
}

// Page returns the selected round, or false while the log is empty
func (p *Pager) Page() (Page, bool) {
	r, ok := p.Current()
	if !ok {
		return Page{}, false
	}
	entries := p.log.Round(r)
	return Page{
		Round:   r,
		Label:   fmt.Sprintf("Round %d", r+1),
		Entries: append([]string(nil), entries...),
		OnLast:  p.OnLast(),
	}, true
}
