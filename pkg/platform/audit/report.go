package audit

import (
	"sort"
	"time"
)

// Report summarises the entries of a time window. It is derived on demand and
// never stored.
type Report struct {
	Start                time.Time      `json:"start"`
	End                  time.Time      `json:"end"`
	TotalEntries         int            `json:"totalEntries"`
	EntriesByAction      map[Action]int `json:"entriesByAction"`
	EntriesByDataSubject map[string]int `json:"entriesByDataSubject"`
	ComplianceViolations int            `json:"complianceViolations"`
	SecurityEvents       int            `json:"securityEvents"`
	GDPRRequests         int            `json:"gdprRequests"`
	SOXActivities        int            `json:"soxActivities"`
	Entries              []Entry        `json:"entries"`
}

// BuildReport aggregates entries, which the caller has already restricted to
// [start, end].
func BuildReport(start, end time.Time, entries []Entry) Report {
	r := Report{
		Start:                start,
		End:                  end,
		TotalEntries:         len(entries),
		EntriesByAction:      make(map[Action]int),
		EntriesByDataSubject: make(map[string]int),
		Entries:              entries,
	}
	if r.Entries == nil {
		r.Entries = []Entry{}
	}
	for _, e := range entries {
		r.EntriesByAction[e.Action]++
		r.EntriesByDataSubject[e.DataSubjectID]++
	}
	r.ComplianceViolations = countAction(entries, ActionComplianceViolation)
	r.SecurityEvents = countAction(entries, ActionSecurityEvent)
	r.GDPRRequests = countAction(entries, ActionGDPRRequestProcessed)
	r.SOXActivities = countAction(entries, ActionSOXActivity)
	return r
}

func countAction(entries []Entry, action Action) int {
	n := 0
	for _, e := range entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// SortNewestFirst orders entries by timestamp descending; entries with equal
// timestamps keep reverse insertion order (higher Seq first).
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].Seq > entries[j].Seq
	})
}

// SortBySeq orders entries ascending by sequence, the order VerifyChain expects.
func SortBySeq(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Seq < entries[j].Seq
	})
}
