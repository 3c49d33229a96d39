package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/nsec/totpauth/internal/engine"
)

// snapshotAuditLog wraps another AuditLog and additionally remembers the
// last record, so -record can persist a summary of the attempt without
// scraping the text log.
type snapshotAuditLog struct {
	inner      engine.AuditLog
	lastKind   engine.ErrorKind
	lastDetail string
	recorded   bool
}

func (s *snapshotAuditLog) Record(kind engine.ErrorKind, detail string) {
	s.lastKind = kind
	s.lastDetail = detail
	s.recorded = true

	s.inner.Record(kind, detail)
}

// sessionSnapshot is the last-attempt record written atomically under
// -record. It carries only the user name, the verdict, and the last audit
// record's kind and detail strings — never the code or the secret.
type sessionSnapshot struct {
	User    string `json:"user"`
	Verdict string `json:"verdict"`
	Kind    string `json:"kind,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func writeSnapshot(path, user string, verdict engine.Verdict, audit *snapshotAuditLog) error {
	snap := sessionSnapshot{User: user, Verdict: verdictName(verdict)}

	if audit.recorded {
		snap.Kind = audit.lastKind.String()
		snap.Detail = audit.lastDetail
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}

	if err := atomic.WriteFile(path, strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("write session snapshot %q: %w", path, err)
	}

	return nil
}

func verdictName(v engine.Verdict) string {
	if v == engine.VerdictSuccess {
		return "success"
	}

	return "session-error"
}
