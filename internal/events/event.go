// Package events delivers document change events to reactive handlers.
//
// A Bus is the trigger mechanism of the feed. Trigger sources (the Observe
// store decorator, the MongoDB change-stream watcher) Publish one Event per
// committed write. Handlers subscribe per document pattern and change kind,
// e.g. "likes/{likeId}" on KindCreate, and every matching handler runs as an
// independent job on the worker pool. A failing handler never affects the
// publisher or the other handlers: the failure is logged and handed to the
// DeadLetter sink.
package events

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Kind is the type of change an event reports
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Event describes one committed change to one document. Before is nil for
// creates and After is nil for deletes.
type Event struct {
	Seq        int64             `json:"seq"`
	Collection string            `json:"collection"`
	Kind       Kind              `json:"kind"`
	ID         string            `json:"id"`
	Before     map[string]any    `json:"before,omitempty"`
	After      map[string]any    `json:"after,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	Time       time.Time         `json:"time"`
}

// Pattern is a parsed document pattern such as "ideas/{ideaId}".
type Pattern struct {
	Collection string
	Param      string
}

// ParsePattern parses "<collection>/{<param>}". A leading slash is allowed.
func ParsePattern(s string) (Pattern, error) {
	parts := strings.Split(strings.TrimPrefix(s, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		return Pattern{}, fmt.Errorf("invalid document pattern %q", s)
	}
	param := parts[1]
	if !strings.HasPrefix(param, "{") || !strings.HasSuffix(param, "}") || len(param) < 3 {
		return Pattern{}, fmt.Errorf("invalid document pattern %q: want <collection>/{param}", s)
	}
	return Pattern{Collection: parts[0], Param: param[1 : len(param)-1]}, nil
}

func (p Pattern) String() string {
	return p.Collection + "/{" + p.Param + "}"
}

// Clock hands out strictly increasing sequence numbers for published events.
type Clock struct {
	seq atomic.Int64
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
