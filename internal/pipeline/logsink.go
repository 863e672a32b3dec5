package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/libdb/internal/actor"
	"github.com/jonathan/libdb/internal/logging"
)

// subscriberBuffer is the number of records a slow subscriber may lag behind before
// records are dropped for it
const subscriberBuffer = 64

// Record is one aggregated log entry
type Record struct {
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Sender  string    `json:"sender"`
	Message string    `json:"message"`
}

type logMsg interface{ isLogMsg() }

type appendRecord struct {
	time    time.Time
	level   slog.Level
	sender  string
	message string
}

type recentRecords struct {
	limit int
	reply chan<- []Record
}

type subscribe struct {
	id string
	ch chan Record
}

type unsubscribe struct {
	id string
}

func (appendRecord) isLogMsg()  {}
func (recentRecords) isLogMsg() {}
func (subscribe) isLogMsg()     {}
func (unsubscribe) isLogMsg()   {}

// LogSink is the singleton aggregator of leveled records sent by every entity. It writes
// them to the aggregate handler, keeps the most recent ones and streams new ones to
// subscribers. It never fails its senders.
type LogSink struct {
	mb *actor.Mailbox[logMsg]
}

// logState is owned by the LogSink mailbox goroutine
type logState struct {
	handler     slog.Handler
	ring        []Record
	head        int
	size        int
	seq         uint64
	subscribers map[string]chan Record
}

func newLogSink(ctx context.Context, handler slog.Handler, retain int, opts actor.Options) *LogSink {
	if retain < 1 {
		retain = 1
	}
	st := &logState{
		handler:     handler,
		ring:        make([]Record, retain),
		subscribers: make(map[string]chan Record),
	}
	return &LogSink{mb: actor.Spawn(ctx, "log", st.handle, opts)}
}

// Log appends a record without waiting
func (l *LogSink) Log(level slog.Level, sender, message string) {
	l.mb.Tell(appendRecord{time: time.Now(), level: level, sender: sender, message: message})
}

// Recent returns up to limit of the newest records, oldest first. A limit of zero or less
// returns everything retained.
func (l *LogSink) Recent(ctx context.Context, limit int) ([]Record, error) {
	return actor.Ask(ctx, l.mb, func(reply chan<- []Record) logMsg {
		return recentRecords{limit: limit, reply: reply}
	})
}

// Subscribe streams records appended from now on. The returned cancel function must be
// called to release the subscription; the channel is closed afterwards.
func (l *LogSink) Subscribe() (<-chan Record, func()) {
	id := uuid.NewString()
	ch := make(chan Record, subscriberBuffer)
	l.mb.Tell(subscribe{id: id, ch: ch})
	return ch, func() { l.mb.Tell(unsubscribe{id: id}) }
}

// Shutdown stops accepting records once the queue has drained
func (l *LogSink) Shutdown() error {
	l.mb.Close()
	return nil
}

func (st *logState) handle(ctx context.Context, msg logMsg) {
	switch m := msg.(type) {
	case appendRecord:
		st.append(ctx, m)
	case recentRecords:
		m.reply <- st.recent(m.limit)
	case subscribe:
		st.subscribers[m.id] = m.ch
	case unsubscribe:
		if ch, ok := st.subscribers[m.id]; ok {
			delete(st.subscribers, m.id)
			close(ch)
		}
	}
}

func (st *logState) append(ctx context.Context, m appendRecord) {
	st.seq++
	rec := Record{
		Seq:     st.seq,
		Time:    m.time,
		Level:   logging.LevelName(m.level),
		Sender:  m.sender,
		Message: m.message,
	}

	st.ring[(st.head+st.size)%len(st.ring)] = rec
	if st.size < len(st.ring) {
		st.size++
	} else {
		st.head = (st.head + 1) % len(st.ring)
	}

	if st.handler != nil && st.handler.Enabled(ctx, m.level) {
		r := slog.NewRecord(m.time, m.level, m.message, 0)
		r.AddAttrs(slog.String(logging.SenderKey, m.sender))
		_ = st.handler.Handle(ctx, r)
	}

	for _, ch := range st.subscribers {
		select {
		case ch <- rec:
		default:
		}
	}
}

func (st *logState) recent(limit int) []Record {
	n := st.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, 0, n)
	for i := st.size - n; i < st.size; i++ {
		out = append(out, st.ring[(st.head+i)%len(st.ring)])
	}
	return out
}
