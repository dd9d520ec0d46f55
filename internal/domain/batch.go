package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Batch is an ordered group of records plus the time it was cut from the
// accumulator. Once handed to delivery or the queue it is not mutated; the
// bounder produces new batches instead.
type Batch struct {
	Records   []Record
	CreatedAt time.Time
}

// NewBatch creates a batch holding a copy of records.
func NewBatch(records []Record, createdAt time.Time) Batch {
	cp := make([]Record, len(records))
	copy(cp, records)
	return Batch{Records: cp, CreatedAt: createdAt}
}

// Len returns the number of records in the batch.
func (b Batch) Len() int {
	return len(b.Records)
}

// Empty returns true if the batch has no records.
func (b Batch) Empty() bool {
	return len(b.Records) == 0
}

// Text joins the records as stored in the offline queue: every line keeps its
// newline terminator.
func (b Batch) Text() string {
	var sb strings.Builder
	for _, r := range b.Records {
		sb.WriteString(string(r))
	}
	return sb.String()
}

// Value is the text carried in the envelope: records joined by newlines with
// the final newline trimmed.
func (b Batch) Value() string {
	return strings.TrimSuffix(b.Text(), "\n")
}

// Prefix returns a batch holding the first n records.
func (b Batch) Prefix(n int) Batch {
	if n > len(b.Records) {
		n = len(b.Records)
	}
	return Batch{Records: b.Records[:n:n], CreatedAt: b.CreatedAt}
}

// Suffix returns a batch holding the records from index n on.
func (b Batch) Suffix(n int) Batch {
	if n > len(b.Records) {
		n = len(b.Records)
	}
	return Batch{Records: b.Records[n:], CreatedAt: b.CreatedAt}
}

// ParseBatch rebuilds a batch from queue text. Blank lines are skipped and a
// missing final newline is restored.
func ParseBatch(text string, createdAt time.Time) Batch {
	var records []Record
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, Record(line+"\n"))
	}
	return Batch{Records: records, CreatedAt: createdAt}
}

type envelope struct {
	Value string `json:"value"`
}

// Envelope serializes the batch into the ingestion wire format
// {"value":"<records>"}. HTML escaping is disabled so the measured size
// matches what the endpoint receives.
func Envelope(b Batch) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(envelope{Value: b.Value()}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// EnvelopeSize returns the serialized length of the batch in bytes.
func EnvelopeSize(b Batch) int {
	p, err := Envelope(b)
	if err != nil {
		return 0
	}
	return len(p)
}
