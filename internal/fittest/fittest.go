// Package fittest builds small FIT activity files for tests.
package fittest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/tormoder/fit"
)

// Ride describes a steady one-record-per-second activity.
type Ride struct {
	Start   time.Time
	Seconds int
	Watts   uint16
	HR      uint8
	Sport   fit.Sport
	// Zone, when set, adds an activity message whose local timestamp is in this zone.
	Zone *time.Location
}

// Encode returns the FIT bytes of r with a single session message.
func Encode(t testing.TB, r Ride) []byte {
	t.Helper()

	file, err := fit.NewFile(fit.FileTypeActivity, fit.NewHeader(fit.V20, true))
	if err != nil {
		t.Fatalf("new fit file: %v", err)
	}
	activity, err := file.Activity()
	if err != nil {
		t.Fatalf("activity accessor: %v", err)
	}

	for i := 0; i < r.Seconds; i++ {
		rec := fit.NewRecordMsg()
		rec.Timestamp = r.Start.Add(time.Duration(i) * time.Second)
		rec.Power = r.Watts
		if r.HR > 0 {
			rec.HeartRate = r.HR
		}
		activity.Records = append(activity.Records, rec)
	}

	session := fit.NewSessionMsg()
	session.Timestamp = r.Start.Add(time.Duration(r.Seconds) * time.Second)
	session.StartTime = r.Start
	session.Sport = r.Sport
	activity.Sessions = append(activity.Sessions, session)

	if r.Zone != nil {
		msg := fit.NewActivityMsg()
		msg.Timestamp = session.Timestamp
		msg.LocalTimestamp = session.Timestamp.In(r.Zone)
		msg.NumSessions = 1
		activity.Activity = msg
	}

	var buf bytes.Buffer
	if err := fit.Encode(&buf, file, binary.LittleEndian); err != nil {
		t.Fatalf("encode fit: %v", err)
	}
	return buf.Bytes()
}

// WriteFile encodes r into dir/name, gzip-compressed when name ends in .gz.
func WriteFile(t testing.TB, dir, name string, r Ride) string {
	t.Helper()

	data := Encode(t, r)
	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("gzip close: %v", err)
		}
		data = buf.Bytes()
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
