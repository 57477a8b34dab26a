package pipeline

import (
	"bytes"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata is the EXIF subset kept on a record. All fields are optional;
// screenshots and scans typically carry none of them.
type Metadata struct {
	CapturedAt  *time.Time
	DeviceMake  *string
	DeviceModel *string
	Orientation *int
}

// ExtractMetadata reads EXIF from the original bytes. It is best-effort and
// never fails the pipeline: missing or corrupt EXIF yields the zero value.
func ExtractMetadata(raw []byte) Metadata {
	var m Metadata

	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return m
	}

	if tm, err := x.DateTime(); err == nil {
		utc := tm.UTC()
		m.CapturedAt = &utc
	}
	if tag, err := x.Get(exif.Make); err == nil {
		if v, err := tag.StringVal(); err == nil {
			if s := strings.TrimSpace(v); s != "" {
				m.DeviceMake = &s
			}
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if v, err := tag.StringVal(); err == nil {
			if s := strings.TrimSpace(v); s != "" {
				m.DeviceModel = &s
			}
		}
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			m.Orientation = &v
		}
	}

	return m
}
