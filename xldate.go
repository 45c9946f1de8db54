package xl

import (
	"math"
	"time"
)

// DateSystem selects which of the two historical epoch conventions a
// workbook uses for date serial numbers.
type DateSystem int

const (
	// Date1900 is the 1900-based system. Serial 1 is 1900-01-01, and
	// the system inherits Excel's false 1900 leap year.
	Date1900 DateSystem = iota

	// Date1904 is the Mac-heritage 1904-based system. Serial 1 is
	// 1904-01-02.
	Date1904
)

var (
	epoch1904       = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
	epoch1900       = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	epoch1900Minus1 = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
)

const (
	millisPerDay = 86400000

	// No proleptic Gregorian date exists below this day count.
	minSerialDays = -693594.0

	// Serials within this distance of 60.0 count as the phantom
	// 1900-02-29.
	leapBugTolerance = 1e-9
)

// SerialToValue converts a date serial number into a Date, DateTime or
// Time value under the given date system.
//
// Under Date1900, Excel believes 1900 was a leap year: serial 60
// encodes the non-existent 1900-02-29 and is rejected with
// InvalidDateSerialError, and every serial above 60 is decoded against
// an epoch shifted back one day so it still lands on the correct real
// calendar date.
//
// A serial whose whole-day part precedes the proleptic calendar
// entirely is not representable as a date and comes back as a Number
// value holding the day count.
func SerialToValue(number float64, system DateSystem) (Value, error) {
	var base time.Time
	switch system {
	case Date1904:
		base = epoch1904
	default:
		if math.Abs(number-60.0) < leapBugTolerance {
			return Value{}, &InvalidDateSerialError{Serial: number}
		}
		if number > 60.0 {
			base = epoch1900Minus1
		} else {
			base = epoch1900
		}
	}

	days := math.Trunc(number)
	if days < minSerialDays {
		return Value{Kind: KindNumber, Number: days}, nil
	}

	millis := int64(math.Round((number - days) * millisPerDay))
	t := base.AddDate(0, 0, int(days)).Add(time.Duration(millis) * time.Millisecond)

	switch {
	case days == 0:
		return Value{Kind: KindTime, Time: t}, nil
	case atMidnight(t):
		return Value{Kind: KindDate, Time: t}, nil
	default:
		return Value{Kind: KindDateTime, Time: t}, nil
	}
}

// TimeToSerial converts an instant back into a date serial number
// under the given date system. It reproduces the 1900 leap-year bug in
// the forward direction: any instant 60 or more whole days past the
// 1900 epoch gets one phantom day added, so SerialToValue and
// TimeToSerial invert each other to millisecond precision everywhere
// except the rejected serial 60.
func TimeToSerial(t time.Time, system DateSystem) float64 {
	base := epoch1900
	if system == Date1904 {
		base = epoch1904
	}
	elapsed := t.Sub(base).Milliseconds()
	serial := float64(elapsed) / millisPerDay
	if system == Date1900 && elapsed >= 60*millisPerDay {
		serial += 1.0
	}
	return serial
}

func atMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}
