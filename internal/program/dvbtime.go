// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package program

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedDVBTime classifies tokens that cannot be decoded as DVB date/duration fields.
var ErrMalformedDVBTime = errors.New("malformed dvb time")

// mjdEpoch is day zero of the Modified Julian Day count.
var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

// DVBTime is a decoded DVB time field. A zero MJD yields a duration,
// anything else an absolute UTC instant.
type DVBTime struct {
	Time       time.Time
	Duration   time.Duration
	IsDuration bool
}

// DecodeDVBTime decodes a DVB SI time token (ETSI EN 300 468, Annex C).
//
// The low six characters are BCD hour/minute/second, read as decimal pairs.
// The leading characters are a hexadecimal MJD; an optional 0x prefix is
// accepted. An empty or zero MJD marks the token as a duration.
func DecodeDVBTime(token string) (DVBTime, error) {
	token = strings.TrimSpace(token)
	if len(token) < 6 {
		return DVBTime{}, fmt.Errorf("%w: token %q too short", ErrMalformedDVBTime, token)
	}

	bcd := token[len(token)-6:]
	hour, err := bcdPair(bcd[0:2])
	if err != nil {
		return DVBTime{}, err
	}
	minute, err := bcdPair(bcd[2:4])
	if err != nil {
		return DVBTime{}, err
	}
	second, err := bcdPair(bcd[4:6])
	if err != nil {
		return DVBTime{}, err
	}

	head := token[:len(token)-6]
	head = strings.TrimPrefix(strings.TrimPrefix(head, "0x"), "0X")
	var mjd int64
	if head != "" {
		mjd, err = strconv.ParseInt(head, 16, 64)
		if err != nil {
			return DVBTime{}, fmt.Errorf("%w: mjd %q: %v", ErrMalformedDVBTime, head, err)
		}
	}

	if mjd == 0 {
		d := time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second
		return DVBTime{Duration: d, IsDuration: true}, nil
	}

	if hour > 23 || minute > 59 || second > 59 {
		return DVBTime{}, fmt.Errorf("%w: time of day %s out of range", ErrMalformedDVBTime, bcd)
	}

	year, month, day := mjdToDate(mjd)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return DVBTime{}, fmt.Errorf("%w: mjd %d out of range", ErrMalformedDVBTime, mjd)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Day() != day {
		return DVBTime{}, fmt.Errorf("%w: mjd %d is not a calendar date", ErrMalformedDVBTime, mjd)
	}
	return DVBTime{Time: t}, nil
}

// mjdToDate applies the truncated polynomial conversion from Annex C,
// including the leap-month correction k.
func mjdToDate(mjd int64) (year, month, day int) {
	f := float64(mjd)
	y := int((f - 15078.2) / 365.25)
	yDays := int(float64(y) * 365.25)
	m := int((f - 14956.1 - float64(yDays)) / 30.6001)
	k := 0
	if m == 14 || m == 15 {
		k = 1
	}
	year = y + k + 1900
	month = m - 1 - k*12
	day = int(mjd) - 14956 - yDays - int(float64(m)*30.6001)
	return year, month, day
}

func bcdPair(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: bcd field %q", ErrMalformedDVBTime, s)
	}
	return v, nil
}

// EncodeDVBTime renders t (converted to UTC) as a 0x-prefixed MJD+BCD token,
// the form the decoder prints for Start_time lines.
func EncodeDVBTime(t time.Time) string {
	t = t.UTC()
	mjd := int64(t.Sub(mjdEpoch) / (24 * time.Hour))
	return fmt.Sprintf("0x%04x%02d%02d%02d", mjd, t.Hour(), t.Minute(), t.Second())
}

// EncodeDVBDuration renders d as a token with a zero MJD.
func EncodeDVBDuration(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("0x0000%02d%02d%02d", total/3600, (total/60)%60, total%60)
}
