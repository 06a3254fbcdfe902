package rfc2616

import (
	"strconv"
	"time"
)

// §  3.3.1  Full Date
// §
// §     HTTP applications have historically allowed three different formats
// §     for the representation of date/time stamps:
// §
// §        Sun, 06 Nov 1994 08:49:37 GMT  ; RFC 822, updated by RFC 1123
// §        Sunday, 06-Nov-94 08:49:37 GMT ; RFC 850, obsoleted by RFC 1036
// §        Sun Nov  6 08:49:37 1994       ; ANSI C's asctime() format
var dateFormats = []string{
	time.RFC1123,
	"Monday, 02-Jan-06 15:04:05 MST",
	time.ANSIC,
}

// HttpDate parses an HTTP date in any of the three historical formats.
// Generated dates always use the RFC 1123 format with a GMT zone.
func HttpDate(dateStr string) (time.Time, error) {
	var err error
	var date time.Time
	for _, format := range dateFormats {
		if date, err = time.Parse(format, dateStr); err == nil {
			return date, nil
		}
	}
	return date, err
}

// httpDateFormat is RFC 1123 with the UTC zone designated as "GMT",
// the only form HTTP allows for generated dates.
const httpDateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// ToHttpDate formats the given time as an RFC 1123 date in GMT.
func ToHttpDate(t time.Time) string {
	return t.UTC().Format(httpDateFormat)
}

// §  3.3.2  Delta Seconds
// §
// §     Some HTTP header fields allow a time value to be specified as an
// §     integer number of seconds, represented in decimal, after the time
// §     that the message was received.
// §
// §        delta-seconds  = 1*DIGIT
func deltaSeconds(secondsStr string) time.Duration {
	if seconds, err := strconv.ParseUint(secondsStr, 10, 63); err == nil {
		return time.Second * time.Duration(seconds)
	}
	return 0
}

// ToDeltaSeconds formats a duration as integer seconds, rounding down.
func ToDeltaSeconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}
