package calendarfeed

import "strings"

var sampleICS = strings.ReplaceAll(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//slotswap//test//EN
BEGIN:VEVENT
UID:single@test
DTSTAMP:20240101T000000Z
DTSTART:20240102T090000Z
DTEND:20240102T100000Z
SUMMARY:Dentist
END:VEVENT
BEGIN:VEVENT
UID:daily@test
DTSTAMP:20240101T000000Z
DTSTART:20240101T140000Z
DURATION:PT30M
RRULE:FREQ=DAILY;COUNT=4
EXDATE:20240102T140000Z
SUMMARY:Standup
END:VEVENT
BEGIN:VEVENT
UID:daily@test
DTSTAMP:20240101T000000Z
RECURRENCE-ID:20240103T140000Z
DTSTART:20240103T160000Z
DTEND:20240103T170000Z
SUMMARY:Standup (moved)
END:VEVENT
BEGIN:VEVENT
UID:allday@test
DTSTAMP:20240101T000000Z
DTSTART;VALUE=DATE:20240105
DTEND;VALUE=DATE:20240106
SUMMARY:Offsite
END:VEVENT
BEGIN:VEVENT
UID:free@test
DTSTAMP:20240101T000000Z
DTSTART:20240102T120000Z
DTEND:20240102T130000Z
TRANSP:TRANSPARENT
SUMMARY:Lunch (free)
END:VEVENT
BEGIN:VEVENT
UID:cancelled@test
DTSTAMP:20240101T000000Z
DTSTART:20240104T080000Z
DTEND:20240104T090000Z
STATUS:CANCELLED
END:VEVENT
END:VCALENDAR
`, "\n", "\r\n")
