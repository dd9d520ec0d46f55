package domain

import (
	"strconv"
	"strings"
	"unicode"
)

// RecordFields is the number of comma-separated fields in a record.
const RecordFields = 6

// Record is one formatted, newline-terminated line:
// ssid,auth,lat,lon,rssi,bssid
type Record string

// FormatRecord renders an observation at a position. It never fails: names
// that are empty or undecodable become HiddenSSID and unknown auth codes get
// the AuthUnknown label. Coordinates always carry six decimals.
func FormatRecord(obs Observation, fix LocationFix) Record {
	var b strings.Builder
	b.Grow(64)
	b.WriteString(sanitizeSSID(obs.SSID))
	b.WriteByte(',')
	b.WriteString(obs.Auth.Label())
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(fix.Latitude, 'f', 6, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(fix.Longitude, 'f', 6, 64))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(obs.RSSI))
	b.WriteByte(',')
	b.WriteString(obs.BSSID.String())
	b.WriteByte('\n')
	return Record(b.String())
}

// Fields splits the record into its columns, without the trailing newline.
func (r Record) Fields() []string {
	return strings.Split(strings.TrimSuffix(string(r), "\n"), ",")
}

// sanitizeSSID keeps the record parseable: the separator, line breaks and
// other control characters would split or corrupt the line.
func sanitizeSSID(ssid string) string {
	ssid = strings.ToValidUTF8(ssid, "")
	ssid = strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsControl(r) {
			return ' '
		}
		return r
	}, ssid)
	ssid = strings.TrimSpace(ssid)
	if ssid == "" {
		return HiddenSSID
	}
	return ssid
}
