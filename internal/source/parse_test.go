package source

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokyo = mustLoadTokyo()

func mustLoadTokyo() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		panic(err)
	}
	return loc
}

// monthPage builds a schedule page for January 2024 where every day is
// present and the given days carry extra cell content after the day number.
func monthPage(custom map[int]string) string {
	return monthPageDays(custom, 31)
}

func monthPageDays(custom map[int]string, days int) string {
	var b strings.Builder
	b.WriteString(`<html><body><table summary="日程"><tr>`)
	b.WriteString("<td>&nbsp;</td>") // padding cell before the 1st
	for d := 1; d <= days; d++ {
		b.WriteString("<td>" + strconv.Itoa(d))
		if extra, ok := custom[d]; ok {
			b.WriteString("<br>" + extra)
		}
		b.WriteString("</td>")
	}
	b.WriteString("</tr></table></body></html>")
	return b.String()
}

func TestParseMonthTimedEntry(t *testing.T) {
	page := monthPage(map[int]string{6: "6-7:30 少年稽古"})
	res := ParseMonth(2024, time.January, page, tokyo, "http://example.com/2024/202401.html")

	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, "少年稽古", rec.Summary)
	assert.Equal(t, "http://example.com/2024/202401.html", rec.URL)
	// Bare 12-hour clock: hours below 8 are afternoon.
	assert.Equal(t, "20240106T090000Z", rec.Start.Key()) // 18:00 Tokyo
	assert.Equal(t, "20240106T103000Z", rec.End.Key())   // 19:30 Tokyo
	assert.Equal(t, rec.Start.Key()+"/"+rec.End.Key()+"/少年稽古", rec.ID)
}

func TestParseMonthMorningHoursKeptAsIs(t *testing.T) {
	page := monthPage(map[int]string{14: "9-11:30 朝稽古"})
	res := ParseMonth(2024, time.January, page, tokyo, "")

	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "20240114T000000Z", res.Records[0].Start.Key()) // 09:00 Tokyo
}

func TestParseMonthAllDayEntry(t *testing.T) {
	page := monthPage(map[int]string{2: "休館日"})
	res := ParseMonth(2024, time.January, page, tokyo, "")

	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.True(t, rec.Start.AllDay())
	assert.Equal(t, "20240102", rec.Start.Key())
	assert.Equal(t, "休館日", rec.Summary)
	assert.Equal(t, "20240102/休館日", rec.ID)
}

func TestParseMonthRedContinuationJoinsPreviousEntry(t *testing.T) {
	page := monthPage(map[int]string{
		6: `6-7:30 少年稽古<br><font color="red">見学可</font>`,
	})
	res := ParseMonth(2024, time.January, page, tokyo, "")

	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "少年稽古 見学可", res.Records[0].Summary)
}

func TestParseMonthSmallFontSkipped(t *testing.T) {
	page := monthPage(map[int]string{
		6: `休館日<br><font size="-1">元日</font>`,
	})
	res := ParseMonth(2024, time.January, page, tokyo, "")

	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "休館日", res.Records[0].Summary)
}

func TestParseMonthMultipleLinesPerDay(t *testing.T) {
	page := monthPage(map[int]string{
		20: "1-3 昼稽古<br>6-8 夜稽古",
	})
	res := ParseMonth(2024, time.January, page, tokyo, "")

	require.Empty(t, res.Errors)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "昼稽古", res.Records[0].Summary)
	assert.Equal(t, "20240120T040000Z", res.Records[0].Start.Key()) // 13:00 Tokyo
	assert.Equal(t, "夜稽古", res.Records[1].Summary)
	assert.Equal(t, "20240120T090000Z", res.Records[1].Start.Key()) // 18:00 Tokyo
}

func TestParseMonthErrors(t *testing.T) {
	t.Run("missing day", func(t *testing.T) {
		page := strings.Replace(monthPage(nil), "<td>17</td>", "", 1)
		res := ParseMonth(2024, time.January, page, tokyo, "")
		require.Len(t, res.Errors, 1)
		assert.ErrorContains(t, res.Errors[0], "did not parse day 17")
	})

	t.Run("duplicate day", func(t *testing.T) {
		page := strings.Replace(monthPage(nil), "<td>17</td>", "<td>17</td><td>17</td>", 1)
		res := ParseMonth(2024, time.January, page, tokyo, "")
		require.Len(t, res.Errors, 1)
		assert.ErrorContains(t, res.Errors[0], "parsed day 17 twice")
	})

	t.Run("day out of range", func(t *testing.T) {
		page := monthPage(nil)
		page = strings.Replace(page, "<td>&nbsp;</td>", "<td>42</td>", 1)
		res := ParseMonth(2024, time.January, page, tokyo, "")
		require.Len(t, res.Errors, 1)
		assert.ErrorContains(t, res.Errors[0], "day 42 out of range")
	})

	t.Run("malformed time", func(t *testing.T) {
		page := monthPage(map[int]string{6: "6:xx-7 稽古"})
		res := ParseMonth(2024, time.January, page, tokyo, "")
		require.Len(t, res.Errors, 1)
		assert.ErrorContains(t, res.Errors[0], `malformed time "6:xx"`)
		assert.Empty(t, res.Records)
	})

	t.Run("unexpected element", func(t *testing.T) {
		page := monthPage(map[int]string{6: "<b>稽古</b>"})
		res := ParseMonth(2024, time.January, page, tokyo, "")
		require.Len(t, res.Errors, 1)
		assert.ErrorContains(t, res.Errors[0], "unexpected element <b>")
	})

	t.Run("continuation with no entry", func(t *testing.T) {
		page := monthPage(map[int]string{6: `<font color="red">見学可</font>`})
		res := ParseMonth(2024, time.January, page, tokyo, "")
		require.Len(t, res.Errors, 1)
		assert.ErrorContains(t, res.Errors[0], "no preceding entry")
	})

	t.Run("no schedule table", func(t *testing.T) {
		res := ParseMonth(2024, time.January, "<html><body></body></html>", tokyo, "")
		require.Len(t, res.Errors, 31)
		assert.ErrorContains(t, res.Errors[0], "did not parse day 1")
	})
}

func TestParseMonthIDsStableAcrossRuns(t *testing.T) {
	page := monthPage(map[int]string{6: "6-7:30 少年稽古", 2: "休館日"})
	a := ParseMonth(2024, time.January, page, tokyo, "")
	b := ParseMonth(2024, time.January, page, tokyo, "")

	require.Len(t, a.Records, 2)
	require.Len(t, b.Records, 2)
	for i := range a.Records {
		assert.Equal(t, a.Records[i].ID, b.Records[i].ID)
	}
}
