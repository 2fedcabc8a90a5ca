package extensions

import (
	"testing"
	"time"
)

func TestFilterSingle(t *testing.T) {
	keys := []string{"1. Symbol", "2. Last Refreshed", "3. Time Zone"}

	res, err := FilterSingle(keys, func(s string) bool { return s == "3. Time Zone" })
	if err != nil {
		t.Fatalf("unexpected error filtering single: %v", err)
	}
	AssertAreEqual(t, "single", "3. Time Zone", res)

	if _, err := FilterSingle(keys, func(s string) bool { return true }); err == nil {
		t.Fatalf("expected an error when more than one element matches")
	}
}

func TestUniqueKeepsFirstOccurrence(t *testing.T) {
	res := Unique([]string{"AAPL", "MSFT", "AAPL", "TSLA", "MSFT"})
	AssertAreEqual(t, "length", 3, len(res))
	AssertAreEqual(t, "first", "AAPL", res[0])
	AssertAreEqual(t, "second", "MSFT", res[1])
	AssertAreEqual(t, "third", "TSLA", res[2])
}

func TestSplitAndTrim(t *testing.T) {
	res := SplitAndTrim(" aapl, ,msft ,")
	AssertAreEqual(t, "length", 2, len(res))
	AssertAreEqual(t, "first", "aapl", res[0])
	AssertAreEqual(t, "second", "msft", res[1])
	AssertAreEqual(t, "empty", 0, len(SplitAndTrim("")))
}

func TestNormalizeSymbol(t *testing.T) {
	AssertAreEqual(t, "symbol", "BRK-B", NormalizeSymbol("  brk-b "))
}

func TestParseShortRoundTrip(t *testing.T) {
	d, err := ParseShort("2024-03-15")
	if err != nil {
		t.Fatalf("error parsing date: %v", err)
	}
	AssertAreEqual(t, "date", time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), d)
	AssertAreEqual(t, "formatted", "2024-03-15", FmtShort(d))

	if _, err := ParseShort("15/03/2024"); err == nil {
		t.Fatalf("expected an error for a non iso date")
	}
}

func TestTruncateDay(t *testing.T) {
	in := time.Date(2024, time.March, 15, 13, 45, 10, 5, time.UTC)
	AssertAreEqual(t, "truncated", time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), TruncateDay(in))
}

func TestMinAndSum(t *testing.T) {
	AssertAreEqual(t, "min", 3, Min(3, 8))
	AssertAreEqual(t, "sum", 10.5, Sum([]float64{1, 2.5, 7}))
}
