package zodiac

import (
	"testing"
	"time"
)

func TestSignFor(t *testing.T) {
	tests := []struct {
		month time.Month
		day   int
		want  string
	}{
		{time.January, 1, "Capricorn"},
		{time.January, 19, "Capricorn"},
		{time.January, 20, "Aquarius"},
		{time.February, 18, "Aquarius"},
		{time.February, 19, "Pisces"},
		{time.March, 20, "Pisces"},
		{time.March, 21, "Aries"},
		{time.April, 19, "Aries"},
		{time.April, 20, "Taurus"},
		{time.May, 21, "Gemini"},
		{time.June, 21, "Cancer"},
		{time.July, 23, "Leo"},
		{time.August, 23, "Virgo"},
		{time.September, 23, "Libra"},
		{time.October, 23, "Scorpio"},
		{time.November, 22, "Sagittarius"},
		{time.December, 21, "Sagittarius"},
		{time.December, 22, "Capricorn"},
		{time.December, 31, "Capricorn"},
	}

	for _, tt := range tests {
		dob := time.Date(1990, tt.month, tt.day, 0, 0, 0, 0, time.UTC)
		if got := SignFor(dob); got != tt.want {
			t.Errorf("SignFor(%s %d) = %s, want %s", tt.month, tt.day, got, tt.want)
		}
	}
}
