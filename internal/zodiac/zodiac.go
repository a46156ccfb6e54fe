// Package zodiac maps dates of birth to western zodiac signs.
package zodiac

import "time"

// SignFor returns the zodiac sign for a date of birth.
func SignFor(dob time.Time) string {
	month := dob.Month()
	day := dob.Day()

	switch month {
	case time.January:
		if day <= 19 {
			return "Capricorn"
		}
		return "Aquarius"
	case time.February:
		if day <= 18 {
			return "Aquarius"
		}
		return "Pisces"
	case time.March:
		if day <= 20 {
			return "Pisces"
		}
		return "Aries"
	case time.April:
		if day <= 19 {
			return "Aries"
		}
		return "Taurus"
	case time.May:
		if day <= 20 {
			return "Taurus"
		}
		return "Gemini"
	case time.June:
		if day <= 20 {
			return "Gemini"
		}
		return "Cancer"
	case time.July:
		if day <= 22 {
			return "Cancer"
		}
		return "Leo"
	case time.August:
		if day <= 22 {
			return "Leo"
		}
		return "Virgo"
	case time.September:
		if day <= 22 {
			return "Virgo"
		}
		return "Libra"
	case time.October:
		if day <= 22 {
			return "Libra"
		}
		return "Scorpio"
	case time.November:
		if day <= 21 {
			return "Scorpio"
		}
		return "Sagittarius"
	default:
		if day <= 21 {
			return "Sagittarius"
		}
		return "Capricorn"
	}
}
