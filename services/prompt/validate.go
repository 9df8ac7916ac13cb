package prompt

import (
	"fmt"

	"travelagent/models"
)

// ValidateDates nulls every date before today, a return date that does not
// strictly follow the departure, and a check-out that does not strictly
// follow the check-in. Each rejection is recorded in q.Issues.
func ValidateDates(q models.TripQuery, today models.Date) models.TripQuery {
	reject := func(field string, d **models.Date, reason string) {
		q.Issues = append(q.Issues, fmt.Sprintf("%s %s %s", field, (*d).String(), reason))
		*d = nil
	}
	past := func(field string, d **models.Date) {
		if *d != nil && (*d).Before(today) {
			reject(field, d, "is in the past")
		}
	}

	past("depart_date", &q.DepartDate)
	past("return_date", &q.ReturnDate)
	past("hotel_check_in", &q.HotelCheckIn)
	past("hotel_check_out", &q.HotelCheckOut)

	if q.DepartDate != nil && q.ReturnDate != nil && !q.ReturnDate.After(*q.DepartDate) {
		reject("return_date", &q.ReturnDate, "is not after depart_date "+q.DepartDate.String())
	}
	if q.HotelCheckIn != nil && q.HotelCheckOut != nil && !q.HotelCheckOut.After(*q.HotelCheckIn) {
		reject("hotel_check_out", &q.HotelCheckOut, "is not after hotel_check_in "+q.HotelCheckIn.String())
	}
	return q
}
